// Package protocol defines the capability contracts node handlers must satisfy.
package protocol

import (
	"context"
	"log/slog"

	"github.com/weftflow/weft/pkg/models"
)

// NodeContext bundles everything a node handler may need for one run: the
// config after template resolution, the preceding node's output as input, the
// originating trigger payload, workflow variables, and opaque credentials for
// external calls.
type NodeContext struct {
	ExecutionID string
	WorkflowID  string
	Config      map[string]any
	Input       map[string]any
	Trigger     map[string]any
	Variables   map[string]any
	Credentials map[string]string
	Logger      *slog.Logger
}

// Result is the value a node handler returns. Outcome is set only by logic
// nodes and must be one of the handler's declared outcome labels; it drives
// edge selection, not the data payload.
type Result struct {
	Output  map[string]any
	Outcome string
}

// Node is the capability contract for one node type. Handlers are stateless:
// the registry holds one instance per type and the engine passes per-run state
// through NodeContext. Run must honor ctx for long external calls; the engine
// never interrupts a run already in flight.
type Node interface {
	// Type returns the unique type identifier (e.g. "httprequest").
	Type() string

	// Category classifies the node as trigger, action, or logic.
	Category() models.CategoryType

	// ConfigSchema returns the JSON schema the resolved config must satisfy,
	// or nil when the node takes no config.
	ConfigSchema() map[string]any

	// OutputSchema returns the JSON schema the run output must satisfy,
	// or nil when the output is unconstrained.
	OutputSchema() map[string]any

	// Run executes the node against the given context.
	Run(ctx context.Context, nc NodeContext) (*Result, error)
}

// LogicNode is a Node that branches. Its Run returns one of the declared
// outcome labels in Result.Outcome, and the validator checks every edge
// condition leaving a logic node against this set.
type LogicNode interface {
	Node

	// Outcomes returns the finite set of labels Run may return.
	Outcomes() []string
}
