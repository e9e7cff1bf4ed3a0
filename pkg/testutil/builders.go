// Package testutil provides test data builders shared across test suites.
package testutil

import (
	"time"

	"github.com/google/uuid"

	"github.com/weftflow/weft/pkg/models"
)

// CreateTestWorkflow builds an active workflow with default values that can
// be overridden.
func CreateTestWorkflow(overrides ...func(*models.Workflow)) *models.Workflow {
	now := time.Now().UTC()
	wf := &models.Workflow{
		ID:         uuid.NewString(),
		Name:       "Test Workflow",
		Status:     models.WorkflowStatusActive,
		Definition: &models.GraphDefinition{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	for _, override := range overrides {
		override(wf)
	}

	return wf
}

// WithDefinition sets the workflow's graph definition.
func WithDefinition(def *models.GraphDefinition) func(*models.Workflow) {
	return func(wf *models.Workflow) {
		wf.Definition = def
	}
}

// WithStatus sets the workflow's lifecycle status.
func WithStatus(status models.WorkflowStatus) func(*models.Workflow) {
	return func(wf *models.Workflow) {
		wf.Status = status
	}
}

// WithVariables sets the workflow's variables.
func WithVariables(variables map[string]any) func(*models.Workflow) {
	return func(wf *models.Workflow) {
		wf.Variables = variables
	}
}

// Node builds a graph node.
func Node(id, nodeType string, config map[string]any) *models.GraphNode {
	return &models.GraphNode{ID: id, Type: nodeType, Config: config}
}

// Edge builds an unconditional edge.
func Edge(from, to string) *models.GraphEdge {
	return &models.GraphEdge{From: from, To: to}
}

// ConditionalEdge builds an edge that follows an outcome label.
func ConditionalEdge(from, to, condition string) *models.GraphEdge {
	return &models.GraphEdge{From: from, To: to, Condition: condition}
}

// Chain builds a linear definition where each node connects to the next.
func Chain(nodes ...*models.GraphNode) *models.GraphDefinition {
	edges := make([]*models.GraphEdge, 0, len(nodes))
	for i := 0; i+1 < len(nodes); i++ {
		edges = append(edges, Edge(nodes[i].ID, nodes[i+1].ID))
	}

	return &models.GraphDefinition{Nodes: nodes, Edges: edges}
}
