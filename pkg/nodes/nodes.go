// Package nodes wires the built-in node types into a registry.
package nodes

import (
	"github.com/weftflow/weft/pkg/nodes/condition"
	"github.com/weftflow/weft/pkg/nodes/httprequest"
	lognode "github.com/weftflow/weft/pkg/nodes/log"
	"github.com/weftflow/weft/pkg/nodes/transform"
	"github.com/weftflow/weft/pkg/nodes/trigger"
	"github.com/weftflow/weft/pkg/registry"
)

// RegisterBuiltins registers every built-in node type.
func RegisterBuiltins(reg *registry.Registry) {
	reg.Register(trigger.NewWebhookNode())
	reg.Register(trigger.NewPollNode())
	reg.Register(httprequest.NewNode())
	reg.Register(lognode.NewNode())
	reg.Register(transform.NewNode())
	reg.Register(condition.NewNode())
}
