// Package trigger provides the entry node types fed by external events.
package trigger

import (
	"context"

	"github.com/weftflow/weft/pkg/models"
	"github.com/weftflow/weft/pkg/protocol"
)

// WebhookNode is the entry node for HTTP-delivered events. The receiver posts
// the request payload as trigger data; the node surfaces it as its output so
// downstream nodes can reference it by node id as well as the trigger alias.
type WebhookNode struct{}

func NewWebhookNode() *WebhookNode {
	return &WebhookNode{}
}

func (n *WebhookNode) Type() string {
	return models.NodeTypeTriggerWebhook
}

func (n *WebhookNode) Category() models.CategoryType {
	return models.CategoryTypeTrigger
}

func (n *WebhookNode) ConfigSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "URL path the receiver exposes for this trigger",
			},
		},
	}
}

func (n *WebhookNode) OutputSchema() map[string]any {
	return nil
}

func (n *WebhookNode) Run(_ context.Context, nc protocol.NodeContext) (*protocol.Result, error) {
	return &protocol.Result{Output: nc.Trigger}, nil
}
