package trigger

import (
	"context"

	"github.com/weftflow/weft/pkg/models"
	"github.com/weftflow/weft/pkg/protocol"
)

// PollNode is the entry node for cursor-based polling sources. The poller
// runs the workflow once per new item; the item payload arrives as trigger
// data and passes through unchanged.
type PollNode struct{}

func NewPollNode() *PollNode {
	return &PollNode{}
}

func (n *PollNode) Type() string {
	return models.NodeTypeTriggerPoll
}

func (n *PollNode) Category() models.CategoryType {
	return models.CategoryTypeTrigger
}

func (n *PollNode) ConfigSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"source"},
		"properties": map[string]any{
			"source": map[string]any{
				"type":        "string",
				"description": "Name of the registered poll source",
			},
			"schedule": map[string]any{
				"type":        "string",
				"description": "Cron expression controlling the poll interval",
			},
		},
	}
}

func (n *PollNode) OutputSchema() map[string]any {
	return nil
}

func (n *PollNode) Run(_ context.Context, nc protocol.NodeContext) (*protocol.Result, error) {
	return &protocol.Result{Output: nc.Trigger}, nil
}
