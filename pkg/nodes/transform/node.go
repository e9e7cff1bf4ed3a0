// Package transform provides the data reshaping action node.
package transform

import (
	"context"
	"errors"

	"github.com/weftflow/weft/pkg/models"
	"github.com/weftflow/weft/pkg/protocol"
)

// Node reshapes data for downstream nodes. Its mapping config arrives fully
// resolved, with every placeholder already substituted, so the run simply
// surfaces the mapping as the node output.
type Node struct{}

func NewNode() *Node {
	return &Node{}
}

func (n *Node) Type() string {
	return "transform"
}

func (n *Node) Category() models.CategoryType {
	return models.CategoryTypeAction
}

func (n *Node) ConfigSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"mapping"},
		"properties": map[string]any{
			"mapping": map[string]any{
				"type":        "object",
				"description": "Key/value shape of the node output",
			},
		},
	}
}

func (n *Node) OutputSchema() map[string]any {
	return nil
}

func (n *Node) Run(_ context.Context, nc protocol.NodeContext) (*protocol.Result, error) {
	mapping, ok := nc.Config["mapping"].(map[string]any)
	if !ok {
		return nil, errors.New("missing required field 'mapping'")
	}

	return &protocol.Result{Output: mapping}, nil
}
