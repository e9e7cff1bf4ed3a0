// Package log provides the logging action node.
package log

import (
	"context"
	"errors"
	"log/slog"

	"github.com/weftflow/weft/pkg/models"
	"github.com/weftflow/weft/pkg/protocol"
)

// Node writes its resolved message to the execution logger. Useful for
// debugging graphs without external side effects.
type Node struct{}

func NewNode() *Node {
	return &Node{}
}

func (n *Node) Type() string {
	return "log"
}

func (n *Node) Category() models.CategoryType {
	return models.CategoryTypeAction
}

func (n *Node) ConfigSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"message"},
		"properties": map[string]any{
			"message": map[string]any{"type": "string"},
			"level": map[string]any{
				"type": "string",
				"enum": []any{"debug", "info", "warn", "error"},
			},
		},
	}
}

func (n *Node) OutputSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"message", "logged"},
		"properties": map[string]any{
			"message": map[string]any{"type": "string"},
			"level":   map[string]any{"type": "string"},
			"logged":  map[string]any{"type": "boolean"},
		},
	}
}

func (n *Node) Run(ctx context.Context, nc protocol.NodeContext) (*protocol.Result, error) {
	message, ok := nc.Config["message"].(string)
	if !ok {
		return nil, errors.New("missing required field 'message'")
	}

	level, _ := nc.Config["level"].(string)

	logger := nc.Logger
	if logger == nil {
		logger = slog.Default()
	}

	switch level {
	case "debug":
		logger.DebugContext(ctx, message)
	case "warn":
		logger.WarnContext(ctx, message)
	case "error":
		logger.ErrorContext(ctx, message)
	default:
		level = "info"

		logger.InfoContext(ctx, message)
	}

	return &protocol.Result{Output: map[string]any{
		"message": message,
		"level":   level,
		"logged":  true,
	}}, nil
}
