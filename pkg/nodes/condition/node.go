// Package condition provides the two-way branching logic node.
package condition

import (
	"context"
	"fmt"
	"strings"

	"github.com/weftflow/weft/pkg/models"
	"github.com/weftflow/weft/pkg/protocol"
)

// Outcome labels routing edges out of a condition node.
const (
	OutcomeTrue  = "true"
	OutcomeFalse = "false"
)

// Node compares two resolved values and returns "true" or "false" as its
// outcome. Edges leaving the node carry one of the two labels as condition.
type Node struct{}

func NewNode() *Node {
	return &Node{}
}

func (n *Node) Type() string {
	return "condition"
}

func (n *Node) Category() models.CategoryType {
	return models.CategoryTypeLogic
}

func (n *Node) Outcomes() []string {
	return []string{OutcomeTrue, OutcomeFalse}
}

func (n *Node) ConfigSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"left", "operator"},
		"properties": map[string]any{
			"left": map[string]any{},
			"operator": map[string]any{
				"type": "string",
				"enum": []any{"eq", "neq", "gt", "gte", "lt", "lte", "contains", "exists"},
			},
			"right": map[string]any{},
		},
	}
}

func (n *Node) OutputSchema() map[string]any {
	return map[string]any{
		"type":     "object",
		"required": []any{"matched"},
		"properties": map[string]any{
			"matched": map[string]any{"type": "boolean"},
		},
	}
}

func (n *Node) Run(_ context.Context, nc protocol.NodeContext) (*protocol.Result, error) {
	operator, _ := nc.Config["operator"].(string)
	left := nc.Config["left"]
	right := nc.Config["right"]

	matched, err := compare(left, operator, right)
	if err != nil {
		return nil, err
	}

	outcome := OutcomeFalse
	if matched {
		outcome = OutcomeTrue
	}

	return &protocol.Result{
		Output:  map[string]any{"matched": matched},
		Outcome: outcome,
	}, nil
}

func compare(left any, operator string, right any) (bool, error) {
	switch operator {
	case "exists":
		// Unresolved paths arrive as empty strings under the lenient resolver.
		return left != nil && left != "", nil
	case "eq":
		return equal(left, right), nil
	case "neq":
		return !equal(left, right), nil
	case "contains":
		return strings.Contains(stringValue(left), stringValue(right)), nil
	case "gt", "gte", "lt", "lte":
		leftNum, leftOK := numeric(left)
		rightNum, rightOK := numeric(right)

		if !leftOK || !rightOK {
			return false, fmt.Errorf("operator %q requires numeric operands, got %T and %T", operator, left, right)
		}

		switch operator {
		case "gt":
			return leftNum > rightNum, nil
		case "gte":
			return leftNum >= rightNum, nil
		case "lt":
			return leftNum < rightNum, nil
		default:
			return leftNum <= rightNum, nil
		}
	default:
		return false, fmt.Errorf("unknown operator %q", operator)
	}
}

// equal compares numerically when both sides are numbers, so 50 and 50.0
// match regardless of JSON decoding.
func equal(left, right any) bool {
	leftNum, leftOK := numeric(left)
	rightNum, rightOK := numeric(right)

	if leftOK && rightOK {
		return leftNum == rightNum
	}

	return stringValue(left) == stringValue(right)
}

func numeric(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case int32:
		return float64(v), true
	}

	return 0, false
}

func stringValue(value any) string {
	if value == nil {
		return ""
	}

	if s, ok := value.(string); ok {
		return s
	}

	return fmt.Sprintf("%v", value)
}
