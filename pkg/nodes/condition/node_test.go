package condition_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftflow/weft/pkg/nodes/condition"
	"github.com/weftflow/weft/pkg/protocol"
)

func run(t *testing.T, config map[string]any) *protocol.Result {
	t.Helper()

	result, err := condition.NewNode().Run(context.Background(), protocol.NodeContext{Config: config})
	require.NoError(t, err)

	return result
}

func TestConditionNode_Comparisons(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  map[string]any
		outcome string
	}{
		{"gt true", map[string]any{"left": float64(75), "operator": "gt", "right": float64(50)}, condition.OutcomeTrue},
		{"gt false", map[string]any{"left": float64(30), "operator": "gt", "right": float64(50)}, condition.OutcomeFalse},
		{"gte equal", map[string]any{"left": float64(50), "operator": "gte", "right": float64(50)}, condition.OutcomeTrue},
		{"lt true", map[string]any{"left": float64(1), "operator": "lt", "right": float64(2)}, condition.OutcomeTrue},
		{"lte false", map[string]any{"left": float64(3), "operator": "lte", "right": float64(2)}, condition.OutcomeFalse},
		{"eq strings", map[string]any{"left": "active", "operator": "eq", "right": "active"}, condition.OutcomeTrue},
		{"eq mixed numeric", map[string]any{"left": float64(50), "operator": "eq", "right": 50}, condition.OutcomeTrue},
		{"neq", map[string]any{"left": "a", "operator": "neq", "right": "b"}, condition.OutcomeTrue},
		{"contains true", map[string]any{"left": "hello world", "operator": "contains", "right": "world"}, condition.OutcomeTrue},
		{"contains false", map[string]any{"left": "hello", "operator": "contains", "right": "world"}, condition.OutcomeFalse},
		{"exists present", map[string]any{"left": "value", "operator": "exists"}, condition.OutcomeTrue},
		{"exists empty", map[string]any{"left": "", "operator": "exists"}, condition.OutcomeFalse},
		{"exists nil", map[string]any{"left": nil, "operator": "exists"}, condition.OutcomeFalse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := run(t, tt.config)
			assert.Equal(t, tt.outcome, result.Outcome)
			assert.Equal(t, tt.outcome == condition.OutcomeTrue, result.Output["matched"])
		})
	}
}

func TestConditionNode_NumericOperatorRejectsStrings(t *testing.T) {
	t.Parallel()

	_, err := condition.NewNode().Run(context.Background(), protocol.NodeContext{Config: map[string]any{
		"left": "not a number", "operator": "gt", "right": float64(1),
	}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "numeric operands")
}

func TestConditionNode_UnknownOperator(t *testing.T) {
	t.Parallel()

	_, err := condition.NewNode().Run(context.Background(), protocol.NodeContext{Config: map[string]any{
		"left": "x", "operator": "between", "right": "y",
	}})
	require.Error(t, err)
}

func TestConditionNode_DeclaredOutcomes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{condition.OutcomeTrue, condition.OutcomeFalse}, condition.NewNode().Outcomes())
}
