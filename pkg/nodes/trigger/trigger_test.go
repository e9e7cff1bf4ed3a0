package trigger_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftflow/weft/pkg/models"
	"github.com/weftflow/weft/pkg/nodes/trigger"
	"github.com/weftflow/weft/pkg/protocol"
)

func TestWebhookNode_PassesTriggerPayloadThrough(t *testing.T) {
	t.Parallel()

	node := trigger.NewWebhookNode()
	assert.Equal(t, models.NodeTypeTriggerWebhook, node.Type())
	assert.Equal(t, models.CategoryTypeTrigger, node.Category())

	payload := map[string]any{"order_id": "ord-1"}

	result, err := node.Run(context.Background(), protocol.NodeContext{Trigger: payload})
	require.NoError(t, err)
	assert.Equal(t, payload, result.Output)
}

func TestPollNode_PassesTriggerPayloadThrough(t *testing.T) {
	t.Parallel()

	node := trigger.NewPollNode()
	assert.Equal(t, models.NodeTypeTriggerPoll, node.Type())

	payload := map[string]any{"record": "r-9"}

	result, err := node.Run(context.Background(), protocol.NodeContext{Trigger: payload})
	require.NoError(t, err)
	assert.Equal(t, payload, result.Output)
}
