package ledger_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftflow/weft/pkg/ledger"
)

func TestMemoryLedger_FirstAdmissionWins(t *testing.T) {
	t.Parallel()

	l := ledger.NewMemoryLedger()
	key := ledger.Key{WorkflowID: "wf", EventID: "evt", NodeID: "start"}

	first, err := l.Admit(context.Background(), key, "exec-1")
	require.NoError(t, err)
	assert.True(t, first.IsNew)
	assert.Equal(t, "exec-1", first.ExecutionID)

	second, err := l.Admit(context.Background(), key, "exec-2")
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Equal(t, "exec-1", second.ExecutionID)
}

func TestMemoryLedger_DistinctKeys(t *testing.T) {
	t.Parallel()

	l := ledger.NewMemoryLedger()
	base := ledger.Key{WorkflowID: "wf", EventID: "evt", NodeID: "start"}

	variants := []ledger.Key{
		{WorkflowID: "other", EventID: base.EventID, NodeID: base.NodeID},
		{WorkflowID: base.WorkflowID, EventID: "other", NodeID: base.NodeID},
		{WorkflowID: base.WorkflowID, EventID: base.EventID, NodeID: "other"},
	}

	_, err := l.Admit(context.Background(), base, "exec-base")
	require.NoError(t, err)

	for _, key := range variants {
		admission, err := l.Admit(context.Background(), key, "exec-new")
		require.NoError(t, err)
		assert.True(t, admission.IsNew, "key %s should be independent", key)
	}
}

func TestMemoryLedger_ConcurrentAdmissions(t *testing.T) {
	t.Parallel()

	l := ledger.NewMemoryLedger()
	key := ledger.Key{WorkflowID: "wf", EventID: "evt", NodeID: "start"}

	const attempts = 50

	var wg sync.WaitGroup

	results := make([]ledger.Admission, attempts)

	for i := range attempts {
		wg.Add(1)

		go func(i int) {
			defer wg.Done()

			admission, err := l.Admit(context.Background(), key, fmt.Sprintf("exec-%d", i))
			assert.NoError(t, err)

			results[i] = admission
		}(i)
	}

	wg.Wait()

	winners := 0
	winnerID := ""

	for _, admission := range results {
		if admission.IsNew {
			winners++
			winnerID = admission.ExecutionID
		}
	}

	require.Equal(t, 1, winners)

	for _, admission := range results {
		assert.Equal(t, winnerID, admission.ExecutionID)
	}
}

func TestKeyString(t *testing.T) {
	t.Parallel()

	key := ledger.Key{WorkflowID: "wf", EventID: "evt", NodeID: "start"}
	assert.Equal(t, "wf:evt:start", key.String())
}
