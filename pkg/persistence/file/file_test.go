package file_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftflow/weft/pkg/models"
	"github.com/weftflow/weft/pkg/persistence"
	"github.com/weftflow/weft/pkg/persistence/file"
	"github.com/weftflow/weft/pkg/testutil"
)

func setupPersistence(t *testing.T) *file.Persistence {
	t.Helper()

	return file.NewPersistence(t.TempDir())
}

func TestWorkflowRepository_SaveAndGet(t *testing.T) {
	t.Parallel()

	store := setupPersistence(t)
	ctx := context.Background()

	wf := testutil.CreateTestWorkflow(testutil.WithDefinition(testutil.Chain(
		testutil.Node("start", models.NodeTypeTriggerWebhook, map[string]any{"path": "orders"}),
		testutil.Node("notify", "log", map[string]any{"message": "hi"}),
	)))

	require.NoError(t, store.WorkflowRepository().Save(ctx, wf))

	loaded, err := store.WorkflowRepository().GetByID(ctx, wf.ID)
	require.NoError(t, err)
	assert.Equal(t, wf.ID, loaded.ID)
	assert.Equal(t, wf.Name, loaded.Name)
	require.NotNil(t, loaded.Definition)
	assert.Len(t, loaded.Definition.Nodes, 2)
	assert.Len(t, loaded.Definition.Edges, 1)
}

func TestWorkflowRepository_GetMissing(t *testing.T) {
	t.Parallel()

	store := setupPersistence(t)

	_, err := store.WorkflowRepository().GetByID(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, persistence.IsWorkflowNotFound(err))
}

func TestWorkflowRepository_ListAndDelete(t *testing.T) {
	t.Parallel()

	store := setupPersistence(t)
	ctx := context.Background()

	first := testutil.CreateTestWorkflow()
	second := testutil.CreateTestWorkflow()
	require.NoError(t, store.WorkflowRepository().Save(ctx, first))
	require.NoError(t, store.WorkflowRepository().Save(ctx, second))

	workflows, err := store.WorkflowRepository().List(ctx)
	require.NoError(t, err)
	assert.Len(t, workflows, 2)

	require.NoError(t, store.WorkflowRepository().Delete(ctx, first.ID))

	workflows, err = store.WorkflowRepository().List(ctx)
	require.NoError(t, err)
	assert.Len(t, workflows, 1)
	assert.Equal(t, second.ID, workflows[0].ID)
}

func newRunningExecution(workflowID string) *models.Execution {
	return &models.Execution{
		ID:         uuid.NewString(),
		WorkflowID: workflowID,
		Status:     models.ExecutionStatusRunning,
		Steps:      []*models.StepTrace{},
		StartedAt:  time.Now().UTC(),
	}
}

func TestExecutionRepository_SavePreservesCancellationRequest(t *testing.T) {
	t.Parallel()

	store := setupPersistence(t)
	ctx := context.Background()
	repo := store.ExecutionRepository()

	execution := newRunningExecution("wf-1")
	require.NoError(t, repo.Save(ctx, execution))

	requested, err := repo.RequestCancellation(ctx, execution.ID, "operator", "manual stop")
	require.NoError(t, err)
	assert.True(t, requested)

	// A progress snapshot written after the request must not clear it.
	snapshot := *execution
	snapshot.Steps = append(snapshot.Steps, &models.StepTrace{NodeID: "n1", Status: models.StepStatusSuccess})
	require.NoError(t, repo.Save(ctx, &snapshot))

	status, err := repo.Status(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusCancelRequested, status)

	stored, err := repo.GetByID(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, "operator", stored.AbortedBy)
	assert.Equal(t, "manual stop", stored.AbortReason)
	assert.Len(t, stored.Steps, 1)
}

func TestExecutionRepository_TerminalRecordsImmutable(t *testing.T) {
	t.Parallel()

	store := setupPersistence(t)
	ctx := context.Background()
	repo := store.ExecutionRepository()

	execution := newRunningExecution("wf-1")
	execution.Status = models.ExecutionStatusSuccess
	require.NoError(t, repo.Save(ctx, execution))

	overwrite := *execution
	overwrite.Status = models.ExecutionStatusRunning
	require.NoError(t, repo.Save(ctx, &overwrite))

	status, err := repo.Status(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSuccess, status)
}

func TestExecutionRepository_TerminalSaveWinsOverCancellation(t *testing.T) {
	t.Parallel()

	store := setupPersistence(t)
	ctx := context.Background()
	repo := store.ExecutionRepository()

	execution := newRunningExecution("wf-1")
	require.NoError(t, repo.Save(ctx, execution))

	requested, err := repo.RequestCancellation(ctx, execution.ID, "operator", "too slow")
	require.NoError(t, err)
	assert.True(t, requested)

	// The cancellation landed during the final step and loses the race.
	final := *execution
	final.Status = models.ExecutionStatusSuccess
	require.NoError(t, repo.Save(ctx, &final))

	status, err := repo.Status(ctx, execution.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ExecutionStatusSuccess, status)
}

func TestExecutionRepository_RequestCancellationOnFinished(t *testing.T) {
	t.Parallel()

	store := setupPersistence(t)
	ctx := context.Background()
	repo := store.ExecutionRepository()

	execution := newRunningExecution("wf-1")
	execution.Status = models.ExecutionStatusFailed
	require.NoError(t, repo.Save(ctx, execution))

	requested, err := repo.RequestCancellation(ctx, execution.ID, "operator", "late")
	require.NoError(t, err)
	assert.False(t, requested)
}

func TestExecutionRepository_ListByWorkflow(t *testing.T) {
	t.Parallel()

	store := setupPersistence(t)
	ctx := context.Background()
	repo := store.ExecutionRepository()

	mine := newRunningExecution("wf-mine")
	other := newRunningExecution("wf-other")
	require.NoError(t, repo.Save(ctx, mine))
	require.NoError(t, repo.Save(ctx, other))

	executions, err := repo.ListByWorkflow(ctx, "wf-mine")
	require.NoError(t, err)
	require.Len(t, executions, 1)
	assert.Equal(t, mine.ID, executions[0].ID)
}

func TestSubscriptionRepository_CRUD(t *testing.T) {
	t.Parallel()

	store := setupPersistence(t)
	ctx := context.Background()
	repo := store.SubscriptionRepository()

	sub := &models.TriggerSubscription{
		ID:          uuid.NewString(),
		WorkflowID:  "wf-1",
		NodeID:      "start",
		TriggerType: models.NodeTypeTriggerWebhook,
		Path:        "orders",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.Save(ctx, sub))

	byPath, err := repo.GetByPath(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, sub.ID, byPath.ID)

	_, err = repo.GetByPath(ctx, "unknown")
	require.Error(t, err)
	assert.True(t, persistence.IsSubscriptionNotFound(err))

	byWorkflow, err := repo.ListByWorkflow(ctx, "wf-1")
	require.NoError(t, err)
	assert.Len(t, byWorkflow, 1)

	require.NoError(t, repo.DeleteByWorkflow(ctx, "wf-1"))

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestSubscriptionRepository_UpdateCursor(t *testing.T) {
	t.Parallel()

	store := setupPersistence(t)
	ctx := context.Background()
	repo := store.SubscriptionRepository()

	sub := &models.TriggerSubscription{
		ID:          uuid.NewString(),
		WorkflowID:  "wf-1",
		NodeID:      "poll",
		TriggerType: models.NodeTypeTriggerPoll,
		Schedule:    "@every 1m",
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, repo.Save(ctx, sub))

	payload := map[string]any{"record": "r-7"}
	require.NoError(t, repo.UpdateCursor(ctx, sub.ID, "cur-7", payload))
	require.NoError(t, repo.UpdateCursor(ctx, sub.ID, "cur-8", payload))

	updated, err := repo.GetByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, "cur-8", updated.Cursor)
	assert.Equal(t, int64(2), updated.ExecutionCount)
	assert.Equal(t, payload, updated.LastPayload)
}

func TestHealthCheck(t *testing.T) {
	t.Parallel()

	store := setupPersistence(t)
	require.NoError(t, store.HealthCheck(context.Background()))
	require.NoError(t, store.Close(context.Background()))
}
