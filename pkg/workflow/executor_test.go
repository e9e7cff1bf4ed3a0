package workflow_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/weftflow/weft/pkg/ledger"
	"github.com/weftflow/weft/pkg/models"
	"github.com/weftflow/weft/pkg/nodes"
	"github.com/weftflow/weft/pkg/persistence"
	"github.com/weftflow/weft/pkg/persistence/file"
	"github.com/weftflow/weft/pkg/protocol"
	"github.com/weftflow/weft/pkg/registry"
	"github.com/weftflow/weft/pkg/testutil"
	"github.com/weftflow/weft/pkg/workflow"
)

// cancelDuringRunNode requests cancellation of its own execution while
// running, so the engine observes the request at the next step boundary.
type cancelDuringRunNode struct {
	repo persistence.ExecutionRepository
}

func (n *cancelDuringRunNode) Type() string                  { return "test:cancel" }
func (n *cancelDuringRunNode) Category() models.CategoryType { return models.CategoryTypeAction }
func (n *cancelDuringRunNode) ConfigSchema() map[string]any  { return nil }
func (n *cancelDuringRunNode) OutputSchema() map[string]any  { return nil }

func (n *cancelDuringRunNode) Run(ctx context.Context, nc protocol.NodeContext) (*protocol.Result, error) {
	_, err := n.repo.RequestCancellation(ctx, nc.ExecutionID, "tester", "stop requested mid-run")
	if err != nil {
		return nil, err
	}

	return &protocol.Result{Output: map[string]any{"done": true}}, nil
}

// failingNode always returns an error.
type failingNode struct{}

func (n *failingNode) Type() string                  { return "test:fail" }
func (n *failingNode) Category() models.CategoryType { return models.CategoryTypeAction }
func (n *failingNode) ConfigSchema() map[string]any  { return nil }
func (n *failingNode) OutputSchema() map[string]any  { return nil }

func (n *failingNode) Run(_ context.Context, _ protocol.NodeContext) (*protocol.Result, error) {
	return nil, errors.New("boom")
}

type executorFixture struct {
	store    persistence.Persistence
	registry *registry.Registry
	executor *workflow.Executor
}

func setupExecutor(t *testing.T) *executorFixture {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	reg := registry.NewRegistry(slog.Default())
	nodes.RegisterBuiltins(reg)
	reg.Register(&cancelDuringRunNode{repo: store.ExecutionRepository()})
	reg.Register(&failingNode{})

	executor := workflow.NewExecutor(store, reg, slog.Default(),
		workflow.WithLedger(ledger.NewMemoryLedger()))

	return &executorFixture{store: store, registry: reg, executor: executor}
}

func (f *executorFixture) saveWorkflow(t *testing.T, wf *models.Workflow) {
	t.Helper()
	require.NoError(t, f.store.WorkflowRepository().Save(context.Background(), wf))
}

func (f *executorFixture) getExecution(t *testing.T, id string) *models.Execution {
	t.Helper()

	execution, err := f.store.ExecutionRepository().GetByID(context.Background(), id)
	require.NoError(t, err)

	return execution
}

func TestExecute_LinearChain(t *testing.T) {
	t.Parallel()

	f := setupExecutor(t)

	wf := testutil.CreateTestWorkflow(testutil.WithDefinition(testutil.Chain(
		testutil.Node("start", models.NodeTypeTriggerWebhook, nil),
		testutil.Node("shape", "transform", map[string]any{
			"mapping": map[string]any{"order": "{{trigger.order_id}}", "greeting": "hello {{start.customer}}"},
		}),
		testutil.Node("notify", "log", map[string]any{"message": "processed {{shape.order}}"}),
	)))
	f.saveWorkflow(t, wf)

	executionID, err := f.executor.Execute(context.Background(), wf.ID, map[string]any{
		"order_id": "ord-42",
		"customer": "ada",
	})
	require.NoError(t, err)

	execution := f.getExecution(t, executionID)
	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)
	require.Len(t, execution.Steps, 3)

	// Trigger output feeds the transform both via the alias and the node id.
	assert.Equal(t, "ord-42", execution.Steps[1].Output["order"])
	assert.Equal(t, "hello ada", execution.Steps[1].Output["greeting"])

	// The final node's output is the execution result.
	assert.Equal(t, "processed ord-42", execution.Result["message"])
	require.NotNil(t, execution.FinishedAt)

	for _, step := range execution.Steps {
		assert.Equal(t, models.StepStatusSuccess, step.Status)
	}
}

func routingWorkflow() *models.Workflow {
	return testutil.CreateTestWorkflow(testutil.WithDefinition(&models.GraphDefinition{
		Nodes: []*models.GraphNode{
			testutil.Node("start", models.NodeTypeTriggerWebhook, nil),
			testutil.Node("check", "condition", map[string]any{
				"left": "{{trigger.value}}", "operator": "gt", "right": float64(50),
			}),
			testutil.Node("high", "log", map[string]any{"message": "high"}),
			testutil.Node("low", "log", map[string]any{"message": "low"}),
		},
		Edges: []*models.GraphEdge{
			testutil.Edge("start", "check"),
			testutil.ConditionalEdge("check", "high", "true"),
			testutil.ConditionalEdge("check", "low", "false"),
		},
	}))
}

func TestExecute_LogicRouting(t *testing.T) {
	t.Parallel()

	f := setupExecutor(t)

	wf := routingWorkflow()
	f.saveWorkflow(t, wf)

	highID, err := f.executor.Execute(context.Background(), wf.ID, map[string]any{"value": float64(75)})
	require.NoError(t, err)

	high := f.getExecution(t, highID)
	assert.Equal(t, models.ExecutionStatusSuccess, high.Status)
	require.Len(t, high.Steps, 3)
	assert.Equal(t, "high", high.Steps[2].NodeID)
	assert.Equal(t, "high", high.Result["message"])

	lowID, err := f.executor.Execute(context.Background(), wf.ID, map[string]any{"value": float64(30)})
	require.NoError(t, err)

	low := f.getExecution(t, lowID)
	assert.Equal(t, models.ExecutionStatusSuccess, low.Status)
	require.Len(t, low.Steps, 3)
	assert.Equal(t, "low", low.Steps[2].NodeID)
}

func TestExecute_CleanTerminationWhenNoEdgeMatches(t *testing.T) {
	t.Parallel()

	f := setupExecutor(t)

	wf := testutil.CreateTestWorkflow(testutil.WithDefinition(&models.GraphDefinition{
		Nodes: []*models.GraphNode{
			testutil.Node("start", models.NodeTypeTriggerWebhook, nil),
			testutil.Node("check", "condition", map[string]any{
				"left": "{{trigger.value}}", "operator": "gt", "right": float64(50),
			}),
			testutil.Node("high", "log", map[string]any{"message": "high"}),
		},
		Edges: []*models.GraphEdge{
			testutil.Edge("start", "check"),
			testutil.ConditionalEdge("check", "high", "true"),
		},
	}))
	f.saveWorkflow(t, wf)

	executionID, err := f.executor.Execute(context.Background(), wf.ID, map[string]any{"value": float64(10)})
	require.NoError(t, err)

	execution := f.getExecution(t, executionID)
	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)
	require.Len(t, execution.Steps, 2)
	assert.Equal(t, false, execution.Result["matched"])
}

func TestExecute_AmbiguousRouting(t *testing.T) {
	t.Parallel()

	f := setupExecutor(t)

	// Bypasses activation-time validation on purpose: the engine must still
	// refuse to follow two matching edges.
	wf := testutil.CreateTestWorkflow(testutil.WithDefinition(&models.GraphDefinition{
		Nodes: []*models.GraphNode{
			testutil.Node("start", models.NodeTypeTriggerWebhook, nil),
			testutil.Node("a", "log", map[string]any{"message": "a"}),
			testutil.Node("b", "log", map[string]any{"message": "b"}),
		},
		Edges: []*models.GraphEdge{
			testutil.Edge("start", "a"),
			testutil.Edge("start", "b"),
		},
	}))
	f.saveWorkflow(t, wf)

	executionID, err := f.executor.Execute(context.Background(), wf.ID, nil)
	require.Error(t, err)

	var failure *workflow.ExecutionFailure

	require.ErrorAs(t, err, &failure)
	assert.Equal(t, models.ErrorKindAmbiguousRouting, failure.Kind)

	execution := f.getExecution(t, executionID)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	require.NotNil(t, execution.Error)
	assert.Equal(t, models.ErrorKindAmbiguousRouting, execution.Error.Kind)
	assert.Equal(t, "start", execution.Error.NodeID)
}

func TestExecute_CycleDetected(t *testing.T) {
	t.Parallel()

	f := setupExecutor(t)

	wf := testutil.CreateTestWorkflow(testutil.WithDefinition(&models.GraphDefinition{
		Nodes: []*models.GraphNode{
			testutil.Node("start", models.NodeTypeTriggerWebhook, nil),
			testutil.Node("a", "log", map[string]any{"message": "a"}),
			testutil.Node("b", "log", map[string]any{"message": "b"}),
		},
		Edges: []*models.GraphEdge{
			testutil.Edge("start", "a"),
			testutil.Edge("a", "b"),
			testutil.Edge("b", "a"),
		},
	}))
	f.saveWorkflow(t, wf)

	executionID, err := f.executor.Execute(context.Background(), wf.ID, nil)
	require.Error(t, err)

	var failure *workflow.ExecutionFailure

	require.ErrorAs(t, err, &failure)
	assert.Equal(t, models.ErrorKindCycleDetected, failure.Kind)

	execution := f.getExecution(t, executionID)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	// Walking terminated after revisiting, not after an unbounded loop.
	assert.Len(t, execution.Steps, 3)
}

func TestExecute_NodeFailureRecordsErrorStep(t *testing.T) {
	t.Parallel()

	f := setupExecutor(t)

	wf := testutil.CreateTestWorkflow(testutil.WithDefinition(testutil.Chain(
		testutil.Node("start", models.NodeTypeTriggerWebhook, nil),
		testutil.Node("broken", "test:fail", nil),
		testutil.Node("never", "log", map[string]any{"message": "never"}),
	)))
	f.saveWorkflow(t, wf)

	executionID, err := f.executor.Execute(context.Background(), wf.ID, nil)
	require.Error(t, err)

	var failure *workflow.ExecutionFailure

	require.ErrorAs(t, err, &failure)
	assert.Equal(t, models.ErrorKindNodeExecutionFailed, failure.Kind)
	assert.Equal(t, "broken", failure.NodeID)

	execution := f.getExecution(t, executionID)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	require.Len(t, execution.Steps, 2)
	assert.Equal(t, models.StepStatusError, execution.Steps[1].Status)
	assert.Contains(t, execution.Steps[1].Error, "boom")
}

func TestExecute_InvalidConfigFailsBeforeRun(t *testing.T) {
	t.Parallel()

	f := setupExecutor(t)

	wf := testutil.CreateTestWorkflow(testutil.WithDefinition(testutil.Chain(
		testutil.Node("start", models.NodeTypeTriggerWebhook, nil),
		testutil.Node("fetch", "httprequest", map[string]any{"method": "GET"}),
	)))
	f.saveWorkflow(t, wf)

	executionID, err := f.executor.Execute(context.Background(), wf.ID, nil)
	require.Error(t, err)

	var failure *workflow.ExecutionFailure

	require.ErrorAs(t, err, &failure)
	assert.Equal(t, models.ErrorKindNodeConfigInvalid, failure.Kind)

	execution := f.getExecution(t, executionID)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
	assert.Equal(t, models.ErrorKindNodeConfigInvalid, execution.Error.Kind)
}

func TestExecute_UnknownNodeType(t *testing.T) {
	t.Parallel()

	f := setupExecutor(t)

	wf := testutil.CreateTestWorkflow(testutil.WithDefinition(testutil.Chain(
		testutil.Node("start", models.NodeTypeTriggerWebhook, nil),
		testutil.Node("mystery", "not-registered", nil),
	)))
	f.saveWorkflow(t, wf)

	executionID, err := f.executor.Execute(context.Background(), wf.ID, nil)
	require.Error(t, err)

	var failure *workflow.ExecutionFailure

	require.ErrorAs(t, err, &failure)
	assert.Equal(t, models.ErrorKindUnknownNodeType, failure.Kind)
	assert.ErrorIs(t, err, registry.ErrUnknownNodeType)

	execution := f.getExecution(t, executionID)
	assert.Equal(t, models.ExecutionStatusFailed, execution.Status)
}

func TestExecute_WorkflowNotActive(t *testing.T) {
	t.Parallel()

	f := setupExecutor(t)

	wf := testutil.CreateTestWorkflow(
		testutil.WithStatus(models.WorkflowStatusDraft),
		testutil.WithDefinition(testutil.Chain(
			testutil.Node("start", models.NodeTypeTriggerWebhook, nil),
		)),
	)
	f.saveWorkflow(t, wf)

	_, err := f.executor.Execute(context.Background(), wf.ID, nil)
	require.ErrorIs(t, err, workflow.ErrWorkflowNotActive)
}

func TestExecute_CancellationHonoredAtStepBoundary(t *testing.T) {
	t.Parallel()

	f := setupExecutor(t)

	wf := testutil.CreateTestWorkflow(testutil.WithDefinition(testutil.Chain(
		testutil.Node("start", models.NodeTypeTriggerWebhook, nil),
		testutil.Node("cancel", "test:cancel", nil),
		testutil.Node("never", "log", map[string]any{"message": "never"}),
	)))
	f.saveWorkflow(t, wf)

	executionID, err := f.executor.Execute(context.Background(), wf.ID, nil)
	require.NoError(t, err)

	execution := f.getExecution(t, executionID)
	assert.Equal(t, models.ExecutionStatusAborted, execution.Status)
	// The in-flight node finished; the next one never started.
	require.Len(t, execution.Steps, 2)
	assert.Equal(t, "cancel", execution.Steps[1].NodeID)
	assert.Equal(t, "tester", execution.AbortedBy)
	assert.Equal(t, "stop requested mid-run", execution.AbortReason)
	require.NotNil(t, execution.AbortedAt)
	require.NotNil(t, execution.FinishedAt)
}

func TestRequestCancellation_FinishedExecution(t *testing.T) {
	t.Parallel()

	f := setupExecutor(t)

	wf := testutil.CreateTestWorkflow(testutil.WithDefinition(testutil.Chain(
		testutil.Node("start", models.NodeTypeTriggerWebhook, nil),
	)))
	f.saveWorkflow(t, wf)

	executionID, err := f.executor.Execute(context.Background(), wf.ID, nil)
	require.NoError(t, err)

	err = f.executor.RequestCancellation(context.Background(), executionID, "tester", "too late")
	require.ErrorIs(t, err, workflow.ErrExecutionFinished)
}

func TestExecuteIdempotent_DuplicateDelivery(t *testing.T) {
	t.Parallel()

	f := setupExecutor(t)

	wf := testutil.CreateTestWorkflow(testutil.WithDefinition(testutil.Chain(
		testutil.Node("start", models.NodeTypeTriggerWebhook, nil),
		testutil.Node("notify", "log", map[string]any{"message": "once"}),
	)))
	f.saveWorkflow(t, wf)

	first, err := f.executor.ExecuteIdempotent(context.Background(), wf.ID, "start", "evt-1", map[string]any{"n": float64(1)})
	require.NoError(t, err)
	assert.False(t, first.IsDuplicate)

	second, err := f.executor.ExecuteIdempotent(context.Background(), wf.ID, "start", "evt-1", map[string]any{"n": float64(2)})
	require.NoError(t, err)
	assert.True(t, second.IsDuplicate)
	assert.Equal(t, first.ExecutionID, second.ExecutionID)

	executions, err := f.store.ExecutionRepository().ListByWorkflow(context.Background(), wf.ID)
	require.NoError(t, err)
	assert.Len(t, executions, 1)

	// A different event id runs again.
	third, err := f.executor.ExecuteIdempotent(context.Background(), wf.ID, "start", "evt-2", map[string]any{"n": float64(3)})
	require.NoError(t, err)
	assert.False(t, third.IsDuplicate)
	assert.NotEqual(t, first.ExecutionID, third.ExecutionID)
}

func TestExecuteIdempotent_WithoutLedger(t *testing.T) {
	t.Parallel()

	store := file.NewPersistence(t.TempDir())
	reg := registry.NewRegistry(slog.Default())
	nodes.RegisterBuiltins(reg)

	executor := workflow.NewExecutor(store, reg, slog.Default())

	_, err := executor.ExecuteIdempotent(context.Background(), "wf", "start", "evt", nil)
	require.ErrorIs(t, err, workflow.ErrNoLedger)
}

// statusTrackingStore wraps a persistence driver and records every execution
// status handed to Save, in order.
type statusTrackingStore struct {
	persistence.Persistence

	executions *statusTrackingExecutions
}

func (s *statusTrackingStore) ExecutionRepository() persistence.ExecutionRepository {
	return s.executions
}

type statusTrackingExecutions struct {
	persistence.ExecutionRepository

	mu    sync.Mutex
	saved []models.ExecutionStatus
}

func (r *statusTrackingExecutions) Save(ctx context.Context, execution *models.Execution) error {
	r.mu.Lock()
	r.saved = append(r.saved, execution.Status)
	r.mu.Unlock()

	return r.ExecutionRepository.Save(ctx, execution)
}

func TestExecute_PersistsPendingBeforeRunning(t *testing.T) {
	t.Parallel()

	inner := file.NewPersistence(t.TempDir())
	store := &statusTrackingStore{
		Persistence: inner,
		executions:  &statusTrackingExecutions{ExecutionRepository: inner.ExecutionRepository()},
	}

	reg := registry.NewRegistry(slog.Default())
	nodes.RegisterBuiltins(reg)

	executor := workflow.NewExecutor(store, reg, slog.Default())

	wf := testutil.CreateTestWorkflow(testutil.WithDefinition(testutil.Chain(
		testutil.Node("start", models.NodeTypeTriggerWebhook, nil),
		testutil.Node("notify", "log", map[string]any{"message": "hi"}),
	)))
	require.NoError(t, store.WorkflowRepository().Save(context.Background(), wf))

	_, err := executor.Execute(context.Background(), wf.ID, nil)
	require.NoError(t, err)

	saved := store.executions.saved
	require.GreaterOrEqual(t, len(saved), 3)
	assert.Equal(t, models.ExecutionStatusPending, saved[0])
	assert.Equal(t, models.ExecutionStatusRunning, saved[1])
	assert.Equal(t, models.ExecutionStatusSuccess, saved[len(saved)-1])
}

func TestExecute_UnconditionalEdgeOffLogicNodeIsFollowed(t *testing.T) {
	t.Parallel()

	f := setupExecutor(t)

	// Bypasses activation-time validation on purpose: an unconditional edge
	// leaving a logic node still routes, whatever the outcome.
	wf := testutil.CreateTestWorkflow(testutil.WithDefinition(&models.GraphDefinition{
		Nodes: []*models.GraphNode{
			testutil.Node("start", models.NodeTypeTriggerWebhook, nil),
			testutil.Node("check", "condition", map[string]any{
				"left": "{{trigger.value}}", "operator": "gt", "right": float64(50),
			}),
			testutil.Node("after", "log", map[string]any{"message": "after"}),
		},
		Edges: []*models.GraphEdge{
			testutil.Edge("start", "check"),
			testutil.Edge("check", "after"),
		},
	}))
	f.saveWorkflow(t, wf)

	executionID, err := f.executor.Execute(context.Background(), wf.ID, map[string]any{"value": float64(10)})
	require.NoError(t, err)

	execution := f.getExecution(t, executionID)
	assert.Equal(t, models.ExecutionStatusSuccess, execution.Status)
	require.Len(t, execution.Steps, 3)
	assert.Equal(t, "after", execution.Steps[2].NodeID)
}
