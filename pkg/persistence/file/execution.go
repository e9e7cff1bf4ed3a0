package file

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/weftflow/weft/pkg/models"
	"github.com/weftflow/weft/pkg/persistence"
)

// ExecutionRepository handles execution records. The mutex gives the same
// read-modify-write atomicity a SQL driver gets from conditional updates.
type ExecutionRepository struct {
	store *store
	mu    sync.Mutex
}

func NewExecutionRepository(root string) *ExecutionRepository {
	return &ExecutionRepository{store: newStore(root, "executions")}
}

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var stored models.Execution

	found, err := r.store.read(execution.ID, &stored)
	if err != nil {
		return err
	}

	if found {
		// Terminal records are immutable.
		if stored.Status.Terminal() {
			return nil
		}

		// A pending/running snapshot must not clobber a cancellation request
		// written between the engine's boundary checks.
		if stored.Status == models.ExecutionStatusCancelRequested && !execution.Status.Terminal() {
			execution = cloneWithCancellation(execution, &stored)
		}
	}

	return r.store.write(execution.ID, execution)
}

// cloneWithCancellation overlays the stored cancellation request onto an
// engine progress snapshot without mutating the engine's copy.
func cloneWithCancellation(snapshot *models.Execution, stored *models.Execution) *models.Execution {
	merged := *snapshot
	merged.Status = models.ExecutionStatusCancelRequested
	merged.AbortedAt = stored.AbortedAt
	merged.AbortedBy = stored.AbortedBy
	merged.AbortReason = stored.AbortReason

	return &merged
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.getLocked(id)
}

func (r *ExecutionRepository) Status(ctx context.Context, id string) (models.ExecutionStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	execution, err := r.getLocked(id)
	if err != nil {
		return "", err
	}

	return execution.Status, nil
}

func (r *ExecutionRepository) RequestCancellation(ctx context.Context, id, requestedBy, reason string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	execution, err := r.getLocked(id)
	if err != nil {
		return false, err
	}

	if execution.Status != models.ExecutionStatusPending && execution.Status != models.ExecutionStatusRunning {
		return false, nil
	}

	now := time.Now().UTC()
	execution.Status = models.ExecutionStatusCancelRequested
	execution.AbortedAt = &now
	execution.AbortedBy = requestedBy
	execution.AbortReason = reason

	if err := r.store.write(id, execution); err != nil {
		return false, err
	}

	return true, nil
}

func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ids, err := r.store.ids()
	if err != nil {
		return nil, err
	}

	executions := make([]*models.Execution, 0)

	for _, id := range ids {
		execution, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}

		if execution.WorkflowID == workflowID {
			executions = append(executions, execution)
		}
	}

	sort.Slice(executions, func(i, j int) bool {
		return executions[i].StartedAt.After(executions[j].StartedAt)
	})

	return executions, nil
}

func (r *ExecutionRepository) getLocked(id string) (*models.Execution, error) {
	var execution models.Execution

	found, err := r.store.read(id, &execution)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrExecutionNotFound
	}

	return &execution, nil
}
