package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/weftflow/weft/pkg/models"
	"github.com/weftflow/weft/pkg/persistence"
)

// ExecutionRepository handles execution records. Status transitions rely on
// conditional updates so concurrent cancellation requests and engine progress
// snapshots cannot clobber each other.
type ExecutionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewExecutionRepository(db *sql.DB, logger *slog.Logger) *ExecutionRepository {
	return &ExecutionRepository{db: db, logger: logger}
}

const executionColumns = `
	id
  , workflow_id
  , status
  , trigger_data
  , steps
  , result
  , error
  , started_at
  , finished_at
  , aborted_at
  , aborted_by
  , abort_reason
`

func (r *ExecutionRepository) Save(ctx context.Context, execution *models.Execution) error {
	triggerData, err := marshalJSONB(execution.TriggerData)
	if err != nil {
		return err
	}

	steps, err := marshalJSONB(execution.Steps)
	if err != nil {
		return err
	}

	result, err := marshalJSONB(execution.Result)
	if err != nil {
		return err
	}

	execError, err := marshalJSONB(execution.Error)
	if err != nil {
		return err
	}

	var finishedAt, abortedAt sql.NullTime
	if execution.FinishedAt != nil {
		finishedAt = sql.NullTime{Time: *execution.FinishedAt, Valid: true}
	}

	if execution.AbortedAt != nil {
		abortedAt = sql.NullTime{Time: *execution.AbortedAt, Valid: true}
	}

	// Forward-only semantics: terminal rows are immutable, and a non-terminal
	// snapshot keeps a stored cancel_requested status plus its abort metadata.
	query := `
		INSERT INTO executions (` + executionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			status = CASE
				WHEN executions.status = 'cancel_requested'
					AND EXCLUDED.status IN ('pending', 'running')
				THEN executions.status
				ELSE EXCLUDED.status
			END
		  , trigger_data = EXCLUDED.trigger_data
		  , steps = EXCLUDED.steps
		  , result = EXCLUDED.result
		  , error = EXCLUDED.error
		  , finished_at = EXCLUDED.finished_at
		  , aborted_at = CASE
				WHEN executions.status = 'cancel_requested'
				THEN executions.aborted_at
				ELSE EXCLUDED.aborted_at
			END
		  , aborted_by = CASE
				WHEN executions.status = 'cancel_requested'
				THEN executions.aborted_by
				ELSE EXCLUDED.aborted_by
			END
		  , abort_reason = CASE
				WHEN executions.status = 'cancel_requested'
				THEN executions.abort_reason
				ELSE EXCLUDED.abort_reason
			END
		WHERE executions.status NOT IN ('success', 'failed', 'aborted')
	`

	_, err = r.db.ExecContext(ctx, query,
		execution.ID,
		execution.WorkflowID,
		string(execution.Status),
		triggerData,
		steps,
		result,
		execError,
		execution.StartedAt,
		finishedAt,
		abortedAt,
		execution.AbortedBy,
		execution.AbortReason,
	)
	if err != nil {
		return fmt.Errorf("failed to save execution %s: %w", execution.ID, err)
	}

	return nil
}

func (r *ExecutionRepository) GetByID(ctx context.Context, id string) (*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE id = $1`

	execution, err := scanExecution(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrExecutionNotFound
		}

		return nil, fmt.Errorf("failed to scan execution: %w", err)
	}

	return execution, nil
}

func (r *ExecutionRepository) Status(ctx context.Context, id string) (models.ExecutionStatus, error) {
	var status string

	err := r.db.QueryRowContext(ctx, `SELECT status FROM executions WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", persistence.ErrExecutionNotFound
		}

		return "", fmt.Errorf("failed to query execution status: %w", err)
	}

	return models.ExecutionStatus(status), nil
}

func (r *ExecutionRepository) RequestCancellation(ctx context.Context, id, requestedBy, reason string) (bool, error) {
	query := `
		UPDATE executions
		SET status = 'cancel_requested'
		  , aborted_at = NOW()
		  , aborted_by = $2
		  , abort_reason = $3
		WHERE id = $1 AND status IN ('pending', 'running')
	`

	result, err := r.db.ExecContext(ctx, query, id, requestedBy, reason)
	if err != nil {
		return false, fmt.Errorf("failed to request cancellation for execution %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read cancellation result: %w", err)
	}

	if affected == 0 {
		// Distinguish a missing execution from one that is already terminal.
		if _, err := r.Status(ctx, id); err != nil {
			return false, err
		}

		return false, nil
	}

	return true, nil
}

func (r *ExecutionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error) {
	query := `SELECT ` + executionColumns + ` FROM executions WHERE workflow_id = $1 ORDER BY started_at DESC`

	rows, err := r.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	executions := make([]*models.Execution, 0)

	for rows.Next() {
		execution, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan execution: %w", err)
		}

		executions = append(executions, execution)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating executions: %w", err)
	}

	return executions, nil
}

func scanExecution(row rowScanner) (*models.Execution, error) {
	var (
		execution   models.Execution
		status      string
		triggerData []byte
		steps       []byte
		result      []byte
		execError   []byte
		finishedAt  sql.NullTime
		abortedAt   sql.NullTime
	)

	err := row.Scan(
		&execution.ID,
		&execution.WorkflowID,
		&status,
		&triggerData,
		&steps,
		&result,
		&execError,
		&execution.StartedAt,
		&finishedAt,
		&abortedAt,
		&execution.AbortedBy,
		&execution.AbortReason,
	)
	if err != nil {
		return nil, err
	}

	execution.Status = models.ExecutionStatus(status)
	execution.Steps = make([]*models.StepTrace, 0)

	if err := unmarshalJSONB(triggerData, &execution.TriggerData); err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(steps, &execution.Steps); err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(result, &execution.Result); err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(execError, &execution.Error); err != nil {
		return nil, err
	}

	if finishedAt.Valid {
		execution.FinishedAt = &finishedAt.Time
	}

	if abortedAt.Valid {
		execution.AbortedAt = &abortedAt.Time
	}

	return &execution, nil
}
