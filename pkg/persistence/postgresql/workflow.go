package postgresql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/weftflow/weft/pkg/models"
	"github.com/weftflow/weft/pkg/persistence"
)

// WorkflowRepository handles workflow-related database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

const workflowColumns = `
	id
  , name
  , description
  , status
  , definition
  , variables
  , credentials
  , metadata
  , owner
  , created_at
  , updated_at
  , activated_at
`

func (r *WorkflowRepository) Save(ctx context.Context, workflow *models.Workflow) error {
	definition, err := marshalJSONB(workflow.Definition)
	if err != nil {
		return err
	}

	variables, err := marshalJSONB(workflow.Variables)
	if err != nil {
		return err
	}

	credentials, err := marshalJSONB(workflow.Credentials)
	if err != nil {
		return err
	}

	metadata, err := marshalJSONB(workflow.Metadata)
	if err != nil {
		return err
	}

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = time.Now().UTC()
	}

	workflow.UpdatedAt = time.Now().UTC()

	query := `
		INSERT INTO workflows (` + workflowColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name
		  , description = EXCLUDED.description
		  , status = EXCLUDED.status
		  , definition = EXCLUDED.definition
		  , variables = EXCLUDED.variables
		  , credentials = EXCLUDED.credentials
		  , metadata = EXCLUDED.metadata
		  , owner = EXCLUDED.owner
		  , updated_at = EXCLUDED.updated_at
		  , activated_at = EXCLUDED.activated_at
	`

	var activatedAt sql.NullTime
	if workflow.ActivatedAt != nil {
		activatedAt = sql.NullTime{Time: *workflow.ActivatedAt, Valid: true}
	}

	_, err = r.db.ExecContext(ctx, query,
		workflow.ID,
		workflow.Name,
		workflow.Description,
		string(workflow.Status),
		definition,
		variables,
		credentials,
		metadata,
		workflow.Owner,
		workflow.CreatedAt,
		workflow.UpdatedAt,
		activatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save workflow %s: %w", workflow.ID, err)
	}

	return nil
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows WHERE id = $1`

	workflow, err := scanWorkflow(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to scan workflow: %w", err)
	}

	return workflow, nil
}

func (r *WorkflowRepository) List(ctx context.Context) ([]*models.Workflow, error) {
	query := `SELECT ` + workflowColumns + ` FROM workflows ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflows: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	workflows := make([]*models.Workflow, 0)

	for rows.Next() {
		workflow, err := scanWorkflow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow: %w", err)
		}

		workflows = append(workflows, workflow)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workflows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM workflows WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workflow %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrWorkflowNotFound
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWorkflow(row rowScanner) (*models.Workflow, error) {
	var (
		workflow    models.Workflow
		status      string
		definition  []byte
		variables   []byte
		credentials []byte
		metadata    []byte
		activatedAt sql.NullTime
	)

	err := row.Scan(
		&workflow.ID,
		&workflow.Name,
		&workflow.Description,
		&status,
		&definition,
		&variables,
		&credentials,
		&metadata,
		&workflow.Owner,
		&workflow.CreatedAt,
		&workflow.UpdatedAt,
		&activatedAt,
	)
	if err != nil {
		return nil, err
	}

	workflow.Status = models.WorkflowStatus(status)
	workflow.Definition = &models.GraphDefinition{}

	if err := unmarshalJSONB(definition, workflow.Definition); err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(variables, &workflow.Variables); err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(credentials, &workflow.Credentials); err != nil {
		return nil, err
	}

	if err := unmarshalJSONB(metadata, &workflow.Metadata); err != nil {
		return nil, err
	}

	if activatedAt.Valid {
		workflow.ActivatedAt = &activatedAt.Time
	}

	return &workflow, nil
}
