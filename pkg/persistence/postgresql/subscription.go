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

// SubscriptionRepository handles trigger subscription records.
type SubscriptionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewSubscriptionRepository(db *sql.DB, logger *slog.Logger) *SubscriptionRepository {
	return &SubscriptionRepository{db: db, logger: logger}
}

const subscriptionColumns = `
	id
  , workflow_id
  , node_id
  , trigger_type
  , path
  , schedule
  , poll_cursor
  , execution_count
  , last_payload
  , created_at
`

func (r *SubscriptionRepository) Save(ctx context.Context, subscription *models.TriggerSubscription) error {
	lastPayload, err := marshalJSONB(subscription.LastPayload)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO trigger_subscriptions (` + subscriptionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			path = EXCLUDED.path
		  , schedule = EXCLUDED.schedule
		  , poll_cursor = EXCLUDED.poll_cursor
		  , execution_count = EXCLUDED.execution_count
		  , last_payload = EXCLUDED.last_payload
	`

	_, err = r.db.ExecContext(ctx, query,
		subscription.ID,
		subscription.WorkflowID,
		subscription.NodeID,
		subscription.TriggerType,
		subscription.Path,
		subscription.Schedule,
		subscription.Cursor,
		subscription.ExecutionCount,
		lastPayload,
		subscription.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save subscription %s: %w", subscription.ID, err)
	}

	return nil
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (*models.TriggerSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM trigger_subscriptions WHERE id = $1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, id))
}

func (r *SubscriptionRepository) GetByPath(ctx context.Context, path string) (*models.TriggerSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM trigger_subscriptions WHERE path = $1`

	return r.scanOne(r.db.QueryRowContext(ctx, query, path))
}

func (r *SubscriptionRepository) List(ctx context.Context) ([]*models.TriggerSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM trigger_subscriptions ORDER BY created_at`

	return r.list(ctx, query)
}

func (r *SubscriptionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.TriggerSubscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM trigger_subscriptions WHERE workflow_id = $1 ORDER BY created_at`

	return r.list(ctx, query, workflowID)
}

func (r *SubscriptionRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM trigger_subscriptions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete subscription %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrSubscriptionNotFound
	}

	return nil
}

func (r *SubscriptionRepository) DeleteByWorkflow(ctx context.Context, workflowID string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM trigger_subscriptions WHERE workflow_id = $1`, workflowID)
	if err != nil {
		return fmt.Errorf("failed to delete subscriptions for workflow %s: %w", workflowID, err)
	}

	return nil
}

func (r *SubscriptionRepository) UpdateCursor(ctx context.Context, id, cursor string, lastPayload map[string]any) error {
	payload, err := marshalJSONB(lastPayload)
	if err != nil {
		return err
	}

	query := `
		UPDATE trigger_subscriptions
		SET poll_cursor = $2
		  , last_payload = $3
		  , execution_count = execution_count + 1
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, id, cursor, payload)
	if err != nil {
		return fmt.Errorf("failed to update cursor for subscription %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read cursor update result: %w", err)
	}

	if affected == 0 {
		return persistence.ErrSubscriptionNotFound
	}

	return nil
}

func (r *SubscriptionRepository) list(ctx context.Context, query string, args ...any) ([]*models.TriggerSubscription, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subscriptions: %w", err)
	}

	defer func() {
		if err := rows.Close(); err != nil {
			r.logger.ErrorContext(ctx, "failed to close rows", "error", err)
		}
	}()

	subscriptions := make([]*models.TriggerSubscription, 0)

	for rows.Next() {
		subscription, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan subscription: %w", err)
		}

		subscriptions = append(subscriptions, subscription)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating subscriptions: %w", err)
	}

	return subscriptions, nil
}

func (r *SubscriptionRepository) scanOne(row rowScanner) (*models.TriggerSubscription, error) {
	subscription, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, persistence.ErrSubscriptionNotFound
		}

		return nil, fmt.Errorf("failed to scan subscription: %w", err)
	}

	return subscription, nil
}

func scanSubscription(row rowScanner) (*models.TriggerSubscription, error) {
	var (
		subscription models.TriggerSubscription
		path         sql.NullString
		lastPayload  []byte
	)

	err := row.Scan(
		&subscription.ID,
		&subscription.WorkflowID,
		&subscription.NodeID,
		&subscription.TriggerType,
		&path,
		&subscription.Schedule,
		&subscription.Cursor,
		&subscription.ExecutionCount,
		&lastPayload,
		&subscription.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	subscription.Path = path.String

	if err := unmarshalJSONB(lastPayload, &subscription.LastPayload); err != nil {
		return nil, err
	}

	return &subscription, nil
}
