package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// PostgresLedger implements admission on PostgreSQL, sharing the persistence
// layer's pool. INSERT ... ON CONFLICT DO NOTHING is the atomic insert; the
// idempotency_records table is created by the persistence migrations.
type PostgresLedger struct {
	db *sql.DB
}

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db}
}

func (l *PostgresLedger) Admit(ctx context.Context, key Key, executionID string) (Admission, error) {
	insert := `
		INSERT INTO idempotency_records (workflow_id, event_id, node_id, execution_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (workflow_id, event_id, node_id) DO NOTHING
	`

	result, err := l.db.ExecContext(ctx, insert, key.WorkflowID, key.EventID, key.NodeID, executionID)
	if err != nil {
		return Admission{}, fmt.Errorf("failed to admit %s: %w", key, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return Admission{}, fmt.Errorf("failed to read admission result: %w", err)
	}

	if affected > 0 {
		return Admission{ExecutionID: executionID, IsNew: true}, nil
	}

	var existing string

	query := `
		SELECT execution_id FROM idempotency_records
		WHERE workflow_id = $1 AND event_id = $2 AND node_id = $3
	`

	err = l.db.QueryRowContext(ctx, query, key.WorkflowID, key.EventID, key.NodeID).Scan(&existing)
	if err != nil {
		return Admission{}, fmt.Errorf("failed to read existing admission for %s: %w", key, err)
	}

	return Admission{ExecutionID: existing, IsNew: false}, nil
}

// Close is a no-op; the pool is owned by the persistence layer.
func (l *PostgresLedger) Close(_ context.Context) error {
	return nil
}
