// Package persistence provides the data storage abstraction for workflows,
// executions, and trigger subscriptions.
package persistence

import (
	"context"

	"github.com/weftflow/weft/pkg/models"
)

// Persistence aggregates the repositories a storage driver must provide.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ExecutionRepository() ExecutionRepository
	SubscriptionRepository() SubscriptionRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow definitions.
type WorkflowRepository interface {
	Save(ctx context.Context, workflow *models.Workflow) error
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	List(ctx context.Context) ([]*models.Workflow, error)
	Delete(ctx context.Context, id string) error
}

// ExecutionRepository stores execution records. Status and the cancellation
// request need atomic read-modify-write semantics: the engine re-reads Status
// between steps while external actors call RequestCancellation concurrently.
type ExecutionRepository interface {
	// Save inserts or updates an execution snapshot. Drivers enforce
	// forward-only status transitions: a terminal record is never overwritten,
	// and a pending/running snapshot does not clobber a concurrently written
	// cancel_requested status (the stored status and abort metadata survive).
	// Terminal snapshots always win; a cancellation that lands during the
	// final step loses the race by design.
	Save(ctx context.Context, execution *models.Execution) error
	GetByID(ctx context.Context, id string) (*models.Execution, error)
	Status(ctx context.Context, id string) (models.ExecutionStatus, error)

	// RequestCancellation atomically moves a pending or running execution to
	// cancel_requested, recording who asked and why. It returns false when the
	// execution exists but is already terminal.
	RequestCancellation(ctx context.Context, id, requestedBy, reason string) (bool, error)

	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.Execution, error)
}

// SubscriptionRepository stores trigger subscriptions created at activation.
type SubscriptionRepository interface {
	Save(ctx context.Context, subscription *models.TriggerSubscription) error
	GetByID(ctx context.Context, id string) (*models.TriggerSubscription, error)
	GetByPath(ctx context.Context, path string) (*models.TriggerSubscription, error)
	List(ctx context.Context) ([]*models.TriggerSubscription, error)
	ListByWorkflow(ctx context.Context, workflowID string) ([]*models.TriggerSubscription, error)
	Delete(ctx context.Context, id string) error
	DeleteByWorkflow(ctx context.Context, workflowID string) error

	// UpdateCursor advances a poll subscription's cursor and increments its
	// execution count. Only the poller calls this.
	UpdateCursor(ctx context.Context, id, cursor string, lastPayload map[string]any) error
}
