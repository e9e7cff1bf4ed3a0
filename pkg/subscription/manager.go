// Package subscription manages the trigger subscriptions that connect active
// workflows to their external event deliveries.
package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/weftflow/weft/pkg/models"
	"github.com/weftflow/weft/pkg/persistence"
	"github.com/weftflow/weft/pkg/registry"
	"github.com/weftflow/weft/pkg/workflow"
)

// ErrPathTaken is returned when activation would register a webhook path that
// another workflow already owns.
var ErrPathTaken = errors.New("webhook path already registered")

// ErrEmptyDefinition is returned when activation is requested for a workflow
// without nodes.
var ErrEmptyDefinition = errors.New("cannot activate workflow with empty definition")

const defaultPollSchedule = "@every 1m"

// Manager drives workflow activation and deactivation. Activation validates
// the definition and registers one subscription per trigger node: a webhook
// path for push triggers, a schedule and cursor for poll triggers.
// Deactivation removes them so no further events reach the workflow.
type Manager struct {
	persistence persistence.Persistence
	registry    *registry.Registry
	logger      *slog.Logger
}

func NewManager(store persistence.Persistence, reg *registry.Registry, logger *slog.Logger) *Manager {
	return &Manager{
		persistence: store,
		registry:    reg,
		logger:      logger.With("module", "subscription"),
	}
}

// Activate validates the workflow's definition and, if it passes, registers
// its trigger subscriptions and moves the workflow to active. Activating an
// already active workflow is a no-op.
func (m *Manager) Activate(ctx context.Context, workflowID string) (*models.Workflow, error) {
	wf, err := m.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if wf.Status == models.WorkflowStatusActive {
		return wf, nil
	}

	if wf.Definition.IsEmpty() {
		return nil, ErrEmptyDefinition
	}

	if err := workflow.ValidateDefinition(wf.Definition, m.registry); err != nil {
		return nil, err
	}

	subscriptions, err := m.buildSubscriptions(ctx, wf)
	if err != nil {
		return nil, err
	}

	for _, sub := range subscriptions {
		if err := m.persistence.SubscriptionRepository().Save(ctx, sub); err != nil {
			// Roll back whatever was registered so a failed activation leaves
			// no live subscriptions behind.
			_ = m.persistence.SubscriptionRepository().DeleteByWorkflow(ctx, wf.ID)

			return nil, fmt.Errorf("failed to register subscription for node %s: %w", sub.NodeID, err)
		}
	}

	now := time.Now().UTC()
	wf.Status = models.WorkflowStatusActive
	wf.ActivatedAt = &now
	wf.UpdatedAt = now

	if err := m.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		_ = m.persistence.SubscriptionRepository().DeleteByWorkflow(ctx, wf.ID)

		return nil, fmt.Errorf("failed to persist activation: %w", err)
	}

	m.logger.InfoContext(ctx, "Workflow activated",
		"workflow_id", wf.ID, "subscriptions", len(subscriptions))

	return wf, nil
}

// Deactivate removes the workflow's trigger subscriptions and moves it to
// paused. Running executions are unaffected.
func (m *Manager) Deactivate(ctx context.Context, workflowID string) (*models.Workflow, error) {
	wf, err := m.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if wf.Status != models.WorkflowStatusActive {
		return wf, nil
	}

	if err := m.persistence.SubscriptionRepository().DeleteByWorkflow(ctx, workflowID); err != nil {
		return nil, fmt.Errorf("failed to remove subscriptions: %w", err)
	}

	wf.Status = models.WorkflowStatusPaused
	wf.UpdatedAt = time.Now().UTC()

	if err := m.persistence.WorkflowRepository().Save(ctx, wf); err != nil {
		return nil, fmt.Errorf("failed to persist deactivation: %w", err)
	}

	m.logger.InfoContext(ctx, "Workflow deactivated", "workflow_id", wf.ID)

	return wf, nil
}

func (m *Manager) buildSubscriptions(ctx context.Context, wf *models.Workflow) ([]*models.TriggerSubscription, error) {
	subscriptions := make([]*models.TriggerSubscription, 0)
	now := time.Now().UTC()

	for _, node := range wf.Definition.NodesByType(models.NodeTypeTriggerWebhook) {
		path, err := m.webhookPath(ctx, wf, node)
		if err != nil {
			return nil, err
		}

		subscriptions = append(subscriptions, &models.TriggerSubscription{
			ID:          uuid.NewString(),
			WorkflowID:  wf.ID,
			NodeID:      node.ID,
			TriggerType: models.NodeTypeTriggerWebhook,
			Path:        path,
			CreatedAt:   now,
		})
	}

	for _, node := range wf.Definition.NodesByType(models.NodeTypeTriggerPoll) {
		schedule := defaultPollSchedule
		if s, ok := node.Config["schedule"].(string); ok && s != "" {
			schedule = s
		}

		subscriptions = append(subscriptions, &models.TriggerSubscription{
			ID:          uuid.NewString(),
			WorkflowID:  wf.ID,
			NodeID:      node.ID,
			TriggerType: models.NodeTypeTriggerPoll,
			Schedule:    schedule,
			CreatedAt:   now,
		})
	}

	return subscriptions, nil
}

// webhookPath resolves the path a webhook trigger listens on. An explicit
// config path must not collide with another workflow's subscription; without
// one a random path is generated.
func (m *Manager) webhookPath(ctx context.Context, wf *models.Workflow, node *models.GraphNode) (string, error) {
	path, _ := node.Config["path"].(string)
	if path == "" {
		return uuid.NewString(), nil
	}

	existing, err := m.persistence.SubscriptionRepository().GetByPath(ctx, path)
	if err != nil && !persistence.IsSubscriptionNotFound(err) {
		return "", fmt.Errorf("failed to check webhook path %q: %w", path, err)
	}

	if existing != nil && existing.WorkflowID != wf.ID {
		return "", fmt.Errorf("%w: %s", ErrPathTaken, path)
	}

	return path, nil
}
