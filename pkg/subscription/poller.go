package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/weftflow/weft/pkg/models"
	"github.com/weftflow/weft/pkg/persistence"
	"github.com/weftflow/weft/pkg/protocol"
	"github.com/weftflow/weft/pkg/workflow"
)

const refreshSchedule = "@every 1m"

// Poller runs poll trigger subscriptions on their cron schedules. Each tick
// asks the subscription's source for items newer than the stored cursor,
// feeds every item through idempotent admission, and advances the cursor.
type Poller struct {
	persistence persistence.Persistence
	executor    *workflow.Executor
	scheduler   *cron.Cron
	logger      *slog.Logger

	mu      sync.Mutex
	sources map[string]protocol.PollSource
	entries map[string]cron.EntryID
}

func NewPoller(store persistence.Persistence, executor *workflow.Executor, logger *slog.Logger) *Poller {
	return &Poller{
		persistence: store,
		executor:    executor,
		scheduler:   cron.New(),
		logger:      logger.With("module", "poller"),
		sources:     make(map[string]protocol.PollSource),
		entries:     make(map[string]cron.EntryID),
	}
}

// RegisterSource makes a poll source available to subscriptions by name.
func (p *Poller) RegisterSource(source protocol.PollSource) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.sources[source.Name()] = source
}

// Start schedules every current poll subscription and keeps the schedule in
// sync as workflows activate and deactivate.
func (p *Poller) Start(ctx context.Context) error {
	if err := p.Refresh(ctx); err != nil {
		return err
	}

	_, err := p.scheduler.AddFunc(refreshSchedule, func() {
		if err := p.Refresh(context.Background()); err != nil {
			p.logger.Error("Failed to refresh poll schedule", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule subscription refresh: %w", err)
	}

	p.scheduler.Start()
	p.logger.InfoContext(ctx, "Poller started")

	return nil
}

// Stop halts scheduling and waits for in-flight ticks to finish or the given
// context to expire.
func (p *Poller) Stop(ctx context.Context) error {
	done := p.scheduler.Stop()

	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Refresh reconciles the cron entries against the stored subscriptions,
// scheduling new poll subscriptions and dropping removed ones.
func (p *Poller) Refresh(ctx context.Context) error {
	subscriptions, err := p.persistence.SubscriptionRepository().List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list subscriptions: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	current := make(map[string]bool, len(subscriptions))

	for _, sub := range subscriptions {
		if sub.TriggerType != models.NodeTypeTriggerPoll {
			continue
		}

		current[sub.ID] = true

		if _, scheduled := p.entries[sub.ID]; scheduled {
			continue
		}

		subscriptionID := sub.ID

		entryID, err := p.scheduler.AddFunc(sub.Schedule, func() {
			p.PollOnce(context.Background(), subscriptionID)
		})
		if err != nil {
			p.logger.Error("Failed to schedule poll subscription",
				"subscription_id", sub.ID, "schedule", sub.Schedule, "error", err)

			continue
		}

		p.entries[sub.ID] = entryID
		p.logger.InfoContext(ctx, "Poll subscription scheduled",
			"subscription_id", sub.ID, "workflow_id", sub.WorkflowID, "schedule", sub.Schedule)
	}

	for id, entryID := range p.entries {
		if !current[id] {
			p.scheduler.Remove(entryID)
			delete(p.entries, id)
			p.logger.InfoContext(ctx, "Poll subscription unscheduled", "subscription_id", id)
		}
	}

	return nil
}

// PollOnce runs one poll tick for the given subscription: fetch items newer
// than the stored cursor, admit each one, advance the cursor.
func (p *Poller) PollOnce(ctx context.Context, subscriptionID string) {
	sub, err := p.persistence.SubscriptionRepository().GetByID(ctx, subscriptionID)
	if err != nil {
		p.logger.Error("Failed to load poll subscription", "subscription_id", subscriptionID, "error", err)

		return
	}

	wf, err := p.persistence.WorkflowRepository().GetByID(ctx, sub.WorkflowID)
	if err != nil {
		p.logger.Error("Failed to load workflow for poll tick",
			"subscription_id", sub.ID, "workflow_id", sub.WorkflowID, "error", err)

		return
	}

	if wf.Status != models.WorkflowStatusActive {
		return
	}

	node := wf.Definition.NodeByID(sub.NodeID)
	if node == nil {
		p.logger.Error("Poll subscription references missing node",
			"subscription_id", sub.ID, "node_id", sub.NodeID)

		return
	}

	sourceName, _ := node.Config["source"].(string)

	p.mu.Lock()
	source, ok := p.sources[sourceName]
	p.mu.Unlock()

	if !ok {
		p.logger.Error("Poll source not registered",
			"subscription_id", sub.ID, "source", sourceName)

		return
	}

	items, err := source.Poll(ctx, node.Config, sub.Cursor)
	if err != nil {
		p.logger.Error("Poll tick failed",
			"subscription_id", sub.ID, "source", sourceName, "error", err)

		return
	}

	for _, item := range items {
		result, err := p.executor.ExecuteIdempotent(ctx, wf.ID, sub.NodeID, item.EventID, item.Payload)
		if result == nil {
			// Admission itself failed, leave the cursor so the item is retried.
			p.logger.Error("Failed to admit polled item",
				"subscription_id", sub.ID, "event_id", item.EventID, "error", err)

			return
		}

		if err != nil {
			p.logger.Error("Polled execution failed",
				"subscription_id", sub.ID, "event_id", item.EventID, "error", err)
		} else if result.IsDuplicate {
			p.logger.DebugContext(ctx, "Polled item already admitted",
				"subscription_id", sub.ID, "event_id", item.EventID, "execution_id", result.ExecutionID)
		}

		// The cursor advances once the item is admitted, regardless of how the
		// execution itself ended, so a failed run is not redelivered.
		if err := p.persistence.SubscriptionRepository().UpdateCursor(ctx, sub.ID, item.Cursor, item.Payload); err != nil {
			p.logger.Error("Failed to advance poll cursor",
				"subscription_id", sub.ID, "cursor", item.Cursor, "error", err)

			return
		}
	}
}
