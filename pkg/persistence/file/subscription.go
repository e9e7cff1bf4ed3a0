package file

import (
	"context"
	"sort"
	"sync"

	"github.com/weftflow/weft/pkg/models"
	"github.com/weftflow/weft/pkg/persistence"
)

// SubscriptionRepository handles trigger subscription records.
type SubscriptionRepository struct {
	store *store
	mu    sync.Mutex
}

func NewSubscriptionRepository(root string) *SubscriptionRepository {
	return &SubscriptionRepository{store: newStore(root, "subscriptions")}
}

func (r *SubscriptionRepository) Save(ctx context.Context, subscription *models.TriggerSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.store.write(subscription.ID, subscription)
}

func (r *SubscriptionRepository) GetByID(ctx context.Context, id string) (*models.TriggerSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.getLocked(id)
}

func (r *SubscriptionRepository) GetByPath(ctx context.Context, path string) (*models.TriggerSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subscriptions, err := r.listLocked()
	if err != nil {
		return nil, err
	}

	for _, subscription := range subscriptions {
		if subscription.Path == path {
			return subscription, nil
		}
	}

	return nil, persistence.ErrSubscriptionNotFound
}

func (r *SubscriptionRepository) List(ctx context.Context) ([]*models.TriggerSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.listLocked()
}

func (r *SubscriptionRepository) ListByWorkflow(ctx context.Context, workflowID string) ([]*models.TriggerSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subscriptions, err := r.listLocked()
	if err != nil {
		return nil, err
	}

	matched := make([]*models.TriggerSubscription, 0)

	for _, subscription := range subscriptions {
		if subscription.WorkflowID == workflowID {
			matched = append(matched, subscription)
		}
	}

	return matched, nil
}

func (r *SubscriptionRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	found, err := r.store.delete(id)
	if err != nil {
		return err
	}

	if !found {
		return persistence.ErrSubscriptionNotFound
	}

	return nil
}

func (r *SubscriptionRepository) DeleteByWorkflow(ctx context.Context, workflowID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	subscriptions, err := r.listLocked()
	if err != nil {
		return err
	}

	for _, subscription := range subscriptions {
		if subscription.WorkflowID != workflowID {
			continue
		}

		if _, err := r.store.delete(subscription.ID); err != nil {
			return err
		}
	}

	return nil
}

func (r *SubscriptionRepository) UpdateCursor(ctx context.Context, id, cursor string, lastPayload map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	subscription, err := r.getLocked(id)
	if err != nil {
		return err
	}

	subscription.Cursor = cursor
	subscription.LastPayload = lastPayload
	subscription.ExecutionCount++

	return r.store.write(id, subscription)
}

func (r *SubscriptionRepository) getLocked(id string) (*models.TriggerSubscription, error) {
	var subscription models.TriggerSubscription

	found, err := r.store.read(id, &subscription)
	if err != nil {
		return nil, err
	}

	if !found {
		return nil, persistence.ErrSubscriptionNotFound
	}

	return &subscription, nil
}

func (r *SubscriptionRepository) listLocked() ([]*models.TriggerSubscription, error) {
	ids, err := r.store.ids()
	if err != nil {
		return nil, err
	}

	subscriptions := make([]*models.TriggerSubscription, 0, len(ids))

	for _, id := range ids {
		subscription, err := r.getLocked(id)
		if err != nil {
			return nil, err
		}

		subscriptions = append(subscriptions, subscription)
	}

	sort.Slice(subscriptions, func(i, j int) bool {
		return subscriptions[i].CreatedAt.Before(subscriptions[j].CreatedAt)
	})

	return subscriptions, nil
}
