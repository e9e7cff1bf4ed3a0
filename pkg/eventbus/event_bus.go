// Package eventbus provides publish/subscribe for execution lifecycle events.
package eventbus

import (
	"context"

	"github.com/weftflow/weft/pkg/events"
)

// EventHandler processes one received lifecycle event.
type EventHandler func(ctx context.Context, event any) error

// EventBus publishes lifecycle events and dispatches subscribed handlers.
type EventBus interface {
	Publish(ctx context.Context, key string, event events.Event) error
	Handle(eventType events.EventType, handler EventHandler)
	Subscribe(ctx context.Context) error
	GenerateID() string
	Close() error
}
