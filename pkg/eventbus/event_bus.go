// Package eventbus defines the publish/subscribe surface the engine emits
// execution lifecycle events through.
package eventbus

import (
	"context"

	"github.com/flowdeck/flowdeck/pkg/events"
)

// Event is anything the engine can publish, keyed by its lifecycle type.
type Event interface {
	GetType() events.EventType
}

// EventPublisher emits events partitioned by key. The engine keys on the
// workflow id so all events of one execution land on the same partition.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

// EventSubscriber registers per-type handlers and then consumes until the
// context is cancelled.
type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler processes one delivered event. A returned error is logged by
// the bus; delivery is not retried.
type EventHandler func(ctx context.Context, event any) error

// EventBus combines both sides over a single transport.
type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
