// Package pubsub provides a generic publish/subscribe event system.
//
// It carries lifecycle notifications (observers added, pruned, notified) and
// log entries to listeners such as the watch view. Delivery is best effort:
// slow subscribers miss events rather than stall publishers.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	CreatedEvent  EventType = "created"
	UpdatedEvent  EventType = "updated"
	DeletedEvent  EventType = "deleted"
	PrunedEvent   EventType = "pruned"   // collected entries were removed
	NotifiedEvent EventType = "notified" // a notification pass finished
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}

// Publisher allows publishing events with a typed payload.
type Publisher[T any] interface {
	Publish(eventType EventType, payload T)
}
