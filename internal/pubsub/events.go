// Package pubsub provides a generic publish/subscribe event system used to
// hand executions and log entries from background goroutines to the TUI.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// StartedEvent announces a newly installed execution.
	StartedEvent EventType = "started"
	// FinishedEvent announces an execution whose streams drained and whose child was reaped.
	FinishedEvent EventType = "finished"
	// FatalEvent carries an unrecoverable error; the program is about to exit.
	FatalEvent EventType = "fatal"
	// EntryEvent carries a log entry.
	EntryEvent EventType = "entry"
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
