// Package notify carries change events from the storage side to whoever
// renders or mirrors the data. The query layer stays pull-based; subscribers
// are expected to re-run their queries when an event for the same collection
// arrives.
package notify

import (
	"context"
	"time"

	"chitieu/internal/core"
)

const (
	ActionCreated  = "created"
	ActionUpdated  = "updated"
	ActionDeleted  = "deleted"
	ActionCleared  = "cleared"
	ActionImported = "imported"
)

// Event describes one mutation of a collection. ID is empty for collection
// wide actions (cleared, imported).
type Event struct {
	Kind      core.Kind `json:"kind"`
	Action    string    `json:"action"`
	ID        string    `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewEvent stamps an event with the current time.
func NewEvent(kind core.Kind, action, id string) Event {
	return Event{Kind: kind, Action: action, ID: id, Timestamp: time.Now()}
}

// Notifier publishes change events. Implementations must be safe for
// concurrent use.
type Notifier interface {
	Publish(ctx context.Context, ev Event) error
}

// Multi fans an event out to several notifiers. The first error wins but
// every notifier still gets the event.
type Multi []Notifier

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var firstErr error
	for _, n := range m {
		if err := n.Publish(ctx, ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
