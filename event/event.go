// Package event provides the named-event layer above the core dispatch
// engine: events carry a payload, metadata, and a correlation ID, and a
// Bus delivers them to priority-ordered listeners with prefix wildcard
// patterns, per-listener predicates, lifecycle hooks, and optional rate
// limiting.
package event

import (
	"sync/atomic"
	"time"

	"github.com/dirtywork-solutions/runecaller/id"
)

// Event is a named occurrence published to a Bus. The ID doubles as the
// correlation ID for tracing an event across logs and hooks.
type Event struct {
	ID        id.EventID
	Name      string
	Payload   map[string]any
	Metadata  map[string]any
	CreatedAt time.Time

	cancelled atomic.Bool
}

// New creates an event with a fresh ID and creation timestamp.
func New(name string, payload map[string]any) *Event {
	return &Event{
		ID:        id.NewEventID(),
		Name:      name,
		Payload:   payload,
		Metadata:  make(map[string]any),
		CreatedAt: time.Now().UTC(),
	}
}

// Cancel stops propagation to the remaining listeners of the current
// dispatch. Listeners that already ran are unaffected.
func (e *Event) Cancel() { e.cancelled.Store(true) }

// Cancelled reports whether a listener cancelled further propagation.
func (e *Event) Cancelled() bool { return e.cancelled.Load() }
