// Package hook provides priority-ordered lifecycle hook registries.
//
// A Registry fans one value out to every enabled handler in priority
// order (lower runs first; registration order breaks ties). Handler
// failures are logged and swallowed so hooks never break the operation
// that fired them.
package hook

import (
	"context"
	"log/slog"
	"sort"
	"sync"
)

// ID identifies a registered handler for unregistration and toggling.
type ID uint64

// Handler reacts to a lifecycle value of type T.
type Handler[T any] func(ctx context.Context, v T) error

// DefaultPriority is used when no explicit priority is given.
const DefaultPriority = 10

type settings struct {
	priority int
	disabled bool
}

// Option configures a handler at registration time.
type Option func(*settings)

// WithPriority sets the handler's priority. Lower values run first.
func WithPriority(p int) Option {
	return func(s *settings) { s.priority = p }
}

// Disabled registers the handler in a disabled state; enable it later
// with SetEnabled.
func Disabled() Option {
	return func(s *settings) { s.disabled = true }
}

type entry[T any] struct {
	id       ID
	priority int
	enabled  bool
	handler  Handler[T]
}

// Registry holds handlers for one hook point. The zero value is not
// usable; construct with NewRegistry. Safe for concurrent use.
type Registry[T any] struct {
	mu      sync.Mutex
	entries []entry[T]
	nextID  ID
	logger  *slog.Logger
}

// NewRegistry creates a hook registry logging handler failures to the
// given logger.
func NewRegistry[T any](logger *slog.Logger) *Registry[T] {
	return &Registry[T]{logger: logger}
}

// Register adds a handler and returns its ID. Handlers with equal
// priority run in registration order.
func (r *Registry[T]) Register(h Handler[T], opts ...Option) ID {
	s := settings{priority: DefaultPriority}
	for _, opt := range opts {
		opt(&s)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	r.entries = append(r.entries, entry[T]{
		id:       r.nextID,
		priority: s.priority,
		enabled:  !s.disabled,
		handler:  h,
	})
	// Stable keeps registration order within a priority level.
	sort.SliceStable(r.entries, func(i, j int) bool {
		return r.entries[i].priority < r.entries[j].priority
	})
	return r.nextID
}

// Unregister removes a handler. Unknown IDs are a no-op.
func (r *Registry[T]) Unregister(id ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, e := range r.entries {
		if e.id == id {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return
		}
	}
}

// SetEnabled toggles a handler without removing it. Unknown IDs are a
// no-op.
func (r *Registry[T]) SetEnabled(id ID, enabled bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.entries {
		if r.entries[i].id == id {
			r.entries[i].enabled = enabled
			return
		}
	}
}

// Len returns the number of registered handlers, enabled or not.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Invoke runs every enabled handler in priority order. Failures and
// panics are logged and do not stop the remaining handlers.
func (r *Registry[T]) Invoke(ctx context.Context, v T) {
	r.mu.Lock()
	snapshot := make([]entry[T], len(r.entries))
	copy(snapshot, r.entries)
	r.mu.Unlock()

	for _, e := range snapshot {
		if !e.enabled {
			continue
		}
		r.invokeOne(ctx, e, v)
	}
}

func (r *Registry[T]) invokeOne(ctx context.Context, e entry[T], v T) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("hook panicked",
				slog.Uint64("hook_id", uint64(e.id)),
				slog.Any("panic", rec),
			)
		}
	}()
	if err := e.handler(ctx, v); err != nil {
		r.logger.Error("hook failed",
			slog.Uint64("hook_id", uint64(e.id)),
			slog.String("error", err.Error()),
		)
	}
}
