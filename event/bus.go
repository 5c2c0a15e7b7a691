package event

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dirtywork-solutions/runecaller/hook"
)

// ErrRateLimited is returned by Dispatch when the bus-wide rate limiter
// denies the event. The event is dropped, not queued.
var ErrRateLimited = errors.New("event: rate limit exceeded")

// Listener reacts to a dispatched event. Returning an error reports the
// failure to the bus's error hooks; it never stops sibling listeners.
type Listener func(ctx context.Context, e *Event) error

// ListenerID identifies a subscription for unsubscribing.
type ListenerID uint64

// Completion is passed to after-dispatch hooks.
type Completion struct {
	Event   *Event
	Elapsed time.Duration
}

// Failure is passed to error hooks when a listener fails.
type Failure struct {
	Event    *Event
	Listener ListenerID
	Err      error
}

type listenerEntry struct {
	id       ListenerID
	pattern  string
	prefix   string // set for "name.*" patterns
	wildcard bool
	priority int
	pred     func(*Event) bool
	fn       Listener
}

// Bus delivers events to subscribed listeners. Exact names and
// "prefix.*" wildcard patterns are supported; listeners run in priority
// order (lower first, subscription order breaking ties).
type Bus struct {
	mu        sync.RWMutex
	exact     map[string][]*listenerEntry
	wildcards []*listenerEntry
	nextID    ListenerID

	logger        *slog.Logger
	limiter       *rate.Limiter
	maxConcurrent int

	before  *hook.Registry[*Event]
	after   *hook.Registry[Completion]
	onError *hook.Registry[Failure]
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the bus logger.
func WithLogger(l *slog.Logger) BusOption {
	return func(b *Bus) { b.logger = l }
}

// WithRateLimit installs a bus-wide dispatch rate limiter.
func WithRateLimit(limit rate.Limit, burst int) BusOption {
	return func(b *Bus) { b.limiter = rate.NewLimiter(limit, burst) }
}

// WithMaxConcurrent bounds listener parallelism in DispatchConcurrent.
func WithMaxConcurrent(n int) BusOption {
	return func(b *Bus) {
		if n > 0 {
			b.maxConcurrent = n
		}
	}
}

// NewBus creates an event bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		exact:         make(map[string][]*listenerEntry),
		logger:        slog.Default(),
		maxConcurrent: 4,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.before = hook.NewRegistry[*Event](b.logger)
	b.after = hook.NewRegistry[Completion](b.logger)
	b.onError = hook.NewRegistry[Failure](b.logger)
	return b
}

// Before returns the registry of hooks run before each dispatch.
func (b *Bus) Before() *hook.Registry[*Event] { return b.before }

// After returns the registry of hooks run after each dispatch.
func (b *Bus) After() *hook.Registry[Completion] { return b.after }

// OnError returns the registry of hooks run when a listener fails.
func (b *Bus) OnError() *hook.Registry[Failure] { return b.onError }

// SubscribeOption configures a subscription.
type SubscribeOption func(*listenerEntry)

// WithPriority sets the listener's priority. Lower values run first;
// the default is 10.
func WithPriority(p int) SubscribeOption {
	return func(e *listenerEntry) { e.priority = p }
}

// WithPredicate gates the listener on a per-event condition.
func WithPredicate(pred func(*Event) bool) SubscribeOption {
	return func(e *listenerEntry) { e.pred = pred }
}

// Subscribe registers a listener for an event pattern. A pattern ending
// in ".*" (or a bare "*") matches every event name with that prefix.
func (b *Bus) Subscribe(pattern string, fn Listener, opts ...SubscribeOption) ListenerID {
	entry := &listenerEntry{pattern: pattern, priority: 10, fn: fn}
	for _, opt := range opts {
		opt(entry)
	}
	if strings.HasSuffix(pattern, "*") {
		entry.wildcard = true
		entry.prefix = strings.TrimSuffix(pattern, "*")
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	entry.id = b.nextID
	if entry.wildcard {
		b.wildcards = append(b.wildcards, entry)
	} else {
		b.exact[pattern] = append(b.exact[pattern], entry)
	}
	return entry.id
}

// Unsubscribe removes a subscription. Unknown IDs are a no-op.
func (b *Bus) Unsubscribe(lid ListenerID) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for pattern, entries := range b.exact {
		for i, e := range entries {
			if e.id == lid {
				entries = append(entries[:i], entries[i+1:]...)
				if len(entries) == 0 {
					delete(b.exact, pattern)
				} else {
					b.exact[pattern] = entries
				}
				return
			}
		}
	}
	for i, e := range b.wildcards {
		if e.id == lid {
			b.wildcards = append(b.wildcards[:i], b.wildcards[i+1:]...)
			return
		}
	}
}

// match returns the listeners for an event, predicate-filtered and
// sorted by priority.
func (b *Bus) match(e *Event) []*listenerEntry {
	b.mu.RLock()
	var out []*listenerEntry
	for _, entry := range b.exact[e.Name] {
		if entry.pred == nil || entry.pred(e) {
			out = append(out, entry)
		}
	}
	for _, entry := range b.wildcards {
		if !strings.HasPrefix(e.Name, entry.prefix) {
			continue
		}
		if entry.pred == nil || entry.pred(e) {
			out = append(out, entry)
		}
	}
	b.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].priority != out[j].priority {
			return out[i].priority < out[j].priority
		}
		return out[i].id < out[j].id
	})
	return out
}

// Dispatch delivers the event synchronously: listeners run one at a
// time in priority order, stopping early if one cancels the event.
// Listener failures are isolated — reported to the error hooks, logged,
// and never propagated. The only error Dispatch itself returns is
// ErrRateLimited.
func (b *Bus) Dispatch(ctx context.Context, e *Event) error {
	listeners, finish, err := b.enter(ctx, e)
	if err != nil {
		return err
	}
	defer finish()

	for _, entry := range listeners {
		if e.Cancelled() {
			b.logger.Debug("event cancelled, stopping propagation",
				slog.String("event", e.Name),
				slog.String("event_id", e.ID.String()),
			)
			break
		}
		b.run(ctx, entry, e)
	}
	return nil
}

// DispatchConcurrent delivers the event with bounded listener
// parallelism. Priority ordering governs start order only; completion
// order is unspecified. Cancellation is checked before each listener
// starts.
func (b *Bus) DispatchConcurrent(ctx context.Context, e *Event) error {
	listeners, finish, err := b.enter(ctx, e)
	if err != nil {
		return err
	}
	defer finish()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.maxConcurrent)
	for _, entry := range listeners {
		if e.Cancelled() {
			break
		}
		g.Go(func() error {
			if e.Cancelled() {
				return nil
			}
			b.run(gctx, entry, e)
			return nil
		})
	}
	// Listener failures are swallowed by run, so Wait only reflects
	// context cancellation.
	return g.Wait()
}

// enter applies rate limiting, fires before-hooks, and prepares the
// after-hook callback shared by both dispatch modes.
func (b *Bus) enter(ctx context.Context, e *Event) ([]*listenerEntry, func(), error) {
	if b.limiter != nil && !b.limiter.Allow() {
		b.logger.Warn("event rate limit exceeded",
			slog.String("event", e.Name),
			slog.String("event_id", e.ID.String()),
		)
		return nil, nil, ErrRateLimited
	}

	b.before.Invoke(ctx, e)
	start := time.Now()
	listeners := b.match(e)

	finish := func() {
		b.after.Invoke(ctx, Completion{Event: e, Elapsed: time.Since(start)})
	}
	return listeners, finish, nil
}

// run executes one listener with failure isolation.
func (b *Bus) run(ctx context.Context, entry *listenerEntry, e *Event) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			b.report(ctx, entry, e, err)
		}
	}()
	if err := entry.fn(ctx, e); err != nil {
		b.report(ctx, entry, e, err)
	}
}

func (b *Bus) report(ctx context.Context, entry *listenerEntry, e *Event, err error) {
	b.logger.Error("event listener failed",
		slog.String("event", e.Name),
		slog.String("event_id", e.ID.String()),
		slog.String("pattern", entry.pattern),
		slog.String("error", err.Error()),
	)
	b.onError.Invoke(ctx, Failure{Event: e, Listener: entry.id, Err: err})
}
