package runecaller

import (
	"context"
	"log/slog"
	"sync"

	"github.com/dirtywork-solutions/runecaller/id"
	"github.com/dirtywork-solutions/runecaller/middleware"
	"github.com/dirtywork-solutions/runecaller/registry"
	"github.com/dirtywork-solutions/runecaller/signal"
	"github.com/dirtywork-solutions/runecaller/worker"
)

// Dispatcher is the central coordinator: it owns the receiver registry,
// the middleware pipeline, and the worker pool backing parallel
// dispatch. Create one with New and functional options, or use the
// process-default instance via Default.
//
// All methods are safe for concurrent use. Receivers may call Connect
// and Disconnect reentrantly during their own execution; each dispatch
// works against an immutable snapshot taken before the first
// invocation.
type Dispatcher struct {
	config   Config
	logger   *slog.Logger
	registry *registry.Registry
	pipeline *middleware.Pipeline
	pool     *worker.Pool
	obs      *observer

	mu sync.Mutex
	// pool is started lazily on first parallel dispatch.
	started bool
	closed  bool
}

// New creates a Dispatcher with the given options.
func New(opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		config:   DefaultConfig(),
		logger:   slog.Default(),
		pipeline: &middleware.Pipeline{},
		obs:      newObserver(),
	}
	for _, opt := range opts {
		if err := opt(d); err != nil {
			return nil, err
		}
	}
	if d.registry == nil {
		d.registry = registry.New()
	}
	d.pool = worker.NewPool(d.logger,
		worker.WithPoolSize(d.config.Workers),
		worker.WithQueueCapacity(d.config.QueueCapacity),
	)
	return d, nil
}

// Logger returns the dispatcher's logger.
func (d *Dispatcher) Logger() *slog.Logger { return d.logger }

// Registry returns the dispatcher's receiver registry.
func (d *Dispatcher) Registry() *registry.Registry { return d.registry }

// Config returns a copy of the dispatcher's configuration.
func (d *Dispatcher) Config() Config { return d.config }

// Connect registers a receiver function for (sig, snd) with a strong
// hold and returns its connection ID. Connecting the same function to
// the same pair twice is a no-op returning the existing ID. Use
// ConnectRef with registry.Weak for receivers bound to an independently
// owned object.
func (d *Dispatcher) Connect(fn registry.Receiver, sig signal.Signal, snd signal.Sender) (id.ConnectionID, error) {
	return d.registry.Connect(registry.Strong(fn), sig, snd)
}

// ConnectRef registers a receiver through an explicit reference mode.
func (d *Dispatcher) ConnectRef(ref registry.Ref, sig signal.Signal, snd signal.Sender) (id.ConnectionID, error) {
	return d.registry.Connect(ref, sig, snd)
}

// Disconnect removes the connection with the given ID. Returns
// ErrNotFound when no such connection exists.
func (d *Dispatcher) Disconnect(conn id.ConnectionID) error {
	return d.registry.Disconnect(conn)
}

// DisconnectReceiver removes the connection registered for fn under
// (sig, snd).
func (d *Dispatcher) DisconnectReceiver(fn registry.Receiver, sig signal.Signal, snd signal.Sender) error {
	return d.registry.DisconnectReceiver(registry.Strong(fn), sig, snd)
}

// Use appends a middleware stage and returns its ID for removal.
func (d *Dispatcher) Use(s middleware.Stage) middleware.StageID {
	return d.pipeline.Use(s)
}

// RemoveMiddleware removes a stage by ID. Unknown IDs are a no-op.
func (d *Dispatcher) RemoveMiddleware(stageID middleware.StageID) {
	d.pipeline.Remove(stageID)
}

// Receivers returns the connection IDs that would be delivered to for
// (snd, sig), in precedence order.
func (d *Dispatcher) Receivers(snd signal.Sender, sig signal.Signal) ([]id.ConnectionID, error) {
	return d.registry.Receivers(snd, sig)
}

// AllReceivers is Receivers with wildcard defaults for zero values.
func (d *Dispatcher) AllReceivers(snd signal.Sender, sig signal.Signal) ([]id.ConnectionID, error) {
	return d.registry.AllReceivers(snd, sig)
}

// Close stops the worker pool and marks the dispatcher closed.
// Subsequent dispatch calls return ErrClosed. Registry contents are
// left intact; call Registry().Clear() for a full teardown.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	started := d.started
	d.mu.Unlock()

	if !started {
		return nil
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && d.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.ShutdownTimeout)
		defer cancel()
	}
	return d.pool.Stop(ctx)
}

// ensurePool starts the worker pool on first parallel dispatch.
func (d *Dispatcher) ensurePool(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if d.started {
		return nil
	}
	if err := d.pool.Start(ctx); err != nil {
		return err
	}
	d.started = true
	return nil
}

// isClosed reports whether Close has been called.
func (d *Dispatcher) isClosed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}
