package runecaller

import (
	"log/slog"
	"time"

	"github.com/dirtywork-solutions/runecaller/registry"
)

// Option configures a Dispatcher.
type Option func(*Dispatcher) error

// WithLogger sets the structured logger for the dispatcher.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) error {
		d.logger = l
		return nil
	}
}

// WithWorkers sets the worker count for the parallel dispatch pool.
func WithWorkers(n int) Option {
	return func(d *Dispatcher) error {
		d.config.Workers = n
		return nil
	}
}

// WithQueueCapacity sets the parallel pool's task queue capacity.
func WithQueueCapacity(n int) Option {
	return func(d *Dispatcher) error {
		d.config.QueueCapacity = n
		return nil
	}
}

// WithDispatchTimeout sets the per-call deadline for ThreadedSend.
func WithDispatchTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) error {
		d.config.DispatchTimeout = timeout
		return nil
	}
}

// WithShutdownTimeout sets the maximum time Close waits for in-flight
// work.
func WithShutdownTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) error {
		d.config.ShutdownTimeout = timeout
		return nil
	}
}

// WithRegistry sets a pre-populated receiver registry. Useful for
// sharing one registry between dispatchers in tests.
func WithRegistry(r *registry.Registry) Option {
	return func(d *Dispatcher) error {
		d.registry = r
		return nil
	}
}
