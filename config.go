package runecaller

import "time"

// Config holds configuration for the Dispatcher.
type Config struct {
	// Workers is the number of goroutines in the parallel dispatch
	// pool used by ThreadedSend.
	Workers int

	// QueueCapacity is the pool's task queue capacity. ThreadedSend
	// blocks on submission once the queue is full.
	QueueCapacity int

	// DispatchTimeout is the optional overall deadline for a single
	// ThreadedSend call. Receivers still running when it elapses are
	// not terminated but are reported with a timeout outcome. Zero
	// means no deadline.
	DispatchTimeout time.Duration

	// ShutdownTimeout is the maximum time Close waits for in-flight
	// work to drain.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:         4,
		QueueCapacity:   64,
		DispatchTimeout: 0,
		ShutdownTimeout: 30 * time.Second,
	}
}
