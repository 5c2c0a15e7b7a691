// Package worker provides the bounded goroutine pool backing parallel
// dispatch. The pool has a fixed worker count and a fixed-capacity task
// queue: submission beyond capacity blocks the submitter rather than
// growing the pool or dropping work.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrStopped is returned by Submit after the pool has been stopped.
var ErrStopped = errors.New("worker: pool stopped")

// Task is a unit of work executed by a pool worker.
type Task func()

// Pool manages a fixed set of worker goroutines draining a bounded task
// queue.
type Pool struct {
	tasks  chan Task
	size   int
	logger *slog.Logger

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolSize sets the number of worker goroutines.
func WithPoolSize(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.size = n
		}
	}
}

// WithQueueCapacity sets the task queue capacity. Submitters block once
// the queue is full.
func WithQueueCapacity(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.tasks = make(chan Task, n)
		}
	}
}

// NewPool creates a pool. Defaults: 4 workers, queue capacity 64.
func NewPool(logger *slog.Logger, opts ...PoolOption) *Pool {
	p := &Pool{
		size:   4,
		tasks:  make(chan Task, 64),
		logger: logger,
		stopCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Size returns the configured worker count.
func (p *Pool) Size() int { return p.size }

// Start launches the worker goroutines. It returns immediately and is
// idempotent.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.running {
		return nil
	}
	p.running = true

	p.logger.Debug("worker pool starting", slog.Int("workers", p.size))

	for range p.size {
		p.wg.Add(1)
		go p.drainLoop()
	}
	return nil
}

// Stop signals all workers to stop and waits for them to finish their
// current and queued tasks, or until the context deadline elapses.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Debug("worker pool stopped gracefully")
		return nil
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out")
		return ctx.Err()
	}
}

// Submit enqueues a task, blocking while the queue is full. It returns
// ctx.Err() if the context is cancelled while blocked and ErrStopped if
// the pool has been stopped.
func (p *Pool) Submit(ctx context.Context, t Task) error {
	select {
	case <-p.stopCh:
		return ErrStopped
	default:
	}

	select {
	case p.tasks <- t:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.stopCh:
		return ErrStopped
	}
}

// drainLoop is run by each worker goroutine.
func (p *Pool) drainLoop() {
	defer p.wg.Done()

	for {
		select {
		case t := <-p.tasks:
			t()
		case <-p.stopCh:
			// Finish whatever is already queued before exiting.
			for {
				select {
				case t := <-p.tasks:
					t()
				default:
					return
				}
			}
		}
	}
}
