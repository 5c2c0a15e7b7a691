package runecaller

import (
	"context"
	"errors"
	"sync"

	"github.com/dirtywork-solutions/runecaller/signal"
	"github.com/dirtywork-solutions/runecaller/worker"
)

// ThreadedSend delivers sig over the bounded worker pool: each matched
// receiver runs concurrently on a pool worker. Submission beyond the
// pool's queue capacity blocks the caller (backpressure) instead of
// growing the pool or dropping work.
//
// The call blocks until every submitted invocation completes or the
// per-call deadline elapses (the dispatcher's DispatchTimeout, or any
// earlier deadline already on ctx). Receivers still running at the
// deadline are not terminated; they are reported with a *ReceiverError
// wrapping context.DeadlineExceeded while the already-completed results
// are returned immediately. The result list is sorted back into
// registration order regardless of completion order.
func (d *Dispatcher) ThreadedSend(ctx context.Context, sig signal.Signal, snd signal.Sender, vals signal.Values) (*Batch, error) {
	if err := d.ensurePool(ctx); err != nil {
		return nil, err
	}

	ctx, st, err := d.begin(ctx, modeParallel, sig, snd, vals)
	if err != nil {
		return nil, err
	}
	if st.aborted {
		return st.batch, nil
	}

	if d.config.DispatchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.config.DispatchTimeout)
		defer cancel()
	}

	var (
		mu        sync.Mutex
		results   = make([]Result, len(st.live))
		completed = make([]bool, len(st.live))
		omitted   = make([]bool, len(st.live))
	)
	// Buffered to the batch size so late completions never block a
	// pool worker after this call has returned.
	doneCh := make(chan struct{}, len(st.live))

	submitted := 0
	for i, e := range st.live {
		task := func() {
			r, ok := d.invoke(ctx, e, st.msg)
			mu.Lock()
			if ok {
				results[i] = r
			} else {
				omitted[i] = true
			}
			completed[i] = true
			mu.Unlock()
			doneCh <- struct{}{}
		}
		if submitErr := d.pool.Submit(ctx, task); submitErr != nil {
			if errors.Is(submitErr, worker.ErrStopped) {
				return nil, ErrClosed
			}
			// Deadline elapsed while blocked on backpressure.
			mu.Lock()
			results[i] = Result{
				Connection: e.Connection(),
				Err: &ReceiverError{
					Signal:     st.msg.Signal,
					Sender:     st.msg.Sender,
					Connection: e.Connection(),
					Err:        submitErr,
				},
			}
			completed[i] = true
			mu.Unlock()
			continue
		}
		submitted++
	}

	deadlineHit := false
	for remaining := submitted; remaining > 0; remaining-- {
		select {
		case <-doneCh:
		case <-ctx.Done():
			deadlineHit = true
			remaining = 0
		}
	}

	mu.Lock()
	if deadlineHit {
		for i, e := range st.live {
			if completed[i] {
				continue
			}
			results[i] = Result{
				Connection: e.Connection(),
				Err: &ReceiverError{
					Signal:     st.msg.Signal,
					Sender:     st.msg.Sender,
					Connection: e.Connection(),
					Err:        ctx.Err(),
				},
			}
		}
	}
	for i, r := range results {
		if omitted[i] {
			continue
		}
		st.batch.Results = append(st.batch.Results, r)
	}
	mu.Unlock()

	st.finish(st.batch)
	return st.batch, nil
}
