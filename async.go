package runecaller

import (
	"context"

	"github.com/dirtywork-solutions/runecaller/registry"
	"github.com/dirtywork-solutions/runecaller/signal"
)

// queuedItem carries a receiver together with its original registration
// index so results can be re-ordered regardless of completion order.
type queuedItem struct {
	idx   int
	entry registry.Entry
}

// AsyncSend delivers sig through a single cooperative worker: each
// matched receiver is queued in registration order and one goroutine
// drains the queue, checking for cancellation before starting each
// item. The call returns once every queued item has completed; the
// result list is ordered by original registration index.
//
// Receivers skipped because ctx was cancelled before they started are
// reported with a *ReceiverError wrapping the context error.
func (d *Dispatcher) AsyncSend(ctx context.Context, sig signal.Signal, snd signal.Sender, vals signal.Values) (*Batch, error) {
	ctx, st, err := d.begin(ctx, modeQueued, sig, snd, vals)
	if err != nil {
		return nil, err
	}
	if st.aborted {
		return st.batch, nil
	}

	queue := make(chan queuedItem, len(st.live))
	for i, e := range st.live {
		queue <- queuedItem{idx: i, entry: e}
	}
	close(queue)

	results := make([]Result, len(st.live))
	omitted := make([]bool, len(st.live))
	done := make(chan struct{})

	go func() {
		defer close(done)
		for item := range queue {
			// Cooperative cancellation: checked before each item
			// begins, never mid-receiver.
			if ctxErr := ctx.Err(); ctxErr != nil {
				results[item.idx] = Result{
					Connection: item.entry.Connection(),
					Err: &ReceiverError{
						Signal:     st.msg.Signal,
						Sender:     st.msg.Sender,
						Connection: item.entry.Connection(),
						Err:        ctxErr,
					},
				}
				continue
			}
			r, ok := d.invoke(ctx, item.entry, st.msg)
			if !ok {
				omitted[item.idx] = true
				continue
			}
			results[item.idx] = r
		}
	}()
	<-done

	for i, r := range results {
		if omitted[i] {
			continue
		}
		st.batch.Results = append(st.batch.Results, r)
	}

	st.finish(st.batch)
	return st.batch, nil
}
