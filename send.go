package runecaller

import (
	"context"
	"errors"
	"slices"

	"github.com/dirtywork-solutions/runecaller/id"
	"github.com/dirtywork-solutions/runecaller/middleware"
	"github.com/dirtywork-solutions/runecaller/registry"
	"github.com/dirtywork-solutions/runecaller/signal"
)

// Dispatch mode labels used in spans and metrics.
const (
	modeSync     = "sync"
	modeQueued   = "queued"
	modeParallel = "parallel"
)

// dispatchState carries one dispatch through the shared skeleton:
// middleware fold, registry lookup, live snapshot.
type dispatchState struct {
	msg     signal.Message
	live    []registry.Entry
	batch   *Batch
	finish  func(*Batch)
	aborted bool
}

// begin runs the strategy-independent front half of a dispatch. When a
// middleware stage aborts, the returned state is already finished and
// carries an empty batch with the abort reason.
func (d *Dispatcher) begin(ctx context.Context, mode string, sig signal.Signal, snd signal.Sender, vals signal.Values) (context.Context, *dispatchState, error) {
	if d.isClosed() {
		return ctx, nil, ErrClosed
	}
	if snd.IsZero() {
		snd = signal.Anonymous
	}
	if !sig.Valid() {
		return ctx, nil, ErrInvalidSignal
	}
	if !snd.Valid() {
		return ctx, nil, ErrInvalidSender
	}

	msg := signal.Message{Signal: sig, Sender: snd, Values: vals}
	ctx, finish := d.obs.start(ctx, mode, msg)

	out, err := d.pipeline.Run(ctx, msg)
	if err != nil {
		if errors.Is(err, middleware.ErrAborted) {
			batch := &Batch{
				ID:          id.NewDispatchID(),
				Signal:      msg.Signal,
				Sender:      msg.Sender,
				Results:     []Result{},
				Aborted:     true,
				AbortReason: middleware.Reason(err),
			}
			finish(batch)
			return ctx, &dispatchState{batch: batch, aborted: true}, nil
		}
		finish(nil)
		return ctx, nil, err
	}
	msg = out

	entries, err := d.registry.Lookup(msg.Signal, msg.Sender)
	if err != nil {
		finish(nil)
		return ctx, nil, err
	}

	// Immutable snapshot: registry mutations made by receivers during
	// this dispatch apply to the live registry, not to this batch.
	live := slices.Collect(d.registry.Live(entries))

	batch := &Batch{
		ID:     id.NewDispatchID(),
		Signal: msg.Signal,
		Sender: msg.Sender,
	}
	return ctx, &dispatchState{msg: msg, live: live, batch: batch, finish: finish}, nil
}

// Send delivers sig to every matching live receiver synchronously, one
// at a time in registration order, blocking until all complete. A zero
// snd is treated as signal.Anonymous.
func (d *Dispatcher) Send(ctx context.Context, sig signal.Signal, snd signal.Sender, vals signal.Values) (*Batch, error) {
	ctx, st, err := d.begin(ctx, modeSync, sig, snd, vals)
	if err != nil {
		return nil, err
	}
	if st.aborted {
		return st.batch, nil
	}

	for _, e := range st.live {
		if r, ok := d.invoke(ctx, e, st.msg); ok {
			st.batch.Results = append(st.batch.Results, r)
		}
	}

	st.finish(st.batch)
	return st.batch, nil
}
