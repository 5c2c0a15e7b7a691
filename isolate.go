package runecaller

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/dirtywork-solutions/runecaller/registry"
	"github.com/dirtywork-solutions/runecaller/signal"
)

// invoke executes a single receiver with full failure isolation: a
// returned error or a panic becomes a *ReceiverError outcome in the
// result, never a propagated failure. The second return value is false
// when the entry's weakly-held target died between snapshot and
// invocation; such entries are silently omitted from the batch.
func (d *Dispatcher) invoke(ctx context.Context, e registry.Entry, msg signal.Message) (res Result, ok bool) {
	res.Connection = e.Connection()

	fn := e.Receiver()
	if fn == nil {
		return Result{}, false
	}

	defer func() {
		if r := recover(); r != nil {
			ok = true
			res.Value = nil
			res.Err = &ReceiverError{
				Signal:     msg.Signal,
				Sender:     msg.Sender,
				Connection: e.Connection(),
				Err:        fmt.Errorf("panic: %v", r),
			}
			d.logger.Error("receiver panicked",
				slog.String("signal", msg.Signal.String()),
				slog.String("sender", msg.Sender.String()),
				slog.String("connection", e.Connection().String()),
				slog.Any("panic", r),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	v, err := fn(ctx, msg)
	if err != nil {
		res.Err = &ReceiverError{
			Signal:     msg.Signal,
			Sender:     msg.Sender,
			Connection: e.Connection(),
			Err:        err,
		}
		d.logger.Error("receiver failed",
			slog.String("signal", msg.Signal.String()),
			slog.String("sender", msg.Sender.String()),
			slog.String("connection", e.Connection().String()),
			slog.String("error", err.Error()),
		)
		return res, true
	}

	res.Value = v
	return res, true
}
