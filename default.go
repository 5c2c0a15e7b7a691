package runecaller

import (
	"context"
	"sync"

	"github.com/dirtywork-solutions/runecaller/id"
	"github.com/dirtywork-solutions/runecaller/middleware"
	"github.com/dirtywork-solutions/runecaller/registry"
	"github.com/dirtywork-solutions/runecaller/signal"
)

var (
	defaultOnce       sync.Once
	defaultDispatcher *Dispatcher
)

// Default returns the process-default Dispatcher, created on first use
// with DefaultConfig. It is an ordinary instance, not hidden module
// state: prefer constructing your own Dispatcher when you need
// non-default configuration or isolated registries.
func Default() *Dispatcher {
	defaultOnce.Do(func() {
		d, err := New()
		if err != nil {
			// New with no options cannot fail.
			panic(err)
		}
		defaultDispatcher = d
	})
	return defaultDispatcher
}

// Connect registers a receiver on the default dispatcher.
func Connect(fn registry.Receiver, sig signal.Signal, snd signal.Sender) (id.ConnectionID, error) {
	return Default().Connect(fn, sig, snd)
}

// ConnectRef registers a receiver reference on the default dispatcher.
func ConnectRef(ref registry.Ref, sig signal.Signal, snd signal.Sender) (id.ConnectionID, error) {
	return Default().ConnectRef(ref, sig, snd)
}

// Disconnect removes a connection from the default dispatcher.
func Disconnect(conn id.ConnectionID) error {
	return Default().Disconnect(conn)
}

// Send dispatches synchronously on the default dispatcher.
func Send(ctx context.Context, sig signal.Signal, snd signal.Sender, vals signal.Values) (*Batch, error) {
	return Default().Send(ctx, sig, snd, vals)
}

// AsyncSend dispatches through the cooperative queue on the default
// dispatcher.
func AsyncSend(ctx context.Context, sig signal.Signal, snd signal.Sender, vals signal.Values) (*Batch, error) {
	return Default().AsyncSend(ctx, sig, snd, vals)
}

// ThreadedSend dispatches over the worker pool on the default
// dispatcher.
func ThreadedSend(ctx context.Context, sig signal.Signal, snd signal.Sender, vals signal.Values) (*Batch, error) {
	return Default().ThreadedSend(ctx, sig, snd, vals)
}

// Use appends a middleware stage on the default dispatcher.
func Use(s middleware.Stage) middleware.StageID {
	return Default().Use(s)
}

// RemoveMiddleware removes a stage from the default dispatcher.
func RemoveMiddleware(stageID middleware.StageID) {
	Default().RemoveMiddleware(stageID)
}
