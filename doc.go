// Package runecaller provides an in-process publish/subscribe dispatch
// engine: producers emit a named signal, optionally scoped to a sender,
// and independently-registered receivers are invoked without producer
// and receiver knowing about each other.
//
// RuneCaller is a library, not a service. Create a Dispatcher (or use
// the process-default one), connect receivers, and send signals:
//
//	d, err := runecaller.New(runecaller.WithWorkers(8))
//
//	ping := signal.New("ping")
//	d.Connect(func(ctx context.Context, msg signal.Message) (any, error) {
//	    return "pong", nil
//	}, ping, signal.AnySender)
//
//	batch, err := d.Send(ctx, ping, signal.Anonymous, nil)
//
// # Dispatch strategies
//
// Three delivery modes are selected per call, not globally: Send invokes
// receivers synchronously in registration order; AsyncSend drains an
// indexed queue on a single worker goroutine with cooperative
// cancellation; ThreadedSend fans out over a bounded worker pool with
// blocking submission and re-sorts results into registration order.
//
// All three run the message through the middleware pipeline first, take
// an immutable snapshot of the matched live receivers, and isolate each
// invocation so one receiver's failure never aborts the batch.
//
// All entity IDs use TypeID — type-prefixed, K-sortable, UUIDv7-based
// identifiers.
package runecaller
