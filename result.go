package runecaller

import (
	"github.com/dirtywork-solutions/runecaller/id"
	"github.com/dirtywork-solutions/runecaller/signal"
)

// Result is one receiver's outcome within a dispatch batch: either a
// returned value or a captured failure.
type Result struct {
	// Connection identifies the registration that was delivered to.
	Connection id.ConnectionID

	// Value is the receiver's return value on success.
	Value any

	// Err is the captured failure, a *ReceiverError, when the receiver
	// returned an error, panicked, or missed the dispatch deadline.
	Err error
}

// Failed reports whether the receiver's outcome is a captured failure.
func (r Result) Failed() bool { return r.Err != nil }

// Batch is the ordered outcome of one dispatch call. Results are
// indexed by the original registration order of the receivers that were
// live at dispatch time.
type Batch struct {
	// ID correlates the batch across logs and traces.
	ID id.DispatchID

	// Signal and Sender are the values after middleware transforms.
	Signal signal.Signal
	Sender signal.Sender

	// Results holds one entry per delivered registration, in
	// registration order regardless of completion order.
	Results []Result

	// Aborted is set when a middleware stage halted the dispatch; no
	// receiver was invoked and Results is empty.
	Aborted bool

	// AbortReason is the reason given to middleware.Abort.
	AbortReason string
}

// Len returns the number of delivered registrations.
func (b *Batch) Len() int { return len(b.Results) }

// Failures returns the captured failures in registration order.
func (b *Batch) Failures() []Result {
	var out []Result
	for _, r := range b.Results {
		if r.Failed() {
			out = append(out, r)
		}
	}
	return out
}
