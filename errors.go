package runecaller

import (
	"errors"
	"fmt"

	"github.com/dirtywork-solutions/runecaller/id"
	"github.com/dirtywork-solutions/runecaller/registry"
	"github.com/dirtywork-solutions/runecaller/signal"
)

var (
	// ErrClosed is returned by dispatch calls after Close.
	ErrClosed = errors.New("runecaller: dispatcher closed")

	// Registry errors, re-exported for callers that only import this
	// package.
	ErrNotFound      = registry.ErrNotFound
	ErrInvalidSignal = registry.ErrInvalidSignal
	ErrInvalidSender = registry.ErrInvalidSender
)

// ReceiverError wraps a failure raised by receiver code, annotated with
// the signal, sender, and connection it occurred under. It appears as
// the outcome of the failing receiver in a Batch and is never
// propagated out of a dispatch call.
type ReceiverError struct {
	Signal     signal.Signal
	Sender     signal.Sender
	Connection id.ConnectionID
	Err        error
}

func (e *ReceiverError) Error() string {
	return fmt.Sprintf("runecaller: receiver %s failed for signal %q (sender %s): %v",
		e.Connection, e.Signal, e.Sender, e.Err)
}

func (e *ReceiverError) Unwrap() error { return e.Err }
