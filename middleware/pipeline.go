// Package middleware provides the transform pipeline applied to every
// dispatch before registry lookup.
//
// A [Stage] receives the dispatch message (signal, sender, values) and
// returns a possibly modified message to continue, or an error to halt.
// Halting with [Abort] is a control outcome, not a failure: the dispatch
// returns an empty result batch carrying the abort reason, and no
// receiver is invoked.
//
// Stages run synchronously in registration order on the caller's
// goroutine regardless of which dispatch strategy is active, keeping
// transform ordering deterministic.
package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/dirtywork-solutions/runecaller/signal"
)

// Stage transforms a dispatch message. Returning an error halts the
// fold; errors wrapping ErrAborted halt dispatch without being treated
// as failures.
type Stage func(ctx context.Context, msg signal.Message) (signal.Message, error)

// StageID identifies a registered stage for later removal.
type StageID uint64

// ErrAborted marks a deliberate dispatch halt. Construct halt errors
// with Abort so the reason travels with them.
var ErrAborted = errors.New("middleware: dispatch aborted")

// AbortError carries the reason a stage halted dispatch.
type AbortError struct {
	Reason string
}

func (e *AbortError) Error() string {
	if e.Reason == "" {
		return ErrAborted.Error()
	}
	return fmt.Sprintf("%s: %s", ErrAborted.Error(), e.Reason)
}

func (e *AbortError) Unwrap() error { return ErrAborted }

// Abort returns the halt error a stage should return to stop dispatch.
func Abort(reason string) error {
	return &AbortError{Reason: reason}
}

// Reason extracts the abort reason from an error returned by Run.
// Returns the empty string when err is not an abort.
func Reason(err error) string {
	var abort *AbortError
	if errors.As(err, &abort) {
		return abort.Reason
	}
	return ""
}

type stageEntry struct {
	id    StageID
	stage Stage
}

// Pipeline is an ordered, append-only chain of stages. The zero value
// is ready to use. Safe for concurrent management; Run folds over a
// snapshot of the chain.
type Pipeline struct {
	mu     sync.Mutex
	stages []stageEntry
	nextID StageID
}

// Use appends a stage to the end of the chain and returns its ID.
// No duplicate suppression is applied: the same stage added twice runs
// twice.
func (p *Pipeline) Use(s Stage) StageID {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.stages = append(p.stages, stageEntry{id: p.nextID, stage: s})
	return p.nextID
}

// Remove deletes the stage with the given ID. Removing an unknown ID is
// a no-op.
func (p *Pipeline) Remove(id StageID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, e := range p.stages {
		if e.id == id {
			p.stages = append(p.stages[:i], p.stages[i+1:]...)
			return
		}
	}
}

// Len returns the number of registered stages.
func (p *Pipeline) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.stages)
}

// Run folds msg through every stage in registration order. The first
// stage error stops the fold and is returned with the message as it
// stood before the failing stage.
func (p *Pipeline) Run(ctx context.Context, msg signal.Message) (signal.Message, error) {
	p.mu.Lock()
	snapshot := make([]stageEntry, len(p.stages))
	copy(snapshot, p.stages)
	p.mu.Unlock()

	for _, e := range snapshot {
		next, err := e.stage(ctx, msg)
		if err != nil {
			return msg, err
		}
		msg = next
	}
	return msg, nil
}
