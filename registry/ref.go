package registry

import (
	"context"
	"reflect"
	"weak"

	"github.com/dirtywork-solutions/runecaller/signal"
)

// Receiver is a callable registered to be invoked when a matching
// signal/sender pair is dispatched. The returned value and error become
// the receiver's outcome in the dispatch result list.
type Receiver func(ctx context.Context, msg signal.Message) (any, error)

// Ref abstracts how the registry holds a receiver. A strong ref owns the
// receiver for as long as the entry exists; a weak ref holds a
// non-owning pointer to the receiver's owner and is considered dead once
// that owner has been collected.
type Ref interface {
	// Alive reports whether the backing target still exists.
	Alive() bool

	// Receiver returns the callable, or nil when the target is dead.
	Receiver() Receiver

	// Identity returns a comparable key identifying the receiver.
	// Connecting the same identity to the same (signal, sender) pair
	// twice is a no-op.
	Identity() any

	// Weak reports whether this is a non-owning hold.
	Weak() bool
}

type strongRef struct {
	fn    Receiver
	ident any
}

// Strong returns an owning ref for a free-standing function or closure.
// This is the documented fallback for receivers with no independent
// owner: a weak hold on a bare closure would be collectible immediately.
//
// Identity is the function's code pointer, so closures created from the
// same literal share one identity and dedupe on connect even when they
// capture different values. Receivers that need separate registrations
// under one (signal, sender) pair should be distinct functions, use
// Weak with distinct owners, or use StrongUnique.
func Strong(fn Receiver) Ref {
	return strongRef{fn: fn, ident: reflect.ValueOf(fn).Pointer()}
}

// StrongUnique is Strong with a fresh identity per call: every returned
// ref registers separately even when fn is a closure built from the same
// literal, at the cost of connect idempotence — reconnecting requires
// the ref value itself, and disconnection goes by connection ID.
func StrongUnique(fn Receiver) Ref {
	return strongRef{fn: fn, ident: new(byte)}
}

func (s strongRef) Alive() bool        { return true }
func (s strongRef) Receiver() Receiver { return s.fn }
func (s strongRef) Identity() any      { return s.ident }
func (s strongRef) Weak() bool         { return false }

type weakIdent[T any] struct {
	owner  weak.Pointer[T]
	method uintptr
}

type weakRef[T any] struct {
	owner  weak.Pointer[T]
	method func(*T, context.Context, signal.Message) (any, error)
	ident  weakIdent[T]
}

// Weak returns a non-owning ref binding method to owner. The registry
// does not keep owner alive: once every other reference to it is gone
// the entry is dead and will be pruned lazily during lookup. Use a
// method expression for the second argument:
//
//	reg.Connect(registry.Weak(sub, (*Subscriber).Handle), sig, snd)
//
// A nil owner has no independent lifetime to track, so the ref falls
// back to a strong hold rather than registering an entry that is dead
// on arrival.
func Weak[T any](owner *T, method func(*T, context.Context, signal.Message) (any, error)) Ref {
	if owner == nil {
		return Strong(func(ctx context.Context, msg signal.Message) (any, error) {
			return method(nil, ctx, msg)
		})
	}
	p := weak.Make(owner)
	return weakRef[T]{
		owner:  p,
		method: method,
		ident:  weakIdent[T]{owner: p, method: reflect.ValueOf(method).Pointer()},
	}
}

func (w weakRef[T]) Alive() bool { return w.owner.Value() != nil }

func (w weakRef[T]) Receiver() Receiver {
	t := w.owner.Value()
	if t == nil {
		return nil
	}
	return func(ctx context.Context, msg signal.Message) (any, error) {
		return w.method(t, ctx, msg)
	}
}

func (w weakRef[T]) Identity() any { return w.ident }
func (w weakRef[T]) Weak() bool    { return true }
