// Package signal defines the identifier values that route a dispatch:
// the Signal being emitted and the Sender it is scoped to, plus the
// Message triple handed through the middleware pipeline to receivers.
//
// Both Signal and Sender are small comparable values safe to use as map
// keys. Each has a wildcard variant ([Any], [AnySender]) that matches
// every counterpart during registry lookup; Sender additionally has the
// [Anonymous] sentinel meaning "no sender was provided", which is an
// ordinary specific value distinct from the wildcard.
package signal

import (
	"fmt"
	"reflect"
)

// Signal identifies a named event. The zero value is invalid; construct
// signals with New or use the Any wildcard.
type Signal struct {
	name string
	kind kind
}

type kind uint8

const (
	kindInvalid kind = iota
	kindSpecific
	kindWildcard
	kindAnonymous
)

// Any is the wildcard signal. A receiver connected to Any is invoked for
// every dispatched signal.
var Any = Signal{kind: kindWildcard}

// New creates a specific signal with the given name.
func New(name string) Signal {
	return Signal{name: name, kind: kindSpecific}
}

// Name returns the signal's name. Empty for the wildcard.
func (s Signal) Name() string { return s.name }

// IsAny reports whether s is the wildcard signal.
func (s Signal) IsAny() bool { return s.kind == kindWildcard }

// Valid reports whether s was constructed with New or is Any.
func (s Signal) Valid() bool { return s.kind != kindInvalid }

// IsZero reports whether s is the zero value.
func (s Signal) IsZero() bool { return s.kind == kindInvalid }

// String implements fmt.Stringer.
func (s Signal) String() string {
	if s.kind == kindWildcard {
		return "<any>"
	}
	return s.name
}

// Sender scopes a signal to its origin. The zero value is invalid;
// construct senders with From or use the AnySender / Anonymous sentinels.
type Sender struct {
	key  any
	kind kind
}

// AnySender is the wildcard sender. A receiver connected to AnySender is
// invoked regardless of which sender emitted the signal.
var AnySender = Sender{kind: kindWildcard}

// Anonymous is the sender used when a producer provides none. It matches
// receivers connected to Anonymous or to AnySender, never those connected
// to a specific sender.
var Anonymous = Sender{kind: kindAnonymous}

// From creates a specific sender scoped to v. The value must be
// comparable; validate rejects it otherwise.
func From(v any) Sender {
	return Sender{key: v, kind: kindSpecific}
}

// Key returns the underlying sender value. Nil for the sentinels.
func (s Sender) Key() any { return s.key }

// IsAny reports whether s is the wildcard sender.
func (s Sender) IsAny() bool { return s.kind == kindWildcard }

// IsAnonymous reports whether s is the anonymous sentinel.
func (s Sender) IsAnonymous() bool { return s.kind == kindAnonymous }

// IsZero reports whether s is the zero value.
func (s Sender) IsZero() bool { return s.kind == kindInvalid }

// Valid reports whether s is one of the three legal variants with a
// comparable key. Non-comparable keys (slices, maps, funcs, or
// composites carrying one, like an array with a slice element) cannot
// be used for registry lookup. The check is value-level: a comparable
// type holding a non-comparable value is rejected too, since hashing
// such a value would panic.
func (s Sender) Valid() bool {
	switch s.kind {
	case kindWildcard, kindAnonymous:
		return true
	case kindSpecific:
		if s.key == nil {
			return false
		}
		return reflect.ValueOf(s.key).Comparable()
	default:
		return false
	}
}

// String implements fmt.Stringer.
func (s Sender) String() string {
	switch s.kind {
	case kindWildcard:
		return "<any>"
	case kindAnonymous:
		return "<anonymous>"
	default:
		return fmt.Sprintf("%v", s.key)
	}
}

// Values carries the keyword arguments of a dispatch.
type Values map[string]any

// Message is the dispatch triple folded through middleware stages and
// delivered to each receiver.
type Message struct {
	Signal Signal
	Sender Sender
	Values Values
}
