// Package registry stores receiver connections keyed by (signal, sender)
// and answers ordered lookup queries with wildcard and liveness
// semantics.
//
// Lookup results follow a fixed precedence: exact signal + exact sender,
// then exact signal + wildcard sender, then wildcard signal + exact
// sender, then wildcard signal + wildcard sender. Within each group
// entries keep their insertion order. Each registration is its own unit
// of delivery: the same receiver connected through two independent
// registrations is delivered twice.
//
// The registry never holds its lock across a receiver invocation;
// dispatch code takes a snapshot via Lookup and Live, so receivers may
// reconnect or disconnect themselves reentrantly.
package registry

import (
	"errors"
	"slices"
	"sync"

	"github.com/dirtywork-solutions/runecaller/id"
	"github.com/dirtywork-solutions/runecaller/signal"
)

var (
	// ErrNotFound is returned by Disconnect when no entry matches.
	ErrNotFound = errors.New("registry: connection not found")

	// ErrInvalidSignal is returned when a signal value is the zero
	// value rather than a constructed signal or the wildcard.
	ErrInvalidSignal = errors.New("registry: invalid signal")

	// ErrInvalidSender is returned when a sender value is the zero
	// value or wraps a non-comparable key.
	ErrInvalidSender = errors.New("registry: invalid sender")
)

// Entry is one receiver registration. Entries are immutable once
// created; reconnecting the same (signal, sender, identity) triple
// returns the existing entry's connection ID.
type Entry struct {
	conn id.ConnectionID
	sig  signal.Signal
	snd  signal.Sender
	ref  Ref
	seq  uint64
}

// Connection returns the entry's connection ID.
func (e Entry) Connection() id.ConnectionID { return e.conn }

// Signal returns the signal the entry was registered under.
func (e Entry) Signal() signal.Signal { return e.sig }

// Sender returns the sender the entry was registered under.
func (e Entry) Sender() signal.Sender { return e.snd }

// Weak reports whether the entry holds its receiver weakly.
func (e Entry) Weak() bool { return e.ref.Weak() }

// Alive reports whether the entry's receiver target still exists.
func (e Entry) Alive() bool { return e.ref.Alive() }

// Receiver returns the entry's callable, or nil when the weakly-held
// target has been collected.
func (e Entry) Receiver() Receiver { return e.ref.Receiver() }

// lookup key. Comparable because Sender keys are validated comparable
// before any map access.
type key struct {
	sig signal.Signal
	snd signal.Sender
}

// Registry stores receiver entries and answers lookup queries. The zero
// value is not usable; construct with New. Safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	buckets map[key][]*Entry
	byConn  map[id.ConnectionID]*Entry
	seq     uint64
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		buckets: make(map[key][]*Entry),
		byConn:  make(map[id.ConnectionID]*Entry),
	}
}

func validate(sig signal.Signal, snd signal.Sender) error {
	if !sig.Valid() {
		return ErrInvalidSignal
	}
	if !snd.Valid() {
		return ErrInvalidSender
	}
	return nil
}

// Connect registers ref under (sig, snd) and returns the connection ID.
// Connecting an identity already registered under the same pair is a
// no-op returning the pre-existing connection ID.
func (r *Registry) Connect(ref Ref, sig signal.Signal, snd signal.Sender) (id.ConnectionID, error) {
	if err := validate(sig, snd); err != nil {
		return id.Nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{sig: sig, snd: snd}
	ident := ref.Identity()
	for _, e := range r.buckets[k] {
		if e.ref.Identity() == ident {
			return e.conn, nil
		}
	}

	e := &Entry{
		conn: id.NewConnectionID(),
		sig:  sig,
		snd:  snd,
		ref:  ref,
		seq:  r.seq,
	}
	r.seq++
	r.buckets[k] = append(r.buckets[k], e)
	r.byConn[e.conn] = e
	return e.conn, nil
}

// Disconnect removes the entry with the given connection ID.
func (r *Registry) Disconnect(conn id.ConnectionID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.removeLocked(conn)
}

// DisconnectReceiver removes the entry registered for ref's identity
// under (sig, snd).
func (r *Registry) DisconnectReceiver(ref Ref, sig signal.Signal, snd signal.Sender) error {
	if err := validate(sig, snd); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	ident := ref.Identity()
	for _, e := range r.buckets[key{sig: sig, snd: snd}] {
		if e.ref.Identity() == ident {
			return r.removeLocked(e.conn)
		}
	}
	return ErrNotFound
}

func (r *Registry) removeLocked(conn id.ConnectionID) error {
	e, ok := r.byConn[conn]
	if !ok {
		return ErrNotFound
	}
	delete(r.byConn, conn)

	k := key{sig: e.sig, snd: e.snd}
	bucket := r.buckets[k]
	bucket = slices.DeleteFunc(bucket, func(b *Entry) bool { return b.conn == conn })
	if len(bucket) == 0 {
		delete(r.buckets, k)
	} else {
		r.buckets[k] = bucket
	}
	return nil
}

// Lookup returns the entries matching (sig, snd) in precedence order:
// exact/exact, exact/any-sender, any-signal/exact, any/any. Entries keep
// insertion order within each group and are deduplicated by connection
// across groups (relevant when a wildcard is passed explicitly and two
// candidate groups collapse onto the same bucket).
func (r *Registry) Lookup(sig signal.Signal, snd signal.Sender) ([]Entry, error) {
	if err := validate(sig, snd); err != nil {
		return nil, err
	}

	candidates := [4]key{
		{sig: sig, snd: snd},
		{sig: sig, snd: signal.AnySender},
		{sig: signal.Any, snd: snd},
		{sig: signal.Any, snd: signal.AnySender},
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var (
		out      []Entry
		seenKeys [4]key
		seen     map[id.ConnectionID]struct{}
	)
	n := 0
	for _, k := range candidates {
		if slices.Contains(seenKeys[:n], k) {
			continue
		}
		seenKeys[n] = k
		n++

		for _, e := range r.buckets[k] {
			if seen == nil {
				seen = make(map[id.ConnectionID]struct{})
			}
			if _, dup := seen[e.conn]; dup {
				continue
			}
			seen[e.conn] = struct{}{}
			out = append(out, *e)
		}
	}
	return out, nil
}

// Receivers returns the connection IDs matching (snd, sig), in the same
// precedence order as Lookup.
func (r *Registry) Receivers(snd signal.Sender, sig signal.Signal) ([]id.ConnectionID, error) {
	entries, err := r.Lookup(sig, snd)
	if err != nil {
		return nil, err
	}
	conns := make([]id.ConnectionID, len(entries))
	for i, e := range entries {
		conns[i] = e.conn
	}
	return conns, nil
}

// AllReceivers is Receivers with explicit wildcard defaults: a zero
// sender is treated as the wildcard sender and a zero signal as the
// wildcard signal.
func (r *Registry) AllReceivers(snd signal.Sender, sig signal.Signal) ([]id.ConnectionID, error) {
	if snd.IsZero() {
		snd = signal.AnySender
	}
	if sig.IsZero() {
		sig = signal.Any
	}
	return r.Receivers(snd, sig)
}

// Entry returns the entry for a connection ID, if it exists.
func (r *Registry) Entry(conn id.ConnectionID) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.byConn[conn]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byConn)
}

// Clear removes every entry, returning the registry to its empty state.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.buckets = make(map[key][]*Entry)
	r.byConn = make(map[id.ConnectionID]*Entry)
}
