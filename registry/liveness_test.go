package registry_test

import (
	"context"
	"runtime"
	"testing"

	"github.com/dirtywork-solutions/runecaller/registry"
	"github.com/dirtywork-solutions/runecaller/signal"
)

type counter struct {
	calls int
}

func (c *counter) Handle(_ context.Context, _ signal.Message) (any, error) {
	c.calls++
	return c.calls, nil
}

func TestWeakRefDelivery(t *testing.T) {
	reg := registry.New()
	ping := signal.New("ping")

	owner := &counter{}
	conn, err := reg.Connect(registry.Weak(owner, (*counter).Handle), ping, signal.AnySender)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	entries, _ := reg.Lookup(ping, signal.Anonymous)
	var delivered int
	for e := range reg.Live(entries) {
		if e.Connection() != conn {
			t.Errorf("unexpected connection %s", e.Connection())
		}
		fn := e.Receiver()
		if fn == nil {
			t.Fatal("live entry returned nil receiver")
		}
		if _, err := fn(context.Background(), signal.Message{Signal: ping}); err != nil {
			t.Fatalf("receiver failed: %v", err)
		}
		delivered++
	}
	if delivered != 1 {
		t.Fatalf("expected 1 delivery, got %d", delivered)
	}
	if owner.calls != 1 {
		t.Errorf("owner.calls = %d, want 1", owner.calls)
	}
}

func TestWeakRefIdempotentConnect(t *testing.T) {
	reg := registry.New()
	ping := signal.New("ping")

	owner := &counter{}
	a, _ := reg.Connect(registry.Weak(owner, (*counter).Handle), ping, signal.AnySender)
	b, _ := reg.Connect(registry.Weak(owner, (*counter).Handle), ping, signal.AnySender)
	if a != b {
		t.Error("reconnecting the same owner/method pair should return the existing handle")
	}
	if reg.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", reg.Len())
	}
	runtime.KeepAlive(owner)
}

func TestWeakRefCollection(t *testing.T) {
	reg := registry.New()
	ping := signal.New("ping")

	owner := &counter{}
	if _, err := reg.Connect(registry.Weak(owner, (*counter).Handle), ping, signal.AnySender); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// Drop the only strong reference and collect.
	owner = nil
	_ = owner
	runtime.GC()
	runtime.GC()

	entries, _ := reg.Lookup(ping, signal.Anonymous)
	for e := range reg.Live(entries) {
		t.Errorf("dead entry survived liveness filter: %s", e.Connection())
	}

	// The dead entry was pruned lazily after the walk.
	if reg.Len() != 0 {
		t.Errorf("expected lazy pruning to empty the registry, got %d entries", reg.Len())
	}
}

func TestLiveSequenceRestartable(t *testing.T) {
	reg := registry.New()
	ping := signal.New("ping")

	for _, fn := range []registry.Receiver{
		func(_ context.Context, _ signal.Message) (any, error) { return "a", nil },
		func(_ context.Context, _ signal.Message) (any, error) { return "b", nil },
		func(_ context.Context, _ signal.Message) (any, error) { return "c", nil },
	} {
		reg.Connect(registry.Strong(fn), ping, signal.AnySender)
	}

	entries, _ := reg.Lookup(ping, signal.Anonymous)
	seq := reg.Live(entries)

	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	if first := count(); first != 3 {
		t.Errorf("first walk = %d, want 3", first)
	}
	if second := count(); second != 3 {
		t.Errorf("second walk = %d, want 3 (sequence must be restartable)", second)
	}
}

func TestLiveSnapshotConsistency(t *testing.T) {
	// The sequence reflects the snapshot, not live registry state.
	reg := registry.New()
	ping := signal.New("ping")

	conn, _ := reg.Connect(registry.Strong(func(_ context.Context, _ signal.Message) (any, error) {
		return nil, nil
	}), ping, signal.AnySender)

	entries, _ := reg.Lookup(ping, signal.Anonymous)
	if err := reg.Disconnect(conn); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	n := 0
	for range reg.Live(entries) {
		n++
	}
	if n != 1 {
		t.Errorf("snapshot walk = %d entries, want 1 (strong entry stays in snapshot)", n)
	}
}

func TestLiveEarlyBreakStillPrunes(t *testing.T) {
	reg := registry.New()
	ping := signal.New("ping")

	owner := &counter{}
	reg.Connect(registry.Weak(owner, (*counter).Handle), ping, signal.AnySender)
	alive, _ := reg.Connect(registry.Strong(func(_ context.Context, _ signal.Message) (any, error) {
		return nil, nil
	}), ping, signal.AnySender)

	owner = nil
	_ = owner
	runtime.GC()
	runtime.GC()

	entries, _ := reg.Lookup(ping, signal.Anonymous)
	for e := range reg.Live(entries) {
		if e.Connection() == alive {
			break
		}
	}

	if reg.Len() != 1 {
		t.Errorf("expected dead entry pruned after early break, got %d entries", reg.Len())
	}
}

func TestWeakNilOwnerFallsBackToStrong(t *testing.T) {
	ref := registry.Weak[counter](nil, func(_ *counter, _ context.Context, _ signal.Message) (any, error) {
		return "ok", nil
	})
	if ref.Weak() {
		t.Error("nil owner should fall back to a strong hold")
	}
	if !ref.Alive() {
		t.Error("strong fallback should always be alive")
	}
}
