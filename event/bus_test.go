package event_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"golang.org/x/time/rate"

	"github.com/dirtywork-solutions/runecaller/event"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNewEvent(t *testing.T) {
	e := event.New("user.created", map[string]any{"id": 7})
	if e.ID.IsNil() {
		t.Error("expected a correlation ID")
	}
	if e.ID.Prefix() != "evt" {
		t.Errorf("ID prefix = %q, want evt", e.ID.Prefix())
	}
	if e.CreatedAt.IsZero() {
		t.Error("expected a creation timestamp")
	}
	if e.Cancelled() {
		t.Error("new event should not be cancelled")
	}
}

func TestDispatchPriorityOrder(t *testing.T) {
	b := event.NewBus(event.WithLogger(testLogger()))
	var order []string

	b.Subscribe("user.created", func(_ context.Context, _ *event.Event) error {
		order = append(order, "audit")
		return nil
	}, event.WithPriority(20))
	b.Subscribe("user.created", func(_ context.Context, _ *event.Event) error {
		order = append(order, "validate")
		return nil
	}, event.WithPriority(1))

	if err := b.Dispatch(context.Background(), event.New("user.created", nil)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if len(order) != 2 || order[0] != "validate" || order[1] != "audit" {
		t.Errorf("listener order = %v", order)
	}
}

func TestWildcardPattern(t *testing.T) {
	b := event.NewBus(event.WithLogger(testLogger()))
	var matched []string

	b.Subscribe("user.*", func(_ context.Context, e *event.Event) error {
		matched = append(matched, e.Name)
		return nil
	})

	for _, name := range []string{"user.created", "user.deleted", "order.created"} {
		if err := b.Dispatch(context.Background(), event.New(name, nil)); err != nil {
			t.Fatalf("Dispatch(%s) failed: %v", name, err)
		}
	}

	if len(matched) != 2 {
		t.Fatalf("wildcard matched %d events, want 2: %v", len(matched), matched)
	}
	if matched[0] != "user.created" || matched[1] != "user.deleted" {
		t.Errorf("matched = %v", matched)
	}
}

func TestPredicateFiltering(t *testing.T) {
	b := event.NewBus(event.WithLogger(testLogger()))
	calls := 0

	b.Subscribe("order.placed", func(_ context.Context, _ *event.Event) error {
		calls++
		return nil
	}, event.WithPredicate(func(e *event.Event) bool {
		v, _ := e.Payload["amount"].(int)
		return v >= 100
	}))

	b.Dispatch(context.Background(), event.New("order.placed", map[string]any{"amount": 50}))
	b.Dispatch(context.Background(), event.New("order.placed", map[string]any{"amount": 150}))

	if calls != 1 {
		t.Errorf("predicate let %d events through, want 1", calls)
	}
}

func TestCancelStopsPropagation(t *testing.T) {
	b := event.NewBus(event.WithLogger(testLogger()))
	var order []string

	b.Subscribe("x", func(_ context.Context, e *event.Event) error {
		order = append(order, "first")
		e.Cancel()
		return nil
	}, event.WithPriority(1))
	b.Subscribe("x", func(_ context.Context, _ *event.Event) error {
		order = append(order, "second")
		return nil
	}, event.WithPriority(2))

	b.Dispatch(context.Background(), event.New("x", nil))

	if len(order) != 1 || order[0] != "first" {
		t.Errorf("order = %v, want [first]", order)
	}
}

func TestUnsubscribe(t *testing.T) {
	b := event.NewBus(event.WithLogger(testLogger()))
	called := false

	lid := b.Subscribe("x", func(_ context.Context, _ *event.Event) error {
		called = true
		return nil
	})
	b.Unsubscribe(lid)
	b.Dispatch(context.Background(), event.New("x", nil))

	if called {
		t.Error("unsubscribed listener still ran")
	}

	// Wildcard unsubscribe.
	wid := b.Subscribe("x.*", func(_ context.Context, _ *event.Event) error {
		called = true
		return nil
	})
	b.Unsubscribe(wid)
	b.Dispatch(context.Background(), event.New("x.y", nil))
	if called {
		t.Error("unsubscribed wildcard listener still ran")
	}
}

func TestListenerFailureIsolation(t *testing.T) {
	b := event.NewBus(event.WithLogger(testLogger()))
	var failures []event.Failure

	b.OnError().Register(func(_ context.Context, f event.Failure) error {
		failures = append(failures, f)
		return nil
	})

	ran := false
	b.Subscribe("x", func(_ context.Context, _ *event.Event) error {
		return errors.New("boom")
	}, event.WithPriority(1))
	b.Subscribe("x", func(_ context.Context, _ *event.Event) error {
		panic("kaboom")
	}, event.WithPriority(2))
	b.Subscribe("x", func(_ context.Context, _ *event.Event) error {
		ran = true
		return nil
	}, event.WithPriority(3))

	if err := b.Dispatch(context.Background(), event.New("x", nil)); err != nil {
		t.Fatalf("Dispatch returned %v, listener failures must be isolated", err)
	}
	if !ran {
		t.Error("listener after failures did not run")
	}
	if len(failures) != 2 {
		t.Errorf("error hooks saw %d failures, want 2", len(failures))
	}
}

func TestBeforeAfterHooks(t *testing.T) {
	b := event.NewBus(event.WithLogger(testLogger()))
	var order []string

	b.Before().Register(func(_ context.Context, _ *event.Event) error {
		order = append(order, "before")
		return nil
	})
	b.After().Register(func(_ context.Context, c event.Completion) error {
		if c.Elapsed < 0 {
			t.Error("negative elapsed time")
		}
		order = append(order, "after")
		return nil
	})
	b.Subscribe("x", func(_ context.Context, _ *event.Event) error {
		order = append(order, "listener")
		return nil
	})

	b.Dispatch(context.Background(), event.New("x", nil))

	want := []string{"before", "listener", "after"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q", i, order[i], want[i])
		}
	}
}

func TestRateLimit(t *testing.T) {
	b := event.NewBus(
		event.WithLogger(testLogger()),
		event.WithRateLimit(rate.Limit(0.001), 1),
	)
	calls := 0
	b.Subscribe("x", func(_ context.Context, _ *event.Event) error {
		calls++
		return nil
	})

	if err := b.Dispatch(context.Background(), event.New("x", nil)); err != nil {
		t.Fatalf("first Dispatch failed: %v", err)
	}
	err := b.Dispatch(context.Background(), event.New("x", nil))
	if !errors.Is(err, event.ErrRateLimited) {
		t.Fatalf("second Dispatch = %v, want ErrRateLimited", err)
	}
	if calls != 1 {
		t.Errorf("listener ran %d times, want 1", calls)
	}
}

func TestDispatchConcurrent(t *testing.T) {
	b := event.NewBus(event.WithLogger(testLogger()), event.WithMaxConcurrent(2))

	var mu sync.Mutex
	seen := 0
	for range 8 {
		b.Subscribe("x", func(_ context.Context, _ *event.Event) error {
			mu.Lock()
			seen++
			mu.Unlock()
			return nil
		})
	}

	if err := b.DispatchConcurrent(context.Background(), event.New("x", nil)); err != nil {
		t.Fatalf("DispatchConcurrent failed: %v", err)
	}
	if seen != 8 {
		t.Errorf("ran %d listeners, want 8", seen)
	}
}
