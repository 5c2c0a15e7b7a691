package signal_test

import (
	"testing"

	"github.com/dirtywork-solutions/runecaller/signal"
)

func TestSignalVariants(t *testing.T) {
	ping := signal.New("ping")
	if !ping.Valid() {
		t.Fatal("constructed signal should be valid")
	}
	if ping.IsAny() {
		t.Error("specific signal reported as wildcard")
	}
	if ping.Name() != "ping" {
		t.Errorf("Name() = %q, want %q", ping.Name(), "ping")
	}

	if !signal.Any.Valid() {
		t.Error("wildcard signal should be valid")
	}
	if !signal.Any.IsAny() {
		t.Error("Any should report IsAny")
	}

	var zero signal.Signal
	if zero.Valid() {
		t.Error("zero signal should be invalid")
	}
	if !zero.IsZero() {
		t.Error("zero signal should report IsZero")
	}
}

func TestSignalEquality(t *testing.T) {
	if signal.New("ping") != signal.New("ping") {
		t.Error("same-name signals should compare equal")
	}
	if signal.New("ping") == signal.New("pong") {
		t.Error("different signals should not compare equal")
	}
	if signal.New("ping") == signal.Any {
		t.Error("specific signal should not equal the wildcard")
	}
}

func TestSenderVariants(t *testing.T) {
	s := signal.From("svc-a")
	if !s.Valid() {
		t.Fatal("comparable sender should be valid")
	}
	if s.IsAny() || s.IsAnonymous() {
		t.Error("specific sender misreported as a sentinel")
	}
	if s.Key() != "svc-a" {
		t.Errorf("Key() = %v, want %q", s.Key(), "svc-a")
	}

	if !signal.AnySender.Valid() || !signal.AnySender.IsAny() {
		t.Error("AnySender should be the valid wildcard")
	}
	if !signal.Anonymous.Valid() || !signal.Anonymous.IsAnonymous() {
		t.Error("Anonymous should be the valid anonymous sentinel")
	}
	if signal.AnySender == signal.Anonymous {
		t.Error("wildcard and anonymous senders must be distinct")
	}

	var zero signal.Sender
	if zero.Valid() {
		t.Error("zero sender should be invalid")
	}
	if !zero.IsZero() {
		t.Error("zero sender should report IsZero")
	}
}

func TestSenderNonComparableKey(t *testing.T) {
	tests := []struct {
		name string
		key  any
	}{
		{"slice", []int{1, 2}},
		{"map", map[string]int{}},
		{"func", func() {}},
		{"nil", nil},
		// Comparable type, non-comparable value: hashing it would panic.
		{"array holding a slice", [1]any{[]int{1}}},
		{"struct holding a map", struct{ M any }{M: map[string]int{}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if signal.From(tt.key).Valid() {
				t.Errorf("sender with %s key should be invalid", tt.name)
			}
		})
	}
}

func TestStrings(t *testing.T) {
	if got := signal.New("ping").String(); got != "ping" {
		t.Errorf("signal String() = %q", got)
	}
	if got := signal.Any.String(); got != "<any>" {
		t.Errorf("Any String() = %q", got)
	}
	if got := signal.AnySender.String(); got != "<any>" {
		t.Errorf("AnySender String() = %q", got)
	}
	if got := signal.Anonymous.String(); got != "<anonymous>" {
		t.Errorf("Anonymous String() = %q", got)
	}
	if got := signal.From(42).String(); got != "42" {
		t.Errorf("From(42) String() = %q", got)
	}
}
