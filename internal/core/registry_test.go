package core

import (
	"fmt"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

func testLogger() *zerolog.Logger {
	logger := zerolog.Nop()
	return &logger
}

func TestRegisterAndLookup(t *testing.T) {
	r := NewRegistry(testLogger(), nil)

	s := NewSession(1, "sess-1")
	r.Register(s)

	if got := r.Lookup(1); got != s {
		t.Fatalf("expected registered session, got %v", got)
	}
	if got := r.Lookup(2); got != nil {
		t.Fatalf("expected nil for unknown user, got %v", got)
	}
	if r.Count() != 1 {
		t.Fatalf("expected count 1, got %d", r.Count())
	}
}

func TestRegisterSupersedesExistingSession(t *testing.T) {
	r := NewRegistry(testLogger(), nil)

	old := NewSession(1, "sess-old")
	r.Register(old)

	replacement := NewSession(1, "sess-new")
	r.Register(replacement)

	select {
	case <-old.Done():
	default:
		t.Fatal("superseded session was not closed")
	}
	if old.Reason() != CloseReplaced {
		t.Fatalf("expected CloseReplaced, got %v", old.Reason())
	}
	if got := r.Lookup(1); got != replacement {
		t.Fatalf("expected replacement session, got %v", got)
	}
	if r.Count() != 1 {
		t.Fatalf("expected count 1 after supersede, got %d", r.Count())
	}
}

func TestUnregisterRemovesSession(t *testing.T) {
	r := NewRegistry(testLogger(), nil)

	s := NewSession(1, "sess-1")
	r.Register(s)
	r.Unregister(s)

	if got := r.Lookup(1); got != nil {
		t.Fatalf("expected session gone, got %v", got)
	}
	select {
	case <-s.Done():
	default:
		t.Fatal("unregistered session was not closed")
	}
	if s.Reason() != CloseNormal {
		t.Fatalf("expected CloseNormal, got %v", s.Reason())
	}
}

func TestUnregisterStaleSessionIsNoOp(t *testing.T) {
	r := NewRegistry(testLogger(), nil)

	old := NewSession(1, "sess-old")
	r.Register(old)

	replacement := NewSession(1, "sess-new")
	r.Register(replacement)

	// The old connection tears down after being replaced; its unregister
	// must not evict the replacement.
	r.Unregister(old)

	if got := r.Lookup(1); got != replacement {
		t.Fatalf("stale unregister evicted the replacement, lookup=%v", got)
	}
	if old.Reason() != CloseReplaced {
		t.Fatalf("stale unregister overwrote close reason: %v", old.Reason())
	}
}

func TestConcurrentRegisterKeepsSingleSession(t *testing.T) {
	r := NewRegistry(testLogger(), nil)

	const n = 50
	sessions := make([]*Session, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		sessions[i] = NewSession(7, fmt.Sprintf("sess-%d", i))
		wg.Add(1)
		go func(s *Session) {
			defer wg.Done()
			r.Register(s)
		}(sessions[i])
	}
	wg.Wait()

	winner := r.Lookup(7)
	if winner == nil {
		t.Fatal("no session registered")
	}
	if r.Count() != 1 {
		t.Fatalf("expected a single live session, got %d", r.Count())
	}

	open := 0
	for _, s := range sessions {
		select {
		case <-s.Done():
		default:
			open++
			if s != winner {
				t.Fatalf("open session %s is not the registered one", s.ID)
			}
		}
	}
	if open != 1 {
		t.Fatalf("expected exactly one open session, got %d", open)
	}
}
