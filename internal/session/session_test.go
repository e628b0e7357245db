package session

import (
	"sync"
	"testing"
	"time"

	"screening-platform/internal/screening"
)

// Run with -race: binding the provider id races the safety timer and
// interrupt paths, which read it from other goroutines.
func TestSession_ProviderCallIDConcurrentAccess(t *testing.T) {
	s := newSession(screening.Call{ID: "call-1", ApplicationID: "app-1"})
	if s.ProviderCallID() != "" {
		t.Fatalf("expected no provider id before start")
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.setProviderCallID("prov-1")
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			_ = s.ProviderCallID()
		}
	}()
	wg.Wait()

	if got := s.ProviderCallID(); got != "prov-1" {
		t.Fatalf("expected prov-1, got %q", got)
	}
}

func TestNewSession_RehydratesActiveCall(t *testing.T) {
	started := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := newSession(screening.Call{
		ID:             "call-1",
		ProviderCallID: "prov-1",
		Status:         screening.StatusInProgress,
		StartedAt:      &started,
	})
	if s.State() != StateActive || s.ProviderCallID() != "prov-1" {
		t.Fatalf("unexpected session: state=%s provider=%q", s.State(), s.ProviderCallID())
	}
}
