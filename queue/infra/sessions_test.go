package infra

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestSessions_CancelAndQuery(t *testing.T) {
	s := NewSessions()
	if _, ok := s.Cancelled("s1"); ok {
		t.Fatalf("expected unknown session not to be cancelled")
	}
	s.Cancel("s1", "user_request")
	s.Cancel("s1", "second")

	reason, ok := s.Cancelled("s1")
	if !ok || reason != "user_request" {
		t.Fatalf("expected s1 cancelled with first reason, got %q %v", reason, ok)
	}
}

func TestSessions_EmptySessionIsNeverCancelled(t *testing.T) {
	s := NewSessions()
	s.Cancel("", "x")
	if _, ok := s.Cancelled(""); ok {
		t.Fatalf("expected empty session to be ignored")
	}
}

func TestSessions_FlagsExpire(t *testing.T) {
	clk := &fakeClock{now: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
	s := NewSessions(WithSessionTTL(time.Minute), WithSessionClock(clk.Now))

	s.Cancel("s1", "user_request")
	clk.Advance(2 * time.Minute)

	if _, ok := s.Cancelled("s1"); ok {
		t.Fatalf("expected expired flag to be ignored")
	}
	s.Cleanup()
	if s.Len() != 0 {
		t.Fatalf("expected cleanup to drop expired flag, got %d", s.Len())
	}
}

func TestSessions_ConcurrentAccess(t *testing.T) {
	s := NewSessions()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.StartJanitor(ctx)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.Cancel("s", "r")
				_, _ = s.Cancelled("s")
			}
		}()
	}
	wg.Wait()
	if _, ok := s.Cancelled("s"); !ok {
		t.Fatalf("expected session to be cancelled")
	}
}
