package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errDownstream = errors.New("downstream boom")

// testClock lets tests advance breaker time without sleeping.
type testClock struct{ t time.Time }

func (c *testClock) now() time.Time { return c.t }

func newTestBreaker(t *testing.T, clock *testClock) *Breaker {
	t.Helper()
	return NewBreaker(BreakerSettings{
		Name:           "gateway",
		WindowSize:     10,
		MinVolume:      10,
		ErrorThreshold: 0.5,
		ResetTimeout:   30 * time.Second,
		CallTimeout:    time.Second,
		now:            clock.now,
	})
}

func fail(ctx context.Context) error { return errDownstream }
func ok(ctx context.Context) error   { return nil }

func TestBreakerStaysClosedBelowMinVolume(t *testing.T) {
	b := newTestBreaker(t, &testClock{t: time.Unix(0, 0)})
	for i := 0; i < 9; i++ {
		_ = b.Execute(context.Background(), fail)
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("expected closed below min volume, got %s", got)
	}
}

func TestBreakerTripsAtThreshold(t *testing.T) {
	clock := &testClock{t: time.Unix(0, 0)}
	b := newTestBreaker(t, clock)
	for i := 0; i < 4; i++ {
		_ = b.Execute(context.Background(), ok)
	}
	for i := 0; i < 6; i++ {
		_ = b.Execute(context.Background(), fail)
	}
	// 6/10 failures > 50%.
	if got := b.State(); got != StateOpen {
		t.Fatalf("expected open, got %s", got)
	}
}

func TestBreakerFailsFastWhileOpen(t *testing.T) {
	clock := &testClock{t: time.Unix(0, 0)}
	b := newTestBreaker(t, clock)
	for i := 0; i < 10; i++ {
		_ = b.Execute(context.Background(), fail)
	}

	calls := 0
	start := time.Now()
	for i := 0; i < 5; i++ {
		err := b.Execute(context.Background(), func(ctx context.Context) error {
			calls++
			return nil
		})
		if !errors.Is(err, ErrOpen) {
			t.Fatalf("expected ErrOpen, got %v", err)
		}
	}
	if calls != 0 {
		t.Fatalf("open breaker let %d calls through", calls)
	}
	// Fail-fast bound: far below the 1s call timeout.
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Fatalf("short-circuit took %s", elapsed)
	}
}

func TestBreakerHalfOpenSuccessCloses(t *testing.T) {
	clock := &testClock{t: time.Unix(0, 0)}
	b := newTestBreaker(t, clock)
	for i := 0; i < 10; i++ {
		_ = b.Execute(context.Background(), fail)
	}
	clock.t = clock.t.Add(31 * time.Second)

	if err := b.Execute(context.Background(), ok); err != nil {
		t.Fatalf("trial call failed: %v", err)
	}
	if got := b.State(); got != StateClosed {
		t.Fatalf("expected closed after successful trial, got %s", got)
	}
	// The window restarts: an immediate single failure must not re-trip.
	_ = b.Execute(context.Background(), fail)
	if got := b.State(); got != StateClosed {
		t.Fatalf("breaker re-tripped on stale window, got %s", got)
	}
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := &testClock{t: time.Unix(0, 0)}
	b := newTestBreaker(t, clock)
	for i := 0; i < 10; i++ {
		_ = b.Execute(context.Background(), fail)
	}
	clock.t = clock.t.Add(31 * time.Second)

	if err := b.Execute(context.Background(), fail); !errors.Is(err, errDownstream) {
		t.Fatalf("expected downstream error from trial, got %v", err)
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("expected reopened breaker, got %s", got)
	}
	// Timer restarted: still open just before the new deadline.
	clock.t = clock.t.Add(29 * time.Second)
	if err := b.Execute(context.Background(), ok); !errors.Is(err, ErrOpen) {
		t.Fatalf("expected ErrOpen before reset timeout, got %v", err)
	}
}

func TestBreakerTimeoutCountsAsFailure(t *testing.T) {
	clock := &testClock{t: time.Unix(0, 0)}
	b := NewBreaker(BreakerSettings{
		Name: "slow", WindowSize: 10, MinVolume: 10,
		ErrorThreshold: 0.5, ResetTimeout: 30 * time.Second,
		CallTimeout: 10 * time.Millisecond, now: clock.now,
	})
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	for i := 0; i < 10; i++ {
		if err := b.Execute(context.Background(), slow); !errors.Is(err, context.DeadlineExceeded) {
			t.Fatalf("expected deadline exceeded, got %v", err)
		}
	}
	if got := b.State(); got != StateOpen {
		t.Fatalf("expected open after timeouts, got %s", got)
	}
}

func TestRegistryReturnsSameInstance(t *testing.T) {
	reg := NewRegistry(BreakerSettings{})
	a := reg.Get("gateway")
	b := reg.Get("gateway")
	if a != b {
		t.Fatal("expected one breaker instance per downstream")
	}
	if reg.Get("other") == a {
		t.Fatal("distinct downstreams must not share a breaker")
	}
}
