package resilience

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/roadworthy/inspection-platform/internal/config"
)

func bookingTier() config.TierConfig {
	return config.TierConfig{Name: "booking", Limit: 20, Window: time.Minute}
}

func TestLimiterAllowsUpToLimit(t *testing.T) {
	store := NewMemoryCounterStore()
	l := NewLimiter(store, "rl")
	tier := bookingTier()

	for i := 0; i < tier.Limit; i++ {
		d, err := l.Allow(context.Background(), tier, "cust-1")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !d.Allowed {
			t.Fatalf("request %d rejected below the limit", i+1)
		}
		if d.Remaining != tier.Limit-i-1 {
			t.Fatalf("request %d: remaining = %d, want %d", i+1, d.Remaining, tier.Limit-i-1)
		}
	}
	d, err := l.Allow(context.Background(), tier, "cust-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Allowed {
		t.Fatal("request over the limit was allowed")
	}
	if d.RetryAfter <= 0 {
		t.Fatal("rejection must carry the remaining wait")
	}
}

func TestLimiterIsolatesIdentifiersAndTiers(t *testing.T) {
	l := NewLimiter(NewMemoryCounterStore(), "rl")
	tier := bookingTier()
	for i := 0; i < tier.Limit; i++ {
		if d, _ := l.Allow(context.Background(), tier, "cust-1"); !d.Allowed {
			t.Fatal("warm-up rejected")
		}
	}
	if d, _ := l.Allow(context.Background(), tier, "cust-2"); !d.Allowed {
		t.Fatal("second identifier shares the first's budget")
	}
	read := config.TierConfig{Name: "read", Limit: 200, Window: time.Minute}
	if d, _ := l.Allow(context.Background(), read, "cust-1"); !d.Allowed {
		t.Fatal("tiers must have independent budgets")
	}
}

// Three limiter instances sharing one counter store behave as one limiter:
// exactly limit requests succeed regardless of which instance served each.
func TestLimiterGlobalEnforcementAcrossInstances(t *testing.T) {
	store := NewMemoryCounterStore()
	instances := []*Limiter{
		NewLimiter(store, "rl"),
		NewLimiter(store, "rl"),
		NewLimiter(store, "rl"),
	}
	tier := config.TierConfig{Name: "payment", Limit: 10, Window: time.Minute}

	const total = 60
	var allowed, rejected int64
	var wg sync.WaitGroup
	for i := 0; i < total; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := instances[i%len(instances)].Allow(context.Background(), tier, "shared-key")
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if d.Allowed {
				atomic.AddInt64(&allowed, 1)
			} else {
				atomic.AddInt64(&rejected, 1)
			}
		}(i)
	}
	wg.Wait()

	if allowed != int64(tier.Limit) {
		t.Fatalf("allowed = %d, want exactly %d", allowed, tier.Limit)
	}
	if rejected != total-int64(tier.Limit) {
		t.Fatalf("rejected = %d, want %d", rejected, total-int64(tier.Limit))
	}
}

func TestLimiterWindowResets(t *testing.T) {
	store := NewMemoryCounterStore()
	now := time.Unix(1000, 0)
	store.now = func() time.Time { return now }
	l := NewLimiter(store, "rl")
	tier := config.TierConfig{Name: "payment", Limit: 2, Window: time.Minute}

	for i := 0; i < 2; i++ {
		if d, _ := l.Allow(context.Background(), tier, "k"); !d.Allowed {
			t.Fatal("warm-up rejected")
		}
	}
	if d, _ := l.Allow(context.Background(), tier, "k"); d.Allowed {
		t.Fatal("over-limit allowed")
	}
	now = now.Add(61 * time.Second)
	if d, _ := l.Allow(context.Background(), tier, "k"); !d.Allowed {
		t.Fatal("expected fresh window after TTL expiry")
	}
}

func TestLimiterAuthLockout(t *testing.T) {
	store := NewMemoryCounterStore()
	now := time.Unix(1000, 0)
	store.now = func() time.Time { return now }
	l := NewLimiter(store, "rl")
	auth := config.TierConfig{Name: "auth", Limit: 5, Window: time.Minute, Lockout: 5 * time.Minute}

	for i := 0; i < 5; i++ {
		if d, _ := l.Allow(context.Background(), auth, "attacker"); !d.Allowed {
			t.Fatal("warm-up rejected")
		}
	}
	d, _ := l.Allow(context.Background(), auth, "attacker")
	if d.Allowed {
		t.Fatal("sixth attempt allowed")
	}
	if d.RetryAfter < 4*time.Minute {
		t.Fatalf("lockout not applied, retry after %s", d.RetryAfter)
	}
	// Still locked out after the base window would have expired.
	now = now.Add(2 * time.Minute)
	if d, _ := l.Allow(context.Background(), auth, "attacker"); d.Allowed {
		t.Fatal("expected lockout to outlive the base window")
	}
}
