package resilience

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/roadworthy/inspection-platform/internal/config"
)

// CounterStore is the shared counter behind the fixed-window limiter.  The
// production implementation lives in Redis so that every instance of a
// service sees the same counts; an in-memory implementation backs tests.
type CounterStore interface {
	// Incr bumps the counter for key, creating it with the window TTL on
	// first touch.  When lockout > 0 and the incremented count has exceeded
	// limit, the TTL is extended to lockout (the auth-tier penalty).  It
	// returns the post-increment count and the remaining window duration.
	Incr(ctx context.Context, key string, window, lockout time.Duration, limit int) (count int64, resetAfter time.Duration, err error)
}

// Decision is the outcome of a limiter check.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration // how long the caller must wait when rejected
	ResetAfter time.Duration // when the current window expires
}

// Limiter implements a fixed-window rate limit keyed by {tier, identifier}.
// Window reset comes from the counter's own TTL; there is no sweeper.
type Limiter struct {
	store  CounterStore
	prefix string
}

// NewLimiter builds a limiter over the given store.  prefix namespaces the
// keys (default "rl").
func NewLimiter(store CounterStore, prefix string) *Limiter {
	if prefix == "" {
		prefix = "rl"
	}
	return &Limiter{store: store, prefix: prefix}
}

// Allow consumes one request from the tier's budget for the identifier.
func (l *Limiter) Allow(ctx context.Context, tier config.TierConfig, identifier string) (Decision, error) {
	key := fmt.Sprintf("%s:%s:%s", l.prefix, tier.Name, identifier)
	count, resetAfter, err := l.store.Incr(ctx, key, tier.Window, tier.Lockout, tier.Limit)
	if err != nil {
		return Decision{}, err
	}
	d := Decision{
		Allowed:    count <= int64(tier.Limit),
		Limit:      tier.Limit,
		Remaining:  int(math.Max(0, float64(int64(tier.Limit)-count))),
		ResetAfter: resetAfter,
	}
	if !d.Allowed {
		d.RetryAfter = resetAfter
	}
	return d, nil
}

// fixedWindowScript increments the window counter atomically.  The EXPIRE is
// only set when the key is created, so the window boundary is stable no
// matter which instance touched it first; exceeding the limit with a
// non-zero lockout pushes the expiry out to the lockout duration.
var fixedWindowScript = redis.NewScript(`
    local count = redis.call('INCR', KEYS[1])
    if count == 1 then
        redis.call('PEXPIRE', KEYS[1], ARGV[1])
    end
    local limit = tonumber(ARGV[3])
    local lockout_ms = tonumber(ARGV[2])
    if lockout_ms > 0 and count > limit then
        redis.call('PEXPIRE', KEYS[1], lockout_ms)
    end
    local ttl = redis.call('PTTL', KEYS[1])
    if ttl < 0 then ttl = tonumber(ARGV[1]) end
    return { count, ttl }
`)

// RedisCounterStore runs the fixed-window script against a shared Redis.
type RedisCounterStore struct {
	rdb *redis.Client
}

// NewRedisCounterStore wraps an existing client.
func NewRedisCounterStore(rdb *redis.Client) *RedisCounterStore {
	return &RedisCounterStore{rdb: rdb}
}

// Incr implements CounterStore.
func (s *RedisCounterStore) Incr(ctx context.Context, key string, window, lockout time.Duration, limit int) (int64, time.Duration, error) {
	vals, err := fixedWindowScript.Run(ctx, s.rdb, []string{key},
		window.Milliseconds(), lockout.Milliseconds(), limit).Result()
	if err != nil {
		return 0, 0, err
	}
	arr, ok := vals.([]interface{})
	if !ok || len(arr) != 2 {
		return 0, 0, fmt.Errorf("unexpected limiter script result: %#v", vals)
	}
	return asInt64(arr[0]), time.Duration(asInt64(arr[1])) * time.Millisecond, nil
}

func asInt64(v interface{}) int64 {
	switch t := v.(type) {
	case int64:
		return t
	case int32:
		return int64(t)
	case int:
		return int64(t)
	case float64:
		return int64(t)
	case string:
		if n, err := strconv.ParseInt(t, 10, 64); err == nil {
			return n
		}
	}
	return 0
}

// MemoryCounterStore is an in-process CounterStore used by tests and by
// local development without Redis.  It mirrors the script's semantics,
// including the lockout extension.
type MemoryCounterStore struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]*memoryWindow
}

type memoryWindow struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryCounterStore builds an empty in-memory store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{now: time.Now, entries: make(map[string]*memoryWindow)}
}

// Incr implements CounterStore.
func (s *MemoryCounterStore) Incr(_ context.Context, key string, window, lockout time.Duration, limit int) (int64, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	e, ok := s.entries[key]
	if !ok || !e.expiresAt.After(now) {
		e = &memoryWindow{expiresAt: now.Add(window)}
		s.entries[key] = e
	}
	e.count++
	if lockout > 0 && e.count > int64(limit) {
		e.expiresAt = now.Add(lockout)
	}
	return e.count, e.expiresAt.Sub(now), nil
}
