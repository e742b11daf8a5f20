// Package resilience holds the call-guarding primitives shared by the
// services: a circuit breaker for external downstreams and a distributed
// rate limiter backed by a shared counter store.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the circuit breaker state machine position.
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// ErrOpen is returned immediately while the breaker is open; no call reaches
// the downstream.  Callers map it to a structured "service unavailable"
// response rather than propagating it raw.
var ErrOpen = errors.New("circuit breaker is open")

// BreakerSettings configures one breaker instance.  Zero values fall back to
// the documented defaults.
type BreakerSettings struct {
	Name           string
	WindowSize     int           // rolling window of last N outcomes (default 20)
	MinVolume      int           // minimum requests before the error rate is evaluated (default 10)
	ErrorThreshold float64       // error-rate fraction that trips the breaker (default 0.5)
	ResetTimeout   time.Duration // open duration before one trial call is allowed (default 30s)
	CallTimeout    time.Duration // per-call timeout; a timeout counts as a failure (default 8s)
	now            func() time.Time
}

func (s BreakerSettings) withDefaults() BreakerSettings {
	if s.WindowSize <= 0 {
		s.WindowSize = 20
	}
	if s.MinVolume <= 0 {
		s.MinVolume = 10
	}
	if s.ErrorThreshold <= 0 {
		s.ErrorThreshold = 0.5
	}
	if s.ResetTimeout <= 0 {
		s.ResetTimeout = 30 * time.Second
	}
	if s.CallTimeout <= 0 {
		s.CallTimeout = 8 * time.Second
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Breaker guards one downstream.  CLOSED records outcomes over a rolling
// window and trips to OPEN when the error rate over at least MinVolume
// requests exceeds ErrorThreshold.  OPEN short-circuits every call until
// ResetTimeout has elapsed, then admits exactly one trial call (HALF_OPEN);
// the trial's outcome decides between CLOSED and another OPEN period.
type Breaker struct {
	cfg BreakerSettings

	mu            sync.Mutex
	state         State
	window        []bool // true = failure
	idx           int
	filled        int
	openedAt      time.Time
	trialInFlight bool // a half-open trial call is in flight
}

// NewBreaker builds a breaker from settings, applying defaults.
func NewBreaker(cfg BreakerSettings) *Breaker {
	cfg = cfg.withDefaults()
	return &Breaker{cfg: cfg, window: make([]bool, cfg.WindowSize)}
}

// Name returns the downstream this breaker protects.
func (b *Breaker) Name() string { return b.cfg.Name }

// State returns the current state, advancing OPEN to HALF_OPEN when the
// reset timeout has elapsed.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stateLocked()
}

func (b *Breaker) stateLocked() State {
	if b.state == StateOpen && b.cfg.now().Sub(b.openedAt) >= b.cfg.ResetTimeout {
		b.state = StateHalfOpen
		b.trialInFlight = false
	}
	return b.state
}

// Execute runs fn under the breaker with the configured call timeout.
// While OPEN it returns ErrOpen without invoking fn.  In HALF_OPEN only a
// single trial call is admitted; concurrent callers get ErrOpen.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.admit(); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, b.cfg.CallTimeout)
	defer cancel()

	err := fn(callCtx)
	// A timed-out call is a downstream failure for the error-rate math.
	failed := err != nil
	b.record(failed)
	return err
}

func (b *Breaker) admit() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.stateLocked() {
	case StateOpen:
		return ErrOpen
	case StateHalfOpen:
		if b.trialInFlight {
			return ErrOpen
		}
		b.trialInFlight = true
	}
	return nil
}

func (b *Breaker) record(failed bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.trialInFlight = false
		if failed {
			b.trip()
			return
		}
		b.reset()
		return
	case StateOpen:
		// A call admitted just before the breaker tripped; its outcome no
		// longer matters.
		return
	}

	b.window[b.idx] = failed
	b.idx = (b.idx + 1) % len(b.window)
	if b.filled < len(b.window) {
		b.filled++
	}
	if b.filled < b.cfg.MinVolume {
		return
	}
	failures := 0
	for i := 0; i < b.filled; i++ {
		if b.window[i] {
			failures++
		}
	}
	if float64(failures)/float64(b.filled) > b.cfg.ErrorThreshold {
		b.trip()
	}
}

func (b *Breaker) trip() {
	b.state = StateOpen
	b.openedAt = b.cfg.now()
	b.trialInFlight = false
}

func (b *Breaker) reset() {
	b.state = StateClosed
	b.idx = 0
	b.filled = 0
	for i := range b.window {
		b.window[i] = false
	}
}
