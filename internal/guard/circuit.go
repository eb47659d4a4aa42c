// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package guard wraps provider call paths with a circuit breaker, a
// token-bucket rate limiter, and a hard timeout. One guard exists per
// (provider, tier) pair and lives for the whole process.
package guard

import (
	"errors"
	"sync"
	"time"

	"github.com/openshelf/openshelf/pkg/types"
)

var (
	// ErrCircuitOpen is returned when the circuit is open and the call
	// was rejected without any network attempt.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrRateLimited is returned when the token bucket rejects a call.
	// Rate-limit rejections are not circuit failures, so callers can
	// immediately try a cheaper tier.
	ErrRateLimited = errors.New("rate limited")

	// ErrTimeout is returned when a call exceeds the guard's hard
	// deadline. Timeouts count as circuit failures.
	ErrTimeout = errors.New("call timed out")
)

// State represents the circuit breaker state.
type State int

const (
	// StateClosed means calls are allowed.
	StateClosed State = iota
	// StateOpen means calls are rejected until the cooldown elapses.
	StateOpen
	// StateHalfOpen means a bounded number of trial calls are allowed.
	StateHalfOpen
)

// String returns a string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// now is stubbed in tests.
var now = time.Now

// Breaker is a rolling-window circuit breaker. It opens when the
// failure ratio over the last window outcomes reaches the configured
// threshold, rejects calls for a cooldown, then admits a bounded probe
// batch; one probe failure reopens it, a full batch of successes
// closes it.
type Breaker struct {
	window     int
	minSamples int
	ratio      float64
	cooldown   time.Duration
	probeQuota int

	mu        sync.Mutex
	state     State
	outcomes  []bool // ring of recent outcomes, true = failure
	next      int
	filled    int
	failures  int
	openUntil time.Time

	probesIssued int
	probesOK     int
}

// NewBreaker creates a breaker from cfg, applying defaults for zero
// values.
func NewBreaker(cfg types.GuardConfig) *Breaker {
	window := cfg.Window
	if window <= 0 {
		window = 20
	}
	minSamples := cfg.MinSamples
	if minSamples <= 0 {
		minSamples = 5
	}
	ratio := cfg.FailureRatio
	if ratio <= 0 {
		ratio = 0.5
	}
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = 30 * time.Second
	}
	probes := cfg.HalfOpenProbes
	if probes <= 0 {
		probes = 2
	}

	return &Breaker{
		window:     window,
		minSamples: minSamples,
		ratio:      ratio,
		cooldown:   cooldown,
		probeQuota: probes,
		outcomes:   make([]bool, window),
	}
}

// Allow reports whether a call may proceed. An open circuit whose
// cooldown has elapsed transitions to half-open and admits the caller
// as a probe.
func (b *Breaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		return nil
	case StateOpen:
		if now().Before(b.openUntil) {
			return ErrCircuitOpen
		}
		b.state = StateHalfOpen
		b.probesIssued = 1
		b.probesOK = 0
		return nil
	default: // StateHalfOpen
		if b.probesIssued >= b.probeQuota {
			return ErrCircuitOpen
		}
		b.probesIssued++
		return nil
	}
}

// RecordSuccess notes a successful call.
func (b *Breaker) RecordSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.probesOK++
		if b.probesOK >= b.probeQuota {
			b.reset()
		}
	case StateClosed:
		b.push(false)
	}
}

// RecordFailure notes a failed call. A half-open failure reopens the
// circuit with a fresh cooldown.
func (b *Breaker) RecordFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateHalfOpen:
		b.trip()
	case StateClosed:
		b.push(true)
		if b.filled >= b.minSamples && float64(b.failures)/float64(b.filled) >= b.ratio {
			b.trip()
		}
	}
}

// State returns the current circuit state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// push records one outcome in the ring. Callers hold b.mu.
func (b *Breaker) push(failure bool) {
	if b.filled == b.window && b.outcomes[b.next] {
		b.failures--
	}
	b.outcomes[b.next] = failure
	b.next = (b.next + 1) % b.window
	if b.filled < b.window {
		b.filled++
	}
	if failure {
		b.failures++
	}
}

// trip opens the circuit. Callers hold b.mu.
func (b *Breaker) trip() {
	b.state = StateOpen
	b.openUntil = now().Add(b.cooldown)
}

// reset closes the circuit and clears the rolling window. Callers hold
// b.mu.
func (b *Breaker) reset() {
	b.state = StateClosed
	b.next = 0
	b.filled = 0
	b.failures = 0
	for i := range b.outcomes {
		b.outcomes[i] = false
	}
}
