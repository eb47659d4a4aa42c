// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package guard

import (
	"sync"
	"time"
)

// tokenBucket admits calls at a fixed refill rate with a burst
// capacity. Calls that would exceed the rate are rejected, not queued.
// A zero or negative rate disables limiting.
type tokenBucket struct {
	mu     sync.Mutex
	rate   float64 // tokens per second
	burst  float64
	tokens float64
	last   time.Time
}

func newTokenBucket(rate float64, burst int) *tokenBucket {
	if burst <= 0 {
		burst = 5
	}
	return &tokenBucket{
		rate:   rate,
		burst:  float64(burst),
		tokens: float64(burst),
		last:   now(),
	}
}

// allow consumes one token when available.
func (b *tokenBucket) allow() bool {
	if b.rate <= 0 {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t := now()
	elapsed := t.Sub(b.last).Seconds()
	b.tokens = min(b.burst, b.tokens+elapsed*b.rate)
	b.last = t

	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}
