// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package guard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openshelf/openshelf/pkg/types"
)

// fakeClock replaces the package clock so cooldowns elapse on demand.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func withFakeClock(t *testing.T) *fakeClock {
	t.Helper()
	clock := &fakeClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	prev := now
	now = clock.now
	t.Cleanup(func() { now = prev })
	return clock
}

func testGuardConfig() types.GuardConfig {
	return types.GuardConfig{
		Window:         10,
		MinSamples:     4,
		FailureRatio:   0.5,
		Cooldown:       30 * time.Second,
		HalfOpenProbes: 1,
		Timeout:        time.Second,
	}
}

func TestBreakerLifecycle(t *testing.T) {
	clock := withFakeClock(t)
	b := NewBreaker(testGuardConfig())

	// Consecutive failures past the window ratio open the circuit.
	for i := 0; i < 4; i++ {
		require.NoError(t, b.Allow())
		b.RecordFailure()
	}
	assert.Equal(t, StateOpen, b.State())

	// Before the cooldown every call is rejected without an attempt.
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)

	// After the cooldown one probe is admitted; a single success (probe
	// quota 1) closes the circuit and resets the failure window.
	clock.advance(31 * time.Second)
	require.NoError(t, b.Allow())
	assert.Equal(t, StateHalfOpen, b.State())
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := withFakeClock(t)
	b := NewBreaker(testGuardConfig())

	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	require.Equal(t, StateOpen, b.State())

	clock.advance(31 * time.Second)
	require.NoError(t, b.Allow())
	b.RecordFailure()
	assert.Equal(t, StateOpen, b.State())

	// Fresh cooldown: still rejected right away.
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen)
}

func TestBreakerHalfOpenProbeQuota(t *testing.T) {
	clock := withFakeClock(t)
	cfg := testGuardConfig()
	cfg.HalfOpenProbes = 2
	b := NewBreaker(cfg)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	clock.advance(31 * time.Second)

	require.NoError(t, b.Allow())
	require.NoError(t, b.Allow())
	assert.ErrorIs(t, b.Allow(), ErrCircuitOpen, "probe quota exhausted")

	// Both probes must succeed before the circuit closes.
	b.RecordSuccess()
	assert.Equal(t, StateHalfOpen, b.State())
	b.RecordSuccess()
	assert.Equal(t, StateClosed, b.State())
}

func TestBreakerSuccessesKeepCircuitClosed(t *testing.T) {
	withFakeClock(t)
	b := NewBreaker(testGuardConfig())

	// Failure ratio stays below 0.5 across the rolling window.
	for i := 0; i < 20; i++ {
		b.RecordSuccess()
		b.RecordSuccess()
		b.RecordSuccess()
		b.RecordFailure()
	}
	assert.Equal(t, StateClosed, b.State())
}

func TestTokenBucketRejectsBeyondBurst(t *testing.T) {
	clock := withFakeClock(t)
	b := newTokenBucket(1, 2)

	assert.True(t, b.allow())
	assert.True(t, b.allow())
	assert.False(t, b.allow(), "burst exhausted")

	clock.advance(time.Second)
	assert.True(t, b.allow(), "one token refilled")
	assert.False(t, b.allow())
}

func TestTokenBucketDisabled(t *testing.T) {
	withFakeClock(t)
	b := newTokenBucket(0, 1)
	for i := 0; i < 100; i++ {
		assert.True(t, b.allow())
	}
}

func TestGuardRateLimitIsNotACircuitFailure(t *testing.T) {
	withFakeClock(t)
	cfg := testGuardConfig()
	cfg.Rate = 0.001
	cfg.Burst = 1
	g := New("test/authenticated", cfg)

	require.NoError(t, g.Do(context.Background(), func(context.Context) error { return nil }))

	// Everything past the burst is rejected with the rate-limit signal
	// and leaves the circuit closed.
	for i := 0; i < 10; i++ {
		err := g.Do(context.Background(), func(context.Context) error { return nil })
		assert.ErrorIs(t, err, ErrRateLimited)
	}
	assert.Equal(t, StateClosed, g.State())
}

func TestGuardTimeoutCountsAsFailure(t *testing.T) {
	cfg := testGuardConfig()
	cfg.Timeout = 5 * time.Millisecond
	cfg.MinSamples = 1
	cfg.Window = 1
	g := New("test/fallback", cfg)

	err := g.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, StateOpen, g.State())
}

func TestGuardOpenCircuitSkipsCall(t *testing.T) {
	withFakeClock(t)
	cfg := testGuardConfig()
	cfg.MinSamples = 1
	cfg.Window = 1
	g := New("test/fallback", cfg)

	upstream := errors.New("upstream boom")
	require.ErrorIs(t, g.Do(context.Background(), func(context.Context) error { return upstream }), upstream)

	called := false
	err := g.Do(context.Background(), func(context.Context) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open circuit must not attempt the call")
}

func TestGuardBypass(t *testing.T) {
	withFakeClock(t)
	cfg := testGuardConfig()
	cfg.Rate = 0.001
	cfg.Burst = 1
	cfg.Bypass = true
	g := New("test/bypass", cfg)

	for i := 0; i < 10; i++ {
		assert.NoError(t, g.Do(context.Background(), func(context.Context) error { return nil }))
	}
}

func TestRegistrySharesGuardsPerProviderTier(t *testing.T) {
	r := NewRegistry(testGuardConfig())

	a := r.For(types.SourceOpenLibrary, "fallback")
	b := r.For(types.SourceOpenLibrary, "fallback")
	c := r.For(types.SourceOpenLibrary, "authenticated")

	assert.Same(t, a, b)
	assert.NotSame(t, a, c)

	assert.Equal(t, "openlibrary/fallback", a.Name())
	assert.Equal(t, "openlibrary/authenticated", c.Name())
}
