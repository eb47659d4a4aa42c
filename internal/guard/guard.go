// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package guard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/openshelf/openshelf/pkg/types"
)

// Guard wraps one (provider, tier) call path. Admission order: the
// token bucket first, since "we are calling too fast" must not count
// against the circuit, then the breaker, then the timeout-bounded call.
type Guard struct {
	name    string
	breaker *Breaker
	bucket  *tokenBucket
	timeout time.Duration
	bypass  bool
}

// New creates a guard named name from cfg.
func New(name string, cfg types.GuardConfig) *Guard {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Guard{
		name:    name,
		breaker: NewBreaker(cfg),
		bucket:  newTokenBucket(cfg.Rate, cfg.Burst),
		timeout: timeout,
		bypass:  cfg.Bypass,
	}
}

// Name returns the guard's identifier.
func (g *Guard) Name() string { return g.name }

// State returns the current circuit state.
func (g *Guard) State() State { return g.breaker.State() }

// Do runs fn under the guard's admission controls. A rate-limit or
// circuit-open rejection returns before fn is invoked. Timeouts are
// surfaced as ErrTimeout and recorded as circuit failures; any other
// fn error is recorded as a failure and returned unchanged.
func (g *Guard) Do(ctx context.Context, fn func(context.Context) error) error {
	if g.bypass {
		return fn(ctx)
	}

	if !g.bucket.allow() {
		return fmt.Errorf("%s: %w", g.name, ErrRateLimited)
	}
	if err := g.breaker.Allow(); err != nil {
		return fmt.Errorf("%s: %w", g.name, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	err := fn(callCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%s after %v: %w", g.name, g.timeout, ErrTimeout)
		}
		g.breaker.RecordFailure()
		return err
	}

	g.breaker.RecordSuccess()
	return nil
}

// Registry holds the process-wide guard per (provider, tier) pair.
// Guards are created lazily and shared across all concurrent queries,
// so circuit state outlives any single request.
type Registry struct {
	cfg types.GuardConfig

	mu     sync.RWMutex
	guards map[string]*Guard
}

// NewRegistry creates a registry applying cfg to every guard it mints.
func NewRegistry(cfg types.GuardConfig) *Registry {
	return &Registry{
		cfg:    cfg,
		guards: make(map[string]*Guard),
	}
}

// For returns the guard for the given provider and tier, creating it
// on first use.
func (r *Registry) For(source types.Source, tier string) *Guard {
	key := string(source) + "/" + tier

	r.mu.RLock()
	g, ok := r.guards[key]
	r.mu.RUnlock()
	if ok {
		return g
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.guards[key]; ok {
		return g
	}
	g = New(key, r.cfg)
	r.guards[key] = g
	return g
}
