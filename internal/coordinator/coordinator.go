// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package coordinator sequences local lookup, gap assessment, provider
// fan-out, merge, and realtime publication for one search request. The
// synchronous phase never waits on external providers; late provider
// results reach subscribers through the realtime hub.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/openshelf/openshelf/internal/dedup"
	"github.com/openshelf/openshelf/internal/guard"
	"github.com/openshelf/openshelf/internal/provider"
	"github.com/openshelf/openshelf/internal/query"
	"github.com/openshelf/openshelf/internal/realtime"
	"github.com/openshelf/openshelf/pkg/types"
)

// Store is the authoritative local lookup. Its failure is fatal to a
// request; there is no meaningful search without it.
type Store interface {
	Search(ctx context.Context, normalized string, f types.Filters, limit int) ([]types.CandidateResult, error)
}

// Request is one incoming search.
type Request struct {
	Query   string
	Filters types.Filters

	// Session identifies the logical caller session. A newer request in
	// the same session supersedes older unfinished fan-outs: their late
	// results are discarded, not merged, not published. Empty means no
	// supersession tracking.
	Session string
}

// Coordinator owns the synchronous request/response contract and the
// asynchronous provider continuation for every search.
type Coordinator struct {
	store     Store
	providers []provider.Client // fan-out order; index 0 is the primary
	guards    *guard.Registry
	hub       *realtime.Hub
	cfg       types.SearchConfig
	log       *slog.Logger

	// flight coalesces concurrent fan-outs for the identical query hash
	// into a single provider pass; their subscribers share the topic
	// anyway.
	flight singleflight.Group

	genMu       sync.Mutex
	generations map[string]uint64
}

// New creates a coordinator. The provider slice order is the cross-
// provider fill order when the local store returns zero matches.
func New(store Store, providers []provider.Client, guards *guard.Registry, hub *realtime.Hub, cfg types.SearchConfig, log *slog.Logger) *Coordinator {
	if cfg.DesiredTotal <= 0 {
		cfg.DesiredTotal = 12
	}
	if cfg.CoverGapRatio <= 0 {
		cfg.CoverGapRatio = 0.4
	}
	if cfg.CoverGapMax <= 0 {
		cfg.CoverGapMax = 10
	}
	if log == nil {
		log = slog.Default()
	}
	return &Coordinator{
		store:       store,
		providers:   providers,
		guards:      guards,
		hub:         hub,
		cfg:         cfg,
		log:         log,
		generations: make(map[string]uint64),
	}
}

// Search runs the synchronous phase — planning and local lookup — and
// returns immediately with the local result set and its query hash.
// When the page needs quantity or cover-quality augmentation and the
// external fallback is enabled, provider fan-out continues in the
// background and pushes deltas through the realtime hub.
//
// Provider failures never surface here; the only caller-visible error
// is local-store unavailability.
func (c *Coordinator) Search(ctx context.Context, req Request) (types.ResultSet, error) {
	q := query.Plan(req.Query, req.Filters)
	gen := c.nextGeneration(req.Session)

	local, err := c.store.Search(ctx, q.Normalized, q.Filters, c.cfg.DesiredTotal+1)
	if err != nil {
		return types.ResultSet{}, fmt.Errorf("local store: %w", err)
	}
	hasMore := len(local) > c.cfg.DesiredTotal
	if hasMore {
		local = local[:c.cfg.DesiredTotal]
	}

	rs := dedup.Merge(types.ResultSet{QueryHash: q.Hash}, local, c.cfg.DesiredTotal)
	rs.HasMore = hasMore
	rs.NextOffset = len(rs.Results)

	needed := c.cfg.DesiredTotal - len(rs.Results)
	coverCap := 0
	if needed <= 0 && c.coverGap(rs.Results) {
		// Quality correction, capped independently of the numeric gap.
		coverCap = c.cfg.CoverGapMax
	}

	if !c.cfg.ExternalFallback || len(c.providers) == 0 || (needed <= 0 && coverCap == 0) {
		return rs, nil
	}

	limit := len(rs.Results) + max(needed, 0) + coverCap
	go func() {
		c.flight.Do(q.Hash, func() (any, error) {
			c.fanOut(context.Background(), q, rs, limit, req.Session, gen)
			return nil, nil
		})
	}()

	return rs, nil
}

// nextGeneration advances the session's generation token. Every request
// in a session advances it, so an older fan-out becomes stale even when
// the newer request needed no fan-out of its own.
func (c *Coordinator) nextGeneration(session string) uint64 {
	if session == "" {
		return 0
	}
	c.genMu.Lock()
	defer c.genMu.Unlock()
	c.generations[session]++
	return c.generations[session]
}

// stale reports whether gen has been superseded by a newer request in
// the same session.
func (c *Coordinator) stale(session string, gen uint64) bool {
	if session == "" {
		return false
	}
	c.genMu.Lock()
	defer c.genMu.Unlock()
	return c.generations[session] != gen
}

// coverGap reports whether the first page carries too many placeholder
// covers to ship without an augmentation pass.
func (c *Coordinator) coverGap(results []types.CandidateResult) bool {
	if len(results) == 0 {
		return false
	}
	missing := 0
	for _, r := range results {
		if !r.HasCover() {
			missing++
		}
	}
	return float64(missing)/float64(len(results)) > c.cfg.CoverGapRatio
}

// fanOut runs the streaming phase on its own context, detached from
// the originating request's lifetime.
//
// The terminal complete event is published even when the flight went
// stale: singleflight may have coalesced another session's identical
// query into this flight, and that session's subscribers need the
// topic closed. Staleness suppresses results, not the terminal event.
func (c *Coordinator) fanOut(ctx context.Context, q types.SearchQuery, base types.ResultSet, limit int, session string, gen uint64) {
	defer c.hub.PublishProgress(q.Hash, realtime.EventComplete, "", "", true, "")

	if c.stale(session, gen) {
		return
	}
	c.hub.PublishProgress(q.Hash, realtime.EventStarting, "", "", false, "")

	if len(base.Results) == 0 {
		c.fillSequential(ctx, q, base, limit, session, gen)
	} else {
		c.fillParallel(ctx, q, base, limit, session, gen)
	}
}

// fillSequential handles the zero-local-results rule: the primary
// provider is attempted first and fills as many slots as it can; each
// later provider is only asked for slots still unfilled, never
// redundantly.
func (c *Coordinator) fillSequential(ctx context.Context, q types.SearchQuery, base types.ResultSet, limit int, session string, gen uint64) {
	current := base
	for _, p := range c.providers {
		if c.stale(session, gen) {
			return
		}
		remaining := limit - len(current.Results)
		if remaining <= 0 {
			return
		}

		cands, err := c.callTiered(ctx, q, p, remaining)
		if err != nil {
			continue // isolated: the next provider is unaffected
		}

		merged := dedup.Merge(current, cands, limit)
		delta := merged.Results[len(current.Results):]
		current = merged
		if len(delta) > 0 && !c.stale(session, gen) {
			c.hub.PublishCandidates(q.Hash, delta)
		}
	}
}

// fillParallel fans out to every provider at once and folds their
// batches into the running set as they arrive. The channel receive
// loop is the single writer over the shared ResultSet, so concurrent
// completions cannot lose updates.
func (c *Coordinator) fillParallel(ctx context.Context, q types.SearchQuery, base types.ResultSet, limit int, session string, gen uint64) {
	type outcome struct {
		source types.Source
		cands  []types.CandidateResult
		err    error
	}

	perCall := limit - len(base.Results)
	ch := make(chan outcome, len(c.providers))
	var wg sync.WaitGroup

	for _, p := range c.providers {
		wg.Add(1)
		go func(p provider.Client) {
			defer wg.Done()
			cands, err := c.callTiered(ctx, q, p, perCall)
			ch <- outcome{source: p.Name(), cands: cands, err: err}
		}(p)
	}

	go func() {
		wg.Wait()
		close(ch)
	}()

	current := base
	for o := range ch {
		if o.err != nil {
			continue
		}
		if c.stale(session, gen) {
			continue // drain remaining outcomes, publish nothing
		}
		merged := dedup.Merge(current, o.cands, limit)
		delta := merged.Results[len(current.Results):]
		current = merged
		if len(delta) > 0 {
			c.hub.PublishCandidates(q.Hash, delta)
		}
	}
}

// callTiered walks one provider's fallback ladder: authenticated call,
// then the unauthenticated call, then abandonment. Every tier is
// wrapped by its own process-wide guard.
func (c *Coordinator) callTiered(ctx context.Context, q types.SearchQuery, p provider.Client, limit int) ([]types.CandidateResult, error) {
	tiers := p.Tiers()
	var lastErr error

	for i, tier := range tiers {
		g := c.guards.For(p.Name(), string(tier))
		c.hub.PublishProgress(q.Hash, realtime.EventProviderAttempt, p.Name(), string(tier), false, "")

		var cands []types.CandidateResult
		err := g.Do(ctx, func(callCtx context.Context) error {
			var searchErr error
			cands, searchErr = p.Search(callCtx, q, tier, limit, 0)
			return searchErr
		})
		if err == nil {
			c.hub.PublishProgress(q.Hash, realtime.EventProviderSuccess, p.Name(), string(tier), true, "")
			return cands, nil
		}

		lastErr = err
		c.hub.PublishProgress(q.Hash, realtime.EventProviderFailure, p.Name(), string(tier), i == len(tiers)-1, reason(err))
		c.log.Warn("provider tier failed",
			"guard", g.Name(), "reason", reason(err), "error", err)
	}
	return nil, lastErr
}

// reason classifies a failure for progress events and logs. A
// circuit-open rejection is distinguished from a genuine upstream
// failure for diagnostics but treated identically for fallback.
func reason(err error) string {
	switch {
	case errors.Is(err, guard.ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, guard.ErrRateLimited):
		return "rate_limited"
	case errors.Is(err, guard.ErrTimeout):
		return "timeout"
	case errors.Is(err, provider.ErrAuth):
		return "auth"
	default:
		return "upstream"
	}
}
