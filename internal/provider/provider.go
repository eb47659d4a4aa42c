// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package provider queries external book-data APIs and maps their
// payloads into the common candidate shape. Each client implements the
// same interface per the Strategy pattern; provider-specific field
// parsing never leaves this package.
package provider

import (
	"context"
	"errors"
	"fmt"

	"github.com/openshelf/openshelf/internal/guard"
	"github.com/openshelf/openshelf/internal/httputil"
	"github.com/openshelf/openshelf/pkg/types"
)

// Client searches a single external book-data source.
type Client interface {
	// Name returns the source tag applied to mapped candidates.
	Name() types.Source

	// Tiers returns the call tiers this client can attempt, in
	// fallback order.
	Tiers() []Tier

	// Search queries one tier and maps the payload into candidates.
	Search(ctx context.Context, q types.SearchQuery, tier Tier, limit, offset int) ([]types.CandidateResult, error)
}

// Tier is an ordered fallback level within one provider.
type Tier string

const (
	// TierAuthenticated is the credentialed primary call path.
	TierAuthenticated Tier = "authenticated"

	// TierFallback is the unauthenticated call path.
	TierFallback Tier = "fallback"
)

var (
	// ErrUpstream is returned for provider-side failures that are
	// neither auth nor rate-limit problems.
	ErrUpstream = errors.New("provider upstream error")

	// ErrAuth is returned when the authenticated tier is rejected or
	// cannot be attempted; the caller should fall back to the
	// unauthenticated tier.
	ErrAuth = errors.New("provider authentication failed")
)

// Classify maps a transport error into the search error taxonomy. An
// upstream 429 becomes the same rate-limited signal the guard emits,
// since both mean "try a cheaper tier now".
func Classify(err error) error {
	var se *httputil.StatusError
	if !errors.As(err, &se) {
		return err
	}
	switch se.Code {
	case 401, 403:
		return fmt.Errorf("%w: %v", ErrAuth, err)
	case 429:
		return fmt.Errorf("%w: %v", guard.ErrRateLimited, err)
	default:
		return fmt.Errorf("%w: %v", ErrUpstream, err)
	}
}
