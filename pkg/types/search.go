// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines shared data structures for the openshelf search service.
package types

import "time"

// Source identifies where a candidate result came from.
type Source string

const (
	// SourceLocal marks results served from the local catalog.
	SourceLocal Source = "local"

	// SourceOpenLibrary marks results mapped from the Open Library API.
	SourceOpenLibrary Source = "openlibrary"

	// SourceGoogleBooks marks results mapped from the Google Books API.
	SourceGoogleBooks Source = "googlebooks"
)

// Intent classifies a free-text query.
type Intent string

const (
	// IntentGeneral is the default intent for keyword and title queries.
	IntentGeneral Intent = "general"

	// IntentAuthor marks queries that look like a person's name. Provider
	// calls wrap these in an author-field operator; local catalog queries
	// are unaffected.
	IntentAuthor Intent = "author"
)

// OrderBy selects the result ordering requested by the caller.
type OrderBy string

const (
	OrderRelevance OrderBy = "relevance"
	OrderNewest    OrderBy = "newest"
	OrderTitle     OrderBy = "title"
)

// Filters holds the optional constraints attached to a search.
type Filters struct {
	// PublishedYear restricts results to a single publication year.
	// Zero means no restriction.
	PublishedYear int `json:"published_year,omitempty" yaml:"published_year,omitempty"`

	// OrderBy selects the result ordering. Unsupported values are
	// normalized to OrderRelevance rather than rejected.
	OrderBy OrderBy `json:"order_by,omitempty" yaml:"order_by,omitempty"`

	// PreferCovers biases cross-source ordering toward results with a
	// usable cover image.
	PreferCovers bool `json:"prefer_covers,omitempty" yaml:"prefer_covers,omitempty"`
}

// SearchQuery is the planned form of one incoming request. Immutable
// once constructed.
type SearchQuery struct {
	// Raw is the user text with original casing, trimmed.
	Raw string `json:"raw" yaml:"raw"`

	// Normalized is the lowercased, whitespace-collapsed form used for
	// hashing and local catalog matching only.
	Normalized string `json:"normalized" yaml:"normalized"`

	// Intent is the detected query intent.
	Intent Intent `json:"intent" yaml:"intent"`

	// Filters are the normalized request filters.
	Filters Filters `json:"filters" yaml:"filters"`

	// Hash is the deterministic subscription key derived from the
	// normalized query plus filters. Same inputs always produce the
	// same hash, across process restarts.
	Hash string `json:"hash" yaml:"hash"`
}

// CandidateResult is one book match from any source, pre-deduplication.
type CandidateResult struct {
	// LocalID is the canonical catalog id when the candidate is already
	// matched to a known local record.
	LocalID string `json:"local_id,omitempty" yaml:"local_id,omitempty"`

	// ProviderID is the provider-specific external id (Open Library work
	// key, Google Books volume id).
	ProviderID string `json:"provider_id,omitempty" yaml:"provider_id,omitempty"`

	ISBN10 string `json:"isbn10,omitempty" yaml:"isbn10,omitempty"`
	ISBN13 string `json:"isbn13,omitempty" yaml:"isbn13,omitempty"`

	// Slug is the URL-safe identifier used by page rendering.
	Slug string `json:"slug,omitempty" yaml:"slug,omitempty"`

	Title   string   `json:"title" yaml:"title"`
	Authors []string `json:"authors,omitempty" yaml:"authors,omitempty"`

	// Source identifies which backend produced this candidate.
	Source Source `json:"source" yaml:"source"`

	CoverURL    string `json:"cover_url,omitempty" yaml:"cover_url,omitempty"`
	CoverWidth  int    `json:"cover_width,omitempty" yaml:"cover_width,omitempty"`
	CoverHeight int    `json:"cover_height,omitempty" yaml:"cover_height,omitempty"`

	// CoverStored reports whether the cover lives in canonical storage
	// rather than behind a third-party URL.
	CoverStored bool `json:"cover_stored,omitempty" yaml:"cover_stored,omitempty"`

	Rating    float64   `json:"rating,omitempty" yaml:"rating,omitempty"`
	Published time.Time `json:"published,omitempty" yaml:"published,omitempty"`
}

// HasCover reports whether the candidate carries a usable cover image.
func (c CandidateResult) HasCover() bool {
	return c.CoverURL != ""
}

// ResultSet is an ordered, deduplicated sequence of candidates plus
// pagination metadata. Merge operations produce a new ResultSet rather
// than mutating in place, so concurrent readers are safe.
type ResultSet struct {
	QueryHash string            `json:"query_hash" yaml:"query_hash"`
	Results   []CandidateResult `json:"results" yaml:"results"`

	// Total counts the merged results in this set. It is not an
	// upstream corpus estimate; HasMore signals that the local catalog
	// holds more matches beyond this page.
	Total      int  `json:"total" yaml:"total"`
	HasMore    bool `json:"has_more" yaml:"has_more"`
	NextOffset int  `json:"next_offset" yaml:"next_offset"`
}
