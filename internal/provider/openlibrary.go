// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/openshelf/openshelf/internal/httputil"
	"github.com/openshelf/openshelf/internal/query"
	"github.com/openshelf/openshelf/pkg/types"
)

// openLibraryAPIBase is the Open Library search endpoint. Declared as a
// var so tests can substitute an httptest server.
var openLibraryAPIBase = "https://openlibrary.org/search.json"

const openLibraryFields = "key,title,author_name,isbn,cover_i,first_publish_year,ratings_average"

// OpenLibraryClient queries the Open Library search API. The API is
// public, so only the unauthenticated tier exists.
type OpenLibraryClient struct {
	Client *http.Client
	HTTP   types.HTTPConfig

	cache *resultCache
}

// NewOpenLibraryClient creates a client with a bounded response cache.
func NewOpenLibraryClient(client *http.Client, httpCfg types.HTTPConfig, cfg types.ProviderConfig) *OpenLibraryClient {
	return &OpenLibraryClient{
		Client: client,
		HTTP:   httpCfg,
		cache:  newResultCache(cfg.CacheSize),
	}
}

// Name returns the source tag.
func (c *OpenLibraryClient) Name() types.Source { return types.SourceOpenLibrary }

// Tiers returns the available call tiers.
func (c *OpenLibraryClient) Tiers() []Tier { return []Tier{TierFallback} }

// Search queries Open Library and maps the payload into candidates.
func (c *OpenLibraryClient) Search(ctx context.Context, q types.SearchQuery, tier Tier, limit, offset int) ([]types.CandidateResult, error) {
	if tier != TierFallback {
		return nil, fmt.Errorf("%w: open library has no %s tier", ErrAuth, tier)
	}
	if limit <= 0 {
		limit = 20
	}

	key := cacheKey(tier, q.Hash, limit, offset)
	if cached, ok := c.cache.get(key); ok {
		return cached, nil
	}

	params := url.Values{
		"fields": {openLibraryFields},
		"limit":  {strconv.Itoa(limit)},
		"offset": {strconv.Itoa(offset)},
	}
	text := query.StripForeignFieldSyntax(q.Raw, "author", "title", "subject", "isbn")
	if q.Intent == types.IntentAuthor {
		params.Set("author", text)
	} else {
		params.Set("q", text)
	}
	if q.Filters.PublishedYear > 0 {
		clause := "first_publish_year:" + strconv.Itoa(q.Filters.PublishedYear)
		if existing := params.Get("q"); existing != "" {
			clause = existing + " " + clause
		}
		params.Set("q", clause)
	}
	if q.Filters.OrderBy == types.OrderNewest {
		params.Set("sort", "new")
	}

	var payload openLibraryResponse
	if err := httputil.GetJSON(ctx, c.Client, openLibraryAPIBase+"?"+params.Encode(), c.HTTP.UserAgent, nil, &payload); err != nil {
		return nil, Classify(fmt.Errorf("open library: %w", err))
	}

	results := mapOpenLibraryDocs(payload.Docs)
	c.cache.put(key, results)
	return results, nil
}

// mapOpenLibraryDocs translates Open Library docs into candidates.
func mapOpenLibraryDocs(docs []openLibraryDoc) []types.CandidateResult {
	var results []types.CandidateResult
	for _, d := range docs {
		if d.Key == "" || d.Title == "" {
			continue
		}
		r := types.CandidateResult{
			ProviderID: trimWorkKey(d.Key),
			Title:      d.Title,
			Authors:    d.AuthorNames,
			Source:     types.SourceOpenLibrary,
			Rating:     d.RatingsAverage,
		}
		r.ISBN10, r.ISBN13 = pickISBNs(d.ISBNs)
		if d.CoverID > 0 {
			r.CoverURL = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", d.CoverID)
		}
		if d.FirstPublishYear > 0 {
			r.Published = time.Date(d.FirstPublishYear, 1, 1, 0, 0, 0, 0, time.UTC)
		}
		results = append(results, r)
	}
	return results
}

// trimWorkKey strips the "/works/" prefix from an Open Library key
// (e.g. "/works/OL893415W" becomes "OL893415W").
func trimWorkKey(key string) string {
	const prefix = "/works/"
	if len(key) > len(prefix) && key[:len(prefix)] == prefix {
		return key[len(prefix):]
	}
	return key
}

// pickISBNs selects the first ISBN-10 and ISBN-13 from the doc's
// undifferentiated isbn list.
func pickISBNs(isbns []string) (isbn10, isbn13 string) {
	for _, raw := range isbns {
		switch len(raw) {
		case 10:
			if isbn10 == "" {
				isbn10 = raw
			}
		case 13:
			if isbn13 == "" {
				isbn13 = raw
			}
		}
		if isbn10 != "" && isbn13 != "" {
			break
		}
	}
	return isbn10, isbn13
}

// Open Library API JSON structures.
type openLibraryResponse struct {
	Docs []openLibraryDoc `json:"docs"`
}

type openLibraryDoc struct {
	Key              string   `json:"key"`
	Title            string   `json:"title"`
	AuthorNames      []string `json:"author_name"`
	ISBNs            []string `json:"isbn"`
	CoverID          int      `json:"cover_i"`
	FirstPublishYear int      `json:"first_publish_year"`
	RatingsAverage   float64  `json:"ratings_average"`
}
