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

// googleBooksAPIBase is the Google Books volumes endpoint. Declared as
// a var so tests can substitute an httptest server.
var googleBooksAPIBase = "https://www.googleapis.com/books/v1/volumes"

// googleBooksMaxPage is the API's hard cap on maxResults.
const googleBooksMaxPage = 40

// GoogleBooksClient queries the Google Books volumes API. With an API
// key the authenticated tier is attempted first; the keyless public
// endpoint serves as the fallback tier.
type GoogleBooksClient struct {
	Client *http.Client
	HTTP   types.HTTPConfig
	APIKey string

	cache *resultCache
}

// NewGoogleBooksClient creates a client with a bounded response cache.
func NewGoogleBooksClient(client *http.Client, httpCfg types.HTTPConfig, cfg types.ProviderConfig) *GoogleBooksClient {
	return &GoogleBooksClient{
		Client: client,
		HTTP:   httpCfg,
		APIKey: cfg.APIKey,
		cache:  newResultCache(cfg.CacheSize),
	}
}

// Name returns the source tag.
func (c *GoogleBooksClient) Name() types.Source { return types.SourceGoogleBooks }

// Tiers returns the available call tiers in fallback order.
func (c *GoogleBooksClient) Tiers() []Tier {
	if c.APIKey == "" {
		return []Tier{TierFallback}
	}
	return []Tier{TierAuthenticated, TierFallback}
}

// Search queries one Google Books tier and maps the payload into
// candidates.
func (c *GoogleBooksClient) Search(ctx context.Context, q types.SearchQuery, tier Tier, limit, offset int) ([]types.CandidateResult, error) {
	if tier == TierAuthenticated && c.APIKey == "" {
		return nil, fmt.Errorf("%w: no google books api key configured", ErrAuth)
	}
	if limit <= 0 || limit > googleBooksMaxPage {
		limit = googleBooksMaxPage
	}

	key := cacheKey(tier, q.Hash, limit, offset)
	if cached, ok := c.cache.get(key); ok {
		return cached, nil
	}

	params := url.Values{
		"q":          {buildGoogleQuery(q)},
		"maxResults": {strconv.Itoa(limit)},
		"startIndex": {strconv.Itoa(offset)},
	}
	if q.Filters.OrderBy == types.OrderNewest {
		params.Set("orderBy", "newest")
	}
	if tier == TierAuthenticated {
		params.Set("key", c.APIKey)
	}

	var payload googleVolumesResponse
	if err := httputil.GetJSON(ctx, c.Client, googleBooksAPIBase+"?"+params.Encode(), c.HTTP.UserAgent, nil, &payload); err != nil {
		return nil, Classify(fmt.Errorf("google books: %w", err))
	}

	results := mapGoogleVolumes(payload.Items)
	c.cache.put(key, results)
	return results, nil
}

// buildGoogleQuery constructs the q parameter. Author-style queries are
// wrapped in Google's inauthor operator; field syntax written for other
// providers is stripped since syntaxes are not portable, while Google's
// own operators pass through intact.
func buildGoogleQuery(q types.SearchQuery) string {
	text := query.StripForeignFieldSyntax(q.Raw, "inauthor", "intitle", "inpublisher", "insubject", "isbn")
	if q.Intent == types.IntentAuthor {
		text = fmt.Sprintf("inauthor:%q", text)
	}
	if q.Filters.PublishedYear > 0 {
		// Google has no year operator; keep the year as a keyword.
		text += " " + strconv.Itoa(q.Filters.PublishedYear)
	}
	return text
}

// mapGoogleVolumes translates volume payloads into candidates.
func mapGoogleVolumes(items []googleVolume) []types.CandidateResult {
	var results []types.CandidateResult
	for _, item := range items {
		if item.ID == "" || item.VolumeInfo.Title == "" {
			continue
		}
		r := types.CandidateResult{
			ProviderID: item.ID,
			Title:      item.VolumeInfo.Title,
			Authors:    item.VolumeInfo.Authors,
			Source:     types.SourceGoogleBooks,
			Rating:     item.VolumeInfo.AverageRating,
			CoverURL:   item.VolumeInfo.ImageLinks.Thumbnail,
		}
		for _, id := range item.VolumeInfo.IndustryIdentifiers {
			switch id.Type {
			case "ISBN_10":
				r.ISBN10 = id.Identifier
			case "ISBN_13":
				r.ISBN13 = id.Identifier
			}
		}
		r.Published = parseGoogleDate(item.VolumeInfo.PublishedDate)
		results = append(results, r)
	}
	return results
}

// parseGoogleDate accepts the three precisions the API emits: year,
// year-month, and full date.
func parseGoogleDate(s string) time.Time {
	for _, layout := range []string{"2006-01-02", "2006-01", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// Google Books API JSON structures.
type googleVolumesResponse struct {
	Items []googleVolume `json:"items"`
}

type googleVolume struct {
	ID         string           `json:"id"`
	VolumeInfo googleVolumeInfo `json:"volumeInfo"`
}

type googleVolumeInfo struct {
	Title               string             `json:"title"`
	Authors             []string           `json:"authors"`
	PublishedDate       string             `json:"publishedDate"`
	AverageRating       float64            `json:"averageRating"`
	IndustryIdentifiers []googleIdentifier `json:"industryIdentifiers"`
	ImageLinks          googleImageLinks   `json:"imageLinks"`
}

type googleIdentifier struct {
	Type       string `json:"type"`
	Identifier string `json:"identifier"`
}

type googleImageLinks struct {
	Thumbnail string `json:"thumbnail"`
}
