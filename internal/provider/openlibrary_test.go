// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/openshelf/openshelf/internal/guard"
	"github.com/openshelf/openshelf/internal/query"
	"github.com/openshelf/openshelf/pkg/types"
)

const openLibraryPayload = `{
	"numFound": 2,
	"docs": [
		{
			"key": "/works/OL893415W",
			"title": "Dune",
			"author_name": ["Frank Herbert"],
			"isbn": ["0441013597", "9780441013593"],
			"cover_i": 12194706,
			"first_publish_year": 1965,
			"ratings_average": 4.25
		},
		{
			"key": "/works/OL893416W",
			"title": "Dune Messiah",
			"author_name": ["Frank Herbert"]
		},
		{
			"key": "",
			"title": "dropped: no key"
		}
	]
}`

func testHTTPConfig() types.HTTPConfig {
	return types.HTTPConfig{UserAgent: "openshelf-test/0.1"}
}

func newOpenLibraryTestClient(t *testing.T, handler http.HandlerFunc) *OpenLibraryClient {
	t.Helper()
	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	prev := openLibraryAPIBase
	openLibraryAPIBase = ts.URL
	t.Cleanup(func() { openLibraryAPIBase = prev })

	return NewOpenLibraryClient(ts.Client(), testHTTPConfig(), types.ProviderConfig{})
}

func TestOpenLibrarySearch(t *testing.T) {
	var gotQuery string
	c := newOpenLibraryTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Write([]byte(openLibraryPayload))
	})

	q := query.Plan("dune", types.Filters{})
	results, err := c.Search(context.Background(), q, TierFallback, 12, 0)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if gotQuery != "dune" {
		t.Errorf("q param = %q, want %q", gotQuery, "dune")
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2 (doc without key dropped)", len(results))
	}

	r := results[0]
	if r.ProviderID != "OL893415W" {
		t.Errorf("ProviderID = %q, want OL893415W", r.ProviderID)
	}
	if r.Source != types.SourceOpenLibrary {
		t.Errorf("Source = %q, want %q", r.Source, types.SourceOpenLibrary)
	}
	if r.ISBN10 != "0441013597" || r.ISBN13 != "9780441013593" {
		t.Errorf("ISBNs = %q/%q, want split by length", r.ISBN10, r.ISBN13)
	}
	if !r.HasCover() {
		t.Error("expected cover URL derived from cover_i")
	}
	if r.Published.Year() != 1965 {
		t.Errorf("Published year = %d, want 1965", r.Published.Year())
	}
}

func TestOpenLibraryKeepsNativeFieldSyntax(t *testing.T) {
	var gotQuery string
	c := newOpenLibraryTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query().Get("q")
		w.Write([]byte(`{"docs":[]}`))
	})

	q := query.Plan("author:herbert inauthor:herbert dune", types.Filters{})
	if _, err := c.Search(context.Background(), q, TierFallback, 12, 0); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if want := "author:herbert herbert dune"; gotQuery != want {
		t.Errorf("q param = %q, want %q (own operators kept, foreign ones stripped)", gotQuery, want)
	}
}

func TestOpenLibraryAuthorIntentUsesAuthorParam(t *testing.T) {
	var gotAuthor, gotQ string
	c := newOpenLibraryTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuthor = r.URL.Query().Get("author")
		gotQ = r.URL.Query().Get("q")
		w.Write([]byte(`{"numFound":0,"docs":[]}`))
	})

	q := query.Plan("Frank Herbert", types.Filters{})
	if _, err := c.Search(context.Background(), q, TierFallback, 12, 0); err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if gotAuthor != "Frank Herbert" {
		t.Errorf("author param = %q, want %q", gotAuthor, "Frank Herbert")
	}
	if gotQ != "" {
		t.Errorf("q param = %q, want empty for author intent", gotQ)
	}
}

func TestOpenLibraryCachesResponses(t *testing.T) {
	var calls int32
	c := newOpenLibraryTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(openLibraryPayload))
	})

	q := query.Plan("dune", types.Filters{})
	for i := 0; i < 3; i++ {
		if _, err := c.Search(context.Background(), q, TierFallback, 12, 0); err != nil {
			t.Fatalf("Search() error = %v", err)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Errorf("upstream calls = %d, want 1 (cache hit)", got)
	}
}

func TestOpenLibraryClassifiesUpstreamErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   error
	}{
		{"rate limited", http.StatusTooManyRequests, guard.ErrRateLimited},
		{"forbidden", http.StatusForbidden, ErrAuth},
		{"server error", http.StatusBadGateway, ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newOpenLibraryTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			})
			_, err := c.Search(context.Background(), query.Plan("dune", types.Filters{}), TierFallback, 12, 0)
			if !errors.Is(err, tt.want) {
				t.Errorf("Search() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestOpenLibraryRejectsAuthenticatedTier(t *testing.T) {
	c := NewOpenLibraryClient(http.DefaultClient, testHTTPConfig(), types.ProviderConfig{})
	_, err := c.Search(context.Background(), query.Plan("dune", types.Filters{}), TierAuthenticated, 12, 0)
	if !errors.Is(err, ErrAuth) {
		t.Errorf("Search(authenticated) error = %v, want ErrAuth", err)
	}
}
