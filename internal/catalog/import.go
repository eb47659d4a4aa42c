// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package catalog

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/openshelf/openshelf/pkg/types"
)

// bookRecord is the YAML ingestion shape for batch imports (bestseller
// feeds, cache warmers, test fixtures).
type bookRecord struct {
	Slug        string   `yaml:"slug"`
	Title       string   `yaml:"title"`
	Authors     []string `yaml:"authors"`
	ISBN10      string   `yaml:"isbn10"`
	ISBN13      string   `yaml:"isbn13"`
	Published   string   `yaml:"published"`
	CoverURL    string   `yaml:"cover_url"`
	CoverWidth  int      `yaml:"cover_width"`
	CoverHeight int      `yaml:"cover_height"`
	CoverStored bool     `yaml:"cover_stored"`
	Rating      float64  `yaml:"rating"`
}

// ImportYAML reads a YAML list of books from r and upserts each one,
// returning how many records were written. A record missing slug or
// title aborts the import with its index in the error.
func (s *Store) ImportYAML(ctx context.Context, r io.Reader) (int, error) {
	var records []bookRecord
	if err := yaml.NewDecoder(r).Decode(&records); err != nil {
		return 0, fmt.Errorf("decoding import file: %w", err)
	}

	for i, rec := range records {
		b := types.CandidateResult{
			Slug:        rec.Slug,
			Title:       rec.Title,
			Authors:     rec.Authors,
			ISBN10:      rec.ISBN10,
			ISBN13:      rec.ISBN13,
			CoverURL:    rec.CoverURL,
			CoverWidth:  rec.CoverWidth,
			CoverHeight: rec.CoverHeight,
			CoverStored: rec.CoverStored,
			Rating:      rec.Rating,
		}
		if rec.Published != "" {
			t, err := parseImportDate(rec.Published)
			if err != nil {
				return i, fmt.Errorf("record %d (%s): %w", i, rec.Slug, err)
			}
			b.Published = t
		}
		if b.Slug == "" {
			b.Slug = slugify(b.Title)
		}
		if _, err := s.Upsert(ctx, b); err != nil {
			return i, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return len(records), nil
}

// parseImportDate accepts full dates and bare years.
func parseImportDate(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable date %q", s)
}

// slugify derives a URL-safe slug from a title.
func slugify(title string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
