// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package query normalizes raw search input, classifies query intent,
// and derives the deterministic hash that keys realtime subscriptions.
package query

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/openshelf/openshelf/pkg/types"
)

// fieldQualifier matches provider-specific field syntax such as
// "inauthor:king" (Google Books) or "author:king" (Open Library).
// Queries carrying one provider's syntax must be stripped before they
// are sent to a different provider.
var fieldQualifier = regexp.MustCompile(`(?i)\b(inauthor|intitle|inpublisher|insubject|isbn|author|title|subject):`)

// Plan builds a SearchQuery from raw user text and filters. It never
// fails: unparseable filter values fall back to defaults.
func Plan(raw string, f types.Filters) types.SearchQuery {
	trimmed := strings.TrimSpace(raw)
	f = normalizeFilters(f)

	q := types.SearchQuery{
		Raw:        trimmed,
		Normalized: Normalize(trimmed),
		Intent:     detectIntent(trimmed),
		Filters:    f,
	}
	q.Hash = Hash(q.Normalized, f)
	return q
}

// Normalize lowercases and collapses whitespace. The normalized form is
// used for hashing and local catalog matching only; provider calls and
// display keep the original casing.
func Normalize(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

// StripFieldSyntax removes every field qualifier, leaving the values
// behind as plain keywords.
func StripFieldSyntax(s string) string {
	return StripForeignFieldSyntax(s)
}

// StripForeignFieldSyntax removes field qualifiers except the named
// native ones, so a query written for one provider can be reused
// against another without losing the target provider's own operators
// ("inauthor:king" survives a Google Books call but becomes the plain
// keyword "king" everywhere else).
func StripForeignFieldSyntax(s string, native ...string) string {
	keep := make(map[string]bool, len(native))
	for _, n := range native {
		keep[strings.ToLower(n)] = true
	}
	stripped := fieldQualifier.ReplaceAllStringFunc(s, func(m string) string {
		if keep[strings.ToLower(strings.TrimSuffix(m, ":"))] {
			return m
		}
		return ""
	})
	return strings.Join(strings.Fields(stripped), " ")
}

// Hash returns the subscription key for a normalized query and filter
// set. The encoding is canonical and salt-free, so identical inputs
// produce identical hashes across process restarts.
func Hash(normalized string, f types.Filters) string {
	h := sha256.New()
	fmt.Fprintf(h, "q=%s;year=%d;order=%s;covers=%t",
		normalized, f.PublishedYear, f.OrderBy, f.PreferCovers)
	return hex.EncodeToString(h.Sum(nil))[:32]
}

// normalizeFilters replaces unsupported filter values with defaults.
func normalizeFilters(f types.Filters) types.Filters {
	switch f.OrderBy {
	case types.OrderRelevance, types.OrderNewest, types.OrderTitle:
	default:
		f.OrderBy = types.OrderRelevance
	}
	if f.PublishedYear < 0 {
		f.PublishedYear = 0
	}
	return f
}

// detectIntent tags two-to-four capitalized tokens with no quotation
// marks and no field syntax as an author-style query. The tag changes
// how provider queries are constructed but not the local catalog query.
func detectIntent(raw string) types.Intent {
	if strings.ContainsAny(raw, `"'`) {
		return types.IntentGeneral
	}
	if fieldQualifier.MatchString(raw) {
		return types.IntentGeneral
	}

	tokens := strings.Fields(raw)
	if len(tokens) < 2 || len(tokens) > 4 {
		return types.IntentGeneral
	}
	for _, tok := range tokens {
		if !looksLikeNamePart(tok) {
			return types.IntentGeneral
		}
	}
	return types.IntentAuthor
}

// looksLikeNamePart accepts capitalized words made of letters, with
// trailing periods and interior hyphens/apostrophes allowed
// ("J.R.R.", "O'Brien", "Le-Guin").
func looksLikeNamePart(tok string) bool {
	first, _ := utf8.DecodeRuneInString(tok)
	if !unicode.IsUpper(first) {
		return false
	}
	for _, r := range tok {
		if unicode.IsLetter(r) || r == '.' || r == '-' || r == '\'' {
			continue
		}
		return false
	}
	return true
}
