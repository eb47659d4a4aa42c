// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package dedup decides whether two candidates represent the same book
// and merges candidate batches into a result set without duplicates.
package dedup

import (
	"sort"
	"strings"
	"unicode"

	"github.com/openshelf/openshelf/pkg/types"
)

// Key returns the identity key used to decide "same book or different
// book" across sources with no common identifier. Precedence, first
// match wins: local canonical id, normalized ISBN-13, normalized
// ISBN-10, provider-specific external id, then a composite of
// normalized title and author names.
func Key(c types.CandidateResult) string {
	if c.LocalID != "" {
		return "local:" + c.LocalID
	}
	if isbn := NormalizeISBN(c.ISBN13); len(isbn) == 13 {
		return "isbn13:" + isbn
	}
	if isbn := NormalizeISBN(c.ISBN10); len(isbn) == 10 {
		return "isbn10:" + isbn
	}
	if c.ProviderID != "" {
		return "ext:" + string(c.Source) + ":" + c.ProviderID
	}
	return "work:" + normalizeTitle(c.Title) + "|" + normalizeAuthors(c.Authors)
}

// NormalizeISBN strips separators and uppercases the ISBN-10 check
// character, returning "" when nothing usable remains.
func NormalizeISBN(isbn string) string {
	var b strings.Builder
	for _, r := range isbn {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == 'x' || r == 'X':
			b.WriteRune('X')
		}
	}
	return b.String()
}

// normalizeTitle returns a lowercased, punctuation-stripped version of
// the title with collapsed whitespace.
func normalizeTitle(title string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// normalizeAuthors joins normalized author names in sorted order, so
// sources that disagree on author ordering still collide.
func normalizeAuthors(authors []string) string {
	if len(authors) == 0 {
		return ""
	}
	norm := make([]string, 0, len(authors))
	for _, a := range authors {
		if n := normalizeTitle(a); n != "" {
			norm = append(norm, n)
		}
	}
	sort.Strings(norm)
	return strings.Join(norm, ",")
}
