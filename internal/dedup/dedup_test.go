// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dedup

import (
	"reflect"
	"testing"
	"time"

	"github.com/openshelf/openshelf/pkg/types"
)

func TestKeyPrecedence(t *testing.T) {
	tests := []struct {
		name string
		c    types.CandidateResult
		want string
	}{
		{
			"local id wins",
			types.CandidateResult{LocalID: "42", ISBN13: "9780441013593", ProviderID: "OL123W"},
			"local:42",
		},
		{
			"isbn13 over isbn10",
			types.CandidateResult{ISBN13: "978-0-441-01359-3", ISBN10: "0441013591"},
			"isbn13:9780441013593",
		},
		{
			"isbn10 normalized check digit",
			types.CandidateResult{ISBN10: "0-14-243722-x"},
			"isbn10:014243722X",
		},
		{
			"provider id",
			types.CandidateResult{ProviderID: "OL123W", Source: types.SourceOpenLibrary},
			"ext:openlibrary:OL123W",
		},
		{
			"title and authors fallback",
			types.CandidateResult{Title: "Dune!", Authors: []string{"Frank Herbert"}},
			"work:dune|frank herbert",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Key(tt.c); got != tt.want {
				t.Errorf("Key() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyAuthorOrderInsensitive(t *testing.T) {
	a := types.CandidateResult{Title: "Good Omens", Authors: []string{"Terry Pratchett", "Neil Gaiman"}}
	b := types.CandidateResult{Title: "Good Omens", Authors: []string{"Neil Gaiman", "Terry Pratchett"}}
	if Key(a) != Key(b) {
		t.Errorf("Key() = %q vs %q, author order should not matter", Key(a), Key(b))
	}
}

func TestMergeSkipsDuplicates(t *testing.T) {
	existing := Merge(types.ResultSet{}, []types.CandidateResult{
		{LocalID: "1", ISBN13: "9780441013593", Title: "Dune", Source: types.SourceLocal},
	}, 10)

	merged := Merge(existing, []types.CandidateResult{
		{ProviderID: "OL1W", ISBN13: "978-0441013593", Title: "Dune", Source: types.SourceOpenLibrary},
		{ProviderID: "OL2W", Title: "Dune Messiah", Source: types.SourceOpenLibrary},
	}, 10)

	if len(merged.Results) != 2 {
		t.Fatalf("len(Results) = %d, want 2", len(merged.Results))
	}

	// Duplicate detection is by identity key, never ambiguous.
	keys := make(map[string]bool)
	for _, c := range merged.Results {
		k := Key(c)
		if keys[k] {
			t.Errorf("duplicate identity key %q in merged set", k)
		}
		keys[k] = true
	}
}

func TestMergeIdempotent(t *testing.T) {
	batch := []types.CandidateResult{
		{ProviderID: "v1", Title: "A", Source: types.SourceGoogleBooks},
		{ProviderID: "v2", Title: "B", Source: types.SourceGoogleBooks},
	}
	once := Merge(types.ResultSet{}, batch, 10)
	twice := Merge(once, batch, 10)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("merging the same batch twice changed the set:\nonce:  %+v\ntwice: %+v", once, twice)
	}
}

func TestMergeOrderPreservation(t *testing.T) {
	a := []types.CandidateResult{
		{ProviderID: "a1", Title: "First", Source: types.SourceOpenLibrary},
		{ProviderID: "a2", Title: "Second", Source: types.SourceOpenLibrary},
	}
	b := []types.CandidateResult{
		{ProviderID: "b1", Title: "Third", Source: types.SourceGoogleBooks},
	}

	merged := Merge(Merge(types.ResultSet{}, a, 10), b, 10)
	got := []string{merged.Results[0].ProviderID, merged.Results[1].ProviderID, merged.Results[2].ProviderID}
	want := []string{"a1", "a2", "b1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("result order = %v, want %v", got, want)
	}
}

func TestMergeRespectsLimit(t *testing.T) {
	existing := Merge(types.ResultSet{}, []types.CandidateResult{
		{ProviderID: "e1", Title: "E1"},
		{ProviderID: "e2", Title: "E2"},
	}, 10)

	merged := Merge(existing, []types.CandidateResult{
		{ProviderID: "n1", Title: "N1"},
		{ProviderID: "n2", Title: "N2"},
	}, 3)

	if len(merged.Results) != 3 {
		t.Fatalf("len(Results) = %d, want 3", len(merged.Results))
	}
	// Existing results are never removed to make room.
	if merged.Results[0].ProviderID != "e1" || merged.Results[1].ProviderID != "e2" {
		t.Errorf("existing results were displaced: %+v", merged.Results)
	}
}

func TestMergeDoesNotMutateInput(t *testing.T) {
	existing := Merge(types.ResultSet{}, []types.CandidateResult{{ProviderID: "e1", Title: "E1"}}, 10)
	before := slicesCopy(existing.Results)

	Merge(existing, []types.CandidateResult{{ProviderID: "n1", Title: "N1"}}, 10)

	if !reflect.DeepEqual(before, existing.Results) {
		t.Errorf("Merge mutated its input: %+v", existing.Results)
	}
}

func TestOrderBatchPrefersCoversAndRecency(t *testing.T) {
	old := time.Date(1965, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC)

	batch := []types.CandidateResult{
		{ProviderID: "plain", Title: "No Cover", Published: recent},
		{ProviderID: "stored", Title: "Stored Cover", CoverURL: "u", CoverStored: true, Published: old},
		{ProviderID: "cover", Title: "Plain Cover", CoverURL: "u", Published: old},
		{ProviderID: "cover-recent", Title: "Recent Cover", CoverURL: "u", Published: recent},
	}

	merged := Merge(types.ResultSet{}, batch, 10)
	got := make([]string, len(merged.Results))
	for i, c := range merged.Results {
		got[i] = c.ProviderID
	}
	want := []string{"stored", "cover-recent", "cover", "plain"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("batch order = %v, want %v", got, want)
	}
}

func slicesCopy(in []types.CandidateResult) []types.CandidateResult {
	out := make([]types.CandidateResult, len(in))
	copy(out, in)
	return out
}
