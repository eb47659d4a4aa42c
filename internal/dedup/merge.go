// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package dedup

import (
	"slices"
	"sort"

	"github.com/openshelf/openshelf/pkg/types"
)

// Merge folds incoming candidates into existing and returns a new
// ResultSet; the input is never mutated. Results already present keep
// their position, new candidates are appended in batch order after the
// quality sort, candidates whose identity key is already present are
// skipped, and appending stops once limit results are held. Existing
// results are never removed to make room.
//
// Merge is pure: identical inputs always produce identical output. It
// runs both synchronously for the initial response and repeatedly as
// the reducer folding each provider batch into the running set.
func Merge(existing types.ResultSet, incoming []types.CandidateResult, limit int) types.ResultSet {
	out := existing
	out.Results = slices.Clone(existing.Results)

	seen := make(map[string]struct{}, len(out.Results)+len(incoming))
	for _, c := range out.Results {
		seen[Key(c)] = struct{}{}
	}

	for _, c := range orderBatch(incoming) {
		if limit > 0 && len(out.Results) >= limit {
			break
		}
		k := Key(c)
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out.Results = append(out.Results, c)
	}

	out.Total = len(out.Results)
	return out
}

// orderBatch sorts a single provider batch by cover quality then
// publication recency, descending, falling back to arrival order. This
// keeps visually-complete results ahead of placeholder-cover duplicates
// of the same work when both slip past identity matching.
func orderBatch(batch []types.CandidateResult) []types.CandidateResult {
	ordered := slices.Clone(batch)
	sort.SliceStable(ordered, func(i, j int) bool {
		qi, qj := coverQuality(ordered[i]), coverQuality(ordered[j])
		if qi != qj {
			return qi > qj
		}
		return ordered[i].Published.After(ordered[j].Published)
	})
	return ordered
}

// coverQuality scores cover presence, canonical storage, and resolution.
func coverQuality(c types.CandidateResult) int {
	score := 0
	if c.HasCover() {
		score += 2
		if c.CoverStored {
			score += 4
		}
		if c.CoverWidth*c.CoverHeight >= 250_000 {
			score++
		}
	}
	return score
}
