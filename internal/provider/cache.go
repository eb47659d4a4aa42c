// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package provider

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/openshelf/openshelf/pkg/types"
)

// resultCache memoizes mapped provider responses keyed by
// (tier, query hash, paging). It shields scarce upstream quotas from
// repeated identical queries; entries are bounded and in-memory only.
type resultCache struct {
	entries *lru.Cache[string, []types.CandidateResult]
}

func newResultCache(size int) *resultCache {
	if size <= 0 {
		size = 256
	}
	entries, _ := lru.New[string, []types.CandidateResult](size)
	return &resultCache{entries: entries}
}

func cacheKey(tier Tier, hash string, limit, offset int) string {
	return fmt.Sprintf("%s:%s:%d:%d", tier, hash, limit, offset)
}

func (c *resultCache) get(key string) ([]types.CandidateResult, bool) {
	return c.entries.Get(key)
}

func (c *resultCache) put(key string, results []types.CandidateResult) {
	c.entries.Add(key, results)
}
