package enrich

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/citemend/reference-enrichment/internal/domain"
)

// Cache stores completed enrichment results keyed by the reference's title
// and authors. The cache is consulted only before a reconciliation pass
// starts and written only after it completes, never mid-pass, so a single
// pass stays internally consistent. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(key string) (domain.EnrichedReference, bool)
	Set(key string, value domain.EnrichedReference)
}

// CacheKey derives the cache key for a parsed reference from its lowercased
// title and family names.
func CacheKey(ref *domain.ParsedReference) string {
	var sb strings.Builder
	sb.WriteString(strings.ToLower(strings.TrimSpace(ref.Title)))
	for _, family := range ref.FamilyNames {
		sb.WriteString("|")
		sb.WriteString(strings.ToLower(strings.TrimSpace(family)))
	}
	sum := md5.Sum([]byte(sb.String()))
	return hex.EncodeToString(sum[:])
}

// LRUCache is a TTL-bounded, size-bounded enrichment cache. Entries expire
// after the configured TTL; when full, the oldest entries are evicted first.
type LRUCache struct {
	lru *expirable.LRU[string, domain.EnrichedReference]
}

// NewLRUCache creates a cache holding at most maxEntries results, each valid
// for ttl.
func NewLRUCache(maxEntries int, ttl time.Duration) *LRUCache {
	return &LRUCache{
		lru: expirable.NewLRU[string, domain.EnrichedReference](maxEntries, nil, ttl),
	}
}

// Get returns the cached result for key, if present and unexpired.
func (c *LRUCache) Get(key string) (domain.EnrichedReference, bool) {
	return c.lru.Get(key)
}

// Set stores a result. Last writer wins; there is no transactional guarantee.
func (c *LRUCache) Set(key string, value domain.EnrichedReference) {
	c.lru.Add(key, value)
}

// NoopCache never hits and discards writes. Used when caching is disabled
// and in tests that need deterministic passes.
type NoopCache struct{}

// Get always misses.
func (NoopCache) Get(string) (domain.EnrichedReference, bool) {
	return domain.EnrichedReference{}, false
}

// Set discards the value.
func (NoopCache) Set(string, domain.EnrichedReference) {}
