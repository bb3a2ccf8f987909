package retrieval

import (
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// QueryCache memoizes retrieval candidates per (document, normalized query).
// Cached slices are copied on both read and write so callers never alias
// cache-owned memory.
type QueryCache struct {
	lru *expirable.LRU[string, []Result]
}

// NewQueryCache creates a cache holding up to size entries, each expiring
// after ttl.
func NewQueryCache(size int, ttl time.Duration) *QueryCache {
	return &QueryCache{
		lru: expirable.NewLRU[string, []Result](size, nil, ttl),
	}
}

// Get returns a copy of the cached candidates for the query, if present.
func (c *QueryCache) Get(documentID, query string) ([]Result, bool) {
	cached, ok := c.lru.Get(cacheKey(documentID, query))
	if !ok {
		return nil, false
	}
	out := make([]Result, len(cached))
	copy(out, cached)
	return out, true
}

// Put stores a copy of the candidates for the query.
func (c *QueryCache) Put(documentID, query string, results []Result) {
	stored := make([]Result, len(results))
	copy(stored, results)
	c.lru.Add(cacheKey(documentID, query), stored)
}

// Len returns the number of live entries.
func (c *QueryCache) Len() int {
	return c.lru.Len()
}

func cacheKey(documentID, query string) string {
	return documentID + "\x00" + normalizeQuery(query)
}

// normalizeQuery lowercases and collapses whitespace so trivially different
// phrasings share a cache entry.
func normalizeQuery(query string) string {
	return strings.Join(strings.Fields(strings.ToLower(query)), " ")
}
