package search

import (
	"strconv"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// unitSeparator (U+241F) joins cache key components. Components are joined
// unescaped, so a scope or query that itself contains U+241F is not
// distinguished from a different split of the same text.
const unitSeparator = "␟"

// DefaultQueryCacheCapacity is used when MCP_QUERY_CACHE_CAPACITY is not
// configured.
const DefaultQueryCacheCapacity = 512

// CacheKey builds the LRU key for a (scope, query, top_k) triple.
func CacheKey(scope, query string, topK int) string {
	return scope + unitSeparator + query + unitSeparator + strconv.Itoa(topK)
}

// QueryCache is an LRU cache of QueryResult keyed by CacheKey, guarded by
// a single mutex with short holds; Get clones its result so callers never
// observe a cache entry mutated out from under them.
type QueryCache struct {
	mu    sync.Mutex
	items *lru.Cache[string, QueryResult]
}

// NewQueryCache builds a cache with the given capacity (<=0 uses
// DefaultQueryCacheCapacity).
func NewQueryCache(capacity int) *QueryCache {
	if capacity <= 0 {
		capacity = DefaultQueryCacheCapacity
	}
	items, _ := lru.New[string, QueryResult](capacity)
	return &QueryCache{items: items}
}

// Get returns a cloned copy of the cached result for key, if present.
func (c *QueryCache) Get(key string) (QueryResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	result, ok := c.items.Get(key)
	if !ok {
		return QueryResult{}, false
	}
	return cloneQueryResult(result), true
}

// Put stores result under key.
func (c *QueryCache) Put(key string, result QueryResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items.Add(key, cloneQueryResult(result))
}

func cloneQueryResult(r QueryResult) QueryResult {
	items := make([]SearchResultItem, len(r.Items))
	copy(items, r.Items)
	return QueryResult{Items: items}
}
