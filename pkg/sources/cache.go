package sources

import (
	"strings"
	"sync"
	"time"

	"github.com/docsift/docsift/pkg/types"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCacheTTL  = 30 * time.Second // DefaultCacheTTL is the default TTL for cached search responses
	DefaultCacheSize = 1000             // DefaultCacheSize is the maximum number of cached requests
)

// cacheEntry holds one cached result list with expiration
type cacheEntry struct {
	results   []types.SearchResult
	expiresAt time.Time
}

func (e *cacheEntry) expired() bool {
	return time.Now().After(e.expiresAt)
}

// QueryCache caches whole search responses for a short window and coalesces
// identical concurrent requests into a single pipeline run, so a burst of
// equal queries costs one round of provider API calls.
type QueryCache struct {
	mu      sync.RWMutex
	entries map[string]*cacheEntry
	ttl     time.Duration
	maxSize int

	// Singleflight for request coalescing
	group singleflight.Group
}

// NewQueryCache creates a new query cache
func NewQueryCache(ttl time.Duration, maxSize int) *QueryCache {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if maxSize <= 0 {
		maxSize = DefaultCacheSize
	}

	cache := &QueryCache{
		entries: make(map[string]*cacheEntry),
		ttl:     ttl,
		maxSize: maxSize,
	}

	// Start background cleanup goroutine
	go cache.cleanupLoop()

	return cache
}

// RequestKey derives the cache key for a search request. Filter sets are
// order-sensitive on purpose: requests are normalized upstream and callers
// that shuffle filters get separate (still correct) entries.
func RequestKey(req types.SearchRequest) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(req.Query))
	b.WriteString("\x00")
	b.WriteString(strings.Join(req.Sources, ","))
	b.WriteString("\x00")
	b.WriteString(strings.Join(req.Accounts, ","))
	return b.String()
}

// Do returns the cached result list for the key, or runs fn exactly once
// across concurrent callers and caches what it returns. Errors are never
// cached.
func (c *QueryCache) Do(key string, fn func() ([]types.SearchResult, error)) ([]types.SearchResult, error) {
	if results, ok := c.get(key); ok {
		return results, nil
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		// Double-check: a previous flight may have just populated the entry
		if results, ok := c.get(key); ok {
			return results, nil
		}
		results, err := fn()
		if err != nil {
			return nil, err
		}
		c.set(key, results)
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]types.SearchResult), nil
}

func (c *QueryCache) get(key string) ([]types.SearchResult, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || entry.expired() {
		return nil, false
	}
	return entry.results, true
}

func (c *QueryCache) set(key string, results []types.SearchResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// Evict if at capacity (simple random eviction)
	if len(c.entries) >= c.maxSize {
		// Remove first 10% of entries
		count := c.maxSize / 10
		for k := range c.entries {
			delete(c.entries, k)
			count--
			if count <= 0 {
				break
			}
		}
	}

	c.entries[key] = &cacheEntry{
		results:   results,
		expiresAt: time.Now().Add(c.ttl),
	}
}

// Flush drops every cached response, e.g. after an account connects or
// disconnects and previous results may no longer reflect reachable scope.
func (c *QueryCache) Flush() {
	c.mu.Lock()
	c.entries = make(map[string]*cacheEntry)
	c.mu.Unlock()
}

// cleanupLoop periodically removes expired entries
func (c *QueryCache) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	for range ticker.C {
		c.cleanup()
	}
}

func (c *QueryCache) cleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for key, entry := range c.entries {
		if now.After(entry.expiresAt) {
			delete(c.entries, key)
		}
	}
}

// Stats returns cache statistics
func (c *QueryCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	expired := 0
	now := time.Now()
	for _, entry := range c.entries {
		if now.After(entry.expiresAt) {
			expired++
		}
	}

	return CacheStats{
		Size:    len(c.entries),
		MaxSize: c.maxSize,
		TTL:     c.ttl,
		Expired: expired,
	}
}

// CacheStats contains cache statistics
type CacheStats struct {
	Size    int
	MaxSize int
	TTL     time.Duration
	Expired int
}
