package tokenizer

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// CacheStats is a snapshot of a tokenizer's BPE cache.
type CacheStats struct {
	Entries int   `json:"entries"`
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
}

// bpeCache memoizes merged symbol sequences per pre-token. Entries are
// added once and never replaced or evicted. Returned slices are shared and
// must not be modified.
type bpeCache struct {
	mu      sync.RWMutex
	entries map[string][]string
	flight  singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

func newBPECache() *bpeCache {
	return &bpeCache{entries: make(map[string][]string)}
}

func (c *bpeCache) get(key string) ([]string, bool) {
	c.mu.RLock()
	v, ok := c.entries[key]
	c.mu.RUnlock()
	return v, ok
}

// getOrCompute returns the cached value for key, computing and storing it
// on a miss. Concurrent misses on the same key share one computation.
func (c *bpeCache) getOrCompute(key string, compute func() []string) []string {
	if v, ok := c.get(key); ok {
		c.hits.Add(1)
		return v
	}
	c.misses.Add(1)

	v, _, _ := c.flight.Do(key, func() (any, error) {
		if v, ok := c.get(key); ok {
			return v, nil
		}
		v := compute()
		c.mu.Lock()
		c.entries[key] = v
		c.mu.Unlock()
		return v, nil
	})
	return v.([]string)
}

func (c *bpeCache) stats() CacheStats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return CacheStats{Entries: n, Hits: c.hits.Load(), Misses: c.misses.Load()}
}
