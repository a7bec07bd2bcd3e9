package pipeline

import (
	"crypto/md5"
	"encoding/hex"
	"sync"
)

// cache holds synthesized PCM for short, frequently repeated phrases
// (greetings, confirmations). Entries are keyed by a text hash and the cache
// is bounded; when full, new entries are simply not admitted, which keeps
// the hot prewarmed phrases resident.
type cache struct {
	maxEntries int
	maxTextLen int

	mu      sync.RWMutex
	entries map[string][]int16
}

func newCache(maxEntries, maxTextLen int) *cache {
	return &cache{
		maxEntries: maxEntries,
		maxTextLen: maxTextLen,
		entries:    make(map[string][]int16),
	}
}

// cacheable reports whether the text qualifies for caching.
func (c *cache) cacheable(text string) bool {
	return len(text) > 0 && len(text) < c.maxTextLen
}

func (c *cache) get(text string) ([]int16, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	samples, ok := c.entries[cacheKey(text)]
	return samples, ok
}

func (c *cache) put(text string, samples []int16) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := cacheKey(text)
	if _, exists := c.entries[key]; exists {
		return
	}
	if len(c.entries) >= c.maxEntries {
		return
	}
	c.entries[key] = samples
}

func (c *cache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func cacheKey(text string) string {
	sum := md5.Sum([]byte(text))
	return hex.EncodeToString(sum[:])[:12]
}
