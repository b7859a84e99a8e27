package marketdata

import (
	"sync"
	"time"
)

// ttlCache is a small in-process response cache keyed by request URL.
// It stands in for the HTTP-level revalidation windows the provider
// recommends, so repeated quote/search/news calls inside a window do not
// hit the network again.
type ttlCache struct {
	mu      sync.RWMutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	body      []byte
	expiresAt time.Time
}

func newTTLCache() *ttlCache {
	return &ttlCache{entries: make(map[string]cacheEntry)}
}

// get returns the cached body for key, or nil if absent or expired.
func (c *ttlCache) get(key string) []byte {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil
	}
	return entry.body
}

// set stores body under key for the given TTL. A zero or negative TTL
// disables caching for that request.
func (c *ttlCache) set(key string, body []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	c.entries[key] = cacheEntry{body: body, expiresAt: time.Now().Add(ttl)}
	c.mu.Unlock()
}
