package rpcx

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type cacheEntry struct {
	value    any
	storedAt time.Time
}

// responseCache is a bounded store of RPC responses keyed by method+args.
// TTL is evaluated per lookup so one cache serves methods with different
// freshness windows.
type responseCache struct {
	mu    sync.Mutex
	store *lru.Cache[string, cacheEntry]
}

func newResponseCache(size int) (*responseCache, error) {
	store, err := lru.New[string, cacheEntry](size)
	if err != nil {
		return nil, err
	}
	return &responseCache{store: store}, nil
}

func (c *responseCache) get(key string, ttl time.Duration) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.store.Get(key)
	if !ok {
		return nil, false
	}
	// Expired entries stay in the store so getStale can still serve them
	// after a soft failure; only LRU pressure evicts.
	if ttl > 0 && time.Since(entry.storedAt) > ttl {
		return nil, false
	}
	return entry.value, true
}

// getStale ignores TTL; used to serve last-known data after soft failures.
func (c *responseCache) getStale(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.store.Peek(key)
	if !ok {
		return nil, false
	}
	return entry.value, true
}

func (c *responseCache) put(key string, value any) {
	c.mu.Lock()
	c.store.Add(key, cacheEntry{value: value, storedAt: time.Now()})
	c.mu.Unlock()
}

func (c *responseCache) purge() {
	c.mu.Lock()
	c.store.Purge()
	c.mu.Unlock()
}
