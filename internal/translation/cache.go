package translation

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Cache is an LRU cache with a per-entry TTL layered on top: golang-lru's
// v0.5 Cache has no expiry of its own, so every entry carries its own
// expiresAt and Get evicts anything found stale.
type Cache struct {
	mu  sync.Mutex
	lru *lru.Cache
	ttl time.Duration
}

type cacheEntry struct {
	value     string
	expiresAt time.Time
}

// NewCache builds a capacity-bounded, TTL-expiring translation cache. The
// default capacity (10,000) and TTL (1 hour) match the engine's in-process
// tier; the distributed tier lives in the cache package's translation
// cache methods instead.
func NewCache(capacity int, ttl time.Duration) (*Cache, error) {
	l, err := lru.New(capacity)
	if err != nil {
		return nil, err
	}
	return &Cache{lru: l, ttl: ttl}, nil
}

func (c *Cache) Get(key string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(key)
	if !ok {
		return "", false
	}
	entry := v.(cacheEntry)
	if time.Now().After(entry.expiresAt) {
		c.lru.Remove(key)
		return "", false
	}
	return entry.value, true
}

func (c *Cache) Set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lru.Add(key, cacheEntry{value: value, expiresAt: time.Now().Add(c.ttl)})
}

// Len reports how many entries the local cache currently holds, for health
// reporting.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

// Key builds the cache key for a (source lang, target lang, text) triple.
func Key(sourceLang, targetLang, text string) string {
	return sourceLang + "|" + targetLang + "|" + text
}
