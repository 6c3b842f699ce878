package catalog

import (
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cache memoizes catalog responses by request signature.
type Cache interface {
	Get(key string) ([]byte, bool)
	Set(key string, value []byte)
}

// MemoryCache is a size-bounded LRU with per-entry expiry, safe for concurrent use.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

// NewMemoryCache returns a cache holding at most size entries for ttl each.
// A zero ttl never expires entries; a zero size defaults to 256.
func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = 256
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *MemoryCache) Get(key string) ([]byte, bool) {
	return c.lru.Get(key)
}

func (c *MemoryCache) Set(key string, value []byte) {
	c.lru.Add(key, value)
}

// Len returns the number of cached entries, expired ones not yet purged included.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}
