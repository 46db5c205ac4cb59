package cache

import (
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultItemCacheSize is used when the configured size is not positive
const DefaultItemCacheSize = 1024

// LRUItemCodeCache keeps the most recently resolved item codes
type LRUItemCodeCache struct {
	cache *lru.Cache[string, string]
}

// NewLRUItemCodeCache creates a cache holding at most size codes
func NewLRUItemCodeCache(size int) (*LRUItemCodeCache, error) {
	if size <= 0 {
		size = DefaultItemCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create item code cache: %w", err)
	}
	return &LRUItemCodeCache{cache: cache}, nil
}

// Get returns the cached code for key
func (c *LRUItemCodeCache) Get(key string) (string, bool) {
	return c.cache.Get(key)
}

// Add stores a code, evicting the least recently used entry when full
func (c *LRUItemCodeCache) Add(key, code string) {
	c.cache.Add(key, code)
}

// Len returns the number of cached codes
func (c *LRUItemCodeCache) Len() int {
	return c.cache.Len()
}

// Purge drops every cached code
func (c *LRUItemCodeCache) Purge() {
	c.cache.Purge()
}
