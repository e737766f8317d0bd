// Package cache provides result caches for batch interpretations: an in-process LRU, a
// shared Redis cache guarded by a circuit breaker, and a tiered combination of both.
package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/genotype-insight-server/internal/domain"
)

// MemoryCache is a size-bounded LRU with per-entry expiry.
type MemoryCache struct {
	lru *expirable.LRU[string, *domain.BatchResult]
}

// NewMemoryCache creates a cache holding at most maxItems results for ttl each.
// A zero ttl keeps entries until they are evicted.
func NewMemoryCache(maxItems int, ttl time.Duration) *MemoryCache {
	if maxItems <= 0 {
		maxItems = 1000
	}
	return &MemoryCache{lru: expirable.NewLRU[string, *domain.BatchResult](maxItems, nil, ttl)}
}

// Get implements domain.ResultCache.
func (c *MemoryCache) Get(_ context.Context, key string) (*domain.BatchResult, bool, error) {
	result, ok := c.lru.Get(key)
	if !ok {
		return nil, false, nil
	}
	return result.Clone(), true, nil
}

// Set implements domain.ResultCache.
func (c *MemoryCache) Set(_ context.Context, key string, result *domain.BatchResult) error {
	c.lru.Add(key, result.Clone())
	return nil
}

// Len returns the number of cached results.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// Purge drops every entry.
func (c *MemoryCache) Purge() {
	c.lru.Purge()
}

var _ domain.ResultCache = (*MemoryCache)(nil)
