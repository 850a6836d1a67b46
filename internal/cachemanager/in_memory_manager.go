package cachemanager

import (
	"context"
	"slices"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/zjrosen/weakcast/internal/log"
)

const DefaultExpiration = 10 * time.Minute
const DefaultCleanupInterval = 30 * time.Minute

// InMemoryOption configures an InMemoryCacheManager.
type InMemoryOption[K ~string, V any] func(*InMemoryCacheManager[K, V])

// WithOnEvicted runs fn whenever an entry leaves the cache, whether it expired
// or was deleted. Flush does not trigger it.
func WithOnEvicted[K ~string, V any](fn func(key K, value V)) InMemoryOption[K, V] {
	return func(c *InMemoryCacheManager[K, V]) {
		c.cache.OnEvicted(func(key string, raw any) {
			if v, ok := raw.(V); ok {
				fn(K(key), v)
			}
		})
	}
}

// NewInMemoryCacheManager builds a go-cache backed manager.
func NewInMemoryCacheManager[K ~string, V any](useCase string, defaultExpiration, cleanupInterval time.Duration, opts ...InMemoryOption[K, V]) *InMemoryCacheManager[K, V] {
	c := &InMemoryCacheManager[K, V]{
		useCase: useCase,
		cache:   gocache.New(defaultExpiration, cleanupInterval),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// InMemoryCacheManager is the go-cache implementation of CacheManager.
type InMemoryCacheManager[K ~string, V any] struct {
	useCase string
	cache   *gocache.Cache
}

var _ CacheManager[string, int] = (*InMemoryCacheManager[string, int])(nil)

// Get retrieves an item from the cache by its key
func (c *InMemoryCacheManager[K, V]) Get(_ context.Context, key K) (V, bool) {
	var zeroValue V

	value, found := c.cache.Get(string(key))
	if !found {
		return zeroValue, false
	}

	v, ok := value.(V)
	if !ok {
		log.Error(log.CatCache, "wrong type assertion when getting value", "cache", c.useCase, "key", key)
		return zeroValue, false
	}

	log.Debug(log.CatCache, "cache hit", "cache", c.useCase, "key", key)
	return v, true
}

// GetWithRefresh retrieves an item and, when found, pushes its expiry out to ttl.
func (c *InMemoryCacheManager[K, V]) GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool) {
	value, found := c.Get(ctx, key)
	if !found {
		return value, false
	}

	// Replace rather than Set so an entry expiring concurrently is not resurrected.
	if err := c.cache.Replace(string(key), value, ttl); err != nil {
		log.Debug(log.CatCache, "refresh lost race with expiry", "cache", c.useCase, "key", key)
	}
	return value, true
}

// Set sets a value in the cache with a key and TTL
func (c *InMemoryCacheManager[K, V]) Set(_ context.Context, key K, value V, ttl time.Duration) {
	c.cache.Set(string(key), value, ttl)
}

// Delete removes the given keys. Eviction hooks run for each present key.
func (c *InMemoryCacheManager[K, V]) Delete(_ context.Context, keys ...K) error {
	for _, key := range keys {
		c.cache.Delete(string(key))
	}
	return nil
}

// Keys returns the unexpired keys in sorted order.
func (c *InMemoryCacheManager[K, V]) Keys(_ context.Context) []K {
	items := c.cache.Items()
	keys := make([]K, 0, len(items))
	for k := range items {
		keys = append(keys, K(k))
	}
	slices.Sort(keys)
	return keys
}

// Flush drops every entry without running eviction hooks.
func (c *InMemoryCacheManager[K, V]) Flush(_ context.Context) error {
	c.cache.Flush()
	return nil
}

// DeleteExpired evicts expired entries now instead of waiting for the janitor.
func (c *InMemoryCacheManager[K, V]) DeleteExpired() {
	c.cache.DeleteExpired()
}
