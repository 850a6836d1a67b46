package cachemanager

import (
	"context"
	"sync"
	"time"
)

// ReadThroughCache fronts a loader with a CacheManager. Concurrent misses are
// serialised so fn runs once per key while the entry stays cached.
type ReadThroughCache[K ~string, V any, I any] struct {
	cache           CacheManager[K, V]
	fn              func(ctx context.Context, input I) (V, error)
	shouldSkipCache bool
	mu              sync.Mutex
}

func NewReadThroughCache[K ~string, V any, I any](
	cache CacheManager[K, V],
	fn func(ctx context.Context, input I) (V, error),
	shouldSkipCache bool,
) *ReadThroughCache[K, V, I] {
	return &ReadThroughCache[K, V, I]{
		cache:           cache,
		fn:              fn,
		shouldSkipCache: shouldSkipCache,
	}
}

// Get returns the cached value for key or loads and stores it.
func (r *ReadThroughCache[K, V, I]) Get(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	return r.get(ctx, key, input, ttl, func() (V, bool) { return r.cache.Get(ctx, key) })
}

// GetWithRefresh is Get with the hit path extending the entry's expiry.
func (r *ReadThroughCache[K, V, I]) GetWithRefresh(ctx context.Context, key K, input I, ttl time.Duration) (V, error) {
	return r.get(ctx, key, input, ttl, func() (V, bool) { return r.cache.GetWithRefresh(ctx, key, ttl) })
}

func (r *ReadThroughCache[K, V, I]) get(ctx context.Context, key K, input I, ttl time.Duration, lookup func() (V, bool)) (V, error) {
	if r.shouldSkipCache {
		return r.fn(ctx, input)
	}

	if value, ok := lookup(); ok {
		return value, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another caller may have loaded it while we waited.
	if value, ok := r.cache.Get(ctx, key); ok {
		return value, nil
	}

	value, err := r.fn(ctx, input)
	if err != nil {
		return value, err
	}

	r.cache.Set(ctx, key, value, ttl)
	return value, nil
}
