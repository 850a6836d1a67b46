package cachemanager

import (
	"context"
	"time"
)

// CacheManager is a keyed store with per-entry expiry.
type CacheManager[K ~string, V any] interface {
	Get(ctx context.Context, key K) (V, bool)
	GetWithRefresh(ctx context.Context, key K, ttl time.Duration) (V, bool)
	Set(ctx context.Context, key K, value V, ttl time.Duration)
	Delete(ctx context.Context, keys ...K) error
	Keys(ctx context.Context) []K
	Flush(ctx context.Context) error
}
