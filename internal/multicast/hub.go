package multicast

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/weakcast/internal/cachemanager"
	"github.com/zjrosen/weakcast/internal/log"
	"github.com/zjrosen/weakcast/internal/tracing"
)

// ErrEmptyTopic is returned for a blank topic name.
var ErrEmptyTopic = errors.New("topic name must not be empty")

// HubConfig controls how long idle topics live.
type HubConfig struct {
	// IdleTTL evicts a topic that has not been touched for this long.
	IdleTTL time.Duration `mapstructure:"idle_ttl"`
	// CleanupInterval is how often expired topics are swept.
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

// Hub maps topic names to subjects. Topics are created on first use and
// closed when they expire or are dropped.
type Hub[E any] struct {
	cache   cachemanager.CacheManager[string, *Subject[E]]
	topics  *cachemanager.ReadThroughCache[string, *Subject[E], string]
	idleTTL time.Duration
	tracer  trace.Tracer
}

// NewHub creates a hub whose subjects are built with opts plus their topic name.
func NewHub[E any](cfg HubConfig, opts ...Option) *Hub[E] {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = cachemanager.DefaultExpiration
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = cachemanager.DefaultCleanupInterval
	}

	cache := cachemanager.NewInMemoryCacheManager[string, *Subject[E]]("topics", cfg.IdleTTL, cfg.CleanupInterval,
		cachemanager.WithOnEvicted(func(topic string, s *Subject[E]) {
			log.Debug(log.CatCache, "topic evicted", "topic", topic)
			s.Close()
		}),
	)
	return newHub(cache, cfg.IdleTTL, opts...)
}

func newHub[E any](cache cachemanager.CacheManager[string, *Subject[E]], idleTTL time.Duration, opts ...Option) *Hub[E] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	load := func(ctx context.Context, topic string) (*Subject[E], error) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("create topic %q: %w", topic, err)
		}
		log.Info(log.CatMulticast, "topic created", "topic", topic)
		return NewSubject[E](append(opts[:len(opts):len(opts)], WithName(topic))...), nil
	}

	return &Hub[E]{
		cache:   cache,
		topics:  cachemanager.NewReadThroughCache[string, *Subject[E], string](cache, load, false),
		idleTTL: idleTTL,
		tracer:  o.tracer,
	}
}

// Topic returns the subject for name, creating it if needed, and resets its
// idle timer.
func (h *Hub[E]) Topic(ctx context.Context, name string) (*Subject[E], error) {
	if name == "" {
		return nil, ErrEmptyTopic
	}
	s, err := h.topics.GetWithRefresh(ctx, name, name, h.idleTTL)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Publish notifies the observers of an existing topic. Publishing to an
// unknown topic reaches nobody and does not create it.
func (h *Hub[E]) Publish(ctx context.Context, topic string, fn func(E)) (int, error) {
	if topic == "" {
		return 0, ErrEmptyTopic
	}

	ctx, span := tracing.Start(ctx, h.tracer, tracing.SpanPublish, attribute.String(tracing.AttrTopic, topic))
	s, ok := h.cache.GetWithRefresh(ctx, topic, h.idleTTL)
	if !ok {
		log.Debug(log.CatMulticast, "publish to unknown topic", "topic", topic)
		tracing.End(span, nil)
		return 0, nil
	}

	delivered := s.Notify(ctx, fn)
	span.SetAttributes(attribute.Int(tracing.AttrDelivered, delivered))
	tracing.End(span, ctx.Err())
	return delivered, ctx.Err()
}

// CleanUp prunes every topic and returns the total entries removed.
func (h *Hub[E]) CleanUp(ctx context.Context) int {
	total := 0
	for _, topic := range h.cache.Keys(ctx) {
		if s, ok := h.cache.Get(ctx, topic); ok {
			total += s.CleanUp()
		}
	}
	return total
}

// Topics lists the live topic names in sorted order.
func (h *Hub[E]) Topics(ctx context.Context) []string {
	return h.cache.Keys(ctx)
}

// Drop closes and forgets a topic.
func (h *Hub[E]) Drop(ctx context.Context, topic string) error {
	if err := h.cache.Delete(ctx, topic); err != nil {
		return fmt.Errorf("drop topic %q: %w", topic, err)
	}
	return nil
}

// Flush closes and forgets every topic.
func (h *Hub[E]) Flush(ctx context.Context) error {
	topics := h.cache.Keys(ctx)
	for _, topic := range topics {
		if s, ok := h.cache.Get(ctx, topic); ok {
			s.Close()
		}
	}
	if err := h.cache.Flush(ctx); err != nil {
		return fmt.Errorf("flush %d topics: %w", len(topics), err)
	}
	return nil
}
