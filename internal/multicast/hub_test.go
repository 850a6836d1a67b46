package multicast

import (
	"context"
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/weakcast/internal/mocks"
)

func newTestHub(t *testing.T, ttl time.Duration) *Hub[listener] {
	t.Helper()
	h := NewHub[listener](HubConfig{IdleTTL: ttl, CleanupInterval: time.Hour})
	t.Cleanup(func() { _ = h.Flush(context.Background()) })
	return h
}

func TestHub_TopicIsGetOrCreate(t *testing.T) {
	h := newTestHub(t, time.Minute)
	ctx := context.Background()

	news, err := h.Topic(ctx, "news")
	require.NoError(t, err)
	require.Equal(t, "news", news.Name())

	again, err := h.Topic(ctx, "news")
	require.NoError(t, err)
	require.Same(t, news, again)

	sports, err := h.Topic(ctx, "sports")
	require.NoError(t, err)
	require.NotSame(t, news, sports)

	require.Equal(t, []string{"news", "sports"}, h.Topics(ctx))
}

func TestHub_EmptyTopic(t *testing.T) {
	h := newTestHub(t, time.Minute)

	_, err := h.Topic(context.Background(), "")
	require.ErrorIs(t, err, ErrEmptyTopic)

	_, err = h.Publish(context.Background(), "", send("x"))
	require.ErrorIs(t, err, ErrEmptyTopic)
}

func TestHub_TopicCancelledContext(t *testing.T) {
	h := newTestHub(t, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := h.Topic(ctx, "news")
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, h.Topics(context.Background()))
}

func TestHub_PublishReachesTopicObservers(t *testing.T) {
	h := newTestHub(t, time.Minute)
	ctx := context.Background()

	news, err := h.Topic(ctx, "news")
	require.NoError(t, err)
	reader := newListener("reader")
	news.Add(reader)

	delivered, err := h.Publish(ctx, "news", send("headline"))
	require.NoError(t, err)
	require.Equal(t, 1, delivered)
	require.Equal(t, []string{"headline"}, reader.received())

	delivered, err = h.Publish(ctx, "unknown", send("lost"))
	require.NoError(t, err)
	require.Zero(t, delivered)
	require.Equal(t, []string{"news"}, h.Topics(ctx), "publish does not create topics")
}

func TestHub_CleanUpSumsTopics(t *testing.T) {
	h := newTestHub(t, time.Minute)
	ctx := context.Background()

	news, _ := h.Topic(ctx, "news")
	sports, _ := h.Topic(ctx, "sports")
	kept := newListener("kept")
	news.Add(newListener("n1"))
	news.Add(kept)
	sports.Add(newListener("s1"))
	collect()

	require.Equal(t, 2, h.CleanUp(ctx))
	require.Equal(t, 1, news.Len())
	require.Zero(t, sports.Len())
	runtime.KeepAlive(kept)
}

func TestHub_DropClosesSubject(t *testing.T) {
	h := newTestHub(t, time.Minute)
	ctx := context.Background()

	news, _ := h.Topic(ctx, "news")
	events := news.Subscribe(ctx)

	require.NoError(t, h.Drop(ctx, "news"))

	_, ok := <-events
	require.False(t, ok, "dropping a topic closes its lifecycle stream")
	require.Empty(t, h.Topics(ctx))

	fresh, _ := h.Topic(ctx, "news")
	require.NotEqual(t, news.ID(), fresh.ID())
}

func TestHub_IdleTopicsExpire(t *testing.T) {
	h := NewHub[listener](HubConfig{IdleTTL: 30 * time.Millisecond, CleanupInterval: 10 * time.Millisecond})
	ctx := context.Background()

	news, _ := h.Topic(ctx, "news")
	events := news.Subscribe(ctx)

	select {
	case _, ok := <-events:
		require.False(t, ok)
	case <-time.After(2 * time.Second):
		require.FailNow(t, "idle topic was not evicted")
	}
	require.Empty(t, h.Topics(ctx))
}

func TestHub_FlushClosesEverything(t *testing.T) {
	h := newTestHub(t, time.Minute)
	ctx := context.Background()

	a, _ := h.Topic(ctx, "a")
	b, _ := h.Topic(ctx, "b")
	evA, evB := a.Subscribe(ctx), b.Subscribe(ctx)

	require.NoError(t, h.Flush(ctx))

	_, okA := <-evA
	_, okB := <-evB
	require.False(t, okA)
	require.False(t, okB)
	require.Empty(t, h.Topics(ctx))
}

func TestHub_CacheErrorsAreWrapped(t *testing.T) {
	cache := mocks.NewMockCacheManager[string, *Subject[listener]](t)
	cache.EXPECT().Delete(mock.Anything, "news").Return(errors.New("backend down"))
	cache.EXPECT().Keys(mock.Anything).Return([]string{})
	cache.EXPECT().Flush(mock.Anything).Return(errors.New("backend down"))

	h := newHub[listener](cache, time.Minute)

	err := h.Drop(context.Background(), "news")
	require.EqualError(t, err, `drop topic "news": backend down`)

	err = h.Flush(context.Background())
	require.EqualError(t, err, "flush 0 topics: backend down")
}

func TestHub_TopicUsesCacheHit(t *testing.T) {
	existing := NewSubject[listener](WithName("news"))
	cache := mocks.NewMockCacheManager[string, *Subject[listener]](t)
	cache.EXPECT().GetWithRefresh(mock.Anything, "news", time.Minute).Return(existing, true)

	h := newHub[listener](cache, time.Minute)

	got, err := h.Topic(context.Background(), "news")
	require.NoError(t, err)
	require.Same(t, existing, got)
}
