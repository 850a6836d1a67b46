package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorder_Counters(t *testing.T) {
	r := NewRecorder()

	r.ObserverAdded("news")
	r.ObserverAdded("news")
	r.ObserversPruned("news", 3)
	r.ObserversPruned("news", 0)
	r.Notified("news", 5)
	r.Notified("news", 4)

	require.Equal(t, 2.0, testutil.ToFloat64(r.added.WithLabelValues("news")))
	require.Equal(t, 3.0, testutil.ToFloat64(r.pruned.WithLabelValues("news")))
	require.Equal(t, 2.0, testutil.ToFloat64(r.notifications.WithLabelValues("news")))
	require.Equal(t, 9.0, testutil.ToFloat64(r.deliveries.WithLabelValues("news")))
	require.Equal(t, 4.0, testutil.ToFloat64(r.live.WithLabelValues("news")), "gauge tracks the latest pass")
}

func TestRecorder_ExpositionNames(t *testing.T) {
	r := NewRecorder()
	r.ObserverAdded("a")
	r.SetLive("a", 1)

	expected := `
# HELP weakcast_observers_added_total Observers registered with a subject
# TYPE weakcast_observers_added_total counter
weakcast_observers_added_total{subject="a"} 1
`
	require.NoError(t, testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected), "weakcast_observers_added_total"))

	count, err := testutil.GatherAndCount(r.Registry(), "weakcast_observers_live")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestRecorder_Forget(t *testing.T) {
	r := NewRecorder()
	r.ObserverAdded("gone")
	r.Notified("gone", 1)
	r.ObserverAdded("kept")

	r.Forget("gone")

	require.Equal(t, 1, testutil.CollectAndCount(r.added))
	require.Equal(t, 0, testutil.CollectAndCount(r.live))
}

func TestRecorder_NilIsNoop(t *testing.T) {
	var r *Recorder
	require.NotPanics(t, func() {
		r.ObserverAdded("x")
		r.ObserversPruned("x", 1)
		r.Notified("x", 1)
		r.SetLive("x", 1)
		r.Forget("x")
	})
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder()
	r.Notified("topic", 2)

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `weakcast_deliveries_total{subject="topic"} 2`)
}

func TestRecorder_ServeStopsOnCancel(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	r := NewRecorder()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Serve(ctx, addr) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		require.Fail(t, "Serve did not return after cancel")
	}
}

func TestRecorder_ServeBadAddr(t *testing.T) {
	err := NewRecorder().Serve(context.Background(), "256.0.0.1:bad")
	require.Error(t, err)
}
