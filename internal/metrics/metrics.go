// Package metrics records observer lifecycle counters with Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zjrosen/weakcast/internal/log"
)

const namespace = "weakcast"

// Recorder owns a private registry and the weakcast collectors.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry      *prometheus.Registry
	added         *prometheus.CounterVec
	pruned        *prometheus.CounterVec
	notifications *prometheus.CounterVec
	deliveries    *prometheus.CounterVec
	live          *prometheus.GaugeVec
}

// NewRecorder registers the weakcast collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		added: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observers_added_total",
			Help:      "Observers registered with a subject",
		}, []string{"subject"}),
		pruned: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "observers_pruned_total",
			Help:      "Stale entries removed after their observer was collected",
		}, []string{"subject"}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notify calls made on a subject",
		}, []string{"subject"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_total",
			Help:      "Observer callbacks invoked by notify",
		}, []string{"subject"}),
		live: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observers_live",
			Help:      "Observers held by a subject after its last change",
		}, []string{"subject"}),
	}
}

// ObserverAdded counts one registration.
func (r *Recorder) ObserverAdded(subject string) {
	if r == nil {
		return
	}
	r.added.WithLabelValues(subject).Inc()
}

// ObserversPruned counts n removed stale entries.
func (r *Recorder) ObserversPruned(subject string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.pruned.WithLabelValues(subject).Add(float64(n))
}

// Notified counts one notify pass that reached delivered observers.
func (r *Recorder) Notified(subject string, delivered int) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(subject).Inc()
	r.deliveries.WithLabelValues(subject).Add(float64(delivered))
	r.live.WithLabelValues(subject).Set(float64(delivered))
}

// SetLive sets the live gauge for subject.
func (r *Recorder) SetLive(subject string, n int) {
	if r == nil {
		return
	}
	r.live.WithLabelValues(subject).Set(float64(n))
}

// Forget drops every series labelled with subject.
func (r *Recorder) Forget(subject string) {
	if r == nil {
		return
	}
	for _, vec := range []*prometheus.CounterVec{r.added, r.pruned, r.notifications, r.deliveries} {
		vec.DeleteLabelValues(subject)
	}
	r.live.DeleteLabelValues(subject)
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled.
func (r *Recorder) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(log.CatMetrics, "serving metrics", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve metrics on %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	}
}
