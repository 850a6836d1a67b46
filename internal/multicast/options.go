package multicast

import (
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/weakcast/internal/metrics"
)

type options struct {
	name       string
	tracer     trace.Tracer
	recorder   *metrics.Recorder
	bufferSize int
}

// Option configures a Subject.
type Option func(*options)

// WithName labels the subject in logs, spans and metrics. Defaults to its ID.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithTracer wraps notify passes in spans.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tracer
	}
}

// WithRecorder reports lifecycle counters to r.
func WithRecorder(r *metrics.Recorder) Option {
	return func(o *options) {
		o.recorder = r
	}
}

// WithBrokerBuffer sets the per-subscriber buffer of the lifecycle stream.
func WithBrokerBuffer(n int) Option {
	return func(o *options) {
		o.bufferSize = n
	}
}
