package tracing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span names.
const (
	SpanNotify  = "multicast.notify"
	SpanCleanUp = "multicast.cleanup"
	SpanPublish = "hub.publish"
)

// Span attribute keys.
const (
	AttrSubjectID   = "subject.id"
	AttrSubjectName = "subject.name"
	AttrTopic       = "hub.topic"
	AttrBacking     = "observers.backing"
	AttrDelivered   = "observers.delivered"
	AttrPruned      = "observers.pruned"
)

// Event names recorded on spans.
const (
	EventSnapshotTaken = "snapshot.taken"
	EventPruned        = "observers.pruned"
)

// Start opens an internal span. A nil tracer yields a non-recording span.
func Start(ctx context.Context, tracer trace.Tracer, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...),
	)
}

// End records err (if any) as the span outcome and ends the span.
func End(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
