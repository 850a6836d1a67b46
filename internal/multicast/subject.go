// Package multicast fans calls out to observers that the subject does not own.
//
// A Subject keeps its observers in a weakcollection.Collection behind a mutex.
// Observers disappear once nothing else references them; the subject notices
// on the next Add, CleanUp or Notify.
package multicast

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zjrosen/weakcast/internal/log"
	"github.com/zjrosen/weakcast/internal/metrics"
	"github.com/zjrosen/weakcast/internal/pubsub"
	"github.com/zjrosen/weakcast/internal/tracing"
	"github.com/zjrosen/weakcast/pkg/weakcollection"
	"github.com/zjrosen/weakcast/pkg/weakref"
)

// Change is the payload of a Subject lifecycle event.
type Change struct {
	SubjectID string
	Subject   string
	// Count is the number of observers the event concerns: 1 for an add, the
	// removed or pruned entries, or the observers reached by a notify.
	Count int
	// Backing is the stored entry count after the change, stale entries included.
	Backing int
}

// Subject is a thread-safe multicast delegate over weakly-held observers.
type Subject[E any] struct {
	mu        sync.Mutex
	observers weakcollection.Collection[E]

	id       string
	name     string
	tracer   trace.Tracer
	recorder *metrics.Recorder
	broker   *pubsub.Broker[Change]
	pruned   atomic.Int64
}

var _ pubsub.Subscriber[Change] = (*Subject[any])(nil)

// NewSubject creates an empty subject.
func NewSubject[E any](opts ...Option) *Subject[E] {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	id := uuid.New().String()
	name := o.name
	if name == "" {
		name = id
	}

	return &Subject[E]{
		id:       id,
		name:     name,
		tracer:   o.tracer,
		recorder: o.recorder,
		broker:   pubsub.NewBrokerWithBuffer[Change](o.bufferSize),
	}
}

// ID returns the subject's unique identifier.
func (s *Subject[E]) ID() string { return s.id }

// Name returns the label given by WithName, or the ID.
func (s *Subject[E]) Name() string { return s.name }

// Add registers observer. Duplicates are allowed. Returns false when observer
// is not a pointer to a heap object and was therefore not stored.
func (s *Subject[E]) Add(observer E) bool {
	return s.add(observer, false)
}

// AddUnique registers observer unless it is already present. Returns true
// only when a new entry was stored.
func (s *Subject[E]) AddUnique(observer E) bool {
	return s.add(observer, true)
}

func (s *Subject[E]) add(observer E, unique bool) bool {
	if weakref.Check(observer) != nil {
		// Make reports the rejection and panics in strict mode.
		weakref.Make(observer)
		return false
	}

	s.mu.Lock()
	pruned := s.observers.CleanUp()
	if unique && s.observers.Contains(observer) {
		backing := s.observers.Len()
		s.mu.Unlock()
		s.reportPruned(pruned, backing)
		return false
	}
	s.observers.Append(observer)
	backing := s.observers.Len()
	s.mu.Unlock()

	s.reportPruned(pruned, backing)
	s.recorder.ObserverAdded(s.name)
	s.recorder.SetLive(s.name, backing)
	s.broker.Publish(pubsub.CreatedEvent, s.change(1, backing))
	log.Debug(log.CatMulticast, "observer added", "subject", s.name, "backing", backing)
	return true
}

// Remove unregisters every entry identical to observer and returns how many
// were removed.
func (s *Subject[E]) Remove(observer E) int {
	s.mu.Lock()
	removed := s.observers.Remove(observer)
	backing := s.observers.Len()
	s.mu.Unlock()

	if removed > 0 {
		s.recorder.SetLive(s.name, backing)
		s.broker.Publish(pubsub.DeletedEvent, s.change(removed, backing))
		log.Debug(log.CatMulticast, "observer removed", "subject", s.name, "removed", removed)
	}
	return removed
}

// CleanUp drops entries whose observers were collected and returns how many.
func (s *Subject[E]) CleanUp() int {
	return s.cleanUp(context.Background())
}

func (s *Subject[E]) cleanUp(ctx context.Context) int {
	_, span := tracing.Start(ctx, s.tracer, tracing.SpanCleanUp, s.attrs()...)

	s.mu.Lock()
	pruned := s.observers.CleanUp()
	backing := s.observers.Len()
	s.mu.Unlock()

	if pruned > 0 {
		span.AddEvent(tracing.EventPruned, trace.WithAttributes(attribute.Int(tracing.AttrPruned, pruned)))
	}
	span.SetAttributes(attribute.Int(tracing.AttrBacking, backing))
	tracing.End(span, nil)

	s.reportPruned(pruned, backing)
	s.recorder.SetLive(s.name, backing)
	return pruned
}

// Notify prunes stale entries, snapshots the live observers and calls fn on
// each in insertion order. The lock is not held while fn runs, so fn may add
// or remove observers; those changes apply to the next pass. Delivery stops
// early if ctx is cancelled. Returns the number of observers reached.
func (s *Subject[E]) Notify(ctx context.Context, fn func(E)) int {
	ctx, span := tracing.Start(ctx, s.tracer, tracing.SpanNotify, s.attrs()...)

	s.cleanUp(ctx)

	s.mu.Lock()
	snapshot := s.observers.Elements()
	backing := s.observers.Len()
	s.mu.Unlock()

	span.AddEvent(tracing.EventSnapshotTaken, trace.WithAttributes(attribute.Int(tracing.AttrBacking, backing)))

	delivered := 0
	for _, observer := range snapshot {
		if ctx.Err() != nil {
			break
		}
		fn(observer)
		delivered++
	}

	span.SetAttributes(attribute.Int(tracing.AttrDelivered, delivered))
	tracing.End(span, ctx.Err())

	s.recorder.Notified(s.name, delivered)
	s.broker.Publish(pubsub.NotifiedEvent, s.change(delivered, backing))
	log.Debug(log.CatMulticast, "notified observers", "subject", s.name, "delivered", delivered, "snapshot", len(snapshot))
	return delivered
}

// Contains reports whether observer is registered and alive.
func (s *Subject[E]) Contains(observer E) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observers.Contains(observer)
}

// Count returns the number of live observers.
func (s *Subject[E]) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observers.Count()
}

// Len returns the number of stored entries, including ones not yet pruned.
func (s *Subject[E]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observers.Len()
}

// Snapshot returns the live observers in insertion order.
func (s *Subject[E]) Snapshot() []E {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.observers.Elements()
}

// Pruned returns how many collected entries the subject has removed over its
// lifetime, whether by Add, CleanUp or Notify.
func (s *Subject[E]) Pruned() int {
	return int(s.pruned.Load())
}

// Subscribe streams lifecycle events until ctx is cancelled or the subject closes.
func (s *Subject[E]) Subscribe(ctx context.Context) <-chan pubsub.Event[Change] {
	return s.broker.Subscribe(ctx)
}

// Close ends every lifecycle stream and forgets the subject's metric series.
// Observers stay registered and Notify keeps working.
func (s *Subject[E]) Close() {
	subscribers := s.broker.SubscriberCount()
	s.broker.Close()
	s.recorder.Forget(s.name)
	log.Debug(log.CatMulticast, "subject closed", "subject", s.name,
		"subscribers", subscribers, "dropped_events", s.broker.Dropped())
}

func (s *Subject[E]) reportPruned(pruned, backing int) {
	if pruned == 0 {
		return
	}
	s.pruned.Add(int64(pruned))
	s.recorder.ObserversPruned(s.name, pruned)
	s.broker.Publish(pubsub.PrunedEvent, s.change(pruned, backing))
	log.Debug(log.CatMulticast, "pruned collected observers", "subject", s.name, "pruned", pruned, "backing", backing)
}

func (s *Subject[E]) change(count, backing int) Change {
	return Change{SubjectID: s.id, Subject: s.name, Count: count, Backing: backing}
}

func (s *Subject[E]) attrs() []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(tracing.AttrSubjectID, s.id),
		attribute.String(tracing.AttrSubjectName, s.name),
	}
}
