package event

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
	"github.com/randalmurphal/radarflow/pkg/radarflow/observability"
)

// Bus is a synchronous, in-process publish/subscribe registry keyed by
// event type. It is safe for concurrent use.
type Bus struct {
	// Slices stored here are never mutated in place, so Publish can use
	// them after releasing the lock.
	mu       sync.RWMutex
	handlers map[string][]subscriber

	middleware Middleware
	logger     *slog.Logger
	metrics    observability.MetricsRecorder
	spans      observability.SpanManager
}

type subscriber struct {
	handler Handler // identity
	invoke  Handler // handler wrapped in middleware
}

// BusOption configures a Bus.
type BusOption func(*Bus)

// WithLogger sets the logger used for handler failures.
func WithLogger(logger *slog.Logger) BusOption {
	return func(b *Bus) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) BusOption {
	return func(b *Bus) {
		if m != nil {
			b.metrics = m
		}
	}
}

// WithSpans sets the span manager.
func WithSpans(s observability.SpanManager) BusOption {
	return func(b *Bus) {
		if s != nil {
			b.spans = s
		}
	}
}

// WithMiddleware wraps every handler subscribed afterwards.
func WithMiddleware(middleware ...Middleware) BusOption {
	return func(b *Bus) {
		if b.middleware != nil {
			middleware = append([]Middleware{b.middleware}, middleware...)
		}
		b.middleware = ChainMiddleware(middleware...)
	}
}

// NewBus creates an empty bus.
func NewBus(opts ...BusOption) *Bus {
	b := &Bus{
		handlers: make(map[string][]subscriber),
		logger:   observability.DiscardLogger(),
		metrics:  observability.NoopMetrics{},
		spans:    observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Subscribe registers h for eventType. Subscribing a handler that is
// already registered for the type does nothing.
func (b *Bus) Subscribe(eventType string, h Handler) error {
	if eventType == "" {
		return rferrors.InvalidArgument("subscribe", "event_type", "must not be empty")
	}
	if err := checkHandler("subscribe", h); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.handlers[eventType]
	for _, s := range current {
		if s.handler == h {
			return nil
		}
	}

	invoke := h
	if b.middleware != nil {
		invoke = b.middleware(h)
	}

	next := make([]subscriber, len(current), len(current)+1)
	copy(next, current)
	b.handlers[eventType] = append(next, subscriber{handler: h, invoke: invoke})
	return nil
}

// Unsubscribe removes h from eventType and reports whether it was
// registered. The type disappears from EventTypes once its last handler
// is removed.
func (b *Bus) Unsubscribe(eventType string, h Handler) bool {
	if checkHandler("unsubscribe", h) != nil {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	current := b.handlers[eventType]
	for i, s := range current {
		if s.handler != h {
			continue
		}
		if len(current) == 1 {
			delete(b.handlers, eventType)
			return true
		}
		next := make([]subscriber, 0, len(current)-1)
		next = append(next, current[:i]...)
		b.handlers[eventType] = append(next, current[i+1:]...)
		return true
	}
	return false
}

// Publish delivers evt to every handler registered for its type, in
// registration order, on the calling goroutine. Handlers subscribed or
// removed during delivery do not affect this call. Handler errors and
// panics are logged and counted, never returned; the only error is a nil
// event.
func (b *Bus) Publish(ctx context.Context, evt *Event) error {
	if evt == nil {
		return rferrors.InvalidArgument("publish", "event", "must not be nil")
	}

	b.mu.RLock()
	subs := b.handlers[evt.Type()]
	b.mu.RUnlock()

	if len(subs) == 0 {
		b.metrics.RecordPublish(ctx, evt.Type(), 0, 0)
		return nil
	}

	ctx, span := b.spans.StartPublishSpan(ctx, evt.Type(), evt.ID())

	failures := 0
	for _, s := range subs {
		err := rferrors.TryErr(func() error {
			return s.invoke.HandleEvent(ctx, evt)
		})
		if err != nil {
			failures++
			observability.LogHandlerFailed(b.logger, evt.Type(), evt.ID(), err)
		}
	}

	var spanErr error
	if failures > 0 {
		spanErr = fmt.Errorf("%d of %d handlers failed", failures, len(subs))
	}
	b.spans.EndSpanWithError(span, spanErr)
	b.metrics.RecordPublish(ctx, evt.Type(), len(subs), failures)
	return nil
}

// Clear removes every subscription.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers = make(map[string][]subscriber)
}

// EventTypes returns the types that currently have handlers, sorted.
func (b *Bus) EventTypes() []string {
	b.mu.RLock()
	types := make([]string, 0, len(b.handlers))
	for t := range b.handlers {
		types = append(types, t)
	}
	b.mu.RUnlock()

	slices.Sort(types)
	return types
}

// HandlerCount returns how many handlers are registered for eventType.
func (b *Bus) HandlerCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[eventType])
}
