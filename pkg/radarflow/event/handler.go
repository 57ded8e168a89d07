package event

import (
	"context"
	"log/slog"
	"reflect"
	"time"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
)

// Handler reacts to events delivered by a Bus.
//
// Handlers are identified by interface equality, so subscribing the same
// handler twice is a no-op and unsubscribing needs the same value. Use
// pointer receivers, or wrap plain functions with Func.
type Handler interface {
	HandleEvent(ctx context.Context, evt *Event) error
}

// HandlerFunc adapts a function to Handler. Function values are not
// comparable, so a HandlerFunc cannot be subscribed directly; it is meant
// for middleware. Subscribe functions through Func.
type HandlerFunc func(ctx context.Context, evt *Event) error

// HandleEvent calls f.
func (f HandlerFunc) HandleEvent(ctx context.Context, evt *Event) error {
	return f(ctx, evt)
}

type funcHandler struct {
	fn func(context.Context, *Event) error
}

func (h *funcHandler) HandleEvent(ctx context.Context, evt *Event) error {
	return h.fn(ctx, evt)
}

// Func wraps fn in a Handler with a stable identity. Keep the returned
// value to unsubscribe later. Returns nil if fn is nil.
func Func(fn func(ctx context.Context, evt *Event) error) Handler {
	if fn == nil {
		return nil
	}
	return &funcHandler{fn: fn}
}

// checkHandler rejects handlers that cannot be registered: nil, typed nil,
// or values whose dynamic type does not support ==.
func checkHandler(op string, h Handler) error {
	if h == nil {
		return rferrors.InvalidArgument(op, "handler", "must not be nil")
	}
	v := reflect.ValueOf(h)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if v.IsNil() {
			return rferrors.InvalidArgument(op, "handler", "must not be nil")
		}
	}
	if !v.Type().Comparable() {
		return rferrors.InvalidArgument(op, "handler", "must be comparable; wrap functions with event.Func")
	}
	return nil
}

// Middleware wraps a handler invocation.
type Middleware func(next Handler) Handler

// ChainMiddleware composes middleware so the first one is outermost.
func ChainMiddleware(middleware ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(middleware) - 1; i >= 0; i-- {
			next = middleware[i](next)
		}
		return next
	}
}

// LoggingMiddleware logs every handler invocation at debug level.
func LoggingMiddleware(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, evt *Event) error {
			start := time.Now()
			err := next.HandleEvent(ctx, evt)
			logger.Debug("event handled",
				slog.String("event_type", evt.Type()),
				slog.String("event_id", evt.ID()),
				slog.String("handler", handlerName(next)),
				slog.Duration("duration", time.Since(start)),
				slog.Bool("ok", err == nil),
			)
			return err
		})
	}
}

// SlowHandlerMiddleware warns when a handler holds the publisher longer
// than threshold.
func SlowHandlerMiddleware(logger *slog.Logger, threshold time.Duration) Middleware {
	return func(next Handler) Handler {
		return HandlerFunc(func(ctx context.Context, evt *Event) error {
			start := time.Now()
			err := next.HandleEvent(ctx, evt)
			if elapsed := time.Since(start); elapsed > threshold {
				logger.Warn("slow event handler",
					slog.String("event_type", evt.Type()),
					slog.String("handler", handlerName(next)),
					slog.Duration("duration", elapsed),
					slog.Duration("threshold", threshold),
				)
			}
			return err
		})
	}
}

func handlerName(h Handler) string {
	if named, ok := h.(interface{ Name() string }); ok {
		return named.Name()
	}
	return reflect.TypeOf(h).String()
}
