package journal

import (
	"context"
	"errors"
	"log/slog"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
	"github.com/randalmurphal/radarflow/pkg/radarflow/event"
	"github.com/randalmurphal/radarflow/pkg/radarflow/observability"
)

// Recorder is an event.Handler that appends every event it receives to a
// Store. Subscribe it behind a Dispatcher so slow storage never stalls
// publishers.
type Recorder struct {
	store  Store
	logger *slog.Logger
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRecorder creates a recorder writing to store.
func NewRecorder(store Store, opts ...RecorderOption) *Recorder {
	r := &Recorder{store: store, logger: observability.DiscardLogger()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HandleEvent implements event.Handler.
func (r *Recorder) HandleEvent(ctx context.Context, evt *event.Event) error {
	e, err := r.store.Append(ctx, evt)
	if err != nil {
		return &rferrors.RepositoryError{Op: "append", EntityType: "event", EntityID: evt.ID(), Err: err}
	}
	r.logger.Debug("event journaled",
		slog.String("event_type", e.Type),
		slog.String("event_id", e.EventID),
		slog.Int64("seq", e.Seq),
	)
	return nil
}

// Attach subscribes the recorder to each type on sub. With no types it
// subscribes to event.Types().
func (r *Recorder) Attach(sub Subscriber, types ...string) error {
	if len(types) == 0 {
		types = event.Types()
	}
	var errs []error
	for _, t := range types {
		errs = append(errs, sub.Subscribe(t, r))
	}
	return errors.Join(errs...)
}

// Detach undoes Attach for the same types.
func (r *Recorder) Detach(sub Subscriber, types ...string) {
	if len(types) == 0 {
		types = event.Types()
	}
	for _, t := range types {
		sub.Unsubscribe(t, r)
	}
}

// Subscriber is the part of event.Bus the recorder needs.
type Subscriber interface {
	Subscribe(eventType string, h event.Handler) error
	Unsubscribe(eventType string, h event.Handler) bool
}
