package event

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
	"github.com/randalmurphal/radarflow/pkg/radarflow/observability"
	"github.com/randalmurphal/radarflow/pkg/radarflow/queue"
)

// MaxPollInterval bounds how long the dispatcher loop waits for an event
// before re-checking whether it was stopped.
const MaxPollInterval = time.Second

// Publisher is what a Dispatcher relays events to. *Bus implements it.
type Publisher interface {
	Publish(ctx context.Context, evt *Event) error
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	// QueueSize bounds pending events. Default: 0 (unbounded).
	QueueSize int

	// PollInterval is how long one wait for an event lasts.
	// Default and maximum: MaxPollInterval.
	PollInterval time.Duration
}

// Dispatcher decouples producers from handler execution: Dispatch enqueues
// and returns, and a single background goroutine publishes queued events
// in order.
type Dispatcher struct {
	publisher Publisher
	queue     *queue.Queue[*Event]
	poll      time.Duration
	logger    *slog.Logger
	metrics   observability.MetricsRecorder

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
	stopped   atomic.Bool
	done      chan struct{}
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithDispatcherMetrics sets the metrics recorder.
func WithDispatcherMetrics(m observability.MetricsRecorder) DispatcherOption {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// NewDispatcher creates a dispatcher relaying to publisher. Call Start to
// begin delivery.
func NewDispatcher(publisher Publisher, cfg DispatcherConfig, opts ...DispatcherOption) (*Dispatcher, error) {
	if publisher == nil {
		return nil, rferrors.InvalidArgument("new dispatcher", "publisher", "must not be nil")
	}
	if cfg.QueueSize < 0 {
		return nil, rferrors.InvalidArgument("new dispatcher", "queue_size", "must not be negative")
	}

	poll := cfg.PollInterval
	if poll <= 0 || poll > MaxPollInterval {
		poll = MaxPollInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	d := &Dispatcher{
		publisher: publisher,
		queue:     queue.New[*Event](cfg.QueueSize),
		poll:      poll,
		logger:    observability.DiscardLogger(),
		metrics:   observability.NoopMetrics{},
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Start launches the delivery goroutine. Calling it again has no effect.
func (d *Dispatcher) Start() {
	d.startOnce.Do(func() {
		go d.run()
	})
}

// Stop asks the delivery goroutine to exit. It does not wait; use Done.
// Events still queued are not delivered. Calling it again has no effect.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		d.stopped.Store(true)
		d.cancel()
		// Never started: nothing else will close done.
		d.startOnce.Do(func() {
			close(d.done)
		})
	})
}

// Done is closed once the delivery goroutine has exited.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// Dispatch enqueues evt, waiting for room until ctx is done. It reports
// false if the queue stayed full. Errors are reserved for a nil event and a
// stopped dispatcher.
func (d *Dispatcher) Dispatch(ctx context.Context, evt *Event) (bool, error) {
	if err := d.checkDispatch(evt); err != nil {
		return false, err
	}
	return d.accepted(ctx, evt, d.queue.Put(ctx, evt)), nil
}

// TryDispatch enqueues evt only if there is room right now.
func (d *Dispatcher) TryDispatch(evt *Event) (bool, error) {
	if err := d.checkDispatch(evt); err != nil {
		return false, err
	}
	return d.accepted(context.Background(), evt, d.queue.TryPut(evt)), nil
}

func (d *Dispatcher) checkDispatch(evt *Event) error {
	if evt == nil {
		return rferrors.InvalidArgument("dispatch", "event", "must not be nil")
	}
	if d.stopped.Load() {
		return ErrDispatcherStopped
	}
	return nil
}

func (d *Dispatcher) accepted(ctx context.Context, evt *Event, err error) bool {
	ok := err == nil
	d.metrics.RecordDispatch(ctx, evt.Type(), ok)
	if !ok {
		d.logger.Warn("event not dispatched, queue full",
			slog.String("event_type", evt.Type()),
			slog.String("event_id", evt.ID()),
			slog.Int("queue_size", d.queue.Len()),
		)
	}
	return ok
}

// WaitEmpty blocks until every dispatched event has been delivered or ctx
// is done, and reports whether the queue drained.
func (d *Dispatcher) WaitEmpty(ctx context.Context) bool {
	return d.queue.Join(ctx) == nil
}

// QueueSize returns the number of pending events. Introspection only.
func (d *Dispatcher) QueueSize() int {
	return d.queue.Len()
}

// IsFull reports whether a bounded queue is at capacity. Introspection only.
func (d *Dispatcher) IsFull() bool {
	return d.queue.Full()
}

func (d *Dispatcher) run() {
	defer close(d.done)
	d.logger.Debug("event dispatcher started", slog.Duration("poll_interval", d.poll))

	for d.ctx.Err() == nil {
		pollCtx, cancel := context.WithTimeout(d.ctx, d.poll)
		evt, err := d.queue.Get(pollCtx)
		cancel()
		if err != nil {
			continue
		}
		d.deliver(evt)
	}

	d.logger.Debug("event dispatcher stopped", slog.Int("undelivered", d.queue.Len()))
}

func (d *Dispatcher) deliver(evt *Event) {
	defer d.queue.Done()

	// Handlers get a context that outlives Stop: in-flight delivery is
	// never interrupted.
	err := rferrors.TryErr(func() error {
		return d.publisher.Publish(context.WithoutCancel(d.ctx), evt)
	})
	if err != nil {
		d.logger.Error("event delivery failed",
			slog.String("event_type", evt.Type()),
			slog.String("event_id", evt.ID()),
			slog.String("error", err.Error()),
		)
	}
}
