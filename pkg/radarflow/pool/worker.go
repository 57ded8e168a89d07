package pool

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/randalmurphal/radarflow/pkg/radarflow/observability"
)

// DefaultPollInterval is how long a worker waits for a task before
// re-checking its stop signal and idle policy.
const DefaultPollInterval = time.Second

// WorkerState is the lifecycle state of a Worker.
type WorkerState int32

const (
	// WorkerIdle means the worker is waiting for a task.
	WorkerIdle WorkerState = iota
	// WorkerExecuting means the worker is running a task.
	WorkerExecuting
	// WorkerStopped means the worker loop has exited.
	WorkerStopped
)

// String returns the state name.
func (s WorkerState) String() string {
	switch s {
	case WorkerIdle:
		return "idle"
	case WorkerExecuting:
		return "executing"
	case WorkerStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ExitReason says why a worker left its loop.
type ExitReason int32

const (
	// ExitNone means the worker has not exited.
	ExitNone ExitReason = iota
	// ExitStopped means Stop was called.
	ExitStopped
	// ExitIdle means the idle timeout elapsed and retirement was allowed.
	ExitIdle
)

// String returns the reason name.
func (r ExitReason) String() string {
	switch r {
	case ExitStopped:
		return "stopped"
	case ExitIdle:
		return "idle"
	default:
		return "none"
	}
}

type workerConfig struct {
	pollInterval time.Duration
	idleTimeout  time.Duration
	poolName     string
	clock        clock.Clock
	logger       *slog.Logger
	metrics      observability.MetricsRecorder
	spans        observability.SpanManager

	canRetire   func(*Worker) bool
	onTaskStart func(*Worker)
	onTaskDone  func(*Task, time.Duration, error)
	onExit      func(*Worker)
}

// WorkerOption configures a Worker.
type WorkerOption func(*workerConfig)

// WithPollInterval sets how long one wait for a task lasts.
func WithPollInterval(d time.Duration) WorkerOption {
	return func(c *workerConfig) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithIdleTimeout lets the worker exit after d without work. Zero or
// negative disables it.
func WithIdleTimeout(d time.Duration) WorkerOption {
	return func(c *workerConfig) {
		c.idleTimeout = d
	}
}

// WithWorkerClock sets the time source.
func WithWorkerClock(clk clock.Clock) WorkerOption {
	return func(c *workerConfig) {
		if clk != nil {
			c.clock = clk
		}
	}
}

// WithWorkerLogger sets the logger.
func WithWorkerLogger(logger *slog.Logger) WorkerOption {
	return func(c *workerConfig) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithWorkerMetrics sets the metrics recorder.
func WithWorkerMetrics(m observability.MetricsRecorder) WorkerOption {
	return func(c *workerConfig) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithWorkerSpans sets the span manager.
func WithWorkerSpans(s observability.SpanManager) WorkerOption {
	return func(c *workerConfig) {
		if s != nil {
			c.spans = s
		}
	}
}

// WithRetirePolicy is consulted once the idle timeout has elapsed; the
// worker exits only if it returns true.
func WithRetirePolicy(fn func(*Worker) bool) WorkerOption {
	return func(c *workerConfig) {
		c.canRetire = fn
	}
}

func withPoolName(name string) WorkerOption {
	return func(c *workerConfig) { c.poolName = name }
}

func withStartHook(fn func(*Worker)) WorkerOption {
	return func(c *workerConfig) { c.onTaskStart = fn }
}

func withTaskHook(fn func(*Task, time.Duration, error)) WorkerOption {
	return func(c *workerConfig) { c.onTaskDone = fn }
}

func withExitHook(fn func(*Worker)) WorkerOption {
	return func(c *workerConfig) { c.onExit = fn }
}

// Worker consumes tasks from a TaskQueue on its own goroutine.
type Worker struct {
	id    string
	queue *TaskQueue
	cfg   workerConfig

	state      atomic.Int32
	exitReason atomic.Int32
	lastActive atomic.Int64 // UnixNano per cfg.clock

	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	stopOnce  sync.Once
	done      chan struct{}
}

// NewWorker creates a worker for q. Call Start to run it.
func NewWorker(id string, q *TaskQueue, opts ...WorkerOption) *Worker {
	cfg := workerConfig{
		pollInterval: DefaultPollInterval,
		poolName:     "standalone",
		clock:        clock.New(),
		logger:       observability.DiscardLogger(),
		metrics:      observability.NoopMetrics{},
		spans:        observability.NoopSpanManager{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		id:     id,
		queue:  q,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	w.touch()
	return w
}

// ID returns the worker identifier.
func (w *Worker) ID() string { return w.id }

// State returns the current lifecycle state.
func (w *Worker) State() WorkerState { return WorkerState(w.state.Load()) }

// IsIdle reports whether the worker is waiting for a task.
func (w *Worker) IsIdle() bool { return w.State() == WorkerIdle }

// ExitReason reports why the worker exited, or ExitNone while it runs.
func (w *Worker) ExitReason() ExitReason { return ExitReason(w.exitReason.Load()) }

// IdleFor returns how long the worker has been without a task. It is zero
// while executing.
func (w *Worker) IdleFor() time.Duration {
	if w.State() == WorkerExecuting {
		return 0
	}
	return w.cfg.clock.Since(time.Unix(0, w.lastActive.Load()))
}

// Start launches the worker goroutine. Calling it again has no effect.
func (w *Worker) Start() {
	w.startOnce.Do(func() {
		go w.run()
	})
}

// Stop asks the worker to exit once its current task, if any, returns.
// It does not wait; use Done. Calling it again has no effect.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		w.cancel()
		w.startOnce.Do(func() {
			w.finish(ExitStopped)
		})
	})
}

// Done is closed once the worker has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

func (w *Worker) run() {
	reason := ExitStopped
	defer func() { w.finish(reason) }()

	for w.ctx.Err() == nil {
		pollCtx, cancel := w.cfg.clock.WithTimeout(w.ctx, w.cfg.pollInterval)
		task, err := w.queue.Get(pollCtx)
		cancel()

		if err != nil {
			if w.ctx.Err() == nil && w.shouldRetire() {
				reason = ExitIdle
				return
			}
			continue
		}
		w.execute(task)
	}
}

func (w *Worker) finish(reason ExitReason) {
	w.exitReason.Store(int32(reason))
	w.state.Store(int32(WorkerStopped))
	observability.LogWorkerExit(w.cfg.logger, w.id, reason.String())
	if w.cfg.onExit != nil {
		w.cfg.onExit(w)
	}
	close(w.done)
}

func (w *Worker) shouldRetire() bool {
	if w.cfg.idleTimeout <= 0 || w.IdleFor() < w.cfg.idleTimeout {
		return false
	}
	return w.cfg.canRetire == nil || w.cfg.canRetire(w)
}

// execute runs one task. Whatever the task does, the queue is told it is
// done and the worker returns to idle.
func (w *Worker) execute(task *Task) {
	defer w.queue.TaskDone()

	w.state.Store(int32(WorkerExecuting))
	defer func() {
		w.touch()
		w.state.Store(int32(WorkerIdle))
	}()
	if w.cfg.onTaskStart != nil {
		w.cfg.onTaskStart(w)
	}

	ctx, span := w.cfg.spans.StartTaskSpan(context.Background(), w.cfg.poolName, task.ID, task.Name)
	observability.LogTaskStart(w.cfg.logger, w.id, task.ID, task.Name)
	start := w.cfg.clock.Now()

	res := task.run(ctx)

	elapsed := w.cfg.clock.Since(start)
	w.cfg.spans.EndSpanWithError(span, res.Err)
	w.cfg.metrics.RecordTaskExecution(ctx, w.cfg.poolName, elapsed, res.Err)
	if res.Err != nil {
		observability.LogTaskFailed(w.cfg.logger, w.id, task.ID, res.Err)
	} else {
		observability.LogTaskComplete(w.cfg.logger, w.id, task.ID, float64(elapsed.Microseconds())/1000)
	}
	if w.cfg.onTaskDone != nil {
		w.cfg.onTaskDone(task, elapsed, res.Err)
	}
}

func (w *Worker) touch() {
	w.lastActive.Store(w.cfg.clock.Now().UnixNano())
}
