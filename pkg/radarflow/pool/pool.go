package pool

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
	"github.com/randalmurphal/radarflow/pkg/radarflow/observability"
)

// Config configures a Pool.
type Config struct {
	// Name prefixes worker IDs and labels metrics. Default "radar_worker".
	Name string

	// MaxWorkers bounds concurrent workers. Must be positive.
	MaxWorkers int

	// MinWorkers are started up front and never retire.
	MinWorkers int

	// IdleTimeout lets workers above MinWorkers exit after this long
	// without work. Zero or negative disables shrinking.
	IdleTimeout time.Duration

	// QueueSize bounds pending tasks. 0 = unbounded.
	QueueSize int

	// PollInterval is how often idle workers re-check stop and idle
	// conditions. Default DefaultPollInterval.
	PollInterval time.Duration
}

// DefaultConfig returns the standard pool configuration.
func DefaultConfig() Config {
	return Config{
		Name:         "radar_worker",
		MaxWorkers:   4,
		MinWorkers:   2,
		IdleTimeout:  60 * time.Second,
		PollInterval: DefaultPollInterval,
	}
}

func (c Config) validate() error {
	if c.MaxWorkers <= 0 {
		return rferrors.InvalidArgument("new pool", "max_workers", "must be positive")
	}
	if c.MinWorkers < 0 || c.MinWorkers > c.MaxWorkers {
		return rferrors.InvalidArgument("new pool", "min_workers", "must be between 0 and max_workers")
	}
	if c.QueueSize < 0 {
		return rferrors.InvalidArgument("new pool", "queue_size", "must not be negative")
	}
	return nil
}

// Stats is a point-in-time view of a pool.
type Stats struct {
	Name      string
	Workers   int
	Idle      int
	Active    int
	Queued    int
	Submitted int64
	Completed int64
	Failed    int64
	Closed    bool
}

// Option configures a Pool.
type Option func(*Pool)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pool) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(p *Pool) {
		if m != nil {
			p.metrics = m
		}
	}
}

// WithSpans sets the span manager.
func WithSpans(s observability.SpanManager) Option {
	return func(p *Pool) {
		if s != nil {
			p.spans = s
		}
	}
}

// WithClock sets the time source used for idle tracking.
func WithClock(clk clock.Clock) Option {
	return func(p *Pool) {
		if clk != nil {
			p.clock = clk
		}
	}
}

// Pool is a bounded, elastic set of workers sharing one TaskQueue.
type Pool struct {
	cfg     Config
	queue   *TaskQueue
	clock   clock.Clock
	logger  *slog.Logger
	metrics observability.MetricsRecorder
	spans   observability.SpanManager

	closed atomic.Bool

	// submitting counts SubmitTask calls past the closed check. drain waits
	// for it to reach zero before joining the queue. smu is never held
	// while a submission blocks.
	smu        sync.Mutex
	submitting int
	noSubmits *sync.Cond

	wmu        sync.Mutex
	workers    map[string]*Worker
	nextWorker int
	stopping   bool
	wg         sync.WaitGroup

	shutdownOnce sync.Once
	drained      chan struct{}

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// New creates a pool and starts its MinWorkers workers.
func New(cfg Config, opts ...Option) (*Pool, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.Name == "" {
		cfg.Name = DefaultConfig().Name
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}

	p := &Pool{
		cfg:     cfg,
		queue:   NewTaskQueue(cfg.QueueSize),
		clock:   clock.New(),
		logger:  observability.DiscardLogger(),
		metrics: observability.NoopMetrics{},
		spans:   observability.NoopSpanManager{},
		workers: make(map[string]*Worker),
		drained: make(chan struct{}),
	}
	p.noSubmits = sync.NewCond(&p.smu)
	for _, opt := range opts {
		opt(p)
	}

	p.wmu.Lock()
	for i := 0; i < cfg.MinWorkers; i++ {
		p.spawnLocked()
	}
	p.wmu.Unlock()

	p.logger.Info("pool started",
		slog.String("pool", cfg.Name),
		slog.Int("min_workers", cfg.MinWorkers),
		slog.Int("max_workers", cfg.MaxWorkers),
	)
	return p, nil
}

// With creates a pool, passes it to fn, and shuts it down with wait on
// every exit path, panics included.
func With(cfg Config, fn func(*Pool) error, opts ...Option) error {
	p, err := New(cfg, opts...)
	if err != nil {
		return err
	}
	defer p.Shutdown(true)
	return fn(p)
}

// Submit schedules fn and returns a Future for its outcome. It waits for
// queue room until ctx is done. After Shutdown it fails with an error
// matching errors.ErrPoolClosed and fn never runs.
func (p *Pool) Submit(ctx context.Context, fn TaskFunc) (*Future, error) {
	if fn == nil {
		return nil, rferrors.InvalidArgument("submit", "fn", "must not be nil")
	}
	return p.SubmitTask(ctx, NewTask("", fn))
}

// SubmitTask schedules a task built with NewTask.
func (p *Pool) SubmitTask(ctx context.Context, task *Task) (*Future, error) {
	if task == nil || task.fn == nil {
		return nil, rferrors.InvalidArgument("submit", "task", "must have a function")
	}

	p.enterSubmit()
	defer p.exitSubmit()

	if p.closed.Load() {
		p.metrics.RecordTaskSubmitted(ctx, p.cfg.Name, false)
		return nil, &rferrors.ProcessingError{Step: "submit", DataID: task.ID, Err: rferrors.ErrPoolClosed}
	}
	if err := p.queue.Put(ctx, task); err != nil {
		p.metrics.RecordTaskSubmitted(ctx, p.cfg.Name, false)
		return nil, &rferrors.ProcessingError{Step: "submit", DataID: task.ID, Err: err}
	}

	p.submitted.Add(1)
	p.metrics.RecordTaskSubmitted(ctx, p.cfg.Name, true)
	p.ensureWorkers()
	return task.future, nil
}

// Shutdown closes the pool to new work. Queued and running tasks still
// complete; workers exit afterwards. With wait it blocks until that has
// happened, otherwise draining continues in the background. Calling it
// again has no effect beyond waiting.
func (p *Pool) Shutdown(wait bool) {
	p.shutdownOnce.Do(func() {
		p.closed.Store(true)

		p.logger.Info("pool shutting down",
			slog.String("pool", p.cfg.Name),
			slog.Int("queued", p.queue.Len()),
		)
		go p.drain()
	})
	if wait {
		<-p.drained
	}
}

// Wait blocks until a shut-down pool has drained or ctx is done.
func (p *Pool) Wait(ctx context.Context) error {
	select {
	case <-p.drained:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close is Shutdown(true). It implements io.Closer.
func (p *Pool) Close() error {
	p.Shutdown(true)
	return nil
}

// Stats returns a snapshot of the pool.
func (p *Pool) Stats() Stats {
	p.wmu.Lock()
	workers, idle := len(p.workers), p.idleLocked()
	p.wmu.Unlock()

	return Stats{
		Name:      p.cfg.Name,
		Workers:   workers,
		Idle:      idle,
		Active:    workers - idle,
		Queued:    p.queue.Len(),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Closed:    p.closed.Load(),
	}
}

func (p *Pool) enterSubmit() {
	p.smu.Lock()
	p.submitting++
	p.smu.Unlock()
}

func (p *Pool) exitSubmit() {
	p.smu.Lock()
	p.submitting--
	if p.submitting == 0 {
		p.noSubmits.Broadcast()
	}
	p.smu.Unlock()
}

// waitSubmits blocks until no SubmitTask call is between its closed check
// and its return. Called after closed is set, so none can start anew.
func (p *Pool) waitSubmits() {
	p.smu.Lock()
	for p.submitting > 0 {
		p.noSubmits.Wait()
	}
	p.smu.Unlock()
}

// ensureWorkers adds workers while queued tasks outnumber idle workers.
// It runs after each submission and again whenever a worker picks up a
// task, since a worker that has dequeued but not yet started still reads
// as idle.
func (p *Pool) ensureWorkers() {
	p.wmu.Lock()
	defer p.wmu.Unlock()

	if p.stopping {
		return
	}
	idle := p.idleLocked()
	for pending := p.queue.Len(); pending > idle && len(p.workers) < p.cfg.MaxWorkers; idle++ {
		p.spawnLocked()
	}
}

func (p *Pool) idleLocked() int {
	idle := 0
	for _, w := range p.workers {
		if w.IsIdle() {
			idle++
		}
	}
	return idle
}

func (p *Pool) spawnLocked() {
	p.nextWorker++
	id := fmt.Sprintf("%s_%d", p.cfg.Name, p.nextWorker)

	w := NewWorker(id, p.queue,
		WithPollInterval(p.cfg.PollInterval),
		WithIdleTimeout(p.cfg.IdleTimeout),
		WithWorkerClock(p.clock),
		WithWorkerLogger(p.logger),
		WithWorkerMetrics(p.metrics),
		WithWorkerSpans(p.spans),
		WithRetirePolicy(p.retire),
		withPoolName(p.cfg.Name),
		withStartHook(func(*Worker) { p.ensureWorkers() }),
		withTaskHook(p.taskFinished),
		withExitHook(p.workerExited),
	)
	p.workers[id] = w
	p.wg.Add(1)
	w.Start()
}

// retire lets an idle worker go unless that would drop below MinWorkers
// or strand queued work. Approval removes the worker in the same critical
// section that ensureWorkers uses, so a submission never counts a worker
// that is about to leave.
func (p *Pool) retire(w *Worker) bool {
	p.wmu.Lock()
	defer p.wmu.Unlock()

	if len(p.workers) <= p.cfg.MinWorkers || p.queue.Len() > 0 {
		return false
	}
	delete(p.workers, w.ID())
	return true
}

func (p *Pool) workerExited(w *Worker) {
	p.wmu.Lock()
	delete(p.workers, w.ID())
	p.wmu.Unlock()
	p.wg.Done()
}

func (p *Pool) taskFinished(_ *Task, _ time.Duration, err error) {
	if err != nil {
		p.failed.Add(1)
		return
	}
	p.completed.Add(1)
}

func (p *Pool) drain() {
	// A submission blocked on a full queue still lands; workers keep
	// consuming meanwhile. After this every task that will ever be queued
	// already is.
	p.waitSubmits()
	_ = p.queue.Join(context.Background())

	p.wmu.Lock()
	p.stopping = true
	workers := make([]*Worker, 0, len(p.workers))
	for _, w := range p.workers {
		workers = append(workers, w)
	}
	p.wmu.Unlock()

	for _, w := range workers {
		w.Stop()
	}
	p.wg.Wait()
	close(p.drained)

	p.logger.Info("pool stopped",
		slog.String("pool", p.cfg.Name),
		slog.Int64("completed", p.completed.Load()),
		slog.Int64("failed", p.failed.Load()),
	)
}
