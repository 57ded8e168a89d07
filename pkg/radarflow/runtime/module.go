// Package runtime assembles the radarflow components into an fx
// application: observability, bus, dispatcher, worker pool, signal
// repository and event journal, with ordered start and stop.
package runtime

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/multierr"

	"github.com/randalmurphal/radarflow/pkg/radarflow/config"
	"github.com/randalmurphal/radarflow/pkg/radarflow/event"
	"github.com/randalmurphal/radarflow/pkg/radarflow/journal"
	"github.com/randalmurphal/radarflow/pkg/radarflow/observability"
	"github.com/randalmurphal/radarflow/pkg/radarflow/pool"
	"github.com/randalmurphal/radarflow/pkg/radarflow/repository"
)

// Source is the event source of lifecycle events.
const Source = "radarflow.runtime"

// Option adjusts the observability setup derived from Settings. Used
// mostly to route telemetry into tests.
type Option func(*observability.Options)

// WithLogWriter sends logs to w instead of stderr or the configured file.
func WithLogWriter(w io.Writer) Option {
	return func(o *observability.Options) {
		o.LogWriter = w
		o.LogFile = ""
	}
}

// WithMetricReader attaches r to the OTel meter provider.
func WithMetricReader(r sdkmetric.Reader) Option {
	return func(o *observability.Options) {
		o.MetricReaders = append(o.MetricReaders, r)
	}
}

// WithRegistry registers Prometheus collectors on reg.
func WithRegistry(reg *prometheus.Registry) Option {
	return func(o *observability.Options) { o.Registry = reg }
}

// WithSpanProcessor attaches sp to the tracer provider.
func WithSpanProcessor(sp sdktrace.SpanProcessor) Option {
	return func(o *observability.Options) {
		o.SpanProcessors = append(o.SpanProcessors, sp)
	}
}

// Module returns the fx module for s. The settings are validated when the
// application is built.
func Module(s config.Settings, opts ...Option) fx.Option {
	obs := ObservabilityOptions(s)
	for _, opt := range opts {
		opt(&obs)
	}
	return fx.Module("radarflow",
		fx.Supply(s, obs),
		fx.Provide(
			provideObservability,
			provideBus,
			provideDispatcher,
			providePool,
			provideSignalRepository,
			provideJournal,
		),
		fx.Invoke(registerLifecycle),
	)
}

// Logger routes fx's own events through the radarflow logger.
func Logger() fx.Option {
	return fx.WithLogger(func(p *observability.Provider) fxevent.Logger {
		return &fxevent.SlogLogger{Logger: p.Logger.With(slog.String("component", "fx"))}
	})
}

// ObservabilityOptions maps settings to observability options.
func ObservabilityOptions(s config.Settings) observability.Options {
	return observability.Options{
		LogLevel:       s.Logging.Level,
		LogFormat:      s.Logging.Format,
		LogFile:        s.Logging.File,
		MetricsBackend: s.Metrics.Backend,
		TracingEnabled: s.Metrics.Tracing,
	}
}

// PoolConfig maps pool settings to a pool.Config.
func PoolConfig(s config.PoolSettings) pool.Config {
	return pool.Config{
		Name:         s.Name,
		MaxWorkers:   s.MaxWorkers,
		MinWorkers:   s.MinWorkers,
		IdleTimeout:  s.IdleTimeout,
		QueueSize:    s.QueueSize,
		PollInterval: s.PollInterval,
	}
}

// DispatcherConfig maps dispatcher settings to an event.DispatcherConfig.
func DispatcherConfig(s config.DispatcherSettings) event.DispatcherConfig {
	return event.DispatcherConfig{
		QueueSize:    s.QueueSize,
		PollInterval: s.PollInterval,
	}
}

// Journal is the configured event journal. Store and Recorder are nil when
// the journal driver is "none".
type Journal struct {
	Store    journal.Store
	Recorder *journal.Recorder
}

// Enabled reports whether events are journaled.
func (j *Journal) Enabled() bool {
	return j != nil && j.Store != nil
}

func provideObservability(lc fx.Lifecycle, s config.Settings, opts observability.Options) (*observability.Provider, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	p, err := observability.NewProvider(opts)
	if err != nil {
		return nil, err
	}
	// Appended first, so it runs after every other stop hook.
	lc.Append(fx.Hook{OnStop: p.Close})
	return p, nil
}

func component(p *observability.Provider, name string) *slog.Logger {
	return p.Logger.With(slog.String("component", name))
}

func provideBus(p *observability.Provider) *event.Bus {
	return event.NewBus(
		event.WithLogger(component(p, "bus")),
		event.WithMetrics(p.Metrics),
		event.WithSpans(p.Spans),
	)
}

func provideDispatcher(s config.Settings, bus *event.Bus, p *observability.Provider) (*event.Dispatcher, error) {
	return event.NewDispatcher(bus, DispatcherConfig(s.Dispatcher),
		event.WithDispatcherLogger(component(p, "dispatcher")),
		event.WithDispatcherMetrics(p.Metrics),
	)
}

func providePool(s config.Settings, p *observability.Provider) (*pool.Pool, error) {
	return pool.New(PoolConfig(s.Pool),
		pool.WithLogger(component(p, "pool")),
		pool.WithMetrics(p.Metrics),
		pool.WithSpans(p.Spans),
	)
}

func provideSignalRepository(s config.Settings, p *observability.Provider) (*repository.SignalRepository, error) {
	return repository.NewSignalRepository(s.Repository.MaxCacheSize,
		repository.WithLogger(component(p, "repository")),
		repository.WithMetrics(p.Metrics),
	)
}

// provideJournal registers the store's Close as soon as the store is open,
// so a failed start still releases it. The hook is appended before
// registerLifecycle's, so it runs after the recorder is detached.
func provideJournal(lc fx.Lifecycle, s config.Settings, p *observability.Provider) (*Journal, error) {
	var store journal.Store
	switch s.Journal.Driver {
	case "memory":
		store = journal.NewMemoryStore()
	case "sqlite":
		sqlite, err := journal.NewSQLiteStore(s.Journal.Path)
		if err != nil {
			return nil, err
		}
		store = sqlite
	default:
		return &Journal{}, nil
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { return store.Close() }})
	return &Journal{
		Store:    store,
		Recorder: journal.NewRecorder(store, journal.WithLogger(component(p, "journal"))),
	}, nil
}

type lifecycleInput struct {
	fx.In
	LC         fx.Lifecycle
	Provider   *observability.Provider
	Bus        *event.Bus
	Dispatcher *event.Dispatcher
	Pool       *pool.Pool
	Journal    *Journal
}

// registerLifecycle owns start and stop order. Stop drains work before the
// things that work feeds: pool, then dispatcher, then journal.
func registerLifecycle(in lifecycleInput) {
	logger := component(in.Provider, "runtime")

	in.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if in.Journal.Enabled() {
				if err := in.Journal.Recorder.Attach(in.Bus); err != nil {
					return err
				}
			}
			in.Dispatcher.Start()
			_, err := in.Dispatcher.Dispatch(ctx, lifecycleEvent(event.AppStarted))
			logger.Info("radarflow started")
			return err
		},
		OnStop: func(ctx context.Context) error {
			var err error

			in.Pool.Shutdown(false)
			err = multierr.Append(err, in.Pool.Wait(ctx))

			if _, derr := in.Dispatcher.Dispatch(ctx, lifecycleEvent(event.AppShutdown)); derr != nil {
				err = multierr.Append(err, derr)
			}
			if !in.Dispatcher.WaitEmpty(ctx) {
				err = multierr.Append(err, errors.New("dispatcher did not drain before stop deadline"))
			}
			in.Dispatcher.Stop()
			select {
			case <-in.Dispatcher.Done():
			case <-ctx.Done():
				err = multierr.Append(err, ctx.Err())
			}

			if in.Journal.Enabled() {
				in.Journal.Recorder.Detach(in.Bus)
			}
			logger.Info("radarflow stopped", slog.Bool("clean", err == nil))
			return err
		},
	})
}

func lifecycleEvent(eventType string) *event.Event {
	return event.MustNew(eventType, nil, event.WithSource(Source))
}
