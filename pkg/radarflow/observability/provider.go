package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/multierr"
)

// Metrics backends accepted by Options.MetricsBackend.
const (
	BackendNone       = "none"
	BackendOTel       = "otel"
	BackendPrometheus = "prometheus"
)

// Options configures NewProvider.
type Options struct {
	// LogLevel is "debug", "info", "warn" or "error". Default "info".
	LogLevel string
	// LogFormat is "json" or "text". Default "text".
	LogFormat string
	// LogFile, if set, receives log output instead of LogWriter.
	LogFile string
	// LogWriter receives log output when LogFile is empty. Default os.Stderr.
	LogWriter io.Writer

	// MetricsBackend selects the recorder. Default "none".
	MetricsBackend string
	// MetricReaders are attached to the OTel meter provider (otel backend).
	MetricReaders []sdkmetric.Reader
	// Registry receives the collectors (prometheus backend). Nil creates one.
	Registry *prometheus.Registry

	// TracingEnabled turns on the OTel tracer provider.
	TracingEnabled bool
	// SpanProcessors are attached to the tracer provider.
	SpanProcessors []sdktrace.SpanProcessor
}

// Provider bundles the logger, metrics recorder and span manager handed to
// every component. Close flushes and releases whatever NewProvider opened.
type Provider struct {
	Logger  *slog.Logger
	Metrics MetricsRecorder
	Spans   SpanManager

	// Prometheus is set when the prometheus backend is active.
	Prometheus *PrometheusMetrics

	closers []func(context.Context) error
}

// NopProvider returns a provider that discards everything.
func NopProvider() *Provider {
	return &Provider{
		Logger:  DiscardLogger(),
		Metrics: NoopMetrics{},
		Spans:   NoopSpanManager{},
	}
}

// NewProvider builds a Provider from opts.
func NewProvider(opts Options) (*Provider, error) {
	p := NopProvider()

	if err := p.setupLogger(opts); err != nil {
		return nil, err
	}

	switch opts.MetricsBackend {
	case "", BackendNone:
	case BackendOTel:
		mopts := make([]sdkmetric.Option, 0, len(opts.MetricReaders))
		for _, r := range opts.MetricReaders {
			mopts = append(mopts, sdkmetric.WithReader(r))
		}
		mp := sdkmetric.NewMeterProvider(mopts...)
		p.closers = append(p.closers, mp.Shutdown)

		rec, err := NewMeterMetrics(mp)
		if err != nil {
			_ = p.Close(context.Background())
			return nil, fmt.Errorf("create otel metrics: %w", err)
		}
		p.Metrics = rec
	case BackendPrometheus:
		p.Prometheus = NewPrometheusMetrics(opts.Registry)
		p.Metrics = p.Prometheus
	default:
		_ = p.Close(context.Background())
		return nil, fmt.Errorf("unknown metrics backend %q", opts.MetricsBackend)
	}

	if opts.TracingEnabled {
		topts := make([]sdktrace.TracerProviderOption, 0, len(opts.SpanProcessors))
		for _, sp := range opts.SpanProcessors {
			topts = append(topts, sdktrace.WithSpanProcessor(sp))
		}
		tp := sdktrace.NewTracerProvider(topts...)
		p.closers = append(p.closers, tp.Shutdown)
		p.Spans = NewTracerSpanManager(tp)
	}

	return p, nil
}

func (p *Provider) setupLogger(opts Options) error {
	level, err := ParseLevel(opts.LogLevel)
	if err != nil {
		return err
	}

	w := opts.LogWriter
	if w == nil {
		w = os.Stderr
	}
	if opts.LogFile != "" {
		f, err := os.OpenFile(opts.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		w = f
		p.closers = append(p.closers, func(context.Context) error { return f.Close() })
	}

	logger, err := NewLogger(w, level, opts.LogFormat)
	if err != nil {
		_ = p.Close(context.Background())
		return err
	}
	p.Logger = logger
	return nil
}

// Close shuts down SDK providers and closes the log file, in reverse order
// of creation. Every closer runs; their errors are combined.
func (p *Provider) Close(ctx context.Context) error {
	var err error
	for i := len(p.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, p.closers[i](ctx))
	}
	p.closers = nil
	return err
}
