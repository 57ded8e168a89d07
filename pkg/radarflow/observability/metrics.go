package observability

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the instrumentation scope used for radarflow instruments.
const MeterName = "radarflow"

// MetricsRecorder records radarflow metrics.
// Use NewMetricsRecorder() for OTel metrics, NewPrometheusMetrics() for a
// Prometheus registry, or NoopMetrics{} when disabled.
type MetricsRecorder interface {
	// RecordTaskSubmitted records a submission attempt and whether the pool accepted it.
	RecordTaskSubmitted(ctx context.Context, pool string, accepted bool)

	// RecordTaskExecution records a task execution with its duration and error status.
	RecordTaskExecution(ctx context.Context, pool string, duration time.Duration, err error)

	// RecordPublish records one publish with the number of handlers invoked and how many failed.
	RecordPublish(ctx context.Context, eventType string, handlers, failures int)

	// RecordDispatch records a dispatch attempt and whether the event was queued.
	RecordDispatch(ctx context.Context, eventType string, accepted bool)

	// RecordCacheAccess records a cache lookup.
	RecordCacheAccess(ctx context.Context, cache string, hit bool)

	// RecordCacheEviction records an entry evicted for capacity.
	RecordCacheEviction(ctx context.Context, cache string)
}

// otelMetrics implements MetricsRecorder using OpenTelemetry.
type otelMetrics struct {
	tasksSubmitted  metric.Int64Counter
	taskExecutions  metric.Int64Counter
	taskLatency     metric.Float64Histogram
	taskErrors      metric.Int64Counter
	eventsPublished metric.Int64Counter
	deliveries      metric.Int64Counter
	handlerFailures metric.Int64Counter
	eventsDispatch  metric.Int64Counter
	cacheAccesses   metric.Int64Counter
	cacheEvictions  metric.Int64Counter
}

var (
	defaultMetrics     *otelMetrics
	defaultMetricsOnce sync.Once
	defaultMetricsErr  error
)

// getDefaultMetrics returns the OTel metrics instance bound to the global
// meter provider. Lazily initializes the metrics on first call.
func getDefaultMetrics() (*otelMetrics, error) {
	defaultMetricsOnce.Do(func() {
		defaultMetrics, defaultMetricsErr = newOtelMetrics(otel.Meter(MeterName))
	})
	return defaultMetrics, defaultMetricsErr
}

// newOtelMetrics creates the instruments on meter.
func newOtelMetrics(meter metric.Meter) (*otelMetrics, error) {
	m := &otelMetrics{}
	var err error

	if m.tasksSubmitted, err = meter.Int64Counter("radarflow.task.submitted",
		metric.WithDescription("Number of task submissions"),
	); err != nil {
		return nil, err
	}
	if m.taskExecutions, err = meter.Int64Counter("radarflow.task.executions",
		metric.WithDescription("Number of task executions"),
	); err != nil {
		return nil, err
	}
	if m.taskLatency, err = meter.Float64Histogram("radarflow.task.latency_ms",
		metric.WithDescription("Task execution latency in milliseconds"),
		metric.WithUnit("ms"),
	); err != nil {
		return nil, err
	}
	if m.taskErrors, err = meter.Int64Counter("radarflow.task.errors",
		metric.WithDescription("Number of tasks that failed or panicked"),
	); err != nil {
		return nil, err
	}
	if m.eventsPublished, err = meter.Int64Counter("radarflow.event.published",
		metric.WithDescription("Number of events published on the bus"),
	); err != nil {
		return nil, err
	}
	if m.deliveries, err = meter.Int64Counter("radarflow.event.deliveries",
		metric.WithDescription("Number of handler invocations"),
	); err != nil {
		return nil, err
	}
	if m.handlerFailures, err = meter.Int64Counter("radarflow.event.handler_failures",
		metric.WithDescription("Number of handler invocations that failed or panicked"),
	); err != nil {
		return nil, err
	}
	if m.eventsDispatch, err = meter.Int64Counter("radarflow.event.dispatched",
		metric.WithDescription("Number of dispatch attempts"),
	); err != nil {
		return nil, err
	}
	if m.cacheAccesses, err = meter.Int64Counter("radarflow.cache.accesses",
		metric.WithDescription("Number of cache lookups"),
	); err != nil {
		return nil, err
	}
	if m.cacheEvictions, err = meter.Int64Counter("radarflow.cache.evictions",
		metric.WithDescription("Number of cache entries evicted for capacity"),
	); err != nil {
		return nil, err
	}
	return m, nil
}

// NewMetricsRecorder returns a MetricsRecorder that uses OpenTelemetry.
// If metrics initialization fails, returns a no-op recorder.
//
// The recorder uses the global OTel meter provider. Configure the provider
// before calling this function:
//
//	import "go.opentelemetry.io/otel"
//	otel.SetMeterProvider(yourProvider)
func NewMetricsRecorder() MetricsRecorder {
	m, err := getDefaultMetrics()
	if err != nil {
		slog.Warn("metrics initialization failed, using no-op recorder",
			slog.String("error", err.Error()))
		return NoopMetrics{}
	}
	return m
}

// NewMeterMetrics returns a MetricsRecorder whose instruments are created on
// the given meter provider instead of the global one.
func NewMeterMetrics(mp metric.MeterProvider) (MetricsRecorder, error) {
	return newOtelMetrics(mp.Meter(MeterName))
}

func (m *otelMetrics) RecordTaskSubmitted(ctx context.Context, pool string, accepted bool) {
	m.tasksSubmitted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("pool", pool),
		attribute.Bool("accepted", accepted),
	))
}

func (m *otelMetrics) RecordTaskExecution(ctx context.Context, pool string, duration time.Duration, err error) {
	attrs := metric.WithAttributes(attribute.String("pool", pool))

	m.taskExecutions.Add(ctx, 1, attrs)
	m.taskLatency.Record(ctx, float64(duration.Microseconds())/1000, attrs)
	if err != nil {
		m.taskErrors.Add(ctx, 1, attrs)
	}
}

func (m *otelMetrics) RecordPublish(ctx context.Context, eventType string, handlers, failures int) {
	attrs := metric.WithAttributes(attribute.String("event_type", eventType))

	m.eventsPublished.Add(ctx, 1, attrs)
	if handlers > 0 {
		m.deliveries.Add(ctx, int64(handlers), attrs)
	}
	if failures > 0 {
		m.handlerFailures.Add(ctx, int64(failures), attrs)
	}
}

func (m *otelMetrics) RecordDispatch(ctx context.Context, eventType string, accepted bool) {
	m.eventsDispatch.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event_type", eventType),
		attribute.Bool("accepted", accepted),
	))
}

func (m *otelMetrics) RecordCacheAccess(ctx context.Context, cache string, hit bool) {
	m.cacheAccesses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("cache", cache),
		attribute.Bool("hit", hit),
	))
}

func (m *otelMetrics) RecordCacheEviction(ctx context.Context, cache string) {
	m.cacheEvictions.Add(ctx, 1, metric.WithAttributes(attribute.String("cache", cache)))
}
