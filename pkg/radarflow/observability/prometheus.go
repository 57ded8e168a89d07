package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics implements MetricsRecorder on a Prometheus registry.
type PrometheusMetrics struct {
	gatherer prometheus.Gatherer

	tasksSubmitted  *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	taskErrors      *prometheus.CounterVec
	eventsPublished *prometheus.CounterVec
	deliveries      *prometheus.CounterVec
	handlerFailures *prometheus.CounterVec
	eventsDispatch  *prometheus.CounterVec
	cacheAccesses   *prometheus.CounterVec
	cacheEvictions  *prometheus.CounterVec
}

// Compile-time interface check.
var _ MetricsRecorder = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers radarflow collectors on reg.
// A nil reg uses a fresh registry, which Handler then serves.
func NewPrometheusMetrics(reg *prometheus.Registry) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		gatherer: reg,
		tasksSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radarflow_tasks_submitted_total",
			Help: "The total number of task submissions",
		}, []string{"pool", "accepted"}),
		taskDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "radarflow_task_duration_seconds",
			Help:    "Time taken to execute a task",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30},
		}, []string{"pool"}),
		taskErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radarflow_task_errors_total",
			Help: "The total number of tasks that failed or panicked",
		}, []string{"pool"}),
		eventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radarflow_events_published_total",
			Help: "The total number of events published on the bus",
		}, []string{"event_type"}),
		deliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radarflow_event_deliveries_total",
			Help: "The total number of handler invocations",
		}, []string{"event_type"}),
		handlerFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radarflow_event_handler_failures_total",
			Help: "The total number of handler invocations that failed or panicked",
		}, []string{"event_type"}),
		eventsDispatch: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radarflow_events_dispatched_total",
			Help: "The total number of dispatch attempts",
		}, []string{"event_type", "accepted"}),
		cacheAccesses: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radarflow_cache_accesses_total",
			Help: "The total number of cache lookups",
		}, []string{"cache", "hit"}),
		cacheEvictions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "radarflow_cache_evictions_total",
			Help: "The total number of cache entries evicted for capacity",
		}, []string{"cache"}),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *PrometheusMetrics) RecordTaskSubmitted(_ context.Context, pool string, accepted bool) {
	m.tasksSubmitted.WithLabelValues(pool, strconv.FormatBool(accepted)).Inc()
}

func (m *PrometheusMetrics) RecordTaskExecution(_ context.Context, pool string, duration time.Duration, err error) {
	m.taskDuration.WithLabelValues(pool).Observe(duration.Seconds())
	if err != nil {
		m.taskErrors.WithLabelValues(pool).Inc()
	}
}

func (m *PrometheusMetrics) RecordPublish(_ context.Context, eventType string, handlers, failures int) {
	m.eventsPublished.WithLabelValues(eventType).Inc()
	m.deliveries.WithLabelValues(eventType).Add(float64(handlers))
	m.handlerFailures.WithLabelValues(eventType).Add(float64(failures))
}

func (m *PrometheusMetrics) RecordDispatch(_ context.Context, eventType string, accepted bool) {
	m.eventsDispatch.WithLabelValues(eventType, strconv.FormatBool(accepted)).Inc()
}

func (m *PrometheusMetrics) RecordCacheAccess(_ context.Context, cache string, hit bool) {
	m.cacheAccesses.WithLabelValues(cache, strconv.FormatBool(hit)).Inc()
}

func (m *PrometheusMetrics) RecordCacheEviction(_ context.Context, cache string) {
	m.cacheEvictions.WithLabelValues(cache).Inc()
}
