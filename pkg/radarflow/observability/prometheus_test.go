package observability

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// counterValue sums every series of the named family whose labels include want.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			labels := make(map[string]string)
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			match := true
			for k, v := range want {
				if labels[k] != v {
					match = false
				}
			}
			if match {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func TestPrometheusMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheusMetrics(reg)
	ctx := context.Background()

	m.RecordTaskSubmitted(ctx, "radar", true)
	m.RecordTaskSubmitted(ctx, "radar", false)
	m.RecordTaskExecution(ctx, "radar", time.Millisecond, errors.New("x"))
	m.RecordPublish(ctx, "signal.slice.process.started", 2, 1)
	m.RecordDispatch(ctx, "signal.slice.process.started", false)
	m.RecordCacheAccess(ctx, "signals", true)
	m.RecordCacheEviction(ctx, "signals")

	assert.Equal(t, 1.0, counterValue(t, reg, "radarflow_tasks_submitted_total", map[string]string{"accepted": "true"}))
	assert.Equal(t, 2.0, counterValue(t, reg, "radarflow_tasks_submitted_total", map[string]string{"pool": "radar"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "radarflow_task_errors_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "radarflow_events_published_total", nil))
	assert.Equal(t, 2.0, counterValue(t, reg, "radarflow_event_deliveries_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "radarflow_event_handler_failures_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "radarflow_events_dispatched_total", map[string]string{"accepted": "false"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "radarflow_cache_accesses_total", map[string]string{"hit": "true"}))
	assert.Equal(t, 1.0, counterValue(t, reg, "radarflow_cache_evictions_total", nil))
}

func TestPrometheusMetrics_Handler(t *testing.T) {
	m := NewPrometheusMetrics(nil)
	m.RecordCacheEviction(context.Background(), "signals")

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `radarflow_cache_evictions_total{cache="signals"} 1`)
}
