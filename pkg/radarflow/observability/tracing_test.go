package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// setupTracingTest creates a span manager with an in-memory span recorder.
func setupTracingTest(t *testing.T) (SpanManager, *tracetest.InMemoryExporter) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			t.Logf("Error shutting down tracer provider: %v", err)
		}
	})
	return NewTracerSpanManager(tp), exporter
}

func attrValue(attrs []attribute.KeyValue, key string) string {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value.Emit()
		}
	}
	return ""
}

func TestStartTaskSpan(t *testing.T) {
	sm, exporter := setupTracingTest(t)

	ctx, span := sm.StartTaskSpan(context.Background(), "radar", "task-1", "slice")
	require.NotNil(t, span)
	sm.AddSpanEvent(ctx, "checkpoint", attribute.Int("index", 3))
	sm.EndSpanWithError(span, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)

	s := spans[0]
	assert.Equal(t, "radarflow.task", s.Name)
	assert.Equal(t, "task-1", attrValue(s.Attributes, "task.id"))
	assert.Equal(t, "slice", attrValue(s.Attributes, "task.name"))
	assert.Equal(t, codes.Ok, s.Status.Code)
	require.Len(t, s.Events, 1)
	assert.Equal(t, "checkpoint", s.Events[0].Name)
}

func TestStartPublishSpan(t *testing.T) {
	sm, exporter := setupTracingTest(t)

	_, span := sm.StartPublishSpan(context.Background(), "signal.data.loading.failed", "evt-1")
	sm.EndSpanWithError(span, errors.New("handler failed"))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "radarflow.publish signal.data.loading.failed", spans[0].Name)
	assert.Equal(t, "evt-1", attrValue(spans[0].Attributes, "event.id"))
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, "handler failed", spans[0].Status.Description)
}

func TestEndSpanWithError_NilSpan(t *testing.T) {
	assert.NotPanics(t, func() { EndSpanWithError(nil, errors.New("x")) })
}

func TestAddSpanEvent_NoSpan(t *testing.T) {
	assert.NotPanics(t, func() { AddSpanEvent(context.Background(), "nothing") })
}

func TestNoopSpanManager(t *testing.T) {
	var sm SpanManager = NoopSpanManager{}
	ctx := context.Background()

	gotCtx, span := sm.StartTaskSpan(ctx, "p", "t", "n")
	assert.Equal(t, ctx, gotCtx)
	assert.False(t, span.IsRecording())

	gotCtx, span = sm.StartPublishSpan(ctx, "e", "id")
	assert.Equal(t, ctx, gotCtx)
	sm.EndSpanWithError(span, errors.New("ignored"))
	sm.AddSpanEvent(ctx, "ignored")
}
