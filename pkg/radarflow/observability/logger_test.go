package observability

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
)

// captureLogger returns a JSON logger writing to the returned buffer.
func captureLogger(t *testing.T) (*slog.Logger, *bytes.Buffer) {
	t.Helper()
	buf := &bytes.Buffer{}
	logger, err := NewLogger(buf, slog.LevelDebug, FormatJSON)
	require.NoError(t, err)
	return logger, buf
}

// lastRecord decodes the last JSON line in buf.
func lastRecord(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &rec))
	return rec
}

func TestNewLogger(t *testing.T) {
	t.Run("json", func(t *testing.T) {
		logger, buf := captureLogger(t)
		logger.Info("hello", slog.String("k", "v"))

		rec := lastRecord(t, buf)
		assert.Equal(t, "hello", rec["msg"])
		assert.Equal(t, "v", rec["k"])
	})

	t.Run("text respects level", func(t *testing.T) {
		buf := &bytes.Buffer{}
		logger, err := NewLogger(buf, slog.LevelWarn, FormatText)
		require.NoError(t, err)

		logger.Info("hidden")
		logger.Warn("shown")
		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown")
	})

	t.Run("unknown format", func(t *testing.T) {
		_, err := NewLogger(&bytes.Buffer{}, slog.LevelInfo, "xml")
		assert.Error(t, err)
	})
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestLogHelpers(t *testing.T) {
	logger, buf := captureLogger(t)

	LogTaskFailed(logger, "worker-1", "task-1", errors.New("boom"))
	rec := lastRecord(t, buf)
	assert.Equal(t, "task failed", rec["msg"])
	assert.Equal(t, "ERROR", rec["level"])
	assert.Equal(t, "worker-1", rec["worker_id"])
	assert.Equal(t, "task-1", rec["task_id"])
	assert.Equal(t, "boom", rec["error"])

	LogHandlerFailed(logger, "signal.data.import.started", "evt-1", errors.New("bad"))
	rec = lastRecord(t, buf)
	assert.Equal(t, "event handler failed", rec["msg"])
	assert.Equal(t, "signal.data.import.started", rec["event_type"])

	LogEviction(logger, "signals", "s1", time.Unix(0, 0))
	rec = lastRecord(t, buf)
	assert.Equal(t, "cache entry evicted", rec["msg"])
	assert.Equal(t, "s1", rec["key"])

	LogTaskStart(logger, "worker-1", "task-2", "slice")
	LogTaskComplete(logger, "worker-1", "task-2", 1.5)
	rec = lastRecord(t, buf)
	assert.Equal(t, "task completed", rec["msg"])
	assert.InDelta(t, 1.5, rec["duration_ms"], 0.001)

	LogWorkerExit(logger, "worker-1", "idle")
	rec = lastRecord(t, buf)
	assert.Equal(t, "idle", rec["reason"])
}

func TestLogHelpers_NilLogger(t *testing.T) {
	assert.NotPanics(t, func() {
		LogTaskStart(nil, "w", "t", "n")
		LogTaskComplete(nil, "w", "t", 1)
		LogTaskFailed(nil, "w", "t", errors.New("x"))
		LogWorkerExit(nil, "w", "stop")
		LogHandlerFailed(nil, "e", "id", errors.New("x"))
		LogEviction(nil, "c", "k", time.Now())
	})
}

func TestOrDiscard(t *testing.T) {
	assert.NotNil(t, OrDiscard(nil))

	logger, _ := captureLogger(t)
	assert.Same(t, logger, OrDiscard(logger))
}

func TestTimedOperation(t *testing.T) {
	done := TimedOperation()
	time.Sleep(5 * time.Millisecond)
	assert.GreaterOrEqual(t, done(), 4.0)
}

func TestLogTaskFailed_PanicCarriesStack(t *testing.T) {
	logger, buf := captureLogger(t)

	LogTaskFailed(logger, "worker-1", "task-1", &rferrors.PanicError{Value: "boom", Stack: "goroutine 1"})
	rec := lastRecord(t, buf)
	assert.Equal(t, "panic", rec["error_kind"])
	assert.Equal(t, "goroutine 1", rec["stack"])
}
