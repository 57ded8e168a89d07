// Package observability provides structured logging, metrics and tracing
// for radarflow.
//
// Features:
//   - Structured logging via slog
//   - Metrics via OpenTelemetry or Prometheus
//   - Tracing via OpenTelemetry
//
// Every feature has a no-op implementation. Components receive these
// through explicit options; nothing here is a process-wide singleton
// except the OTel defaults used by NewMetricsRecorder and NewSpanManager.
package observability

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	rferrors "github.com/randalmurphal/radarflow/pkg/radarflow/errors"
)

// Log formats accepted by NewLogger.
const (
	FormatJSON = "json"
	FormatText = "text"
)

// NewLogger builds a slog logger writing to w in the given format
// ("json" or "text") at the given level.
func NewLogger(w io.Writer, level slog.Level, format string) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case FormatText, "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// ParseLevel parses "debug", "info", "warn" or "error" (case-insensitive).
func ParseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("parse log level: %w", err)
	}
	return level, nil
}

// DiscardLogger returns a logger that drops every record.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

// OrDiscard returns logger, or a discarding logger if it is nil.
func OrDiscard(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return DiscardLogger()
	}
	return logger
}

// LogTaskStart logs a worker picking up a task.
func LogTaskStart(logger *slog.Logger, workerID, taskID, taskName string) {
	if logger == nil {
		return
	}
	logger.Debug("task starting",
		slog.String("worker_id", workerID),
		slog.String("task_id", taskID),
		slog.String("task_name", taskName),
	)
}

// LogTaskComplete logs successful task completion.
func LogTaskComplete(logger *slog.Logger, workerID, taskID string, durationMs float64) {
	if logger == nil {
		return
	}
	logger.Debug("task completed",
		slog.String("worker_id", workerID),
		slog.String("task_id", taskID),
		slog.Float64("duration_ms", durationMs),
	)
}

// LogTaskFailed logs a task that returned an error or panicked.
func LogTaskFailed(logger *slog.Logger, workerID, taskID string, err error) {
	if logger == nil {
		return
	}
	attrs := append([]any{
		slog.String("worker_id", workerID),
		slog.String("task_id", taskID),
	}, failureAttrs(err)...)
	logger.Error("task failed", attrs...)
}

// LogWorkerExit logs a worker leaving its loop.
func LogWorkerExit(logger *slog.Logger, workerID, reason string) {
	if logger == nil {
		return
	}
	logger.Debug("worker exited",
		slog.String("worker_id", workerID),
		slog.String("reason", reason),
	)
}

// LogHandlerFailed logs an event handler that returned an error or panicked.
func LogHandlerFailed(logger *slog.Logger, eventType, eventID string, err error) {
	if logger == nil {
		return
	}
	attrs := append([]any{
		slog.String("event_type", eventType),
		slog.String("event_id", eventID),
	}, failureAttrs(err)...)
	logger.Error("event handler failed", attrs...)
}

// LogEviction logs a cache entry being evicted to make room.
func LogEviction(logger *slog.Logger, cache, key string, lastAccess time.Time) {
	if logger == nil {
		return
	}
	logger.Debug("cache entry evicted",
		slog.String("cache", cache),
		slog.String("key", key),
		slog.Time("last_access", lastAccess),
	)
}

// failureAttrs describes err; recovered panics also carry their stack.
func failureAttrs(err error) []any {
	attrs := []any{
		slog.String("error", err.Error()),
		slog.String("error_kind", rferrors.KindOf(err).String()),
	}
	var panicErr *rferrors.PanicError
	if errors.As(err, &panicErr) {
		attrs = append(attrs, slog.String("stack", panicErr.Stack))
	}
	return attrs
}

// TimedOperation measures the duration of an operation.
// Returns a function that, when called, returns the elapsed time in milliseconds.
//
// Example:
//
//	done := TimedOperation()
//	// ... do work ...
//	durationMs := done()
func TimedOperation() func() float64 {
	start := time.Now()
	return func() float64 {
		return float64(time.Since(start).Microseconds()) / 1000
	}
}
