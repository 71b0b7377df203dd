package logutil

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-logr/logr"
)

// Verbosity levels used across the client. logr V-levels map onto slog as
// negative levels, so V(4) is emitted at slog DEBUG.
const (
	// VState is used for session and refresh state transitions.
	VState = 1
	// VTrace is used for per-request logs and timings.
	VTrace = 4
)

// New builds a logr.Logger backed by slog, writing to w.
// format is "text" or "json"; level is one of debug, info, warn, error.
func New(w io.Writer, format, level string) (logr.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return logr.Discard(), err
	}
	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return logr.Discard(), fmt.Errorf("unknown log format %q", format)
	}
	return logr.FromSlogHandler(handler), nil
}

// ParseLevel converts a configured level name into a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug", "trace":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", level)
	}
}

// NewTimingLogger returns a closure that logs a trace message with duration when called.
// Pass in the logger, a start time, a message, and any initial fields.
func NewTimingLogger(logger logr.Logger, start time.Time, msg string, initialFields ...any) func() {
	return NewTimingLoggerWithLevel(logger, VTrace, start, msg, initialFields...)
}

// NewTimingLoggerWithLevel allows you to specify the verbosity for timing logs
func NewTimingLoggerWithLevel(logger logr.Logger, v int, start time.Time, msg string, initialFields ...any) func() {
	return func() {
		elapsed := time.Since(start)
		finalFields := append(initialFields, "duration", elapsed.String())
		logger.V(v).Info(msg, finalFields...)
	}
}

// LogAndWrapErr logs an error with context fields and wraps it with a message.
// It returns a wrapped error (with %w) so errors.Is / errors.As still work.
func LogAndWrapErr(logger logr.Logger, msg string, err error, fields ...any) error {
	if err == nil {
		return nil
	}
	logger.Error(err, msg, fields...)
	return fmt.Errorf("%s: %w", msg, err)
}

// DebugAndWrapErr logs an error at trace verbosity with context fields and wraps it with a message.
// It returns a wrapped error (with %w) so errors.Is / errors.As still work.
func DebugAndWrapErr(logger logr.Logger, msg string, err error, fields ...any) error {
	if err == nil {
		return nil
	}
	// We conventionally put the error field at the end
	allFields := append(fields, "err", err)
	logger.V(VTrace).Info(msg, allFields...)
	return fmt.Errorf("%s: %w", msg, err)
}

// LogDurationWithError measures duration and handles potential errors from the function
func LogDurationWithError(logger logr.Logger, msg string, fn func() error, fields ...any) error {
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	finalFields := append(fields, "duration", elapsed.String())

	if err != nil {
		logger.Error(err, msg+" failed", finalFields...)
		return err
	}

	logger.V(VTrace).Info(msg+" completed", finalFields...)
	return nil
}

// Redact shortens a credential for logging. Only the last four characters survive.
func Redact(secret string) string {
	if len(secret) <= 4 {
		return "****"
	}
	return "****" + secret[len(secret)-4:]
}
