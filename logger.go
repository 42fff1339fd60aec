package blobcache

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with blobcache-specific context.
// This provides structured logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a new Logger with the given handler.
// If handler is nil, uses default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
// level sets the minimum log level (e.g., slog.LevelDebug, slog.LevelInfo).
func NewJSONLogger(level slog.Level) *Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// NoopLogger creates a Logger that discards all log output.
// Use this to disable logging entirely.
func NoopLogger() *Logger {
	handler := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithStore adds a store field to the logger.
func (l *Logger) WithStore(name string) *Logger {
	return &Logger{
		Logger: l.Logger.With("store", name),
	}
}

// WithSession adds a session field that tags every log line of one cache instance.
func (l *Logger) WithSession(id string) *Logger {
	return &Logger{
		Logger: l.Logger.With("session", id),
	}
}

// Ts returns the current time, used as the start mark for Elapsed.
func (l *Logger) Ts() time.Time {
	return time.Now()
}

// Elapsed formats the time since start.
func (l *Logger) Elapsed(start time.Time) string {
	return time.Since(start).Round(time.Microsecond).String()
}

// LogStart logs the beginning of an operation at debug level.
func (l *Logger) LogStart(ctx context.Context, op, id string) {
	l.DebugContext(ctx, op+" started", "id", id)
}

// LogOpen logs an engine open attempt.
func (l *Logger) LogOpen(ctx context.Context, start time.Time, err error) {
	if err != nil {
		l.ErrorContext(ctx, "open failed",
			"elapsed", l.Elapsed(start),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "open completed",
			"elapsed", l.Elapsed(start),
		)
	}
}

// LogSave logs a save operation.
func (l *Logger) LogSave(ctx context.Context, id string, size int, start time.Time, err error) {
	if err != nil {
		l.ErrorContext(ctx, "save failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "save completed",
			"id", id,
			"bytes", size,
			"elapsed", l.Elapsed(start),
		)
	}
}

// LogLoad logs a load operation.
func (l *Logger) LogLoad(ctx context.Context, id string, hit bool, start time.Time, err error) {
	if err != nil {
		l.ErrorContext(ctx, "load failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "load completed",
			"id", id,
			"hit", hit,
			"elapsed", l.Elapsed(start),
		)
	}
}

// LogRemove logs a remove operation.
func (l *Logger) LogRemove(ctx context.Context, id string, start time.Time, err error) {
	if err != nil {
		l.ErrorContext(ctx, "remove failed",
			"id", id,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "remove completed",
			"id", id,
			"elapsed", l.Elapsed(start),
		)
	}
}
