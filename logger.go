package gpucore

import (
	"context"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger with gpucore-specific context.
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
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	})
	return &Logger{
		Logger: slog.New(handler),
	}
}

// WithDevice adds a device field to the logger.
func (l *Logger) WithDevice(deviceID int) *Logger {
	return &Logger{
		Logger: l.Logger.With("device", deviceID),
	}
}

// LogAlloc logs one allocation.
func (l *Logger) LogAlloc(ctx context.Context, req AllocRequest, err error) {
	if err != nil {
		l.ErrorContext(ctx, "alloc failed",
			"request", req.String(),
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "alloc",
			"type", req.Type.String(),
			"device", req.Device,
			"space", req.Space.String(),
			"size", req.Size,
		)
	}
}

// LogDealloc logs one deallocation.
func (l *Logger) LogDealloc(ctx context.Context, deviceID int, size int64, err error) {
	if err != nil {
		l.ErrorContext(ctx, "dealloc failed",
			"device", deviceID,
			"size", size,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "dealloc",
			"device", deviceID,
			"size", size,
		)
	}
}

// LogStreamSync logs a default-stream synchronization.
func (l *Logger) LogStreamSync(ctx context.Context, deviceID int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "stream sync failed",
			"device", deviceID,
			"error", err,
		)
	} else {
		l.DebugContext(ctx, "stream sync",
			"device", deviceID,
		)
	}
}
