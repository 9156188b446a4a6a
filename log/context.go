package log

import (
	"context"

	"github.com/google/uuid"
)

// NewTraceID generates a new trace ID
func NewTraceID() string {
	return uuid.New().String()
}

// NewRequestContext creates a new context with a logger that has a trace ID;
// every ceremony started from the returned context shares the same trace id
func NewRequestContext(parentCtx context.Context, moduleName string) (context.Context, *Logger) {
	logger := New(moduleName).WithTraceID(NewTraceID())
	return logger.WithContext(parentCtx), logger
}

// FromContext retrieves a logger from the context
// If no logger is found, a new default logger is returned
func FromContext(ctx context.Context) *Logger {
	if ctx == nil {
		return New("default")
	}
	logger, ok := ctx.Value(LogContextKey).(*Logger)
	if !ok {
		return New("default")
	}
	return logger
}

// FromContextOr returns the context logger, or fallback if the context carries none
func FromContextOr(ctx context.Context, fallback *Logger) *Logger {
	if ctx != nil {
		if logger, ok := ctx.Value(LogContextKey).(*Logger); ok {
			return logger
		}
	}
	return fallback
}

// WithField adds a field to the logger in the context and returns the updated context
func WithField(ctx context.Context, key string, value interface{}) context.Context {
	return FromContext(ctx).WithField(key, value).WithContext(ctx)
}

// Debug logs a debug message with the logger from the context
func Debug(ctx context.Context, msg string, fields ...KV) {
	FromContext(ctx).Debug(msg, fields...)
}

// Info logs an info message with the logger from the context
func Info(ctx context.Context, msg string, fields ...KV) {
	FromContext(ctx).Info(msg, fields...)
}

// Warn logs a warning message with the logger from the context
func Warn(ctx context.Context, msg string, fields ...KV) {
	FromContext(ctx).Warn(msg, fields...)
}

// Error logs an error message with the logger from the context
func Error(ctx context.Context, err error, msg string, fields ...KV) {
	FromContext(ctx).Error(err, msg, fields...)
}
