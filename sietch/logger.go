package sietch

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// QueryLogger defines the interface for logging repository operations
type QueryLogger interface {
	// LogQuery logs a storage statement with timing and error information
	LogQuery(ctx context.Context, operation string, query string, args []any, duration time.Duration, err error)

	// LogOperation logs a high-level repository operation
	LogOperation(ctx context.Context, operation string, entityType string, duration time.Duration, err error)
}

// SlogLogger writes through a *slog.Logger. Successful calls are logged at
// debug level, misses at debug level with the error, failures at error level.
type SlogLogger struct {
	logger *slog.Logger
}

// NewSlogLogger wraps l, or slog.Default() when l is nil.
func NewSlogLogger(l *slog.Logger) *SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return &SlogLogger{logger: l.With("component", "sietch")}
}

// LogQuery implements QueryLogger
func (l *SlogLogger) LogQuery(ctx context.Context, operation string, query string, args []any, duration time.Duration, err error) {
	attrs := []any{
		"operation", operation,
		"query", query,
		"args", args,
		"duration", duration,
	}
	if err != nil && !errors.Is(err, ErrItemNotFound) {
		l.logger.ErrorContext(ctx, "query failed", append(attrs, "error", err)...)
		return
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	l.logger.DebugContext(ctx, "query", attrs...)
}

// LogOperation implements QueryLogger
func (l *SlogLogger) LogOperation(ctx context.Context, operation string, entityType string, duration time.Duration, err error) {
	attrs := []any{
		"operation", operation,
		"entity", entityType,
		"duration", duration,
	}
	if err != nil && !errors.Is(err, ErrItemNotFound) {
		l.logger.ErrorContext(ctx, "operation failed", append(attrs, "error", err)...)
		return
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	l.logger.DebugContext(ctx, "operation", attrs...)
}

// NoOpLogger is a logger that does nothing (useful for disabling logging)
type NoOpLogger struct{}

// NewNoOpLogger creates a no-op logger
func NewNoOpLogger() *NoOpLogger {
	return &NoOpLogger{}
}

// LogQuery implements QueryLogger
func (l *NoOpLogger) LogQuery(context.Context, string, string, []any, time.Duration, error) {}

// LogOperation implements QueryLogger
func (l *NoOpLogger) LogOperation(context.Context, string, string, time.Duration, error) {}

// LoggableRepository is an optional interface for repositories that support logging
type LoggableRepository interface {
	// SetLogger sets the query logger for this repository
	SetLogger(logger QueryLogger)

	// GetLogger returns the current query logger
	GetLogger() QueryLogger
}

// logOperation is a helper to log an operation with timing
func logOperation(logger QueryLogger, ctx context.Context, operation string, entityType string, start time.Time, err error) {
	if logger != nil {
		logger.LogOperation(ctx, operation, entityType, time.Since(start), err)
	}
}

// logQuery is a helper to log a query with timing
func logQuery(logger QueryLogger, ctx context.Context, operation string, query string, args []any, start time.Time, err error) {
	if logger != nil {
		logger.LogQuery(ctx, operation, query, args, time.Since(start), err)
	}
}
