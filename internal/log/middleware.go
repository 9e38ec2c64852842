package log

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// ContextKey type for context keys
type ContextKey string

const (
	// LoggerContextKey is the context key for the logger
	LoggerContextKey ContextKey = "logger"
	// RequestIDContextKey is read by WithRequest. The trace middleware
	// stores the ID under the same key value.
	RequestIDContextKey ContextKey = "request_id"
)

// Middleware creates HTTP middleware that adds a logger to the request context
func Middleware(logger *Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), LoggerContextKey, logger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// FromContext extracts a logger from the request context
func FromContext(ctx context.Context) *Logger {
	if logger, ok := ctx.Value(LoggerContextKey).(*Logger); ok {
		return logger
	}
	return &Logger{
		Logger:    slog.Default(),
		component: "unknown",
	}
}

// StructuredLogger provides structured logging methods with context awareness
type StructuredLogger struct {
	logger *Logger
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(logger *Logger) *StructuredLogger {
	return &StructuredLogger{
		logger: logger,
	}
}

// LogHTTPEnd logs the completion of an HTTP request
func (sl *StructuredLogger) LogHTTPEnd(ctx context.Context, r *http.Request, statusCode int, d time.Duration, clientIP string) {
	level := slog.LevelInfo
	if statusCode >= 400 && statusCode < 500 {
		level = slog.LevelWarn
	} else if statusCode >= 500 {
		level = slog.LevelError
	}

	fields := NewFields().
		WithHTTPRequest(r.Method, r.URL.Path, r.URL.RawQuery, "").
		WithHTTPResponse(statusCode, d).
		WithClientIP(clientIP)

	sl.logger.WithRequest(ctx).Log(ctx, level, "HTTP request completed", fields.ToSlice()...)
}

// LogReportGenerated logs a finished reconciliation report
func (sl *StructuredLogger) LogReportGenerated(ctx context.Context, budgetFile, expenseFile, filter string, rows, warnings int, d time.Duration) {
	fields := NewFields().
		WithReport(budgetFile, expenseFile, filter, rows, warnings).
		WithOperation(OpReport)
	fields[FieldDuration] = d.Milliseconds()

	sl.logger.WithRequest(ctx).InfoContext(ctx, "Report generated", fields.ToSlice()...)
}

// LogClassificationSaved logs a saved classification batch
func (sl *StructuredLogger) LogClassificationSaved(ctx context.Context, fileKey, actor string, entries int) {
	fields := NewFields().
		WithClassification(fileKey, actor, entries).
		WithOperation(OpUpdate)

	sl.logger.WithRequest(ctx).InfoContext(ctx, "Classifications saved", fields.ToSlice()...)
}

// LogError logs an error with structured context
func (sl *StructuredLogger) LogError(ctx context.Context, msg string, err error, errorType, operation string, fields LogFields) {
	if fields == nil {
		fields = NewFields()
	}
	fields = fields.
		WithError(err).
		WithOperation(operation)
	fields[FieldErrorType] = errorType

	sl.logger.WithRequest(ctx).ErrorContext(ctx, msg, fields.ToSlice()...)
}
