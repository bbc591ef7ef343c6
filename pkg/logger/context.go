package logger

import (
	"context"

	"go.uber.org/zap"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	productIDKey contextKey = "product_id"
	sessionIDKey contextKey = "session_id"
)

// WithRequestID adds a request ID to context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithProductID adds the product being fetched to context
func WithProductID(ctx context.Context, productID string) context.Context {
	return context.WithValue(ctx, productIDKey, productID)
}

// WithSessionID adds the browser session handle ID to context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDKey, sessionID)
}

// RequestIDFrom returns the request ID stored in ctx, if any.
func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}

// FromContext extracts logger from context with all accumulated fields
func FromContext(ctx context.Context) *zap.Logger {
	l := Logger
	if l == nil {
		l = zap.NewNop()
	}

	var fields []zap.Field

	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if id, ok := ctx.Value(productIDKey).(string); ok && id != "" {
		fields = append(fields, zap.String("product_id", id))
	}
	if id, ok := ctx.Value(sessionIDKey).(string); ok && id != "" {
		fields = append(fields, zap.String("session_id", id))
	}

	if len(fields) > 0 {
		l = l.With(fields...)
	}

	return l
}

// AttemptField returns a zap field for the retry attempt number
func AttemptField(attempt int) zap.Field {
	return zap.Int("attempt", attempt)
}

// DurationField returns a zap field for duration in milliseconds
func DurationField(durationMs int64) zap.Field {
	return zap.Int64("duration_ms", durationMs)
}

// Preview shortens secrets such as tokens and cookie values before they reach the log.
func Preview(value string) zap.Field {
	const n = 8
	if len(value) > n {
		value = value[:n] + "..."
	}
	return zap.String("preview", value)
}
