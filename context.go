package goSession

import (
	"context"

	"github.com/google/uuid"
)

type correlationIDContextKey struct{}

// WithCorrelationID attaches a correlation identifier to ctx. Engine operations
// tag their log lines and audit events with it; when absent a fresh one is
// generated per operation.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDContextKey{}, id)
}

// CorrelationIDFromContext returns the identifier attached by WithCorrelationID.
func CorrelationIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, _ := ctx.Value(correlationIDContextKey{}).(string)
	return id, id != ""
}

func ensureCorrelationID(ctx context.Context) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := CorrelationIDFromContext(ctx); ok {
		return ctx
	}
	return WithCorrelationID(ctx, uuid.NewString())
}

func correlationIDFromContext(ctx context.Context) string {
	id, _ := CorrelationIDFromContext(ctx)
	return id
}
