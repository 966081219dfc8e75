package ctxutil

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey string

const (
	traceIDKey    ctxKey = "trace_id"
	itemIndexKey  ctxKey = "item_index"
	invocationKey ctxKey = "invocation_id"

	// TraceIDKey is the log field name for trace ids
	TraceIDKey = string(traceIDKey)
	// TraceHeader carries the trace id over HTTP
	TraceHeader = "X-Trace-Id"
)

// GetTraceID gets trace id from context.Context.
func GetTraceID(ctx context.Context) string {
	if traceID, ok := ctx.Value(traceIDKey).(string); ok {
		return traceID
	}
	return ""
}

// SetTraceID sets trace id to context.Context.
func SetTraceID(ctx context.Context, traceID string) context.Context {
	return context.WithValue(ctx, traceIDKey, traceID)
}

// EnsureTraceID ensures that a trace ID exists in the context.
func EnsureTraceID(ctx context.Context) (context.Context, string) {
	if traceID := GetTraceID(ctx); traceID != "" {
		return ctx, traceID
	}
	traceID := uuid.NewString()
	return SetTraceID(ctx, traceID), traceID
}

// SetInvocationID tags the context with the id of one coordinator run.
func SetInvocationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, invocationKey, id)
}

// GetInvocationID gets the invocation id, empty when unset.
func GetInvocationID(ctx context.Context) string {
	if id, ok := ctx.Value(invocationKey).(string); ok {
		return id
	}
	return ""
}

// SetItemIndex tags the context with the work item being processed.
func SetItemIndex(ctx context.Context, index int) context.Context {
	return context.WithValue(ctx, itemIndexKey, index)
}

// GetItemIndex returns the work item index and whether one was set.
func GetItemIndex(ctx context.Context) (int, bool) {
	index, ok := ctx.Value(itemIndexKey).(int)
	return index, ok
}
