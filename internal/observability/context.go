package observability

import (
	"context"
)

// Context keys for observability data.
type contextKey string

const (
	passIDKey   contextKey = "pass_id"
	batchIDKey  contextKey = "batch_id"
	refIndexKey contextKey = "reference_index"
)

// WithPassID adds a reconciliation pass ID to the context.
func WithPassID(ctx context.Context, passID string) context.Context {
	return context.WithValue(ctx, passIDKey, passID)
}

// PassIDFromContext retrieves the reconciliation pass ID from context.
// Returns empty string if not present.
func PassIDFromContext(ctx context.Context) string {
	if v := ctx.Value(passIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// WithBatch adds a batch ID and the reference's index within the batch to
// the context. Results are associated back to their originating reference
// by this index, not by completion order.
func WithBatch(ctx context.Context, batchID string, refIndex int) context.Context {
	ctx = context.WithValue(ctx, batchIDKey, batchID)
	ctx = context.WithValue(ctx, refIndexKey, refIndex)
	return ctx
}

// BatchFromContext retrieves the batch ID and reference index from context.
// Returns "" and -1 if not present.
func BatchFromContext(ctx context.Context) (batchID string, refIndex int) {
	refIndex = -1
	if v := ctx.Value(batchIDKey); v != nil {
		if id, ok := v.(string); ok {
			batchID = id
		}
	}
	if v := ctx.Value(refIndexKey); v != nil {
		if i, ok := v.(int); ok {
			refIndex = i
		}
	}
	return batchID, refIndex
}
