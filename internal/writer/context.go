package writer

import (
	"context"

	"github.com/google/uuid"
)

type batchIDKey struct{}

// WithBatchID attaches the id of the batch being shipped to ctx
func WithBatchID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, batchIDKey{}, id)
}

// BatchIDFromContext returns the batch id set by WithBatchID, or a fresh one
func BatchIDFromContext(ctx context.Context) uuid.UUID {
	if id, ok := ctx.Value(batchIDKey{}).(uuid.UUID); ok {
		return id
	}
	return uuid.New()
}
