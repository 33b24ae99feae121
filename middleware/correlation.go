package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/xraph/mediator/message"
)

// Correlation returns middleware that guarantees a correlation id. An id
// already present in the metadata is kept as is; otherwise a random UUID
// is stamped.
func Correlation() Middleware {
	return func(ctx context.Context, inv *Invocation, next Handler) (any, error) {
		if inv.Metadata == nil {
			inv.Metadata = make(message.Metadata)
		}
		if inv.Metadata.Get(message.MetaCorrelationID) == "" {
			inv.Metadata[message.MetaCorrelationID] = uuid.NewString()
		}
		return next(ctx)
	}
}
