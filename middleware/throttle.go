package middleware

import (
	"context"
	"fmt"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/limit"
)

// Throttle returns middleware that admits messages through m, keyed by
// message type and the tenant in the limit.TenantKey metadata field.
// Rejected messages fail with mediator.ErrRateLimited without reaching
// the handler.
func Throttle(m *limit.Manager) Middleware {
	return func(ctx context.Context, inv *Invocation, next Handler) (any, error) {
		typ := inv.Message.MessageType()
		tenant := inv.Metadata.Get(limit.TenantKey)
		if !m.Acquire(typ, tenant) {
			return nil, fmt.Errorf("%w: %s %s", mediator.ErrRateLimited, inv.Message.Kind(), typ)
		}
		defer m.Release(typ, tenant)
		return next(ctx)
	}
}
