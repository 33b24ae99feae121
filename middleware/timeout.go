package middleware

import (
	"context"
	"time"
)

// Timeout returns middleware that bounds the downstream context with d.
// Handlers are expected to honour ctx and return context.DeadlineExceeded.
// A non-positive d disables the middleware.
func Timeout(d time.Duration) Middleware {
	return func(ctx context.Context, _ *Invocation, next Handler) (any, error) {
		if d <= 0 {
			return next(ctx)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx)
	}
}
