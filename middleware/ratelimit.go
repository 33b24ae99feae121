package middleware

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"

	"github.com/xraph/mediator"
)

// RateLimit returns middleware that rejects executions with
// mediator.ErrRateLimited when limiter has no token available.
func RateLimit(limiter *rate.Limiter) Middleware {
	return func(ctx context.Context, inv *Invocation, next Handler) (any, error) {
		if !limiter.Allow() {
			return nil, fmt.Errorf("%w: %s %s", mediator.ErrRateLimited,
				inv.Message.Kind(), inv.Message.MessageType())
		}
		return next(ctx)
	}
}

// RateLimitWait is like RateLimit but blocks until a token is available or
// ctx ends.
func RateLimitWait(limiter *rate.Limiter) Middleware {
	return func(ctx context.Context, _ *Invocation, next Handler) (any, error) {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %w", mediator.ErrRateLimited, err)
		}
		return next(ctx)
	}
}
