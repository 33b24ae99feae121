package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/backoff"
)

// RetryConfig configures the Retry middleware.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first.
	// Values below 1 are treated as 3.
	MaxAttempts int

	// Strategy computes the wait between attempts. Defaults to
	// backoff.Default() (exponential with jitter).
	Strategy backoff.Strategy

	// ShouldRetry decides whether err is worth another attempt. Defaults
	// to retrying everything except validation failures, missing handlers,
	// rate limiting and context cancellation.
	ShouldRetry func(err error) bool
}

// Retry returns middleware that re-runs the rest of the chain until it
// succeeds, a non-retryable error occurs, attempts run out or ctx ends.
// The last error is returned wrapped with the attempt count.
func Retry(cfg RetryConfig) Middleware {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 3
	}
	if cfg.Strategy == nil {
		cfg.Strategy = backoff.Default()
	}
	if cfg.ShouldRetry == nil {
		cfg.ShouldRetry = DefaultShouldRetry
	}

	return func(ctx context.Context, inv *Invocation, next Handler) (any, error) {
		var lastErr error
		for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
			inv.Attempt = attempt
			out, err := next(ctx)
			if err == nil {
				return out, nil
			}
			lastErr = err
			if !cfg.ShouldRetry(err) || attempt == cfg.MaxAttempts {
				break
			}
			if sleepErr := backoff.Sleep(ctx, cfg.Strategy.Delay(attempt)); sleepErr != nil {
				return nil, errors.Join(lastErr, sleepErr)
			}
		}
		if inv.Attempt > 1 {
			return nil, fmt.Errorf("after %d attempts: %w", inv.Attempt, lastErr)
		}
		return nil, lastErr
	}
}

// DefaultShouldRetry retries everything except permanent failures.
func DefaultShouldRetry(err error) bool {
	switch {
	case errors.Is(err, mediator.ErrValidation),
		errors.Is(err, mediator.ErrHandlerNotFound),
		errors.Is(err, mediator.ErrRateLimited),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	default:
		return true
	}
}
