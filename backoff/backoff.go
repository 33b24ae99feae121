// Package backoff provides retry delay strategies. The retry middleware
// uses them between attempts, and the query cache uses them to reschedule
// failed background refreshes. All strategies are stateless and safe for
// concurrent use.
package backoff

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// Strategy computes the delay before retry attempt n (1-indexed).
type Strategy interface {
	Delay(attempt int) time.Duration
}

// StrategyFunc adapts a function to Strategy.
type StrategyFunc func(attempt int) time.Duration

// Delay calls f.
func (f StrategyFunc) Delay(attempt int) time.Duration { return f(attempt) }

// Constant always waits Interval.
type Constant struct {
	Interval time.Duration
}

// NewConstant creates a constant strategy.
func NewConstant(interval time.Duration) *Constant {
	return &Constant{Interval: interval}
}

// Delay returns the fixed interval.
func (c *Constant) Delay(_ int) time.Duration { return c.Interval }

// Exponential grows the delay by Factor each attempt, capped at Max, and
// spreads it by ±Jitter (a fraction in [0,1]).
//
// Delay = min(Initial * Factor^(attempt-1), Max) * (1 ± Jitter)
type Exponential struct {
	Initial time.Duration
	Max     time.Duration
	Factor  float64
	Jitter  float64
}

// NewExponential creates a doubling strategy without jitter.
func NewExponential(initial, maxDelay time.Duration) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay, Factor: 2}
}

// NewExponentialWithJitter creates a doubling strategy with ±jitter.
func NewExponentialWithJitter(initial, maxDelay time.Duration, jitter float64) *Exponential {
	return &Exponential{Initial: initial, Max: maxDelay, Factor: 2, Jitter: jitter}
}

// Delay implements Strategy.
func (e *Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	factor := e.Factor
	if factor <= 0 {
		factor = 2
	}
	base := float64(e.Initial) * math.Pow(factor, float64(attempt-1))
	if e.Max > 0 && base > float64(e.Max) {
		base = float64(e.Max)
	}
	if e.Jitter > 0 {
		j := math.Min(e.Jitter, 1)
		base *= 1 - j + 2*j*rand.Float64() //nolint:gosec // jitter intentionally uses non-crypto rand
	}
	return time.Duration(base)
}

// Default returns exponential backoff with ±20% jitter, starting at 100ms
// and capped at 10s.
func Default() Strategy {
	return NewExponentialWithJitter(100*time.Millisecond, 10*time.Second, 0.2)
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
