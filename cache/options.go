package cache

import (
	"log/slog"
	"time"

	"github.com/xraph/mediator/backoff"
	"github.com/xraph/mediator/ext"
)

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for store and refresh failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *Cache) { c.logger = l }
}

// WithExtensions sets the registry notified of hits, misses and refreshes.
func WithExtensions(r *ext.Registry) Option {
	return func(c *Cache) { c.extensions = r }
}

// WithClock replaces time.Now for freshness checks and entry stamps.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) { c.now = now }
}

// WithRefreshBackoff sets the delay between failed background refresh
// attempts. Defaults to backoff.Default().
func WithRefreshBackoff(s backoff.Strategy) Option {
	return func(c *Cache) { c.retry = s }
}
