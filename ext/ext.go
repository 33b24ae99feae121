package ext

import (
	"context"
	"time"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/message"
)

// Extension is the base interface all extensions must implement.
type Extension interface {
	// Name returns a unique human-readable name for the extension.
	Name() string
}

// ──────────────────────────────────────────────────
// Dispatch hooks
// ──────────────────────────────────────────────────

// CommandExecuted is called after the command bus produced a result.
type CommandExecuted interface {
	OnCommandExecuted(ctx context.Context, cmd *message.Command, res mediator.Result, elapsed time.Duration) error
}

// QueryExecuted is called after the query bus produced a result.
type QueryExecuted interface {
	OnQueryExecuted(ctx context.Context, q *message.Query, res mediator.Result, elapsed time.Duration) error
}

// EventDelivered is called after one subscriber handled an event.
type EventDelivered interface {
	OnEventDelivered(ctx context.Context, evt *message.Event, subscriber string, elapsed time.Duration) error
}

// EventDeadLettered is called when a subscriber failed and the delivery
// was moved to the dead letter queue.
type EventDeadLettered interface {
	OnEventDeadLettered(ctx context.Context, evt *message.Event, subscriber string, err error) error
}

// ──────────────────────────────────────────────────
// Cache hooks
// ──────────────────────────────────────────────────

// CacheHit is called when a query is answered from the cache.
type CacheHit interface {
	OnCacheHit(ctx context.Context, key string, stale bool) error
}

// CacheMiss is called when a query has to run its handler.
type CacheMiss interface {
	OnCacheMiss(ctx context.Context, key string) error
}

// CacheRefreshed is called after each background refresh attempt.
// err is nil when the entry was replaced.
type CacheRefreshed interface {
	OnCacheRefreshed(ctx context.Context, key string, attempt int, err error) error
}

// ──────────────────────────────────────────────────
// Other lifecycle hooks
// ──────────────────────────────────────────────────

// Shutdown is called during graceful shutdown.
type Shutdown interface {
	OnShutdown(ctx context.Context) error
}
