package store

import (
	"context"

	"github.com/xraph/mediator/cache"
	"github.com/xraph/mediator/dlq"
)

// Store is the aggregate persistence interface. A single backend serves
// both the query cache and the dead letter queue.
type Store interface {
	cache.Store
	dlq.Store

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close releases resources owned by the store.
	Close() error
}
