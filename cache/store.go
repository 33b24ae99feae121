package cache

import (
	"context"
	"time"
)

// Store is the persistence contract behind the query cache. Keys are
// opaque strings; patterns use path.Match glob syntax.
type Store interface {
	// Get returns the entry for key. A missing key is (nil, false, nil).
	Get(ctx context.Context, key string) (*Entry, bool, error)

	// Set stores entry under key. The store may evict it after ttl.
	Set(ctx context.Context, key string, entry *Entry, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// ClearPattern removes every key matching the glob pattern and
	// returns how many were removed.
	ClearPattern(ctx context.Context, pattern string) (int, error)
}
