package dlq

import (
	"context"
	"time"

	"github.com/xraph/mediator/id"
)

// ListOpts controls pagination and filtering for DLQ list queries.
type ListOpts struct {
	// Limit is the maximum number of entries to return. Zero means no limit.
	Limit int
	// Offset is the number of entries to skip.
	Offset int
	// EventType filters by event type. Empty means all types.
	EventType string
	// Subscriber filters by subscriber name. Empty means all subscribers.
	Subscriber string
}

// Match reports whether e passes the filters of opts.
func (o ListOpts) Match(e *Entry) bool {
	if o.EventType != "" && e.EventType != o.EventType {
		return false
	}
	if o.Subscriber != "" && e.Subscriber != o.Subscriber {
		return false
	}
	return true
}

// Store defines the persistence contract for the dead letter queue.
type Store interface {
	// PushDLQ adds a failed delivery to the dead letter queue.
	PushDLQ(ctx context.Context, entry *Entry) error

	// ListDLQ returns DLQ entries matching the given options, oldest first.
	ListDLQ(ctx context.Context, opts ListOpts) ([]*Entry, error)

	// GetDLQ retrieves a DLQ entry by ID.
	GetDLQ(ctx context.Context, entryID id.DLQID) (*Entry, error)

	// ReplayDLQ marks a DLQ entry as replayed. The redelivery itself is
	// handled at the service layer.
	ReplayDLQ(ctx context.Context, entryID id.DLQID) error

	// PurgeDLQ removes DLQ entries with FailedAt before the given time.
	// Returns the number of entries removed.
	PurgeDLQ(ctx context.Context, before time.Time) (int64, error)

	// CountDLQ returns the total number of entries in the dead letter queue.
	CountDLQ(ctx context.Context) (int64, error)
}
