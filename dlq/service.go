package dlq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/mediator/id"
	"github.com/xraph/mediator/message"
)

// Service provides high-level DLQ operations over a Store.
type Service struct {
	store Store
}

// NewService creates a DLQ service.
func NewService(store Store) *Service {
	return &Service{store: store}
}

// Push builds a DLQ Entry from a failed delivery and persists it.
// A payload that cannot be encoded as JSON is stored as its %v rendering
// so the failure record is never lost.
func (s *Service) Push(ctx context.Context, evt *message.Event, subscriber string, deliveryErr error) error {
	payload, err := encodePayload(evt.Payload)
	if err != nil {
		payload, _ = json.Marshal(fmt.Sprintf("%v", evt.Payload)) //nolint:errchkjson // string always encodes
	}

	now := time.Now().UTC()
	entry := &Entry{
		ID:         id.NewDLQID(),
		EventID:    evt.ID,
		EventType:  evt.Type,
		Subscriber: subscriber,
		Payload:    payload,
		Metadata:   evt.Metadata.Clone(),
		Error:      deliveryErr.Error(),
		OccurredAt: evt.OccurredAt,
		FailedAt:   now,
		CreatedAt:  now,
	}
	return s.store.PushDLQ(ctx, entry)
}

func encodePayload(p any) (json.RawMessage, error) {
	switch v := p.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		if json.Valid(v) {
			return v, nil
		}
	}
	return json.Marshal(p)
}

// List returns entries matching opts.
func (s *Service) List(ctx context.Context, opts ListOpts) ([]*Entry, error) {
	return s.store.ListDLQ(ctx, opts)
}

// Get returns one entry.
func (s *Service) Get(ctx context.Context, entryID id.DLQID) (*Entry, error) {
	return s.store.GetDLQ(ctx, entryID)
}

// Count returns the number of entries.
func (s *Service) Count(ctx context.Context) (int64, error) {
	return s.store.CountDLQ(ctx)
}

// Purge removes entries that failed before the given time.
func (s *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	return s.store.PurgeDLQ(ctx, before)
}

// DLQStore returns the underlying DLQ store.
func (s *Service) DLQStore() Store {
	return s.store
}
