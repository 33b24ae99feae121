package dlq

import (
	"context"
	"fmt"

	"github.com/xraph/mediator/id"
	"github.com/xraph/mediator/message"
)

// DeliverFunc hands an event to one named subscriber.
type DeliverFunc func(ctx context.Context, evt *message.Event, subscriber string) error

// Replay redelivers a DLQ entry to the subscriber that failed it and marks
// the entry as replayed. A failed redelivery leaves the entry untouched
// and is not pushed again.
func (s *Service) Replay(ctx context.Context, entryID id.DLQID, deliver DeliverFunc) error {
	entry, err := s.store.GetDLQ(ctx, entryID)
	if err != nil {
		return err
	}

	if err := deliver(ctx, entry.Event(), entry.Subscriber); err != nil {
		return fmt.Errorf("dlq: replay %s: %w", entryID, err)
	}

	return s.store.ReplayDLQ(ctx, entryID)
}
