// Package dlq provides the dead letter queue for event deliveries that
// failed. It supports inspection, replay, and purging.
//
// When a subscriber returns an error (after any retry middleware gave up)
// or panics, the event bus calls [Service.Push] to record the failure.
// The bus never retries a dead-lettered delivery on its own.
//
// # Entry
//
// A [Entry] captures:
//   - EventID / EventType: original event identity
//   - Subscriber: the name of the subscriber that failed
//   - Payload: the event payload encoded as JSON at time of failure
//   - Metadata: the event's correlation metadata
//   - Error: the final error message
//   - FailedAt: when the delivery failed
//   - ReplayedAt: set when the entry is replayed (nil if not yet replayed)
//
// # Service
//
//	svc := dlq.NewService(store)
//
//	// Push is called by the event bus on a failed delivery.
//	svc.Push(ctx, evt, "mailer", err)
//
//	entries, _ := svc.List(ctx, dlq.ListOpts{EventType: "OrderCreated"})
//
// # Replay
//
// Replaying an entry rebuilds the event and hands it back to one named
// subscriber through a [DeliverFunc], normally the event bus's Redeliver.
// Replay sets ReplayedAt on the entry once the delivery succeeds.
package dlq
