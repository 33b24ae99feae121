package dlq

import (
	"encoding/json"
	"time"

	"github.com/xraph/mediator/id"
	"github.com/xraph/mediator/message"
)

// Entry represents an event delivery that failed and was moved to the
// dead letter queue for inspection or replay.
type Entry struct {
	ID         id.DLQID         `json:"id" msgpack:"id"`
	EventID    id.EventID       `json:"event_id" msgpack:"event_id"`
	EventType  string           `json:"event_type" msgpack:"event_type"`
	Subscriber string           `json:"subscriber" msgpack:"subscriber"`
	Payload    json.RawMessage  `json:"payload,omitempty" msgpack:"payload"`
	Metadata   message.Metadata `json:"metadata,omitempty" msgpack:"metadata"`
	Error      string           `json:"error" msgpack:"error"`
	OccurredAt time.Time        `json:"occurred_at" msgpack:"occurred_at"`
	FailedAt   time.Time        `json:"failed_at" msgpack:"failed_at"`
	ReplayedAt *time.Time       `json:"replayed_at,omitempty" msgpack:"replayed_at"`
	CreatedAt  time.Time        `json:"created_at" msgpack:"created_at"`
}

// Event rebuilds the original event. The payload comes back as
// json.RawMessage, which typed subscribers decode on delivery.
func (e *Entry) Event() *message.Event {
	var payload any
	if len(e.Payload) > 0 {
		payload = e.Payload
	}
	return &message.Event{
		ID:         e.EventID,
		Type:       e.EventType,
		Payload:    payload,
		Metadata:   e.Metadata.Clone(),
		OccurredAt: e.OccurredAt,
	}
}
