// Package message defines the three message kinds routed by the mediator:
// commands, queries and events.
package message

import (
	"maps"
	"time"

	"github.com/xraph/mediator/id"
)

// Kind discriminates the message union.
type Kind string

// Message kinds.
const (
	KindCommand Kind = "command"
	KindQuery   Kind = "query"
	KindEvent   Kind = "event"
)

// Metadata carries opaque correlation fields (trace id, span id,
// correlation id, tenant, ...). The mediator passes it through unchanged.
type Metadata map[string]string

// Well-known metadata keys.
const (
	MetaCorrelationID = "correlation_id"
	MetaCausationID   = "causation_id"
	MetaTraceID       = "trace_id"
	MetaSpanID        = "span_id"
)

// Get returns the value for key, or "" when absent.
func (m Metadata) Get(key string) string {
	if m == nil {
		return ""
	}
	return m[key]
}

// Clone returns an independent copy.
func (m Metadata) Clone() Metadata {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

// Message is implemented by *Command, *Query and *Event.
type Message interface {
	// Kind returns the union discriminator.
	Kind() Kind
	// MessageType returns the dispatch key.
	MessageType() string
	// MessageID returns the correlation id of this message.
	MessageID() id.ID
	// MessagePayload returns the payload.
	MessagePayload() any
	// MessageMetadata returns the pass-through metadata.
	MessageMetadata() Metadata
}

// Compile-time interface checks.
var (
	_ Message = (*Command)(nil)
	_ Message = (*Query)(nil)
	_ Message = (*Event)(nil)
)

// Command requests a state mutation. Exactly one handler serves a type.
type Command struct {
	ID       id.CommandID `json:"id"`
	Type     string       `json:"type"`
	Payload  any          `json:"payload,omitempty"`
	Metadata Metadata     `json:"metadata,omitempty"`
}

// NewCommand builds a command with a fresh ID.
func NewCommand(typ string, payload any) *Command {
	return &Command{ID: id.NewCommandID(), Type: typ, Payload: payload}
}

func (c *Command) Kind() Kind                { return KindCommand }
func (c *Command) MessageType() string       { return c.Type }
func (c *Command) MessageID() id.ID          { return c.ID }
func (c *Command) MessagePayload() any       { return c.Payload }
func (c *Command) MessageMetadata() Metadata { return c.Metadata }

// Event notifies subscribers that something happened.
type Event struct {
	ID         id.EventID `json:"id"`
	Type       string     `json:"type"`
	Payload    any        `json:"payload,omitempty"`
	Metadata   Metadata   `json:"metadata,omitempty"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// NewEvent builds an event with a fresh ID stamped with the current time.
func NewEvent(typ string, payload any) *Event {
	return &Event{
		ID:         id.NewEventID(),
		Type:       typ,
		Payload:    payload,
		OccurredAt: time.Now().UTC(),
	}
}

func (e *Event) Kind() Kind                { return KindEvent }
func (e *Event) MessageType() string       { return e.Type }
func (e *Event) MessageID() id.ID          { return e.ID }
func (e *Event) MessagePayload() any       { return e.Payload }
func (e *Event) MessageMetadata() Metadata { return e.Metadata }
