// Package id defines TypeID-based identifiers for mediator messages and
// bookkeeping records.
//
// Identifiers are K-sortable (UUIDv7-based), globally unique and URL-safe
// in the format "prefix_suffix". They double as opaque correlation ids on
// commands, queries and events.
package id

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

// Prefix identifies the kind of record encoded in a TypeID.
type Prefix string

// Prefix constants for every identified record.
const (
	PrefixCommand Prefix = "cmd"
	PrefixQuery   Prefix = "qry"
	PrefixEvent   Prefix = "evt"
	PrefixDLQ     Prefix = "dlq"
	PrefixRefresh Prefix = "rfr"
)

// ID wraps a TypeID. The zero value is Nil.
//
//nolint:recvcheck // Value receivers for read-only methods, pointer receiver for UnmarshalText.
type ID struct {
	inner typeid.TypeID
	valid bool
}

// Nil is the zero-value ID.
var Nil ID

// New generates a new ID with the given prefix.
// It panics if prefix is not a valid TypeID prefix (programming error).
func New(prefix Prefix) ID {
	tid, err := typeid.Generate(string(prefix))
	if err != nil {
		panic(fmt.Sprintf("id: invalid prefix %q: %v", prefix, err))
	}
	return ID{inner: tid, valid: true}
}

// Parse parses a TypeID string such as "cmd_01h2xcejqtf2nbrexx3vqjhp41".
func Parse(s string) (ID, error) {
	if s == "" {
		return Nil, fmt.Errorf("id: parse %q: empty string", s)
	}
	tid, err := typeid.Parse(s)
	if err != nil {
		return Nil, fmt.Errorf("id: parse %q: %w", s, err)
	}
	return ID{inner: tid, valid: true}, nil
}

// ParseWithPrefix parses s and checks that its prefix is expected.
func ParseWithPrefix(s string, expected Prefix) (ID, error) {
	parsed, err := Parse(s)
	if err != nil {
		return Nil, err
	}
	if parsed.Prefix() != expected {
		return Nil, fmt.Errorf("id: expected prefix %q, got %q", expected, parsed.Prefix())
	}
	return parsed, nil
}

// MustParse is like Parse but panics on error.
func MustParse(s string) ID {
	parsed, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("id: must parse %q: %v", s, err))
	}
	return parsed
}

// Aliases kept for readability at call sites.
type (
	CommandID = ID
	QueryID   = ID
	EventID   = ID
	DLQID     = ID
	RefreshID = ID
)

// NewCommandID generates a new command ID.
func NewCommandID() ID { return New(PrefixCommand) }

// NewQueryID generates a new query ID.
func NewQueryID() ID { return New(PrefixQuery) }

// NewEventID generates a new event ID.
func NewEventID() ID { return New(PrefixEvent) }

// NewDLQID generates a new dead-letter entry ID.
func NewDLQID() ID { return New(PrefixDLQ) }

// NewRefreshID generates a new background refresh handle ID.
func NewRefreshID() ID { return New(PrefixRefresh) }

// ParseDLQID parses s and validates the "dlq" prefix.
func ParseDLQID(s string) (ID, error) { return ParseWithPrefix(s, PrefixDLQ) }

// ParseEventID parses s and validates the "evt" prefix.
func ParseEventID(s string) (ID, error) { return ParseWithPrefix(s, PrefixEvent) }

// String returns "prefix_suffix", or "" for Nil.
func (i ID) String() string {
	if !i.valid {
		return ""
	}
	return i.inner.String()
}

// Prefix returns the prefix component of this ID.
func (i ID) Prefix() Prefix {
	if !i.valid {
		return ""
	}
	return Prefix(i.inner.Prefix())
}

// IsNil reports whether this ID is the zero value.
func (i ID) IsNil() bool { return !i.valid }

// MarshalText implements encoding.TextMarshaler.
func (i ID) MarshalText() ([]byte, error) {
	if !i.valid {
		return []byte{}, nil
	}
	return []byte(i.inner.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (i *ID) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*i = Nil
		return nil
	}
	parsed, err := Parse(string(data))
	if err != nil {
		return err
	}
	*i = parsed
	return nil
}
