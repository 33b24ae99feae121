package mediator

import "github.com/xraph/mediator/id"

// ID is the identifier type for messages and bookkeeping records.
type ID = id.ID

// Prefix identifies the record kind encoded in an ID.
type Prefix = id.Prefix
