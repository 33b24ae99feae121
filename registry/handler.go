package registry

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/message"
)

// CommandHandler handles one command type.
type CommandHandler interface {
	HandleCommand(ctx context.Context, cmd *message.Command) (any, error)
}

// CommandHandlerFunc adapts a function to CommandHandler.
type CommandHandlerFunc func(ctx context.Context, cmd *message.Command) (any, error)

// HandleCommand calls f.
func (f CommandHandlerFunc) HandleCommand(ctx context.Context, cmd *message.Command) (any, error) {
	return f(ctx, cmd)
}

// QueryHandler handles one query type.
type QueryHandler interface {
	HandleQuery(ctx context.Context, q *message.Query) (any, error)
}

// QueryHandlerFunc adapts a function to QueryHandler.
type QueryHandlerFunc func(ctx context.Context, q *message.Query) (any, error)

// HandleQuery calls f.
func (f QueryHandlerFunc) HandleQuery(ctx context.Context, q *message.Query) (any, error) {
	return f(ctx, q)
}

// EventHandler is a named event subscriber. The name identifies the
// subscriber in dead-letter records and in Unsubscribe.
type EventHandler interface {
	Name() string
	HandleEvent(ctx context.Context, evt *message.Event) error
}

type eventFunc struct {
	name string
	fn   func(ctx context.Context, evt *message.Event) error
}

func (e *eventFunc) Name() string { return e.name }

func (e *eventFunc) HandleEvent(ctx context.Context, evt *message.Event) error {
	return e.fn(ctx, evt)
}

// Subscriber builds an EventHandler from a function. A nil fn yields a
// nil handler, which Subscribe rejects.
func Subscriber(name string, fn func(ctx context.Context, evt *message.Event) error) EventHandler {
	if fn == nil {
		return nil
	}
	return &eventFunc{name: name, fn: fn}
}

// CommandFunc wraps a typed command handler. The payload is asserted to
// T, or JSON-decoded into T when it arrives as raw bytes. A nil fn yields
// a nil func, which RegisterCommand rejects.
func CommandFunc[T, R any](fn func(ctx context.Context, payload T) (R, error)) CommandHandlerFunc {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, cmd *message.Command) (any, error) {
		p, err := payloadAs[T](cmd.Type, cmd.Payload)
		if err != nil {
			return nil, err
		}
		return fn(ctx, p)
	}
}

// QueryFunc wraps a typed query handler. See CommandFunc.
func QueryFunc[T, R any](fn func(ctx context.Context, payload T) (R, error)) QueryHandlerFunc {
	if fn == nil {
		return nil
	}
	return func(ctx context.Context, q *message.Query) (any, error) {
		p, err := payloadAs[T](q.Type, q.Payload)
		if err != nil {
			return nil, err
		}
		return fn(ctx, p)
	}
}

// EventFunc wraps a typed event subscriber. See CommandFunc.
func EventFunc[T any](name string, fn func(ctx context.Context, payload T) error) EventHandler {
	if fn == nil {
		return nil
	}
	return Subscriber(name, func(ctx context.Context, evt *message.Event) error {
		p, err := payloadAs[T](evt.Type, evt.Payload)
		if err != nil {
			return err
		}
		return fn(ctx, p)
	})
}

func payloadAs[T any](typ string, payload any) (T, error) {
	var zero T
	switch v := payload.(type) {
	case T:
		return v, nil
	case nil:
		return zero, nil
	case json.RawMessage:
		return unmarshalPayload[T](typ, v)
	case []byte:
		return unmarshalPayload[T](typ, v)
	default:
		return zero, fmt.Errorf("%w: payload for %q is %T, want %T", mediator.ErrValidation, typ, payload, zero)
	}
}

func unmarshalPayload[T any](typ string, data []byte) (T, error) {
	var t T
	if len(data) == 0 {
		return t, nil
	}
	if err := json.Unmarshal(data, &t); err != nil {
		return t, fmt.Errorf("%w: unmarshal payload for %q: %v", mediator.ErrValidation, typ, err)
	}
	return t, nil
}
