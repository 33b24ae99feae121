package middleware

import (
	"context"
	"fmt"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/message"
)

// Validator checks a message before it reaches its handler.
type Validator interface {
	Validate(ctx context.Context, msg message.Message) error
}

// ValidatorFunc adapts a function to Validator.
type ValidatorFunc func(ctx context.Context, msg message.Message) error

// Validate calls f.
func (f ValidatorFunc) Validate(ctx context.Context, msg message.Message) error {
	return f(ctx, msg)
}

// selfValidating payloads validate themselves.
type selfValidating interface {
	Validate() error
}

// PayloadValidator validates payloads that implement Validate() error.
// Payloads without the method pass.
func PayloadValidator() Validator {
	return ValidatorFunc(func(_ context.Context, msg message.Message) error {
		if v, ok := msg.MessagePayload().(selfValidating); ok {
			return v.Validate()
		}
		return nil
	})
}

// Validate returns middleware that short-circuits with a
// mediator.ErrValidation error when any validator rejects the message.
func Validate(validators ...Validator) Middleware {
	return func(ctx context.Context, inv *Invocation, next Handler) (any, error) {
		for _, v := range validators {
			if err := v.Validate(ctx, inv.Message); err != nil {
				return nil, fmt.Errorf("%w: %s %s: %w", mediator.ErrValidation,
					inv.Message.Kind(), inv.Message.MessageType(), err)
			}
		}
		return next(ctx)
	}
}
