package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/xraph/mediator"
)

// Recover returns middleware that recovers from panics further down the
// chain. Panics are converted to mediator.ErrExecution errors and logged
// with a stack trace. The buses recover at their boundary regardless;
// this middleware adds the stack trace and lets outer middleware observe
// the failure as an ordinary error.
func Recover(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inv *Invocation, next Handler) (out any, retErr error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("message handler panicked",
					slog.String("kind", string(inv.Message.Kind())),
					slog.String("type", inv.Message.MessageType()),
					slog.String("message_id", inv.Message.MessageID().String()),
					slog.Any("panic", r),
					slog.String("stack", string(debug.Stack())),
				)
				out = nil
				retErr = fmt.Errorf("%w: panic in %s %s: %v", mediator.ErrExecution,
					inv.Message.Kind(), inv.Message.MessageType(), r)
			}
		}()
		return next(ctx)
	}
}
