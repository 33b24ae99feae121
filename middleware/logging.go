package middleware

import (
	"context"
	"log/slog"
	"time"
)

// Logging returns middleware that logs execution start and completion.
func Logging(logger *slog.Logger) Middleware {
	return func(ctx context.Context, inv *Invocation, next Handler) (any, error) {
		attrs := []any{
			slog.String("kind", string(inv.Message.Kind())),
			slog.String("type", inv.Message.MessageType()),
			slog.String("message_id", inv.Message.MessageID().String()),
		}
		if inv.Subscriber != "" {
			attrs = append(attrs, slog.String("subscriber", inv.Subscriber))
		}
		logger.Debug("message started", attrs...)

		start := time.Now()
		out, err := next(ctx)
		elapsed := time.Since(start)

		if err != nil {
			logger.Error("message failed", append(attrs,
				slog.Duration("elapsed", elapsed),
				slog.String("error", err.Error()),
			)...)
		} else {
			logger.Info("message handled", append(attrs,
				slog.Duration("elapsed", elapsed),
			)...)
		}
		return out, err
	}
}
