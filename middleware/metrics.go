package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// meterName is the instrumentation scope name for mediator metrics.
const meterName = "github.com/xraph/mediator"

// Metrics returns middleware that records per-message execution metrics
// using the global OTel MeterProvider. Without a configured provider the
// instruments are noops.
//
// Instruments:
//   - mediator.message.duration (Float64Histogram): seconds, with
//     attributes kind, type, status ("ok" or "error")
//   - mediator.message.executions (Int64Counter): total executions, with
//     the same attributes
func Metrics() Middleware {
	return MetricsWithMeter(otel.Meter(meterName))
}

// MetricsWithMeter returns metrics middleware using the provided meter.
func MetricsWithMeter(meter metric.Meter) Middleware {
	// OTel returns noop instruments alongside any error, so the
	// middleware degrades to a pass-through.
	duration, _ := meter.Float64Histogram( //nolint:errcheck // noop fallback guaranteed by OTel API contract
		"mediator.message.duration",
		metric.WithDescription("Duration of message execution in seconds"),
		metric.WithUnit("s"),
	)
	executions, _ := meter.Int64Counter( //nolint:errcheck // noop fallback guaranteed by OTel API contract
		"mediator.message.executions",
		metric.WithDescription("Total number of message executions"),
		metric.WithUnit("{execution}"),
	)

	return func(ctx context.Context, inv *Invocation, next Handler) (any, error) {
		start := time.Now()
		out, err := next(ctx)
		elapsed := time.Since(start).Seconds()

		status := "ok"
		if err != nil {
			status = "error"
		}
		attrs := metric.WithAttributes(
			attribute.String("kind", string(inv.Message.Kind())),
			attribute.String("type", inv.Message.MessageType()),
			attribute.String("status", status),
		)
		duration.Record(ctx, elapsed, attrs)
		executions.Add(ctx, 1, attrs)
		return out, err
	}
}
