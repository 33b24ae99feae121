package middleware

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/xraph/mediator/message"
)

// tracerName is the instrumentation scope name for mediator tracing.
const tracerName = "github.com/xraph/mediator"

// Tracing returns middleware that wraps execution in an OpenTelemetry span.
// If no TracerProvider is configured globally, the default noop tracer is
// used and this middleware becomes a pass-through.
//
// Span attributes: mediator.message.id, mediator.message.type,
// mediator.message.kind, mediator.correlation_id, mediator.attempt and,
// for event deliveries, mediator.subscriber.
func Tracing() Middleware {
	return TracingWithTracer(otel.Tracer(tracerName))
}

// TracingWithTracer returns tracing middleware using the provided tracer.
func TracingWithTracer(tracer trace.Tracer) Middleware {
	return func(ctx context.Context, inv *Invocation, next Handler) (any, error) {
		attrs := []attribute.KeyValue{
			attribute.String("mediator.message.id", inv.Message.MessageID().String()),
			attribute.String("mediator.message.type", inv.Message.MessageType()),
			attribute.String("mediator.message.kind", string(inv.Message.Kind())),
			attribute.String("mediator.correlation_id", inv.Metadata.Get(message.MetaCorrelationID)),
			attribute.Int("mediator.attempt", inv.Attempt),
		}
		if inv.Subscriber != "" {
			attrs = append(attrs, attribute.String("mediator.subscriber", inv.Subscriber))
		}

		ctx, span := tracer.Start(ctx, "mediator."+string(inv.Message.Kind())+".execute",
			trace.WithAttributes(attrs...),
			trace.WithSpanKind(trace.SpanKindInternal),
		)
		defer span.End()

		out, err := next(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return out, err
	}
}
