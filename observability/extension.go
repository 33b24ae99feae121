package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/ext"
	"github.com/xraph/mediator/message"
)

// Compile-time interface checks.
var (
	_ ext.Extension         = (*MetricsExtension)(nil)
	_ ext.CommandExecuted   = (*MetricsExtension)(nil)
	_ ext.QueryExecuted     = (*MetricsExtension)(nil)
	_ ext.EventDelivered    = (*MetricsExtension)(nil)
	_ ext.EventDeadLettered = (*MetricsExtension)(nil)
	_ ext.CacheHit          = (*MetricsExtension)(nil)
	_ ext.CacheMiss         = (*MetricsExtension)(nil)
	_ ext.CacheRefreshed    = (*MetricsExtension)(nil)
)

const meterName = "github.com/xraph/mediator/observability"

// MetricsExtension records system-wide lifecycle metrics through an OTel
// meter. Register it as a mediator extension to track dispatch counts,
// cache effectiveness and dead-letter rates.
//
// Instruments:
//   - mediator.command.executed, mediator.query.executed (Int64Counter):
//     attributes type, code (empty on success); queries add from_cache, stale
//   - mediator.cache.hits (Int64Counter): attribute stale
//   - mediator.cache.misses (Int64Counter)
//   - mediator.cache.refreshes (Int64Counter): attribute status ("ok" or "error")
//   - mediator.event.delivered, mediator.event.dead_lettered (Int64Counter):
//     attributes type, subscriber
type MetricsExtension struct {
	CommandExecuted   metric.Int64Counter
	QueryExecuted     metric.Int64Counter
	CacheHits         metric.Int64Counter
	CacheMisses       metric.Int64Counter
	CacheRefreshes    metric.Int64Counter
	EventDelivered    metric.Int64Counter
	EventDeadLettered metric.Int64Counter
}

// NewMetricsExtension creates a MetricsExtension on the global
// MeterProvider.
func NewMetricsExtension() *MetricsExtension {
	return NewMetricsExtensionWithMeter(otel.Meter(meterName))
}

// NewMetricsExtensionWithMeter creates a MetricsExtension with the
// provided meter. Instruments that fail to register fall back to noops.
func NewMetricsExtensionWithMeter(meter metric.Meter) *MetricsExtension {
	counter := func(name, desc string) metric.Int64Counter {
		c, _ := meter.Int64Counter(name, metric.WithDescription(desc)) //nolint:errcheck // noop fallback guaranteed by OTel API contract
		return c
	}
	return &MetricsExtension{
		CommandExecuted:   counter("mediator.command.executed", "Commands executed"),
		QueryExecuted:     counter("mediator.query.executed", "Queries executed"),
		CacheHits:         counter("mediator.cache.hits", "Queries answered from the cache"),
		CacheMisses:       counter("mediator.cache.misses", "Queries that ran their handler"),
		CacheRefreshes:    counter("mediator.cache.refreshes", "Background refresh attempts"),
		EventDelivered:    counter("mediator.event.delivered", "Successful event deliveries"),
		EventDeadLettered: counter("mediator.event.dead_lettered", "Event deliveries moved to the DLQ"),
	}
}

// Name implements ext.Extension.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// ── Dispatch hooks ──────────────────────────────────

// OnCommandExecuted implements ext.CommandExecuted.
func (m *MetricsExtension) OnCommandExecuted(ctx context.Context, cmd *message.Command, res mediator.Result, _ time.Duration) error {
	m.CommandExecuted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", cmd.Type),
		attribute.String("code", string(res.ErrorCode)),
	))
	return nil
}

// OnQueryExecuted implements ext.QueryExecuted.
func (m *MetricsExtension) OnQueryExecuted(ctx context.Context, q *message.Query, res mediator.Result, _ time.Duration) error {
	m.QueryExecuted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", q.Type),
		attribute.String("code", string(res.ErrorCode)),
		attribute.Bool("from_cache", res.FromCache),
		attribute.Bool("stale", res.IsStale),
	))
	return nil
}

// OnEventDelivered implements ext.EventDelivered.
func (m *MetricsExtension) OnEventDelivered(ctx context.Context, evt *message.Event, subscriber string, _ time.Duration) error {
	m.EventDelivered.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", evt.Type),
		attribute.String("subscriber", subscriber),
	))
	return nil
}

// OnEventDeadLettered implements ext.EventDeadLettered.
func (m *MetricsExtension) OnEventDeadLettered(ctx context.Context, evt *message.Event, subscriber string, _ error) error {
	m.EventDeadLettered.Add(ctx, 1, metric.WithAttributes(
		attribute.String("type", evt.Type),
		attribute.String("subscriber", subscriber),
	))
	return nil
}

// ── Cache hooks ─────────────────────────────────────

// OnCacheHit implements ext.CacheHit.
func (m *MetricsExtension) OnCacheHit(ctx context.Context, _ string, stale bool) error {
	m.CacheHits.Add(ctx, 1, metric.WithAttributes(attribute.Bool("stale", stale)))
	return nil
}

// OnCacheMiss implements ext.CacheMiss.
func (m *MetricsExtension) OnCacheMiss(ctx context.Context, _ string) error {
	m.CacheMisses.Add(ctx, 1)
	return nil
}

// OnCacheRefreshed implements ext.CacheRefreshed.
func (m *MetricsExtension) OnCacheRefreshed(ctx context.Context, _ string, _ int, err error) error {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.CacheRefreshes.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
	return nil
}
