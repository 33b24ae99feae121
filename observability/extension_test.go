package observability_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/ext"
	"github.com/xraph/mediator/id"
	"github.com/xraph/mediator/message"
	"github.com/xraph/mediator/observability"
)

func newTestExtension() (*observability.MetricsExtension, *sdkmetric.ManualReader) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	return observability.NewMetricsExtensionWithMeter(mp.Meter("test")), reader
}

// counterTotal sums every data point of the named Int64 counter.
func counterTotal(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("failed to collect metrics: %v", err)
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("%s: expected Sum[int64], got %T", name, m.Data)
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			return total
		}
	}
	return 0
}

func newTestEvent() *message.Event {
	return &message.Event{ID: id.NewEventID(), Type: "order.placed"}
}

func TestMetricsExtension_Name(t *testing.T) {
	e, _ := newTestExtension()
	if e.Name() != "observability-metrics" {
		t.Errorf("expected name %q, got %q", "observability-metrics", e.Name())
	}
}

func TestMetricsExtension_QueryAttributes(t *testing.T) {
	e, reader := newTestExtension()
	q := &message.Query{ID: id.NewQueryID(), Type: "user.get"}
	res := mediator.Result{Success: true, FromCache: true, IsStale: true}

	if err := e.OnQueryExecuted(context.Background(), q, res, time.Millisecond); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collect: %v", err)
	}
	sum := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	attrs := sum.DataPoints[0].Attributes
	if v, ok := attrs.Value(attribute.Key("stale")); !ok || !v.AsBool() {
		t.Errorf("stale attribute = %v, %v", v, ok)
	}
	if v, _ := attrs.Value(attribute.Key("type")); v.AsString() != "user.get" {
		t.Errorf("type attribute = %q", v.AsString())
	}
}

func TestMetricsExtension_CacheRefreshStatus(t *testing.T) {
	e, reader := newTestExtension()
	ctx := context.Background()

	_ = e.OnCacheRefreshed(ctx, "k", 0, nil)
	_ = e.OnCacheRefreshed(ctx, "k", 1, errors.New("boom"))

	if got := counterTotal(t, reader, "mediator.cache.refreshes"); got != 2 {
		t.Errorf("refreshes = %d, want 2", got)
	}
}

func TestMetricsExtension_ViaRegistry(t *testing.T) {
	e, reader := newTestExtension()

	reg := ext.NewRegistry(slog.Default())
	reg.Register(e)

	ctx := context.Background()
	cmd := &message.Command{ID: id.NewCommandID(), Type: "user.create"}
	q := &message.Query{ID: id.NewQueryID(), Type: "user.get"}
	evt := newTestEvent()

	reg.EmitCommandExecuted(ctx, cmd, mediator.OK(nil), time.Millisecond)
	reg.EmitQueryExecuted(ctx, q, mediator.OK(1), time.Millisecond)
	reg.EmitCacheHit(ctx, "user:1", false)
	reg.EmitCacheMiss(ctx, "user:2")
	reg.EmitCacheRefreshed(ctx, "user:1", 0, nil)
	reg.EmitEventDelivered(ctx, evt, "mailer", time.Millisecond)
	reg.EmitEventDeadLettered(ctx, evt, "billing", errors.New("dead"))
	reg.EmitShutdown(ctx)

	for _, name := range []string{
		"mediator.command.executed",
		"mediator.query.executed",
		"mediator.cache.hits",
		"mediator.cache.misses",
		"mediator.cache.refreshes",
		"mediator.event.delivered",
		"mediator.event.dead_lettered",
	} {
		if got := counterTotal(t, reader, name); got != 1 {
			t.Errorf("%s: want 1, got %d", name, got)
		}
	}
}
