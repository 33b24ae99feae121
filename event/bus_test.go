package event_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/dlq"
	"github.com/xraph/mediator/event"
	"github.com/xraph/mediator/message"
	"github.com/xraph/mediator/middleware"
	"github.com/xraph/mediator/registry"
	"github.com/xraph/mediator/store/memory"
)

type orderCreated struct {
	OrderID string `json:"order_id"`
}

func ok(name string, hits *atomic.Int32) registry.EventHandler {
	return registry.Subscriber(name, func(context.Context, *message.Event) error {
		hits.Add(1)
		return nil
	})
}

func TestPublishSync_FailureIsolation(t *testing.T) {
	reg := registry.New()
	var hits atomic.Int32
	reg.Subscribe("OrderCreated", ok("first", &hits))
	reg.Subscribe("OrderCreated", registry.Subscriber("second", func(context.Context, *message.Event) error {
		return errors.New("smtp down")
	}))
	reg.Subscribe("OrderCreated", ok("third", &hits))

	store := memory.New()
	bus := event.New(reg, event.WithDLQ(dlq.NewService(store)))

	ds, err := bus.PublishSync(context.Background(), message.NewEvent("OrderCreated", orderCreated{OrderID: "o1"}))
	if err != nil {
		t.Fatal(err)
	}

	want := []struct {
		name   string
		status event.Status
	}{
		{"first", event.StatusHandled},
		{"second", event.StatusDeadLettered},
		{"third", event.StatusHandled},
	}
	if len(ds) != len(want) {
		t.Fatalf("got %d deliveries, want %d", len(ds), len(want))
	}
	for i, w := range want {
		if ds[i].Subscriber != w.name || ds[i].Status != w.status {
			t.Errorf("delivery %d = %s/%s, want %s/%s", i, ds[i].Subscriber, ds[i].Status, w.name, w.status)
		}
	}
	if hits.Load() != 2 {
		t.Fatalf("healthy subscribers ran %d times, want 2", hits.Load())
	}

	entries, err := store.ListDLQ(context.Background(), dlq.ListOpts{})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("dlq entries = %d, want 1", len(entries))
	}
	e := entries[0]
	if e.EventType != "OrderCreated" || e.Subscriber != "second" || e.Error != "smtp down" {
		t.Errorf("unexpected entry: %+v", e)
	}
	if string(e.Payload) != `{"order_id":"o1"}` {
		t.Errorf("payload = %s", e.Payload)
	}
}

func TestPublishSync_PanicIsDeadLettered(t *testing.T) {
	reg := registry.New()
	var hits atomic.Int32
	reg.Subscribe("OrderCreated", registry.Subscriber("panicky", func(context.Context, *message.Event) error {
		panic("boom")
	}))
	reg.Subscribe("OrderCreated", ok("steady", &hits))

	ds, _ := event.New(reg).PublishSync(context.Background(), message.NewEvent("OrderCreated", nil))

	if ds[0].Status != event.StatusDeadLettered || !errors.Is(ds[0].Err, mediator.ErrExecution) {
		t.Errorf("panicking subscriber: %+v", ds[0])
	}
	if ds[1].Status != event.StatusHandled || hits.Load() != 1 {
		t.Errorf("steady subscriber: %+v", ds[1])
	}
}

func TestPublish_NoSubscribers(t *testing.T) {
	bus := event.New(registry.New())
	if err := bus.Publish(context.Background(), message.NewEvent("Nobody", nil)); err != nil {
		t.Fatalf("publishing to nobody: %v", err)
	}
	ds, err := bus.PublishSync(context.Background(), message.NewEvent("Nobody", nil))
	if err != nil || len(ds) != 0 {
		t.Fatalf("got %v, %v", ds, err)
	}
}

func TestPublish_AsyncDeliveryAndStop(t *testing.T) {
	reg := registry.New()
	var hits atomic.Int32
	for _, n := range []string{"a", "b", "c"} {
		reg.Subscribe("OrderCreated", ok(n, &hits))
	}
	bus := event.New(reg)

	ctx, cancel := context.WithCancel(context.Background())
	if err := bus.Publish(ctx, message.NewEvent("OrderCreated", nil)); err != nil {
		t.Fatal(err)
	}
	cancel()

	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
	defer stopCancel()
	if err := bus.Stop(stopCtx); err != nil {
		t.Fatal(err)
	}
	if hits.Load() != 3 {
		t.Fatalf("delivered %d, want 3", hits.Load())
	}
	if err := bus.Publish(context.Background(), message.NewEvent("OrderCreated", nil)); !errors.Is(err, mediator.ErrBusClosed) {
		t.Fatalf("Publish after Stop = %v, want ErrBusClosed", err)
	}
}

func TestPublish_SnapshotAtPublishTime(t *testing.T) {
	reg := registry.New()
	gate := make(chan struct{})
	var late atomic.Int32
	reg.Subscribe("OrderCreated", registry.Subscriber("slow", func(context.Context, *message.Event) error {
		<-gate
		return nil
	}))
	bus := event.New(reg)

	if err := bus.Publish(context.Background(), message.NewEvent("OrderCreated", nil)); err != nil {
		t.Fatal(err)
	}
	reg.Subscribe("OrderCreated", ok("late", &late))
	close(gate)

	_ = bus.Stop(context.Background())
	if late.Load() != 0 {
		t.Fatal("subscriber registered after publish received the event")
	}
}

func TestPublish_Validation(t *testing.T) {
	bus := event.New(registry.New())
	if err := bus.Publish(context.Background(), nil); !errors.Is(err, mediator.ErrNilMessage) {
		t.Errorf("nil event: %v", err)
	}
	if err := bus.Publish(context.Background(), message.NewEvent("", nil)); !errors.Is(err, mediator.ErrInvalidType) {
		t.Errorf("empty type: %v", err)
	}
}

func TestPublishSync_ConcurrencyLimit(t *testing.T) {
	reg := registry.New()
	var running, peak atomic.Int32
	for _, n := range []string{"a", "b", "c", "d", "e", "f"} {
		reg.Subscribe("OrderCreated", registry.Subscriber(n, func(context.Context, *message.Event) error {
			cur := running.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			running.Add(-1)
			return nil
		}))
	}

	bus := event.New(reg, event.WithConcurrency(2))
	if _, err := bus.PublishSync(context.Background(), message.NewEvent("OrderCreated", nil)); err != nil {
		t.Fatal(err)
	}
	if peak.Load() > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", peak.Load())
	}
}

func TestPublishSync_PipelineSeesSubscriber(t *testing.T) {
	reg := registry.New()
	var hits atomic.Int32
	reg.Subscribe("OrderCreated", ok("mailer", &hits))

	var mu sync.Mutex
	var seen []string
	record := func(ctx context.Context, inv *middleware.Invocation, next middleware.Handler) (any, error) {
		mu.Lock()
		seen = append(seen, inv.Subscriber+"|"+inv.Metadata.Get(message.MetaCorrelationID))
		mu.Unlock()
		return next(ctx)
	}
	bus := event.New(reg, event.WithMiddleware(record))

	evt := message.NewEvent("OrderCreated", nil)
	evt.Metadata = message.Metadata{message.MetaCorrelationID: "corr-9"}
	_, _ = bus.PublishSync(context.Background(), evt)

	if len(seen) != 1 || seen[0] != "mailer|corr-9" {
		t.Fatalf("seen = %v", seen)
	}
}

func TestRedeliver_ReplaysDeadLetter(t *testing.T) {
	reg := registry.New()
	var fail atomic.Bool
	fail.Store(true)
	var got atomic.Value
	reg.Subscribe("OrderCreated", registry.EventFunc("mailer", func(_ context.Context, p orderCreated) error {
		if fail.Load() {
			return errors.New("smtp down")
		}
		got.Store(p.OrderID)
		return nil
	}))

	store := memory.New()
	svc := dlq.NewService(store)
	bus := event.New(reg, event.WithDLQ(svc))
	ctx := context.Background()

	_, _ = bus.PublishSync(ctx, message.NewEvent("OrderCreated", orderCreated{OrderID: "o7"}))
	entries, _ := svc.List(ctx, dlq.ListOpts{Subscriber: "mailer"})
	if len(entries) != 1 {
		t.Fatalf("dlq entries = %d, want 1", len(entries))
	}

	fail.Store(false)
	if err := svc.Replay(ctx, entries[0].ID, bus.Redeliver); err != nil {
		t.Fatalf("Replay: %v", err)
	}
	if got.Load() != "o7" {
		t.Fatalf("replayed payload = %v, want o7", got.Load())
	}
	e, _ := svc.Get(ctx, entries[0].ID)
	if e.ReplayedAt == nil {
		t.Fatal("entry not marked replayed")
	}
}

func TestRedeliver_UnknownSubscriber(t *testing.T) {
	bus := event.New(registry.New())
	err := bus.Redeliver(context.Background(), message.NewEvent("OrderCreated", nil), "ghost")
	if !errors.Is(err, mediator.ErrNoSubscriber) {
		t.Fatalf("expected ErrNoSubscriber, got %v", err)
	}
}
