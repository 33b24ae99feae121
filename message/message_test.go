package message_test

import (
	"testing"
	"time"

	"github.com/xraph/mediator/id"
	"github.com/xraph/mediator/message"
)

func TestNewQuery_Options(t *testing.T) {
	q := message.NewQuery("GetOrder", "GetOrder:o1", nil,
		message.WithCacheTime(5*time.Second),
		message.WithStaleTime(2*time.Second),
		message.WithQueryMetadata(message.Metadata{message.MetaTraceID: "t1"}),
	)

	if q.ID.Prefix() != id.PrefixQuery {
		t.Errorf("prefix = %q, want %q", q.ID.Prefix(), id.PrefixQuery)
	}
	if q.Kind() != message.KindQuery {
		t.Errorf("Kind = %q", q.Kind())
	}
	if !q.Cacheable() {
		t.Error("expected cacheable query")
	}
	if got := q.EffectiveStaleTime(); got != 2*time.Second {
		t.Errorf("EffectiveStaleTime = %v, want 2s", got)
	}
	if q.MessageMetadata().Get(message.MetaTraceID) != "t1" {
		t.Error("metadata not attached")
	}
}

func TestQuery_EffectiveStaleTime(t *testing.T) {
	tests := []struct {
		name  string
		cache time.Duration
		stale time.Duration
		want  time.Duration
	}{
		{"unset", 5 * time.Second, 0, 5 * time.Second},
		{"within", 5 * time.Second, 2 * time.Second, 2 * time.Second},
		{"equal", 5 * time.Second, 5 * time.Second, 5 * time.Second},
		{"beyond", 5 * time.Second, 9 * time.Second, 5 * time.Second},
		{"negative", 5 * time.Second, -time.Second, 5 * time.Second},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &message.Query{CacheTime: tt.cache, StaleTime: tt.stale}
			if got := q.EffectiveStaleTime(); got != tt.want {
				t.Errorf("EffectiveStaleTime = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestQuery_ZeroCacheTimeNotCacheable(t *testing.T) {
	q := message.NewQuery("GetOrder", "GetOrder:o1", nil)
	if q.Cacheable() {
		t.Fatal("zero CacheTime must disable caching")
	}
}

func TestMetadata_CloneIsIndependent(t *testing.T) {
	md := message.Metadata{"a": "1"}
	c := md.Clone()
	c["a"] = "2"
	if md.Get("a") != "1" {
		t.Error("clone shares storage with original")
	}
	var nilMD message.Metadata
	if nilMD.Get("x") != "" || nilMD.Clone() != nil {
		t.Error("nil metadata should behave as empty")
	}
}

func TestKinds(t *testing.T) {
	var msgs = []message.Message{
		message.NewCommand("CreateOrder", nil),
		message.NewQuery("GetOrder", "k", nil),
		message.NewEvent("OrderCreated", nil),
	}
	want := []message.Kind{message.KindCommand, message.KindQuery, message.KindEvent}
	for i, m := range msgs {
		if m.Kind() != want[i] {
			t.Errorf("msgs[%d].Kind() = %q, want %q", i, m.Kind(), want[i])
		}
		if m.MessageID().IsNil() {
			t.Errorf("msgs[%d] has nil ID", i)
		}
	}
}
