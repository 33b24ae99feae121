package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/mediator"
	"github.com/xraph/mediator/dlq"
	"github.com/xraph/mediator/id"
)

// PushDLQ adds a failed delivery to the dead letter queue.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	fields, err := dlqToMap(entry)
	if err != nil {
		return fmt.Errorf("mediator/redis: push dlq: %w", err)
	}

	eID := entry.ID.String()
	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, s.dlqKey(eID), fields)
	pipe.ZAdd(ctx, s.dlqIndexKey(), goredis.Z{Score: score(entry.FailedAt), Member: eID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("mediator/redis: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns DLQ entries matching the given options, oldest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	ids, err := s.client.ZRange(ctx, s.dlqIndexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("mediator/redis: list dlq: %w", err)
	}

	entries := make([]*dlq.Entry, 0, len(ids))
	for _, eID := range ids {
		vals, getErr := s.client.HGetAll(ctx, s.dlqKey(eID)).Result()
		if getErr != nil {
			return nil, fmt.Errorf("mediator/redis: list dlq %s: %w", eID, getErr)
		}
		if len(vals) == 0 {
			continue
		}
		e, convErr := mapToDLQ(vals)
		if convErr != nil {
			s.logger.Warn("skipping unreadable dlq entry",
				slog.String("dlq_id", eID),
				slog.String("error", convErr.Error()),
			)
			continue
		}
		if !opts.Match(e) {
			continue
		}
		entries = append(entries, e)
	}

	if opts.Offset > 0 {
		if opts.Offset >= len(entries) {
			return nil, nil
		}
		entries = entries[opts.Offset:]
	}
	if opts.Limit > 0 && opts.Limit < len(entries) {
		entries = entries[:opts.Limit]
	}
	return entries, nil
}

// GetDLQ retrieves a DLQ entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	vals, err := s.client.HGetAll(ctx, s.dlqKey(entryID.String())).Result()
	if err != nil {
		return nil, fmt.Errorf("mediator/redis: get dlq: %w", err)
	}
	if len(vals) == 0 {
		return nil, mediator.ErrDLQNotFound
	}
	return mapToDLQ(vals)
}

// ReplayDLQ marks a DLQ entry as replayed.
func (s *Store) ReplayDLQ(ctx context.Context, entryID id.DLQID) error {
	key := s.dlqKey(entryID.String())
	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("mediator/redis: replay dlq exists: %w", err)
	}
	if exists == 0 {
		return mediator.ErrDLQNotFound
	}

	err = s.client.HSet(ctx, key,
		"replayed_at", time.Now().UTC().Format(time.RFC3339Nano),
	).Err()
	if err != nil {
		return fmt.Errorf("mediator/redis: replay dlq: %w", err)
	}
	return nil
}

// PurgeDLQ removes DLQ entries with FailedAt before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.client.ZRangeByScore(ctx, s.dlqIndexKey(), &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixMicro(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("mediator/redis: purge dlq range: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, eID := range ids {
		keys[i] = s.dlqKey(eID)
		members[i] = eID
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	removed := pipe.ZRem(ctx, s.dlqIndexKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("mediator/redis: purge dlq del: %w", err)
	}
	return removed.Val(), nil
}

// CountDLQ returns the total number of entries in the dead letter queue.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	count, err := s.client.ZCard(ctx, s.dlqIndexKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("mediator/redis: count dlq: %w", err)
	}
	return count, nil
}

// ── helpers ──

func score(t time.Time) float64 { return float64(t.UnixMicro()) }

func dlqToMap(e *dlq.Entry) (map[string]any, error) {
	meta, err := json.Marshal(e.Metadata)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	m := map[string]any{
		"id":          e.ID.String(),
		"event_id":    e.EventID.String(),
		"event_type":  e.EventType,
		"subscriber":  e.Subscriber,
		"payload":     string(e.Payload),
		"metadata":    string(meta),
		"error":       e.Error,
		"occurred_at": e.OccurredAt.Format(time.RFC3339Nano),
		"failed_at":   e.FailedAt.Format(time.RFC3339Nano),
		"created_at":  e.CreatedAt.Format(time.RFC3339Nano),
	}
	if e.ReplayedAt != nil {
		m["replayed_at"] = e.ReplayedAt.Format(time.RFC3339Nano)
	}
	return m, nil
}

func mapToDLQ(m map[string]string) (*dlq.Entry, error) {
	eID, err := id.ParseDLQID(m["id"])
	if err != nil {
		return nil, fmt.Errorf("mediator/redis: parse dlq id: %w", err)
	}
	evtID, _ := id.ParseEventID(m["event_id"])                      //nolint:errcheck // best-effort parse from trusted Redis data
	occurredAt, _ := time.Parse(time.RFC3339Nano, m["occurred_at"]) //nolint:errcheck // best-effort parse from trusted Redis data
	failedAt, _ := time.Parse(time.RFC3339Nano, m["failed_at"])     //nolint:errcheck // best-effort parse from trusted Redis data
	createdAt, _ := time.Parse(time.RFC3339Nano, m["created_at"])   //nolint:errcheck // best-effort parse from trusted Redis data

	e := &dlq.Entry{
		ID:         eID,
		EventID:    evtID,
		EventType:  m["event_type"],
		Subscriber: m["subscriber"],
		Error:      m["error"],
		OccurredAt: occurredAt,
		FailedAt:   failedAt,
		CreatedAt:  createdAt,
	}
	if p := m["payload"]; p != "" {
		e.Payload = json.RawMessage(p)
	}
	if md := m["metadata"]; md != "" && md != "null" {
		if err := json.Unmarshal([]byte(md), &e.Metadata); err != nil {
			return nil, fmt.Errorf("mediator/redis: parse dlq metadata: %w", err)
		}
	}
	if v := m["replayed_at"]; v != "" {
		t, _ := time.Parse(time.RFC3339Nano, v) //nolint:errcheck // best-effort parse from trusted Redis data
		e.ReplayedAt = &t
	}
	return e, nil
}
