package redis

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/xraph/mediator/cache"
)

// scanBatch is the COUNT hint passed to SCAN.
const scanBatch = 100

// Get returns the entry stored under key.
func (s *Store) Get(ctx context.Context, key string) (*cache.Entry, bool, error) {
	raw, err := s.client.Get(ctx, s.cacheKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("mediator/redis: get cache %q: %w", key, err)
	}

	env, err := s.codec.Decode(raw)
	if err != nil {
		return nil, false, fmt.Errorf("mediator/redis: decode cache %q (%s): %w", key, s.codec.Name(), err)
	}
	return env.entry(), true, nil
}

// Set writes entry under key with a PX expiry of ttl. A ttl <= 0 keeps the
// key until deleted.
func (s *Store) Set(ctx context.Context, key string, entry *cache.Entry, ttl time.Duration) error {
	env, err := toEnvelope(entry)
	if err != nil {
		return fmt.Errorf("mediator/redis: set cache %q: %w", key, err)
	}
	raw, err := s.codec.Encode(env)
	if err != nil {
		return fmt.Errorf("mediator/redis: encode cache %q (%s): %w", key, s.codec.Name(), err)
	}

	if ttl < 0 {
		ttl = 0
	}
	if err := s.client.Set(ctx, s.cacheKey(key), raw, ttl).Err(); err != nil {
		return fmt.Errorf("mediator/redis: set cache %q: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.cacheKey(key)).Err(); err != nil {
		return fmt.Errorf("mediator/redis: delete cache %q: %w", key, err)
	}
	return nil
}

// ClearPattern removes every cache key matching the glob pattern. Keys are
// found with SCAN MATCH and re-checked with path.Match, so the semantics
// equal the memory store's even where Redis globbing is looser.
func (s *Store) ClearPattern(ctx context.Context, pattern string) (int, error) {
	if _, err := path.Match(pattern, ""); err != nil {
		return 0, fmt.Errorf("mediator/redis: clear pattern %q: %w", pattern, err)
	}

	space := s.cacheKeyspace()
	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := s.client.Scan(ctx, cursor, space+pattern, scanBatch).Result()
		if err != nil {
			return removed, fmt.Errorf("mediator/redis: scan %q: %w", pattern, err)
		}

		matched := keys[:0]
		for _, k := range keys {
			if ok, _ := path.Match(pattern, strings.TrimPrefix(k, space)); ok {
				matched = append(matched, k)
			}
		}
		if len(matched) > 0 {
			n, delErr := s.client.Del(ctx, matched...).Result()
			if delErr != nil {
				return removed, fmt.Errorf("mediator/redis: clear pattern %q: %w", pattern, delErr)
			}
			removed += int(n)
		}

		cursor = next
		if cursor == 0 {
			return removed, nil
		}
	}
}
