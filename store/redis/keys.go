package redis

// Redis key naming conventions. Every key lives under the store prefix,
// "mediator:" unless WithKeyPrefix says otherwise.

const defaultPrefix = "mediator:"

// cacheKey returns the key of a cache entry: mediator:cache:{key}
func (s *Store) cacheKey(key string) string { return s.prefix + "cache:" + key }

// cacheKeyspace is the part stripped from scanned keys to recover the
// caller's cache key.
func (s *Store) cacheKeyspace() string { return s.prefix + "cache:" }

// dlqKey returns the key of a DLQ entry hash: mediator:dlq:{id}
func (s *Store) dlqKey(id string) string { return s.prefix + "dlq:" + id }

// dlqIndexKey is the Sorted Set of DLQ entry IDs scored by failure time
// in microseconds.
func (s *Store) dlqIndexKey() string { return s.prefix + "dlq_index" }
