// Package redis implements the query cache store and the dead letter queue
// store on Redis.
//
// Cache entries are single string keys written with a PX expiry equal to
// the retention ttl handed down by the cache. The cached value travels in
// a small envelope encoded by a Codec (JSON by default, MessagePack on
// request); the query result itself is kept as raw JSON so callers decode
// it with mediator.As. Dead letters are Redis Hashes indexed by a Sorted
// Set scored on their failure time.
//
// Usage:
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redis.New(client, redis.WithCodec(redis.MsgpackCodec{}))
//	if err := s.Ping(ctx); err != nil { ... }
package redis
