// Package store defines the aggregate persistence interface.
//
// The query cache and the dead letter queue each define their own store
// contract ([cache.Store] and [dlq.Store]). The composite [Store] joins
// them so one backend can be handed to the engine with a single option.
//
// # Available Backends
//
//   - store/memory — in-memory store with a cron-scheduled sweeper
//   - store/redis — Redis backend (JSON or MessagePack cache entries)
//
// # Usage
//
//	import redisstore "github.com/xraph/mediator/store/redis"
//
//	client := goredis.NewClient(&goredis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//
//	eng, err := engine.Build(mediator.DefaultConfig(), engine.WithStore(s))
package store
