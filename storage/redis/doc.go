// Package redis provides a Redis-backed implementation of storage.Store using
// go-redis. Keys follow the same <prefix><table>:<key> layout as storage/valkey,
// so the two backends can share a deployment.
//
//	store, err := redis.New(ctx, redis.Config{Addr: "localhost:6379"})
package redis
