// Package arenacache provides a sharded in-memory key-value cache served
// over TCP.
//
// Keys are routed by a stable hash to a fixed set of shards. Each shard
// stores values in a single pre-allocated arena, guarded by one
// reader/writer lock, so the data path does not allocate per entry and the
// garbage collector sees a handful of large buffers instead of millions of
// small ones.
//
// Clients speak either a compact binary framing or a text framing
// compatible with RESP clients; the framing is detected from the first
// byte of each connection.
//
// Basic usage:
//
//	cache, err := arenacache.New(
//		arenacache.WithListenAddr(":7379"),
//		arenacache.WithShardCount(16),
//		arenacache.WithShardCapacity(64<<20),
//		arenacache.WithEvictionPolicy("sampled-lru", 5),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer cache.Close()
//
//	if err := cache.Start(context.Background()); err != nil {
//		log.Fatal(err)
//	}
//
// The library supports:
//
//   - Binary and RESP-compatible text framing with pipelining
//   - Per-shard arenas with sampled LRU eviction or reject-on-full
//   - Per-key TTLs with lazy and background expiry
//   - Prometheus metrics and periodic stats snapshots
//   - Lua configuration files (see the config package)
//
// For a runnable program, see examples/basic and cmd/arenacache.
package arenacache
