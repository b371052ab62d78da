// Package storage implements the sharded keyspace behind the cache server.
//
// Each Shard owns a map from key to entry and a fixed-size Arena holding
// the value bytes. Entries refer to their bytes through a SpanRef whose
// generation is checked on every read, so a reference that survived a
// free or a compaction is detected instead of returning foreign data.
//
// Basic usage:
//
//	m, err := storage.NewManager(
//		storage.WithShardCount(16),
//		storage.WithShardCapacity(4<<20),
//		storage.WithEvictionPolicy(policy.SampledLRU{N: 5}),
//	)
//	err = m.Put([]byte("key"), []byte("value"), time.Minute)
//	value, found, err := m.Get([]byte("key"))
//
// The package supports:
//   - Routing by hash(key) mod shard count, with xxhash or FNV-1a
//   - Lazy expiry on access plus sampled background sweeps
//   - Reject or sampled-LRU behaviour when a shard is full
//   - Arena compaction when free space is fragmented
//   - Lock-free statistics snapshots from per-shard atomic counters
package storage
