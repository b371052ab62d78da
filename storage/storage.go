package storage

import "time"

// Store defines the operations the connection layer runs against the
// keyspace
type Store interface {
	// View calls fn with the live value for key. The slice aliases shard
	// memory: fn must copy what it needs and must not block.
	View(key []byte, fn func(value []byte)) (bool, error)
	Get(key []byte) ([]byte, bool, error)
	Put(key, value []byte, ttl time.Duration) error
	Delete(key []byte) (bool, error)

	// Stats assembles a snapshot from independently read shard counters
	Stats() Stats

	Close() error
}

// Counters holds the per-shard event counts and gauges
type Counters struct {
	Keys  int64
	Bytes int64

	Hits        uint64
	Misses      uint64
	Puts        uint64
	Deletes     uint64
	Evictions   uint64
	Expired     uint64
	Rejected    uint64
	StaleRefs   uint64
	Compactions uint64
}

func (c *Counters) add(o Counters) {
	c.Keys += o.Keys
	c.Bytes += o.Bytes
	c.Hits += o.Hits
	c.Misses += o.Misses
	c.Puts += o.Puts
	c.Deletes += o.Deletes
	c.Evictions += o.Evictions
	c.Expired += o.Expired
	c.Rejected += o.Rejected
	c.StaleRefs += o.StaleRefs
	c.Compactions += o.Compactions
}

// HitRate returns hits / (hits + misses), or 0 before any lookup
func (c Counters) HitRate() float64 {
	total := c.Hits + c.Misses
	if total == 0 {
		return 0
	}
	return float64(c.Hits) / float64(total)
}

// ShardStats is the snapshot of one shard
type ShardStats struct {
	ID        int
	Capacity  int64
	// Fragments is the number of disjoint free regions in the arena
	Fragments int64
	Counters
}

// Stats is an approximately consistent snapshot across all shards: each
// shard is read on its own, so concurrent writes may land between reads.
type Stats struct {
	Hasher   string
	Policy   string
	Capacity int64
	Total    Counters
	Shards   []ShardStats
}

// CleanupConfig holds configuration for incremental cleanup
type CleanupConfig struct {
	// SampleSize is the number of keys to sample per round
	SampleSize int
	// MaxRounds is the maximum number of rounds per cleanup cycle
	MaxRounds int
	// BatchSize is the number of keys to delete in each batch
	BatchSize int
	// ExpiredThreshold continues cleanup if this percentage of sampled keys are expired
	ExpiredThreshold float64
}

// CleanupConfigDefault provides balanced performance for most use cases
var CleanupConfigDefault = CleanupConfig{
	SampleSize:       20,
	MaxRounds:        4,
	BatchSize:        10,
	ExpiredThreshold: 0.25,
}

// CleanupConfigLowLatency minimizes time spent holding shard locks
var CleanupConfigLowLatency = CleanupConfig{
	SampleSize:       15,
	MaxRounds:        3,
	BatchSize:        8,
	ExpiredThreshold: 0.4,
}

// CleanupConfigAggressive reclaims expired entries faster at the cost of
// more lock traffic
var CleanupConfigAggressive = CleanupConfig{
	SampleSize:       50,
	MaxRounds:        8,
	BatchSize:        25,
	ExpiredThreshold: 0.15,
}

func (c CleanupConfig) normalized() CleanupConfig {
	if c.SampleSize <= 0 {
		c.SampleSize = CleanupConfigDefault.SampleSize
	}
	if c.MaxRounds <= 0 {
		c.MaxRounds = CleanupConfigDefault.MaxRounds
	}
	if c.BatchSize <= 0 {
		c.BatchSize = CleanupConfigDefault.BatchSize
	}
	if c.ExpiredThreshold <= 0 {
		c.ExpiredThreshold = CleanupConfigDefault.ExpiredThreshold
	}
	return c
}
