package config

import (
	"time"

	"github.com/raniellyferreira/arenacache"
	"github.com/raniellyferreira/arenacache/logging"
	"github.com/raniellyferreira/arenacache/storage"
)

// defaultCleanupInterval applies when only cleanup tuning is configured
const defaultCleanupInterval = time.Second

// Options converts the assigned settings into cache options. Stats delivery
// is left to the caller, which owns the sink.
func (f *File) Options() ([]arenacache.Option, error) {
	var opts []arenacache.Option
	add := func(setting string, opt arenacache.Option) {
		if f.Has(setting) {
			opts = append(opts, opt)
		}
	}

	add("listen", arenacache.WithListenAddr(f.Listen))
	add("shard_count", arenacache.WithShardCount(f.ShardCount))
	add("shard_capacity", arenacache.WithShardCapacity(f.ShardCapacity))
	add("max_key_size", arenacache.WithMaxKeySize(f.MaxKeySize))
	add("max_value_size", arenacache.WithMaxValueSize(f.MaxValueSize))
	add("buffer_size", arenacache.WithBufferSize(f.BufferSize))
	add("pool_size", arenacache.WithPoolSize(f.PoolSize))
	add("idle_timeout", arenacache.WithIdleTimeout(f.IdleTimeout))
	add("write_timeout", arenacache.WithWriteTimeout(f.WriteTimeout))
	add("max_conns", arenacache.WithMaxConns(f.MaxConns))
	add("hash", arenacache.WithHashAlgorithm(f.Hash))
	add("max_evict_per_write", arenacache.WithMaxEvictPerWrite(f.MaxEvictPerWrite))
	add("metrics_addr", arenacache.WithMetricsAddr(f.MetricsAddr))

	if f.Has("eviction_policy") || f.Has("eviction_samples") {
		opts = append(opts, arenacache.WithEvictionPolicy(f.EvictionPolicy, f.EvictionSamples))
	}

	if f.Has("log_level") {
		level, err := logging.ParseLevel(f.LogLevel)
		if err != nil {
			return nil, err
		}
		opts = append(opts, arenacache.WithLogger(logging.Std(level)))
	}

	if cleanup, interval, ok := f.cleanup(); ok {
		opts = append(opts, arenacache.WithCleanup(cleanup, interval))
	}
	return opts, nil
}

// cleanup merges the cleanup_* settings over the defaults
func (f *File) cleanup() (storage.CleanupConfig, time.Duration, bool) {
	cfg := storage.CleanupConfigDefault
	interval := defaultCleanupInterval
	touched := false

	if f.Has("cleanup_interval") {
		interval, touched = f.CleanupInterval, true
	}
	if f.Has("cleanup_sample_size") {
		cfg.SampleSize, touched = f.CleanupSampleSize, true
	}
	if f.Has("cleanup_max_rounds") {
		cfg.MaxRounds, touched = f.CleanupMaxRounds, true
	}
	if f.Has("cleanup_batch_size") {
		cfg.BatchSize, touched = f.CleanupBatchSize, true
	}
	if f.Has("cleanup_expired_threshold") {
		cfg.ExpiredThreshold, touched = f.CleanupExpiredThreshold, true
	}
	return cfg, interval, touched
}
