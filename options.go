package arenacache

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/raniellyferreira/arenacache/bufpool"
	"github.com/raniellyferreira/arenacache/logging"
	"github.com/raniellyferreira/arenacache/server"
	"github.com/raniellyferreira/arenacache/storage"
	"github.com/raniellyferreira/arenacache/storage/policy"
)

// config holds the configuration for a Cache
type config struct {
	// Listener
	listenAddr   string
	idleTimeout  time.Duration
	writeTimeout time.Duration
	maxConns     int

	// Keyspace
	shardCount    int
	shardCapacity int
	maxKeySize    int
	maxValueSize  int
	hashAlgorithm string

	// Eviction and expiry
	evictionPolicy   string
	evictionSamples  int
	maxEvictPerWrite int
	cleanup          storage.CleanupConfig
	cleanupInterval  time.Duration

	// Buffers
	bufferSize int
	poolSize   int

	// Observability
	logger        Logger
	registry      *prometheus.Registry
	metricsAddr   string
	statsSink     StatsSink
	statsInterval time.Duration
}

// defaultConfig returns a configuration with sensible defaults
func defaultConfig() *config {
	return &config{
		listenAddr:       ":7379",
		idleTimeout:      server.DefaultIdleTimeout,
		writeTimeout:     server.DefaultWriteTimeout,
		maxConns:         server.DefaultMaxConns,
		shardCount:       storage.DefaultShardCount,
		shardCapacity:    storage.DefaultShardCapacity,
		maxKeySize:       storage.DefaultMaxKeySize,
		maxValueSize:     storage.DefaultMaxValueSize,
		hashAlgorithm:    storage.HashAuto,
		evictionPolicy:   policy.NameReject,
		evictionSamples:  policy.DefaultSamples,
		maxEvictPerWrite: 64,
		cleanup:          storage.CleanupConfigDefault,
		cleanupInterval:  time.Second,
		bufferSize:       bufpool.DefaultBufferSize,
		poolSize:         bufpool.DefaultMaxIdle,
		logger:           logging.Std(logging.LevelInfo),
		statsInterval:    10 * time.Second,
	}
}

// validate checks cross-field constraints once all options are applied
func (c *config) validate() error {
	if c.maxValueSize > c.shardCapacity {
		return invalid("max value size", "%d exceeds shard capacity %d", c.maxValueSize, c.shardCapacity)
	}
	return nil
}

// Option represents a configuration option for a Cache
type Option func(*config) error

// WithListenAddr sets the TCP address clients connect to
//
// Example:
//
//	WithListenAddr(":7379")
//	WithListenAddr("127.0.0.1:0")
func WithListenAddr(addr string) Option {
	return func(c *config) error {
		if addr == "" {
			return invalid("listen address", "empty")
		}
		c.listenAddr = addr
		return nil
	}
}

// WithShardCount sets the number of shards. The count is rounded up to the
// next power of two.
func WithShardCount(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return invalid("shard count", "%d", n)
		}
		c.shardCount = n
		return nil
	}
}

// WithShardCapacity sets the arena size of each shard in bytes
func WithShardCapacity(bytes int) Option {
	return func(c *config) error {
		if bytes <= 0 {
			return invalid("shard capacity", "%d", bytes)
		}
		c.shardCapacity = bytes
		return nil
	}
}

// WithMaxKeySize sets the longest accepted key in bytes
func WithMaxKeySize(bytes int) Option {
	return func(c *config) error {
		if bytes <= 0 {
			return invalid("max key size", "%d", bytes)
		}
		c.maxKeySize = bytes
		return nil
	}
}

// WithMaxValueSize sets the longest accepted value in bytes. It may not
// exceed the shard capacity.
func WithMaxValueSize(bytes int) Option {
	return func(c *config) error {
		if bytes <= 0 {
			return invalid("max value size", "%d", bytes)
		}
		c.maxValueSize = bytes
		return nil
	}
}

// WithHashAlgorithm selects the routing hash: "auto", "xxhash" or "fnv1a"
func WithHashAlgorithm(name string) Option {
	return func(c *config) error {
		if _, err := storage.SelectHasher(name); err != nil {
			return &ConfigError{Field: "hash algorithm", Err: err}
		}
		c.hashAlgorithm = name
		return nil
	}
}

// WithEvictionPolicy selects what a full shard does with a new write:
// "reject" fails it, "sampled-lru" evicts the least recently used of
// samples random entries.
func WithEvictionPolicy(name string, samples int) Option {
	return func(c *config) error {
		if _, err := policy.Parse(name, samples); err != nil {
			return &ConfigError{Field: "eviction policy", Err: err}
		}
		c.evictionPolicy = name
		if samples > 0 {
			c.evictionSamples = samples
		}
		return nil
	}
}

// WithMaxEvictPerWrite bounds how many entries one write may evict
func WithMaxEvictPerWrite(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return invalid("max evict per write", "%d", n)
		}
		c.maxEvictPerWrite = n
		return nil
	}
}

// WithCleanup tunes the background expiry sweep. An interval <= 0 disables
// the sweep; expired entries are then reclaimed lazily.
func WithCleanup(cfg storage.CleanupConfig, interval time.Duration) Option {
	return func(c *config) error {
		c.cleanup = cfg
		c.cleanupInterval = interval
		return nil
	}
}

// WithBufferSize sets the capacity of pooled connection buffers
func WithBufferSize(bytes int) Option {
	return func(c *config) error {
		if bytes <= 0 {
			return invalid("buffer size", "%d", bytes)
		}
		c.bufferSize = bytes
		return nil
	}
}

// WithPoolSize sets how many idle buffers the pool retains
func WithPoolSize(n int) Option {
	return func(c *config) error {
		if n < 0 {
			return invalid("pool size", "%d", n)
		}
		c.poolSize = n
		return nil
	}
}

// WithIdleTimeout sets how long a connection may sit without completing a
// command before it is closed
func WithIdleTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout <= 0 {
			return invalid("idle timeout", "%v", timeout)
		}
		c.idleTimeout = timeout
		return nil
	}
}

// WithWriteTimeout sets the deadline for flushing responses
func WithWriteTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout <= 0 {
			return invalid("write timeout", "%v", timeout)
		}
		c.writeTimeout = timeout
		return nil
	}
}

// WithMaxConns bounds concurrent client connections. Further clients wait
// in the listen backlog.
func WithMaxConns(n int) Option {
	return func(c *config) error {
		if n <= 0 {
			return invalid("max connections", "%d", n)
		}
		c.maxConns = n
		return nil
	}
}

// WithLogger sets a custom logger
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		if logger == nil {
			logger = logging.Nop()
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics registers the cache collectors with reg
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) error {
		c.registry = reg
		return nil
	}
}

// WithMetricsAddr serves /metrics on addr. A private registry is created
// when WithMetrics is not given.
func WithMetricsAddr(addr string) Option {
	return func(c *config) error {
		c.metricsAddr = addr
		return nil
	}
}

// WithStatsSink delivers a snapshot to sink every interval
func WithStatsSink(sink StatsSink, interval time.Duration) Option {
	return func(c *config) error {
		if sink == nil {
			return invalid("stats sink", "nil")
		}
		if interval <= 0 {
			return invalid("stats interval", "%v", interval)
		}
		c.statsSink = sink
		c.statsInterval = interval
		return nil
	}
}
