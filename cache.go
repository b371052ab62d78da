package arenacache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/raniellyferreira/arenacache/bufpool"
	"github.com/raniellyferreira/arenacache/logging"
	"github.com/raniellyferreira/arenacache/metrics"
	"github.com/raniellyferreira/arenacache/protocol"
	"github.com/raniellyferreira/arenacache/server"
	"github.com/raniellyferreira/arenacache/storage"
	"github.com/raniellyferreira/arenacache/storage/policy"
)

// Cache is an in-memory key-value cache served over TCP
type Cache struct {
	config *config

	// Components
	store       *storage.Manager
	server      *server.Server
	metrics     *http.Server
	metricsAddr string

	// State
	mu      sync.Mutex
	started bool
	closed  bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New creates a Cache with the given options
//
// The keyspace is allocated immediately; the listener is opened by Start.
//
// Example:
//
//	cache, err := arenacache.New(
//		arenacache.WithListenAddr(":7379"),
//		arenacache.WithShardCount(16),
//		arenacache.WithShardCapacity(64<<20),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
func New(opts ...Option) (*Cache, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	hasher, err := storage.SelectHasher(cfg.hashAlgorithm)
	if err != nil {
		return nil, &ConfigError{Field: "hash algorithm", Err: err}
	}
	evict, err := policy.Parse(cfg.evictionPolicy, cfg.evictionSamples)
	if err != nil {
		return nil, &ConfigError{Field: "eviction policy", Err: err}
	}

	store, err := storage.NewManager(
		storage.WithShardCount(cfg.shardCount),
		storage.WithShardCapacity(cfg.shardCapacity),
		storage.WithLimits(cfg.maxKeySize, cfg.maxValueSize),
		storage.WithHasher(hasher),
		storage.WithEvictionPolicy(evict),
		storage.WithMaxEvictPerWrite(cfg.maxEvictPerWrite),
		storage.WithCleanup(cfg.cleanup, cfg.cleanupInterval),
		storage.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	if cfg.metricsAddr != "" && cfg.registry == nil {
		cfg.registry = prometheus.NewRegistry()
	}

	var observer server.Observer
	if cfg.registry != nil {
		obs, err := metrics.NewCommandObserver(cfg.registry)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("register command metrics: %w", err)
		}
		observer = obs
	}

	srv := server.New(store, server.Config{
		Addr: cfg.listenAddr,
		Limits: protocol.Limits{
			MaxKeySize:   cfg.maxKeySize,
			MaxValueSize: cfg.maxValueSize,
		},
		IdleTimeout:  cfg.idleTimeout,
		WriteTimeout: cfg.writeTimeout,
		MaxConns:     cfg.maxConns,
		Pool:         bufpool.New(cfg.bufferSize, cfg.poolSize),
		Logger:       cfg.logger,
		Observer:     observer,
	})

	if cfg.registry != nil {
		if err := cfg.registry.Register(metrics.NewCollector(store, srv)); err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("register cache collector: %w", err)
		}
	}

	return &Cache{
		config: cfg,
		store:  store,
		server: srv,
		stop:   make(chan struct{}),
	}, nil
}

// Start opens the listener and begins serving clients in the background.
// Cancelling ctx closes the cache.
func (c *Cache) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}
	if c.started {
		return ErrAlreadyStarted
	}

	if err := c.server.Start(); err != nil {
		c.config.logger.Error("Failed to start server", Field{Key: "error", Value: err}, Field{Key: "addr", Value: c.config.listenAddr})
		return err
	}

	if c.config.metricsAddr != "" {
		if err := c.startMetrics(); err != nil {
			_ = c.server.Stop()
			return err
		}
	}

	if c.config.statsSink != nil {
		c.wg.Add(1)
		go c.deliverStats()
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		select {
		case <-ctx.Done():
			go func() { _ = c.Close() }()
		case <-c.stop:
		}
	}()

	c.started = true
	c.config.logger.Info("Cache listening",
		Field{Key: "addr", Value: c.server.Addr()},
		Field{Key: "shards", Value: c.store.ShardCount()},
		Field{Key: "hash", Value: c.store.Hasher().Name()})
	return nil
}

func (c *Cache) startMetrics() error {
	l, err := net.Listen("tcp", c.config.metricsAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", c.config.metricsAddr, err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(c.config.registry))
	c.metrics = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	c.metricsAddr = l.Addr().String()

	go func() {
		if err := c.metrics.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.config.logger.Error("Metrics server failed", Field{Key: "error", Value: err})
		}
	}()
	c.config.logger.Info("Metrics listening", Field{Key: "addr", Value: c.metricsAddr})
	return nil
}

// deliverStats hands a snapshot to the sink every interval
func (c *Cache) deliverStats() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.statsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.config.statsSink.Deliver(c.Stats())
		case <-c.stop:
			return
		}
	}
}

// Addr returns the address the cache is listening on
func (c *Cache) Addr() string {
	return c.server.Addr()
}

// MetricsAddr returns the address serving /metrics, or "" when metrics are
// not served
func (c *Cache) MetricsAddr() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metricsAddr
}

// Stats returns a snapshot of keyspace and connection counters
func (c *Cache) Stats() Stats {
	return Stats{
		Store:  c.store.Stats(),
		Server: c.server.Stats(),
	}
}

// Store exposes the keyspace for in-process access
func (c *Cache) Store() storage.Store {
	return c.store
}

// Close stops accepting clients, closes open connections and releases the
// keyspace
func (c *Cache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	close(c.stop)

	var errs []error
	if c.started {
		if err := c.server.Stop(); err != nil {
			c.config.logger.Error("Error stopping server", logging.F("error", err))
			errs = append(errs, err)
		}
		if c.metrics != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := c.metrics.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
			cancel()
		}
	}

	c.wg.Wait()

	if err := c.store.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
