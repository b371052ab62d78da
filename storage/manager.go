package storage

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/raniellyferreira/arenacache/logging"
	"github.com/raniellyferreira/arenacache/storage/policy"
)

const (
	DefaultShardCount    = 16
	DefaultShardCapacity = 4 << 20
	DefaultMaxKeySize    = 250
	DefaultMaxValueSize  = 1 << 20
)

// Manager owns the fixed set of shards and routes every keyed operation
// to exactly one of them
type Manager struct {
	shards    []*Shard
	shardMask uint64
	hasher    Hasher

	maxKeySize   int
	maxValueSize int
	capacity     int
	policy       policy.EvictionPolicy
	maxEvict     int

	logger logging.Logger

	// Background cleanup
	cleanupConfig   CleanupConfig
	cleanupInterval time.Duration
	cleanupStop     chan struct{}
	cleanupDone     chan struct{}
	closeOnce       sync.Once
}

var _ Store = (*Manager)(nil)

// ManagerOption is a function that configures a Manager
type ManagerOption func(*Manager)

// WithShardCount sets the number of shards.
// The number is rounded up to the next power of 2 so routing is a mask.
func WithShardCount(count int) ManagerOption {
	return func(m *Manager) {
		if count > 0 {
			m.shardMask = uint64(nextPowerOf2(count) - 1)
		}
	}
}

// WithShardCapacity sets the arena size of every shard in bytes
func WithShardCapacity(bytes int) ManagerOption {
	return func(m *Manager) {
		if bytes > 0 {
			m.capacity = bytes
		}
	}
}

// WithLimits sets the maximum key and value sizes
func WithLimits(maxKey, maxValue int) ManagerOption {
	return func(m *Manager) {
		if maxKey > 0 {
			m.maxKeySize = maxKey
		}
		if maxValue > 0 {
			m.maxValueSize = maxValue
		}
	}
}

// WithEvictionPolicy sets the policy applied when a shard is full
func WithEvictionPolicy(p policy.EvictionPolicy) ManagerOption {
	return func(m *Manager) {
		if p != nil {
			m.policy = p
		}
	}
}

// WithMaxEvictPerWrite bounds how many entries a single write may evict
func WithMaxEvictPerWrite(n int) ManagerOption {
	return func(m *Manager) {
		if n > 0 {
			m.maxEvict = n
		}
	}
}

// WithHasher sets the routing hash
func WithHasher(h Hasher) ManagerOption {
	return func(m *Manager) {
		if h != nil {
			m.hasher = h
		}
	}
}

// WithCleanup configures the background expiry sweep. An interval <= 0
// disables it.
func WithCleanup(config CleanupConfig, interval time.Duration) ManagerOption {
	return func(m *Manager) {
		m.cleanupConfig = config.normalized()
		m.cleanupInterval = interval
	}
}

// WithLogger sets the logger used for storage invariant violations
func WithLogger(l logging.Logger) ManagerOption {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

// NewManager creates the shards and starts the background cleanup
func NewManager(opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		shardMask:       DefaultShardCount - 1,
		maxKeySize:      DefaultMaxKeySize,
		maxValueSize:    DefaultMaxValueSize,
		capacity:        DefaultShardCapacity,
		policy:          policy.Reject{},
		maxEvict:        64,
		logger:          logging.Nop(),
		cleanupConfig:   CleanupConfigDefault,
		cleanupInterval: time.Second,
		cleanupStop:     make(chan struct{}),
		cleanupDone:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.hasher == nil {
		h, err := SelectHasher(HashAuto)
		if err != nil {
			return nil, err
		}
		m.hasher = h
	}
	if m.maxValueSize > m.capacity {
		return nil, fmt.Errorf("max value size %d exceeds shard capacity %d", m.maxValueSize, m.capacity)
	}

	m.shards = make([]*Shard, int(m.shardMask)+1)
	for i := range m.shards {
		sh, err := NewShard(i, ShardConfig{
			Capacity:         m.capacity,
			Policy:           m.policy,
			MaxEvictPerWrite: m.maxEvict,
		})
		if err != nil {
			return nil, fmt.Errorf("shard %d: %w", i, err)
		}
		m.shards[i] = sh
	}

	if m.cleanupInterval > 0 {
		go m.cleanupExpiredKeys()
	} else {
		close(m.cleanupDone)
	}
	return m, nil
}

// ShardCount returns the number of shards
func (m *Manager) ShardCount() int { return len(m.shards) }

// Shard returns the shard at index i
func (m *Manager) Shard(i int) *Shard { return m.shards[i] }

// Hasher returns the routing hash chosen at startup
func (m *Manager) Hasher() Hasher { return m.hasher }

// Route returns the shard index for key. It is a pure function of the key
// for a given shard count and hasher.
func (m *Manager) Route(key []byte) int {
	return int(m.hasher.Sum64(key) & m.shardMask)
}

// CheckKey validates a key against the configured limits
func (m *Manager) CheckKey(key []byte) error {
	if len(key) == 0 {
		return ErrEmptyKey
	}
	if len(key) > m.maxKeySize {
		return ErrKeyTooLarge
	}
	return nil
}

// Limits returns the configured maximum key and value sizes
func (m *Manager) Limits() (maxKey, maxValue int) {
	return m.maxKeySize, m.maxValueSize
}

// View calls fn with the live value for key
func (m *Manager) View(key []byte, fn func(value []byte)) (bool, error) {
	if err := m.CheckKey(key); err != nil {
		return false, err
	}
	sh := m.shards[m.Route(key)]
	found, err := sh.View(key, fn)
	if err != nil {
		m.logStale("get", sh, err)
		return false, nil
	}
	return found, nil
}

// Get returns a copy of the value for key
func (m *Manager) Get(key []byte) ([]byte, bool, error) {
	if err := m.CheckKey(key); err != nil {
		return nil, false, err
	}
	sh := m.shards[m.Route(key)]
	v, found, err := sh.Get(key)
	if err != nil {
		m.logStale("get", sh, err)
		return nil, false, nil
	}
	return v, found, nil
}

// Put stores value under key with an optional ttl
func (m *Manager) Put(key, value []byte, ttl time.Duration) error {
	if err := m.CheckKey(key); err != nil {
		return err
	}
	if len(value) > m.maxValueSize {
		return ErrValueTooLarge
	}
	sh := m.shards[m.Route(key)]
	evicted, err := sh.Put(key, value, ttl)
	if evicted > 0 {
		m.logger.Debug("evicted entries",
			logging.F("shard", sh.ID()),
			logging.F("count", evicted),
			logging.F("policy", m.policy.Name()))
	}
	if errors.Is(err, ErrStaleReference) {
		m.logStale("put", sh, err)
		return nil
	}
	return err
}

// Delete removes key and reports whether it was present
func (m *Manager) Delete(key []byte) (bool, error) {
	if err := m.CheckKey(key); err != nil {
		return false, err
	}
	return m.shards[m.Route(key)].Delete(key), nil
}

// Stats aggregates per-shard counters. No global lock is taken.
func (m *Manager) Stats() Stats {
	st := Stats{
		Hasher: m.hasher.Name(),
		Policy: m.policy.Name(),
		Shards: make([]ShardStats, len(m.shards)),
	}
	for i, sh := range m.shards {
		ss := sh.Stats()
		st.Shards[i] = ss
		st.Capacity += ss.Capacity
		st.Total.add(ss.Counters)
	}
	return st
}

// Close stops the background cleanup
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		close(m.cleanupStop)
	})
	<-m.cleanupDone
	return nil
}

// cleanupExpiredKeys runs in background to clean up expired keys
func (m *Manager) cleanupExpiredKeys() {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.cleanupStop:
			return
		case <-ticker.C:
			m.performCleanup()
		}
	}
}

func (m *Manager) performCleanup() {
	total := 0
	for _, sh := range m.shards {
		n, saturated := sh.sweepSampled(m.cleanupConfig)
		if saturated {
			// Sampling kept finding mostly dead entries
			n += sh.SweepExpired()
		}
		total += n
	}
	if total > 0 {
		m.logger.Debug("reclaimed expired keys", logging.F("count", total))
	}
}

func (m *Manager) logStale(op string, sh *Shard, err error) {
	m.logger.Error("arena reference invariant violated",
		logging.F("op", op),
		logging.F("shard", sh.ID()),
		logging.F("err", err))
}
