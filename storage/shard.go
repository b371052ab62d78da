package storage

import (
	"errors"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/raniellyferreira/arenacache/storage/policy"
)

// Shard owns one partition of the keyspace: a map guarded by a single
// RWMutex and the arena holding the values. Critical sections cover one
// map operation plus one arena operation and never perform I/O.
type Shard struct {
	id int

	mu    sync.RWMutex
	data  map[string]*entry
	arena *Arena

	policy   policy.EvictionPolicy
	maxEvict int
	sample   []policy.Candidate // scratch, guarded by mu

	keys      atomic.Int64
	bytes     atomic.Int64
	fragments atomic.Int64

	hits        atomic.Uint64
	misses      atomic.Uint64
	puts        atomic.Uint64
	deletes     atomic.Uint64
	evictions   atomic.Uint64
	expired     atomic.Uint64
	rejected    atomic.Uint64
	staleRefs   atomic.Uint64
	compactions atomic.Uint64
}

// expiredScanLimit bounds how many entries a full shard inspects for
// expired data before falling back to the eviction policy
const expiredScanLimit = 1024

// ShardConfig configures a single shard
type ShardConfig struct {
	Capacity         int
	Policy           policy.EvictionPolicy
	MaxEvictPerWrite int
}

// NewShard creates a shard with an arena of cfg.Capacity bytes
func NewShard(id int, cfg ShardConfig) (*Shard, error) {
	arena, err := NewArena(cfg.Capacity)
	if err != nil {
		return nil, err
	}
	p := cfg.Policy
	if p == nil {
		p = policy.Reject{}
	}
	maxEvict := cfg.MaxEvictPerWrite
	if maxEvict <= 0 {
		maxEvict = 64
	}
	s := &Shard{
		id:       id,
		data:     make(map[string]*entry),
		arena:    arena,
		policy:   p,
		maxEvict: maxEvict,
		sample:   make([]policy.Candidate, 0, p.Samples()),
	}
	s.fragments.Store(int64(arena.Fragments()))
	return s, nil
}

// ID returns the shard index
func (s *Shard) ID() int { return s.id }

// View calls fn with the stored value while holding the read lock. An
// absent or expired key is a miss. A stale arena reference is also
// reported as a miss, together with ErrStaleReference for logging.
func (s *Shard) View(key []byte, fn func(value []byte)) (bool, error) {
	now := nowNano()

	s.mu.RLock()
	e, ok := s.data[string(key)]
	if !ok || e.expired(now) {
		s.mu.RUnlock()
		s.misses.Add(1)
		return false, nil
	}
	v, err := s.arena.Read(e.ref)
	if err != nil {
		s.mu.RUnlock()
		s.misses.Add(1)
		s.staleRefs.Add(1)
		return false, err
	}
	e.lastAccess.Store(now)
	fn(v)
	s.mu.RUnlock()

	s.hits.Add(1)
	return true, nil
}

// Get returns a copy of the stored value
func (s *Shard) Get(key []byte) ([]byte, bool, error) {
	var out []byte
	found, err := s.View(key, func(v []byte) {
		out = append(make([]byte, 0, len(v)), v...)
	})
	return out, found, err
}

// Put stores value under key, replacing and freeing any previous value.
// When the arena cannot hold the value, expired entries are reclaimed and
// the configured policy may evict live ones. A write that still cannot fit
// returns ErrStoreFull without evicting anything and leaves the previous
// value, if any, untouched. The returned int is the number of live entries
// evicted. A non-nil ErrStaleReference alongside a successful write means
// the previous span could not be freed; the write itself went through.
func (s *Shard) Put(key, value []byte, ttl time.Duration) (int, error) {
	if len(value) > s.arena.Cap() {
		s.rejected.Add(1)
		return 0, ErrStoreFull
	}
	now := nowNano()
	k := string(key)

	s.mu.Lock()
	old, exists := s.data[k]
	reclaim := 0
	if exists {
		reclaim = int(old.ref.Length)
	}

	evicted, err := s.makeRoomLocked(k, len(value)-reclaim, now)
	if err != nil {
		s.mu.Unlock()
		s.rejected.Add(1)
		return evicted, err
	}

	var staleErr error
	if exists {
		if err := s.arena.Free(old.ref); err != nil {
			staleErr = err
			// Release the unreachable span by rebuilding from the other entries
			_ = s.compactLocked(k)
		}
		s.bytes.Add(-int64(old.ref.Length))
	}

	ref, err := s.arena.Put(value)
	if errors.Is(err, ErrOutOfArenaMemory) {
		if cerr := s.compactLocked(k); cerr == nil {
			ref, err = s.arena.Put(value)
		}
	}
	if err != nil {
		if exists {
			delete(s.data, k)
			s.keys.Add(-1)
		}
		s.trackArenaLocked()
		s.mu.Unlock()
		s.rejected.Add(1)
		return evicted, ErrStoreFull
	}

	if exists {
		old.ref = ref
		old.expireAt = expiryFor(now, ttl)
		old.lastAccess.Store(now)
	} else {
		e := &entry{ref: ref, expireAt: expiryFor(now, ttl)}
		e.lastAccess.Store(now)
		s.data[k] = e
		s.keys.Add(1)
	}
	s.bytes.Add(int64(ref.Length))
	s.trackArenaLocked()
	s.mu.Unlock()

	s.puts.Add(1)
	if staleErr != nil {
		s.staleRefs.Add(1)
	}
	return evicted, staleErr
}

// Delete removes key and reports whether a live entry was removed. An
// expired entry is reclaimed but reported as absent.
func (s *Shard) Delete(key []byte) bool {
	now := nowNano()
	k := string(key)

	s.mu.Lock()
	e, ok := s.data[k]
	if !ok {
		s.mu.Unlock()
		return false
	}
	s.removeLocked(k, e)
	s.mu.Unlock()

	if e.expired(now) {
		s.expired.Add(1)
		return false
	}
	s.deletes.Add(1)
	return true
}

// SweepExpired scans the whole shard and reclaims every expired entry
func (s *Shard) SweepExpired() int {
	now := nowNano()

	s.mu.Lock()
	reclaimed := 0
	for k, e := range s.data {
		if e.expired(now) {
			s.removeLocked(k, e)
			reclaimed++
		}
	}
	s.mu.Unlock()

	s.expired.Add(uint64(reclaimed))
	return reclaimed
}

// Stats reads the shard counters without taking the shard lock
func (s *Shard) Stats() ShardStats {
	return ShardStats{
		ID:        s.id,
		Capacity:  int64(s.arena.Cap()),
		Fragments: s.fragments.Load(),
		Counters: Counters{
			Keys:        s.keys.Load(),
			Bytes:       s.bytes.Load(),
			Hits:        s.hits.Load(),
			Misses:      s.misses.Load(),
			Puts:        s.puts.Load(),
			Deletes:     s.deletes.Load(),
			Evictions:   s.evictions.Load(),
			Expired:     s.expired.Load(),
			Rejected:    s.rejected.Load(),
			StaleRefs:   s.staleRefs.Load(),
			Compactions: s.compactions.Load(),
		},
	}
}

// makeRoomLocked frees arena space until need more bytes fit. Expired
// entries go first. Live entries are evicted only once the policy has
// picked enough of them, within the per-write budget, to cover the whole
// shortfall; otherwise nothing live is touched.
func (s *Shard) makeRoomLocked(protect string, need int, now int64) (int, error) {
	if s.arena.Available() >= need {
		return 0, nil
	}
	s.reclaimExpiredLocked(protect, need, now)
	short := need - s.arena.Available()
	if short <= 0 {
		return 0, nil
	}

	victims, ok := s.planEvictionLocked(protect, short, now)
	if !ok {
		return 0, ErrStoreFull
	}
	evicted, expired := 0, 0
	for _, key := range victims {
		e := s.data[key]
		if e.expired(now) {
			expired++
		} else {
			evicted++
		}
		s.removeLocked(key, e)
	}
	s.evictions.Add(uint64(evicted))
	s.expired.Add(uint64(expired))
	return evicted, nil
}

// reclaimExpiredLocked removes expired entries until need bytes are
// available, inspecting at most expiredScanLimit entries
func (s *Shard) reclaimExpiredLocked(protect string, need int, now int64) {
	scanned, reclaimed := 0, 0
	for k, e := range s.data {
		if scanned >= expiredScanLimit || s.arena.Available() >= need {
			break
		}
		scanned++
		if k != protect && e.expired(now) {
			s.removeLocked(k, e)
			reclaimed++
		}
	}
	s.expired.Add(uint64(reclaimed))
}

// planEvictionLocked collects victims until their spans cover short bytes.
// It reports false when the policy declines or the budget runs out first.
func (s *Shard) planEvictionLocked(protect string, short int, now int64) ([]string, bool) {
	var victims []string
	freed := 0
	for freed < short {
		if len(victims) >= s.maxEvict {
			return nil, false
		}
		key, size, ok := s.selectVictimLocked(protect, victims, now)
		if !ok {
			return nil, false
		}
		victims = append(victims, key)
		freed += size
	}
	return victims, true
}

// selectVictimLocked samples entries (map iteration order is randomized)
// outside protect and chosen, and returns an expired one if present, else
// the policy's pick.
func (s *Shard) selectVictimLocked(protect string, chosen []string, now int64) (key string, size int, ok bool) {
	s.sample = s.sample[:0]
	limit := s.policy.Samples()
	for k, e := range s.data {
		if k == protect || slices.Contains(chosen, k) {
			continue
		}
		if e.expired(now) {
			return k, int(e.ref.Length), true
		}
		s.sample = append(s.sample, policy.Candidate{
			Key:        k,
			LastAccess: e.lastAccess.Load(),
			Size:       int(e.ref.Length),
		})
		if len(s.sample) >= limit {
			break
		}
	}
	idx, ok := s.policy.Victim(s.sample)
	if !ok {
		return "", 0, false
	}
	return s.sample[idx].Key, s.sample[idx].Size, true
}

// compactLocked defragments the arena. protect is the key being written,
// whose old span has already been freed and must not be offered.
func (s *Shard) compactLocked(protect string) error {
	entries := make([]*entry, 0, len(s.data))
	refs := make([]SpanRef, 0, len(s.data))
	for k, e := range s.data {
		if k == protect {
			continue
		}
		entries = append(entries, e)
		refs = append(refs, e.ref)
	}
	if err := s.arena.Compact(refs); err != nil {
		return err
	}
	for i, e := range entries {
		e.ref = refs[i]
	}
	s.compactions.Add(1)
	s.trackArenaLocked()
	return nil
}

func (s *Shard) removeLocked(key string, e *entry) {
	delete(s.data, key)
	s.keys.Add(-1)
	s.bytes.Add(-int64(e.ref.Length))
	if err := s.arena.Free(e.ref); err != nil {
		s.staleRefs.Add(1)
		_ = s.compactLocked("")
	}
	s.trackArenaLocked()
}

func (s *Shard) trackArenaLocked() {
	s.fragments.Store(int64(s.arena.Fragments()))
}
