package storage

import (
	"bytes"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raniellyferreira/arenacache/storage/policy"
)

func newTestManager(t *testing.T, opts ...ManagerOption) *Manager {
	t.Helper()
	opts = append([]ManagerOption{
		WithShardCount(4),
		WithShardCapacity(1 << 16),
		WithLimits(64, 1<<12),
		WithCleanup(CleanupConfigDefault, 0),
	}, opts...)
	m, err := NewManager(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestManagerScenario(t *testing.T) {
	m := newTestManager(t)
	require.Equal(t, 4, m.ShardCount())

	require.NoError(t, m.Put([]byte("k1"), []byte("hello"), 0))

	v, ok, err := m.Get([]byte("k1"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "hello", string(v))

	deleted, err := m.Delete([]byte("k1"))
	require.NoError(t, err)
	assert.True(t, deleted)

	_, ok, err = m.Get([]byte("k1"))
	require.NoError(t, err, "not found is not an error")
	assert.False(t, ok)

	total := m.Stats().Total
	assert.Equal(t, uint64(1), total.Puts)
	assert.Equal(t, uint64(1), total.Deletes)
	assert.Equal(t, uint64(1), total.Hits)
	assert.Equal(t, uint64(1), total.Misses)
	assert.Equal(t, int64(0), total.Keys)
}

func TestManagerShardCountRoundsUp(t *testing.T) {
	m := newTestManager(t, WithShardCount(5))
	assert.Equal(t, 8, m.ShardCount())
}

func TestManagerRouteDeterministic(t *testing.T) {
	for _, h := range []Hasher{XXHash{}, FNV1a{}} {
		t.Run(h.Name(), func(t *testing.T) {
			m := newTestManager(t, WithShardCount(16), WithHasher(h))
			seen := make([]int, m.ShardCount())
			for i := 0; i < 2000; i++ {
				key := []byte(fmt.Sprintf("key:%d", i))
				first := m.Route(key)
				for j := 0; j < 3; j++ {
					require.Equal(t, first, m.Route(key))
				}
				seen[first]++
			}
			for shard, n := range seen {
				assert.Greater(t, n, 0, "shard %d received no keys", shard)
			}
		})
	}
}

func TestManagerKeyValidation(t *testing.T) {
	m := newTestManager(t)

	assert.ErrorIs(t, m.Put(nil, []byte("v"), 0), ErrEmptyKey)
	assert.ErrorIs(t, m.Put(bytes.Repeat([]byte("k"), 65), []byte("v"), 0), ErrKeyTooLarge)
	assert.ErrorIs(t, m.Put([]byte("k"), make([]byte, 1<<12+1), 0), ErrValueTooLarge)

	_, _, err := m.Get(bytes.Repeat([]byte("k"), 65))
	assert.ErrorIs(t, err, ErrKeyTooLarge)
	_, err = m.Delete(nil)
	assert.ErrorIs(t, err, ErrEmptyKey)

	assert.Equal(t, uint64(0), m.Stats().Total.Misses, "rejected keys never reach a shard")
}

func TestManagerRejectsValueLimitAboveCapacity(t *testing.T) {
	_, err := NewManager(WithShardCapacity(1024), WithLimits(16, 2048), WithCleanup(CleanupConfigDefault, 0))
	assert.Error(t, err)
}

func TestManagerViewBorrowsValue(t *testing.T) {
	m := newTestManager(t)
	require.NoError(t, m.Put([]byte("k"), []byte("value"), 0))

	var dst []byte
	found, err := m.View([]byte("k"), func(v []byte) {
		dst = append(dst, v...)
	})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value", string(dst))
}

func TestManagerCapacityBoundary(t *testing.T) {
	m := newTestManager(t,
		WithShardCount(1),
		WithShardCapacity(16),
		WithLimits(16, 16),
		WithEvictionPolicy(policy.SampledLRU{N: 8}))

	for i := 0; i < 4; i++ {
		require.NoError(t, m.Put([]byte(fmt.Sprintf("k%d", i)), []byte("abcd"), 0))
	}
	require.NoError(t, m.Put([]byte("k4"), []byte("efgh"), 0))

	st := m.Stats().Total
	assert.Equal(t, uint64(1), st.Evictions)
	assert.Equal(t, int64(4), st.Keys)

	// Every surviving entry still holds its own bytes.
	for i := 0; i <= 4; i++ {
		v, ok, _ := m.Get([]byte(fmt.Sprintf("k%d", i)))
		if !ok {
			continue
		}
		want := "abcd"
		if i == 4 {
			want = "efgh"
		}
		assert.Equal(t, want, string(v))
	}
}

func TestManagerBackgroundCleanup(t *testing.T) {
	m := newTestManager(t, WithCleanup(CleanupConfigAggressive, 10*time.Millisecond))

	require.NoError(t, m.Put([]byte("short"), []byte("v"), 5*time.Millisecond))
	require.NoError(t, m.Put([]byte("long"), []byte("v"), 0))

	assert.Eventually(t, func() bool {
		return m.Stats().Total.Keys == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, uint64(1), m.Stats().Total.Expired)
}

func TestManagerConcurrency(t *testing.T) {
	m := newTestManager(t, WithShardCount(8))

	numGoroutines := 50
	numOperations := 100

	var wg sync.WaitGroup

	t.Run("ConcurrentPut", func(t *testing.T) {
		wg.Add(numGoroutines)
		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					key := []byte(fmt.Sprintf("key_%d_%d", id, j))
					value := []byte(fmt.Sprintf("value_%d_%d", id, j))
					if err := m.Put(key, value, 0); err != nil {
						t.Errorf("Put failed: %v", err)
					}
				}
			}(i)
		}
		wg.Wait()
	})

	t.Run("ConcurrentGet", func(t *testing.T) {
		wg.Add(numGoroutines)
		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					key := []byte(fmt.Sprintf("key_%d_%d", id, j))
					want := fmt.Sprintf("value_%d_%d", id, j)
					v, ok, err := m.Get(key)
					if err != nil || !ok || string(v) != want {
						t.Errorf("Get(%s) = %q, %v, %v", key, v, ok, err)
					}
				}
			}(i)
		}
		wg.Wait()
	})

	t.Run("ConcurrentDelete", func(t *testing.T) {
		wg.Add(numGoroutines)
		for i := 0; i < numGoroutines; i++ {
			go func(id int) {
				defer wg.Done()
				for j := 0; j < numOperations; j++ {
					key := []byte(fmt.Sprintf("key_%d_%d", id, j))
					if _, err := m.Delete(key); err != nil {
						t.Errorf("Delete failed: %v", err)
					}
				}
			}(i)
		}
		wg.Wait()
	})

	st := m.Stats().Total
	assert.Equal(t, int64(0), st.Keys)
	assert.Equal(t, int64(0), st.Bytes)
	assert.Equal(t, uint64(numGoroutines*numOperations), st.Deletes)
}

func TestManagerStaleReferenceIsMiss(t *testing.T) {
	m := newTestManager(t)
	key := []byte("k")
	require.NoError(t, m.Put(key, []byte("value"), 0))

	sh := m.Shard(m.Route(key))
	sh.data["k"].ref.Gen++

	v, found, err := m.Get(key)
	require.NoError(t, err, "a stale reference is reported as a miss")
	assert.False(t, found)
	assert.Nil(t, v)

	found, err = m.View(key, func([]byte) { t.Fatal("stale bytes must not be exposed") })
	require.NoError(t, err)
	assert.False(t, found)

	total := m.Stats().Total
	assert.Equal(t, uint64(2), total.StaleRefs)
	assert.Equal(t, uint64(2), total.Misses)
	assert.Equal(t, uint64(0), total.Hits)
}

func TestManagerCleanupFallsBackToFullSweep(t *testing.T) {
	now := time.Unix(100, 0).UnixNano()
	restore := SetNowForTest(func() int64 { return now })
	defer restore()

	m := newTestManager(t,
		WithShardCount(1),
		WithCleanup(CleanupConfig{SampleSize: 2, MaxRounds: 1, BatchSize: 2, ExpiredThreshold: 0.1}, 0))

	for i := 0; i < 50; i++ {
		require.NoError(t, m.Put([]byte(fmt.Sprintf("k%d", i)), []byte("v"), time.Second))
	}
	now += int64(2 * time.Second)

	m.performCleanup()

	st := m.Stats().Total
	assert.Equal(t, int64(0), st.Keys)
	assert.Equal(t, uint64(50), st.Expired)
}
