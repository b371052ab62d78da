package storage

import (
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raniellyferreira/arenacache/storage/policy"
)

func newTestShard(t *testing.T, capacity int, p policy.EvictionPolicy) *Shard {
	t.Helper()
	sh, err := NewShard(0, ShardConfig{Capacity: capacity, Policy: p})
	require.NoError(t, err)
	return sh
}

func TestShardPutGetOverwrite(t *testing.T) {
	sh := newTestShard(t, 64, nil)

	_, err := sh.Put([]byte("k"), []byte("first"), 0)
	require.NoError(t, err)
	_, err = sh.Put([]byte("k"), []byte("second value"), 0)
	require.NoError(t, err)

	v, ok, err := sh.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "second value", string(v))

	st := sh.Stats()
	assert.Equal(t, int64(1), st.Keys)
	assert.Equal(t, int64(len("second value")), st.Bytes, "old span must be returned to the arena")
	assert.Equal(t, uint64(2), st.Puts)
	assert.Equal(t, uint64(1), st.Hits)
}

func TestShardMissCounting(t *testing.T) {
	sh := newTestShard(t, 64, nil)

	_, ok, err := sh.Get([]byte("missing"))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, uint64(1), sh.Stats().Misses)
}

func TestShardDeleteIdempotent(t *testing.T) {
	sh := newTestShard(t, 64, nil)

	assert.False(t, sh.Delete([]byte("k")), "deleting an absent key reports false")
	assert.Equal(t, uint64(0), sh.Stats().Deletes)

	_, err := sh.Put([]byte("k"), []byte("v"), 0)
	require.NoError(t, err)

	assert.True(t, sh.Delete([]byte("k")))
	assert.False(t, sh.Delete([]byte("k")))
	assert.Equal(t, uint64(1), sh.Stats().Deletes)
	assert.Equal(t, 0, sh.arena.Used())
}

func TestShardLazyExpiry(t *testing.T) {
	now := time.Unix(100, 0).UnixNano()
	restore := SetNowForTest(func() int64 { return now })
	defer restore()

	sh := newTestShard(t, 64, nil)
	_, err := sh.Put([]byte("k"), []byte("v"), 10*time.Second)
	require.NoError(t, err)

	now += int64(9 * time.Second)
	_, ok, _ := sh.Get([]byte("k"))
	assert.True(t, ok, "entry must be visible before its ttl elapses")

	now += int64(time.Second)
	_, ok, _ = sh.Get([]byte("k"))
	assert.False(t, ok, "entry must be absent once expired, even before a sweep")
	assert.Equal(t, int64(1), sh.Stats().Keys, "expired entry is not reclaimed by reads")

	assert.Equal(t, 1, sh.SweepExpired())
	assert.Equal(t, int64(0), sh.Stats().Keys)
	assert.Equal(t, uint64(1), sh.Stats().Expired)
}

func TestShardDeleteExpiredReportsAbsent(t *testing.T) {
	now := time.Unix(100, 0).UnixNano()
	restore := SetNowForTest(func() int64 { return now })
	defer restore()

	sh := newTestShard(t, 64, nil)
	_, err := sh.Put([]byte("k"), []byte("v"), time.Second)
	require.NoError(t, err)

	now += int64(2 * time.Second)
	assert.False(t, sh.Delete([]byte("k")))
	assert.Equal(t, uint64(0), sh.Stats().Deletes)
	assert.Equal(t, 0, sh.arena.Used())
}

func TestShardRejectWhenFull(t *testing.T) {
	sh := newTestShard(t, 8, policy.Reject{})

	for i := 0; i < 2; i++ {
		_, err := sh.Put([]byte(fmt.Sprintf("k%d", i)), []byte("1234"), 0)
		require.NoError(t, err)
	}

	_, err := sh.Put([]byte("k2"), []byte("1234"), 0)
	assert.ErrorIs(t, err, ErrStoreFull)

	for i := 0; i < 2; i++ {
		v, ok, _ := sh.Get([]byte(fmt.Sprintf("k%d", i)))
		require.True(t, ok)
		assert.Equal(t, "1234", string(v), "existing entries must survive a rejected write")
	}
	assert.Equal(t, uint64(1), sh.Stats().Rejected)
}

func TestShardRejectedOverwriteKeepsOldValue(t *testing.T) {
	sh := newTestShard(t, 8, policy.Reject{})

	_, err := sh.Put([]byte("a"), []byte("1234"), 0)
	require.NoError(t, err)
	_, err = sh.Put([]byte("b"), []byte("5678"), 0)
	require.NoError(t, err)

	_, err = sh.Put([]byte("a"), []byte("123456"), 0)
	require.ErrorIs(t, err, ErrStoreFull)

	v, ok, _ := sh.Get([]byte("a"))
	require.True(t, ok)
	assert.Equal(t, "1234", string(v))
}

func TestShardSampledLRUEvictsExactlyOne(t *testing.T) {
	now := time.Unix(100, 0).UnixNano()
	restore := SetNowForTest(func() int64 { return now })
	defer restore()

	sh := newTestShard(t, 12, policy.SampledLRU{N: 8})

	for i := 0; i < 3; i++ {
		now++
		_, err := sh.Put([]byte(fmt.Sprintf("k%d", i)), []byte("1234"), 0)
		require.NoError(t, err)
	}
	// Touch k0 so k1 becomes the least recently used.
	now++
	_, ok, _ := sh.Get([]byte("k0"))
	require.True(t, ok)

	now++
	evicted, err := sh.Put([]byte("k3"), []byte("1234"), 0)
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, uint64(1), sh.Stats().Evictions)

	_, ok, _ = sh.Get([]byte("k1"))
	assert.False(t, ok, "least recently used entry should be evicted")
	for _, k := range []string{"k0", "k2", "k3"} {
		v, ok, _ := sh.Get([]byte(k))
		require.True(t, ok, k)
		assert.Equal(t, "1234", string(v))
	}
}

func TestShardFullPrefersExpiredOverEviction(t *testing.T) {
	now := time.Unix(100, 0).UnixNano()
	restore := SetNowForTest(func() int64 { return now })
	defer restore()

	sh := newTestShard(t, 8, policy.Reject{})
	_, err := sh.Put([]byte("live"), []byte("1111"), 0)
	require.NoError(t, err)
	_, err = sh.Put([]byte("exp"), []byte("2222"), time.Second)
	require.NoError(t, err)

	now += int64(2 * time.Second)
	evicted, err := sh.Put([]byte("new"), []byte("3333"), 0)
	require.NoError(t, err)
	assert.Equal(t, 0, evicted)

	_, ok, _ := sh.Get([]byte("live"))
	assert.True(t, ok)
	assert.Equal(t, uint64(1), sh.Stats().Expired)
}

func TestShardCompactsFragmentedArena(t *testing.T) {
	sh := newTestShard(t, 12, policy.Reject{})

	for _, k := range []string{"a", "b", "c"} {
		_, err := sh.Put([]byte(k), []byte("xxxx"), 0)
		require.NoError(t, err)
	}
	require.True(t, sh.Delete([]byte("a")))
	require.True(t, sh.Delete([]byte("c")))

	// 8 bytes are free but split around "b".
	_, err := sh.Put([]byte("big"), []byte("12345678"), 0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), sh.Stats().Compactions)

	v, ok, _ := sh.Get([]byte("b"))
	require.True(t, ok)
	assert.Equal(t, "xxxx", string(v))
	v, ok, _ = sh.Get([]byte("big"))
	require.True(t, ok)
	assert.Equal(t, "12345678", string(v))
}

func TestShardValueLargerThanArena(t *testing.T) {
	sh := newTestShard(t, 4, nil)
	_, err := sh.Put([]byte("k"), []byte("12345"), 0)
	assert.ErrorIs(t, err, ErrStoreFull)
}

func TestShardSweepSampled(t *testing.T) {
	now := time.Unix(100, 0).UnixNano()
	restore := SetNowForTest(func() int64 { return now })
	defer restore()

	sh := newTestShard(t, 1024, nil)
	for i := 0; i < 40; i++ {
		_, err := sh.Put([]byte(fmt.Sprintf("k%d", i)), []byte("v"), time.Second)
		require.NoError(t, err)
	}
	now += int64(2 * time.Second)

	reclaimed, saturated := sh.sweepSampled(CleanupConfig{SampleSize: 10, MaxRounds: 10, BatchSize: 3, ExpiredThreshold: 0.1})
	assert.Equal(t, 40, reclaimed)
	assert.False(t, saturated)
	assert.Equal(t, int64(0), sh.Stats().Keys)
}

func TestShardEvictionBudgetIsAllOrNothing(t *testing.T) {
	now := time.Unix(100, 0).UnixNano()
	restore := SetNowForTest(func() int64 { return now })
	defer restore()

	sh, err := NewShard(0, ShardConfig{
		Capacity:         100,
		Policy:           policy.SampledLRU{N: 5},
		MaxEvictPerWrite: 3,
	})
	require.NoError(t, err)

	for i := 0; i < 10; i++ {
		now++
		_, err := sh.Put([]byte(fmt.Sprintf("k%d", i)), bytes.Repeat([]byte("x"), 10), 0)
		require.NoError(t, err)
	}

	// 50 bytes need five evictions but only three are allowed
	evicted, err := sh.Put([]byte("big"), bytes.Repeat([]byte("y"), 50), 0)
	require.ErrorIs(t, err, ErrStoreFull)
	assert.Equal(t, 0, evicted)

	st := sh.Stats()
	assert.Equal(t, int64(10), st.Keys, "a rejected write must not evict anything")
	assert.Equal(t, uint64(0), st.Evictions)
	assert.Equal(t, uint64(1), st.Rejected)
	for i := 0; i < 10; i++ {
		_, ok, _ := sh.Get([]byte(fmt.Sprintf("k%d", i)))
		assert.True(t, ok, "k%d", i)
	}

	// Within budget the same shard evicts and accepts the write
	evicted, err = sh.Put([]byte("mid"), bytes.Repeat([]byte("z"), 30), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, evicted)
	assert.Equal(t, int64(8), sh.Stats().Keys)
}

func TestShardFullReclaimsExpiredBeyondSample(t *testing.T) {
	now := time.Unix(100, 0).UnixNano()
	restore := SetNowForTest(func() int64 { return now })
	defer restore()

	for trial := 0; trial < 20; trial++ {
		sh := newTestShard(t, 1000, policy.Reject{})
		for i := 0; i < 95; i++ {
			_, err := sh.Put([]byte(fmt.Sprintf("live%d", i)), bytes.Repeat([]byte("l"), 10), 0)
			require.NoError(t, err)
		}
		for i := 0; i < 5; i++ {
			_, err := sh.Put([]byte(fmt.Sprintf("dead%d", i)), bytes.Repeat([]byte("d"), 10), time.Second)
			require.NoError(t, err)
		}
		now += int64(2 * time.Second)

		evicted, err := sh.Put([]byte("new"), bytes.Repeat([]byte("n"), 50), 0)
		require.NoError(t, err, "trial %d", trial)
		assert.Equal(t, 0, evicted)

		st := sh.Stats()
		assert.Equal(t, uint64(5), st.Expired)
		assert.Equal(t, int64(96), st.Keys)
	}
}

func TestShardStaleReferenceIsMiss(t *testing.T) {
	sh := newTestShard(t, 64, nil)
	_, err := sh.Put([]byte("k"), []byte("value"), 0)
	require.NoError(t, err)

	sh.data["k"].ref.Gen++

	var seen []byte
	found, err := sh.View([]byte("k"), func(v []byte) { seen = v })
	assert.ErrorIs(t, err, ErrStaleReference)
	assert.False(t, found)
	assert.Nil(t, seen, "stale bytes must never reach the caller")

	st := sh.Stats()
	assert.Equal(t, uint64(1), st.StaleRefs)
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, uint64(0), st.Hits)
}

func TestShardDeleteStaleReferenceReleasesSpan(t *testing.T) {
	sh := newTestShard(t, 64, nil)
	_, err := sh.Put([]byte("keep"), []byte("abc"), 0)
	require.NoError(t, err)
	_, err = sh.Put([]byte("k"), []byte("value"), 0)
	require.NoError(t, err)

	sh.data["k"].ref.Gen++

	assert.True(t, sh.Delete([]byte("k")))
	assert.Equal(t, 3, sh.arena.Used(), "the unreachable span must be returned to the arena")
	assert.Equal(t, uint64(1), sh.Stats().StaleRefs)

	v, ok, err := sh.Get([]byte("keep"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "abc", string(v))
}

func TestShardOverwriteStaleReferenceReleasesSpan(t *testing.T) {
	sh := newTestShard(t, 64, nil)
	_, err := sh.Put([]byte("k"), []byte("value"), 0)
	require.NoError(t, err)

	sh.data["k"].ref.Gen++

	_, err = sh.Put([]byte("k"), []byte("new"), 0)
	assert.ErrorIs(t, err, ErrStaleReference)
	assert.Equal(t, 3, sh.arena.Used())
	assert.Equal(t, int64(3), sh.Stats().Bytes)

	v, ok, err := sh.Get([]byte("k"))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "new", string(v))
}

func TestShardStatsFragments(t *testing.T) {
	sh := newTestShard(t, 12, nil)
	assert.Equal(t, int64(1), sh.Stats().Fragments)

	for _, k := range []string{"a", "b", "c"} {
		_, err := sh.Put([]byte(k), []byte("xxxx"), 0)
		require.NoError(t, err)
	}
	assert.Equal(t, int64(0), sh.Stats().Fragments)

	require.True(t, sh.Delete([]byte("a")))
	require.True(t, sh.Delete([]byte("c")))
	assert.Equal(t, int64(2), sh.Stats().Fragments)
}
