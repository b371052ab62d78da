package bufpool

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolMissThenHit(t *testing.T) {
	p := New(128, 4)

	buf := p.Get()
	require.Equal(t, 0, len(buf))
	require.Equal(t, 128, cap(buf))

	buf = append(buf, "stale data"...)
	p.Put(buf)

	again := p.Get()
	assert.Equal(t, 0, len(again), "buffers are length-reset")
	assert.Equal(t, 128, cap(again))

	st := p.Stats()
	assert.Equal(t, uint64(1), st.Misses)
	assert.Equal(t, uint64(1), st.Hits)
	assert.Equal(t, uint64(1), st.Puts)
	assert.InDelta(t, 0.5, st.HitRate(), 1e-9)
}

func TestPoolGrowsToConcurrency(t *testing.T) {
	p := New(64, 16)

	bufs := make([][]byte, 8)
	for i := range bufs {
		bufs[i] = p.Get()
	}
	for _, b := range bufs {
		p.Put(b)
	}
	assert.Equal(t, 8, p.Stats().Idle)

	for i := range bufs {
		bufs[i] = p.Get()
	}
	st := p.Stats()
	assert.Equal(t, uint64(8), st.Misses)
	assert.Equal(t, uint64(8), st.Hits)
	assert.Equal(t, 0, st.Idle)
}

func TestPoolDropsForeignAndExcessBuffers(t *testing.T) {
	p := New(64, 1)

	p.Put(make([]byte, 0, 4096))
	assert.Equal(t, 0, p.Stats().Idle, "grown buffers are not retained")

	p.Put(p.Get())
	p.Put(make([]byte, 0, 64))

	st := p.Stats()
	assert.Equal(t, 1, st.Idle)
	assert.Equal(t, uint64(2), st.Dropped)
}

func TestPoolDefaults(t *testing.T) {
	p := New(0, 0)
	assert.Equal(t, DefaultBufferSize, p.Size())
	assert.Equal(t, DefaultMaxIdle, p.Stats().MaxIdle)
	assert.Equal(t, 0.0, p.Stats().HitRate())
}

func TestPoolConcurrentUse(t *testing.T) {
	p := New(256, 32)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				buf := p.Get()
				buf = append(buf, byte(id), byte(j))
				p.Put(buf)
			}
		}(i)
	}
	wg.Wait()

	st := p.Stats()
	assert.Equal(t, uint64(32*200), st.Hits+st.Misses)
	assert.LessOrEqual(t, st.Idle, 32)
}

func BenchmarkPoolGetPut(b *testing.B) {
	p := New(DefaultBufferSize, DefaultMaxIdle)
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			p.Put(p.Get())
		}
	})
}
