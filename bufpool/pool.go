// Package bufpool recycles fixed-capacity byte buffers for connection
// reads and writes.
package bufpool

import (
	"sync"
	"sync/atomic"
)

const (
	// DefaultBufferSize is the capacity of buffers handed out by a pool
	// created with size <= 0
	DefaultBufferSize = 16 * 1024

	// DefaultMaxIdle bounds how many idle buffers a pool retains
	DefaultMaxIdle = 1024
)

// Pool is a bounded LIFO stack of equally sized buffers.
//
// Get never blocks: when the stack is empty a fresh buffer is allocated and
// counted as a miss. Put retains the buffer until MaxIdle buffers are idle,
// so the pool grows toward the steady-state number of concurrent users.
// Buffers are length-reset, never scrubbed.
type Pool struct {
	mu      sync.Mutex
	free    [][]byte
	size    int
	maxIdle int

	hits    atomic.Uint64
	misses  atomic.Uint64
	puts    atomic.Uint64
	dropped atomic.Uint64
}

// Stats is a snapshot of pool activity
type Stats struct {
	Size    int
	Idle    int
	MaxIdle int
	Hits    uint64
	Misses  uint64
	Puts    uint64
	Dropped uint64
}

// HitRate returns hits / (hits + misses), or 0 before the first Get
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// New creates a pool of buffers with the given capacity, retaining at most
// maxIdle idle buffers
func New(size, maxIdle int) *Pool {
	if size <= 0 {
		size = DefaultBufferSize
	}
	if maxIdle <= 0 {
		maxIdle = DefaultMaxIdle
	}
	return &Pool{
		free:    make([][]byte, 0, min(maxIdle, 64)),
		size:    size,
		maxIdle: maxIdle,
	}
}

// Size returns the capacity of pooled buffers
func (p *Pool) Size() int { return p.size }

// Get returns an empty buffer with capacity Size()
func (p *Pool) Get() []byte {
	p.mu.Lock()
	if n := len(p.free); n > 0 {
		buf := p.free[n-1]
		p.free[n-1] = nil
		p.free = p.free[:n-1]
		p.mu.Unlock()
		p.hits.Add(1)
		return buf[:0]
	}
	p.mu.Unlock()

	p.misses.Add(1)
	return make([]byte, 0, p.size)
}

// Put returns buf to the pool. Buffers that grew past or shrank below the
// pool size are dropped, as are buffers arriving while MaxIdle are idle.
func (p *Pool) Put(buf []byte) {
	if cap(buf) != p.size {
		p.dropped.Add(1)
		return
	}

	p.mu.Lock()
	if len(p.free) >= p.maxIdle {
		p.mu.Unlock()
		p.dropped.Add(1)
		return
	}
	p.free = append(p.free, buf[:0])
	p.mu.Unlock()
	p.puts.Add(1)
}

// Stats returns a snapshot of the pool counters
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	idle := len(p.free)
	p.mu.Unlock()

	return Stats{
		Size:    p.size,
		Idle:    idle,
		MaxIdle: p.maxIdle,
		Hits:    p.hits.Load(),
		Misses:  p.misses.Load(),
		Puts:    p.puts.Load(),
		Dropped: p.dropped.Load(),
	}
}
