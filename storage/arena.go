package storage

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"sort"
)

// SpanRef is a handle to a value stored inside an Arena. It is only valid
// while the arena still records the same generation for its offset.
type SpanRef struct {
	Offset uint32
	Length uint32
	Gen    uint32
}

// span is a free region of the arena
type span struct {
	off uint32
	len uint32
}

type liveSpan struct {
	gen uint32
	len uint32
}

// Arena is a pre-sized byte region handing out contiguous spans for values.
//
// An Arena is not safe for concurrent use; the owning shard serialises
// access with its own lock.
type Arena struct {
	buf  []byte
	free []span // sorted by offset, never adjacent
	live map[uint32]liveSpan
	gen  uint32
	used int
}

// NewArena creates an arena of the given capacity in bytes
func NewArena(capacity int) (*Arena, error) {
	if capacity <= 0 || capacity > math.MaxUint32 {
		return nil, fmt.Errorf("invalid arena capacity: %d", capacity)
	}
	a := &Arena{
		buf:  make([]byte, capacity),
		live: make(map[uint32]liveSpan),
	}
	a.free = []span{{off: 0, len: uint32(capacity)}}
	return a, nil
}

// Cap returns the arena capacity in bytes
func (a *Arena) Cap() int { return len(a.buf) }

// Used returns the number of bytes held by live spans
func (a *Arena) Used() int { return a.used }

// Available returns the total number of free bytes, contiguous or not
func (a *Arena) Available() int { return len(a.buf) - a.used }

// Fragments returns the number of disjoint free regions
func (a *Arena) Fragments() int { return len(a.free) }

// Allocate reserves a contiguous span of n bytes using first fit
func (a *Arena) Allocate(n int) (SpanRef, error) {
	if n < 0 {
		return SpanRef{}, fmt.Errorf("invalid span length: %d", n)
	}
	if n == 0 {
		// Empty values occupy no arena memory and never go stale.
		return SpanRef{}, nil
	}
	need := uint32(n)
	for i := range a.free {
		s := &a.free[i]
		if s.len < need {
			continue
		}
		ref := SpanRef{Offset: s.off, Length: need, Gen: a.nextGen()}
		s.off += need
		s.len -= need
		if s.len == 0 {
			a.free = slices.Delete(a.free, i, i+1)
		}
		a.live[ref.Offset] = liveSpan{gen: ref.Gen, len: need}
		a.used += n
		return ref, nil
	}
	return SpanRef{}, ErrOutOfArenaMemory
}

// Put allocates a span for value and copies the bytes into it
func (a *Arena) Put(value []byte) (SpanRef, error) {
	ref, err := a.Allocate(len(value))
	if err != nil {
		return SpanRef{}, err
	}
	copy(a.buf[ref.Offset:ref.Offset+ref.Length], value)
	return ref, nil
}

// Read returns a view of the span's bytes. The view aliases arena memory
// and must not be retained after the owning lock is released.
func (a *Arena) Read(ref SpanRef) ([]byte, error) {
	if ref.Length == 0 {
		return a.buf[:0:0], nil
	}
	if !a.valid(ref) {
		return nil, ErrStaleReference
	}
	end := ref.Offset + ref.Length
	return a.buf[ref.Offset:end:end], nil
}

// Free returns the span to the free list, merging it with adjacent free
// regions
func (a *Arena) Free(ref SpanRef) error {
	if ref.Length == 0 {
		return nil
	}
	if !a.valid(ref) {
		return ErrStaleReference
	}
	delete(a.live, ref.Offset)
	a.used -= int(ref.Length)

	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].off > ref.Offset })
	s := span{off: ref.Offset, len: ref.Length}

	mergePrev := i > 0 && a.free[i-1].off+a.free[i-1].len == s.off
	mergeNext := i < len(a.free) && s.off+s.len == a.free[i].off

	switch {
	case mergePrev && mergeNext:
		a.free[i-1].len += s.len + a.free[i].len
		a.free = slices.Delete(a.free, i, i+1)
	case mergePrev:
		a.free[i-1].len += s.len
	case mergeNext:
		a.free[i].off = s.off
		a.free[i].len += s.len
	default:
		a.free = slices.Insert(a.free, i, s)
	}
	return nil
}

// Compact slides the spans in refs to the front of the arena, leaving one
// free region at the tail. refs are rewritten in place with new offsets and
// generations, so any copy of an old reference becomes stale. Live spans
// missing from refs are released.
func (a *Arena) Compact(refs []SpanRef) error {
	order := make([]int, 0, len(refs))
	for i, ref := range refs {
		if ref.Length == 0 {
			continue
		}
		if !a.valid(ref) {
			return ErrStaleReference
		}
		order = append(order, i)
	}
	slices.SortFunc(order, func(x, y int) int {
		return cmp.Compare(refs[x].Offset, refs[y].Offset)
	})

	live := make(map[uint32]liveSpan, len(a.live))
	var cursor uint32
	for _, idx := range order {
		ref := refs[idx]
		if ref.Offset != cursor {
			copy(a.buf[cursor:cursor+ref.Length], a.buf[ref.Offset:ref.Offset+ref.Length])
		}
		moved := SpanRef{Offset: cursor, Length: ref.Length, Gen: a.nextGen()}
		live[cursor] = liveSpan{gen: moved.Gen, len: moved.Length}
		refs[idx] = moved
		cursor += ref.Length
	}

	a.live = live
	a.used = int(cursor)
	a.free = a.free[:0]
	if rest := uint32(len(a.buf)) - cursor; rest > 0 {
		a.free = append(a.free, span{off: cursor, len: rest})
	}
	return nil
}

func (a *Arena) valid(ref SpanRef) bool {
	ls, ok := a.live[ref.Offset]
	return ok && ls.gen == ref.Gen && ls.len == ref.Length
}

func (a *Arena) nextGen() uint32 {
	a.gen++
	if a.gen == 0 {
		a.gen = 1
	}
	return a.gen
}
