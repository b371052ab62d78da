package storage

import "errors"

var (
	// ErrEmptyKey indicates a zero-length key
	ErrEmptyKey = errors.New("empty key")

	// ErrKeyTooLarge indicates a key longer than the configured maximum
	ErrKeyTooLarge = errors.New("key too large")

	// ErrValueTooLarge indicates a value longer than the configured maximum
	ErrValueTooLarge = errors.New("value too large")

	// ErrStoreFull indicates the shard could not make room for a write
	ErrStoreFull = errors.New("store full")

	// ErrOutOfArenaMemory indicates no contiguous free span is large enough
	ErrOutOfArenaMemory = errors.New("out of arena memory")

	// ErrStaleReference indicates a span reference whose generation no longer
	// matches the arena. Seeing it means the arena lifecycle is broken.
	ErrStaleReference = errors.New("stale arena reference")
)
