package storage

import (
	"sync/atomic"
	"time"
)

// nowNano is the storage clock, replaced in tests
var nowNano = func() int64 { return time.Now().UnixNano() }

// entry is the map value of a shard. The key lives in the map, the value
// bytes in the shard's arena.
type entry struct {
	ref      SpanRef
	expireAt int64 // unix nanoseconds, 0 means no expiration

	// lastAccess is written under the shard read lock by concurrent readers
	lastAccess atomic.Int64
}

func (e *entry) expired(now int64) bool {
	return e.expireAt != 0 && now >= e.expireAt
}

func expiryFor(now int64, ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return now + int64(ttl)
}
