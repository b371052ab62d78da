package arenacache

import (
	"github.com/raniellyferreira/arenacache/logging"
	"github.com/raniellyferreira/arenacache/server"
	"github.com/raniellyferreira/arenacache/storage"
)

// Field represents a structured log field
type Field = logging.Field

// Logger interface for custom logging implementations
type Logger = logging.Logger

// Stats is a point-in-time view of the cache. Shards are read one at a
// time, so counters from different shards may not line up exactly.
type Stats struct {
	Store  storage.Stats
	Server server.Stats
}

// StatsSink receives periodic snapshots. Deliver runs on a dedicated
// goroutine and never on a connection or shard path.
type StatsSink interface {
	Deliver(Stats)
}

// StatsSinkFunc adapts a function to StatsSink
type StatsSinkFunc func(Stats)

// Deliver calls f(s)
func (f StatsSinkFunc) Deliver(s Stats) { f(s) }
