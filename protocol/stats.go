package protocol

import (
	"fmt"
	"strconv"

	flatbuffers "github.com/google/flatbuffers/go"

	"github.com/raniellyferreira/arenacache/protocol/statsfb"
)

// ShardReport carries the counters of one shard, or the sum over all
// shards for the aggregate row
type ShardReport struct {
	ID       int
	Keys     int64
	Bytes    int64
	Capacity int64

	Hits        uint64
	Misses      uint64
	Puts        uint64
	Deletes     uint64
	Evictions   uint64
	Expired     uint64
	Rejected    uint64
	Compactions uint64
}

// HitRate returns hits / (hits + misses)
func (s ShardReport) HitRate() float64 {
	return ratio(s.Hits, s.Misses)
}

// StatsReport is the STATS response body
type StatsReport struct {
	Hasher        string
	Policy        string
	UptimeSeconds int64

	ConnectedClients int64
	TotalConnections uint64
	TotalCommands    uint64

	PoolHits   uint64
	PoolMisses uint64

	Aggregate ShardReport
	Shards    []ShardReport
}

// PoolHitRate returns the buffer pool hit rate
func (r *StatsReport) PoolHitRate() float64 {
	return ratio(r.PoolHits, r.PoolMisses)
}

func ratio(hits, misses uint64) float64 {
	if hits+misses == 0 {
		return 0
	}
	return float64(hits) / float64(hits+misses)
}

// AppendText renders the report as "name:value" lines grouped in sections,
// the layout of a Redis INFO reply
func (r *StatsReport) AppendText(dst []byte) []byte {
	dst = append(dst, "# Server\r\n"...)
	dst = appendField(dst, "hasher", r.Hasher)
	dst = appendField(dst, "eviction_policy", r.Policy)
	dst = appendInt(dst, "uptime_seconds", r.UptimeSeconds)
	dst = appendInt(dst, "connected_clients", r.ConnectedClients)
	dst = appendUint(dst, "total_connections", r.TotalConnections)
	dst = appendUint(dst, "total_commands", r.TotalCommands)

	dst = append(dst, "\r\n# Pool\r\n"...)
	dst = appendUint(dst, "pool_hits", r.PoolHits)
	dst = appendUint(dst, "pool_misses", r.PoolMisses)
	dst = appendFloat(dst, "pool_hit_rate", r.PoolHitRate())

	dst = append(dst, "\r\n# Aggregate\r\n"...)
	dst = appendUint(dst, "shards", uint64(len(r.Shards)))
	dst = appendShard(dst, &r.Aggregate)

	for i := range r.Shards {
		dst = append(dst, "\r\n# Shard "...)
		dst = strconv.AppendInt(dst, int64(r.Shards[i].ID), 10)
		dst = append(dst, CRLF...)
		dst = appendShard(dst, &r.Shards[i])
	}
	return dst
}

func appendShard(dst []byte, s *ShardReport) []byte {
	dst = appendInt(dst, "keys", s.Keys)
	dst = appendInt(dst, "bytes", s.Bytes)
	dst = appendInt(dst, "capacity", s.Capacity)
	dst = appendUint(dst, "hits", s.Hits)
	dst = appendUint(dst, "misses", s.Misses)
	dst = appendUint(dst, "puts", s.Puts)
	dst = appendUint(dst, "deletes", s.Deletes)
	dst = appendUint(dst, "evictions", s.Evictions)
	dst = appendUint(dst, "expired", s.Expired)
	dst = appendUint(dst, "rejected", s.Rejected)
	dst = appendUint(dst, "compactions", s.Compactions)
	return appendFloat(dst, "hit_rate", s.HitRate())
}

func appendField(dst []byte, name, value string) []byte {
	dst = append(dst, name...)
	dst = append(dst, ':')
	dst = append(dst, value...)
	return append(dst, CRLF...)
}

func appendInt(dst []byte, name string, v int64) []byte {
	dst = append(dst, name...)
	dst = append(dst, ':')
	dst = strconv.AppendInt(dst, v, 10)
	return append(dst, CRLF...)
}

func appendUint(dst []byte, name string, v uint64) []byte {
	dst = append(dst, name...)
	dst = append(dst, ':')
	dst = strconv.AppendUint(dst, v, 10)
	return append(dst, CRLF...)
}

func appendFloat(dst []byte, name string, v float64) []byte {
	dst = append(dst, name...)
	dst = append(dst, ':')
	dst = strconv.AppendFloat(dst, v, 'f', 4, 64)
	return append(dst, CRLF...)
}

// buildFlatBuffer serializes the report into b and returns the finished
// bytes, which are owned by b
func (r *StatsReport) buildFlatBuffer(b *flatbuffers.Builder) []byte {
	shardOffs := make([]flatbuffers.UOffsetT, len(r.Shards))
	for i := range r.Shards {
		shardOffs[i] = buildShard(b, &r.Shards[i])
	}
	aggOff := buildShard(b, &r.Aggregate)

	statsfb.StatsStartShardsVector(b, len(shardOffs))
	for i := len(shardOffs) - 1; i >= 0; i-- {
		b.PrependUOffsetT(shardOffs[i])
	}
	shardsOff := b.EndVector(len(shardOffs))

	hasherOff := b.CreateString(r.Hasher)
	policyOff := b.CreateString(r.Policy)

	statsfb.StatsStart(b)
	statsfb.StatsAddHasher(b, hasherOff)
	statsfb.StatsAddPolicy(b, policyOff)
	statsfb.StatsAddUptimeSeconds(b, r.UptimeSeconds)
	statsfb.StatsAddConnectedClients(b, r.ConnectedClients)
	statsfb.StatsAddTotalConnections(b, r.TotalConnections)
	statsfb.StatsAddTotalCommands(b, r.TotalCommands)
	statsfb.StatsAddPoolHits(b, r.PoolHits)
	statsfb.StatsAddPoolMisses(b, r.PoolMisses)
	statsfb.StatsAddAggregate(b, aggOff)
	statsfb.StatsAddShards(b, shardsOff)
	b.Finish(statsfb.StatsEnd(b))

	return b.FinishedBytes()
}

func buildShard(b *flatbuffers.Builder, s *ShardReport) flatbuffers.UOffsetT {
	statsfb.ShardStatsStart(b)
	statsfb.ShardStatsAddId(b, int32(s.ID))
	statsfb.ShardStatsAddKeys(b, s.Keys)
	statsfb.ShardStatsAddBytes(b, s.Bytes)
	statsfb.ShardStatsAddCapacity(b, s.Capacity)
	statsfb.ShardStatsAddHits(b, s.Hits)
	statsfb.ShardStatsAddMisses(b, s.Misses)
	statsfb.ShardStatsAddPuts(b, s.Puts)
	statsfb.ShardStatsAddDeletes(b, s.Deletes)
	statsfb.ShardStatsAddEvictions(b, s.Evictions)
	statsfb.ShardStatsAddExpired(b, s.Expired)
	statsfb.ShardStatsAddRejected(b, s.Rejected)
	statsfb.ShardStatsAddCompactions(b, s.Compactions)
	return statsfb.ShardStatsEnd(b)
}

// DecodeStats parses a binary STATS payload
func DecodeStats(buf []byte) (r *StatsReport, err error) {
	if len(buf) < flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("stats payload too short: %d bytes", len(buf))
	}
	// The generated accessors index without bounds checks of their own
	defer func() {
		if rec := recover(); rec != nil {
			r, err = nil, fmt.Errorf("malformed stats payload: %v", rec)
		}
	}()

	fb := statsfb.GetRootAsStats(buf, 0)
	r = &StatsReport{
		Hasher:           string(fb.Hasher()),
		Policy:           string(fb.Policy()),
		UptimeSeconds:    fb.UptimeSeconds(),
		ConnectedClients: fb.ConnectedClients(),
		TotalConnections: fb.TotalConnections(),
		TotalCommands:    fb.TotalCommands(),
		PoolHits:         fb.PoolHits(),
		PoolMisses:       fb.PoolMisses(),
	}

	var shard statsfb.ShardStats
	if fb.Aggregate(&shard) != nil {
		r.Aggregate = shardFromFB(&shard)
	}
	r.Shards = make([]ShardReport, fb.ShardsLength())
	for i := range r.Shards {
		if fb.Shards(&shard, i) {
			r.Shards[i] = shardFromFB(&shard)
		}
	}
	return r, nil
}

func shardFromFB(s *statsfb.ShardStats) ShardReport {
	return ShardReport{
		ID:          int(s.Id()),
		Keys:        s.Keys(),
		Bytes:       s.Bytes(),
		Capacity:    s.Capacity(),
		Hits:        s.Hits(),
		Misses:      s.Misses(),
		Puts:        s.Puts(),
		Deletes:     s.Deletes(),
		Evictions:   s.Evictions(),
		Expired:     s.Expired(),
		Rejected:    s.Rejected(),
		Compactions: s.Compactions(),
	}
}
