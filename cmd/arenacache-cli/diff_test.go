package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/raniellyferreira/arenacache/protocol"
)

func report(hasher string, keys ...int64) *protocol.StatsReport {
	r := &protocol.StatsReport{Hasher: hasher}
	for i, k := range keys {
		r.Shards = append(r.Shards, protocol.ShardReport{ID: i, Keys: k, Bytes: k * 10})
		r.Aggregate.Keys += k
	}
	return r
}

func TestCompareReports(t *testing.T) {
	tests := []struct {
		name     string
		ref, sut *protocol.StatsReport
		want     int
		contains string
	}{
		{
			name:     "identical",
			ref:      report("xxhash", 1, 2, 3, 4),
			sut:      report("xxhash", 1, 2, 3, 4),
			want:     0,
			contains: "SUCCESS",
		},
		{
			name:     "one shard differs",
			ref:      report("xxhash", 1, 2, 3, 4),
			sut:      report("xxhash", 1, 2, 0, 4),
			want:     1,
			contains: "Keys differ: REF=3, SUT=0",
		},
		{
			name:     "different layout same total",
			ref:      report("xxhash", 5, 5),
			sut:      report("fnv1a", 2, 3, 4, 1),
			want:     0,
			contains: "Comparing aggregates only",
		},
		{
			name:     "different layout different total",
			ref:      report("xxhash", 5, 5),
			sut:      report("xxhash", 1, 1, 1),
			want:     1,
			contains: "FAILURE: 1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			got := compareReports(&buf, tt.ref, tt.sut)
			if got != tt.want {
				t.Errorf("compareReports() = %d, want %d\n%s", got, tt.want, buf.String())
			}
			if !strings.Contains(buf.String(), tt.contains) {
				t.Errorf("output missing %q:\n%s", tt.contains, buf.String())
			}
		})
	}
}
