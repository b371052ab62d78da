package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/raniellyferreira/arenacache/client"
	"github.com/raniellyferreira/arenacache/protocol"
)

// diff compares the keyspace of two servers and returns the exit code
func diff(refAddr, sutAddr string, opts []client.Option) int {
	fmt.Printf("Comparing keyspace information:\n")
	fmt.Printf("  Reference: %s\n", refAddr)
	fmt.Printf("  System:    %s\n", sutAddr)
	fmt.Println()

	ref, err := fetchStats(refAddr, opts)
	if err != nil {
		log.Fatalf("Failed to get stats from reference %s: %v", refAddr, err)
	}
	sut, err := fetchStats(sutAddr, opts)
	if err != nil {
		log.Fatalf("Failed to get stats from system %s: %v", sutAddr, err)
	}

	if compareReports(os.Stdout, ref, sut) > 0 {
		return 1
	}
	return 0
}

// compareReports prints per-shard differences and returns how many
// critical differences were found. Key counts are critical; byte counts
// only differ in layout and are reported as warnings.
func compareReports(w io.Writer, ref, sut *protocol.StatsReport) int {
	differences := 0

	if ref.Hasher != sut.Hasher || len(ref.Shards) != len(sut.Shards) {
		fmt.Fprintf(w, "Shard layout differs: REF=%d/%s, SUT=%d/%s\n",
			len(ref.Shards), ref.Hasher, len(sut.Shards), sut.Hasher)
		fmt.Fprintln(w, "Comparing aggregates only")
		differences += compareShard(w, "total", ref.Aggregate, sut.Aggregate)
	} else {
		for i := range ref.Shards {
			differences += compareShard(w, fmt.Sprintf("shard %d", i), ref.Shards[i], sut.Shards[i])
		}
	}

	fmt.Fprintln(w)
	if differences == 0 {
		fmt.Fprintln(w, "SUCCESS: No critical differences found")
	} else {
		fmt.Fprintf(w, "FAILURE: %d critical differences found\n", differences)
	}
	return differences
}

func compareShard(w io.Writer, label string, ref, sut protocol.ShardReport) int {
	fmt.Fprintf(w, "%s:\n", label)
	if ref.Keys != sut.Keys {
		fmt.Fprintf(w, "  Keys differ: REF=%d, SUT=%d\n", ref.Keys, sut.Keys)
		return 1
	}
	if ref.Bytes != sut.Bytes {
		fmt.Fprintf(w, "  Bytes differ: REF=%d, SUT=%d (may be acceptable)\n", ref.Bytes, sut.Bytes)
	}
	fmt.Fprintf(w, "  Match: keys=%d\n", ref.Keys)
	return 0
}
