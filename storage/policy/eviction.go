// Package policy decides which entry a full shard gives up to make room
// for a write.
package policy

import (
	"fmt"
	"strings"
)

const (
	NameReject     = "reject"
	NameSampledLRU = "sampled-lru"

	// DefaultSamples matches the sample size Redis uses for its
	// approximated LRU.
	DefaultSamples = 5
)

// Candidate is one sampled entry offered to a policy
type Candidate struct {
	Key        string
	LastAccess int64 // unix nanoseconds
	Size       int
}

// EvictionPolicy selects a victim among sampled candidates.
type EvictionPolicy interface {
	// Name identifies the policy in logs and STATS
	Name() string
	// Samples is how many entries the shard should offer per decision
	Samples() int
	// Victim returns the index of the candidate to evict, or false when
	// the policy refuses to evict.
	Victim(candidates []Candidate) (int, bool)
}

// Reject never evicts; a write that does not fit fails with a store-full
// error.
type Reject struct{}

func (Reject) Name() string                   { return NameReject }
func (Reject) Samples() int                   { return DefaultSamples }
func (Reject) Victim([]Candidate) (int, bool) { return 0, false }

// SampledLRU approximates least-recently-used by evicting the
// oldest-accessed entry of a small random sample.
type SampledLRU struct {
	N int
}

func (p SampledLRU) Name() string { return NameSampledLRU }

func (p SampledLRU) Samples() int {
	if p.N <= 0 {
		return DefaultSamples
	}
	return p.N
}

func (p SampledLRU) Victim(candidates []Candidate) (int, bool) {
	if len(candidates) == 0 {
		return 0, false
	}
	victim := 0
	for i := 1; i < len(candidates); i++ {
		if candidates[i].LastAccess < candidates[victim].LastAccess {
			victim = i
		}
	}
	return victim, true
}

// Parse builds a policy from its configured name
func Parse(name string, samples int) (EvictionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", NameReject:
		return Reject{}, nil
	case NameSampledLRU, "lru":
		return SampledLRU{N: samples}, nil
	default:
		return nil, fmt.Errorf("unknown eviction policy %q", name)
	}
}
