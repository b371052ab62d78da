package storage

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Hasher computes the 64-bit routing hash of a key
type Hasher interface {
	Sum64(key []byte) uint64
	Name() string
}

const (
	HashAuto   = "auto"
	HashXXHash = "xxhash"
	HashFNV1a  = "fnv1a"
)

// XXHash routes with xxhash64, which has assembly implementations on
// amd64 and arm64
type XXHash struct{}

func (XXHash) Sum64(key []byte) uint64 { return xxhash.Sum64(key) }
func (XXHash) Name() string            { return HashXXHash }

// FNV1a is the portable routing hash
type FNV1a struct{}

const (
	fnvOffset64 = 14695981039346656037
	fnvPrime64  = 1099511628211
)

func (FNV1a) Sum64(key []byte) uint64 {
	h := uint64(fnvOffset64)
	for _, c := range key {
		h ^= uint64(c)
		h *= fnvPrime64
	}
	return h
}

func (FNV1a) Name() string { return HashFNV1a }

// SelectHasher resolves a hasher by name. "auto" (or empty) picks xxhash on
// architectures where it is accelerated and FNV-1a elsewhere; the choice is
// made once and never re-evaluated per key.
func SelectHasher(name string) (Hasher, error) {
	switch strings.ToLower(name) {
	case "", HashAuto:
		switch runtime.GOARCH {
		case "amd64", "arm64":
			return XXHash{}, nil
		default:
			return FNV1a{}, nil
		}
	case HashXXHash:
		return XXHash{}, nil
	case HashFNV1a:
		return FNV1a{}, nil
	default:
		return nil, fmt.Errorf("unknown hash algorithm %q", name)
	}
}

// nextPowerOf2 returns the next power of 2 >= n
func nextPowerOf2(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}
