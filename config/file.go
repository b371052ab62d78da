// Package config loads arenacache settings from Lua files and the
// environment.
//
// A configuration file is a Lua chunk that assigns globals:
//
//	listen          = ":7379"
//	shard_count     = 16
//	shard_capacity  = 64 * MB
//	max_value_size  = "1MB"
//	eviction_policy = "sampled-lru"
//	idle_timeout    = "30s"
//	metrics_addr    = env("METRICS_ADDR", ":9121")
//
// The chunk runs in a sandbox with only the base, table, string and math
// libraries and a short deadline. Unknown globals are rejected so typos do
// not silently fall back to defaults. Environment variables named
// ARENACACHE_<SETTING> override file values.
package config

import (
	"fmt"
	"sort"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// File is the decoded configuration. Only settings that were assigned are
// turned into options; everything else keeps the library default.
type File struct {
	Listen           string
	ShardCount       int
	ShardCapacity    int
	MaxKeySize       int
	MaxValueSize     int
	BufferSize       int
	PoolSize         int
	IdleTimeout      time.Duration
	WriteTimeout     time.Duration
	MaxConns         int
	EvictionPolicy   string
	EvictionSamples  int
	MaxEvictPerWrite int
	Hash             string
	LogLevel         string
	MetricsAddr      string
	StatsInterval    time.Duration

	CleanupInterval         time.Duration
	CleanupSampleSize       int
	CleanupMaxRounds        int
	CleanupBatchSize        int
	CleanupExpiredThreshold float64

	seen map[string]bool
}

// Has reports whether setting was assigned by the file or the environment
func (f *File) Has(setting string) bool {
	return f.seen[setting]
}

// Settings returns the assigned setting names in order
func (f *File) Settings() []string {
	out := make([]string, 0, len(f.seen))
	for name := range f.seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

type kind int

const (
	kindString kind = iota
	kindInt
	kindSize
	kindDuration
	kindFloat
)

type setting struct {
	kind kind
	str  func(f *File) *string
	num  func(f *File) *int
	dur  func(f *File) *time.Duration
	flt  func(f *File) *float64
}

func str(fn func(f *File) *string) setting { return setting{kind: kindString, str: fn} }

func integer(fn func(f *File) *int) setting { return setting{kind: kindInt, num: fn} }

func size(fn func(f *File) *int) setting { return setting{kind: kindSize, num: fn} }

func dur(fn func(f *File) *time.Duration) setting { return setting{kind: kindDuration, dur: fn} }

func float(fn func(f *File) *float64) setting { return setting{kind: kindFloat, flt: fn} }

var settings = map[string]setting{
	"listen":              str(func(f *File) *string { return &f.Listen }),
	"shard_count":         integer(func(f *File) *int { return &f.ShardCount }),
	"shard_capacity":      size(func(f *File) *int { return &f.ShardCapacity }),
	"max_key_size":        size(func(f *File) *int { return &f.MaxKeySize }),
	"max_value_size":      size(func(f *File) *int { return &f.MaxValueSize }),
	"buffer_size":         size(func(f *File) *int { return &f.BufferSize }),
	"pool_size":           integer(func(f *File) *int { return &f.PoolSize }),
	"idle_timeout":        dur(func(f *File) *time.Duration { return &f.IdleTimeout }),
	"write_timeout":       dur(func(f *File) *time.Duration { return &f.WriteTimeout }),
	"max_conns":           integer(func(f *File) *int { return &f.MaxConns }),
	"eviction_policy":     str(func(f *File) *string { return &f.EvictionPolicy }),
	"eviction_samples":    integer(func(f *File) *int { return &f.EvictionSamples }),
	"max_evict_per_write": integer(func(f *File) *int { return &f.MaxEvictPerWrite }),
	"hash":                str(func(f *File) *string { return &f.Hash }),
	"log_level":           str(func(f *File) *string { return &f.LogLevel }),
	"metrics_addr":        str(func(f *File) *string { return &f.MetricsAddr }),
	"stats_interval":      dur(func(f *File) *time.Duration { return &f.StatsInterval }),

	"cleanup_interval":          dur(func(f *File) *time.Duration { return &f.CleanupInterval }),
	"cleanup_sample_size":       integer(func(f *File) *int { return &f.CleanupSampleSize }),
	"cleanup_max_rounds":        integer(func(f *File) *int { return &f.CleanupMaxRounds }),
	"cleanup_batch_size":        integer(func(f *File) *int { return &f.CleanupBatchSize }),
	"cleanup_expired_threshold": float(func(f *File) *float64 { return &f.CleanupExpiredThreshold }),
}

// set assigns one setting from a Lua value. Strings are accepted for every
// kind so environment overrides share this path.
func (f *File) set(name string, v lua.LValue) error {
	s, ok := settings[name]
	if !ok {
		return fmt.Errorf("unknown setting %q", name)
	}

	var err error
	switch s.kind {
	case kindString:
		sv, ok := v.(lua.LString)
		if !ok {
			return fmt.Errorf("%s: expected string, got %s", name, v.Type())
		}
		*s.str(f) = string(sv)
	case kindInt:
		*s.num(f), err = toInt(v)
	case kindSize:
		*s.num(f), err = toSize(v)
	case kindDuration:
		*s.dur(f), err = toDuration(v)
	case kindFloat:
		*s.flt(f), err = toFloat(v)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	if f.seen == nil {
		f.seen = make(map[string]bool)
	}
	f.seen[name] = true
	return nil
}
