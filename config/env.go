package config

import (
	"os"
	"sort"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// EnvPrefix prefixes every environment override
const EnvPrefix = "ARENACACHE_"

// LookupFunc matches os.LookupEnv
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides f with ARENACACHE_* variables from the process
// environment
func ApplyEnv(f *File) error {
	return ApplyLookup(f, os.LookupEnv)
}

// ApplyLookup overrides f with ARENACACHE_<SETTING> values returned by
// lookup, e.g. ARENACACHE_SHARD_COUNT=32 or ARENACACHE_IDLE_TIMEOUT=1m
func ApplyLookup(f *File, lookup LookupFunc) error {
	names := make([]string, 0, len(settings))
	for name := range settings {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		v, ok := lookup(EnvName(name))
		if !ok || v == "" {
			continue
		}
		if err := f.set(name, lua.LString(v)); err != nil {
			return err
		}
	}
	return nil
}

// EnvName returns the environment variable that overrides setting
func EnvName(setting string) string {
	return EnvPrefix + strings.ToUpper(setting)
}
