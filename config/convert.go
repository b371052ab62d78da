package config

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	lua "github.com/yuin/gopher-lua"
)

const (
	kb = 1 << 10
	mb = 1 << 20
	gb = 1 << 30
)

func toInt(v lua.LValue) (int, error) {
	switch n := v.(type) {
	case lua.LNumber:
		f := float64(n)
		if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return 0, fmt.Errorf("expected integer, got %v", f)
		}
		return int(f), nil
	case lua.LString:
		i, err := strconv.Atoi(strings.TrimSpace(string(n)))
		if err != nil {
			return 0, fmt.Errorf("expected integer, got %q", string(n))
		}
		return i, nil
	default:
		return 0, fmt.Errorf("expected integer, got %s", v.Type())
	}
}

func toFloat(v lua.LValue) (float64, error) {
	switch n := v.(type) {
	case lua.LNumber:
		return float64(n), nil
	case lua.LString:
		f, err := strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
		if err != nil {
			return 0, fmt.Errorf("expected number, got %q", string(n))
		}
		return f, nil
	default:
		return 0, fmt.Errorf("expected number, got %s", v.Type())
	}
}

// toSize accepts a byte count or a string with a KB/MB/GB suffix
func toSize(v lua.LValue) (int, error) {
	if s, ok := v.(lua.LString); ok {
		return parseSize(string(s))
	}
	return toInt(v)
}

// parseSize parses "512", "64KB", "64k", "1.5MB" or "2GB" (powers of 1024)
func parseSize(s string) (int, error) {
	t := strings.ToUpper(strings.TrimSpace(s))
	t = strings.TrimSuffix(t, "B")

	mult := 1
	switch {
	case strings.HasSuffix(t, "K"):
		mult, t = kb, strings.TrimSuffix(t, "K")
	case strings.HasSuffix(t, "M"):
		mult, t = mb, strings.TrimSuffix(t, "M")
	case strings.HasSuffix(t, "G"):
		mult, t = gb, strings.TrimSuffix(t, "G")
	}

	f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
	if err != nil || f < 0 {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	n := f * float64(mult)
	if n > 1<<53 || n != math.Trunc(n) {
		return 0, fmt.Errorf("invalid size %q", s)
	}
	return int(n), nil
}

// toDuration accepts seconds as a number or a Go duration string. A bare
// numeric string is read as seconds too.
func toDuration(v lua.LValue) (time.Duration, error) {
	switch d := v.(type) {
	case lua.LNumber:
		return time.Duration(float64(d) * float64(time.Second)), nil
	case lua.LString:
		s := strings.TrimSpace(string(d))
		if parsed, err := time.ParseDuration(s); err == nil {
			return parsed, nil
		}
		secs, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", s)
		}
		return time.Duration(secs * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("expected duration, got %s", v.Type())
	}
}
