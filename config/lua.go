package config

import (
	"context"
	"fmt"
	"os"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// evalTimeout bounds how long a configuration chunk may run
const evalTimeout = 5 * time.Second

// Load reads and evaluates the Lua file at path
func Load(path string) (*File, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	f, err := ParseContext(context.Background(), string(src))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse evaluates a Lua configuration chunk
func Parse(src string) (*File, error) {
	return ParseContext(context.Background(), src)
}

// ParseContext evaluates a Lua configuration chunk, aborting when ctx is
// done or evalTimeout elapses
func ParseContext(ctx context.Context, src string) (*File, error) {
	ctx, cancel := context.WithTimeout(ctx, evalTimeout)
	defer cancel()

	L, err := newState()
	if err != nil {
		return nil, err
	}
	defer L.Close()
	L.SetContext(ctx)

	// Globals present before the chunk runs belong to the sandbox
	builtin := make(map[string]bool)
	L.G.Global.ForEach(func(k, _ lua.LValue) {
		builtin[k.String()] = true
	})

	if err := L.DoString(src); err != nil {
		return nil, fmt.Errorf("evaluate config: %w", err)
	}

	f := &File{}
	var setErr error
	L.G.Global.ForEach(func(k, v lua.LValue) {
		if setErr != nil {
			return
		}
		name, ok := k.(lua.LString)
		if !ok || builtin[string(name)] {
			return
		}
		// Local helper functions are allowed
		if _, isFn := v.(*lua.LFunction); isFn {
			return
		}
		setErr = f.set(string(name), v)
	})
	if setErr != nil {
		return nil, setErr
	}
	return f, nil
}

// newState creates a Lua state with only the safe standard libraries and
// the configuration helpers loaded
func newState() (*lua.LState, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})

	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		if err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.open),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name)); err != nil {
			L.Close()
			return nil, fmt.Errorf("open %s library: %w", lib.name, err)
		}
	}

	// No file access from configuration
	for _, name := range []string{"dofile", "loadfile", "load", "loadstring", "require", "module"} {
		L.SetGlobal(name, lua.LNil)
	}

	L.SetGlobal("KB", lua.LNumber(kb))
	L.SetGlobal("MB", lua.LNumber(mb))
	L.SetGlobal("GB", lua.LNumber(gb))
	L.SetGlobal("env", L.NewFunction(luaEnv))
	return L, nil
}

// luaEnv implements env(name [, default])
func luaEnv(L *lua.LState) int {
	name := L.CheckString(1)
	if v, ok := os.LookupEnv(name); ok {
		L.Push(lua.LString(v))
		return 1
	}
	if L.GetTop() >= 2 {
		L.Push(L.Get(2))
		return 1
	}
	L.Push(lua.LNil)
	return 1
}
