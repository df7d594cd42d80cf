// Package script runs user-supplied Lua transforms over card labels.
package script

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// Transform wraps a Lua chunk that defines a global function
//
//	function transform(label) ... end
//
// returning the rewritten label as a string. The interpreter is sandboxed:
// only the base, string and table libraries are loaded, so chunks cannot
// touch the filesystem, the network or the process.
//
// A Transform owns one Lua state and must not be used from more than one
// goroutine at a time. Close releases the state.
type Transform struct {
	state *lua.LState
	fn    lua.LValue
}

// New compiles chunk and resolves its transform function.
func New(chunk string) (*Transform, error) {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.StringLibName, lua.OpenString},
		{lua.TabLibName, lua.OpenTable},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	// The base library's dofile and loadfile read files from disk.
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)
	if err := L.DoString(chunk); err != nil {
		L.Close()
		return nil, fmt.Errorf("lua chunk failed to load: %w", err)
	}
	fn := L.GetGlobal("transform")
	if fn.Type() != lua.LTFunction {
		L.Close()
		return nil, fmt.Errorf("lua chunk does not define a transform function (got %s)", fn.Type())
	}
	return &Transform{state: L, fn: fn}, nil
}

// Apply rewrites a single label.
func (t *Transform) Apply(label string) (string, error) {
	err := t.state.CallByParam(lua.P{Fn: t.fn, NRet: 1, Protect: true}, lua.LString(label))
	if err != nil {
		return "", fmt.Errorf("transform(%q): %w", label, err)
	}
	ret := t.state.Get(-1)
	t.state.Pop(1)
	s, ok := ret.(lua.LString)
	if !ok {
		return "", fmt.Errorf("transform(%q) returned %s, want string", label, ret.Type())
	}
	return string(s), nil
}

// Close releases the Lua state. The Transform must not be used afterwards.
func (t *Transform) Close() { t.state.Close() }
