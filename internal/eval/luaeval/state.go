package luaeval

import (
	lua "github.com/yuin/gopher-lua"
)

// newState creates a Lua state with only the safe standard libraries.
func newState() *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs: true,
	})

	lua.OpenBase(L)
	lua.OpenTable(L)
	lua.OpenString(L)
	lua.OpenMath(L)

	// Intentionally not opened:
	// - io (file system access)
	// - os (system calls, execute)
	// - debug (can bypass the sandbox)
	// - package (can load arbitrary modules)

	return L
}
