// Package luaeval runs snippet scriptlets and context guards on an
// embedded Lua interpreter.
//
// gopher-lua's LState is not goroutine-safe, so all interpreter work is
// serialized through a single owner goroutine; callers from any goroutine
// submit operations over a channel and block for the result. The
// interpreter opens only the safe standard libraries (base, table,
// string, math); io, os, debug and package stay closed.
//
// Scriptlets communicate through a per-execution `snip` table: the
// scriptlet assigns its result to snip.rv and reads the expansion
// bindings (placeholder values, filename, indentation, match info) from
// the same table.
package luaeval
