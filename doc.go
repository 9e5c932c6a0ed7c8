// Package luabridge exposes native Go objects, functions and data members
// to an embedded Lua runtime (gopher-lua) and lets scripted code call back
// into the host.
//
// # Architecture Overview
//
// The library is organized into packages with distinct responsibilities:
//
//	lua-bridge/
//	├── bind/      Dispatch core: member resolution (__index/__newindex),
//	│              invocation adapters, overload resolution, object
//	│              construction and lifecycle
//	├── stack/     Type-directed marshalling between Go values and the
//	│              Lua stack
//	├── errors/    Structured error types for diagnostics
//	└── cmd/luab/  Script runner with an interactive class inspector
//
// # Quick Start
//
// Bind a class and run a script:
//
//	L := lua.NewState()
//	defer L.Close()
//
//	r := bind.NewRegistry(L)
//	r.Global().
//	    Class("Vec", bind.DefaultOptions()).
//	    Constructor(func(x, y float64) *Vec { return &Vec{x, y} }).
//	    Method("length", (*Vec).Length).
//	    Field("X").
//	    Field("Y")
//
//	err := L.DoString(`local v = Vec(3, 4); print(v:length())`)
//
// # Dispatch Model
//
// A scripted index read, index write or call enters the member resolution
// engine, which walks the receiver's class metadata chain (own members,
// property tables, fallback hooks, then the parent). Calls land on
// generated adapters that materialize arguments from the Lua stack, invoke
// the native callable (possibly selected among several overloads by arity
// and trial invocation) and push the result back.
//
// # Thread Safety
//
// A Lua state and everything bound to it belongs to a single goroutine.
// Registration must complete before scripted code runs; after that the
// binding metadata is read-mostly (only option flags and fallback hooks
// may be mutated, and only from the owning goroutine).
package luabridge
