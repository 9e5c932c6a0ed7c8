// Package bind is the dispatch core: it connects Lua metatable events to
// native Go members registered on classes and namespaces.
//
// # Key Types
//
//	Registry       - Per-state root; owns all class metadata
//	Namespace      - Scope for functions, properties and classes
//	ClassBuilder   - Fluent registration of one class
//	Metadata       - Resolution record behind a metatable
//	Handle         - Ownership-tagged wrapper around a native object
//	Shared         - Refcounted container for shared ownership
//
// # Member Resolution
//
// Every bound class installs __index and __newindex closures that walk the
// class chain one level at a time:
//
//	read:  fallback (override priority) → members → getters →
//	       fallback → parent
//	write: setters → write fallback → parent
//
// Reads of unknown names yield nil; writes of unknown names raise. The
// walk is iterative with a bounded depth, so a corrupted parent chain
// fails the call instead of hanging the state.
//
// # Invocation
//
// Registered Go functions are adapted by reflection: arguments are
// materialized left-to-right from the stack before the callable runs, a
// trailing error return becomes a script error, and (by default) a panic
// in the callable is caught and re-raised as a script error. Raw
// lua.LGFunction callbacks bypass adaptation entirely.
//
// Registering the same member name more than once builds an overload set:
// candidates are filtered by argument count, then tried in registration
// order under a protected call until one succeeds.
//
// # Lifecycle
//
// Objects enter Lua as userdata wrapping a Handle. The handle carries the
// ownership mode fixed at construction and releases its payload exactly
// once, from whichever side notices collection first: the __gc metamethod
// or the Go runtime finalizer on the userdata.
package bind
