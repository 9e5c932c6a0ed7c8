package bind

import (
	lua "github.com/yuin/gopher-lua"
)

// Options is a bitmask of per-class behavior flags. The active set lives
// as a number cell in the class metatable, so scripts holding a metatable
// reference observe option changes made after registration.
type Options uint32

const (
	// AllowOverride lets writes replace fixed members; the previous value
	// stays reachable under its super name.
	AllowOverride Options = 1 << iota
	// Extensible installs the default write fallback that stores
	// script-defined members on the class.
	Extensible
	// VisibleMetatables leaves class metatables readable from scripts.
	VisibleMetatables
	// PanicInterop converts panics in native callables to script errors.
	PanicInterop
)

// DefaultOptions returns the flag set new classes start with.
func DefaultOptions() Options { return PanicInterop }

// Has reports whether flag is set.
func (o Options) Has(flag Options) bool { return o&flag != 0 }

// Internal metatable keys. Everything prefixed __lb_ is part of the
// metatable protocol and never visible as a member.
const (
	keyTypeName = "__lb_type"
	keyOptions  = "__lb_options"
	keyMeta     = "__lb_meta"
	keyClass    = "__lb_class"
	keyConst    = "__lb_const"
)

// GetClassOptions reads the option cell from a class metatable.
func GetClassOptions(mt *lua.LTable) Options {
	if mt == nil {
		return 0
	}
	if n, ok := mt.RawGetString(keyOptions).(lua.LNumber); ok {
		return Options(n)
	}
	return 0
}

// SetClassOptions replaces the option cell in a class metatable.
func SetClassOptions(mt *lua.LTable, opts Options) {
	mt.RawSetString(keyOptions, lua.LNumber(opts))
}
