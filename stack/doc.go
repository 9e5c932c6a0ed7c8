// Package stack provides type-directed marshalling between Go values and
// the Lua stack.
//
// The marshaller is the only component that touches raw stack cells; every
// other package converts values through it.
//
// # Conversion Rules
//
// Conversions are driven by the Go target type, and membership is decided
// by representability of the cell's value, never by the cell's tag width:
//
//	Go type          Lua cell        Rule
//	─────────────────────────────────────────────────────────────
//	bool             boolean         booleans only, no coercion
//	int..int64       number          integral value, in range
//	uint..uint64     number          integral value, >= 0, in range
//	float32          number          magnitude within float32 range
//	float64          number          any number
//	Char             string          exactly one rune
//	string, []byte   string          byte-for-byte
//	*T               nil or inner    nil maps to nil pointer
//	[]T              table           sequence part, element-wise
//	[N]T             table           exactly N elements
//	map[K]V          table           pair-wise
//	struct           table           exported fields by name
//	lua.LValue &c.   any / tagged    passed through unconverted
//
// The same number cell can therefore be an instance of several numeric
// types at once: 2^63 is a valid uint64 and an invalid int64.
//
// Bound native objects arrive as userdata; a cell whose payload implements
// the Native interface is unwrapped before the assignability check, so a
// handle type can wrap its payload without the marshaller knowing about it.
//
// # Key Functions
//
//	Get[T]        - Read the cell at an index as T
//	Push          - Push a Go value as one cell
//	IsInstance[T] - Membership test, no error, no stack effect
//
// Get never raises into the running script. Failures are structured
// errors (decode phase) for the caller to format at the boundary.
//
// # Thread Safety
//
// All functions operate on the caller's *lua.LState and inherit its
// single-goroutine discipline.
package stack
