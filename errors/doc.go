// Package errors provides structured error types for the lua-bridge library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: member path, Go/Lua type names, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
//		Path("Vec", "scale").
//		GoType("float64").
//		LuaType("string").
//		Detail("cannot convert string to number").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.TypeMismatch(errors.PhaseDecode, path, "float64", "string")
//	err := errors.Overflow(errors.PhaseDecode, path, 300, "int8")
//
// All errors implement the standard error interface and support errors.Is/As.
// Messages that cross into a running script are flattened to their Detail
// text at the boundary; the structure exists for the Go side.
package errors
