package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDecode    Phase = "decode"    // Lua stack to Go
	PhaseEncode    Phase = "encode"    // Go to Lua stack
	PhaseResolve   Phase = "resolve"   // member resolution
	PhaseDispatch  Phase = "dispatch"  // call dispatch
	PhaseConstruct Phase = "construct" // object construction
	PhaseRegister  Phase = "register"  // class/namespace registration
	PhaseRuntime   Phase = "runtime"   // runtime operations
)

// Kind categorizes the error
type Kind string

const (
	KindTypeMismatch      Kind = "type_mismatch"
	KindOverflow          Kind = "overflow"
	KindNotFound          Kind = "not_found"
	KindImmutable         Kind = "immutable"
	KindReadOnly          Kind = "read_only"
	KindNotWritable       Kind = "not_writable"
	KindArityMismatch     Kind = "arity_mismatch"
	KindOverloadExhausted Kind = "overload_exhausted"
	KindUncommitted       Kind = "uncommitted"
	KindNativeFailure     Kind = "native_failure"
	KindInvalidInput      Kind = "invalid_input"
	KindProtocol          Kind = "protocol"
)

// Error is the structured error type used throughout the library
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	GoType  string
	LuaType string
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.LuaType != "" {
		b.WriteString(": ")
		if e.GoType != "" && e.LuaType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", Lua type ")
			b.WriteString(e.LuaType)
		} else if e.GoType != "" {
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		} else {
			b.WriteString("Lua type ")
			b.WriteString(e.LuaType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.LuaType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the member path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// LuaType sets the Lua type name
func (b *Builder) LuaType(t string) *Builder {
	b.err.LuaType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// TypeMismatch creates a type mismatch error
func TypeMismatch(phase Phase, path []string, goType, luaType string) *Error {
	return &Error{
		Phase:   phase,
		Kind:    KindTypeMismatch,
		Path:    path,
		GoType:  goType,
		LuaType: luaType,
	}
}

// Overflow creates an overflow error for a value outside the target's range
func Overflow(phase Phase, path []string, value any, targetType string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindOverflow,
		Path:   path,
		GoType: targetType,
		Detail: fmt.Sprintf("value %v not representable as %s", value, targetType),
		Value:  value,
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// Immutable creates an error for writing over a fixed class member
func Immutable(name string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindImmutable,
		Detail: fmt.Sprintf("immutable member '%s'", name),
	}
}

// ReadOnly creates an error for writing a property without a setter
func ReadOnly(name string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindReadOnly,
		Detail: fmt.Sprintf("'%s' is read-only", name),
	}
}

// NoMember creates an error for writing through a class with no writable surface
func NoMember(name string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("no member named '%s'", name),
	}
}

// NotWritable creates an error for a write that exhausted the class chain
func NotWritable(name string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindNotWritable,
		Detail: fmt.Sprintf("no writable member '%s'", name),
	}
}

// DecodeArg wraps a marshalling failure with its 1-based argument position
func DecodeArg(index int, cause error) *Error {
	return &Error{
		Phase:  PhaseDecode,
		Kind:   KindTypeMismatch,
		Detail: fmt.Sprintf("Error decoding argument #%d: %s", index, cause.Error()),
		Cause:  cause,
	}
}

// NativeFailure wraps an error or recovered panic from a native callable
func NativeFailure(name string, cause error) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindNativeFailure,
		Detail: name,
		Cause:  cause,
	}
}

// Uncommitted creates an error for using a handle before construction committed
func Uncommitted(what string) *Error {
	return &Error{
		Phase:  PhaseConstruct,
		Kind:   KindUncommitted,
		Detail: fmt.Sprintf("%s used before construction completed", what),
	}
}

// Protocol creates an error for a violated metatable protocol invariant
func Protocol(detail string) *Error {
	return &Error{
		Phase:  PhaseResolve,
		Kind:   KindProtocol,
		Detail: detail,
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Registration creates a registration error
func Registration(scope, name string, cause error) *Error {
	return &Error{
		Phase:  PhaseRegister,
		Kind:   KindInvalidInput,
		Detail: fmt.Sprintf("register %s.%s", scope, name),
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}

// OverloadError is returned when every candidate of an overload set failed.
// Diagnostics are kept in candidate registration order; skipped candidates
// contribute their arity diagnostic, tried candidates their runtime error.
type OverloadError struct {
	Name        string
	Diagnostics []string
}

// ArityMismatch creates the record for a candidate skipped on argument count.
// Index is the candidate's 0-based position in the overload set.
func ArityMismatch(index, got, want int) *Error {
	return &Error{
		Phase:  PhaseDispatch,
		Kind:   KindArityMismatch,
		Detail: fmt.Sprintf("Skipped overload #%d with unmatched arity of %d instead of %d", index, got, want),
	}
}

// ArityDiagnostic renders the skip record the overload aggregate carries.
func ArityDiagnostic(index, got, want int) string {
	return ArityMismatch(index, got, want).Detail
}

func (e *OverloadError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "All %d overloads of %s returned an error:", len(e.Diagnostics), e.Name)
	for i, d := range e.Diagnostics {
		fmt.Fprintf(&b, "\n%d: %s", i+1, d)
	}
	return b.String()
}

// Is reports whether target matches this error type
func (e *OverloadError) Is(target error) bool {
	_, ok := target.(*OverloadError)
	return ok
}
