package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:   PhaseDecode,
				Kind:    KindTypeMismatch,
				Path:    []string{"Vec", "scale", "factor"},
				GoType:  "float64",
				LuaType: "string",
				Detail:  "cannot convert",
			},
			contains: []string{"[decode]", "type_mismatch", "Vec.scale.factor", "float64", "string", "cannot convert"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseResolve,
				Kind:  KindNotFound,
			},
			contains: []string{"[resolve]", "not_found"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseDispatch,
				Kind:   KindNativeFailure,
				Detail: "connect",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[dispatch]", "native_failure", "connect", "caused by", "underlying error"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseDecode,
		Kind:  KindInvalidInput,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}

	if !errors.Is(errors.Unwrap(err), cause) {
		t.Error("errors.Unwrap did not return cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase: PhaseDecode,
		Kind:  KindTypeMismatch,
		Path:  []string{"foo"},
	}

	if !err.Is(&Error{Phase: PhaseDecode, Kind: KindTypeMismatch}) {
		t.Error("Is should match same phase and kind")
	}

	if err.Is(&Error{Phase: PhaseEncode, Kind: KindTypeMismatch}) {
		t.Error("Is should not match different phase")
	}

	if err.Is(&Error{Phase: PhaseDecode, Kind: KindOverflow}) {
		t.Error("Is should not match different kind")
	}

	target := &Error{Phase: PhaseDecode, Kind: KindTypeMismatch}
	if !errors.Is(err, target) {
		t.Error("errors.Is should match")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseDecode, KindTypeMismatch).
		Path("Vec", "x").
		GoType("float64").
		LuaType("string").
		Value(42).
		Cause(cause).
		Detail("expected %s, got %s", "number", "string").
		Build()

	if err.Phase != PhaseDecode {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseDecode)
	}
	if err.Kind != KindTypeMismatch {
		t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
	}
	if len(err.Path) != 2 || err.Path[0] != "Vec" || err.Path[1] != "x" {
		t.Errorf("Path = %v, want [Vec x]", err.Path)
	}
	if err.GoType != "float64" {
		t.Errorf("GoType = %v, want 'float64'", err.GoType)
	}
	if err.LuaType != "string" {
		t.Errorf("LuaType = %v, want 'string'", err.LuaType)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "expected number, got string" {
		t.Errorf("Detail = %v, want 'expected number, got string'", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("TypeMismatch", func(t *testing.T) {
		err := TypeMismatch(PhaseDecode, []string{"field"}, "int", "string")
		if err.Kind != KindTypeMismatch {
			t.Errorf("Kind = %v, want %v", err.Kind, KindTypeMismatch)
		}
		if err.GoType != "int" || err.LuaType != "string" {
			t.Errorf("GoType=%v LuaType=%v", err.GoType, err.LuaType)
		}
	})

	t.Run("Overflow", func(t *testing.T) {
		err := Overflow(PhaseDecode, []string{"val"}, 300, "int8")
		if err.Kind != KindOverflow {
			t.Errorf("Kind = %v, want %v", err.Kind, KindOverflow)
		}
		if err.Value != 300 {
			t.Errorf("Value = %v, want 300", err.Value)
		}
		if !strings.Contains(err.Detail, "int8") {
			t.Errorf("Detail = %v, should name the target type", err.Detail)
		}
	})

	t.Run("Immutable", func(t *testing.T) {
		err := Immutable("length")
		if err.Kind != KindImmutable {
			t.Errorf("Kind = %v, want %v", err.Kind, KindImmutable)
		}
		if err.Detail != "immutable member 'length'" {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("ReadOnly", func(t *testing.T) {
		err := ReadOnly("norm")
		if err.Detail != "'norm' is read-only" {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("NoMember", func(t *testing.T) {
		err := NoMember("bogus")
		if err.Detail != "no member named 'bogus'" {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("NotWritable", func(t *testing.T) {
		err := NotWritable("bogus")
		if err.Kind != KindNotWritable {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNotWritable)
		}
		if err.Detail != "no writable member 'bogus'" {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("DecodeArg", func(t *testing.T) {
		err := DecodeArg(2, errors.New("not a number"))
		if err.Detail != "Error decoding argument #2: not a number" {
			t.Errorf("Detail = %q", err.Detail)
		}
		if err.Unwrap() == nil {
			t.Error("DecodeArg should preserve the cause")
		}
	})

	t.Run("NativeFailure", func(t *testing.T) {
		cause := errors.New("disk full")
		err := NativeFailure("save", cause)
		if err.Kind != KindNativeFailure {
			t.Errorf("Kind = %v, want %v", err.Kind, KindNativeFailure)
		}
		if !errors.Is(err, &Error{Phase: PhaseDispatch, Kind: KindNativeFailure}) {
			t.Error("errors.Is should match phase and kind")
		}
	})

	t.Run("Uncommitted", func(t *testing.T) {
		err := Uncommitted("handle")
		if err.Kind != KindUncommitted {
			t.Errorf("Kind = %v, want %v", err.Kind, KindUncommitted)
		}
	})

	t.Run("Protocol", func(t *testing.T) {
		err := Protocol("metadata chain too deep")
		if err.Kind != KindProtocol {
			t.Errorf("Kind = %v, want %v", err.Kind, KindProtocol)
		}
	})

	t.Run("Registration", func(t *testing.T) {
		cause := errors.New("duplicate")
		err := Registration("Vec", "length", cause)
		if err.Phase != PhaseRegister {
			t.Errorf("Phase = %v, want %v", err.Phase, PhaseRegister)
		}
		if !strings.Contains(err.Detail, "Vec.length") {
			t.Errorf("Detail = %q, should contain scope.name", err.Detail)
		}
	})
}

func TestOverloadError(t *testing.T) {
	t.Run("numbered diagnostics", func(t *testing.T) {
		err := &OverloadError{
			Name: "area",
			Diagnostics: []string{
				ArityDiagnostic(0, 3, 1),
				"bad argument",
			},
		}
		msg := err.Error()
		want := "All 2 overloads of area returned an error:\n" +
			"1: Skipped overload #0 with unmatched arity of 3 instead of 1\n" +
			"2: bad argument"
		if msg != want {
			t.Errorf("Error() = %q, want %q", msg, want)
		}
	})

	t.Run("errors.Is", func(t *testing.T) {
		err := &OverloadError{Name: "f"}
		if !errors.Is(err, &OverloadError{}) {
			t.Error("errors.Is should match OverloadError")
		}
	})
}

func TestArityDiagnostic(t *testing.T) {
	got := ArityDiagnostic(1, 2, 4)
	want := "Skipped overload #1 with unmatched arity of 2 instead of 4"
	if got != want {
		t.Errorf("ArityDiagnostic = %q, want %q", got, want)
	}

	err := ArityMismatch(1, 2, 4)
	if err.Kind != KindArityMismatch || err.Phase != PhaseDispatch {
		t.Errorf("ArityMismatch = [%v] %v", err.Phase, err.Kind)
	}
	if err.Detail != want {
		t.Errorf("Detail = %q, want %q", err.Detail, want)
	}
}
