package bind

import (
	"reflect"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/lua-bridge/errors"
	"github.com/wippyai/lua-bridge/stack"
)

// AnyArity marks an adapter that accepts any argument count (raw
// callbacks and variadic functions). Such candidates are never filtered
// by the overload resolver's arity check.
const AnyArity = -1

// adapter is one invocable candidate: the generated trampoline plus the
// declared argument count the overload resolver filters on.
type adapter struct {
	name  string
	fn    lua.LGFunction
	arity int
}

var errorType = reflect.TypeOf((*error)(nil)).Elem()

// wrapRaw passes a host callback through without adaptation.
func wrapRaw(name string, fn lua.LGFunction) *adapter {
	return &adapter{name: name, fn: fn, arity: AnyArity}
}

// wrapFunc adapts a Go function into a stack trampoline.
//
// start is the stack slot of the first script argument (1 for free
// functions, 2 for methods and constructors, where slot 1 carries the
// receiver or the class table). When receiver is set, the function's
// first parameter binds from the handle at slot 1; constOK permits
// dispatch on const views.
//
// All arguments are materialized before the function runs; the first
// failure aborts the call with that slot's diagnostic. A trailing error
// return and, under PanicInterop, a recovered panic both surface as
// script errors. Results go through push; a nil push falls back to the
// plain marshaller.
func wrapFunc(name string, fn any, start int, receiver, constOK bool, opts func() Options, push func(*lua.LState, any) error) (*adapter, error) {
	if push == nil {
		push = stack.Push
	}
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, errors.InvalidInput(errors.PhaseRegister,
			"member "+name+" is not a function")
	}
	ft := rv.Type()
	nIn := ft.NumIn()
	if receiver && nIn == 0 {
		return nil, errors.InvalidInput(errors.PhaseRegister,
			"method "+name+" has no receiver parameter")
	}

	arity := nIn
	if receiver {
		arity--
	}
	if ft.IsVariadic() {
		arity = AnyArity
	}
	hasErr := ft.NumOut() > 0 && ft.Out(ft.NumOut()-1) == errorType

	gf := func(L *lua.LState) int {
		if opts().Has(PanicInterop) {
			defer func() {
				if r := recover(); r != nil {
					if ae, ok := r.(*lua.ApiError); ok {
						panic(ae)
					}
					L.RaiseError("%v", r)
				}
			}()
		}

		in := make([]reflect.Value, 0, nIn)
		i := 0
		if receiver {
			h := handleAt(L, 1)
			if h == nil {
				L.RaiseError("method '%s' called without instance", name)
				return 0
			}
			if h.constView && !constOK {
				L.RaiseError("non-const method '%s' called on const instance", name)
				return 0
			}
			if h.Native() == nil {
				L.RaiseError("%s", errors.Uncommitted(name).Detail)
				return 0
			}
			self, err := stack.DecodeValue(L, 1, ft.In(0))
			if err != nil {
				L.RaiseError("%s", errors.DecodeArg(1, err).Detail)
				return 0
			}
			in = append(in, self)
			i = 1
		}

		in = append(in, decodeParams(L, ft, i, start)...)

		out := rv.Call(in)
		if hasErr {
			if e, _ := out[len(out)-1].Interface().(error); e != nil {
				L.RaiseError("%s", errors.NativeFailure(name, e).Error())
				return 0
			}
			out = out[:len(out)-1]
		}
		for _, o := range out {
			if err := push(L, o.Interface()); err != nil {
				L.RaiseError("%s", err.Error())
				return 0
			}
		}
		return len(out)
	}

	return &adapter{name: name, fn: gf, arity: arity}, nil
}

// decodeParams materializes function parameters [first, NumIn) from
// consecutive stack slots starting at slot, left to right. The first
// failure raises with that slot's diagnostic, so the callable never runs
// on a partial argument list.
func decodeParams(L *lua.LState, ft reflect.Type, first, slot int) []reflect.Value {
	nIn := ft.NumIn()
	in := make([]reflect.Value, 0, nIn-first)
	for i := first; i < nIn; i++ {
		pt := ft.In(i)
		if ft.IsVariadic() && i == nIn-1 {
			et := pt.Elem()
			for ; slot <= L.GetTop(); slot++ {
				ev, err := stack.DecodeValue(L, slot, et)
				if err != nil {
					L.RaiseError("%s", errors.DecodeArg(slot, err).Detail)
					return nil
				}
				in = append(in, ev)
			}
			break
		}
		av, err := stack.DecodeValue(L, slot, pt)
		if err != nil {
			L.RaiseError("Error decoding argument #%d: %s", slot, err.Error())
			return nil
		}
		in = append(in, av)
		slot++
	}
	return in
}

// handleAt returns the ownership handle behind a userdata slot, or nil.
func handleAt(L *lua.LState, idx int) *Handle {
	if ud, ok := L.Get(idx).(*lua.LUserData); ok {
		if h, ok := ud.Value.(*Handle); ok {
			return h
		}
	}
	return nil
}
