package bind

import (
	"fmt"
	"reflect"
	"runtime"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/lua-bridge/errors"
)

// ctorMode selects the construction strategy fixed at registration.
type ctorMode uint8

const (
	ctorPlacement ctorMode = iota
	ctorFactory
	ctorContainer
	ctorExternal
)

// wrapConstructor adapts a Go factory into a construction trampoline.
//
// Construction is two-phase: the userdata and its uncommitted handle are
// reserved first, then the factory runs over arguments from slot 2 (slot
// 1 carries the class table through __call), and only a successful result
// commits the handle. A factory that raises leaves the reservation
// uncommitted, so its eventual collection skips teardown.
func wrapConstructor(md *Metadata, instMT *lua.LTable, fn any, mode ctorMode, release func(any), opts func() Options) (*adapter, error) {
	rv := reflect.ValueOf(fn)
	if rv.Kind() != reflect.Func {
		return nil, errors.InvalidInput(errors.PhaseRegister,
			"constructor for "+md.name+" is not a function")
	}
	ft := rv.Type()
	if ft.NumOut() < 1 {
		return nil, errors.InvalidInput(errors.PhaseRegister,
			"constructor for "+md.name+" returns nothing")
	}
	arity := ft.NumIn()
	if ft.IsVariadic() {
		arity = AnyArity
	}
	hasErr := ft.Out(ft.NumOut()-1) == errorType

	owner := OwnValue
	switch mode {
	case ctorContainer:
		owner = OwnShared
	case ctorExternal:
		owner = OwnExternal
	}

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

		h := newHandle(md, owner, release)
		ud := L.NewUserData()
		ud.Value = h
		L.SetMetatable(ud, instMT)
		runtime.SetFinalizer(ud, finalizeHandle)

		in := decodeParams(L, ft, 0, 2)
		out := rv.Call(in)
		if hasErr {
			if e, _ := out[len(out)-1].Interface().(error); e != nil {
				L.RaiseError("%s", errors.NativeFailure(md.name, e).Error())
				return 0
			}
		}

		result := out[0].Interface()
		if mode == ctorContainer {
			if s, ok := result.(*Shared); ok {
				h.commitShared(s)
			} else {
				h.commitShared(NewShared(result, release))
			}
		} else {
			h.Commit(result)
		}

		L.Push(ud)
		return 1
	}

	return &adapter{name: md.name, fn: gf, arity: arity}, nil
}

// wrapObject pushes an already-constructed host value as a committed
// userdata under the class's instance (or const view) metatable.
func wrapObject(L *lua.LState, md *Metadata, mt *lua.LTable, v any, owner Ownership, release func(any), constView bool) *lua.LUserData {
	h := newHandle(md, owner, release)
	h.constView = constView
	h.Commit(v)
	ud := L.NewUserData()
	ud.Value = h
	L.SetMetatable(ud, mt)
	runtime.SetFinalizer(ud, finalizeHandle)
	return ud
}

// finalizeHandle is the Go-side collection hook: the host runtime's
// garbage collector is what actually reclaims userdata, so the finalizer
// and the __gc metamethod funnel into the same exactly-once release.
func finalizeHandle(ud *lua.LUserData) {
	if h, ok := ud.Value.(*Handle); ok {
		h.Release()
	}
}

// gcMetamethod releases the handle behind a collected userdata.
func gcMetamethod(L *lua.LState) int {
	if h := handleAt(L, 1); h != nil {
		h.Release()
	}
	return 0
}

// tostringClosure renders "<TypeName>: 0x<address>".
func tostringClosure(name string) lua.LGFunction {
	return func(L *lua.LState) int {
		if ud, ok := L.Get(1).(*lua.LUserData); ok {
			L.Push(lua.LString(fmt.Sprintf("%s: %p", name, ud)))
		} else {
			L.Push(lua.LString(name))
		}
		return 1
	}
}
