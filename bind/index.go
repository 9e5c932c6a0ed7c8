package bind

import (
	"fmt"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/lua-bridge/errors"
)

// maxChainDepth bounds the parent walk. A chain this deep means the
// metadata graph is corrupted; the call fails instead of hanging.
const maxChainDepth = 64

func chainDepthError() *errors.Error {
	return errors.Protocol(fmt.Sprintf("class metadata chain exceeds %d levels", maxChainDepth))
}

// indexClosure builds the __index handler for one metadata chain.
//
// Per level: the fallback hook first when AllowOverride is set (at most
// once per level), then direct members, then getters, then the fallback,
// then the parent. An exhausted chain yields nil; unknown reads are
// absent, never errors.
func indexClosure(md *Metadata) lua.LGFunction {
	return func(L *lua.LState) int {
		name, keyIsString := "", false
		if s, ok := L.Get(2).(lua.LString); ok {
			name, keyIsString = string(s), true
		}
		if keyIsString && isReservedName(name) {
			L.Push(lua.LNil)
			return 1
		}

		cur := md
		for depth := 0; cur != nil; depth++ {
			if depth >= maxChainDepth {
				L.RaiseError("%s", chainDepthError().Error())
				return 0
			}

			tried := false
			if cur.Options().Has(AllowOverride) && cur.indexFallback != nil {
				if n, ok := callIndexFallback(L, cur.indexFallback); ok {
					return n
				}
				tried = true
			}

			if keyIsString {
				if v := cur.members.RawGetString(name); v != lua.LNil {
					L.Push(v)
					return 1
				}
				if g, ok := cur.getters[name]; ok {
					L.Push(g)
					nargs := 0
					if cur.pushSelf() {
						L.Push(L.Get(1))
						nargs = 1
					}
					L.Call(nargs, 1)
					return 1
				}
			}

			if !tried && cur.indexFallback != nil {
				if n, ok := callIndexFallback(L, cur.indexFallback); ok {
					return n
				}
			}

			cur = cur.parentMeta()
		}

		L.Push(lua.LNil)
		return 1
	}
}

// callIndexFallback invokes a read fallback with (receiver, key). A nil
// result means the hook declined and the walk continues.
func callIndexFallback(L *lua.LState, fb *lua.LFunction) (int, bool) {
	L.Push(fb)
	L.Push(L.Get(1))
	L.Push(L.Get(2))
	L.Call(2, 1)
	if L.Get(-1) != lua.LNil {
		return 1, true
	}
	L.Pop(1)
	return 0, false
}

// newindexClosure builds the __newindex handler for one metadata chain.
//
// Per level: a level with no writable surface at all fails immediately;
// a matching setter runs (receiver and value for instances, value only
// for statics and namespaces); otherwise the write fallback, then the
// parent. An exhausted chain is an error: unknown writes always raise.
func newindexClosure(md *Metadata) lua.LGFunction {
	return func(L *lua.LState) int {
		keyStr := L.Get(2).String()
		name, keyIsString := "", false
		if s, ok := L.Get(2).(lua.LString); ok {
			name, keyIsString = string(s), true
		}

		cur := md
		for depth := 0; ; depth++ {
			if depth >= maxChainDepth {
				L.RaiseError("%s", chainDepthError().Error())
				return 0
			}

			if cur.setters == nil {
				L.RaiseError("%s", errors.NoMember(keyStr).Detail)
				return 0
			}

			if keyIsString {
				if s, ok := cur.setters[name]; ok {
					L.Push(s)
					nargs := 1
					if cur.pushSelf() {
						L.Push(L.Get(1))
						nargs = 2
					}
					L.Push(L.Get(3))
					L.Call(nargs, 0)
					return 0
				}
			}

			if tryNewindexFallback(L, cur, name, keyIsString) {
				return 0
			}

			parent := cur.parentMeta()
			if parent == nil {
				L.RaiseError("%s", errors.NotWritable(keyStr).Detail)
				return 0
			}
			cur = parent
		}
	}
}

// tryNewindexFallback hands the write to the level's fallback hook after
// the fixed-member guard has run. The hook receives the owning member
// surface for protocol-method keys and the raw receiver for everything
// else, then (key, value).
func tryNewindexFallback(L *lua.LState, cur *Metadata, name string, keyIsString bool) bool {
	fb := cur.newindexFallback
	if fb == nil {
		return false
	}
	target := L.Get(1)
	if keyIsString {
		guardOverride(L, cur, name)
		if isMetamethodName(name) {
			target = cur.members
		}
	}
	L.Push(fb)
	L.Push(target)
	L.Push(L.Get(2))
	L.Push(L.Get(3))
	L.Call(3, 0)
	return true
}

// guardOverride enforces the fixed-member contract before any write
// fallback, registered or default, observes the write: protocol-method
// slots and existing members may only be replaced under AllowOverride,
// and the previous value is preserved under its super name first.
func guardOverride(L *lua.LState, md *Metadata, name string) {
	var prev lua.LValue
	meta := isMetamethodName(name)
	if meta {
		prev = md.mt.RawGetString(name)
	} else {
		prev = md.members.RawGetString(name)
	}
	if !meta && prev == lua.LNil {
		return
	}
	if !md.Options().Has(AllowOverride) {
		L.RaiseError("%s", errors.Immutable(name).Detail)
		return
	}
	if prev != lua.LNil {
		md.members.RawSetString(superName(name), prev)
	}
}

// defaultNewindexFallback is the write hook installed on extensible
// classes: script-defined members land on the class, protocol methods on
// the metatable. The override guard has already run.
func defaultNewindexFallback(md *Metadata) lua.LGFunction {
	return func(L *lua.LState) int {
		key, ok := L.Get(2).(lua.LString)
		if !ok {
			L.RaiseError("%s", errors.NoMember(L.Get(2).String()).Detail)
			return 0
		}
		name := string(key)
		if isMetamethodName(name) {
			md.mt.RawSetString(name, L.Get(3))
			return 0
		}
		md.members.RawSetString(name, L.Get(3))
		return 0
	}
}

// readOnlyError builds the setter stand-in for read-only properties.
func readOnlyError(L *lua.LState, name string) *lua.LFunction {
	return L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("%s", errors.ReadOnly(name).Detail)
		return 0
	})
}
