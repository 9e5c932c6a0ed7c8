package bind

import (
	lua "github.com/yuin/gopher-lua"

	"go.uber.org/zap"

	"github.com/wippyai/lua-bridge/errors"
)

// overloadDispatcher folds a candidate set into one entry point.
//
// The effective argument count excludes whatever occupies the slots below
// start (receiver or class table). Fixed-arity candidates that cannot
// match are skipped with a recorded diagnostic; the rest are tried in
// registration order under a protected call. The first success wins;
// exhaustion raises the aggregate with every diagnostic in candidate
// order.
func overloadDispatcher(name string, candidates func() []*adapter, start int) lua.LGFunction {
	return func(L *lua.LState) int {
		set := candidates()
		if len(set) == 1 {
			return set[0].fn(L)
		}

		top := L.GetTop()
		argc := top - start + 1
		if argc < 0 {
			argc = 0
		}

		diags := make([]string, 0, len(set))
		for i, c := range set {
			if c.arity != AnyArity && c.arity != argc {
				diags = append(diags, errors.ArityDiagnostic(i, argc, c.arity))
				continue
			}

			L.Push(L.NewFunction(c.fn))
			for j := 1; j <= top; j++ {
				L.Push(L.Get(j))
			}
			err := L.PCall(top, lua.MultRet, nil)
			if err == nil {
				return L.GetTop() - top
			}

			ae, ok := err.(*lua.ApiError)
			if !ok || (ae.Type != lua.ApiErrorRun && ae.Type != lua.ApiErrorError) {
				panic(err)
			}
			Logger().Debug("overload candidate failed",
				zap.String("name", name),
				zap.Int("candidate", i),
				zap.String("error", ae.Object.String()))
			diags = append(diags, ae.Object.String())
			L.SetTop(top)
		}

		L.RaiseError("%s", (&errors.OverloadError{Name: name, Diagnostics: diags}).Error())
		return 0
	}
}
