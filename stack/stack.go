package stack

import (
	"math"
	"reflect"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/lua-bridge/errors"
)

// Char is a single Unicode code point carried as a 1-rune Lua string.
// It is a distinct type so that rune (= int32) keeps number semantics.
type Char rune

// Native is implemented by userdata payloads that wrap a bound native
// value. The marshaller unwraps through it before type checks.
type Native interface {
	Native() any
}

var (
	luaValueType    = reflect.TypeOf((*lua.LValue)(nil)).Elem()
	luaTableType    = reflect.TypeOf((*lua.LTable)(nil))
	luaFunctionType = reflect.TypeOf((*lua.LFunction)(nil))
	luaUserDataType = reflect.TypeOf((*lua.LUserData)(nil))
	luaGFunction    = reflect.TypeOf(lua.LGFunction(nil))
	charType        = reflect.TypeOf(Char(0))
	anyType         = reflect.TypeOf((*any)(nil)).Elem()
)

// Get reads the stack cell at idx as T. It never raises into the running
// script; a non-member cell yields a decode-phase error.
func Get[T any](L *lua.LState, idx int) (T, error) {
	var zero T
	rv, err := DecodeValue(L, idx, reflect.TypeOf((*T)(nil)).Elem())
	if err != nil {
		return zero, err
	}
	return rv.Interface().(T), nil
}

// IsInstance reports whether the cell at idx is a member of T under the
// conversion rules. It has no stack effect.
func IsInstance[T any](L *lua.LState, idx int) bool {
	_, err := DecodeValue(L, idx, reflect.TypeOf((*T)(nil)).Elem())
	return err == nil
}

// DecodeValue is the non-generic decode core: it reads the cell at idx and
// converts it to rt. Get and the invocation adapters both funnel through it.
func DecodeValue(L *lua.LState, idx int, rt reflect.Type) (reflect.Value, error) {
	lv := L.Get(idx)

	// Lua passthrough targets take the cell as-is.
	switch rt {
	case luaValueType:
		rv := reflect.New(rt).Elem()
		rv.Set(reflect.ValueOf(lv))
		return rv, nil
	case luaTableType:
		if t, ok := lv.(*lua.LTable); ok {
			return reflect.ValueOf(t), nil
		}
		return reflect.Value{}, mismatch(rt, lv)
	case luaFunctionType:
		if lv == lua.LNil {
			return reflect.Zero(rt), nil
		}
		if f, ok := lv.(*lua.LFunction); ok {
			return reflect.ValueOf(f), nil
		}
		return reflect.Value{}, mismatch(rt, lv)
	case luaUserDataType:
		if u, ok := lv.(*lua.LUserData); ok {
			return reflect.ValueOf(u), nil
		}
		return reflect.Value{}, mismatch(rt, lv)
	case luaGFunction:
		if lv == lua.LNil {
			return reflect.Zero(rt), nil
		}
		if f, ok := lv.(*lua.LFunction); ok && f.IsG {
			return reflect.ValueOf(f.GFunction), nil
		}
		return reflect.Value{}, mismatch(rt, lv)
	case anyType:
		rv := reflect.New(rt).Elem()
		if v := decodeAny(lv); v != nil {
			rv.Set(reflect.ValueOf(v))
		}
		return rv, nil
	}

	// Bound native objects: unwrap the userdata payload and check
	// assignability against the target (covers interfaces and *T).
	if ud, ok := lv.(*lua.LUserData); ok {
		nv := ud.Value
		if n, ok := nv.(Native); ok {
			nv = n.Native()
		}
		if nv != nil {
			nrv := reflect.ValueOf(nv)
			if nrv.Type().AssignableTo(rt) {
				rv := reflect.New(rt).Elem()
				rv.Set(nrv)
				return rv, nil
			}
			if nrv.Kind() == reflect.Pointer && !nrv.IsNil() && nrv.Type().Elem() == rt {
				return nrv.Elem(), nil
			}
		}
		return reflect.Value{}, mismatch(rt, lv)
	}

	switch rt.Kind() {
	case reflect.Bool:
		b, ok := lv.(lua.LBool)
		if !ok {
			return reflect.Value{}, mismatch(rt, lv)
		}
		rv := reflect.New(rt).Elem()
		rv.SetBool(bool(b))
		return rv, nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rt == charType {
			return decodeChar(rt, lv)
		}
		f, err := number(rt, lv)
		if err != nil {
			return reflect.Value{}, err
		}
		lim := math.Ldexp(1, rt.Bits()-1)
		if f != math.Trunc(f) || f < -lim || f >= lim {
			return reflect.Value{}, errors.Overflow(errors.PhaseDecode, nil, f, rt.String())
		}
		rv := reflect.New(rt).Elem()
		rv.SetInt(int64(f))
		return rv, nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		f, err := number(rt, lv)
		if err != nil {
			return reflect.Value{}, err
		}
		if f != math.Trunc(f) || f < 0 || f >= math.Ldexp(1, rt.Bits()) {
			return reflect.Value{}, errors.Overflow(errors.PhaseDecode, nil, f, rt.String())
		}
		rv := reflect.New(rt).Elem()
		rv.SetUint(uint64(f))
		return rv, nil

	case reflect.Float32:
		f, err := number(rt, lv)
		if err != nil {
			return reflect.Value{}, err
		}
		if !math.IsInf(f, 0) && math.Abs(f) > math.MaxFloat32 {
			return reflect.Value{}, errors.Overflow(errors.PhaseDecode, nil, f, rt.String())
		}
		rv := reflect.New(rt).Elem()
		rv.SetFloat(f)
		return rv, nil

	case reflect.Float64:
		f, err := number(rt, lv)
		if err != nil {
			return reflect.Value{}, err
		}
		rv := reflect.New(rt).Elem()
		rv.SetFloat(f)
		return rv, nil

	case reflect.String:
		s, ok := lv.(lua.LString)
		if !ok {
			return reflect.Value{}, mismatch(rt, lv)
		}
		rv := reflect.New(rt).Elem()
		rv.SetString(string(s))
		return rv, nil

	case reflect.Pointer:
		if lv == lua.LNil {
			return reflect.Zero(rt), nil
		}
		inner, err := DecodeValue(L, idx, rt.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		rv := reflect.New(rt.Elem())
		rv.Elem().Set(inner)
		return rv, nil

	case reflect.Slice:
		if rt.Elem().Kind() == reflect.Uint8 {
			if s, ok := lv.(lua.LString); ok {
				rv := reflect.New(rt).Elem()
				rv.SetBytes([]byte(s))
				return rv, nil
			}
		}
		tbl, ok := lv.(*lua.LTable)
		if !ok {
			return reflect.Value{}, mismatch(rt, lv)
		}
		n := tbl.Len()
		rv := reflect.MakeSlice(rt, n, n)
		for i := 1; i <= n; i++ {
			ev, err := decodeCell(L, tbl.RawGetInt(i), rt.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			rv.Index(i - 1).Set(ev)
		}
		return rv, nil

	case reflect.Array:
		tbl, ok := lv.(*lua.LTable)
		if !ok {
			return reflect.Value{}, mismatch(rt, lv)
		}
		if tbl.Len() != rt.Len() {
			return reflect.Value{}, errors.New(errors.PhaseDecode, errors.KindInvalidInput).
				GoType(rt.String()).
				Detail("table length %d does not match tuple length %d", tbl.Len(), rt.Len()).
				Build()
		}
		rv := reflect.New(rt).Elem()
		for i := 0; i < rt.Len(); i++ {
			ev, err := decodeCell(L, tbl.RawGetInt(i+1), rt.Elem())
			if err != nil {
				return reflect.Value{}, err
			}
			rv.Index(i).Set(ev)
		}
		return rv, nil

	case reflect.Map:
		tbl, ok := lv.(*lua.LTable)
		if !ok {
			return reflect.Value{}, mismatch(rt, lv)
		}
		rv := reflect.MakeMap(rt)
		var ferr error
		tbl.ForEach(func(k, v lua.LValue) {
			if ferr != nil {
				return
			}
			kv, err := decodeCell(L, k, rt.Key())
			if err != nil {
				ferr = err
				return
			}
			vv, err := decodeCell(L, v, rt.Elem())
			if err != nil {
				ferr = err
				return
			}
			rv.SetMapIndex(kv, vv)
		})
		if ferr != nil {
			return reflect.Value{}, ferr
		}
		return rv, nil

	case reflect.Struct:
		tbl, ok := lv.(*lua.LTable)
		if !ok {
			return reflect.Value{}, mismatch(rt, lv)
		}
		rv := reflect.New(rt).Elem()
		for i := 0; i < rt.NumField(); i++ {
			field := rt.Field(i)
			if !field.IsExported() {
				continue
			}
			cell := tbl.RawGetString(lowerFirst(field.Name))
			if cell == lua.LNil {
				continue
			}
			fv, err := decodeCell(L, cell, field.Type)
			if err != nil {
				return reflect.Value{}, err
			}
			rv.Field(i).Set(fv)
		}
		return rv, nil
	}

	return reflect.Value{}, errors.InvalidInput(errors.PhaseDecode,
		"unsupported Go type "+rt.String())
}

// decodeCell decodes a detached cell (table element, map key) by pushing it
// to a scratch slot and recursing through DecodeValue.
func decodeCell(L *lua.LState, lv lua.LValue, rt reflect.Type) (reflect.Value, error) {
	L.Push(lv)
	rv, err := DecodeValue(L, L.GetTop(), rt)
	L.Pop(1)
	return rv, err
}

func decodeChar(rt reflect.Type, lv lua.LValue) (reflect.Value, error) {
	s, ok := lv.(lua.LString)
	if !ok {
		return reflect.Value{}, mismatch(rt, lv)
	}
	runes := []rune(string(s))
	if len(runes) != 1 {
		return reflect.Value{}, errors.New(errors.PhaseDecode, errors.KindInvalidInput).
			GoType(rt.String()).
			Detail("string of %d runes is not a char", len(runes)).
			Build()
	}
	rv := reflect.New(rt).Elem()
	rv.SetInt(int64(runes[0]))
	return rv, nil
}

func number(rt reflect.Type, lv lua.LValue) (float64, error) {
	n, ok := lv.(lua.LNumber)
	if !ok {
		return 0, mismatch(rt, lv)
	}
	return float64(n), nil
}

func mismatch(rt reflect.Type, lv lua.LValue) *errors.Error {
	return errors.TypeMismatch(errors.PhaseDecode, nil, rt.String(), lv.Type().String())
}

// decodeAny converts a cell for an `any` target: scalars to native Go
// values, userdata to its unwrapped payload, tables to slices or maps,
// everything else passes through as the lua.LValue.
func decodeAny(lv lua.LValue) any {
	switch v := lv.(type) {
	case *lua.LNilType:
		return nil
	case lua.LBool:
		return bool(v)
	case lua.LNumber:
		return float64(v)
	case lua.LString:
		return string(v)
	case *lua.LUserData:
		if n, ok := v.Value.(Native); ok {
			return n.Native()
		}
		return v.Value
	case *lua.LTable:
		return tableToAny(v)
	default:
		return lv
	}
}

func tableToAny(tbl *lua.LTable) any {
	n := tbl.Len()
	total := 0
	tbl.ForEach(func(lua.LValue, lua.LValue) { total++ })
	if n > 0 && n == total {
		out := make([]any, n)
		for i := 1; i <= n; i++ {
			out[i-1] = decodeAny(tbl.RawGetInt(i))
		}
		return out
	}
	out := make(map[any]any, total)
	tbl.ForEach(func(k, v lua.LValue) {
		out[decodeAny(k)] = decodeAny(v)
	})
	return out
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	if c := s[0]; c >= 'A' && c <= 'Z' {
		return string(c+'a'-'A') + s[1:]
	}
	return s
}
