package stack

import (
	"reflect"

	lua "github.com/yuin/gopher-lua"

	"github.com/wippyai/lua-bridge/errors"
)

// Push encodes v as exactly one Lua cell and pushes it.
func Push(L *lua.LState, v any) error {
	lv, err := Encode(L, v)
	if err != nil {
		return err
	}
	L.Push(lv)
	return nil
}

// Encode converts a Go value to a Lua cell without pushing it.
func Encode(L *lua.LState, v any) (lua.LValue, error) {
	if v == nil {
		return lua.LNil, nil
	}
	switch t := v.(type) {
	case lua.LValue:
		return t, nil
	case lua.LGFunction:
		return L.NewFunction(t), nil
	case Char:
		return lua.LString(string(rune(t))), nil
	case []byte:
		return lua.LString(t), nil
	case error:
		return lua.LString(t.Error()), nil
	}
	return encodeValue(L, reflect.ValueOf(v))
}

func encodeValue(L *lua.LState, rv reflect.Value) (lua.LValue, error) {
	switch rv.Kind() {
	case reflect.Bool:
		return lua.LBool(rv.Bool()), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if rv.Type() == charType {
			return lua.LString(string(rune(rv.Int()))), nil
		}
		return lua.LNumber(rv.Int()), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return lua.LNumber(rv.Uint()), nil

	case reflect.Float32, reflect.Float64:
		return lua.LNumber(rv.Float()), nil

	case reflect.String:
		return lua.LString(rv.String()), nil

	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return lua.LNil, nil
		}
		return encodeValue(L, rv.Elem())

	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return lua.LString(rv.Bytes()), nil
		}
		fallthrough
	case reflect.Array:
		tbl := L.NewTable()
		for i := 0; i < rv.Len(); i++ {
			ev, err := encodeValue(L, rv.Index(i))
			if err != nil {
				return nil, err
			}
			tbl.RawSetInt(i+1, ev)
		}
		return tbl, nil

	case reflect.Map:
		tbl := L.NewTable()
		iter := rv.MapRange()
		for iter.Next() {
			kv, err := encodeValue(L, iter.Key())
			if err != nil {
				return nil, err
			}
			vv, err := encodeValue(L, iter.Value())
			if err != nil {
				return nil, err
			}
			tbl.RawSetH(kv, vv)
		}
		return tbl, nil

	case reflect.Struct:
		tbl := L.NewTable()
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			field := rt.Field(i)
			if !field.IsExported() {
				continue
			}
			fv, err := encodeValue(L, rv.Field(i))
			if err != nil {
				return nil, err
			}
			tbl.RawSetString(lowerFirst(field.Name), fv)
		}
		return tbl, nil
	}

	return nil, errors.New(errors.PhaseEncode, errors.KindInvalidInput).
		GoType(rv.Type().String()).
		Detail("unsupported Go type").
		Build()
}
