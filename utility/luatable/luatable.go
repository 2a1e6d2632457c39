// Package luatable evaluates Lua data files in an empty sandbox and reads
// typed values out of the resulting tables. Data files either return a
// table or assign globals, both forms are accepted.
package luatable

import (
	"bytes"
	"errors"
	"fmt"

	lua "github.com/yuin/gopher-lua"
)

// package errors
var (
	ErrNotATable = errors.New("lua file did not produce a table")
	ErrWrongType = errors.New("lua value has an unexpected type")
	ErrMissing   = errors.New("lua value is missing")
)

// Table is an evaluated Lua table, it stays valid after Eval returns
type Table struct {
	t *lua.LTable
}

// Eval runs data as a Lua chunk named name. If the chunk returns a table
// that table is the result, otherwise the globals it assigned are.
func Eval(name string, data []byte) (*Table, error) {
	vm := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer vm.Close()

	fn, err := vm.Load(bytes.NewReader(data), name)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", name, err)
	}

	env := vm.NewTable()
	vm.SetFEnv(fn, env)
	if err := vm.CallByParam(lua.P{
		Fn:      fn,
		NRet:    1,
		Protect: true,
	}); err != nil {
		return nil, fmt.Errorf("run %s: %w", name, err)
	}

	result := vm.Get(-1)
	vm.Pop(1)
	if rt, ok := result.(*lua.LTable); ok {
		return &Table{t: rt}, nil
	}
	if result != lua.LNil {
		return nil, fmt.Errorf("%s: %w", name, ErrNotATable)
	}
	return &Table{t: env}, nil
}

// Has reports whether key is set
func (t *Table) Has(key string) bool {
	return t.t.RawGetString(key) != lua.LNil
}

// Len is the length of the array part
func (t *Table) Len() int {
	return t.t.Len()
}

// Number reads a numeric field
func (t *Table) Number(key string) (float64, error) {
	return asNumber(key, t.t.RawGetString(key))
}

// Int reads a numeric field that must hold an integer value
func (t *Table) Int(key string) (int, error) {
	n, err := t.Number(key)
	if err != nil {
		return 0, err
	}
	if n != float64(int(n)) {
		return 0, fmt.Errorf("%s: %w: %v is not an integer", key, ErrWrongType, n)
	}
	return int(n), nil
}

// String reads a string field
func (t *Table) String(key string) (string, error) {
	v := t.t.RawGetString(key)
	switch s := v.(type) {
	case lua.LString:
		return string(s), nil
	default:
		return "", typeError(key, v, "string")
	}
}

// Bool reads a boolean field
func (t *Table) Bool(key string) (bool, error) {
	v := t.t.RawGetString(key)
	switch b := v.(type) {
	case lua.LBool:
		return bool(b), nil
	default:
		return false, typeError(key, v, "boolean")
	}
}

// Table reads a nested table field
func (t *Table) Table(key string) (*Table, error) {
	v := t.t.RawGetString(key)
	if nt, ok := v.(*lua.LTable); ok {
		return &Table{t: nt}, nil
	}
	return nil, typeError(key, v, "table")
}

// Index returns the nested table at array position i, starting at 1
func (t *Table) Index(i int) (*Table, error) {
	v := t.t.RawGetInt(i)
	if nt, ok := v.(*lua.LTable); ok {
		return &Table{t: nt}, nil
	}
	return nil, typeError(fmt.Sprintf("[%d]", i), v, "table")
}

// Floats reads the array part as numbers
func (t *Table) Floats() ([]float32, error) {
	out := make([]float32, 0, t.t.Len())
	for i := 1; i <= t.t.Len(); i++ {
		n, err := asNumber(fmt.Sprintf("[%d]", i), t.t.RawGetInt(i))
		if err != nil {
			return nil, err
		}
		out = append(out, float32(n))
	}
	return out, nil
}

// FloatsField reads a nested numeric array of an exact length
func (t *Table) FloatsField(key string, length int) ([]float32, error) {
	nt, err := t.Table(key)
	if err != nil {
		return nil, err
	}
	floats, err := nt.Floats()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	if len(floats) != length {
		return nil, fmt.Errorf("%s: %w: expected %d numbers, got %d", key, ErrWrongType, length, len(floats))
	}
	return floats, nil
}

func asNumber(key string, v lua.LValue) (float64, error) {
	if n, ok := v.(lua.LNumber); ok {
		return float64(n), nil
	}
	return 0, typeError(key, v, "number")
}

func typeError(key string, v lua.LValue, want string) error {
	if v == lua.LNil {
		return fmt.Errorf("%s: %w", key, ErrMissing)
	}
	return fmt.Errorf("%s: %w: want %s, got %s", key, ErrWrongType, want, v.Type().String())
}

// Scalars returns the string keyed fields holding numbers, strings or
// booleans as float64, string and bool values
func (t *Table) Scalars() map[string]any {
	out := make(map[string]any)
	t.t.ForEach(func(k, v lua.LValue) {
		key, ok := k.(lua.LString)
		if !ok {
			return
		}
		switch val := v.(type) {
		case lua.LNumber:
			out[string(key)] = float64(val)
		case lua.LString:
			out[string(key)] = string(val)
		case lua.LBool:
			out[string(key)] = bool(val)
		}
	})
	return out
}
