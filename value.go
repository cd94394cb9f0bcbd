package customfit

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Value is a tagged union over every JSON-representable type the SDK needs
// to carry through user properties, flag variations, and event payloads.
// It exists because Go has no single dynamic type that round-trips cleanly
// through JSON while still supporting a well-defined deep-equality check
// (see DeepEqual), which the config differ in config_value.go depends on.
type Value struct {
	kind valueKind
	b    bool
	i    int64
	f    float64
	s    string
	list []Value
	m    map[string]Value
}

type valueKind int

const (
	kindNull valueKind = iota
	kindBool
	kindInt
	kindFloat
	kindString
	kindList
	kindMap
)

func NullValue() Value                 { return Value{kind: kindNull} }
func BoolValue(b bool) Value           { return Value{kind: kindBool, b: b} }
func IntValue(i int64) Value           { return Value{kind: kindInt, i: i} }
func FloatValue(f float64) Value       { return Value{kind: kindFloat, f: f} }
func StringValue(s string) Value       { return Value{kind: kindString, s: s} }
func ListValue(vs []Value) Value       { return Value{kind: kindList, list: vs} }
func MapValue(m map[string]Value) Value {
	return Value{kind: kindMap, m: m}
}

func (v Value) IsNull() bool { return v.kind == kindNull }

func (v Value) Bool() (bool, bool)          { return v.b, v.kind == kindBool }
func (v Value) Int() (int64, bool)          { return v.i, v.kind == kindInt }
func (v Value) Float() (float64, bool)      { return v.f, v.kind == kindFloat }
func (v Value) String() (string, bool)      { return v.s, v.kind == kindString }
func (v Value) List() ([]Value, bool)       { return v.list, v.kind == kindList }
func (v Value) Map() (map[string]Value, bool) { return v.m, v.kind == kindMap }

// Raw returns the Value unwrapped into a plain Go interface{}, the shape
// callers of the public API (GetFeatureFlag[T]) actually compare against.
func (v Value) Raw() interface{} {
	switch v.kind {
	case kindNull:
		return nil
	case kindBool:
		return v.b
	case kindInt:
		return v.i
	case kindFloat:
		return v.f
	case kindString:
		return v.s
	case kindList:
		out := make([]interface{}, len(v.list))
		for i, e := range v.list {
			out[i] = e.Raw()
		}
		return out
	case kindMap:
		out := make(map[string]interface{}, len(v.m))
		for k, e := range v.m {
			out[k] = e.Raw()
		}
		return out
	}
	return nil
}

// ValueOf converts a plain Go value (as produced by encoding/json or passed
// by a caller building a User property map) into a Value. It returns an
// error for types with no JSON-representable shape.
func ValueOf(x interface{}) (Value, error) {
	switch t := x.(type) {
	case nil:
		return NullValue(), nil
	case bool:
		return BoolValue(t), nil
	case int:
		return IntValue(int64(t)), nil
	case int32:
		return IntValue(int64(t)), nil
	case int64:
		return IntValue(t), nil
	case float32:
		return FloatValue(float64(t)), nil
	case float64:
		// JSON numbers decode as float64; keep whole numbers as float
		// rather than guessing int, matching encoding/json's behavior.
		return FloatValue(t), nil
	case string:
		return StringValue(t), nil
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return IntValue(i), nil
		}
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("value: invalid json.Number %q", t)
		}
		return FloatValue(f), nil
	case []interface{}:
		list := make([]Value, len(t))
		for i, e := range t {
			cv, err := ValueOf(e)
			if err != nil {
				return Value{}, err
			}
			list[i] = cv
		}
		return ListValue(list), nil
	case map[string]interface{}:
		m := make(map[string]Value, len(t))
		for k, e := range t {
			cv, err := ValueOf(e)
			if err != nil {
				return Value{}, err
			}
			m[k] = cv
		}
		return MapValue(m), nil
	case Value:
		return t, nil
	default:
		return Value{}, fmt.Errorf("value: unsupported type %T", x)
	}
}

// MustValueOf is like ValueOf but panics on error; useful for constants
// built from literals known at compile time.
func MustValueOf(x interface{}) Value {
	v, err := ValueOf(x)
	if err != nil {
		panic(err)
	}
	return v
}

// DeepEqual reports whether two Values represent the same data, comparing
// lists element-wise and maps key/value-wise, per the ConfigMap diff
// invariant in §4.I (variation differs by deep equality).
func DeepEqual(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case kindNull:
		return true
	case kindBool:
		return a.b == b.b
	case kindInt:
		return a.i == b.i
	case kindFloat:
		return a.f == b.f
	case kindString:
		return a.s == b.s
	case kindList:
		if len(a.list) != len(b.list) {
			return false
		}
		for i := range a.list {
			if !DeepEqual(a.list[i], b.list[i]) {
				return false
			}
		}
		return true
	case kindMap:
		if len(a.m) != len(b.m) {
			return false
		}
		for k, av := range a.m {
			bv, ok := b.m[k]
			if !ok || !DeepEqual(av, bv) {
				return false
			}
		}
		return true
	}
	return false
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Raw())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	cv, err := ValueOf(raw)
	if err != nil {
		return err
	}
	*v = cv
	return nil
}

// sortedKeys is a small helper used by User's canonicalSerialization, which
// needs deterministic output.
func sortedKeys(m map[string]Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
