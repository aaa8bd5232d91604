package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ParamType is the optional discriminator carried alongside a Parameter's
// structural Value. It never changes the Value's Kind on the wire (an
// "absent" value is always an absent value); it only changes how a
// string or numeric Value is *interpreted* by the application:
//   - ParamTypeByteArray: the Value is a String holding base64 bytes.
//   - ParamTypeFloat64 / ParamTypeFloat64Array: the Value must be read
//     as floating point even if its literal happened to be integral.
//
// Keeping this separate from ParamValueKind is deliberate.
type ParamType string

const (
	ParamTypeNone         ParamType = ""
	ParamTypeByteArray    ParamType = "byte_array"
	ParamTypeFloat64      ParamType = "float64"
	ParamTypeFloat64Array ParamType = "float64_array"
)

// ParamValueKind is the structural shape of a Parameter's value.
type ParamValueKind int

const (
	ParamValueUnset ParamValueKind = iota
	ParamValueInteger
	ParamValueFloat
	ParamValueBool
	ParamValueString
	ParamValueArray
	ParamValueStruct
)

// ParamValue is the recursive tagged value a Parameter carries: a number
// (kept as either exact integer or float depending on the literal seen
// on the wire), a bool, a string, an ordered array of ParamValue, a
// string-keyed map of ParamValue, or unset (meaning the parameter does
// not exist / was deleted).
type ParamValue struct {
	Kind    ParamValueKind
	Integer int64
	Float   float64
	Bool    bool
	Str     string
	Array   []ParamValue
	Struct  map[string]ParamValue
}

func IntegerValue(v int64) ParamValue  { return ParamValue{Kind: ParamValueInteger, Integer: v} }
func FloatValue(v float64) ParamValue  { return ParamValue{Kind: ParamValueFloat, Float: v} }
func BoolValue(v bool) ParamValue      { return ParamValue{Kind: ParamValueBool, Bool: v} }
func StringValue(v string) ParamValue  { return ParamValue{Kind: ParamValueString, Str: v} }
func ArrayValue(v []ParamValue) ParamValue {
	return ParamValue{Kind: ParamValueArray, Array: v}
}
func StructValue(v map[string]ParamValue) ParamValue {
	return ParamValue{Kind: ParamValueStruct, Struct: v}
}

// UnsetValue represents the absence of a parameter. Per the data model,
// setting a parameter to this value deletes it.
var UnsetValue = ParamValue{Kind: ParamValueUnset}

func (v ParamValue) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case ParamValueUnset:
		return []byte("null"), nil
	case ParamValueInteger:
		return json.Marshal(v.Integer)
	case ParamValueFloat:
		return json.Marshal(v.Float)
	case ParamValueBool:
		return json.Marshal(v.Bool)
	case ParamValueString:
		return json.Marshal(v.Str)
	case ParamValueArray:
		return json.Marshal(v.Array)
	case ParamValueStruct:
		return json.Marshal(v.Struct)
	default:
		return nil, fmt.Errorf("protocol: unknown ParamValue kind %d", v.Kind)
	}
}

func (v *ParamValue) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	switch {
	case bytes.Equal(trimmed, []byte("null")) || len(trimmed) == 0:
		*v = ParamValue{Kind: ParamValueUnset}
		return nil
	case len(trimmed) > 0 && trimmed[0] == '"':
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*v = ParamValue{Kind: ParamValueString, Str: s}
		return nil
	case len(trimmed) > 0 && trimmed[0] == '[':
		var raw []json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		arr := make([]ParamValue, len(raw))
		for i, r := range raw {
			if err := arr[i].UnmarshalJSON(r); err != nil {
				return err
			}
		}
		*v = ParamValue{Kind: ParamValueArray, Array: arr}
		return nil
	case len(trimmed) > 0 && trimmed[0] == '{':
		var raw map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &raw); err != nil {
			return err
		}
		m := make(map[string]ParamValue, len(raw))
		for k, r := range raw {
			var pv ParamValue
			if err := pv.UnmarshalJSON(r); err != nil {
				return err
			}
			m[k] = pv
		}
		*v = ParamValue{Kind: ParamValueStruct, Struct: m}
		return nil
	case bytes.Equal(trimmed, []byte("true")):
		*v = ParamValue{Kind: ParamValueBool, Bool: true}
		return nil
	case bytes.Equal(trimmed, []byte("false")):
		*v = ParamValue{Kind: ParamValueBool, Bool: false}
		return nil
	default:
		// Numeric literal. Preserve exact integer width unless the
		// literal itself carries a fractional part or exponent.
		if isIntegerLiteral(trimmed) {
			var i int64
			if err := json.Unmarshal(trimmed, &i); err == nil {
				*v = ParamValue{Kind: ParamValueInteger, Integer: i}
				return nil
			}
		}
		var f float64
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return fmt.Errorf("protocol: invalid parameter value literal %q: %w", trimmed, err)
		}
		*v = ParamValue{Kind: ParamValueFloat, Float: f}
		return nil
	}
}

func isIntegerLiteral(b []byte) bool {
	for _, c := range b {
		if c == '.' || c == 'e' || c == 'E' {
			return false
		}
	}
	return true
}

// coerceFloat forces this value (and, for arrays, every element) to be
// read as ParamValueFloat, applying the float64/float64_array type hint.
func (v ParamValue) coerceFloat() ParamValue {
	switch v.Kind {
	case ParamValueInteger:
		return ParamValue{Kind: ParamValueFloat, Float: float64(v.Integer)}
	case ParamValueArray:
		out := make([]ParamValue, len(v.Array))
		for i, e := range v.Array {
			out[i] = e.coerceFloat()
		}
		return ParamValue{Kind: ParamValueArray, Array: out}
	default:
		return v
	}
}

// Parameter is a named, typed value in the server's parameter store. See
// the data model for the "absent means unset" and byte_array/float64
// hint semantics.
type Parameter struct {
	Name  string
	Value ParamValue
	Type  ParamType
}

type parameterWire struct {
	Name  string     `json:"name"`
	Value ParamValue `json:"value,omitempty"`
	Type  ParamType  `json:"type,omitempty"`
}

func (p Parameter) MarshalJSON() ([]byte, error) {
	return json.Marshal(parameterWire{Name: p.Name, Value: p.Value, Type: p.Type})
}

func (p *Parameter) UnmarshalJSON(data []byte) error {
	var w parameterWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	value := w.Value
	if w.Type == ParamTypeFloat64 || w.Type == ParamTypeFloat64Array {
		value = value.coerceFloat()
	}
	*p = Parameter{Name: w.Name, Value: value, Type: w.Type}
	return nil
}

// IsUnset reports whether setting this parameter means "delete it".
func (p Parameter) IsUnset() bool { return p.Value.Kind == ParamValueUnset }
