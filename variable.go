// SPDX-License-Identifier: MIT
// Copyright (c) 2026 WoozyMasta
// Source: github.com/woozymasta/tqarchive

package tqarchive

import (
	"fmt"
	"math"
	"strconv"
)

// DataType is the variable data type tag.
type DataType uint8

// Variable data types. Unknown carries the original on-disk tag in Variable.RawType.
const (
	Integer DataType = 0
	Float   DataType = 1
	String  DataType = 2
	Boolean DataType = 3
	Unknown DataType = 4
)

// String returns the type name used by the variable text form.
func (t DataType) String() string {
	switch t {
	case Integer:
		return "Integer"
	case Float:
		return "Float"
	case String:
		return "StringVar"
	case Boolean:
		return "Boolean"
	default:
		return "Unknown"
	}
}

// dataTypeFromTag maps an on-disk tag to DataType.
func dataTypeFromTag(tag uint16) DataType {
	if tag < uint16(Unknown) {
		return DataType(tag)
	}

	return Unknown
}

// Variable is one named, typed, possibly multi-valued record attribute.
// The number of values is fixed at construction.
type Variable struct {
	name    string
	strs    []string
	ints    []int32
	floats  []float32
	id      int32
	rawType uint16
	typ     DataType
}

// NewVariable creates a variable with count zero values of the given type.
func NewVariable(id int32, name string, typ DataType, count int) (*Variable, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: variable %q needs at least one value", ErrIndexOutOfRange, name)
	}

	if typ > Unknown {
		typ = Unknown
	}

	v := &Variable{id: id, name: name, typ: typ, rawType: uint16(typ)}
	switch typ {
	case Float:
		v.floats = make([]float32, count)
	case String:
		v.strs = make([]string, count)
	default:
		v.ints = make([]int32, count)
	}

	return v, nil
}

// NewIntVariable creates an Integer variable with the given values.
func NewIntVariable(id int32, name string, values ...int32) *Variable {
	return &Variable{id: id, name: name, typ: Integer, rawType: uint16(Integer), ints: append([]int32(nil), values...)}
}

// NewBoolVariable creates a Boolean variable with the given values (non-zero is true).
func NewBoolVariable(id int32, name string, values ...int32) *Variable {
	return &Variable{id: id, name: name, typ: Boolean, rawType: uint16(Boolean), ints: append([]int32(nil), values...)}
}

// NewFloatVariable creates a Float variable with the given values.
func NewFloatVariable(id int32, name string, values ...float32) *Variable {
	return &Variable{id: id, name: name, typ: Float, rawType: uint16(Float), floats: append([]float32(nil), values...)}
}

// NewStringVariable creates a StringVar variable with the given values.
func NewStringVariable(id int32, name string, values ...string) *Variable {
	return &Variable{id: id, name: name, typ: String, rawType: uint16(String), strs: append([]string(nil), values...)}
}

// NewUnknownVariable creates an opaque variable that keeps tag and raw payload words.
func NewUnknownVariable(id int32, name string, tag uint16, values ...int32) *Variable {
	return &Variable{id: id, name: name, typ: Unknown, rawType: tag, ints: append([]int32(nil), values...)}
}

// Name returns the variable name.
func (v *Variable) Name() string { return v.name }

// ID returns the stable numeric identity of the variable.
func (v *Variable) ID() int32 { return v.id }

// Type returns the variable data type.
func (v *Variable) Type() DataType { return v.typ }

// RawType returns the on-disk type tag (differs from Type only for Unknown).
func (v *Variable) RawType() uint16 { return v.rawType }

// Len returns the number of values.
func (v *Variable) Len() int {
	switch v.typ {
	case Float:
		return len(v.floats)
	case String:
		return len(v.strs)
	default:
		return len(v.ints)
	}
}

// Int returns value i of an Integer, Boolean, or Unknown variable.
func (v *Variable) Int(i int) (int32, error) {
	if v.ints == nil {
		return 0, fmt.Errorf("%w: %s is %s", ErrTypeMismatch, v.name, v.typ)
	}
	if i < 0 || i >= len(v.ints) {
		return 0, fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, v.name, i)
	}

	return v.ints[i], nil
}

// Float returns value i of a Float variable.
func (v *Variable) Float(i int) (float32, error) {
	if v.typ != Float {
		return 0, fmt.Errorf("%w: %s is %s", ErrTypeMismatch, v.name, v.typ)
	}
	if i < 0 || i >= len(v.floats) {
		return 0, fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, v.name, i)
	}

	return v.floats[i], nil
}

// StringValue returns value i of a StringVar variable.
func (v *Variable) StringValue(i int) (string, error) {
	if v.typ != String {
		return "", fmt.Errorf("%w: %s is %s", ErrTypeMismatch, v.name, v.typ)
	}
	if i < 0 || i >= len(v.strs) {
		return "", fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, v.name, i)
	}

	return v.strs[i], nil
}

// SetInt replaces value i of an Integer, Boolean, or Unknown variable.
func (v *Variable) SetInt(i int, value int32) error {
	if v.ints == nil {
		return fmt.Errorf("%w: %s is %s", ErrTypeMismatch, v.name, v.typ)
	}
	if i < 0 || i >= len(v.ints) {
		return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, v.name, i)
	}

	v.ints[i] = value
	return nil
}

// SetFloat replaces value i of a Float variable.
func (v *Variable) SetFloat(i int, value float32) error {
	if v.typ != Float {
		return fmt.Errorf("%w: %s is %s", ErrTypeMismatch, v.name, v.typ)
	}
	if i < 0 || i >= len(v.floats) {
		return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, v.name, i)
	}

	v.floats[i] = value
	return nil
}

// SetString replaces value i of a StringVar variable.
func (v *Variable) SetString(i int, value string) error {
	if v.typ != String {
		return fmt.Errorf("%w: %s is %s", ErrTypeMismatch, v.name, v.typ)
	}
	if i < 0 || i >= len(v.strs) {
		return fmt.Errorf("%w: %s[%d]", ErrIndexOutOfRange, v.name, i)
	}

	v.strs[i] = value
	return nil
}

// SetValue replaces value i from a dynamically typed value.
// Accepted kinds: int, int32, int64, bool for integer types; float32, float64 for Float;
// string for StringVar.
func (v *Variable) SetValue(i int, value any) error {
	switch v.typ {
	case Float:
		switch x := value.(type) {
		case float32:
			return v.SetFloat(i, x)
		case float64:
			return v.SetFloat(i, float32(x))
		}
	case String:
		if s, ok := value.(string); ok {
			return v.SetString(i, s)
		}
	default:
		switch x := value.(type) {
		case int32:
			return v.SetInt(i, x)
		case int:
			if x < math.MinInt32 || x > math.MaxInt32 {
				return fmt.Errorf("%w: %s[%d]=%d overflows int32", ErrTypeMismatch, v.name, i, x)
			}
			return v.SetInt(i, int32(x))
		case int64:
			if x < math.MinInt32 || x > math.MaxInt32 {
				return fmt.Errorf("%w: %s[%d]=%d overflows int32", ErrTypeMismatch, v.name, i, x)
			}
			return v.SetInt(i, int32(x))
		case bool:
			if x {
				return v.SetInt(i, 1)
			}
			return v.SetInt(i, 0)
		}
	}

	return fmt.Errorf("%w: %s is %s, got %T", ErrTypeMismatch, v.name, v.typ, value)
}

// Value returns value i as int32, float32, or string; nil when i is out of range.
func (v *Variable) Value(i int) any {
	if i < 0 || i >= v.Len() {
		return nil
	}

	switch v.typ {
	case Float:
		return v.floats[i]
	case String:
		return v.strs[i]
	default:
		return v.ints[i]
	}
}

// Values returns a copy of all values.
func (v *Variable) Values() []any {
	out := make([]any, v.Len())
	for i := range out {
		out[i] = v.Value(i)
	}

	return out
}

// Clone returns a deep copy.
func (v *Variable) Clone() *Variable {
	c := *v
	if v.ints != nil {
		c.ints = append([]int32(nil), v.ints...)
	}
	if v.floats != nil {
		c.floats = append([]float32(nil), v.floats...)
	}
	if v.strs != nil {
		c.strs = append([]string(nil), v.strs...)
	}

	return &c
}

// Equal reports whether both variables have equal name, id, type, and values.
// Floats are compared at the 6-decimal precision of the text form.
func (v *Variable) Equal(o *Variable) bool {
	if v == nil || o == nil {
		return v == o
	}
	if v.name != o.name || v.id != o.id || v.typ != o.typ || v.rawType != o.rawType || v.Len() != o.Len() {
		return false
	}

	switch v.typ {
	case Float:
		for i := range v.floats {
			if formatFloat(v.floats[i]) != formatFloat(o.floats[i]) {
				return false
			}
		}
	case String:
		for i := range v.strs {
			if v.strs[i] != o.strs[i] {
				return false
			}
		}
	default:
		for i := range v.ints {
			if v.ints[i] != o.ints[i] {
				return false
			}
		}
	}

	return true
}

// validate checks that the value slices agree with the declared type.
func (v *Variable) validate() error {
	if v.name == "" {
		return fmt.Errorf("%w: variable without name", ErrEncode)
	}

	var ok bool
	switch v.typ {
	case Float:
		ok = v.floats != nil && v.ints == nil && v.strs == nil
	case String:
		ok = v.strs != nil && v.ints == nil && v.floats == nil
	case Integer, Boolean, Unknown:
		ok = v.ints != nil && v.floats == nil && v.strs == nil
	}

	if !ok {
		return fmt.Errorf("%w: variable %q values do not match type %s", ErrEncode, v.name, v.typ)
	}
	if v.Len() < 1 || v.Len() > math.MaxUint16 {
		return fmt.Errorf("%w: variable %q has %d values", ErrEncode, v.name, v.Len())
	}

	return nil
}

// formatFloat renders a float with the fixed 6-decimal text precision.
func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'f', 6, 32)
}
