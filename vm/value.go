package vm

import "strconv"

// ---------------------------------------------------------------------------
// Runtime values
// ---------------------------------------------------------------------------

// ValueKind tags a runtime value.
type ValueKind int

const (
	ValueNull ValueKind = iota
	ValueNumber
	ValueBool
	ValueString
)

func (k ValueKind) String() string {
	switch k {
	case ValueNumber:
		return "Number"
	case ValueBool:
		return "Bool"
	case ValueString:
		return "String"
	}
	return "Null"
}

// Value is a runtime value: a number, boolean, string, or null. Strings
// from the constant pool are interned at load time, so equal ldc
// instructions push the same Go string; add of two strings produces a new
// string.
type Value struct {
	Kind ValueKind
	Num  float64
	Str  string
	Flag bool
}

// Null is the null value.
var Null = Value{Kind: ValueNull}

// NumberValue wraps an IEEE-754 double.
func NumberValue(v float64) Value { return Value{Kind: ValueNumber, Num: v} }

// BoolValue wraps a boolean.
func BoolValue(v bool) Value { return Value{Kind: ValueBool, Flag: v} }

// StringValue wraps a string.
func StringValue(v string) Value { return Value{Kind: ValueString, Str: v} }

// Truthy reports the truthiness of the value: false and null are falsy,
// everything else is truthy.
func (v Value) Truthy() bool {
	switch v.Kind {
	case ValueBool:
		return v.Flag
	case ValueNull:
		return false
	}
	return true
}

// Equals compares two values. Values of differing kinds are never equal;
// there is no implicit coercion.
func (v Value) Equals(other Value) bool {
	if v.Kind != other.Kind {
		return false
	}
	switch v.Kind {
	case ValueNumber:
		return v.Num == other.Num
	case ValueBool:
		return v.Flag == other.Flag
	case ValueString:
		return v.Str == other.Str
	}
	return true // both null
}

// String renders the value the way print does: numbers in shortest
// round-trip decimal, booleans as true/false, strings as raw characters,
// and null as nil.
func (v Value) String() string {
	switch v.Kind {
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'g', -1, 64)
	case ValueBool:
		return strconv.FormatBool(v.Flag)
	case ValueString:
		return v.Str
	}
	return "nil"
}
