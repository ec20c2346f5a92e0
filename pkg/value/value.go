package value

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ValueType represents the type of a Value.
type ValueType uint8

const (
	TypeUndefined ValueType = iota // Default/uninitialized/implicit return
	TypeNull                       // Explicit null value
	TypeBoolean
	TypeNumber
	TypeString
	TypeSymbol
	TypeObject // Ordinary and function objects alike (*Object)
)

func (t ValueType) String() string {
	switch t {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "null"
	case TypeBoolean:
		return "boolean"
	case TypeNumber:
		return "number"
	case TypeString:
		return "string"
	case TypeSymbol:
		return "symbol"
	case TypeObject:
		return "object"
	default:
		return fmt.Sprintf("ValueType(%d)", uint8(t))
	}
}

// Value represents a language value.
// We use a tagged union approach so primitives never allocate.
type Value struct {
	typ ValueType
	as  struct {
		boolean bool
		number  float64
		str     string
		ref     interface{} // *Symbol or *Object
	}
}

// Undefined and Null are the two singleton primitive values.
var (
	Undefined = Value{typ: TypeUndefined}
	Null      = Value{typ: TypeNull}
	True      = Bool(true)
	False     = Bool(false)
)

// Constructors

func Bool(b bool) Value {
	v := Value{typ: TypeBoolean}
	v.as.boolean = b
	return v
}

func Number(f float64) Value {
	v := Value{typ: TypeNumber}
	v.as.number = f
	return v
}

func String(s string) Value {
	v := Value{typ: TypeString}
	v.as.str = s
	return v
}

func SymbolValue(sym *Symbol) Value {
	if sym == nil {
		panic("value: nil symbol")
	}
	v := Value{typ: TypeSymbol}
	v.as.ref = sym
	return v
}

// ObjectValue wraps o; a nil object yields null.
func ObjectValue(o *Object) Value {
	if o == nil {
		return Null
	}
	v := Value{typ: TypeObject}
	v.as.ref = o
	return v
}

// Type Checkers

func (v Value) Type() ValueType { return v.typ }
func (v Value) IsUndefined() bool { return v.typ == TypeUndefined }
func (v Value) IsNull() bool { return v.typ == TypeNull }
func (v Value) IsNullish() bool { return v.typ == TypeUndefined || v.typ == TypeNull }
func (v Value) IsBoolean() bool { return v.typ == TypeBoolean }
func (v Value) IsNumber() bool { return v.typ == TypeNumber }
func (v Value) IsString() bool { return v.typ == TypeString }
func (v Value) IsSymbol() bool { return v.typ == TypeSymbol }
func (v Value) IsObject() bool { return v.typ == TypeObject }
func (v Value) IsPrimitive() bool { return v.typ != TypeObject }

// Accessors (panic on type mismatch; callers check first)

func (v Value) AsBoolean() bool {
	if v.typ != TypeBoolean {
		panic("value is not a boolean")
	}
	return v.as.boolean
}

func (v Value) AsNumber() float64 {
	if v.typ != TypeNumber {
		panic("value is not a number")
	}
	return v.as.number
}

func (v Value) AsString() string {
	if v.typ != TypeString {
		panic("value is not a string")
	}
	return v.as.str
}

func (v Value) AsSymbol() *Symbol {
	if v.typ != TypeSymbol {
		panic("value is not a symbol")
	}
	return v.as.ref.(*Symbol)
}

func (v Value) AsObject() *Object {
	if v.typ != TypeObject {
		panic("value is not an object")
	}
	return v.as.ref.(*Object)
}

// Object returns the object held by v, or nil for primitives.
func (v Value) Object() *Object {
	if v.typ != TypeObject {
		return nil
	}
	return v.as.ref.(*Object)
}

// IsCallable reports whether v is an object with a [[Call]] behaviour.
func (v Value) IsCallable() bool {
	o := v.Object()
	return o != nil && o.call != nil
}

// SameValue implements the SameValue comparison (NaN equals NaN, +0 and -0 differ).
func SameValue(a, b Value) bool {
	if a.typ != b.typ {
		return false
	}
	switch a.typ {
	case TypeUndefined, TypeNull:
		return true
	case TypeBoolean:
		return a.as.boolean == b.as.boolean
	case TypeNumber:
		x, y := a.as.number, b.as.number
		if math.IsNaN(x) && math.IsNaN(y) {
			return true
		}
		if x == 0 && y == 0 {
			return math.Signbit(x) == math.Signbit(y)
		}
		return x == y
	case TypeString:
		return a.as.str == b.as.str
	default:
		return a.as.ref == b.as.ref
	}
}

// ToBoolean implements the ToBoolean abstract operation.
func ToBoolean(v Value) bool {
	switch v.typ {
	case TypeUndefined, TypeNull:
		return false
	case TypeBoolean:
		return v.as.boolean
	case TypeNumber:
		return v.as.number != 0 && !math.IsNaN(v.as.number)
	case TypeString:
		return v.as.str != ""
	default:
		return true
	}
}

// formatNumber renders a number the way property keys need it. Full
// Number::toString is out of the core's scope; shortest round-trip output
// agrees with it for integers and ordinary decimals.
func formatNumber(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == 0:
		return "0"
	}
	if f == math.Trunc(f) && math.Abs(f) < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func parseNumber(s string) float64 {
	s = strings.TrimSpace(s)
	switch s {
	case "":
		return 0
	case "Infinity", "+Infinity":
		return math.Inf(1)
	case "-Infinity":
		return math.Inf(-1)
	}
	if len(s) > 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		n, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return math.NaN()
		}
		return float64(n)
	}
	// ParseFloat also accepts inf/nan spellings, hex floats and underscores.
	if strings.ContainsAny(s, "iInNxXpP_") {
		return math.NaN()
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f
		}
		return math.NaN()
	}
	return f
}

// String representation for debugging/printing

func (v Value) String() string {
	switch v.typ {
	case TypeUndefined:
		return "undefined"
	case TypeNull:
		return "null"
	case TypeBoolean:
		return strconv.FormatBool(v.as.boolean)
	case TypeNumber:
		return formatNumber(v.as.number)
	case TypeString:
		return v.as.str
	case TypeSymbol:
		return v.as.ref.(*Symbol).String()
	case TypeObject:
		o := v.as.ref.(*Object)
		if o.call != nil {
			return fmt.Sprintf("[Function %s]", o.Name())
		}
		return fmt.Sprintf("[object %s]", o.Class)
	default:
		return fmt.Sprintf("Unknown ValueType: %d", v.typ)
	}
}
