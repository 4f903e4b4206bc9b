package vm

import "math"

// ---------------------------------------------------------------------------
// Value: tagged runtime values
// ---------------------------------------------------------------------------

// Kind discriminates the variants of a Value.
type Kind uint8

const (
	KindNil Kind = iota
	KindBool
	KindInt
	KindFloat
	KindStr
	KindList
	KindDict
	KindRange
	KindProto
	KindClosure
	KindBound
	KindClass
	KindInstance
	KindNative
	KindSuper
	KindStop // the StopIteration sentinel
)

// kindNames holds the user-facing type name per kind, as reported in
// diagnostics ("unsupported operand type 'str'", etc.).
var kindNames = [...]string{
	KindNil:      "NoneType",
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindStr:      "str",
	KindList:     "list",
	KindDict:     "dict",
	KindRange:    "range",
	KindProto:    "code",
	KindClosure:  "function",
	KindBound:    "method",
	KindClass:    "class",
	KindInstance: "instance",
	KindNative:   "builtin",
	KindSuper:    "super",
	KindStop:     "StopIteration",
}

// String returns the user-facing type name for a kind.
func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "unknown"
}

// Value is a tagged variant. Scalars live inline; heap variants share a
// pointer payload, so every copy of a List/Dict/Class/Instance value aliases
// the same underlying object.
type Value struct {
	kind Kind
	num  uint64 // int64 bits, float64 bits, or 0/1 for bool
	str  string
	obj  any
}

// Pre-built immutable values.
var (
	Nil   = Value{kind: KindNil}
	True  = Value{kind: KindBool, num: 1}
	False = Value{kind: KindBool, num: 0}

	// StopIteration is the sentinel a user __next__ returns to end a loop.
	StopIteration = Value{kind: KindStop}
)

// ---------------------------------------------------------------------------
// Constructors
// ---------------------------------------------------------------------------

// FromInt creates an integer value.
func FromInt(n int64) Value {
	return Value{kind: KindInt, num: uint64(n)}
}

// FromFloat creates a float value.
func FromFloat(f float64) Value {
	return Value{kind: KindFloat, num: math.Float64bits(f)}
}

// FromBool creates a boolean value.
func FromBool(b bool) Value {
	if b {
		return True
	}
	return False
}

// FromStr creates a string value.
func FromStr(s string) Value {
	return Value{kind: KindStr, str: s}
}

// FromList wraps a heap list.
func FromList(l *List) Value { return Value{kind: KindList, obj: l} }

// FromDict wraps a heap dict.
func FromDict(d *Dict) Value { return Value{kind: KindDict, obj: d} }

// FromRange wraps a lazy integer range.
func FromRange(r *Range) Value { return Value{kind: KindRange, obj: r} }

// FromProto wraps a function prototype.
func FromProto(p *Proto) Value { return Value{kind: KindProto, obj: p} }

// FromClosure wraps a runtime closure.
func FromClosure(c *Closure) Value { return Value{kind: KindClosure, obj: c} }

// FromBound wraps a bound method.
func FromBound(b *BoundMethod) Value { return Value{kind: KindBound, obj: b} }

// FromClass wraps a class object.
func FromClass(c *Class) Value { return Value{kind: KindClass, obj: c} }

// FromInstance wraps a class instance.
func FromInstance(i *Instance) Value { return Value{kind: KindInstance, obj: i} }

// FromNative wraps a host-provided callable.
func FromNative(n *Native) Value { return Value{kind: KindNative, obj: n} }

// FromSuper wraps a super() proxy.
func FromSuper(s *SuperProxy) Value { return Value{kind: KindSuper, obj: s} }

// ---------------------------------------------------------------------------
// Type checking
// ---------------------------------------------------------------------------

// Kind returns the variant tag.
func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNil() bool      { return v.kind == KindNil }
func (v Value) IsBool() bool     { return v.kind == KindBool }
func (v Value) IsInt() bool      { return v.kind == KindInt }
func (v Value) IsFloat() bool    { return v.kind == KindFloat }
func (v Value) IsStr() bool      { return v.kind == KindStr }
func (v Value) IsList() bool     { return v.kind == KindList }
func (v Value) IsDict() bool     { return v.kind == KindDict }
func (v Value) IsRange() bool    { return v.kind == KindRange }
func (v Value) IsClosure() bool  { return v.kind == KindClosure }
func (v Value) IsClass() bool    { return v.kind == KindClass }
func (v Value) IsInstance() bool { return v.kind == KindInstance }

// IsNumber reports whether v is an Int or a Float.
func (v Value) IsNumber() bool { return v.kind == KindInt || v.kind == KindFloat }

// ---------------------------------------------------------------------------
// Accessors (panic on kind mismatch: a mismatch is a VM bug, not a user error)
// ---------------------------------------------------------------------------

// Int returns the integer payload. Panics if v is not an Int.
func (v Value) Int() int64 {
	if v.kind != KindInt {
		panic("Value.Int: not an int")
	}
	return int64(v.num)
}

// Float returns the float payload. Panics if v is not a Float.
func (v Value) Float() float64 {
	if v.kind != KindFloat {
		panic("Value.Float: not a float")
	}
	return math.Float64frombits(v.num)
}

// Bool returns the boolean payload. Panics if v is not a Bool.
func (v Value) Bool() bool {
	if v.kind != KindBool {
		panic("Value.Bool: not a bool")
	}
	return v.num != 0
}

// Str returns the string payload. Panics if v is not a Str.
func (v Value) Str() string {
	if v.kind != KindStr {
		panic("Value.Str: not a str")
	}
	return v.str
}

// AsFloat widens an Int or Float to float64. Panics otherwise.
func (v Value) AsFloat() float64 {
	switch v.kind {
	case KindInt:
		return float64(int64(v.num))
	case KindFloat:
		return math.Float64frombits(v.num)
	}
	panic("Value.AsFloat: not a number")
}

func (v Value) List() *List             { return v.obj.(*List) }
func (v Value) Dict() *Dict             { return v.obj.(*Dict) }
func (v Value) Range() *Range           { return v.obj.(*Range) }
func (v Value) Proto() *Proto           { return v.obj.(*Proto) }
func (v Value) Closure() *Closure       { return v.obj.(*Closure) }
func (v Value) Bound() *BoundMethod     { return v.obj.(*BoundMethod) }
func (v Value) Class() *Class           { return v.obj.(*Class) }
func (v Value) Instance() *Instance     { return v.obj.(*Instance) }
func (v Value) Native() *Native         { return v.obj.(*Native) }
func (v Value) Super() *SuperProxy      { return v.obj.(*SuperProxy) }

// ---------------------------------------------------------------------------
// Truthiness and equality
// ---------------------------------------------------------------------------

// IsTruthy implements the language's boolean coercion: None and False are
// falsy, zero numbers are falsy, empty strings and collections are falsy,
// everything else is truthy.
func (v Value) IsTruthy() bool {
	switch v.kind {
	case KindNil:
		return false
	case KindBool:
		return v.num != 0
	case KindInt:
		return int64(v.num) != 0
	case KindFloat:
		return math.Float64frombits(v.num) != 0
	case KindStr:
		return len(v.str) != 0
	case KindList:
		return len(v.List().Elems) != 0
	case KindDict:
		return v.Dict().Len() != 0
	case KindRange:
		return v.Range().Len() != 0
	default:
		return true
	}
}

// Equal implements the language's == operator. Int and Float compare
// numerically across kinds; strings compare by content; lists and dicts
// compare structurally; other heap kinds compare by identity. Values of
// unrelated kinds are unequal, never an error.
func Equal(a, b Value) bool {
	if a.IsNumber() && b.IsNumber() {
		if a.kind == KindInt && b.kind == KindInt {
			return a.Int() == b.Int()
		}
		return a.AsFloat() == b.AsFloat()
	}
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindNil, KindStop:
		return true
	case KindBool:
		return a.num == b.num
	case KindStr:
		return a.str == b.str
	case KindList:
		la, lb := a.List(), b.List()
		if la == lb {
			return true
		}
		if len(la.Elems) != len(lb.Elems) {
			return false
		}
		for i := range la.Elems {
			if !Equal(la.Elems[i], lb.Elems[i]) {
				return false
			}
		}
		return true
	case KindDict:
		da, db := a.Dict(), b.Dict()
		if da == db {
			return true
		}
		if da.Len() != db.Len() {
			return false
		}
		for _, k := range da.keys {
			bv, ok := db.Get(k)
			if !ok || !Equal(da.entries[k], bv) {
				return false
			}
		}
		return true
	case KindRange:
		ra, rb := a.Range(), b.Range()
		return ra.Start == rb.Start && ra.Stop == rb.Stop && ra.Step == rb.Step
	default:
		return a.obj == b.obj
	}
}
