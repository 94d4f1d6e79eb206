// Package docvalue implements the tagged value representation used to hold
// a document field's contents without resorting to bare interface{} juggling
// at every call site.
package docvalue

import "fmt"

// Kind identifies the concrete variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindLong
	KindDouble
	KindString
	KindDate
	KindBinary
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindBinary:
		return "binary"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "unknown"
	}
}

// Value is a closed sum type over the scalar and composite shapes a document
// field may hold. Object and Array variants reference children by arena
// index into a Graph rather than by pointer, so cyclic structures never need
// a shared mutable node.
type Value struct {
	kind   Kind
	b      bool
	i64    int64
	f64    float64
	s      string
	bin    []byte
	arenas []ArenaIndex // children, for Object (paired with keys) and Array
	keys   []string     // parallel to arenas, for Object only
	values []Value      // flat Array children that don't live in a Graph
}

func NewNull() Value   { return Value{kind: KindNull} }
func NewBool(b bool) Value    { return Value{kind: KindBool, b: b} }
func NewInt(i int32) Value    { return Value{kind: KindInt, i64: int64(i)} }
func NewLong(i int64) Value   { return Value{kind: KindLong, i64: i} }
func NewDouble(f float64) Value { return Value{kind: KindDouble, f64: f} }
func NewString(s string) Value  { return Value{kind: KindString, s: s} }
func NewDate(rfc3339 string) Value { return Value{kind: KindDate, s: rfc3339} }
func NewBinary(b []byte) Value  { return Value{kind: KindBinary, bin: append([]byte(nil), b...)} }

func NewArray(items []ArenaIndex) Value {
	return Value{kind: KindArray, arenas: items}
}

// NewValueArray builds an Array value whose children are held inline
// rather than resolved through a Graph. Used for projecting multi-valued
// stored fields, which have no Graph of their own to arena-index into.
func NewValueArray(items []Value) Value {
	return Value{kind: KindArray, values: items}
}

func NewObject(keys []string, items []ArenaIndex) Value {
	return Value{kind: KindObject, keys: keys, arenas: items}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) AsBool() (bool, bool) {
	if v.kind != KindBool {
		return false, false
	}
	return v.b, true
}

func (v Value) AsInt() (int32, bool) {
	if v.kind != KindInt {
		return 0, false
	}
	return int32(v.i64), true
}

func (v Value) AsLong() (int64, bool) {
	if v.kind != KindLong && v.kind != KindInt {
		return 0, false
	}
	return v.i64, true
}

func (v Value) AsDouble() (float64, bool) {
	if v.kind != KindDouble {
		return 0, false
	}
	return v.f64, true
}

func (v Value) AsString() (string, bool) {
	if v.kind != KindString && v.kind != KindDate {
		return "", false
	}
	return v.s, true
}

func (v Value) AsBinary() ([]byte, bool) {
	if v.kind != KindBinary {
		return nil, false
	}
	return v.bin, true
}

func (v Value) IsNull() bool { return v.kind == KindNull }

// ArrayItems returns the arena indices held by a Graph-backed Array value.
func (v Value) ArrayItems() ([]ArenaIndex, bool) {
	if v.kind != KindArray || v.values != nil {
		return nil, false
	}
	return v.arenas, true
}

// ValueItems returns the children of an Array value built with
// NewValueArray, i.e. one with no backing Graph to arena-index into.
func (v Value) ValueItems() ([]Value, bool) {
	if v.kind != KindArray || v.values == nil {
		return nil, false
	}
	return v.values, true
}

// ObjectField looks up a child by the spec's fallback order: the raw name,
// then the name with a leading underscore stripped, then "Id".
func (v Value) ObjectField(name string) (ArenaIndex, bool) {
	if v.kind != KindObject {
		return 0, false
	}
	if idx, ok := v.lookup(name); ok {
		return idx, true
	}
	if len(name) > 0 && name[0] == '_' {
		if idx, ok := v.lookup(name[1:]); ok {
			return idx, true
		}
	}
	if name != "Id" {
		if idx, ok := v.lookup("Id"); ok {
			return idx, true
		}
	}
	return 0, false
}

func (v Value) lookup(name string) (ArenaIndex, bool) {
	for i, k := range v.keys {
		if k == name {
			return v.arenas[i], true
		}
	}
	return 0, false
}

// ObjectKeys returns the declared field names of an Object value, in order.
func (v Value) ObjectKeys() []string {
	if v.kind != KindObject {
		return nil
	}
	return v.keys
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindInt, KindLong:
		return fmt.Sprintf("%d", v.i64)
	case KindDouble:
		return fmt.Sprintf("%g", v.f64)
	case KindString, KindDate:
		return v.s
	case KindBinary:
		return fmt.Sprintf("<%d bytes>", len(v.bin))
	case KindObject:
		return fmt.Sprintf("<object %d fields>", len(v.keys))
	case KindArray:
		if v.values != nil {
			return fmt.Sprintf("<array %d items>", len(v.values))
		}
		return fmt.Sprintf("<array %d items>", len(v.arenas))
	default:
		return "<unknown>"
	}
}
