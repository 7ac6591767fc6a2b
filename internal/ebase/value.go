package ebase

import (
	"fmt"
	"strconv"
)

// ColumnType identifies the on-disk encoding of a column.
type ColumnType uint8

// Column type codes as stored in the schema block.
const (
	TypeInt8 ColumnType = iota
	TypeUint8
	TypeInt16
	TypeUint16
	TypeInt32
	TypeUint32
	TypeFloat32
	TypeFloat64
	TypeInlineString
	TypeStringRef
	TypeBlobRef
)

// Size returns the number of bytes the type occupies inside a record.
// Inline strings take their declared length from the column schema.
func (t ColumnType) Size(inlineLen int) int {
	switch t {
	case TypeInt8, TypeUint8:
		return 1
	case TypeInt16, TypeUint16:
		return 2
	case TypeInt32, TypeUint32, TypeFloat32, TypeStringRef, TypeBlobRef:
		return 4
	case TypeFloat64:
		return 8
	case TypeInlineString:
		return inlineLen
	default:
		return 0
	}
}

func (t ColumnType) String() string {
	switch t {
	case TypeInt8:
		return "i8"
	case TypeUint8:
		return "u8"
	case TypeInt16:
		return "i16"
	case TypeUint16:
		return "u16"
	case TypeInt32:
		return "i32"
	case TypeUint32:
		return "u32"
	case TypeFloat32:
		return "f32"
	case TypeFloat64:
		return "f64"
	case TypeInlineString:
		return "inline_string"
	case TypeStringRef:
		return "string_ref"
	case TypeBlobRef:
		return "blob_ref"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// ValueKind tags the decoded representation of a column value.
type ValueKind uint8

// Decoded value kinds.
const (
	KindInt ValueKind = iota
	KindFloat
	KindString
	KindRef
)

// Value is the decoded content of one record column. It is a small tagged
// union; downstream code normally goes through the ocd schema helpers rather
// than switching on the kind directly.
type Value struct {
	kind ValueKind
	i    int64
	f    float64
	s    string
}

// IntValue builds an integer value.
func IntValue(v int64) Value { return Value{kind: KindInt, i: v} }

// FloatValue builds a floating point value.
func FloatValue(v float64) Value { return Value{kind: KindFloat, f: v} }

// StringValue builds a string value.
func StringValue(v string) Value { return Value{kind: KindString, s: v} }

// RefValue builds a blob reference value holding the raw offset.
func RefValue(offset uint32) Value { return Value{kind: KindRef, i: int64(offset)} }

// Kind returns the tag of the value.
func (v Value) Kind() ValueKind { return v.kind }

// Int returns the value as an integer. Floats are truncated, numeric strings
// parsed; anything else yields 0.
func (v Value) Int() int64 {
	switch v.kind {
	case KindInt, KindRef:
		return v.i
	case KindFloat:
		return int64(v.f)
	case KindString:
		n, err := strconv.ParseInt(v.s, 10, 64)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

// Float returns the value as a float64, parsing numeric strings leniently.
func (v Value) Float() float64 {
	switch v.kind {
	case KindFloat:
		return v.f
	case KindInt, KindRef:
		return float64(v.i)
	case KindString:
		f, err := strconv.ParseFloat(v.s, 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Str returns the value as a string. Numbers are formatted in their shortest
// decimal representation.
func (v Value) Str() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindInt, KindRef:
		return strconv.FormatInt(v.i, 10)
	case KindFloat:
		return strconv.FormatFloat(v.f, 'f', -1, 64)
	default:
		return ""
	}
}
