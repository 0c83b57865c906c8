package protoop

import "fmt"

// Kind discriminates the shape carried by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindInt
	KindPointer
	KindBool
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindInt:
		return "int"
	case KindPointer:
		return "pointer"
	case KindBool:
		return "bool"
	case KindEnum:
		return "enum"
	default:
		return "invalid"
	}
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "int":
		return KindInt, nil
	case "pointer":
		return KindPointer, nil
	case "bool":
		return KindBool, nil
	case "enum":
		return KindEnum, nil
	}

	return KindInvalid, fmt.Errorf("unknown value kind %q", s)
}

// Value is one slot of an invocation's input or output vector. The zero
// Value is undefined.
//
// Integers, booleans and enums are stored as a 64-bit word. Pointers carry
// an arbitrary host reference; arena addresses of a plugin travel as Int.
type Value struct {
	kind Kind
	word uint64
	ref  any
}

// Int wraps a signed integer.
func Int(v int64) Value { return Value{kind: KindInt, word: uint64(v)} }

// Uint wraps an unsigned integer.
func Uint(v uint64) Value { return Value{kind: KindInt, word: v} }

// Bool wraps a boolean.
func Bool(v bool) Value {
	var w uint64
	if v {
		w = 1
	}

	return Value{kind: KindBool, word: w}
}

// Enum wraps an enumeration constant.
func Enum[E ~int | ~int32 | ~uint8 | ~uint16 | ~uint32](v E) Value {
	return Value{kind: KindEnum, word: uint64(v)}
}

// Pointer wraps a host reference. A nil reference yields a null pointer.
func Pointer(ref any) Value { return Value{kind: KindPointer, ref: ref} }

// Kind reports the shape of the value.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether the slot was ever written.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Word returns the machine-word view of the value. Pointers have no word
// view and yield 0.
func (v Value) Word() uint64 { return v.word }

// Int returns the value as a signed integer.
func (v Value) Int() int64 { return int64(v.word) }

// Uint returns the value as an unsigned integer.
func (v Value) Uint() uint64 { return v.word }

// Bool returns true for any non-zero word or non-nil pointer.
func (v Value) Bool() bool {
	if v.kind == KindPointer {
		return v.ref != nil
	}

	return v.word != 0
}

// Ref returns the host reference of a pointer value, or nil.
func (v Value) Ref() any { return v.ref }

func (v Value) String() string {
	switch v.kind {
	case KindPointer:
		if v.ref == nil {
			return "pointer(nil)"
		}

		return fmt.Sprintf("pointer(%T)", v.ref)
	case KindBool:
		return fmt.Sprintf("bool(%t)", v.Bool())
	case KindInvalid:
		return "undefined"
	default:
		return fmt.Sprintf("%s(%d)", v.kind, v.Int())
	}
}

// As returns the host reference of v as a T. It reports false when v is not
// a pointer to a T.
func As[T any](v Value) (T, bool) {
	t, ok := v.ref.(T)
	return t, ok
}

// EnumOf converts v to the enumeration type E.
func EnumOf[E ~int | ~int32 | ~uint8 | ~uint16 | ~uint32](v Value) E {
	return E(v.word)
}
