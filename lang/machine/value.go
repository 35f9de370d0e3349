// Package machine implements the tagged value and heap object model, the
// mark-sweep garbage collector, the bytecode Chunk, and the stack-based
// virtual machine that executes compiled Lox programs.
package machine

import (
	"fmt"
	"math"
	"strconv"
)

// Value is the tagged union manipulated by the compiler and the virtual
// machine: Nil, Bool, Number or a reference to a heap object. Heap object
// variants (ObjString, ObjFunction, ObjClosure, ObjUpvalue, ObjClass,
// ObjInstance, ObjBoundMethod, ObjNative) each implement Value with their own
// methods and embed the shared object header.
type Value interface {
	// String formats the value the way Lox's `print` statement does.
	String() string
	// Type returns a short, user-facing name for the value's type.
	Type() string
	// Truth reports the value's truthiness: only Nil and Bool(false) are
	// falsey, everything else (including 0 and "") is truthy.
	Truth() bool
}

// NilType is the type of Nil. Its only value is Nil itself.
type NilType struct{}

// Nil is the singular Value representing the absence of a value.
var Nil = NilType{}

func (NilType) String() string { return "nil" }
func (NilType) Type() string   { return "nil" }
func (NilType) Truth() bool    { return false }

// Bool is the type of boolean values.
type Bool bool

func (b Bool) String() string {
	if b {
		return "true"
	}
	return "false"
}
func (b Bool) Type() string { return "bool" }
func (b Bool) Truth() bool  { return bool(b) }

// Number is the type of Lox's single numeric type, an IEEE-754 double.
type Number float64

func (n Number) String() string {
	f := float64(n)
	if math.IsInf(f, 1) {
		return "inf"
	}
	if math.IsInf(f, -1) {
		return "-inf"
	}
	if math.IsNaN(f) {
		return "nan"
	}
	return formatFloat(f)
}
func (n Number) Type() string { return "number" }
func (n Number) Truth() bool  { return true }

func formatFloat(f float64) string {
	// Shortest round-trippable decimal, matching integers without a
	// trailing ".0" so `print 1;` prints "1" rather than "1.0".
	if f == math.Trunc(f) && math.Abs(f) < 1e15 {
		return fmt.Sprintf("%.0f", f)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// Equal implements Lox's `==` / `!=` semantics: structural equality for Nil,
// Bool and Number (IEEE semantics, so NaN != NaN), reference identity for
// heap objects. Interning guarantees that two Strings with equal content
// compare equal under reference identity.
func Equal(a, b Value) bool {
	switch av := a.(type) {
	case NilType:
		_, ok := b.(NilType)
		return ok
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Number:
		bv, ok := b.(Number)
		return ok && float64(av) == float64(bv)
	default:
		return a == b
	}
}

// IsNumber reports whether v is a Number.
func IsNumber(v Value) (Number, bool) {
	n, ok := v.(Number)
	return n, ok
}

// IsString reports whether v is a *ObjString.
func IsString(v Value) (*ObjString, bool) {
	s, ok := v.(*ObjString)
	return s, ok
}
