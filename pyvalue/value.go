// Package pyvalue models the constant values of the analysed language and
// runs its operators on them. Constant folding and exact-raise synthesis use
// it so the compiler reproduces the language's own results and exception
// messages instead of re-deriving them.
package pyvalue

import (
	"math/big"
	"unicode/utf8"
)

// Value is a constant of the analysed language.
type Value interface {
	// TypeName is the language-level type name, as it appears in messages.
	TypeName() string
}

type NoneType struct{}

// None is the only NoneType value.
var None Value = NoneType{}

type (
	Bool    bool
	Float   float64
	Complex complex128
	Str     string

	// Bytes is immutable binary data kept in a Go string.
	Bytes string

	// Tuple is immutable; callers must not modify the slice after building it.
	Tuple []Value
)

// Int is an arbitrary precision integer. The zero Int is 0.
type Int struct {
	v *big.Int
}

type ByteArray struct {
	Data []byte
}

type List struct {
	Items []Value
}

func (NoneType) TypeName() string   { return "NoneType" }
func (Bool) TypeName() string       { return "bool" }
func (Int) TypeName() string        { return "int" }
func (Float) TypeName() string      { return "float" }
func (Complex) TypeName() string    { return "complex" }
func (Str) TypeName() string        { return "str" }
func (Bytes) TypeName() string      { return "bytes" }
func (*ByteArray) TypeName() string { return "bytearray" }
func (Tuple) TypeName() string      { return "tuple" }
func (*List) TypeName() string      { return "list" }

// NewInt returns the integer n.
func NewInt(n int64) Int {
	return Int{v: big.NewInt(n)}
}

// NewBigInt returns an integer holding a copy of n.
func NewBigInt(n *big.Int) Int {
	return Int{v: new(big.Int).Set(n)}
}

// ParseInt parses a base-10 integer literal.
func ParseInt(s string) (Int, bool) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Int{}, false
	}
	return Int{v: n}, true
}

// Big returns a copy of the integer.
func (i Int) Big() *big.Int {
	return new(big.Int).Set(i.big())
}

func (i Int) big() *big.Int {
	if i.v == nil {
		return new(big.Int)
	}
	return i.v
}

// IsMachineWord reports whether the value fits a signed 64-bit word.
func (i Int) IsMachineWord() bool {
	return i.big().IsInt64()
}

// BitLen is the bit length of the absolute value.
func (i Int) BitLen() int {
	return i.big().BitLen()
}

func NewByteArray(data []byte) *ByteArray {
	out := make([]byte, len(data))
	copy(out, data)
	return &ByteArray{Data: out}
}

func NewList(items ...Value) *List {
	out := make([]Value, len(items))
	copy(out, items)
	return &List{Items: out}
}

// Len returns the language-level length of sized values.
func Len(v Value) (int, bool) {
	switch x := v.(type) {
	case Str:
		return utf8.RuneCountInString(string(x)), true
	case Bytes:
		return len(x), true
	case *ByteArray:
		return len(x.Data), true
	case Tuple:
		return len(x), true
	case *List:
		return len(x.Items), true
	case *Set:
		return x.table.len(), true
	case *FrozenSet:
		return x.table.len(), true
	case *Dict:
		return x.table.len(), true
	}
	return 0, false
}

// Truth is the value's truthiness.
func Truth(v Value) bool {
	switch x := v.(type) {
	case NoneType:
		return false
	case Bool:
		return bool(x)
	case Int:
		return x.big().Sign() != 0
	case Float:
		return x != 0
	case Complex:
		return x != 0
	}
	if n, ok := Len(v); ok {
		return n != 0
	}
	return true
}

// asBig returns the integer behind bool and int values.
func asBig(v Value) (*big.Int, bool) {
	switch x := v.(type) {
	case Bool:
		if x {
			return big.NewInt(1), true
		}
		return new(big.Int), true
	case Int:
		return x.big(), true
	}
	return nil, false
}
