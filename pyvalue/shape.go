package pyvalue

import (
	"math/big"

	"github.com/speakeasy-api/shapeflow/shapes"
)

// ShapeOf returns the concrete shape of a constant. Integers that leave the
// machine word are long.
func ShapeOf(v Value) *shapes.TypeShape {
	switch x := v.(type) {
	case NoneType:
		return shapes.None
	case Bool:
		return shapes.Bool
	case Int:
		if x.IsMachineWord() {
			return shapes.Int
		}
		return shapes.Long
	case Float:
		return shapes.Float
	case Complex:
		return shapes.Complex
	case Str:
		return shapes.Str
	case Bytes:
		return shapes.Bytes
	case *ByteArray:
		return shapes.ByteArray
	case Tuple:
		return shapes.Tuple
	case *List:
		return shapes.List
	case *Set:
		return shapes.Set
	case *FrozenSet:
		return shapes.FrozenSet
	case *Dict:
		return shapes.Dict
	}
	return shapes.Unknown
}

// Sample returns a fresh representative value of s, used to synthesize the
// exact exception of an operation that always fails. Shapes without a
// literal form, and int_or_long, have none.
func Sample(s *shapes.TypeShape) (Value, bool) {
	switch s {
	case shapes.None:
		return None, true
	case shapes.Bool:
		return Bool(true), true
	case shapes.Int:
		return NewInt(1), true
	case shapes.Long:
		return Int{v: new(big.Int).Lsh(big.NewInt(1), 70)}, true
	case shapes.Float:
		return Float(1), true
	case shapes.Complex:
		return Complex(1i), true
	case shapes.Str:
		return Str("a"), true
	case shapes.Bytes:
		return Bytes("b"), true
	case shapes.ByteArray:
		return NewByteArray([]byte("b")), true
	case shapes.Tuple:
		return Tuple{Str("a")}, true
	case shapes.List:
		return NewList(), true
	case shapes.Set:
		set, _ := NewSet()
		return set, true
	case shapes.FrozenSet:
		set, _ := NewFrozenSet()
		return set, true
	case shapes.Dict:
		d, _ := NewDict()
		return d, true
	}
	return nil, false
}
