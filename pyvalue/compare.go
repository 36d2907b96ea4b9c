package pyvalue

import (
	"math"
	"math/big"
	"strings"

	"github.com/speakeasy-api/shapeflow"
)

// Equal is the language's == between two constants. It never raises for
// the value kinds modelled here.
func Equal(a, b Value) bool {
	if ra, rb := rankOf(a), rankOf(b); ra != rankNone && rb != rankNone {
		return numericEqual(a, b)
	}

	switch x := a.(type) {
	case NoneType:
		_, ok := b.(NoneType)
		return ok
	case Str:
		y, ok := b.(Str)
		return ok && x == y
	case Bytes, *ByteArray:
		ab, _ := bytesOf(a)
		bb, ok := bytesOf(b)
		return ok && string(ab) == string(bb)
	case Tuple:
		y, ok := b.(Tuple)
		return ok && itemsEqual(x, y)
	case *List:
		y, ok := b.(*List)
		return ok && itemsEqual(x.Items, y.Items)
	case *Set, *FrozenSet:
		ta, _ := tableOf(a)
		tb, ok := tableOf(b)
		return ok && ta.len() == tb.len() && subset(ta, tb)
	case *Dict:
		y, ok := b.(*Dict)
		if !ok || x.table.len() != y.table.len() {
			return false
		}
		for _, k := range x.table.keys {
			if !y.table.has(k) || !Equal(x.table.valued[k], y.table.valued[k]) {
				return false
			}
		}
		return true
	}
	return false
}

func itemsEqual(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}

func subset(a, b *hashTable) bool {
	for _, k := range a.keys {
		if !b.has(k) {
			return false
		}
	}
	return true
}

// cmpReal compares two real numbers exactly. ok is false when either is NaN.
func cmpReal(a, b Value) (c int, ok bool) {
	ab, aInt := asBig(a)
	bb, bInt := asBig(b)
	if aInt && bInt {
		return ab.Cmp(bb), true
	}

	af, bf := new(big.Float), new(big.Float)
	if aInt {
		af.SetInt(ab)
	} else {
		x := float64(a.(Float))
		if math.IsNaN(x) {
			return 0, false
		}
		af.SetFloat64(x)
	}
	if bInt {
		bf.SetInt(bb)
	} else {
		y := float64(b.(Float))
		if math.IsNaN(y) {
			return 0, false
		}
		bf.SetFloat64(y)
	}
	return af.Cmp(bf), true
}

func numericEqual(a, b Value) bool {
	ca, aComplex := a.(Complex)
	cb, bComplex := b.(Complex)
	switch {
	case aComplex && bComplex:
		return ca == cb
	case aComplex:
		return imag(ca) == 0 && numericEqual(Float(real(ca)), b)
	case bComplex:
		return imag(cb) == 0 && numericEqual(a, Float(real(cb)))
	}
	c, ok := cmpReal(a, b)
	return ok && c == 0
}

// compare implements the six comparison operators.
func compare(op shapeflow.Operator, a, b Value) (Value, error) {
	switch op {
	case shapeflow.OpEq:
		return Bool(Equal(a, b)), nil
	case shapeflow.OpNotEq:
		return Bool(!Equal(a, b)), nil
	}

	c, ok, err := order(op, a, b)
	if err != nil {
		return nil, err
	}
	if !ok {
		return Bool(false), nil
	}
	return Bool(holds(op, c)), nil
}

func holds(op shapeflow.Operator, c int) bool {
	switch op {
	case shapeflow.OpLt:
		return c < 0
	case shapeflow.OpLtE:
		return c <= 0
	case shapeflow.OpGt:
		return c > 0
	case shapeflow.OpGtE:
		return c >= 0
	}
	return false
}

func unorderable(op shapeflow.Operator, a, b Value) error {
	return typeError("'%s' not supported between instances of '%s' and '%s'", op.Symbol(), a.TypeName(), b.TypeName())
}

// order returns the three-way comparison of a and b for an ordering
// operator. ok is false when the answer is false for every ordering, as
// with NaN. Set-likes are handled by subset tests in orderSets.
func order(op shapeflow.Operator, a, b Value) (int, bool, error) {
	ra, rb := rankOf(a), rankOf(b)
	switch {
	case ra == rankComplex || rb == rankComplex:
		return 0, false, unorderable(op, a, b)
	case ra != rankNone && rb != rankNone:
		c, ok := cmpReal(a, b)
		return c, ok, nil
	}

	switch x := a.(type) {
	case Str:
		if y, ok := b.(Str); ok {
			return strings.Compare(string(x), string(y)), true, nil
		}
	case Bytes, *ByteArray:
		ab, _ := bytesOf(a)
		if bb, ok := bytesOf(b); ok {
			return strings.Compare(string(ab), string(bb)), true, nil
		}
	case Tuple:
		if y, ok := b.(Tuple); ok {
			return orderItems(op, x, y)
		}
	case *List:
		if y, ok := b.(*List); ok {
			return orderItems(op, x.Items, y.Items)
		}
	case *Set, *FrozenSet:
		if _, ok := tableOf(b); ok {
			return orderSets(op, a, b)
		}
	}
	return 0, false, unorderable(op, a, b)
}

// orderItems compares sequences lexicographically. The first unequal pair
// decides with the requested operator, which may raise.
func orderItems(op shapeflow.Operator, a, b []Value) (int, bool, error) {
	for i := 0; i < len(a) && i < len(b); i++ {
		if Equal(a[i], b[i]) {
			continue
		}
		res, err := compare(op, a[i], b[i])
		if err != nil {
			return 0, false, err
		}
		// encode the element verdict so holds(op, c) reproduces it
		if bool(res.(Bool)) {
			return verdict(op, true), true, nil
		}
		return verdict(op, false), true, nil
	}
	switch {
	case len(a) < len(b):
		return -1, true, nil
	case len(a) > len(b):
		return 1, true, nil
	}
	return 0, true, nil
}

// verdict returns a three-way result for which holds(op, c) == want.
func verdict(op shapeflow.Operator, want bool) int {
	for _, c := range []int{-1, 0, 1} {
		if holds(op, c) == want {
			return c
		}
	}
	return 0
}

// orderSets maps subset relations onto a three-way result consistent with
// the requested operator.
func orderSets(op shapeflow.Operator, a, b Value) (int, bool, error) {
	ta, _ := tableOf(a)
	tb, _ := tableOf(b)
	var want bool
	switch op {
	case shapeflow.OpLt:
		want = ta.len() < tb.len() && subset(ta, tb)
	case shapeflow.OpLtE:
		want = ta.len() <= tb.len() && subset(ta, tb)
	case shapeflow.OpGt:
		want = ta.len() > tb.len() && subset(tb, ta)
	case shapeflow.OpGtE:
		want = ta.len() >= tb.len() && subset(tb, ta)
	}
	return verdict(op, want), true, nil
}
