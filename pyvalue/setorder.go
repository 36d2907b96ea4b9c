package pyvalue

import (
	"math"
	"math/big"
	"math/bits"
)

// Hash parameters of the reference runtime on 64-bit platforms.
const (
	hashBits    = 61
	hashInf     = 314159
	hashImag    = 1000003
	xxPrime1    = 11400714785074694791
	xxPrime2    = 14029467366897019727
	xxPrime5    = 2870177450012600261
	tupleNegOne = 1546275796

	setMinSize   = 8
	linearProbes = 9
	perturbShift = 5
	hashMinusOne = ^uint64(0)
	hashMinusTwo = ^uint64(1)
)

var hashModulus = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), hashBits), big.NewInt(1))

// runtimeHash returns the hash the reference runtime gives v. ok is false
// for values whose hash is randomized per process or tied to an address.
func runtimeHash(v Value) (h uint64, ok bool) {
	switch x := v.(type) {
	case Bool, Int:
		n, _ := asBig(v)
		return rationalHash(n, big.NewInt(1)), true
	case Float:
		return floatHash(float64(x))
	case Complex:
		re, ok := floatHash(real(x))
		if !ok {
			return 0, false
		}
		im, ok := floatHash(imag(x))
		if !ok {
			return 0, false
		}
		h = re + hashImag*im
		if h == hashMinusOne {
			h = hashMinusTwo
		}
		return h, true
	case Tuple:
		acc := uint64(xxPrime5)
		for _, item := range x {
			lane, ok := runtimeHash(item)
			if !ok {
				return 0, false
			}
			acc += lane * xxPrime2
			acc = bits.RotateLeft64(acc, 31)
			acc *= xxPrime1
		}
		acc += uint64(len(x)) ^ (xxPrime5 ^ 3527539)
		if acc == hashMinusOne {
			return tupleNegOne, true
		}
		return acc, true
	}
	return 0, false
}

func floatHash(f float64) (uint64, bool) {
	switch {
	case math.IsNaN(f):
		return 0, false
	case math.IsInf(f, 1):
		return hashInf, true
	case math.IsInf(f, -1):
		return ^uint64(hashInf) + 1, true
	}
	r, _ := new(big.Float).SetFloat64(f).Rat(nil)
	return rationalHash(r.Num(), r.Denom()), true
}

// rationalHash reduces num/den modulo 2**61-1, keeping the sign of num.
func rationalHash(num, den *big.Int) uint64 {
	x := new(big.Int).Abs(num)
	x.Mod(x, hashModulus)
	inv := new(big.Int).ModInverse(den, hashModulus)
	x.Mul(x, inv).Mod(x, hashModulus)
	h := x.Uint64()
	if num.Sign() < 0 {
		h = -h
	}
	if h == hashMinusOne {
		h = hashMinusTwo
	}
	return h
}

// displayOrder returns set members in the order the reference runtime
// iterates them after inserting items one by one. When any member has a
// hash that varies between processes, the order is unspecified there and
// items is returned unchanged.
func displayOrder(items []Value) []Value {
	hashes := make([]uint64, len(items))
	for i, item := range items {
		h, ok := runtimeHash(item)
		if !ok {
			return items
		}
		hashes[i] = h
	}

	slots := newSlots(setMinSize)
	fill := 0
	for i := range items {
		slots.insert(i, hashes[i])
		fill++
		mask := len(slots.index) - 1
		if fill*5 < mask*3 {
			continue
		}
		used := fill
		minUsed := used * 4
		if used > 50000 {
			minUsed = used * 2
		}
		size := setMinSize
		for size <= minUsed {
			size <<= 1
		}
		grown := newSlots(size)
		for _, idx := range slots.index {
			if idx >= 0 {
				grown.insert(idx, hashes[idx])
			}
		}
		slots = grown
	}

	out := make([]Value, 0, len(items))
	for _, idx := range slots.index {
		if idx >= 0 {
			out = append(out, items[idx])
		}
	}
	return out
}

type slotTable struct {
	index []int // item index per slot, -1 when empty
}

func newSlots(size int) *slotTable {
	t := &slotTable{index: make([]int, size)}
	for i := range t.index {
		t.index[i] = -1
	}
	return t
}

// insert places an item not yet in the table using the runtime's probe
// sequence: a short linear run, then perturbed jumps.
func (t *slotTable) insert(item int, hash uint64) {
	mask := uint64(len(t.index) - 1)
	perturb := hash
	i := hash & mask
	for {
		probes := uint64(0)
		if i+linearProbes <= mask {
			probes = linearProbes
		}
		for j := uint64(0); j <= probes; j++ {
			if t.index[i+j] < 0 {
				t.index[i+j] = item
				return
			}
		}
		perturb >>= perturbShift
		i = (i*5 + 1 + perturb) & mask
	}
}
