package pyvalue

import (
	"math"
	"math/big"
	"math/cmplx"

	"github.com/speakeasy-api/shapeflow"
)

// numeric tower rank: bool and int < float < complex.
type rank int

const (
	rankNone rank = iota
	rankInt
	rankFloat
	rankComplex
)

func rankOf(v Value) rank {
	switch v.(type) {
	case Bool, Int:
		return rankInt
	case Float:
		return rankFloat
	case Complex:
		return rankComplex
	}
	return rankNone
}

func bigToFloat(n *big.Int) (float64, error) {
	if n.IsInt64() {
		return float64(n.Int64()), nil
	}
	f, _ := new(big.Float).SetInt(n).Float64()
	if math.IsInf(f, 0) {
		return 0, overflow("int too large to convert to float")
	}
	return f, nil
}

func toFloat(v Value) (float64, error) {
	switch x := v.(type) {
	case Float:
		return float64(x), nil
	case Bool, Int:
		n, _ := asBig(v)
		return bigToFloat(n)
	}
	return 0, errNotImplemented
}

func toComplex(v Value) (complex128, error) {
	if c, ok := v.(Complex); ok {
		return complex128(c), nil
	}
	f, err := toFloat(v)
	if err != nil {
		return 0, err
	}
	return complex(f, 0), nil
}

// arith applies a binary numeric operator after promoting both operands to
// the wider of their ranks.
func (rt *Runtime) arith(op shapeflow.Operator, l, r Value) (Value, error) {
	lr, rr := rankOf(l), rankOf(r)
	if lr == rankNone || rr == rankNone {
		return nil, errNotImplemented
	}

	switch max(lr, rr) {
	case rankInt:
		a, _ := asBig(l)
		b, _ := asBig(r)
		if lb, ok := l.(Bool); ok {
			if rb, ok := r.(Bool); ok {
				switch op {
				case shapeflow.OpBitOr:
					return Bool(lb || rb), nil
				case shapeflow.OpBitAnd:
					return Bool(lb && rb), nil
				case shapeflow.OpBitXor:
					return Bool(lb != rb), nil
				}
			}
		}
		return rt.intOp(op, a, b)

	case rankFloat:
		switch op {
		case shapeflow.OpAdd, shapeflow.OpSub, shapeflow.OpMult, shapeflow.OpTrueDiv,
			shapeflow.OpFloorDiv, shapeflow.OpMod, shapeflow.OpDivmod, shapeflow.OpPow:
		default:
			return nil, errNotImplemented
		}
		a, err := toFloat(l)
		if err != nil {
			return nil, err
		}
		b, err := toFloat(r)
		if err != nil {
			return nil, err
		}
		return floatOp(op, a, b)

	default:
		switch op {
		case shapeflow.OpAdd, shapeflow.OpSub, shapeflow.OpMult, shapeflow.OpTrueDiv, shapeflow.OpPow:
		default:
			return nil, errNotImplemented
		}
		a, err := toComplex(l)
		if err != nil {
			return nil, err
		}
		b, err := toComplex(r)
		if err != nil {
			return nil, err
		}
		return complexOp(op, a, b)
	}
}

// floorDivMod divides rounding toward negative infinity.
func floorDivMod(a, b *big.Int) (*big.Int, *big.Int) {
	q, m := new(big.Int).QuoRem(a, b, new(big.Int))
	if m.Sign() != 0 && m.Sign() != b.Sign() {
		q.Sub(q, big.NewInt(1))
		m.Add(m, b)
	}
	return q, m
}

func (rt *Runtime) checkBits(bits int) error {
	if rt.MaxIntegerBits > 0 && bits > rt.MaxIntegerBits {
		return ErrTooLarge
	}
	return nil
}

func (rt *Runtime) intOp(op shapeflow.Operator, a, b *big.Int) (Value, error) {
	switch op {
	case shapeflow.OpAdd:
		return Int{v: new(big.Int).Add(a, b)}, nil
	case shapeflow.OpSub:
		return Int{v: new(big.Int).Sub(a, b)}, nil
	case shapeflow.OpMult:
		if err := rt.checkBits(a.BitLen() + b.BitLen()); err != nil {
			return nil, err
		}
		return Int{v: new(big.Int).Mul(a, b)}, nil

	case shapeflow.OpFloorDiv, shapeflow.OpMod, shapeflow.OpDivmod:
		if b.Sign() == 0 {
			if op == shapeflow.OpMod {
				return nil, zeroDivision("integer modulo by zero")
			}
			return nil, zeroDivision("integer division or modulo by zero")
		}
		q, m := floorDivMod(a, b)
		switch op {
		case shapeflow.OpFloorDiv:
			return Int{v: q}, nil
		case shapeflow.OpMod:
			return Int{v: m}, nil
		}
		return Tuple{Int{v: q}, Int{v: m}}, nil

	case shapeflow.OpTrueDiv:
		if b.Sign() == 0 {
			return nil, zeroDivision("division by zero")
		}
		f, _ := new(big.Rat).SetFrac(a, b).Float64()
		if math.IsInf(f, 0) {
			return nil, overflow("integer division result too large for a float")
		}
		if f == 0 && (a.Sign() < 0) != (b.Sign() < 0) {
			f = math.Copysign(0, -1)
		}
		return Float(f), nil

	case shapeflow.OpPow:
		return rt.intPow(a, b)

	case shapeflow.OpLShift:
		if b.Sign() < 0 {
			return nil, valueError("negative shift count")
		}
		if a.Sign() == 0 {
			return Int{v: new(big.Int)}, nil
		}
		if !b.IsInt64() {
			return nil, overflow("too many digits in integer")
		}
		n := b.Int64()
		if n > math.MaxInt32 {
			return nil, ErrTooLarge
		}
		if err := rt.checkBits(a.BitLen() + int(n)); err != nil {
			return nil, err
		}
		return Int{v: new(big.Int).Lsh(a, uint(n))}, nil

	case shapeflow.OpRShift:
		if b.Sign() < 0 {
			return nil, valueError("negative shift count")
		}
		if !b.IsInt64() || b.Int64() >= int64(a.BitLen()) {
			if a.Sign() < 0 {
				return Int{v: big.NewInt(-1)}, nil
			}
			return Int{v: new(big.Int)}, nil
		}
		return Int{v: new(big.Int).Rsh(a, uint(b.Int64()))}, nil

	case shapeflow.OpBitOr:
		return Int{v: new(big.Int).Or(a, b)}, nil
	case shapeflow.OpBitAnd:
		return Int{v: new(big.Int).And(a, b)}, nil
	case shapeflow.OpBitXor:
		return Int{v: new(big.Int).Xor(a, b)}, nil
	}
	return nil, errNotImplemented
}

func (rt *Runtime) intPow(a, b *big.Int) (Value, error) {
	if b.Sign() < 0 {
		x, err := bigToFloat(a)
		if err != nil {
			return nil, err
		}
		y, err := bigToFloat(b)
		if err != nil {
			return nil, err
		}
		return floatOp(shapeflow.OpPow, x, y)
	}

	// 0, 1 and -1 stay small for any exponent.
	if a.CmpAbs(big.NewInt(1)) <= 0 {
		switch {
		case a.Sign() == 0 && b.Sign() == 0:
			return Int{v: big.NewInt(1)}, nil
		case a.Sign() >= 0:
			return Int{v: new(big.Int).Set(a)}, nil
		case b.Bit(0) == 0:
			return Int{v: big.NewInt(1)}, nil
		}
		return Int{v: big.NewInt(-1)}, nil
	}

	if !b.IsInt64() || b.Int64() > math.MaxInt32 {
		return nil, ErrTooLarge
	}
	if err := rt.checkBits(a.BitLen() * int(b.Int64())); err != nil {
		return nil, err
	}
	return Int{v: new(big.Int).Exp(a, b, nil)}, nil
}

// floatDivmod follows the language's float divmod: the remainder takes the
// divisor's sign.
func floatDivmod(x, y float64) (float64, float64) {
	mod := math.Mod(x, y)
	div := (x - mod) / y
	if mod != 0 {
		if (y < 0) != (mod < 0) {
			mod += y
			div -= 1.0
		}
	} else {
		mod = math.Copysign(0, y)
	}

	var floordiv float64
	if div != 0 {
		floordiv = math.Floor(div)
		if div-floordiv > 0.5 {
			floordiv += 1.0
		}
	} else {
		floordiv = math.Copysign(0, x/y)
	}
	return floordiv, mod
}

func floatOp(op shapeflow.Operator, a, b float64) (Value, error) {
	switch op {
	case shapeflow.OpAdd:
		return Float(a + b), nil
	case shapeflow.OpSub:
		return Float(a - b), nil
	case shapeflow.OpMult:
		return Float(a * b), nil
	case shapeflow.OpTrueDiv:
		if b == 0 {
			return nil, zeroDivision("float division by zero")
		}
		return Float(a / b), nil
	case shapeflow.OpFloorDiv:
		if b == 0 {
			return nil, zeroDivision("float floor division by zero")
		}
		q, _ := floatDivmod(a, b)
		return Float(q), nil
	case shapeflow.OpMod:
		if b == 0 {
			return nil, zeroDivision("float modulo by zero")
		}
		_, m := floatDivmod(a, b)
		return Float(m), nil
	case shapeflow.OpDivmod:
		if b == 0 {
			return nil, zeroDivision("float divmod()")
		}
		q, m := floatDivmod(a, b)
		return Tuple{Float(q), Float(m)}, nil
	case shapeflow.OpPow:
		return floatPow(a, b)
	}
	return nil, errNotImplemented
}

func floatPow(a, b float64) (Value, error) {
	switch {
	case b == 0:
		return Float(1), nil
	case math.IsNaN(a) || math.IsNaN(b):
		if a == 1 {
			return Float(1), nil
		}
		return Float(math.NaN()), nil
	case a == 0 && b < 0:
		return nil, zeroDivision("0.0 cannot be raised to a negative power")
	case a < 0 && !math.IsInf(a, 0) && !math.IsInf(b, 0) && b != math.Trunc(b):
		// negative base with a fractional exponent has a complex result
		return complexOp(shapeflow.OpPow, complex(a, 0), complex(b, 0))
	}
	if math.IsInf(a, 0) || math.IsInf(b, 0) || a == 0 {
		// IEEE special cases are exact.
		return Float(math.Pow(a, b)), nil
	}
	if b != math.Trunc(b) {
		return nil, ErrInexact
	}
	res, err := exactFloatPow(a, b)
	if err != nil {
		return nil, err
	}
	if math.IsInf(res, 0) {
		return nil, overflow("(34, 'Numerical result out of range')")
	}
	return Float(res), nil
}

// maxExactExponent bounds the integer exponents folded by exactFloatPow.
const maxExactExponent = 1024

// exactFloatPow computes a**n for finite nonzero a and integral n, rounded
// once to the nearest float64.
func exactFloatPow(a, n float64) (float64, error) {
	neg := a < 0 && math.Mod(n, 2) != 0
	x := math.Abs(a)
	if x == 1 {
		return math.Copysign(1, sign(neg)), nil
	}
	if math.Abs(n) > maxExactExponent {
		return 0, ErrInexact
	}

	// Results far outside the float64 range need no exact product.
	scale := n * math.Log2(x)
	switch {
	case scale > 1100:
		return math.Copysign(math.Inf(1), sign(neg)), nil
	case scale < -1200:
		return math.Copysign(0, sign(neg)), nil
	}

	k := uint(math.Abs(n))
	prec := 53*k + 64
	base := new(big.Float).SetPrec(prec).SetFloat64(x)
	z := new(big.Float).SetPrec(prec).SetInt64(1)
	for ; k > 0; k >>= 1 {
		if k&1 == 1 {
			z.Mul(z, base)
		}
		base.Mul(base, base)
	}

	var f float64
	if n > 0 {
		f, _ = z.Float64()
	} else {
		r, _ := z.Rat(nil)
		f, _ = r.Inv(r).Float64()
	}
	return math.Copysign(f, sign(neg)), nil
}

func sign(neg bool) float64 {
	if neg {
		return -1
	}
	return 1
}

// cProd multiplies without fused multiply-add so results match the
// reference arithmetic on every platform.
func cProd(a, b complex128) complex128 {
	re := float64(real(a)*real(b)) - float64(imag(a)*imag(b))
	im := float64(real(a)*imag(b)) + float64(imag(a)*real(b))
	return complex(re, im)
}

// cQuot is Smith's division. ok is false for a zero divisor.
func cQuot(a, b complex128) (q complex128, ok bool) {
	absRe, absIm := math.Abs(real(b)), math.Abs(imag(b))
	switch {
	case absRe >= absIm:
		if absRe == 0 {
			return 0, false
		}
		ratio := imag(b) / real(b)
		denom := real(b) + float64(imag(b)*ratio)
		re := (real(a) + float64(imag(a)*ratio)) / denom
		im := (imag(a) - float64(real(a)*ratio)) / denom
		return complex(re, im), true
	case absIm >= absRe:
		ratio := real(b) / imag(b)
		denom := float64(real(b)*ratio) + imag(b)
		re := (float64(real(a)*ratio) + imag(a)) / denom
		im := (float64(imag(a)*ratio) - real(a)) / denom
		return complex(re, im), true
	}
	nan := math.NaN()
	return complex(nan, nan), true
}

// cPowi raises x to a small integer power by repeated squaring.
func cPowi(x complex128, n int) (complex128, bool) {
	k := n
	if k < 0 {
		k = -k
	}
	r, p := complex128(1), x
	for mask := 1; mask > 0 && k >= mask; mask <<= 1 {
		if k&mask != 0 {
			r = cProd(r, p)
		}
		p = cProd(p, p)
	}
	if n < 0 {
		return cQuot(1, r)
	}
	return r, true
}

func complexOp(op shapeflow.Operator, a, b complex128) (Value, error) {
	switch op {
	case shapeflow.OpAdd:
		return Complex(a + b), nil
	case shapeflow.OpSub:
		return Complex(a - b), nil
	case shapeflow.OpMult:
		return Complex(cProd(a, b)), nil
	case shapeflow.OpTrueDiv:
		q, ok := cQuot(a, b)
		if !ok {
			return nil, zeroDivision("complex division by zero")
		}
		return Complex(q), nil
	case shapeflow.OpPow:
		var (
			res complex128
			ok  = true
		)
		e := real(b)
		switch {
		case b == 0:
			return Complex(1), nil
		case imag(b) == 0 && e == math.Floor(e) && math.Abs(e) <= 100:
			res, ok = cPowi(a, int(e))
		case a == 0:
			ok = imag(b) == 0 && real(b) >= 0
		default:
			return nil, ErrInexact
		}
		if !ok {
			return nil, zeroDivision("0.0 to a negative or complex power")
		}
		if cmplx.IsInf(res) {
			return nil, overflow("complex exponentiation")
		}
		return Complex(res), nil
	}
	return nil, errNotImplemented
}

func (rt *Runtime) unaryNumeric(op shapeflow.Operator, v Value) (Value, error) {
	switch x := v.(type) {
	case Bool, Int:
		n, _ := asBig(v)
		switch op {
		case shapeflow.OpNeg:
			return Int{v: new(big.Int).Neg(n)}, nil
		case shapeflow.OpPos:
			return Int{v: new(big.Int).Set(n)}, nil
		case shapeflow.OpInvert:
			return Int{v: new(big.Int).Not(n)}, nil
		}
	case Float:
		switch op {
		case shapeflow.OpNeg:
			return -x, nil
		case shapeflow.OpPos:
			return x, nil
		}
	case Complex:
		switch op {
		case shapeflow.OpNeg:
			return -x, nil
		case shapeflow.OpPos:
			return x, nil
		}
	}
	return nil, errNotImplemented
}
