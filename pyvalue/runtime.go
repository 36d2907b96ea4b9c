package pyvalue

import (
	"errors"
	"fmt"

	"github.com/speakeasy-api/shapeflow"
)

// Runtime evaluates operators on constants. Its limits stop a fold before it
// builds a constant too large to embed; exceeding one yields ErrTooLarge.
// A zero limit disables that check.
type Runtime struct {
	MaxSequenceLength int
	MaxIntegerBits    int
}

// NewRuntime returns a runtime bounded by the folding limits in opts.
func NewRuntime(opts shapeflow.Options) *Runtime {
	return &Runtime{
		MaxSequenceLength: opts.MaxFoldedSequenceLength,
		MaxIntegerBits:    opts.MaxFoldedIntegerBits,
	}
}

// Apply evaluates op on one operand for unary operators and two otherwise.
func (rt *Runtime) Apply(op shapeflow.Operator, operands ...Value) (Value, error) {
	switch {
	case op.IsUnary():
		if len(operands) != 1 {
			return nil, fmt.Errorf("pyvalue: %s takes 1 operand, got %d", op, len(operands))
		}
		return rt.Unary(op, operands[0])
	case len(operands) != 2:
		return nil, fmt.Errorf("pyvalue: %s takes 2 operands, got %d", op, len(operands))
	case op.IsComparison():
		return rt.Compare(op, operands[0], operands[1])
	}
	return rt.Binary(op, operands[0], operands[1])
}

// Binary evaluates an arithmetic or bitwise operator. Language exceptions
// are returned as *Exception.
func (rt *Runtime) Binary(op shapeflow.Operator, l, r Value) (Value, error) {
	if !op.IsBinary() {
		return nil, fmt.Errorf("pyvalue: %s is not a binary operator", op)
	}

	var attempts []func() (Value, error)
	arith := func() (Value, error) { return rt.arith(op, l, r) }

	switch op {
	case shapeflow.OpAdd:
		attempts = append(attempts, arith, func() (Value, error) { return rt.concat(l, r) })
	case shapeflow.OpMult:
		attempts = append(attempts, arith, func() (Value, error) { return rt.repeat(l, r) })
	case shapeflow.OpMod:
		switch l.(type) {
		case Str, Bytes, *ByteArray:
			attempts = append(attempts, func() (Value, error) { return rt.format(l, r) })
		default:
			attempts = append(attempts, arith)
		}
	case shapeflow.OpSub, shapeflow.OpBitAnd, shapeflow.OpBitXor, shapeflow.OpBitOr:
		attempts = append(attempts, arith, func() (Value, error) { return containerOp(op, l, r) })
	case shapeflow.OpMatMult:
	default:
		attempts = append(attempts, arith)
	}

	for _, attempt := range attempts {
		v, err := attempt()
		if errors.Is(err, errNotImplemented) {
			continue
		}
		return v, err
	}
	return nil, typeError("unsupported operand type(s) for %s: '%s' and '%s'", op.Symbol(), l.TypeName(), r.TypeName())
}

// Compare evaluates a comparison operator.
func (rt *Runtime) Compare(op shapeflow.Operator, l, r Value) (Value, error) {
	if !op.IsComparison() {
		return nil, fmt.Errorf("pyvalue: %s is not a comparison", op)
	}
	return compare(op, l, r)
}

// Unary evaluates -, +, ~ and not.
func (rt *Runtime) Unary(op shapeflow.Operator, v Value) (Value, error) {
	if !op.IsUnary() {
		return nil, fmt.Errorf("pyvalue: %s is not a unary operator", op)
	}
	if op == shapeflow.OpNot {
		return Bool(!Truth(v)), nil
	}
	res, err := rt.unaryNumeric(op, v)
	if errors.Is(err, errNotImplemented) {
		return nil, typeError("bad operand type for unary %s: '%s'", op.Symbol(), v.TypeName())
	}
	return res, err
}
