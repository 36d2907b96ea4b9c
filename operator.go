package shapeflow

import "fmt"

// Operator identifies a binary, comparison or unary operation of the
// analysed language.
type Operator int

const (
	OpAdd Operator = iota
	OpSub
	OpMult
	OpFloorDiv
	OpTrueDiv
	OpMod
	OpDivmod
	OpPow
	OpLShift
	OpRShift
	OpBitOr
	OpBitAnd
	OpBitXor
	OpMatMult

	OpLt
	OpLtE
	OpGt
	OpGtE
	OpEq
	OpNotEq

	OpNeg
	OpPos
	OpInvert
	OpNot

	// NumOperators is the number of operators above.
	NumOperators int = iota
)

func (op Operator) String() string {
	switch op {
	case OpAdd:
		return "Add"
	case OpSub:
		return "Sub"
	case OpMult:
		return "Mult"
	case OpFloorDiv:
		return "FloorDiv"
	case OpTrueDiv:
		return "TrueDiv"
	case OpMod:
		return "Mod"
	case OpDivmod:
		return "Divmod"
	case OpPow:
		return "Pow"
	case OpLShift:
		return "LShift"
	case OpRShift:
		return "RShift"
	case OpBitOr:
		return "BitOr"
	case OpBitAnd:
		return "BitAnd"
	case OpBitXor:
		return "BitXor"
	case OpMatMult:
		return "MatMult"
	case OpLt:
		return "Lt"
	case OpLtE:
		return "LtE"
	case OpGt:
		return "Gt"
	case OpGtE:
		return "GtE"
	case OpEq:
		return "Eq"
	case OpNotEq:
		return "NotEq"
	case OpNeg:
		return "Neg"
	case OpPos:
		return "Pos"
	case OpInvert:
		return "Invert"
	case OpNot:
		return "Not"
	default:
		panic(fmt.Sprintf("unknown operator %d", int(op)))
	}
}

// Symbol returns the source-level spelling of the operator.
func (op Operator) Symbol() string {
	switch op {
	case OpAdd, OpPos:
		return "+"
	case OpSub, OpNeg:
		return "-"
	case OpMult:
		return "*"
	case OpFloorDiv:
		return "//"
	case OpTrueDiv:
		return "/"
	case OpMod:
		return "%"
	case OpDivmod:
		return "divmod()"
	case OpPow:
		return "** or pow()"
	case OpLShift:
		return "<<"
	case OpRShift:
		return ">>"
	case OpBitOr:
		return "|"
	case OpBitAnd:
		return "&"
	case OpBitXor:
		return "^"
	case OpMatMult:
		return "@"
	case OpLt:
		return "<"
	case OpLtE:
		return "<="
	case OpGt:
		return ">"
	case OpGtE:
		return ">="
	case OpEq:
		return "=="
	case OpNotEq:
		return "!="
	case OpInvert:
		return "~"
	case OpNot:
		return "not"
	default:
		return op.String()
	}
}

// IsBinary reports whether op is an arithmetic/bitwise binary operator.
func (op Operator) IsBinary() bool { return op >= OpAdd && op <= OpMatMult }

// IsComparison reports whether op is a rich comparison.
func (op Operator) IsComparison() bool { return op >= OpLt && op <= OpNotEq }

// IsUnary reports whether op takes a single operand.
func (op Operator) IsUnary() bool { return op >= OpNeg && op <= OpNot }

// IsOrdering reports whether op is one of the ordering comparisons.
func (op Operator) IsOrdering() bool { return op >= OpLt && op <= OpGtE }

// Operators returns every operator in declaration order.
func Operators() []Operator {
	ops := make([]Operator, 0, NumOperators)
	for i := 0; i < NumOperators; i++ {
		ops = append(ops, Operator(i))
	}
	return ops
}

// ParseOperator looks an operator up by its String() name.
func ParseOperator(name string) (Operator, error) {
	for _, op := range Operators() {
		if op.String() == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operator %q", name)
}
