package shapes

import (
	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/escape"
)

// Table constructors. Each returns a fresh sparse table; nothing here is
// shared between operators, so freezing never aliases two tables.

var (
	integrals = []*TypeShape{Bool, Int, Long, IntOrLong}
	sequences = []*TypeShape{Str, Bytes, ByteArray, Tuple, List}
)

type tableBuilder struct {
	op    shapeflow.Operator
	cells opTable
}

// newBuilder starts a table with every pair involving an opaque shape set to
// (unknown, FullEscape).
func newBuilder(op shapeflow.Operator) *tableBuilder {
	b := &tableBuilder{op: op, cells: make(opTable, NumShapes*NumShapes)}
	for _, l := range universe {
		for _, r := range universe {
			if IsOpaque(l) || IsOpaque(r) {
				b.cells[pair{l.id, r.id}] = entry{Unknown, escape.FullEscape}
			}
		}
	}
	return b
}

func (b *tableBuilder) set(l, r *TypeShape, e entry) {
	b.cells[pair{l.id, r.id}] = e
}

// fill runs rule over every concrete pair not yet present.
func (b *tableBuilder) fill(rule func(op shapeflow.Operator, l, r *TypeShape) (entry, bool)) {
	for _, l := range universe {
		for _, r := range universe {
			if _, done := b.cells[pair{l.id, r.id}]; done {
				continue
			}
			if e, ok := rule(b.op, l, r); ok {
				b.set(l, r, e)
			}
		}
	}
}

// rest sets every remaining pair to e.
func (b *tableBuilder) rest(e entry) opTable {
	for _, l := range universe {
		for _, r := range universe {
			if _, done := b.cells[pair{l.id, r.id}]; !done {
				b.set(l, r, e)
			}
		}
	}
	return b.cells
}

func pick(cond bool, yes, no *escape.Descriptor) *escape.Descriptor {
	if cond {
		return yes
	}
	return no
}

func binaryConstructors() map[shapeflow.Operator]func() opTable {
	ctors := make(map[shapeflow.Operator]func() opTable)
	for _, op := range shapeflow.Operators() {
		op := op
		switch {
		case op == shapeflow.OpMatMult:
			ctors[op] = func() opTable {
				return newBuilder(op).rest(entry{Unknown, escape.Unsupported(op)})
			}
		case op.IsBinary():
			ctors[op] = func() opTable {
				b := newBuilder(op)
				b.fill(numericRule)
				b.fill(sequenceRule)
				b.fill(containerRule)
				return b.rest(entry{Unknown, escape.Unsupported(op)})
			}
		case op.IsComparison():
			ctors[op] = func() opTable {
				b := newBuilder(op)
				b.fill(comparisonRule)
				return b.rest(entry{Unknown, escape.ComparisonUnorderable})
			}
		}
	}
	return ctors
}

// numericRule covers arithmetic between bool, int, long, int_or_long, float
// and complex.
func numericRule(op shapeflow.Operator, l, r *TypeShape) (entry, bool) {
	if !l.isNumber() || !r.isNumber() {
		return entry{}, false
	}
	long := l.mayBeLong() || r.mayBeLong()

	switch {
	case l == Complex || r == Complex:
		switch op {
		case shapeflow.OpAdd, shapeflow.OpSub, shapeflow.OpMult:
			return entry{Complex, pick(long, escape.OverflowNoEscape, escape.NoEscape)}, true
		case shapeflow.OpTrueDiv:
			return entry{Complex, pick(long, escape.ArithmeticNoEscape, escape.ZeroDivisionNoEscape)}, true
		case shapeflow.OpPow:
			return entry{Complex, escape.ArithmeticNoEscape}, true
		}
		return entry{}, false

	case l == Float || r == Float:
		switch op {
		case shapeflow.OpAdd, shapeflow.OpSub, shapeflow.OpMult:
			return entry{Float, pick(long, escape.OverflowNoEscape, escape.NoEscape)}, true
		case shapeflow.OpTrueDiv, shapeflow.OpFloorDiv, shapeflow.OpMod:
			return entry{Float, pick(long, escape.ArithmeticNoEscape, escape.ZeroDivisionNoEscape)}, true
		case shapeflow.OpDivmod:
			return entry{Tuple, pick(long, escape.ArithmeticNoEscape, escape.ZeroDivisionNoEscape)}, true
		case shapeflow.OpPow:
			// negative base with fractional exponent gives complex
			return entry{Unknown, escape.ArithmeticNoEscape}, true
		}
		return entry{}, false
	}

	switch op {
	case shapeflow.OpAdd, shapeflow.OpSub, shapeflow.OpMult:
		return entry{IntOrLong, escape.NoEscape}, true
	case shapeflow.OpFloorDiv, shapeflow.OpMod:
		return entry{IntOrLong, escape.ZeroDivisionNoEscape}, true
	case shapeflow.OpDivmod:
		return entry{Tuple, escape.ZeroDivisionNoEscape}, true
	case shapeflow.OpTrueDiv:
		return entry{Float, pick(long, escape.ArithmeticNoEscape, escape.ZeroDivisionNoEscape)}, true
	case shapeflow.OpPow:
		// negative exponents give float
		return entry{Unknown, escape.ArithmeticNoEscape}, true
	case shapeflow.OpLShift:
		return entry{IntOrLong, pick(r.mayBeLong(), escape.ExceptionNoEscape, escape.ValueErrorNoEscape)}, true
	case shapeflow.OpRShift:
		if l == Bool || l == Int {
			return entry{Int, escape.ValueErrorNoEscape}, true
		}
		return entry{IntOrLong, escape.ValueErrorNoEscape}, true
	case shapeflow.OpBitOr, shapeflow.OpBitAnd, shapeflow.OpBitXor:
		switch {
		case l == Bool && r == Bool:
			return entry{Bool, escape.NoEscape}, true
		case (l == Bool || l == Int) && (r == Bool || r == Int):
			return entry{Int, escape.NoEscape}, true
		}
		return entry{IntOrLong, escape.NoEscape}, true
	}
	return entry{}, false
}

// sequenceRule covers concatenation, repetition and %-formatting.
func sequenceRule(op shapeflow.Operator, l, r *TypeShape) (entry, bool) {
	switch op {
	case shapeflow.OpAdd:
		if l.isSequence() && (l == r || (l.isBytesLike() && r.isBytesLike())) {
			return entry{l, escape.NoEscape}, true
		}
	case shapeflow.OpMult:
		if l.isSequence() && r.isIntegral() {
			return entry{l, pick(r.mayBeLong(), escape.OverflowNoEscape, escape.NoEscape)}, true
		}
		if r.isSequence() && l.isIntegral() {
			return entry{r, pick(l.mayBeLong(), escape.OverflowNoEscape, escape.NoEscape)}, true
		}
	case shapeflow.OpMod:
		if l == Str || l.isBytesLike() {
			return entry{l, escape.FormatError}, true
		}
	}
	return entry{}, false
}

// containerRule covers set algebra and dict merging.
func containerRule(op shapeflow.Operator, l, r *TypeShape) (entry, bool) {
	switch op {
	case shapeflow.OpSub, shapeflow.OpBitAnd, shapeflow.OpBitXor:
		if l.isSetLike() && r.isSetLike() {
			return entry{l, escape.ElementBasedEscape}, true
		}
	case shapeflow.OpBitOr:
		if l.isSetLike() && r.isSetLike() {
			return entry{l, escape.ElementBasedEscape}, true
		}
		if l == Dict && r == Dict {
			return entry{Dict, escape.ElementBasedEscape}, true
		}
	}
	return entry{}, false
}

func sameContainerFamily(l, r *TypeShape) bool {
	switch {
	case l == Tuple && r == Tuple, l == List && r == List, l == Dict && r == Dict:
		return true
	case l.isSetLike() && r.isSetLike():
		return true
	}
	return false
}

func comparisonRule(op shapeflow.Operator, l, r *TypeShape) (entry, bool) {
	if op == shapeflow.OpEq || op == shapeflow.OpNotEq {
		return entry{Bool, pick(sameContainerFamily(l, r), escape.ElementBasedEscape, escape.NoEscape)}, true
	}

	switch {
	case l.isReal() && r.isReal():
		return entry{Bool, escape.NoEscape}, true
	case l == Str && r == Str:
		return entry{Bool, escape.NoEscape}, true
	case l.isBytesLike() && r.isBytesLike():
		return entry{Bool, escape.NoEscape}, true
	case l == Tuple && r == Tuple, l == List && r == List:
		return entry{Bool, escape.ElementBasedEscape}, true
	case l.isSetLike() && r.isSetLike():
		return entry{Bool, escape.ElementBasedEscape}, true
	}
	return entry{}, false
}

func unaryConstructors() map[shapeflow.Operator]func() map[ID]entry {
	ctors := make(map[shapeflow.Operator]func() map[ID]entry)
	for _, op := range shapeflow.Operators() {
		if !op.IsUnary() {
			continue
		}
		op := op
		ctors[op] = func() map[ID]entry {
			cells := make(map[ID]entry, NumShapes)
			for _, s := range universe {
				cells[s.id] = unaryRule(op, s)
			}
			return cells
		}
	}
	return ctors
}

func unaryRule(op shapeflow.Operator, s *TypeShape) entry {
	if IsOpaque(s) {
		if op == shapeflow.OpNot {
			return entry{Bool, escape.FullEscape}
		}
		return entry{Unknown, escape.FullEscape}
	}

	switch op {
	case shapeflow.OpNot:
		return entry{Bool, escape.NoEscape}
	case shapeflow.OpNeg:
		switch s {
		case Bool:
			return entry{Int, escape.NoEscape}
		case Int, Long, IntOrLong:
			// -(-2**63) leaves the machine word, -(2**63) enters it
			return entry{IntOrLong, escape.NoEscape}
		case Float, Complex:
			return entry{s, escape.NoEscape}
		}
	case shapeflow.OpPos:
		switch s {
		case Bool:
			return entry{Int, escape.NoEscape}
		case Int, Long, IntOrLong, Float, Complex:
			return entry{s, escape.NoEscape}
		}
	case shapeflow.OpInvert:
		switch s {
		case Bool:
			return entry{Int, escape.NoEscape}
		case Int, Long, IntOrLong:
			return entry{s, escape.NoEscape}
		}
	}
	return entry{Unknown, escape.Unsupported(op)}
}
