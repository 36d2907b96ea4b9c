package shapes

import (
	"testing"

	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/escape"
)

func TestTableTotality(t *testing.T) {
	for _, op := range shapeflow.Operators() {
		for _, l := range Universe() {
			if op.IsUnary() {
				s, e := l.UnaryShape(op)
				if s == nil || e == nil {
					t.Fatalf("%s(%s) returned nil", op, l)
				}
				continue
			}
			for _, r := range Universe() {
				s, e := l.OperationShape(op, r)
				if s == nil || e == nil {
					t.Fatalf("%s(%s, %s) returned nil", op, l, r)
				}
			}
		}
	}

	if defects := TableDefects(); len(defects) != 0 {
		t.Fatalf("expected no table defects, got %d, first: %s", len(defects), defects[0])
	}
	if err := Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestTableInvariants(t *testing.T) {
	for _, op := range shapeflow.Operators() {
		if op.IsUnary() {
			continue
		}
		for _, l := range Universe() {
			for _, r := range Universe() {
				s, e := Lookup(op, l, r)
				if e.IsUnsupported() && s != Unknown {
					t.Errorf("%s(%s, %s): unsupported result should be unknown, got %s", op, l, r, s)
				}
				if (IsOpaque(l) || IsOpaque(r)) && e != escape.FullEscape {
					t.Errorf("%s(%s, %s): opaque operand should fully escape, got %s", op, l, r, e)
				}
				if op.IsComparison() && !e.IsUnsupported() && !IsOpaque(l) && !IsOpaque(r) && s != Bool {
					t.Errorf("%s(%s, %s): comparison should give bool, got %s", op, l, r, s)
				}
			}
		}
	}
}

func TestScenarios(t *testing.T) {
	tests := []struct {
		name       string
		op         shapeflow.Operator
		left       *TypeShape
		right      *TypeShape
		wantShape  Shape
		wantEscape *escape.Descriptor
	}{
		{"add_int_int", shapeflow.OpAdd, Int, Int, IntOrLong, escape.NoEscape},
		{"mult_list_set", shapeflow.OpMult, List, Set, Unknown, escape.Unsupported(shapeflow.OpMult)},
		{"mod_str_int", shapeflow.OpMod, Str, Int, Str, escape.FormatError},
		{"mod_bytes_tuple", shapeflow.OpMod, Bytes, Tuple, Bytes, escape.FormatError},
		{"bitor_bool_bool", shapeflow.OpBitOr, Bool, Bool, Bool, escape.NoEscape},
		{"add_bool_bool", shapeflow.OpAdd, Bool, Bool, IntOrLong, escape.NoEscape},
		{"bitand_int_int", shapeflow.OpBitAnd, Int, Int, Int, escape.NoEscape},
		{"mult_str_int", shapeflow.OpMult, Str, Int, Str, escape.NoEscape},
		{"mult_int_list", shapeflow.OpMult, Int, List, List, escape.NoEscape},
		{"mult_str_str", shapeflow.OpMult, Str, Str, Unknown, escape.Unsupported(shapeflow.OpMult)},
		{"add_list_tuple", shapeflow.OpAdd, List, Tuple, Unknown, escape.Unsupported(shapeflow.OpAdd)},
		{"add_bytes_bytearray", shapeflow.OpAdd, Bytes, ByteArray, Bytes, escape.NoEscape},
		{"floordiv_int_int", shapeflow.OpFloorDiv, Int, Int, IntOrLong, escape.ZeroDivisionNoEscape},
		{"truediv_float_int", shapeflow.OpTrueDiv, Float, Int, Float, escape.ZeroDivisionNoEscape},
		{"divmod_int_float", shapeflow.OpDivmod, Int, Float, Tuple, escape.ZeroDivisionNoEscape},
		{"mod_int_int", shapeflow.OpMod, Int, Int, IntOrLong, escape.ZeroDivisionNoEscape},
		{"lshift_int_int", shapeflow.OpLShift, Int, Int, IntOrLong, escape.ValueErrorNoEscape},
		{"rshift_int_int", shapeflow.OpRShift, Int, Int, Int, escape.ValueErrorNoEscape},
		{"floordiv_complex", shapeflow.OpFloorDiv, Complex, Int, Unknown, escape.Unsupported(shapeflow.OpFloorDiv)},
		{"lt_int_str", shapeflow.OpLt, Int, Str, Unknown, escape.ComparisonUnorderable},
		{"lt_int_float", shapeflow.OpLt, Int, Float, Bool, escape.NoEscape},
		{"eq_int_str", shapeflow.OpEq, Int, Str, Bool, escape.NoEscape},
		{"eq_list_list", shapeflow.OpEq, List, List, Bool, escape.ElementBasedEscape},
		{"sub_set_frozenset", shapeflow.OpSub, Set, FrozenSet, Set, escape.ElementBasedEscape},
		{"bitor_dict_dict", shapeflow.OpBitOr, Dict, Dict, Dict, escape.ElementBasedEscape},
		{"add_unknown_int", shapeflow.OpAdd, Unknown, Int, Unknown, escape.FullEscape},
		{"add_int_type", shapeflow.OpAdd, Int, Type, Unknown, escape.FullEscape},
		{"matmult_int_int", shapeflow.OpMatMult, Int, Int, Unknown, escape.Unsupported(shapeflow.OpMatMult)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, e := tt.left.OperationShape(tt.op, tt.right)
			if s != tt.wantShape {
				t.Errorf("shape = %s, want %s", s.Name(), tt.wantShape.Name())
			}
			if e != tt.wantEscape {
				t.Errorf("escape = %s, want %s", e, tt.wantEscape)
			}
		})
	}
}

func TestFormatNeverNoEscape(t *testing.T) {
	for _, l := range []*TypeShape{Str, Bytes, ByteArray} {
		for _, r := range Universe() {
			_, e := l.OperationShape(shapeflow.OpMod, r)
			if e == escape.NoEscape {
				t.Errorf("%s %% %s must not be NoEscape", l, r)
			}
		}
	}
}

func TestSequenceRepetitionKeepsType(t *testing.T) {
	for _, seq := range sequences {
		for _, n := range integrals {
			s, _ := seq.OperationShape(shapeflow.OpMult, n)
			if s != seq {
				t.Errorf("%s * %s = %s, want %s", seq, n, s.Name(), seq)
			}
		}
	}
}

func TestUnaryShapes(t *testing.T) {
	tests := []struct {
		op         shapeflow.Operator
		operand    *TypeShape
		wantShape  Shape
		wantEscape *escape.Descriptor
	}{
		{shapeflow.OpNeg, Bool, Int, escape.NoEscape},
		{shapeflow.OpNeg, Int, IntOrLong, escape.NoEscape},
		{shapeflow.OpInvert, Long, Long, escape.NoEscape},
		{shapeflow.OpInvert, Float, Unknown, escape.Unsupported(shapeflow.OpInvert)},
		{shapeflow.OpPos, Str, Unknown, escape.Unsupported(shapeflow.OpPos)},
		{shapeflow.OpNot, List, Bool, escape.NoEscape},
		{shapeflow.OpNot, Unknown, Bool, escape.FullEscape},
	}

	for _, tt := range tests {
		t.Run(tt.op.String()+"_"+tt.operand.Name(), func(t *testing.T) {
			s, e := tt.operand.UnaryShape(tt.op)
			if s != tt.wantShape || e != tt.wantEscape {
				t.Errorf("got (%s, %s), want (%s, %s)", s.Name(), e, tt.wantShape.Name(), tt.wantEscape)
			}
		})
	}
}

func TestByName(t *testing.T) {
	for _, s := range Universe() {
		got, ok := ByName(s.Name())
		if !ok || got != s {
			t.Errorf("ByName(%q) = %v, %v", s.Name(), got, ok)
		}
		if ByID(s.ID()) != s {
			t.Errorf("ByID(%d) mismatch", s.ID())
		}
	}
	if _, ok := ByName("nonexistent"); ok {
		t.Error("ByName should fail for unknown names")
	}
}
