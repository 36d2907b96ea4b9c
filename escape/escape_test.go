package escape

import (
	"testing"

	"github.com/speakeasy-api/shapeflow"
)

func TestDescriptorTable(t *testing.T) {
	tests := []struct {
		d           *Descriptor
		exit        shapeflow.ExceptionKind
		value       bool
		control     bool
		unsupported bool
	}{
		{NoEscape, shapeflow.ExceptionNone, false, false, false},
		{ZeroDivisionNoEscape, shapeflow.ExceptionZeroDivision, false, false, false},
		{ValueErrorNoEscape, shapeflow.ExceptionValueError, false, false, false},
		{ComparisonUnorderable, shapeflow.ExceptionTypeError, false, false, true},
		{Unsupported(shapeflow.OpAdd), shapeflow.ExceptionTypeError, false, false, true},
		{FormatError, shapeflow.ExceptionBase, true, true, false},
		{ElementBasedEscape, shapeflow.ExceptionBase, true, true, false},
		{FullEscape, shapeflow.ExceptionBase, true, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.d.String(), func(t *testing.T) {
			if tt.d.ExceptionExit() != tt.exit {
				t.Errorf("exit = %v, want %v", tt.d.ExceptionExit(), tt.exit)
			}
			if tt.d.IsValueEscaping() != tt.value {
				t.Errorf("value escaping = %v, want %v", tt.d.IsValueEscaping(), tt.value)
			}
			if tt.d.IsControlFlowEscape() != tt.control {
				t.Errorf("control flow escape = %v, want %v", tt.d.IsControlFlowEscape(), tt.control)
			}
			if tt.d.IsUnsupported() != tt.unsupported {
				t.Errorf("unsupported = %v, want %v", tt.d.IsUnsupported(), tt.unsupported)
			}
		})
	}
}

func TestUnsupportedImpliesTypeError(t *testing.T) {
	for _, d := range All() {
		if d.IsUnsupported() && d.ExceptionExit() != shapeflow.ExceptionTypeError {
			t.Errorf("%s is unsupported but exits with %v", d, d.ExceptionExit())
		}
	}
}

func TestUnsupportedNames(t *testing.T) {
	if got := Unsupported(shapeflow.OpMult).String(); got != "MultUnsupported" {
		t.Errorf("Unsupported(Mult) = %s", got)
	}
	if Unsupported(shapeflow.OpLt) != ComparisonUnorderable {
		t.Error("ordering comparisons should share ComparisonUnorderable")
	}
}

func TestJoin(t *testing.T) {
	tests := []struct {
		name string
		a, b *Descriptor
		want *Descriptor
	}{
		{"same", NoEscape, NoEscape, NoEscape},
		{"none_and_zero", NoEscape, ZeroDivisionNoEscape, ZeroDivisionNoEscape},
		{"unsupported_weakens", NoEscape, Unsupported(shapeflow.OpAdd), TypeErrorNoEscape},
		{"full_dominates", ZeroDivisionNoEscape, FullEscape, FullEscape},
		{"format_is_escaping", NoEscape, FormatError, FullEscape},
		{"zero_and_overflow", ZeroDivisionNoEscape, OverflowNoEscape, ArithmeticNoEscape},
		{"zero_and_value", ZeroDivisionNoEscape, ValueErrorNoEscape, ExceptionNoEscape},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Join(tt.a, tt.b); got != tt.want {
				t.Errorf("Join(%s, %s) = %s, want %s", tt.a, tt.b, got, tt.want)
			}
			if got := Join(tt.b, tt.a); got != tt.want {
				t.Errorf("Join(%s, %s) = %s, want %s", tt.b, tt.a, got, tt.want)
			}
		})
	}
}
