package pyvalue

import (
	"errors"
	"testing"

	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/escape"
	"github.com/speakeasy-api/shapeflow/shapes"
)

// covers reports whether a predicted result shape admits the actual one.
func covers(predicted, actual *shapes.TypeShape) bool {
	switch {
	case predicted == shapes.Unknown, predicted == actual:
		return true
	case predicted == shapes.IntOrLong:
		return actual == shapes.Int || actual == shapes.Long
	}
	return false
}

// checkPrediction runs one operation on concrete values and compares the
// outcome with the table's prediction.
func checkPrediction(t *testing.T, label string, want *shapes.TypeShape, esc *escape.Descriptor, got Value, err error) {
	t.Helper()
	if errors.Is(err, ErrTooLarge) {
		return
	}
	if err != nil {
		exc, ok := AsException(err)
		if !ok {
			t.Errorf("%s: non-language error %v", label, err)
			return
		}
		switch {
		case esc.IsUnsupported():
			if exc.Kind != shapeflow.ExceptionTypeError {
				t.Errorf("%s: unsupported prediction but raised %s", label, exc)
			}
		case esc == escape.NoEscape:
			t.Errorf("%s: predicted NoEscape but raised %s", label, exc)
		case !esc.IsEscaping() && !exc.Kind.IsSubclassOf(esc.ExceptionExit()):
			t.Errorf("%s: raised %s outside predicted %s", label, exc, esc)
		}
		return
	}

	if esc.IsUnsupported() {
		t.Errorf("%s: predicted unsupported but produced %s", label, Repr(got))
		return
	}
	if actual := ShapeOf(got); !covers(want, actual) {
		t.Errorf("%s: produced %s, predicted shape %s", label, actual, want)
	}
}

func TestTableFidelityBinary(t *testing.T) {
	rt := testRuntime()
	for _, op := range shapeflow.Operators() {
		if op.IsUnary() {
			continue
		}
		for _, l := range shapes.Universe() {
			lv, ok := Sample(l)
			if !ok {
				continue
			}
			for _, r := range shapes.Universe() {
				rv, ok := Sample(r)
				if !ok {
					continue
				}
				want, esc := shapes.Lookup(op, l, r)
				got, err := rt.Apply(op, lv, rv)
				checkPrediction(t, op.String()+"("+l.Name()+", "+r.Name()+")", want, esc, got, err)
			}
		}
	}
}

func TestTableFidelityUnary(t *testing.T) {
	rt := testRuntime()
	for _, op := range shapeflow.Operators() {
		if !op.IsUnary() {
			continue
		}
		for _, s := range shapes.Universe() {
			v, ok := Sample(s)
			if !ok {
				continue
			}
			want, esc := shapes.Lookup(op, s, nil)
			got, err := rt.Unary(op, v)
			checkPrediction(t, op.String()+"("+s.Name()+")", want, esc, got, err)
		}
	}
}

func TestSamplesMatchShapes(t *testing.T) {
	for _, s := range shapes.Universe() {
		v, ok := Sample(s)
		if !ok {
			continue
		}
		if got := ShapeOf(v); got != s {
			t.Errorf("Sample(%s) has shape %s", s, got)
		}
	}
	for _, s := range []*shapes.TypeShape{shapes.Unknown, shapes.IntOrLong, shapes.Type, shapes.Function} {
		if _, ok := Sample(s); ok {
			t.Errorf("%s should have no sample", s)
		}
	}
}
