// Package resolve runs operator resolution over the expression model: it
// predicts result shapes and escapes from the shape tables, folds constant
// operations, replaces operations that can only fail with an exact raise,
// and reports every escape to the trace collection.
package resolve

import (
	"errors"
	"fmt"

	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/escape"
	"github.com/speakeasy-api/shapeflow/expr"
	"github.com/speakeasy-api/shapeflow/pyvalue"
	"github.com/speakeasy-api/shapeflow/shapes"
	"github.com/speakeasy-api/shapeflow/trace"
)

// Change tags what the driver did to a node.
type Change int

const (
	ChangeNone Change = iota
	ChangeNewConstant
	ChangeNewRaise
)

func (c Change) String() string {
	switch c {
	case ChangeNewConstant:
		return "new_constant"
	case ChangeNewRaise:
		return "new_raise"
	default:
		return "none"
	}
}

// ChangeRecord describes one replacement.
type ChangeRecord struct {
	Tag     Change
	Message string
}

// Driver resolves expressions against one trace collection.
type Driver struct {
	rt      *pyvalue.Runtime
	coll    *trace.Collection
	log     shapeflow.Logger
	changes []ChangeRecord
}

// NewDriver creates a driver reporting to coll. A nil logger discards
// output.
func NewDriver(rt *pyvalue.Runtime, coll *trace.Collection, logger shapeflow.Logger) *Driver {
	if logger == nil {
		logger = shapeflow.NewNoopLogger()
	}
	return &Driver{rt: rt, coll: coll, log: logger}
}

// Changes returns the replacements made so far.
func (d *Driver) Changes() []ChangeRecord {
	out := make([]ChangeRecord, len(d.changes))
	copy(out, d.changes)
	return out
}

// Resolve resolves e bottom-up and returns the node that takes its place.
func (d *Driver) Resolve(e expr.Expr) (expr.Expr, error) {
	switch n := e.(type) {
	case *expr.VariableRef:
		t, err := d.coll.OnVariableRead(n.Variable)
		if err != nil {
			return nil, err
		}
		n.Bind(t)
		if n.MayRaise() {
			d.coll.OnExceptionRaiseExit(n.Escape().ExceptionExit())
		}
		return n, nil

	case *expr.Operation:
		left, err := d.Resolve(n.Left)
		if err != nil {
			return nil, err
		}
		n.Left = left
		if n.Right != nil {
			right, err := d.Resolve(n.Right)
			if err != nil {
				return nil, err
			}
			n.Right = right
		}
		out, tag, msg, err := d.ResolveOperation(n)
		if err != nil {
			return nil, err
		}
		if tag != ChangeNone {
			d.changes = append(d.changes, ChangeRecord{Tag: tag, Message: msg})
			d.log.Infof("%s: %s", tag, msg)
		}
		return out, nil
	}
	return e, nil
}

// ResolveOperation resolves an operation whose operands are resolved. It
// returns the replacement (op itself when kept), the change tag and a
// message describing the replacement.
func (d *Driver) ResolveOperation(op *expr.Operation) (expr.Expr, Change, string, error) {
	// An operand that always raises makes the whole operation raise, as
	// long as nothing evaluated before it is lost.
	operands := op.Operands()
	for i, operand := range operands {
		r, ok := operand.(*expr.Raise)
		if !ok {
			continue
		}
		if !pure(operands[:i]) {
			d.coll.OnExceptionRaiseExit(r.Kind)
			break
		}
		for _, dropped := range operands {
			d.releaseExpr(dropped)
		}
		return r, ChangeNone, "", nil
	}

	result, esc := predict(op)

	if values, ok := constantOperands(op); ok {
		v, err := d.rt.Apply(op.Op, values...)
		switch {
		case err == nil:
			d.release(op)
			return expr.NewConstant(v), ChangeNewConstant,
				fmt.Sprintf("Operation %s with constant operands folded to %s.", op, pyvalue.Repr(v)), nil
		case errors.Is(err, pyvalue.ErrTooLarge), errors.Is(err, pyvalue.ErrInexact):
			d.log.Debugf("not folding %s: %v", op, err)
		default:
			exc, ok := pyvalue.AsException(err)
			if !ok {
				return nil, ChangeNone, "", fmt.Errorf("failed to fold %s: %w", op, err)
			}
			d.release(op)
			return expr.NewRaise(exc), ChangeNewRaise,
				fmt.Sprintf("Operation %s with constant operands raises %s.", op, exc), nil
		}
	}

	if esc.IsUnsupported() && sideEffectFree(op) {
		if samples, ok := samplesFor(op); ok {
			_, err := d.rt.Apply(op.Op, samples...)
			if exc, ok := pyvalue.AsException(err); ok {
				d.release(op)
				return expr.NewRaise(exc), ChangeNewRaise,
					fmt.Sprintf("Operation %s always raises %s.", op, exc), nil
			}
			d.log.Errorf("shape table predicts %s for %s but the samples gave %v", esc, op, err)
		}
	}

	op.Annotate(result, esc)
	if err := d.applyEscape(op, esc); err != nil {
		return nil, ChangeNone, "", err
	}
	return op, ChangeNone, "", nil
}

// predict asks the left operand's shape for the result.
func predict(op *expr.Operation) (shapes.Shape, *escape.Descriptor) {
	left := op.Left.TypeShape()
	if op.Right == nil {
		return left.UnaryShape(op.Op)
	}
	return left.OperationShape(op.Op, op.Right.TypeShape())
}

// applyEscape reports the escape of a kept operation.
func (d *Driver) applyEscape(op *expr.Operation, esc *escape.Descriptor) error {
	if esc.MayRaise() {
		d.coll.OnExceptionRaiseExit(esc.ExceptionExit())
	}
	if esc.IsValueEscaping() {
		for _, operand := range op.Operands() {
			if ref, ok := operand.(*expr.VariableRef); ok {
				if err := d.coll.MarkActiveVariableAsEscaped(ref.Variable); err != nil {
					return err
				}
			}
		}
	}
	if esc.IsControlFlowEscape() {
		return d.coll.OnControlFlowEscape()
	}
	return nil
}

// release drops the reads of operands that disappear with a replaced
// operation.
func (d *Driver) release(op *expr.Operation) {
	for _, operand := range op.Operands() {
		d.releaseExpr(operand)
	}
}

func (d *Driver) releaseExpr(e expr.Expr) {
	switch n := e.(type) {
	case *expr.VariableRef:
		if n.Trace() != nil {
			d.coll.Graph().RemoveUsage(n.Trace().ID())
		}
	case *expr.Operation:
		d.release(n)
	}
}

// constantOperands returns the operand values when every operand is a
// literal or a variable whose assignment is a very trusted literal.
func constantOperands(op *expr.Operation) ([]pyvalue.Value, bool) {
	operands := op.Operands()
	values := make([]pyvalue.Value, 0, len(operands))
	for _, operand := range operands {
		switch n := operand.(type) {
		case *expr.Constant:
			values = append(values, n.Value)
		case *expr.VariableRef:
			if n.Trace() == nil {
				return nil, false
			}
			c, ok := n.Trace().AttributeNodeVeryTrusted().(*expr.Constant)
			if !ok {
				return nil, false
			}
			values = append(values, c.Value)
		default:
			return nil, false
		}
	}
	return values, true
}

// sideEffectFree reports that dropping the operands loses nothing.
func sideEffectFree(op *expr.Operation) bool {
	return pure(op.Operands())
}

// pure reports that evaluating exprs can neither raise nor escape.
func pure(exprs []expr.Expr) bool {
	for _, e := range exprs {
		switch n := e.(type) {
		case *expr.Constant:
		case *expr.VariableRef:
			if n.MayRaise() {
				return false
			}
		default:
			return false
		}
	}
	return true
}

// samplesFor returns representative values of the operand shapes.
func samplesFor(op *expr.Operation) ([]pyvalue.Value, bool) {
	operands := op.Operands()
	samples := make([]pyvalue.Value, 0, len(operands))
	for _, operand := range operands {
		s, ok := operand.TypeShape().(*shapes.TypeShape)
		if !ok {
			return nil, false
		}
		v, ok := pyvalue.Sample(s)
		if !ok {
			return nil, false
		}
		samples = append(samples, v)
	}
	return samples, true
}
