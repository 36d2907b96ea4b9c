// Package expr is the small expression and statement model the resolution
// driver works on. Scope resolution builds it; the driver annotates it and
// replaces folded or always-failing operations in place.
package expr

import (
	"fmt"

	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/escape"
	"github.com/speakeasy-api/shapeflow/pyvalue"
	"github.com/speakeasy-api/shapeflow/shapes"
	"github.com/speakeasy-api/shapeflow/trace"
)

// Expr is an expression node. Every expression can provide the value of an
// assignment.
type Expr interface {
	trace.ValueNode

	// Escape is the control-flow outcome of evaluating the node.
	Escape() *escape.Descriptor

	String() string
	exprNode()
}

// Constant is a literal value.
type Constant struct {
	Value pyvalue.Value
}

// NewConstant wraps v.
func NewConstant(v pyvalue.Value) *Constant { return &Constant{Value: v} }

func (c *Constant) exprNode()                  {}
func (c *Constant) TypeShape() shapes.Shape    { return pyvalue.ShapeOf(c.Value) }
func (c *Constant) MayRaise() bool             { return false }
func (c *Constant) Escape() *escape.Descriptor { return escape.NoEscape }
func (c *Constant) String() string             { return pyvalue.Repr(c.Value) }

// IsImmutable reports whether the value can never be changed in place, so
// a variable bound to it may be replaced by the literal.
func (c *Constant) IsImmutable() bool { return isImmutable(c.Value) }

func isImmutable(v pyvalue.Value) bool {
	switch x := v.(type) {
	case pyvalue.NoneType, pyvalue.Bool, pyvalue.Int, pyvalue.Float, pyvalue.Complex,
		pyvalue.Str, pyvalue.Bytes, *pyvalue.FrozenSet:
		return true
	case pyvalue.Tuple:
		for _, item := range x {
			if !isImmutable(item) {
				return false
			}
		}
		return true
	}
	return false
}

// VariableRef reads a variable. The driver binds it to the trace it read.
type VariableRef struct {
	Variable *trace.Variable

	trace *trace.ValueTrace
}

// NewVariableRef reads v.
func NewVariableRef(v *trace.Variable) *VariableRef { return &VariableRef{Variable: v} }

func (r *VariableRef) exprNode() {}

// Bind records the trace this read observed.
func (r *VariableRef) Bind(t *trace.ValueTrace) { r.trace = t }

// Trace returns the bound trace, or nil before resolution.
func (r *VariableRef) Trace() *trace.ValueTrace { return r.trace }

func (r *VariableRef) TypeShape() shapes.Shape {
	if r.trace == nil {
		return shapes.Unknown
	}
	return r.trace.TypeShape()
}

// MayRaise is true unless the variable certainly holds a value.
func (r *VariableRef) MayRaise() bool {
	return r.trace == nil || !r.trace.MustHaveValue()
}

func (r *VariableRef) Escape() *escape.Descriptor {
	if r.MayRaise() {
		return escape.ExceptionNoEscape
	}
	return escape.NoEscape
}

func (r *VariableRef) String() string { return r.Variable.Name }

// Operation applies a binary, comparison or unary operator. Right is nil for
// unary operators.
type Operation struct {
	Op          shapeflow.Operator
	Left, Right Expr

	shape shapes.Shape
	esc   *escape.Descriptor
}

// NewBinary builds a binary or comparison operation.
func NewBinary(op shapeflow.Operator, left, right Expr) *Operation {
	return &Operation{Op: op, Left: left, Right: right}
}

// NewUnary builds a unary operation.
func NewUnary(op shapeflow.Operator, operand Expr) *Operation {
	return &Operation{Op: op, Left: operand}
}

func (o *Operation) exprNode() {}

// Operands returns the operand nodes, one for unary operators.
func (o *Operation) Operands() []Expr {
	if o.Right == nil {
		return []Expr{o.Left}
	}
	return []Expr{o.Left, o.Right}
}

// Annotate stores the resolved shape and escape. It reports whether either
// changed.
func (o *Operation) Annotate(s shapes.Shape, esc *escape.Descriptor) bool {
	changed := o.shape != s || o.esc != esc
	o.shape, o.esc = s, esc
	return changed
}

// Resolved reports whether the driver has annotated the node.
func (o *Operation) Resolved() bool { return o.esc != nil }

func (o *Operation) TypeShape() shapes.Shape {
	if o.shape == nil {
		return shapes.Unknown
	}
	return o.shape
}

func (o *Operation) Escape() *escape.Descriptor {
	if o.esc == nil {
		return escape.FullEscape
	}
	return o.esc
}

func (o *Operation) MayRaise() bool { return o.Escape().MayRaise() }

func (o *Operation) String() string {
	if o.Right == nil {
		if o.Op == shapeflow.OpNot {
			return "(not " + o.Left.String() + ")"
		}
		return "(" + o.Op.Symbol() + o.Left.String() + ")"
	}
	switch o.Op {
	case shapeflow.OpDivmod:
		return "divmod(" + o.Left.String() + ", " + o.Right.String() + ")"
	case shapeflow.OpPow:
		return "(" + o.Left.String() + " ** " + o.Right.String() + ")"
	}
	return "(" + o.Left.String() + " " + o.Op.Symbol() + " " + o.Right.String() + ")"
}

// Raise always raises an exception with an exact message. The driver
// produces it for operations that can only fail.
type Raise struct {
	Kind    shapeflow.ExceptionKind
	Message string
}

// NewRaise converts a simulated exception into a node.
func NewRaise(exc *pyvalue.Exception) *Raise {
	return &Raise{Kind: exc.Kind, Message: exc.Message}
}

func (r *Raise) exprNode()                  {}
func (r *Raise) TypeShape() shapes.Shape    { return shapes.Unknown }
func (r *Raise) MayRaise() bool             { return true }
func (r *Raise) Escape() *escape.Descriptor { return escape.ForException(r.Kind) }

func (r *Raise) String() string {
	return fmt.Sprintf("raise %s(%s)", r.Kind, pyvalue.Repr(pyvalue.Str(r.Message)))
}
