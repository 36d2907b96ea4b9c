// Package shapes implements the abstract type-shape lattice: one singleton
// per runtime type of the analysed language, dense per-operator result
// tables, and the loop alternatives used while a loop is being analysed.
package shapes

import (
	"fmt"

	"github.com/speakeasy-api/shapeflow"
	"github.com/speakeasy-api/shapeflow/escape"
)

// Shape is either a concrete *TypeShape or a loop *Alternative.
type Shape interface {
	Name() string

	// OperationShape predicts the result shape and escape of a binary or
	// comparison operator with this shape on the left.
	OperationShape(op shapeflow.Operator, right Shape) (Shape, *escape.Descriptor)

	// UnaryShape predicts the result of a unary operator.
	UnaryShape(op shapeflow.Operator) (Shape, *escape.Descriptor)

	Capabilities() Capabilities

	isShape()
}

// ID indexes the closed shape universe.
type ID int

const (
	IDUnknown ID = iota
	IDNone
	IDBool
	IDInt
	IDLong
	IDIntOrLong
	IDFloat
	IDComplex
	IDStr
	IDBytes
	IDByteArray
	IDTuple
	IDList
	IDSet
	IDFrozenSet
	IDDict
	IDRange
	IDSlice
	IDEllipsis
	IDType
	IDFunction
	IDModule
	IDIterator
	IDGenerator

	// NumShapes is the size of the closed universe.
	NumShapes int = iota
)

// Tristate answers capability questions that may be unknowable.
type Tristate int8

const (
	Maybe Tristate = iota
	Yes
	No
)

func (t Tristate) String() string {
	switch t {
	case Yes:
		return "yes"
	case No:
		return "no"
	default:
		return "maybe"
	}
}

// Capabilities are the boolean slots of a shape.
type Capabilities struct {
	HasLen      Tristate
	HasIter     Tristate
	HasHash     Tristate
	HasContains Tristate
	IsNumeric   Tristate
	IsSequence  Tristate
	IsMutable   Tristate
}

var maybeCapabilities = Capabilities{}

// TypeShape is the singleton descriptor of one runtime type.
type TypeShape struct {
	id   ID
	name string
	caps Capabilities
}

func (t *TypeShape) isShape() {}

// ID returns the index of t in the universe.
func (t *TypeShape) ID() ID { return t.id }

// Name returns the runtime type name.
func (t *TypeShape) Name() string { return t.name }

func (t *TypeShape) String() string { return t.name }

func (t *TypeShape) Capabilities() Capabilities { return t.caps }

// OperationShape looks the pair up in the frozen table, delegating to the
// alternative when right is one.
func (t *TypeShape) OperationShape(op shapeflow.Operator, right Shape) (Shape, *escape.Descriptor) {
	if op.IsUnary() {
		reportDefect(Defect{Op: op, Left: t.name, Right: nameOf(right), Reason: "unary operator used as binary"})
		return Unknown, escape.FullEscape
	}
	switch r := right.(type) {
	case *TypeShape:
		e := getTables().binary[op][t.id][r.id]
		return e.result, e.escape
	case *Alternative:
		return r.collect(func(member *TypeShape) (Shape, *escape.Descriptor) {
			return t.OperationShape(op, member)
		})
	default:
		reportDefect(Defect{Op: op, Left: t.name, Right: nameOf(right), Reason: "no table entry"})
		return Unknown, escape.FullEscape
	}
}

// UnaryShape looks op up in the unary table.
func (t *TypeShape) UnaryShape(op shapeflow.Operator) (Shape, *escape.Descriptor) {
	if !op.IsUnary() {
		reportDefect(Defect{Op: op, Left: t.name, Reason: "binary operator used as unary"})
		return Unknown, escape.FullEscape
	}
	e := getTables().unary[op][t.id]
	return e.result, e.escape
}

func nameOf(s Shape) string {
	if s == nil {
		return "<nil>"
	}
	return s.Name()
}

func newShape(id ID, name string, caps Capabilities) *TypeShape {
	s := &TypeShape{id: id, name: name, caps: caps}
	if universe[id] != nil {
		panic(fmt.Sprintf("shape id %d registered twice", id))
	}
	universe[id] = s
	return s
}

var universe [NumShapes]*TypeShape

// Universe returns every concrete shape in ID order.
func Universe() []*TypeShape {
	out := make([]*TypeShape, NumShapes)
	copy(out, universe[:])
	return out
}

// ByID returns the shape with the given ID.
func ByID(id ID) *TypeShape {
	return universe[id]
}

// ByName finds a concrete shape by its runtime type name.
func ByName(name string) (*TypeShape, bool) {
	for _, s := range universe {
		if s.name == name {
			return s, true
		}
	}
	return nil, false
}
