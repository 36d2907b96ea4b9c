// Package escape classifies what an operation may do to control flow and to
// the knowledge held about its operands.
package escape

import (
	"fmt"

	"github.com/speakeasy-api/shapeflow"
)

// Descriptor is an immutable control-flow outcome. Descriptors are
// singletons and compared by identity.
type Descriptor struct {
	name              string
	exceptionExit     shapeflow.ExceptionKind
	valueEscaping     bool
	controlFlowEscape bool
	unsupported       bool
}

func newDescriptor(name string, exit shapeflow.ExceptionKind, valueEscaping, controlFlowEscape, unsupported bool) *Descriptor {
	if unsupported && exit != shapeflow.ExceptionTypeError {
		panic(fmt.Sprintf("escape %s: unsupported descriptors must exit with TypeError", name))
	}
	return &Descriptor{
		name:              name,
		exceptionExit:     exit,
		valueEscaping:     valueEscaping,
		controlFlowEscape: controlFlowEscape,
		unsupported:       unsupported,
	}
}

var (
	// NoEscape: the operation cannot raise and runs no foreign code.
	NoEscape = newDescriptor("NoEscape", shapeflow.ExceptionNone, false, false, false)

	ZeroDivisionNoEscape = newDescriptor("ZeroDivisionNoEscape", shapeflow.ExceptionZeroDivision, false, false, false)
	ValueErrorNoEscape   = newDescriptor("ValueErrorNoEscape", shapeflow.ExceptionValueError, false, false, false)
	OverflowNoEscape     = newDescriptor("OverflowNoEscape", shapeflow.ExceptionOverflow, false, false, false)
	ArithmeticNoEscape   = newDescriptor("ArithmeticNoEscape", shapeflow.ExceptionArithmetic, false, false, false)
	TypeErrorNoEscape    = newDescriptor("TypeErrorNoEscape", shapeflow.ExceptionTypeError, false, false, false)
	ExceptionNoEscape    = newDescriptor("ExceptionNoEscape", shapeflow.ExceptionGeneric, false, false, false)

	// ComparisonUnorderable: ordering between incompatible shapes always raises.
	ComparisonUnorderable = newDescriptor("ComparisonUnorderable", shapeflow.ExceptionTypeError, false, false, true)

	// FormatError: %-formatting may raise anything and call __str__/__repr__.
	FormatError = newDescriptor("FormatError", shapeflow.ExceptionBase, true, true, false)

	// ElementBasedEscape: container operations that call element methods.
	ElementBasedEscape = newDescriptor("ElementBasedEscape", shapeflow.ExceptionBase, true, true, false)

	// FullEscape: arbitrary code may run.
	FullEscape = newDescriptor("FullEscape", shapeflow.ExceptionBase, true, true, false)
)

var unsupported [shapeflow.NumOperators]*Descriptor

func init() {
	for _, op := range shapeflow.Operators() {
		if op.IsOrdering() {
			unsupported[op] = ComparisonUnorderable
			continue
		}
		unsupported[op] = newDescriptor(op.String()+"Unsupported", shapeflow.ExceptionTypeError, false, false, true)
	}
}

// Unsupported returns the always-fails descriptor of op. Ordering
// comparisons share ComparisonUnorderable.
func Unsupported(op shapeflow.Operator) *Descriptor {
	return unsupported[op]
}

func (d *Descriptor) String() string { return d.name }

// ExceptionExit is the broadest exception class the operation may raise.
func (d *Descriptor) ExceptionExit() shapeflow.ExceptionKind { return d.exceptionExit }

// MayRaise reports whether an exception check is needed after the operation.
func (d *Descriptor) MayRaise() bool { return d.exceptionExit != shapeflow.ExceptionNone }

// IsValueEscaping means knowledge about the operands must be dropped.
func (d *Descriptor) IsValueEscaping() bool { return d.valueEscaping }

// IsControlFlowEscape means arbitrary code may have run, so facts about
// values reachable from the operands are also void.
func (d *Descriptor) IsControlFlowEscape() bool { return d.controlFlowEscape }

// IsUnsupported means the operation always raises TypeError.
func (d *Descriptor) IsUnsupported() bool { return d.unsupported }

// IsEscaping reports either kind of escape.
func (d *Descriptor) IsEscaping() bool { return d.valueEscaping || d.controlFlowEscape }

// Join returns a descriptor covering both outcomes. It is commutative and
// idempotent; anything escaping yields FullEscape.
func Join(a, b *Descriptor) *Descriptor {
	switch {
	case a == b:
		return a
	case a.IsEscaping() || b.IsEscaping():
		return FullEscape
	case a == NoEscape:
		return weaken(b)
	case b == NoEscape:
		return weaken(a)
	}
	return ForException(shapeflow.CommonBase(a.exceptionExit, b.exceptionExit))
}

// weaken turns an always-fails descriptor into a may-fail one.
func weaken(d *Descriptor) *Descriptor {
	if d.unsupported {
		return TypeErrorNoEscape
	}
	return d
}

// ForException returns the non-escaping descriptor that may raise kind.
func ForException(kind shapeflow.ExceptionKind) *Descriptor {
	switch kind {
	case shapeflow.ExceptionNone:
		return NoEscape
	case shapeflow.ExceptionZeroDivision:
		return ZeroDivisionNoEscape
	case shapeflow.ExceptionValueError:
		return ValueErrorNoEscape
	case shapeflow.ExceptionOverflow:
		return OverflowNoEscape
	case shapeflow.ExceptionArithmetic:
		return ArithmeticNoEscape
	case shapeflow.ExceptionTypeError:
		return TypeErrorNoEscape
	case shapeflow.ExceptionGeneric, shapeflow.ExceptionLookup, shapeflow.ExceptionKey:
		return ExceptionNoEscape
	default:
		return FullEscape
	}
}

// All returns every descriptor singleton, for table dumps.
func All() []*Descriptor {
	all := []*Descriptor{
		NoEscape, ZeroDivisionNoEscape, ValueErrorNoEscape, OverflowNoEscape,
		ArithmeticNoEscape, TypeErrorNoEscape, ExceptionNoEscape,
		ComparisonUnorderable, FormatError, ElementBasedEscape, FullEscape,
	}
	for _, op := range shapeflow.Operators() {
		if !op.IsOrdering() {
			all = append(all, unsupported[op])
		}
	}
	return all
}
