package pyvalue

import (
	"errors"
	"fmt"

	"github.com/speakeasy-api/shapeflow"
)

// ErrTooLarge is returned instead of a result when computing it would exceed
// the runtime's folding limits. It is not a language exception.
var ErrTooLarge = errors.New("pyvalue: result exceeds folding limits")

// ErrInexact is returned when the result depends on platform math whose
// rounding cannot be reproduced bit for bit.
var ErrInexact = errors.New("pyvalue: result cannot be reproduced exactly")

// errNotImplemented makes a dispatcher fall through to the generic
// "unsupported operand" TypeError.
var errNotImplemented = errors.New("not implemented")

// Exception is a language exception raised by an operator.
type Exception struct {
	Kind    shapeflow.ExceptionKind
	Message string
}

func (e *Exception) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Message
}

// AsException unwraps a language exception from err.
func AsException(err error) (*Exception, bool) {
	var exc *Exception
	if errors.As(err, &exc) {
		return exc, true
	}
	return nil, false
}

func raise(kind shapeflow.ExceptionKind, format string, args ...any) error {
	return &Exception{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func typeError(format string, args ...any) error {
	return raise(shapeflow.ExceptionTypeError, format, args...)
}

func valueError(format string, args ...any) error {
	return raise(shapeflow.ExceptionValueError, format, args...)
}

func zeroDivision(msg string) error {
	return raise(shapeflow.ExceptionZeroDivision, "%s", msg)
}

func overflow(msg string) error {
	return raise(shapeflow.ExceptionOverflow, "%s", msg)
}
