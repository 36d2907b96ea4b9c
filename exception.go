package shapeflow

// ExceptionKind names a built-in exception class of the analysed language.
// ExceptionNone means no exception can leave the operation.
type ExceptionKind int

const (
	ExceptionNone ExceptionKind = iota
	ExceptionBase
	ExceptionGeneric
	ExceptionArithmetic
	ExceptionTypeError
	ExceptionValueError
	ExceptionZeroDivision
	ExceptionOverflow
	ExceptionLookup
	ExceptionKey
)

func (k ExceptionKind) String() string {
	switch k {
	case ExceptionNone:
		return "None"
	case ExceptionBase:
		return "BaseException"
	case ExceptionGeneric:
		return "Exception"
	case ExceptionArithmetic:
		return "ArithmeticError"
	case ExceptionTypeError:
		return "TypeError"
	case ExceptionValueError:
		return "ValueError"
	case ExceptionZeroDivision:
		return "ZeroDivisionError"
	case ExceptionOverflow:
		return "OverflowError"
	case ExceptionLookup:
		return "LookupError"
	case ExceptionKey:
		return "KeyError"
	default:
		return "UnknownException"
	}
}

func (k ExceptionKind) parent() ExceptionKind {
	switch k {
	case ExceptionZeroDivision, ExceptionOverflow:
		return ExceptionArithmetic
	case ExceptionKey:
		return ExceptionLookup
	case ExceptionArithmetic, ExceptionTypeError, ExceptionValueError, ExceptionLookup:
		return ExceptionGeneric
	case ExceptionGeneric:
		return ExceptionBase
	default:
		return ExceptionNone
	}
}

// IsSubclassOf reports whether k is other or derives from it.
func (k ExceptionKind) IsSubclassOf(other ExceptionKind) bool {
	if k == ExceptionNone || other == ExceptionNone {
		return k == other
	}
	for cur := k; cur != ExceptionNone; cur = cur.parent() {
		if cur == other {
			return true
		}
	}
	return false
}

// CommonBase returns the closest class both kinds derive from.
func CommonBase(a, b ExceptionKind) ExceptionKind {
	if a == ExceptionNone {
		return b
	}
	if b == ExceptionNone {
		return a
	}
	for cur := a; cur != ExceptionNone; cur = cur.parent() {
		if b.IsSubclassOf(cur) {
			return cur
		}
	}
	return ExceptionBase
}
