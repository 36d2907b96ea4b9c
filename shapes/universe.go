package shapes

func caps(hasLen, hasIter, hasHash, hasContains, numeric, sequence, mutable Tristate) Capabilities {
	return Capabilities{
		HasLen:      hasLen,
		HasIter:     hasIter,
		HasHash:     hasHash,
		HasContains: hasContains,
		IsNumeric:   numeric,
		IsSequence:  sequence,
		IsMutable:   mutable,
	}
}

var (
	// Unknown is the top of the lattice: nothing is known about the value.
	Unknown = newShape(IDUnknown, "unknown", maybeCapabilities)

	None      = newShape(IDNone, "NoneType", caps(No, No, Yes, No, No, No, No))
	Bool      = newShape(IDBool, "bool", caps(No, No, Yes, No, Yes, No, No))
	Int       = newShape(IDInt, "int", caps(No, No, Yes, No, Yes, No, No))
	Long      = newShape(IDLong, "long", caps(No, No, Yes, No, Yes, No, No))
	IntOrLong = newShape(IDIntOrLong, "int_or_long", caps(No, No, Yes, No, Yes, No, No))
	Float     = newShape(IDFloat, "float", caps(No, No, Yes, No, Yes, No, No))
	Complex   = newShape(IDComplex, "complex", caps(No, No, Yes, No, Yes, No, No))

	Str       = newShape(IDStr, "str", caps(Yes, Yes, Yes, Yes, No, Yes, No))
	Bytes     = newShape(IDBytes, "bytes", caps(Yes, Yes, Yes, Yes, No, Yes, No))
	ByteArray = newShape(IDByteArray, "bytearray", caps(Yes, Yes, No, Yes, No, Yes, Yes))
	Tuple     = newShape(IDTuple, "tuple", caps(Yes, Yes, Maybe, Yes, No, Yes, No))
	List      = newShape(IDList, "list", caps(Yes, Yes, No, Yes, No, Yes, Yes))
	Set       = newShape(IDSet, "set", caps(Yes, Yes, No, Yes, No, No, Yes))
	FrozenSet = newShape(IDFrozenSet, "frozenset", caps(Yes, Yes, Yes, Yes, No, No, No))
	Dict      = newShape(IDDict, "dict", caps(Yes, Yes, No, Yes, No, No, Yes))
	Range     = newShape(IDRange, "range", caps(Yes, Yes, Yes, Yes, No, Yes, No))
	Slice     = newShape(IDSlice, "slice", caps(No, No, No, No, No, No, No))
	Ellipsis  = newShape(IDEllipsis, "ellipsis", caps(No, No, Yes, No, No, No, No))

	// Type covers classes, whose metaclass may define any operator.
	Type      = newShape(IDType, "type", maybeCapabilities)
	Function  = newShape(IDFunction, "function", caps(No, No, Yes, No, No, No, No))
	Module    = newShape(IDModule, "module", caps(No, No, Yes, No, No, No, No))
	Iterator  = newShape(IDIterator, "iterator", caps(No, Yes, Yes, Maybe, No, No, Yes))
	Generator = newShape(IDGenerator, "generator", caps(No, Yes, Yes, No, No, No, Yes))
)

// IsOpaque reports shapes whose operators may run arbitrary user code.
func IsOpaque(s *TypeShape) bool {
	return s == Unknown || s == Type
}

func (t *TypeShape) isIntegral() bool {
	return t == Bool || t == Int || t == Long || t == IntOrLong
}

func (t *TypeShape) isReal() bool {
	return t.isIntegral() || t == Float
}

func (t *TypeShape) isNumber() bool {
	return t.isReal() || t == Complex
}

// mayBeLong reports integral shapes whose values may not fit a float exactly
// or a machine word.
func (t *TypeShape) mayBeLong() bool {
	return t == Long || t == IntOrLong
}

func (t *TypeShape) isSequence() bool {
	switch t {
	case Str, Bytes, ByteArray, Tuple, List:
		return true
	}
	return false
}

func (t *TypeShape) isBytesLike() bool {
	return t == Bytes || t == ByteArray
}

func (t *TypeShape) isSetLike() bool {
	return t == Set || t == FrozenSet
}
