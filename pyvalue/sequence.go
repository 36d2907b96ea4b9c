package pyvalue

import (
	"strings"

	"github.com/speakeasy-api/shapeflow"
)

func (rt *Runtime) checkLength(n int) error {
	if rt.MaxSequenceLength > 0 && n > rt.MaxSequenceLength {
		return ErrTooLarge
	}
	return nil
}

func bytesOf(v Value) ([]byte, bool) {
	switch x := v.(type) {
	case Bytes:
		return []byte(x), true
	case *ByteArray:
		return x.Data, true
	}
	return nil, false
}

// concat implements + between sequences. Mixed bytes and bytearray keep the
// left operand's type.
func (rt *Runtime) concat(l, r Value) (Value, error) {
	switch x := l.(type) {
	case Str:
		y, ok := r.(Str)
		if !ok {
			return nil, typeError(`can only concatenate str (not "%s") to str`, r.TypeName())
		}
		if err := rt.checkLength(len([]rune(string(x))) + len([]rune(string(y)))); err != nil {
			return nil, err
		}
		return x + y, nil

	case Bytes, *ByteArray:
		a, _ := bytesOf(l)
		b, ok := bytesOf(r)
		if !ok {
			return nil, typeError("can't concat %s to %s", r.TypeName(), l.TypeName())
		}
		if err := rt.checkLength(len(a) + len(b)); err != nil {
			return nil, err
		}
		out := make([]byte, 0, len(a)+len(b))
		out = append(append(out, a...), b...)
		if _, ok := l.(Bytes); ok {
			return Bytes(out), nil
		}
		return &ByteArray{Data: out}, nil

	case Tuple:
		y, ok := r.(Tuple)
		if !ok {
			return nil, typeError(`can only concatenate tuple (not "%s") to tuple`, r.TypeName())
		}
		if err := rt.checkLength(len(x) + len(y)); err != nil {
			return nil, err
		}
		out := make(Tuple, 0, len(x)+len(y))
		return append(append(out, x...), y...), nil

	case *List:
		y, ok := r.(*List)
		if !ok {
			return nil, typeError(`can only concatenate list (not "%s") to list`, r.TypeName())
		}
		if err := rt.checkLength(len(x.Items) + len(y.Items)); err != nil {
			return nil, err
		}
		out := make([]Value, 0, len(x.Items)+len(y.Items))
		return &List{Items: append(append(out, x.Items...), y.Items...)}, nil
	}
	return nil, errNotImplemented
}

func isSequence(v Value) bool {
	switch v.(type) {
	case Str, Bytes, *ByteArray, Tuple, *List:
		return true
	}
	return false
}

// repeat implements sequence * count and count * sequence.
func (rt *Runtime) repeat(l, r Value) (Value, error) {
	seq, count := l, r
	if !isSequence(seq) {
		seq, count = r, l
	}
	if !isSequence(seq) {
		return nil, errNotImplemented
	}
	n, ok := asBig(count)
	if !ok {
		return nil, typeError("can't multiply sequence by non-int of type '%s'", count.TypeName())
	}
	if !n.IsInt64() {
		return nil, overflow("cannot fit 'int' into an index-sized integer")
	}
	times := int(n.Int64())
	if times < 0 {
		times = 0
	}
	size, _ := Len(seq)
	if size > 0 && times > 0 {
		if times > rt.MaxSequenceLength/size+1 && rt.MaxSequenceLength > 0 {
			return nil, ErrTooLarge
		}
		if err := rt.checkLength(size * times); err != nil {
			return nil, err
		}
	}

	switch x := seq.(type) {
	case Str:
		return Str(strings.Repeat(string(x), times)), nil
	case Bytes:
		return Bytes(strings.Repeat(string(x), times)), nil
	case *ByteArray:
		return &ByteArray{Data: []byte(strings.Repeat(string(x.Data), times))}, nil
	case Tuple:
		out := make(Tuple, 0, len(x)*times)
		for i := 0; i < times; i++ {
			out = append(out, x...)
		}
		return out, nil
	case *List:
		out := make([]Value, 0, len(x.Items)*times)
		for i := 0; i < times; i++ {
			out = append(out, x.Items...)
		}
		return &List{Items: out}, nil
	}
	return nil, errNotImplemented
}

// containerOp covers set algebra and dict merging.
func containerOp(op shapeflow.Operator, l, r Value) (Value, error) {
	switch op {
	case shapeflow.OpSub:
		return setOp('-', l, r)
	case shapeflow.OpBitAnd:
		return setOp('&', l, r)
	case shapeflow.OpBitXor:
		return setOp('^', l, r)
	case shapeflow.OpBitOr:
		if _, ok := l.(*Dict); ok {
			return dictMerge(l, r)
		}
		return setOp('|', l, r)
	}
	return nil, errNotImplemented
}
