package pyvalue

import (
	"math"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/speakeasy-api/shapeflow"
)

// formatter runs printf-style % formatting for str and bytes templates.
type formatter struct {
	rt       *Runtime
	template []rune
	bytes    bool

	args   Value
	argLen int
	argIdx int
	dict   Value

	out strings.Builder
}

type directive struct {
	left, plus, space, alt, zero bool

	width     int
	precision int // -1 when absent
	conv      rune
}

// format implements template % args. Bytes templates follow the bytes rules:
// %s needs a bytes-like argument and %r behaves as %a.
func (rt *Runtime) format(template Value, args Value) (Value, error) {
	f := &formatter{rt: rt, args: args}
	switch t := template.(type) {
	case Str:
		f.template = []rune(string(t))
	case Bytes, *ByteArray:
		data, _ := bytesOf(t)
		f.bytes = true
		f.template = make([]rune, len(data))
		for i, b := range data {
			f.template[i] = rune(b)
		}
	default:
		return nil, errNotImplemented
	}

	if tup, ok := args.(Tuple); ok {
		f.argLen = len(tup)
		f.argIdx = 0
	} else {
		f.argLen = -1
		f.argIdx = -2
		if isMapping(args, f.bytes) {
			f.dict = args
		}
	}

	if err := f.run(); err != nil {
		return nil, err
	}
	if f.argIdx < f.argLen && f.dict == nil {
		if f.bytes {
			return nil, typeError("not all arguments converted during bytes formatting")
		}
		return nil, typeError("not all arguments converted during string formatting")
	}

	s := f.out.String()
	switch template.(type) {
	case Str:
		if err := rt.checkLength(utf8.RuneCountInString(s)); err != nil {
			return nil, err
		}
		return Str(s), nil
	}
	if err := rt.checkLength(len(s)); err != nil {
		return nil, err
	}
	raw := make([]byte, 0, len(s))
	for _, c := range s {
		raw = append(raw, byte(c))
	}
	if _, ok := template.(Bytes); ok {
		return Bytes(raw), nil
	}
	return &ByteArray{Data: raw}, nil
}

// isMapping reports values that support subscription with arbitrary keys;
// tuples and str are excluded by the caller's rules. Bytes formatting also
// excludes buffers.
func isMapping(v Value, bytesTemplate bool) bool {
	switch v.(type) {
	case *Dict, *List:
		return true
	case Bytes, *ByteArray:
		return !bytesTemplate
	}
	return false
}

func (f *formatter) nextArg() (Value, error) {
	if f.argIdx < f.argLen {
		idx := f.argIdx
		f.argIdx++
		if f.argLen < 0 {
			return f.args, nil
		}
		return f.args.(Tuple)[idx], nil
	}
	return nil, typeError("not enough arguments for format string")
}

func (f *formatter) run() error {
	t := f.template
	for i := 0; i < len(t); {
		if t[i] != '%' {
			f.out.WriteRune(t[i])
			i++
			continue
		}
		start := i
		i++
		if i >= len(t) {
			return valueError("incomplete format")
		}

		var (
			sp  = directive{precision: -1}
			arg Value
			err error
		)

		if t[i] == '(' {
			if f.dict == nil {
				return typeError("format requires a mapping")
			}
			depth := 1
			i++
			keyStart := i
			for i < len(t) && depth > 0 {
				switch t[i] {
				case '(':
					depth++
				case ')':
					depth--
				}
				i++
			}
			if depth > 0 {
				return valueError("incomplete format key")
			}
			key := string(t[keyStart : i-1])
			value, err := f.lookup(key)
			if err != nil {
				return err
			}
			// the looked-up value becomes the argument for * and the conversion
			f.args = value
			f.argLen = -1
			f.argIdx = -2
		}

	flags:
		for i < len(t) {
			switch t[i] {
			case '-':
				sp.left = true
			case '+':
				sp.plus = true
			case ' ':
				sp.space = true
			case '#':
				sp.alt = true
			case '0':
				sp.zero = true
			default:
				break flags
			}
			i++
		}

		if i < len(t) && t[i] == '*' {
			i++
			if sp.width, err = f.starArg(); err != nil {
				return err
			}
			if sp.width < 0 {
				sp.left = true
				sp.width = -sp.width
			}
		} else {
			for i < len(t) && t[i] >= '0' && t[i] <= '9' {
				sp.width = sp.width*10 + int(t[i]-'0')
				i++
			}
		}

		if i < len(t) && t[i] == '.' {
			i++
			sp.precision = 0
			if i < len(t) && t[i] == '*' {
				i++
				if sp.precision, err = f.starArg(); err != nil {
					return err
				}
				if sp.precision < 0 {
					sp.precision = 0
				}
			} else {
				for i < len(t) && t[i] >= '0' && t[i] <= '9' {
					sp.precision = sp.precision*10 + int(t[i]-'0')
					i++
				}
			}
		}

		for i < len(t) && (t[i] == 'h' || t[i] == 'l' || t[i] == 'L') {
			i++
		}
		if i >= len(t) {
			return valueError("incomplete format")
		}
		sp.conv = t[i]
		i++

		if sp.conv == '%' {
			f.out.WriteRune('%')
			continue
		}
		if arg, err = f.nextArg(); err != nil {
			return err
		}
		if err := f.convert(sp, arg, start); err != nil {
			return err
		}
	}
	return nil
}

func (f *formatter) lookup(key string) (Value, error) {
	var k Value = Str(key)
	if f.bytes {
		k = Bytes(key)
	}
	d, ok := f.dict.(*Dict)
	if !ok {
		return nil, typeError("%s indices must be integers or slices, not %s", f.dict.TypeName(), k.TypeName())
	}
	v, found, err := d.Get(k)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, raise(shapeflow.ExceptionKey, "%s", Repr(k))
	}
	return v, nil
}

func (f *formatter) starArg() (int, error) {
	v, err := f.nextArg()
	if err != nil {
		return 0, err
	}
	n, ok := asBig(v)
	if !ok {
		return 0, typeError("* wants int")
	}
	if !n.IsInt64() || n.Int64() > math.MaxInt32 || n.Int64() < -math.MaxInt32 {
		return 0, overflow("Python int too large to convert to C int")
	}
	return int(n.Int64()), nil
}

func (f *formatter) convert(sp directive, arg Value, start int) error {
	switch sp.conv {
	case 's', 'r', 'a':
		return f.convertText(sp, arg)
	case 'd', 'i', 'u':
		n, err := f.integerArg(sp, arg, false)
		if err != nil {
			return err
		}
		f.pad(sp, signed(sp, n.Sign() < 0, "", new(big.Int).Abs(n).String(), sp.precision), true)
		return nil
	case 'x', 'X', 'o':
		n, err := f.integerArg(sp, arg, true)
		if err != nil {
			return err
		}
		base, prefix := 16, "0x"
		if sp.conv == 'o' {
			base, prefix = 8, "0o"
		}
		digits := new(big.Int).Abs(n).Text(base)
		if sp.conv == 'X' {
			digits = strings.ToUpper(digits)
			prefix = strings.ToUpper(prefix)
		}
		if !sp.alt {
			prefix = ""
		}
		f.pad(sp, signed(sp, n.Sign() < 0, prefix, digits, sp.precision), true)
		return nil
	case 'e', 'E', 'f', 'F', 'g', 'G':
		x, err := f.floatArg(sp, arg)
		if err != nil {
			return err
		}
		f.pad(sp, formatFloat(sp, x), !math.IsInf(x, 0) && !math.IsNaN(x))
		return nil
	case 'c':
		return f.convertChar(sp, arg)
	}

	c := sp.conv
	return valueError("unsupported format character '%c' (0x%x) at index %d", c, c, f.indexOf(start, sp))
}

// indexOf locates the conversion character for error messages.
func (f *formatter) indexOf(start int, sp directive) int {
	for i := start + 1; i < len(f.template); i++ {
		if f.template[i] == sp.conv {
			return i
		}
	}
	return start
}

func (f *formatter) convertText(sp directive, arg Value) error {
	var s string
	switch {
	case sp.conv == 'a' || (sp.conv == 'r' && f.bytes):
		s = ASCII(arg)
	case sp.conv == 'r':
		s = Repr(arg)
	case f.bytes:
		data, ok := bytesOf(arg)
		if !ok {
			return typeError("%%b requires a bytes-like object, or an object that implements __bytes__, not '%s'", arg.TypeName())
		}
		var sb strings.Builder
		for _, b := range data {
			sb.WriteRune(rune(b))
		}
		s = sb.String()
	default:
		s = ToStr(arg)
	}
	if sp.precision >= 0 {
		if r := []rune(s); len(r) > sp.precision {
			s = string(r[:sp.precision])
		}
	}
	f.pad(sp, s, false)
	return nil
}

func (f *formatter) integerArg(sp directive, arg Value, strict bool) (*big.Int, error) {
	if n, ok := asBig(arg); ok {
		return n, nil
	}
	if x, ok := arg.(Float); ok && !strict {
		fx := float64(x)
		switch {
		case math.IsInf(fx, 0):
			return nil, overflow("cannot convert float infinity to integer")
		case math.IsNaN(fx):
			return nil, valueError("cannot convert float NaN to integer")
		}
		n, _ := new(big.Float).SetFloat64(math.Trunc(fx)).Int(nil)
		return n, nil
	}
	if strict {
		return nil, typeError("%%%c format: an integer is required, not %s", sp.conv, arg.TypeName())
	}
	return nil, typeError("%%%c format: a real number is required, not %s", sp.conv, arg.TypeName())
}

func (f *formatter) floatArg(sp directive, arg Value) (float64, error) {
	x, err := toFloat(arg)
	if err == errNotImplemented {
		return 0, typeError("must be real number, not %s", arg.TypeName())
	}
	return x, err
}

func (f *formatter) convertChar(sp directive, arg Value) error {
	if f.bytes {
		if data, ok := bytesOf(arg); ok && len(data) == 1 {
			f.pad(sp, string(rune(data[0])), false)
			return nil
		}
		n, ok := asBig(arg)
		if !ok {
			return typeError("%%c requires an integer in range(256) or a single byte")
		}
		if !n.IsInt64() || n.Int64() < 0 || n.Int64() > 255 {
			return overflow("%c arg not in range(256)")
		}
		f.pad(sp, string(rune(n.Int64())), false)
		return nil
	}

	if s, ok := arg.(Str); ok {
		if utf8.RuneCountInString(string(s)) != 1 {
			return typeError("%%c requires int or char")
		}
		f.pad(sp, string(s), false)
		return nil
	}
	n, ok := asBig(arg)
	if !ok {
		return typeError("%%c requires int or char")
	}
	if !n.IsInt64() || n.Int64() < 0 || n.Int64() > 0x10ffff {
		return overflow("%c arg not in range(0x110000)")
	}
	f.pad(sp, string(rune(n.Int64())), false)
	return nil
}

// signed assembles sign, prefix and digits, zero-extending digits to the
// precision.
func signed(sp directive, negative bool, prefix, digits string, precision int) string {
	if precision > len(digits) {
		digits = strings.Repeat("0", precision-len(digits)) + digits
	}
	sign := ""
	switch {
	case negative:
		sign = "-"
	case sp.plus:
		sign = "+"
	case sp.space:
		sign = " "
	}
	return sign + prefix + digits
}

func formatFloat(sp directive, x float64) string {
	upper := sp.conv == 'E' || sp.conv == 'F' || sp.conv == 'G'
	neg := math.Signbit(x) && !math.IsNaN(x)

	var body string
	switch {
	case math.IsNaN(x):
		body = "nan"
	case math.IsInf(x, 0):
		body = "inf"
	default:
		prec := sp.precision
		if prec < 0 {
			prec = 6
		}
		conv := byte(sp.conv | 0x20)
		if conv == 'g' && prec == 0 {
			prec = 1
		}
		body = strconv.FormatFloat(math.Abs(x), conv, prec, 64)
		if sp.alt && !strings.ContainsAny(body, ".") {
			if i := strings.IndexAny(body, "e"); i >= 0 {
				body = body[:i] + "." + body[i:]
			} else {
				body += "."
			}
		}
	}
	if upper {
		body = strings.ToUpper(body)
	}
	return signed(sp, neg, "", body, -1)
}

// pad applies width and justification. Zero padding goes between the sign
// or prefix and the digits.
func (f *formatter) pad(sp directive, s string, numeric bool) {
	n := utf8.RuneCountInString(s)
	if n >= sp.width {
		f.out.WriteString(s)
		return
	}
	fill := sp.width - n
	switch {
	case sp.left:
		f.out.WriteString(s)
		f.out.WriteString(strings.Repeat(" ", fill))
	case sp.zero && numeric:
		head := 0
		if head < len(s) && (s[0] == '-' || s[0] == '+' || s[0] == ' ') {
			head++
		}
		if head+1 < len(s) && s[head] == '0' && strings.ContainsRune("xXoO", rune(s[head+1])) {
			head += 2
		}
		f.out.WriteString(s[:head])
		f.out.WriteString(strings.Repeat("0", fill))
		f.out.WriteString(s[head:])
	default:
		f.out.WriteString(strings.Repeat(" ", fill))
		f.out.WriteString(s)
	}
}
