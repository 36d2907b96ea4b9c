package pyvalue

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode"
)

// Repr renders v the way the language's repr() does.
func Repr(v Value) string {
	var sb strings.Builder
	writeRepr(&sb, v)
	return sb.String()
}

// ToStr renders v the way the language's str() does.
func ToStr(v Value) string {
	if s, ok := v.(Str); ok {
		return string(s)
	}
	return Repr(v)
}

// ASCII is Repr with every non-ASCII character escaped.
func ASCII(v Value) string {
	r := Repr(v)
	var sb strings.Builder
	for _, c := range r {
		switch {
		case c < 0x80:
			sb.WriteRune(c)
		case c <= 0xff:
			fmt.Fprintf(&sb, `\x%02x`, c)
		case c <= 0xffff:
			fmt.Fprintf(&sb, `\u%04x`, c)
		default:
			fmt.Fprintf(&sb, `\U%08x`, c)
		}
	}
	return sb.String()
}

func writeRepr(sb *strings.Builder, v Value) {
	switch x := v.(type) {
	case NoneType:
		sb.WriteString("None")
	case Bool:
		if x {
			sb.WriteString("True")
		} else {
			sb.WriteString("False")
		}
	case Int:
		sb.WriteString(x.big().String())
	case Float:
		sb.WriteString(floatRepr(float64(x), true))
	case Complex:
		sb.WriteString(complexRepr(complex128(x)))
	case Str:
		sb.WriteString(strRepr(string(x)))
	case Bytes:
		sb.WriteString(bytesRepr(string(x)))
	case *ByteArray:
		sb.WriteString("bytearray(")
		sb.WriteString(bytesRepr(string(x.Data)))
		sb.WriteString(")")
	case Tuple:
		sb.WriteString("(")
		writeItems(sb, x)
		if len(x) == 1 {
			sb.WriteString(",")
		}
		sb.WriteString(")")
	case *List:
		sb.WriteString("[")
		writeItems(sb, x.Items)
		sb.WriteString("]")
	case *Set:
		if x.table.len() == 0 {
			sb.WriteString("set()")
			return
		}
		sb.WriteString("{")
		writeItems(sb, displayOrder(x.table.items()))
		sb.WriteString("}")
	case *FrozenSet:
		if x.table.len() == 0 {
			sb.WriteString("frozenset()")
			return
		}
		sb.WriteString("frozenset({")
		writeItems(sb, displayOrder(x.table.items()))
		sb.WriteString("})")
	case *Dict:
		sb.WriteString("{")
		for i, k := range x.table.keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeRepr(sb, x.table.keyOf[k])
			sb.WriteString(": ")
			writeRepr(sb, x.table.valued[k])
		}
		sb.WriteString("}")
	default:
		fmt.Fprintf(sb, "<%s object>", v.TypeName())
	}
}

func writeItems(sb *strings.Builder, items []Value) {
	for i, item := range items {
		if i > 0 {
			sb.WriteString(", ")
		}
		writeRepr(sb, item)
	}
}

// floatRepr produces the shortest round-tripping form, switching to
// exponent notation outside 1e-4 <= |f| < 1e16.
func floatRepr(f float64, addDotZero bool) string {
	switch {
	case math.IsNaN(f):
		return "nan"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}

	sign := ""
	if math.Signbit(f) {
		sign = "-"
		f = -f
	}
	if f == 0 {
		if addDotZero {
			return sign + "0.0"
		}
		return sign + "0"
	}

	e := strconv.FormatFloat(f, 'e', -1, 64)
	mant, expPart, _ := strings.Cut(e, "e")
	digits := strings.Replace(mant, ".", "", 1)
	exp, _ := strconv.Atoi(expPart)
	decpt := exp + 1

	if decpt > -4 && decpt <= 16 {
		switch {
		case decpt <= 0:
			return sign + "0." + strings.Repeat("0", -decpt) + digits
		case decpt >= len(digits):
			s := digits + strings.Repeat("0", decpt-len(digits))
			if addDotZero {
				s += ".0"
			}
			return sign + s
		default:
			return sign + digits[:decpt] + "." + digits[decpt:]
		}
	}

	s := digits[:1]
	if len(digits) > 1 {
		s += "." + digits[1:]
	}
	expSign := "+"
	if exp < 0 {
		expSign = "-"
		exp = -exp
	}
	return fmt.Sprintf("%s%se%s%02d", sign, s, expSign, exp)
}

func complexRepr(c complex128) string {
	re, im := real(c), imag(c)
	imStr := floatRepr(im, false)
	if re == 0 && !math.Signbit(re) {
		return imStr + "j"
	}
	if !strings.HasPrefix(imStr, "-") {
		imStr = "+" + imStr
	}
	return "(" + floatRepr(re, false) + imStr + "j)"
}

func strRepr(s string) string {
	quote := byte('\'')
	if strings.ContainsRune(s, '\'') && !strings.ContainsRune(s, '"') {
		quote = '"'
	}

	var sb strings.Builder
	sb.WriteByte(quote)
	for _, c := range s {
		switch {
		case c == rune(quote) || c == '\\':
			sb.WriteByte('\\')
			sb.WriteRune(c)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20 || c == 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, c)
		case c < 0x7f || unicode.IsPrint(c):
			sb.WriteRune(c)
		case c <= 0xff:
			fmt.Fprintf(&sb, `\x%02x`, c)
		case c <= 0xffff:
			fmt.Fprintf(&sb, `\u%04x`, c)
		default:
			fmt.Fprintf(&sb, `\U%08x`, c)
		}
	}
	sb.WriteByte(quote)
	return sb.String()
}

func bytesRepr(b string) string {
	quote := byte('\'')
	if strings.IndexByte(b, '\'') >= 0 && strings.IndexByte(b, '"') < 0 {
		quote = '"'
	}

	var sb strings.Builder
	sb.WriteString("b")
	sb.WriteByte(quote)
	for i := 0; i < len(b); i++ {
		c := b[i]
		switch {
		case c == quote || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c == '\n':
			sb.WriteString(`\n`)
		case c == '\r':
			sb.WriteString(`\r`)
		case c == '\t':
			sb.WriteString(`\t`)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&sb, `\x%02x`, c)
		default:
			sb.WriteByte(c)
		}
	}
	sb.WriteByte(quote)
	return sb.String()
}
