package formula

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Cell text is converted to numbers the way a browser's Number() does it:
// surrounding whitespace is ignored, the empty string is zero, and anything
// that is not a complete numeric literal is NaN.

var (
	decimalLiteral = regexp.MustCompile(`^[+-]?(?:[0-9]+\.?[0-9]*|\.[0-9]+)(?:[eE][+-]?[0-9]+)?$`)
	radixLiteral   = regexp.MustCompile(`^0(?:[xX][0-9a-fA-F]+|[oO][0-7]+|[bB][01]+)$`)
)

// ParseNumber converts text to a float64. ok is false when the text is not numeric.
func ParseNumber(text string) (value float64, ok bool) {
	s := trimSpace(text)
	switch {
	case s == "":
		return 0, true
	case s == "Infinity", s == "+Infinity":
		return math.Inf(1), true
	case s == "-Infinity":
		return math.Inf(-1), true
	case radixLiteral.MatchString(s):
		return parseRadix(s[2:], radixOf(s[1])), true
	case decimalLiteral.MatchString(s):
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			var numErr *strconv.NumError
			// Overflow and underflow keep the saturated value, as Number() does.
			if errors.As(err, &numErr) && errors.Is(numErr.Err, strconv.ErrRange) {
				return v, true
			}
			return 0, false
		}
		return v, true
	default:
		return math.NaN(), false
	}
}

// ToNumber is ParseNumber with every non-numeric outcome collapsed to 0.
// NaN and negative zero both become 0.
func ToNumber(text string) float64 {
	v, ok := ParseNumber(text)
	if !ok || math.IsNaN(v) || v == 0 {
		return 0
	}
	return v
}

func radixOf(prefix byte) int {
	switch prefix {
	case 'x', 'X':
		return 16
	case 'o', 'O':
		return 8
	default:
		return 2
	}
}

// parseRadix accumulates in float64 so literals wider than 64 bits still
// produce the nearest representable value instead of failing.
func parseRadix(digits string, base int) float64 {
	var v float64
	for i := 0; i < len(digits); i++ {
		d, _ := strconv.ParseUint(digits[i:i+1], base, 8)
		v = v*float64(base) + float64(d)
	}
	return v
}

// FormatNumber renders a float64 the way JavaScript's String(number) does:
// shortest round-trip digits, plain notation for magnitudes in [1e-7, 1e21),
// exponent notation outside it.
func FormatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	case v == 0:
		return "0"
	}

	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}

	mantissa, expPart, _ := strings.Cut(strconv.FormatFloat(v, 'e', -1, 64), "e")
	exp, _ := strconv.Atoi(expPart)
	digits := strings.Replace(mantissa, ".", "", 1)
	k := len(digits)
	n := exp + 1

	var out string
	switch {
	case k <= n && n <= 21:
		out = digits + strings.Repeat("0", n-k)
	case 0 < n && n <= 21:
		out = digits[:n] + "." + digits[n:]
	case -6 < n && n <= 0:
		out = "0." + strings.Repeat("0", -n) + digits
	default:
		e := n - 1
		expSign := "+"
		if e < 0 {
			expSign = "-"
			e = -e
		}
		out = digits[:1]
		if k > 1 {
			out += "." + digits[1:]
		}
		out += "e" + expSign + strconv.Itoa(e)
	}
	return sign + out
}

func trimSpace(s string) string {
	return strings.TrimFunc(s, isSpace)
}

// isSpace matches the whitespace and line terminator set used by String.prototype.trim.
func isSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', ' ', '\u00a0', '\u1680',
		'\u2028', '\u2029', '\u202f', '\u205f', '\u3000', '\ufeff':
		return true
	}
	return r >= '\u2000' && r <= '\u200a'
}
