package formula

import (
	"regexp"
	"strconv"
	"strings"

	"gogrid/domain/grid"
)

// referencePattern matches a column letter followed by a one-based row number
var referencePattern = buildReferencePattern(grid.Columns)

func buildReferencePattern(cols []grid.Column) *regexp.Regexp {
	var letters strings.Builder
	for _, c := range cols {
		letters.WriteString(regexp.QuoteMeta(string(c)))
	}
	return regexp.MustCompile(`^([` + letters.String() + `])([1-9][0-9]*)$`)
}

// Resolver turns one operand token into a number against a raw snapshot
type Resolver interface {
	Resolve(token string, raw grid.RawGrid) float64
}

// ReferenceResolver resolves cell references against raw (unevaluated) text.
//
// A reference to a cell that itself holds a formula reads the formula text,
// which is not numeric, so it resolves to 0. References never chain.
type ReferenceResolver struct{}

// Resolve implements Resolver
func (ReferenceResolver) Resolve(token string, raw grid.RawGrid) float64 {
	t := strings.ToUpper(trimSpace(token))

	if m := referencePattern.FindStringSubmatch(t); m != nil {
		n, err := strconv.Atoi(m[2])
		if err != nil {
			// row number too large to address anything
			return 0
		}
		return ToNumber(raw.Cell(n-1, grid.Column(m[1])))
	}

	return ToNumber(t)
}

// ResolveToken resolves a single token with the default resolver
func ResolveToken(token string, raw grid.RawGrid) float64 {
	return ReferenceResolver{}.Resolve(token, raw)
}

// IsReference reports whether a token addresses a cell
func IsReference(token string) bool {
	return referencePattern.MatchString(strings.ToUpper(trimSpace(token)))
}
