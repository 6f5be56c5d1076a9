package formula

import (
	"math"
	"testing"

	"gogrid/domain/grid"

	"github.com/stretchr/testify/assert"
)

func resolverGrid() grid.RawGrid {
	g := grid.NewRawGrid(3)
	g[0][grid.ColumnA] = "5"
	g[0][grid.ColumnB] = "=2"
	g[0][grid.ColumnC] = "  7.5 "
	g[1][grid.ColumnD] = "Infinity"
	g[2][grid.ColumnA] = "text"
	return g
}

func TestResolveToken(t *testing.T) {
	g := resolverGrid()

	tests := []struct {
		name  string
		token string
		want  float64
	}{
		{"literal reference", "A1", 5},
		{"lowercase reference", "a1", 5},
		{"padded reference", "  A1 ", 5},
		{"padded literal text", "C1", 7.5},
		{"formula cell is not followed", "B1", 0},
		{"non numeric cell", "A3", 0},
		{"empty cell", "D3", 0},
		{"row past the end", "A11", 0},
		{"row zero is a literal", "A0", 0},
		{"unknown column", "E1", 0},
		{"huge row number", "A99999999999999999999", 0},
		{"plain number", "3.5", 3.5},
		{"hex number", "0x1f", 31},
		{"exponent", "2e2", 200},
		{"empty token", "", 0},
		{"garbage", "foo", 0},
		{"infinity word is upper-cased first", "Infinity", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveToken(tt.token, g))
		})
	}
}

func TestResolveInfinityCell(t *testing.T) {
	g := resolverGrid()
	assert.True(t, math.IsInf(ResolveToken("D2", g), 1))
}

func TestResolveAgainstEmptySnapshot(t *testing.T) {
	assert.Equal(t, 0.0, ResolveToken("A1", nil))
}

func TestIsReference(t *testing.T) {
	assert.True(t, IsReference("b7"))
	assert.True(t, IsReference(" D10 "))
	assert.False(t, IsReference("A0"))
	assert.False(t, IsReference("A01"))
	assert.False(t, IsReference("E1"))
	assert.False(t, IsReference("1A"))
}
