package grid

import (
	"fmt"
	"strconv"
	"strings"

	"gogrid/domain/core"
)

// Column identifies one of the fixed grid columns
type Column string

const (
	ColumnA Column = "A"
	ColumnB Column = "B"
	ColumnC Column = "C"
	ColumnD Column = "D"
)

// Columns is the closed, ordered column set every row carries
var Columns = []Column{ColumnA, ColumnB, ColumnC, ColumnD}

// FormulaMarker prefixes every formula cell
const FormulaMarker = "="

// DefaultRows is the row count of a freshly created grid
const DefaultRows = 10

// ParseColumn converts a (case-insensitive) letter into a Column
func ParseColumn(s string) (Column, bool) {
	c := Column(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Columns {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Index returns the zero-based position of the column, or -1
func (c Column) Index() int {
	for i, known := range Columns {
		if c == known {
			return i
		}
	}
	return -1
}

// IsFormula reports whether raw cell text denotes a formula
func IsFormula(text string) bool {
	return strings.HasPrefix(text, FormulaMarker)
}

// Row maps every column to its cell text
type Row map[Column]string

// NewRow returns a row with an empty entry for every column
func NewRow() Row {
	row := make(Row, len(Columns))
	for _, c := range Columns {
		row[c] = ""
	}
	return row
}

func (r Row) clone() Row {
	out := make(Row, len(Columns))
	for _, c := range Columns {
		out[c] = r[c]
	}
	return out
}

// RawGrid holds the user-entered text of every cell
type RawGrid []Row

// ComputedGrid holds display text after recomputation; same shape as its RawGrid
type ComputedGrid []Row

// NewRawGrid creates an empty grid with the given row count
func NewRawGrid(rows int) RawGrid {
	g := make(RawGrid, rows)
	for i := range g {
		g[i] = NewRow()
	}
	return g
}

// NewComputedGrid creates an empty computed grid, the state shown before
// the first compute response arrives
func NewComputedGrid(rows int) ComputedGrid {
	return ComputedGrid(NewRawGrid(rows))
}

// Cell returns the raw text at (row, col); out-of-range lookups yield ""
func (g RawGrid) Cell(row int, col Column) string {
	return cell(g, row, col)
}

// Clone deep-copies the grid so the copy shares no maps with the original
func (g RawGrid) Clone() RawGrid {
	return RawGrid(cloneRows(g))
}

// WithCell returns a new snapshot with one cell replaced. The receiver is not modified.
func (g RawGrid) WithCell(addr Address, text string) (RawGrid, error) {
	if addr.Row < 0 || addr.Row >= len(g) {
		return nil, fmt.Errorf("%w: row %d of %d", core.ErrRowOutOfRange, addr.Row+1, len(g))
	}
	if addr.Column.Index() < 0 {
		return nil, fmt.Errorf("%w: %q", core.ErrUnknownColumn, addr.Column)
	}
	next := make(RawGrid, len(g))
	copy(next, g)
	next[addr.Row] = g[addr.Row].clone()
	next[addr.Row][addr.Column] = text
	return next, nil
}

// Equal compares two grids cell by cell
func (g RawGrid) Equal(other RawGrid) bool {
	return equalRows(g, other)
}

// Cell returns the computed text at (row, col); out-of-range lookups yield ""
func (g ComputedGrid) Cell(row int, col Column) string {
	return cell(g, row, col)
}

// Clone deep-copies the computed grid
func (g ComputedGrid) Clone() ComputedGrid {
	return ComputedGrid(cloneRows(g))
}

// Equal compares two computed grids cell by cell
func (g ComputedGrid) Equal(other ComputedGrid) bool {
	return equalRows(g, other)
}

// Normalize coerces a grid to the fixed shape: exactly rows rows, each carrying
// exactly the fixed columns. Missing cells become "", extra rows and unknown
// columns are dropped.
func Normalize(g RawGrid, rows int) RawGrid {
	out := make(RawGrid, rows)
	for i := range out {
		if i < len(g) && g[i] != nil {
			out[i] = g[i].clone()
		} else {
			out[i] = NewRow()
		}
	}
	return out
}

// HasShape reports whether the grid already satisfies the fixed shape
func HasShape(g RawGrid, rows int) bool {
	if len(g) != rows {
		return false
	}
	for _, row := range g {
		if len(row) != len(Columns) {
			return false
		}
		for _, c := range Columns {
			if _, ok := row[c]; !ok {
				return false
			}
		}
	}
	return true
}

func cell[G ~[]Row](g G, row int, col Column) string {
	if row < 0 || row >= len(g) {
		return ""
	}
	return g[row][col]
}

func cloneRows[G ~[]Row](g G) []Row {
	rows := []Row(g)
	if rows == nil {
		return nil
	}
	out := make([]Row, len(rows))
	for i, row := range rows {
		out[i] = row.clone()
	}
	return out
}

func equalRows[G ~[]Row](a, b G) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		for _, c := range Columns {
			if a[i][c] != b[i][c] {
				return false
			}
		}
	}
	return true
}

// Address names one cell: zero-based row plus column
type Address struct {
	Row    int
	Column Column
}

// ParseAddress parses a one-based "B3" style address
func ParseAddress(s string) (Address, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if len(s) < 2 {
		return Address{}, fmt.Errorf("%w: %q", core.ErrInvalidAddress, s)
	}
	col, ok := ParseColumn(s[:1])
	if !ok {
		return Address{}, fmt.Errorf("%w: %q", core.ErrUnknownColumn, s[:1])
	}
	n, err := strconv.Atoi(s[1:])
	if err != nil || n < 1 || s[1] == '0' || s[1] == '+' {
		return Address{}, fmt.Errorf("%w: %q", core.ErrInvalidAddress, s)
	}
	return Address{Row: n - 1, Column: col}, nil
}

// String renders the address in one-based "B3" form
func (a Address) String() string {
	return fmt.Sprintf("%s%d", a.Column, a.Row+1)
}
