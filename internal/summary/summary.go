package summary

import (
	"math"
	"strings"

	"gogrid/domain/grid"
	"gogrid/internal/formula"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats"
)

// ColumnStats describes the numeric content of one computed column. Cells
// that render as text, NaN or an infinity are counted but left out of the
// statistics.
type ColumnStats struct {
	Column  grid.Column `json:"column"`
	Numeric int         `json:"numeric"`
	Text    int         `json:"text"`
	Errors  int         `json:"errors"`
	Empty   int         `json:"empty"`
	Sum     float64     `json:"sum"`
	Mean    float64     `json:"mean"`
	Median  float64     `json:"median"`
	Min     float64     `json:"min"`
	Max     float64     `json:"max"`
	StdDev  float64     `json:"std_dev"`
}

// Highlight marks one cell for presentation
type Highlight struct {
	Cell  string `json:"cell"`
	Value string `json:"value"`
}

// GridSummary is the presentation-side digest of a computed grid
type GridSummary struct {
	Rows      int           `json:"rows"`
	Columns   []ColumnStats `json:"columns"`
	Negatives []Highlight   `json:"negatives"`
	Errors    []Highlight   `json:"errors"`
}

// Summarize computes per-column statistics plus the negative and failed cells
func Summarize(g grid.ComputedGrid) GridSummary {
	out := GridSummary{
		Rows:      len(g),
		Columns:   make([]ColumnStats, 0, len(grid.Columns)),
		Negatives: Negatives(g),
		Errors:    []Highlight{},
	}

	for _, col := range grid.Columns {
		cs := ColumnStats{Column: col}
		values := make([]float64, 0, len(g))

		for row := range g {
			text := g.Cell(row, col)
			switch {
			case strings.TrimSpace(text) == "":
				cs.Empty++
			case text == formula.ErrorMarker:
				cs.Errors++
				out.Errors = append(out.Errors, Highlight{
					Cell:  grid.Address{Row: row, Column: col}.String(),
					Value: text,
				})
			default:
				if v, ok := NumericValue(text); ok {
					values = append(values, v)
				} else {
					cs.Text++
				}
			}
		}

		cs.Numeric = len(values)
		if len(values) > 0 {
			fillStats(&cs, values)
		}
		out.Columns = append(out.Columns, cs)
	}

	return out
}

func fillStats(cs *ColumnStats, values []float64) {
	cs.Sum = floats.Sum(values)
	cs.Min = floats.Min(values)
	cs.Max = floats.Max(values)

	if mean, err := stats.Mean(values); err == nil {
		cs.Mean = mean
	}
	if median, err := stats.Median(values); err == nil {
		cs.Median = median
	}
	if stdDev, err := stats.StandardDeviation(values); err == nil {
		cs.StdDev = stdDev
	}
}

// NumericValue reports the finite number a non-empty cell text renders
func NumericValue(text string) (float64, bool) {
	if strings.TrimSpace(text) == "" {
		return 0, false
	}
	v, ok := formula.ParseNumber(text)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// IsNegative reports whether text is a non-empty number below zero.
// "-Infinity" counts; text that is not a number never does.
func IsNegative(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}
	v, ok := formula.ParseNumber(text)
	return ok && v < 0
}

// Negatives lists the cells of a computed grid that render as negative
// numbers, in row-major order
func Negatives(g grid.ComputedGrid) []Highlight {
	out := []Highlight{}
	for row := range g {
		for _, col := range grid.Columns {
			text := g.Cell(row, col)
			if IsNegative(text) {
				out = append(out, Highlight{
					Cell:  grid.Address{Row: row, Column: col}.String(),
					Value: text,
				})
			}
		}
	}
	return out
}
