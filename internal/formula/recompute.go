package formula

import "gogrid/domain/grid"

// Recomputer maps a raw snapshot to a computed grid. It holds no state
// between calls; the whole grid is recomputed every time.
type Recomputer struct {
	evaluator *Evaluator
}

// NewRecomputer creates a recomputer; a nil evaluator selects the default one
func NewRecomputer(evaluator *Evaluator) *Recomputer {
	if evaluator == nil {
		evaluator = defaultEvaluator
	}
	return &Recomputer{evaluator: evaluator}
}

// Recompute evaluates every formula cell against the same raw snapshot and
// passes every other cell through unchanged. Formulas only ever read raw
// text, so row order does not matter.
func (rc *Recomputer) Recompute(raw grid.RawGrid) grid.ComputedGrid {
	out := make(grid.ComputedGrid, len(raw))
	for i, row := range raw {
		computed := make(grid.Row, len(grid.Columns))
		for _, c := range grid.Columns {
			text := row[c]
			if grid.IsFormula(text) {
				computed[c] = rc.evaluator.Evaluate(text, raw).Display()
			} else {
				computed[c] = text
			}
		}
		out[i] = computed
	}
	return out
}

var defaultRecomputer = NewRecomputer(nil)

// Recompute runs the default recomputer
func Recompute(raw grid.RawGrid) grid.ComputedGrid {
	return defaultRecomputer.Recompute(raw)
}
