package excel

import (
	"fmt"
	"io"
	"math"
	"strings"

	"gogrid/domain/grid"
	"gogrid/internal/formula"

	"github.com/xuri/excelize/v2"
)

// Sheet names written by Export
const (
	RawSheet      = "Raw"
	ComputedSheet = "Computed"
)

// Workbook converts grids to and from xlsx workbooks. Row i and column c of
// a grid map to the spreadsheet cell c(i+1), so A1 stays A1.
type Workbook struct{}

// NewWorkbook creates a workbook codec
func NewWorkbook() *Workbook {
	return &Workbook{}
}

// Export writes raw text to the Raw sheet and, when computed is not nil, the
// rendered values to the Computed sheet. Formulas are stored as spreadsheet
// formulas so other tools can recalculate them.
func (w *Workbook) Export(out io.Writer, raw grid.RawGrid, computed grid.ComputedGrid) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", RawSheet); err != nil {
		return fmt.Errorf("failed to name raw sheet: %w", err)
	}
	if err := writeRaw(f, raw); err != nil {
		return err
	}

	if computed != nil {
		if _, err := f.NewSheet(ComputedSheet); err != nil {
			return fmt.Errorf("failed to create computed sheet: %w", err)
		}
		if err := writeComputed(f, computed); err != nil {
			return err
		}
	}

	if _, err := f.WriteTo(out); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRaw(f *excelize.File, raw grid.RawGrid) error {
	for row := range raw {
		for _, col := range grid.Columns {
			text := raw.Cell(row, col)
			if text == "" {
				continue
			}
			cell, err := cellName(row, col)
			if err != nil {
				return err
			}

			body := strings.TrimPrefix(text, grid.FormulaMarker)
			if grid.IsFormula(text) && body != "" {
				err = f.SetCellFormula(RawSheet, cell, body)
			} else {
				err = f.SetCellStr(RawSheet, cell, text)
			}
			if err != nil {
				return fmt.Errorf("failed to write %s: %w", cell, err)
			}
		}
	}
	return nil
}

func writeComputed(f *excelize.File, computed grid.ComputedGrid) error {
	for row := range computed {
		for _, col := range grid.Columns {
			text := computed.Cell(row, col)
			if text == "" {
				continue
			}
			cell, err := cellName(row, col)
			if err != nil {
				return err
			}

			if v, ok := formula.ParseNumber(text); ok && !math.IsNaN(v) && !math.IsInf(v, 0) {
				err = f.SetCellFloat(ComputedSheet, cell, v, -1, 64)
			} else {
				err = f.SetCellStr(ComputedSheet, cell, text)
			}
			if err != nil {
				return fmt.Errorf("failed to write computed %s: %w", cell, err)
			}
		}
	}
	return nil
}

// Import reads a raw grid of the given row count from the Raw sheet, or
// from the first sheet when there is none. Spreadsheet formulas come back
// with their leading "=".
func (w *Workbook) Import(in io.Reader, rows int) (grid.RawGrid, error) {
	f, err := excelize.OpenReader(in)
	if err != nil {
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
	defer f.Close()

	sheet := RawSheet
	if idx, err := f.GetSheetIndex(RawSheet); err != nil || idx == -1 {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	raw := grid.NewRawGrid(rows)
	for row := 0; row < rows; row++ {
		for _, col := range grid.Columns {
			cell, err := cellName(row, col)
			if err != nil {
				return nil, err
			}

			expr, err := f.GetCellFormula(sheet, cell)
			if err != nil {
				return nil, fmt.Errorf("failed to read formula %s: %w", cell, err)
			}
			if expr != "" {
				raw[row][col] = grid.FormulaMarker + strings.TrimPrefix(expr, grid.FormulaMarker)
				continue
			}

			value, err := f.GetCellValue(sheet, cell)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", cell, err)
			}
			raw[row][col] = value
		}
	}

	return raw, nil
}

func cellName(row int, col grid.Column) (string, error) {
	return excelize.CoordinatesToCellName(col.Index()+1, row+1)
}
