package excel

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gogrid/domain/grid"
	"gogrid/internal/formula"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbookGrid() grid.RawGrid {
	raw := grid.NewRawGrid(4)
	raw[0][grid.ColumnA] = "5"
	raw[1][grid.ColumnA] = "=A1*2"
	raw[2][grid.ColumnB] = "=A1+A2-3"
	raw[3][grid.ColumnC] = "label"
	raw[3][grid.ColumnD] = "="
	return raw
}

func TestExportImportRoundTrip(t *testing.T) {
	raw := workbookGrid()
	wb := NewWorkbook()

	var buf bytes.Buffer
	require.NoError(t, wb.Export(&buf, raw, formula.Recompute(raw)))

	back, err := wb.Import(bytes.NewReader(buf.Bytes()), 4)
	require.NoError(t, err)
	assert.True(t, raw.Equal(back), "got %v", back)
}

func TestExportWritesComputedSheet(t *testing.T) {
	raw := workbookGrid()

	var buf bytes.Buffer
	require.NoError(t, NewWorkbook().Export(&buf, raw, formula.Recompute(raw)))

	f, err := excelize.OpenReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{RawSheet, ComputedSheet}, f.GetSheetList())

	formulaText, err := f.GetCellFormula(RawSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "A1*2", formulaText)

	value, err := f.GetCellValue(ComputedSheet, "A2")
	require.NoError(t, err)
	assert.Equal(t, "10", value)

	value, err = f.GetCellValue(ComputedSheet, "C4")
	require.NoError(t, err)
	assert.Equal(t, "label", value)
}

func TestImportFallsBackToFirstSheet(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", 5))
	require.NoError(t, f.SetCellFormula("Sheet1", "B1", "=A1+1"))

	var buf bytes.Buffer
	_, err := f.WriteTo(&buf)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	raw, err := NewWorkbook().Import(&buf, 2)
	require.NoError(t, err)

	require.Len(t, raw, 2)
	assert.Equal(t, "5", raw.Cell(0, grid.ColumnA))
	assert.Equal(t, "=A1+1", raw.Cell(0, grid.ColumnB))
	assert.Equal(t, "", raw.Cell(1, grid.ColumnD))
}

func TestImportRejectsGarbage(t *testing.T) {
	_, err := NewWorkbook().Import(strings.NewReader("not a workbook"), 2)
	assert.Error(t, err)
}

func TestReadCSV(t *testing.T) {
	raw, err := ReadCSV(strings.NewReader("5,=A1*2\n1,2,3,4,5\n"), 3)
	require.NoError(t, err)

	require.Len(t, raw, 3)
	assert.Equal(t, "=A1*2", raw.Cell(0, grid.ColumnB))
	assert.Equal(t, "", raw.Cell(0, grid.ColumnC))
	assert.Equal(t, "4", raw.Cell(1, grid.ColumnD))
	assert.Equal(t, "", raw.Cell(2, grid.ColumnA))
}

func TestDataReaderDetectsFormat(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "grid.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"A":"5"},{"A":"=A1*2"}]`), 0o644))

	reader := NewDataReader(jsonPath)
	assert.Equal(t, "json", reader.FileType())
	raw, err := reader.ReadGrid(0)
	require.NoError(t, err)
	require.Len(t, raw, 2)
	assert.Equal(t, "=A1*2", raw.Cell(1, grid.ColumnA))
	assert.Equal(t, "", raw.Cell(1, grid.ColumnD))

	xlsxPath := filepath.Join(dir, "grid.xlsx")
	out, err := os.Create(xlsxPath)
	require.NoError(t, err)
	require.NoError(t, NewWorkbook().Export(out, workbookGrid(), nil))
	require.NoError(t, out.Close())

	raw, err = NewDataReader(xlsxPath).ReadGrid(4)
	require.NoError(t, err)
	assert.True(t, workbookGrid().Equal(raw))

	_, err = NewDataReader(filepath.Join(dir, "missing.csv")).ReadGrid(1)
	assert.Error(t, err)
}
