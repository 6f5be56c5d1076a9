package excel

import (
	"encoding/csv"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gogrid/domain/grid"
)

// DataReader loads a raw grid from an xlsx, csv or json file
type DataReader struct {
	filePath string
	fileType string
}

// NewDataReader creates a reader, picking the format from the file extension
func NewDataReader(filePath string) *DataReader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	switch ext {
	case ".csv":
		fileType = "csv"
	case ".json":
		fileType = "json"
	}
	return &DataReader{filePath: filePath, fileType: fileType}
}

// FileType returns the detected format
func (r *DataReader) FileType() string {
	return r.fileType
}

// ReadGrid reads the file into a grid normalized to rows. A rows value of 0
// keeps the row count found in the file for json and csv input.
func (r *DataReader) ReadGrid(rows int) (grid.RawGrid, error) {
	startTime := time.Now()

	f, err := os.Open(r.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s file not found: %s", strings.ToUpper(r.fileType), r.filePath)
		}
		return nil, fmt.Errorf("failed to open %s: %w", r.filePath, err)
	}
	defer f.Close()

	var raw grid.RawGrid
	switch r.fileType {
	case "json":
		var data []byte
		if data, err = io.ReadAll(f); err == nil {
			raw, err = grid.Decode(data, rows)
		}
	case "csv":
		raw, err = ReadCSV(f, rows)
	default:
		if rows <= 0 {
			rows = grid.DefaultRows
		}
		raw, err = NewWorkbook().Import(f, rows)
	}
	if err != nil {
		return nil, err
	}

	log.Printf("[DataReader] Read %d rows from %s in %.2fms",
		len(raw), r.filePath, float64(time.Since(startTime).Nanoseconds())/1e6)
	return raw, nil
}

// ReadCSV reads comma separated rows; field i lands in column i. Extra
// fields are dropped and short records are padded.
func ReadCSV(in io.Reader, rows int) (grid.RawGrid, error) {
	reader := csv.NewReader(in)
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}

	raw := make(grid.RawGrid, 0, len(records))
	for _, record := range records {
		row := grid.NewRow()
		for i, col := range grid.Columns {
			if i < len(record) {
				row[col] = record[i]
			}
		}
		raw = append(raw, row)
	}

	if rows <= 0 {
		rows = len(raw)
	}
	return grid.Normalize(raw, rows), nil
}
