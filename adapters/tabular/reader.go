// Package tabular reads the weekly and ground-truth feeds from CSV or XLSX
// files and writes every run output as CSV, XLSX and YAML.
package tabular

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"sedentarism/internal"
	"sedentarism/internal/errors"
)

// Row maps a trimmed header to its trimmed cell value.
type Row map[string]string

// Table is a header row plus data rows.
type Table struct {
	Headers []string
	Rows    []Row
}

// Reader handles reading Excel and CSV files
type Reader struct {
	filePath string
	fileType string // "xlsx" or "csv"
	logger   *internal.Logger
}

// NewReader picks the format from the file extension; anything but .csv is
// read as a workbook.
func NewReader(filePath string, logger *internal.Logger) *Reader {
	ext := strings.ToLower(filepath.Ext(filePath))
	fileType := "xlsx"
	if ext == ".csv" {
		fileType = "csv"
	}
	return &Reader{filePath: filePath, fileType: fileType, logger: logger.With("tabular")}
}

// ReadTable reads the whole file.
func (r *Reader) ReadTable() (*Table, error) {
	if _, err := os.Stat(r.filePath); err != nil {
		return nil, errors.IOError(strings.ToUpper(r.fileType)+" file not found: "+r.filePath, err)
	}

	switch r.fileType {
	case "csv":
		return r.readCSV()
	default:
		return r.readExcel()
	}
}

// readExcel reads the first sheet of the workbook.
func (r *Reader) readExcel() (*Table, error) {
	start := time.Now()
	f, err := excelize.OpenFile(r.filePath)
	if err != nil {
		return nil, errors.IOError("failed to open Excel file "+r.filePath, err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.InvalidInputf("workbook %s has no sheets", r.filePath)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.IOError("failed to read sheet "+sheets[0], err)
	}
	r.logger.Debug("%s: sheet %s read in %.2fms (%d rows)",
		r.filePath, sheets[0], float64(time.Since(start).Nanoseconds())/1e6, len(rows))
	return r.processRows(rows)
}

func (r *Reader) readCSV() (*Table, error) {
	file, err := os.Open(r.filePath)
	if err != nil {
		return nil, errors.IOError("failed to open CSV file "+r.filePath, err)
	}
	defer file.Close()

	start := time.Now()
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, errors.InvalidInputf("malformed CSV file %s: %v", r.filePath, err)
	}
	r.logger.Debug("%s: read in %.2fms (%d rows)",
		r.filePath, float64(time.Since(start).Nanoseconds())/1e6, len(rows))
	return r.processRows(rows)
}

// processRows converts raw string rows into a Table. A file with only a
// header is an empty table, not an error.
func (r *Reader) processRows(rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, errors.InvalidInputf("%s has no header row", r.filePath)
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	t := &Table{Headers: headers}
	for _, raw := range rows[1:] {
		if blank(raw) {
			continue
		}
		row := make(Row, len(headers))
		for j, cell := range raw {
			if j < len(headers) {
				row[headers[j]] = strings.TrimSpace(cell)
			}
		}
		t.Rows = append(t.Rows, row)
	}

	r.logger.Debug("%s: %d columns, %d rows", r.filePath, len(headers), len(t.Rows))
	return t, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
