// Package tabular is the in-memory table shared by the input decoders, the
// de-identification filter and the curated outputs.
package tabular

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"
)

var ErrEmptyInput = errors.New("input has no header row")

const utf8BOM = "\ufeff"

// Table keeps a fixed column order. Cells are raw strings; an empty cell is
// treated as null by Records.
type Table struct {
	Columns []string
	Rows    [][]string
}

func New(columns ...string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols, Rows: [][]string{}}
}

func (t *Table) Len() int {
	return len(t.Rows)
}

func (t *Table) Append(cells ...string) {
	row := make([]string, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
}

func (t *Table) Index(column string) int {
	for i, c := range t.Columns {
		if c == column {
			return i
		}
	}
	return -1
}

func (t *Table) Clone() *Table {
	out := New(t.Columns...)
	out.Rows = make([][]string, len(t.Rows))
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// Records returns one map per row keyed by column name. Empty cells are left
// out so that callers see them as missing.
func (t *Table) Records() []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(t.Rows))
	for _, row := range t.Rows {
		rec := make(map[string]interface{}, len(t.Columns))
		for i, col := range t.Columns {
			if i < len(row) && row[i] != "" {
				rec[col] = row[i]
			}
		}
		out = append(out, rec)
	}
	return out
}

// EncodeCSV writes a header row followed by every row; no index column.
func (t *Table) EncodeCSV() ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(t.Columns); err != nil {
		return nil, err
	}
	for _, row := range t.Rows {
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode picks a decoder from the key's extension; anything other than
// .xlsx is read as CSV.
func Decode(key string, data []byte) (*Table, error) {
	if strings.EqualFold(path.Ext(key), ".xlsx") {
		return DecodeXLSX(data)
	}
	return DecodeCSV(data)
}

func DecodeCSV(data []byte) (*Table, error) {
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err == io.EOF {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("reading csv header: %w", err)
	}

	var rows [][]string
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		rows = append(rows, rec)
	}
	return fromGrid(header, rows)
}

// DecodeXLSX reads the first sheet of a workbook.
func DecodeXLSX(data []byte) (*Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyInput
	}
	grid, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("reading sheet %s: %w", sheets[0], err)
	}
	if len(grid) == 0 {
		return nil, ErrEmptyInput
	}
	return fromGrid(grid[0], grid[1:])
}

// fromGrid keeps the first occurrence of a duplicated header and pads or
// trims ragged rows to the header width.
func fromGrid(header []string, grid [][]string) (*Table, error) {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], utf8BOM)
	}
	if len(header) == 0 || (len(header) == 1 && strings.TrimSpace(header[0]) == "") {
		return nil, ErrEmptyInput
	}

	var keep []int
	seen := make(map[string]struct{}, len(header))
	cols := make([]string, 0, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		keep = append(keep, i)
		cols = append(cols, name)
	}

	t := New(cols...)
	for _, rec := range grid {
		if len(rec) == 0 {
			continue
		}
		row := make([]string, len(keep))
		for j, src := range keep {
			if src < len(rec) {
				row[j] = rec[src]
			}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}
