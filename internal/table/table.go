// Package table holds the rectangular in-memory dataset the pipeline renames.
package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Table is a header row plus string cells. Every row has len(Headers) cells.
type Table struct {
	Headers []string
	Rows    [][]string
}

// New builds a table, padding short rows and rejecting long ones.
func New(headers []string, rows [][]string) (*Table, error) {
	t := &Table{
		Headers: append([]string(nil), headers...),
		Rows:    make([][]string, 0, len(rows)),
	}

	for i, row := range rows {
		if len(row) > len(headers) {
			return nil, fmt.Errorf("row %d has %d cells, header has %d", i+1, len(row), len(headers))
		}

		padded := make([]string, len(headers))
		copy(padded, row)
		t.Rows = append(t.Rows, padded)
	}

	return t, nil
}

// ReadCSV reads a CSV stream whose first record is the header row.
// Ragged rows are padded to the header width.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	headers, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("csv has no header row")
	}

	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}

	var rows [][]string

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		if len(rec) > len(headers) {
			rec = rec[:len(headers)]
		}

		rows = append(rows, rec)
	}

	return New(headers, rows)
}

// WriteCSV writes the table, headers first.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(t.Headers); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}

	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("write csv rows: %w", err)
	}

	return nil
}

// Width returns the number of columns.
func (t *Table) Width() int { return len(t.Headers) }

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// Column returns a copy of the cells at position i.
func (t *Table) Column(i int) []string {
	if i < 0 || i >= len(t.Headers) {
		return nil
	}

	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}

	return out
}

// Index returns the first position whose header equals name, or -1.
func (t *Table) Index(name string) int {
	for i, h := range t.Headers {
		if h == name {
			return i
		}
	}

	return -1
}

// ColumnByName returns the cells of the first column named name.
func (t *Table) ColumnByName(name string) ([]string, bool) {
	i := t.Index(name)
	if i < 0 {
		return nil, false
	}

	return t.Column(i), true
}

// Renamed returns a copy of the table with new headers. Cells are shared.
func (t *Table) Renamed(headers []string) (*Table, error) {
	if len(headers) != len(t.Headers) {
		return nil, fmt.Errorf("rename needs %d names, got %d", len(t.Headers), len(headers))
	}

	return &Table{
		Headers: append([]string(nil), headers...),
		Rows:    t.Rows,
	}, nil
}
