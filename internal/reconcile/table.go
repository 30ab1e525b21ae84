// Package reconcile merges the one-row-per-tag restaurant table produced by
// a crawl into one row per restaurant and flags restaurants that appear in
// externally supplied id lists.
package reconcile

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// ListSeparator joins the elements of a tag list inside one cell.
const ListSeparator = "|"

// Table is a materialized table of string cells.
type Table struct {
	Header []string
	Rows   [][]string
}

// NewTable returns a table with a copy of header and no rows.
func NewTable(header []string) *Table {
	return &Table{Header: slices.Clone(header)}
}

// Col returns the index of the named column, or -1.
func (t *Table) Col(name string) int {
	return slices.Index(t.Header, name)
}

// ensureCol returns the index of the named column, appending an empty column
// to every row when it does not exist yet.
func (t *Table) ensureCol(name string) int {
	if i := t.Col(name); i >= 0 {
		return i
	}
	t.Header = append(t.Header, name)
	for i := range t.Rows {
		t.Rows[i] = append(t.Rows[i], "")
	}
	return len(t.Header) - 1
}

// Column returns the values of the named column.
func (t *Table) Column(name string) ([]string, error) {
	i := t.Col(name)
	if i < 0 {
		return nil, fmt.Errorf("reconcile: no column %q", name)
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out, nil
}

// SplitList splits a list cell. An empty cell is an empty list.
func SplitList(cell string) []string {
	if cell == "" {
		return nil
	}
	return strings.Split(cell, ListSeparator)
}

// JoinList is the inverse of SplitList.
func JoinList(items []string) string {
	return strings.Join(items, ListSeparator)
}

// ReadCSV reads a table with a header line.
func ReadCSV(r io.Reader) (*Table, error) {
	cr := csv.NewReader(r)
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reconcile: read csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("reconcile: csv has no header")
	}
	return &Table{Header: records[0], Rows: records[1:]}, nil
}

// ReadCSVFile reads the table stored at path.
func ReadCSVFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	defer f.Close()
	return ReadCSV(f)
}

// WriteCSV writes the header followed by every row.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("reconcile: write csv: %w", err)
	}
	return nil
}

// WriteCSVFile writes the table to path, replacing any existing file.
func (t *Table) WriteCSVFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	if err := t.WriteCSV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
