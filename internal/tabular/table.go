// Package tabular reads header-indexed tables from CSV and XLSX sources.
package tabular

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoHeader is returned when a source has no header row.
var ErrNoHeader = errors.New("tabular: missing header row")

// MissingColumnsError lists required columns absent from the header.
type MissingColumnsError struct {
	Missing   []string
	Available []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required column(s) %s (available: %s)",
		strings.Join(e.Missing, ", "), strings.Join(e.Available, ", "))
}

// Table is a header row plus data rows. Rows may be shorter than the header.
type Table struct {
	Header []string
	Rows   [][]string
	colMap map[string]int
}

func newTable(header []string, rows [][]string) (*Table, error) {
	if len(header) == 0 {
		return nil, ErrNoHeader
	}

	colMap := make(map[string]int, len(header))
	for i, col := range header {
		col = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
		header[i] = col
		if _, dup := colMap[col]; !dup {
			colMap[col] = i
		}
	}

	return &Table{Header: header, Rows: rows, colMap: colMap}, nil
}

// Require checks that every named column is present.
func (t *Table) Require(cols ...string) error {
	var missing []string
	for _, col := range cols {
		if _, ok := t.colMap[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &MissingColumnsError{Missing: missing, Available: t.Header}
	}
	return nil
}

// Value returns the trimmed cell of row under column name, or "" when absent.
func (t *Table) Value(row []string, name string) string {
	if idx, ok := t.colMap[name]; ok && idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}
