package tagger

import (
	"errors"
	"fmt"

	"github.com/andresuchdata/s3-permanent-deletes/internal/tabular"
)

// InputError is the only run-aborting failure: the input table is unreadable
// or lacks a required column.
type InputError struct {
	Source string
	Err    error
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input %s: %v", e.Source, e.Err)
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// IsInputError reports whether err is (or wraps) an *InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// ReadRows loads path and extracts the usable rows.
func ReadRows(path, prefixColumn, filenameColumn string) ([]Row, error) {
	table, err := tabular.ReadFile(path)
	if err != nil {
		return nil, &InputError{Source: path, Err: err}
	}
	rows, err := RowsFromTable(table, prefixColumn, filenameColumn)
	if err != nil {
		return nil, &InputError{Source: path, Err: err}
	}
	return rows, nil
}

// RowsFromTable extracts rows whose prefix and filename are both non-empty
// after trimming.
func RowsFromTable(table *tabular.Table, prefixColumn, filenameColumn string) ([]Row, error) {
	if err := table.Require(prefixColumn, filenameColumn); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(table.Rows))
	for _, record := range table.Rows {
		prefix := table.Value(record, prefixColumn)
		filename := table.Value(record, filenameColumn)
		if prefix == "" || filename == "" {
			continue
		}
		rows = append(rows, Row{LocationPrefix: prefix, BaseFilename: filename})
	}
	return rows, nil
}
