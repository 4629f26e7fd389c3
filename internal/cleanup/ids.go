package cleanup

import (
	"fmt"
	"strconv"

	"github.com/andresuchdata/s3-permanent-deletes/internal/tabular"
)

// IDList is the result of reading a deletion file.
type IDList struct {
	IDs     []int64 // distinct, in first-seen order
	Rows    int     // data rows in the file
	Skipped int     // rows whose id was empty or not all digits
}

// ReadIDs reads column from the table at path. Values are trimmed and kept
// only when they consist of ASCII digits.
func ReadIDs(path, column string) (IDList, error) {
	table, err := tabular.ReadFile(path)
	if err != nil {
		return IDList{}, err
	}
	return IDsFromTable(table, column)
}

func IDsFromTable(table *tabular.Table, column string) (IDList, error) {
	if err := table.Require(column); err != nil {
		return IDList{}, err
	}

	list := IDList{Rows: len(table.Rows)}
	seen := make(map[int64]struct{}, len(table.Rows))

	for _, row := range table.Rows {
		value := table.Value(row, column)
		if !isDigits(value) {
			list.Skipped++
			continue
		}
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			return IDList{}, fmt.Errorf("id %q out of range: %w", value, err)
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		list.IDs = append(list.IDs, id)
	}

	return list, nil
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
