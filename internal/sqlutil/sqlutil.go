// Package sqlutil holds small helpers shared by the sqlite-backed stores.
package sqlutil

import (
	"database/sql"
	"strings"
)

// InClauseArgs returns the "?, ?, ..." placeholder list for items and the
// matching args. No items gives "NULL", so `IN (NULL)` matches nothing.
func InClauseArgs[S ~string](items []S) (string, []any) {
	if len(items) == 0 {
		return "NULL", nil
	}
	args := make([]any, len(items))
	for i, item := range items {
		args[i] = string(item)
	}
	return strings.TrimSuffix(strings.Repeat("?, ", len(items)), ", "), args
}

// ScanRows runs scan over every row and closes rows, including on error, so
// the single connection is released before the next statement.
func ScanRows[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
