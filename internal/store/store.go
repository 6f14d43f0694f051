// Package store defines the tabular backing store the record layer is built
// on: named tables, a header row, append-only data rows and single-cell
// rewrites. It offers no transactions, uniqueness or read-modify-write.
package store

import (
	"context"
	"errors"
)

// Row is one data row keyed by header column name.
type Row map[string]string

// Clone returns a copy of r that can be mutated freely.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Store is the backing store adapter.
//
// Row and column indices are 1-based. Row 1 is the header, so logical record
// n (0-based, in ListRows order) lives at row n+2.
type Store interface {
	// EnsureTable creates table with the given header if it does not exist.
	EnsureTable(ctx context.Context, table string, columns []string) error
	// Header returns the current header row of table.
	Header(ctx context.Context, table string) ([]string, error)
	// ListRows returns every data row of table in storage order.
	ListRows(ctx context.Context, table string) ([]Row, error)
	// AppendRow adds a data row after the last one.
	AppendRow(ctx context.Context, table string, values []string) error
	// UpdateCell overwrites a single cell.
	UpdateCell(ctx context.Context, table string, row, col int, value string) error
}

// ErrTableNotFound is returned for operations on a table that was never ensured.
var ErrTableNotFound = errors.New("table not found")

// ErrRowOutOfRange is returned by UpdateCell for a row that does not exist.
var ErrRowOutOfRange = errors.New("row out of range")

// RowFromValues zips a header with cell values. Missing trailing cells read
// as empty strings and cells under blank header names are dropped.
func RowFromValues(header, values []string) Row {
	row := make(Row, len(header))
	for i, col := range header {
		if col == "" {
			continue
		}
		if i < len(values) {
			row[col] = values[i]
		} else {
			row[col] = ""
		}
	}
	return row
}
