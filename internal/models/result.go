package models

import (
	"time"
)

// Cell is a single value of a result row
type Cell struct {
	Value string
	Null  bool
}

// NullCell is the SQL NULL value
var NullCell = Cell{Null: true}

// String renders the cell, NULL included
func (c Cell) String() string {
	if c.Null {
		return "NULL"
	}
	return c.Value
}

// Ptr returns nil for NULL, a pointer to the value otherwise
func (c Cell) Ptr() *string {
	if c.Null {
		return nil
	}
	v := c.Value
	return &v
}

// CellOf builds a cell from an optional value
func CellOf(v *string) Cell {
	if v == nil {
		return NullCell
	}
	return Cell{Value: *v}
}

// ResultSet is an ordered list of columns and rows
type ResultSet struct {
	Columns []string
	Rows    [][]Cell
}

// ColumnIndex returns the position of a column or -1
func (rs *ResultSet) ColumnIndex(name string) int {
	for i, c := range rs.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Value returns the named cell of a row, NULL when the column is unknown
func (rs *ResultSet) Value(row int, column string) Cell {
	idx := rs.ColumnIndex(column)
	if idx < 0 || row < 0 || row >= len(rs.Rows) || idx >= len(rs.Rows[row]) {
		return NullCell
	}
	return rs.Rows[row][idx]
}

// Record returns a row as a named-column record
func (rs *ResultSet) Record(row int) map[string]Cell {
	rec := make(map[string]Cell, len(rs.Columns))
	for i, c := range rs.Columns {
		rec[c] = rs.Rows[row][i]
	}
	return rec
}

// StringRows renders every cell as text
func (rs *ResultSet) StringRows() [][]string {
	out := make([][]string, len(rs.Rows))
	for i, row := range rs.Rows {
		line := make([]string, len(row))
		for j, c := range row {
			line[j] = c.String()
		}
		out[i] = line
	}
	return out
}

// QueryResult is the outcome of one statement: rows, an affected count, or an error
type QueryResult struct {
	ResultSet
	HasRows      bool
	RowsAffected int64
	Duration     time.Duration
	Error        error
}

// StatementResult pairs a statement with its outcome and timing
type StatementResult struct {
	SQL     string
	Result  QueryResult
	Elapsed time.Duration
}

// ElapsedMillis returns the elapsed time in milliseconds
func (r StatementResult) ElapsedMillis() int64 {
	return r.Elapsed.Milliseconds()
}

// BatchResult is delivered once per batch, after all statements ran or the batch was stopped
type BatchResult struct {
	Statements []StatementResult
	Stopped    bool
	Err        error
}
