package metadata

import (
	"context"

	"github.com/rebeliceyang/lazymy/internal/db/connection"
)

// TableStatus is the per-table storage estimate reported by the server
type TableStatus struct {
	Name        string
	Rows        int64
	DataLength  int64
	IndexLength int64
}

// SizeBytes returns data plus index length
func (t TableStatus) SizeBytes() int64 {
	return t.DataLength + t.IndexLength
}

// ListTableStatus returns the status of every table of the connection's database
func ListTableStatus(ctx context.Context, conn *connection.Conn) ([]TableStatus, error) {
	return tableStatus(ctx, conn, "")
}

// GetTableStatus returns the status of one table, nil if the server does not report it
func GetTableStatus(ctx context.Context, conn *connection.Conn, table string) (*TableStatus, error) {
	status, err := tableStatus(ctx, conn, table)
	if err != nil {
		return nil, err
	}
	for i := range status {
		if status[i].Name == table {
			return &status[i], nil
		}
	}
	return nil, nil
}

func tableStatus(ctx context.Context, conn *connection.Conn, table string) ([]TableStatus, error) {
	query, args := conn.Dialect().TableStatus(table)
	rs, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	tables := make([]TableStatus, 0, len(rs.Rows))
	for i := range rs.Rows {
		tables = append(tables, TableStatus{
			Name:        rs.Value(i, "Name").Value,
			Rows:        toInt(rs.Value(i, "Rows")),
			DataLength:  toInt(rs.Value(i, "Data_length")),
			IndexLength: toInt(rs.Value(i, "Index_length")),
		})
	}
	return tables, nil
}
