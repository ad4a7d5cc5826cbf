package metadata

import (
	"context"
	"strings"

	"github.com/rebeliceyang/lazymy/internal/db/connection"
	"github.com/rebeliceyang/lazymy/internal/models"
)

// GetColumnDetails returns the columns of a table in ordinal order
func GetColumnDetails(ctx context.Context, conn *connection.Conn, table string) ([]models.ColumnDetail, error) {
	query, args := conn.Dialect().Columns(table)
	rs, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	columns := make([]models.ColumnDetail, 0, len(rs.Rows))
	for i := range rs.Rows {
		columns = append(columns, models.ColumnDetail{
			Name:         rs.Value(i, "COLUMN_NAME").Value,
			DataType:     rs.Value(i, "COLUMN_TYPE").Value,
			IsNullable:   strings.EqualFold(rs.Value(i, "IS_NULLABLE").Value, "YES"),
			DefaultValue: rs.Value(i, "COLUMN_DEFAULT").String(),
			IsPrimaryKey: rs.Value(i, "COLUMN_KEY").Value == "PRI",
		})
	}
	return columns, nil
}

// PrimaryKey returns the primary key column names, empty when the table has none
func PrimaryKey(columns []models.ColumnDetail) []string {
	var pk []string
	for _, c := range columns {
		if c.IsPrimaryKey {
			pk = append(pk, c.Name)
		}
	}
	return pk
}
