package metadata

import (
	"context"

	"github.com/rebeliceyang/lazymy/internal/db/connection"
	"github.com/rebeliceyang/lazymy/internal/models"
)

// GetForeignKeys returns the single-column foreign keys declared on a table
func GetForeignKeys(ctx context.Context, conn *connection.Conn, table string) ([]models.ForeignKey, error) {
	query, args := conn.Dialect().ForeignKeys(table)
	rs, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	keys := make([]models.ForeignKey, 0, len(rs.Rows))
	for i := range rs.Rows {
		keys = append(keys, models.ForeignKey{
			Column:       rs.Value(i, "COLUMN_NAME").Value,
			TargetTable:  rs.Value(i, "REFERENCED_TABLE_NAME").Value,
			TargetColumn: rs.Value(i, "REFERENCED_COLUMN_NAME").Value,
		})
	}
	return keys, nil
}

// ForeignKeyFor returns the foreign key declared on column, if any
func ForeignKeyFor(keys []models.ForeignKey, column string) (models.ForeignKey, bool) {
	for _, k := range keys {
		if k.Column == column {
			return k, true
		}
	}
	return models.ForeignKey{}, false
}
