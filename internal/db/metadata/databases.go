package metadata

import (
	"context"
	"strconv"

	"github.com/rebeliceyang/lazymy/internal/db/connection"
	"github.com/rebeliceyang/lazymy/internal/models"
)

// toInt parses a numeric cell, NULL and garbage count as zero
func toInt(c models.Cell) int64 {
	if c.Null {
		return 0
	}
	n, err := strconv.ParseInt(c.Value, 10, 64)
	if err != nil {
		f, ferr := strconv.ParseFloat(c.Value, 64)
		if ferr != nil {
			return 0
		}
		return int64(f)
	}
	return n
}

// ListDatabases returns the database names of the server in server order
func ListDatabases(ctx context.Context, conn *connection.Conn) ([]string, error) {
	rs, err := conn.Query(ctx, conn.Dialect().ListDatabases())
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(rs.Rows))
	for _, row := range rs.Rows {
		if len(row) == 0 {
			continue
		}
		names = append(names, row[0].Value)
	}
	return names, nil
}
