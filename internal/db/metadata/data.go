package metadata

import (
	"context"
	"fmt"

	"github.com/rebeliceyang/lazymy/internal/db/connection"
	"github.com/rebeliceyang/lazymy/internal/models"
)

// RowLimit caps the rows fetched into a table grid
const RowLimit = 1000

// QueryTableData fetches up to limit rows of table, filtered by a raw WHERE expression
func QueryTableData(ctx context.Context, conn *connection.Conn, table, where string, limit int) (*models.ResultSet, error) {
	query := conn.Dialect().SelectLimited(table, where, limit)
	rs, err := conn.Query(ctx, query)
	if err != nil {
		return nil, models.NewStatementError(query, fmt.Errorf("failed to query table data: %w", err))
	}
	return rs, nil
}
