package query

import (
	"context"
	"strings"
	"time"

	"github.com/rebeliceyang/lazymy/internal/db/connection"
	"github.com/rebeliceyang/lazymy/internal/models"
)

// rowKeywords are leading keywords of statements that return a result set
var rowKeywords = map[string]bool{
	"SELECT":   true,
	"SHOW":     true,
	"DESCRIBE": true,
	"DESC":     true,
	"EXPLAIN":  true,
	"WITH":     true,
	"VALUES":   true,
	"TABLE":    true,
	"CALL":     true,
	"CHECK":    true,
	"ANALYZE":  true,
}

// ReturnsRows reports whether a statement produces a result set
func ReturnsRows(sql string) bool {
	return rowKeywords[leadingKeyword(sql)]
}

func leadingKeyword(sql string) string {
	s := strings.TrimSpace(stripLeadingComments(sql))
	s = strings.TrimLeft(s, "(")
	end := strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z')
	})
	if end >= 0 {
		s = s[:end]
	}
	return strings.ToUpper(s)
}

func stripLeadingComments(sql string) string {
	s := strings.TrimSpace(sql)
	for {
		switch {
		case strings.HasPrefix(s, "--") || strings.HasPrefix(s, "#"):
			nl := strings.IndexByte(s, '\n')
			if nl < 0 {
				return ""
			}
			s = strings.TrimSpace(s[nl+1:])
		case strings.HasPrefix(s, "/*"):
			end := strings.Index(s, "*/")
			if end < 0 {
				return ""
			}
			s = strings.TrimSpace(s[end+2:])
		default:
			return s
		}
	}
}

// Execute executes one SQL statement and returns its outcome; failures are
// reported in the result as a *models.StatementError
func Execute(ctx context.Context, q connection.Queryer, sql string) models.QueryResult {
	start := time.Now()

	if !ReturnsRows(sql) {
		res, err := q.ExecContext(ctx, sql)
		if err != nil {
			return models.QueryResult{
				Error:    models.NewStatementError(sql, err),
				Duration: time.Since(start),
			}
		}
		affected, _ := res.RowsAffected()
		return models.QueryResult{
			RowsAffected: affected,
			Duration:     time.Since(start),
		}
	}

	rows, err := q.QueryContext(ctx, sql)
	if err != nil {
		return models.QueryResult{
			Error:    models.NewStatementError(sql, err),
			Duration: time.Since(start),
		}
	}
	defer func() { _ = rows.Close() }()

	rs, err := connection.ScanResultSet(rows)
	if err != nil {
		return models.QueryResult{
			Error:    models.NewStatementError(sql, err),
			Duration: time.Since(start),
		}
	}

	return models.QueryResult{
		ResultSet:    *rs,
		HasRows:      true,
		RowsAffected: int64(len(rs.Rows)),
		Duration:     time.Since(start),
	}
}
