package dialect

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/rebeliceyang/lazymy/internal/models"
)

// MySQL is the MySQL / MariaDB dialect
type MySQL struct{}

func (MySQL) Name() string       { return models.DriverMySQL }
func (MySQL) DriverName() string { return "mysql" }
func (MySQL) DefaultPort() int   { return 3306 }

// DSN builds a go-sql-driver DSN; an empty database connects without a default schema
func (m MySQL) DSN(cfg models.ConnectionConfig, database string) string {
	port := cfg.Port
	if port == 0 {
		port = m.DefaultPort()
	}
	c := mysql.NewConfig()
	c.User = cfg.User
	c.Passwd = cfg.Password
	c.Net = "tcp"
	c.Addr = fmt.Sprintf("%s:%d", cfg.Host, port)
	c.DBName = database
	c.Timeout = 10 * time.Second
	c.AllowNativePasswords = true
	c.MultiStatements = false
	// Affected rows count matched rows, so an UPDATE to the same value is not a miss
	c.ClientFoundRows = true
	return c.FormatDSN()
}

func (MySQL) ListDatabases() string {
	return "SHOW DATABASES"
}

func (MySQL) TableStatus(table string) (string, []any) {
	if table == "" {
		return "SHOW TABLE STATUS", nil
	}
	return "SHOW TABLE STATUS WHERE Name LIKE ?", []any{table}
}

func (MySQL) Columns(table string) (string, []any) {
	return `SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_KEY, COLUMN_DEFAULT
		FROM information_schema.COLUMNS
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		ORDER BY ORDINAL_POSITION`, []any{table}
}

func (MySQL) ForeignKeys(table string) (string, []any) {
	return `SELECT COLUMN_NAME, REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		FROM information_schema.KEY_COLUMN_USAGE
		WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?
		AND REFERENCED_TABLE_NAME IS NOT NULL
		ORDER BY ORDINAL_POSITION`, []any{table}
}

func (MySQL) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

// QuoteString uses double quotes, the form users type in filters
func (MySQL) QuoteString(value string) string {
	r := strings.NewReplacer(`\`, `\\`, `"`, `\"`)
	return `"` + r.Replace(value) + `"`
}

func (MySQL) Placeholder(int) string {
	return "?"
}

func (m MySQL) SelectLimited(table, where string, limit int) string {
	q := "SELECT * FROM " + m.QuoteIdent(table)
	if strings.TrimSpace(where) != "" {
		q += " WHERE " + where
	}
	return fmt.Sprintf("%s LIMIT %d", q, limit)
}

func (m MySQL) Match(column, pattern string) string {
	return fmt.Sprintf("%s LIKE %s", m.QuoteIdent(column), m.QuoteString(pattern))
}

func (MySQL) OneRow(_, where string) string {
	return where + " LIMIT 1"
}
