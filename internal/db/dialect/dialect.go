// Package dialect holds the SQL that differs between supported servers.
package dialect

import (
	"fmt"

	"github.com/rebeliceyang/lazymy/internal/models"
)

// Dialect describes the statements and quoting rules of one server family.
// Table status queries must return at least the Name, Rows, Data_length and
// Index_length columns.
type Dialect interface {
	Name() string
	DriverName() string
	DefaultPort() int
	DSN(cfg models.ConnectionConfig, database string) string

	ListDatabases() string
	TableStatus(table string) (string, []any)
	Columns(table string) (string, []any)
	ForeignKeys(table string) (string, []any)

	QuoteIdent(name string) string
	QuoteString(value string) string
	Placeholder(n int) string
	SelectLimited(table, where string, limit int) string
	// Match builds a filter fragment comparing column to a LIKE pattern
	Match(column, pattern string) string
	// OneRow narrows the WHERE clause of an UPDATE or DELETE on table so that
	// at most one of several identical rows is written
	OneRow(table, where string) string
}

var dialects = map[string]Dialect{
	models.DriverMySQL:    MySQL{},
	models.DriverPostgres: Postgres{},
}

// Get returns the dialect registered for driver
func Get(driver string) (Dialect, error) {
	if driver == "" {
		driver = models.DriverMySQL
	}
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported driver %q", driver)
	}
	return d, nil
}

// For returns the dialect of a session config
func For(cfg models.ConnectionConfig) (Dialect, error) {
	return Get(cfg.DriverName())
}
