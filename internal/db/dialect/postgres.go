package dialect

import (
	"fmt"
	"strings"

	"github.com/rebeliceyang/lazymy/internal/models"
)

// Postgres is the PostgreSQL dialect, served by the pgx database/sql driver
type Postgres struct{}

func (Postgres) Name() string       { return models.DriverPostgres }
func (Postgres) DriverName() string { return "pgx" }
func (Postgres) DefaultPort() int   { return 5432 }

// DSN builds a key=value connection string. Without a database the
// maintenance database is used, since PostgreSQL always needs one.
func (p Postgres) DSN(cfg models.ConnectionConfig, database string) string {
	port := cfg.Port
	if port == 0 {
		port = p.DefaultPort()
	}
	if database == "" {
		database = "postgres"
	}

	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s dbname=%s sslmode=prefer connect_timeout=10",
		cfg.Host,
		port,
		cfg.User,
		database,
	)
	if cfg.Password != "" {
		r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
		connStr += fmt.Sprintf(" password='%s'", r.Replace(cfg.Password))
	}
	return connStr
}

func (Postgres) ListDatabases() string {
	return `SELECT datname AS "Database"
		FROM pg_catalog.pg_database
		WHERE datistemplate = false
		ORDER BY datname`
}

func (Postgres) TableStatus(table string) (string, []any) {
	q := `SELECT c.relname AS "Name",
			GREATEST(c.reltuples, 0)::bigint AS "Rows",
			pg_catalog.pg_relation_size(c.oid) AS "Data_length",
			pg_catalog.pg_indexes_size(c.oid) AS "Index_length"
		FROM pg_catalog.pg_class c
		JOIN pg_catalog.pg_namespace n ON n.oid = c.relnamespace
		WHERE c.relkind IN ('r', 'p') AND n.nspname = current_schema()`
	if table == "" {
		return q + " ORDER BY c.relname", nil
	}
	return q + " AND c.relname = $1", []any{table}
}

func (Postgres) Columns(table string) (string, []any) {
	return `SELECT c.column_name AS "COLUMN_NAME",
			c.data_type AS "COLUMN_TYPE",
			c.is_nullable AS "IS_NULLABLE",
			CASE WHEN k.column_name IS NOT NULL THEN 'PRI' ELSE '' END AS "COLUMN_KEY",
			c.column_default AS "COLUMN_DEFAULT"
		FROM information_schema.columns c
		LEFT JOIN (
			SELECT kcu.column_name
			FROM information_schema.table_constraints tc
			JOIN information_schema.key_column_usage kcu
				ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
			WHERE tc.constraint_type = 'PRIMARY KEY'
				AND tc.table_schema = current_schema() AND tc.table_name = $1
		) k ON k.column_name = c.column_name
		WHERE c.table_schema = current_schema() AND c.table_name = $1
		ORDER BY c.ordinal_position`, []any{table}
}

func (Postgres) ForeignKeys(table string) (string, []any) {
	return `SELECT kcu.column_name AS "COLUMN_NAME",
			ccu.table_name AS "REFERENCED_TABLE_NAME",
			ccu.column_name AS "REFERENCED_COLUMN_NAME"
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON kcu.constraint_name = tc.constraint_name AND kcu.table_schema = tc.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON ccu.constraint_name = tc.constraint_name AND ccu.table_schema = tc.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
			AND tc.table_schema = current_schema() AND tc.table_name = $1
		ORDER BY kcu.ordinal_position`, []any{table}
}

func (Postgres) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (Postgres) QuoteString(value string) string {
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}

func (Postgres) Placeholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func (p Postgres) SelectLimited(table, where string, limit int) string {
	q := "SELECT * FROM " + p.QuoteIdent(table)
	if strings.TrimSpace(where) != "" {
		q += " WHERE " + where
	}
	return fmt.Sprintf("%s LIMIT %d", q, limit)
}

// Match casts to text so that numeric keys can be compared with LIKE
func (p Postgres) Match(column, pattern string) string {
	return fmt.Sprintf("%s::text LIKE %s", p.QuoteIdent(column), p.QuoteString(pattern))
}

// OneRow picks the physical row id of the first match
func (p Postgres) OneRow(table, where string) string {
	return fmt.Sprintf("ctid = (SELECT ctid FROM %s WHERE %s LIMIT 1)", p.QuoteIdent(table), where)
}
