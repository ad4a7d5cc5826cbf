package dialect

import (
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebeliceyang/lazymy/internal/models"
)

func TestGet(t *testing.T) {
	tests := []struct {
		driver    string
		expected  string
		expectErr bool
	}{
		{driver: "", expected: models.DriverMySQL},
		{driver: models.DriverMySQL, expected: models.DriverMySQL},
		{driver: models.DriverPostgres, expected: models.DriverPostgres},
		{driver: "oracle", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.driver, func(t *testing.T) {
			d, err := Get(tt.driver)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, d.Name())
		})
	}
}

func TestMySQL_DSN(t *testing.T) {
	cfg := models.ConnectionConfig{Host: "db.local", Port: 3307, User: "app", Password: "s3cret"}

	dsn := MySQL{}.DSN(cfg, "shop")

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "app", parsed.User)
	assert.Equal(t, "s3cret", parsed.Passwd)
	assert.Equal(t, "db.local:3307", parsed.Addr)
	assert.Equal(t, "shop", parsed.DBName)
	assert.True(t, parsed.ClientFoundRows)
}

func TestMySQL_DSN_DefaultPort(t *testing.T) {
	dsn := MySQL{}.DSN(models.ConnectionConfig{Host: "localhost", User: "root"}, "")

	parsed, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "localhost:3306", parsed.Addr)
	assert.Empty(t, parsed.DBName)
}

func TestMySQL_Metadata(t *testing.T) {
	d := MySQL{}

	assert.Equal(t, "SHOW DATABASES", d.ListDatabases())

	q, args := d.TableStatus("")
	assert.Equal(t, "SHOW TABLE STATUS", q)
	assert.Empty(t, args)

	q, args = d.TableStatus("orders")
	assert.Equal(t, "SHOW TABLE STATUS WHERE Name LIKE ?", q)
	assert.Equal(t, []any{"orders"}, args)

	q, args = d.ForeignKeys("orders")
	assert.Contains(t, q, "REFERENCED_TABLE_NAME IS NOT NULL")
	assert.Equal(t, []any{"orders"}, args)
}

func TestMySQL_Quoting(t *testing.T) {
	d := MySQL{}

	assert.Equal(t, "`id`", d.QuoteIdent("id"))
	assert.Equal(t, "`we``ird`", d.QuoteIdent("we`ird"))
	assert.Equal(t, `"42"`, d.QuoteString("42"))
	assert.Equal(t, `"say \"hi\""`, d.QuoteString(`say "hi"`))
	assert.Equal(t, "`id` LIKE \"42\"", d.Match("id", "42"))
}

func TestMySQL_SelectLimited(t *testing.T) {
	d := MySQL{}

	assert.Equal(t, "SELECT * FROM `users` LIMIT 1000", d.SelectLimited("users", "", 1000))
	assert.Equal(t, "SELECT * FROM `users` WHERE id > 5 LIMIT 1000", d.SelectLimited("users", "id > 5", 1000))
	assert.Equal(t, "SELECT * FROM `users` LIMIT 10", d.SelectLimited("users", "   ", 10))
}

func TestPostgres_DSN(t *testing.T) {
	d := Postgres{}

	dsn := d.DSN(models.ConnectionConfig{Host: "pg", User: "me", Password: "pw"}, "")
	assert.Contains(t, dsn, "host=pg")
	assert.Contains(t, dsn, "port=5432")
	assert.Contains(t, dsn, "dbname=postgres")
	assert.Contains(t, dsn, "password='pw'")

	dsn = d.DSN(models.ConnectionConfig{Host: "pg", Port: 6543, User: "me"}, "shop")
	assert.Contains(t, dsn, "dbname=shop")
	assert.False(t, strings.Contains(dsn, "password"))
}

func TestPostgres_Quoting(t *testing.T) {
	d := Postgres{}

	assert.Equal(t, `"id"`, d.QuoteIdent("id"))
	assert.Equal(t, `'it''s'`, d.QuoteString("it's"))
	assert.Equal(t, `"id"::text LIKE '42'`, d.Match("id", "42"))
	assert.Equal(t, "$3", d.Placeholder(3))

	q, args := d.TableStatus("orders")
	assert.Contains(t, q, `AS "Data_length"`)
	assert.Equal(t, []any{"orders"}, args)
}

func TestOneRow(t *testing.T) {
	assert.Equal(t, "`level` = ? LIMIT 1", MySQL{}.OneRow("log", "`level` = ?"))
	assert.Equal(t,
		`ctid = (SELECT ctid FROM "log" WHERE "level" = $2 LIMIT 1)`,
		Postgres{}.OneRow("log", `"level" = $2`))
}
