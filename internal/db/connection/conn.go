package connection

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	// Register the database/sql drivers used by the dialects
	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/rebeliceyang/lazymy/internal/db/dialect"
	"github.com/rebeliceyang/lazymy/internal/models"
)

// Queryer is satisfied by *sql.DB, *sql.Conn and *sql.Tx
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Opener opens and verifies a database handle
type Opener func(ctx context.Context, driverName, dsn string) (*sql.DB, error)

// NewOpener returns an Opener backed by sql.Open with the given pool size
func NewOpener(poolSize int) Opener {
	if poolSize <= 0 {
		poolSize = 2
	}
	return func(ctx context.Context, driverName, dsn string) (*sql.DB, error) {
		db, err := sql.Open(driverName, dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open connection: %w", err)
		}

		db.SetMaxOpenConns(poolSize)
		db.SetMaxIdleConns(poolSize)
		db.SetConnMaxLifetime(time.Hour)
		db.SetConnMaxIdleTime(30 * time.Minute)

		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return db, nil
	}
}

// Conn is one open connection to a server, optionally bound to a database
type Conn struct {
	db       *sql.DB
	config   models.ConnectionConfig
	database string
	dialect  dialect.Dialect
	opener   Opener
	openedAt time.Time
	closed   atomic.Bool
}

// Dial opens a connection for cfg and database
func Dial(ctx context.Context, opener Opener, cfg models.ConnectionConfig, database string) (*Conn, error) {
	d, err := dialect.For(cfg)
	if err != nil {
		return nil, err
	}

	db, err := opener(ctx, d.DriverName(), d.DSN(cfg, database))
	if err != nil {
		return nil, err
	}

	return &Conn{
		db:       db,
		config:   cfg,
		database: database,
		dialect:  d,
		opener:   opener,
		openedAt: time.Now(),
	}, nil
}

// Clone opens a new connection with identical credentials and database
func (c *Conn) Clone(ctx context.Context) (*Conn, error) {
	return Dial(ctx, c.opener, c.config, c.database)
}

// Config returns the session config the connection was opened with
func (c *Conn) Config() models.ConnectionConfig { return c.config }

// Database returns the bound database, empty for a server-level connection
func (c *Conn) Database() string { return c.database }

// Host returns the server hostname
func (c *Conn) Host() string { return c.config.Host }

// Dialect returns the SQL dialect of the server
func (c *Conn) Dialect() dialect.Dialect { return c.dialect }

// DB returns the underlying handle
func (c *Conn) DB() *sql.DB { return c.db }

// OpenedAt returns when the connection was established
func (c *Conn) OpenedAt() time.Time { return c.openedAt }

// IsOpen reports whether Close has not been called
func (c *Conn) IsOpen() bool {
	return c != nil && c.db != nil && !c.closed.Load()
}

// Ping tests the connection
func (c *Conn) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the connection; closing twice is a no-op
func (c *Conn) Close() error {
	if c == nil || c.db == nil || c.closed.Swap(true) {
		return nil
	}
	return c.db.Close()
}

// Query executes a query and returns its columns and rows in order
func (c *Conn) Query(ctx context.Context, query string, args ...any) (*models.ResultSet, error) {
	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	return ScanResultSet(rows)
}

// Exec executes a statement without returning rows (INSERT, UPDATE, DELETE, ...)
func (c *Conn) Exec(ctx context.Context, query string, args ...any) (int64, error) {
	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return n, nil
}

// ScanResultSet reads every row of rows as text cells
func ScanResultSet(rows *sql.Rows) (*models.ResultSet, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	rs := &models.ResultSet{Columns: columns, Rows: [][]models.Cell{}}
	values := make([]sql.NullString, len(columns))
	dest := make([]any, len(columns))
	for i := range values {
		dest[i] = &values[i]
	}

	for rows.Next() {
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		row := make([]models.Cell, len(columns))
		for i, v := range values {
			if v.Valid {
				row[i] = models.Cell{Value: v.String}
			} else {
				row[i] = models.NullCell
			}
		}
		rs.Rows = append(rs.Rows, row)
	}

	return rs, rows.Err()
}
