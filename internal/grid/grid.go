// Package grid implements the editable view over one table and filter.
package grid

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/rebeliceyang/lazymy/internal/db/connection"
	"github.com/rebeliceyang/lazymy/internal/db/metadata"
	"github.com/rebeliceyang/lazymy/internal/models"
)

// RowLimit caps the rows fetched per load
const RowLimit = metadata.RowLimit

// ErrRowChanged is reported when a write matched no row, because the row was
// changed or deleted since it was loaded
var ErrRowChanged = errors.New("row not found, it was changed or deleted since the last load")

// Grid holds the rows of one table fetched through one connection. It is not
// safe for use from several goroutines at once, except for read accessors.
type Grid struct {
	conn   *connection.Conn
	table  string
	memory *FilterMemory
	logger *slog.Logger

	mu       sync.RWMutex
	filter   string
	result   *models.ResultSet
	label    string
	estimate int64
	loads    int

	schemaLoaded bool
	columns      []models.ColumnDetail
	primaryKey   []string
	foreignKeys  []models.ForeignKey
}

// New creates a grid over table, restoring its remembered filter
func New(conn *connection.Conn, table string, memory *FilterMemory, logger *slog.Logger) *Grid {
	if memory == nil {
		memory = NewFilterMemory()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	g := &Grid{
		conn:     conn,
		table:    table,
		memory:   memory,
		logger:   logger,
		estimate: -1,
	}
	if f, ok := memory.Get(g.Key()); ok {
		g.filter = f
	}
	return g
}

// Conn returns the connection the grid reads and writes through
func (g *Grid) Conn() *connection.Conn { return g.conn }

// Table returns the table name
func (g *Grid) Table() string { return g.table }

// Key identifies the grid's table in the filter memory
func (g *Grid) Key() models.FilterKey {
	return models.FilterKey{
		Host:     g.conn.Host(),
		Database: g.conn.Database(),
		Table:    g.table,
	}
}

// Filter returns the current WHERE expression
func (g *Grid) Filter() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.filter
}

// SetFilter replaces the WHERE expression without reloading
func (g *Grid) SetFilter(expr string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.filter = strings.TrimSpace(expr)
}

// ApplyFilter remembers the current filter for the table and reloads
func (g *Grid) ApplyFilter(ctx context.Context) error {
	g.memory.Set(g.Key(), g.Filter())
	return g.Load(ctx)
}

// Label describes the table size, empty when the estimate is unavailable
func (g *Grid) Label() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.label
}

// Estimate returns the approximate row count, -1 when unknown
func (g *Grid) Estimate() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.estimate
}

// Loads returns how many times rows were fetched
func (g *Grid) Loads() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.loads
}

// Result returns the loaded rows, nil before the first load
func (g *Grid) Result() *models.ResultSet {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.result
}

// RowCount returns the number of loaded rows
func (g *Grid) RowCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if g.result == nil {
		return 0
	}
	return len(g.result.Rows)
}

// Columns returns the table columns, known after the first load
func (g *Grid) Columns() []models.ColumnDetail {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.columns
}

// PrimaryKey returns the primary key columns
func (g *Grid) PrimaryKey() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.primaryKey
}

// Cell returns one loaded cell
func (g *Grid) Cell(row, col int) (models.Cell, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if err := g.checkCell(row, col); err != nil {
		return models.Cell{}, err
	}
	return g.result.Rows[row][col], nil
}

func (g *Grid) checkCell(row, col int) error {
	if g.result == nil || row < 0 || row >= len(g.result.Rows) {
		return fmt.Errorf("row %d out of range", row)
	}
	if col < 0 || col >= len(g.result.Columns) {
		return fmt.Errorf("column %d out of range", col)
	}
	return nil
}

// Load fetches up to RowLimit rows and the row estimate concurrently.
// Column metadata is fetched once per grid.
func (g *Grid) Load(ctx context.Context) error {
	if err := g.loadSchema(ctx); err != nil {
		return err
	}

	filter := g.Filter()
	var (
		rows   *models.ResultSet
		status *metadata.TableStatus
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		rs, err := metadata.QueryTableData(egCtx, g.conn, g.table, filter, RowLimit)
		if err != nil {
			return err
		}
		rows = rs
		return nil
	})
	eg.Go(func() error {
		s, err := metadata.GetTableStatus(egCtx, g.conn, g.table)
		if err != nil {
			g.logger.Debug("row estimate unavailable", slog.String("table", g.table), slog.String("error", err.Error()))
			return nil
		}
		status = s
		return nil
	})
	if err := eg.Wait(); err != nil {
		g.logger.Warn("table load failed", slog.String("table", g.table), slog.String("error", err.Error()))
		return err
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.result = rows
	g.loads++
	if status == nil {
		g.estimate = -1
		g.label = ""
	} else {
		g.estimate = status.Rows
		g.label = Label(g.conn.Database(), g.table, status.Rows)
	}

	g.logger.Debug("table loaded",
		slog.String("table", g.table),
		slog.String("filter", filter),
		slog.Int("rows", len(rows.Rows)))
	return nil
}

// Label renders the table size line shown above the grid
func Label(database, table string, estimate int64) string {
	label := fmt.Sprintf("%s.%s: %d rows (approximately)", database, table, estimate)
	if estimate > RowLimit {
		label += fmt.Sprintf(", limited to %d", RowLimit)
	}
	return label
}

func (g *Grid) loadSchema(ctx context.Context) error {
	g.mu.RLock()
	loaded := g.schemaLoaded
	g.mu.RUnlock()
	if loaded {
		return nil
	}

	columns, err := metadata.GetColumnDetails(ctx, g.conn, g.table)
	if err != nil {
		query, _ := g.conn.Dialect().Columns(g.table)
		return models.NewStatementError(query, err)
	}
	keys, err := metadata.GetForeignKeys(ctx, g.conn, g.table)
	if err != nil {
		query, _ := g.conn.Dialect().ForeignKeys(g.table)
		return models.NewStatementError(query, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.columns = columns
	g.primaryKey = metadata.PrimaryKey(columns)
	g.foreignKeys = keys
	g.schemaLoaded = true
	return nil
}

// rowMatch builds a WHERE clause identifying one loaded row by its primary
// key. Without one every column is compared and the dialect limits the write
// to a single row, since duplicates cannot be told apart. Must hold the lock.
func (g *Grid) rowMatch(row int, argStart int) (string, []any) {
	d := g.conn.Dialect()
	keyCols := g.primaryKey
	if len(keyCols) == 0 {
		keyCols = g.result.Columns
	}

	var (
		conds []string
		args  []any
	)
	for _, name := range keyCols {
		cell := g.result.Value(row, name)
		if cell.Null {
			conds = append(conds, d.QuoteIdent(name)+" IS NULL")
			continue
		}
		args = append(args, cell.Value)
		conds = append(conds, fmt.Sprintf("%s = %s", d.QuoteIdent(name), d.Placeholder(argStart+len(args))))
	}
	where := strings.Join(conds, " AND ")
	if len(g.primaryKey) == 0 {
		where = d.OneRow(g.table, where)
	}
	return where, args
}

// checkAffected reports a write that matched no row
func checkAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrRowChanged
	}
	return nil
}

// EditCell writes one cell through to the database. A nil value stores NULL.
// On failure the loaded rows are left unchanged.
func (g *Grid) EditCell(ctx context.Context, row, col int, value *string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := g.checkCell(row, col); err != nil {
		return err
	}

	d := g.conn.Dialect()
	column := g.result.Columns[col]
	var args []any
	if value == nil {
		args = append(args, nil)
	} else {
		args = append(args, *value)
	}
	where, whereArgs := g.rowMatch(row, 1)
	query := fmt.Sprintf("UPDATE %s SET %s = %s WHERE %s",
		d.QuoteIdent(g.table), d.QuoteIdent(column), d.Placeholder(1), where)
	args = append(args, whereArgs...)

	g.logger.Debug("editing cell", slog.String("table", g.table), slog.String("column", column))
	res, err := g.conn.DB().ExecContext(ctx, query, args...)
	if err == nil {
		err = checkAffected(res)
	}
	if err != nil {
		g.logger.Warn("cell edit failed", slog.String("table", g.table), slog.String("error", err.Error()))
		return models.NewStatementError(query, err)
	}

	g.result.Rows[row][col] = models.CellOf(value)
	return nil
}

// SetNull stores NULL in one cell
func (g *Grid) SetNull(ctx context.Context, row, col int) error {
	return g.EditCell(ctx, row, col, nil)
}

// DeleteRows deletes the given loaded rows in one transaction. Either every
// row is deleted and removed locally, or nothing changes.
func (g *Grid) DeleteRows(ctx context.Context, rows []int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(rows) == 0 {
		return nil
	}
	unique := make(map[int]bool, len(rows))
	ordered := make([]int, 0, len(rows))
	for _, r := range rows {
		if err := g.checkCell(r, 0); err != nil {
			return err
		}
		if !unique[r] {
			unique[r] = true
			ordered = append(ordered, r)
		}
	}
	sort.Ints(ordered)

	tx, err := g.conn.DB().BeginTx(ctx, nil)
	if err != nil {
		return models.NewStatementError("BEGIN", err)
	}

	d := g.conn.Dialect()
	for _, r := range ordered {
		where, args := g.rowMatch(r, 0)
		query := fmt.Sprintf("DELETE FROM %s WHERE %s", d.QuoteIdent(g.table), where)
		res, err := tx.ExecContext(ctx, query, args...)
		if err == nil {
			err = checkAffected(res)
		}
		if err != nil {
			_ = tx.Rollback()
			g.logger.Warn("row delete failed", slog.String("table", g.table), slog.String("error", err.Error()))
			return models.NewStatementError(query, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return models.NewStatementError("COMMIT", err)
	}

	for i := len(ordered) - 1; i >= 0; i-- {
		r := ordered[i]
		g.result.Rows = append(g.result.Rows[:r], g.result.Rows[r+1:]...)
	}

	g.logger.Info("rows deleted", slog.String("table", g.table), slog.Int("count", len(ordered)))
	return nil
}

// ResolveForeignKey returns the foreign key declared on column
func (g *Grid) ResolveForeignKey(column string) (models.ForeignKey, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return metadata.ForeignKeyFor(g.foreignKeys, column)
}

// ForeignKeyFilter returns the filter selecting the row referenced by value
func (g *Grid) ForeignKeyFilter(fk models.ForeignKey, value string) string {
	return g.conn.Dialect().Match(fk.TargetColumn, value)
}

// ForeignKeyTarget resolves a loaded cell to the referenced table and the
// filter selecting the referenced row
func (g *Grid) ForeignKeyTarget(row, col int) (table, where string, ok bool) {
	cell, err := g.Cell(row, col)
	if err != nil || cell.Null {
		return "", "", false
	}
	g.mu.RLock()
	column := g.result.Columns[col]
	g.mu.RUnlock()

	fk, ok := g.ResolveForeignKey(column)
	if !ok {
		return "", "", false
	}
	return fk.TargetTable, g.ForeignKeyFilter(fk, cell.Value), true
}

// QuickFilter builds a LIKE filter on column: a substring match when
// contains is set, a whole value match otherwise
func (g *Grid) QuickFilter(column, text string, contains bool) string {
	if contains {
		text = "%" + text + "%"
	}
	return g.conn.Dialect().Match(column, text)
}

// SingleCellActions reports whether copy, paste and set-NULL apply to the selection
func SingleCellActions(selected int) bool {
	return selected == 1
}
