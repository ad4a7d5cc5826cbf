// Package navigation maps catalog selections to the set of open, pinned and
// focused views, loading table rows only when their view is visible.
package navigation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/rebeliceyang/lazymy/internal/catalog"
	"github.com/rebeliceyang/lazymy/internal/db/connection"
	"github.com/rebeliceyang/lazymy/internal/db/metadata"
	"github.com/rebeliceyang/lazymy/internal/db/query"
	"github.com/rebeliceyang/lazymy/internal/grid"
	"github.com/rebeliceyang/lazymy/internal/models"
)

var (
	// ErrViewPinned is returned when closing a view the user may not close
	ErrViewPinned = errors.New("view is pinned")
	// ErrViewNotFound is returned for an unknown view ID
	ErrViewNotFound = errors.New("view not found")
)

type location struct {
	serverUUID string
	database   string
}

// Controller is driven from the interactive goroutine only
type Controller struct {
	catalog *catalog.Catalog
	manager *connection.Manager
	worker  *query.Worker
	memory  *grid.FilterMemory
	logger  *slog.Logger

	views    []*View
	focused  ViewID
	nextID   ViewID
	selected models.NodeID

	// displayed is what the Database view and pinned table views show
	displayed location
	events    chan Event
}

// New creates a controller with the Host view and one Query view, both pinned
func New(cat *catalog.Catalog, manager *connection.Manager, worker *query.Worker, memory *grid.FilterMemory, logger *slog.Logger) *Controller {
	if memory == nil {
		memory = grid.NewFilterMemory()
	}
	if worker == nil {
		worker = query.NewWorker(nil, logger)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	c := &Controller{
		catalog:  cat,
		manager:  manager,
		worker:   worker,
		memory:   memory,
		logger:   logger,
		selected: models.NoNode,
		events:   make(chan Event, eventBuffer),
	}

	host := c.newView(ViewHost, "Host", true)
	queryView := c.newView(ViewQuery, "Query", true)
	queryView.Console = query.NewConsole(worker)
	c.views = []*View{host, queryView}
	c.focused = host.ID
	return c
}

// Events delivers state change notifications
func (c *Controller) Events() <-chan Event {
	return c.events
}

// FilterMemory returns the per-table filter memory
func (c *Controller) FilterMemory() *grid.FilterMemory {
	return c.memory
}

// Views returns the open views in tab order
func (c *Controller) Views() []*View {
	return append([]*View(nil), c.views...)
}

// View returns an open view by ID
func (c *Controller) View(id ViewID) (*View, bool) {
	_, v := c.find(id)
	return v, v != nil
}

// Focused returns the focused view
func (c *Controller) Focused() *View {
	_, v := c.find(c.focused)
	return v
}

// Selected returns the selected catalog node
func (c *Controller) Selected() models.NodeID {
	return c.selected
}

func (c *Controller) newView(kind ViewKind, title string, pinned bool) *View {
	c.nextID++
	return &View{ID: c.nextID, Kind: kind, Title: title, Pinned: pinned}
}

func (c *Controller) find(id ViewID) (int, *View) {
	for i, v := range c.views {
		if v.ID == id {
			return i, v
		}
	}
	return -1, nil
}

// pinnedOf returns the pinned view of kind, if open
func (c *Controller) pinnedOf(kind ViewKind) *View {
	for _, v := range c.views {
		if v.Kind == kind && v.Pinned {
			return v
		}
	}
	return nil
}

func (c *Controller) insert(pos int, v *View) {
	if pos > len(c.views) {
		pos = len(c.views)
	}
	c.views = append(c.views, nil)
	copy(c.views[pos+1:], c.views[pos:])
	c.views[pos] = v
	c.emit(EventViewOpened, v.ID)
}

func (c *Controller) remove(v *View) {
	i, _ := c.find(v.ID)
	if i < 0 {
		return
	}
	c.views = append(c.views[:i], c.views[i+1:]...)
	if v.owned != nil {
		_ = v.owned.Close()
	}
	if c.focused == v.ID && len(c.views) > 0 {
		if i > 0 {
			i--
		}
		c.focused = c.views[i].ID
		c.emit(EventFocusChanged, c.focused)
	}
	c.emit(EventViewClosed, v.ID)
}

func (c *Controller) focus(v *View) {
	if c.focused == v.ID {
		return
	}
	c.focused = v.ID
	c.emit(EventFocusChanged, v.ID)
}

// closePinned closes the pinned views of the given kinds
func (c *Controller) closePinned(kinds ...ViewKind) {
	for _, kind := range kinds {
		if v := c.pinnedOf(kind); v != nil {
			c.remove(v)
		}
	}
}

// primary returns the pinned Host or Database view at position 0, replacing
// it with a view of kind when it differs. The bool reports a replacement.
func (c *Controller) primary(kind ViewKind) (*View, bool) {
	if len(c.views) > 0 && c.views[0].Pinned && c.views[0].Kind == kind {
		return c.views[0], false
	}
	if len(c.views) > 0 && c.views[0].Pinned && (c.views[0].Kind == ViewHost || c.views[0].Kind == ViewDatabase) {
		old := c.views[0]
		c.views = c.views[1:]
		if c.focused == old.ID {
			c.focused = 0
		}
		c.emit(EventViewClosed, old.ID)
	}
	title := "Host"
	if kind == ViewDatabase {
		title = "Database"
	}
	v := c.newView(kind, title, true)
	c.insert(0, v)
	return v, true
}

// Select applies a catalog selection. Connection failures leave every view
// untouched and are returned as *models.ConnectionError.
func (c *Controller) Select(ctx context.Context, id models.NodeID) error {
	node, err := c.catalog.Node(id)
	if err != nil {
		return err
	}

	switch node.Kind {
	case models.NodeServer:
		return c.selectServer(ctx, node)
	case models.NodeDatabase:
		return c.selectDatabase(ctx, node)
	case models.NodeTable:
		return c.selectTable(ctx, node)
	default:
		return &models.NotFoundError{Kind: node.Kind.String(), Name: node.Name}
	}
}

func (c *Controller) selectServer(ctx context.Context, node models.CatalogNode) error {
	cfg := *node.Config
	if err := c.manager.Open(ctx, cfg); err != nil {
		return err
	}

	c.selected = node.ID
	c.closePinned(ViewTableData, ViewTableInfo, ViewDatabase)
	host, _ := c.primary(ViewHost)
	c.focus(host)
	c.displayed = location{serverUUID: cfg.UUID}

	return c.reloadHost(ctx, node.ID, host)
}

func (c *Controller) reloadHost(ctx context.Context, serverID models.NodeID, host *View) error {
	if err := c.catalog.Refresh(ctx, serverID); err != nil {
		return err
	}
	cfg, err := c.catalog.ServerConfig(serverID)
	if err != nil {
		return err
	}

	host.Title = "Host: " + cfg.Name
	host.Entries = c.entries(serverID)
	c.emit(EventHostReloaded, host.ID)
	return nil
}

func (c *Controller) entries(parent models.NodeID) []Entry {
	children, err := c.catalog.Children(parent)
	if err != nil {
		return nil
	}
	entries := make([]Entry, 0, len(children))
	for _, id := range children {
		n, err := c.catalog.Node(id)
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Name: n.Name, SizeLabel: n.SizeLabel})
	}
	return entries
}

// openDatabase points the live connection at the database owning node
func (c *Controller) openDatabase(ctx context.Context, dbID models.NodeID) (models.ConnectionConfig, string, error) {
	dbNode, err := c.catalog.Node(dbID)
	if err != nil {
		return models.ConnectionConfig{}, "", err
	}
	cfg, err := c.catalog.ServerConfig(dbID)
	if err != nil {
		return models.ConnectionConfig{}, "", err
	}
	if err := c.manager.OpenDatabase(ctx, cfg, dbNode.Name); err != nil {
		return models.ConnectionConfig{}, "", err
	}
	return cfg, dbNode.Name, nil
}

func (c *Controller) selectDatabase(ctx context.Context, node models.CatalogNode) error {
	cfg, name, err := c.openDatabase(ctx, node.ID)
	if err != nil {
		return err
	}

	c.selected = node.ID
	dbView, opened := c.primary(ViewDatabase)
	c.closePinned(ViewTableData, ViewTableInfo)
	c.focus(dbView)

	next := location{serverUUID: cfg.UUID, database: name}
	changed := opened || c.displayed != next
	c.displayed = next
	if !changed {
		return nil
	}
	return c.refreshDatabase(ctx, node.ID, dbView)
}

func (c *Controller) refreshDatabase(ctx context.Context, dbID models.NodeID, dbView *View) error {
	dbNode, err := c.catalog.Node(dbID)
	if err != nil {
		return err
	}
	dbView.Database = dbNode.Name
	dbView.Title = "Database: " + dbNode.Name

	err = c.catalog.Expand(ctx, dbID)
	dbView.Entries = c.entries(dbID)
	c.emit(EventDatabaseChanged, dbView.ID)
	return err
}

func (c *Controller) selectTable(ctx context.Context, node models.CatalogNode) error {
	dbID, err := c.catalog.DatabaseOf(node.ID)
	if err != nil {
		return err
	}
	cfg, database, err := c.openDatabase(ctx, dbID)
	if err != nil {
		return err
	}
	conn, err := c.manager.Current()
	if err != nil {
		return models.NewConnectionError(err)
	}

	c.selected = node.ID
	dbView, opened := c.primary(ViewDatabase)
	next := location{serverUUID: cfg.UUID, database: database}
	changed := opened || c.displayed != next
	c.displayed = next

	info := c.pinnedOf(ViewTableInfo)
	data := c.pinnedOf(ViewTableData)
	if data == nil {
		if info != nil {
			c.remove(info)
		}
		info = c.newView(ViewTableInfo, "", true)
		data = c.newView(ViewTableData, "Data", true)
		c.insert(1, info)
		c.insert(2, data)
		c.focus(data)
	}
	if c.Focused() == nil {
		c.focus(dbView)
	}

	info.Table = node.Name
	info.Title = "Table: " + node.Name
	data.Table = node.Name
	data.Grid = grid.New(conn, node.Name, c.memory, c.logger)
	data.dirty = true

	var errs []error
	if err := c.loadTableInfo(ctx, conn, info); err != nil {
		errs = append(errs, err)
	}
	if changed {
		if err := c.refreshDatabase(ctx, dbID, dbView); err != nil {
			errs = append(errs, err)
		}
	}
	if c.focused == data.ID {
		if err := c.load(ctx, data); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (c *Controller) loadTableInfo(ctx context.Context, conn *connection.Conn, info *View) error {
	columns, err := metadata.GetColumnDetails(ctx, conn, info.Table)
	if err != nil {
		q, _ := conn.Dialect().Columns(info.Table)
		return models.NewStatementError(q, err)
	}
	keys, err := metadata.GetForeignKeys(ctx, conn, info.Table)
	if err != nil {
		q, _ := conn.Dialect().ForeignKeys(info.Table)
		return models.NewStatementError(q, err)
	}
	info.Columns = columns
	info.ForeignKeys = keys
	return nil
}

// load fetches the rows of a TableData view; a failed attempt still counts
// as the load for the current table
func (c *Controller) load(ctx context.Context, v *View) error {
	v.dirty = false
	if err := v.Grid.Load(ctx); err != nil {
		return err
	}
	c.emit(EventRowsLoaded, v.ID)
	return nil
}

// Activate focuses a view. A TableData view whose table changed since its
// last load is loaded now, exactly once.
func (c *Controller) Activate(ctx context.Context, id ViewID) error {
	_, v := c.find(id)
	if v == nil {
		return ErrViewNotFound
	}
	c.focus(v)
	if v.NeedsLoad() {
		return c.load(ctx, v)
	}
	return nil
}

// Reload reloads the rows of a TableData view
func (c *Controller) Reload(ctx context.Context, id ViewID) error {
	_, v := c.find(id)
	if v == nil || v.Kind != ViewTableData || v.Grid == nil {
		return ErrViewNotFound
	}
	return c.load(ctx, v)
}

// OpenInNewTab opens a closable TableData view for the table on a cloned
// connection, independent of the pinned table view
func (c *Controller) OpenInNewTab(ctx context.Context, tableID models.NodeID) error {
	node, err := c.catalog.Node(tableID)
	if err != nil {
		return err
	}
	if node.Kind != models.NodeTable {
		return &models.NotFoundError{Kind: models.NodeTable.String(), Name: node.Name}
	}
	dbID, err := c.catalog.DatabaseOf(tableID)
	if err != nil {
		return err
	}
	if _, _, err := c.openDatabase(ctx, dbID); err != nil {
		return err
	}
	if err := c.HandleCatalogChange(ctx); err != nil {
		c.logger.Warn("database refresh failed", slog.String("error", err.Error()))
	}

	clone, err := c.manager.Clone(ctx)
	if err != nil {
		return err
	}

	v := c.newView(ViewTableData, fmt.Sprintf("%s.%s", clone.Database(), node.Name), false)
	v.Table = node.Name
	v.Grid = grid.New(clone, node.Name, c.memory, c.logger)
	v.owned = clone
	c.insert(len(c.views), v)
	c.focus(v)
	return c.load(ctx, v)
}

// FollowForeignKey opens a closable TableData view of table filtered by where,
// on exactly the given connection
func (c *Controller) FollowForeignKey(ctx context.Context, conn *connection.Conn, table, where string) error {
	if !conn.IsOpen() {
		return models.NewConnectionError(connection.ErrNotConnected)
	}

	v := c.newView(ViewTableData, fmt.Sprintf("%s.%s", conn.Database(), table), false)
	v.Table = table
	v.Grid = grid.New(conn, table, c.memory, c.logger)
	v.Grid.SetFilter(where)
	c.insert(len(c.views), v)
	c.focus(v)
	return c.load(ctx, v)
}

// AddQueryView opens and focuses a closable Query view
func (c *Controller) AddQueryView() *View {
	v := c.newView(ViewQuery, "Query", false)
	v.Console = query.NewConsole(c.worker)
	c.insert(len(c.views), v)
	c.focus(v)
	return v
}

// RunQuery submits the text of a Query view against the live connection
func (c *Controller) RunQuery(ctx context.Context, id ViewID) (*query.Batch, error) {
	_, v := c.find(id)
	if v == nil || v.Kind != ViewQuery {
		return nil, ErrViewNotFound
	}
	conn, err := c.manager.Current()
	if err != nil {
		return nil, models.NewConnectionError(err)
	}
	v.Console.SetConn(conn)
	return v.Console.Run(ctx)
}

// Close closes a view the user may close
func (c *Controller) Close(id ViewID) error {
	_, v := c.find(id)
	if v == nil {
		return ErrViewNotFound
	}
	if v.Pinned {
		return ErrViewPinned
	}
	if v.Console != nil {
		v.Console.Stop()
	}
	c.remove(v)
	return nil
}

// CloseFocused closes the focused view
func (c *Controller) CloseFocused() error {
	return c.Close(c.focused)
}

// HandleCatalogChange follows a database switch made by a catalog expansion:
// table views are closed and the Database view shows the live database.
func (c *Controller) HandleCatalogChange(ctx context.Context) error {
	live := location{serverUUID: c.manager.ServerUUID(), database: c.manager.DatabaseName()}
	if live.database == "" || live == c.displayed {
		return nil
	}

	dbID, ok := c.catalog.Find(live.serverUUID, live.database, "")
	if !ok {
		return &models.NotFoundError{Kind: models.NodeDatabase.String(), Name: live.database}
	}

	c.logger.Debug("live database changed", slog.String("database", live.database))
	c.closePinned(ViewTableData, ViewTableInfo)
	dbView, _ := c.primary(ViewDatabase)
	c.focus(dbView)
	c.displayed = live
	c.selected = dbID
	return c.refreshDatabase(ctx, dbID, dbView)
}

// ShowDatabase selects a database listed in the Host view
func (c *Controller) ShowDatabase(ctx context.Context, name string) error {
	c.catalog.SetFilter(models.NodeDatabase, "")

	serverID, err := c.catalog.ServerOf(c.selected)
	if err != nil {
		return err
	}
	cfg, err := c.catalog.ServerConfig(serverID)
	if err != nil {
		return err
	}
	dbID, ok := c.catalog.Find(cfg.UUID, name, "")
	if !ok {
		return &models.NotFoundError{Kind: models.NodeDatabase.String(), Name: name}
	}
	if err := c.Select(ctx, dbID); err != nil {
		return err
	}
	if v := c.pinnedOf(ViewDatabase); v != nil {
		c.focus(v)
	}
	return nil
}

// ShowTable selects a table listed in the Database view and focuses its rows
func (c *Controller) ShowTable(ctx context.Context, name string) error {
	c.catalog.SetFilter(models.NodeTable, "")

	dbID, err := c.catalog.DatabaseOf(c.selected)
	if err != nil {
		return err
	}
	if err := c.catalog.Expand(ctx, dbID); err != nil {
		return err
	}
	dbNode, err := c.catalog.Node(dbID)
	if err != nil {
		return err
	}
	cfg, err := c.catalog.ServerConfig(dbID)
	if err != nil {
		return err
	}
	tableID, ok := c.catalog.Find(cfg.UUID, dbNode.Name, name)
	if !ok {
		return &models.NotFoundError{Kind: models.NodeTable.String(), Name: name}
	}
	if err := c.Select(ctx, tableID); err != nil {
		return err
	}
	if v := c.pinnedOf(ViewTableData); v != nil {
		return c.Activate(ctx, v.ID)
	}
	return nil
}

// Shutdown stops running batches and closes connections owned by views
func (c *Controller) Shutdown() {
	for _, v := range c.views {
		if v.Console != nil {
			v.Console.Stop()
		}
		if v.owned != nil {
			_ = v.owned.Close()
		}
	}
}
