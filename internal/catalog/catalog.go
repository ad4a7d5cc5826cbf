// Package catalog holds the lazily populated tree of servers, databases and
// tables shown in the explorer.
package catalog

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/rebeliceyang/lazymy/internal/db/connection"
	"github.com/rebeliceyang/lazymy/internal/db/metadata"
	"github.com/rebeliceyang/lazymy/internal/models"
)

// RootID is the invisible root node
const RootID models.NodeID = 0

// Catalog is an arena of nodes. Node IDs stay valid for the catalog's
// lifetime; removed nodes are tombstoned, never reused.
type Catalog struct {
	mu      sync.RWMutex
	nodes   []models.CatalogNode
	filters map[models.NodeKind]string

	manager    *connection.Manager
	changes    chan struct{}
	generation atomic.Uint64
	logger     *slog.Logger
}

// New creates an empty catalog backed by the connection manager
func New(manager *connection.Manager, logger *slog.Logger) *Catalog {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Catalog{
		nodes: []models.CatalogNode{{
			ID:     RootID,
			Kind:   models.NodeRoot,
			Parent: models.NoNode,
			Loaded: true,
		}},
		filters: make(map[models.NodeKind]string),
		manager: manager,
		changes: make(chan struct{}, 1),
		logger:  logger,
	}
}

// Changes signals that some subtree was (re)loaded. Consumers re-read what they display.
func (c *Catalog) Changes() <-chan struct{} {
	return c.changes
}

// Generation increases with every change notification
func (c *Catalog) Generation() uint64 {
	return c.generation.Load()
}

func (c *Catalog) notify() {
	c.generation.Add(1)
	select {
	case c.changes <- struct{}{}:
	default:
	}
}

// Node returns a copy of the node
func (c *Catalog) Node(id models.NodeID) (models.CatalogNode, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, err := c.lookup(id)
	if err != nil {
		return models.CatalogNode{}, err
	}
	out := *n
	out.Children = append([]models.NodeID(nil), n.Children...)
	return out, nil
}

// lookup must be called with the lock held
func (c *Catalog) lookup(id models.NodeID) (*models.CatalogNode, error) {
	if id < 0 || int(id) >= len(c.nodes) || c.nodes[id].Removed {
		return nil, &models.NotFoundError{Kind: "node", Name: fmt.Sprintf("#%d", id)}
	}
	return &c.nodes[id], nil
}

func (c *Catalog) add(kind models.NodeKind, name string, parent models.NodeID) models.NodeID {
	id := models.NodeID(len(c.nodes))
	c.nodes = append(c.nodes, models.CatalogNode{
		ID:     id,
		Kind:   kind,
		Name:   name,
		Parent: parent,
	})
	c.nodes[parent].Children = append(c.nodes[parent].Children, id)
	return id
}

// Servers returns the server nodes in insertion order
func (c *Catalog) Servers() []models.NodeID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]models.NodeID(nil), c.nodes[RootID].Children...)
}

// Children returns the children of a node
func (c *Catalog) Children(id models.NodeID) ([]models.NodeID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, err := c.lookup(id)
	if err != nil {
		return nil, err
	}
	return append([]models.NodeID(nil), n.Children...), nil
}

// AddServer adds a server node and lists its databases. A server whose UUID is
// already present is returned as is. Open failures are dropped: the caller's
// own connection attempt reports them.
func (c *Catalog) AddServer(ctx context.Context, cfg models.ConnectionConfig) (models.NodeID, bool) {
	if id, ok := c.findServer(cfg.UUID); ok {
		return id, false
	}

	if err := c.manager.Open(ctx, cfg); err != nil {
		c.logger.Debug("server not added", slog.String("server", cfg.String()), slog.String("error", err.Error()))
		return models.NoNode, false
	}

	var databases []string
	if conn, err := c.manager.Current(); err == nil {
		databases, err = metadata.ListDatabases(ctx, conn)
		if err != nil {
			c.logger.Warn("failed to list databases", slog.String("server", cfg.String()), slog.String("error", err.Error()))
		}
	}

	c.mu.Lock()
	if id, ok := c.findServerLocked(cfg.UUID); ok {
		c.mu.Unlock()
		return id, false
	}
	stored := cfg
	id := c.add(models.NodeServer, cfg.Name, RootID)
	c.nodes[id].Config = &stored
	c.nodes[id].Loaded = databases != nil
	for _, name := range databases {
		c.add(models.NodeDatabase, name, id)
	}
	c.mu.Unlock()

	c.logger.Info("server added", slog.String("server", cfg.String()), slog.Int("databases", len(databases)))
	c.notify()
	return id, true
}

// RemoveServer drops a server and its subtree, closing the live connection
// if it points at that server
func (c *Catalog) RemoveServer(uuid string) error {
	c.mu.Lock()
	id, ok := c.findServerLocked(uuid)
	if !ok {
		c.mu.Unlock()
		return &models.NotFoundError{Kind: "server", Name: uuid}
	}
	c.tombstone(id)
	root := &c.nodes[RootID]
	for i, child := range root.Children {
		if child == id {
			root.Children = append(root.Children[:i:i], root.Children[i+1:]...)
			break
		}
	}
	c.mu.Unlock()

	if c.manager.ServerUUID() == uuid {
		_ = c.manager.Close()
	}
	c.notify()
	return nil
}

func (c *Catalog) tombstone(id models.NodeID) {
	n := &c.nodes[id]
	n.Removed = true
	for _, child := range n.Children {
		c.tombstone(child)
	}
}

// CanExpand reports whether Expand may fetch children for the node
func (c *Catalog) CanExpand(id models.NodeID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, err := c.lookup(id)
	if err != nil {
		return false
	}
	switch n.Kind {
	case models.NodeServer:
		return true
	case models.NodeDatabase:
		return !n.Loaded
	default:
		return false
	}
}

// Expand fetches the children of a server or database node once. Expanding a
// database points the live connection at it.
func (c *Catalog) Expand(ctx context.Context, id models.NodeID) error {
	c.mu.RLock()
	n, err := c.lookup(id)
	if err != nil {
		c.mu.RUnlock()
		return err
	}
	kind, name, loaded := n.Kind, n.Name, n.Loaded
	c.mu.RUnlock()

	switch kind {
	case models.NodeServer:
		if loaded {
			return nil
		}
		return c.Refresh(ctx, id)
	case models.NodeDatabase:
		if loaded {
			return nil
		}
		return c.expandDatabase(ctx, id, name)
	default:
		return nil
	}
}

func (c *Catalog) expandDatabase(ctx context.Context, id models.NodeID, name string) error {
	cfg, err := c.ServerConfig(id)
	if err != nil {
		return err
	}

	if err := c.manager.OpenDatabase(ctx, cfg, name); err != nil {
		return err
	}
	conn, err := c.manager.Current()
	if err != nil {
		return models.NewConnectionError(err)
	}

	c.logger.Debug("loading table list", slog.String("database", name))
	status, err := metadata.ListTableStatus(ctx, conn)
	if err != nil {
		query, _ := conn.Dialect().TableStatus("")
		return models.NewStatementError(query, err)
	}

	c.mu.Lock()
	if c.nodes[id].Loaded || c.nodes[id].Removed {
		c.mu.Unlock()
		return nil
	}
	var totalKb float64
	for _, t := range status {
		kb := float64(t.SizeBytes()) / 1024
		totalKb += kb
		tid := c.add(models.NodeTable, t.Name, id)
		c.nodes[tid].SizeLabel = FormatSize(kb)
		c.nodes[tid].Loaded = true
	}
	c.nodes[id].SizeLabel = FormatSize(totalKb)
	c.nodes[id].Loaded = true
	c.mu.Unlock()

	c.logger.Debug("table list loaded", slog.String("database", name), slog.Int("tables", len(status)))
	c.notify()
	return nil
}

// Refresh re-lists the databases of a server. Known databases keep their node
// and loaded subtree; vanished ones are removed.
func (c *Catalog) Refresh(ctx context.Context, serverID models.NodeID) error {
	cfg, err := c.ServerConfig(serverID)
	if err != nil {
		return err
	}

	if err := c.manager.Ensure(ctx, cfg); err != nil {
		return err
	}
	conn, err := c.manager.Current()
	if err != nil {
		return models.NewConnectionError(err)
	}

	databases, err := metadata.ListDatabases(ctx, conn)
	if err != nil {
		return models.NewStatementError(conn.Dialect().ListDatabases(), err)
	}

	c.mu.Lock()
	server := &c.nodes[serverID]
	existing := make(map[string]models.NodeID, len(server.Children))
	for _, child := range server.Children {
		existing[c.nodes[child].Name] = child
	}

	children := make([]models.NodeID, 0, len(databases))
	for _, name := range databases {
		if child, ok := existing[name]; ok {
			children = append(children, child)
			delete(existing, name)
			continue
		}
		id := models.NodeID(len(c.nodes))
		c.nodes = append(c.nodes, models.CatalogNode{
			ID:     id,
			Kind:   models.NodeDatabase,
			Name:   name,
			Parent: serverID,
		})
		children = append(children, id)
	}
	for _, gone := range existing {
		c.tombstone(gone)
	}
	server = &c.nodes[serverID]
	server.Children = children
	server.Loaded = true
	c.mu.Unlock()

	c.notify()
	return nil
}

// ServerOf returns the server node above id (id itself for a server)
func (c *Catalog) ServerOf(id models.NodeID) (models.NodeID, error) {
	return c.ancestor(id, models.NodeServer)
}

// DatabaseOf returns the database node above id (id itself for a database)
func (c *Catalog) DatabaseOf(id models.NodeID) (models.NodeID, error) {
	return c.ancestor(id, models.NodeDatabase)
}

func (c *Catalog) ancestor(id models.NodeID, kind models.NodeKind) (models.NodeID, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for cur := id; ; {
		n, err := c.lookup(cur)
		if err != nil {
			return models.NoNode, err
		}
		if n.Kind == kind {
			return cur, nil
		}
		if n.Parent == models.NoNode {
			return models.NoNode, &models.NotFoundError{Kind: kind.String(), Name: fmt.Sprintf("above #%d", id)}
		}
		cur = n.Parent
	}
}

// ServerConfig returns the session config of the server owning id
func (c *Catalog) ServerConfig(id models.NodeID) (models.ConnectionConfig, error) {
	sid, err := c.ServerOf(id)
	if err != nil {
		return models.ConnectionConfig{}, err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	return *c.nodes[sid].Config, nil
}

// Find locates a node by server UUID, database and table. Empty trailing
// names stop the walk at the server or database.
func (c *Catalog) Find(serverUUID, database, table string) (models.NodeID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	id, ok := c.findServerLocked(serverUUID)
	if !ok {
		return models.NoNode, false
	}
	if database == "" {
		return id, true
	}
	if id, ok = c.childNamed(id, database); !ok || table == "" {
		return id, ok
	}
	return c.childNamed(id, table)
}

// TableNames lists the tables of a loaded database, ignoring filters. It
// reports false when the database is unknown or not loaded yet.
func (c *Catalog) TableNames(serverUUID, database string) ([]string, bool) {
	id, ok := c.Find(serverUUID, database, "")
	if !ok || database == "" {
		return nil, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	n := c.nodes[id]
	if !n.Loaded {
		return nil, false
	}
	names := make([]string, 0, len(n.Children))
	for _, child := range n.Children {
		if !c.nodes[child].Removed {
			names = append(names, c.nodes[child].Name)
		}
	}
	return names, true
}

func (c *Catalog) childNamed(parent models.NodeID, name string) (models.NodeID, bool) {
	for _, child := range c.nodes[parent].Children {
		if c.nodes[child].Name == name && !c.nodes[child].Removed {
			return child, true
		}
	}
	return models.NoNode, false
}

func (c *Catalog) findServer(uuid string) (models.NodeID, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.findServerLocked(uuid)
}

func (c *Catalog) findServerLocked(uuid string) (models.NodeID, bool) {
	for _, id := range c.nodes[RootID].Children {
		n := c.nodes[id]
		if !n.Removed && n.Config != nil && n.Config.UUID == uuid {
			return id, true
		}
	}
	return models.NoNode, false
}

// SetFilter restricts the visible Database or Table nodes to those whose name
// contains pattern, ignoring case. An empty pattern shows everything.
// Filters only change what is displayed, so no change is signalled.
func (c *Catalog) SetFilter(level models.NodeKind, pattern string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.filters[level] = strings.ToLower(strings.TrimSpace(pattern))
}

// Filter returns the active pattern of a level
func (c *Catalog) Filter(level models.NodeKind) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.filters[level]
}

// Visible reports whether the node passes the filter of its level
func (c *Catalog) Visible(id models.NodeID) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, err := c.lookup(id)
	if err != nil {
		return false
	}
	return c.visibleLocked(n)
}

func (c *Catalog) visibleLocked(n *models.CatalogNode) bool {
	pattern := c.filters[n.Kind]
	if pattern == "" {
		return true
	}
	return strings.Contains(strings.ToLower(n.Name), pattern)
}

// VisibleChildren returns the children of id that pass the filters
func (c *Catalog) VisibleChildren(id models.NodeID) []models.NodeID {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n, err := c.lookup(id)
	if err != nil {
		return nil
	}
	var out []models.NodeID
	for _, child := range n.Children {
		cn := &c.nodes[child]
		if !cn.Removed && c.visibleLocked(cn) {
			out = append(out, child)
		}
	}
	return out
}
