package connection

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/rebeliceyang/lazymy/internal/models"
)

// ErrNotConnected is returned when no connection is live
var ErrNotConnected = errors.New("no active connection")

// Manager owns the single live connection. It is the only component that
// changes which server and database the shared connection points at.
type Manager struct {
	mu      sync.RWMutex
	opener  Opener
	current *Conn
	lastErr error
	logger  *slog.Logger
}

// NewManager creates a connection manager
func NewManager(opener Opener, logger *slog.Logger) *Manager {
	if opener == nil {
		opener = NewOpener(0)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		opener: opener,
		logger: logger,
	}
}

// Open points the live connection at the server's default database
func (m *Manager) Open(ctx context.Context, cfg models.ConnectionConfig) error {
	return m.open(ctx, cfg, "")
}

// OpenDatabase points the live connection at database on the server.
// Reopening the database that is already live is a no-op.
func (m *Manager) OpenDatabase(ctx context.Context, cfg models.ConnectionConfig, database string) error {
	return m.open(ctx, cfg, database)
}

// Ensure keeps the live connection if it already targets the server, whatever
// its database; otherwise it opens the server's default connection.
func (m *Manager) Ensure(ctx context.Context, cfg models.ConnectionConfig) error {
	m.mu.RLock()
	cur := m.current
	m.mu.RUnlock()

	if cur.IsOpen() && sameServer(cur.config, cfg) {
		return nil
	}
	return m.open(ctx, cfg, "")
}

func (m *Manager) open(ctx context.Context, cfg models.ConnectionConfig, database string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current.IsOpen() && sameServer(m.current.config, cfg) && m.current.database == database {
		return nil
	}

	m.logger.Info("opening connection",
		slog.String("server", cfg.String()),
		slog.String("database", database))

	conn, err := Dial(ctx, m.opener, cfg, database)
	if err != nil {
		m.lastErr = err
		m.logger.Warn("connection failed",
			slog.String("server", cfg.String()),
			slog.String("database", database),
			slog.String("error", err.Error()))
		return models.NewConnectionError(err)
	}

	if m.current != nil {
		m.logger.Debug("closing current connection", slog.String("database", m.current.database))
		_ = m.current.Close()
	}
	m.current = conn
	m.lastErr = nil
	return nil
}

// Current returns the live connection
func (m *Manager) Current() (*Conn, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.current.IsOpen() {
		return nil, ErrNotConnected
	}
	return m.current, nil
}

// Clone opens an independent connection with the live connection's credentials
// and database. The caller owns the returned connection.
func (m *Manager) Clone(ctx context.Context) (*Conn, error) {
	cur, err := m.Current()
	if err != nil {
		return nil, models.NewConnectionError(err)
	}

	clone, err := cur.Clone(ctx)
	if err != nil {
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		return nil, models.NewConnectionError(err)
	}
	return clone, nil
}

// Close closes the live connection
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	err := m.current.Close()
	m.current = nil
	return err
}

// IsOpen reports whether a connection is live
func (m *Manager) IsOpen() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current.IsOpen()
}

// LastError returns the message of the last failed open, empty if none
func (m *Manager) LastError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.lastErr == nil {
		return ""
	}
	return m.lastErr.Error()
}

// DatabaseName returns the database of the live connection
func (m *Manager) DatabaseName() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.current.IsOpen() {
		return ""
	}
	return m.current.database
}

// ServerUUID returns the session UUID of the live connection
func (m *Manager) ServerUUID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.current.IsOpen() {
		return ""
	}
	return m.current.config.UUID
}

// Ping tests the live connection
func (m *Manager) Ping(ctx context.Context) error {
	conn, err := m.Current()
	if err != nil {
		return err
	}

	if err := conn.Ping(ctx); err != nil {
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		return err
	}
	return nil
}

// sameServer compares identity and credentials; the display name does not matter
func sameServer(a, b models.ConnectionConfig) bool {
	return a.UUID == b.UUID &&
		a.Host == b.Host &&
		a.Port == b.Port &&
		a.User == b.User &&
		a.Password == b.Password &&
		a.DriverName() == b.DriverName()
}
