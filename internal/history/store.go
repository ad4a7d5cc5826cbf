package history

import (
	"database/sql"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rebeliceyang/lazymy/internal/models"
)

// FileName is the history database file under the config directory
const FileName = "history.db"

//go:embed schema.sql
var schemaSQL string

const selectColumns = `SELECT id, connection_name, database_name, query, executed_at,
		       duration_ms, rows_affected, success, error_message
		FROM query_history`

// Store manages query history persistence
type Store struct {
	mu         sync.Mutex
	db         *sql.DB
	maxEntries int
}

// NewStore creates a new history store; maxEntries <= 0 keeps everything
func NewStore(path string, maxEntries int) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create history schema: %w", err)
	}

	return &Store{db: db, maxEntries: maxEntries}, nil
}

// Add records one executed statement and prunes the oldest entries past the limit
func (s *Store) Add(entry models.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ExecutedAt.IsZero() {
		entry.ExecutedAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO query_history
		(connection_name, database_name, query, executed_at, duration_ms, rows_affected, success, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ConnectionName,
		entry.DatabaseName,
		entry.Query,
		entry.ExecutedAt.UTC(),
		entry.Duration.Milliseconds(),
		entry.RowsAffected,
		entry.Success,
		entry.ErrorMessage,
	)
	if err != nil {
		return err
	}

	if s.maxEntries > 0 {
		_, err = s.db.Exec(`
			DELETE FROM query_history
			WHERE id NOT IN (SELECT id FROM query_history ORDER BY id DESC LIMIT ?)`,
			s.maxEntries)
	}
	return err
}

// GetRecent retrieves the most recent query history entries
func (s *Store) GetRecent(limit int) ([]models.HistoryEntry, error) {
	return s.list(selectColumns+`
		ORDER BY executed_at DESC, id DESC
		LIMIT ?`, limit)
}

// Search searches query history by query text
func (s *Store) Search(query string, limit int) ([]models.HistoryEntry, error) {
	return s.list(selectColumns+`
		WHERE query LIKE ?
		ORDER BY executed_at DESC, id DESC
		LIMIT ?`, "%"+query+"%", limit)
}

func (s *Store) list(query string, args ...any) ([]models.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		var durationMs int64

		err := rows.Scan(
			&e.ID,
			&e.ConnectionName,
			&e.DatabaseName,
			&e.Query,
			&e.ExecutedAt,
			&durationMs,
			&e.RowsAffected,
			&e.Success,
			&e.ErrorMessage,
		)
		if err != nil {
			return nil, err
		}

		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
