// Package testutil provides sqlmock-backed servers for package tests.
package testutil

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/rebeliceyang/lazymy/internal/models"
)

// MockServer hands out a fresh sqlmock database on every open and records the DSNs
type MockServer struct {
	t     *testing.T
	mu    sync.Mutex
	dsns  []string
	dbs   []*sql.DB
	mocks []sqlmock.Sqlmock

	// Setup registers expectations on each new mock before it is returned
	Setup func(dsn string, mock sqlmock.Sqlmock)
	// Fail makes the open fail when it returns an error
	Fail func(dsn string) error
}

// NewMockServer creates a mock server whose databases are closed with the test
func NewMockServer(t *testing.T) *MockServer {
	t.Helper()
	s := &MockServer{t: t}
	t.Cleanup(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for _, db := range s.dbs {
			_ = db.Close()
		}
	})
	return s
}

// Open matches connection.Opener
func (s *MockServer) Open(_ context.Context, _ string, dsn string) (*sql.DB, error) {
	if s.Fail != nil {
		if err := s.Fail(dsn); err != nil {
			s.mu.Lock()
			s.dsns = append(s.dsns, dsn)
			s.mu.Unlock()
			return nil, err
		}
	}

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	if err != nil {
		s.t.Fatalf("failed to create sqlmock: %v", err)
	}
	if s.Setup != nil {
		s.Setup(dsn, mock)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.dsns = append(s.dsns, dsn)
	s.dbs = append(s.dbs, db)
	s.mocks = append(s.mocks, mock)
	return db, nil
}

// Opens returns how many opens were attempted
func (s *MockServer) Opens() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.dsns)
}

// DSN returns the i-th attempted DSN
func (s *MockServer) DSN(i int) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dsns[i]
}

// Mock returns the i-th successfully opened mock
func (s *MockServer) Mock(i int) sqlmock.Sqlmock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mocks[i]
}

// Last returns the most recently opened mock
func (s *MockServer) Last() sqlmock.Sqlmock {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mocks[len(s.mocks)-1]
}

// ExpectationsMet checks every opened mock
func (s *MockServer) ExpectationsMet() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.mocks {
		if err := m.ExpectationsWereMet(); err != nil {
			return fmt.Errorf("mock %d: %w", i, err)
		}
	}
	return nil
}

// FailDatabase fails every open whose DSN targets database
func FailDatabase(database string, err error) func(dsn string) error {
	return func(dsn string) error {
		if strings.HasSuffix(dsn, "/"+database) || strings.Contains(dsn, "/"+database+"?") {
			return err
		}
		return nil
	}
}

// Config returns a MySQL session config with a fixed UUID
func Config(name string) models.ConnectionConfig {
	return models.ConnectionConfig{
		Name:   name,
		UUID:   "uuid-" + name,
		Host:   name,
		User:   "root",
		Port:   3306,
		Driver: models.DriverMySQL,
	}
}

// Rows builds sqlmock rows from string or nil values
func Rows(columns []string, values ...[]any) *sqlmock.Rows {
	rows := sqlmock.NewRows(columns)
	for _, v := range values {
		rows.AddRow(toDriver(v)...)
	}
	return rows
}

func toDriver(values []any) []driver.Value {
	out := make([]driver.Value, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
