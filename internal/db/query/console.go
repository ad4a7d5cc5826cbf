package query

import (
	"context"
	"errors"
	"sync"

	"github.com/rebeliceyang/lazymy/internal/db/connection"
	"github.com/rebeliceyang/lazymy/internal/models"
)

var (
	// ErrBatchRunning is returned when a batch is started while another runs
	ErrBatchRunning = errors.New("a query is already running")
	// ErrNoStatements is returned when the console text holds no statement
	ErrNoStatements = errors.New("nothing to execute")
)

// Console is the state of one query view: its text, the running batch and
// the last finished result
type Console struct {
	mu     sync.Mutex
	worker *Worker
	conn   *connection.Conn
	text   string
	batch  *Batch
	last   *models.BatchResult
}

// NewConsole creates a console running its batches on worker
func NewConsole(worker *Worker) *Console {
	return &Console{worker: worker}
}

// SetText replaces the console text
func (c *Console) SetText(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text = text
}

// Text returns the console text
func (c *Console) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text
}

// SetConn points the console at a connection, used for the next run
func (c *Console) SetConn(conn *connection.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn = conn
}

// Conn returns the connection of the console
func (c *Console) Conn() *connection.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

// Run splits the text and submits it as one batch
func (c *Console) Run(ctx context.Context) (*Batch, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.batch != nil && c.batch.Running() {
		return nil, ErrBatchRunning
	}
	if !c.conn.IsOpen() {
		return nil, models.NewConnectionError(connection.ErrNotConnected)
	}

	statements := SplitStatements(c.text)
	if len(statements) == 0 {
		return nil, ErrNoStatements
	}

	c.batch = c.worker.Submit(ctx, c.conn, statements)
	return c.batch, nil
}

// Stop stops the running batch, if any
func (c *Console) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.batch != nil {
		c.batch.Stop()
	}
}

// Running reports whether a batch is in flight
func (c *Console) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batch != nil && c.batch.Running()
}

// Collect moves a finished batch into the last result; it reports whether one was collected
func (c *Console) Collect() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.batch == nil || c.batch.Running() {
		return false
	}
	result := c.batch.Result()
	c.last = &result
	c.batch = nil
	return true
}

// Last returns the last collected batch result
func (c *Console) Last() (models.BatchResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.last == nil {
		return models.BatchResult{}, false
	}
	return *c.last, true
}
