package query

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"

	"github.com/rebeliceyang/lazymy/internal/db/connection"
	"github.com/rebeliceyang/lazymy/internal/models"
)

// Recorder persists executed statements
type Recorder interface {
	Add(entry models.HistoryEntry) error
}

// Worker runs statement batches in the background, one goroutine per batch
type Worker struct {
	recorder Recorder
	logger   *slog.Logger
}

// NewWorker creates a worker; recorder may be nil
func NewWorker(recorder Recorder, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Worker{
		recorder: recorder,
		logger:   logger,
	}
}

// Batch is a running or finished batch of statements
type Batch struct {
	statements []string
	stop       atomic.Bool
	completed  atomic.Int32
	done       chan struct{}
	once       sync.Once

	mu     sync.Mutex
	result models.BatchResult

	// started is called before statement i runs
	started func(b *Batch, i int)
}

func newBatch(statements []string) *Batch {
	return &Batch{
		statements: statements,
		done:       make(chan struct{}),
	}
}

// Statements returns the statements of the batch
func (b *Batch) Statements() []string { return b.statements }

// Stop asks the batch to stop after the statement in flight
func (b *Batch) Stop() { b.stop.Store(true) }

// Done is closed once the batch has finished
func (b *Batch) Done() <-chan struct{} { return b.done }

// Completed returns the number of statements that have finished
func (b *Batch) Completed() int { return int(b.completed.Load()) }

// Running reports whether the batch has not finished yet
func (b *Batch) Running() bool {
	select {
	case <-b.done:
		return false
	default:
		return true
	}
}

// Result returns the batch outcome; it is complete only after Done is closed
func (b *Batch) Result() models.BatchResult {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.result
}

// Wait blocks until the batch finishes or ctx is done
func (b *Batch) Wait(ctx context.Context) (models.BatchResult, error) {
	select {
	case <-b.done:
		return b.Result(), nil
	case <-ctx.Done():
		return models.BatchResult{}, ctx.Err()
	}
}

func (b *Batch) finish(result models.BatchResult) {
	b.once.Do(func() {
		b.mu.Lock()
		b.result = result
		b.mu.Unlock()
		close(b.done)
	})
}

// Submit runs statements on a clone of conn. Statement failures are recorded
// and do not abort the batch.
func (w *Worker) Submit(ctx context.Context, conn *connection.Conn, statements []string) *Batch {
	return w.submit(ctx, conn, statements, nil)
}

func (w *Worker) submit(ctx context.Context, conn *connection.Conn, statements []string, started func(*Batch, int)) *Batch {
	b := newBatch(statements)
	b.started = started
	go w.run(ctx, conn, b)
	return b
}

func (w *Worker) run(ctx context.Context, conn *connection.Conn, b *Batch) {
	var result models.BatchResult
	defer func() { b.finish(result) }()

	w.logger.Debug("running batch",
		slog.String("database", conn.Database()),
		slog.Int("statements", len(b.statements)))

	clone, err := conn.Clone(ctx)
	if err != nil {
		w.logger.Warn("batch connection failed", slog.String("error", err.Error()))
		result.Err = models.NewConnectionError(err)
		return
	}
	defer func() { _ = clone.Close() }()

	// One pinned session so that USE and SET carry over between statements
	session, err := clone.DB().Conn(ctx)
	if err != nil {
		result.Err = models.NewConnectionError(err)
		return
	}
	defer func() { _ = session.Close() }()

	database := conn.Database()
	for i, stmt := range b.statements {
		if b.stop.Load() {
			result.Stopped = true
			break
		}
		if b.started != nil {
			b.started(b, i)
		}

		start := time.Now()
		res := Execute(ctx, session, stmt)
		elapsed := time.Since(start)

		result.Statements = append(result.Statements, models.StatementResult{
			SQL:     stmt,
			Result:  res,
			Elapsed: elapsed,
		})
		b.completed.Add(1)
		w.record(conn, database, stmt, res, elapsed)
		if name, ok := usedDatabase(stmt); ok && res.Error == nil {
			database = name
		}

		if ctx.Err() != nil {
			result.Err = ctx.Err()
			break
		}
	}

	if !result.Stopped && b.stop.Load() && len(result.Statements) < len(b.statements) {
		result.Stopped = true
	}

	w.logger.Debug("batch finished",
		slog.Int("completed", len(result.Statements)),
		slog.Bool("stopped", result.Stopped))
}

// usedDatabase returns the database named by a USE statement
func usedDatabase(stmt string) (string, bool) {
	s := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(stmt), ";"))
	if len(s) < 4 || !strings.EqualFold(s[:3], "USE") || !unicode.IsSpace(rune(s[3])) {
		return "", false
	}
	name := strings.TrimSpace(s[3:])
	if n := len(name); n >= 2 && (name[0] == '`' || name[0] == '"') && name[n-1] == name[0] {
		q := name[:1]
		name = strings.ReplaceAll(name[1:n-1], q+q, q)
	}
	return name, name != ""
}

func (w *Worker) record(conn *connection.Conn, database, stmt string, res models.QueryResult, elapsed time.Duration) {
	if w.recorder == nil {
		return
	}

	entry := models.HistoryEntry{
		ConnectionName: conn.Config().Name,
		DatabaseName:   database,
		Query:          stmt,
		ExecutedAt:     time.Now(),
		Duration:       elapsed,
		RowsAffected:   res.RowsAffected,
		Success:        res.Error == nil,
	}
	if res.Error != nil {
		entry.ErrorMessage = res.Error.Error()
	}

	if err := w.recorder.Add(entry); err != nil {
		w.logger.Warn("failed to record history", slog.String("error", err.Error()))
	}
}
