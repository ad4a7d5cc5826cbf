// Package logger sets up the structured application log: JSON records in a
// rotating file, with the latest warnings and errors kept in memory for the
// status bar.
package logger

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

// FileName is the default log file name
const FileName = "lazymy.log"

const recentSize = 50

// Entry is a captured warning or error
type Entry struct {
	Time    time.Time
	Level   slog.Level
	Message string
}

// Format renders the entry for a single status line
func (e Entry) Format() string {
	return fmt.Sprintf("%s %-5s %s", e.Time.Format("15:04:05"), e.Level.String(), e.Message)
}

type ringBuffer struct {
	mu      sync.RWMutex
	entries []Entry
	head    int
	count   int
}

func newRingBuffer(size int) *ringBuffer {
	return &ringBuffer{entries: make([]Entry, size)}
}

func (rb *ringBuffer) add(e Entry) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.entries[rb.head] = e
	rb.head = (rb.head + 1) % len(rb.entries)
	if rb.count < len(rb.entries) {
		rb.count++
	}
}

func (rb *ringBuffer) all() []Entry {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	size := len(rb.entries)
	out := make([]Entry, rb.count)
	for i := range rb.count {
		out[i] = rb.entries[(rb.head-rb.count+i+size)%size]
	}
	return out
}

// captureHandler records WARN and above before passing records on
type captureHandler struct {
	inner  slog.Handler
	buffer *ringBuffer
}

func (h *captureHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.inner.Enabled(ctx, level)
}

func (h *captureHandler) Handle(ctx context.Context, r slog.Record) error {
	if r.Level >= slog.LevelWarn {
		h.buffer.add(Entry{Time: r.Time, Level: r.Level, Message: r.Message})
	}
	return h.inner.Handle(ctx, r)
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &captureHandler{inner: h.inner.WithAttrs(attrs), buffer: h.buffer}
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	return &captureHandler{inner: h.inner.WithGroup(name), buffer: h.buffer}
}

// Logger is the application logger
type Logger struct {
	*slog.Logger
	path   string
	writer *lumberjack.Logger
	recent *ringBuffer
}

// ParseLevel maps a config level name to a slog level, defaulting to info
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New opens the rotating log file at path, or FileName under dir when path is empty
func New(level slog.Level, path, dir string) (*Logger, error) {
	if path == "" {
		path = filepath.Join(dir, FileName)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	writer := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    10, // MB
		MaxBackups: 3,
		MaxAge:     7, // days
		Compress:   true,
	}
	recent := newRingBuffer(recentSize)
	handler := &captureHandler{
		inner:  slog.NewJSONHandler(writer, &slog.HandlerOptions{Level: level}),
		buffer: recent,
	}

	return &Logger{
		Logger: slog.New(handler),
		path:   path,
		writer: writer,
		recent: recent,
	}, nil
}

// Path returns the log file path
func (l *Logger) Path() string {
	return l.path
}

// Recent returns the captured warnings and errors, oldest first
func (l *Logger) Recent() []Entry {
	return l.recent.all()
}

// Close closes the log file
func (l *Logger) Close() error {
	return l.writer.Close()
}
