package logger

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{" DEBUG ", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestLogger_WritesJSONAndCapturesWarnings(t *testing.T) {
	dir := t.TempDir()
	l, err := New(slog.LevelInfo, "", dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, FileName), l.Path())

	l.Debug("hidden")
	l.Info("opened", slog.String("database", "shop"))
	l.With(slog.String("table", "orders")).Warn("estimate unavailable")
	l.Error("load failed")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(l.Path())
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)

	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "opened", rec["msg"])
	assert.Equal(t, "shop", rec["database"])

	recent := l.Recent()
	require.Len(t, recent, 2)
	assert.Equal(t, "estimate unavailable", recent[0].Message)
	assert.Equal(t, slog.LevelError, recent[1].Level)
}

func TestRingBuffer_Wraps(t *testing.T) {
	rb := newRingBuffer(3)
	for i, msg := range []string{"a", "b", "c", "d"} {
		rb.add(Entry{Time: time.Unix(int64(i), 0), Message: msg})
	}

	var got []string
	for _, e := range rb.all() {
		got = append(got, e.Message)
	}
	assert.Equal(t, []string{"b", "c", "d"}, got)
}

func TestEntry_Format(t *testing.T) {
	e := Entry{Time: time.Date(2024, 1, 2, 13, 4, 5, 0, time.UTC), Level: slog.LevelWarn, Message: "slow"}
	assert.Equal(t, "13:04:05 WARN  slow", e.Format())
}
