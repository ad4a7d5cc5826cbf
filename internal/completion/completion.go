// Package completion suggests table and column names for query and filter text.
package completion

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/rebeliceyang/lazymy/internal/db/connection"
	"github.com/rebeliceyang/lazymy/internal/db/metadata"
	"github.com/rebeliceyang/lazymy/internal/models"
)

// MaxCandidates caps the suggestions returned for one word
const MaxCandidates = 20

var keywords = []string{
	"SELECT", "FROM", "WHERE", "AND", "OR", "NOT", "NULL", "IS", "IN", "LIKE", "BETWEEN",
	"JOIN", "LEFT", "RIGHT", "INNER", "OUTER", "ON", "AS", "GROUP", "BY", "ORDER", "HAVING",
	"LIMIT", "OFFSET", "INSERT", "INTO", "VALUES", "UPDATE", "SET", "DELETE", "DISTINCT",
	"UNION", "ALL", "CASE", "WHEN", "THEN", "ELSE", "END", "COUNT", "ASC", "DESC", "USE",
}

// Source holds the names known for one database. Table names are set from
// the catalog or the server; columns are fetched per table on demand.
type Source struct {
	mu       sync.Mutex
	database string
	tables   []string
	columns  map[string][]string
	keywords bool
	logger   *slog.Logger
}

// NewSource creates an empty source; withKeywords adds SQL keywords to the candidates
func NewSource(withKeywords bool, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Source{
		columns:  make(map[string][]string),
		keywords: withKeywords,
		logger:   logger,
	}
}

// Database returns the database the names belong to
func (s *Source) Database() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.database
}

// Reset forgets every name and binds the source to database
func (s *Source) Reset(database string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.database = database
	s.tables = nil
	s.columns = make(map[string][]string)
}

// SetTables replaces the table names
func (s *Source) SetTables(tables []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tables = append([]string(nil), tables...)
}

// Tables returns the known table names
func (s *Source) Tables() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.tables...)
}

// LoadTables lists the tables through conn, used when the catalog has not loaded them
func (s *Source) LoadTables(ctx context.Context, conn *connection.Conn) error {
	status, err := metadata.ListTableStatus(ctx, conn)
	if err != nil {
		return err
	}
	tables := make([]string, 0, len(status))
	for _, t := range status {
		tables = append(tables, t.Name)
	}
	s.SetTables(tables)
	return nil
}

// SetColumns records the columns of table
func (s *Source) SetColumns(table string, columns []models.ColumnDetail) {
	names := make([]string, 0, len(columns))
	for _, c := range columns {
		names = append(names, c.Name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.columns[table] = names
}

// HasColumns reports whether the columns of table are known
func (s *Source) HasColumns(table string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.columns[table]
	return ok
}

// LoadColumns fetches the columns of table once
func (s *Source) LoadColumns(ctx context.Context, conn *connection.Conn, table string) error {
	if s.HasColumns(table) {
		return nil
	}
	columns, err := metadata.GetColumnDetails(ctx, conn, table)
	if err != nil {
		s.logger.Debug("columns unavailable", slog.String("table", table), slog.String("error", err.Error()))
		return err
	}
	s.SetColumns(table, columns)
	return nil
}

// Candidates returns the names completing word. A word qualified by a table
// ("orders.cu") completes that table's columns, keeping the qualifier.
func (s *Source) Candidates(word string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if table, rest, ok := Qualified(word); ok {
		var out []string
		for _, c := range Match(rest, s.columns[s.tableNamed(table)]) {
			out = append(out, table+"."+c)
		}
		return out
	}

	seen := make(map[string]bool)
	var names []string
	add := func(n string) {
		if !seen[n] {
			seen[n] = true
			names = append(names, n)
		}
	}
	for _, t := range s.tables {
		add(t)
	}
	tables := make([]string, 0, len(s.columns))
	for t := range s.columns {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	for _, t := range tables {
		for _, c := range s.columns[t] {
			add(c)
		}
	}
	if s.keywords {
		for _, k := range keywords {
			add(k)
		}
	}
	return Match(word, names)
}

// tableNamed resolves a qualifier to a known table, ignoring case
func (s *Source) tableNamed(name string) string {
	if _, ok := s.columns[name]; ok {
		return name
	}
	for t := range s.columns {
		if strings.EqualFold(t, name) {
			return t
		}
	}
	return name
}

// Match returns the names starting with word, ignoring case, in their
// original order, followed by fuzzy matches ranked by distance. An empty
// word matches nothing.
func Match(word string, names []string) []string {
	if word == "" {
		return nil
	}
	var out []string
	taken := make(map[int]bool)
	lower := strings.ToLower(word)
	for i, n := range names {
		if strings.HasPrefix(strings.ToLower(n), lower) && !strings.EqualFold(n, word) {
			out = append(out, n)
			taken[i] = true
		}
	}

	ranks := fuzzy.RankFindNormalizedFold(word, names)
	sort.Stable(ranks)
	for _, r := range ranks {
		if !taken[r.OriginalIndex] && !strings.EqualFold(r.Target, word) {
			out = append(out, r.Target)
			taken[r.OriginalIndex] = true
		}
	}
	if len(out) > MaxCandidates {
		out = out[:MaxCandidates]
	}
	return out
}

// Qualified splits "table.column" at the last dot
func Qualified(word string) (table, rest string, ok bool) {
	i := strings.LastIndexByte(word, '.')
	if i <= 0 {
		return "", "", false
	}
	return word[:i], word[i+1:], true
}

func isNameRune(r rune) bool {
	return r == '_' || r == '.' || r == '$' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// WordBefore returns the name being typed before rune position pos of text
func WordBefore(text []rune, pos int) string {
	pos = min(max(pos, 0), len(text))
	start := pos
	for start > 0 && isNameRune(text[start-1]) {
		start--
	}
	return string(text[start:pos])
}
