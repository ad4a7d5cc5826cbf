package navigation

import (
	"github.com/rebeliceyang/lazymy/internal/db/connection"
	"github.com/rebeliceyang/lazymy/internal/db/query"
	"github.com/rebeliceyang/lazymy/internal/grid"
	"github.com/rebeliceyang/lazymy/internal/models"
)

// ViewKind is the kind of a tab in the explorer
type ViewKind int

const (
	ViewHost ViewKind = iota
	ViewDatabase
	ViewTableInfo
	ViewTableData
	ViewQuery
)

func (k ViewKind) String() string {
	switch k {
	case ViewHost:
		return "host"
	case ViewDatabase:
		return "database"
	case ViewTableInfo:
		return "table-info"
	case ViewTableData:
		return "table-data"
	case ViewQuery:
		return "query"
	default:
		return "unknown"
	}
}

// ViewID identifies a view for its lifetime
type ViewID int

// Entry is one line of the host or database view
type Entry struct {
	Name      string
	SizeLabel string
}

// View is one tab. Only the fields of its kind are set.
type View struct {
	ID     ViewID
	Kind   ViewKind
	Title  string
	Pinned bool

	// Host and Database
	Database string
	Entries  []Entry

	// TableInfo and TableData
	Table       string
	Columns     []models.ColumnDetail
	ForeignKeys []models.ForeignKey
	Grid        *grid.Grid

	// Query
	Console *query.Console

	// dirty is set when the table changes and cleared by the next load
	dirty bool
	// owned connections are closed with the view
	owned *connection.Conn
}

// Closable reports whether the user may close the view
func (v *View) Closable() bool {
	return !v.Pinned
}

// NeedsLoad reports whether a TableData view has not loaded since its table was set
func (v *View) NeedsLoad() bool {
	return v.Kind == ViewTableData && v.dirty
}
