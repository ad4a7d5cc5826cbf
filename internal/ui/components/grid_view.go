package components

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/rebeliceyang/lazymy/internal/grid"
	"github.com/rebeliceyang/lazymy/internal/models"
	"github.com/rebeliceyang/lazymy/internal/ui/theme"
)

// ErrMultipleRows is returned by single-cell actions while several rows are marked
var ErrMultipleRows = errors.New("action needs a single selected row")

const (
	minColumnWidth = 4
	columnGap      = " │ "
)

// GridView renders a grid with a cell cursor and row marks
type GridView struct {
	Width   int
	Height  int
	MaxCell int
	Theme   theme.Theme

	CursorRow int
	CursorCol int
	TopRow    int
	LeftCol   int
	Marked    map[int]bool

	// loads is the grid load count the cursor and marks refer to
	loads int

	// writeClipboard is replaced in tests
	writeClipboard func(string) error
	readClipboard  func() (string, error)
}

// NewGridView creates a grid view; maxCell caps the rendered column width
func NewGridView(th theme.Theme, maxCell int) *GridView {
	return &GridView{
		MaxCell:        maxCell,
		Theme:          th,
		Marked:         make(map[int]bool),
		writeClipboard: clipboard.WriteAll,
		readClipboard:  clipboard.ReadAll,
	}
}

// Reset moves the cursor home and clears marks, after a reload or table change
func (gv *GridView) Reset() {
	gv.CursorRow, gv.CursorCol, gv.TopRow, gv.LeftCol = 0, 0, 0, 0
	gv.Marked = make(map[int]bool)
}

// Sync resets the view when g has reloaded its rows since the view last saw
// them, so marks never point into a newer result
func (gv *GridView) Sync(g *grid.Grid) {
	if g == nil {
		return
	}
	if n := g.Loads(); n != gv.loads {
		gv.Reset()
		gv.loads = n
	}
}

// Move shifts the cursor, clamped to the result bounds
func (gv *GridView) Move(g *grid.Grid, dRow, dCol int) {
	rows, cols := gv.bounds(g)
	gv.CursorRow = clamp(gv.CursorRow+dRow, 0, rows-1)
	gv.CursorCol = clamp(gv.CursorCol+dCol, 0, cols-1)
}

// Home moves to the first (top) or last row
func (gv *GridView) Home(g *grid.Grid, top bool) {
	rows, _ := gv.bounds(g)
	if top {
		gv.CursorRow = 0
		return
	}
	gv.CursorRow = max(rows-1, 0)
}

func (gv *GridView) bounds(g *grid.Grid) (rows, cols int) {
	if g == nil || g.Result() == nil {
		return 0, 0
	}
	rs := g.Result()
	return len(rs.Rows), len(rs.Columns)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}

// ToggleMark marks or unmarks the cursor row
func (gv *GridView) ToggleMark() {
	if gv.Marked[gv.CursorRow] {
		delete(gv.Marked, gv.CursorRow)
		return
	}
	gv.Marked[gv.CursorRow] = true
}

// SelectedRows returns the marked rows in order, or the cursor row when none is marked
func (gv *GridView) SelectedRows() []int {
	if len(gv.Marked) == 0 {
		return []int{gv.CursorRow}
	}
	rows := make([]int, 0, len(gv.Marked))
	for r := range gv.Marked {
		rows = append(rows, r)
	}
	sort.Ints(rows)
	return rows
}

// singleCell checks that a single-cell action is allowed
func (gv *GridView) singleCell() error {
	if !grid.SingleCellActions(len(gv.SelectedRows())) {
		return ErrMultipleRows
	}
	return nil
}

// CurrentCell returns the cell under the cursor
func (gv *GridView) CurrentCell(g *grid.Grid) (models.Cell, error) {
	return g.Cell(gv.CursorRow, gv.CursorCol)
}

// CurrentColumn returns the column name under the cursor
func (gv *GridView) CurrentColumn(g *grid.Grid) string {
	rs := g.Result()
	if rs == nil || gv.CursorCol >= len(rs.Columns) {
		return ""
	}
	return rs.Columns[gv.CursorCol]
}

// CopyCell puts the cell under the cursor on the clipboard. NULL copies as
// an empty string.
func (gv *GridView) CopyCell(g *grid.Grid) error {
	if err := gv.singleCell(); err != nil {
		return err
	}
	cell, err := gv.CurrentCell(g)
	if err != nil {
		return err
	}
	return gv.writeClipboard(cell.Value)
}

// ClipboardValue returns the clipboard text for pasting into the cursor cell
func (gv *GridView) ClipboardValue() (string, error) {
	if err := gv.singleCell(); err != nil {
		return "", err
	}
	return gv.readClipboard()
}

// CanSetNull reports whether Set NULL is offered for the current selection
func (gv *GridView) CanSetNull() bool {
	return gv.singleCell() == nil
}

// View renders the label, the header and the visible rows of g
func (gv *GridView) View(g *grid.Grid) string {
	muted := lipgloss.NewStyle().Foreground(gv.Theme.Muted)
	if g == nil {
		return muted.Render("No table selected")
	}
	gv.Sync(g)

	var b strings.Builder
	label := g.Label()
	if f := g.Filter(); f != "" {
		label += "  WHERE " + f
	}
	b.WriteString(lipgloss.NewStyle().Foreground(gv.Theme.Info).Render(label))
	b.WriteString("\n")

	rs := g.Result()
	if rs == nil {
		b.WriteString(muted.Render("Not loaded"))
		return b.String()
	}
	if len(rs.Columns) == 0 {
		b.WriteString(muted.Render("No columns"))
		return b.String()
	}

	widths := gv.columnWidths(rs)
	gv.scroll(len(rs.Rows), widths)

	header := make([]string, 0, len(widths))
	for c := gv.LeftCol; c < len(rs.Columns); c++ {
		header = append(header, fit(rs.Columns[c], widths[c]))
	}
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(gv.Theme.Header).Render(gv.clip(strings.Join(header, columnGap))))
	b.WriteString("\n")

	bodyHeight := gv.bodyHeight()
	end := min(gv.TopRow+bodyHeight, len(rs.Rows))
	for r := gv.TopRow; r < end; r++ {
		b.WriteString(gv.renderRow(rs.Rows[r], r, widths))
		b.WriteString("\n")
	}

	status := fmt.Sprintf("row %s of %s", humanize.Comma(int64(gv.CursorRow+1)), humanize.Comma(int64(len(rs.Rows))))
	if len(gv.Marked) > 0 {
		status += fmt.Sprintf(", %d marked", len(gv.Marked))
	}
	b.WriteString(muted.Render(status))
	return b.String()
}

func (gv *GridView) renderRow(row []models.Cell, r int, widths []int) string {
	base := lipgloss.NewStyle().Foreground(gv.Theme.Foreground)
	if gv.Marked[r] {
		base = base.Background(gv.Theme.Marked)
	}

	parts := make([]string, 0, len(row))
	for c := gv.LeftCol; c < len(row) && c < len(widths); c++ {
		text := fit(row[c].String(), widths[c])
		style := base
		if row[c].Null {
			style = style.Foreground(gv.Theme.Null).Italic(true)
		}
		if r == gv.CursorRow && c == gv.CursorCol {
			style = style.Reverse(true)
		} else if r == gv.CursorRow {
			style = style.Background(gv.Theme.Selection)
		}
		parts = append(parts, style.Render(text))
	}
	return strings.Join(parts, columnGap)
}

// columnWidths sizes each column to its widest visible value, capped by MaxCell
func (gv *GridView) columnWidths(rs *models.ResultSet) []int {
	limit := gv.MaxCell
	if limit <= 0 {
		limit = 40
	}
	widths := make([]int, len(rs.Columns))
	for c, name := range rs.Columns {
		widths[c] = max(runewidth.StringWidth(name), minColumnWidth)
	}
	for _, row := range rs.Rows {
		for c := range row {
			if c < len(widths) {
				widths[c] = max(widths[c], runewidth.StringWidth(row[c].String()))
			}
		}
	}
	for c := range widths {
		widths[c] = min(widths[c], limit)
	}
	return widths
}

func (gv *GridView) bodyHeight() int {
	// label, header and status lines
	return max(gv.Height-3, 1)
}

// scroll keeps the cursor inside the visible window
func (gv *GridView) scroll(rows int, widths []int) {
	gv.CursorRow = clamp(gv.CursorRow, 0, rows-1)
	gv.CursorCol = clamp(gv.CursorCol, 0, len(widths)-1)

	h := gv.bodyHeight()
	if gv.CursorRow < gv.TopRow {
		gv.TopRow = gv.CursorRow
	}
	if gv.CursorRow >= gv.TopRow+h {
		gv.TopRow = gv.CursorRow - h + 1
	}

	if gv.CursorCol < gv.LeftCol {
		gv.LeftCol = gv.CursorCol
	}
	for gv.LeftCol < gv.CursorCol && gv.span(widths, gv.LeftCol, gv.CursorCol) > gv.Width {
		gv.LeftCol++
	}
}

func (gv *GridView) span(widths []int, from, to int) int {
	total := 0
	for c := from; c <= to; c++ {
		total += widths[c] + runewidth.StringWidth(columnGap)
	}
	return total
}

func (gv *GridView) clip(line string) string {
	if gv.Width <= 0 {
		return line
	}
	return runewidth.Truncate(line, gv.Width, "")
}

// fit pads or truncates s to exactly width cells
func fit(s string, width int) string {
	s = strings.ReplaceAll(s, "\n", "↵")
	if runewidth.StringWidth(s) > width {
		s = runewidth.Truncate(s, width, "…")
	}
	return runewidth.FillRight(s, width)
}
