package components

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/rebeliceyang/lazymy/internal/catalog"
	"github.com/rebeliceyang/lazymy/internal/models"
	"github.com/rebeliceyang/lazymy/internal/ui/theme"
)

// CatalogSelectedMsg is sent when a node is chosen with Enter
type CatalogSelectedMsg struct {
	ID models.NodeID
}

// CatalogExpandMsg asks for the children of a node to be fetched
type CatalogExpandMsg struct {
	ID models.NodeID
}

// CatalogOpenTabMsg asks for a table to be opened in its own tab
type CatalogOpenTabMsg struct {
	ID models.NodeID
}

// TreeRow is one visible line of the tree
type TreeRow struct {
	Node  models.CatalogNode
	Depth int
}

// CatalogTree renders the server / database / table tree of a catalog with
// keyboard navigation. Collapsed state is kept here; the catalog only knows
// what has been loaded.
type CatalogTree struct {
	Catalog      *catalog.Catalog
	Expanded     map[models.NodeID]bool
	CursorIndex  int
	ScrollOffset int
	Width        int
	Height       int
	Theme        theme.Theme

	// Active is the node the views currently show
	Active models.NodeID
}

// NewCatalogTree creates a tree over cat
func NewCatalogTree(cat *catalog.Catalog, th theme.Theme) *CatalogTree {
	return &CatalogTree{
		Catalog:  cat,
		Expanded: make(map[models.NodeID]bool),
		Width:    40,
		Height:   20,
		Theme:    th,
		Active:   models.NoNode,
	}
}

// Rows flattens the expanded, filter-visible part of the tree
func (t *CatalogTree) Rows() []TreeRow {
	var rows []TreeRow
	var walk func(ids []models.NodeID, depth int)
	walk = func(ids []models.NodeID, depth int) {
		for _, id := range ids {
			n, err := t.Catalog.Node(id)
			if err != nil || n.Removed {
				continue
			}
			rows = append(rows, TreeRow{Node: n, Depth: depth})
			if t.Expanded[id] {
				walk(t.Catalog.VisibleChildren(id), depth+1)
			}
		}
	}
	walk(t.Catalog.Servers(), 0)
	return rows
}

// Current returns the node under the cursor
func (t *CatalogTree) Current() (models.CatalogNode, bool) {
	rows := t.Rows()
	if t.CursorIndex < 0 || t.CursorIndex >= len(rows) {
		return models.CatalogNode{}, false
	}
	return rows[t.CursorIndex].Node, true
}

// SetCursor moves the cursor to id, expanding its ancestors
func (t *CatalogTree) SetCursor(id models.NodeID) bool {
	for cur := id; ; {
		n, err := t.Catalog.Node(cur)
		if err != nil || n.Parent == catalog.RootID || n.Parent == models.NoNode {
			break
		}
		t.Expanded[n.Parent] = true
		cur = n.Parent
	}
	for i, r := range t.Rows() {
		if r.Node.ID == id {
			t.CursorIndex = i
			return true
		}
	}
	return false
}

// Update handles keyboard input for tree navigation
func (t *CatalogTree) Update(msg tea.KeyMsg) (*CatalogTree, tea.Cmd) {
	rows := t.Rows()
	if len(rows) == 0 {
		return t, nil
	}
	t.clamp(len(rows))
	current := rows[t.CursorIndex].Node

	switch msg.String() {
	case "up", "k":
		if t.CursorIndex > 0 {
			t.CursorIndex--
		}
	case "down", "j":
		if t.CursorIndex < len(rows)-1 {
			t.CursorIndex++
		}
	case "g":
		t.CursorIndex = 0
		t.ScrollOffset = 0
	case "G":
		t.CursorIndex = len(rows) - 1
	case "right", "l", " ":
		if current.IsLeaf() {
			return t, nil
		}
		if t.Expanded[current.ID] {
			if msg.String() == " " {
				t.Expanded[current.ID] = false
			}
			return t, nil
		}
		t.Expanded[current.ID] = true
		if !current.Loaded {
			id := current.ID
			return t, func() tea.Msg { return CatalogExpandMsg{ID: id} }
		}
	case "left", "h":
		if t.Expanded[current.ID] {
			t.Expanded[current.ID] = false
			return t, nil
		}
		for i, r := range rows {
			if r.Node.ID == current.Parent {
				t.CursorIndex = i
				break
			}
		}
	case "enter":
		id := current.ID
		return t, func() tea.Msg { return CatalogSelectedMsg{ID: id} }
	case "o":
		if current.Kind == models.NodeTable {
			id := current.ID
			return t, func() tea.Msg { return CatalogOpenTabMsg{ID: id} }
		}
	}
	return t, nil
}

func (t *CatalogTree) clamp(n int) {
	if t.CursorIndex >= n {
		t.CursorIndex = n - 1
	}
	if t.CursorIndex < 0 {
		t.CursorIndex = 0
	}
}

// View renders the tree as a string
func (t *CatalogTree) View() string {
	rows := t.Rows()
	if len(rows) == 0 {
		return lipgloss.NewStyle().
			Foreground(t.Theme.Muted).
			Italic(true).
			Render("No servers. Press n to add one")
	}
	t.clamp(len(rows))

	viewHeight := max(t.Height-1, 1)
	if t.CursorIndex < t.ScrollOffset {
		t.ScrollOffset = t.CursorIndex
	}
	if t.CursorIndex >= t.ScrollOffset+viewHeight {
		t.ScrollOffset = t.CursorIndex - viewHeight + 1
	}
	end := min(t.ScrollOffset+viewHeight, len(rows))

	lines := make([]string, 0, viewHeight)
	for i := t.ScrollOffset; i < end; i++ {
		lines = append(lines, t.renderRow(rows[i], i == t.CursorIndex))
	}
	if filters := t.filterLine(); filters != "" {
		lines = append(lines, filters)
	}
	return strings.Join(lines, "\n")
}

func (t *CatalogTree) renderRow(r TreeRow, selected bool) string {
	icon := "▸"
	switch {
	case r.Node.IsLeaf():
		icon = "•"
	case t.Expanded[r.Node.ID]:
		icon = "▾"
	}

	label := r.Node.Name
	if r.Node.SizeLabel != "" {
		label += " (" + r.Node.SizeLabel + ")"
	}
	content := fmt.Sprintf("%s%s %s", strings.Repeat("  ", r.Depth), icon, label)

	maxWidth := max(t.Width-2, 4)
	if runewidth.StringWidth(content) > maxWidth {
		content = runewidth.Truncate(content, maxWidth, "…")
	}

	style := lipgloss.NewStyle().Foreground(t.Theme.Foreground).Width(maxWidth)
	if r.Node.ID == t.Active {
		style = style.Foreground(t.Theme.Success)
	}
	if selected {
		style = style.Background(t.Theme.Selection).Bold(true)
	}
	return style.Render(content)
}

func (t *CatalogTree) filterLine() string {
	var parts []string
	if f := t.Catalog.Filter(models.NodeDatabase); f != "" {
		parts = append(parts, "db~"+f)
	}
	if f := t.Catalog.Filter(models.NodeTable); f != "" {
		parts = append(parts, "table~"+f)
	}
	if len(parts) == 0 {
		return ""
	}
	return lipgloss.NewStyle().Foreground(t.Theme.Info).Render("filter: " + strings.Join(parts, " "))
}
