package components

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-runewidth"

	"github.com/rebeliceyang/lazymy/internal/models"
	"github.com/rebeliceyang/lazymy/internal/ui/theme"
)

// HistoryPickMsg carries the statement chosen from the history list
type HistoryPickMsg struct {
	Query string
}

// HistoryCloseMsg closes the history list
type HistoryCloseMsg struct{}

// HistoryList shows recently executed statements, newest first
type HistoryList struct {
	Entries       []models.HistoryEntry
	SelectedIndex int
	Width         int
	Height        int
	Theme         theme.Theme
}

// NewHistoryList creates a list over entries
func NewHistoryList(th theme.Theme, entries []models.HistoryEntry) *HistoryList {
	return &HistoryList{Entries: entries, Theme: th, Width: 80, Height: 20}
}

// Update handles key input
func (h *HistoryList) Update(msg tea.KeyMsg) (*HistoryList, tea.Cmd) {
	switch msg.String() {
	case "esc", "q":
		return h, func() tea.Msg { return HistoryCloseMsg{} }
	case "up", "k":
		if h.SelectedIndex > 0 {
			h.SelectedIndex--
		}
	case "down", "j":
		if h.SelectedIndex < len(h.Entries)-1 {
			h.SelectedIndex++
		}
	case "enter":
		if h.SelectedIndex < len(h.Entries) {
			q := h.Entries[h.SelectedIndex].Query
			return h, func() tea.Msg { return HistoryPickMsg{Query: q} }
		}
	}
	return h, nil
}

// View renders the list
func (h *HistoryList) View() string {
	muted := lipgloss.NewStyle().Foreground(h.Theme.Muted)

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().Bold(true).Foreground(h.Theme.Header).Render("History"))
	b.WriteString("\n\n")
	if len(h.Entries) == 0 {
		b.WriteString(muted.Italic(true).Render("No statements run yet"))
		b.WriteString("\n")
	}

	visible := max(h.Height-6, 1)
	start := 0
	if h.SelectedIndex >= visible {
		start = h.SelectedIndex - visible + 1
	}
	end := min(start+visible, len(h.Entries))
	width := max(h.Width-8, 20)

	for i := start; i < end; i++ {
		e := h.Entries[i]
		mark := "✓"
		style := lipgloss.NewStyle().Foreground(h.Theme.Foreground)
		if !e.Success {
			mark = "✗"
			style = style.Foreground(h.Theme.Error)
		}
		if i == h.SelectedIndex {
			style = style.Background(h.Theme.Selection).Bold(true)
		}
		when := humanize.Time(e.ExecutedAt)
		text := runewidth.Truncate(oneLine(e.Query), max(width-runewidth.StringWidth(when)-6, 10), "…")
		b.WriteString(style.Render(fmt.Sprintf("%s %s  %s", mark, text, muted.Render(when))))
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(muted.Italic(true).Render("Enter: load into editor │ Esc: close"))

	return lipgloss.NewStyle().
		Width(h.Width).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(h.Theme.BorderFocused).
		Padding(1, 2).
		Render(b.String())
}
