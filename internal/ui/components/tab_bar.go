package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/rebeliceyang/lazymy/internal/navigation"
	"github.com/rebeliceyang/lazymy/internal/ui/theme"
)

const maxTabTitle = 24

// TabBar renders the open views, marking the focused one. Closable views get
// a trailing ×.
type TabBar struct {
	Width int
	Theme theme.Theme
}

// View renders views in order
func (tb TabBar) View(views []*navigation.View, focused navigation.ViewID) string {
	active := lipgloss.NewStyle().
		Bold(true).
		Foreground(tb.Theme.Foreground).
		Background(tb.Theme.BorderFocused).
		Padding(0, 1)
	inactive := lipgloss.NewStyle().
		Foreground(tb.Theme.Muted).
		Padding(0, 1)

	tabs := make([]string, 0, len(views))
	for _, v := range views {
		title := runewidth.Truncate(v.Title, maxTabTitle, "…")
		if v.Closable() {
			title += " ×"
		}
		if v.ID == focused {
			tabs = append(tabs, active.Render(title))
		} else {
			tabs = append(tabs, inactive.Render(title))
		}
	}

	line := strings.Join(tabs, "│")
	if tb.Width > 0 && lipgloss.Width(line) > tb.Width {
		// Keep the focused tab visible by dropping tabs from the left
		for len(tabs) > 1 && lipgloss.Width(strings.Join(tabs, "│")) > tb.Width {
			if focusedIndex(views, focused) == 0 {
				tabs = tabs[:len(tabs)-1]
				views = views[:len(views)-1]
				continue
			}
			tabs = tabs[1:]
			views = views[1:]
		}
		line = strings.Join(tabs, "│")
	}
	return line
}

func focusedIndex(views []*navigation.View, focused navigation.ViewID) int {
	for i, v := range views {
		if v.ID == focused {
			return i
		}
	}
	return -1
}
