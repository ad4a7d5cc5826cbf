package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rebeliceyang/lazymy/internal/ui/theme"
)

// Completer cycles through the names completing the word before the cursor.
// The first Tab inserts the first candidate, further Tabs replace it with
// the next one; any other key ends the cycle.
type Completer struct {
	Source func(word string) []string

	matches  []string
	next     int
	inserted string
}

// Active reports whether a cycle is in progress
func (c *Completer) Active() bool {
	return c.matches != nil
}

// Reset ends the cycle
func (c *Completer) Reset() {
	c.matches = nil
	c.next = 0
	c.inserted = ""
}

// Next returns the text to remove before the cursor and the text to insert
// in its place. It reports false when nothing completes word.
func (c *Completer) Next(word string) (remove, insert string, ok bool) {
	if c.matches == nil {
		if c.Source == nil {
			return "", "", false
		}
		matches := c.Source(word)
		if len(matches) == 0 {
			return "", "", false
		}
		c.matches, c.next, c.inserted = matches, 0, word
	}
	remove = c.inserted
	insert = c.matches[c.next]
	c.next = (c.next + 1) % len(c.matches)
	c.inserted = insert
	return remove, insert, true
}

// View lists the candidates of the cycle, the inserted one highlighted
func (c *Completer) View(th theme.Theme, width int) string {
	if c.matches == nil {
		return ""
	}
	current := (c.next - 1 + len(c.matches)) % len(c.matches)
	muted := lipgloss.NewStyle().Foreground(th.Muted)
	selected := lipgloss.NewStyle().Foreground(th.Info).Bold(true)

	var parts []string
	used := 0
	for i, m := range c.matches {
		if used+len(m)+1 > width && len(parts) > 0 {
			parts = append(parts, muted.Render("…"))
			break
		}
		used += len(m) + 1
		if i == current {
			parts = append(parts, selected.Render(m))
		} else {
			parts = append(parts, muted.Render(m))
		}
	}
	return strings.Join(parts, " ")
}
