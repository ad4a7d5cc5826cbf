package help

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/rebeliceyang/lazymy/internal/ui/theme"
)

// KeyBinding represents a keyboard shortcut
type KeyBinding struct {
	Key         string
	Description string
}

// Section is a titled group of bindings
type Section struct {
	Title string
	Keys  []KeyBinding
}

// Sections returns every documented binding
func Sections() []Section {
	return []Section{
		{"Global", []KeyBinding{
			{"?", "Toggle help"},
			{"q, Ctrl+C", "Quit"},
			{"Tab", "Switch between tree and views"},
			{"[ / ]", "Previous / next view"},
			{"w", "Close view"},
			{"s", "Sessions"},
			{"Esc/Enter", "Dismiss error"},
		}},
		{"Tree", []KeyBinding{
			{"↑/k ↓/j", "Move"},
			{"→/l, Space", "Expand"},
			{"←/h", "Collapse or go to parent"},
			{"Enter", "Select"},
			{"o", "Open table in new tab"},
			{"r", "Refresh server"},
			{"x", "Remove server"},
			{"/", "Filter databases or tables"},
		}},
		{"Host / Database views", []KeyBinding{
			{"↑/k ↓/j", "Move"},
			{"Enter", "Show database or table"},
		}},
		{"Data view", []KeyBinding{
			{"Arrows, hjkl", "Move cell"},
			{"f", "Edit filter (Tab completes columns)"},
			{"=", "Filter on cell value"},
			{"~", "Filter on cell containing value"},
			{"g", "Follow foreign key"},
			{"e", "Edit cell"},
			{"n", "Set NULL"},
			{"y / p", "Copy / paste cell"},
			{"Space", "Mark row"},
			{"D", "Delete marked rows"},
			{"R", "Reload"},
			{"X", "Export rows to CSV or JSON"},
		}},
		{"Query view", []KeyBinding{
			{"i", "Edit text (Esc to leave)"},
			{"Ctrl+R", "Run"},
			{"Ctrl+X", "Stop after current statement"},
			{"Ctrl+N", "New query view"},
			{"H", "Load recent history"},
			{"Tab", "Complete table or column name while editing"},
			{"F", "Format SQL"},
			{"< / >", "Previous / next statement result"},
		}},
	}
}

// Render creates the help view
func Render(width, height int, th theme.Theme) string {
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(th.BorderFocused).Padding(1, 0)
	sectionStyle := lipgloss.NewStyle().Bold(true).Foreground(th.Info).Padding(0, 0, 0, 2)
	keyStyle := lipgloss.NewStyle().Foreground(th.Warning).Width(16)
	descStyle := lipgloss.NewStyle().Foreground(th.Foreground)

	var b strings.Builder
	b.WriteString(titleStyle.Render("lazymy - Keyboard Shortcuts"))
	b.WriteString("\n\n")

	for _, s := range Sections() {
		b.WriteString(sectionStyle.Render(s.Title))
		b.WriteString("\n")
		for _, kb := range s.Keys {
			b.WriteString("  ")
			b.WriteString(keyStyle.Render(kb.Key))
			b.WriteString(descStyle.Render(kb.Description))
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}
	b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press '?' or Esc to close help"))

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(th.BorderFocused).
		Padding(1, 2).
		Width(max(width-4, 20)).
		Height(max(height-4, 5)).
		Render(b.String())
}
