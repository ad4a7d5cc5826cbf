package components

import (
	"errors"

	"github.com/charmbracelet/lipgloss"

	"github.com/rebeliceyang/lazymy/internal/models"
	"github.com/rebeliceyang/lazymy/internal/ui/theme"
)

// ErrorOverlay shows a failure until dismissed
type ErrorOverlay struct {
	Title   string
	Message string
	Detail  string
	Width   int
	Theme   theme.Theme
}

// NewErrorOverlay creates an empty overlay
func NewErrorOverlay(th theme.Theme) *ErrorOverlay {
	return &ErrorOverlay{Theme: th, Width: 60}
}

// SetError fills the overlay from err, splitting typed errors into their
// message and detail
func (e *ErrorOverlay) SetError(title string, err error) {
	e.Title = title
	e.Message = err.Error()
	e.Detail = ""

	var connErr *models.ConnectionError
	var stmtErr *models.StatementError
	switch {
	case errors.As(err, &connErr):
		e.Message = connErr.Message
		e.Detail = connErr.Detail
	case errors.As(err, &stmtErr):
		e.Message = stmtErr.Message
		e.Detail = stmtErr.Statement
	}
}

// View renders the overlay
func (e *ErrorOverlay) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(e.Theme.Error).Render(e.Title)
	body := lipgloss.NewStyle().Width(e.Width - 4).Render(e.Message)
	content := title + "\n\n" + body
	if e.Detail != "" {
		content += "\n\n" + lipgloss.NewStyle().Width(e.Width-4).Foreground(e.Theme.Muted).Render(e.Detail)
	}
	content += "\n\n" + lipgloss.NewStyle().Foreground(e.Theme.Muted).Italic(true).Render("Esc/Enter: dismiss")

	return lipgloss.NewStyle().
		Width(e.Width).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(e.Theme.Error).
		Padding(1, 2).
		Render(content)
}
