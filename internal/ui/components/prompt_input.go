package components

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rebeliceyang/lazymy/internal/completion"
	"github.com/rebeliceyang/lazymy/internal/ui/theme"
)

// PromptPurpose says what a submitted prompt value is for
type PromptPurpose int

const (
	PromptDatabaseFilter PromptPurpose = iota
	PromptTableFilter
	PromptRowFilter
	PromptEditCell
	PromptExport
)

func (p PromptPurpose) label() string {
	switch p {
	case PromptDatabaseFilter:
		return "Filter databases"
	case PromptTableFilter:
		return "Filter tables"
	case PromptRowFilter:
		return "WHERE"
	case PromptEditCell:
		return "Value"
	case PromptExport:
		return "Export to"
	default:
		return ""
	}
}

// PromptSubmitMsg is sent when the prompt is confirmed; empty values are valid
type PromptSubmitMsg struct {
	Purpose PromptPurpose
	Value   string
}

// PromptCancelMsg is sent when the prompt is dismissed
type PromptCancelMsg struct{}

// PromptInput is a one-line input box. Tab completes names when the
// completer has a source.
type PromptInput struct {
	Input     textinput.Model
	Purpose   PromptPurpose
	Theme     theme.Theme
	Width     int
	Completer Completer
}

// NewPromptInput creates a focused prompt prefilled with value
func NewPromptInput(th theme.Theme, purpose PromptPurpose, value string) *PromptInput {
	ti := textinput.New()
	ti.CharLimit = 4096
	ti.Width = 40
	ti.SetValue(value)
	ti.CursorEnd()
	ti.Focus()

	return &PromptInput{
		Input:   ti,
		Purpose: purpose,
		Theme:   th,
	}
}

// Update handles messages
func (p *PromptInput) Update(msg tea.Msg) (*PromptInput, tea.Cmd) {
	if key, ok := msg.(tea.KeyMsg); ok {
		switch key.String() {
		case "enter":
			value, purpose := p.Input.Value(), p.Purpose
			return p, func() tea.Msg { return PromptSubmitMsg{Purpose: purpose, Value: value} }
		case "esc":
			return p, func() tea.Msg { return PromptCancelMsg{} }
		case "tab":
			p.complete()
			return p, nil
		}
		p.Completer.Reset()
	}

	var cmd tea.Cmd
	p.Input, cmd = p.Input.Update(msg)
	return p, cmd
}

// complete replaces the word before the cursor with the next candidate
func (p *PromptInput) complete() {
	value := []rune(p.Input.Value())
	pos := p.Input.Position()
	remove, insert, ok := p.Completer.Next(completion.WordBefore(value, pos))
	if !ok {
		return
	}
	start := pos - len([]rune(remove))
	if start < 0 {
		p.Completer.Reset()
		return
	}
	next := string(value[:start]) + insert + string(value[pos:])
	p.Input.SetValue(next)
	p.Input.SetCursor(start + len([]rune(insert)))
}

// View renders the prompt
func (p *PromptInput) View() string {
	p.Input.Width = max(p.Width-len(p.Purpose.label())-6, 20)

	label := lipgloss.NewStyle().Foreground(p.Theme.Info).Bold(true).Render(p.Purpose.label() + ":")
	box := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Theme.BorderFocused).
		Padding(0, 1).
		Width(p.Width)
	hint := "Enter: apply │ Esc: cancel"
	if p.Completer.Source != nil {
		hint += " │ Tab: complete"
	}
	help := lipgloss.NewStyle().Foreground(p.Theme.Muted).Italic(true).Render(hint)
	if p.Completer.Active() {
		help = p.Completer.View(p.Theme, max(p.Width-4, 10))
	}
	return box.Render(label + " " + p.Input.View() + "\n" + help)
}
