package components

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rebeliceyang/lazymy/internal/models"
	"github.com/rebeliceyang/lazymy/internal/ui/theme"
)

// SessionConnectMsg asks for a session to be added to the catalog
type SessionConnectMsg struct {
	Config models.ConnectionConfig
}

// SessionSaveMsg asks for a session to be created or updated, then connected
type SessionSaveMsg struct {
	Config models.ConnectionConfig
	New    bool
}

// SessionDeleteMsg asks for a saved session to be deleted
type SessionDeleteMsg struct {
	UUID string
}

// SessionDialogCloseMsg closes the dialog
type SessionDialogCloseMsg struct{}

const (
	fieldName = iota
	fieldHost
	fieldPort
	fieldUser
	fieldPassword
	fieldDriver
	fieldCount
)

var fieldLabels = [fieldCount]string{"Name", "Host", "Port", "User", "Password", "Driver"}

// SessionDialog lists saved sessions and edits one at a time
type SessionDialog struct {
	Width  int
	Height int
	Theme  theme.Theme

	Sessions      []models.ConnectionConfig
	SelectedIndex int

	// Form state; editing is the session being edited, nil in list mode
	editing     *models.ConnectionConfig
	isNew       bool
	fields      [fieldCount]textinput.Model
	activeField int
	formErr     string
}

// NewSessionDialog creates a dialog over the saved sessions
func NewSessionDialog(th theme.Theme, sessions []models.ConnectionConfig) *SessionDialog {
	return &SessionDialog{Theme: th, Sessions: sessions}
}

// Editing reports whether the form is open
func (d *SessionDialog) Editing() bool {
	return d.editing != nil
}

// OpenForm starts editing cfg
func (d *SessionDialog) OpenForm(cfg models.ConnectionConfig, isNew bool) {
	d.editing = &cfg
	d.isNew = isNew
	d.formErr = ""
	values := [fieldCount]string{cfg.Name, cfg.Host, strconv.Itoa(cfg.Port), cfg.User, cfg.Password, cfg.DriverName()}
	for i := range d.fields {
		ti := textinput.New()
		ti.CharLimit = 256
		ti.SetValue(values[i])
		if i == fieldPassword {
			ti.EchoMode = textinput.EchoPassword
		}
		d.fields[i] = ti
	}
	d.activeField = 0
	d.fields[0].Focus()
}

// Config builds the edited session from the form fields
func (d *SessionDialog) Config() (models.ConnectionConfig, error) {
	if d.editing == nil {
		return models.ConnectionConfig{}, fmt.Errorf("no session is being edited")
	}
	cfg := *d.editing
	cfg.Name = strings.TrimSpace(d.fields[fieldName].Value())
	cfg.Host = strings.TrimSpace(d.fields[fieldHost].Value())
	cfg.User = strings.TrimSpace(d.fields[fieldUser].Value())
	cfg.Password = d.fields[fieldPassword].Value()
	cfg.Driver = strings.ToLower(strings.TrimSpace(d.fields[fieldDriver].Value()))

	port, err := strconv.Atoi(strings.TrimSpace(d.fields[fieldPort].Value()))
	if err != nil || port <= 0 || port > 65535 {
		return models.ConnectionConfig{}, fmt.Errorf("invalid port %q", d.fields[fieldPort].Value())
	}
	cfg.Port = port

	if cfg.Host == "" {
		return models.ConnectionConfig{}, fmt.Errorf("host is required")
	}
	if cfg.Driver != models.DriverMySQL && cfg.Driver != models.DriverPostgres {
		return models.ConnectionConfig{}, fmt.Errorf("unknown driver %q", cfg.Driver)
	}
	if cfg.Name == "" {
		cfg.Name = cfg.Host
	}
	return cfg, nil
}

// Update handles key input
func (d *SessionDialog) Update(msg tea.KeyMsg) (*SessionDialog, tea.Cmd) {
	if d.editing != nil {
		return d.updateForm(msg)
	}

	switch msg.String() {
	case "esc", "q":
		return d, func() tea.Msg { return SessionDialogCloseMsg{} }
	case "up", "k":
		if d.SelectedIndex > 0 {
			d.SelectedIndex--
		}
	case "down", "j":
		if d.SelectedIndex < len(d.Sessions)-1 {
			d.SelectedIndex++
		}
	case "n":
		d.OpenForm(models.NewConnectionConfig(), true)
	case "e":
		if cfg, ok := d.selected(); ok {
			d.OpenForm(cfg, false)
		}
	case "d":
		if cfg, ok := d.selected(); ok {
			id := cfg.UUID
			return d, func() tea.Msg { return SessionDeleteMsg{UUID: id} }
		}
	case "enter":
		if cfg, ok := d.selected(); ok {
			return d, func() tea.Msg { return SessionConnectMsg{Config: cfg} }
		}
	}
	return d, nil
}

func (d *SessionDialog) selected() (models.ConnectionConfig, bool) {
	if d.SelectedIndex < 0 || d.SelectedIndex >= len(d.Sessions) {
		return models.ConnectionConfig{}, false
	}
	return d.Sessions[d.SelectedIndex], true
}

func (d *SessionDialog) updateForm(msg tea.KeyMsg) (*SessionDialog, tea.Cmd) {
	switch msg.String() {
	case "esc":
		d.editing = nil
		return d, nil
	case "tab", "down":
		d.focusField((d.activeField + 1) % fieldCount)
		return d, nil
	case "shift+tab", "up":
		d.focusField((d.activeField + fieldCount - 1) % fieldCount)
		return d, nil
	case "enter":
		cfg, err := d.Config()
		if err != nil {
			d.formErr = err.Error()
			return d, nil
		}
		isNew := d.isNew
		d.editing = nil
		return d, func() tea.Msg { return SessionSaveMsg{Config: cfg, New: isNew} }
	}

	var cmd tea.Cmd
	d.fields[d.activeField], cmd = d.fields[d.activeField].Update(msg)
	return d, cmd
}

func (d *SessionDialog) focusField(i int) {
	d.fields[d.activeField].Blur()
	d.activeField = i
	d.fields[i].Focus()
}

// View renders the dialog
func (d *SessionDialog) View() string {
	title := lipgloss.NewStyle().Bold(true).Foreground(d.Theme.Header)
	help := lipgloss.NewStyle().Foreground(d.Theme.Muted).Italic(true)

	var b strings.Builder
	if d.editing != nil {
		heading := "Edit session"
		if d.isNew {
			heading = "New session"
		}
		b.WriteString(title.Render(heading))
		b.WriteString("\n\n")
		for i := range d.fields {
			marker := "  "
			if i == d.activeField {
				marker = "> "
			}
			b.WriteString(fmt.Sprintf("%s%-9s %s\n", marker, fieldLabels[i]+":", d.fields[i].View()))
		}
		if d.formErr != "" {
			b.WriteString("\n")
			b.WriteString(lipgloss.NewStyle().Foreground(d.Theme.Error).Render(d.formErr))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(help.Render("Tab: next field │ Enter: save and connect │ Esc: back"))
	} else {
		b.WriteString(title.Render("Sessions"))
		b.WriteString("\n\n")
		if len(d.Sessions) == 0 {
			b.WriteString(help.Render("No saved sessions"))
			b.WriteString("\n")
		}
		for i, s := range d.Sessions {
			prefix := "  "
			style := lipgloss.NewStyle().Foreground(d.Theme.Foreground)
			if i == d.SelectedIndex {
				prefix = "> "
				style = style.Background(d.Theme.Selection).Bold(true)
			}
			b.WriteString(style.Render(fmt.Sprintf("%s%s  %s (%s)", prefix, s.Name, s.String(), s.DriverName())))
			b.WriteString("\n")
		}
		b.WriteString("\n")
		b.WriteString(help.Render("Enter: connect │ n: new │ e: edit │ d: delete │ Esc: close"))
	}

	return lipgloss.NewStyle().
		Width(d.Width).
		Border(lipgloss.RoundedBorder()).
		BorderForeground(d.Theme.BorderFocused).
		Padding(1, 2).
		Render(b.String())
}
