package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/rebeliceyang/lazymy/internal/models"
	"github.com/rebeliceyang/lazymy/internal/navigation"
	"github.com/rebeliceyang/lazymy/internal/ui/theme"
)

// TableInfo renders the columns and foreign keys of a table
type TableInfo struct {
	Width int
	Theme theme.Theme
}

// View renders the table structure
func (ti TableInfo) View(table string, columns []models.ColumnDetail, keys []models.ForeignKey) string {
	header := lipgloss.NewStyle().Bold(true).Foreground(ti.Theme.Header)
	muted := lipgloss.NewStyle().Foreground(ti.Theme.Muted)

	if table == "" {
		return muted.Render("No table selected")
	}

	nameWidth := len("Column")
	typeWidth := len("Type")
	for _, c := range columns {
		nameWidth = max(nameWidth, runewidth.StringWidth(c.Name))
		typeWidth = max(typeWidth, runewidth.StringWidth(c.DataType))
	}

	var b strings.Builder
	b.WriteString(header.Render(fmt.Sprintf("%s  %s  %-4s  %-3s  %s",
		runewidth.FillRight("Column", nameWidth), runewidth.FillRight("Type", typeWidth), "Null", "Key", "Default")))
	b.WriteString("\n")

	for _, c := range columns {
		null := "NO"
		if c.IsNullable {
			null = "YES"
		}
		key := ""
		if c.IsPrimaryKey {
			key = "PRI"
		}
		line := fmt.Sprintf("%s  %s  %-4s  %-3s  %s",
			runewidth.FillRight(c.Name, nameWidth), runewidth.FillRight(c.DataType, typeWidth), null, key, c.DefaultValue)
		if ti.Width > 0 {
			line = runewidth.Truncate(line, ti.Width, "…")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	if len(keys) > 0 {
		b.WriteString("\n")
		b.WriteString(header.Render("Foreign keys"))
		b.WriteString("\n")
		for _, k := range keys {
			b.WriteString(fmt.Sprintf("%s → %s.%s\n", k.Column, k.TargetTable, k.TargetColumn))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// EntryList renders the Host and Database view listings
type EntryList struct {
	Width int
	Theme theme.Theme
}

// View renders entries with the cursor on index cursor
func (el EntryList) View(entries []navigation.Entry, cursor int) string {
	if len(entries) == 0 {
		return lipgloss.NewStyle().Foreground(el.Theme.Muted).Render("Empty")
	}

	nameWidth := 0
	for _, e := range entries {
		nameWidth = max(nameWidth, runewidth.StringWidth(e.Name))
	}

	lines := make([]string, 0, len(entries))
	for i, e := range entries {
		line := runewidth.FillRight(e.Name, nameWidth)
		if e.SizeLabel != "" {
			line += "  " + e.SizeLabel
		}
		style := lipgloss.NewStyle().Foreground(el.Theme.Foreground)
		if i == cursor {
			style = style.Background(el.Theme.Selection).Bold(true)
		}
		lines = append(lines, style.Render(line))
	}
	return strings.Join(lines, "\n")
}
