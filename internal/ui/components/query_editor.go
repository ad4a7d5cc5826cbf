package components

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/alecthomas/chroma/v2"
	"github.com/alecthomas/chroma/v2/formatters"
	"github.com/alecthomas/chroma/v2/lexers"
	"github.com/alecthomas/chroma/v2/styles"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/rebeliceyang/lazymy/internal/completion"
	"github.com/rebeliceyang/lazymy/internal/db/query"
	"github.com/rebeliceyang/lazymy/internal/models"
	"github.com/rebeliceyang/lazymy/internal/ui/theme"
)

// QueryEditor edits the text of a Query view and renders the last batch.
// While not editing, the text is shown with SQL highlighting.
type QueryEditor struct {
	Input     textarea.Model
	Width     int
	Height    int
	Theme     theme.Theme
	Editing   bool
	Completer Completer

	// Selected is the statement whose result is shown, -1 for the last
	// one returning rows
	Selected int

	language  string
	lexer     chroma.Lexer
	style     *chroma.Style
	formatter chroma.Formatter
}

// NewQueryEditor creates an editor for the given dialect lexer ("mysql", "postgresql")
func NewQueryEditor(th theme.Theme, language string) *QueryEditor {
	ta := textarea.New()
	ta.Placeholder = "SELECT ..."
	ta.ShowLineNumbers = true
	ta.CharLimit = 0

	qe := &QueryEditor{Input: ta, Theme: th, Selected: -1}
	qe.SetLanguage(language)

	qe.style = styles.Get(th.ChromaStyle)
	if qe.style == nil {
		qe.style = styles.Fallback
	}
	qe.formatter = formatters.Get("terminal256")
	if qe.formatter == nil {
		qe.formatter = formatters.Fallback
	}
	return qe
}

// SetLanguage switches the highlighting lexer
func (qe *QueryEditor) SetLanguage(language string) {
	qe.language = language
	lexer := lexers.Get(language)
	if lexer == nil {
		lexer = lexers.Get("sql")
	}
	if lexer == nil {
		lexer = lexers.Fallback
	}
	qe.lexer = chroma.Coalesce(lexer)
}

// SetText replaces the editor text
func (qe *QueryEditor) SetText(text string) {
	qe.Input.SetValue(text)
}

// Text returns the editor text
func (qe *QueryEditor) Text() string {
	return qe.Input.Value()
}

// StartEditing focuses the text area
func (qe *QueryEditor) StartEditing() tea.Cmd {
	qe.Editing = true
	return qe.Input.Focus()
}

// StopEditing blurs the text area
func (qe *QueryEditor) StopEditing() {
	qe.Editing = false
	qe.Input.Blur()
}

// Update forwards input to the text area while editing
func (qe *QueryEditor) Update(msg tea.Msg) (*QueryEditor, tea.Cmd) {
	if !qe.Editing {
		return qe, nil
	}
	if k, ok := msg.(tea.KeyMsg); ok && k.String() != "tab" {
		qe.Completer.Reset()
	}
	var cmd tea.Cmd
	qe.Input, cmd = qe.Input.Update(msg)
	return qe, cmd
}

// WordBeforeCursor returns the name being typed at the cursor
func (qe *QueryEditor) WordBeforeCursor() string {
	lines := strings.Split(qe.Input.Value(), "\n")
	row := qe.Input.Line()
	if row < 0 || row >= len(lines) {
		return ""
	}
	info := qe.Input.LineInfo()
	return completion.WordBefore([]rune(lines[row]), info.StartColumn+info.ColumnOffset)
}

// Complete replaces the word before the cursor with its next completion.
// It reports false when nothing completes the word.
func (qe *QueryEditor) Complete() bool {
	if !qe.Editing {
		return false
	}
	remove, insert, ok := qe.Completer.Next(qe.WordBeforeCursor())
	if !ok {
		return false
	}
	for range utf8.RuneCountInString(remove) {
		qe.Input, _ = qe.Input.Update(tea.KeyMsg{Type: tea.KeyBackspace})
	}
	qe.Input.InsertString(insert)
	return true
}

// Format rewrites the text with keywords upper-cased and one clause per line
func (qe *QueryEditor) Format() {
	text := qe.Text()
	if strings.TrimSpace(text) == "" {
		return
	}
	qe.SetText(query.FormatSQL(text, qe.language))
}

// StepResult moves the shown result delta statements forward or back
func (qe *QueryEditor) StepResult(res *models.BatchResult, delta int) {
	if res == nil || len(res.Statements) == 0 {
		return
	}
	qe.Selected = min(max(qe.shown(*res)+delta, 0), len(res.Statements)-1)
}

// ResetResult shows the last row-returning statement again
func (qe *QueryEditor) ResetResult() {
	qe.Selected = -1
}

// shown returns the index of the statement whose result is displayed
func (qe *QueryEditor) shown(res models.BatchResult) int {
	if qe.Selected >= 0 && qe.Selected < len(res.Statements) {
		return qe.Selected
	}
	for i := len(res.Statements) - 1; i >= 0; i-- {
		if res.Statements[i].Result.HasRows {
			return i
		}
	}
	return len(res.Statements) - 1
}

// Highlight renders SQL text with terminal colors; failures fall back to plain text
func (qe *QueryEditor) Highlight(text string) string {
	iterator, err := qe.lexer.Tokenise(nil, text)
	if err != nil {
		return text
	}
	var buf bytes.Buffer
	if err := qe.formatter.Format(&buf, qe.style, iterator); err != nil {
		return text
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// View renders the editor above the batch summary and the last result set
func (qe *QueryEditor) View(running bool, completed int, last *models.BatchResult) string {
	editorHeight := max(qe.Height/3, 3)
	qe.Input.SetWidth(max(qe.Width, 10))
	qe.Input.SetHeight(editorHeight)

	var b strings.Builder
	if qe.Editing {
		b.WriteString(qe.Input.View())
	} else {
		lines := strings.Split(qe.Highlight(qe.Text()), "\n")
		if len(lines) > editorHeight {
			lines = lines[:editorHeight]
		}
		b.WriteString(strings.Join(lines, "\n"))
	}
	b.WriteString("\n")
	if qe.Editing && qe.Completer.Active() {
		b.WriteString(qe.Completer.View(qe.Theme, max(qe.Width, 1)))
	} else {
		b.WriteString(lipgloss.NewStyle().Foreground(qe.Theme.Border).Render(strings.Repeat("─", max(qe.Width, 1))))
	}
	b.WriteString("\n")

	muted := lipgloss.NewStyle().Foreground(qe.Theme.Muted)
	switch {
	case running:
		b.WriteString(lipgloss.NewStyle().Foreground(qe.Theme.Warning).
			Render(fmt.Sprintf("Running… %d statement(s) done. Ctrl+X stops after the current one", completed)))
	case last == nil:
		b.WriteString(muted.Render("Ctrl+R runs the query, i edits"))
	default:
		b.WriteString(qe.renderBatch(*last, qe.Height-editorHeight-2))
	}
	return b.String()
}

func (qe *QueryEditor) renderBatch(res models.BatchResult, height int) string {
	errStyle := lipgloss.NewStyle().Foreground(qe.Theme.Error)
	okStyle := lipgloss.NewStyle().Foreground(qe.Theme.Success)

	var lines []string
	if res.Err != nil {
		lines = append(lines, errStyle.Render(res.Err.Error()))
	}
	var table *models.QueryResult
	shown := -1
	if len(res.Statements) > 0 {
		shown = qe.shown(res)
	}
	for i, st := range res.Statements {
		marker := ""
		switch {
		case len(res.Statements) == 1:
		case i == shown:
			marker = "▶ "
		default:
			marker = "  "
		}
		summary := fmt.Sprintf("%s#%d %s (%d ms): ", marker, i+1, runewidth.Truncate(oneLine(st.SQL), 40, "…"), st.ElapsedMillis())
		switch {
		case st.Result.Error != nil:
			lines = append(lines, errStyle.Render(summary+st.Result.Error.Error()))
		case st.Result.HasRows:
			lines = append(lines, okStyle.Render(fmt.Sprintf("%s%d rows", summary, len(st.Result.Rows))))
			if i == shown {
				table = &res.Statements[i].Result
			}
		default:
			lines = append(lines, okStyle.Render(fmt.Sprintf("%s%d rows affected", summary, st.Result.RowsAffected)))
		}
	}
	if res.Stopped {
		lines = append(lines, lipgloss.NewStyle().Foreground(qe.Theme.Warning).Render("Stopped"))
	}

	if table != nil {
		lines = append(lines, "")
		lines = append(lines, qe.renderResult(&table.ResultSet, max(height-len(lines), 1))...)
	}
	if height > 0 && len(lines) > height {
		lines = lines[:height]
	}
	return strings.Join(lines, "\n")
}

func (qe *QueryEditor) renderResult(rs *models.ResultSet, height int) []string {
	widths := make([]int, len(rs.Columns))
	for c, name := range rs.Columns {
		widths[c] = max(runewidth.StringWidth(name), minColumnWidth)
	}
	for _, row := range rs.Rows {
		for c := range row {
			if c < len(widths) {
				widths[c] = min(max(widths[c], runewidth.StringWidth(row[c].String())), 30)
			}
		}
	}

	render := func(values []string) string {
		parts := make([]string, len(values))
		for i, v := range values {
			parts[i] = fit(v, widths[i])
		}
		return runewidth.Truncate(strings.Join(parts, columnGap), max(qe.Width, 1), "")
	}

	lines := []string{lipgloss.NewStyle().Bold(true).Foreground(qe.Theme.Header).Render(render(rs.Columns))}
	for _, row := range rs.StringRows() {
		if len(lines) >= height {
			break
		}
		lines = append(lines, render(row))
	}
	return lines
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
