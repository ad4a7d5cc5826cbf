package components

import (
	"context"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebeliceyang/lazymy/internal/catalog"
	"github.com/rebeliceyang/lazymy/internal/db/connection"
	"github.com/rebeliceyang/lazymy/internal/db/dialect"
	"github.com/rebeliceyang/lazymy/internal/grid"
	"github.com/rebeliceyang/lazymy/internal/models"
	"github.com/rebeliceyang/lazymy/internal/navigation"
	"github.com/rebeliceyang/lazymy/internal/testutil"
	"github.com/rebeliceyang/lazymy/internal/ui/theme"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func newCatalog(t *testing.T) (*catalog.Catalog, models.NodeID) {
	t.Helper()
	srv := testutil.NewMockServer(t)
	srv.Setup = func(dsn string, mock sqlmock.Sqlmock) {
		mock.MatchExpectationsInOrder(false)
		mock.ExpectQuery("SHOW DATABASES").
			WillReturnRows(testutil.Rows([]string{"Database"}, []any{"shop"}, []any{"crm"}))
		mock.ExpectQuery("SHOW TABLE STATUS").
			WillReturnRows(testutil.Rows([]string{"Name", "Rows", "Data_length", "Index_length"},
				[]any{"orders", "2", "2048", "0"}))
	}
	cat := catalog.New(connection.NewManager(srv.Open, nil), nil)
	id, ok := cat.AddServer(context.Background(), testutil.Config("alpha"))
	require.True(t, ok)
	return cat, id
}

func names(rows []TreeRow) []string {
	var out []string
	for _, r := range rows {
		out = append(out, r.Node.Name)
	}
	return out
}

func TestCatalogTree_Navigation(t *testing.T) {
	cat, server := newCatalog(t)
	tree := NewCatalogTree(cat, theme.DefaultTheme())

	assert.Equal(t, []string{"alpha"}, names(tree.Rows()))

	// The server is loaded already: expanding needs no fetch
	_, cmd := tree.Update(key("l"))
	assert.Nil(t, cmd)
	assert.Equal(t, []string{"alpha", "shop", "crm"}, names(tree.Rows()))

	tree.Update(key("j"))
	node, ok := tree.Current()
	require.True(t, ok)
	assert.Equal(t, "shop", node.Name)

	_, cmd = tree.Update(key("l"))
	require.NotNil(t, cmd)
	assert.Equal(t, CatalogExpandMsg{ID: node.ID}, cmd())

	require.NoError(t, cat.Expand(context.Background(), node.ID))
	assert.Equal(t, []string{"alpha", "shop", "orders", "crm"}, names(tree.Rows()))
	assert.Contains(t, tree.View(), "orders (2 Kb)")

	_, cmd = tree.Update(key("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, CatalogSelectedMsg{ID: node.ID}, cmd())

	// h collapses, then moves to the parent
	tree.Update(key("h"))
	assert.Equal(t, []string{"alpha", "shop", "crm"}, names(tree.Rows()))
	tree.Update(key("h"))
	current, _ := tree.Current()
	assert.Equal(t, server, current.ID)
}

func TestCatalogTree_FilterAndCursor(t *testing.T) {
	cat, _ := newCatalog(t)
	tree := NewCatalogTree(cat, theme.DefaultTheme())

	crm, ok := cat.Find("uuid-alpha", "crm", "")
	require.True(t, ok)
	require.True(t, tree.SetCursor(crm))
	current, _ := tree.Current()
	assert.Equal(t, "crm", current.Name)

	cat.SetFilter(models.NodeDatabase, "SHO")
	assert.Equal(t, []string{"alpha", "shop"}, names(tree.Rows()))
	assert.Contains(t, tree.View(), "filter: db~sho")

	shop, _ := cat.Find("uuid-alpha", "shop", "")
	require.NoError(t, cat.Expand(context.Background(), shop))
	table, ok := cat.Find("uuid-alpha", "shop", "orders")
	require.True(t, ok)
	require.True(t, tree.SetCursor(table))
	_, cmd := tree.Update(key("o"))
	require.NotNil(t, cmd)
	assert.Equal(t, CatalogOpenTabMsg{ID: table}, cmd())
}

func TestCatalogTree_Empty(t *testing.T) {
	srv := testutil.NewMockServer(t)
	cat := catalog.New(connection.NewManager(srv.Open, nil), nil)
	tree := NewCatalogTree(cat, theme.DefaultTheme())

	assert.Contains(t, tree.View(), "No servers")
	_, cmd := tree.Update(key("enter"))
	assert.Nil(t, cmd)
}

func loadedGrid(t *testing.T) *grid.Grid {
	t.Helper()
	srv := testutil.NewMockServer(t)
	srv.Setup = func(_ string, mock sqlmock.Sqlmock) {
		mock.MatchExpectationsInOrder(false)
		// twice, for tests that reload
		for range 2 {
			expectOrders(mock)
		}
	}
	conn, err := connection.Dial(context.Background(), srv.Open, testutil.Config("alpha"), "shop")
	require.NoError(t, err)

	g := grid.New(conn, "orders", nil, nil)
	require.NoError(t, g.Load(context.Background()))
	return g
}

func expectOrders(mock sqlmock.Sqlmock) {
	cols, _ := dialect.MySQL{}.Columns("orders")
	mock.ExpectQuery(cols).WithArgs("orders").
		WillReturnRows(testutil.Rows([]string{"COLUMN_NAME", "COLUMN_TYPE", "IS_NULLABLE", "COLUMN_KEY", "COLUMN_DEFAULT"},
			[]any{"id", "int(11)", "NO", "PRI", nil},
			[]any{"note", "text", "YES", "", nil},
		))
	fks, _ := dialect.MySQL{}.ForeignKeys("orders")
	mock.ExpectQuery(fks).WithArgs("orders").
		WillReturnRows(testutil.Rows([]string{"COLUMN_NAME", "REFERENCED_TABLE_NAME", "REFERENCED_COLUMN_NAME"}))
	mock.ExpectQuery("SELECT * FROM `orders` LIMIT 1000").
		WillReturnRows(testutil.Rows([]string{"id", "note"},
			[]any{"1", "a very long note that will not fit"},
			[]any{"2", nil},
			[]any{"3", "short"},
		))
	mock.ExpectQuery("SHOW TABLE STATUS WHERE Name LIKE ?").WithArgs("orders").
		WillReturnRows(testutil.Rows([]string{"Name", "Rows", "Data_length", "Index_length"},
			[]any{"orders", "3", "0", "0"}))
}

func TestGridView_SyncAfterReload(t *testing.T) {
	g := loadedGrid(t)
	gv := NewGridView(theme.DefaultTheme(), 10)
	gv.Width, gv.Height = 80, 10

	gv.View(g)
	gv.Move(g, 2, 1)
	gv.ToggleMark()
	gv.View(g)
	assert.Equal(t, 2, gv.CursorRow)
	assert.Equal(t, []int{2}, gv.SelectedRows())

	// no event tells the view about the reload
	require.NoError(t, g.Load(context.Background()))
	gv.Sync(g)
	assert.Empty(t, gv.Marked)
	assert.Equal(t, 0, gv.CursorRow)
	assert.Equal(t, 0, gv.CursorCol)

	gv.Move(g, 1, 0)
	gv.Sync(g)
	assert.Equal(t, 1, gv.CursorRow)
	gv.Sync(nil)
	assert.Equal(t, 1, gv.CursorRow)
}

func TestGridView_CursorAndMarks(t *testing.T) {
	g := loadedGrid(t)
	gv := NewGridView(theme.DefaultTheme(), 10)
	gv.Width, gv.Height = 80, 10

	gv.Move(g, 5, 5)
	assert.Equal(t, 2, gv.CursorRow)
	assert.Equal(t, 1, gv.CursorCol)
	gv.Home(g, true)
	assert.Equal(t, 0, gv.CursorRow)

	assert.Equal(t, []int{0}, gv.SelectedRows())
	gv.ToggleMark()
	gv.Move(g, 2, 0)
	gv.ToggleMark()
	assert.Equal(t, []int{0, 2}, gv.SelectedRows())
	assert.False(t, gv.CanSetNull())

	gv.ToggleMark()
	assert.Equal(t, []int{0}, gv.SelectedRows())
	assert.True(t, gv.CanSetNull())

	gv.Reset()
	assert.Empty(t, gv.Marked)
	assert.Equal(t, 0, gv.CursorRow)
}

func TestGridView_Clipboard(t *testing.T) {
	g := loadedGrid(t)
	gv := NewGridView(theme.DefaultTheme(), 10)
	var copied string
	gv.writeClipboard = func(s string) error { copied = s; return nil }
	gv.readClipboard = func() (string, error) { return "pasted", nil }

	gv.Move(g, 0, 1)
	require.NoError(t, gv.CopyCell(g))
	assert.Equal(t, "a very long note that will not fit", copied)

	gv.Move(g, 1, 0)
	require.NoError(t, gv.CopyCell(g))
	assert.Equal(t, "", copied)

	v, err := gv.ClipboardValue()
	require.NoError(t, err)
	assert.Equal(t, "pasted", v)

	gv.ToggleMark()
	gv.Move(g, 1, 0)
	gv.ToggleMark()
	assert.ErrorIs(t, gv.CopyCell(g), ErrMultipleRows)
	_, err = gv.ClipboardValue()
	assert.ErrorIs(t, err, ErrMultipleRows)

	gv.writeClipboard = func(string) error { return errors.New("no clipboard") }
	gv.Reset()
	assert.EqualError(t, gv.CopyCell(g), "no clipboard")
}

func TestGridView_View(t *testing.T) {
	g := loadedGrid(t)
	gv := NewGridView(theme.DefaultTheme(), 10)
	gv.Width, gv.Height = 80, 10

	out := gv.View(g)
	assert.Contains(t, out, "shop.orders: 3 rows (approximately)")
	assert.Contains(t, out, "a very lo…")
	assert.Contains(t, out, "NULL")
	assert.Contains(t, out, "row 1 of 3")

	assert.Contains(t, gv.View(nil), "No table selected")
}

func TestFit(t *testing.T) {
	assert.Equal(t, "ab  ", fit("ab", 4))
	assert.Equal(t, "abc…", fit("abcdef", 4))
}

func TestSessionDialog_Form(t *testing.T) {
	d := NewSessionDialog(theme.DefaultTheme(), nil)

	d.Update(key("n"))
	require.True(t, d.Editing())
	cfg, err := d.Config()
	require.NoError(t, err)
	assert.Equal(t, "Unnamed", cfg.Name)
	assert.Equal(t, 3306, cfg.Port)
	assert.Equal(t, models.DriverMySQL, cfg.Driver)

	// Clear the port field and type a bad value
	d.focusField(fieldPort)
	d.fields[fieldPort].SetValue("abc")
	_, cmd := d.Update(key("enter"))
	assert.Nil(t, cmd)
	assert.True(t, d.Editing())
	assert.Contains(t, d.View(), "invalid port")

	d.fields[fieldPort].SetValue("3307")
	_, cmd = d.Update(key("enter"))
	require.NotNil(t, cmd)
	msg, ok := cmd().(SessionSaveMsg)
	require.True(t, ok)
	assert.True(t, msg.New)
	assert.Equal(t, 3307, msg.Config.Port)
	assert.False(t, d.Editing())
}

func TestSessionDialog_List(t *testing.T) {
	a := testutil.Config("alpha")
	b := testutil.Config("beta")
	d := NewSessionDialog(theme.DefaultTheme(), []models.ConnectionConfig{a, b})

	d.Update(key("j"))
	_, cmd := d.Update(key("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, SessionConnectMsg{Config: b}, cmd())

	_, cmd = d.Update(key("d"))
	assert.Equal(t, SessionDeleteMsg{UUID: "uuid-beta"}, cmd())

	d.Update(key("e"))
	require.True(t, d.Editing())
	d.Update(key("esc"))
	assert.False(t, d.Editing())

	_, cmd = d.Update(key("esc"))
	assert.Equal(t, SessionDialogCloseMsg{}, cmd())
	assert.Contains(t, d.View(), "alpha")
}

func TestErrorOverlay_SetError(t *testing.T) {
	o := NewErrorOverlay(theme.DefaultTheme())

	o.SetError("Connection", models.NewConnectionError(errors.New("dial tcp: refused")))
	assert.Equal(t, "Unable to connect to the database", o.Message)
	assert.Equal(t, "dial tcp: refused", o.Detail)

	o.SetError("Query", models.NewStatementError("SELECT x", errors.New("unknown column x")))
	assert.Equal(t, "unknown column x", o.Message)
	assert.Equal(t, "SELECT x", o.Detail)

	o.SetError("Other", errors.New("boom"))
	assert.Equal(t, "boom", o.Message)
	assert.Empty(t, o.Detail)
	assert.Contains(t, o.View(), "boom")
}

func TestPromptInput(t *testing.T) {
	p := NewPromptInput(theme.DefaultTheme(), PromptRowFilter, "id > 5")

	_, cmd := p.Update(key("enter"))
	require.NotNil(t, cmd)
	assert.Equal(t, PromptSubmitMsg{Purpose: PromptRowFilter, Value: "id > 5"}, cmd())

	_, cmd = p.Update(key("esc"))
	assert.Equal(t, PromptCancelMsg{}, cmd())
}

func TestTabBar(t *testing.T) {
	views := []*navigation.View{
		{ID: 1, Kind: navigation.ViewDatabase, Title: "Database: shop", Pinned: true},
		{ID: 2, Kind: navigation.ViewQuery, Title: "Query", Pinned: false},
	}
	out := TabBar{Theme: theme.DefaultTheme()}.View(views, 2)
	assert.Contains(t, out, "Database: shop")
	assert.Contains(t, out, "Query ×")
	assert.NotContains(t, out, "shop ×")
}

func TestQueryEditor_Highlight(t *testing.T) {
	qe := NewQueryEditor(theme.DefaultTheme(), "mysql")
	out := qe.Highlight("SELECT 1")
	assert.Contains(t, out, "SELECT")
	assert.Contains(t, out, "\x1b[")

	qe.Width, qe.Height = 60, 20
	qe.SetText("SELECT 1")
	res := models.BatchResult{Statements: []models.StatementResult{
		{SQL: "SELECT 1", Result: models.QueryResult{
			ResultSet: models.ResultSet{Columns: []string{"1"}, Rows: [][]models.Cell{{{Value: "1"}}}},
			HasRows:   true,
		}},
		{SQL: "DELETE FROM t", Result: models.QueryResult{RowsAffected: 4}},
		{SQL: "SELECT x", Result: models.QueryResult{Error: errors.New("unknown column")}},
	}}
	view := qe.View(false, 3, &res)
	assert.Contains(t, view, "1 rows")
	assert.Contains(t, view, "4 rows affected")
	assert.Contains(t, view, "unknown column")
}

func TestCompleter_Cycle(t *testing.T) {
	c := Completer{Source: func(word string) []string {
		if word == "no" {
			return []string{"note", "notified_at"}
		}
		return nil
	}}

	_, _, ok := c.Next("zz")
	assert.False(t, ok)
	assert.False(t, c.Active())

	remove, insert, ok := c.Next("no")
	require.True(t, ok)
	assert.Equal(t, "no", remove)
	assert.Equal(t, "note", insert)
	assert.True(t, c.Active())

	remove, insert, _ = c.Next("note")
	assert.Equal(t, "note", remove)
	assert.Equal(t, "notified_at", insert)

	_, insert, _ = c.Next("notified_at")
	assert.Equal(t, "note", insert)
	assert.Contains(t, c.View(theme.DefaultTheme(), 80), "notified_at")

	c.Reset()
	assert.False(t, c.Active())
	assert.Empty(t, c.View(theme.DefaultTheme(), 80))
}

func TestPromptInput_Complete(t *testing.T) {
	p := NewPromptInput(theme.DefaultTheme(), PromptRowFilter, "id > 5 AND no")
	p.Completer.Source = func(word string) []string {
		if word == "no" {
			return []string{"note", "notified_at"}
		}
		return nil
	}
	p.Width = 60
	assert.Contains(t, p.View(), "Tab: complete")

	p.Update(key("tab"))
	assert.Equal(t, "id > 5 AND note", p.Input.Value())
	p.Update(key("tab"))
	assert.Equal(t, "id > 5 AND notified_at", p.Input.Value())
	assert.Equal(t, len("id > 5 AND notified_at"), p.Input.Position())

	p.Update(key(" "))
	assert.False(t, p.Completer.Active())
	assert.Equal(t, "id > 5 AND notified_at ", p.Input.Value())

	// nothing completes the empty word after the space
	p.Update(key("tab"))
	assert.Equal(t, "id > 5 AND notified_at ", p.Input.Value())
}

func TestQueryEditor_Complete(t *testing.T) {
	qe := NewQueryEditor(theme.DefaultTheme(), "mysql")
	qe.Width, qe.Height = 60, 20
	qe.Completer.Source = func(word string) []string {
		switch word {
		case "ord":
			return []string{"orders", "ordered_at"}
		case "orders.cu":
			return []string{"orders.customer_id"}
		}
		return nil
	}

	qe.SetText("SELECT *\nFROM ord")
	assert.False(t, qe.Complete(), "only completes while editing")

	qe.StartEditing()
	assert.Equal(t, "ord", qe.WordBeforeCursor())
	require.True(t, qe.Complete())
	assert.Equal(t, "SELECT *\nFROM orders", qe.Text())
	assert.Contains(t, qe.View(false, 0, nil), "ordered_at")
	require.True(t, qe.Complete())
	assert.Equal(t, "SELECT *\nFROM ordered_at", qe.Text())

	qe.Update(key(" "))
	assert.False(t, qe.Completer.Active())

	qe.Input.InsertString("WHERE orders.cu")
	require.True(t, qe.Complete())
	assert.Equal(t, "SELECT *\nFROM ordered_at WHERE orders.customer_id", qe.Text())
}

func TestQueryEditor_Format(t *testing.T) {
	qe := NewQueryEditor(theme.DefaultTheme(), "mysql")
	qe.SetText("select a from t where b = 1")
	qe.Format()
	assert.Equal(t, "SELECT a\nFROM t\nWHERE b = 1", qe.Text())

	qe.SetText("   ")
	qe.Format()
	assert.Equal(t, "   ", qe.Text())
}

func TestQueryEditor_StepResult(t *testing.T) {
	qe := NewQueryEditor(theme.DefaultTheme(), "mysql")
	qe.Width, qe.Height = 60, 20
	rows := func(col, value string) models.QueryResult {
		return models.QueryResult{
			ResultSet: models.ResultSet{Columns: []string{col}, Rows: [][]models.Cell{{{Value: value}}}},
			HasRows:   true,
		}
	}
	res := models.BatchResult{Statements: []models.StatementResult{
		{SQL: "SELECT first_col", Result: rows("first_col", "alpha")},
		{SQL: "SELECT second_col", Result: rows("second_col", "beta")},
		{SQL: "DELETE FROM t", Result: models.QueryResult{RowsAffected: 4}},
	}}

	view := qe.View(false, 3, &res)
	assert.Contains(t, view, "▶ #2")
	assert.Contains(t, view, "beta")
	assert.NotContains(t, view, "alpha")

	qe.StepResult(&res, -1)
	assert.Equal(t, 0, qe.Selected)
	view = qe.View(false, 3, &res)
	assert.Contains(t, view, "▶ #1")
	assert.Contains(t, view, "alpha")
	assert.NotContains(t, view, "beta")

	qe.StepResult(&res, -1)
	assert.Equal(t, 0, qe.Selected)
	qe.StepResult(&res, 5)
	assert.Equal(t, 2, qe.Selected)
	view = qe.View(false, 3, &res)
	assert.Contains(t, view, "▶ #3")
	assert.NotContains(t, view, "alpha")
	assert.NotContains(t, view, "beta")

	qe.ResetResult()
	assert.Equal(t, -1, qe.Selected)
	qe.StepResult(nil, 1)
	assert.Equal(t, -1, qe.Selected)
}
