package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rebeliceyang/lazymy/internal/catalog"
	"github.com/rebeliceyang/lazymy/internal/db/connection"
	"github.com/rebeliceyang/lazymy/internal/db/dialect"
	"github.com/rebeliceyang/lazymy/internal/models"
	"github.com/rebeliceyang/lazymy/internal/navigation"
	"github.com/rebeliceyang/lazymy/internal/testutil"
	"github.com/rebeliceyang/lazymy/internal/ui/components"
)

func key(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+n":
		return tea.KeyMsg{Type: tea.KeyCtrlN}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func newApp(t *testing.T) (*App, *testutil.MockServer) {
	t.Helper()
	srv := testutil.NewMockServer(t)
	srv.Setup = func(_ string, mock sqlmock.Sqlmock) {
		mock.MatchExpectationsInOrder(false)
		for range 5 {
			mock.ExpectQuery("SHOW DATABASES").
				WillReturnRows(testutil.Rows([]string{"Database"}, []any{"shop"}))
		}
		mock.ExpectQuery("SELECT 1").
			WillReturnRows(testutil.Rows([]string{"1"}, []any{"1"}))
	}

	manager := connection.NewManager(srv.Open, nil)
	a := New(Options{Catalog: catalog.New(manager, nil), Manager: manager})
	a.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	return a, srv
}

func connect(t *testing.T, a *App) {
	t.Helper()
	a.Update(components.SessionConnectMsg{Config: testutil.Config("alpha")})
	require.False(t, a.showError, a.errorOverlay.Message)
}

func TestApp_Connect(t *testing.T) {
	a, srv := newApp(t)
	connect(t, a)

	assert.Equal(t, 1, srv.Opens())
	focused := a.Controller().Focused()
	require.NotNil(t, focused)
	assert.Equal(t, navigation.ViewHost, focused.Kind)
	assert.Equal(t, "Host: alpha", focused.Title)
	require.Len(t, focused.Entries, 1)
	assert.Equal(t, "shop", focused.Entries[0].Name)

	out := a.View()
	assert.Contains(t, out, "alpha")
	assert.Contains(t, out, "shop")
	assert.Contains(t, out, "root@alpha:3306")
}

func TestApp_ConnectionFailure(t *testing.T) {
	a, srv := newApp(t)
	srv.Fail = func(string) error { return errors.New("Access denied for user 'root'") }

	a.Update(components.SessionConnectMsg{Config: testutil.Config("alpha")})
	require.True(t, a.showError)
	assert.Equal(t, "Unable to connect to the database", a.errorOverlay.Message)
	assert.Contains(t, a.View(), "Access denied")

	// Keys other than dismiss are swallowed
	a.Update(key("?"))
	assert.Equal(t, models.NormalMode, a.state.ViewMode)
	a.Update(key("esc"))
	assert.False(t, a.showError)
}

func TestApp_HelpToggle(t *testing.T) {
	a, _ := newApp(t)

	a.Update(key("?"))
	assert.Equal(t, models.HelpMode, a.state.ViewMode)
	assert.Contains(t, a.View(), "Keyboard Shortcuts")

	a.Update(key("esc"))
	assert.Equal(t, models.NormalMode, a.state.ViewMode)
}

func TestApp_QueryViews(t *testing.T) {
	a, _ := newApp(t)
	connect(t, a)

	before := len(a.Controller().Views())
	a.Update(key("ctrl+n"))
	views := a.Controller().Views()
	require.Len(t, views, before+1)
	assert.Equal(t, models.RightPanel, a.state.FocusedPanel)
	assert.True(t, a.Controller().Focused().Closable())

	a.Update(key("w"))
	assert.Len(t, a.Controller().Views(), before)

	// The pinned views stay
	a.Update(key("w"))
	assert.Len(t, a.Controller().Views(), before)
	assert.Equal(t, "This view cannot be closed", a.status)
}

func TestApp_RunQuery(t *testing.T) {
	a, _ := newApp(t)
	connect(t, a)

	a.Update(key("ctrl+n"))
	v := a.Controller().Focused()
	require.Equal(t, navigation.ViewQuery, v.Kind)

	a.editor(v).SetText("SELECT 1")
	cmd := a.runQuery(v)
	require.NotNil(t, cmd)
	require.False(t, a.showError, a.errorOverlay.Message)

	batch, ok := a.batches[v.ID]
	require.True(t, ok)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := batch.Wait(ctx)
	require.NoError(t, err)

	a.Update(batchDoneMsg{View: v.ID})
	assert.Equal(t, "Query finished: 1 statement(s), 0 failed", a.status)
	res, ok := v.Console.Last()
	require.True(t, ok)
	require.Len(t, res.Statements, 1)
	assert.True(t, res.Statements[0].Result.HasRows)
	assert.Contains(t, a.View(), "1 rows")
}

func TestApp_EmptyQuery(t *testing.T) {
	a, _ := newApp(t)
	connect(t, a)

	a.Update(key("ctrl+n"))
	v := a.Controller().Focused()
	assert.Nil(t, a.runQuery(v))
	assert.True(t, a.showError)
	assert.Equal(t, "nothing to execute", a.errorOverlay.Message)
}

func TestApp_DatabaseFilterPrompt(t *testing.T) {
	a, _ := newApp(t)
	connect(t, a)

	a.state.FocusedPanel = models.LeftPanel
	a.Update(key("/"))
	require.Equal(t, models.PromptMode, a.state.ViewMode)

	a.Update(components.PromptSubmitMsg{Purpose: components.PromptDatabaseFilter, Value: "SH"})
	assert.Equal(t, models.NormalMode, a.state.ViewMode)
	assert.Equal(t, "sh", a.catalog.Filter(models.NodeDatabase))
}

func TestApp_Confirm(t *testing.T) {
	a, _ := newApp(t)

	called := false
	a.confirm("Really?", func() { called = true })
	require.Equal(t, models.ConfirmMode, a.state.ViewMode)
	assert.Contains(t, a.View(), "Really? (y/n)")
	a.Update(key("n"))
	assert.False(t, called)
	assert.Equal(t, models.NormalMode, a.state.ViewMode)

	a.confirm("Really?", func() { called = true })
	a.Update(key("y"))
	assert.True(t, called)

	a.config.General.ConfirmDestructiveOps = false
	called = false
	a.confirm("Really?", func() { called = true })
	assert.True(t, called)
	assert.Equal(t, models.NormalMode, a.state.ViewMode)
}

func TestApp_HistoryDisabled(t *testing.T) {
	a, _ := newApp(t)
	a.openHistory()
	assert.Equal(t, "History is disabled", a.status)
	assert.Equal(t, models.NormalMode, a.state.ViewMode)
}

// expectShop serves the shop database with an orders table on every open
func expectShop(_ string, mock sqlmock.Sqlmock) {
	mock.MatchExpectationsInOrder(false)
	for range 5 {
		mock.ExpectQuery("SHOW DATABASES").
			WillReturnRows(testutil.Rows([]string{"Database"}, []any{"shop"}))
		mock.ExpectQuery("SHOW TABLE STATUS").
			WillReturnRows(testutil.Rows([]string{"Name", "Rows", "Data_length", "Index_length"},
				[]any{"orders", "2", "16384", "0"},
				[]any{"order_items", "5", "16384", "0"},
			))
	}
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
		WillReturnRows(testutil.Rows([]string{"id", "note"}, []any{"1", "first"}))
	mock.ExpectQuery("SHOW TABLE STATUS WHERE Name LIKE ?").WithArgs("orders").
		WillReturnRows(testutil.Rows([]string{"Name", "Rows", "Data_length", "Index_length"},
			[]any{"orders", "1", "16384", "0"}))
	mock.ExpectQuery("SELECT 1").
		WillReturnRows(testutil.Rows([]string{"1"}, []any{"1"}))
	mock.ExpectQuery("SELECT 2").
		WillReturnRows(testutil.Rows([]string{"2"}, []any{"2"}))
}

func selectShop(t *testing.T, a *App, table string) {
	t.Helper()
	id, ok := a.catalog.Find("uuid-alpha", "shop", "")
	require.True(t, ok)
	a.selectNode(id)
	require.False(t, a.showError, a.errorOverlay.Message)
	if table != "" {
		id, ok = a.catalog.Find("uuid-alpha", "shop", table)
		require.True(t, ok)
		a.selectNode(id)
		require.False(t, a.showError, a.errorOverlay.Message)
	}
	a.state.FocusedPanel = models.RightPanel
}

func TestApp_QueryCompletion(t *testing.T) {
	a, srv := newApp(t)
	srv.Setup = expectShop
	connect(t, a)
	selectShop(t, a, "")

	a.Update(key("ctrl+n"))
	v := a.Controller().Focused()
	require.Equal(t, navigation.ViewQuery, v.Kind)
	a.Update(key("i"))
	require.Equal(t, models.QueryEditMode, a.state.ViewMode)

	ed := a.editor(v)
	ed.SetText("SELECT * FROM ord")
	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "SELECT * FROM orders", ed.Text())
	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "SELECT * FROM order_items", ed.Text())
	assert.Equal(t, "shop", a.sources[v.ID].Database())

	a.Update(key("w"))
	assert.Equal(t, "SELECT * FROM order_itemsw", ed.Text())
	a.Update(key("esc"))
	a.Update(key("w"))
	assert.NotContains(t, a.sources, v.ID)
	assert.NotContains(t, a.editors, v.ID)
}

func TestApp_RowFilterCompletion(t *testing.T) {
	a, srv := newApp(t)
	srv.Setup = expectShop
	connect(t, a)
	selectShop(t, a, "orders")
	require.Equal(t, navigation.ViewTableData, a.Controller().Focused().Kind)

	a.Update(key("f"))
	require.Equal(t, models.PromptMode, a.state.ViewMode)
	require.NotNil(t, a.prompt.Completer.Source)

	a.Update(key("no"))
	a.Update(tea.KeyMsg{Type: tea.KeyTab})
	assert.Equal(t, "note", a.prompt.Input.Value())
	assert.Contains(t, a.View(), "note")
}

func TestApp_FormatAndStepResults(t *testing.T) {
	a, srv := newApp(t)
	srv.Setup = expectShop
	connect(t, a)

	a.Update(key("ctrl+n"))
	v := a.Controller().Focused()
	a.editor(v).SetText("select 1;select 2")
	a.Update(key("F"))
	assert.Equal(t, "SELECT 1;\nSELECT 2", a.editor(v).Text())
	assert.Equal(t, "SELECT 1;\nSELECT 2", v.Console.Text())

	require.NotNil(t, a.runQuery(v))
	batch := a.batches[v.ID]
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := batch.Wait(ctx)
	require.NoError(t, err)
	a.Update(batchDoneMsg{View: v.ID})
	res, ok := v.Console.Last()
	require.True(t, ok)
	require.Len(t, res.Statements, 2)

	ed := a.editor(v)
	assert.Equal(t, -1, ed.Selected)
	assert.Contains(t, a.View(), "▶ #2")

	a.Update(key("<"))
	assert.Equal(t, 0, ed.Selected)
	assert.Contains(t, a.View(), "▶ #1")
	a.Update(key(">"))
	assert.Equal(t, 1, ed.Selected)
}
