package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/rebeliceyang/lazymy/internal/catalog"
	"github.com/rebeliceyang/lazymy/internal/completion"
	"github.com/rebeliceyang/lazymy/internal/config"
	"github.com/rebeliceyang/lazymy/internal/db/connection"
	"github.com/rebeliceyang/lazymy/internal/db/query"
	"github.com/rebeliceyang/lazymy/internal/grid"
	"github.com/rebeliceyang/lazymy/internal/history"
	"github.com/rebeliceyang/lazymy/internal/models"
	"github.com/rebeliceyang/lazymy/internal/navigation"
	"github.com/rebeliceyang/lazymy/internal/sessions"
	"github.com/rebeliceyang/lazymy/internal/ui/components"
	"github.com/rebeliceyang/lazymy/internal/ui/help"
	"github.com/rebeliceyang/lazymy/internal/ui/theme"
)

// Options holds the collaborators the application drives. Sessions and
// History may be nil.
type Options struct {
	Config   *config.Config
	Catalog  *catalog.Catalog
	Manager  *connection.Manager
	Sessions *sessions.Store
	History  *history.Store
	Logger   *slog.Logger
}

// App is the main application model
type App struct {
	state  models.AppState
	config *config.Config
	theme  theme.Theme
	logger *slog.Logger

	catalog  *catalog.Catalog
	manager  *connection.Manager
	ctrl     *navigation.Controller
	sessions *sessions.Store
	history  *history.Store

	leftPanel  components.Panel
	rightPanel components.Panel
	tree       *components.CatalogTree

	// Per view presentation state
	grids   map[navigation.ViewID]*components.GridView
	editors map[navigation.ViewID]*components.QueryEditor
	cursors map[navigation.ViewID]int
	batches map[navigation.ViewID]*query.Batch
	sources map[navigation.ViewID]*completion.Source

	prompt      *components.PromptInput
	editTarget  cellRef
	dialog      *components.SessionDialog
	historyList *components.HistoryList
	pending     *confirmation

	showError    bool
	errorOverlay *components.ErrorOverlay
	status       string
}

type cellRef struct {
	view     navigation.ViewID
	row, col int
}

type confirmation struct {
	question string
	action   func()
}

// New creates a new App instance
func New(opts Options) *App {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.GetDefaults()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	state := models.NewAppState()
	if cfg.UI.PanelWidthRatio > 0 && cfg.UI.PanelWidthRatio < 100 {
		state.LeftPanelWidth = cfg.UI.PanelWidthRatio
	}
	th := theme.GetTheme(cfg.UI.Theme)

	var recorder query.Recorder
	if opts.History != nil {
		recorder = opts.History
	}
	worker := query.NewWorker(recorder, logger)

	a := &App{
		state:        state,
		config:       cfg,
		theme:        th,
		logger:       logger,
		catalog:      opts.Catalog,
		manager:      opts.Manager,
		ctrl:         navigation.New(opts.Catalog, opts.Manager, worker, grid.NewFilterMemory(), logger),
		sessions:     opts.Sessions,
		history:      opts.History,
		tree:         components.NewCatalogTree(opts.Catalog, th),
		grids:        make(map[navigation.ViewID]*components.GridView),
		editors:      make(map[navigation.ViewID]*components.QueryEditor),
		cursors:      make(map[navigation.ViewID]int),
		batches:      make(map[navigation.ViewID]*query.Batch),
		sources:      make(map[navigation.ViewID]*completion.Source),
		errorOverlay: components.NewErrorOverlay(th),
		leftPanel:    components.Panel{Title: "Servers", Theme: th, Focused: true},
		rightPanel:   components.Panel{Theme: th},
	}

	a.updatePanelDimensions()
	if a.sessions != nil {
		a.openSessions()
	}
	return a
}

// Controller exposes the navigation controller
func (a *App) Controller() *navigation.Controller {
	return a.ctrl
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(listenCatalog(a.catalog), listenEvents(a.ctrl))
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.state.Width = msg.Width
		a.state.Height = msg.Height
		a.updatePanelDimensions()
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)

	case catalogChangedMsg:
		return a, listenCatalog(a.catalog)

	case navigationEventMsg:
		a.handleEvent(msg.Event)
		return a, listenEvents(a.ctrl)

	case batchTickMsg:
		if b, ok := a.batches[msg.View]; ok && b.Running() {
			return a, tickBatch(msg.View)
		}
		return a, nil

	case batchDoneMsg:
		a.collectBatch(msg.View)
		return a, nil

	case components.CatalogSelectedMsg:
		a.selectNode(msg.ID)
	case components.CatalogExpandMsg:
		a.expandNode(msg.ID)
	case components.CatalogOpenTabMsg:
		a.openInNewTab(msg.ID)

	case components.PromptSubmitMsg:
		a.closePrompt()
		a.submitPrompt(msg)
	case components.PromptCancelMsg:
		a.closePrompt()

	case components.SessionConnectMsg:
		a.closeDialog()
		a.connect(msg.Config)
	case components.SessionSaveMsg:
		a.closeDialog()
		a.saveSession(msg)
	case components.SessionDeleteMsg:
		a.deleteSession(msg.UUID)
	case components.SessionDialogCloseMsg:
		a.closeDialog()

	case components.HistoryPickMsg:
		a.closeHistory()
		a.loadHistory(msg.Query)
	case components.HistoryCloseMsg:
		a.closeHistory()
	}
	return a, nil
}

// View implements tea.Model
func (a *App) View() string {
	if a.showError {
		return lipgloss.Place(
			a.state.Width, a.state.Height,
			lipgloss.Center, lipgloss.Center,
			a.errorOverlay.View(),
		)
	}

	switch a.state.ViewMode {
	case models.HelpMode:
		return help.Render(a.state.Width, a.state.Height, a.theme)
	case models.SessionMode:
		if a.dialog != nil {
			return lipgloss.Place(a.state.Width, a.state.Height, lipgloss.Center, lipgloss.Center, a.dialog.View())
		}
	case models.HistoryMode:
		if a.historyList != nil {
			return lipgloss.Place(a.state.Width, a.state.Height, lipgloss.Center, lipgloss.Center, a.historyList.View())
		}
	}

	return a.renderNormalView()
}

func (a *App) renderNormalView() string {
	topBar := lipgloss.NewStyle().
		Width(a.state.Width).
		Background(a.theme.BorderFocused).
		Foreground(a.theme.Foreground).
		Padding(0, 2).
		Render(a.formatStatusBar("lazymy", a.connectionLabel()))

	a.tree.Width = a.leftPanel.Width
	a.tree.Height = a.leftPanel.Height - 1
	a.leftPanel.Content = a.tree.View()
	a.leftPanel.Focused = a.state.FocusedPanel == models.LeftPanel
	a.rightPanel.Focused = a.state.FocusedPanel == models.RightPanel

	tabs := components.TabBar{Width: a.rightPanel.Width, Theme: a.theme}
	content := tabs.View(a.ctrl.Views(), a.focusedID())
	if v := a.ctrl.Focused(); v != nil {
		content += "\n\n" + a.renderView(v, a.rightPanel.Width, a.rightPanel.Height-2)
	}
	a.rightPanel.Content = content

	panels := lipgloss.JoinHorizontal(lipgloss.Top, a.leftPanel.View(), a.rightPanel.View())
	return lipgloss.JoinVertical(lipgloss.Left, topBar, panels, a.renderBottomBar())
}

func (a *App) renderBottomBar() string {
	if a.state.ViewMode == models.PromptMode && a.prompt != nil {
		a.prompt.Width = a.state.Width - 2
		return a.prompt.View()
	}

	style := lipgloss.NewStyle().
		Width(a.state.Width).
		Background(a.theme.Selection).
		Foreground(a.theme.Foreground).
		Padding(0, 2)
	if a.state.ViewMode == models.ConfirmMode && a.pending != nil {
		return style.Foreground(a.theme.Warning).Bold(true).Render(a.pending.question + " (y/n)")
	}

	left := a.status
	if left == "" {
		left = a.keyHints()
	}
	return style.Render(a.formatStatusBar(left, "? help"))
}

func (a *App) keyHints() string {
	if a.state.FocusedPanel == models.LeftPanel {
		return "[enter] select │ [o] new tab │ [/] filter │ [s] sessions │ [tab] views │ [q] quit"
	}
	v := a.ctrl.Focused()
	if v == nil {
		return "[tab] tree │ [q] quit"
	}
	switch v.Kind {
	case navigation.ViewTableData:
		return "[f] filter │ [e] edit │ [g] follow key │ [D] delete │ [X] export │ [R] reload"
	case navigation.ViewQuery:
		if a.state.ViewMode == models.QueryEditMode {
			return "[esc] stop editing │ [ctrl+r] run"
		}
		return "[i] edit │ [ctrl+r] run │ [ctrl+x] stop │ [H] history │ [ctrl+n] new query"
	default:
		return "[enter] open │ [ / ] switch view │ [w] close view │ [tab] tree"
	}
}

func (a *App) renderView(v *navigation.View, width, height int) string {
	muted := lipgloss.NewStyle().Foreground(a.theme.Muted)
	switch v.Kind {
	case navigation.ViewHost, navigation.ViewDatabase:
		heading := "Databases"
		if v.Kind == navigation.ViewDatabase {
			heading = fmt.Sprintf("Tables in %s", v.Database)
		}
		list := components.EntryList{Width: width, Theme: a.theme}
		return muted.Render(heading) + "\n" + list.View(v.Entries, a.cursors[v.ID])

	case navigation.ViewTableInfo:
		if v.Table == "" {
			return muted.Render("No table selected")
		}
		info := components.TableInfo{Width: width, Theme: a.theme}
		return info.View(v.Table, v.Columns, v.ForeignKeys)

	case navigation.ViewTableData:
		gv := a.gridView(v.ID)
		gv.Width, gv.Height = width, height
		return gv.View(v.Grid)

	case navigation.ViewQuery:
		ed := a.editor(v)
		ed.Width, ed.Height = width, height
		var last *models.BatchResult
		if res, ok := v.Console.Last(); ok {
			last = &res
		}
		completed := 0
		b, running := a.batches[v.ID]
		if running {
			completed = b.Completed()
		}
		return ed.View(running, completed, last)
	}
	return ""
}

func (a *App) connectionLabel() string {
	conn, err := a.manager.Current()
	if err != nil {
		if msg := a.manager.LastError(); msg != "" {
			return "disconnected: " + msg
		}
		return "not connected"
	}
	label := conn.Config().String()
	if db := conn.Database(); db != "" {
		label += "/" + db
	}
	return label
}

func (a *App) focusedID() navigation.ViewID {
	if v := a.ctrl.Focused(); v != nil {
		return v.ID
	}
	return -1
}

// updatePanelDimensions calculates panel sizes based on window size
func (a *App) updatePanelDimensions() {
	if a.state.Width <= 0 || a.state.Height <= 0 {
		return
	}

	// top and bottom bars plus the panel borders
	contentHeight := max(a.state.Height-4, 5)

	leftWidth := max((a.state.Width*a.state.LeftPanelWidth)/100, 20)
	rightWidth := a.state.Width - leftWidth - 4
	if rightWidth < 20 {
		rightWidth = 20
		leftWidth = a.state.Width - rightWidth - 4
	}

	a.leftPanel.Width = leftWidth
	a.leftPanel.Height = contentHeight
	a.rightPanel.Width = rightWidth
	a.rightPanel.Height = contentHeight
}

// formatStatusBar formats a status bar with left and right aligned content
func (a *App) formatStatusBar(left, right string) string {
	availableWidth := max(a.state.Width-4, 0)
	leftLen := lipgloss.Width(left)
	rightLen := lipgloss.Width(right)

	if leftLen+rightLen > availableWidth {
		return lipgloss.NewStyle().MaxWidth(availableWidth).Render(left)
	}
	spacing := availableWidth - leftLen - rightLen
	return left + lipgloss.NewStyle().Width(spacing).Render("") + right
}

func (a *App) gridView(id navigation.ViewID) *components.GridView {
	gv, ok := a.grids[id]
	if !ok {
		gv = components.NewGridView(a.theme, a.config.Data.MaxCellDisplayLength)
		a.grids[id] = gv
	}
	return gv
}

func (a *App) editor(v *navigation.View) *components.QueryEditor {
	ed, ok := a.editors[v.ID]
	if !ok {
		language := "mysql"
		if conn := v.Console.Conn(); conn.IsOpen() {
			language = conn.Dialect().Name()
		} else if conn, err := a.manager.Current(); err == nil {
			language = conn.Dialect().Name()
		}
		ed = components.NewQueryEditor(a.theme, language)
		ed.SetText(v.Console.Text())
		a.editors[v.ID] = ed
	}
	return ed
}

// completionSource returns the names completing the text of a Query view.
// Tables come from the catalog when it has loaded the live database, from
// the server otherwise.
func (a *App) completionSource(v *navigation.View) *completion.Source {
	src, ok := a.sources[v.ID]
	if !ok {
		src = completion.NewSource(true, a.logger)
		a.sources[v.ID] = src
	}
	conn, err := a.manager.Current()
	if err != nil || !conn.IsOpen() || conn.Database() == "" || src.Database() == conn.Database() {
		return src
	}

	src.Reset(conn.Database())
	if a.catalog != nil {
		if tables, ok := a.catalog.TableNames(conn.Config().UUID, conn.Database()); ok {
			src.SetTables(tables)
			return src
		}
	}
	ctx, cancel := a.opContext()
	defer cancel()
	if err := src.LoadTables(ctx, conn); err != nil {
		a.logger.Debug("completion tables unavailable", slog.String("error", err.Error()))
	}
	return src
}

// completeQuery completes the word at the cursor of the Query view editor
func (a *App) completeQuery(v *navigation.View, ed *components.QueryEditor) {
	src := a.completionSource(v)
	ed.Completer.Source = src.Candidates
	if !ed.Completer.Active() {
		if table, _, ok := completion.Qualified(ed.WordBeforeCursor()); ok {
			if conn, err := a.manager.Current(); err == nil && conn.IsOpen() {
				ctx, cancel := a.opContext()
				_ = src.LoadColumns(ctx, conn, table)
				cancel()
			}
		}
	}
	if !ed.Complete() {
		a.status = "No completion"
	}
}

// opContext bounds the synchronous catalog, navigation and grid calls
func (a *App) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), time.Duration(a.config.Performance.ConnectTimeout)*time.Millisecond)
}

// fail shows err in the error overlay
func (a *App) fail(title string, err error) {
	a.logger.Warn(title, slog.String("error", err.Error()))
	a.errorOverlay.Width = min(max(a.state.Width-10, 40), 100)
	a.errorOverlay.SetError(title, err)
	a.showError = true
}

func (a *App) quit() tea.Cmd {
	a.ctrl.Shutdown()
	return tea.Quit
}
