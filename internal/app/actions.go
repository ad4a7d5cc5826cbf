package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rebeliceyang/lazymy/internal/catalog"
	"github.com/rebeliceyang/lazymy/internal/completion"
	"github.com/rebeliceyang/lazymy/internal/db/query"
	"github.com/rebeliceyang/lazymy/internal/export"
	"github.com/rebeliceyang/lazymy/internal/models"
	"github.com/rebeliceyang/lazymy/internal/navigation"
	"github.com/rebeliceyang/lazymy/internal/ui/components"
)

// catalogChangedMsg is sent when some catalog subtree was (re)loaded
type catalogChangedMsg struct{}

// navigationEventMsg forwards a controller event
type navigationEventMsg struct {
	Event navigation.Event
}

// batchDoneMsg is sent once the batch of a query view finished
type batchDoneMsg struct {
	View navigation.ViewID
}

// batchTickMsg refreshes the progress of a running batch
type batchTickMsg struct {
	View navigation.ViewID
}

const tickInterval = 250 * time.Millisecond

func listenCatalog(cat *catalog.Catalog) tea.Cmd {
	ch := cat.Changes()
	return func() tea.Msg {
		<-ch
		return catalogChangedMsg{}
	}
}

func listenEvents(ctrl *navigation.Controller) tea.Cmd {
	ch := ctrl.Events()
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return navigationEventMsg{Event: ev}
	}
}

func waitBatch(id navigation.ViewID, b *query.Batch) tea.Cmd {
	return func() tea.Msg {
		<-b.Done()
		return batchDoneMsg{View: id}
	}
}

func tickBatch(id navigation.ViewID) tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg {
		return batchTickMsg{View: id}
	})
}

func (a *App) handleEvent(ev navigation.Event) {
	a.logger.Debug("navigation event", slog.String("event", ev.Kind.String()), slog.Int("view", int(ev.View)))
	switch ev.Kind {
	case navigation.EventRowsLoaded:
		gv, ok := a.grids[ev.View]
		if v, found := a.ctrl.View(ev.View); ok && found {
			gv.Sync(v.Grid)
		}
	case navigation.EventHostReloaded:
		a.cursors[ev.View] = 0
	case navigation.EventDatabaseChanged:
		a.cursors[ev.View] = 0
		for _, src := range a.sources {
			src.Reset("")
		}
	case navigation.EventViewClosed:
		a.pruneViews()
	}
}

// pruneViews drops the presentation state of views that no longer exist.
// Events can be dropped, so it also runs after every action closing views.
func (a *App) pruneViews() {
	live := make(map[navigation.ViewID]bool)
	for _, v := range a.ctrl.Views() {
		live[v.ID] = true
	}
	for id := range a.grids {
		if !live[id] {
			delete(a.grids, id)
		}
	}
	for id := range a.editors {
		if !live[id] {
			delete(a.editors, id)
		}
	}
	for id := range a.cursors {
		if !live[id] {
			delete(a.cursors, id)
		}
	}
	for id := range a.batches {
		if !live[id] {
			delete(a.batches, id)
		}
	}
	for id := range a.sources {
		if !live[id] {
			delete(a.sources, id)
		}
	}
}

func (a *App) selectNode(id models.NodeID) {
	ctx, cancel := a.opContext()
	defer cancel()

	if err := a.ctrl.Select(ctx, id); err != nil {
		a.fail("Selection failed", err)
	}
	a.pruneViews()
	a.tree.Active = a.ctrl.Selected()
}

func (a *App) expandNode(id models.NodeID) {
	ctx, cancel := a.opContext()
	defer cancel()

	if err := a.catalog.Expand(ctx, id); err != nil {
		a.tree.Expanded[id] = false
		a.fail("Expand failed", err)
		return
	}
	if err := a.ctrl.HandleCatalogChange(ctx); err != nil {
		a.logger.Warn("views not synchronized", slog.String("error", err.Error()))
	}
	a.tree.Active = a.ctrl.Selected()
}

func (a *App) refreshServer(id models.NodeID) {
	ctx, cancel := a.opContext()
	defer cancel()

	sid, err := a.catalog.ServerOf(id)
	if err != nil {
		a.fail("Refresh failed", err)
		return
	}
	if err := a.catalog.Refresh(ctx, sid); err != nil {
		a.fail("Refresh failed", err)
		return
	}
	if err := a.ctrl.HandleCatalogChange(ctx); err != nil {
		a.logger.Warn("views not synchronized", slog.String("error", err.Error()))
	}
	a.status = "Server refreshed"
}

func (a *App) removeServer(id models.NodeID) {
	cfg, err := a.catalog.ServerConfig(id)
	if err != nil {
		a.fail("Remove failed", err)
		return
	}
	a.confirm(fmt.Sprintf("Remove %s from the tree?", cfg.Name), func() {
		if err := a.catalog.RemoveServer(cfg.UUID); err != nil {
			a.fail("Remove failed", err)
			return
		}
		a.status = fmt.Sprintf("Removed %s", cfg.Name)
	})
}

func (a *App) openInNewTab(id models.NodeID) {
	ctx, cancel := a.opContext()
	defer cancel()

	if err := a.ctrl.OpenInNewTab(ctx, id); err != nil {
		a.fail("Open failed", err)
		return
	}
	a.state.FocusedPanel = models.RightPanel
}

func (a *App) activate(id navigation.ViewID) {
	ctx, cancel := a.opContext()
	defer cancel()

	if err := a.ctrl.Activate(ctx, id); err != nil {
		a.fail("Load failed", err)
	}
}

// cycleView focuses the previous or next tab
func (a *App) cycleView(delta int) {
	views := a.ctrl.Views()
	if len(views) == 0 {
		return
	}
	current := 0
	for i, v := range views {
		if v.ID == a.focusedID() {
			current = i
			break
		}
	}
	next := (current + delta + len(views)) % len(views)
	a.activate(views[next].ID)
	a.state.FocusedPanel = models.RightPanel
}

func (a *App) closeFocused() {
	err := a.ctrl.CloseFocused()
	a.pruneViews()
	switch {
	case errors.Is(err, navigation.ErrViewPinned):
		a.status = "This view cannot be closed"
	case err != nil:
		a.fail("Close failed", err)
	}
}

// connect adds the session's server to the tree and selects it
func (a *App) connect(cfg models.ConnectionConfig) {
	if a.sessions != nil {
		cfg = a.sessions.WithPassword(cfg)
	}

	ctx, cancel := a.opContext()
	id, _ := a.catalog.AddServer(ctx, cfg)
	cancel()
	if id == models.NoNode {
		a.fail("Connection failed", models.NewConnectionError(errors.New(a.manager.LastError())))
		return
	}

	a.tree.SetCursor(id)
	a.tree.Expanded[id] = true
	a.state.FocusedPanel = models.LeftPanel
	a.selectNode(id)
}

func (a *App) saveSession(msg components.SessionSaveMsg) {
	cfg := msg.Config
	if a.sessions != nil {
		var err error
		if msg.New {
			cfg, err = a.sessions.Create(cfg)
		} else {
			err = a.sessions.Update(cfg)
		}
		if err != nil {
			a.fail("Session not saved", err)
			return
		}
	}
	if !msg.New {
		// Reconnect with the edited settings
		_ = a.catalog.RemoveServer(cfg.UUID)
	}
	a.connect(cfg)
}

func (a *App) deleteSession(uuid string) {
	if a.sessions == nil {
		return
	}
	if err := a.sessions.Delete(uuid); err != nil {
		a.fail("Session not deleted", err)
		return
	}
	var notFound *models.NotFoundError
	if err := a.catalog.RemoveServer(uuid); err != nil && !errors.As(err, &notFound) {
		a.logger.Warn("failed to remove server", slog.String("error", err.Error()))
	}
	if a.dialog != nil {
		a.dialog.Sessions = a.sessions.List()
		a.dialog.SelectedIndex = min(a.dialog.SelectedIndex, max(len(a.dialog.Sessions)-1, 0))
	}
}

func (a *App) openSessions() {
	var list []models.ConnectionConfig
	if a.sessions != nil {
		list = a.sessions.List()
	}
	a.dialog = components.NewSessionDialog(a.theme, list)
	a.dialog.Width = min(max(a.state.Width-10, 50), 90)
	if len(list) == 0 {
		a.dialog.OpenForm(models.NewConnectionConfig(), true)
	}
	a.state.ViewMode = models.SessionMode
}

func (a *App) closeDialog() {
	a.dialog = nil
	a.state.ViewMode = models.NormalMode
}

func (a *App) openPrompt(purpose components.PromptPurpose, value string) {
	a.prompt = components.NewPromptInput(a.theme, purpose, value)
	a.state.ViewMode = models.PromptMode

	if purpose != components.PromptRowFilter {
		return
	}
	if v := a.ctrl.Focused(); v != nil && v.Grid != nil {
		src := completion.NewSource(false, a.logger)
		src.SetColumns(v.Grid.Table(), v.Grid.Columns())
		a.prompt.Completer.Source = src.Candidates
	}
}

func (a *App) closePrompt() {
	a.prompt = nil
	a.state.ViewMode = models.NormalMode
}

func (a *App) submitPrompt(msg components.PromptSubmitMsg) {
	switch msg.Purpose {
	case components.PromptDatabaseFilter:
		a.catalog.SetFilter(models.NodeDatabase, msg.Value)
	case components.PromptTableFilter:
		a.catalog.SetFilter(models.NodeTable, msg.Value)
	case components.PromptRowFilter:
		if v := a.ctrl.Focused(); v != nil && v.Kind == navigation.ViewTableData && v.Grid != nil {
			a.applyFilter(v, msg.Value)
		}
	case components.PromptEditCell:
		a.editCell(msg.Value)
	case components.PromptExport:
		a.exportRows(msg.Value)
	}
}

// applyFilter remembers expr for the table and reloads its rows
func (a *App) applyFilter(v *navigation.View, expr string) {
	ctx, cancel := a.opContext()
	defer cancel()

	v.Grid.SetFilter(expr)
	if err := v.Grid.ApplyFilter(ctx); err != nil {
		a.fail("Filter failed", err)
		return
	}
	a.gridView(v.ID).Reset()
}

func (a *App) editCell(value string) {
	v, ok := a.ctrl.View(a.editTarget.view)
	if !ok || v.Grid == nil {
		return
	}
	ctx, cancel := a.opContext()
	defer cancel()

	if err := v.Grid.EditCell(ctx, a.editTarget.row, a.editTarget.col, &value); err != nil {
		a.fail("Edit failed", err)
		return
	}
	a.status = "Cell updated"
}

func (a *App) exportRows(path string) {
	v := a.ctrl.Focused()
	if v == nil || v.Grid == nil || v.Grid.Result() == nil {
		return
	}
	rs := v.Grid.Result()
	if err := export.ToFile(path, rs); err != nil {
		a.fail("Export failed", err)
		return
	}
	a.status = fmt.Sprintf("Exported %d rows to %s", len(rs.Rows), path)
}

// confirm runs action now, or after a y answer when destructive operations need confirmation
func (a *App) confirm(question string, action func()) {
	if !a.config.General.ConfirmDestructiveOps {
		action()
		return
	}
	a.pending = &confirmation{question: question, action: action}
	a.state.ViewMode = models.ConfirmMode
}

func (a *App) runQuery(v *navigation.View) tea.Cmd {
	v.Console.SetText(a.editor(v).Text())

	// The batch outlives this call; it is stopped through the console
	batch, err := a.ctrl.RunQuery(context.Background(), v.ID)
	if err != nil {
		a.fail("Query failed", err)
		return nil
	}
	a.batches[v.ID] = batch
	a.status = fmt.Sprintf("Running %d statement(s)", len(batch.Statements()))
	return tea.Batch(waitBatch(v.ID, batch), tickBatch(v.ID))
}

func (a *App) collectBatch(id navigation.ViewID) {
	delete(a.batches, id)
	v, ok := a.ctrl.View(id)
	if !ok || v.Console == nil || !v.Console.Collect() {
		return
	}
	res, _ := v.Console.Last()
	if ed, ok := a.editors[id]; ok {
		ed.ResetResult()
	}
	failed := 0
	for _, st := range res.Statements {
		if st.Result.Error != nil {
			failed++
		}
	}
	a.status = fmt.Sprintf("Query finished: %d statement(s), %d failed", len(res.Statements), failed)
	if res.Stopped {
		a.status += ", stopped"
	}
}

func (a *App) openHistory() {
	if a.history == nil {
		a.status = "History is disabled"
		return
	}
	entries, err := a.history.GetRecent(100)
	if err != nil {
		a.fail("History unavailable", err)
		return
	}
	a.historyList = components.NewHistoryList(a.theme, entries)
	a.historyList.Width = min(max(a.state.Width-10, 50), 120)
	a.historyList.Height = max(a.state.Height-4, 10)
	a.state.ViewMode = models.HistoryMode
}

func (a *App) closeHistory() {
	a.historyList = nil
	a.state.ViewMode = models.NormalMode
}

func (a *App) loadHistory(text string) {
	v := a.ctrl.Focused()
	if v == nil || v.Kind != navigation.ViewQuery {
		return
	}
	a.editor(v).SetText(text)
	v.Console.SetText(text)
}
