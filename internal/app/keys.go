package app

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rebeliceyang/lazymy/internal/grid"
	"github.com/rebeliceyang/lazymy/internal/models"
	"github.com/rebeliceyang/lazymy/internal/navigation"
	"github.com/rebeliceyang/lazymy/internal/ui/components"
)

func (a *App) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return a, a.quit()
	}

	// The error overlay consumes everything but dismiss and quit
	if a.showError {
		switch key {
		case "esc", "enter":
			a.showError = false
		case "q":
			return a, a.quit()
		}
		return a, nil
	}

	var cmd tea.Cmd
	switch a.state.ViewMode {
	case models.HelpMode:
		if key == "?" || key == "esc" || key == "q" {
			a.state.ViewMode = models.NormalMode
		}
		return a, nil
	case models.PromptMode:
		a.prompt, cmd = a.prompt.Update(msg)
		return a, cmd
	case models.SessionMode:
		a.dialog, cmd = a.dialog.Update(msg)
		return a, cmd
	case models.HistoryMode:
		a.historyList, cmd = a.historyList.Update(msg)
		return a, cmd
	case models.ConfirmMode:
		pending := a.pending
		a.pending = nil
		a.state.ViewMode = models.NormalMode
		if key == "y" && pending != nil {
			pending.action()
		}
		return a, nil
	case models.QueryEditMode:
		return a.handleQueryEditKey(msg)
	}

	a.status = ""
	switch key {
	case "q":
		return a, a.quit()
	case "?":
		a.state.ViewMode = models.HelpMode
		return a, nil
	case "tab":
		if a.state.FocusedPanel == models.LeftPanel {
			a.state.FocusedPanel = models.RightPanel
		} else {
			a.state.FocusedPanel = models.LeftPanel
		}
		return a, nil
	case "s":
		a.openSessions()
		return a, nil
	case "[":
		a.cycleView(-1)
		return a, nil
	case "]":
		a.cycleView(1)
		return a, nil
	case "w":
		a.closeFocused()
		return a, nil
	case "ctrl+n":
		a.ctrl.AddQueryView()
		a.state.FocusedPanel = models.RightPanel
		return a, nil
	}

	if a.state.FocusedPanel == models.LeftPanel {
		return a.handleTreeKey(msg)
	}
	return a.handleViewKey(msg)
}

func (a *App) handleTreeKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	node, ok := a.tree.Current()
	switch msg.String() {
	case "r":
		if ok {
			a.refreshServer(node.ID)
		}
		return a, nil
	case "x":
		if ok {
			a.removeServer(node.ID)
		}
		return a, nil
	case "/":
		if ok {
			if node.Kind == models.NodeTable {
				a.openPrompt(components.PromptTableFilter, a.catalog.Filter(models.NodeTable))
			} else {
				a.openPrompt(components.PromptDatabaseFilter, a.catalog.Filter(models.NodeDatabase))
			}
		}
		return a, nil
	}

	var cmd tea.Cmd
	a.tree, cmd = a.tree.Update(msg)
	return a, cmd
}

func (a *App) handleViewKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := a.ctrl.Focused()
	if v == nil {
		return a, nil
	}
	switch v.Kind {
	case navigation.ViewHost, navigation.ViewDatabase:
		a.handleEntryKey(v, msg.String())
	case navigation.ViewTableData:
		a.handleDataKey(v, msg.String())
	case navigation.ViewQuery:
		return a.handleQueryKey(v, msg)
	}
	return a, nil
}

func (a *App) handleEntryKey(v *navigation.View, key string) {
	cursor := a.cursors[v.ID]
	switch key {
	case "up", "k":
		cursor--
	case "down", "j":
		cursor++
	case "enter":
		if cursor < 0 || cursor >= len(v.Entries) {
			return
		}
		name := v.Entries[cursor].Name
		ctx, cancel := a.opContext()
		defer cancel()

		var err error
		if v.Kind == navigation.ViewHost {
			err = a.ctrl.ShowDatabase(ctx, name)
		} else {
			err = a.ctrl.ShowTable(ctx, name)
		}
		if err != nil {
			a.fail("Open failed", err)
			return
		}
		a.tree.SetCursor(a.ctrl.Selected())
		a.tree.Active = a.ctrl.Selected()
		return
	}
	a.cursors[v.ID] = min(max(cursor, 0), max(len(v.Entries)-1, 0))
}

func (a *App) handleDataKey(v *navigation.View, key string) {
	g := v.Grid
	if g == nil {
		return
	}
	gv := a.gridView(v.ID)
	gv.Sync(g)
	page := max(a.rightPanel.Height-6, 1)

	switch key {
	case "up", "k":
		gv.Move(g, -1, 0)
	case "down", "j":
		gv.Move(g, 1, 0)
	case "left", "h":
		gv.Move(g, 0, -1)
	case "right", "l":
		gv.Move(g, 0, 1)
	case "pgup", "ctrl+u":
		gv.Move(g, -page, 0)
	case "pgdown", "ctrl+d":
		gv.Move(g, page, 0)
	case "home":
		gv.Home(g, true)
	case "end", "G":
		gv.Home(g, false)
	case " ":
		gv.ToggleMark()

	case "f":
		a.openPrompt(components.PromptRowFilter, g.Filter())
	case "=", "~":
		cell, err := gv.CurrentCell(g)
		if err != nil {
			return
		}
		a.applyFilter(v, g.QuickFilter(gv.CurrentColumn(g), cell.Value, key == "~"))
	case "g":
		table, where, ok := g.ForeignKeyTarget(gv.CursorRow, gv.CursorCol)
		if !ok {
			a.status = "No foreign key on this cell"
			return
		}
		ctx, cancel := a.opContext()
		defer cancel()
		if err := a.ctrl.FollowForeignKey(ctx, g.Conn(), table, where); err != nil {
			a.fail("Follow failed", err)
		}
	case "R":
		ctx, cancel := a.opContext()
		defer cancel()
		if err := a.ctrl.Reload(ctx, v.ID); err != nil {
			a.fail("Reload failed", err)
		}

	case "e":
		if !grid.SingleCellActions(len(gv.SelectedRows())) {
			a.status = components.ErrMultipleRows.Error()
			return
		}
		cell, err := gv.CurrentCell(g)
		if err != nil {
			return
		}
		a.editTarget = cellRef{view: v.ID, row: gv.CursorRow, col: gv.CursorCol}
		a.openPrompt(components.PromptEditCell, cell.Value)
	case "n":
		if !gv.CanSetNull() {
			a.status = components.ErrMultipleRows.Error()
			return
		}
		ctx, cancel := a.opContext()
		defer cancel()
		if err := g.SetNull(ctx, gv.CursorRow, gv.CursorCol); err != nil {
			a.fail("Edit failed", err)
			return
		}
		a.status = "Cell set to NULL"
	case "y":
		if err := gv.CopyCell(g); err != nil {
			a.status = err.Error()
			return
		}
		a.status = "Cell copied"
	case "p":
		value, err := gv.ClipboardValue()
		if err != nil {
			a.status = err.Error()
			return
		}
		ctx, cancel := a.opContext()
		defer cancel()
		if err := g.EditCell(ctx, gv.CursorRow, gv.CursorCol, &value); err != nil {
			a.fail("Edit failed", err)
			return
		}
		a.status = "Cell pasted"
	case "D":
		rows := gv.SelectedRows()
		if g.RowCount() == 0 {
			return
		}
		a.confirm(fmt.Sprintf("Delete %d row(s) from %s?", len(rows), g.Table()), func() {
			ctx, cancel := a.opContext()
			defer cancel()
			if err := g.DeleteRows(ctx, rows); err != nil {
				a.fail("Delete failed", err)
				return
			}
			gv.Reset()
			a.status = fmt.Sprintf("Deleted %d row(s)", len(rows))
		})
	case "X":
		a.openPrompt(components.PromptExport, g.Table()+".csv")
	}
}

func (a *App) handleQueryKey(v *navigation.View, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "i", "enter":
		a.state.ViewMode = models.QueryEditMode
		return a, a.editor(v).StartEditing()
	case "ctrl+r":
		return a, a.runQuery(v)
	case "ctrl+x":
		v.Console.Stop()
		a.status = "Stopping after the current statement"
	case "H":
		a.openHistory()
	case "F":
		ed := a.editor(v)
		ed.Format()
		v.Console.SetText(ed.Text())
	case "<", ">":
		res, ok := v.Console.Last()
		if !ok {
			return a, nil
		}
		delta := 1
		if msg.String() == "<" {
			delta = -1
		}
		a.editor(v).StepResult(&res, delta)
	}
	return a, nil
}

func (a *App) handleQueryEditKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	v := a.ctrl.Focused()
	if v == nil || v.Kind != navigation.ViewQuery {
		a.state.ViewMode = models.NormalMode
		return a, nil
	}
	ed := a.editor(v)

	switch msg.String() {
	case "esc":
		ed.StopEditing()
		v.Console.SetText(ed.Text())
		a.state.ViewMode = models.NormalMode
		return a, nil
	case "ctrl+r":
		return a, a.runQuery(v)
	case "ctrl+x":
		v.Console.Stop()
		return a, nil
	case "tab":
		a.completeQuery(v, ed)
		return a, nil
	}

	var cmd tea.Cmd
	_, cmd = ed.Update(msg)
	return a, cmd
}
