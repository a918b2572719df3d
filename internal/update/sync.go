package update

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/taskcal/internal/engine"
	appLog "github.com/sandeepkv93/taskcal/internal/log"
	"github.com/sandeepkv93/taskcal/internal/modal"
	"github.com/sandeepkv93/taskcal/internal/model"
	"github.com/sandeepkv93/taskcal/internal/scheduler"
	"github.com/sandeepkv93/taskcal/internal/storage"
	"github.com/sandeepkv93/taskcal/internal/taskapi"
)

const maxNotifications = 20

// runOp sends op to the remote off the UI loop and brings the outcome back
// as an opDoneMsg. The spinner starts with the first request in flight.
func (m *Model) runOp(op *engine.Op) tea.Cmd {
	run := func() tea.Msg {
		return opDoneMsg{Outcome: op.Run(context.Background())}
	}
	m.InFlight++
	if m.InFlight == 1 {
		return tea.Batch(run, m.syncSpinner.Tick)
	}
	return run
}

func (m Model) onOpDone(msg opDoneMsg) (Model, tea.Cmd) {
	if m.InFlight > 0 {
		m.InFlight--
	}
	op := msg.Outcome.Op
	res, err := m.engine.Commit(msg.Outcome)
	m.modal.Resolve(op, err)
	if m.modal.Mode() == modal.Closed {
		m.blurForm()
	}

	if err != nil {
		m.LastError = err
		text := describeFailure(op, err)
		m.Status = StatusBar{Text: text, IsError: true}
		m.notify("Sync failed", text, "error")
		return m, nil
	}

	switch {
	case res.Stale:
		m.Status = StatusBar{Text: fmt.Sprintf("%s of %s superseded", op.Kind, op.TaskID)}
		return m, nil
	case op.Kind == engine.KindLoad:
		m.LastSync = m.now()
		m.Offline = false
		m.engine.Refresh(m.now())
		m.Status = StatusBar{Text: fmt.Sprintf("synced %d task(s)", res.Loaded)}
	case op.Kind == engine.KindDelete:
		m.Status = StatusBar{Text: fmt.Sprintf("deleted %s", op.TaskID)}
	default:
		if op.Kind == engine.KindCreate || op.Kind == engine.KindDuplicate {
			m.SelectedTaskID = res.Task.ID
		}
		m.Status = StatusBar{Text: fmt.Sprintf("%s: %s", op.Kind, res.Task.DisplayTitle())}
	}
	m.syncSelection()
	return m, m.saveSnapshotCmd()
}

func describeFailure(op *engine.Op, err error) string {
	var remote *taskapi.RemoteError
	var transport *taskapi.TransportError
	var invalid *engine.ValidationError
	switch {
	case errors.As(err, &invalid):
		return fmt.Sprintf("%s: %s", invalid.Field, invalid.Message)
	case errors.As(err, &remote):
		return fmt.Sprintf("%s failed: server answered %d", op.Kind, remote.Status)
	case errors.As(err, &transport):
		return fmt.Sprintf("%s failed: %v", op.Kind, transport.Err)
	default:
		return fmt.Sprintf("%s failed: %v", op.Kind, err)
	}
}

// reload issues a full load. Records with work in flight keep their local
// state until that work is answered.
func (m Model) reload() (Model, tea.Cmd) {
	m.engine.Refresh(m.now())
	op := m.engine.PrepareLoad()
	cmd := m.runOp(op)
	m.Status = StatusBar{Text: "syncing"}
	return m, cmd
}

func (m Model) onWakeup(msg wakeupMsg) (Model, tea.Cmd) {
	changed := m.engine.Refresh(m.now())
	overdue := 0
	for _, t := range changed {
		if t.Status == model.StatusOverdue {
			overdue++
			m.notify("Overdue", t.DisplayTitle(), "warn")
		}
	}
	if overdue > 0 {
		m.Status = StatusBar{Text: fmt.Sprintf("%d task(s) now overdue", overdue)}
	}
	appLog.Debug("deadline reached", "id", msg.Wakeup.TaskID, "changed", len(changed))
	return m, waitForWakeupCmd(m.timer)
}

func waitForWakeupCmd(t *scheduler.Timer) tea.Cmd {
	if t == nil {
		return nil
	}
	ch := t.C()
	return func() tea.Msg {
		w, ok := <-ch
		if !ok {
			return nil
		}
		return wakeupMsg{Wakeup: w}
	}
}

// nextReloadCmd sleeps until the next refresh slot of the cron schedule.
func (m Model) nextReloadCmd() tea.Cmd {
	if m.refresh == nil {
		return nil
	}
	now := m.now()
	next := m.refresh.Next(now)
	if next.IsZero() {
		return nil
	}
	return tea.Tick(next.Sub(now), func(t time.Time) tea.Msg {
		return reloadTickMsg{At: t}
	})
}

func (m Model) loadSnapshotCmd() tea.Cmd {
	if m.cache == nil {
		return nil
	}
	cache := m.cache
	return func() tea.Msg {
		snap, err := cache.LoadSnapshot(context.Background())
		return snapshotLoadedMsg{Snapshot: snap, Err: err}
	}
}

func (m Model) onSnapshotLoaded(msg snapshotLoadedMsg) Model {
	if msg.Err != nil {
		if !errors.Is(msg.Err, storage.ErrNoSnapshot) {
			appLog.Error("load snapshot", msg.Err)
		}
		return m
	}
	n := m.engine.Seed(msg.Snapshot.Tasks)
	if n == 0 {
		return m
	}
	m.Offline = true
	m.LastSync = msg.Snapshot.SyncedAt
	m.engine.Refresh(m.now())
	m.syncSelection()
	m.Status = StatusBar{Text: fmt.Sprintf("showing %d cached task(s) from %s", n, msg.Snapshot.SyncedAt.In(m.loc).Format("2006-01-02 15:04"))}
	return m
}

// saveSnapshotCmd writes the committed store to the offline cache.
func (m Model) saveSnapshotCmd() tea.Cmd {
	if m.cache == nil {
		return nil
	}
	cache := m.cache
	snap := storage.Snapshot{Tasks: m.engine.Store().All(), SyncedAt: m.now()}
	return func() tea.Msg {
		err := cache.SaveSnapshot(context.Background(), snap)
		return snapshotSavedMsg{Count: len(snap.Tasks), Err: err}
	}
}

func (m *Model) notify(title, body, level string) {
	n := Notification{Title: title, Body: body, Level: level, At: m.now()}
	m.Notifications = append(m.Notifications, n)
	if len(m.Notifications) > maxNotifications {
		m.Notifications = m.Notifications[len(m.Notifications)-maxNotifications:]
	}
	if level == "warn" {
		if err := m.notifier.Send(n); err != nil {
			appLog.Debug("desktop notification failed", "err", err)
		}
	}
}
