package update

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/taskcal/internal/commands"
	"github.com/sandeepkv93/taskcal/internal/modal"
	"github.com/sandeepkv93/taskcal/internal/model"
	"github.com/sandeepkv93/taskcal/internal/storage"
	"github.com/sandeepkv93/taskcal/internal/taskapi"
)

type stubClient struct {
	calls     []string
	list      []taskapi.Record
	record    taskapi.Record
	err       error
	lastDraft model.Draft
}

func (c *stubClient) List(context.Context) ([]taskapi.Record, error) {
	c.calls = append(c.calls, taskapi.OpList)
	return c.list, c.err
}

func (c *stubClient) Create(_ context.Context, d model.Draft) (taskapi.Record, error) {
	c.calls = append(c.calls, taskapi.OpCreate)
	c.lastDraft = d
	return c.record, c.err
}

func (c *stubClient) Edit(_ context.Context, _ string, d model.Draft) (taskapi.Record, error) {
	c.calls = append(c.calls, taskapi.OpEdit)
	c.lastDraft = d
	return c.record, c.err
}

func (c *stubClient) Move(context.Context, string, time.Time, *time.Time) error {
	c.calls = append(c.calls, taskapi.OpMove)
	return c.err
}

func (c *stubClient) Resize(context.Context, string, time.Time, *time.Time) error {
	c.calls = append(c.calls, taskapi.OpResize)
	return c.err
}

func (c *stubClient) Duplicate(context.Context, string) (taskapi.Record, error) {
	c.calls = append(c.calls, taskapi.OpDuplicate)
	return c.record, c.err
}

func (c *stubClient) Delete(context.Context, string) error {
	c.calls = append(c.calls, taskapi.OpDelete)
	return c.err
}

type memoryCache struct {
	saved []storage.Snapshot
	snap  *storage.Snapshot
}

func (c *memoryCache) SaveSnapshot(_ context.Context, s storage.Snapshot) error {
	c.saved = append(c.saved, s)
	return nil
}

func (c *memoryCache) LoadSnapshot(context.Context) (storage.Snapshot, error) {
	if c.snap == nil {
		return storage.Snapshot{}, storage.ErrNoSnapshot
	}
	return *c.snap, nil
}

var (
	testNow     = time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)
	milkStart   = time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	milkEnd     = milkStart.Add(30 * time.Minute)
	standupTime = time.Date(2024, 12, 31, 9, 0, 0, 0, time.UTC)
)

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func twoRecords() []taskapi.Record {
	return []taskapi.Record{
		{ID: "7", Title: strPtr("Buy milk"), Start: timePtr(milkStart), End: timePtr(milkEnd), EndSet: true},
		{ID: "8", Title: strPtr("Standup"), Start: timePtr(standupTime)},
	}
}

func newTestModel(client *stubClient, cache storage.Repository) Model {
	return NewModel(Options{
		Client:   client,
		Cache:    cache,
		Location: time.UTC,
		Now:      func() time.Time { return testNow },
	})
}

// collect runs cmd and flattens batches into the messages they produce.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// settle feeds every message cmd produces back into the model until the
// loop goes quiet. Spinner ticks are dropped.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := collect(cmd)
	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		switch msg.(type) {
		case nil, spinner.TickMsg:
			continue
		}
		updated, next := m.Update(msg)
		m = updated.(Model)
		queue = append(queue, collect(next)...)
	}
	return m
}

func press(t *testing.T, m Model, msg tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func loaded(t *testing.T, client *stubClient) Model {
	t.Helper()
	client.list = twoRecords()
	m := newTestModel(client, nil)
	m = settle(t, m, m.Init())
	client.calls = nil
	return m
}

func TestNewModelDefaults(t *testing.T) {
	m := newTestModel(&stubClient{}, nil)
	if m.Mode != commands.ViewWeek {
		t.Fatalf("expected week view, got %q", m.Mode)
	}
	if !m.FocusDate.Equal(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected focus date %v", m.FocusDate)
	}
	if m.ModalMode() != modal.Closed {
		t.Fatalf("expected no dialog, got %v", m.ModalMode())
	}
}

func TestInitLoadsAndSelects(t *testing.T) {
	m := loaded(t, &stubClient{})
	if m.Engine().Store().Len() != 2 {
		t.Fatalf("expected 2 tasks, got %d", m.Engine().Store().Len())
	}
	if m.SelectedTaskID != "8" {
		t.Fatalf("expected earliest event selected, got %q", m.SelectedTaskID)
	}
	if m.InFlight != 0 || m.LastSync.IsZero() {
		t.Fatalf("expected settled sync, in flight %d last sync %v", m.InFlight, m.LastSync)
	}
	standup, _ := m.Engine().Store().Get("8")
	if standup.Status != model.StatusOverdue {
		t.Fatalf("expected past task overdue, got %s", standup.Status)
	}
	if !strings.Contains(m.Status.Text, "synced 2") {
		t.Fatalf("unexpected status %q", m.Status.Text)
	}
}

func TestMoveDrawsBeforeRemoteAnswers(t *testing.T) {
	client := &stubClient{}
	m := loaded(t, client)
	m, _ = press(t, m, keys("j"))
	if m.SelectedTaskID != "7" {
		t.Fatalf("expected 7 selected, got %q", m.SelectedTaskID)
	}

	m, cmd := press(t, m, keys("J"))
	ev, _ := m.Surface().Get("7")
	if !ev.Dragging || !ev.Start.Equal(milkStart.Add(time.Hour)) {
		t.Fatalf("expected event drawn an hour later, got %+v", ev)
	}
	stored, _ := m.Engine().Store().Get("7")
	if !stored.Start.Equal(milkStart) {
		t.Fatalf("store changed before remote answered: %v", stored.Start)
	}
	if !m.Engine().InFlight("7") {
		t.Fatalf("expected move in flight")
	}

	m = settle(t, m, cmd)
	stored, _ = m.Engine().Store().Get("7")
	if !stored.Start.Equal(milkStart.Add(time.Hour)) || !stored.End.Equal(milkEnd.Add(time.Hour)) {
		t.Fatalf("unexpected committed bounds %v %v", stored.Start, stored.End)
	}
	ev, _ = m.Surface().Get("7")
	if ev.Dragging {
		t.Fatalf("expected drag settled")
	}
}

func TestMoveFailureSnapsBack(t *testing.T) {
	client := &stubClient{}
	m := loaded(t, client)
	m, _ = press(t, m, keys("j"))

	client.err = &taskapi.RemoteError{Op: taskapi.OpMove, Status: 500}
	m, cmd := press(t, m, keys("L"))
	m = settle(t, m, cmd)

	ev, _ := m.Surface().Get("7")
	if ev.Dragging || !ev.Start.Equal(milkStart) {
		t.Fatalf("expected event back at original slot, got %+v", ev)
	}
	if m.Surface().Reverts() != 1 {
		t.Fatalf("expected one revert, got %d", m.Surface().Reverts())
	}
	if !m.Status.IsError || !strings.Contains(m.Status.Text, "500") {
		t.Fatalf("unexpected status %+v", m.Status)
	}
}

func TestResizeBelowStartIsRefusedLocally(t *testing.T) {
	client := &stubClient{}
	m := loaded(t, client)
	m, _ = press(t, m, keys("j"))

	m, cmd := press(t, m, keys("-"))
	m = settle(t, m, cmd)
	stored, _ := m.Engine().Store().Get("7")
	if stored.End == nil || !stored.End.Equal(milkStart) {
		t.Fatalf("expected end shrunk to start, got %v", stored.End)
	}

	m, cmd = press(t, m, keys("-"))
	m = settle(t, m, cmd)
	if n := len(client.calls); n != 1 {
		t.Fatalf("expected only the first resize sent, got %v", client.calls)
	}
	if !m.Status.IsError || !strings.Contains(m.Status.Text, "end") {
		t.Fatalf("expected end validation error, got %+v", m.Status)
	}
}

func TestDeleteRequiresConfirmation(t *testing.T) {
	client := &stubClient{}
	m := loaded(t, client)

	m, _ = press(t, m, keys("x"))
	if m.ModalMode() != modal.DeleteConfirmOpen {
		t.Fatalf("expected delete confirmation, got %v", m.ModalMode())
	}
	m, _ = press(t, m, keys("n"))
	if m.ModalMode() != modal.Closed || len(client.calls) != 0 {
		t.Fatalf("cancel should close without a request: %v %v", m.ModalMode(), client.calls)
	}

	m, _ = press(t, m, keys("x"))
	m, cmd := press(t, m, keys("y"))
	m = settle(t, m, cmd)
	if m.Engine().Store().Has("8") {
		t.Fatalf("expected task removed after confirmed delete")
	}
	if _, ok := m.Surface().Get("8"); ok {
		t.Fatalf("expected event removed from surface")
	}
	if m.ModalMode() != modal.Closed {
		t.Fatalf("expected dialog closed, got %v", m.ModalMode())
	}
	if m.SelectedTaskID != "7" {
		t.Fatalf("expected selection to move to remaining task, got %q", m.SelectedTaskID)
	}
}

func TestFailedDeleteKeepsDialogAndTask(t *testing.T) {
	client := &stubClient{}
	m := loaded(t, client)
	client.err = &taskapi.TransportError{Op: taskapi.OpDelete, Err: errors.New("connection refused")}

	m, _ = press(t, m, keys("x"))
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settle(t, m, cmd)
	if !m.Engine().Store().Has("8") {
		t.Fatalf("task should survive a failed delete")
	}
	if m.ModalMode() != modal.DeleteConfirmOpen {
		t.Fatalf("expected dialog kept open, got %v", m.ModalMode())
	}
	if !strings.Contains(m.View(), "connection refused") {
		t.Fatalf("expected error shown in dialog")
	}
}

func TestCreateThroughForm(t *testing.T) {
	client := &stubClient{}
	m := loaded(t, client)
	client.record = taskapi.Record{ID: "100"}

	m, _ = press(t, m, keys("n"))
	if m.ModalMode() != modal.CreateOpen {
		t.Fatalf("expected create dialog, got %v", m.ModalMode())
	}
	m, _ = press(t, m, keys("Water plants"))
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settle(t, m, cmd)

	created, err := m.Engine().Store().Get("100")
	if err != nil {
		t.Fatalf("expected created task: %v", err)
	}
	wantStart := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	if created.Content != "Water plants" || !created.Start.Equal(wantStart) {
		t.Fatalf("unexpected created task %+v", created)
	}
	if created.End == nil || !created.End.Equal(wantStart.Add(time.Hour)) {
		t.Fatalf("expected default one hour slot, got %v", created.End)
	}
	if m.ModalMode() != modal.Closed || m.SelectedTaskID != "100" {
		t.Fatalf("expected dialog closed and new task selected: %v %q", m.ModalMode(), m.SelectedTaskID)
	}
}

func TestCreateWithoutContentStaysOpen(t *testing.T) {
	client := &stubClient{}
	m := loaded(t, client)

	m, _ = press(t, m, keys("n"))
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settle(t, m, cmd)
	if len(client.calls) != 0 {
		t.Fatalf("expected nothing sent, got %v", client.calls)
	}
	if m.ModalMode() != modal.CreateOpen {
		t.Fatalf("expected dialog kept open, got %v", m.ModalMode())
	}
	if !m.Status.IsError || !strings.Contains(m.Status.Text, "content") {
		t.Fatalf("unexpected status %+v", m.Status)
	}
}

func TestEditFormSendsChangedFields(t *testing.T) {
	client := &stubClient{}
	m := loaded(t, client)
	m, _ = press(t, m, keys("j"))
	client.record = taskapi.Record{ID: "7"}

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.ModalMode() != modal.EditOpen {
		t.Fatalf("expected edit dialog, got %v", m.ModalMode())
	}
	m, _ = press(t, m, keys(" 2%"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	m = settle(t, m, cmd)

	if client.lastDraft.Content != "Buy milk 2%" || client.lastDraft.Complete != model.CompletionInProgress {
		t.Fatalf("unexpected draft sent %+v", client.lastDraft)
	}
	stored, _ := m.Engine().Store().Get("7")
	if stored.Content != "Buy milk 2%" || !stored.Start.Equal(milkStart) {
		t.Fatalf("expected draft values to fill the empty response, got %+v", stored)
	}
}

func TestDuplicateSelectsCopy(t *testing.T) {
	client := &stubClient{}
	m := loaded(t, client)
	client.record = taskapi.Record{ID: "9"}

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlD})
	m = settle(t, m, cmd)
	dup, err := m.Engine().Store().Get("9")
	if err != nil {
		t.Fatalf("expected duplicate stored: %v", err)
	}
	if dup.DisplayTitle() != "Standup" || !dup.Start.Equal(standupTime) {
		t.Fatalf("duplicate should copy the source, got %+v", dup)
	}
	if m.SelectedTaskID != "9" {
		t.Fatalf("expected duplicate selected, got %q", m.SelectedTaskID)
	}
}

func TestPaletteNewCommand(t *testing.T) {
	client := &stubClient{}
	m := loaded(t, client)
	client.record = taskapi.Record{ID: "11"}

	m, _ = press(t, m, keys("/"))
	if !m.Palette.Active {
		t.Fatalf("expected palette active")
	}
	m, _ = press(t, m, keys("new Call mom @2025-01-02T18:00 15m"))
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settle(t, m, cmd)

	if m.Palette.Active {
		t.Fatalf("expected palette closed")
	}
	want := time.Date(2025, 1, 2, 18, 0, 0, 0, time.UTC)
	if client.lastDraft.Content != "Call mom" || !client.lastDraft.Start.Equal(want) {
		t.Fatalf("unexpected draft %+v", client.lastDraft)
	}
	if client.lastDraft.End == nil || !client.lastDraft.End.Equal(want.Add(15*time.Minute)) {
		t.Fatalf("unexpected end %v", client.lastDraft.End)
	}
	if !m.Engine().Store().Has("11") {
		t.Fatalf("expected task created")
	}
}

func TestPaletteModeAndGoto(t *testing.T) {
	m := loaded(t, &stubClient{})

	m, _ = press(t, m, keys("/"))
	m, _ = press(t, m, keys("mode day"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.Mode != commands.ViewDay {
		t.Fatalf("expected day view, got %q", m.Mode)
	}
	if m.SelectedTaskID != "7" {
		t.Fatalf("day view should only show today's task, selected %q", m.SelectedTaskID)
	}

	m, _ = press(t, m, keys("/"))
	m, _ = press(t, m, keys("goto 2024-12-31"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.SelectedTaskID != "8" {
		t.Fatalf("expected standup selected after goto, got %q", m.SelectedTaskID)
	}

	m, _ = press(t, m, keys("/"))
	m, _ = press(t, m, keys("bogus"))
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if !m.Status.IsError {
		t.Fatalf("expected error for unknown command")
	}
}

func TestWakeupMarksOverdue(t *testing.T) {
	clock := testNow
	client := &stubClient{list: twoRecords()}
	m := NewModel(Options{Client: client, Location: time.UTC, Now: func() time.Time { return clock }})
	m = settle(t, m, m.Init())

	clock = milkEnd.Add(time.Minute)
	updated, _ := m.Update(wakeupMsg{})
	m = updated.(Model)
	milk, _ := m.Engine().Store().Get("7")
	if milk.Status != model.StatusOverdue {
		t.Fatalf("expected overdue after deadline, got %s", milk.Status)
	}
	if !strings.Contains(m.Status.Text, "1 task(s) now overdue") {
		t.Fatalf("unexpected status %q", m.Status.Text)
	}
	if len(m.Notifications) == 0 || m.Notifications[len(m.Notifications)-1].Title != "Overdue" {
		t.Fatalf("expected overdue notification, got %+v", m.Notifications)
	}
}

func TestSnapshotShownUntilLoadAnswers(t *testing.T) {
	cache := &memoryCache{snap: &storage.Snapshot{
		Tasks:    []model.Task{{ID: "5", Content: "Cached", Start: milkStart}},
		SyncedAt: testNow.Add(-time.Hour),
	}}
	client := &stubClient{list: twoRecords()}
	m := newTestModel(client, cache)

	updated, _ := m.Update(snapshotLoadedMsg{Snapshot: *cache.snap})
	m = updated.(Model)
	if !m.Offline || !m.Engine().Store().Has("5") {
		t.Fatalf("expected cached task shown offline")
	}
	if !strings.Contains(m.View(), "(cached)") {
		t.Fatalf("expected header to mark cached data")
	}

	m = settle(t, m, func() tea.Msg { return ReloadMsg{} })
	if m.Offline || m.Engine().Store().Has("5") {
		t.Fatalf("expected load to replace the snapshot")
	}
	if len(cache.saved) == 0 || len(cache.saved[len(cache.saved)-1].Tasks) != 2 {
		t.Fatalf("expected snapshot saved after load, got %+v", cache.saved)
	}

	updated, _ = m.Update(snapshotLoadedMsg{Snapshot: *cache.snap})
	m = updated.(Model)
	if m.Engine().Store().Has("5") {
		t.Fatalf("late snapshot must not overwrite reconciled state")
	}
}

func TestViewShowsCalendarAndDetails(t *testing.T) {
	m := loaded(t, &stubClient{})
	out := m.View()
	for _, want := range []string{"taskcal | view: week", "Buy milk", "[LATE]", "details:", "id: 8"} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in view:\n%s", want, out)
		}
	}
}

func TestUpdateStatusAndError(t *testing.T) {
	m := newTestModel(&stubClient{}, nil)
	updated, _ := m.Update(SetStatusMsg{Text: "ready", IsError: false})
	next := updated.(Model)
	if next.Status.Text != "ready" || next.Status.IsError {
		t.Fatalf("unexpected status: %+v", next.Status)
	}

	updated, _ = next.Update(AppErrorMsg{Err: errors.New("boom")})
	next = updated.(Model)
	if next.LastError == nil || next.LastError.Error() != "boom" {
		t.Fatalf("expected last error boom, got: %v", next.LastError)
	}

	updated, _ = next.Update(ClearStatusMsg{})
	next = updated.(Model)
	if next.Status.Text != "" || next.Status.IsError {
		t.Fatalf("expected cleared status, got: %+v", next.Status)
	}
}

func TestHelpAndQuit(t *testing.T) {
	m := newTestModel(&stubClient{}, nil)
	m, _ = press(t, m, keys("?"))
	if !m.HelpVisible || !strings.Contains(m.View(), "help (week)") {
		t.Fatalf("expected help panel shown")
	}
	m, cmd := press(t, m, keys("q"))
	if !m.Quitting || cmd == nil {
		t.Fatalf("expected quit")
	}
}
