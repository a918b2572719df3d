package update

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/sandeepkv93/taskcal/internal/commands"
	"github.com/sandeepkv93/taskcal/internal/engine"
	"github.com/sandeepkv93/taskcal/internal/model"
)

const (
	moveStepDay    = 24 * time.Hour
	moveStepHour   = time.Hour
	resizeStep     = 30 * time.Minute
	defaultSlotLen = time.Hour
)

func (m Model) handleCalendarKey(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch msg.String() {
	case "j", "down":
		m.moveCursor(1)
	case "k", "up":
		m.moveCursor(-1)
	case "h", "left":
		m.shiftPeriod(-1)
	case "l", "right":
		m.shiftPeriod(1)
	case "t":
		m.FocusDate = startOfDay(m.now().In(m.loc))
		m.syncSelection()
	case "d":
		m.setMode(commands.ViewDay)
	case "w":
		m.setMode(commands.ViewWeek)
	case "a":
		m.setMode(commands.ViewAgenda)
	case "n":
		start := m.defaultSlot()
		end := start.Add(defaultSlotLen)
		m.modal.OpenCreate(start, &end)
		m.loadForm()
	case "enter", "e":
		if m.SelectedTaskID == "" {
			return m, nil
		}
		if err := m.modal.OpenEdit(m.SelectedTaskID); err != nil {
			m.Status = StatusBar{Text: err.Error(), IsError: true}
			return m, nil
		}
		m.loadForm()
	case "x":
		if m.SelectedTaskID == "" {
			return m, nil
		}
		if err := m.modal.OpenDelete(m.SelectedTaskID); err != nil {
			m.Status = StatusBar{Text: err.Error(), IsError: true}
		}
	case "ctrl+d":
		return m.duplicateSelected()
	case "H":
		return m.dragSelected(engine.KindMove, -moveStepDay)
	case "L":
		return m.dragSelected(engine.KindMove, moveStepDay)
	case "K":
		return m.dragSelected(engine.KindMove, -moveStepHour)
	case "J":
		return m.dragSelected(engine.KindMove, moveStepHour)
	case "+", "=":
		return m.dragSelected(engine.KindResize, resizeStep)
	case "-":
		return m.dragSelected(engine.KindResize, -resizeStep)
	case "r":
		return m.reload()
	}
	return m, nil
}

func (m *Model) setMode(v commands.View) {
	m.Mode = v
	m.syncSelection()
	m.Status = StatusBar{Text: fmt.Sprintf("view: %s", v)}
}

// dragSelected moves or resizes the selected event on screen first, then
// asks the remote. A gesture the engine refuses snaps straight back.
func (m Model) dragSelected(kind engine.Kind, delta time.Duration) (Model, tea.Cmd) {
	ev, ok := m.surface.Get(m.SelectedTaskID)
	if !ok {
		return m, nil
	}
	start := ev.Start
	var end *time.Time
	if kind == engine.KindMove {
		start = ev.Start.Add(delta)
		if ev.End != nil {
			v := ev.End.Add(delta)
			end = &v
		}
	} else {
		base := ev.Start
		if ev.End != nil {
			base = *ev.End
		}
		v := base.Add(delta)
		end = &v
	}

	if err := m.surface.Drag(ev.Task.ID, start, end); err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}

	var (
		op  *engine.Op
		err error
	)
	if kind == engine.KindMove {
		op, err = m.engine.PrepareMove(ev.Task.ID, start, end)
	} else {
		op, err = m.engine.PrepareResize(ev.Task.ID, start, end)
	}
	if err != nil {
		if committed, gerr := m.engine.Store().Get(ev.Task.ID); gerr == nil {
			m.surface.RevertGesture(committed)
		}
		m.Status = StatusBar{Text: describeFailure(&engine.Op{Kind: kind, TaskID: ev.Task.ID}, err), IsError: true}
		return m, nil
	}
	m.syncSelection()
	cmd := m.runOp(op)
	return m, cmd
}

func (m Model) duplicateSelected() (Model, tea.Cmd) {
	if m.SelectedTaskID == "" {
		return m, nil
	}
	op, err := m.engine.PrepareDuplicate(m.SelectedTaskID)
	if err != nil {
		m.Status = StatusBar{Text: err.Error(), IsError: true}
		return m, nil
	}
	cmd := m.runOp(op)
	return m, cmd
}

// window is the half-open range the current view shows. Agenda has no end.
func (m Model) window() (time.Time, time.Time) {
	day := startOfDay(m.FocusDate.In(m.loc))
	switch m.Mode {
	case commands.ViewDay:
		return day, day.AddDate(0, 0, 1)
	case commands.ViewAgenda:
		return day, time.Time{}
	default:
		from := startOfWeek(day)
		return from, from.AddDate(0, 0, 7)
	}
}

// visibleEvents lists drawn events that overlap the window.
func (m Model) visibleEvents() []VisualEvent {
	from, to := m.window()
	all := m.surface.Events()
	out := make([]VisualEvent, 0, len(all))
	for _, ev := range all {
		last := ev.Start
		if ev.End != nil {
			last = *ev.End
		}
		if last.Before(from) {
			continue
		}
		if !to.IsZero() && !ev.Start.Before(to) {
			continue
		}
		out = append(out, ev)
	}
	return out
}

func (m *Model) shiftPeriod(dir int) {
	switch m.Mode {
	case commands.ViewDay, commands.ViewAgenda:
		m.FocusDate = m.FocusDate.AddDate(0, 0, dir)
	default:
		m.FocusDate = m.FocusDate.AddDate(0, 0, 7*dir)
	}
	m.Cursor = 0
	m.SelectedTaskID = ""
	m.syncSelection()
}

func (m *Model) moveCursor(delta int) {
	items := m.visibleEvents()
	if len(items) == 0 {
		m.Cursor = 0
		m.SelectedTaskID = ""
		return
	}
	m.Cursor = clamp(m.Cursor+delta, 0, len(items)-1)
	m.SelectedTaskID = items[m.Cursor].Task.ID
}

// syncSelection keeps the selected task under the cursor after the visible
// list changed. A selection that left the view falls back to the cursor.
func (m *Model) syncSelection() {
	items := m.visibleEvents()
	if len(items) == 0 {
		m.Cursor = 0
		m.SelectedTaskID = ""
		return
	}
	for i, ev := range items {
		if ev.Task.ID == m.SelectedTaskID {
			m.Cursor = i
			return
		}
	}
	m.Cursor = clamp(m.Cursor, 0, len(items)-1)
	m.SelectedTaskID = items[m.Cursor].Task.ID
}

// defaultSlot is where a new task starts: the next full hour when the
// focused day is today, 09:00 otherwise.
func (m Model) defaultSlot() time.Time {
	now := m.now().In(m.loc)
	day := startOfDay(m.FocusDate.In(m.loc))
	if day.Equal(startOfDay(now)) {
		return time.Date(now.Year(), now.Month(), now.Day(), now.Hour()+1, 0, 0, 0, m.loc)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), 9, 0, 0, 0, m.loc)
}

func startOfDay(t time.Time) time.Time {
	y, mo, d := t.Date()
	return time.Date(y, mo, d, 0, 0, 0, 0, t.Location())
}

// startOfWeek returns the Monday of t's week.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func statusLabel(t model.Task) string {
	switch t.Status {
	case model.StatusOverdue:
		return "overdue"
	case model.StatusComplete:
		return "done"
	default:
		return t.Complete.String()
	}
}
