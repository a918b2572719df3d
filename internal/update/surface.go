package update

import (
	"fmt"
	"sort"
	"time"

	appLog "github.com/sandeepkv93/taskcal/internal/log"
	"github.com/sandeepkv93/taskcal/internal/model"
	"github.com/sandeepkv93/taskcal/internal/scheduler"
)

// VisualEvent is a task as drawn. Start and End are where the event sits on
// screen; during a drag they run ahead of the committed Task.
type VisualEvent struct {
	Task     model.Task
	Start    time.Time
	End      *time.Time
	Classes  []string
	Dragging bool
}

// Surface is the drawn calendar. The event store notifies it of every
// committed change; gestures move events on it before the remote answers.
type Surface struct {
	events  map[string]*VisualEvent
	order   []string
	timer   *scheduler.Timer
	reverts int
}

func NewSurface(timer *scheduler.Timer) *Surface {
	return &Surface{events: make(map[string]*VisualEvent), timer: timer}
}

func (s *Surface) EventAdded(t model.Task) {
	if _, ok := s.events[t.ID]; !ok {
		s.order = append(s.order, t.ID)
	}
	s.events[t.ID] = &VisualEvent{Task: t, Start: t.Start, End: copyTime(t.End), Classes: t.ClassNames()}
	s.schedule(t)
}

func (s *Surface) EventPatched(t model.Task) {
	ev, ok := s.events[t.ID]
	if !ok {
		s.EventAdded(t)
		return
	}
	ev.Task = t
	ev.Classes = t.ClassNames()
	if !ev.Dragging || sameBounds(ev.Start, ev.End, t.Start, t.End) {
		ev.Start = t.Start
		ev.End = copyTime(t.End)
		ev.Dragging = false
	}
	s.schedule(t)
}

func (s *Surface) EventRemoved(id string) {
	if _, ok := s.events[id]; !ok {
		return
	}
	delete(s.events, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.timer != nil {
		s.timer.Cancel(id)
	}
}

// RevertGesture puts the event back where the committed record says.
func (s *Surface) RevertGesture(t model.Task) {
	ev, ok := s.events[t.ID]
	if !ok {
		return
	}
	ev.Task = t
	ev.Start = t.Start
	ev.End = copyTime(t.End)
	ev.Classes = t.ClassNames()
	ev.Dragging = false
	s.reverts++
	appLog.Info("gesture reverted", "id", t.ID)
}

// Drag moves the drawn event ahead of the remote call.
func (s *Surface) Drag(id string, start time.Time, end *time.Time) error {
	ev, ok := s.events[id]
	if !ok {
		return fmt.Errorf("surface: no event %s", id)
	}
	ev.Start = start
	ev.End = copyTime(end)
	ev.Dragging = true
	return nil
}

func (s *Surface) Get(id string) (VisualEvent, bool) {
	ev, ok := s.events[id]
	if !ok {
		return VisualEvent{}, false
	}
	return *ev, true
}

// Events returns drawn events ordered by drawn start, ties in insertion
// order.
func (s *Surface) Events() []VisualEvent {
	out := make([]VisualEvent, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.events[id])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

func (s *Surface) Reverts() int {
	return s.reverts
}

// schedule arms a wake-up at the task's deadline so it turns overdue on
// time.
func (s *Surface) schedule(t model.Task) {
	if s.timer == nil {
		return
	}
	if t.Complete == model.CompletionDone {
		s.timer.Cancel(t.ID)
		return
	}
	if err := s.timer.Schedule(t.ID, t.Deadline()); err != nil {
		appLog.Debug("deadline not scheduled", "id", t.ID, "err", err)
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func sameBounds(aStart time.Time, aEnd *time.Time, bStart time.Time, bEnd *time.Time) bool {
	if !aStart.Equal(bStart) {
		return false
	}
	if aEnd == nil || bEnd == nil {
		return aEnd == nil && bEnd == nil
	}
	return aEnd.Equal(*bEnd)
}
