package update

import (
	"testing"
	"time"

	"github.com/sandeepkv93/taskcal/internal/engine"
	"github.com/sandeepkv93/taskcal/internal/eventstore"
	"github.com/sandeepkv93/taskcal/internal/model"
	"github.com/sandeepkv93/taskcal/internal/scheduler"
)

func TestSurfaceKeepsDragUntilMatchingPatch(t *testing.T) {
	s := NewSurface(nil)
	task := model.Task{ID: "7", Content: "Buy milk", Start: milkStart, End: timePtr(milkEnd)}
	s.EventAdded(task)

	first := milkStart.Add(time.Hour)
	second := milkStart.Add(2 * time.Hour)
	if err := s.Drag("7", first, nil); err != nil {
		t.Fatalf("drag: %v", err)
	}
	if err := s.Drag("7", second, nil); err != nil {
		t.Fatalf("drag: %v", err)
	}

	// The first move lands while the second is still out.
	s.EventPatched(model.Task{ID: "7", Content: "Buy milk", Start: first})
	ev, _ := s.Get("7")
	if !ev.Dragging || !ev.Start.Equal(second) {
		t.Fatalf("expected newest drag to stay drawn, got %+v", ev)
	}
	if !ev.Task.Start.Equal(first) {
		t.Fatalf("expected committed task updated, got %v", ev.Task.Start)
	}

	s.EventPatched(model.Task{ID: "7", Content: "Buy milk", Start: second})
	ev, _ = s.Get("7")
	if ev.Dragging {
		t.Fatalf("expected drag settled once bounds match")
	}
}

func TestSurfaceRevertAndRemove(t *testing.T) {
	s := NewSurface(nil)
	task := model.Task{ID: "7", Start: milkStart}
	s.EventAdded(task)
	_ = s.Drag("7", milkStart.Add(time.Hour), nil)

	s.RevertGesture(task)
	ev, _ := s.Get("7")
	if ev.Dragging || !ev.Start.Equal(milkStart) || s.Reverts() != 1 {
		t.Fatalf("unexpected state after revert: %+v reverts=%d", ev, s.Reverts())
	}

	s.EventRemoved("7")
	if _, ok := s.Get("7"); ok {
		t.Fatalf("expected event removed")
	}
	if err := s.Drag("7", milkStart, nil); err == nil {
		t.Fatalf("expected drag of missing event to fail")
	}
}

func TestSurfaceEventsOrderedByDrawnStart(t *testing.T) {
	s := NewSurface(nil)
	s.EventAdded(model.Task{ID: "a", Start: milkStart})
	s.EventAdded(model.Task{ID: "b", Start: milkStart})
	s.EventAdded(model.Task{ID: "c", Start: standupTime})

	got := s.Events()
	if len(got) != 3 || got[0].Task.ID != "c" || got[1].Task.ID != "a" || got[2].Task.ID != "b" {
		t.Fatalf("unexpected order: %+v", got)
	}
}

func TestSurfaceSchedulesDeadlines(t *testing.T) {
	timer := scheduler.NewTimer(4)
	s := NewSurface(timer)

	future := time.Now().Add(time.Hour)
	s.EventAdded(model.Task{ID: "open", Start: future})
	s.EventAdded(model.Task{ID: "done", Start: future, Complete: model.CompletionDone})
	if timer.Pending() != 1 {
		t.Fatalf("expected only the unfinished task scheduled, got %d", timer.Pending())
	}

	s.EventRemoved("open")
	if timer.Pending() != 0 {
		t.Fatalf("expected deadline cancelled on removal, got %d", timer.Pending())
	}
}

func TestSurfaceFollowsStoreWhenMoveIsSuperseded(t *testing.T) {
	store := eventstore.New()
	s := NewSurface(nil)
	eng := engine.New(store, &stubClient{}, engine.WithSurface(s), engine.WithClock(func() time.Time { return testNow }))
	if _, err := store.Add(model.Task{ID: "7", Content: "Buy milk", Start: milkStart, End: timePtr(milkEnd)}); err != nil {
		t.Fatalf("add: %v", err)
	}

	movedStart := milkStart.AddDate(0, 0, 1)
	movedEnd := milkEnd.AddDate(0, 0, 1)
	if err := s.Drag("7", movedStart, &movedEnd); err != nil {
		t.Fatalf("drag: %v", err)
	}
	move, err := eng.PrepareMove("7", movedStart, &movedEnd)
	if err != nil {
		t.Fatalf("prepare move: %v", err)
	}

	// The edit form was filled from the store while the move was out.
	current, _ := store.Get("7")
	draft := model.DraftFromTask(current)
	draft.Content = "Buy oat milk"
	edit, err := eng.PrepareEdit("7", draft)
	if err != nil {
		t.Fatalf("prepare edit: %v", err)
	}

	if _, err := eng.Commit(edit.Run(t.Context())); err != nil {
		t.Fatalf("commit edit: %v", err)
	}
	res, err := eng.Commit(move.Run(t.Context()))
	if err != nil || !res.Stale {
		t.Fatalf("expected move answer dropped as stale, got %+v err=%v", res, err)
	}

	committed, _ := store.Get("7")
	ev, _ := s.Get("7")
	if ev.Dragging || !sameBounds(ev.Start, ev.End, committed.Start, committed.End) {
		t.Fatalf("drawn event %v-%v (dragging=%v) differs from store %v-%v", ev.Start, ev.End, ev.Dragging, committed.Start, committed.End)
	}
	if ev.Task.Content != "Buy oat milk" || !ev.Start.Equal(milkStart) {
		t.Fatalf("unexpected drawn event: %+v", ev)
	}

	// A later reload keeps the event in sync.
	s.EventPatched(committed)
	if ev, _ := s.Get("7"); ev.Dragging || !ev.Start.Equal(milkStart) {
		t.Fatalf("unexpected state after patch: %+v", ev)
	}
}
