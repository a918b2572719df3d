package model

import (
	"errors"
	"testing"
	"time"
)

func ptrTime(t time.Time) *time.Time { return &t }

func TestTaskValidateSuccess(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	task := Task{
		ID:       "7",
		Content:  "Buy milk",
		Start:    start,
		End:      ptrTime(start.Add(30 * time.Minute)),
		Complete: CompletionNotStarted,
	}
	if err := task.Validate(); err != nil {
		t.Fatalf("expected valid task, got error: %v", err)
	}
}

func TestTaskValidateRejectsBadInput(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	task := Task{ID: "7", Start: start, Complete: Completion(3)}
	if err := task.Validate(); !errors.Is(err, ErrInvalidCompletion) {
		t.Fatalf("expected ErrInvalidCompletion, got: %v", err)
	}

	task.Complete = CompletionDone
	task.End = ptrTime(start.Add(-time.Minute))
	if err := task.Validate(); !errors.Is(err, ErrEndBeforeStart) {
		t.Fatalf("expected ErrEndBeforeStart, got: %v", err)
	}

	task.End = nil
	task.ID = " "
	if err := task.Validate(); err == nil {
		t.Fatal("expected missing id error")
	}
}

func TestCompletionNextCycles(t *testing.T) {
	c := CompletionNotStarted
	want := []Completion{CompletionInProgress, CompletionDone, CompletionNotStarted}
	for i, w := range want {
		c = c.Next()
		if c != w {
			t.Fatalf("step %d: got %v want %v", i, c, w)
		}
	}
	if Completion(9).Next() != CompletionNotStarted {
		t.Fatal("expected invalid completion to reset")
	}
}

func TestPatchApplyMergesOnlyProvidedFields(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	task := Task{ID: "7", Title: "a", Content: "a", Description: "keep me", Start: start, End: &end}

	content := "b"
	done := CompletionDone
	got := Patch{Content: &content, Complete: &done}.Apply(task)

	if got.Content != "b" || got.Complete != CompletionDone {
		t.Fatalf("patch not applied: %+v", got)
	}
	if got.Description != "keep me" || got.Title != "a" || !got.Start.Equal(start) || got.End == nil || !got.End.Equal(end) {
		t.Fatalf("untouched fields changed: %+v", got)
	}
	if task.Content != "a" {
		t.Fatal("apply mutated the original task")
	}
}

func TestPatchClearsEnd(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	task := Task{ID: "7", Start: start, End: ptrTime(start.Add(time.Hour))}

	got := BoundsPatch(start.Add(time.Hour), nil).Apply(task)
	if got.End != nil {
		t.Fatalf("expected end cleared, got %v", got.End)
	}
	if !got.Start.Equal(start.Add(time.Hour)) {
		t.Fatalf("unexpected start: %v", got.Start)
	}
	if (Patch{}).Apply(task).End == nil {
		t.Fatal("empty patch must not clear end")
	}
}

func TestDraftFromTaskFallsBackToTitle(t *testing.T) {
	start := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	d := DraftFromTask(Task{ID: "1", Title: "From list", Description: "desc", Start: start, Complete: CompletionInProgress})
	if d.Content != "From list" || d.Description != "desc" || d.Complete != CompletionInProgress {
		t.Fatalf("unexpected draft: %+v", d)
	}
	if d.End != nil {
		t.Fatalf("expected nil end, got %v", d.End)
	}
}
