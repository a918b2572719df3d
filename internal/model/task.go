package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidCompletion = errors.New("model: invalid completion state")
	ErrEndBeforeStart    = errors.New("model: end is before start")
)

// Completion is the progress state the remote stores as 0, 1 or 2.
type Completion int

const (
	CompletionNotStarted Completion = 0
	CompletionInProgress Completion = 1
	CompletionDone       Completion = 2
)

func (c Completion) IsValid() bool {
	switch c {
	case CompletionNotStarted, CompletionInProgress, CompletionDone:
		return true
	default:
		return false
	}
}

func (c Completion) String() string {
	switch c {
	case CompletionNotStarted:
		return "not started"
	case CompletionInProgress:
		return "in progress"
	case CompletionDone:
		return "done"
	default:
		return fmt.Sprintf("completion(%d)", int(c))
	}
}

// Next cycles not started -> in progress -> done -> not started.
func (c Completion) Next() Completion {
	if !c.IsValid() {
		return CompletionNotStarted
	}
	return (c + 1) % 3
}

// Task is a calendar event as held by the event store.
type Task struct {
	ID          string
	Title       string
	Content     string
	Description string
	Start       time.Time
	End         *time.Time
	Complete    Completion
	Status      Status
}

// Deadline is the instant after which an unfinished task counts as overdue.
func (t Task) Deadline() time.Time {
	if t.End != nil {
		return *t.End
	}
	return t.Start
}

// DisplayTitle prefers the title the remote sent and falls back to content.
func (t Task) DisplayTitle() string {
	if strings.TrimSpace(t.Title) != "" {
		return t.Title
	}
	return t.Content
}

// Class names carried by a drawn event for its status.
const (
	ClassOverdue  = "fc-event-overdue"
	ClassComplete = "fc-event-complete"
)

func (t Task) ClassNames() []string {
	switch t.Status {
	case StatusOverdue:
		return []string{ClassOverdue}
	case StatusComplete:
		return []string{ClassComplete}
	default:
		return nil
	}
}

func (t Task) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return errors.New("model: task id is required")
	}
	if t.Start.IsZero() {
		return errors.New("model: task start is required")
	}
	if !t.Complete.IsValid() {
		return fmt.Errorf("%w: %d", ErrInvalidCompletion, int(t.Complete))
	}
	if t.End != nil && t.End.Before(t.Start) {
		return ErrEndBeforeStart
	}
	return nil
}

// Clone returns a copy that shares no pointers with t.
func (t Task) Clone() Task {
	out := t
	if t.End != nil {
		end := *t.End
		out.End = &end
	}
	return out
}

// Draft holds form values that have not been committed yet.
type Draft struct {
	Content     string
	Description string
	Complete    Completion
	Start       time.Time
	End         *time.Time
}

// DraftFromTask prefills a draft from a stored task. Records loaded from the
// list endpoint may only carry a title, so content falls back to it.
func DraftFromTask(t Task) Draft {
	content := t.Content
	if strings.TrimSpace(content) == "" {
		content = t.Title
	}
	d := Draft{
		Content:     content,
		Description: t.Description,
		Complete:    t.Complete,
		Start:       t.Start,
	}
	if t.End != nil {
		end := *t.End
		d.End = &end
	}
	return d
}

// Patch lists the fields to change; nil leaves a field untouched.
type Patch struct {
	Title       *string
	Content     *string
	Description *string
	Start       *time.Time
	End         *time.Time
	// EndSet applies End even when it is nil, clearing the end bound.
	EndSet   bool
	Complete *Completion
}

func (p Patch) IsEmpty() bool {
	return p.Title == nil && p.Content == nil && p.Description == nil &&
		p.Start == nil && p.End == nil && !p.EndSet && p.Complete == nil
}

// TouchesSchedule reports whether applying p can change the derived status.
func (p Patch) TouchesSchedule() bool {
	return p.Start != nil || p.End != nil || p.EndSet || p.Complete != nil
}

// Apply returns t with the patch merged in.
func (p Patch) Apply(t Task) Task {
	out := t.Clone()
	if p.Title != nil {
		out.Title = *p.Title
	}
	if p.Content != nil {
		out.Content = *p.Content
	}
	if p.Description != nil {
		out.Description = *p.Description
	}
	if p.Start != nil {
		out.Start = *p.Start
	}
	if p.End != nil || p.EndSet {
		if p.End == nil {
			out.End = nil
		} else {
			end := *p.End
			out.End = &end
		}
	}
	if p.Complete != nil {
		out.Complete = *p.Complete
	}
	return out
}

// BoundsPatch moves a task to new start/end bounds.
func BoundsPatch(start time.Time, end *time.Time) Patch {
	p := Patch{Start: &start, EndSet: true}
	if end != nil {
		e := *end
		p.End = &e
	}
	return p
}
