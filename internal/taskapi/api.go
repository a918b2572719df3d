// Package taskapi talks to the remote task store.
package taskapi

import (
	"context"
	"fmt"
	"time"

	"github.com/sandeepkv93/taskcal/internal/model"
)

const (
	OpList      = "list"
	OpCreate    = "create"
	OpEdit      = "edit"
	OpMove      = "move"
	OpResize    = "resize"
	OpDuplicate = "duplicate"
	OpDelete    = "delete"
)

// Client is the remote authority. Every call either succeeds or returns a
// *RemoteError or *TransportError.
type Client interface {
	List(ctx context.Context) ([]Record, error)
	Create(ctx context.Context, draft model.Draft) (Record, error)
	Edit(ctx context.Context, id string, draft model.Draft) (Record, error)
	Move(ctx context.Context, id string, start time.Time, end *time.Time) error
	Resize(ctx context.Context, id string, start time.Time, end *time.Time) error
	Duplicate(ctx context.Context, id string) (Record, error)
	Delete(ctx context.Context, id string) error
}

// Record is a task as returned by the remote. Nil fields were absent from
// the response.
type Record struct {
	ID          string
	Title       *string
	Content     *string
	Description *string
	Start       *time.Time
	End         *time.Time
	// EndSet is true when the response carried "end", even as null.
	EndSet   bool
	Complete *model.Completion
}

// RemoteError is a non-success answer from the remote.
type RemoteError struct {
	Op     string
	Status int
	Detail string
}

func (e *RemoteError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("taskapi: %s: remote returned status %d", e.Op, e.Status)
	}
	return fmt.Sprintf("taskapi: %s: remote returned status %d: %s", e.Op, e.Status, e.Detail)
}

// TransportError covers unreachable remotes, timeouts and malformed
// responses.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("taskapi: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// MergeDraft resolves every field to the response value when present and to
// the draft otherwise. Title falls back to the response content, then to the
// draft content.
func (r Record) MergeDraft(d model.Draft) model.Task {
	out := model.Task{
		ID:          r.ID,
		Content:     d.Content,
		Description: d.Description,
		Start:       d.Start,
		Complete:    d.Complete,
	}
	if d.End != nil {
		end := *d.End
		out.End = &end
	}
	return r.overlay(out)
}

// MergeTask resolves every field to the response value when present and to
// src otherwise; the id always comes from the response.
func (r Record) MergeTask(src model.Task) model.Task {
	out := src.Clone()
	out.ID = r.ID
	out.Status = ""
	return r.overlay(out)
}

func (r Record) overlay(out model.Task) model.Task {
	if r.Content != nil {
		out.Content = *r.Content
	}
	if r.Description != nil {
		out.Description = *r.Description
	}
	if r.Start != nil {
		out.Start = *r.Start
	}
	if r.EndSet {
		if r.End == nil {
			out.End = nil
		} else {
			end := *r.End
			out.End = &end
		}
	}
	if r.Complete != nil {
		out.Complete = *r.Complete
	}
	switch {
	case r.Title != nil:
		out.Title = *r.Title
	case r.Content != nil:
		out.Title = *r.Content
	case out.Title == "":
		out.Title = out.Content
	}
	return out
}

// Task converts a listed record; absent fields take zero values.
func (r Record) Task() model.Task {
	return r.MergeDraft(model.Draft{})
}
