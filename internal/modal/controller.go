// Package modal tracks which dialog is open over the calendar and the form
// values it holds. Only one dialog exists at a time.
package modal

import (
	"errors"
	"fmt"
	"time"

	"github.com/sandeepkv93/taskcal/internal/engine"
	appLog "github.com/sandeepkv93/taskcal/internal/log"
	"github.com/sandeepkv93/taskcal/internal/model"
)

var (
	ErrClosed        = errors.New("modal: no dialog is open")
	ErrNotConfirming = errors.New("modal: delete was not confirmed")
	ErrBusy          = errors.New("modal: a request is already in flight")
	ErrWrongMode     = errors.New("modal: action does not apply to the open dialog")
)

type Mode int

const (
	Closed Mode = iota
	CreateOpen
	EditOpen
	DeleteConfirmOpen
)

func (m Mode) String() string {
	switch m {
	case CreateOpen:
		return "create"
	case EditOpen:
		return "edit"
	case DeleteConfirmOpen:
		return "delete"
	default:
		return "closed"
	}
}

// PendingEdit is the dialog being shown. TaskID is empty for CreateOpen.
type PendingEdit struct {
	Mode   Mode
	TaskID string
	Title  string
	Draft  model.Draft
}

type Controller struct {
	engine   *engine.Engine
	pending  *PendingEdit
	inFlight *engine.Op
	err      error
}

func New(e *engine.Engine) *Controller {
	return &Controller{engine: e}
}

func (c *Controller) Mode() Mode {
	if c.pending == nil {
		return Closed
	}
	return c.pending.Mode
}

// Pending returns a copy of the open dialog.
func (c *Controller) Pending() (PendingEdit, bool) {
	if c.pending == nil {
		return PendingEdit{}, false
	}
	p := *c.pending
	if p.Draft.End != nil {
		end := *p.Draft.End
		p.Draft.End = &end
	}
	return p, true
}

func (c *Controller) Busy() bool {
	return c.inFlight != nil
}

// Err is the last failure shown in the dialog.
func (c *Controller) Err() error {
	return c.err
}

// OpenCreate opens an empty form over the selected range.
func (c *Controller) OpenCreate(start time.Time, end *time.Time) {
	d := model.Draft{Start: start}
	if end != nil {
		v := *end
		d.End = &v
	}
	c.open(&PendingEdit{Mode: CreateOpen, Draft: d})
}

// OpenEdit prefills the form from the stored task.
func (c *Controller) OpenEdit(id string) error {
	t, err := c.engine.Store().Get(id)
	if err != nil {
		return fmt.Errorf("%w: %s", engine.ErrUnknownTask, id)
	}
	c.open(&PendingEdit{Mode: EditOpen, TaskID: id, Title: t.DisplayTitle(), Draft: model.DraftFromTask(t)})
	return nil
}

func (c *Controller) OpenDelete(id string) error {
	t, err := c.engine.Store().Get(id)
	if err != nil {
		return fmt.Errorf("%w: %s", engine.ErrUnknownTask, id)
	}
	c.open(&PendingEdit{Mode: DeleteConfirmOpen, TaskID: id, Title: t.DisplayTitle()})
	return nil
}

func (c *Controller) open(p *PendingEdit) {
	if c.pending != nil {
		appLog.Debug("closing dialog", "mode", c.pending.Mode, "id", c.pending.TaskID)
	}
	c.pending = p
	c.inFlight = nil
	c.err = nil
	appLog.Debug("dialog opened", "mode", p.Mode, "id", p.TaskID)
}

// Cancel discards the dialog. A request already sent still runs; its
// answer is no longer routed back here.
func (c *Controller) Cancel() {
	c.pending = nil
	c.inFlight = nil
	c.err = nil
}

func (c *Controller) edit(fn func(d *model.Draft)) error {
	if c.pending == nil {
		return ErrClosed
	}
	if c.pending.Mode == DeleteConfirmOpen {
		return ErrWrongMode
	}
	fn(&c.pending.Draft)
	return nil
}

func (c *Controller) SetContent(v string) error {
	return c.edit(func(d *model.Draft) { d.Content = v })
}

func (c *Controller) SetDescription(v string) error {
	return c.edit(func(d *model.Draft) { d.Description = v })
}

func (c *Controller) SetComplete(v model.Completion) error {
	return c.edit(func(d *model.Draft) { d.Complete = v })
}

func (c *Controller) SetStart(v time.Time) error {
	return c.edit(func(d *model.Draft) { d.Start = v })
}

// SetEnd sets the end bound; nil makes the task a point in time.
func (c *Controller) SetEnd(v *time.Time) error {
	return c.edit(func(d *model.Draft) {
		if v == nil {
			d.End = nil
			return
		}
		end := *v
		d.End = &end
	})
}

// Submit prepares the create or edit the form describes. A validation
// failure keeps the dialog open with the error.
func (c *Controller) Submit() (*engine.Op, error) {
	if c.pending == nil {
		return nil, ErrClosed
	}
	if c.inFlight != nil {
		return nil, ErrBusy
	}
	var (
		op  *engine.Op
		err error
	)
	switch c.pending.Mode {
	case CreateOpen:
		op, err = c.engine.PrepareCreate(c.pending.Draft)
	case EditOpen:
		op, err = c.engine.PrepareEdit(c.pending.TaskID, c.pending.Draft)
	default:
		return nil, ErrWrongMode
	}
	if err != nil {
		c.err = err
		return nil, err
	}
	c.inFlight = op
	c.err = nil
	return op, nil
}

// Confirm prepares the delete. It is the only way a delete is issued.
func (c *Controller) Confirm() (*engine.Op, error) {
	if c.pending == nil || c.pending.Mode != DeleteConfirmOpen {
		return nil, ErrNotConfirming
	}
	if c.inFlight != nil {
		return nil, ErrBusy
	}
	op, err := c.engine.PrepareDelete(c.pending.TaskID)
	if err != nil {
		c.err = err
		return nil, err
	}
	c.inFlight = op
	c.err = nil
	return op, nil
}

// Resolve routes the outcome of op back to the dialog. Success closes it;
// failure keeps it open for a retry. It reports false when op no longer
// belongs to the open dialog.
func (c *Controller) Resolve(op *engine.Op, err error) bool {
	if op == nil || c.inFlight != op {
		return false
	}
	c.inFlight = nil
	if err != nil {
		c.err = err
		return true
	}
	c.pending = nil
	c.err = nil
	return true
}
