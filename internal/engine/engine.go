// Package engine applies user mutations to the event store in two phases:
// Prepare validates and numbers an operation, Op.Run performs the remote
// call, and Commit reconciles the answer or rolls the gesture back.
//
// Prepare and Commit must be called from one goroutine (the UI loop). Run
// touches no engine state and may be called from anywhere.
package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sandeepkv93/taskcal/internal/eventstore"
	appLog "github.com/sandeepkv93/taskcal/internal/log"
	"github.com/sandeepkv93/taskcal/internal/model"
	"github.com/sandeepkv93/taskcal/internal/taskapi"
)

// Surface is the rendering side. It hears about store changes and is told
// to undo a drag or resize the remote rejected.
type Surface interface {
	eventstore.Listener
	RevertGesture(task model.Task)
}

type Kind string

const (
	KindLoad      Kind = "load"
	KindCreate    Kind = "create"
	KindEdit      Kind = "edit"
	KindMove      Kind = "move"
	KindResize    Kind = "resize"
	KindDuplicate Kind = "duplicate"
	KindDelete    Kind = "delete"
)

// Op is a prepared operation. It is immutable once returned by Prepare.
type Op struct {
	Kind   Kind
	TaskID string
	Seq    uint64
	OpID   string

	draft  model.Draft
	start  time.Time
	end    *time.Time
	source model.Task
	client taskapi.Client
}

// Outcome is what Run produced; hand it back to Commit on the UI loop.
type Outcome struct {
	Op      *Op
	Record  taskapi.Record
	Records []taskapi.Record
	Err     error
}

// Result describes what Commit did to the store.
type Result struct {
	Op   *Op
	Task model.Task
	// Stale is true when a later operation on the same task had already
	// been reconciled, or the task was gone, and this answer was dropped.
	Stale  bool
	Loaded int
}

type Option func(*Engine)

func WithSurface(s Surface) Option {
	return func(e *Engine) { e.surface = s }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

type Engine struct {
	store   *eventstore.Store
	client  taskapi.Client
	surface Surface
	now     func() time.Time

	seq      uint64
	issued   map[string]uint64
	applied  map[string]appliedSeq
	answered map[string]uint64

	// gestures holds the newest move or resize per task whose drawn
	// position the store has not confirmed yet.
	gestures map[string]*Op

	// reconciled is set by the first successful commit.
	reconciled bool
}

// appliedSeq is the newest reconciled sequence per field group. Bounds are
// start and end; fields are title, content, description and complete.
type appliedSeq struct {
	bounds uint64
	fields uint64
}

func (a appliedSeq) latest() uint64 {
	return max(a.bounds, a.fields)
}

func New(store *eventstore.Store, client taskapi.Client, opts ...Option) *Engine {
	e := &Engine{
		store:    store,
		client:   client,
		now:      time.Now,
		issued:   make(map[string]uint64),
		applied:  make(map[string]appliedSeq),
		answered: make(map[string]uint64),
		gestures: make(map[string]*Op),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.surface != nil {
		store.SetListener(e.surface)
	}
	return e
}

func (e *Engine) Store() *eventstore.Store {
	return e.store
}

// InFlight reports whether an operation on id was issued but not yet
// reconciled.
func (e *Engine) InFlight(id string) bool {
	return e.issued[id] > max(e.applied[id].latest(), e.answered[id])
}

// newOp numbers an operation. Operations that mutate an existing task are
// recorded as issued against it.
func (e *Engine) newOp(kind Kind, id string) *Op {
	e.seq++
	if id != "" && kind != KindDuplicate {
		e.issued[id] = e.seq
	}
	return &Op{Kind: kind, TaskID: id, Seq: e.seq, OpID: uuid.NewString(), client: e.client}
}

func (e *Engine) PrepareLoad() *Op {
	return e.newOp(KindLoad, "")
}

func (e *Engine) PrepareCreate(d model.Draft) (*Op, error) {
	d = normalizeDraft(d)
	if err := ValidateDraft(d); err != nil {
		return nil, err
	}
	op := e.newOp(KindCreate, "")
	op.draft = d
	return op, nil
}

func (e *Engine) PrepareEdit(id string, d model.Draft) (*Op, error) {
	d = normalizeDraft(d)
	if err := ValidateDraft(d); err != nil {
		return nil, err
	}
	if !e.store.Has(id) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	op := e.newOp(KindEdit, id)
	op.draft = d
	return op, nil
}

// PrepareMove is called after the surface has already drawn the task at
// its new position.
func (e *Engine) PrepareMove(id string, start time.Time, end *time.Time) (*Op, error) {
	return e.prepareBounds(KindMove, id, start, end)
}

func (e *Engine) PrepareResize(id string, start time.Time, end *time.Time) (*Op, error) {
	return e.prepareBounds(KindResize, id, start, end)
}

func (e *Engine) prepareBounds(kind Kind, id string, start time.Time, end *time.Time) (*Op, error) {
	if err := validateBounds(start, end); err != nil {
		return nil, err
	}
	if !e.store.Has(id) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	op := e.newOp(kind, id)
	op.start = start
	if end != nil {
		v := *end
		op.end = &v
	}
	e.gestures[id] = op
	return op, nil
}

func (e *Engine) PrepareDuplicate(id string) (*Op, error) {
	src, err := e.store.Get(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	op := e.newOp(KindDuplicate, id)
	op.source = src
	return op, nil
}

// PrepareDelete must only be reached through a confirmed delete dialog.
func (e *Engine) PrepareDelete(id string) (*Op, error) {
	if !e.store.Has(id) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, id)
	}
	return e.newOp(KindDelete, id), nil
}

// Run performs the remote call.
func (op *Op) Run(ctx context.Context) Outcome {
	out := Outcome{Op: op}
	switch op.Kind {
	case KindLoad:
		out.Records, out.Err = op.client.List(ctx)
	case KindCreate:
		out.Record, out.Err = op.client.Create(ctx, op.draft)
	case KindEdit:
		out.Record, out.Err = op.client.Edit(ctx, op.TaskID, op.draft)
	case KindMove:
		out.Err = op.client.Move(ctx, op.TaskID, op.start, op.end)
	case KindResize:
		out.Err = op.client.Resize(ctx, op.TaskID, op.start, op.end)
	case KindDuplicate:
		out.Record, out.Err = op.client.Duplicate(ctx, op.TaskID)
	case KindDelete:
		out.Err = op.client.Delete(ctx, op.TaskID)
	default:
		out.Err = fmt.Errorf("%w: %s", ErrUnknownOpKind, op.Kind)
	}
	return out
}

// Do runs both phases synchronously.
func (e *Engine) Do(ctx context.Context, op *Op) (Result, error) {
	return e.Commit(op.Run(ctx))
}

// Commit reconciles an outcome into the store. Remote and transport errors
// are returned unchanged so callers can match them with errors.As.
func (e *Engine) Commit(out Outcome) (Result, error) {
	op := out.Op
	if op == nil {
		return Result{}, errors.New("engine: outcome without operation")
	}
	res := Result{Op: op}
	if out.Err != nil {
		appLog.Error("operation failed", out.Err, "op", op.Kind, "id", op.TaskID, "seq", op.Seq, "op_id", op.OpID)
		e.markAnswered(op)
		e.settleGesture(op)
		return res, out.Err
	}

	e.reconciled = true
	switch op.Kind {
	case KindLoad:
		res.Loaded = e.commitLoad(op, out.Records)
		return res, nil
	case KindCreate:
		return e.commitAdd(op, out.Record, out.Record.MergeDraft(op.draft))
	case KindDuplicate:
		if out.Record.ID == op.TaskID {
			err := &taskapi.TransportError{Op: taskapi.OpDuplicate, Err: ErrReusedID}
			appLog.Error("operation failed", err, "op", op.Kind, "id", op.TaskID, "op_id", op.OpID)
			return res, err
		}
		return e.commitAdd(op, out.Record, out.Record.MergeTask(op.source))
	}

	var err error
	switch op.Kind {
	case KindEdit:
		res, err = e.commitEdit(op, out.Record)
	case KindMove, KindResize:
		res, err = e.commitBounds(op)
	case KindDelete:
		res, err = e.commitDelete(op)
	default:
		return res, fmt.Errorf("%w: %s", ErrUnknownOpKind, op.Kind)
	}
	if errors.Is(err, eventstore.ErrNotFound) {
		appLog.Info("task vanished before reconciliation", "op", op.Kind, "id", op.TaskID, "op_id", op.OpID)
		res.Stale = true
		err = nil
	}
	e.settleGesture(op)
	return res, err
}

// commitEdit applies an edit per field group. A move or resize issued after
// the edit and already reconciled keeps its bounds; the edit's other fields
// still land.
func (e *Engine) commitEdit(op *Op, rec taskapi.Record) (Result, error) {
	res := Result{Op: op}
	seen := e.applied[op.TaskID]
	fields, bounds := op.Seq >= seen.fields, op.Seq >= seen.bounds
	if !fields && !bounds {
		e.dropStale(op)
		res.Stale = true
		return res, nil
	}
	p := fullPatch(rec.MergeDraft(op.draft))
	if fields {
		seen.fields = op.Seq
	} else {
		p.Title, p.Content, p.Description, p.Complete = nil, nil, nil, nil
	}
	if bounds {
		seen.bounds = op.Seq
	} else {
		p.Start, p.End, p.EndSet = nil, nil, false
		appLog.Info("edit keeps newer bounds", "id", op.TaskID, "seq", op.Seq, "bounds_seq", seen.bounds, "op_id", op.OpID)
	}
	e.applied[op.TaskID] = seen
	var err error
	res.Task, err = e.patchAndClassify(op.TaskID, p)
	return res, err
}

func (e *Engine) commitBounds(op *Op) (Result, error) {
	res := Result{Op: op}
	seen := e.applied[op.TaskID]
	if op.Seq < seen.bounds {
		e.dropStale(op)
		res.Stale = true
		return res, nil
	}
	seen.bounds = op.Seq
	e.applied[op.TaskID] = seen
	var err error
	res.Task, err = e.patchAndClassify(op.TaskID, model.BoundsPatch(op.start, op.end))
	if err == nil && e.gestures[op.TaskID] == op {
		// The store now holds what the surface drew.
		delete(e.gestures, op.TaskID)
	}
	return res, err
}

func (e *Engine) commitDelete(op *Op) (Result, error) {
	res := Result{Op: op}
	if op.Seq < e.applied[op.TaskID].latest() {
		e.dropStale(op)
		res.Stale = true
		return res, nil
	}
	e.applied[op.TaskID] = appliedSeq{bounds: op.Seq, fields: op.Seq}
	if err := e.store.Remove(op.TaskID); err != nil {
		return res, err
	}
	appLog.Info("task deleted", "id", op.TaskID, "op_id", op.OpID)
	return res, nil
}

// Seed fills an empty store from an offline snapshot so the surface has
// something to show before the first load. It does nothing once the store
// holds records or any operation has been reconciled.
func (e *Engine) Seed(tasks []model.Task) int {
	if e.store.Len() > 0 || e.reconciled {
		return 0
	}
	now := e.now()
	count := 0
	for _, t := range tasks {
		t.Status = model.Classify(t, now)
		if _, err := e.store.Add(t); err != nil {
			appLog.Error("seed skipped task", err, "id", t.ID)
			continue
		}
		count++
	}
	appLog.Info("seeded from snapshot", "count", count)
	return count
}

// Refresh reclassifies every record and returns the ones that changed.
func (e *Engine) Refresh(now time.Time) []model.Task {
	changed := e.store.ClassifyAll(now)
	if len(changed) > 0 {
		appLog.Debug("reclassified", "changed", len(changed))
	}
	return changed
}

// dropStale discards an answer a newer reconciliation already covered.
func (e *Engine) dropStale(op *Op) {
	seen := e.applied[op.TaskID]
	appLog.Info("dropping stale reconciliation", "op", op.Kind, "id", op.TaskID, "seq", op.Seq, "bounds_seq", seen.bounds, "fields_seq", seen.fields, "op_id", op.OpID)
	e.markAnswered(op)
}

// markAnswered records an answer that changed nothing, a failure or a
// stale success. It does not count as applied: an older success arriving
// later still reflects remote state.
func (e *Engine) markAnswered(op *Op) {
	if op.TaskID == "" || op.Kind == KindDuplicate {
		return
	}
	e.answered[op.TaskID] = max(e.answered[op.TaskID], op.Seq)
}

// settleGesture redraws a dragged or resized task from the store once no
// operation on it is outstanding and the store does not hold the drawn
// bounds, because the gesture failed or a newer reconciliation replaced it.
// While operations are pending the newest gesture stays drawn.
func (e *Engine) settleGesture(op *Op) {
	id := op.TaskID
	if id == "" || op.Kind == KindDuplicate {
		return
	}
	g, ok := e.gestures[id]
	if !ok || e.InFlight(id) {
		return
	}
	delete(e.gestures, id)
	committed, err := e.store.Get(id)
	if err != nil {
		return
	}
	if sameBounds(committed, g.start, g.end) {
		return
	}
	appLog.Info("redrawing gesture from store", "id", id, "gesture_seq", g.Seq, "op", op.Kind, "op_seq", op.Seq)
	if e.surface != nil {
		e.surface.RevertGesture(committed)
	}
}

func sameBounds(t model.Task, start time.Time, end *time.Time) bool {
	if !t.Start.Equal(start) {
		return false
	}
	if t.End == nil || end == nil {
		return t.End == nil && end == nil
	}
	return t.End.Equal(*end)
}

func (e *Engine) commitAdd(op *Op, rec taskapi.Record, merged model.Task) (Result, error) {
	res := Result{Op: op}
	if strings.TrimSpace(rec.ID) == "" {
		err := &taskapi.TransportError{Op: string(op.Kind), Err: ErrMissingID}
		appLog.Error("operation failed", err, "op", op.Kind, "op_id", op.OpID)
		return res, err
	}
	id := strings.TrimSpace(rec.ID)
	merged.ID = id
	var (
		added model.Task
		err   error
	)
	if e.store.Has(id) {
		// A reload already brought the new task in; the answer still wins.
		added, err = e.patchAndClassify(id, fullPatch(merged))
	} else {
		merged.Status = model.Classify(merged, e.now())
		added, err = e.store.Add(merged)
	}
	if err != nil {
		return res, err
	}
	e.issued[id] = max(e.issued[id], op.Seq)
	seen := e.applied[id]
	e.applied[id] = appliedSeq{bounds: max(seen.bounds, op.Seq), fields: max(seen.fields, op.Seq)}
	appLog.Info("task added", "op", op.Kind, "id", id, "op_id", op.OpID)
	res.Task = added
	return res, nil
}

func (e *Engine) patchAndClassify(id string, p model.Patch) (model.Task, error) {
	return e.store.PatchClassified(id, p, e.now())
}

// touchedSince reports whether id has an unanswered operation or one issued
// after seq.
func (e *Engine) touchedSince(id string, seq uint64) bool {
	return e.issued[id] > seq || e.applied[id].latest() > seq || e.InFlight(id)
}

// commitLoad reconciles the full list. Tasks touched by operations issued
// after the load keep their local state.
func (e *Engine) commitLoad(op *Op, recs []taskapi.Record) int {
	now := e.now()
	seen := make(map[string]bool, len(recs))
	count := 0
	for _, rec := range recs {
		id := strings.TrimSpace(rec.ID)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if e.touchedSince(id, op.Seq) {
			continue
		}
		if existing, err := e.store.Get(id); err == nil {
			merged := rec.MergeTask(existing)
			if _, err := e.patchAndClassify(id, fullPatch(merged)); err != nil {
				appLog.Error("load patch failed", err, "id", id)
				continue
			}
		} else {
			task := rec.Task()
			task.ID = id
			task.Status = model.Classify(task, now)
			if _, err := e.store.Add(task); err != nil {
				appLog.Error("load add failed", err, "id", id)
				continue
			}
		}
		e.applied[id] = appliedSeq{bounds: op.Seq, fields: op.Seq}
		count++
	}
	for _, t := range e.store.All() {
		if seen[t.ID] || e.touchedSince(t.ID, op.Seq) {
			continue
		}
		if err := e.store.Remove(t.ID); err == nil {
			delete(e.gestures, t.ID)
			appLog.Info("task removed remotely", "id", t.ID)
		}
	}
	appLog.Info("tasks loaded", "count", count, "op_id", op.OpID)
	return count
}

func normalizeDraft(d model.Draft) model.Draft {
	d.Content = strings.TrimSpace(d.Content)
	if d.End != nil {
		end := *d.End
		d.End = &end
	}
	return d
}

func fullPatch(t model.Task) model.Patch {
	title := t.Title
	content := t.Content
	description := t.Description
	start := t.Start
	complete := t.Complete
	p := model.Patch{
		Title:       &title,
		Content:     &content,
		Description: &description,
		Start:       &start,
		EndSet:      true,
		Complete:    &complete,
	}
	if t.End != nil {
		end := *t.End
		p.End = &end
	}
	return p
}
