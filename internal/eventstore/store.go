// Package eventstore holds the calendar events currently drawn on the
// surface. It is owned by a single event loop and is not safe for
// concurrent use.
package eventstore

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sandeepkv93/taskcal/internal/model"
)

var (
	ErrNotFound  = errors.New("eventstore: not found")
	ErrDuplicate = errors.New("eventstore: duplicate id")
	ErrMissingID = errors.New("eventstore: id is required")
)

// Listener is told about every change after it has been applied.
type Listener interface {
	EventAdded(model.Task)
	EventPatched(model.Task)
	EventRemoved(id string)
}

type Store struct {
	order    []string
	records  map[string]model.Task
	listener Listener
}

func New() *Store {
	return &Store{records: make(map[string]model.Task)}
}

func (s *Store) SetListener(l Listener) {
	s.listener = l
}

func (s *Store) Add(t model.Task) (model.Task, error) {
	id := strings.TrimSpace(t.ID)
	if id == "" {
		return model.Task{}, ErrMissingID
	}
	if _, ok := s.records[id]; ok {
		return model.Task{}, fmt.Errorf("%w: %s", ErrDuplicate, id)
	}
	t = t.Clone()
	t.ID = id
	if t.Status == "" {
		t.Status = model.StatusNormal
	}
	s.records[id] = t
	s.order = append(s.order, id)
	if s.listener != nil {
		s.listener.EventAdded(t.Clone())
	}
	return t.Clone(), nil
}

func (s *Store) Get(id string) (model.Task, error) {
	t, ok := s.records[id]
	if !ok {
		return model.Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return t.Clone(), nil
}

func (s *Store) Has(id string) bool {
	_, ok := s.records[id]
	return ok
}

// Patch merges the provided fields into the stored record.
func (s *Store) Patch(id string, p model.Patch) (model.Task, error) {
	t, ok := s.records[id]
	if !ok {
		return model.Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t = p.Apply(t)
	s.records[id] = t
	if s.listener != nil {
		s.listener.EventPatched(t.Clone())
	}
	return t.Clone(), nil
}

// PatchClassified merges p and recomputes the status at now before
// notifying, so listeners hear one change.
func (s *Store) PatchClassified(id string, p model.Patch, now time.Time) (model.Task, error) {
	t, ok := s.records[id]
	if !ok {
		return model.Task{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	t = p.Apply(t)
	t.Status = model.Classify(t, now)
	s.records[id] = t
	if s.listener != nil {
		s.listener.EventPatched(t.Clone())
	}
	return t.Clone(), nil
}

func (s *Store) Remove(id string) error {
	if _, ok := s.records[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.records, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	if s.listener != nil {
		s.listener.EventRemoved(id)
	}
	return nil
}

// All returns a snapshot in insertion order.
func (s *Store) All() []model.Task {
	out := make([]model.Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.records[id].Clone())
	}
	return out
}

func (s *Store) Len() int {
	return len(s.order)
}

// Classify recomputes the status of one record and reports whether it
// changed. Listeners hear about the change as a patch.
func (s *Store) Classify(id string, now time.Time) (model.Task, bool, error) {
	t, ok := s.records[id]
	if !ok {
		return model.Task{}, false, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	next := model.Classify(t, now)
	if next == t.Status {
		return t.Clone(), false, nil
	}
	t.Status = next
	s.records[id] = t
	if s.listener != nil {
		s.listener.EventPatched(t.Clone())
	}
	return t.Clone(), true, nil
}

// ClassifyAll recomputes every record and returns those whose status
// changed, in insertion order.
func (s *Store) ClassifyAll(now time.Time) []model.Task {
	changed := make([]model.Task, 0)
	for _, id := range s.order {
		t, ok, err := s.Classify(id, now)
		if err == nil && ok {
			changed = append(changed, t)
		}
	}
	return changed
}
