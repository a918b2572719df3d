// Package scheduler wakes the UI loop when a task's deadline passes so the
// calendar can be reclassified without polling.
package scheduler

import (
	"container/heap"
	"errors"
	"sync"
	"sync/atomic"
	"time"
)

var (
	ErrZeroDeadline = errors.New("scheduler: zero deadline")
	ErrStopped      = errors.New("scheduler: timer stopped")
)

// Wakeup is emitted once the deadline of TaskID is reached.
type Wakeup struct {
	TaskID   string
	Deadline time.Time
}

type entry struct {
	wake Wakeup
	gen  uint64
}

type deadlineQueue []entry

func (q deadlineQueue) Len() int { return len(q) }

func (q deadlineQueue) Less(i, j int) bool {
	return q[i].wake.Deadline.Before(q[j].wake.Deadline)
}

func (q deadlineQueue) Swap(i, j int) {
	q[i], q[j] = q[j], q[i]
}

func (q *deadlineQueue) Push(x any) {
	*q = append(*q, x.(entry))
}

func (q *deadlineQueue) Pop() any {
	old := *q
	n := len(old)
	item := old[n-1]
	*q = old[0 : n-1]
	return item
}

// Timer holds at most one live deadline per task. Rescheduling a task
// supersedes its earlier deadline; superseded entries are skipped when they
// surface at the top of the heap.
type Timer struct {
	mu      sync.Mutex
	queue   deadlineQueue
	live    map[string]uint64
	gen     uint64
	now     func() time.Time
	out     chan Wakeup
	wakeup  chan struct{}
	stopCh  chan struct{}
	doneCh  chan struct{}
	started bool
	stopped bool
	dropped uint64
}

func NewTimer(bufferSize int) *Timer {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	return &Timer{
		queue:  make(deadlineQueue, 0),
		live:   make(map[string]uint64),
		now:    time.Now,
		out:    make(chan Wakeup, bufferSize),
		wakeup: make(chan struct{}, 1),
		stopCh: make(chan struct{}),
		doneCh: make(chan struct{}),
	}
}

func (t *Timer) C() <-chan Wakeup {
	return t.out
}

func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return
	}
	t.started = true
	heap.Init(&t.queue)
	go t.loop()
}

func (t *Timer) Stop() {
	t.mu.Lock()
	if !t.started || t.stopped {
		t.stopped = true
		t.mu.Unlock()
		return
	}
	t.stopped = true
	close(t.stopCh)
	t.mu.Unlock()
	<-t.doneCh
}

// Schedule sets the deadline for taskID, replacing any earlier one.
// Deadlines already in the past are ignored: the task is classified as
// overdue when it is stored.
func (t *Timer) Schedule(taskID string, deadline time.Time) error {
	if deadline.IsZero() {
		return ErrZeroDeadline
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stopped {
		return ErrStopped
	}
	if !deadline.After(t.now()) {
		delete(t.live, taskID)
		return nil
	}
	t.gen++
	t.live[taskID] = t.gen
	heap.Push(&t.queue, entry{wake: Wakeup{TaskID: taskID, Deadline: deadline}, gen: t.gen})
	t.signalWakeup()
	return nil
}

// Cancel forgets the deadline for taskID.
func (t *Timer) Cancel(taskID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.live, taskID)
}

// Pending is the number of live deadlines.
func (t *Timer) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.live)
}

func (t *Timer) Dropped() uint64 {
	return atomic.LoadUint64(&t.dropped)
}

func (t *Timer) loop() {
	defer close(t.doneCh)
	defer close(t.out)

	var timer *time.Timer
	for {
		next, hasNext := t.peek()
		if !hasNext {
			select {
			case <-t.wakeup:
				continue
			case <-t.stopCh:
				return
			}
		}

		wait := time.Until(next.Deadline)
		if wait < 0 {
			wait = 0
		}
		timer = resetTimer(timer, wait)

		select {
		case <-timer.C:
			for _, w := range t.popDue(t.now()) {
				select {
				case t.out <- w:
				default:
					atomic.AddUint64(&t.dropped, 1)
				}
			}
		case <-t.wakeup:
			continue
		case <-t.stopCh:
			stopTimer(timer)
			return
		}
	}
}

func (t *Timer) signalWakeup() {
	select {
	case t.wakeup <- struct{}{}:
	default:
	}
}

// peek returns the earliest live deadline, discarding superseded ones.
func (t *Timer) peek() (Wakeup, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for len(t.queue) > 0 {
		top := t.queue[0]
		if t.live[top.wake.TaskID] == top.gen {
			return top.wake, true
		}
		heap.Pop(&t.queue)
	}
	return Wakeup{}, false
}

func (t *Timer) popDue(now time.Time) []Wakeup {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Wakeup, 0)
	for len(t.queue) > 0 {
		top := t.queue[0]
		if top.wake.Deadline.After(now) {
			break
		}
		heap.Pop(&t.queue)
		if t.live[top.wake.TaskID] != top.gen {
			continue
		}
		delete(t.live, top.wake.TaskID)
		out = append(out, top.wake)
	}
	return out
}

func resetTimer(timer *time.Timer, d time.Duration) *time.Timer {
	if timer == nil {
		return time.NewTimer(d)
	}
	stopTimer(timer)
	timer.Reset(d)
	return timer
}

func stopTimer(timer *time.Timer) {
	if timer == nil {
		return
	}
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
}
