package mission

import (
	"errors"
	"fmt"
	"sync"

	"github.com/signalsfoundry/rescue-mission-sim/model"
	"github.com/signalsfoundry/rescue-mission-sim/timectrl"
)

// ErrTaskNotFound is returned by SetStatus for an unknown task ID.
var ErrTaskNotFound = errors.New("task not found")

// Scheduler owns the task table and hands out pending tasks by priority.
//
// Status updates are intentionally permissive: any status may overwrite any
// other, matching the driver layers that reset or retry tasks directly. Only
// TaskCompleted has a side effect, stamping CompletedAt.
type Scheduler struct {
	mu     sync.Mutex
	clock  timectrl.Clock
	tasks  map[int]*model.Task
	order  []int
	nextID int
}

// NewScheduler creates an empty scheduler. A nil clock uses the wall clock.
func NewScheduler(clock timectrl.Clock) *Scheduler {
	if clock == nil {
		clock = timectrl.RealClock{}
	}
	return &Scheduler{
		clock:  clock,
		tasks:  make(map[int]*model.Task),
		nextID: 1,
	}
}

// Add queues a new pending task and returns a copy of it.
func (s *Scheduler) Add(target, priority int, description string) model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	task := &model.Task{
		ID:          s.nextID,
		Target:      target,
		Priority:    priority,
		Description: description,
		Status:      model.TaskPending,
		CreatedAt:   s.clock.Now(),
	}
	s.tasks[task.ID] = task
	s.order = append(s.order, task.ID)
	s.nextID++
	return *task
}

// NextPending returns the pending task with the smallest priority value.
// Ties go to the earliest inserted task.
func (s *Scheduler) NextPending() (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var best *model.Task
	for _, id := range s.order {
		t := s.tasks[id]
		if t.Status != model.TaskPending {
			continue
		}
		if best == nil || t.Priority < best.Priority {
			best = t
		}
	}
	if best == nil {
		return model.Task{}, false
	}
	return copyTask(best), true
}

// SetStatus overwrites the status of task id.
func (s *Scheduler) SetStatus(id int, status model.TaskStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return fmt.Errorf("set status of task %d: %w", id, ErrTaskNotFound)
	}
	t.Status = status
	if status == model.TaskCompleted {
		now := s.clock.Now()
		t.CompletedAt = &now
	}
	return nil
}

// Get returns a copy of task id.
func (s *Scheduler) Get(id int) (model.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	if !ok {
		return model.Task{}, false
	}
	return copyTask(t), true
}

// Tasks returns copies of every task ordered by ID. IDs are handed out in
// insertion order, so s.order is already sorted.
func (s *Scheduler) Tasks() []model.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Task, 0, len(s.tasks))
	for _, id := range s.order {
		out = append(out, copyTask(s.tasks[id]))
	}
	return out
}

// PendingCount returns the number of tasks still pending.
func (s *Scheduler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if t.Status == model.TaskPending {
			n++
		}
	}
	return n
}

// Stats counts tasks per status. Every status is present, zero or not, and
// the counts always sum to the number of tasks ever added.
func (s *Scheduler) Stats() map[model.TaskStatus]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := make(map[model.TaskStatus]int, len(model.AllTaskStatuses))
	for _, st := range model.AllTaskStatuses {
		stats[st] = 0
	}
	for _, t := range s.tasks {
		stats[t.Status]++
	}
	return stats
}

// StatsByName is Stats keyed by status name.
func (s *Scheduler) StatsByName() map[string]int {
	stats := s.Stats()
	out := make(map[string]int, len(stats))
	for st, n := range stats {
		out[st.String()] = n
	}
	return out
}

func copyTask(t *model.Task) model.Task {
	c := *t
	if t.CompletedAt != nil {
		ts := *t.CompletedAt
		c.CompletedAt = &ts
	}
	return c
}
