package model

import (
	"fmt"
	"strings"
	"time"
)

// TaskStatus is the lifecycle state of a mission task. The set is closed:
// Pending -> InProgress -> one of Completed, Failed or Error.
type TaskStatus int

const (
	TaskPending    TaskStatus = iota // queued, not yet picked up
	TaskInProgress                   // the agent is en route
	TaskCompleted                    // every hop of the route was walked
	TaskFailed                       // no route to the target
	TaskError                        // telemetry could not be recovered mid-route
)

// AllTaskStatuses lists every status in declaration order.
var AllTaskStatuses = []TaskStatus{
	TaskPending,
	TaskInProgress,
	TaskCompleted,
	TaskFailed,
	TaskError,
}

func (s TaskStatus) String() string {
	switch s {
	case TaskPending:
		return "PENDING"
	case TaskInProgress:
		return "IN_PROGRESS"
	case TaskCompleted:
		return "COMPLETED"
	case TaskFailed:
		return "FAILED"
	case TaskError:
		return "ERROR"
	default:
		return fmt.Sprintf("TaskStatus(%d)", int(s))
	}
}

// Terminal reports whether no further work happens for a task in this state.
func (s TaskStatus) Terminal() bool {
	return s == TaskCompleted || s == TaskFailed || s == TaskError
}

// ParseTaskStatus maps a status name (case-insensitive) back to its value.
func ParseTaskStatus(name string) (TaskStatus, error) {
	for _, s := range AllTaskStatuses {
		if strings.EqualFold(s.String(), name) {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown task status %q", name)
}

// Task is one destination the agent must reach.
type Task struct {
	// ID is allocated by the scheduler, starting at 1.
	ID int
	// Target is the destination node.
	Target int
	// Priority orders service; lower values are more urgent.
	Priority    int
	Description string
	Status      TaskStatus
	CreatedAt   time.Time
	// CompletedAt is stamped only when the task reaches TaskCompleted.
	CompletedAt *time.Time
}
