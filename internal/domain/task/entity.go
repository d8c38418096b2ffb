// Package task contains the daily task entity. Tasks come from trials,
// council verdicts or are written by the user.
package task

import (
	"strings"
	"time"

	"github.com/imperium-ai/imperium/internal/domain/shared"
	"github.com/imperium-ai/imperium/pkg/timeutil"
)

// Status is the lifecycle state of a task.
type Status string

const (
	StatusTodo    Status = "todo"
	StatusDone    Status = "done"
	StatusSkipped Status = "skipped"
)

// IsValid checks the status value.
func (s Status) IsValid() bool {
	switch s {
	case StatusTodo, StatusDone, StatusSkipped:
		return true
	}
	return false
}

// Source says where a task came from.
type Source string

const (
	SourceTrial   Source = "trial"
	SourceCouncil Source = "council"
	SourceManual  Source = "manual"
)

// IsValid checks the source value.
func (s Source) IsValid() bool {
	switch s {
	case SourceTrial, SourceCouncil, SourceManual:
		return true
	}
	return false
}

// Task is a to-do item. Only todo tasks can move; done and skipped are final.
type Task struct {
	ID          string
	UserID      string
	Title       string
	Description string
	Source      Source
	SourceName  string
	Status      Status
	// DueDate is zero when the task has no due date.
	DueDate     timeutil.Date
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewTask creates a todo task.
func NewTask(id, userID, title, description string, source Source, sourceName string, due timeutil.Date, now time.Time) (*Task, error) {
	title = strings.TrimSpace(title)
	if id == "" || userID == "" {
		return nil, shared.NewDomainError("task", "NewTask", shared.ErrInvalidArgument, "task and user ids are required")
	}
	if title == "" {
		return nil, shared.NewDomainError("task", "NewTask", shared.ErrInvalidArgument, "task title is required")
	}
	if source == "" {
		source = SourceManual
	}
	if !source.IsValid() {
		return nil, shared.Errorf("task", "NewTask", shared.ErrInvalidArgument, "unknown task source %q", source)
	}

	return &Task{
		ID:          id,
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(description),
		Source:      source,
		SourceName:  sourceName,
		Status:      StatusTodo,
		DueDate:     due,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Complete moves a todo task to done.
func (t *Task) Complete(at time.Time) error {
	if t.Status != StatusTodo {
		return shared.Errorf("task", "Complete", shared.ErrInvalidState, "task %s is %s", t.ID, t.Status)
	}
	t.Status = StatusDone
	t.CompletedAt = &at
	t.UpdatedAt = at
	return nil
}

// Skip moves a todo task to skipped.
func (t *Task) Skip(at time.Time) error {
	if t.Status != StatusTodo {
		return shared.Errorf("task", "Skip", shared.ErrInvalidState, "task %s is %s", t.ID, t.Status)
	}
	t.Status = StatusSkipped
	t.UpdatedAt = at
	return nil
}

// IsOverdue reports whether a todo task's due date is before today.
func (t *Task) IsOverdue(today timeutil.Date) bool {
	return t.Status == StatusTodo && !t.DueDate.IsZero() && t.DueDate.Before(today)
}

// Counts tallies tasks by status.
type Counts struct {
	Todo    int
	Done    int
	Skipped int
}

// CountByStatus tallies tasks.
func CountByStatus(tasks []*Task) Counts {
	var c Counts
	for _, t := range tasks {
		switch t.Status {
		case StatusTodo:
			c.Todo++
		case StatusDone:
			c.Done++
		case StatusSkipped:
			c.Skipped++
		}
	}
	return c
}
