package task

import "context"

// ListFilter narrows a task listing. Zero values mean no filter.
type ListFilter struct {
	Status Status
	Limit  int
}

// Repository defines the interface for task persistence.
type Repository interface {
	// Save persists a task (create or update).
	Save(ctx context.Context, t *Task) error

	// Get returns a task by id, or shared.ErrNotFound.
	Get(ctx context.Context, id string) (*Task, error)

	// ListByUser returns the user's tasks, oldest first.
	ListByUser(ctx context.Context, userID string, filter ListFilter) ([]*Task, error)

	// Delete removes a task, or returns shared.ErrNotFound.
	Delete(ctx context.Context, id string) error
}
