package task

import (
	"context"
	"errors"
	"time"
)

// Store errors.
var (
	ErrNotFound          = errors.New("task: not found")
	ErrInvalidTransition = errors.New("task: invalid state transition")
)

// ListFilter narrows List results. Zero values mean "no constraint".
type ListFilter struct {
	// State restricts to tasks in this state.
	State State

	// ChatID restricts to tasks created from this chat.
	ChatID string

	// Limit caps the number of returned tasks (newest first). 0 = all.
	Limit int
}

// Store persists tasks. Implementations must be safe for concurrent use.
// The sqlite module provides the durable implementation; the in-memory
// one backs tests and store-less deployments.
type Store interface {
	// Create persists a new task. The task ID must be unique.
	Create(ctx context.Context, t *Task) error

	// Get returns the task with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Task, error)

	// List returns tasks matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]*Task, error)

	// Transition moves a task to the next state, enforcing the state
	// machine. detail lands in Result for terminal states.
	Transition(ctx context.Context, id string, next State, detail string) (*Task, error)

	// CountByState returns the number of tasks in each state. States
	// with no tasks are absent from the map.
	CountByState(ctx context.Context) (map[State]int, error)

	// Prune deletes terminal tasks older than the cutoff. Returns how
	// many were removed.
	Prune(ctx context.Context, olderThan time.Time) (int, error)
}
