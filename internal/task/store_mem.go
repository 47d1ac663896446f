package task

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// InMemoryStore is a thread-safe, in-memory implementation of Store.
// Used by tests and by deployments that run without the sqlite module.
type InMemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*Task
	now   func() time.Time
}

// NewInMemoryStore creates a new empty task store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		tasks: make(map[string]*Task),
		now:   time.Now,
	}
}

// Compile-time interface check.
var _ Store = (*InMemoryStore)(nil)

// Create persists a new task.
func (s *InMemoryStore) Create(_ context.Context, t *Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("task: duplicate ID %s", t.ID)
	}
	cp := *t
	s.tasks[t.ID] = &cp
	return nil
}

// Get returns the task with the given ID.
func (s *InMemoryStore) Get(_ context.Context, id string) (*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// List returns tasks matching the filter, newest first.
func (s *InMemoryStore) List(_ context.Context, filter ListFilter) ([]*Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var results []*Task
	for _, t := range s.tasks {
		if filter.State != "" && t.State != filter.State {
			continue
		}
		if filter.ChatID != "" && t.ChatID != filter.ChatID {
			continue
		}
		cp := *t
		results = append(results, &cp)
	}

	sort.Slice(results, func(i, j int) bool {
		if !results[i].CreatedAt.Equal(results[j].CreatedAt) {
			return results[i].CreatedAt.After(results[j].CreatedAt)
		}
		return results[i].ID > results[j].ID
	})

	if filter.Limit > 0 && len(results) > filter.Limit {
		results = results[:filter.Limit]
	}
	return results, nil
}

// Transition moves a task through the state machine.
func (s *InMemoryStore) Transition(_ context.Context, id string, next State, detail string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	if !t.State.CanTransition(next) {
		return nil, fmt.Errorf("%w: %s → %s", ErrInvalidTransition, t.State, next)
	}

	t.State = next
	t.UpdatedAt = s.now()
	if detail != "" && next.Terminal() {
		t.Result = detail
	}
	cp := *t
	return &cp, nil
}

// CountByState returns how many tasks sit in each state.
func (s *InMemoryStore) CountByState(_ context.Context) (map[State]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[State]int)
	for _, t := range s.tasks {
		counts[t.State]++
	}
	return counts, nil
}

// Prune deletes terminal tasks whose last update is older than the cutoff.
func (s *InMemoryStore) Prune(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	pruned := 0
	for id, t := range s.tasks {
		if t.State.Terminal() && t.UpdatedAt.Before(olderThan) {
			delete(s.tasks, id)
			pruned++
		}
	}
	return pruned, nil
}
