// Package memory provides in-memory storage implementations. They back
// tests and single-process deployments; durable stores live beside them.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/task"
)

// taskEntry holds a serialized copy of a task so callers never share
// mutable state with the store.
type taskEntry struct {
	data    []byte
	version int64
}

// TaskStore is an in-memory implementation of task.Store.
type TaskStore struct {
	tasks map[string]*taskEntry
	mu    sync.RWMutex
}

// NewTaskStore creates a new in-memory task store.
func NewTaskStore() *TaskStore {
	return &TaskStore{
		tasks: make(map[string]*taskEntry),
	}
}

// Create persists a new task.
func (s *TaskStore) Create(ctx context.Context, t *task.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t.ID == "" {
		return fmt.Errorf("task id is empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[t.ID]; exists {
		return fmt.Errorf("task %s already exists", t.ID)
	}

	data, err := json.Marshal(t)
	if err != nil {
		return err
	}

	s.tasks[t.ID] = &taskEntry{data: data, version: t.Version}
	return nil
}

// Get returns a copy of the task or task.ErrNotFound.
func (s *TaskStore) Get(ctx context.Context, id string) (*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.tasks[id]
	if !ok {
		return nil, task.ErrNotFound
	}

	var t task.Task
	if err := json.Unmarshal(entry.data, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Update persists the task if the stored version still matches, then
// increments the version. The first committer wins; later writers get
// task.ErrVersionConflict.
func (s *TaskStore) Update(ctx context.Context, t *task.Task, expectedVersion int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.tasks[t.ID]
	if !ok {
		return task.ErrNotFound
	}
	if entry.version != expectedVersion {
		return fmt.Errorf("%w: stored version %d, expected %d", task.ErrVersionConflict, entry.version, expectedVersion)
	}

	t.Version = expectedVersion + 1
	data, err := json.Marshal(t)
	if err != nil {
		t.Version = expectedVersion
		return err
	}

	s.tasks[t.ID] = &taskEntry{data: data, version: t.Version}
	return nil
}

// List returns tasks matching the filter, newest first.
func (s *TaskStore) List(ctx context.Context, f task.Filter) ([]*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*task.Task, 0, len(s.tasks))
	for _, entry := range s.tasks {
		var t task.Task
		if err := json.Unmarshal(entry.data, &t); err != nil {
			continue
		}
		if !f.Matches(&t) {
			continue
		}
		result = append(result, &t)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if f.Limit > 0 && len(result) > f.Limit {
		result = result[:f.Limit]
	}
	return result, nil
}

// Close is a no-op for the in-memory store.
func (s *TaskStore) Close() error {
	return nil
}

// Len returns the number of stored tasks.
func (s *TaskStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

var _ task.Store = (*TaskStore)(nil)
