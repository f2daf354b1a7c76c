package badger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/task"
)

// TaskStore is a BadgerDB-backed implementation of task.Store. Badger
// transactions are serializable, so the version compare-and-swap inside a
// single Update transaction gives first-committer-wins semantics.
type TaskStore struct {
	db        *badger.DB
	keyPrefix string
	gcStop    chan struct{}
	gcWg      sync.WaitGroup
}

// NewTaskStore creates a BadgerDB task store with the given configuration.
func NewTaskStore(cfg Config, opts ...Option) (*TaskStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}

	s := &TaskStore{
		db:        db,
		keyPrefix: cfg.KeyPrefix,
		gcStop:    make(chan struct{}),
	}

	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.startGC(cfg.GCInterval, cfg.GCDiscardRatio)
	}

	return s, nil
}

// NewTaskStoreFromDB creates a task store from an existing database. The
// caller is responsible for closing the database.
func NewTaskStoreFromDB(db *badger.DB, keyPrefix string) *TaskStore {
	return &TaskStore{
		db:        db,
		keyPrefix: keyPrefix,
		gcStop:    make(chan struct{}),
	}
}

// startGC runs value log garbage collection on a ticker.
func (s *TaskStore) startGC(interval time.Duration, discardRatio float64) {
	s.gcWg.Add(1)
	go func() {
		defer s.gcWg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.gcStop:
				return
			case <-ticker.C:
				for {
					if err := s.db.RunValueLogGC(discardRatio); err != nil {
						break
					}
				}
			}
		}
	}()
}

// taskKey builds the storage key for a task id.
func (s *TaskStore) taskKey(id string) []byte {
	return []byte(s.keyPrefix + "task:" + id)
}

// Create persists a new task.
func (s *TaskStore) Create(ctx context.Context, t *task.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t == nil || t.ID == "" {
		return fmt.Errorf("task id is empty")
	}

	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("encode task: %w", err)
	}

	key := s.taskKey(t.ID)

	return s.db.Update(func(txn *badger.Txn) error {
		_, err := txn.Get(key)
		if err == nil {
			return fmt.Errorf("task %s already exists", t.ID)
		}
		if !errors.Is(err, badger.ErrKeyNotFound) {
			return fmt.Errorf("create task: %w", err)
		}
		return txn.Set(key, data)
	})
}

// Get returns a copy of the task or task.ErrNotFound.
func (s *TaskStore) Get(ctx context.Context, id string) (*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var t task.Task

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(s.taskKey(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return task.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get task: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &t)
		})
	})
	if err != nil {
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
	if t == nil || t.ID == "" {
		return task.ErrNotFound
	}

	key := s.taskKey(t.ID)

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return task.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("update task: %w", err)
		}

		var stored struct {
			Version int64 `json:"version"`
		}
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &stored)
		}); err != nil {
			return fmt.Errorf("decode stored task: %w", err)
		}

		if stored.Version != expectedVersion {
			return fmt.Errorf("%w: stored version %d, expected %d", task.ErrVersionConflict, stored.Version, expectedVersion)
		}

		t.Version = expectedVersion + 1
		data, err := json.Marshal(t)
		if err != nil {
			t.Version = expectedVersion
			return fmt.Errorf("encode task: %w", err)
		}

		return txn.Set(key, data)
	})
	if err != nil {
		// A conflicting concurrent transaction surfaces as ErrConflict;
		// the caller sees the same lost-race error either way.
		if errors.Is(err, badger.ErrConflict) {
			return fmt.Errorf("%w: concurrent update", task.ErrVersionConflict)
		}
		return err
	}

	return nil
}

// List returns tasks matching the filter, newest first.
func (s *TaskStore) List(ctx context.Context, f task.Filter) ([]*task.Task, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := []byte(s.keyPrefix + "task:")
	tasks := make([]*task.Task, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			var t task.Task
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &t)
			})
			if err != nil {
				continue // Skip malformed entries
			}

			if !f.Matches(&t) {
				continue
			}

			tasks = append(tasks, &t)
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}

	sort.Slice(tasks, func(i, j int) bool {
		if tasks[i].CreatedAt.Equal(tasks[j].CreatedAt) {
			return tasks[i].ID > tasks[j].ID
		}
		return tasks[i].CreatedAt.After(tasks[j].CreatedAt)
	})

	if f.Limit > 0 && len(tasks) > f.Limit {
		tasks = tasks[:f.Limit]
	}

	return tasks, nil
}

// Close stops GC and closes the database.
func (s *TaskStore) Close() error {
	close(s.gcStop)
	s.gcWg.Wait()
	return s.db.Close()
}

// DB returns the underlying BadgerDB database.
func (s *TaskStore) DB() *badger.DB {
	return s.db
}

// Ensure TaskStore implements task.Store
var _ task.Store = (*TaskStore)(nil)
