package badger_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/task"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/storage/badger"
)

func TestNewTaskStore(t *testing.T) {
	cfg := badger.Config{
		InMemory: true,
	}

	store, err := badger.NewTaskStore(cfg)
	if err != nil {
		t.Fatalf("NewTaskStore failed: %v", err)
	}
	defer store.Close()
}

func TestTaskStore_CreateAndGet(t *testing.T) {
	store := newTestTaskStore(t)
	defer store.Close()

	ctx := context.Background()

	created := task.New("task-1", task.TypeSchemaChange, "sales", "alice")
	created.Statement = "ALTER TABLE orders ADD COLUMN region TEXT"
	created.RequiresApproval = true

	if err := store.Create(ctx, created); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	loaded, err := store.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if loaded.ID != "task-1" {
		t.Errorf("ID = %s, want task-1", loaded.ID)
	}
	if loaded.Type != task.TypeSchemaChange {
		t.Errorf("Type = %s, want %s", loaded.Type, task.TypeSchemaChange)
	}
	if loaded.Statement != created.Statement {
		t.Errorf("Statement = %q, want %q", loaded.Statement, created.Statement)
	}
	if loaded.Version != 1 {
		t.Errorf("Version = %d, want 1", loaded.Version)
	}
}

func TestTaskStore_GetReturnsCopy(t *testing.T) {
	store := newTestTaskStore(t)
	defer store.Close()

	ctx := context.Background()

	if err := store.Create(ctx, task.New("task-1", task.TypeQuery, "sales", "alice")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	first, err := store.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	first.DatabaseName = "mutated"

	second, err := store.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if second.DatabaseName != "sales" {
		t.Errorf("stored task mutated through returned copy: %s", second.DatabaseName)
	}
}

func TestTaskStore_CreateDuplicate(t *testing.T) {
	store := newTestTaskStore(t)
	defer store.Close()

	ctx := context.Background()

	if err := store.Create(ctx, task.New("task-1", task.TypeQuery, "sales", "alice")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Create(ctx, task.New("task-1", task.TypeQuery, "sales", "alice")); err == nil {
		t.Fatal("expected error for duplicate task id")
	}
}

func TestTaskStore_GetNotFound(t *testing.T) {
	store := newTestTaskStore(t)
	defer store.Close()

	_, err := store.Get(context.Background(), "nonexistent")
	if !errors.Is(err, task.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTaskStore_FirstCommitterWins(t *testing.T) {
	store := newTestTaskStore(t)
	defer store.Close()

	ctx := context.Background()

	if err := store.Create(ctx, task.New("task-1", task.TypeCommand, "sales", "alice")); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	first, err := store.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	second, err := store.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}

	if err := first.Transition(task.StatusPendingApproval, time.Now().UTC(), "queued"); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	if err := store.Update(ctx, first, first.Version); err != nil {
		t.Fatalf("first Update failed: %v", err)
	}
	if first.Version != 2 {
		t.Errorf("Version after update = %d, want 2", first.Version)
	}

	if err := second.Transition(task.StatusCancelled, time.Now().UTC(), "cancelled"); err != nil {
		t.Fatalf("Transition failed: %v", err)
	}
	err = store.Update(ctx, second, second.Version)
	if !errors.Is(err, task.ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	stored, err := store.Get(ctx, "task-1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if stored.Status != task.StatusPendingApproval {
		t.Errorf("Status = %s, want %s", stored.Status, task.StatusPendingApproval)
	}
}

func TestTaskStore_UpdateMissing(t *testing.T) {
	store := newTestTaskStore(t)
	defer store.Close()

	ghost := task.New("ghost", task.TypeQuery, "sales", "alice")
	err := store.Update(context.Background(), ghost, 1)
	if !errors.Is(err, task.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestTaskStore_List(t *testing.T) {
	store := newTestTaskStore(t)
	defer store.Close()

	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	seed := []struct {
		id       string
		typ      task.Type
		database string
	}{
		{"task-1", task.TypeQuery, "sales"},
		{"task-2", task.TypeCommand, "sales"},
		{"task-3", task.TypeCommand, "inventory"},
	}
	for i, sd := range seed {
		tk := task.New(sd.id, sd.typ, sd.database, "alice")
		tk.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if err := store.Create(ctx, tk); err != nil {
			t.Fatalf("Create failed: %v", err)
		}
	}

	t.Run("all newest first", func(t *testing.T) {
		tasks, err := store.List(ctx, task.Filter{})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(tasks) != 3 {
			t.Fatalf("len = %d, want 3", len(tasks))
		}
		if tasks[0].ID != "task-3" {
			t.Errorf("first = %s, want task-3", tasks[0].ID)
		}
	})

	t.Run("by type", func(t *testing.T) {
		tasks, err := store.List(ctx, task.Filter{Type: task.TypeCommand})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(tasks) != 2 {
			t.Errorf("len = %d, want 2", len(tasks))
		}
	})

	t.Run("limit", func(t *testing.T) {
		tasks, err := store.List(ctx, task.Filter{Limit: 1})
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		if len(tasks) != 1 || tasks[0].ID != "task-3" {
			t.Errorf("expected task-3 only, got %+v", tasks)
		}
	})
}

func newTestTaskStore(t *testing.T) *badger.TaskStore {
	t.Helper()

	store, err := badger.NewTaskStore(badger.Config{InMemory: true})
	if err != nil {
		t.Fatalf("NewTaskStore failed: %v", err)
	}

	return store
}
