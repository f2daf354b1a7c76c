package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/audit"
	"github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/storage/sqlite"
)

func TestNewAuditTrail(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := sqlite.Config{
		DSN:         "file:" + tmpDir + "/test.db?mode=rwc",
		AutoMigrate: true,
	}

	trail, err := sqlite.NewAuditTrail(cfg)
	if err != nil {
		t.Fatalf("NewAuditTrail failed: %v", err)
	}
	defer trail.Close()
}

func TestNewAuditTrail_BadDSN(t *testing.T) {
	cfg := sqlite.Config{
		DSN:         "file:/nonexistent-dir/does/not/exist.db?mode=rw",
		AutoMigrate: true,
	}

	_, err := sqlite.NewAuditTrail(cfg)
	if err == nil {
		t.Fatal("expected error for unreachable DSN")
	}
	if !errors.Is(err, sqlite.ErrConnectionFailed) {
		t.Errorf("expected ErrConnectionFailed, got %v", err)
	}
}

func TestAuditTrail_RecordAssignsIDs(t *testing.T) {
	trail := newTestTrail(t)
	defer trail.Close()

	ctx := context.Background()

	first := audit.NewEvent(audit.ActionStatementExecuted, audit.EntityStatement, "stmt-1")
	if err := trail.Record(ctx, &first); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	second := audit.NewEvent(audit.ActionStatementExecuted, audit.EntityStatement, "stmt-2")
	if err := trail.Record(ctx, &second); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	if first.ID != 1 {
		t.Errorf("first ID = %d, want 1", first.ID)
	}
	if second.ID != 2 {
		t.Errorf("second ID = %d, want 2", second.ID)
	}
}

func TestAuditTrail_RecordStampsZeroTimestamp(t *testing.T) {
	trail := newTestTrail(t)
	defer trail.Close()

	e := audit.Event{
		Action:     audit.ActionTaskCreated,
		EntityType: audit.EntityTask,
		EntityID:   "task-1",
		Severity:   audit.SeverityInfo,
	}
	if err := trail.Record(context.Background(), &e); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if e.Timestamp.IsZero() {
		t.Error("expected Record to stamp the timestamp")
	}
}

func TestAuditTrail_SearchNewestFirst(t *testing.T) {
	trail := newTestTrail(t)
	defer trail.Close()

	ctx := context.Background()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		e := audit.NewEvent(audit.ActionStatementExecuted, audit.EntityStatement, "stmt")
		e.Timestamp = base.Add(time.Duration(i) * time.Hour)
		e.Detail = []string{"oldest", "middle", "newest"}[i]
		if err := trail.Record(ctx, &e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	page, err := trail.Search(ctx, audit.SearchCriteria{}, 1, 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}

	if page.Total != 3 {
		t.Errorf("Total = %d, want 3", page.Total)
	}
	if len(page.Events) != 2 {
		t.Fatalf("len(Events) = %d, want 2", len(page.Events))
	}
	if page.Events[0].Detail != "newest" {
		t.Errorf("first event Detail = %q, want newest", page.Events[0].Detail)
	}
	if page.Events[1].Detail != "middle" {
		t.Errorf("second event Detail = %q, want middle", page.Events[1].Detail)
	}
}

func TestAuditTrail_SearchFilters(t *testing.T) {
	trail := newTestTrail(t)
	defer trail.Close()

	ctx := context.Background()

	alice := audit.NewEvent(audit.ActionStatementExecuted, audit.EntityStatement, "stmt-1")
	alice.UserID = "alice"
	bob := audit.NewEvent(audit.ActionExecutionFailed, audit.EntityStatement, "stmt-2")
	bob.UserID = "bob"
	bob.Success = false
	bob.Severity = audit.SeverityError

	for _, e := range []*audit.Event{&alice, &bob} {
		if err := trail.Record(ctx, e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	t.Run("by user", func(t *testing.T) {
		page, err := trail.Search(ctx, audit.SearchCriteria{UserID: "bob"}, 1, 10)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if page.Total != 1 {
			t.Errorf("Total = %d, want 1", page.Total)
		}
		if len(page.Events) != 1 || page.Events[0].UserID != "bob" {
			t.Errorf("expected bob's event, got %+v", page.Events)
		}
	})

	t.Run("by success", func(t *testing.T) {
		failed := false
		page, err := trail.Search(ctx, audit.SearchCriteria{Success: &failed}, 1, 10)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if page.Total != 1 {
			t.Errorf("Total = %d, want 1", page.Total)
		}
		if len(page.Events) != 1 || page.Events[0].Action != audit.ActionExecutionFailed {
			t.Errorf("expected failed execution event, got %+v", page.Events)
		}
	})

	t.Run("by severity", func(t *testing.T) {
		page, err := trail.Search(ctx, audit.SearchCriteria{Severity: audit.SeverityError}, 1, 10)
		if err != nil {
			t.Fatalf("Search failed: %v", err)
		}
		if page.Total != 1 {
			t.Errorf("Total = %d, want 1", page.Total)
		}
	})
}

func TestAuditTrail_SearchText(t *testing.T) {
	trail := newTestTrail(t)
	defer trail.Close()

	ctx := context.Background()

	e := audit.NewEvent(audit.ActionValidationRejected, audit.EntityStatement, "stmt-1")
	e.Detail = "blocked keyword DROP in statement"
	if err := trail.Record(ctx, &e); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	other := audit.NewEvent(audit.ActionStatementExecuted, audit.EntityStatement, "stmt-2")
	if err := trail.Record(ctx, &other); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	page, err := trail.Search(ctx, audit.SearchCriteria{Text: "drop"}, 1, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if page.Total != 1 {
		t.Errorf("Total = %d, want 1", page.Total)
	}
	if len(page.Events) != 1 || page.Events[0].Action != audit.ActionValidationRejected {
		t.Errorf("expected the rejection event, got %+v", page.Events)
	}
}

func TestAuditTrail_SearchPagePastEnd(t *testing.T) {
	trail := newTestTrail(t)
	defer trail.Close()

	ctx := context.Background()

	e := audit.NewEvent(audit.ActionStatementExecuted, audit.EntityStatement, "stmt-1")
	if err := trail.Record(ctx, &e); err != nil {
		t.Fatalf("Record failed: %v", err)
	}

	page, err := trail.Search(ctx, audit.SearchCriteria{}, 5, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(page.Events) != 0 {
		t.Errorf("len(Events) = %d, want 0", len(page.Events))
	}
	if page.Total != 1 {
		t.Errorf("Total = %d, want 1", page.Total)
	}
}

func TestAuditTrail_Cleanup(t *testing.T) {
	trail := newTestTrail(t)
	defer trail.Close()

	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < 4; i++ {
		e := audit.NewEvent(audit.ActionStatementExecuted, audit.EntityStatement, "stmt")
		e.Timestamp = base.Add(time.Duration(i) * time.Hour)
		if err := trail.Record(ctx, &e); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	removed, err := trail.Cleanup(ctx, base.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}

	page, err := trail.Search(ctx, audit.SearchCriteria{}, 1, 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if page.Total != 2 {
		t.Errorf("Total after cleanup = %d, want 2", page.Total)
	}
	// The event at exactly the cutoff survives.
	oldest := page.Events[len(page.Events)-1]
	if !oldest.Timestamp.Equal(base.Add(2 * time.Hour)) {
		t.Errorf("oldest surviving timestamp = %v, want %v", oldest.Timestamp, base.Add(2*time.Hour))
	}
}

func newTestTrail(t *testing.T) *sqlite.AuditTrail {
	t.Helper()

	tmpDir := t.TempDir()
	cfg := sqlite.Config{
		DSN:         "file:" + tmpDir + "/test.db?mode=rwc",
		AutoMigrate: true,
	}

	trail, err := sqlite.NewAuditTrail(cfg)
	if err != nil {
		t.Fatalf("NewAuditTrail failed: %v", err)
	}

	return trail
}
