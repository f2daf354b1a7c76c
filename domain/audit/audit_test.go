package audit

import (
	"testing"
	"time"
)

func TestNewEventDefaults(t *testing.T) {
	t.Parallel()

	e := NewEvent(ActionStatementExecuted, EntityStatement, "stmt-1")

	if e.Action != ActionStatementExecuted {
		t.Errorf("Action = %q, want %q", e.Action, ActionStatementExecuted)
	}
	if e.EntityType != EntityStatement || e.EntityID != "stmt-1" {
		t.Errorf("entity = %q/%q, want %q/stmt-1", e.EntityType, e.EntityID, EntityStatement)
	}
	if !e.Success {
		t.Error("Success = false, want true")
	}
	if e.Severity != SeverityInfo {
		t.Errorf("Severity = %q, want %q", e.Severity, SeverityInfo)
	}
	if e.Timestamp.IsZero() {
		t.Error("Timestamp is zero, want stamped")
	}
	if e.ID != 0 {
		t.Errorf("ID = %d, want 0 before Record", e.ID)
	}
}

func TestSearchCriteriaMatches(t *testing.T) {
	t.Parallel()

	base := Event{
		Timestamp:  time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC),
		UserID:     "agent-7",
		EntityType: EntityTask,
		EntityID:   "task-42",
		Action:     ActionTaskApproved,
		Success:    true,
		Severity:   SeverityInfo,
		Detail:     "approved by operator",
	}
	no := false
	yes := true

	tests := []struct {
		name     string
		criteria SearchCriteria
		want     bool
	}{
		{"empty criteria match everything", SearchCriteria{}, true},
		{"user match", SearchCriteria{UserID: "agent-7"}, true},
		{"user mismatch", SearchCriteria{UserID: "agent-9"}, false},
		{"entity pair", SearchCriteria{EntityType: EntityTask, EntityID: "task-42"}, true},
		{"entity id mismatch", SearchCriteria{EntityType: EntityTask, EntityID: "task-1"}, false},
		{"action match", SearchCriteria{Action: ActionTaskApproved}, true},
		{"window contains", SearchCriteria{
			From: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			To:   time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC),
		}, true},
		{"window before", SearchCriteria{To: time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC)}, false},
		{"window after", SearchCriteria{From: time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC)}, false},
		{"severity mismatch", SearchCriteria{Severity: SeverityCritical}, false},
		{"success true", SearchCriteria{Success: &yes}, true},
		{"success false", SearchCriteria{Success: &no}, false},
		{"text in detail", SearchCriteria{Text: "OPERATOR"}, true},
		{"text in action", SearchCriteria{Text: "task_approved"}, true},
		{"text miss", SearchCriteria{Text: "timeout"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.criteria.Matches(base); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNormalizePage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		page     int
		pageSize int
		wantPage int
		wantSize int
	}{
		{"defaults", 0, 0, 1, DefaultPageSize},
		{"negative page", -3, 20, 1, 20},
		{"size capped", 2, 10000, 2, MaxPageSize},
		{"valid passthrough", 4, 25, 4, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			page, size := NormalizePage(tt.page, tt.pageSize)
			if page != tt.wantPage || size != tt.wantSize {
				t.Errorf("NormalizePage(%d, %d) = (%d, %d), want (%d, %d)",
					tt.page, tt.pageSize, page, size, tt.wantPage, tt.wantSize)
			}
		})
	}
}
