package audit

import (
	"context"
	"strings"
	"time"
)

// Paging bounds applied by NormalizePage.
const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

// SearchCriteria filters the trail. Zero-valued fields match everything.
type SearchCriteria struct {
	UserID     string
	EntityType string
	EntityID   string
	Action     string
	From       time.Time
	To         time.Time
	Severity   Severity
	Success    *bool
	Text       string
}

// Matches reports whether the event satisfies every set criterion. Stores
// that cannot push the filter down to a query use it directly.
func (c SearchCriteria) Matches(e Event) bool {
	if c.UserID != "" && e.UserID != c.UserID {
		return false
	}
	if c.EntityType != "" && e.EntityType != c.EntityType {
		return false
	}
	if c.EntityID != "" && e.EntityID != c.EntityID {
		return false
	}
	if c.Action != "" && e.Action != c.Action {
		return false
	}
	if !c.From.IsZero() && e.Timestamp.Before(c.From) {
		return false
	}
	if !c.To.IsZero() && e.Timestamp.After(c.To) {
		return false
	}
	if c.Severity != "" && e.Severity != c.Severity {
		return false
	}
	if c.Success != nil && e.Success != *c.Success {
		return false
	}
	if c.Text != "" {
		needle := strings.ToLower(c.Text)
		if !strings.Contains(strings.ToLower(e.Detail), needle) &&
			!strings.Contains(strings.ToLower(e.Action), needle) {
			return false
		}
	}
	return true
}

// Page is one page of search results plus the total match count.
type Page struct {
	Events   []Event `json:"events"`
	Total    int64   `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

// NormalizePage clamps paging arguments to sane bounds. Pages start at 1.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

// Trail is the append-only audit store.
type Trail interface {
	// Record appends an event and assigns its id. It completes before the
	// originating request is acknowledged.
	Record(ctx context.Context, event *Event) error

	// Search returns one page of matching events, newest first, together
	// with the total match count.
	Search(ctx context.Context, criteria SearchCriteria, page, pageSize int) (*Page, error)

	// Cleanup deletes events older than the cutoff and returns how many
	// were removed.
	Cleanup(ctx context.Context, olderThan time.Time) (int64, error)

	// Close releases store resources.
	Close() error
}
