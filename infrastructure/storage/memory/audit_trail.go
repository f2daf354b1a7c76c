package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/audit"
)

// AuditTrail is an in-memory implementation of audit.Trail. Events are
// append-only; ids grow monotonically.
type AuditTrail struct {
	events []audit.Event
	nextID int64
	mu     sync.RWMutex
}

// NewAuditTrail creates a new in-memory audit trail.
func NewAuditTrail() *AuditTrail {
	return &AuditTrail{
		nextID: 1,
	}
}

// Record appends the event and assigns its id.
func (s *AuditTrail) Record(ctx context.Context, event *audit.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	event.ID = s.nextID
	s.nextID++
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	s.events = append(s.events, *event)
	return nil
}

// Search returns one page of matching events, newest first, plus the total
// match count.
func (s *AuditTrail) Search(ctx context.Context, criteria audit.SearchCriteria, page, pageSize int) (*audit.Page, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	page, pageSize = audit.NormalizePage(page, pageSize)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []audit.Event
	for _, e := range s.events {
		if criteria.Matches(e) {
			matched = append(matched, e)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := int64(len(matched))
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return &audit.Page{Events: []audit.Event{}, Total: total, Page: page, PageSize: pageSize}, nil
	}
	end := start + pageSize
	if end > len(matched) {
		end = len(matched)
	}

	events := make([]audit.Event, end-start)
	copy(events, matched[start:end])

	return &audit.Page{Events: events, Total: total, Page: page, PageSize: pageSize}, nil
}

// Cleanup deletes events older than the cutoff and returns the count.
func (s *AuditTrail) Cleanup(ctx context.Context, olderThan time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.events[:0]
	var removed int64
	for _, e := range s.events {
		if e.Timestamp.Before(olderThan) {
			removed++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return removed, nil
}

// Close is a no-op for the in-memory trail.
func (s *AuditTrail) Close() error {
	return nil
}

// Len returns the number of stored events.
func (s *AuditTrail) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

var _ audit.Trail = (*AuditTrail)(nil)
