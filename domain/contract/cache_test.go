package contract

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/backend"
)

type fakeSource struct {
	mu    sync.Mutex
	calls int
	meta  *backend.ProcedureMetadata
	err   error
}

func (f *fakeSource) GetProcedureMetadata(_ context.Context, _ string) (*backend.ProcedureMetadata, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.meta, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	mu        sync.Mutex
	contracts map[string]*Contract
	getErr    error
}

func newFakeStore() *fakeStore {
	return &fakeStore{contracts: make(map[string]*Contract)}
}

func (f *fakeStore) Get(_ context.Context, name string) (*Contract, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	c, ok := f.contracts[name]
	if !ok {
		return nil, ErrNotFound
	}
	return c, nil
}

func (f *fakeStore) Put(_ context.Context, c *Contract) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contracts[c.QualifiedName] = c
	return nil
}

func (f *fakeStore) Delete(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.contracts, name)
	return nil
}

func testMeta() *backend.ProcedureMetadata {
	return &backend.ProcedureMetadata{
		QualifiedName: "Sales.GetCustomer",
		Parameters: []backend.ProcedureParameter{
			{Name: "CustomerID", DataType: "Int", Required: true},
		},
	}
}

func TestGetOrRefreshFetchesOnMiss(t *testing.T) {
	t.Parallel()

	source := &fakeSource{meta: testMeta()}
	store := newFakeStore()
	cache := NewCache(source, store)

	c, err := cache.GetOrRefresh(context.Background(), "Sales.GetCustomer")
	if err != nil {
		t.Fatalf("GetOrRefresh() error: %v", err)
	}
	if c.QualifiedName != "Sales.GetCustomer" {
		t.Errorf("QualifiedName = %q", c.QualifiedName)
	}
	if source.callCount() != 1 {
		t.Errorf("source calls = %d, want 1", source.callCount())
	}

	// Second call is served from the store.
	if _, err := cache.GetOrRefresh(context.Background(), "Sales.GetCustomer"); err != nil {
		t.Fatalf("GetOrRefresh() error: %v", err)
	}
	if source.callCount() != 1 {
		t.Errorf("source calls after warm hit = %d, want 1", source.callCount())
	}
}

func TestGetOrRefreshRefreshesExpired(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	source := &fakeSource{meta: testMeta()}
	store := newFakeStore()
	cache := NewCache(source, store, WithTTL(10*time.Minute), WithClock(clock))

	if _, err := cache.GetOrRefresh(context.Background(), "Sales.GetCustomer"); err != nil {
		t.Fatalf("GetOrRefresh() error: %v", err)
	}

	// Advance past the TTL; the stale entry must not be trusted.
	now = now.Add(11 * time.Minute)
	c, err := cache.GetOrRefresh(context.Background(), "Sales.GetCustomer")
	if err != nil {
		t.Fatalf("GetOrRefresh() error: %v", err)
	}
	if source.callCount() != 2 {
		t.Errorf("source calls = %d, want 2 (expired entry must refresh)", source.callCount())
	}
	if c.Expired(now) {
		t.Error("refreshed contract should not be expired")
	}
}

func TestGetOrRefreshPropagatesSourceError(t *testing.T) {
	t.Parallel()

	source := &fakeSource{err: backend.ErrProcedureNotFound}
	cache := NewCache(source, newFakeStore())

	_, err := cache.GetOrRefresh(context.Background(), "Sales.Missing")
	if !errors.Is(err, backend.ErrProcedureNotFound) {
		t.Errorf("GetOrRefresh() error = %v, want ErrProcedureNotFound", err)
	}
}

func TestGetOrRefreshStoreOutageFallsThrough(t *testing.T) {
	t.Parallel()

	source := &fakeSource{meta: testMeta()}
	store := newFakeStore()
	store.getErr = errors.New("store down")
	cache := NewCache(source, store)

	c, err := cache.GetOrRefresh(context.Background(), "Sales.GetCustomer")
	if err != nil {
		t.Fatalf("GetOrRefresh() should survive a store outage, error: %v", err)
	}
	if c == nil || c.QualifiedName != "Sales.GetCustomer" {
		t.Errorf("contract = %+v, want refreshed entry", c)
	}
}

func TestGetOrRefreshHonorsCancelledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cache := NewCache(&fakeSource{meta: testMeta()}, newFakeStore())
	if _, err := cache.GetOrRefresh(ctx, "Sales.GetCustomer"); !errors.Is(err, context.Canceled) {
		t.Errorf("GetOrRefresh() error = %v, want context.Canceled", err)
	}
}

func TestInvalidateEvicts(t *testing.T) {
	t.Parallel()

	source := &fakeSource{meta: testMeta()}
	store := newFakeStore()
	cache := NewCache(source, store)

	if _, err := cache.GetOrRefresh(context.Background(), "Sales.GetCustomer"); err != nil {
		t.Fatalf("GetOrRefresh() error: %v", err)
	}
	if err := cache.Invalidate(context.Background(), "Sales.GetCustomer"); err != nil {
		t.Fatalf("Invalidate() error: %v", err)
	}
	if _, err := cache.GetOrRefresh(context.Background(), "Sales.GetCustomer"); err != nil {
		t.Fatalf("GetOrRefresh() error: %v", err)
	}
	if source.callCount() != 2 {
		t.Errorf("source calls = %d, want 2 after invalidation", source.callCount())
	}
}
