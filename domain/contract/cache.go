package contract

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/backend"
)

// DefaultTTL is how long a cached contract stays trusted.
const DefaultTTL = time.Hour

// Store persists contracts between refreshes. Implementations treat the
// data as a cache: a miss returns ErrNotFound and entries may vanish at
// any time.
type Store interface {
	// Get retrieves a contract by qualified procedure name.
	Get(ctx context.Context, qualifiedName string) (*Contract, error)

	// Put stores a contract until its expiry.
	Put(ctx context.Context, c *Contract) error

	// Delete evicts a contract.
	Delete(ctx context.Context, qualifiedName string) error
}

// Source fetches raw procedure metadata. backend.Backend satisfies it.
type Source interface {
	GetProcedureMetadata(ctx context.Context, qualifiedName string) (*backend.ProcedureMetadata, error)
}

// Cache serves procedure contracts, refreshing expired entries from the
// metadata catalog before they are trusted again. Concurrent refreshes of
// the same procedure coalesce into a single catalog fetch.
type Cache struct {
	source Source
	store  Store
	ttl    time.Duration
	now    func() time.Time
	group  singleflight.Group
}

// Option configures a Cache.
type Option func(*Cache)

// WithTTL overrides the refresh interval.
func WithTTL(ttl time.Duration) Option {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Cache) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCache creates a contract cache over a metadata source and a backing
// store.
func NewCache(source Source, store Store, opts ...Option) *Cache {
	c := &Cache{
		source: source,
		store:  store,
		ttl:    DefaultTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetOrRefresh returns the contract for a procedure, fetching from the
// metadata catalog when the store misses or the entry has expired. Store
// failures degrade to a refresh; the catalog stays the source of truth.
func (c *Cache) GetOrRefresh(ctx context.Context, qualifiedName string) (*Contract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Any store failure counts as a miss; the catalog below is authoritative.
	if cached, err := c.store.Get(ctx, qualifiedName); err == nil && !cached.Expired(c.now()) {
		return cached, nil
	}

	fresh, err, _ := c.group.Do(qualifiedName, func() (any, error) {
		meta, err := c.source.GetProcedureMetadata(ctx, qualifiedName)
		if err != nil {
			return nil, err
		}
		ct := FromMetadata(meta, c.now(), c.ttl)
		// Best effort: a dead store must not block validation.
		_ = c.store.Put(ctx, ct)
		return ct, nil
	})
	if err != nil {
		return nil, err
	}
	return fresh.(*Contract), nil
}

// Invalidate evicts a procedure's contract so the next call refreshes.
func (c *Cache) Invalidate(ctx context.Context, qualifiedName string) error {
	return c.store.Delete(ctx, qualifiedName)
}
