// Package badger provides a BadgerDB-backed task store: an embedded,
// durable ledger for deployments that need task state to survive restarts
// without running a database server.
package badger

import (
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// Config configures BadgerDB storage.
type Config struct {
	// Dir is the directory to store data in.
	Dir string

	// InMemory uses in-memory storage (useful for testing).
	InMemory bool

	// SyncWrites enables synchronous writes for durability.
	SyncWrites bool

	// ValueLogFileSize sets the size of value log files in bytes.
	ValueLogFileSize int64

	// NumVersionsToKeep sets the number of versions to keep per key.
	NumVersionsToKeep int

	// GCDiscardRatio is the discard ratio for value log GC.
	GCDiscardRatio float64

	// GCInterval is the interval between GC runs. Zero disables GC.
	GCInterval time.Duration

	// KeyPrefix is added to all keys.
	KeyPrefix string

	// Logger is the badger logger (nil keeps badger silent).
	Logger badger.Logger
}

// DefaultConfig returns sensible default configuration.
func DefaultConfig() Config {
	return Config{
		SyncWrites:        true,
		ValueLogFileSize:  1 << 28, // 256MB
		NumVersionsToKeep: 1,
		GCDiscardRatio:    0.5,
		GCInterval:        5 * time.Minute,
	}
}

// Option configures BadgerDB storage.
type Option func(*Config)

// WithDir sets the data directory.
func WithDir(dir string) Option {
	return func(c *Config) {
		c.Dir = dir
	}
}

// WithInMemory enables in-memory storage.
func WithInMemory() Option {
	return func(c *Config) {
		c.InMemory = true
	}
}

// WithSyncWrites enables or disables synchronous writes.
func WithSyncWrites(enabled bool) Option {
	return func(c *Config) {
		c.SyncWrites = enabled
	}
}

// WithKeyPrefix sets the key prefix.
func WithKeyPrefix(prefix string) Option {
	return func(c *Config) {
		c.KeyPrefix = prefix
	}
}

// WithGCInterval sets the value log GC interval.
func WithGCInterval(d time.Duration) Option {
	return func(c *Config) {
		c.GCInterval = d
	}
}

// Errors
var (
	ErrConnectionFailed = errors.New("badger: connection failed")
)

// openDB opens a BadgerDB database with the given configuration.
func openDB(cfg Config) (*badger.DB, error) {
	opts := badger.DefaultOptions(cfg.Dir)

	if cfg.InMemory {
		opts = opts.WithInMemory(true)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)

	if cfg.ValueLogFileSize > 0 {
		opts = opts.WithValueLogFileSize(cfg.ValueLogFileSize)
	}
	if cfg.NumVersionsToKeep > 0 {
		opts = opts.WithNumVersionsToKeep(cfg.NumVersionsToKeep)
	}

	opts = opts.WithLogger(cfg.Logger)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	return db, nil
}
