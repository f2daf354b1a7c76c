// Package sqlite provides SQLite-backed implementations of the gateway's
// storage interfaces. It suits single-node deployments where the audit
// trail and task ledger must survive restarts without an external server.
package sqlite

import (
	"database/sql"
	"errors"
	"strconv"
	"time"

	// Register the sqlite3 driver.
	_ "github.com/mattn/go-sqlite3"
)

// Config holds SQLite connection configuration.
type Config struct {
	// DSN is the data source name (file path or URI).
	DSN string

	// MaxOpenConns limits open connections. SQLite handles low
	// concurrency best, defaults to 1 writer-friendly connection.
	MaxOpenConns int

	// MaxIdleConns limits idle connections in the pool.
	MaxIdleConns int

	// ConnMaxLifetime limits how long a connection may be reused.
	ConnMaxLifetime time.Duration

	// ConnMaxIdleTime limits how long a connection may sit idle.
	ConnMaxIdleTime time.Duration

	// AutoMigrate creates tables on startup when true.
	AutoMigrate bool

	// JournalMode sets the SQLite journal mode (WAL recommended).
	JournalMode string

	// BusyTimeout sets the busy timeout in milliseconds.
	BusyTimeout int
}

// DefaultConfig returns sensible defaults for gateway storage.
func DefaultConfig() Config {
	return Config{
		DSN:             "file:sqlmcp.db?mode=rwc",
		MaxOpenConns:    1,
		MaxIdleConns:    1,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
		AutoMigrate:     true,
		JournalMode:     "WAL",
		BusyTimeout:     5000,
	}
}

// Option configures SQLite storage.
type Option func(*Config)

// WithDSN sets the data source name.
func WithDSN(dsn string) Option {
	return func(c *Config) {
		c.DSN = dsn
	}
}

// WithAutoMigrate enables or disables automatic migration.
func WithAutoMigrate(enabled bool) Option {
	return func(c *Config) {
		c.AutoMigrate = enabled
	}
}

// WithJournalMode sets the journal mode.
func WithJournalMode(mode string) Option {
	return func(c *Config) {
		c.JournalMode = mode
	}
}

// WithBusyTimeout sets the busy timeout in milliseconds.
func WithBusyTimeout(ms int) Option {
	return func(c *Config) {
		c.BusyTimeout = ms
	}
}

// WithPoolLimits sets connection pool limits.
func WithPoolLimits(maxOpen, maxIdle int) Option {
	return func(c *Config) {
		c.MaxOpenConns = maxOpen
		c.MaxIdleConns = maxIdle
	}
}

// Errors
var (
	ErrConnectionFailed = errors.New("sqlite: connection failed")
	ErrMigrationFailed  = errors.New("sqlite: migration failed")
)

// openDB opens a SQLite database and applies pragmas from the config.
func openDB(cfg Config) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", cfg.DSN)
	if err != nil {
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if cfg.JournalMode != "" {
		if _, err := db.Exec("PRAGMA journal_mode=" + cfg.JournalMode); err != nil {
			db.Close()
			return nil, errors.Join(ErrConnectionFailed, err)
		}
	}
	if cfg.BusyTimeout > 0 {
		if _, err := db.Exec("PRAGMA busy_timeout=" + strconv.Itoa(cfg.BusyTimeout)); err != nil {
			db.Close()
			return nil, errors.Join(ErrConnectionFailed, err)
		}
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Join(ErrConnectionFailed, err)
	}

	return db, nil
}
