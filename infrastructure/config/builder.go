package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/audit"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/backend"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/contract"
	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/task"
	backendmemory "github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/backend/memory"
	backendsqlite "github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/backend/sqlite"
	storagebadger "github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/storage/badger"
	storagememory "github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/storage/memory"
	storagepostgres "github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/storage/postgres"
	storageredis "github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/storage/redis"
	storagesqlite "github.com/dbbuilder/sqlmcp-saas-sub003/infrastructure/storage/sqlite"
)

// Builder assembles gateway components from configuration.
type Builder struct {
	config *GatewayConfig
}

// NewBuilder creates a component builder. The configuration must have
// passed validation first.
func NewBuilder(config *GatewayConfig) *Builder {
	return &Builder{config: config}
}

// BuildResult contains the components built from configuration.
type BuildResult struct {
	// AuditTrail is the configured audit event store.
	AuditTrail audit.Trail
	// TaskStore is the configured task ledger.
	TaskStore task.Store
	// ContractStore backs the procedure contract cache.
	ContractStore contract.Store
	// Backends maps logical database names to their adapters.
	Backends map[string]backend.Backend

	closers []func() error
}

// Close releases components that hold external resources, last built
// first.
func (r *BuildResult) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Build assembles stores and database backends. The context bounds
// connection establishment for stores that dial out. On error,
// everything already opened is closed before returning.
func (b *Builder) Build(ctx context.Context) (*BuildResult, error) {
	result := &BuildResult{
		Backends: make(map[string]backend.Backend),
	}

	if err := b.buildAuditTrail(ctx, result); err != nil {
		return nil, closeOnError(result, fmt.Errorf("building audit trail: %w", err))
	}

	if err := b.buildTaskStore(result); err != nil {
		return nil, closeOnError(result, fmt.Errorf("building task store: %w", err))
	}

	if err := b.buildContractStore(result); err != nil {
		return nil, closeOnError(result, fmt.Errorf("building contract store: %w", err))
	}

	if err := b.buildBackends(result); err != nil {
		return nil, closeOnError(result, fmt.Errorf("building backends: %w", err))
	}

	return result, nil
}

func closeOnError(result *BuildResult, err error) error {
	if closeErr := result.Close(); closeErr != nil {
		return errors.Join(err, closeErr)
	}
	return err
}

func (b *Builder) buildAuditTrail(ctx context.Context, result *BuildResult) error {
	cfg := b.config.Audit

	switch cfg.Store {
	case "", "memory":
		result.AuditTrail = storagememory.NewAuditTrail()

	case "sqlite":
		if cfg.SQLitePath == "" {
			return errors.New("audit.sqlite_path is required for the sqlite store")
		}
		sc := storagesqlite.DefaultConfig()
		sc.DSN = cfg.SQLitePath
		trail, err := storagesqlite.NewAuditTrail(sc)
		if err != nil {
			return err
		}
		result.AuditTrail = trail
		result.closers = append(result.closers, trail.Close)

	case "postgres":
		if cfg.PostgresDSN == "" {
			return errors.New("audit.postgres_dsn is required for the postgres store")
		}
		pool, err := newPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return err
		}
		trail := storagepostgres.NewAuditTrail(pool, "")
		if err := trail.Migrate(ctx); err != nil {
			pool.Close()
			return fmt.Errorf("migrating audit schema: %w", err)
		}
		result.AuditTrail = trail
		result.closers = append(result.closers, func() error {
			pool.Close()
			return nil
		})

	default:
		return fmt.Errorf("unknown audit store: %s", cfg.Store)
	}

	return nil
}

func (b *Builder) buildTaskStore(result *BuildResult) error {
	cfg := b.config.Tasks

	switch cfg.Store {
	case "", "memory":
		result.TaskStore = storagememory.NewTaskStore()

	case "badger":
		if cfg.BadgerDir == "" {
			return errors.New("tasks.badger_dir is required for the badger store")
		}
		store, err := storagebadger.NewTaskStore(storagebadger.DefaultConfig(),
			storagebadger.WithDir(cfg.BadgerDir))
		if err != nil {
			return err
		}
		result.TaskStore = store
		result.closers = append(result.closers, store.Close)

	default:
		return fmt.Errorf("unknown task store: %s", cfg.Store)
	}

	return nil
}

func (b *Builder) buildContractStore(result *BuildResult) error {
	cfg := b.config.Contracts

	switch cfg.Store {
	case "", "memory":
		result.ContractStore = storagememory.NewContractStore()

	case "redis":
		if cfg.Redis.Addr == "" {
			return errors.New("contracts.redis.addr is required for the redis store")
		}
		store, err := storageredis.NewContractStore(storageredis.DefaultConfig(),
			storageredis.WithAddress(cfg.Redis.Addr),
			storageredis.WithPassword(cfg.Redis.Password),
			storageredis.WithDB(cfg.Redis.DB))
		if err != nil {
			return err
		}
		result.ContractStore = store
		result.closers = append(result.closers, store.Close)

	default:
		return fmt.Errorf("unknown contract store: %s", cfg.Store)
	}

	return nil
}

func (b *Builder) buildBackends(result *BuildResult) error {
	for _, db := range b.config.Databases {
		if db.Name == "" {
			return errors.New("database name is required")
		}
		if _, exists := result.Backends[db.Name]; exists {
			return fmt.Errorf("duplicate database name: %s", db.Name)
		}

		switch db.Driver {
		case "memory":
			result.Backends[db.Name] = backendmemory.NewDemo(db.Name)

		case "sqlite":
			if db.DSN == "" {
				return fmt.Errorf("database %s: dsn is required for the sqlite driver", db.Name)
			}
			be, err := backendsqlite.New(db.Name, db.DSN)
			if err != nil {
				return fmt.Errorf("database %s: %w", db.Name, err)
			}
			result.Backends[db.Name] = be
			result.closers = append(result.closers, be.Close)

		default:
			return fmt.Errorf("database %s: unknown driver: %s", db.Name, db.Driver)
		}
	}

	return nil
}

// newPool opens a pgx connection pool and verifies it with a ping.
func newPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, errors.Join(errors.New("postgres connection failed"), err)
	}

	return pool, nil
}
