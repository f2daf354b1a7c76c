package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/contract"
)

// ContractStore is a Redis-backed implementation of contract.Store.
// Entries carry their own expiry, so the Redis TTL mirrors the contract's
// ExpiresAt and stale entries vanish on their own.
type ContractStore struct {
	client    *redis.Client
	keyPrefix string
}

// NewContractStore creates a Redis contract store with the given
// configuration.
func NewContractStore(cfg Config, opts ...ConfigOption) (*ContractStore, error) {
	for _, opt := range opts {
		opt(&cfg)
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MaxRetries:   cfg.MaxRetries,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis: connection failed: %w", err)
	}

	return &ContractStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// NewContractStoreFromClient creates a store from an existing Redis client.
func NewContractStoreFromClient(client *redis.Client, keyPrefix string) *ContractStore {
	return &ContractStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// prefixKey adds the key prefix and contract namespace.
func (s *ContractStore) prefixKey(qualifiedName string) string {
	return s.keyPrefix + "contract:" + qualifiedName
}

// Get retrieves a contract by qualified procedure name.
func (s *ContractStore) Get(ctx context.Context, qualifiedName string) (*contract.Contract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.client.Get(ctx, s.prefixKey(qualifiedName)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, contract.ErrNotFound
		}
		return nil, fmt.Errorf("get contract: %w", err)
	}

	var c contract.Contract
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode contract: %w", err)
	}

	return &c, nil
}

// Put stores a contract until its expiry.
func (s *ContractStore) Put(ctx context.Context, c *contract.Contract) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if c == nil || c.QualifiedName == "" {
		return fmt.Errorf("contract qualified name is empty")
	}

	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode contract: %w", err)
	}

	// Expired entries get no Redis TTL; the refresh-before-trust rule in
	// the domain cache handles them.
	var expiration time.Duration
	if ttl := time.Until(c.ExpiresAt); !c.ExpiresAt.IsZero() && ttl > 0 {
		expiration = ttl
	}

	if err := s.client.Set(ctx, s.prefixKey(c.QualifiedName), data, expiration).Err(); err != nil {
		return fmt.Errorf("put contract: %w", err)
	}

	return nil
}

// Delete evicts a contract. Deleting a missing entry is not an error.
func (s *ContractStore) Delete(ctx context.Context, qualifiedName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.client.Del(ctx, s.prefixKey(qualifiedName)).Err(); err != nil {
		return fmt.Errorf("delete contract: %w", err)
	}

	return nil
}

// Ping checks the Redis connection.
func (s *ContractStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (s *ContractStore) Close() error {
	return s.client.Close()
}

// Ensure ContractStore implements contract.Store
var _ contract.Store = (*ContractStore)(nil)
