package memory

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/dbbuilder/sqlmcp-saas-sub003/domain/contract"
)

// ContractStore is an in-memory implementation of contract.Store. Expiry
// is the cache's concern; the store keeps entries until eviction.
type ContractStore struct {
	contracts map[string][]byte
	mu        sync.RWMutex
}

// NewContractStore creates a new in-memory contract store.
func NewContractStore() *ContractStore {
	return &ContractStore{
		contracts: make(map[string][]byte),
	}
}

// Get retrieves a contract by qualified procedure name.
func (s *ContractStore) Get(ctx context.Context, qualifiedName string) (*contract.Contract, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	data, ok := s.contracts[qualifiedName]
	if !ok {
		return nil, contract.ErrNotFound
	}

	var c contract.Contract
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Put stores a contract under its qualified name.
func (s *ContractStore) Put(ctx context.Context, c *contract.Contract) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(c)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.contracts[c.QualifiedName] = data
	return nil
}

// Delete evicts a contract. Deleting a missing entry is not an error.
func (s *ContractStore) Delete(ctx context.Context, qualifiedName string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contracts, qualifiedName)
	return nil
}

// Len returns the number of stored contracts.
func (s *ContractStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contracts)
}

var _ contract.Store = (*ContractStore)(nil)
