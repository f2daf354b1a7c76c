package contract

import "errors"

// Domain errors for the contract cache.
var (
	// ErrNotFound indicates the store has no entry for the procedure.
	ErrNotFound = errors.New("contract not found")
)
