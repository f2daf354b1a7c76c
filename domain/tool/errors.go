package tool

import (
	"errors"
	"fmt"
)

// Domain errors for the tool catalog.
var (
	// ErrEmptyName indicates a tool was built with an empty name.
	ErrEmptyName = errors.New("tool name cannot be empty")

	// ErrNoHandler indicates a tool was built without a handler.
	ErrNoHandler = errors.New("tool has no handler")

	// ErrToolNotFound indicates the requested tool is not in the catalog.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolExists indicates a tool with the same name is already registered.
	ErrToolExists = errors.New("tool already exists")

	// ErrMissingArgument indicates a required argument was not provided.
	ErrMissingArgument = errors.New("missing required argument")

	// ErrInvalidInput indicates the arguments were not a JSON object.
	ErrInvalidInput = errors.New("invalid tool arguments")
)

// MissingArgumentError names the required argument a call omitted.
type MissingArgumentError struct {
	Field string
}

// Error implements the error interface.
func (e *MissingArgumentError) Error() string {
	return fmt.Sprintf("missing required argument: %s", e.Field)
}

// Unwrap lets errors.Is match ErrMissingArgument.
func (e *MissingArgumentError) Unwrap() error {
	return ErrMissingArgument
}
