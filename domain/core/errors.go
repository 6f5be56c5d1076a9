package core

import (
	"errors"
	"fmt"
)

// Domain errors - centralized error definitions
var (
	// Not found errors
	ErrNotFound     = errors.New("resource not found")
	ErrGridNotFound = fmt.Errorf("%w: grid", ErrNotFound)

	// Validation errors
	ErrInvalidAddress = errors.New("invalid cell address")
	ErrRowOutOfRange  = errors.New("row out of range")
	ErrUnknownColumn  = errors.New("unknown column")

	// Compute channel errors
	ErrChannelClosed  = errors.New("compute channel closed")
	ErrComputeTimeout = errors.New("no compute response before deadline")
)

// Error constructors with context
func NewNotFoundError(resource string, id string) error {
	return fmt.Errorf("%w: %s with id %s", ErrNotFound, resource, id)
}

// Error checking helpers
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidAddress) ||
		errors.Is(err, ErrRowOutOfRange) ||
		errors.Is(err, ErrUnknownColumn)
}
