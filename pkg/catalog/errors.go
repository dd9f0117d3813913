package catalog

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input rejected before touching shared state.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a document would duplicate an existing one.
	ErrConflict = errors.New("already exists")
	// ErrInvariant marks an operation that would corrupt state, such as a reply
	// referencing a thread that is not cached. Such operations are no-ops.
	ErrInvariant = errors.New("invariant violation")
)

// Invalidf builds an ErrValidation with a message.
func Invalidf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
