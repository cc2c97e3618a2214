package snapshot

import (
	"errors"
	"fmt"
)

// Errors returned by the snapshot package.
var (
	// ErrReleased indicates the snapshot's artifacts were already deleted.
	ErrReleased = errors.New("snapshot released")

	// ErrInvalidStems indicates an unusable stem configuration.
	ErrInvalidStems = errors.New("invalid artifact stems")
)

// PersistenceError reports a failed write, read or delete of an artifact.
type PersistenceError struct {
	Op   string // create, restore, release, scan, sweep
	Name string // artifact name, empty when not tied to one artifact
	Err  error  // underlying error
}

// Error implements the error interface.
func (e *PersistenceError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("snapshot %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("snapshot %s %s: %v", e.Op, e.Name, e.Err)
}

// Unwrap returns the underlying error.
func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// IsPersistence returns true if err is or wraps a PersistenceError.
func IsPersistence(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
