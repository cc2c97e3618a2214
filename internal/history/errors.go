package history

import (
	"errors"
	"fmt"
)

// Common errors for history navigation.
var (
	ErrNothingToUndo = errors.New("nothing to undo")
	ErrNothingToRedo = errors.New("nothing to redo")
)

// NavigationError reports undo, redo or a label lookup attempted outside
// its precondition. History state is unchanged when it is returned.
type NavigationError struct {
	Op     string // undo, redo, previous, next
	Cursor int
	Len    int
	Err    error
}

// Error implements the error interface.
func (e *NavigationError) Error() string {
	return fmt.Sprintf("history %s at %d/%d: %v", e.Op, e.Cursor, e.Len, e.Err)
}

// Unwrap returns the underlying error.
func (e *NavigationError) Unwrap() error {
	return e.Err
}

// IsNavigation returns true if err is or wraps a NavigationError.
func IsNavigation(err error) bool {
	var ne *NavigationError
	return errors.As(err, &ne)
}
