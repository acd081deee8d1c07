package nodemodules

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidRoot is returned when the scan root is missing or is not a directory.
	ErrInvalidRoot = errors.New("invalid root directory")

	// ErrNotFound is returned when a directory to size or remove does not exist.
	ErrNotFound = errors.New("directory not found")
)

// TraversalError describes a directory that could not be read during a walk.
type TraversalError struct {
	Path string
	Err  error
}

func (e *TraversalError) Error() string {
	return fmt.Sprintf("cannot read %s: %v", e.Path, e.Err)
}

func (e *TraversalError) Unwrap() error {
	return e.Err
}
