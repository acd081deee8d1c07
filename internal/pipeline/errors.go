package pipeline

import (
	"errors"
	"fmt"
)

var ErrShuttingDown = errors.New("shutting down, no new work is accepted")

// InvalidActionError is returned when a removal request is rejected. Reason
// is one of the store errors and is reachable through errors.Is.
type InvalidActionError struct {
	Path   string
	Reason error
}

func (e *InvalidActionError) Error() string {
	return fmt.Sprintf("cannot remove %s: %v", e.Path, e.Reason)
}

func (e *InvalidActionError) Unwrap() error {
	return e.Reason
}
