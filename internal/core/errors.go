package core

import (
	"errors"
	"fmt"
)

// ErrInvalidInput is the only error kind core returns. It is raised at
// construction when the row set has the wrong shape.
var ErrInvalidInput = errors.New("invalid input")

// InputError describes why a row set was rejected.
// Index is the offending row, or -1 when the problem concerns the whole set.
type InputError struct {
	Index  int
	Reason string
}

func (e *InputError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid input: %s", e.Reason)
	}
	return fmt.Sprintf("invalid input: row %d: %s", e.Index, e.Reason)
}

// Unwrap lets errors.Is match ErrInvalidInput.
func (e *InputError) Unwrap() error { return ErrInvalidInput }

func invalidRow(index int, format string, args ...any) error {
	return &InputError{Index: index, Reason: fmt.Sprintf(format, args...)}
}

func invalidSet(reason string) error {
	return &InputError{Index: -1, Reason: reason}
}
