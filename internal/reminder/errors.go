package reminder

import (
	"errors"
	"fmt"
)

// ErrNotFound matches every *NotFoundError via errors.Is.
var ErrNotFound = errors.New("not found")

// NotFoundError reports a missing note (or a note without a due date where
// one is required).
type NotFoundError struct {
	NoteID int64
	Reason string
}

func (e *NotFoundError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("note %d: %s", e.NoteID, e.Reason)
	}
	return fmt.Sprintf("note %d not found", e.NoteID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// ErrInvalidRule is wrapped by recurrence parse failures.
var ErrInvalidRule = errors.New("invalid recurrence rule")
