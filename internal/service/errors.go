package service

import (
	"errors"
	"fmt"
)

var (
	// ErrNoActiveDraft means the session has no booking in progress.
	ErrNoActiveDraft = errors.New("no active booking draft")

	// ErrInvalidStatus rejects admin transitions to unknown statuses.
	ErrInvalidStatus = errors.New("invalid booking status")
)

// TransitionError reports an operation attempted in the wrong flow step.
type TransitionError struct {
	Op   string
	Step string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s is not allowed in step %q", e.Op, e.Step)
}

// ValidationError is a recoverable user-input failure tied to one field.
// The flow does not advance and the draft is left untouched.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// PersistenceError is the one fatal failure of the flow: the booking could
// not be durably stored after payment, so it must not be reported confirmed.
type PersistenceError struct {
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("booking could not be stored: %v", e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
