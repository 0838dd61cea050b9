package core

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrNotFound   = errors.New("document not found")
	ErrValidation = errors.New("validation failed")
	ErrNoSession  = errors.New("no active session")
	ErrClosed     = errors.New("closed")
	ErrNotVisible = errors.New("item is not in the visible set")
	ErrReadOnly   = errors.New("store is in read-only mode")
)

// ValidationError reports a required field that is empty after trimming.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s is required", e.Field)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// RemoteWriteError reports a failed create, update or delete.
type RemoteWriteError struct {
	Op         string
	Collection string
	ID         string
	Err        error
}

func (e *RemoteWriteError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Collection, e.Err)
	}
	return fmt.Sprintf("%s %s/%s: %v", e.Op, e.Collection, e.ID, e.Err)
}

func (e *RemoteWriteError) Unwrap() error { return e.Err }

// SubscriptionError reports a live subscription that stopped delivering snapshots.
type SubscriptionError struct {
	Collection string
	Err        error
}

func (e *SubscriptionError) Error() string {
	return fmt.Sprintf("subscription %s: %v", e.Collection, e.Err)
}

func (e *SubscriptionError) Unwrap() error { return e.Err }

// IsValidation reports whether err was caused by invalid user input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}
