package domain

import (
	"errors"
	"fmt"
)

// ErrUnauthenticated no credential is held, or the remote store rejected it
var ErrUnauthenticated = errors.New("Not authenticated")

// ErrNotFound the referenced course, lesson, assignment or progress record
// is unknown to the remote store
var ErrNotFound = errors.New("Resource not found")

// ErrDuplicatedUser unique key constraint violation on registration
var ErrDuplicatedUser = errors.New("Username or email is already registered")

// TransportError network or server failure talking to the remote store.
// Callers may retry the failed high-level operation.
type TransportError struct {
	Op     string // failed operation, eg."progress.create"
	Status int    // HTTP status code, 0 if the request never completed
	Err    error
}

func (te *TransportError) Error() string {
	if te.Status > 0 {
		return fmt.Sprintf("%s: upstream returned status %d", te.Op, te.Status)
	}
	return fmt.Sprintf("%s: %s", te.Op, te.Err)
}

func (te *TransportError) Unwrap() error {
	return te.Err
}

// NewTransportError create a TransportError for the given operation
func NewTransportError(op string, status int, err error) *TransportError {
	return &TransportError{Op: op, Status: status, Err: err}
}
