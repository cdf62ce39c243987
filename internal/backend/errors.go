package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrNotAuthenticated is returned by privileged calls made without a
	// session token. No request is sent in that case.
	ErrNotAuthenticated = errors.New("not authenticated")
	// ErrNotFound is returned by single-entity lookups that match nothing.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput wraps validation failures caught before any request.
	ErrInvalidInput = errors.New("invalid input")
)

// AuthError is a rejection from the auth platform: bad credentials, an
// existing registration, a failed sign-out.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// BackendError is a failed table or storage operation. Its message is the
// upstream one.
type BackendError struct {
	Op  string
	Err error
}

func (e *BackendError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *BackendError) Unwrap() error { return e.Err }

// NetworkError is a failed remote-function call. Status is zero when no
// reply arrived at all.
type NetworkError struct {
	Op      string
	Status  int
	Message string
	Err     error
}

func (e *NetworkError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Op, e.Message, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
