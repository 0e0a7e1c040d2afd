package store

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is a store error with an HTTP status code.
type Error struct {
	Code    int    // HTTP status code
	Message string // User-facing message
	Err     error  // Underlying error (optional)
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPCode returns the HTTP status code associated with this error.
func (e *Error) HTTPCode() int { return e.Code }

// Sentinel errors. Returned as-is or wrapped with %w, so errors.Is matches them.
var (
	ErrNotFound = &Error{
		Code:    http.StatusNotFound,
		Message: "resource not found",
	}

	ErrInvalidPath = &Error{
		Code:    http.StatusBadRequest,
		Message: "invalid path",
	}

	// ErrVersionMismatch is returned by CompareAndSwap when the record changed
	// since it was read.
	ErrVersionMismatch = &Error{
		Code:    http.StatusConflict,
		Message: "version mismatch",
	}

	// ErrConflictExhausted is returned by Transact after every attempt lost a race.
	ErrConflictExhausted = &Error{
		Code:    http.StatusConflict,
		Message: "conflict exhausted",
	}
)

// ErrAbort is returned from a TxnFunc to end the transaction without writing.
// Transact reports success when it sees it.
var ErrAbort = errors.New("transaction aborted")
