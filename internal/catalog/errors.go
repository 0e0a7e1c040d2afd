package catalog

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for catalog operations. An *APIError matches the one that
// fits its status code under errors.Is.
var (
	ErrNotFound    = errors.New("catalog: not found")
	ErrRateLimited = errors.New("catalog: rate limited by server")
	ErrBadRequest  = errors.New("catalog: bad request")
	ErrServer      = errors.New("catalog: server error")
)

// APIError is a non-2xx response. Body holds the raw error payload.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("catalog: status %d", e.StatusCode)
	}
	return fmt.Sprintf("catalog: status %d: %s", e.StatusCode, e.Body)
}

// Is maps the status code onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	case ErrBadRequest:
		return e.StatusCode == http.StatusBadRequest
	case ErrServer:
		return e.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// Error wraps an underlying error with operation context.
type Error struct {
	Op  string // getCard, listCards, listLeaders, listByFaction, listByRarity
	Arg string // card id or filter value, if any
	Err error
}

func (e *Error) Error() string {
	if e.Arg != "" {
		return fmt.Sprintf("catalog %s [%s]: %v", e.Op, e.Arg, e.Err)
	}
	return fmt.Sprintf("catalog %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func wrapError(op, arg string, err error) error {
	return &Error{Op: op, Arg: arg, Err: err}
}
