package api

import (
	"errors"
	"fmt"
)

var (
	// ErrUnavailable covers transport failures, timeouts, and 5xx: the
	// server could not be reached or could not answer. Retryable.
	ErrUnavailable = errors.New("server unavailable")

	// ErrUnauthorized means the session token is missing, expired, or rejected.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound means the record does not exist server-side.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an optimistic-concurrency mismatch. The concrete
	// error is always a *ConflictError carrying the server's snapshot.
	ErrConflict = errors.New("conflict")
)

// ConflictError is returned when an update's precondition timestamp does not
// match the server's current version. Server holds the server-side snapshot
// of the record, needed for manual resolution.
type ConflictError struct {
	Server []byte
}

func (e *ConflictError) Error() string {
	return "conflict: server has a newer version"
}

// Is lets errors.Is(err, ErrConflict) match.
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func statusError(code int, body string) error {
	switch {
	case code == 401 || code == 403:
		return fmt.Errorf("%w: http %d", ErrUnauthorized, code)
	case code == 404:
		return fmt.Errorf("%w: http %d", ErrNotFound, code)
	case code >= 500:
		return fmt.Errorf("%w: http %d", ErrUnavailable, code)
	default:
		return fmt.Errorf("unexpected http %d: %s", code, body)
	}
}
