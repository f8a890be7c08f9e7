package errors

import "errors"

var (
	ErrNotFound = errors.New("booking not found")

	// ErrLockInvalid means the presented token no longer owns a room lock:
	// another party already resolved this reservation. Never retried.
	ErrLockInvalid = errors.New("room lock not owned by this reservation")
)
