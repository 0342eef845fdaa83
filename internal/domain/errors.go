package domain

import "errors"

// Error kinds. Call sites wrap these with context; callers classify with errors.Is.
var (
	// ErrNotFitted is returned when a vectorizer is used before Fit.
	ErrNotFitted = errors.New("vectorizer not fitted")
	// ErrNotFound is returned for update/delete/get of an unknown or deleted id.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput rejects malformed upserts.
	ErrInvalidInput = errors.New("invalid input")
	// ErrTimeout reports an exceeded query deadline. Retryable.
	ErrTimeout = errors.New("query deadline exceeded")
	// ErrPersistence reports snapshot write or restore failures.
	ErrPersistence = errors.New("persistence failure")
	// ErrNoSnapshot is returned by a store that has nothing saved yet.
	ErrNoSnapshot = errors.New("no snapshot stored")
	// ErrCapacity reports a full session table that could not evict.
	ErrCapacity = errors.New("session capacity exhausted")
)
