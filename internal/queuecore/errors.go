package queuecore

import "errors"

var (
	// ErrInvalidPayload is returned when enqueue validation fails.
	ErrInvalidPayload = errors.New("invalid_payload")
	// ErrConflict is returned when a duplicate job id is enqueued.
	ErrConflict = errors.New("conflict")
	// ErrNotFound is returned when an operation targets an unknown job id.
	ErrNotFound = errors.New("not_found")
	// ErrInvalidState is returned by requeue when the job isn't in a state
	// that can be requeued.
	ErrInvalidState = errors.New("invalid_state")
)
