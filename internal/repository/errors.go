package repository

import "errors"

var (
	// ErrNotFound is returned when no task exists for the requested id.
	ErrNotFound = errors.New("task not found")

	// ErrInvalidTransition is returned when a status update would violate the
	// monotonic lifecycle (pending -> processing -> completed/failed) or its
	// payload invariants. The record is left untouched.
	ErrInvalidTransition = errors.New("invalid task status transition")
)
