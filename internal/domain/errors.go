// Package domain defines the core business entities and errors.
package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidTransition is returned when a task status change is not
	// permitted by the state machine, including any transition out of a
	// terminal state.
	ErrInvalidTransition = errors.New("invalid task status transition")

	// ErrInvalidTaskStatus is returned when a status value is not one of the
	// known task statuses.
	ErrInvalidTaskStatus = errors.New("invalid task status")

	// ErrEmptyDocument is returned when a task carries neither inline content
	// nor a document reference to resolve.
	ErrEmptyDocument = errors.New("task has no document content or reference")
)
