package rewrite

import "errors"

// Common errors returned by rewrite clients.
var (
	// ErrRewriteFailed is returned when the rewrite fails for any general reason.
	ErrRewriteFailed = errors.New("failed to rewrite document")

	// ErrAuthFailure is returned on authentication or authorization errors.
	// Never retried.
	ErrAuthFailure = errors.New("rewrite service authentication failed")

	// ErrRateLimited is returned when the service signals rate limiting.
	// Retried with exponential backoff up to the configured attempt budget.
	ErrRateLimited = errors.New("rewrite service rate limited")

	// ErrInvalidResponse is returned when the service response cannot be
	// parsed or carries no usable content. Never retried.
	ErrInvalidResponse = errors.New("invalid response from rewrite service")

	// ErrTransientFailure is returned for temporary errors (timeouts, no
	// response) after the retry budget is exhausted.
	ErrTransientFailure = errors.New("transient error during rewrite")

	// ErrInvalidConfig is returned when the client configuration is invalid.
	ErrInvalidConfig = errors.New("invalid rewrite client configuration")
)
