// Package rewrite defines the boundary between the application core and the
// external AI text-transformation service.
package rewrite

import "context"

// Rewriter defines the interface for restyling a document's markup.
// This interface serves as a boundary between the application core and
// external AI/LLM services; the worker depends on it, never on a vendor
// client directly.
type Rewriter interface {
	// Rewrite sends the placeholder-encoded document and the styling
	// instruction to the transformation service and returns the rewritten
	// HTML extracted from its response.
	//
	// Retry of transient failures (rate limiting, timeouts) happens inside
	// the implementation; a returned error is final. See errors.go for the
	// error taxonomy callers can classify with errors.Is.
	Rewrite(ctx context.Context, doc string, instruction string) (string, error)
}
