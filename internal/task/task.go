package task

import (
	"context"
	"errors"
)

// Common dependency validation errors
var (
	ErrNilTaskStore     = errors.New("task store cannot be nil")
	ErrNilDocumentStore = errors.New("document store cannot be nil")
	ErrNilCodec         = errors.New("codec cannot be nil")
	ErrNilRewriter      = errors.New("rewriter cannot be nil")
	ErrNilLogger        = errors.New("logger cannot be nil")
	ErrNilWriter        = errors.New("transition writer cannot be nil")
)

// DocumentStorage is the object storage surface the worker needs: resolve a
// source document and persist a rewritten result.
type DocumentStorage interface {
	// FetchDocument resolves a document by identifier across the candidate
	// storage keys, returning the bytes and the key that matched.
	FetchDocument(ctx context.Context, documentID string) ([]byte, string, error)

	// PutResult persists a rewritten document under the given key.
	PutResult(ctx context.Context, key string, data []byte) error
}

// DocumentConverter converts a binary document artifact (e.g. a word
// processor file) into HTML. Conversion itself is an external collaborator;
// the worker only falls back to it when a resolved artifact is not HTML.
type DocumentConverter interface {
	ToHTML(ctx context.Context, data []byte) (string, error)
}
