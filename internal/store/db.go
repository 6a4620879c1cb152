package store

import (
	"context"
	"database/sql"
)

// DBTX is the database handle the task store runs its queries against.
// Both *sql.DB and *sql.Tx satisfy it, so the dequeue claim can execute
// inside a transaction while everything else uses the pooled connection.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}
