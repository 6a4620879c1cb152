package postgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/docpolish/docpolish-api/internal/store"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgreSQL error codes
const (
	// uniqueViolationCode is the PostgreSQL error code for unique constraint violations
	uniqueViolationCode = "23505"

	// programLimitExceededCode is the PostgreSQL error code for rows or
	// fields exceeding engine size limits
	programLimitExceededCode = "54000"
)

// MapError maps a database error to an appropriate store error.
// It wraps the original error to preserve context for debugging.
// All database operations route errors through this function so callers can
// classify failures with errors.Is.
func MapError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", store.ErrNotFound, err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case programLimitExceededCode:
			return fmt.Errorf("%w: %v", store.ErrPayloadTooLarge, err)
		case uniqueViolationCode:
			return fmt.Errorf("%w: duplicate key: %v", store.ErrUpdateFailed, err)
		}
	}

	return err
}
