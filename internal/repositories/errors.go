package repositories

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dateloop/backend/internal/apperr"
)

var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = apperr.ErrNotFound
	// ErrConflict indicates the attempted write would violate a uniqueness constraint.
	ErrConflict = apperr.ErrConflict
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
	pgInvalidTextRepr     = "22P02"
)

// translate maps driver errors onto the shared error taxonomy. Constraint
// violations and malformed ids become ErrConflict, ErrNotFound or a
// validation error. Anything else is wrapped as transient.
func translate(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return ErrConflict
		case pgForeignKeyViolation, pgInvalidTextRepr:
			return ErrNotFound
		case pgCheckViolation:
			return fmt.Errorf("%s: %w", op, apperr.ErrValidation)
		}
	}

	return apperr.Transient(op, err)
}

func acquireError(err error) error {
	return apperr.Transient("acquire connection", err)
}
