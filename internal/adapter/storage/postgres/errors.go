package postgres

import (
	"errors"
	"fmt"

	"cryptosim/internal/core/domain"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgLockNotAvailable    = "55P03"
)

// translate wraps err with the matching domain sentinel when PostgreSQL
// reports a constraint or lock failure. op names the failing statement.
func translate(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w (%s): %w", op, domain.ErrDuplicateKey, pgErr.ConstraintName, err)
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w (%s): %w", op, domain.ErrReferenced, pgErr.ConstraintName, err)
		case pgLockNotAvailable:
			return fmt.Errorf("%s: %w: %w", op, domain.ErrLockTimeout, err)
		}
	}
	return fmt.Errorf("%s: %w", op, err)
}
