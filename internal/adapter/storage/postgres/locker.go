package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// AdvisoryLocker implements ports.Locker with transaction-scoped advisory
// locks. The lock is released when tx commits or rolls back.
type AdvisoryLocker struct{}

// NewAdvisoryLocker creates an AdvisoryLocker.
func NewAdvisoryLocker() *AdvisoryLocker {
	return &AdvisoryLocker{}
}

// Lock blocks until the advisory lock for key is held by tx.
func (l *AdvisoryLocker) Lock(ctx context.Context, tx pgx.Tx, key string) error {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
		return translate("advisory lock "+key, err)
	}
	return nil
}
