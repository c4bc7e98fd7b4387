package postgres

import (
	"context"
	"errors"
	"fmt"

	"cryptosim/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

// IdempotencyRepo is the durable record of completed transfers, keyed by the
// per-user idempotency key. Each row points at the ledger entry the transfer
// produced and keeps the response JSON so a replay after a cache eviction
// returns the same entry.
type IdempotencyRepo struct {
	pool Pool
}

// NewIdempotencyRepo creates a new IdempotencyRepo.
func NewIdempotencyRepo(pool Pool) *IdempotencyRepo {
	return &IdempotencyRepo{pool: pool}
}

// Create records key in the same transaction that posts the entry, so the
// row exists only if the entry committed. A concurrent transfer with the
// same key loses the primary-key race and surfaces as domain.ErrDuplicateKey.
func (r *IdempotencyRepo) Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error {
	query := `INSERT INTO idempotency_logs (key, entry_id, response_json, created_at)
		VALUES ($1, $2, $3, $4)`

	_, err := pick(r.pool, tx).Exec(ctx, query, log.Key, log.EntryID, log.ResponseJSON, log.CreatedAt)
	if err != nil {
		return translate("insert idempotency log", err)
	}
	return nil
}

// Get returns the completed transfer for key, or nil, nil if none committed.
func (r *IdempotencyRepo) Get(ctx context.Context, key string) (*domain.IdempotencyLog, error) {
	query := `SELECT key, entry_id, response_json, created_at FROM idempotency_logs WHERE key = $1`

	log := &domain.IdempotencyLog{}
	err := r.pool.QueryRow(ctx, query, key).Scan(&log.Key, &log.EntryID, &log.ResponseJSON, &log.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get idempotency log: %w", err)
	}
	return log, nil
}
