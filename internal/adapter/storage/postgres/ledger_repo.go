package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const entryColumns = `id, from_wallet_id, to_wallet_id, amount, fee, currency, tx_hash, status, block_id, created_at`

// LedgerRepo implements ports.LedgerRepository.
type LedgerRepo struct {
	pool Pool
}

// NewLedgerRepo creates a new LedgerRepo.
func NewLedgerRepo(pool Pool) *LedgerRepo {
	return &LedgerRepo{pool: pool}
}

// Create inserts an entry. A repeated tx_hash surfaces as domain.ErrDuplicateKey.
func (r *LedgerRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.LedgerEntry) error {
	query := `INSERT INTO ledger_entries (` + entryColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	_, err := pick(r.pool, tx).Exec(ctx, query,
		e.ID, e.FromWalletID, e.ToWalletID, e.Amount, e.Fee,
		string(e.Currency), e.TxHash, string(e.Status), e.BlockID, e.CreatedAt,
	)
	if err != nil {
		return translate("insert ledger entry", err)
	}
	return nil
}

// GetByID fetches an entry without locking.
func (r *LedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	return scanEntry(r.pool.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1`, id), "get ledger entry")
}

// GetByIDForUpdate fetches an entry and row-locks it until tx ends.
func (r *LedgerRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.LedgerEntry, error) {
	return scanEntry(tx.QueryRow(ctx,
		`SELECT `+entryColumns+` FROM ledger_entries WHERE id = $1 FOR UPDATE`, id), "get ledger entry for update")
}

// UpdateStatus moves an entry to status and sets its block reference.
func (r *LedgerRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.EntryStatus, blockID *uuid.UUID) error {
	tag, err := tx.Exec(ctx,
		`UPDATE ledger_entries SET status = $1, block_id = $2 WHERE id = $3`,
		string(status), blockID, id,
	)
	if err != nil {
		return translate("update ledger entry status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("ledger entry not found: %s", id)
	}
	return nil
}

// ClearBlock detaches every entry from blockID so the block can be deleted.
func (r *LedgerRepo) ClearBlock(ctx context.Context, tx pgx.Tx, blockID uuid.UUID) (int64, error) {
	tag, err := tx.Exec(ctx, `UPDATE ledger_entries SET block_id = NULL WHERE block_id = $1`, blockID)
	if err != nil {
		return 0, translate("clear block references", err)
	}
	return tag.RowsAffected(), nil
}

// List returns a page of entries touching any wallet owned by params.OwnerID,
// newest first, with the total match count.
func (r *LedgerRepo) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	conditions = append(conditions, fmt.Sprintf(
		"(from_wallet_id IN (SELECT id FROM wallets WHERE user_id = $%d) OR to_wallet_id IN (SELECT id FROM wallets WHERE user_id = $%d))",
		argIdx, argIdx))
	args = append(args, params.OwnerID)
	argIdx++

	if params.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, string(*params.Status))
		argIdx++
	}
	if params.WalletID != nil {
		conditions = append(conditions, fmt.Sprintf("(from_wallet_id = $%d OR to_wallet_id = $%d)", argIdx, argIdx))
		args = append(args, *params.WalletID)
		argIdx++
	}

	where := "WHERE " + strings.Join(conditions, " AND ")

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ledger_entries "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count ledger entries: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM ledger_entries %s
		ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, entryColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.LedgerEntry
	for rows.Next() {
		e := domain.LedgerEntry{}
		if err := rows.Scan(
			&e.ID, &e.FromWalletID, &e.ToWalletID, &e.Amount, &e.Fee,
			&e.Currency, &e.TxHash, &e.Status, &e.BlockID, &e.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("scan ledger entry row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate ledger entry rows: %w", err)
	}
	return entries, total, nil
}

// Totals aggregates the five balance components for one wallet and currency
// in a single pass.
func (r *LedgerRepo) Totals(ctx context.Context, walletID uuid.UUID, currency domain.Currency) (*domain.LedgerTotals, error) {
	query := `SELECT
		COALESCE(SUM(amount) FILTER (WHERE to_wallet_id = $1 AND status = 'CONFIRMED'), 0),
		COALESCE(SUM(amount) FILTER (WHERE from_wallet_id = $1 AND status = 'CONFIRMED'), 0),
		COALESCE(SUM(fee)    FILTER (WHERE from_wallet_id = $1 AND status = 'CONFIRMED'), 0),
		COALESCE(SUM(amount) FILTER (WHERE from_wallet_id = $1 AND status = 'PENDING'), 0),
		COALESCE(SUM(fee)    FILTER (WHERE from_wallet_id = $1 AND status = 'PENDING'), 0)
		FROM ledger_entries
		WHERE currency = $2 AND (from_wallet_id = $1 OR to_wallet_id = $1)`

	t := &domain.LedgerTotals{}
	err := r.pool.QueryRow(ctx, query, walletID, string(currency)).Scan(
		&t.IncomingConfirmed, &t.OutgoingConfirmed, &t.OutgoingConfirmedFees,
		&t.OutgoingPending, &t.OutgoingPendingFees,
	)
	if err != nil {
		return nil, fmt.Errorf("aggregate ledger totals: %w", err)
	}
	return t, nil
}

func scanEntry(row pgx.Row, op string) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{}
	err := row.Scan(
		&e.ID, &e.FromWalletID, &e.ToWalletID, &e.Amount, &e.Fee,
		&e.Currency, &e.TxHash, &e.Status, &e.BlockID, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, translate(op, err)
	}
	return e, nil
}
