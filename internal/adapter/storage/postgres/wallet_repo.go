package postgres

import (
	"context"
	"errors"
	"fmt"

	"cryptosim/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `id, user_id, name, pub_key, priv_key_enc, created_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

// Create inserts a new wallet.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.Wallet) error {
	query := `INSERT INTO wallets (` + walletColumns + `) VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := pick(r.pool, tx).Exec(ctx, query,
		w.ID, w.UserID, w.Name, w.PubKey, w.PrivKeyEnc, w.CreatedAt,
	)
	if err != nil {
		return translate("insert wallet", err)
	}
	return nil
}

// GetByID fetches a wallet by its UUID.
func (r *WalletRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error) {
	return scanWallet(r.pool.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1`, id), "get wallet by id")
}

// ListByUser returns the user's wallets, oldest first.
func (r *WalletRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 ORDER BY created_at, id`, userID)
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	defer rows.Close()

	var wallets []domain.Wallet
	for rows.Next() {
		var w domain.Wallet
		if err := rows.Scan(&w.ID, &w.UserID, &w.Name, &w.PubKey, &w.PrivKeyEnc, &w.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan wallet: %w", err)
		}
		wallets = append(wallets, w)
	}
	return wallets, rows.Err()
}

// GetDefault prefers the wallet named "default" (any case), then the oldest.
func (r *WalletRepo) GetDefault(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1
		ORDER BY (LOWER(name) = 'default') DESC, created_at, id LIMIT 1`

	return scanWallet(pick(r.pool, tx).QueryRow(ctx, query, userID), "get default wallet")
}

// GetByUserAndName fetches one of the user's wallets by exact name.
func (r *WalletRepo) GetByUserAndName(ctx context.Context, tx pgx.Tx, userID uuid.UUID, name string) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM wallets WHERE user_id = $1 AND name = $2
		ORDER BY created_at LIMIT 1`

	return scanWallet(pick(r.pool, tx).QueryRow(ctx, query, userID, name), "get wallet by name")
}

// Delete removes a wallet. Wallets referenced by ledger entries surface as
// domain.ErrReferenced.
func (r *WalletRepo) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := pick(r.pool, tx).Exec(ctx, `DELETE FROM wallets WHERE id = $1`, id)
	if err != nil {
		return translate("delete wallet", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("wallet not found: %s", id)
	}
	return nil
}

func scanWallet(row pgx.Row, op string) (*domain.Wallet, error) {
	w := &domain.Wallet{}
	err := row.Scan(&w.ID, &w.UserID, &w.Name, &w.PubKey, &w.PrivKeyEnc, &w.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}
