package ports

import (
	"context"

	"cryptosim/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, tx pgx.Tx, user *domain.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByUsernameTx(ctx context.Context, tx pgx.Tx, username string) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

// WalletRepository defines persistence operations for wallets.
// Methods accepting pgx.Tx run inside the caller's transaction.
type WalletRepository interface {
	Create(ctx context.Context, tx pgx.Tx, wallet *domain.Wallet) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Wallet, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.Wallet, error)
	// GetDefault returns the wallet named "default" (case-insensitive) or
	// else the user's earliest wallet. nil when the user has none.
	GetDefault(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error)
	GetByUserAndName(ctx context.Context, tx pgx.Tx, userID uuid.UUID, name string) (*domain.Wallet, error)
	Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// LedgerRepository defines persistence operations for ledger entries.
type LedgerRepository interface {
	Create(ctx context.Context, tx pgx.Tx, entry *domain.LedgerEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.LedgerEntry, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.LedgerEntry, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.EntryStatus, blockID *uuid.UUID) error
	// ClearBlock nulls the block reference of every entry pointing at blockID.
	ClearBlock(ctx context.Context, tx pgx.Tx, blockID uuid.UUID) (int64, error)
	List(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
	Totals(ctx context.Context, walletID uuid.UUID, currency domain.Currency) (*domain.LedgerTotals, error)
}

// LedgerListParams holds filter + pagination for listing entries.
// Only entries touching a wallet owned by OwnerID are returned.
type LedgerListParams struct {
	OwnerID  uuid.UUID
	Status   *domain.EntryStatus
	WalletID *uuid.UUID
	Page     int
	PageSize int
}

// BlockRepository defines persistence operations for blocks.
type BlockRepository interface {
	Create(ctx context.Context, tx pgx.Tx, block *domain.Block) error
	// Tip returns the block with the highest height, or nil on an empty chain.
	Tip(ctx context.Context, tx pgx.Tx) (*domain.Block, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Block, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Block, error)
	List(ctx context.Context) ([]domain.Block, error)
	Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error
}

// MiningRewardRepository defines persistence operations for mining rewards.
type MiningRewardRepository interface {
	Create(ctx context.Context, tx pgx.Tx, reward *domain.MiningReward) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.MiningReward, error)
}

// TradeRequestRepository defines persistence operations for trade requests.
type TradeRequestRepository interface {
	Create(ctx context.Context, tx pgx.Tx, req *domain.TradeRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.TradeRequest, error)
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.TradeRequest, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TradeStatus) error
	List(ctx context.Context, params TradeListParams) ([]domain.TradeRequest, error)
}

// TradeListParams selects the caller's trade requests.
type TradeListParams struct {
	UserID uuid.UUID
	Scope  domain.TradeScope
	Status *domain.TradeStatus
}

// AuditRepository defines persistence for audit log entries.
type AuditRepository interface {
	// Append writes entry inside tx without poisoning it on failure.
	// A nil tx writes through the pool.
	Append(ctx context.Context, tx pgx.Tx, entry *domain.AuditLogEntry) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.AuditLogEntry, error)
	List(ctx context.Context, params AuditListParams) ([]domain.AuditLogEntry, int64, error)
}

// AuditListParams filters audit entries. A nil ActorID lists everything.
type AuditListParams struct {
	ActorID  *uuid.UUID
	Action   *domain.AuditAction
	Page     int
	PageSize int
}

// PriceTickRepository defines persistence operations for price ticks.
type PriceTickRepository interface {
	Create(ctx context.Context, tick *domain.PriceTick) error
	Update(ctx context.Context, tick *domain.PriceTick) (bool, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*domain.PriceTick, error)
	Latest(ctx context.Context) (*domain.PriceTick, error)
	List(ctx context.Context, limit int) ([]domain.PriceTick, error)
}

// IdempotencyRepository defines persistence for idempotency logs (DB backup).
type IdempotencyRepository interface {
	Create(ctx context.Context, tx pgx.Tx, log *domain.IdempotencyLog) error
	Get(ctx context.Context, key string) (*domain.IdempotencyLog, error)
}

// DBTransactor provides database transaction management.
type DBTransactor interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Lock keys shared by every process that appends to the chain or bootstraps
// the market account.
const (
	LockKeyChain        = "block-chain"
	LockKeyMarketWallet = "market-wallet"
)

// Locker serialises critical sections across processes for the lifetime of tx.
type Locker interface {
	Lock(ctx context.Context, tx pgx.Tx, key string) error
}
