package ports

import (
	"context"
	"time"

	"cryptosim/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// HashService handles password hashing (Argon2id).
type HashService interface {
	Hash(password string) (string, error)
	Verify(password string, hash string) (bool, error)
}

// TokenKind distinguishes short-lived access tokens from refresh tokens.
type TokenKind string

const (
	TokenKindAccess  TokenKind = "access"
	TokenKindRefresh TokenKind = "refresh"
)

// TokenPair is the result of a successful login or refresh.
type TokenPair struct {
	Access        string
	AccessExpiry  time.Time
	Refresh       string
	RefreshExpiry time.Time
}

// TokenService handles JWT token operations.
type TokenService interface {
	Generate(user *domain.User) (*TokenPair, error)
	Validate(tokenString string, kind TokenKind) (*Principal, error)
}

// Principal is the authenticated caller as carried by an access token.
type Principal struct {
	UserID   uuid.UUID
	Username string
	IsStaff  bool
}

// IdempotencyCache is the Redis-layer idempotency check (fast path).
type IdempotencyCache interface {
	Get(ctx context.Context, key string) ([]byte, error) // Returns cached response JSON or nil
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// PriceCache holds the most recent price tick.
type PriceCache interface {
	GetLatest(ctx context.Context) (*domain.PriceTick, error) // nil on miss
	SetLatest(ctx context.Context, tick *domain.PriceTick, ttl time.Duration) error
	Invalidate(ctx context.Context) error
}

// RandomSource draws uniform integers in [0, n). *math/rand/v2.Rand satisfies it.
type RandomSource interface {
	IntN(n int) int
}

// LedgerMetrics receives domain counters.
type LedgerMetrics interface {
	EntryRecorded(status domain.EntryStatus, currency domain.Currency)
	MiningOutcome(success bool)
	TradeDecided(status domain.TradeStatus)
}

// --- Service Ports (Business Logic) ---

// AuditRecorder appends audit entries. Failures are logged, never returned:
// auditing must not abort the primary action.
type AuditRecorder interface {
	Record(ctx context.Context, tx pgx.Tx, actor *uuid.UUID, action domain.AuditAction, payload map[string]any)
}

// AuditService exposes the audit log.
type AuditService interface {
	AuditRecorder
	List(ctx context.Context, caller Principal, params AuditListParams) ([]domain.AuditLogEntry, int64, error)
	Get(ctx context.Context, caller Principal, id uuid.UUID) (*domain.AuditLogEntry, error)
}

// LedgerPoster writes entries inside an existing transaction. It is shared by
// every flow that moves value: transfers, trades, market orders, registration.
type LedgerPoster interface {
	Post(ctx context.Context, tx pgx.Tx, draft domain.EntryDraft) (*domain.LedgerEntry, error)
	// MarketWallet returns the exchange wallet, creating the market account
	// on first use.
	MarketWallet(ctx context.Context, tx pgx.Tx) (*domain.Wallet, error)
}

// BalanceCalculator derives balances from the ledger at read time.
type BalanceCalculator interface {
	AvailableBalance(ctx context.Context, walletID uuid.UUID, currency domain.Currency) (decimal.Decimal, error)
	Balances(ctx context.Context, walletID uuid.UUID) (map[domain.Currency]decimal.Decimal, error)
}

// AuthService defines registration and authentication.
type AuthService interface {
	Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error)
	Login(ctx context.Context, username, password string) (*TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
}

// RegisterRequest holds input for user registration.
type RegisterRequest struct {
	Username string
	Email    string
	Password string
}

// RegisterResponse holds the bootstrap result of a registration.
type RegisterResponse struct {
	UserID         uuid.UUID
	Username       string
	WalletID       uuid.UUID
	WelcomeEntryID uuid.UUID
}

// UserService exposes user profiles.
type UserService interface {
	GetProfile(ctx context.Context, id uuid.UUID) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
}

// WalletService manages the caller's wallets.
type WalletService interface {
	Create(ctx context.Context, caller Principal, name string) (*domain.Wallet, error)
	List(ctx context.Context, caller Principal) ([]domain.Wallet, error)
	Get(ctx context.Context, caller Principal, id uuid.UUID) (*domain.Wallet, error)
	Delete(ctx context.Context, caller Principal, id uuid.UUID) error
	Balance(ctx context.Context, caller Principal, id uuid.UUID, currency string) (decimal.Decimal, error)
	Balances(ctx context.Context, caller Principal, id uuid.UUID) (map[domain.Currency]decimal.Decimal, error)
}

// LedgerService is the transaction lifecycle manager.
type LedgerService interface {
	Transfer(ctx context.Context, req TransferRequest) (*domain.LedgerEntry, error)
	Confirm(ctx context.Context, caller Principal, id uuid.UUID, blockID *uuid.UUID) (*domain.LedgerEntry, error)
	Fail(ctx context.Context, caller Principal, id uuid.UUID) (*domain.LedgerEntry, error)
	Get(ctx context.Context, caller Principal, id uuid.UUID) (*domain.LedgerEntry, error)
	List(ctx context.Context, params LedgerListParams) ([]domain.LedgerEntry, int64, error)
	Buy(ctx context.Context, order MarketOrder) (*domain.LedgerEntry, error)
	Sell(ctx context.Context, order MarketOrder) (*domain.LedgerEntry, error)
}

// TransferRequest holds validated input for a peer-to-peer transfer.
// The destination is ToWalletID or, when nil, ToUsername's default wallet.
type TransferRequest struct {
	Caller         Principal
	FromWalletID   uuid.UUID
	ToWalletID     *uuid.UUID
	ToUsername     string
	Amount         decimal.Decimal
	Fee            decimal.Decimal
	Currency       string
	IdempotencyKey string
}

// MarketOrder is a buy or sell against the market wallet. A nil Fee takes
// the configured default.
type MarketOrder struct {
	Caller    Principal
	WalletID  uuid.UUID
	Amount    decimal.Decimal
	Fee       *decimal.Decimal
	Currency  string
	Method    string
	Reference string
}

// MiningService is the block and reward generator.
type MiningService interface {
	Mine(ctx context.Context, caller Principal, merkleRoot, nonce string) (*domain.Block, error)
	Simulate(ctx context.Context, caller Principal, blockID uuid.UUID) (*domain.MiningOutcome, error)
	ListBlocks(ctx context.Context) ([]domain.Block, error)
	GetBlock(ctx context.Context, id uuid.UUID) (*domain.Block, error)
	DeleteBlock(ctx context.Context, caller Principal, id uuid.UUID) error
	ListRewards(ctx context.Context, caller Principal) ([]domain.MiningReward, error)
}

// TradeService is the trade request broker.
type TradeService interface {
	Create(ctx context.Context, req CreateTradeRequest) (*domain.TradeRequest, error)
	Approve(ctx context.Context, caller Principal, id uuid.UUID) (*TradeApproval, error)
	Reject(ctx context.Context, caller Principal, id uuid.UUID) (*domain.TradeRequest, error)
	Cancel(ctx context.Context, caller Principal, id uuid.UUID) (*domain.TradeRequest, error)
	Get(ctx context.Context, caller Principal, id uuid.UUID) (*domain.TradeRequest, error)
	List(ctx context.Context, params TradeListParams) ([]domain.TradeRequest, error)
}

// CreateTradeRequest holds input for a new trade request. The counterparty
// is CounterpartyID or, when nil, CounterpartyUsername.
type CreateTradeRequest struct {
	Caller               Principal
	CounterpartyID       *uuid.UUID
	CounterpartyUsername string
	Side                 string
	Amount               decimal.Decimal
	Fee                  decimal.Decimal
	Currency             string
}

// TradeApproval is the outcome of an approval: the request and its entry.
type TradeApproval struct {
	Request *domain.TradeRequest
	Entry   *domain.LedgerEntry
}

// PriceService manages the price feed.
type PriceService interface {
	List(ctx context.Context, limit int) ([]domain.PriceTick, error)
	Get(ctx context.Context, id uuid.UUID) (*domain.PriceTick, error)
	Latest(ctx context.Context) (*domain.PriceTick, error)
	Create(ctx context.Context, caller Principal, tick *domain.PriceTick) (*domain.PriceTick, error)
	Update(ctx context.Context, caller Principal, tick *domain.PriceTick) (*domain.PriceTick, error)
	Delete(ctx context.Context, caller Principal, id uuid.UUID) error
}
