package dto

import "encoding/json"

// Amounts travel as decimal strings ("12.50") so no precision is lost in
// JSON numbers.

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Username string `json:"username" binding:"required,max=150,safe_name"`
	Email    string `json:"email" binding:"omitempty,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=128" sanitize:"-"`
}

// RegisterResponse is the response body for successful registration.
type RegisterResponse struct {
	UserID         string `json:"user_id"`
	Username       string `json:"username"`
	WalletID       string `json:"wallet_id"`
	WelcomeEntryID string `json:"welcome_entry_id,omitempty"`
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required" sanitize:"-"`
}

// RefreshRequest is the request body for token refresh.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required" sanitize:"-"`
}

// TokenResponse carries an access/refresh token pair.
type TokenResponse struct {
	AccessToken      string `json:"access_token"`
	AccessExpiresAt  int64  `json:"access_expires_at"` // Unix timestamp
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
	TokenType        string `json:"token_type"`
}

// UserResponse is a public user profile.
type UserResponse struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email,omitempty"`
	IsStaff   bool   `json:"is_staff"`
	CreatedAt string `json:"created_at"`
}

// CreateWalletRequest is the request body for wallet creation. An empty
// name defaults to the caller's username.
type CreateWalletRequest struct {
	Name string `json:"name" binding:"omitempty,max=120,safe_name"`
}

// WalletResponse is a wallet without its private placeholder.
type WalletResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	PubKey    string `json:"pub_key"`
	CreatedAt string `json:"created_at"`
}

// BalanceResponse is the available balance of one currency.
type BalanceResponse struct {
	WalletID string `json:"wallet_id"`
	Currency string `json:"currency"`
	Balance  string `json:"balance"`
}

// BalancesResponse holds the available balance of every currency.
type BalancesResponse struct {
	WalletID string            `json:"wallet_id"`
	Balances map[string]string `json:"balances"`
}

// TransferRequest is the request body for a peer-to-peer transfer.
// ToWalletID takes precedence over ToUsername.
type TransferRequest struct {
	FromWalletID string  `json:"from_wallet_id" binding:"required,uuid"`
	ToWalletID   *string `json:"to_wallet_id,omitempty" binding:"omitempty,uuid"`
	ToUsername   string  `json:"to_username,omitempty" binding:"omitempty,max=150"`
	Amount       string  `json:"amount" binding:"required,amount"`
	Fee          string  `json:"fee" binding:"omitempty,amount"`
	Currency     string  `json:"currency" binding:"omitempty,currency"`
}

// MarketOrderRequest is the request body for a buy or sell against the
// market wallet.
type MarketOrderRequest struct {
	WalletID  string  `json:"wallet_id" binding:"required,uuid"`
	Amount    string  `json:"amount" binding:"required,amount"`
	Fee       *string `json:"fee,omitempty" binding:"omitempty,amount"`
	Currency  string  `json:"currency" binding:"omitempty,currency"`
	Method    string  `json:"method" binding:"omitempty,pay_method"`
	Reference string  `json:"reference" binding:"omitempty,max=100" sanitize:"-"`
}

// ConfirmRequest is the request body for confirming an entry into a block.
type ConfirmRequest struct {
	BlockID string `json:"block_id" binding:"required,uuid"`
}

// EntryResponse is a ledger entry.
type EntryResponse struct {
	ID           string  `json:"id"`
	FromWalletID string  `json:"from_wallet_id"`
	ToWalletID   string  `json:"to_wallet_id"`
	Amount       string  `json:"amount"`
	Fee          string  `json:"fee"`
	Currency     string  `json:"currency"`
	TxHash       string  `json:"tx_hash"`
	Status       string  `json:"status"`
	BlockID      *string `json:"block_id,omitempty"`
	CreatedAt    string  `json:"created_at"`
}

// EntryListQuery filters the caller's ledger entries.
type EntryListQuery struct {
	PageQuery
	Status   string `form:"status" binding:"omitempty,oneof=PENDING CONFIRMED FAILED"`
	WalletID string `form:"wallet_id" binding:"omitempty,uuid"`
}

// MineRequest is the request body for mining a block.
type MineRequest struct {
	MerkleRoot string `json:"merkle_root" binding:"required,max=64" sanitize:"-"`
	Nonce      string `json:"nonce" binding:"required,max=64" sanitize:"-"`
}

// BlockResponse is a block on the chain.
type BlockResponse struct {
	ID         string `json:"id"`
	Height     int64  `json:"height"`
	PrevHash   string `json:"prev_hash"`
	MerkleRoot string `json:"merkle_root"`
	Nonce      string `json:"nonce"`
	Hash       string `json:"hash"`
	MinedAt    string `json:"mined_at"`
}

// RewardResponse is a mining reward.
type RewardResponse struct {
	ID          string `json:"id"`
	BlockHeight int64  `json:"block_height"`
	BlockHash   string `json:"block_hash"`
	AmountBTC   string `json:"amount_btc"`
	CreatedAt   string `json:"created_at"`
}

// MiningOutcomeResponse is the result of a simulation attempt.
type MiningOutcomeResponse struct {
	Success     bool            `json:"success"`
	BlockHeight int64           `json:"block_height"`
	BlockHash   string          `json:"block_hash"`
	Reward      *RewardResponse `json:"reward,omitempty"`
}

// CreateTradeRequest is the request body for a new trade request.
type CreateTradeRequest struct {
	CounterpartyID       *string `json:"counterparty_id,omitempty" binding:"omitempty,uuid"`
	CounterpartyUsername string  `json:"counterparty_username,omitempty" binding:"omitempty,max=150"`
	Side                 string  `json:"side" binding:"required,trade_side"`
	Amount               string  `json:"amount" binding:"required,amount"`
	Fee                  string  `json:"fee" binding:"omitempty,amount"`
	Currency             string  `json:"currency" binding:"omitempty,currency"`
}

// TradeRequestResponse is a trade request.
type TradeRequestResponse struct {
	ID             string `json:"id"`
	RequesterID    string `json:"requester_id"`
	CounterpartyID string `json:"counterparty_id"`
	Side           string `json:"side"`
	Amount         string `json:"amount"`
	Fee            string `json:"fee"`
	Currency       string `json:"currency"`
	Token          string `json:"token"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at"`
}

// TradeApprovalResponse is an approved request with its settling entry.
type TradeApprovalResponse struct {
	Request TradeRequestResponse `json:"request"`
	Entry   EntryResponse        `json:"entry"`
}

// TradeListQuery filters the caller's trade requests.
type TradeListQuery struct {
	Scope  string `form:"scope" binding:"omitempty,oneof=all incoming outgoing"`
	Status string `form:"status" binding:"omitempty,oneof=PENDING APPROVED REJECTED CANCELLED"`
}

// AuditLogResponse is an audit log entry.
type AuditLogResponse struct {
	ID        string          `json:"id"`
	ActorID   *string         `json:"actor_id"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt string          `json:"created_at"`
}

// AuditListQuery filters audit entries.
type AuditListQuery struct {
	PageQuery
	Action string `form:"action" binding:"omitempty,max=50"`
}

// PriceTickRequest is the request body for creating or replacing a tick.
type PriceTickRequest struct {
	TS        *string `json:"ts,omitempty" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	PriceUSD  string  `json:"price_usd" binding:"required,amount"`
	PriceBTC  *string `json:"price_btc,omitempty" binding:"omitempty,btc_amount"`
	VolumeSIM *string `json:"volume_sim,omitempty" binding:"omitempty,amount"`
	Notes     string  `json:"notes" binding:"max=255" sanitize:"-"`
}

// PriceTickResponse is a price observation.
type PriceTickResponse struct {
	ID        string  `json:"id"`
	TS        string  `json:"ts"`
	PriceUSD  string  `json:"price_usd"`
	PriceBTC  *string `json:"price_btc"`
	VolumeSIM *string `json:"volume_sim"`
	Notes     string  `json:"notes"`
	CreatedAt string  `json:"created_at"`
}

// PriceListQuery bounds the tick listing.
type PriceListQuery struct {
	Limit int `form:"limit" binding:"omitempty,min=1"`
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// PageQuery is the common page/page_size query.
type PageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1"`
}

// Normalize applies the listing defaults and caps.
func (q PageQuery) Normalize() (page, pageSize int) {
	page, pageSize = q.Page, q.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}
