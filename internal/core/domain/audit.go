package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// AuditAction tags what happened. Tags are free-form but kept short.
type AuditAction string

const (
	AuditActionUserLogin          AuditAction = "USER_LOGIN"
	AuditActionWalletCreate       AuditAction = "WALLET_CREATE"
	AuditActionWalletDelete       AuditAction = "WALLET_DELETE"
	AuditActionWelcomeCredit      AuditAction = "WELCOME_CREDIT"
	AuditActionTxSend             AuditAction = "TX_SEND"
	AuditActionTxConfirm          AuditAction = "TX_CONFIRM"
	AuditActionTxFail             AuditAction = "TX_FAIL"
	AuditActionTradeBuy           AuditAction = "TRADE_BUY"
	AuditActionTradeSell          AuditAction = "TRADE_SELL"
	AuditActionTradeRequestCreate AuditAction = "TRADE_REQUEST_CREATE"
	AuditActionTradeApprove       AuditAction = "TRADE_REQUEST_APPROVE"
	AuditActionTradeReject        AuditAction = "TRADE_REQUEST_REJECT"
	AuditActionTradeCancel        AuditAction = "TRADE_REQUEST_CANCEL"
	AuditActionBlockMine          AuditAction = "BLOCK_MINE"
	AuditActionBlockDelete        AuditAction = "BLOCK_DELETE"
	AuditActionMiningReward       AuditAction = "MINING_REWARD"
	AuditActionMiningFailed       AuditAction = "MINING_FAILED"
	AuditActionPriceCreate        AuditAction = "PRICE_CREATE"
	AuditActionPriceUpdate        AuditAction = "PRICE_UPDATE"
	AuditActionPriceDelete        AuditAction = "PRICE_DELETE"
)

// AuditLogEntry is an append-only trace record. A nil ActorID marks a
// system-initiated action.
type AuditLogEntry struct {
	ID        uuid.UUID       `json:"id"`
	ActorID   *uuid.UUID      `json:"actor_id,omitempty"`
	Action    AuditAction     `json:"action"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewAuditLogEntry stamps a new entry with the JSON-encoded payload.
func NewAuditLogEntry(actor *uuid.UUID, action AuditAction, payload map[string]any) (*AuditLogEntry, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &AuditLogEntry{
		ID:        uuid.New(),
		ActorID:   actor,
		Action:    action,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}
