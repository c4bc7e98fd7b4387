package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeSide is the requester's side of a trade.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// ParseTradeSide accepts BUY or SELL in any case.
func ParseTradeSide(s string) (TradeSide, error) {
	switch side := TradeSide(strings.ToUpper(strings.TrimSpace(s))); side {
	case TradeSideBuy, TradeSideSell:
		return side, nil
	}
	return "", fmt.Errorf("unsupported trade side %q", s)
}

// TradeStatus is the state of a trade request.
type TradeStatus string

const (
	TradeStatusPending   TradeStatus = "PENDING"
	TradeStatusApproved  TradeStatus = "APPROVED"
	TradeStatusRejected  TradeStatus = "REJECTED"
	TradeStatusCancelled TradeStatus = "CANCELLED"
)

// Valid reports whether s is a known status.
func (s TradeStatus) Valid() bool {
	switch s {
	case TradeStatusPending, TradeStatusApproved, TradeStatusRejected, TradeStatusCancelled:
		return true
	}
	return false
}

// TradeScope selects which side of the caller's trade requests to list.
type TradeScope string

const (
	TradeScopeAll      TradeScope = "all"
	TradeScopeIncoming TradeScope = "incoming"
	TradeScopeOutgoing TradeScope = "outgoing"
)

// ParseTradeScope defaults to all.
func ParseTradeScope(s string) (TradeScope, error) {
	switch scope := TradeScope(strings.ToLower(strings.TrimSpace(s))); scope {
	case "":
		return TradeScopeAll, nil
	case TradeScopeAll, TradeScopeIncoming, TradeScopeOutgoing:
		return scope, nil
	}
	return "", fmt.Errorf("unsupported scope %q", s)
}

// TradeRequest is a bilateral proposal that becomes a ledger entry once the
// counterparty approves it.
type TradeRequest struct {
	ID             uuid.UUID       `json:"id"`
	RequesterID    uuid.UUID       `json:"requester_id"`
	CounterpartyID uuid.UUID       `json:"counterparty_id"`
	Side           TradeSide       `json:"side"`
	Amount         decimal.Decimal `json:"amount"`
	Fee            decimal.Decimal `json:"fee"`
	Currency       Currency        `json:"currency"`
	Token          string          `json:"token"`
	Status         TradeStatus     `json:"status"`
	CreatedAt      time.Time       `json:"created_at"`
}

// IsPending reports whether the request still awaits a decision.
func (t *TradeRequest) IsPending() bool {
	return t.Status == TradeStatusPending
}

// Involves reports whether userID is the requester or the counterparty.
func (t *TradeRequest) Involves(userID uuid.UUID) bool {
	return t.RequesterID == userID || t.CounterpartyID == userID
}

// Flow returns the source and destination wallets of the approval entry:
// a SELL moves value from requester to counterparty, a BUY the other way.
func (t *TradeRequest) Flow(requesterWallet, counterpartyWallet uuid.UUID) (from, to uuid.UUID) {
	if t.Side == TradeSideSell {
		return requesterWallet, counterpartyWallet
	}
	return counterpartyWallet, requesterWallet
}
