package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AmountScale is the number of decimal places kept for ledger amounts and fees.
const AmountScale = 2

// Largest values the NUMERIC(20,2) and NUMERIC(20,8) columns hold.
var (
	MaxAmount    = decimal.New(1, 18).Sub(decimal.New(1, -AmountScale))
	MaxBTCAmount = decimal.New(1, 12).Sub(decimal.New(1, -BTCScale))
)

// SaltSize is the number of random bytes mixed into every entry hash.
const SaltSize = 16

// Currency tags a ledger entry's unit of account.
type Currency string

const (
	CurrencySIM Currency = "SIM"
	CurrencyUSD Currency = "USD"
	CurrencyBTC Currency = "BTC"
)

// Currencies lists every supported currency in display order.
var Currencies = []Currency{CurrencySIM, CurrencyUSD, CurrencyBTC}

// Valid reports whether c is a supported currency.
func (c Currency) Valid() bool {
	switch c {
	case CurrencySIM, CurrencyUSD, CurrencyBTC:
		return true
	}
	return false
}

// ParseCurrency normalises s and defaults to SIM when empty.
func ParseCurrency(s string) (Currency, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return CurrencySIM, nil
	}
	c := Currency(s)
	if !c.Valid() {
		return "", fmt.Errorf("unsupported currency %q", s)
	}
	return c, nil
}

// EntryStatus is the lifecycle state of a ledger entry.
type EntryStatus string

const (
	EntryStatusPending   EntryStatus = "PENDING"
	EntryStatusConfirmed EntryStatus = "CONFIRMED"
	EntryStatusFailed    EntryStatus = "FAILED"
)

// IsTerminal returns true once the entry can no longer change state.
func (s EntryStatus) IsTerminal() bool {
	return s == EntryStatusConfirmed || s == EntryStatusFailed
}

// Valid reports whether s is a known status.
func (s EntryStatus) Valid() bool {
	return s == EntryStatusPending || s.IsTerminal()
}

// LedgerEntry records a movement of value between two wallets.
type LedgerEntry struct {
	ID           uuid.UUID       `json:"id"`
	FromWalletID uuid.UUID       `json:"from_wallet_id"`
	ToWalletID   uuid.UUID       `json:"to_wallet_id"`
	Amount       decimal.Decimal `json:"amount"`
	Fee          decimal.Decimal `json:"fee"`
	Currency     Currency        `json:"currency"`
	TxHash       string          `json:"tx_hash"`
	Status       EntryStatus     `json:"status"`
	BlockID      *uuid.UUID      `json:"block_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// IsTerminal returns true if the entry is CONFIRMED or FAILED.
func (e *LedgerEntry) IsTerminal() bool {
	return e.Status.IsTerminal()
}

// Touches reports whether walletID is either side of the entry.
func (e *LedgerEntry) Touches(walletID uuid.UUID) bool {
	return e.FromWalletID == walletID || e.ToWalletID == walletID
}

// EntryDraft holds the caller-supplied fields of an entry before it is hashed
// and persisted.
type EntryDraft struct {
	FromWalletID uuid.UUID
	ToWalletID   uuid.UUID
	Amount       decimal.Decimal
	Fee          decimal.Decimal
	Currency     Currency
	Status       EntryStatus // PENDING unless a system credit posts CONFIRMED directly
}

// Validate enforces the entry invariants.
func (d EntryDraft) Validate() error {
	if d.FromWalletID == d.ToWalletID {
		return errors.New("source and destination wallets must differ")
	}
	if !d.Amount.IsPositive() {
		return errors.New("amount must be greater than zero")
	}
	if d.Fee.IsNegative() {
		return errors.New("fee cannot be negative")
	}
	if !HasScale(d.Amount, AmountScale) || !HasScale(d.Fee, AmountScale) {
		return errors.New("amount and fee allow at most 2 decimal places")
	}
	if !WithinLimit(d.Amount, AmountScale) || !WithinLimit(d.Fee, AmountScale) {
		return fmt.Errorf("amount and fee cannot exceed %s", MaxAmount.StringFixed(AmountScale))
	}
	if !d.Currency.Valid() {
		return fmt.Errorf("unsupported currency %q", d.Currency)
	}
	if d.Status != "" && d.Status != EntryStatusPending && d.Status != EntryStatusConfirmed {
		return fmt.Errorf("entries cannot be created as %s", d.Status)
	}
	return nil
}

// HasScale reports whether d has no significant digits beyond places.
func HasScale(d decimal.Decimal, places int32) bool {
	return d.Equal(d.Truncate(places))
}

// WithinLimit reports whether d fits the column bound for its scale.
func WithinLimit(d decimal.Decimal, places int32) bool {
	if places > AmountScale {
		return d.Abs().LessThanOrEqual(MaxBTCAmount)
	}
	return d.Abs().LessThanOrEqual(MaxAmount)
}

// EntryHash derives the content hash of an entry. The template
// "from:to:amount:fee:salt" must stay stable for stored hashes to verify.
func EntryHash(from, to uuid.UUID, amount, fee decimal.Decimal, salt []byte) string {
	payload := fmt.Sprintf("%s:%s:%s:%s:%s",
		from, to,
		amount.StringFixed(AmountScale), fee.StringFixed(AmountScale),
		hex.EncodeToString(salt),
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}
