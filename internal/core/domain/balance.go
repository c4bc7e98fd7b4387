package domain

import "github.com/shopspring/decimal"

// LedgerTotals are the per-currency aggregates the balance is derived from.
type LedgerTotals struct {
	IncomingConfirmed     decimal.Decimal
	OutgoingConfirmed     decimal.Decimal
	OutgoingConfirmedFees decimal.Decimal
	OutgoingPending       decimal.Decimal
	OutgoingPendingFees   decimal.Decimal
}

// Available returns confirmed incoming minus everything confirmed or reserved
// outgoing, fees included. Negative results clamp to zero; the ledger itself
// does not prevent overdraft.
func (t LedgerTotals) Available() decimal.Decimal {
	bal := t.IncomingConfirmed.
		Sub(t.OutgoingConfirmed).
		Sub(t.OutgoingConfirmedFees).
		Sub(t.OutgoingPending).
		Sub(t.OutgoingPendingFees)
	if bal.IsNegative() {
		return decimal.Zero
	}
	// Round is half away from zero, which is half-up for non-negative values.
	return bal.Round(AmountScale)
}
