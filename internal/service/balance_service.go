package service

import (
	"context"

	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type balanceCalculator struct {
	ledgerRepo ports.LedgerRepository
}

// NewBalanceCalculator creates a calculator that derives balances from the
// ledger on every read. Reads take no locks.
func NewBalanceCalculator(ledgerRepo ports.LedgerRepository) ports.BalanceCalculator {
	return &balanceCalculator{ledgerRepo: ledgerRepo}
}

// AvailableBalance returns the spendable amount of walletID in currency.
func (b *balanceCalculator) AvailableBalance(ctx context.Context, walletID uuid.UUID, currency domain.Currency) (decimal.Decimal, error) {
	totals, err := b.ledgerRepo.Totals(ctx, walletID, currency)
	if err != nil {
		return decimal.Zero, storeError("aggregate ledger totals", err)
	}
	return totals.Available(), nil
}

func (b *balanceCalculator) Balances(ctx context.Context, walletID uuid.UUID) (map[domain.Currency]decimal.Decimal, error) {
	out := make(map[domain.Currency]decimal.Decimal, len(domain.Currencies))
	for _, c := range domain.Currencies {
		bal, err := b.AvailableBalance(ctx, walletID, c)
		if err != nil {
			return nil, err
		}
		out[c] = bal
	}
	return out, nil
}
