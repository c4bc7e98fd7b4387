package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const maxPriceNotesLength = 255

// PriceTick is one observation of the simulated market price.
type PriceTick struct {
	ID        uuid.UUID           `json:"id"`
	TS        time.Time           `json:"ts"`
	PriceUSD  decimal.Decimal     `json:"price_usd"`
	PriceBTC  decimal.NullDecimal `json:"price_btc"`
	VolumeSIM decimal.NullDecimal `json:"volume_sim"`
	Notes     string              `json:"notes"`
	CreatedAt time.Time           `json:"created_at"`
}

// Validate checks signs, precision and notes length.
func (p *PriceTick) Validate() error {
	if p.PriceUSD.IsNegative() || !HasScale(p.PriceUSD, AmountScale) {
		return errors.New("price_usd must be non-negative with at most 2 decimal places")
	}
	if p.PriceBTC.Valid && (p.PriceBTC.Decimal.IsNegative() || !HasScale(p.PriceBTC.Decimal, BTCScale)) {
		return errors.New("price_btc must be non-negative with at most 8 decimal places")
	}
	if p.VolumeSIM.Valid && (p.VolumeSIM.Decimal.IsNegative() || !HasScale(p.VolumeSIM.Decimal, AmountScale)) {
		return errors.New("volume_sim must be non-negative with at most 2 decimal places")
	}
	if !WithinLimit(p.PriceUSD, AmountScale) ||
		(p.PriceBTC.Valid && !WithinLimit(p.PriceBTC.Decimal, BTCScale)) ||
		(p.VolumeSIM.Valid && !WithinLimit(p.VolumeSIM.Decimal, AmountScale)) {
		return errors.New("price values exceed the supported range")
	}
	if len(p.Notes) > maxPriceNotesLength {
		return errors.New("notes allow at most 255 characters")
	}
	return nil
}
