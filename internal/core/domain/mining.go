package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Reward bounds in satoshi, inclusive.
const (
	MinRewardSats int64 = 20_000
	MaxRewardSats int64 = 150_000

	// BTCScale is the precision of BTC-denominated amounts.
	BTCScale = 8
)

// MiningReward credits a user for a successfully simulated block. Height and
// hash are historical: the block row is gone once the reward exists.
type MiningReward struct {
	ID          uuid.UUID       `json:"id"`
	UserID      uuid.UUID       `json:"user_id"`
	BlockHeight int64           `json:"block_height"`
	BlockHash   string          `json:"block_hash"`
	AmountBTC   decimal.Decimal `json:"amount_btc"`
	CreatedAt   time.Time       `json:"created_at"`
}

// MiningOutcome is the result of one simulation attempt.
type MiningOutcome struct {
	Success     bool          `json:"success"`
	BlockHeight int64         `json:"block_height"`
	BlockHash   string        `json:"block_hash"`
	Reward      *MiningReward `json:"reward,omitempty"`
}

// SatsToBTC scales an integer satoshi amount to BTC.
func SatsToBTC(sats int64) decimal.Decimal {
	return decimal.New(sats, -BTCScale)
}
