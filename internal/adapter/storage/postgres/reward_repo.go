package postgres

import (
	"context"
	"fmt"

	"cryptosim/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// RewardRepo implements ports.MiningRewardRepository.
type RewardRepo struct {
	pool Pool
}

// NewRewardRepo creates a new RewardRepo.
func NewRewardRepo(pool Pool) *RewardRepo {
	return &RewardRepo{pool: pool}
}

func (r *RewardRepo) Create(ctx context.Context, tx pgx.Tx, m *domain.MiningReward) error {
	_, err := pick(r.pool, tx).Exec(ctx,
		`INSERT INTO mining_rewards (id, user_id, block_height, block_hash, amount_btc, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		m.ID, m.UserID, m.BlockHeight, m.BlockHash, m.AmountBTC, m.CreatedAt,
	)
	if err != nil {
		return translate("insert mining reward", err)
	}
	return nil
}

func (r *RewardRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.MiningReward, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, block_height, block_hash, amount_btc, created_at
		 FROM mining_rewards WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("list mining rewards: %w", err)
	}
	defer rows.Close()

	var rewards []domain.MiningReward
	for rows.Next() {
		var m domain.MiningReward
		if err := rows.Scan(&m.ID, &m.UserID, &m.BlockHeight, &m.BlockHash, &m.AmountBTC, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan mining reward: %w", err)
		}
		rewards = append(rewards, m)
	}
	return rewards, rows.Err()
}
