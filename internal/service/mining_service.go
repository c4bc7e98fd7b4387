package service

import (
	"context"
	"errors"
	"time"

	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// MiningServiceImpl implements ports.MiningService.
type MiningServiceImpl struct {
	blockRepo  ports.BlockRepository
	ledgerRepo ports.LedgerRepository
	rewardRepo ports.MiningRewardRepository
	transactor ports.DBTransactor
	locker     ports.Locker
	rng        ports.RandomSource
	audit      ports.AuditRecorder
	metrics    ports.LedgerMetrics
	log        zerolog.Logger
}

// NewMiningService creates a new MiningServiceImpl.
func NewMiningService(
	blockRepo ports.BlockRepository,
	ledgerRepo ports.LedgerRepository,
	rewardRepo ports.MiningRewardRepository,
	transactor ports.DBTransactor,
	locker ports.Locker,
	rng ports.RandomSource,
	audit ports.AuditRecorder,
	metrics ports.LedgerMetrics,
	log zerolog.Logger,
) *MiningServiceImpl {
	return &MiningServiceImpl{
		blockRepo:  blockRepo,
		ledgerRepo: ledgerRepo,
		rewardRepo: rewardRepo,
		transactor: transactor,
		locker:     locker,
		rng:        rng,
		audit:      audit,
		metrics:    metrics,
		log:        log,
	}
}

// Mine appends a block on top of the current tip. The chain lock serialises
// concurrent miners so heights stay contiguous.
func (s *MiningServiceImpl) Mine(ctx context.Context, caller ports.Principal, merkleRoot, nonce string) (*domain.Block, error) {
	if err := domain.ValidateBlockInput(merkleRoot, nonce); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.locker.Lock(ctx, dbTx, ports.LockKeyChain); err != nil {
		return nil, storeError("lock chain", err)
	}

	tip, err := s.blockRepo.Tip(ctx, dbTx)
	if err != nil {
		return nil, storeError("read chain tip", err)
	}

	block := domain.NextBlock(tip, merkleRoot, nonce, time.Now().UTC())
	if err := s.blockRepo.Create(ctx, dbTx, block); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, apperror.Conflict("block height already taken, retry")
		}
		return nil, storeError("create block", err)
	}

	s.audit.Record(ctx, dbTx, &caller.UserID, domain.AuditActionBlockMine, map[string]any{
		"block_id": block.ID.String(),
		"height":   block.Height,
		"hash":     block.Hash,
	})

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeError("commit tx", err)
	}

	s.log.Info().
		Str("block_id", block.ID.String()).
		Int64("height", block.Height).
		Str("hash", block.Hash).
		Msg("block mined")

	return block, nil
}

// Simulate rolls the mining outcome for a block and consumes it. On success
// the caller is credited a reward of MinRewardSats..MaxRewardSats. The block
// is deleted either way, so a second attempt finds nothing.
func (s *MiningServiceImpl) Simulate(ctx context.Context, caller ports.Principal, blockID uuid.UUID) (*domain.MiningOutcome, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	block, err := s.blockRepo.GetByIDForUpdate(ctx, dbTx, blockID)
	if err != nil {
		return nil, storeError("lock block", err)
	}
	if block == nil {
		return nil, apperror.ErrNotFound("block")
	}

	outcome := &domain.MiningOutcome{
		Success:     s.rng.IntN(2) == 1,
		BlockHeight: block.Height,
		BlockHash:   block.Hash,
	}

	payload := map[string]any{
		"block_id": block.ID.String(),
		"height":   block.Height,
		"hash":     block.Hash,
	}
	action := domain.AuditActionMiningFailed

	if outcome.Success {
		sats := domain.MinRewardSats + int64(s.rng.IntN(int(domain.MaxRewardSats-domain.MinRewardSats+1)))
		reward := &domain.MiningReward{
			ID:          uuid.New(),
			UserID:      caller.UserID,
			BlockHeight: block.Height,
			BlockHash:   block.Hash,
			AmountBTC:   domain.SatsToBTC(sats),
			CreatedAt:   time.Now().UTC(),
		}
		if err := s.rewardRepo.Create(ctx, dbTx, reward); err != nil {
			return nil, storeError("create mining reward", err)
		}
		outcome.Reward = reward
		action = domain.AuditActionMiningReward
		payload["reward_id"] = reward.ID.String()
		payload["amount_btc"] = reward.AmountBTC.StringFixed(domain.BTCScale)
	}

	cleared, err := s.ledgerRepo.ClearBlock(ctx, dbTx, block.ID)
	if err != nil {
		return nil, storeError("clear block references", err)
	}
	if err := s.blockRepo.Delete(ctx, dbTx, block.ID); err != nil {
		return nil, storeError("delete block", err)
	}

	s.audit.Record(ctx, dbTx, &caller.UserID, action, payload)

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeError("commit tx", err)
	}
	s.metrics.MiningOutcome(outcome.Success)

	s.log.Info().
		Bool("success", outcome.Success).
		Int64("height", block.Height).
		Int64("entries_detached", cleared).
		Str("user_id", caller.UserID.String()).
		Msg("mining simulated")

	return outcome, nil
}

func (s *MiningServiceImpl) ListBlocks(ctx context.Context) ([]domain.Block, error) {
	blocks, err := s.blockRepo.List(ctx)
	if err != nil {
		return nil, storeError("list blocks", err)
	}
	return blocks, nil
}

func (s *MiningServiceImpl) GetBlock(ctx context.Context, id uuid.UUID) (*domain.Block, error) {
	block, err := s.blockRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get block", err)
	}
	if block == nil {
		return nil, apperror.ErrNotFound("block")
	}
	return block, nil
}

// DeleteBlock removes a block that no entry references.
func (s *MiningServiceImpl) DeleteBlock(ctx context.Context, caller ports.Principal, id uuid.UUID) error {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	block, err := s.blockRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return storeError("lock block", err)
	}
	if block == nil {
		return apperror.ErrNotFound("block")
	}

	if err := s.blockRepo.Delete(ctx, dbTx, id); err != nil {
		if errors.Is(err, domain.ErrReferenced) {
			return apperror.Conflict("block is referenced by confirmed transactions")
		}
		return storeError("delete block", err)
	}

	s.audit.Record(ctx, dbTx, &caller.UserID, domain.AuditActionBlockDelete, map[string]any{
		"block_id": block.ID.String(),
		"height":   block.Height,
	})

	if err := dbTx.Commit(ctx); err != nil {
		return storeError("commit tx", err)
	}

	s.log.Info().Str("block_id", id.String()).Int64("height", block.Height).Msg("block deleted")
	return nil
}

func (s *MiningServiceImpl) ListRewards(ctx context.Context, caller ports.Principal) ([]domain.MiningReward, error) {
	rewards, err := s.rewardRepo.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, storeError("list mining rewards", err)
	}
	return rewards, nil
}
