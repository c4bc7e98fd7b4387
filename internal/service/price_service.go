package service

import (
	"context"
	"time"

	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const (
	defaultPriceLimit = 50
	maxPriceLimit     = 500
)

type priceService struct {
	repo     ports.PriceTickRepository
	cache    ports.PriceCache
	audit    ports.AuditRecorder
	cacheTTL time.Duration
	log      zerolog.Logger
}

// NewPriceService creates the price feed. The latest tick is served
// cache-aside from redis; any write invalidates it.
func NewPriceService(
	repo ports.PriceTickRepository,
	cache ports.PriceCache,
	audit ports.AuditRecorder,
	cacheTTL time.Duration,
	log zerolog.Logger,
) ports.PriceService {
	return &priceService{repo: repo, cache: cache, audit: audit, cacheTTL: cacheTTL, log: log}
}

func (s *priceService) List(ctx context.Context, limit int) ([]domain.PriceTick, error) {
	if limit < 1 {
		limit = defaultPriceLimit
	}
	if limit > maxPriceLimit {
		limit = maxPriceLimit
	}
	ticks, err := s.repo.List(ctx, limit)
	if err != nil {
		return nil, storeError("list price ticks", err)
	}
	return ticks, nil
}

func (s *priceService) Get(ctx context.Context, id uuid.UUID) (*domain.PriceTick, error) {
	tick, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get price tick", err)
	}
	if tick == nil {
		return nil, apperror.ErrNotFound("price tick")
	}
	return tick, nil
}

// Latest returns the newest tick. Redis failures degrade to a DB read.
func (s *priceService) Latest(ctx context.Context) (*domain.PriceTick, error) {
	cached, err := s.cache.GetLatest(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("price cache read failed, falling through to DB")
	}
	if cached != nil {
		return cached, nil
	}

	tick, err := s.repo.Latest(ctx)
	if err != nil {
		return nil, storeError("latest price tick", err)
	}
	if tick == nil {
		return nil, apperror.ErrNotFound("price tick")
	}

	if err := s.cache.SetLatest(ctx, tick, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Msg("failed to cache latest price")
	}
	return tick, nil
}

func (s *priceService) Create(ctx context.Context, caller ports.Principal, tick *domain.PriceTick) (*domain.PriceTick, error) {
	if err := tick.Validate(); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	now := time.Now().UTC()
	tick.ID = uuid.New()
	if tick.TS.IsZero() {
		tick.TS = now
	}
	tick.CreatedAt = now

	if err := s.repo.Create(ctx, tick); err != nil {
		return nil, storeError("create price tick", err)
	}
	s.afterWrite(ctx, caller, domain.AuditActionPriceCreate, tick.ID)
	return tick, nil
}

func (s *priceService) Update(ctx context.Context, caller ports.Principal, tick *domain.PriceTick) (*domain.PriceTick, error) {
	if err := tick.Validate(); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if tick.TS.IsZero() {
		tick.TS = time.Now().UTC()
	}

	found, err := s.repo.Update(ctx, tick)
	if err != nil {
		return nil, storeError("update price tick", err)
	}
	if !found {
		return nil, apperror.ErrNotFound("price tick")
	}
	s.afterWrite(ctx, caller, domain.AuditActionPriceUpdate, tick.ID)
	return tick, nil
}

func (s *priceService) Delete(ctx context.Context, caller ports.Principal, id uuid.UUID) error {
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return storeError("delete price tick", err)
	}
	if !found {
		return apperror.ErrNotFound("price tick")
	}
	s.afterWrite(ctx, caller, domain.AuditActionPriceDelete, id)
	return nil
}

// afterWrite drops the cached latest tick and audits the change outside any
// transaction.
func (s *priceService) afterWrite(ctx context.Context, caller ports.Principal, action domain.AuditAction, id uuid.UUID) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to invalidate latest price cache")
	}
	s.audit.Record(ctx, nil, &caller.UserID, action, map[string]any{"price_id": id.String()})
	s.log.Info().Str("price_id", id.String()).Str("action", string(action)).Msg("price feed updated")
}
