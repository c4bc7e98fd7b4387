package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

// tradeTokenBytes yields a 48-character hex token.
const tradeTokenBytes = 24

// TradeServiceImpl implements ports.TradeService.
type TradeServiceImpl struct {
	tradeRepo  ports.TradeRequestRepository
	userRepo   ports.UserRepository
	walletRepo ports.WalletRepository
	transactor ports.DBTransactor
	poster     ports.LedgerPoster
	audit      ports.AuditRecorder
	metrics    ports.LedgerMetrics
	log        zerolog.Logger
}

// NewTradeService creates a new TradeServiceImpl.
func NewTradeService(
	tradeRepo ports.TradeRequestRepository,
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	transactor ports.DBTransactor,
	poster ports.LedgerPoster,
	audit ports.AuditRecorder,
	metrics ports.LedgerMetrics,
	log zerolog.Logger,
) *TradeServiceImpl {
	return &TradeServiceImpl{
		tradeRepo:  tradeRepo,
		userRepo:   userRepo,
		walletRepo: walletRepo,
		transactor: transactor,
		poster:     poster,
		audit:      audit,
		metrics:    metrics,
		log:        log,
	}
}

// Create opens a PENDING trade request addressed to the counterparty.
func (s *TradeServiceImpl) Create(ctx context.Context, req ports.CreateTradeRequest) (*domain.TradeRequest, error) {
	side, err := domain.ParseTradeSide(req.Side)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	switch {
	case !req.Amount.IsPositive():
		return nil, apperror.Validation("amount must be greater than zero")
	case req.Fee.IsNegative():
		return nil, apperror.Validation("fee cannot be negative")
	case !domain.HasScale(req.Amount, domain.AmountScale) || !domain.HasScale(req.Fee, domain.AmountScale):
		return nil, apperror.Validation("amount and fee allow at most 2 decimal places")
	case !domain.WithinLimit(req.Amount, domain.AmountScale) || !domain.WithinLimit(req.Fee, domain.AmountScale):
		return nil, apperror.Validation("amount and fee cannot exceed " + domain.MaxAmount.StringFixed(domain.AmountScale))
	}

	counterparty, err := s.counterparty(ctx, req)
	if err != nil {
		return nil, err
	}
	if counterparty.ID == req.Caller.UserID {
		return nil, apperror.Validation("cannot create a trade request with yourself")
	}

	token, err := randomHex(tradeTokenBytes)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate trade token: %w", err))
	}

	tr := &domain.TradeRequest{
		ID:             uuid.New(),
		RequesterID:    req.Caller.UserID,
		CounterpartyID: counterparty.ID,
		Side:           side,
		Amount:         req.Amount,
		Fee:            req.Fee,
		Currency:       currency,
		Token:          token,
		Status:         domain.TradeStatusPending,
		CreatedAt:      time.Now().UTC(),
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.tradeRepo.Create(ctx, dbTx, tr); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, apperror.Integrity(fmt.Errorf("trade token collision: %w", err))
		}
		return nil, storeError("create trade request", err)
	}
	s.audit.Record(ctx, dbTx, &req.Caller.UserID, domain.AuditActionTradeRequestCreate, map[string]any{
		"request_id":      tr.ID.String(),
		"counterparty_id": tr.CounterpartyID.String(),
		"side":            string(tr.Side),
		"amount":          tr.Amount.StringFixed(domain.AmountScale),
		"currency":        string(tr.Currency),
	})

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeError("commit tx", err)
	}

	s.log.Info().
		Str("request_id", tr.ID.String()).
		Str("requester_id", tr.RequesterID.String()).
		Str("counterparty_id", tr.CounterpartyID.String()).
		Msg("trade request created")

	return tr, nil
}

func (s *TradeServiceImpl) counterparty(ctx context.Context, req ports.CreateTradeRequest) (*domain.User, error) {
	var (
		user *domain.User
		err  error
	)
	switch {
	case req.CounterpartyID != nil:
		user, err = s.userRepo.GetByID(ctx, *req.CounterpartyID)
	case req.CounterpartyUsername != "":
		user, err = s.userRepo.GetByUsername(ctx, req.CounterpartyUsername)
	default:
		return nil, apperror.Validation("counterparty_id or counterparty_username is required")
	}
	if err != nil {
		return nil, storeError("find counterparty", err)
	}
	if user == nil {
		return nil, apperror.ErrNotFound("counterparty")
	}
	return user, nil
}

// Approve settles a PENDING request into a ledger entry between the two
// parties' default wallets. Only the counterparty may approve.
func (s *TradeServiceImpl) Approve(ctx context.Context, caller ports.Principal, id uuid.UUID) (*ports.TradeApproval, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	tr, err := s.lockPending(ctx, dbTx, caller, id, true)
	if err != nil {
		return nil, err
	}

	requesterWallet, err := s.defaultWallet(ctx, dbTx, tr.RequesterID, "requester")
	if err != nil {
		return nil, err
	}
	counterpartyWallet, err := s.defaultWallet(ctx, dbTx, tr.CounterpartyID, "counterparty")
	if err != nil {
		return nil, err
	}

	from, to := tr.Flow(requesterWallet.ID, counterpartyWallet.ID)
	entry, err := s.poster.Post(ctx, dbTx, domain.EntryDraft{
		FromWalletID: from,
		ToWalletID:   to,
		Amount:       tr.Amount,
		Fee:          tr.Fee,
		Currency:     tr.Currency,
	})
	if err != nil {
		return nil, err
	}

	if err := s.tradeRepo.UpdateStatus(ctx, dbTx, tr.ID, domain.TradeStatusApproved); err != nil {
		return nil, storeError("update trade request", err)
	}
	tr.Status = domain.TradeStatusApproved

	s.audit.Record(ctx, dbTx, &caller.UserID, domain.AuditActionTradeApprove, map[string]any{
		"request_id": tr.ID.String(),
		"entry_id":   entry.ID.String(),
	})

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeError("commit tx", err)
	}
	s.metrics.TradeDecided(tr.Status)
	s.metrics.EntryRecorded(entry.Status, entry.Currency)

	s.log.Info().
		Str("request_id", tr.ID.String()).
		Str("entry_id", entry.ID.String()).
		Msg("trade request approved")

	return &ports.TradeApproval{Request: tr, Entry: entry}, nil
}

// Reject closes a PENDING request on behalf of the counterparty.
func (s *TradeServiceImpl) Reject(ctx context.Context, caller ports.Principal, id uuid.UUID) (*domain.TradeRequest, error) {
	return s.close(ctx, caller, id, domain.TradeStatusRejected)
}

// Cancel withdraws a PENDING request on behalf of the requester.
func (s *TradeServiceImpl) Cancel(ctx context.Context, caller ports.Principal, id uuid.UUID) (*domain.TradeRequest, error) {
	return s.close(ctx, caller, id, domain.TradeStatusCancelled)
}

func (s *TradeServiceImpl) close(ctx context.Context, caller ports.Principal, id uuid.UUID, status domain.TradeStatus) (*domain.TradeRequest, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	tr, err := s.lockPending(ctx, dbTx, caller, id, status == domain.TradeStatusRejected)
	if err != nil {
		return nil, err
	}

	if err := s.tradeRepo.UpdateStatus(ctx, dbTx, tr.ID, status); err != nil {
		return nil, storeError("update trade request", err)
	}
	tr.Status = status

	action := domain.AuditActionTradeReject
	if status == domain.TradeStatusCancelled {
		action = domain.AuditActionTradeCancel
	}
	s.audit.Record(ctx, dbTx, &caller.UserID, action, map[string]any{"request_id": tr.ID.String()})

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeError("commit tx", err)
	}
	s.metrics.TradeDecided(status)

	s.log.Info().Str("request_id", tr.ID.String()).Str("status", string(status)).Msg("trade request closed")
	return tr, nil
}

// lockPending loads the request FOR UPDATE and checks that caller is the
// acting party and the request is still PENDING. Non-parties see NotFound.
func (s *TradeServiceImpl) lockPending(ctx context.Context, tx pgx.Tx, caller ports.Principal, id uuid.UUID, byCounterparty bool) (*domain.TradeRequest, error) {
	tr, err := s.tradeRepo.GetByIDForUpdate(ctx, tx, id)
	if err != nil {
		return nil, storeError("lock trade request", err)
	}
	if tr == nil || !tr.Involves(caller.UserID) {
		return nil, apperror.ErrNotFound("trade request")
	}
	if byCounterparty && tr.CounterpartyID != caller.UserID {
		return nil, apperror.Forbidden("only the counterparty can decide this request")
	}
	if !byCounterparty && tr.RequesterID != caller.UserID {
		return nil, apperror.Forbidden("only the requester can cancel this request")
	}
	if !tr.IsPending() {
		return nil, apperror.Conflict(fmt.Sprintf("trade request is already %s", tr.Status))
	}
	return tr, nil
}

func (s *TradeServiceImpl) defaultWallet(ctx context.Context, tx pgx.Tx, userID uuid.UUID, party string) (*domain.Wallet, error) {
	w, err := s.walletRepo.GetDefault(ctx, tx, userID)
	if err != nil {
		return nil, storeError("find "+party+" wallet", err)
	}
	if w == nil {
		return nil, apperror.Validation(party + " has no wallet to settle into")
	}
	return w, nil
}

// Get returns a request visible to either party.
func (s *TradeServiceImpl) Get(ctx context.Context, caller ports.Principal, id uuid.UUID) (*domain.TradeRequest, error) {
	tr, err := s.tradeRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get trade request", err)
	}
	if tr == nil || !tr.Involves(caller.UserID) {
		return nil, apperror.ErrNotFound("trade request")
	}
	return tr, nil
}

func (s *TradeServiceImpl) List(ctx context.Context, params ports.TradeListParams) ([]domain.TradeRequest, error) {
	if params.Scope == "" {
		params.Scope = domain.TradeScopeAll
	}
	requests, err := s.tradeRepo.List(ctx, params)
	if err != nil {
		return nil, storeError("list trade requests", err)
	}
	return requests, nil
}
