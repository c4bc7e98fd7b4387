package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerSettings carries the configurable ledger knobs.
type LedgerSettings struct {
	MarketFee      decimal.Decimal
	IdempotencyTTL time.Duration
}

// LedgerServiceImpl implements ports.LedgerService.
type LedgerServiceImpl struct {
	ledgerRepo ports.LedgerRepository
	walletRepo ports.WalletRepository
	userRepo   ports.UserRepository
	blockRepo  ports.BlockRepository
	idempRepo  ports.IdempotencyRepository
	idempCache ports.IdempotencyCache
	transactor ports.DBTransactor
	poster     ports.LedgerPoster
	audit      ports.AuditRecorder
	metrics    ports.LedgerMetrics
	settings   LedgerSettings
	log        zerolog.Logger
}

// NewLedgerService creates a new LedgerServiceImpl.
func NewLedgerService(
	ledgerRepo ports.LedgerRepository,
	walletRepo ports.WalletRepository,
	userRepo ports.UserRepository,
	blockRepo ports.BlockRepository,
	idempRepo ports.IdempotencyRepository,
	idempCache ports.IdempotencyCache,
	transactor ports.DBTransactor,
	poster ports.LedgerPoster,
	audit ports.AuditRecorder,
	metrics ports.LedgerMetrics,
	settings LedgerSettings,
	log zerolog.Logger,
) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		ledgerRepo: ledgerRepo,
		walletRepo: walletRepo,
		userRepo:   userRepo,
		blockRepo:  blockRepo,
		idempRepo:  idempRepo,
		idempCache: idempCache,
		transactor: transactor,
		poster:     poster,
		audit:      audit,
		metrics:    metrics,
		settings:   settings,
		log:        log,
	}
}

// Transfer creates a PENDING entry from one of the caller's wallets. With an
// idempotency key, a replay returns the entry created by the first request.
func (s *LedgerServiceImpl) Transfer(ctx context.Context, req ports.TransferRequest) (*domain.LedgerEntry, error) {
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}

	var idempKey string
	if req.IdempotencyKey != "" {
		idempKey = domain.BuildIdempotencyKey(req.Caller.UserID, req.IdempotencyKey)
		if entry, err := s.replay(ctx, idempKey); entry != nil || err != nil {
			return entry, err
		}
	}

	from, err := s.ownedWallet(ctx, req.Caller, req.FromWalletID)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	to, err := s.destination(ctx, dbTx, req)
	if err != nil {
		return nil, err
	}

	entry, err := s.poster.Post(ctx, dbTx, domain.EntryDraft{
		FromWalletID: from.ID,
		ToWalletID:   to.ID,
		Amount:       req.Amount,
		Fee:          req.Fee,
		Currency:     currency,
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, dbTx, &req.Caller.UserID, domain.AuditActionTxSend, entryPayload(entry))

	var respJSON []byte
	if idempKey != "" {
		respJSON, err = json.Marshal(entry)
		if err != nil {
			return nil, apperror.InternalError(fmt.Errorf("marshal response: %w", err))
		}
		err = s.idempRepo.Create(ctx, dbTx, &domain.IdempotencyLog{
			Key:          idempKey,
			EntryID:      entry.ID,
			ResponseJSON: respJSON,
			CreatedAt:    entry.CreatedAt,
		})
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, apperror.Conflict("a request with this idempotency key is already in progress")
		}
		if err != nil {
			return nil, storeError("save idempotency log", err)
		}
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeError("commit tx", err)
	}

	if idempKey != "" {
		if err := s.idempCache.Set(ctx, idempKey, respJSON, s.settings.IdempotencyTTL); err != nil {
			s.log.Warn().Err(err).Str("key", idempKey).Msg("failed to cache idempotency in redis")
		}
	}
	s.metrics.EntryRecorded(entry.Status, entry.Currency)

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("user_id", req.Caller.UserID.String()).
		Str("amount", entry.Amount.StringFixed(domain.AmountScale)).
		Str("currency", string(entry.Currency)).
		Msg("transfer created")

	return entry, nil
}

// replay returns the stored entry for key, checking redis before the DB.
// Both miss: (nil, nil).
func (s *LedgerServiceImpl) replay(ctx context.Context, key string) (*domain.LedgerEntry, error) {
	cached, err := s.idempCache.Get(ctx, key)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("redis idempotency check failed, falling through to DB")
	}
	if cached != nil {
		return unmarshalEntry(cached)
	}

	stored, err := s.idempRepo.Get(ctx, key)
	if err != nil {
		return nil, storeError("db idempotency check", err)
	}
	if stored == nil {
		return nil, nil
	}
	return unmarshalEntry(stored.ResponseJSON)
}

func unmarshalEntry(data []byte) (*domain.LedgerEntry, error) {
	var entry domain.LedgerEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, apperror.InternalError(fmt.Errorf("unmarshal cached entry: %w", err))
	}
	return &entry, nil
}

// destination resolves the receiving wallet: an explicit wallet id, or the
// default wallet of the named user.
func (s *LedgerServiceImpl) destination(ctx context.Context, tx pgx.Tx, req ports.TransferRequest) (*domain.Wallet, error) {
	if req.ToWalletID != nil {
		w, err := s.walletRepo.GetByID(ctx, *req.ToWalletID)
		if err != nil {
			return nil, storeError("find destination wallet", err)
		}
		if w == nil {
			return nil, apperror.ErrNotFound("destination wallet")
		}
		return w, nil
	}

	if req.ToUsername == "" {
		return nil, apperror.Validation("to_wallet_id or to_username is required")
	}
	user, err := s.userRepo.GetByUsernameTx(ctx, tx, req.ToUsername)
	if err != nil {
		return nil, storeError("find recipient", err)
	}
	if user == nil {
		return nil, apperror.ErrNotFound("user")
	}
	w, err := s.walletRepo.GetDefault(ctx, tx, user.ID)
	if err != nil {
		return nil, storeError("find default wallet", err)
	}
	if w == nil {
		return nil, apperror.ErrNotFound("destination wallet")
	}
	return w, nil
}

// ownedWallet loads id and requires the caller to own it.
func (s *LedgerServiceImpl) ownedWallet(ctx context.Context, caller ports.Principal, id uuid.UUID) (*domain.Wallet, error) {
	w, err := s.walletRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("find wallet", err)
	}
	if w == nil {
		return nil, apperror.ErrNotFound("wallet")
	}
	if !w.OwnedBy(caller.UserID) {
		return nil, apperror.Forbidden("wallet is not owned by the caller")
	}
	return w, nil
}

// Confirm settles a PENDING entry into blockID.
func (s *LedgerServiceImpl) Confirm(ctx context.Context, caller ports.Principal, id uuid.UUID, blockID *uuid.UUID) (*domain.LedgerEntry, error) {
	if blockID == nil {
		return nil, apperror.Validation("block_id is required to confirm a transaction")
	}
	return s.transition(ctx, caller, id, domain.EntryStatusConfirmed, blockID)
}

// Fail marks a PENDING entry FAILED, releasing its reservation.
func (s *LedgerServiceImpl) Fail(ctx context.Context, caller ports.Principal, id uuid.UUID) (*domain.LedgerEntry, error) {
	return s.transition(ctx, caller, id, domain.EntryStatusFailed, nil)
}

func (s *LedgerServiceImpl) transition(ctx context.Context, caller ports.Principal, id uuid.UUID, status domain.EntryStatus, blockID *uuid.UUID) (*domain.LedgerEntry, error) {
	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	entry, err := s.ledgerRepo.GetByIDForUpdate(ctx, dbTx, id)
	if err != nil {
		return nil, storeError("lock ledger entry", err)
	}
	if entry == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	if ok, err := s.canSee(ctx, caller, entry); err != nil {
		return nil, err
	} else if !ok {
		return nil, apperror.ErrNotFound("transaction")
	}
	if entry.IsTerminal() {
		return nil, apperror.Conflict(fmt.Sprintf("transaction is already %s", entry.Status))
	}

	if blockID != nil {
		block, err := s.blockRepo.GetByID(ctx, *blockID)
		if err != nil {
			return nil, storeError("find block", err)
		}
		if block == nil {
			return nil, apperror.ErrNotFound("block")
		}
	}

	if err := s.ledgerRepo.UpdateStatus(ctx, dbTx, entry.ID, status, blockID); err != nil {
		if errors.Is(err, domain.ErrReferenced) {
			return nil, apperror.ErrNotFound("block")
		}
		return nil, storeError("update ledger entry", err)
	}
	entry.Status = status
	entry.BlockID = blockID

	action := domain.AuditActionTxFail
	payload := map[string]any{"entry_id": entry.ID.String()}
	if status == domain.EntryStatusConfirmed {
		action = domain.AuditActionTxConfirm
		payload["block_id"] = blockID.String()
	}
	s.audit.Record(ctx, dbTx, &caller.UserID, action, payload)

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeError("commit tx", err)
	}
	s.metrics.EntryRecorded(entry.Status, entry.Currency)

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("status", string(status)).
		Str("user_id", caller.UserID.String()).
		Msg("transaction settled")

	return entry, nil
}

// canSee reports whether caller is staff or owns either side of entry.
func (s *LedgerServiceImpl) canSee(ctx context.Context, caller ports.Principal, entry *domain.LedgerEntry) (bool, error) {
	if caller.IsStaff {
		return true, nil
	}
	for _, walletID := range []uuid.UUID{entry.FromWalletID, entry.ToWalletID} {
		w, err := s.walletRepo.GetByID(ctx, walletID)
		if err != nil {
			return false, storeError("find wallet", err)
		}
		if w != nil && w.OwnedBy(caller.UserID) {
			return true, nil
		}
	}
	return false, nil
}

// Get returns an entry visible to caller.
func (s *LedgerServiceImpl) Get(ctx context.Context, caller ports.Principal, id uuid.UUID) (*domain.LedgerEntry, error) {
	entry, err := s.ledgerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get ledger entry", err)
	}
	if entry == nil {
		return nil, apperror.ErrNotFound("transaction")
	}
	ok, err := s.canSee(ctx, caller, entry)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperror.ErrNotFound("transaction")
	}
	return entry, nil
}

// List returns a page of entries touching the owner's wallets.
func (s *LedgerServiceImpl) List(ctx context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)
	entries, total, err := s.ledgerRepo.List(ctx, params)
	if err != nil {
		return nil, 0, storeError("list ledger entries", err)
	}
	return entries, total, nil
}

// Buy credits the caller's wallet from the market wallet.
func (s *LedgerServiceImpl) Buy(ctx context.Context, order ports.MarketOrder) (*domain.LedgerEntry, error) {
	return s.marketOrder(ctx, order, domain.AuditActionTradeBuy)
}

// Sell debits the caller's wallet into the market wallet.
func (s *LedgerServiceImpl) Sell(ctx context.Context, order ports.MarketOrder) (*domain.LedgerEntry, error) {
	return s.marketOrder(ctx, order, domain.AuditActionTradeSell)
}

func (s *LedgerServiceImpl) marketOrder(ctx context.Context, order ports.MarketOrder, action domain.AuditAction) (*domain.LedgerEntry, error) {
	currency, err := domain.ParseCurrency(order.Currency)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	method, err := domain.ParsePayMethod(order.Method)
	if err != nil {
		return nil, apperror.Validation(err.Error())
	}
	fee := s.settings.MarketFee
	if order.Fee != nil {
		fee = *order.Fee
	}

	wallet, err := s.ownedWallet(ctx, order.Caller, order.WalletID)
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	market, err := s.poster.MarketWallet(ctx, dbTx)
	if err != nil {
		return nil, err
	}

	draft := domain.EntryDraft{
		FromWalletID: market.ID,
		ToWalletID:   wallet.ID,
		Amount:       order.Amount,
		Fee:          fee,
		Currency:     currency,
	}
	if action == domain.AuditActionTradeSell {
		draft.FromWalletID, draft.ToWalletID = wallet.ID, market.ID
	}

	entry, err := s.poster.Post(ctx, dbTx, draft)
	if err != nil {
		return nil, err
	}

	payload := entryPayload(entry)
	payload["method"] = string(method)
	payload["reference"] = order.Reference
	s.audit.Record(ctx, dbTx, &order.Caller.UserID, action, payload)

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeError("commit tx", err)
	}
	s.metrics.EntryRecorded(entry.Status, entry.Currency)

	s.log.Info().
		Str("entry_id", entry.ID.String()).
		Str("action", string(action)).
		Str("method", string(method)).
		Msg("market order placed")

	return entry, nil
}

func entryPayload(e *domain.LedgerEntry) map[string]any {
	return map[string]any{
		"entry_id": e.ID.String(),
		"from":     e.FromWalletID.String(),
		"to":       e.ToWalletID.String(),
		"amount":   e.Amount.StringFixed(domain.AmountScale),
		"fee":      e.Fee.StringFixed(domain.AmountScale),
		"currency": string(e.Currency),
		"tx_hash":  e.TxHash,
	}
}
