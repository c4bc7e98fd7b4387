package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type walletService struct {
	walletRepo ports.WalletRepository
	balances   ports.BalanceCalculator
	transactor ports.DBTransactor
	audit      ports.AuditRecorder
	log        zerolog.Logger
}

// NewWalletService creates the wallet manager. Every operation is scoped to
// the caller's own wallets.
func NewWalletService(
	walletRepo ports.WalletRepository,
	balances ports.BalanceCalculator,
	transactor ports.DBTransactor,
	audit ports.AuditRecorder,
	log zerolog.Logger,
) ports.WalletService {
	return &walletService{
		walletRepo: walletRepo,
		balances:   balances,
		transactor: transactor,
		audit:      audit,
		log:        log,
	}
}

// Create adds a wallet with a fresh demo keypair. An empty name defaults to
// the caller's username.
func (s *walletService) Create(ctx context.Context, caller ports.Principal, name string) (*domain.Wallet, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = caller.Username
	}
	if err := domain.ValidateWalletName(name); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	wallet, err := newWallet(caller.UserID, name, time.Now().UTC())
	if err != nil {
		return nil, err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := insertWallet(ctx, s.walletRepo, dbTx, wallet); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, dbTx, &caller.UserID, domain.AuditActionWalletCreate, map[string]any{
		"wallet_id": wallet.ID.String(),
		"name":      wallet.Name,
	})

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeError("commit tx", err)
	}

	s.log.Info().Str("wallet_id", wallet.ID.String()).Str("user_id", caller.UserID.String()).Msg("wallet created")
	return wallet, nil
}

func (s *walletService) List(ctx context.Context, caller ports.Principal) ([]domain.Wallet, error) {
	wallets, err := s.walletRepo.ListByUser(ctx, caller.UserID)
	if err != nil {
		return nil, storeError("list wallets", err)
	}
	return wallets, nil
}

// Get returns the wallet if the caller owns it. Foreign wallets are reported
// as missing.
func (s *walletService) Get(ctx context.Context, caller ports.Principal, id uuid.UUID) (*domain.Wallet, error) {
	w, err := s.walletRepo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get wallet", err)
	}
	if w == nil || !w.OwnedBy(caller.UserID) {
		return nil, apperror.ErrNotFound("wallet")
	}
	return w, nil
}

// Delete removes a wallet that no ledger entry references.
func (s *walletService) Delete(ctx context.Context, caller ports.Principal, id uuid.UUID) error {
	w, err := s.Get(ctx, caller, id)
	if err != nil {
		return err
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.walletRepo.Delete(ctx, dbTx, w.ID); err != nil {
		if errors.Is(err, domain.ErrReferenced) {
			return apperror.Conflict("wallet has ledger entries and cannot be deleted")
		}
		return storeError("delete wallet", err)
	}
	s.audit.Record(ctx, dbTx, &caller.UserID, domain.AuditActionWalletDelete, map[string]any{
		"wallet_id": w.ID.String(),
		"name":      w.Name,
	})

	if err := dbTx.Commit(ctx); err != nil {
		return storeError("commit tx", err)
	}

	s.log.Info().Str("wallet_id", w.ID.String()).Str("user_id", caller.UserID.String()).Msg("wallet deleted")
	return nil
}

func (s *walletService) Balance(ctx context.Context, caller ports.Principal, id uuid.UUID, currency string) (decimal.Decimal, error) {
	c, err := domain.ParseCurrency(currency)
	if err != nil {
		return decimal.Zero, apperror.Validation(err.Error())
	}
	if _, err := s.Get(ctx, caller, id); err != nil {
		return decimal.Zero, err
	}
	return s.balances.AvailableBalance(ctx, id, c)
}

func (s *walletService) Balances(ctx context.Context, caller ports.Principal, id uuid.UUID) (map[domain.Currency]decimal.Decimal, error) {
	if _, err := s.Get(ctx, caller, id); err != nil {
		return nil, err
	}
	return s.balances.Balances(ctx, id)
}
