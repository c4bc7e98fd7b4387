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

// marketPasswordHash can never match an Argon2id encoding, so the market
// account cannot log in.
const marketPasswordHash = "!"

type ledgerPoster struct {
	ledgerRepo ports.LedgerRepository
	walletRepo ports.WalletRepository
	userRepo   ports.UserRepository
	locker     ports.Locker
	audit      ports.AuditRecorder
	log        zerolog.Logger
}

// NewLedgerPoster creates the shared entry writer.
func NewLedgerPoster(
	ledgerRepo ports.LedgerRepository,
	walletRepo ports.WalletRepository,
	userRepo ports.UserRepository,
	locker ports.Locker,
	audit ports.AuditRecorder,
	log zerolog.Logger,
) ports.LedgerPoster {
	return &ledgerPoster{
		ledgerRepo: ledgerRepo,
		walletRepo: walletRepo,
		userRepo:   userRepo,
		locker:     locker,
		audit:      audit,
		log:        log,
	}
}

// Post validates draft, salts and hashes it, and inserts the entry in tx.
// No balance check happens here; overdraft is allowed.
func (p *ledgerPoster) Post(ctx context.Context, tx pgx.Tx, draft domain.EntryDraft) (*domain.LedgerEntry, error) {
	if draft.Status == "" {
		draft.Status = domain.EntryStatusPending
	}
	if err := draft.Validate(); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	salt, err := randomBytes(domain.SaltSize)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("read entry salt: %w", err))
	}

	entry := &domain.LedgerEntry{
		ID:           uuid.New(),
		FromWalletID: draft.FromWalletID,
		ToWalletID:   draft.ToWalletID,
		Amount:       draft.Amount,
		Fee:          draft.Fee,
		Currency:     draft.Currency,
		TxHash:       domain.EntryHash(draft.FromWalletID, draft.ToWalletID, draft.Amount, draft.Fee, salt),
		Status:       draft.Status,
		CreatedAt:    time.Now().UTC(),
	}

	if err := p.ledgerRepo.Create(ctx, tx, entry); err != nil {
		switch {
		case errors.Is(err, domain.ErrDuplicateKey):
			return nil, apperror.Integrity(fmt.Errorf("tx_hash collision: %w", err))
		case errors.Is(err, domain.ErrReferenced):
			return nil, apperror.ErrNotFound("wallet")
		}
		return nil, storeError("create ledger entry", err)
	}

	p.log.Debug().
		Str("entry_id", entry.ID.String()).
		Str("status", string(entry.Status)).
		Str("amount", entry.Amount.StringFixed(domain.AmountScale)).
		Str("currency", string(entry.Currency)).
		Msg("ledger entry posted")

	return entry, nil
}

// MarketWallet returns the exchange wallet, creating the market user and its
// wallet under an advisory lock the first time it is needed. The creation is
// audited with the market user as actor.
func (p *ledgerPoster) MarketWallet(ctx context.Context, tx pgx.Tx) (*domain.Wallet, error) {
	if err := p.locker.Lock(ctx, tx, ports.LockKeyMarketWallet); err != nil {
		return nil, storeError("lock market wallet", err)
	}

	market, err := p.userRepo.GetByUsernameTx(ctx, tx, domain.MarketUsername)
	if err != nil {
		return nil, storeError("find market user", err)
	}
	now := time.Now().UTC()
	if market == nil {
		market = &domain.User{
			ID:           uuid.New(),
			Username:     domain.MarketUsername,
			PasswordHash: marketPasswordHash,
			CreatedAt:    now,
		}
		if err := p.userRepo.Create(ctx, tx, market); err != nil {
			return nil, storeError("create market user", err)
		}
		p.log.Info().Str("user_id", market.ID.String()).Msg("market account created")
	}

	wallet, err := p.walletRepo.GetByUserAndName(ctx, tx, market.ID, domain.MarketWalletName)
	if err != nil {
		return nil, storeError("find market wallet", err)
	}
	if wallet != nil {
		return wallet, nil
	}

	wallet, err = newWallet(market.ID, domain.MarketWalletName, now)
	if err != nil {
		return nil, err
	}
	if err := insertWallet(ctx, p.walletRepo, tx, wallet); err != nil {
		return nil, err
	}
	p.audit.Record(ctx, tx, &market.ID, domain.AuditActionWalletCreate, map[string]any{
		"wallet_id": wallet.ID.String(),
		"name":      wallet.Name,
	})
	p.log.Info().Str("wallet_id", wallet.ID.String()).Msg("market wallet created")
	return wallet, nil
}

// insertWallet persists w. A pub_key collision is an integrity failure.
func insertWallet(ctx context.Context, repo ports.WalletRepository, tx pgx.Tx, w *domain.Wallet) error {
	if err := repo.Create(ctx, tx, w); err != nil {
		if errors.Is(err, domain.ErrDuplicateKey) {
			return apperror.Integrity(fmt.Errorf("pub_key collision: %w", err))
		}
		return storeError("create wallet", err)
	}
	return nil
}

// newWallet builds a wallet with a fresh demo keypair.
func newWallet(userID uuid.UUID, name string, now time.Time) (*domain.Wallet, error) {
	seed, err := randomBytes(domain.KeySeedSize)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("read key seed: %w", err))
	}
	pub, priv := domain.DeriveKeypair(seed)
	return &domain.Wallet{
		ID:         uuid.New(),
		UserID:     userID,
		Name:       name,
		PubKey:     pub,
		PrivKeyEnc: priv,
		CreatedAt:  now,
	}, nil
}
