package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// WelcomeCredit is the CONFIRMED grant every new user receives from the
// market wallet. A zero amount disables it.
type WelcomeCredit struct {
	Amount   decimal.Decimal
	Currency domain.Currency
}

// AuthServiceImpl implements ports.AuthService.
type AuthServiceImpl struct {
	userRepo   ports.UserRepository
	walletRepo ports.WalletRepository
	transactor ports.DBTransactor
	poster     ports.LedgerPoster
	hashSvc    ports.HashService
	tokenSvc   ports.TokenService
	audit      ports.AuditRecorder
	metrics    ports.LedgerMetrics
	welcome    WelcomeCredit
	log        zerolog.Logger
}

// NewAuthService creates a new AuthServiceImpl.
func NewAuthService(
	userRepo ports.UserRepository,
	walletRepo ports.WalletRepository,
	transactor ports.DBTransactor,
	poster ports.LedgerPoster,
	hashSvc ports.HashService,
	tokenSvc ports.TokenService,
	audit ports.AuditRecorder,
	metrics ports.LedgerMetrics,
	welcome WelcomeCredit,
	log zerolog.Logger,
) *AuthServiceImpl {
	return &AuthServiceImpl{
		userRepo:   userRepo,
		walletRepo: walletRepo,
		transactor: transactor,
		poster:     poster,
		hashSvc:    hashSvc,
		tokenSvc:   tokenSvc,
		audit:      audit,
		metrics:    metrics,
		welcome:    welcome,
		log:        log,
	}
}

// Register creates the user, its default wallet and the welcome credit in a
// single transaction.
func (s *AuthServiceImpl) Register(ctx context.Context, req ports.RegisterRequest) (*ports.RegisterResponse, error) {
	username := strings.TrimSpace(req.Username)
	if err := domain.ValidateUsername(username); err != nil {
		return nil, apperror.Validation(err.Error())
	}
	if err := domain.ValidatePassword(req.Password); err != nil {
		return nil, apperror.Validation(err.Error())
	}

	existing, err := s.userRepo.GetByUsername(ctx, username)
	if err != nil {
		return nil, storeError("check username", err)
	}
	if existing != nil {
		return nil, apperror.ErrUsernameExists()
	}

	passwordHash, err := s.hashSvc.Hash(req.Password)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("hash password: %w", err))
	}

	now := time.Now().UTC()
	user := &domain.User{
		ID:           uuid.New(),
		Username:     username,
		Email:        strings.TrimSpace(req.Email),
		PasswordHash: passwordHash,
		CreatedAt:    now,
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, storeError("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	if err := s.userRepo.Create(ctx, dbTx, user); err != nil {
		// Lost the race against a concurrent registration.
		if errors.Is(err, domain.ErrDuplicateKey) {
			return nil, apperror.ErrUsernameExists()
		}
		return nil, storeError("create user", err)
	}

	wallet, err := newWallet(user.ID, domain.DefaultWalletName, now)
	if err != nil {
		return nil, err
	}
	if err := insertWallet(ctx, s.walletRepo, dbTx, wallet); err != nil {
		return nil, err
	}
	s.audit.Record(ctx, dbTx, &user.ID, domain.AuditActionWalletCreate, map[string]any{
		"wallet_id": wallet.ID.String(),
		"name":      wallet.Name,
	})

	resp := &ports.RegisterResponse{
		UserID:   user.ID,
		Username: user.Username,
		WalletID: wallet.ID,
	}

	var welcome *domain.LedgerEntry
	if s.welcome.Amount.IsPositive() {
		market, err := s.poster.MarketWallet(ctx, dbTx)
		if err != nil {
			return nil, err
		}
		welcome, err = s.poster.Post(ctx, dbTx, domain.EntryDraft{
			FromWalletID: market.ID,
			ToWalletID:   wallet.ID,
			Amount:       s.welcome.Amount,
			Fee:          decimal.Zero,
			Currency:     s.welcome.Currency,
			Status:       domain.EntryStatusConfirmed,
		})
		if err != nil {
			return nil, err
		}
		resp.WelcomeEntryID = welcome.ID
		s.audit.Record(ctx, dbTx, &user.ID, domain.AuditActionWelcomeCredit, map[string]any{
			"user_id":  user.ID.String(),
			"entry_id": welcome.ID.String(),
			"amount":   welcome.Amount.StringFixed(domain.AmountScale),
			"currency": string(welcome.Currency),
		})
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, storeError("commit tx", err)
	}
	if welcome != nil {
		s.metrics.EntryRecorded(welcome.Status, welcome.Currency)
	}

	s.log.Info().
		Str("user_id", user.ID.String()).
		Str("username", user.Username).
		Str("wallet_id", wallet.ID.String()).
		Msg("user registered")

	return resp, nil
}

// Login checks credentials and issues a token pair. Unknown users and wrong
// passwords are indistinguishable to the caller.
func (s *AuthServiceImpl) Login(ctx context.Context, username, password string) (*ports.TokenPair, error) {
	user, err := s.userRepo.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return nil, storeError("find user", err)
	}
	if user == nil {
		return nil, apperror.ErrInvalidCredentials()
	}

	ok, err := s.hashSvc.Verify(password, user.PasswordHash)
	if err != nil {
		s.log.Warn().Err(err).Str("user_id", user.ID.String()).Msg("stored password hash is unreadable")
		return nil, apperror.ErrInvalidCredentials()
	}
	if !ok {
		return nil, apperror.ErrInvalidCredentials()
	}

	pair, err := s.tokenSvc.Generate(user)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}

	s.audit.Record(ctx, nil, &user.ID, domain.AuditActionUserLogin, map[string]any{"username": user.Username})
	s.log.Info().Str("user_id", user.ID.String()).Msg("user logged in")
	return pair, nil
}

// Refresh exchanges a valid refresh token for a new pair.
func (s *AuthServiceImpl) Refresh(ctx context.Context, refreshToken string) (*ports.TokenPair, error) {
	principal, err := s.tokenSvc.Validate(refreshToken, ports.TokenKindRefresh)
	if err != nil {
		return nil, apperror.ErrInvalidToken()
	}

	user, err := s.userRepo.GetByID(ctx, principal.UserID)
	if err != nil {
		return nil, storeError("find user", err)
	}
	if user == nil {
		return nil, apperror.ErrInvalidToken()
	}

	pair, err := s.tokenSvc.Generate(user)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("generate token: %w", err))
	}
	return pair, nil
}
