package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"cryptosim/config"
	httpHandler "cryptosim/internal/adapter/http/handler"
	"cryptosim/internal/adapter/metrics"
	pgStorage "cryptosim/internal/adapter/storage/postgres"
	redisStorage "cryptosim/internal/adapter/storage/redis"
	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/internal/service"
	"cryptosim/pkg/logger"

	"github.com/spf13/cobra"
)

var skipMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return serve(cmd.Context(), cfg)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "do not apply pending migrations on startup")
}

func serve(parent context.Context, cfg *config.Config) error {
	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	log.Info().
		Str("mode", cfg.Server.Mode).
		Int("port", cfg.Server.Port).
		Msg("Starting cryptosim")

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgStorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()
	log.Info().Msg("PostgreSQL connected")

	if !skipMigrate {
		if _, err := pgStorage.Migrate(ctx, pool, log); err != nil {
			return err
		}
	}

	rdb, err := redisStorage.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	defer rdb.Close()
	log.Info().Msg("Redis connected")

	welcomeAmount, err := cfg.Ledger.WelcomeAmount()
	if err != nil {
		return err
	}
	welcomeCurrency, err := domain.ParseCurrency(cfg.Ledger.WelcomeCurrency)
	if err != nil {
		return fmt.Errorf("ledger.welcome_currency: %w", err)
	}
	marketFee, err := cfg.Ledger.MarketFeeAmount()
	if err != nil {
		return err
	}

	// Repositories
	userRepo := pgStorage.NewUserRepo(pool)
	walletRepo := pgStorage.NewWalletRepo(pool)
	ledgerRepo := pgStorage.NewLedgerRepo(pool)
	blockRepo := pgStorage.NewBlockRepo(pool)
	rewardRepo := pgStorage.NewRewardRepo(pool)
	tradeRepo := pgStorage.NewTradeRepo(pool)
	priceRepo := pgStorage.NewPriceRepo(pool)
	idempotencyRepo := pgStorage.NewIdempotencyRepo(pool)
	auditRepo := pgStorage.NewAuditRepo(pool)
	transactor := pgStorage.NewTransactor(pool)
	locker := pgStorage.NewAdvisoryLocker()

	// Redis stores
	idempotencyCache := redisStorage.NewIdempotencyCache(rdb)
	priceCache := redisStorage.NewPriceCache(rdb)
	rateLimitStore := redisStorage.NewRateLimitStore(rdb)

	collector := metrics.NewCollector()

	// Core services
	hashSvc := service.NewArgon2HashService(service.DefaultArgon2Params)
	tokenSvc := service.NewJWTTokenService(cfg.JWT.Secret, cfg.JWT.AccessExpiry, cfg.JWT.RefreshExpiry, cfg.JWT.Issuer)
	auditSvc := service.NewAuditService(auditRepo, logger.Component(log, "audit"))
	poster := service.NewLedgerPoster(ledgerRepo, walletRepo, userRepo, locker, auditSvc, logger.Component(log, "ledger"))
	balances := service.NewBalanceCalculator(ledgerRepo)

	// Business services
	authSvc := service.NewAuthService(
		userRepo, walletRepo, transactor, poster, hashSvc, tokenSvc, auditSvc, collector,
		service.WelcomeCredit{Amount: welcomeAmount, Currency: welcomeCurrency},
		logger.Component(log, "auth"),
	)
	userSvc := service.NewUserService(userRepo)
	walletSvc := service.NewWalletService(walletRepo, balances, transactor, auditSvc, logger.Component(log, "wallet"))
	ledgerSvc := service.NewLedgerService(
		ledgerRepo, walletRepo, userRepo, blockRepo, idempotencyRepo, idempotencyCache,
		transactor, poster, auditSvc, collector,
		service.LedgerSettings{MarketFee: marketFee, IdempotencyTTL: cfg.Ledger.IdempotencyTTL},
		logger.Component(log, "ledger"),
	)
	miningSvc := service.NewMiningService(
		blockRepo, ledgerRepo, rewardRepo, transactor, locker,
		service.NewRandomSource(cfg.Mining.Seed), auditSvc, collector,
		logger.Component(log, "mining"),
	)
	tradeSvc := service.NewTradeService(
		tradeRepo, userRepo, walletRepo, transactor, poster, auditSvc, collector,
		logger.Component(log, "trade"),
	)
	priceSvc := service.NewPriceService(priceRepo, priceCache, auditSvc, cfg.Prices.CacheTTL, logger.Component(log, "prices"))

	deps := httpHandler.RouterDeps{
		AuthSvc:        authSvc,
		UserSvc:        userSvc,
		WalletSvc:      walletSvc,
		LedgerSvc:      ledgerSvc,
		MiningSvc:      miningSvc,
		TradeSvc:       tradeSvc,
		AuditSvc:       auditSvc,
		PriceSvc:       priceSvc,
		TokenSvc:       tokenSvc,
		RateLimitStore: rateLimitStore,
		HealthCheckers: []ports.HealthChecker{pgStorage.NewHealthCheck(pool), redisStorage.NewHealthCheck(rdb)},
		Mode:           cfg.Server.Mode,
		Logger:         log,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = collector
		deps.MetricsPath = cfg.Metrics.Path
	}

	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: httpHandler.SetupRouter(deps),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
		return err
	}

	log.Info().Msg("Server exited")
	return nil
}
