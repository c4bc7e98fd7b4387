package handler

import (
	"cryptosim/internal/adapter/http/middleware"
	"cryptosim/internal/adapter/metrics"
	"cryptosim/internal/core/ports"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const defaultMaxBodyBytes = 1 << 20

// RouterDeps holds all dependencies needed to set up routes.
type RouterDeps struct {
	AuthSvc        ports.AuthService
	UserSvc        ports.UserService
	WalletSvc      ports.WalletService
	LedgerSvc      ports.LedgerService
	MiningSvc      ports.MiningService
	TradeSvc       ports.TradeService
	AuditSvc       ports.AuditService
	PriceSvc       ports.PriceService
	TokenSvc       ports.TokenService
	RateLimitStore middleware.RateLimitStore // nil = rate limiting disabled
	HealthCheckers []ports.HealthChecker
	Metrics        *metrics.Collector // nil = no /metrics and no HTTP instrumentation
	MetricsPath    string
	MaxBodyBytes   int64
	Mode           string
	Logger         zerolog.Logger
}

// SetupRouter initialises the Gin engine with all routes and middleware.
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode != "" {
		gin.SetMode(deps.Mode)
	}
	r := gin.New()

	maxBody := deps.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}

	r.Use(middleware.RequestID())
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.RequestLogger(deps.Logger))
	if deps.Metrics != nil {
		r.Use(deps.Metrics.Middleware())
	}
	r.Use(middleware.MaxBodySize(maxBody))

	r.GET("/health", HealthCheck(deps.HealthCheckers...))
	if deps.Metrics != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.GET(path, gin.WrapH(deps.Metrics.Handler()))
	}

	rules := middleware.DefaultRateLimitRules()
	rl := func(group string) gin.HandlerFunc {
		if deps.RateLimitStore == nil {
			return func(c *gin.Context) { c.Next() }
		}
		return middleware.RateLimiter(deps.RateLimitStore, group, rules[group], deps.Logger)
	}
	read, write := rl(middleware.GroupRead), rl(middleware.GroupWrite)

	authHandler := NewAuthHandler(deps.AuthSvc)
	userHandler := NewUserHandler(deps.UserSvc)
	walletHandler := NewWalletHandler(deps.WalletSvc)
	ledgerHandler := NewLedgerHandler(deps.LedgerSvc)
	blockHandler := NewBlockHandler(deps.MiningSvc)
	tradeHandler := NewTradeHandler(deps.TradeSvc)
	auditHandler := NewAuditHandler(deps.AuditSvc)
	priceHandler := NewPriceHandler(deps.PriceSvc)

	v1 := r.Group("/api/v1")

	// --- Public routes ---
	auth := v1.Group("/auth")
	{
		auth.POST("/register", rl(middleware.GroupAuthRegister), authHandler.Register)
		auth.POST("/login", rl(middleware.GroupAuthLogin), authHandler.Login)
		auth.POST("/refresh", rl(middleware.GroupAuthRefresh), authHandler.Refresh)
	}
	v1.GET("/blocks", read, blockHandler.List)
	v1.GET("/blocks/:id", read, blockHandler.Get)
	v1.GET("/prices", read, priceHandler.List)
	v1.GET("/prices/latest", read, priceHandler.Latest)
	v1.GET("/prices/:id", read, priceHandler.Get)

	// --- JWT-authenticated routes ---
	authed := v1.Group("", middleware.JWTAuth(deps.TokenSvc))

	users := authed.Group("/users")
	{
		users.GET("/me", read, userHandler.Me)
		users.GET("", read, userHandler.List)
	}

	wallets := authed.Group("/wallets")
	{
		wallets.GET("", read, walletHandler.List)
		wallets.POST("", write, walletHandler.Create)
		wallets.GET("/:id", read, walletHandler.Get)
		wallets.DELETE("/:id", write, walletHandler.Delete)
		wallets.GET("/:id/balance", read, walletHandler.Balance)
		wallets.GET("/:id/balances", read, walletHandler.Balances)
	}

	transfer := rl(middleware.GroupTransfer)
	transactions := authed.Group("/transactions")
	{
		transactions.GET("", read, ledgerHandler.List)
		transactions.POST("", transfer, ledgerHandler.Transfer)
		transactions.POST("/buy", transfer, ledgerHandler.Buy)
		transactions.POST("/sell", transfer, ledgerHandler.Sell)
		transactions.GET("/:id", read, ledgerHandler.Get)
		transactions.POST("/:id/confirm", write, ledgerHandler.Confirm)
		transactions.POST("/:id/fail", write, ledgerHandler.Fail)
	}

	mining := rl(middleware.GroupMining)
	blocks := authed.Group("/blocks")
	{
		blocks.POST("", mining, blockHandler.Mine)
		blocks.DELETE("/:id", write, blockHandler.Delete)
		blocks.POST("/:id/simulate", mining, blockHandler.Simulate)
	}
	authed.GET("/mining/rewards", read, blockHandler.Rewards)

	trades := authed.Group("/trade-requests")
	{
		trades.GET("", read, tradeHandler.List)
		trades.POST("", write, tradeHandler.Create)
		trades.GET("/:id", read, tradeHandler.Get)
		trades.POST("/:id/approve", write, tradeHandler.Approve)
		trades.POST("/:id/reject", write, tradeHandler.Reject)
		trades.POST("/:id/cancel", write, tradeHandler.Cancel)
	}

	audit := authed.Group("/audit-logs")
	{
		audit.GET("", read, auditHandler.List)
		audit.GET("/:id", read, auditHandler.Get)
	}

	prices := authed.Group("/prices")
	{
		prices.POST("", write, priceHandler.Create)
		prices.PUT("/:id", write, priceHandler.Update)
		prices.DELETE("/:id", write, priceHandler.Delete)
	}

	return r
}
