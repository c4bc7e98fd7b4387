package handler_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"cryptosim/internal/adapter/http/handler"
	"cryptosim/internal/adapter/metrics"
	redisStorage "cryptosim/internal/adapter/storage/redis"
	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/internal/service"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// e2eApp wires the real HTTP layer, middleware, services and Redis stores
// over in-memory repositories and miniredis.
type e2eApp struct {
	server *httptest.Server
	redis  *miniredis.Miniredis
	store  *memStore
}

// cheapArgon2 keeps password hashing fast under -race.
var cheapArgon2 = service.Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

func newE2EApp(t *testing.T, rateLimited bool) *e2eApp {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := newMemStore()
	userRepo := memUserRepo{store}
	walletRepo := memWalletRepo{store}
	ledgerRepo := memLedgerRepo{store}
	transactor := memTransactor{}
	locker := newMemLocker()

	log := zerolog.Nop()
	collector := metrics.NewCollector()
	hashSvc := service.NewArgon2HashService(cheapArgon2)
	tokenSvc := service.NewJWTTokenService("e2e-secret-key-with-32-bytes!!!!", 15*time.Minute, time.Hour, "cryptosim-test")
	auditSvc := service.NewAuditService(memAuditRepo{store}, log)
	poster := service.NewLedgerPoster(ledgerRepo, walletRepo, userRepo, locker, auditSvc, log)

	deps := handler.RouterDeps{
		AuthSvc: service.NewAuthService(
			userRepo, walletRepo, transactor, poster, hashSvc, tokenSvc, auditSvc, collector,
			service.WelcomeCredit{Amount: decimal.RequireFromString("5.00"), Currency: domain.CurrencySIM},
			log,
		),
		UserSvc:   service.NewUserService(userRepo),
		WalletSvc: service.NewWalletService(walletRepo, service.NewBalanceCalculator(ledgerRepo), transactor, auditSvc, log),
		LedgerSvc: service.NewLedgerService(
			ledgerRepo, walletRepo, userRepo, nil, memIdempotencyRepo{store},
			redisStorage.NewIdempotencyCache(rdb), transactor, poster, auditSvc, collector,
			service.LedgerSettings{MarketFee: decimal.RequireFromString("0.01"), IdempotencyTTL: time.Hour},
			log,
		),
		AuditSvc: auditSvc,
		TokenSvc: tokenSvc,
		Metrics:  collector,
		Mode:     gin.TestMode,
		Logger:   log,
	}
	if rateLimited {
		deps.RateLimitStore = redisStorage.NewRateLimitStore(rdb)
	}

	server := httptest.NewServer(handler.SetupRouter(deps))
	t.Cleanup(server.Close)

	return &e2eApp{server: server, redis: mr, store: store}
}

type envelope struct {
	Data      json.RawMessage `json:"data"`
	ErrorCode string          `json:"error_code"`
}

func (a *e2eApp) do(t *testing.T, method, path, token string, body any, headers map[string]string) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, a.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp.StatusCode, env
}

type account struct {
	userID   string
	walletID string
	token    string
}

func (a *e2eApp) register(t *testing.T, username string) account {
	t.Helper()
	creds := map[string]string{"username": username, "password": "StrongPass123!"}

	code, env := a.do(t, http.MethodPost, "/api/v1/auth/register", "", creds, nil)
	require.Equal(t, http.StatusCreated, code)
	var reg struct {
		UserID         string `json:"user_id"`
		WalletID       string `json:"wallet_id"`
		WelcomeEntryID string `json:"welcome_entry_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &reg))
	assert.NotEmpty(t, reg.WelcomeEntryID)

	code, env = a.do(t, http.MethodPost, "/api/v1/auth/login", "", creds, nil)
	require.Equal(t, http.StatusOK, code)
	var tokens struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &tokens))
	require.NotEmpty(t, tokens.AccessToken)

	return account{userID: reg.UserID, walletID: reg.WalletID, token: tokens.AccessToken}
}

func (a *e2eApp) balance(t *testing.T, acct account) string {
	t.Helper()
	code, env := a.do(t, http.MethodGet, "/api/v1/wallets/"+acct.walletID+"/balance", acct.token, nil, nil)
	require.Equal(t, http.StatusOK, code)
	var bal struct {
		Balance string `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &bal))
	return bal.Balance
}

func TestE2E_RegisterGrantsWelcomeCredit(t *testing.T) {
	app := newE2EApp(t, false)
	alice := app.register(t, "alice")

	assert.Equal(t, "5.00", app.balance(t, alice))

	code, env := app.do(t, http.MethodGet, "/api/v1/wallets", alice.token, nil, nil)
	require.Equal(t, http.StatusOK, code)
	var wallets []map[string]any
	require.NoError(t, json.Unmarshal(env.Data, &wallets))
	require.Len(t, wallets, 1)
	assert.Equal(t, domain.DefaultWalletName, wallets[0]["name"])
	assert.NotContains(t, string(env.Data), "priv_key")
}

func TestE2E_DuplicateUsername(t *testing.T) {
	app := newE2EApp(t, false)
	app.register(t, "alice")

	code, env := app.do(t, http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"username": "alice", "password": "StrongPass123!"}, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "AUTH_002", env.ErrorCode)
}

func TestE2E_MarketAccountCannotLogIn(t *testing.T) {
	app := newE2EApp(t, false)
	app.register(t, "alice")

	code, _ := app.do(t, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"username": domain.MarketUsername, "password": "anything-at-all"}, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestE2E_TransferReservesFunds(t *testing.T) {
	app := newE2EApp(t, false)
	alice := app.register(t, "alice")
	bob := app.register(t, "bob")

	code, env := app.do(t, http.MethodPost, "/api/v1/transactions", alice.token, map[string]string{
		"from_wallet_id": alice.walletID,
		"to_username":    "bob",
		"amount":         "2.00",
		"fee":            "0.50",
	}, nil)
	require.Equal(t, http.StatusCreated, code)
	var entry struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		TxHash   string `json:"tx_hash"`
		Currency string `json:"currency"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &entry))
	assert.Equal(t, "PENDING", entry.Status)
	assert.Equal(t, "SIM", entry.Currency)
	assert.Len(t, entry.TxHash, 64)

	// Pending outgoing amounts and fees are reserved; pending incoming is not spendable.
	assert.Equal(t, "2.50", app.balance(t, alice))
	assert.Equal(t, "5.00", app.balance(t, bob))

	code, env = app.do(t, http.MethodPost, "/api/v1/transactions/"+entry.ID+"/fail", alice.token, nil, nil)
	require.Equal(t, http.StatusOK, code, string(env.Data))
	assert.Equal(t, "5.00", app.balance(t, alice))

	code, _ = app.do(t, http.MethodPost, "/api/v1/transactions/"+entry.ID+"/fail", alice.token, nil, nil)
	assert.Equal(t, http.StatusConflict, code)
}

func TestE2E_TransferFromForeignWallet(t *testing.T) {
	app := newE2EApp(t, false)
	alice := app.register(t, "alice")
	bob := app.register(t, "bob")

	code, _ := app.do(t, http.MethodPost, "/api/v1/transactions", bob.token, map[string]string{
		"from_wallet_id": alice.walletID,
		"to_username":    "bob",
		"amount":         "1.00",
	}, nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "5.00", app.balance(t, alice))
}

func TestE2E_AuditTrail(t *testing.T) {
	app := newE2EApp(t, false)
	alice := app.register(t, "alice")

	code, env := app.do(t, http.MethodGet, "/api/v1/audit-logs", alice.token, nil, nil)
	require.Equal(t, http.StatusOK, code)
	var logs []struct {
		Action  string  `json:"action"`
		ActorID *string `json:"actor_id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &logs))

	actions := make(map[string]bool)
	for _, l := range logs {
		require.NotNil(t, l.ActorID)
		assert.Equal(t, alice.userID, *l.ActorID)
		actions[l.Action] = true
	}
	assert.True(t, actions[string(domain.AuditActionWalletCreate)])
	assert.True(t, actions[string(domain.AuditActionUserLogin)])
	assert.True(t, actions[string(domain.AuditActionWelcomeCredit)])
}

func TestE2E_RegisterRateLimited(t *testing.T) {
	app := newE2EApp(t, true)

	var last int
	for i := 0; i < 6; i++ {
		last, _ = app.do(t, http.MethodPost, "/api/v1/auth/register", "",
			map[string]string{"username": fmt.Sprintf("user%d", i), "password": "StrongPass123!"}, nil)
	}
	assert.Equal(t, http.StatusTooManyRequests, last)
}

func TestE2E_IdempotentTransferReplay(t *testing.T) {
	app := newE2EApp(t, false)
	alice := app.register(t, "alice")
	app.register(t, "bob")

	body := map[string]string{"from_wallet_id": alice.walletID, "to_username": "bob", "amount": "1.00"}
	headers := map[string]string{handler.HeaderIdempotencyKey: "order-42"}

	code, env := app.do(t, http.MethodPost, "/api/v1/transactions", alice.token, body, headers)
	require.Equal(t, http.StatusCreated, code)
	var first struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &first))

	walletID := uuid.MustParse(alice.walletID)
	var wg sync.WaitGroup
	ids := make(chan string, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, env := app.do(t, http.MethodPost, "/api/v1/transactions", alice.token, body, headers)
			if code != http.StatusCreated {
				ids <- fmt.Sprintf("status %d", code)
				return
			}
			var replay struct {
				ID string `json:"id"`
			}
			_ = json.Unmarshal(env.Data, &replay)
			ids <- replay.ID
		}()
	}
	wg.Wait()
	close(ids)

	for id := range ids {
		assert.Equal(t, first.ID, id)
	}
	assert.Equal(t, 1, app.store.entriesFrom(walletID))

	// With redis flushed the DB log still answers the replay.
	app.redis.FlushAll()
	code, env = app.do(t, http.MethodPost, "/api/v1/transactions", alice.token, body, headers)
	require.Equal(t, http.StatusCreated, code)
	assert.Contains(t, string(env.Data), first.ID)
	assert.Equal(t, 1, app.store.entriesFrom(walletID))
}

func TestE2E_ConcurrentRegistrations(t *testing.T) {
	app := newE2EApp(t, false)

	const n = 10
	var wg sync.WaitGroup
	codes := make(chan int, 2*n)
	for i := 0; i < n; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			code, _ := app.do(t, http.MethodPost, "/api/v1/auth/register", "",
				map[string]string{"username": fmt.Sprintf("user%d", i), "password": "StrongPass123!"}, nil)
			codes <- code
		}(i)
		go func() {
			defer wg.Done()
			code, _ := app.do(t, http.MethodPost, "/api/v1/auth/register", "",
				map[string]string{"username": "contested", "password": "StrongPass123!"}, nil)
			codes <- code
		}()
	}
	wg.Wait()
	close(codes)

	created, conflicts := 0, 0
	for code := range codes {
		switch code {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
			conflicts++
		default:
			t.Errorf("unexpected status %d", code)
		}
	}
	assert.Equal(t, n+1, created)
	assert.Equal(t, n-1, conflicts)

	// Every welcome credit came out of a single market wallet.
	market, err := memUserRepo{app.store}.GetByUsername(t.Context(), domain.MarketUsername)
	require.NoError(t, err)
	require.NotNil(t, market)
	wallets, err := memWalletRepo{app.store}.ListByUser(t.Context(), market.ID)
	require.NoError(t, err)
	require.Len(t, wallets, 1)
	assert.Equal(t, n+1, app.store.entriesFrom(wallets[0].ID))
}

var _ ports.Locker = (*memLocker)(nil)
