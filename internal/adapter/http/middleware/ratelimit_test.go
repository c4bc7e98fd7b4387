package middleware_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cryptosim/internal/adapter/http/middleware"
	redisStore "cryptosim/internal/adapter/storage/redis"
	"cryptosim/internal/core/ports"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// withPrincipal stands in for JWTAuth using the X-Test-User header.
func withPrincipal(c *gin.Context) {
	if id := c.GetHeader("X-Test-User"); id != "" {
		c.Set(middleware.CtxPrincipal, ports.Principal{UserID: uuid.MustParse(id)})
	}
	c.Next()
}

func setupRateLimitRouter(store middleware.RateLimitStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	rule := middleware.RateLimitRule{Limit: 3, Window: time.Minute}
	r.GET("/test", withPrincipal, middleware.RateLimiter(store, "test", rule, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	return r
}

func newStore(t *testing.T) (*redisStore.RateLimitStore, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return redisStore.NewRateLimitStore(client), mr
}

func get(router *gin.Engine, user string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequestWithContext(context.Background(), http.MethodGet, "/test", nil)
	if user != "" {
		req.Header.Set("X-Test-User", user)
	}
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_AllowsWithinLimit(t *testing.T) {
	store, _ := newStore(t)
	router := setupRateLimitRouter(store)

	for i := 0; i < 3; i++ {
		w := get(router, "")
		assert.Equal(t, 200, w.Code, "request %d should succeed", i+1)
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Remaining"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	store, _ := newStore(t)
	router := setupRateLimitRouter(store)

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, get(router, "").Code)
	}

	w := get(router, "")
	assert.Equal(t, 429, w.Code)
	assert.NotEmpty(t, w.Header().Get("Retry-After"))
	assert.Contains(t, w.Body.String(), "RATE_001")
}

func TestRateLimiter_KeysByUser(t *testing.T) {
	store, _ := newStore(t)
	router := setupRateLimitRouter(store)
	alice, bob := uuid.NewString(), uuid.NewString()

	for i := 0; i < 3; i++ {
		assert.Equal(t, 200, get(router, alice).Code)
	}
	assert.Equal(t, 429, get(router, alice).Code)

	// Independent counter.
	assert.Equal(t, 200, get(router, bob).Code)
}

func TestRateLimiter_RedisDownAllows(t *testing.T) {
	store, mr := newStore(t)
	router := setupRateLimitRouter(store)
	mr.Close()

	w := get(router, "")
	assert.Equal(t, 200, w.Code)
	assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
}

func TestDefaultRateLimitRules(t *testing.T) {
	rules := middleware.DefaultRateLimitRules()
	assert.Equal(t, int64(10), rules[middleware.GroupAuthLogin].Limit)
	assert.Equal(t, int64(5), rules[middleware.GroupAuthRegister].Limit)
	assert.Equal(t, time.Hour, rules[middleware.GroupAuthRegister].Window)
	assert.Equal(t, int64(30), rules[middleware.GroupTransfer].Limit)
	assert.Equal(t, int64(120), rules[middleware.GroupRead].Limit)
}
