package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cryptosim/internal/adapter/http/dto"
	"cryptosim/internal/adapter/http/middleware"
	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/internal/core/ports/mocks"
	"cryptosim/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var alice = ports.Principal{UserID: uuid.MustParse("0b6c1c36-8a8e-4d3f-9a59-3d4b5c6d7e8f"), Username: "alice"}

type call struct {
	method    string
	path      string
	body      interface{}
	principal *ports.Principal
	params    gin.Params
	headers   map[string]string
}

// serve runs h against a test context built from req.
func serve(t *testing.T, h gin.HandlerFunc, req call) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	switch b := req.body.(type) {
	case nil:
	case string:
		body = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		body = bytes.NewReader(raw)
	}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(req.method, req.path, body)
	c.Request.Header.Set("Content-Type", "application/json")
	for k, v := range req.headers {
		c.Request.Header.Set(k, v)
	}
	c.Params = req.params
	if req.principal != nil {
		c.Set(middleware.CtxPrincipal, *req.principal)
	}
	h(c)
	return w
}

func idParam(id uuid.UUID) gin.Params {
	return gin.Params{{Key: "id", Value: id.String()}}
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func data(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	d, ok := decode(t, w)["data"].(map[string]interface{})
	require.True(t, ok, "data should be an object: %s", w.Body.String())
	return d
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	code, _ := decode(t, w)["error_code"].(string)
	return code
}

// --- Auth Handler Tests ---

func TestRegister_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	userID, walletID, entryID := uuid.New(), uuid.New(), uuid.New()
	mockAuth.EXPECT().Register(gomock.Any(), ports.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: " Str0ng&pass",
	}).Return(&ports.RegisterResponse{
		UserID:         userID,
		Username:       "alice",
		WalletID:       walletID,
		WelcomeEntryID: entryID,
	}, nil)

	w := serve(t, h.Register, call{
		method: http.MethodPost,
		path:   "/api/v1/auth/register",
		body: dto.RegisterRequest{
			Username: " alice ",
			Email:    "alice@example.com",
			Password: " Str0ng&pass",
		},
	})

	assert.Equal(t, http.StatusCreated, w.Code)
	d := data(t, w)
	assert.Equal(t, userID.String(), d["user_id"])
	assert.Equal(t, walletID.String(), d["wallet_id"])
	assert.Equal(t, entryID.String(), d["welcome_entry_id"])
}

func TestRegister_ValidationError(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewAuthHandler(mocks.NewMockAuthService(ctrl))

	tests := []struct {
		name string
		body interface{}
	}{
		{"empty body", "{}"},
		{"malformed json", "{"},
		{"bad email", dto.RegisterRequest{Username: "bob", Email: "nope", Password: "Str0ng!pass"}},
		{"unsafe username", dto.RegisterRequest{Username: "<bob>", Password: "Str0ng!pass"}},
		{"short password", dto.RegisterRequest{Username: "bob", Password: "short"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(t, h.Register, call{method: http.MethodPost, path: "/api/v1/auth/register", body: tt.body})
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "VAL_001", errorCode(t, w))
		})
	}
}

func TestRegister_UsernameTaken(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Register(gomock.Any(), gomock.Any()).Return(nil, apperror.ErrUsernameExists())

	w := serve(t, h.Register, call{
		method: http.MethodPost,
		path:   "/api/v1/auth/register",
		body:   dto.RegisterRequest{Username: "alice", Password: "Str0ng!pass"},
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "AUTH_002", errorCode(t, w))
}

func TestLogin_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	accessExp := time.Date(2026, 1, 1, 12, 30, 0, 0, time.UTC)
	mockAuth.EXPECT().Login(gomock.Any(), "alice", "Str0ng!pass").Return(&ports.TokenPair{
		Access:        "access.jwt",
		AccessExpiry:  accessExp,
		Refresh:       "refresh.jwt",
		RefreshExpiry: accessExp.Add(7 * 24 * time.Hour),
	}, nil)

	w := serve(t, h.Login, call{
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		body:   dto.LoginRequest{Username: "alice", Password: "Str0ng!pass"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	d := data(t, w)
	assert.Equal(t, "access.jwt", d["access_token"])
	assert.Equal(t, "refresh.jwt", d["refresh_token"])
	assert.Equal(t, "Bearer", d["token_type"])
	assert.Equal(t, float64(accessExp.Unix()), d["access_expires_at"])
}

func TestLogin_InvalidCredentials(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Login(gomock.Any(), "alice", "wrong").Return(nil, apperror.ErrInvalidCredentials())

	w := serve(t, h.Login, call{
		method: http.MethodPost,
		path:   "/api/v1/auth/login",
		body:   dto.LoginRequest{Username: "alice", Password: "wrong"},
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "AUTH_001", errorCode(t, w))
}

func TestRefresh(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockAuth := mocks.NewMockAuthService(ctrl)
	h := NewAuthHandler(mockAuth)

	mockAuth.EXPECT().Refresh(gomock.Any(), "r1").Return(&ports.TokenPair{Access: "a2", Refresh: "r2"}, nil)
	mockAuth.EXPECT().Refresh(gomock.Any(), "a1").Return(nil, apperror.ErrInvalidToken())

	w := serve(t, h.Refresh, call{method: http.MethodPost, path: "/api/v1/auth/refresh", body: dto.RefreshRequest{RefreshToken: "r1"}})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "a2", data(t, w)["access_token"])

	w = serve(t, h.Refresh, call{method: http.MethodPost, path: "/api/v1/auth/refresh", body: dto.RefreshRequest{RefreshToken: "a1"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

// --- Health ---

type stubChecker struct {
	name string
	err  error
}

func (s stubChecker) Ping(_ context.Context) error { return s.err }
func (s stubChecker) Name() string                 { return s.name }

func TestHealthCheck(t *testing.T) {
	healthy := serve(t, HealthCheck(stubChecker{name: "postgres"}, stubChecker{name: "redis"}), call{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusOK, healthy.Code)
	assert.Equal(t, "healthy", decode(t, healthy)["status"])

	degraded := serve(t, HealthCheck(stubChecker{name: "postgres"}, stubChecker{name: "redis", err: errors.New("down")}), call{method: http.MethodGet, path: "/health"})
	assert.Equal(t, http.StatusServiceUnavailable, degraded.Code)
	resp := decode(t, degraded)
	assert.Equal(t, "degraded", resp["status"])
	deps := resp["dependencies"].(map[string]interface{})
	assert.Equal(t, "unhealthy", deps["redis"].(map[string]interface{})["status"])
}

// --- Users ---

func TestUserHandler_Me(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockUserService(ctrl)
	h := NewUserHandler(svc)

	svc.EXPECT().GetProfile(gomock.Any(), alice.UserID).Return(&domain.User{
		ID: alice.UserID, Username: "alice", Email: "a@example.com", PasswordHash: "secret",
	}, nil)

	w := serve(t, h.Me, call{method: http.MethodGet, path: "/api/v1/users/me", principal: &alice})
	assert.Equal(t, http.StatusOK, w.Code)
	d := data(t, w)
	assert.Equal(t, "alice", d["username"])
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestUserHandler_MeWithoutPrincipal(t *testing.T) {
	ctrl := gomock.NewController(t)
	h := NewUserHandler(mocks.NewMockUserService(ctrl))

	w := serve(t, h.Me, call{method: http.MethodGet, path: "/api/v1/users/me"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestUserHandler_List(t *testing.T) {
	ctrl := gomock.NewController(t)
	svc := mocks.NewMockUserService(ctrl)
	h := NewUserHandler(svc)

	svc.EXPECT().List(gomock.Any()).Return([]domain.User{{ID: uuid.New(), Username: "alice"}, {ID: uuid.New(), Username: "bob"}}, nil)

	w := serve(t, h.List, call{method: http.MethodGet, path: "/api/v1/users", principal: &alice})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["data"], 2)
}
