package service

import (
	"bytes"
	"context"
	"io"
	"testing"

	"cryptosim/internal/core/ports"
	"cryptosim/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func newTestLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func newBufferLogger() (zerolog.Logger, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	return zerolog.New(buf), buf
}

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func userPrincipal(name string) ports.Principal {
	return ports.Principal{UserID: uuid.New(), Username: name}
}

func staffPrincipal() ports.Principal {
	return ports.Principal{UserID: uuid.New(), Username: "admin", IsStaff: true}
}
