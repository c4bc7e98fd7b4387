package postgres

import (
	"context"
	"testing"
	"time"

	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tradeCols() []string {
	return []string{"id", "requester_id", "counterparty_id", "side", "amount", "fee", "currency", "token", "status", "created_at"}
}

func newTestTrade(requester, counterparty uuid.UUID) *domain.TradeRequest {
	return &domain.TradeRequest{
		ID:             uuid.New(),
		RequesterID:    requester,
		CounterpartyID: counterparty,
		Side:           domain.TradeSideSell,
		Amount:         decimal.RequireFromString("4.00"),
		Fee:            decimal.Zero,
		Currency:       domain.CurrencySIM,
		Token:          "0f0f",
		Status:         domain.TradeStatusPending,
		CreatedAt:      time.Now().UTC().Truncate(time.Microsecond),
	}
}

func tradeRow(t *domain.TradeRequest) *pgxmock.Rows {
	return pgxmock.NewRows(tradeCols()).AddRow(
		t.ID, t.RequesterID, t.CounterpartyID, t.Side, t.Amount, t.Fee,
		t.Currency, t.Token, t.Status, t.CreatedAt,
	)
}

func TestTradeRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTradeRepo(mock)
	tr := newTestTrade(uuid.New(), uuid.New())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO trade_requests").
		WithArgs(tr.ID, tr.RequesterID, tr.CounterpartyID, "SELL", tr.Amount, tr.Fee,
			"SIM", tr.Token, "PENDING", tr.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, tr))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradeRepo_Create_DuplicateToken(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTradeRepo(mock)

	mock.ExpectExec("INSERT INTO trade_requests").
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "trade_requests_token_key"})

	err = repo.Create(context.Background(), nil, newTestTrade(uuid.New(), uuid.New()))
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)
}

func TestTradeRepo_GetByIDForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTradeRepo(mock)
	tr := newTestTrade(uuid.New(), uuid.New())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM trade_requests WHERE id .+ FOR UPDATE").
		WithArgs(tr.ID).
		WillReturnRows(tradeRow(tr))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	got, err := repo.GetByIDForUpdate(context.Background(), tx, tr.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.TradeSideSell, got.Side)
	assert.True(t, got.IsPending())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradeRepo_UpdateStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewTradeRepo(mock)
	id := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE trade_requests SET status").
		WithArgs("APPROVED", id).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.UpdateStatus(context.Background(), tx, id, domain.TradeStatusApproved))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTradeRepo_List_Scopes(t *testing.T) {
	pending := domain.TradeStatusPending

	tests := []struct {
		name    string
		scope   domain.TradeScope
		status  *domain.TradeStatus
		pattern string
	}{
		{"incoming", domain.TradeScopeIncoming, nil, `WHERE counterparty_id = \$1 ORDER BY`},
		{"outgoing", domain.TradeScopeOutgoing, nil, `WHERE requester_id = \$1 ORDER BY`},
		{"all with status", domain.TradeScopeAll, &pending, `WHERE \(requester_id = \$1 OR counterparty_id = \$1\) AND status = \$2`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock, err := pgxmock.NewPool()
			require.NoError(t, err)
			defer mock.Close()

			repo := NewTradeRepo(mock)
			userID := uuid.New()
			tr := newTestTrade(uuid.New(), userID)

			q := mock.ExpectQuery("SELECT .+ FROM trade_requests " + tt.pattern)
			if tt.status != nil {
				q.WithArgs(userID, "PENDING")
			} else {
				q.WithArgs(userID)
			}
			q.WillReturnRows(tradeRow(tr))

			out, err := repo.List(context.Background(), ports.TradeListParams{UserID: userID, Scope: tt.scope, Status: tt.status})
			require.NoError(t, err)
			assert.Len(t, out, 1)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}
