package postgres

import (
	"context"
	"testing"
	"time"

	"cryptosim/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(userID uuid.UUID, name string) *domain.Wallet {
	return &domain.Wallet{
		ID:         uuid.New(),
		UserID:     userID,
		Name:       name,
		PubKey:     "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff",
		PrivKeyEnc: "demo-hash",
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
}

func walletCols() []string {
	return []string{"id", "user_id", "name", "pub_key", "priv_key_enc", "created_at"}
}

func walletRow(w *domain.Wallet) *pgxmock.Rows {
	return pgxmock.NewRows(walletCols()).AddRow(w.ID, w.UserID, w.Name, w.PubKey, w.PrivKeyEnc, w.CreatedAt)
}

func TestWalletRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New(), "Default")

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO wallets").
		WithArgs(w.ID, w.UserID, w.Name, w.PubKey, w.PrivKeyEnc, w.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, w))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New(), "savings")

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE id").
		WithArgs(w.ID).
		WillReturnRows(walletRow(w))

	result, err := repo.GetByID(context.Background(), w.ID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.ID, result.ID)
	assert.Equal(t, "savings", result.Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetDefault_PrefersDefaultName(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	userID := uuid.New()
	w := newTestWallet(userID, "Default")

	mock.ExpectQuery(`SELECT .+ FROM wallets WHERE user_id = \$1\s+ORDER BY \(LOWER\(name\) = 'default'\) DESC`).
		WithArgs(userID).
		WillReturnRows(walletRow(w))

	result, err := repo.GetDefault(context.Background(), nil, userID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.ID, result.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetDefault_NoWallets(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM wallets WHERE user_id").
		WithArgs(pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows(walletCols()))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetDefault(context.Background(), tx, uuid.New())
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_ListByUser(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	userID := uuid.New()
	a, b := newTestWallet(userID, "Default"), newTestWallet(userID, "trading")

	mock.ExpectQuery("SELECT .+ FROM wallets WHERE user_id .+ ORDER BY created_at").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows(walletCols()).
			AddRow(a.ID, a.UserID, a.Name, a.PubKey, a.PrivKeyEnc, a.CreatedAt).
			AddRow(b.ID, b.UserID, b.Name, b.PubKey, b.PrivKeyEnc, b.CreatedAt))

	wallets, err := repo.ListByUser(context.Background(), userID)
	require.NoError(t, err)
	require.Len(t, wallets, 2)
	assert.Equal(t, "trading", wallets[1].Name)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Delete_Referenced(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM wallets").
		WithArgs(walletID).
		WillReturnError(&pgconn.PgError{Code: "23503", ConstraintName: "ledger_entries_from_wallet_id_fkey"})

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Delete(context.Background(), tx, walletID)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrReferenced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Delete_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	walletID := uuid.New()

	mock.ExpectExec("DELETE FROM wallets").
		WithArgs(walletID).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = repo.Delete(context.Background(), nil, walletID)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "wallet not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
