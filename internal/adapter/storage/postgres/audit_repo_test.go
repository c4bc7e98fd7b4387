package postgres

import (
	"context"
	"errors"
	"testing"

	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func auditCols() []string {
	return []string{"id", "actor_id", "action", "payload", "created_at"}
}

func newTestAudit(t *testing.T, actor *uuid.UUID) *domain.AuditLogEntry {
	t.Helper()
	entry, err := domain.NewAuditLogEntry(actor, domain.AuditActionTxSend, map[string]any{"amount": "3.00"})
	require.NoError(t, err)
	return entry
}

func TestAuditRepo_Append_InTxUsesSavepoint(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	actor := uuid.New()
	entry := newTestAudit(t, &actor)

	mock.ExpectBegin()
	mock.ExpectExec("^SAVEPOINT audit_append").WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, &actor, "TX_SEND", []byte(entry.Payload), entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec("^RELEASE SAVEPOINT audit_append").WillReturnResult(pgxmock.NewResult("RELEASE", 0))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Append(context.Background(), tx, entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_Append_FailureRollsBackToSavepoint(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	entry := newTestAudit(t, nil)

	mock.ExpectBegin()
	mock.ExpectExec("^SAVEPOINT audit_append").WillReturnResult(pgxmock.NewResult("SAVEPOINT", 0))
	mock.ExpectExec("INSERT INTO audit_logs").WillReturnError(errors.New("disk full"))
	mock.ExpectExec("^ROLLBACK TO SAVEPOINT audit_append").WillReturnResult(pgxmock.NewResult("ROLLBACK", 0))
	mock.ExpectCommit()

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Append(context.Background(), tx, entry)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	// the enclosing transaction is still usable
	assert.NoError(t, tx.Commit(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_Append_WithoutTx(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	entry := newTestAudit(t, nil)

	mock.ExpectExec("INSERT INTO audit_logs").
		WithArgs(entry.ID, (*uuid.UUID)(nil), "TX_SEND", []byte(entry.Payload), entry.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Append(context.Background(), nil, entry))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_Append_DeletedActor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	actor := uuid.New()

	mock.ExpectExec("INSERT INTO audit_logs").
		WillReturnError(&pgconn.PgError{Code: "23503"})

	err = repo.Append(context.Background(), nil, newTestAudit(t, &actor))
	assert.ErrorIs(t, err, domain.ErrReferenced)
}

func TestAuditRepo_GetByID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	actor := uuid.New()
	entry := newTestAudit(t, &actor)

	mock.ExpectQuery("SELECT .+ FROM audit_logs WHERE id").
		WithArgs(entry.ID).
		WillReturnRows(pgxmock.NewRows(auditCols()).
			AddRow(entry.ID, &actor, domain.AuditActionTxSend, []byte(entry.Payload), entry.CreatedAt))

	got, err := repo.GetByID(context.Background(), entry.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, domain.AuditActionTxSend, got.Action)
	assert.JSONEq(t, `{"amount":"3.00"}`, string(got.Payload))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_List_ScopedToActor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)
	actor := uuid.New()
	entry := newTestAudit(t, &actor)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM audit_logs WHERE actor_id = \\$1").
		WithArgs(actor).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM audit_logs WHERE actor_id = \\$1 ORDER BY created_at DESC, id LIMIT \\$2 OFFSET \\$3").
		WithArgs(actor, 20, 0).
		WillReturnRows(pgxmock.NewRows(auditCols()).
			AddRow(entry.ID, &actor, entry.Action, []byte(entry.Payload), entry.CreatedAt))

	out, total, err := repo.List(context.Background(), ports.AuditListParams{ActorID: &actor, Page: 1, PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, out, 1)
	assert.Equal(t, &actor, out[0].ActorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAuditRepo_List_All(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewAuditRepo(mock)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM audit_logs$").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(0)))
	mock.ExpectQuery("SELECT .+ FROM audit_logs ORDER BY created_at DESC, id LIMIT \\$1 OFFSET \\$2").
		WithArgs(10, 10).
		WillReturnRows(pgxmock.NewRows(auditCols()))

	out, total, err := repo.List(context.Background(), ports.AuditListParams{Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}
