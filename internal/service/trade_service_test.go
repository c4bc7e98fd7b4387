package service

import (
	"context"
	"testing"

	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/internal/core/ports/mocks"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type tradeTestDeps struct {
	svc        *TradeServiceImpl
	tradeRepo  *mocks.MockTradeRequestRepository
	userRepo   *mocks.MockUserRepository
	walletRepo *mocks.MockWalletRepository
	transactor *mocks.MockDBTransactor
	poster     *mocks.MockLedgerPoster
	audit      *mocks.MockAuditRecorder
	metrics    *mocks.MockLedgerMetrics
}

func setupTradeService(t *testing.T) *tradeTestDeps {
	ctrl := gomock.NewController(t)
	d := &tradeTestDeps{
		tradeRepo:  mocks.NewMockTradeRequestRepository(ctrl),
		userRepo:   mocks.NewMockUserRepository(ctrl),
		walletRepo: mocks.NewMockWalletRepository(ctrl),
		transactor: mocks.NewMockDBTransactor(ctrl),
		poster:     mocks.NewMockLedgerPoster(ctrl),
		audit:      mocks.NewMockAuditRecorder(ctrl),
		metrics:    mocks.NewMockLedgerMetrics(ctrl),
	}
	d.svc = NewTradeService(
		d.tradeRepo, d.userRepo, d.walletRepo, d.transactor,
		d.poster, d.audit, d.metrics, newTestLogger(),
	)
	return d
}

func pendingTrade(requester, counterparty uuid.UUID, side domain.TradeSide) *domain.TradeRequest {
	return &domain.TradeRequest{
		ID:             uuid.New(),
		RequesterID:    requester,
		CounterpartyID: counterparty,
		Side:           side,
		Amount:         dec("5.00"),
		Fee:            dec("0.10"),
		Currency:       domain.CurrencySIM,
		Status:         domain.TradeStatusPending,
	}
}

func TestTradeService_Create(t *testing.T) {
	d := setupTradeService(t)
	ctx := context.Background()
	tx := &mockTx{}
	caller := userPrincipal("alice")
	bob := &domain.User{ID: uuid.New(), Username: "bob"}

	d.userRepo.EXPECT().GetByUsername(ctx, "bob").Return(bob, nil)
	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.tradeRepo.EXPECT().Create(ctx, tx, gomock.Any()).Return(nil)
	d.audit.EXPECT().Record(ctx, tx, &caller.UserID, domain.AuditActionTradeRequestCreate, gomock.Any())

	tr, err := d.svc.Create(ctx, ports.CreateTradeRequest{
		Caller:               caller,
		CounterpartyUsername: "bob",
		Side:                 "sell",
		Amount:               dec("5.00"),
		Fee:                  dec("0.10"),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusPending, tr.Status)
	assert.Equal(t, domain.TradeSideSell, tr.Side)
	assert.Equal(t, bob.ID, tr.CounterpartyID)
	assert.Len(t, tr.Token, 48)
}

func TestTradeService_Create_Validation(t *testing.T) {
	caller := userPrincipal("alice")
	selfID := caller.UserID

	tests := []struct {
		name     string
		req      ports.CreateTradeRequest
		self     bool
		wantCode string
	}{
		{"bad side", ports.CreateTradeRequest{Caller: caller, CounterpartyUsername: "bob", Side: "HOLD", Amount: dec("1")}, false, "VAL_001"},
		{"zero amount", ports.CreateTradeRequest{Caller: caller, CounterpartyUsername: "bob", Side: "BUY", Amount: dec("0")}, false, "VAL_001"},
		{"negative fee", ports.CreateTradeRequest{Caller: caller, CounterpartyUsername: "bob", Side: "BUY", Amount: dec("1"), Fee: dec("-0.01")}, false, "VAL_001"},
		{"amount over limit", ports.CreateTradeRequest{Caller: caller, CounterpartyUsername: "bob", Side: "BUY", Amount: dec("1e30")}, false, "VAL_001"},
		{"no counterparty", ports.CreateTradeRequest{Caller: caller, Side: "BUY", Amount: dec("1")}, false, "VAL_001"},
		{"self trade", ports.CreateTradeRequest{Caller: caller, CounterpartyID: &selfID, Side: "BUY", Amount: dec("1")}, true, "VAL_001"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupTradeService(t)
			if tt.self {
				d.userRepo.EXPECT().GetByID(gomock.Any(), selfID).Return(&domain.User{ID: selfID}, nil)
			}
			_, err := d.svc.Create(context.Background(), tt.req)
			assertAppError(t, err, tt.wantCode)
		})
	}
}

func TestTradeService_Create_UnknownCounterparty(t *testing.T) {
	d := setupTradeService(t)
	d.userRepo.EXPECT().GetByUsername(gomock.Any(), "ghost").Return(nil, nil)

	_, err := d.svc.Create(context.Background(), ports.CreateTradeRequest{
		Caller: userPrincipal("alice"), CounterpartyUsername: "ghost", Side: "BUY", Amount: dec("1"),
	})
	assertAppError(t, err, "RES_001")
}

func TestTradeService_Approve_FlowBySide(t *testing.T) {
	tests := []struct {
		side          domain.TradeSide
		fromRequester bool
	}{
		{domain.TradeSideSell, true},
		{domain.TradeSideBuy, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.side), func(t *testing.T) {
			d := setupTradeService(t)
			ctx := context.Background()
			tx := &mockTx{}
			requester := uuid.New()
			caller := ports.Principal{UserID: uuid.New(), Username: "bob"}
			tr := pendingTrade(requester, caller.UserID, tt.side)
			reqWallet := &domain.Wallet{ID: uuid.New(), UserID: requester}
			cpWallet := &domain.Wallet{ID: uuid.New(), UserID: caller.UserID}

			d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
			d.tradeRepo.EXPECT().GetByIDForUpdate(ctx, tx, tr.ID).Return(tr, nil)
			d.walletRepo.EXPECT().GetDefault(ctx, tx, requester).Return(reqWallet, nil)
			d.walletRepo.EXPECT().GetDefault(ctx, tx, caller.UserID).Return(cpWallet, nil)
			d.poster.EXPECT().Post(ctx, tx, gomock.Any()).DoAndReturn(
				func(ctx context.Context, tx pgx.Tx, draft domain.EntryDraft) (*domain.LedgerEntry, error) {
					assert.True(t, draft.Amount.Equal(tr.Amount))
					assert.True(t, draft.Fee.Equal(tr.Fee))
					return postEcho(ctx, tx, draft)
				})
			d.tradeRepo.EXPECT().UpdateStatus(ctx, tx, tr.ID, domain.TradeStatusApproved).Return(nil)
			d.audit.EXPECT().Record(ctx, tx, &caller.UserID, domain.AuditActionTradeApprove, gomock.Any())
			d.metrics.EXPECT().TradeDecided(domain.TradeStatusApproved)
			d.metrics.EXPECT().EntryRecorded(domain.EntryStatusPending, domain.CurrencySIM)

			out, err := d.svc.Approve(ctx, caller, tr.ID)
			require.NoError(t, err)
			assert.Equal(t, domain.TradeStatusApproved, out.Request.Status)
			if tt.fromRequester {
				assert.Equal(t, reqWallet.ID, out.Entry.FromWalletID)
				assert.Equal(t, cpWallet.ID, out.Entry.ToWalletID)
			} else {
				assert.Equal(t, cpWallet.ID, out.Entry.FromWalletID)
				assert.Equal(t, reqWallet.ID, out.Entry.ToWalletID)
			}
		})
	}
}

func TestTradeService_Approve_RequesterIsForbidden(t *testing.T) {
	d := setupTradeService(t)
	caller := userPrincipal("alice")
	tr := pendingTrade(caller.UserID, uuid.New(), domain.TradeSideBuy)

	d.transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil)
	d.tradeRepo.EXPECT().GetByIDForUpdate(gomock.Any(), gomock.Any(), tr.ID).Return(tr, nil)

	_, err := d.svc.Approve(context.Background(), caller, tr.ID)
	assertAppError(t, err, "PERM_001")
}

func TestTradeService_Approve_StrangerSeesNotFound(t *testing.T) {
	d := setupTradeService(t)
	tr := pendingTrade(uuid.New(), uuid.New(), domain.TradeSideBuy)

	d.transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil)
	d.tradeRepo.EXPECT().GetByIDForUpdate(gomock.Any(), gomock.Any(), tr.ID).Return(tr, nil)

	_, err := d.svc.Approve(context.Background(), userPrincipal("eve"), tr.ID)
	assertAppError(t, err, "RES_001")
}

func TestTradeService_Approve_TwiceIsConflict(t *testing.T) {
	d := setupTradeService(t)
	caller := userPrincipal("bob")
	tr := pendingTrade(uuid.New(), caller.UserID, domain.TradeSideSell)
	tr.Status = domain.TradeStatusApproved

	d.transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil)
	d.tradeRepo.EXPECT().GetByIDForUpdate(gomock.Any(), gomock.Any(), tr.ID).Return(tr, nil)

	_, err := d.svc.Approve(context.Background(), caller, tr.ID)
	assertAppError(t, err, "STATE_001")
}

func TestTradeService_Approve_PartyWithoutWallet(t *testing.T) {
	d := setupTradeService(t)
	caller := userPrincipal("bob")
	requester := uuid.New()
	tr := pendingTrade(requester, caller.UserID, domain.TradeSideSell)

	d.transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil)
	d.tradeRepo.EXPECT().GetByIDForUpdate(gomock.Any(), gomock.Any(), tr.ID).Return(tr, nil)
	d.walletRepo.EXPECT().GetDefault(gomock.Any(), gomock.Any(), requester).Return(nil, nil)

	_, err := d.svc.Approve(context.Background(), caller, tr.ID)
	assertAppError(t, err, "VAL_001")
}

func TestTradeService_Reject(t *testing.T) {
	d := setupTradeService(t)
	ctx := context.Background()
	tx := &mockTx{}
	caller := userPrincipal("bob")
	tr := pendingTrade(uuid.New(), caller.UserID, domain.TradeSideSell)

	d.transactor.EXPECT().Begin(ctx).Return(tx, nil)
	d.tradeRepo.EXPECT().GetByIDForUpdate(ctx, tx, tr.ID).Return(tr, nil)
	d.tradeRepo.EXPECT().UpdateStatus(ctx, tx, tr.ID, domain.TradeStatusRejected).Return(nil)
	d.audit.EXPECT().Record(ctx, tx, &caller.UserID, domain.AuditActionTradeReject, gomock.Any())
	d.metrics.EXPECT().TradeDecided(domain.TradeStatusRejected)

	got, err := d.svc.Reject(ctx, caller, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusRejected, got.Status)
}

func TestTradeService_Reject_NonPendingIsConflict(t *testing.T) {
	d := setupTradeService(t)
	caller := userPrincipal("bob")
	tr := pendingTrade(uuid.New(), caller.UserID, domain.TradeSideSell)
	tr.Status = domain.TradeStatusCancelled

	d.transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil)
	d.tradeRepo.EXPECT().GetByIDForUpdate(gomock.Any(), gomock.Any(), tr.ID).Return(tr, nil)

	_, err := d.svc.Reject(context.Background(), caller, tr.ID)
	assertAppError(t, err, "STATE_001")
}

func TestTradeService_Cancel_RequesterOnly(t *testing.T) {
	d := setupTradeService(t)
	ctx := context.Background()
	requester := userPrincipal("alice")
	counterparty := userPrincipal("bob")
	tr := pendingTrade(requester.UserID, counterparty.UserID, domain.TradeSideBuy)

	d.transactor.EXPECT().Begin(gomock.Any()).Return(&mockTx{}, nil).Times(2)
	d.tradeRepo.EXPECT().GetByIDForUpdate(gomock.Any(), gomock.Any(), tr.ID).Return(tr, nil).Times(2)

	_, err := d.svc.Cancel(ctx, counterparty, tr.ID)
	assertAppError(t, err, "PERM_001")

	d.tradeRepo.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), tr.ID, domain.TradeStatusCancelled).Return(nil)
	d.audit.EXPECT().Record(gomock.Any(), gomock.Any(), &requester.UserID, domain.AuditActionTradeCancel, gomock.Any())
	d.metrics.EXPECT().TradeDecided(domain.TradeStatusCancelled)

	got, err := d.svc.Cancel(ctx, requester, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.TradeStatusCancelled, got.Status)
}

func TestTradeService_Get(t *testing.T) {
	d := setupTradeService(t)
	caller := userPrincipal("alice")
	tr := pendingTrade(caller.UserID, uuid.New(), domain.TradeSideBuy)

	d.tradeRepo.EXPECT().GetByID(gomock.Any(), tr.ID).Return(tr, nil).Times(2)

	got, err := d.svc.Get(context.Background(), caller, tr.ID)
	require.NoError(t, err)
	assert.Equal(t, tr, got)

	_, err = d.svc.Get(context.Background(), userPrincipal("eve"), tr.ID)
	assertAppError(t, err, "RES_001")
}

func TestTradeService_List_DefaultsToAll(t *testing.T) {
	d := setupTradeService(t)
	userID := uuid.New()

	d.tradeRepo.EXPECT().List(gomock.Any(), ports.TradeListParams{UserID: userID, Scope: domain.TradeScopeAll}).Return(nil, nil)

	_, err := d.svc.List(context.Background(), ports.TradeListParams{UserID: userID})
	require.NoError(t, err)
}
