package handler_test

import (
	"context"
	"sort"
	"sync"

	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
)

// memStore backs every in-memory repository so lookups across tables (wallet
// ownership for ledger listings) see one consistent state.
type memStore struct {
	mu      sync.RWMutex
	users   map[uuid.UUID]*domain.User
	wallets map[uuid.UUID]*domain.Wallet
	entries map[uuid.UUID]*domain.LedgerEntry
	idemp   map[string]*domain.IdempotencyLog
	audit   []domain.AuditLogEntry
}

func newMemStore() *memStore {
	return &memStore{
		users:   make(map[uuid.UUID]*domain.User),
		wallets: make(map[uuid.UUID]*domain.Wallet),
		entries: make(map[uuid.UUID]*domain.LedgerEntry),
		idemp:   make(map[string]*domain.IdempotencyLog),
	}
}

// --- Users ---

type memUserRepo struct{ s *memStore }

func (r memUserRepo) Create(_ context.Context, _ pgx.Tx, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Username == u.Username {
			return domain.ErrDuplicateKey
		}
	}
	cp := *u
	r.s.users[u.ID] = &cp
	return nil
}

func (r memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if u, ok := r.s.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (r memUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, u := range r.s.users {
		if u.Username == username {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memUserRepo) GetByUsernameTx(ctx context.Context, _ pgx.Tx, username string) (*domain.User, error) {
	return r.GetByUsername(ctx, username)
}

func (r memUserRepo) List(_ context.Context) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.User, 0, len(r.s.users))
	for _, u := range r.s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Username < out[j].Username })
	return out, nil
}

// --- Wallets ---

type memWalletRepo struct{ s *memStore }

func (r memWalletRepo) Create(_ context.Context, _ pgx.Tx, w *domain.Wallet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.wallets {
		if existing.PubKey == w.PubKey {
			return domain.ErrDuplicateKey
		}
	}
	cp := *w
	r.s.wallets[w.ID] = &cp
	return nil
}

func (r memWalletRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if w, ok := r.s.wallets[id]; ok {
		cp := *w
		return &cp, nil
	}
	return nil, nil
}

func (r memWalletRepo) ListByUser(_ context.Context, userID uuid.UUID) ([]domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.s.walletsOf(userID), nil
}

func (r memWalletRepo) GetDefault(_ context.Context, _ pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	wallets := r.s.walletsOf(userID)
	for i := range wallets {
		if domain.IsDefaultWalletName(wallets[i].Name) {
			return &wallets[i], nil
		}
	}
	if len(wallets) == 0 {
		return nil, nil
	}
	return &wallets[0], nil
}

func (r memWalletRepo) GetByUserAndName(_ context.Context, _ pgx.Tx, userID uuid.UUID, name string) (*domain.Wallet, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, w := range r.s.walletsOf(userID) {
		if w.Name == name {
			return &w, nil
		}
	}
	return nil, nil
}

func (r memWalletRepo) Delete(_ context.Context, _ pgx.Tx, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, e := range r.s.entries {
		if e.FromWalletID == id || e.ToWalletID == id {
			return domain.ErrReferenced
		}
	}
	delete(r.s.wallets, id)
	return nil
}

// walletsOf returns userID's wallets oldest first. Caller holds mu.
func (s *memStore) walletsOf(userID uuid.UUID) []domain.Wallet {
	var out []domain.Wallet
	for _, w := range s.wallets {
		if w.UserID == userID {
			out = append(out, *w)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// --- Ledger ---

type memLedgerRepo struct{ s *memStore }

func (r memLedgerRepo) Create(_ context.Context, _ pgx.Tx, e *domain.LedgerEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.wallets[e.FromWalletID]; !ok {
		return domain.ErrReferenced
	}
	if _, ok := r.s.wallets[e.ToWalletID]; !ok {
		return domain.ErrReferenced
	}
	cp := *e
	r.s.entries[e.ID] = &cp
	return nil
}

func (r memLedgerRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.LedgerEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if e, ok := r.s.entries[id]; ok {
		cp := *e
		return &cp, nil
	}
	return nil, nil
}

func (r memLedgerRepo) GetByIDForUpdate(ctx context.Context, _ pgx.Tx, id uuid.UUID) (*domain.LedgerEntry, error) {
	return r.GetByID(ctx, id)
}

func (r memLedgerRepo) UpdateStatus(_ context.Context, _ pgx.Tx, id uuid.UUID, status domain.EntryStatus, blockID *uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if e, ok := r.s.entries[id]; ok {
		e.Status = status
		e.BlockID = blockID
	}
	return nil
}

func (r memLedgerRepo) ClearBlock(_ context.Context, _ pgx.Tx, blockID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, e := range r.s.entries {
		if e.BlockID != nil && *e.BlockID == blockID {
			e.BlockID = nil
			n++
		}
	}
	return n, nil
}

func (r memLedgerRepo) List(_ context.Context, params ports.LedgerListParams) ([]domain.LedgerEntry, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	owned := func(id uuid.UUID) bool {
		w, ok := r.s.wallets[id]
		return ok && w.UserID == params.OwnerID
	}
	var all []domain.LedgerEntry
	for _, e := range r.s.entries {
		if !owned(e.FromWalletID) && !owned(e.ToWalletID) {
			continue
		}
		if params.Status != nil && e.Status != *params.Status {
			continue
		}
		if params.WalletID != nil && e.FromWalletID != *params.WalletID && e.ToWalletID != *params.WalletID {
			continue
		}
		all = append(all, *e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := (params.Page - 1) * params.PageSize
	if start >= len(all) {
		return []domain.LedgerEntry{}, total, nil
	}
	end := min(start+params.PageSize, len(all))
	return all[start:end], total, nil
}

func (r memLedgerRepo) Totals(_ context.Context, walletID uuid.UUID, currency domain.Currency) (*domain.LedgerTotals, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t := &domain.LedgerTotals{
		IncomingConfirmed:     decimal.Zero,
		OutgoingConfirmed:     decimal.Zero,
		OutgoingConfirmedFees: decimal.Zero,
		OutgoingPending:       decimal.Zero,
		OutgoingPendingFees:   decimal.Zero,
	}
	for _, e := range r.s.entries {
		if e.Currency != currency {
			continue
		}
		if e.ToWalletID == walletID && e.Status == domain.EntryStatusConfirmed {
			t.IncomingConfirmed = t.IncomingConfirmed.Add(e.Amount)
		}
		if e.FromWalletID != walletID {
			continue
		}
		switch e.Status {
		case domain.EntryStatusConfirmed:
			t.OutgoingConfirmed = t.OutgoingConfirmed.Add(e.Amount)
			t.OutgoingConfirmedFees = t.OutgoingConfirmedFees.Add(e.Fee)
		case domain.EntryStatusPending:
			t.OutgoingPending = t.OutgoingPending.Add(e.Amount)
			t.OutgoingPendingFees = t.OutgoingPendingFees.Add(e.Fee)
		}
	}
	return t, nil
}

// entriesFrom counts the entries sent from walletID.
func (s *memStore) entriesFrom(walletID uuid.UUID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if e.FromWalletID == walletID {
			n++
		}
	}
	return n
}

// --- Idempotency ---

type memIdempotencyRepo struct{ s *memStore }

func (r memIdempotencyRepo) Create(_ context.Context, _ pgx.Tx, log *domain.IdempotencyLog) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.idemp[log.Key]; ok {
		return domain.ErrDuplicateKey
	}
	cp := *log
	r.s.idemp[log.Key] = &cp
	return nil
}

func (r memIdempotencyRepo) Get(_ context.Context, key string) (*domain.IdempotencyLog, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if l, ok := r.s.idemp[key]; ok {
		cp := *l
		return &cp, nil
	}
	return nil, nil
}

// --- Audit ---

type memAuditRepo struct{ s *memStore }

func (r memAuditRepo) Append(_ context.Context, _ pgx.Tx, entry *domain.AuditLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *entry)
	return nil
}

func (r memAuditRepo) GetByID(_ context.Context, id uuid.UUID) (*domain.AuditLogEntry, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for i := range r.s.audit {
		if r.s.audit[i].ID == id {
			cp := r.s.audit[i]
			return &cp, nil
		}
	}
	return nil, nil
}

func (r memAuditRepo) List(_ context.Context, params ports.AuditListParams) ([]domain.AuditLogEntry, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.AuditLogEntry
	for _, a := range r.s.audit {
		if params.ActorID != nil && (a.ActorID == nil || *a.ActorID != *params.ActorID) {
			continue
		}
		if params.Action != nil && a.Action != *params.Action {
			continue
		}
		out = append(out, a)
	}
	return out, int64(len(out)), nil
}

// --- Transactions and locks ---

type memTransactor struct{}

func (memTransactor) Begin(_ context.Context) (pgx.Tx, error) { return &memTx{}, nil }

// memLocker holds a mutex per key until the owning memTx ends, the way a
// transaction-scoped advisory lock behaves.
type memLocker struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newMemLocker() *memLocker {
	return &memLocker{locks: make(map[string]*sync.Mutex)}
}

func (l *memLocker) Lock(_ context.Context, tx pgx.Tx, key string) error {
	l.mu.Lock()
	m, ok := l.locks[key]
	if !ok {
		m = &sync.Mutex{}
		l.locks[key] = m
	}
	l.mu.Unlock()

	m.Lock()
	tx.(*memTx).onEnd = append(tx.(*memTx).onEnd, m.Unlock)
	return nil
}

// memTx writes straight through; ending it only releases held locks.
type memTx struct {
	once  sync.Once
	onEnd []func()
}

func (t *memTx) end() {
	t.once.Do(func() {
		for _, f := range t.onEnd {
			f()
		}
	})
}

func (t *memTx) Begin(_ context.Context) (pgx.Tx, error) { return t, nil }
func (t *memTx) Commit(_ context.Context) error          { t.end(); return nil }
func (t *memTx) Rollback(_ context.Context) error        { t.end(); return nil }
func (t *memTx) CopyFrom(_ context.Context, _ pgx.Identifier, _ []string, _ pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (t *memTx) SendBatch(_ context.Context, _ *pgx.Batch) pgx.BatchResults { return nil }
func (t *memTx) LargeObjects() pgx.LargeObjects                             { return pgx.LargeObjects{} }
func (t *memTx) Prepare(_ context.Context, _, _ string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (t *memTx) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, nil
}
func (t *memTx) Query(_ context.Context, _ string, _ ...any) (pgx.Rows, error) { return nil, nil }
func (t *memTx) QueryRow(_ context.Context, _ string, _ ...any) pgx.Row      { return nil }
func (t *memTx) Conn() *pgx.Conn                                             { return nil }
