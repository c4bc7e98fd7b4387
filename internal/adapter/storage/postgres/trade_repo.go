package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const tradeColumns = `id, requester_id, counterparty_id, side, amount, fee, currency, token, status, created_at`

// TradeRepo implements ports.TradeRequestRepository.
type TradeRepo struct {
	pool Pool
}

// NewTradeRepo creates a new TradeRepo.
func NewTradeRepo(pool Pool) *TradeRepo {
	return &TradeRepo{pool: pool}
}

// Create inserts a trade request. A repeated token surfaces as
// domain.ErrDuplicateKey.
func (r *TradeRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.TradeRequest) error {
	_, err := pick(r.pool, tx).Exec(ctx,
		`INSERT INTO trade_requests (`+tradeColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID, t.RequesterID, t.CounterpartyID, string(t.Side), t.Amount, t.Fee,
		string(t.Currency), t.Token, string(t.Status), t.CreatedAt,
	)
	if err != nil {
		return translate("insert trade request", err)
	}
	return nil
}

func (r *TradeRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.TradeRequest, error) {
	return scanTrade(r.pool.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trade_requests WHERE id = $1`, id), "get trade request")
}

// GetByIDForUpdate serialises decisions on one request.
func (r *TradeRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.TradeRequest, error) {
	return scanTrade(tx.QueryRow(ctx,
		`SELECT `+tradeColumns+` FROM trade_requests WHERE id = $1 FOR UPDATE`, id), "get trade request for update")
}

func (r *TradeRepo) UpdateStatus(ctx context.Context, tx pgx.Tx, id uuid.UUID, status domain.TradeStatus) error {
	tag, err := tx.Exec(ctx, `UPDATE trade_requests SET status = $1 WHERE id = $2`, string(status), id)
	if err != nil {
		return translate("update trade request status", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("trade request not found: %s", id)
	}
	return nil
}

// List returns the user's requests in the given scope, newest first.
func (r *TradeRepo) List(ctx context.Context, params ports.TradeListParams) ([]domain.TradeRequest, error) {
	var conditions []string
	args := []any{params.UserID}

	switch params.Scope {
	case domain.TradeScopeIncoming:
		conditions = append(conditions, "counterparty_id = $1")
	case domain.TradeScopeOutgoing:
		conditions = append(conditions, "requester_id = $1")
	default:
		conditions = append(conditions, "(requester_id = $1 OR counterparty_id = $1)")
	}
	if params.Status != nil {
		conditions = append(conditions, "status = $2")
		args = append(args, string(*params.Status))
	}

	query := `SELECT ` + tradeColumns + ` FROM trade_requests WHERE ` +
		strings.Join(conditions, " AND ") + ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trade requests: %w", err)
	}
	defer rows.Close()

	var out []domain.TradeRequest
	for rows.Next() {
		var t domain.TradeRequest
		if err := rows.Scan(
			&t.ID, &t.RequesterID, &t.CounterpartyID, &t.Side, &t.Amount, &t.Fee,
			&t.Currency, &t.Token, &t.Status, &t.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan trade request: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func scanTrade(row pgx.Row, op string) (*domain.TradeRequest, error) {
	t := &domain.TradeRequest{}
	err := row.Scan(
		&t.ID, &t.RequesterID, &t.CounterpartyID, &t.Side, &t.Amount, &t.Fee,
		&t.Currency, &t.Token, &t.Status, &t.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, translate(op, err)
	}
	return t, nil
}
