package postgres

import (
	"context"
	"errors"
	"fmt"

	"cryptosim/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const priceColumns = `id, ts, price_usd, price_btc, volume_sim, notes, created_at`

// PriceRepo implements ports.PriceTickRepository.
type PriceRepo struct {
	pool Pool
}

// NewPriceRepo creates a new PriceRepo.
func NewPriceRepo(pool Pool) *PriceRepo {
	return &PriceRepo{pool: pool}
}

func (r *PriceRepo) Create(ctx context.Context, p *domain.PriceTick) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO price_ticks (`+priceColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.TS, p.PriceUSD, p.PriceBTC, p.VolumeSIM, p.Notes, p.CreatedAt,
	)
	if err != nil {
		return translate("insert price tick", err)
	}
	return nil
}

// Update overwrites the mutable fields. It reports false when id is unknown.
func (r *PriceRepo) Update(ctx context.Context, p *domain.PriceTick) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE price_ticks SET ts = $1, price_usd = $2, price_btc = $3, volume_sim = $4, notes = $5
		 WHERE id = $6`,
		p.TS, p.PriceUSD, p.PriceBTC, p.VolumeSIM, p.Notes, p.ID,
	)
	if err != nil {
		return false, translate("update price tick", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Delete reports false when id is unknown.
func (r *PriceRepo) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM price_ticks WHERE id = $1`, id)
	if err != nil {
		return false, translate("delete price tick", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *PriceRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PriceTick, error) {
	return scanPrice(r.pool.QueryRow(ctx,
		`SELECT `+priceColumns+` FROM price_ticks WHERE id = $1`, id), "get price tick")
}

// Latest returns the tick with the newest ts, or nil when there are none.
func (r *PriceRepo) Latest(ctx context.Context) (*domain.PriceTick, error) {
	return scanPrice(r.pool.QueryRow(ctx,
		`SELECT `+priceColumns+` FROM price_ticks ORDER BY ts DESC, created_at DESC LIMIT 1`), "get latest price tick")
}

// List returns up to limit ticks, newest first.
func (r *PriceRepo) List(ctx context.Context, limit int) ([]domain.PriceTick, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+priceColumns+` FROM price_ticks ORDER BY ts DESC, created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list price ticks: %w", err)
	}
	defer rows.Close()

	var ticks []domain.PriceTick
	for rows.Next() {
		var p domain.PriceTick
		if err := rows.Scan(&p.ID, &p.TS, &p.PriceUSD, &p.PriceBTC, &p.VolumeSIM, &p.Notes, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan price tick: %w", err)
		}
		ticks = append(ticks, p)
	}
	return ticks, rows.Err()
}

func scanPrice(row pgx.Row, op string) (*domain.PriceTick, error) {
	p := &domain.PriceTick{}
	err := row.Scan(&p.ID, &p.TS, &p.PriceUSD, &p.PriceBTC, &p.VolumeSIM, &p.Notes, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}
