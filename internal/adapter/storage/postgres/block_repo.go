package postgres

import (
	"context"
	"errors"
	"fmt"

	"cryptosim/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const blockColumns = `id, height, prev_hash, merkle_root, nonce, hash, mined_at`

// BlockRepo implements ports.BlockRepository.
type BlockRepo struct {
	pool Pool
}

// NewBlockRepo creates a new BlockRepo.
func NewBlockRepo(pool Pool) *BlockRepo {
	return &BlockRepo{pool: pool}
}

// Create appends a block. A height collision surfaces as domain.ErrDuplicateKey.
func (r *BlockRepo) Create(ctx context.Context, tx pgx.Tx, b *domain.Block) error {
	_, err := pick(r.pool, tx).Exec(ctx,
		`INSERT INTO blocks (`+blockColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.Height, b.PrevHash, b.MerkleRoot, b.Nonce, b.Hash, b.MinedAt,
	)
	if err != nil {
		return translate("insert block", err)
	}
	return nil
}

// Tip returns the highest block, or nil on an empty chain.
func (r *BlockRepo) Tip(ctx context.Context, tx pgx.Tx) (*domain.Block, error) {
	return scanBlock(pick(r.pool, tx).QueryRow(ctx,
		`SELECT `+blockColumns+` FROM blocks ORDER BY height DESC LIMIT 1`), "get chain tip")
}

// GetByID fetches a block without locking.
func (r *BlockRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Block, error) {
	return scanBlock(r.pool.QueryRow(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE id = $1`, id), "get block")
}

// GetByIDForUpdate fetches a block and row-locks it until tx ends.
func (r *BlockRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.Block, error) {
	return scanBlock(tx.QueryRow(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE id = $1 FOR UPDATE`, id), "get block for update")
}

// List returns the chain from the tip down.
func (r *BlockRepo) List(ctx context.Context) ([]domain.Block, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+blockColumns+` FROM blocks ORDER BY height DESC`)
	if err != nil {
		return nil, fmt.Errorf("list blocks: %w", err)
	}
	defer rows.Close()

	var blocks []domain.Block
	for rows.Next() {
		var b domain.Block
		if err := rows.Scan(&b.ID, &b.Height, &b.PrevHash, &b.MerkleRoot, &b.Nonce, &b.Hash, &b.MinedAt); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		blocks = append(blocks, b)
	}
	return blocks, rows.Err()
}

// Delete removes a block. A block still referenced by entries surfaces as
// domain.ErrReferenced.
func (r *BlockRepo) Delete(ctx context.Context, tx pgx.Tx, id uuid.UUID) error {
	tag, err := pick(r.pool, tx).Exec(ctx, `DELETE FROM blocks WHERE id = $1`, id)
	if err != nil {
		return translate("delete block", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("block not found: %s", id)
	}
	return nil
}

func scanBlock(row pgx.Row, op string) (*domain.Block, error) {
	b := &domain.Block{}
	err := row.Scan(&b.ID, &b.Height, &b.PrevHash, &b.MerkleRoot, &b.Nonce, &b.Hash, &b.MinedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, translate(op, err)
	}
	return b, nil
}
