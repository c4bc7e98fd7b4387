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

const auditColumns = `id, actor_id, action, payload, created_at`

// AuditRepo implements ports.AuditRepository.
type AuditRepo struct {
	pool Pool
}

// NewAuditRepo creates a new AuditRepo.
func NewAuditRepo(pool Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Append inserts entry. Inside a transaction the insert runs under a
// savepoint so that a failed write leaves tx usable for the caller's commit.
func (r *AuditRepo) Append(ctx context.Context, tx pgx.Tx, entry *domain.AuditLogEntry) error {
	query := `INSERT INTO audit_logs (` + auditColumns + `) VALUES ($1, $2, $3, $4, $5)`
	args := []any{entry.ID, entry.ActorID, string(entry.Action), []byte(entry.Payload), entry.CreatedAt}

	if tx == nil {
		if _, err := r.pool.Exec(ctx, query, args...); err != nil {
			return translate("insert audit log", err)
		}
		return nil
	}

	if _, err := tx.Exec(ctx, `SAVEPOINT audit_append`); err != nil {
		return fmt.Errorf("audit savepoint: %w", err)
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		if _, rbErr := tx.Exec(ctx, `ROLLBACK TO SAVEPOINT audit_append`); rbErr != nil {
			return errors.Join(translate("insert audit log", err), fmt.Errorf("rollback audit savepoint: %w", rbErr))
		}
		return translate("insert audit log", err)
	}
	if _, err := tx.Exec(ctx, `RELEASE SAVEPOINT audit_append`); err != nil {
		return fmt.Errorf("release audit savepoint: %w", err)
	}
	return nil
}

func (r *AuditRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.AuditLogEntry, error) {
	a := &domain.AuditLogEntry{}
	var payload []byte
	err := r.pool.QueryRow(ctx, `SELECT `+auditColumns+` FROM audit_logs WHERE id = $1`, id).
		Scan(&a.ID, &a.ActorID, &a.Action, &payload, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get audit log: %w", err)
	}
	a.Payload = payload
	return a, nil
}

// List returns a page of entries, newest first, with the total match count.
func (r *AuditRepo) List(ctx context.Context, params ports.AuditListParams) ([]domain.AuditLogEntry, int64, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if params.ActorID != nil {
		conditions = append(conditions, fmt.Sprintf("actor_id = $%d", argIdx))
		args = append(args, *params.ActorID)
		argIdx++
	}
	if params.Action != nil {
		conditions = append(conditions, fmt.Sprintf("action = $%d", argIdx))
		args = append(args, string(*params.Action))
		argIdx++
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_logs "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count audit logs: %w", err)
	}

	offset := (params.Page - 1) * params.PageSize
	dataQuery := fmt.Sprintf(`SELECT %s FROM audit_logs %s
		ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d`, auditColumns, where, argIdx, argIdx+1)
	args = append(args, params.PageSize, offset)

	rows, err := r.pool.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditLogEntry
	for rows.Next() {
		var a domain.AuditLogEntry
		var payload []byte
		if err := rows.Scan(&a.ID, &a.ActorID, &a.Action, &payload, &a.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan audit log row: %w", err)
		}
		a.Payload = payload
		entries = append(entries, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate audit log rows: %w", err)
	}
	return entries, total, nil
}
