package service

import (
	"context"

	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type auditService struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

// NewAuditService creates the audit log service.
func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) ports.AuditService {
	return &auditService{repo: repo, log: log}
}

// Record appends an audit entry inside tx. A failed write is logged and
// swallowed so the primary action can still commit.
func (s *auditService) Record(ctx context.Context, tx pgx.Tx, actor *uuid.UUID, action domain.AuditAction, payload map[string]any) {
	entry, err := domain.NewAuditLogEntry(actor, action, payload)
	if err != nil {
		s.log.Warn().Err(err).Str("action", string(action)).Msg("failed to encode audit payload")
		return
	}

	if err := s.repo.Append(ctx, tx, entry); err != nil {
		s.log.Warn().Err(err).Str("action", string(action)).Msg("failed to persist audit log")
		return
	}

	ev := s.log.Debug().Str("audit_id", entry.ID.String()).Str("action", string(action))
	if actor != nil {
		ev = ev.Str("actor_id", actor.String())
	}
	ev.Msg("audit")
}

// List returns a page of audit entries. Non-staff callers only see their own.
func (s *auditService) List(ctx context.Context, caller ports.Principal, params ports.AuditListParams) ([]domain.AuditLogEntry, int64, error) {
	if !caller.IsStaff {
		params.ActorID = &caller.UserID
	}
	params.Page, params.PageSize = normalizePage(params.Page, params.PageSize)

	entries, total, err := s.repo.List(ctx, params)
	if err != nil {
		return nil, 0, storeError("list audit logs", err)
	}
	return entries, total, nil
}

// Get returns one entry. Entries outside the caller's scope are reported as
// missing.
func (s *auditService) Get(ctx context.Context, caller ports.Principal, id uuid.UUID) (*domain.AuditLogEntry, error) {
	entry, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeError("get audit log", err)
	}
	if entry == nil {
		return nil, apperror.ErrNotFound("audit log")
	}
	if !caller.IsStaff && (entry.ActorID == nil || *entry.ActorID != caller.UserID) {
		return nil, apperror.ErrNotFound("audit log")
	}
	return entry, nil
}
