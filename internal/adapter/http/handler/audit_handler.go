package handler

import (
	"strings"

	"cryptosim/internal/adapter/http/dto"
	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuditHandler exposes the audit log.
type AuditHandler struct {
	auditSvc ports.AuditService
}

// NewAuditHandler creates a new AuditHandler.
func NewAuditHandler(auditSvc ports.AuditService) *AuditHandler {
	return &AuditHandler{auditSvc: auditSvc}
}

// List handles GET /api/v1/audit-logs. Non-staff callers see only their own
// entries.
func (h *AuditHandler) List(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	var q dto.AuditListQuery
	if !bindQuery(c, &q) {
		return
	}

	page, pageSize := q.Normalize()
	params := ports.AuditListParams{Page: page, PageSize: pageSize}
	if action := strings.ToUpper(strings.TrimSpace(q.Action)); action != "" {
		a := domain.AuditAction(action)
		params.Action = &a
	}

	entries, total, err := h.auditSvc.List(c.Request.Context(), p, params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, mapSlice(entries, toAuditResponse), page, pageSize, total)
}

// Get handles GET /api/v1/audit-logs/:id.
func (h *AuditHandler) Get(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	entry, err := h.auditSvc.Get(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toAuditResponse(entry))
}
