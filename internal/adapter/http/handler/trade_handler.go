package handler

import (
	"context"

	"cryptosim/internal/adapter/http/dto"
	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// TradeHandler handles trade request endpoints.
type TradeHandler struct {
	tradeSvc ports.TradeService
}

// NewTradeHandler creates a new TradeHandler.
func NewTradeHandler(tradeSvc ports.TradeService) *TradeHandler {
	return &TradeHandler{tradeSvc: tradeSvc}
}

// Create handles POST /api/v1/trade-requests.
func (h *TradeHandler) Create(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	var req dto.CreateTradeRequest
	if !bindJSON(c, &req) {
		return
	}

	in, err := toCreateTradeRequest(p, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	tr, err := h.tradeSvc.Create(c.Request.Context(), in)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toTradeResponse(tr))
}

func toCreateTradeRequest(p ports.Principal, req dto.CreateTradeRequest) (ports.CreateTradeRequest, error) {
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		return ports.CreateTradeRequest{}, err
	}
	fee, err := parseAmount(req.Fee, "fee")
	if err != nil {
		return ports.CreateTradeRequest{}, err
	}
	out := ports.CreateTradeRequest{
		Caller:               p,
		CounterpartyUsername: req.CounterpartyUsername,
		Side:                 req.Side,
		Amount:               amount,
		Fee:                  fee,
		Currency:             req.Currency,
	}
	if req.CounterpartyID != nil {
		id, err := parseUUID(*req.CounterpartyID, "counterparty_id")
		if err != nil {
			return ports.CreateTradeRequest{}, err
		}
		out.CounterpartyID = &id
	}
	return out, nil
}

// List handles GET /api/v1/trade-requests.
func (h *TradeHandler) List(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	var q dto.TradeListQuery
	if !bindQuery(c, &q) {
		return
	}

	params := ports.TradeListParams{UserID: p.UserID, Scope: domain.TradeScope(q.Scope)}
	if q.Status != "" {
		status := domain.TradeStatus(q.Status)
		params.Status = &status
	}
	requests, err := h.tradeSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, mapSlice(requests, toTradeResponse))
}

// Get handles GET /api/v1/trade-requests/:id.
func (h *TradeHandler) Get(c *gin.Context) {
	h.byID(c, h.tradeSvc.Get)
}

// Approve handles POST /api/v1/trade-requests/:id/approve.
func (h *TradeHandler) Approve(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	approval, err := h.tradeSvc.Approve(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.TradeApprovalResponse{
		Request: toTradeResponse(approval.Request),
		Entry:   toEntryResponse(approval.Entry),
	})
}

// Reject handles POST /api/v1/trade-requests/:id/reject.
func (h *TradeHandler) Reject(c *gin.Context) {
	h.byID(c, h.tradeSvc.Reject)
}

// Cancel handles POST /api/v1/trade-requests/:id/cancel.
func (h *TradeHandler) Cancel(c *gin.Context) {
	h.byID(c, h.tradeSvc.Cancel)
}

type tradeFunc func(ctx context.Context, caller ports.Principal, id uuid.UUID) (*domain.TradeRequest, error)

// byID runs op on the :id request and renders the result.
func (h *TradeHandler) byID(c *gin.Context, op tradeFunc) {
	p, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	tr, err := op(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toTradeResponse(tr))
}
