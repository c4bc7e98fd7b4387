package handler

import (
	"context"
	"strings"

	"cryptosim/internal/adapter/http/dto"
	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/pkg/apperror"
	"cryptosim/pkg/response"

	"github.com/gin-gonic/gin"
)

const (
	// HeaderIdempotencyKey makes a transfer safe to retry.
	HeaderIdempotencyKey = "Idempotency-Key"

	maxIdempotencyKeyLength = 255
)

// LedgerHandler handles transaction endpoints.
type LedgerHandler struct {
	ledgerSvc ports.LedgerService
}

// NewLedgerHandler creates a new LedgerHandler.
func NewLedgerHandler(ledgerSvc ports.LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgerSvc: ledgerSvc}
}

// Transfer handles POST /api/v1/transactions.
func (h *LedgerHandler) Transfer(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	idemKey := strings.TrimSpace(c.GetHeader(HeaderIdempotencyKey))
	if len(idemKey) > maxIdempotencyKeyLength {
		response.Error(c, apperror.Validation("Idempotency-Key is too long"))
		return
	}

	var req dto.TransferRequest
	if !bindJSON(c, &req) {
		return
	}

	transfer, err := toTransferRequest(p, req, idemKey)
	if err != nil {
		response.Error(c, err)
		return
	}

	entry, err := h.ledgerSvc.Transfer(c.Request.Context(), transfer)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toEntryResponse(entry))
}

func toTransferRequest(p ports.Principal, req dto.TransferRequest, idemKey string) (ports.TransferRequest, error) {
	from, err := parseUUID(req.FromWalletID, "from_wallet_id")
	if err != nil {
		return ports.TransferRequest{}, err
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		return ports.TransferRequest{}, err
	}
	fee, err := parseAmount(req.Fee, "fee")
	if err != nil {
		return ports.TransferRequest{}, err
	}

	out := ports.TransferRequest{
		Caller:         p,
		FromWalletID:   from,
		ToUsername:     req.ToUsername,
		Amount:         amount,
		Fee:            fee,
		Currency:       req.Currency,
		IdempotencyKey: idemKey,
	}
	if req.ToWalletID != nil {
		to, err := parseUUID(*req.ToWalletID, "to_wallet_id")
		if err != nil {
			return ports.TransferRequest{}, err
		}
		out.ToWalletID = &to
	}
	return out, nil
}

// List handles GET /api/v1/transactions.
func (h *LedgerHandler) List(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	var q dto.EntryListQuery
	if !bindQuery(c, &q) {
		return
	}

	page, pageSize := q.Normalize()
	params := ports.LedgerListParams{OwnerID: p.UserID, Page: page, PageSize: pageSize}
	if q.Status != "" {
		status := domain.EntryStatus(q.Status)
		params.Status = &status
	}
	if q.WalletID != "" {
		id, err := parseUUID(q.WalletID, "wallet_id")
		if err != nil {
			response.Error(c, err)
			return
		}
		params.WalletID = &id
	}

	entries, total, err := h.ledgerSvc.List(c.Request.Context(), params)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Page(c, mapSlice(entries, toEntryResponse), page, pageSize, total)
}

// Get handles GET /api/v1/transactions/:id.
func (h *LedgerHandler) Get(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	entry, err := h.ledgerSvc.Get(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toEntryResponse(entry))
}

// Confirm handles POST /api/v1/transactions/:id/confirm.
func (h *LedgerHandler) Confirm(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.ConfirmRequest
	if !bindJSON(c, &req) {
		return
	}
	blockID, err := parseUUID(req.BlockID, "block_id")
	if err != nil {
		response.Error(c, err)
		return
	}

	entry, err := h.ledgerSvc.Confirm(c.Request.Context(), p, id, &blockID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toEntryResponse(entry))
}

// Fail handles POST /api/v1/transactions/:id/fail.
func (h *LedgerHandler) Fail(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	entry, err := h.ledgerSvc.Fail(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toEntryResponse(entry))
}

// Buy handles POST /api/v1/transactions/buy.
func (h *LedgerHandler) Buy(c *gin.Context) {
	h.marketOrder(c, h.ledgerSvc.Buy)
}

// Sell handles POST /api/v1/transactions/sell.
func (h *LedgerHandler) Sell(c *gin.Context) {
	h.marketOrder(c, h.ledgerSvc.Sell)
}

type orderFunc func(ctx context.Context, order ports.MarketOrder) (*domain.LedgerEntry, error)

func (h *LedgerHandler) marketOrder(c *gin.Context, place orderFunc) {
	p, ok := caller(c)
	if !ok {
		return
	}
	var req dto.MarketOrderRequest
	if !bindJSON(c, &req) {
		return
	}

	order, err := toMarketOrder(p, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	entry, err := place(c.Request.Context(), order)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toEntryResponse(entry))
}

func toMarketOrder(p ports.Principal, req dto.MarketOrderRequest) (ports.MarketOrder, error) {
	walletID, err := parseUUID(req.WalletID, "wallet_id")
	if err != nil {
		return ports.MarketOrder{}, err
	}
	amount, err := parseAmount(req.Amount, "amount")
	if err != nil {
		return ports.MarketOrder{}, err
	}
	order := ports.MarketOrder{
		Caller:    p,
		WalletID:  walletID,
		Amount:    amount,
		Currency:  req.Currency,
		Method:    req.Method,
		Reference: req.Reference,
	}
	if req.Fee != nil {
		fee, err := parseAmount(*req.Fee, "fee")
		if err != nil {
			return ports.MarketOrder{}, err
		}
		order.Fee = &fee
	}
	return order, nil
}
