package handler

import (
	"strings"

	"cryptosim/internal/adapter/http/dto"
	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/pkg/response"

	"github.com/gin-gonic/gin"
)

// WalletHandler handles wallet-related endpoints.
type WalletHandler struct {
	walletSvc ports.WalletService
}

// NewWalletHandler creates a new WalletHandler.
func NewWalletHandler(walletSvc ports.WalletService) *WalletHandler {
	return &WalletHandler{walletSvc: walletSvc}
}

// List handles GET /api/v1/wallets.
func (h *WalletHandler) List(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	wallets, err := h.walletSvc.List(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, mapSlice(wallets, toWalletResponse))
}

// Create handles POST /api/v1/wallets.
func (h *WalletHandler) Create(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	var req dto.CreateWalletRequest
	if !bindJSON(c, &req) {
		return
	}

	wallet, err := h.walletSvc.Create(c.Request.Context(), p, req.Name)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toWalletResponse(wallet))
}

// Get handles GET /api/v1/wallets/:id.
func (h *WalletHandler) Get(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	wallet, err := h.walletSvc.Get(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toWalletResponse(wallet))
}

// Delete handles DELETE /api/v1/wallets/:id.
func (h *WalletHandler) Delete(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.walletSvc.Delete(c.Request.Context(), p, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": id.String(), "deleted": true})
}

// Balance handles GET /api/v1/wallets/:id/balance?currency=.
func (h *WalletHandler) Balance(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	currency := strings.ToUpper(strings.TrimSpace(c.Query("currency")))
	if currency == "" {
		currency = string(domain.CurrencySIM)
	}
	balance, err := h.walletSvc.Balance(c.Request.Context(), p, id, currency)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.BalanceResponse{
		WalletID: id.String(),
		Currency: currency,
		Balance:  money(balance),
	})
}

// Balances handles GET /api/v1/wallets/:id/balances.
func (h *WalletHandler) Balances(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	balances, err := h.walletSvc.Balances(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	resp := dto.BalancesResponse{WalletID: id.String(), Balances: make(map[string]string, len(balances))}
	for cur, bal := range balances {
		resp.Balances[string(cur)] = money(bal)
	}
	response.OK(c, resp)
}
