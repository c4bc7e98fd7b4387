package handler

import (
	"time"

	"cryptosim/internal/adapter/http/dto"
	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/pkg/apperror"
	"cryptosim/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// PriceHandler handles the price feed endpoints.
type PriceHandler struct {
	priceSvc ports.PriceService
}

// NewPriceHandler creates a new PriceHandler.
func NewPriceHandler(priceSvc ports.PriceService) *PriceHandler {
	return &PriceHandler{priceSvc: priceSvc}
}

// List handles GET /api/v1/prices.
func (h *PriceHandler) List(c *gin.Context) {
	var q dto.PriceListQuery
	if !bindQuery(c, &q) {
		return
	}
	ticks, err := h.priceSvc.List(c.Request.Context(), q.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, mapSlice(ticks, toPriceResponse))
}

// Latest handles GET /api/v1/prices/latest.
func (h *PriceHandler) Latest(c *gin.Context) {
	tick, err := h.priceSvc.Latest(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toPriceResponse(tick))
}

// Get handles GET /api/v1/prices/:id.
func (h *PriceHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	tick, err := h.priceSvc.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toPriceResponse(tick))
}

// Create handles POST /api/v1/prices.
func (h *PriceHandler) Create(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	var req dto.PriceTickRequest
	if !bindJSON(c, &req) {
		return
	}
	tick, err := toPriceTick(req)
	if err != nil {
		response.Error(c, err)
		return
	}

	created, err := h.priceSvc.Create(c.Request.Context(), p, tick)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toPriceResponse(created))
}

// Update handles PUT /api/v1/prices/:id.
func (h *PriceHandler) Update(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req dto.PriceTickRequest
	if !bindJSON(c, &req) {
		return
	}
	tick, err := toPriceTick(req)
	if err != nil {
		response.Error(c, err)
		return
	}
	tick.ID = id

	updated, err := h.priceSvc.Update(c.Request.Context(), p, tick)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toPriceResponse(updated))
}

// Delete handles DELETE /api/v1/prices/:id.
func (h *PriceHandler) Delete(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.priceSvc.Delete(c.Request.Context(), p, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": id.String(), "deleted": true})
}

func toPriceTick(req dto.PriceTickRequest) (*domain.PriceTick, error) {
	usd, err := parseAmount(req.PriceUSD, "price_usd")
	if err != nil {
		return nil, err
	}
	tick := &domain.PriceTick{PriceUSD: usd, Notes: req.Notes}
	if req.TS != nil {
		t, err := time.Parse(time.RFC3339, *req.TS)
		if err != nil {
			return nil, apperror.Validation("invalid ts")
		}
		tick.TS = t.UTC()
	}
	if tick.PriceBTC, err = optionalAmount(req.PriceBTC, "price_btc"); err != nil {
		return nil, err
	}
	if tick.VolumeSIM, err = optionalAmount(req.VolumeSIM, "volume_sim"); err != nil {
		return nil, err
	}
	return tick, nil
}

func optionalAmount(s *string, field string) (decimal.NullDecimal, error) {
	if s == nil {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseAmount(*s, field)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
