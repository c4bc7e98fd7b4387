package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"cryptosim/internal/adapter/http/dto"
	"cryptosim/internal/adapter/http/middleware"
	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/pkg/apperror"
	"cryptosim/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// bindJSON decodes and sanitizes the body into req, writing the error
// response itself on failure.
func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(c, apperror.ErrPayloadTooLarge())
			return false
		}
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	dto.SanitizeStruct(req)
	return true
}

func bindQuery(c *gin.Context, q interface{}) bool {
	if err := c.ShouldBindQuery(q); err != nil {
		response.Error(c, apperror.Validation(err.Error()))
		return false
	}
	return true
}

// caller returns the principal set by JWTAuth.
func caller(c *gin.Context) (ports.Principal, bool) {
	p, ok := middleware.Principal(c)
	if !ok {
		response.Error(c, apperror.ErrInvalidToken())
	}
	return p, ok
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.Error(c, apperror.Validation("invalid "+name))
		return uuid.Nil, false
	}
	return id, true
}

func parseUUID(s, field string) (uuid.UUID, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperror.Validation("invalid " + field)
	}
	return id, nil
}

func parseAmount(s, field string) (decimal.Decimal, error) {
	d, err := dto.ParseAmount(s)
	if err != nil {
		return decimal.Zero, apperror.Validation("invalid " + field)
	}
	return d, nil
}

func ts(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func money(d decimal.Decimal) string {
	return d.StringFixed(domain.AmountScale)
}

func optionalDecimal(d decimal.NullDecimal, places int32) *string {
	if !d.Valid {
		return nil
	}
	s := d.Decimal.StringFixed(places)
	return &s
}

func toUserResponse(u *domain.User) dto.UserResponse {
	return dto.UserResponse{
		ID:        u.ID.String(),
		Username:  u.Username,
		Email:     u.Email,
		IsStaff:   u.IsStaff,
		CreatedAt: ts(u.CreatedAt),
	}
}

func toWalletResponse(w *domain.Wallet) dto.WalletResponse {
	return dto.WalletResponse{
		ID:        w.ID.String(),
		Name:      w.Name,
		PubKey:    w.PubKey,
		CreatedAt: ts(w.CreatedAt),
	}
}

func toEntryResponse(e *domain.LedgerEntry) dto.EntryResponse {
	resp := dto.EntryResponse{
		ID:           e.ID.String(),
		FromWalletID: e.FromWalletID.String(),
		ToWalletID:   e.ToWalletID.String(),
		Amount:       money(e.Amount),
		Fee:          money(e.Fee),
		Currency:     string(e.Currency),
		TxHash:       e.TxHash,
		Status:       string(e.Status),
		CreatedAt:    ts(e.CreatedAt),
	}
	if e.BlockID != nil {
		s := e.BlockID.String()
		resp.BlockID = &s
	}
	return resp
}

func toBlockResponse(b *domain.Block) dto.BlockResponse {
	return dto.BlockResponse{
		ID:         b.ID.String(),
		Height:     b.Height,
		PrevHash:   b.PrevHash,
		MerkleRoot: b.MerkleRoot,
		Nonce:      b.Nonce,
		Hash:       b.Hash,
		MinedAt:    ts(b.MinedAt),
	}
}

func toRewardResponse(r *domain.MiningReward) dto.RewardResponse {
	return dto.RewardResponse{
		ID:          r.ID.String(),
		BlockHeight: r.BlockHeight,
		BlockHash:   r.BlockHash,
		AmountBTC:   r.AmountBTC.StringFixed(domain.BTCScale),
		CreatedAt:   ts(r.CreatedAt),
	}
}

func toTradeResponse(t *domain.TradeRequest) dto.TradeRequestResponse {
	return dto.TradeRequestResponse{
		ID:             t.ID.String(),
		RequesterID:    t.RequesterID.String(),
		CounterpartyID: t.CounterpartyID.String(),
		Side:           string(t.Side),
		Amount:         money(t.Amount),
		Fee:            money(t.Fee),
		Currency:       string(t.Currency),
		Token:          t.Token,
		Status:         string(t.Status),
		CreatedAt:      ts(t.CreatedAt),
	}
}

func toAuditResponse(a *domain.AuditLogEntry) dto.AuditLogResponse {
	resp := dto.AuditLogResponse{
		ID:        a.ID.String(),
		Action:    string(a.Action),
		Payload:   json.RawMessage(`{}`),
		CreatedAt: ts(a.CreatedAt),
	}
	if a.ActorID != nil {
		s := a.ActorID.String()
		resp.ActorID = &s
	}
	switch {
	case len(a.Payload) == 0:
	case json.Valid(a.Payload):
		resp.Payload = a.Payload
	default:
		// Surface undecodable bytes as a string rather than drop them.
		raw, _ := json.Marshal(string(a.Payload))
		resp.Payload = raw
	}
	return resp
}

func toPriceResponse(p *domain.PriceTick) dto.PriceTickResponse {
	return dto.PriceTickResponse{
		ID:        p.ID.String(),
		TS:        ts(p.TS),
		PriceUSD:  money(p.PriceUSD),
		PriceBTC:  optionalDecimal(p.PriceBTC, domain.BTCScale),
		VolumeSIM: optionalDecimal(p.VolumeSIM, domain.AmountScale),
		Notes:     p.Notes,
		CreatedAt: ts(p.CreatedAt),
	}
}

// mapSlice converts each element of in with f.
func mapSlice[T, R any](in []T, f func(*T) R) []R {
	out := make([]R, 0, len(in))
	for i := range in {
		out = append(out, f(&in[i]))
	}
	return out
}
