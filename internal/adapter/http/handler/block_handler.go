package handler

import (
	"cryptosim/internal/adapter/http/dto"
	"cryptosim/internal/core/domain"
	"cryptosim/internal/core/ports"
	"cryptosim/pkg/response"

	"github.com/gin-gonic/gin"
)

// BlockHandler handles the chain and mining endpoints.
type BlockHandler struct {
	miningSvc ports.MiningService
}

// NewBlockHandler creates a new BlockHandler.
func NewBlockHandler(miningSvc ports.MiningService) *BlockHandler {
	return &BlockHandler{miningSvc: miningSvc}
}

// List handles GET /api/v1/blocks.
func (h *BlockHandler) List(c *gin.Context) {
	blocks, err := h.miningSvc.ListBlocks(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, mapSlice(blocks, toBlockResponse))
}

// Get handles GET /api/v1/blocks/:id.
func (h *BlockHandler) Get(c *gin.Context) {
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	block, err := h.miningSvc.GetBlock(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toBlockResponse(block))
}

// Mine handles POST /api/v1/blocks.
func (h *BlockHandler) Mine(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	var req dto.MineRequest
	if !bindJSON(c, &req) {
		return
	}

	block, err := h.miningSvc.Mine(c.Request.Context(), p, req.MerkleRoot, req.Nonce)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, toBlockResponse(block))
}

// Delete handles DELETE /api/v1/blocks/:id.
func (h *BlockHandler) Delete(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	if err := h.miningSvc.DeleteBlock(c.Request.Context(), p, id); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"id": id.String(), "deleted": true})
}

// Simulate handles POST /api/v1/blocks/:id/simulate.
func (h *BlockHandler) Simulate(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	outcome, err := h.miningSvc.Simulate(c.Request.Context(), p, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toOutcomeResponse(outcome))
}

func toOutcomeResponse(o *domain.MiningOutcome) dto.MiningOutcomeResponse {
	resp := dto.MiningOutcomeResponse{
		Success:     o.Success,
		BlockHeight: o.BlockHeight,
		BlockHash:   o.BlockHash,
	}
	if o.Reward != nil {
		r := toRewardResponse(o.Reward)
		resp.Reward = &r
	}
	return resp
}

// Rewards handles GET /api/v1/mining/rewards.
func (h *BlockHandler) Rewards(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	rewards, err := h.miningSvc.ListRewards(c.Request.Context(), p)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, mapSlice(rewards, toRewardResponse))
}
