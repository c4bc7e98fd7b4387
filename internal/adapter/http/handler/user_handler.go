package handler

import (
	"cryptosim/internal/core/ports"
	"cryptosim/pkg/response"

	"github.com/gin-gonic/gin"
)

// UserHandler serves user profiles.
type UserHandler struct {
	userSvc ports.UserService
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(userSvc ports.UserService) *UserHandler {
	return &UserHandler{userSvc: userSvc}
}

// Me handles GET /api/v1/users/me.
func (h *UserHandler) Me(c *gin.Context) {
	p, ok := caller(c)
	if !ok {
		return
	}
	user, err := h.userSvc.GetProfile(c.Request.Context(), p.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, toUserResponse(user))
}

// List handles GET /api/v1/users.
func (h *UserHandler) List(c *gin.Context) {
	users, err := h.userSvc.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, mapSlice(users, toUserResponse))
}
