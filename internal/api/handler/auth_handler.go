package handler

import (
	"errors"
	"net/http"
	"tea_refill/internal/api/middleware"
	"tea_refill/internal/domain"
	"tea_refill/internal/service"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService *service.AuthService
}

func NewAuthHandler(as *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: as}
}

// Login exchanges username and password for a signed JWT. The token body is
// returned bare so device clients can read it without the envelope.
func (h *AuthHandler) Login(c *gin.Context) {
	var dto domain.LoginUserDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		respondBindError(c, err)
		return
	}

	session, err := h.authService.Login(c.Request.Context(), dto)
	switch {
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, Response{Code: http.StatusUnauthorized, Message: err.Error()})
	case err != nil:
		respondError(c, err)
	default:
		c.JSON(http.StatusOK, session)
	}
}

// PUT /api/v1/users/me/push-token
func (h *AuthHandler) UpdatePushToken(c *gin.Context) {
	var dto domain.PushTokenDTO
	if err := c.ShouldBindJSON(&dto); err != nil {
		respondBindError(c, err)
		return
	}
	userID := c.GetString(middleware.UserIDKey)
	if err := h.authService.UpdatePushToken(c.Request.Context(), userID, dto); err != nil {
		respondError(c, err)
		return
	}
	respondOK(c, "push token updated", nil)
}
