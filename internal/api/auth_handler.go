package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voicedesk-backend-go/internal/core"
)

// AuthHandler handles account bootstrap after sign-in.
type AuthHandler struct {
	userService core.UserService
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(us core.UserService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{userService: us, logger: logger}
}

// InitializeUserProfile handles POST /api/users/initialize. It is called by the
// dashboard after sign-in and creates the user document on first login.
func (h *AuthHandler) InitializeUserProfile(c *gin.Context) {
	identity, ok := identityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication error: user identity not found in context"})
		return
	}

	user, created, err := h.userService.GetOrCreate(c.Request.Context(), identity)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, InitializeUserResponse{User: user, Created: created})
}
