package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voicedesk-backend-go/internal/core"
	"voicedesk-backend-go/internal/middleware"
	"voicedesk-backend-go/internal/models"
)

const contextCurrentUser = "currentUser"

func identityFromContext(c *gin.Context) (core.Identity, bool) {
	id := core.Identity{
		Subject: c.GetString(middleware.ContextUserID),
		Email:   c.GetString(middleware.ContextUserEmail),
		Name:    c.GetString(middleware.ContextDisplayName),
		Picture: c.GetString(middleware.ContextPhotoURL),

		EmailVerified: c.GetBool(middleware.ContextEmailVerified),
	}
	return id, id.Subject != "" || id.Email != ""
}

// requireUser loads the caller's user document once per request.
func requireUser(users core.UserService, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := identityFromContext(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authentication error: user identity not found in context"})
			return
		}
		user, err := users.Resolve(c.Request.Context(), identity)
		if err != nil {
			mapErrorToStatus(c, logger, err)
			return
		}
		c.Set(contextCurrentUser, user)
		c.Next()
	}
}

func currentUser(c *gin.Context) *models.User {
	if v, ok := c.Get(contextCurrentUser); ok {
		if u, ok := v.(*models.User); ok {
			return u
		}
	}
	panic("currentUser used on a route without requireUser")
}
