package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voicedesk-backend-go/internal/core"
	"voicedesk-backend-go/internal/models"
)

// Profile sections accepted by PATCH /api/dashboard/profile.
const (
	sectionProfile       = "profile"
	sectionNotifications = "notifications"
	sectionPassword      = "password"
)

// ProfileHandler handles the profile, activity and account endpoints.
type ProfileHandler struct {
	userService  core.UserService
	auditService core.AuditService
	logger       *zap.Logger
}

// NewProfileHandler creates a new ProfileHandler.
func NewProfileHandler(us core.UserService, as core.AuditService, logger *zap.Logger) *ProfileHandler {
	return &ProfileHandler{userService: us, auditService: as, logger: logger}
}

// GetProfile handles GET /api/dashboard/profile.
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	c.JSON(http.StatusOK, currentUser(c))
}

// UpdateProfile handles PATCH /api/dashboard/profile. The body is {section, data};
// data is decoded according to section so that only the fields sent are changed.
func (h *ProfileHandler) UpdateProfile(c *gin.Context) {
	user := currentUser(c)
	var req models.UpdateProfileSectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	ctx := c.Request.Context()
	switch req.Section {
	case sectionProfile:
		var data models.UpdateProfileRequest
		if err := decodeSection(req.Data, &data); err != nil {
			badRequest(c, err)
			return
		}
		updated, err := h.userService.UpdateProfile(ctx, user, data)
		if err != nil {
			mapErrorToStatus(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	case sectionNotifications:
		var data models.UpdateNotificationsRequest
		if err := decodeSection(req.Data, &data); err != nil {
			badRequest(c, err)
			return
		}
		updated, err := h.userService.UpdateNotifications(ctx, user, data)
		if err != nil {
			mapErrorToStatus(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	case sectionPassword:
		var data models.ChangePasswordRequest
		if err := decodeSection(req.Data, &data); err != nil {
			badRequest(c, err)
			return
		}
		if err := h.userService.ChangePassword(ctx, user, data); err != nil {
			mapErrorToStatus(c, h.logger, err)
			return
		}
		c.JSON(http.StatusOK, SuccessResponse{Message: "Password updated"})
	}
}

func decodeSection(raw json.RawMessage, dst interface{}) error {
	if err := json.Unmarshal(raw, dst); err != nil {
		return err
	}
	return validate(dst)
}

// DeleteAccount handles DELETE /api/dashboard/profile.
func (h *ProfileHandler) DeleteAccount(c *gin.Context) {
	if err := h.userService.DeleteAccount(c.Request.Context(), currentUser(c)); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, SuccessResponse{Message: "Account deleted"})
}

// ListActivity handles GET /api/dashboard/activity?limit=N.
func (h *ProfileHandler) ListActivity(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.auditService.ListActivity(c.Request.Context(), currentUser(c).ID.Hex(), limit)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}
