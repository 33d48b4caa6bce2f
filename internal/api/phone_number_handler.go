package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voicedesk-backend-go/internal/core"
	"voicedesk-backend-go/internal/models"
)

// PhoneNumberHandler handles the phone number endpoints.
type PhoneNumberHandler struct {
	phoneNumberService core.PhoneNumberService
	logger             *zap.Logger
}

// NewPhoneNumberHandler creates a new PhoneNumberHandler.
func NewPhoneNumberHandler(ps core.PhoneNumberService, logger *zap.Logger) *PhoneNumberHandler {
	return &PhoneNumberHandler{phoneNumberService: ps, logger: logger}
}

// ListPhoneNumbers handles GET /api/dashboard/phone-numbers.
func (h *PhoneNumberHandler) ListPhoneNumbers(c *gin.Context) {
	list, err := h.phoneNumberService.List(c.Request.Context(), currentUser(c))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	if list == nil {
		list = []*models.PhoneNumber{}
	}
	c.JSON(http.StatusOK, list)
}

// CreatePhoneNumber handles POST /api/dashboard/phone-numbers.
func (h *PhoneNumberHandler) CreatePhoneNumber(c *gin.Context) {
	var req models.CreatePhoneNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.phoneNumberService.Create(c.Request.Context(), currentUser(c), req)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, n)
}

// DeletePhoneNumber handles DELETE /api/dashboard/phone-numbers/:id.
func (h *PhoneNumberHandler) DeletePhoneNumber(c *gin.Context) {
	if err := h.phoneNumberService.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AssignPhoneNumber handles POST /api/dashboard/phone-numbers/:id/assign.
// A null assistantId unassigns the number.
func (h *PhoneNumberHandler) AssignPhoneNumber(c *gin.Context) {
	var req models.AssignPhoneNumberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	n, err := h.phoneNumberService.Assign(c.Request.Context(), currentUser(c), c.Param("id"), req.AssistantID)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, n)
}
