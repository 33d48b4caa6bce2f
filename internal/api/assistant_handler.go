package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voicedesk-backend-go/internal/core"
	"voicedesk-backend-go/internal/models"
)

// AssistantHandler handles the voice assistant endpoints.
type AssistantHandler struct {
	assistantService core.AssistantService
	logger           *zap.Logger
}

// NewAssistantHandler creates a new AssistantHandler.
func NewAssistantHandler(as core.AssistantService, logger *zap.Logger) *AssistantHandler {
	return &AssistantHandler{assistantService: as, logger: logger}
}

// ListAssistants handles GET /api/dashboard/assistants.
func (h *AssistantHandler) ListAssistants(c *gin.Context) {
	list, err := h.assistantService.List(c.Request.Context(), currentUser(c))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	if list == nil {
		list = []*models.Assistant{}
	}
	c.JSON(http.StatusOK, list)
}

// CreateAssistant handles POST /api/dashboard/assistants.
func (h *AssistantHandler) CreateAssistant(c *gin.Context) {
	var req models.CreateAssistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.assistantService.Create(c.Request.Context(), currentUser(c), req)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, a)
}

// GetAssistant handles GET /api/dashboard/assistants/:id.
func (h *AssistantHandler) GetAssistant(c *gin.Context) {
	a, err := h.assistantService.Get(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// UpdateAssistant handles PATCH /api/dashboard/assistants/:id.
func (h *AssistantHandler) UpdateAssistant(c *gin.Context) {
	var req models.UpdateAssistantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	a, err := h.assistantService.Update(c.Request.Context(), currentUser(c), c.Param("id"), req)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// DeleteAssistant handles DELETE /api/dashboard/assistants/:id.
func (h *AssistantHandler) DeleteAssistant(c *gin.Context) {
	if err := h.assistantService.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ToggleAssistant handles POST /api/dashboard/assistants/:id/toggle.
func (h *AssistantHandler) ToggleAssistant(c *gin.Context) {
	a, err := h.assistantService.Toggle(c.Request.Context(), currentUser(c), c.Param("id"))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, a)
}

// GetAssistantStats handles GET /api/dashboard/assistants/:id/stats?refresh=true.
func (h *AssistantHandler) GetAssistantStats(c *gin.Context) {
	force, _ := strconv.ParseBool(c.DefaultQuery("refresh", "false"))
	stats, err := h.assistantService.RefreshStats(c.Request.Context(), currentUser(c), c.Param("id"), force)
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
