package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"voicedesk-backend-go/internal/core"
)

// StatsHandler serves the dashboard overview.
type StatsHandler struct {
	statsService core.StatsService
	logger       *zap.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(ss core.StatsService, logger *zap.Logger) *StatsHandler {
	return &StatsHandler{statsService: ss, logger: logger}
}

// GetOverview handles GET /api/dashboard/stats.
func (h *StatsHandler) GetOverview(c *gin.Context) {
	o, err := h.statsService.Overview(c.Request.Context(), currentUser(c))
	if err != nil {
		mapErrorToStatus(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, o)
}
