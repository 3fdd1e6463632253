package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sudeep-patali/nodue-api/internal/middleware"
	"github.com/sudeep-patali/nodue-api/internal/service"
	appErrors "github.com/sudeep-patali/nodue-api/pkg/errors"
	"github.com/sudeep-patali/nodue-api/pkg/response"
)

// DashboardHandler serves verifier dashboards and the admin system snapshot.
type DashboardHandler struct {
	dashboard *service.DashboardService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(dashboard *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Summary godoc
// @Summary Pending counts per verifiable stage
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/summary [get]
func (h *DashboardHandler) Summary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	summaries, cached, err := h.dashboard.Summary(c.Request.Context(), claims.Roles)
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, summaries, nil, middleware.ExtractMeta(c))
}

// SystemMetrics godoc
// @Summary Runtime counters snapshot
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /dashboard/system [get]
func (h *DashboardHandler) SystemMetrics(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.dashboard.SystemMetrics(), nil)
}
