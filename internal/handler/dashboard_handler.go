package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuside/admissions-api/internal/models"
	"github.com/campuside/admissions-api/internal/service"
	"github.com/campuside/admissions-api/pkg/response"
)

type dashboardProvider interface {
	AdmissionsSummary(ctx context.Context, actor models.ActorContext, campusID string) (*service.AdmissionsSummary, error)
}

// DashboardHandler exposes admission dashboard endpoints.
type DashboardHandler struct {
	dashboard dashboardProvider
}

// NewDashboardHandler constructs DashboardHandler.
func NewDashboardHandler(dashboard dashboardProvider) *DashboardHandler {
	return &DashboardHandler{dashboard: dashboard}
}

// Admissions godoc
// @Summary Admission pipeline counters
// @Tags Dashboard
// @Produce json
// @Param campus_id query string false "Filter by campus"
// @Success 200 {object} response.Envelope
// @Router /dashboard/admissions [get]
func (h *DashboardHandler) Admissions(c *gin.Context) {
	summary, err := h.dashboard.AdmissionsSummary(c.Request.Context(), actor(c), c.Query("campus_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
