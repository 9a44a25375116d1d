package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/campuside/admissions-api/internal/models"
	"github.com/campuside/admissions-api/internal/service"
	appErrors "github.com/campuside/admissions-api/pkg/errors"
	"github.com/campuside/admissions-api/pkg/response"
)

// ScheduleHandler exposes exam and interview schedule endpoints.
type ScheduleHandler struct {
	scheduler *service.SchedulerService
}

// NewScheduleHandler constructs ScheduleHandler.
func NewScheduleHandler(scheduler *service.SchedulerService) *ScheduleHandler {
	return &ScheduleHandler{scheduler: scheduler}
}

// List godoc
// @Summary List schedules with occupancy
// @Tags Schedules
// @Produce json
// @Param kind query string false "EXAM or INTERVIEW"
// @Param campus_id query string false "Filter by campus"
// @Param date_from query string false "Earliest date, YYYY-MM-DD"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /schedules [get]
func (h *ScheduleHandler) List(c *gin.Context) {
	var filter models.ScheduleFilter
	filter.Kind = models.ScheduleKind(c.Query("kind"))
	filter.CampusID = c.Query("campus_id")
	if raw := c.Query("date_from"); raw != "" {
		if from, err := time.Parse("2006-01-02", raw); err == nil {
			filter.DateFrom = &from
		}
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	schedules, pagination, err := h.scheduler.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, schedules, pagination)
}

// Create godoc
// @Summary Create a schedule slot
// @Tags Schedules
// @Accept json
// @Produce json
// @Param payload body service.CreateScheduleRequest true "Schedule payload"
// @Success 201 {object} response.Envelope
// @Router /schedules [post]
func (h *ScheduleHandler) Create(c *gin.Context) {
	var req service.CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	schedule, err := h.scheduler.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, schedule)
}

// Assignments godoc
// @Summary List assignments of a schedule
// @Tags Schedules
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 200 {object} response.Envelope
// @Router /schedules/{id}/assignments [get]
func (h *ScheduleHandler) Assignments(c *gin.Context) {
	assignments, err := h.scheduler.ListAssignments(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, assignments, nil)
}
