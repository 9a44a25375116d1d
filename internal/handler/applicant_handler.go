package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/campuside/admissions-api/internal/middleware"
	"github.com/campuside/admissions-api/internal/models"
	"github.com/campuside/admissions-api/internal/service"
	appErrors "github.com/campuside/admissions-api/pkg/errors"
	"github.com/campuside/admissions-api/pkg/response"
)

// ApplicantHandler exposes applicant intake and workflow endpoints.
type ApplicantHandler struct {
	applicants *service.ApplicantService
	workflow   *service.WorkflowService
	enrollment *service.EnrollmentService
}

// NewApplicantHandler constructs ApplicantHandler.
func NewApplicantHandler(applicants *service.ApplicantService, workflow *service.WorkflowService, enrollment *service.EnrollmentService) *ApplicantHandler {
	return &ApplicantHandler{applicants: applicants, workflow: workflow, enrollment: enrollment}
}

// List godoc
// @Summary List applicants
// @Tags Applicants
// @Produce json
// @Param search query string false "Search by name, email or applicant number"
// @Param status query string false "Filter by pipeline status"
// @Param category query string false "Filter by program category"
// @Param campus_id query string false "Filter by campus"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /applicants [get]
func (h *ApplicantHandler) List(c *gin.Context) {
	var filter models.ApplicantFilter
	filter.Search = strings.TrimSpace(c.Query("search"))
	filter.Status = c.Query("status")
	filter.Category = c.Query("category")
	filter.CampusID = c.Query("campus_id")
	filter.AcademicYearID = c.Query("academic_year_id")
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}
	filter.SortBy = c.Query("sort")
	filter.SortOrder = c.Query("order")

	applicants, pagination, err := h.applicants.List(c.Request.Context(), actor(c), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applicants, pagination)
}

// Get godoc
// @Summary Get applicant detail
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id} [get]
func (h *ApplicantHandler) Get(c *gin.Context) {
	applicant, err := h.applicants.Get(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, applicant, nil)
}

// History godoc
// @Summary List an applicant's status transition events
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/history [get]
func (h *ApplicantHandler) History(c *gin.Context) {
	events, err := h.applicants.History(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// Create godoc
// @Summary Register a new applicant
// @Tags Applicants
// @Accept json
// @Produce json
// @Param payload body service.CreateApplicantRequest true "Applicant payload"
// @Success 201 {object} response.Envelope
// @Router /applicants [post]
func (h *ApplicantHandler) Create(c *gin.Context) {
	var req service.CreateApplicantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	applicant, err := h.applicants.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, applicant)
}

// Approve godoc
// @Summary Approve a pending applicant
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/approve [post]
func (h *ApplicantHandler) Approve(c *gin.Context) {
	outcome, err := h.workflow.Approve(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

type declineRequest struct {
	Reason string `json:"reason"`
}

// Decline godoc
// @Summary Decline an applicant
// @Tags Applicants
// @Accept json
// @Produce json
// @Param id path string true "Applicant ID"
// @Param payload body declineRequest false "Decline reason"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/decline [post]
func (h *ApplicantHandler) Decline(c *gin.Context) {
	var req declineRequest
	_ = c.ShouldBindJSON(&req)
	outcome, err := h.workflow.Decline(c.Request.Context(), actor(c), c.Param("id"), req.Reason)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// ScheduleInterview godoc
// @Summary Move an approved applicant to FOR_INTERVIEW and assign a slot
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/interview [post]
func (h *ApplicantHandler) ScheduleInterview(c *gin.Context) {
	outcome, err := h.workflow.ScheduleInterview(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// MoveToEnrollment godoc
// @Summary Move an applicant to FOR_ENROLLMENT
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/enrollment-stage [post]
func (h *ApplicantHandler) MoveToEnrollment(c *gin.Context) {
	outcome, err := h.workflow.MoveToEnrollment(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// Enroll godoc
// @Summary Finalize enrollment for one applicant
// @Tags Applicants
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 201 {object} response.Envelope
// @Router /applicants/{id}/enroll [post]
func (h *ApplicantHandler) Enroll(c *gin.Context) {
	student, err := h.enrollment.Enroll(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, student)
}

// EnrollBatch godoc
// @Summary Finalize enrollment for a batch of applicants
// @Tags Applicants
// @Accept json
// @Produce json
// @Param payload body service.BatchEnrollRequest true "Applicant IDs"
// @Success 201 {object} response.Envelope
// @Router /applicants/enroll-batch [post]
func (h *ApplicantHandler) EnrollBatch(c *gin.Context) {
	var req service.BatchEnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.enrollment.EnrollBatch(c.Request.Context(), actor(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// actor resolves the authenticated staff member for workflow calls.
func actor(c *gin.Context) models.ActorContext {
	return middleware.Claims(c).Actor()
}
