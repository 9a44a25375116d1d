package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuside/admissions-api/internal/service"
	appErrors "github.com/campuside/admissions-api/pkg/errors"
	"github.com/campuside/admissions-api/pkg/response"
)

// DocumentHandler exposes admission document review endpoints.
type DocumentHandler struct {
	documents *service.DocumentService
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(documents *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// ListByApplicant godoc
// @Summary List an applicant's documents
// @Tags Documents
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/documents [get]
func (h *DocumentHandler) ListByApplicant(c *gin.Context) {
	documents, err := h.documents.ListByApplicant(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, documents, nil)
}

// Evaluate godoc
// @Summary Aggregate an applicant's document verification state
// @Tags Documents
// @Produce json
// @Param id path string true "Applicant ID"
// @Success 200 {object} response.Envelope
// @Router /applicants/{id}/documents/evaluation [get]
func (h *DocumentHandler) Evaluate(c *gin.Context) {
	aggregate, err := h.documents.Evaluate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, aggregate, nil)
}

// Add godoc
// @Summary Register a document requirement
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body service.AddDocumentRequest true "Document payload"
// @Success 201 {object} response.Envelope
// @Router /documents [post]
func (h *DocumentHandler) Add(c *gin.Context) {
	var req service.AddDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	document, err := h.documents.Add(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, document)
}

// Verify godoc
// @Summary Mark a document VERIFIED
// @Tags Documents
// @Produce json
// @Param id path string true "Document ID"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/verify [post]
func (h *DocumentHandler) Verify(c *gin.Context) {
	outcome, err := h.documents.Verify(c.Request.Context(), actor(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// Invalidate godoc
// @Summary Mark a document INVALID
// @Tags Documents
// @Accept json
// @Produce json
// @Param id path string true "Document ID"
// @Param payload body service.InvalidateDocumentRequest true "Reviewer remarks"
// @Success 200 {object} response.Envelope
// @Router /documents/{id}/invalidate [post]
func (h *DocumentHandler) Invalidate(c *gin.Context) {
	var req service.InvalidateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	outcome, err := h.documents.Invalidate(c.Request.Context(), actor(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, outcome, nil)
}

// BulkVerify godoc
// @Summary Verify a batch of documents
// @Tags Documents
// @Accept json
// @Produce json
// @Param payload body service.BulkVerifyRequest true "Document IDs"
// @Success 200 {object} response.Envelope
// @Router /documents/bulk-verify [post]
func (h *DocumentHandler) BulkVerify(c *gin.Context) {
	var req service.BulkVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	result, err := h.documents.BulkVerify(c.Request.Context(), actor(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
