package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuside/admissions-api/internal/models"
	appErrors "github.com/campuside/admissions-api/pkg/errors"
)

type documentRepository interface {
	ListByApplicant(ctx context.Context, applicantID string) ([]models.AdmissionDocument, error)
	FindByID(ctx context.Context, id string) (*models.AdmissionDocument, error)
	Create(ctx context.Context, document *models.AdmissionDocument) error
	UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, remarks, reviewedBy string) error
	BulkUpdateStatus(ctx context.Context, ids []string, status models.DocumentStatus, reviewedBy string) error
	Aggregate(ctx context.Context, applicantID string) (models.DocumentAggregate, error)
}

type documentApplicantReader interface {
	FindByID(ctx context.Context, id string) (*models.Applicant, error)
}

type documentWorkflow interface {
	HandleDocumentEvaluation(ctx context.Context, applicant *models.Applicant, aggregate models.DocumentAggregate, verifiedNow []string) (*models.WorkflowOutcome, error)
}

// AddDocumentRequest describes a new document requirement for an applicant.
type AddDocumentRequest struct {
	ApplicantID  string `json:"applicant_id" validate:"required"`
	DocumentType string `json:"document_type" validate:"required"`
}

// InvalidateDocumentRequest carries the reviewer's rejection remarks.
type InvalidateDocumentRequest struct {
	Remarks string `json:"remarks" validate:"required"`
}

// BulkVerifyRequest lists documents to verify in one batch.
type BulkVerifyRequest struct {
	DocumentIDs []string `json:"document_ids" validate:"required,min=1"`
}

// BulkVerifyResult reports the per-applicant workflow outcomes of a batch.
type BulkVerifyResult struct {
	Verified int                                `json:"verified"`
	Outcomes map[string]*models.WorkflowOutcome `json:"outcomes"`
}

// DocumentService tracks verification of admission documents and feeds the
// aggregate into the workflow authority.
type DocumentService struct {
	repo       documentRepository
	applicants documentApplicantReader
	workflow   documentWorkflow
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewDocumentService constructs DocumentService.
func NewDocumentService(repo documentRepository, applicants documentApplicantReader, workflow documentWorkflow, validate *validator.Validate, logger *zap.Logger) *DocumentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{repo: repo, applicants: applicants, workflow: workflow, validator: validate, logger: logger}
}

// ListByApplicant returns the applicant's documents.
func (s *DocumentService) ListByApplicant(ctx context.Context, applicantID string) ([]models.AdmissionDocument, error) {
	documents, err := s.repo.ListByApplicant(ctx, applicantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list documents")
	}
	return documents, nil
}

// Evaluate aggregates the verification state of an applicant's documents.
// Pure read; it never mutates or notifies.
func (s *DocumentService) Evaluate(ctx context.Context, applicantID string) (models.DocumentAggregate, error) {
	aggregate, err := s.repo.Aggregate(ctx, applicantID)
	if err != nil {
		return models.DocumentAggregate{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate documents")
	}
	return aggregate, nil
}

// Add registers a new document requirement for an applicant.
func (s *DocumentService) Add(ctx context.Context, req AddDocumentRequest) (*models.AdmissionDocument, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid document payload")
	}
	if _, err := s.applicants.FindByID(ctx, req.ApplicantID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	document := &models.AdmissionDocument{
		ApplicantID:  req.ApplicantID,
		DocumentType: req.DocumentType,
		Status:       models.DocumentStatusMissing,
	}
	if err := s.repo.Create(ctx, document); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create document")
	}
	return document, nil
}

// Verify marks one document VERIFIED and runs the workflow evaluation.
// Verifying an already-verified document is a no-op: no notification fires
// and no scheduling is re-attempted.
func (s *DocumentService) Verify(ctx context.Context, actor models.ActorContext, documentID string) (*models.WorkflowOutcome, error) {
	document, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if document.Status == models.DocumentStatusVerified {
		return &models.WorkflowOutcome{State: models.OutcomeSkipped, Reason: "document already verified"}, nil
	}
	if err := s.repo.UpdateStatus(ctx, documentID, models.DocumentStatusVerified, "", actor.UserID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify document")
	}
	return s.evaluateApplicant(ctx, document.ApplicantID, []string{documentID})
}

// Invalidate marks one document INVALID with the reviewer's remarks; the
// workflow evaluation then declines the applicant.
func (s *DocumentService) Invalidate(ctx context.Context, actor models.ActorContext, documentID string, req InvalidateDocumentRequest) (*models.WorkflowOutcome, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "remarks are required")
	}
	document, err := s.loadDocument(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if document.Status == models.DocumentStatusInvalid {
		return &models.WorkflowOutcome{State: models.OutcomeSkipped, Reason: "document already invalid"}, nil
	}
	if err := s.repo.UpdateStatus(ctx, documentID, models.DocumentStatusInvalid, req.Remarks, actor.UserID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to invalidate document")
	}
	return s.evaluateApplicant(ctx, document.ApplicantID, nil)
}

// BulkVerify verifies a batch of documents inside one transaction and then
// evaluates each affected applicant once. The document updates are
// all-or-nothing; the per-applicant evaluations run after the batch commits.
func (s *DocumentService) BulkVerify(ctx context.Context, actor models.ActorContext, req BulkVerifyRequest) (*BulkVerifyResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid bulk verify payload")
	}

	// Skip documents already verified so re-runs stay idempotent.
	pending := make([]string, 0, len(req.DocumentIDs))
	verifiedByApplicant := make(map[string][]string)
	for _, id := range req.DocumentIDs {
		document, err := s.loadDocument(ctx, id)
		if err != nil {
			return nil, err
		}
		if document.Status == models.DocumentStatusVerified {
			continue
		}
		pending = append(pending, id)
		verifiedByApplicant[document.ApplicantID] = append(verifiedByApplicant[document.ApplicantID], id)
	}

	if err := s.repo.BulkUpdateStatus(ctx, pending, models.DocumentStatusVerified, actor.UserID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify documents")
	}

	result := &BulkVerifyResult{Verified: len(pending), Outcomes: make(map[string]*models.WorkflowOutcome, len(verifiedByApplicant))}
	for applicantID, verifiedNow := range verifiedByApplicant {
		outcome, err := s.evaluateApplicant(ctx, applicantID, verifiedNow)
		if err != nil {
			s.logger.Warn("bulk verify evaluation failed", zap.String("applicant_id", applicantID), zap.Error(err))
			continue
		}
		result.Outcomes[applicantID] = outcome
	}
	return result, nil
}

func (s *DocumentService) loadDocument(ctx context.Context, id string) (*models.AdmissionDocument, error) {
	document, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "document not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document")
	}
	return document, nil
}

func (s *DocumentService) evaluateApplicant(ctx context.Context, applicantID string, verifiedNow []string) (*models.WorkflowOutcome, error) {
	applicant, err := s.applicants.FindByID(ctx, applicantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	aggregate, err := s.repo.Aggregate(ctx, applicantID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to evaluate documents")
	}
	return s.workflow.HandleDocumentEvaluation(ctx, applicant, aggregate, verifiedNow)
}
