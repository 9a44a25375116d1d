package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuside/admissions-api/internal/models"
	appErrors "github.com/campuside/admissions-api/pkg/errors"
)

type applicantRepository interface {
	List(ctx context.Context, filter models.ApplicantFilter) ([]models.ApplicantDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Applicant, error)
	FindDetailByID(ctx context.Context, id string) (*models.ApplicantDetail, error)
	Create(ctx context.Context, applicant *models.Applicant) error
}

type applicantDocumentSeeder interface {
	Create(ctx context.Context, document *models.AdmissionDocument) error
}

type applicantEventReader interface {
	History(ctx context.Context, applicantID string) ([]models.TransitionEvent, error)
}

// CreateApplicantRequest is the intake payload for a new application.
type CreateApplicantRequest struct {
	FullName        string    `json:"full_name" validate:"required"`
	Email           string    `json:"email" validate:"required,email"`
	Phone           string    `json:"phone"`
	Address         string    `json:"address"`
	Gender          string    `json:"gender" validate:"omitempty,oneof=MALE FEMALE"`
	BirthDate       time.Time `json:"birth_date" validate:"required"`
	ProgramCategory string    `json:"program_category" validate:"required"`
	ProgramID       *string   `json:"program_id"`
	DesiredProgram  string    `json:"desired_program" validate:"required"`
	CampusID        string    `json:"campus_id" validate:"required"`
	AcademicYearID  string    `json:"academic_year_id" validate:"required"`
}

// ApplicantService covers intake and read access to applicants.
type ApplicantService struct {
	repo      applicantRepository
	documents applicantDocumentSeeder
	events    applicantEventReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewApplicantService constructs ApplicantService.
func NewApplicantService(repo applicantRepository, documents applicantDocumentSeeder, events applicantEventReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ApplicantService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicantService{repo: repo, documents: documents, events: events, cache: cache, validator: validate, logger: logger}
}

// List returns applicants matching the filter with pagination metadata.
func (s *ApplicantService) List(ctx context.Context, actor models.ActorContext, filter models.ApplicantFilter) ([]models.ApplicantDetail, *models.Pagination, error) {
	// Campus-scoped staff only ever see their own campus.
	if actor.Role != models.RoleAdmin && actor.CampusID != "" {
		filter.CampusID = actor.CampusID
	}
	applicants, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applicants")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	return applicants, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns one applicant with program and campus context.
func (s *ApplicantService) Get(ctx context.Context, actor models.ActorContext, id string) (*models.ApplicantDetail, error) {
	detail, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	if err := requireCampus(actor, &detail.Applicant); err != nil {
		return nil, err
	}
	return detail, nil
}

// History returns the applicant's transition events, oldest first.
func (s *ApplicantService) History(ctx context.Context, actor models.ActorContext, id string) ([]models.TransitionEvent, error) {
	applicant, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	if err := requireCampus(actor, applicant); err != nil {
		return nil, err
	}
	return s.events.History(ctx, id)
}

// Create registers a new PENDING applicant and seeds the document
// requirements for its program category.
func (s *ApplicantService) Create(ctx context.Context, req CreateApplicantRequest) (*models.Applicant, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid applicant payload")
	}

	category := models.ResolveProgramCategory(req.ProgramCategory)
	applicant := &models.Applicant{
		ID:              uuid.NewString(),
		ApplicantNumber: newApplicantNumber(),
		FullName:        strings.TrimSpace(req.FullName),
		Email:           strings.ToLower(strings.TrimSpace(req.Email)),
		Phone:           req.Phone,
		Address:         req.Address,
		Gender:          req.Gender,
		BirthDate:       req.BirthDate,
		ProgramCategory: category,
		Status:          models.ApplicantStatusPending,
		ProgramID:       req.ProgramID,
		DesiredProgram:  req.DesiredProgram,
		CampusID:        req.CampusID,
		AcademicYearID:  req.AcademicYearID,
	}
	if err := s.repo.Create(ctx, applicant); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create applicant")
	}

	for _, docType := range requiredDocumentTypes(category) {
		document := &models.AdmissionDocument{
			ApplicantID:  applicant.ID,
			DocumentType: docType,
			Status:       models.DocumentStatusMissing,
		}
		if err := s.documents.Create(ctx, document); err != nil {
			s.logger.Error("failed to seed document requirement",
				zap.String("applicant_id", applicant.ID), zap.String("document_type", docType), zap.Error(err))
		}
	}

	if s.cache.Enabled() {
		if err := s.cache.Invalidate(ctx, "dashboard:*"); err != nil {
			s.logger.Warn("failed to invalidate dashboard cache", zap.Error(err))
		}
	}
	return applicant, nil
}

// requiredDocumentTypes lists the baseline documents the registrar expects
// per program category.
func requiredDocumentTypes(category models.ProgramCategory) []string {
	base := []string{"BIRTH_CERTIFICATE", "FORM_138", "GOOD_MORAL"}
	switch category {
	case models.CategoryCHED:
		return append(base, "TRANSCRIPT_OF_RECORDS")
	case models.CategoryTESDA:
		return append(base, "NCAE_RESULT")
	default:
		return base
	}
}

func newApplicantNumber() string {
	suffix := strings.ToUpper(uuid.NewString()[:8])
	return fmt.Sprintf("APP-%d-%s", time.Now().UTC().Year(), suffix)
}
