package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/campuside/admissions-api/internal/models"
	appErrors "github.com/campuside/admissions-api/pkg/errors"
)

type workflowApplicantRepository interface {
	FindByID(ctx context.Context, id string) (*models.Applicant, error)
	UpdateStatus(ctx context.Context, id string, status models.ApplicantStatus) error
	ClaimStatus(ctx context.Context, id string, from, to models.ApplicantStatus) (bool, error)
}

type workflowDocumentReverter interface {
	RevertToSubmitted(ctx context.Context, ids []string) error
}

type slotAssigner interface {
	AssignEarliest(ctx context.Context, applicant *models.Applicant, kind models.ScheduleKind) (*models.ScheduleAssignment, *models.ScheduleSlot, error)
}

type transitionEmitter interface {
	Emit(ctx context.Context, applicant *models.Applicant, oldStatus, newStatus models.ApplicantStatus, reasonType string, payload map[string]interface{})
}

// transitions lists the legal forward moves of the admission pipeline.
// DECLINED is reachable from every non-terminal state and is handled
// separately.
var transitions = map[models.ApplicantStatus][]models.ApplicantStatus{
	models.ApplicantStatusPending:         {models.ApplicantStatusApproved},
	models.ApplicantStatusApproved:        {models.ApplicantStatusForEntranceExam, models.ApplicantStatusForInterview, models.ApplicantStatusForEnrollment},
	models.ApplicantStatusForEntranceExam: {models.ApplicantStatusForEnrollment},
	models.ApplicantStatusForInterview:    {models.ApplicantStatusForEnrollment},
	models.ApplicantStatusForEnrollment:   {models.ApplicantStatusOfficiallyEnrolled},
}

// CanTransition reports whether the move is a legal walk of the pipeline.
func CanTransition(from, to models.ApplicantStatus) bool {
	if to == models.ApplicantStatusDeclined {
		return from != models.ApplicantStatusOfficiallyEnrolled && from != models.ApplicantStatusDeclined
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// WorkflowService is the status transition authority. It enforces the
// transition graph, the actor's role and campus guards, and emits exactly one
// event per transition.
type WorkflowService struct {
	applicants workflowApplicantRepository
	documents  workflowDocumentReverter
	scheduler  slotAssigner
	events     transitionEmitter
	logger     *zap.Logger
}

// NewWorkflowService constructs WorkflowService.
func NewWorkflowService(applicants workflowApplicantRepository, documents workflowDocumentReverter, scheduler slotAssigner, events transitionEmitter, logger *zap.Logger) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowService{
		applicants: applicants,
		documents:  documents,
		scheduler:  scheduler,
		events:     events,
		logger:     logger,
	}
}

func (s *WorkflowService) load(ctx context.Context, applicantID string) (*models.Applicant, error) {
	applicant, err := s.applicants.FindByID(ctx, applicantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	return applicant, nil
}

func staffRole(role models.UserRole) bool {
	switch role {
	case models.RoleAdmin, models.RoleOfficer, models.RoleProgramHead, models.RoleRegistrar:
		return true
	default:
		return false
	}
}

// requireCampus rejects actors operating outside their campus. Admins are
// campus-unbound.
func requireCampus(actor models.ActorContext, applicant *models.Applicant) error {
	if actor.Role == models.RoleAdmin {
		return nil
	}
	if actor.CampusID != "" && actor.CampusID != applicant.CampusID {
		return appErrors.Clone(appErrors.ErrForbidden, "applicant belongs to another campus")
	}
	return nil
}

// Approve moves a pending applicant to APPROVED.
func (s *WorkflowService) Approve(ctx context.Context, actor models.ActorContext, applicantID string) (*models.WorkflowOutcome, error) {
	if !staffRole(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "staff role required")
	}
	applicant, err := s.load(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	if applicant.Status == models.ApplicantStatusApproved {
		return &models.WorkflowOutcome{State: models.OutcomeSkipped, NewStatus: applicant.Status, Reason: "already approved"}, nil
	}
	if !CanTransition(applicant.Status, models.ApplicantStatusApproved) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot approve applicant in status %s", applicant.Status))
	}
	won, err := s.applicants.ClaimStatus(ctx, applicant.ID, applicant.Status, models.ApplicantStatusApproved)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}
	if !won {
		return &models.WorkflowOutcome{State: models.OutcomeSkipped, Reason: "status changed concurrently"}, nil
	}
	s.events.Emit(ctx, applicant, applicant.Status, models.ApplicantStatusApproved, models.ReasonDefault, nil)
	return &models.WorkflowOutcome{State: models.OutcomeCompleted, NewStatus: models.ApplicantStatusApproved}, nil
}

// Decline moves the applicant to DECLINED from any non-terminal state.
func (s *WorkflowService) Decline(ctx context.Context, actor models.ActorContext, applicantID, reason string) (*models.WorkflowOutcome, error) {
	if !staffRole(actor.Role) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "staff role required")
	}
	applicant, err := s.load(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	return s.decline(ctx, applicant, models.ReasonDefault, reason)
}

func (s *WorkflowService) decline(ctx context.Context, applicant *models.Applicant, reasonType, reason string) (*models.WorkflowOutcome, error) {
	if applicant.Status == models.ApplicantStatusDeclined {
		return &models.WorkflowOutcome{State: models.OutcomeSkipped, NewStatus: applicant.Status, Reason: "already declined"}, nil
	}
	if !CanTransition(applicant.Status, models.ApplicantStatusDeclined) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "enrolled applicants cannot be declined")
	}
	won, err := s.applicants.ClaimStatus(ctx, applicant.ID, applicant.Status, models.ApplicantStatusDeclined)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}
	if !won {
		return &models.WorkflowOutcome{State: models.OutcomeSkipped, Reason: "status changed concurrently"}, nil
	}
	s.events.Emit(ctx, applicant, applicant.Status, models.ApplicantStatusDeclined, reasonType, map[string]interface{}{"reason": reason})
	return &models.WorkflowOutcome{State: models.OutcomeCompleted, NewStatus: models.ApplicantStatusDeclined}, nil
}

// ScheduleInterview is the program head's explicit action moving an approved
// applicant to FOR_INTERVIEW. The interview slot is soft: when none is
// available the applicant still advances and receives a pending notice.
func (s *WorkflowService) ScheduleInterview(ctx context.Context, actor models.ActorContext, applicantID string) (*models.WorkflowOutcome, error) {
	if actor.Role != models.RoleProgramHead && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "program head role required")
	}
	applicant, err := s.load(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	if err := requireCampus(actor, applicant); err != nil {
		return nil, err
	}
	if applicant.Status == models.ApplicantStatusForInterview {
		return &models.WorkflowOutcome{State: models.OutcomeSkipped, NewStatus: applicant.Status, Reason: "already scheduled for interview"}, nil
	}
	if !CanTransition(applicant.Status, models.ApplicantStatusForInterview) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot schedule interview from status %s", applicant.Status))
	}
	won, err := s.applicants.ClaimStatus(ctx, applicant.ID, applicant.Status, models.ApplicantStatusForInterview)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}
	if !won {
		return &models.WorkflowOutcome{State: models.OutcomeSkipped, Reason: "status changed concurrently"}, nil
	}

	_, slot, err := s.scheduler.AssignEarliest(ctx, applicant, models.ScheduleKindInterview)
	if err != nil && !errors.Is(err, appErrors.ErrMissingSchedule) {
		s.logger.Warn("interview assignment failed", zap.String("applicant_id", applicant.ID), zap.Error(err))
	}
	if slot != nil {
		s.events.Emit(ctx, applicant, applicant.Status, models.ApplicantStatusForInterview, models.ReasonInterviewSchedule, slotPayload(slot))
	} else {
		s.events.Emit(ctx, applicant, applicant.Status, models.ApplicantStatusForInterview, models.ReasonDefault,
			map[string]interface{}{"note": "interview schedule pending"})
	}
	return &models.WorkflowOutcome{State: models.OutcomeCompleted, NewStatus: models.ApplicantStatusForInterview}, nil
}

// MoveToEnrollment is the registrar's action advancing an applicant to
// FOR_ENROLLMENT.
func (s *WorkflowService) MoveToEnrollment(ctx context.Context, actor models.ActorContext, applicantID string) (*models.WorkflowOutcome, error) {
	if actor.Role != models.RoleRegistrar && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "registrar role required")
	}
	applicant, err := s.load(ctx, applicantID)
	if err != nil {
		return nil, err
	}
	if err := requireCampus(actor, applicant); err != nil {
		return nil, err
	}
	if applicant.Status == models.ApplicantStatusForEnrollment {
		return &models.WorkflowOutcome{State: models.OutcomeSkipped, NewStatus: applicant.Status, Reason: "already in enrollment stage"}, nil
	}
	if !CanTransition(applicant.Status, models.ApplicantStatusForEnrollment) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot move to enrollment from status %s", applicant.Status))
	}
	won, err := s.applicants.ClaimStatus(ctx, applicant.ID, applicant.Status, models.ApplicantStatusForEnrollment)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}
	if !won {
		return &models.WorkflowOutcome{State: models.OutcomeSkipped, Reason: "status changed concurrently"}, nil
	}
	s.events.Emit(ctx, applicant, applicant.Status, models.ApplicantStatusForEnrollment, models.ReasonDefault, nil)
	return &models.WorkflowOutcome{State: models.OutcomeCompleted, NewStatus: models.ApplicantStatusForEnrollment}, nil
}

// HandleDocumentEvaluation decides the applicant's next move after a document
// review changed the aggregate. verifiedNow lists the documents the
// triggering review marked VERIFIED; they are the ones reverted when a
// required slot cannot be assigned.
func (s *WorkflowService) HandleDocumentEvaluation(ctx context.Context, applicant *models.Applicant, aggregate models.DocumentAggregate, verifiedNow []string) (*models.WorkflowOutcome, error) {
	if aggregate.AnyInvalid {
		return s.decline(ctx, applicant, models.ReasonInvalidDocument, "one or more submitted documents are invalid")
	}
	if !aggregate.AllVerified {
		return &models.WorkflowOutcome{State: models.OutcomeSkipped, NewStatus: applicant.Status, Reason: "not all documents verified"}, nil
	}
	if applicant.Status != models.ApplicantStatusApproved {
		// Either not yet approved, or the stage transition already
		// happened. Re-evaluating a fully-verified applicant emits
		// nothing.
		return &models.WorkflowOutcome{State: models.OutcomeSkipped, NewStatus: applicant.Status, Reason: "status does not allow stage transition"}, nil
	}

	category := models.ResolveProgramCategory(string(applicant.ProgramCategory))
	target := models.ApplicantStatusForInterview
	if category.RequiresExam() {
		target = models.ApplicantStatusForEntranceExam
	}

	won, err := s.applicants.ClaimStatus(ctx, applicant.ID, models.ApplicantStatusApproved, target)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}
	if !won {
		return &models.WorkflowOutcome{State: models.OutcomeSkipped, Reason: "status changed concurrently"}, nil
	}

	// Categories with no scheduling requirement advance immediately.
	if !category.RequiresExam() && !category.RequiresInterview() {
		s.events.Emit(ctx, applicant, models.ApplicantStatusApproved, target, models.ReasonDefault, nil)
		return &models.WorkflowOutcome{State: models.OutcomeCompleted, NewStatus: target}, nil
	}

	kind := models.ScheduleKindInterview
	reason := models.ReasonInterviewSchedule
	if category.RequiresExam() {
		kind = models.ScheduleKindExam
		reason = models.ReasonEntranceExam
	}

	_, slot, err := s.scheduler.AssignEarliest(ctx, applicant, kind)
	if err != nil {
		if errors.Is(err, appErrors.ErrMissingSchedule) {
			return s.rollbackStage(ctx, applicant, target, verifiedNow)
		}
		// Unexpected failure: restore the claimed status before surfacing.
		if rbErr := s.applicants.UpdateStatus(ctx, applicant.ID, models.ApplicantStatusApproved); rbErr != nil {
			s.logger.Error("failed to restore applicant status", zap.String("applicant_id", applicant.ID), zap.Error(rbErr))
		}
		return nil, err
	}

	s.events.Emit(ctx, applicant, models.ApplicantStatusApproved, target, reason, slotPayload(slot))
	return &models.WorkflowOutcome{State: models.OutcomeCompleted, NewStatus: target}, nil
}

// rollbackStage is the compensating path: no slot could be assigned, so the
// status claim is undone and the documents verified by this evaluation go
// back to SUBMITTED. The applicant is never parked verified-but-unscheduled.
func (s *WorkflowService) rollbackStage(ctx context.Context, applicant *models.Applicant, claimed models.ApplicantStatus, verifiedNow []string) (*models.WorkflowOutcome, error) {
	if _, err := s.applicants.ClaimStatus(ctx, applicant.ID, claimed, models.ApplicantStatusApproved); err != nil {
		s.logger.Error("failed to restore applicant status", zap.String("applicant_id", applicant.ID), zap.Error(err))
	}
	if err := s.documents.RevertToSubmitted(ctx, verifiedNow); err != nil {
		s.logger.Error("failed to revert documents", zap.String("applicant_id", applicant.ID), zap.Error(err))
	}
	return &models.WorkflowOutcome{
		State:     models.OutcomeBlocked,
		NewStatus: models.ApplicantStatusApproved,
		Reason:    "no schedule available; documents reverted to submitted",
	}, nil
}

func slotPayload(slot *models.ScheduleSlot) map[string]interface{} {
	return map[string]interface{}{
		"schedule_id": slot.ID,
		"date":        slot.Date.Format("2006-01-02"),
		"start_time":  slot.StartTime,
		"end_time":    slot.EndTime,
		"room":        slot.Room,
	}
}
