package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/campuside/admissions-api/internal/models"
)

type eventRepository interface {
	Create(ctx context.Context, event *models.TransitionEvent) error
	ListByApplicant(ctx context.Context, applicantID string) ([]models.TransitionEvent, error)
}

type applicantMailer interface {
	SendEmail(name, email, subject, body string)
}

// EventService is the outbound event channel for status transitions. Every
// transition produces exactly one durable event plus a templated email to the
// applicant; a delivery failure is logged, never propagated, so a committed
// transition can't be rolled back by its side effects.
type EventService struct {
	repo    eventRepository
	mail    applicantMailer
	metrics *MetricsService
	logger  *zap.Logger
}

// NewEventService constructs the service.
func NewEventService(repo eventRepository, mail applicantMailer, metrics *MetricsService, logger *zap.Logger) *EventService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{repo: repo, mail: mail, metrics: metrics, logger: logger}
}

// Emit records the transition and mails the applicant.
func (s *EventService) Emit(ctx context.Context, applicant *models.Applicant, oldStatus, newStatus models.ApplicantStatus, reasonType string, payload map[string]interface{}) {
	raw, err := json.Marshal(payload)
	if err != nil {
		s.logger.Warn("failed to marshal event payload", zap.String("applicant_id", applicant.ID), zap.Error(err))
		raw = []byte("{}")
	}
	event := &models.TransitionEvent{
		ApplicantID: applicant.ID,
		OldStatus:   oldStatus,
		NewStatus:   newStatus,
		ReasonType:  reasonType,
		Payload:     raw,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		s.logger.Error("failed to persist transition event",
			zap.String("applicant_id", applicant.ID),
			zap.String("old_status", string(oldStatus)),
			zap.String("new_status", string(newStatus)),
			zap.Error(err),
		)
	}
	if s.metrics != nil {
		s.metrics.ObserveTransition(oldStatus, newStatus)
	}

	subject, body := renderTransitionMail(applicant, newStatus, reasonType, payload)
	if s.mail != nil {
		s.mail.SendEmail(applicant.FullName, applicant.Email, subject, body)
	}
}

// History returns the transition events recorded for an applicant.
func (s *EventService) History(ctx context.Context, applicantID string) ([]models.TransitionEvent, error) {
	return s.repo.ListByApplicant(ctx, applicantID)
}

// renderTransitionMail picks the mail template from the new status and the
// reason type carried on the event.
func renderTransitionMail(applicant *models.Applicant, newStatus models.ApplicantStatus, reasonType string, payload map[string]interface{}) (string, string) {
	switch reasonType {
	case models.ReasonEntranceExam:
		return "Entrance Exam Schedule",
			fmt.Sprintf("Dear %s, your documents are verified. Your entrance exam is on %v at %v, room %v.",
				applicant.FullName, payload["date"], payload["start_time"], payload["room"])
	case models.ReasonInterviewSchedule:
		return "Interview Schedule",
			fmt.Sprintf("Dear %s, your interview is on %v at %v, room %v.",
				applicant.FullName, payload["date"], payload["start_time"], payload["room"])
	case models.ReasonInvalidDocument:
		return "Application Declined",
			fmt.Sprintf("Dear %s, your application %s was declined: %v.",
				applicant.FullName, applicant.ApplicantNumber, payload["reason"])
	}

	switch newStatus {
	case models.ApplicantStatusApproved:
		return "Application Approved",
			fmt.Sprintf("Dear %s, your application %s has been approved.", applicant.FullName, applicant.ApplicantNumber)
	case models.ApplicantStatusForEnrollment:
		return "Ready for Enrollment",
			fmt.Sprintf("Dear %s, you may now proceed with enrollment.", applicant.FullName)
	case models.ApplicantStatusOfficiallyEnrolled:
		return "Enrollment Complete",
			fmt.Sprintf("Dear %s, you are officially enrolled. Your student number is %v.", applicant.FullName, payload["student_number"])
	case models.ApplicantStatusDeclined:
		return "Application Declined",
			fmt.Sprintf("Dear %s, your application %s was declined.", applicant.FullName, applicant.ApplicantNumber)
	default:
		return "Application Update",
			fmt.Sprintf("Dear %s, your application status is now %s.", applicant.FullName, newStatus)
	}
}
