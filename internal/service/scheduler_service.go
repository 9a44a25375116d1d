package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuside/admissions-api/internal/models"
	appErrors "github.com/campuside/admissions-api/pkg/errors"
)

type scheduleRepository interface {
	List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleSlot, int, error)
	FindByID(ctx context.Context, id string) (*models.ScheduleSlot, error)
	Create(ctx context.Context, schedule *models.Schedule) error
	FindEarliestAvailable(ctx context.Context, kind models.ScheduleKind, notBefore time.Time) (*models.ScheduleSlot, error)
	CountUpcoming(ctx context.Context, kind models.ScheduleKind, notBefore time.Time) (int, error)
	HasActiveAssignment(ctx context.Context, applicantID string, kind models.ScheduleKind) (bool, error)
	Assign(ctx context.Context, applicantID, scheduleID string) (*models.ScheduleAssignment, error)
	ListAssignments(ctx context.Context, scheduleID string) ([]models.ScheduleAssignment, error)
}

type schedulerNotifier interface {
	SendToRole(ctx context.Context, role models.UserRole, title, body, link string)
}

// CreateScheduleRequest describes schedule creation payload.
type CreateScheduleRequest struct {
	Kind      models.ScheduleKind `json:"kind" validate:"required,oneof=EXAM INTERVIEW"`
	Date      time.Time           `json:"date" validate:"required"`
	StartTime string              `json:"start_time" validate:"required"`
	EndTime   string              `json:"end_time" validate:"required"`
	Capacity  int                 `json:"capacity" validate:"required,min=1"`
	CampusID  string              `json:"campus_id" validate:"required"`
	Room      string              `json:"room" validate:"required"`
}

// SchedulerService finds and assigns capacity-bounded exam/interview slots.
type SchedulerService struct {
	repo         scheduleRepository
	notifier     schedulerNotifier
	validator    *validator.Validate
	logger       *zap.Logger
	examLeadDays int
	now          func() time.Time
}

// NewSchedulerService constructs SchedulerService.
func NewSchedulerService(repo scheduleRepository, notifier schedulerNotifier, examLeadDays int, validate *validator.Validate, logger *zap.Logger) *SchedulerService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if examLeadDays <= 0 {
		examLeadDays = 2
	}
	return &SchedulerService{
		repo:         repo,
		notifier:     notifier,
		validator:    validate,
		logger:       logger,
		examLeadDays: examLeadDays,
		now:          time.Now,
	}
}

// List returns schedules with pagination metadata.
func (s *SchedulerService) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleSlot, *models.Pagination, error) {
	slots, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list schedules")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return slots, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// ListAssignments returns all assignments for a schedule.
func (s *SchedulerService) ListAssignments(ctx context.Context, scheduleID string) ([]models.ScheduleAssignment, error) {
	if _, err := s.repo.FindByID(ctx, scheduleID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
	}
	assignments, err := s.repo.ListAssignments(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return assignments, nil
}

// Create registers a new schedule. Exam schedules must be created at least
// examLeadDays ahead of their date.
func (s *SchedulerService) Create(ctx context.Context, req CreateScheduleRequest) (*models.Schedule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	if req.Kind == models.ScheduleKindExam {
		earliest := s.today().AddDate(0, 0, s.examLeadDays)
		if req.Date.Before(earliest) {
			return nil, appErrors.Clone(appErrors.ErrValidation,
				fmt.Sprintf("exam schedules need at least %d days of lead time", s.examLeadDays))
		}
	}
	schedule := &models.Schedule{
		Kind:      req.Kind,
		Date:      req.Date,
		StartTime: req.StartTime,
		EndTime:   req.EndTime,
		Capacity:  req.Capacity,
		CampusID:  req.CampusID,
		Room:      req.Room,
	}
	if err := s.repo.Create(ctx, schedule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create schedule")
	}
	return schedule, nil
}

// FindAvailableSlot returns the earliest slot of the kind with free capacity
// on or after notBefore, or nil when none qualifies.
func (s *SchedulerService) FindAvailableSlot(ctx context.Context, kind models.ScheduleKind, notBefore time.Time) (*models.ScheduleSlot, error) {
	slot, err := s.repo.FindEarliestAvailable(ctx, kind, notBefore)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find available slot")
	}
	return slot, nil
}

// AssignEarliest places the applicant into the earliest available slot of the
// kind. Capacity is re-validated at insert time; when another assignment
// consumes the slot between lookup and insert the next slot is tried. When no
// slot can take the applicant the relevant staff role is notified and
// ErrMissingSchedule is returned.
func (s *SchedulerService) AssignEarliest(ctx context.Context, applicant *models.Applicant, kind models.ScheduleKind) (*models.ScheduleAssignment, *models.ScheduleSlot, error) {
	held, err := s.repo.HasActiveAssignment(ctx, applicant.ID, kind)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignments")
	}
	if held {
		return nil, nil, appErrors.Clone(appErrors.ErrConflict, "applicant already holds a slot of this kind")
	}

	notBefore := s.today()
	for {
		slot, err := s.repo.FindEarliestAvailable(ctx, kind, notBefore)
		if err != nil {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to find available slot")
		}
		if slot == nil {
			s.reportNoSlot(ctx, applicant, kind)
			return nil, nil, appErrors.ErrMissingSchedule
		}

		assignment, err := s.repo.Assign(ctx, applicant.ID, slot.ID)
		if err != nil {
			if errors.Is(err, appErrors.ErrCapacityExceeded) {
				// Lost the race for this slot; move past it and retry.
				notBefore = slot.Date
				s.logger.Info("slot filled during assignment, retrying",
					zap.String("schedule_id", slot.ID),
					zap.String("applicant_id", applicant.ID),
				)
				continue
			}
			return nil, nil, err
		}
		return assignment, slot, nil
	}
}

// reportNoSlot tells the responsible staff why an applicant could not be
// scheduled: either every upcoming slot is full, or none exists at all.
func (s *SchedulerService) reportNoSlot(ctx context.Context, applicant *models.Applicant, kind models.ScheduleKind) {
	if s.notifier == nil {
		return
	}
	role := models.RoleOfficer
	if kind == models.ScheduleKindInterview {
		role = models.RoleProgramHead
	}
	upcoming, err := s.repo.CountUpcoming(ctx, kind, s.today())
	if err != nil {
		s.logger.Warn("failed to count upcoming schedules", zap.Error(err))
		upcoming = 0
	}
	var body string
	if upcoming > 0 {
		body = fmt.Sprintf("All upcoming %s schedules are at capacity; applicant %s could not be scheduled.",
			kind, applicant.ApplicantNumber)
	} else {
		body = fmt.Sprintf("No upcoming %s schedule exists; applicant %s could not be scheduled.",
			kind, applicant.ApplicantNumber)
	}
	s.notifier.SendToRole(ctx, role, "Schedule needed", body, "/schedules")
}

func (s *SchedulerService) today() time.Time {
	now := s.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}
