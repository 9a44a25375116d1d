package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campuside/admissions-api/internal/models"
	appErrors "github.com/campuside/admissions-api/pkg/errors"
)

type dashboardApplicantCounter interface {
	CountByStatus(ctx context.Context, campusID string) ([]models.AdmissionCounts, error)
	CountByCategory(ctx context.Context, campusID string) (map[models.ProgramCategory]int, error)
}

type dashboardScheduleCounter interface {
	CountUpcoming(ctx context.Context, kind models.ScheduleKind, notBefore time.Time) (int, error)
}

// AdmissionsSummary is the cached dashboard payload.
type AdmissionsSummary struct {
	ByStatus           []models.AdmissionCounts       `json:"by_status"`
	ByCategory         map[models.ProgramCategory]int `json:"by_category"`
	UpcomingExams      int                            `json:"upcoming_exams"`
	UpcomingInterviews int                            `json:"upcoming_interviews"`
	GeneratedAt        time.Time                      `json:"generated_at"`
}

// DashboardService aggregates admission counters, cached per campus.
type DashboardService struct {
	applicants dashboardApplicantCounter
	schedules  dashboardScheduleCounter
	cache      *CacheService
	cacheTTL   time.Duration
	logger     *zap.Logger
}

// NewDashboardService constructs DashboardService.
func NewDashboardService(applicants dashboardApplicantCounter, schedules dashboardScheduleCounter, cache *CacheService, cacheTTL time.Duration, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	return &DashboardService{applicants: applicants, schedules: schedules, cache: cache, cacheTTL: cacheTTL, logger: logger}
}

// AdmissionsSummary returns the dashboard counters for a campus, or all
// campuses when campusID is empty. Campus-scoped staff are pinned to their
// own campus.
func (s *DashboardService) AdmissionsSummary(ctx context.Context, actor models.ActorContext, campusID string) (*AdmissionsSummary, error) {
	if actor.Role != models.RoleAdmin && actor.CampusID != "" {
		campusID = actor.CampusID
	}

	key := fmt.Sprintf("dashboard:admissions:%s", campusID)
	if key == "dashboard:admissions:" {
		key = "dashboard:admissions:all"
	}
	if s.cache.Enabled() {
		var cached AdmissionsSummary
		hit, err := s.cache.Get(ctx, key, &cached)
		if err != nil {
			s.logger.Warn("dashboard cache read failed", zap.Error(err))
		}
		if hit {
			return &cached, nil
		}
	}

	byStatus, err := s.applicants.CountByStatus(ctx, campusID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count applicants by status")
	}
	byCategory, err := s.applicants.CountByCategory(ctx, campusID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count applicants by category")
	}
	today := time.Now().UTC().Truncate(24 * time.Hour)
	exams, err := s.schedules.CountUpcoming(ctx, models.ScheduleKindExam, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count upcoming exams")
	}
	interviews, err := s.schedules.CountUpcoming(ctx, models.ScheduleKindInterview, today)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count upcoming interviews")
	}

	summary := &AdmissionsSummary{
		ByStatus:           byStatus,
		ByCategory:         byCategory,
		UpcomingExams:      exams,
		UpcomingInterviews: interviews,
		GeneratedAt:        time.Now().UTC(),
	}
	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, key, summary, s.cacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return summary, nil
}
