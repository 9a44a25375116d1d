package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuside/admissions-api/internal/models"
	appErrors "github.com/campuside/admissions-api/pkg/errors"
)

type mockApplicantRepo struct {
	applicants map[string]*models.Applicant
	updated    []models.ApplicantStatus
}

func (m *mockApplicantRepo) FindByID(ctx context.Context, id string) (*models.Applicant, error) {
	if a, ok := m.applicants[id]; ok {
		out := *a
		return &out, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockApplicantRepo) UpdateStatus(ctx context.Context, id string, status models.ApplicantStatus) error {
	if a, ok := m.applicants[id]; ok {
		a.Status = status
	}
	m.updated = append(m.updated, status)
	return nil
}

func (m *mockApplicantRepo) ClaimStatus(ctx context.Context, id string, from, to models.ApplicantStatus) (bool, error) {
	a, ok := m.applicants[id]
	if !ok || a.Status != from {
		return false, nil
	}
	a.Status = to
	return true, nil
}

type mockReverter struct {
	reverted [][]string
}

func (m *mockReverter) RevertToSubmitted(ctx context.Context, ids []string) error {
	m.reverted = append(m.reverted, ids)
	return nil
}

type mockAssigner struct {
	slot  *models.ScheduleSlot
	err   error
	calls []models.ScheduleKind
}

func (m *mockAssigner) AssignEarliest(ctx context.Context, applicant *models.Applicant, kind models.ScheduleKind) (*models.ScheduleAssignment, *models.ScheduleSlot, error) {
	m.calls = append(m.calls, kind)
	if m.err != nil {
		return nil, nil, m.err
	}
	return &models.ScheduleAssignment{ID: "as1", ScheduleID: m.slot.ID, ApplicantID: applicant.ID}, m.slot, nil
}

type emitRecord struct {
	old, new models.ApplicantStatus
	reason   string
	payload  map[string]interface{}
}

type mockEmitter struct {
	events []emitRecord
}

func (m *mockEmitter) Emit(ctx context.Context, applicant *models.Applicant, oldStatus, newStatus models.ApplicantStatus, reasonType string, payload map[string]interface{}) {
	m.events = append(m.events, emitRecord{old: oldStatus, new: newStatus, reason: reasonType, payload: payload})
}

func testApplicant(status models.ApplicantStatus, category models.ProgramCategory) *models.Applicant {
	return &models.Applicant{
		ID:              "a1",
		ApplicantNumber: "APP-2025-AAAA0001",
		FullName:        "Juan Dela Cruz",
		Email:           "juan@example.com",
		ProgramCategory: category,
		Status:          status,
		CampusID:        "c1",
	}
}

func newWorkflowFixture(applicant *models.Applicant) (*WorkflowService, *mockApplicantRepo, *mockReverter, *mockAssigner, *mockEmitter) {
	repo := &mockApplicantRepo{applicants: map[string]*models.Applicant{applicant.ID: applicant}}
	reverter := &mockReverter{}
	assigner := &mockAssigner{slot: &models.ScheduleSlot{Schedule: models.Schedule{ID: "s1", StartTime: "08:00", EndTime: "11:00", Room: "Room 101"}}}
	emitter := &mockEmitter{}
	svc := NewWorkflowService(repo, reverter, assigner, emitter, nil)
	return svc, repo, reverter, assigner, emitter
}

func admin() models.ActorContext {
	return models.ActorContext{UserID: "u-admin", Role: models.RoleAdmin}
}

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to models.ApplicantStatus
		want     bool
	}{
		{models.ApplicantStatusPending, models.ApplicantStatusApproved, true},
		{models.ApplicantStatusApproved, models.ApplicantStatusForEntranceExam, true},
		{models.ApplicantStatusApproved, models.ApplicantStatusForInterview, true},
		{models.ApplicantStatusApproved, models.ApplicantStatusForEnrollment, true},
		{models.ApplicantStatusForEntranceExam, models.ApplicantStatusForEnrollment, true},
		{models.ApplicantStatusForInterview, models.ApplicantStatusForEnrollment, true},
		{models.ApplicantStatusForEnrollment, models.ApplicantStatusOfficiallyEnrolled, true},
		{models.ApplicantStatusPending, models.ApplicantStatusForEnrollment, false},
		{models.ApplicantStatusForEntranceExam, models.ApplicantStatusForInterview, false},
		{models.ApplicantStatusOfficiallyEnrolled, models.ApplicantStatusForEnrollment, false},
		{models.ApplicantStatusPending, models.ApplicantStatusDeclined, true},
		{models.ApplicantStatusForEnrollment, models.ApplicantStatusDeclined, true},
		{models.ApplicantStatusOfficiallyEnrolled, models.ApplicantStatusDeclined, false},
		{models.ApplicantStatusDeclined, models.ApplicantStatusDeclined, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestApprove(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusPending, models.CategoryCHED)
	svc, repo, _, _, emitter := newWorkflowFixture(applicant)

	outcome, err := svc.Approve(context.Background(), admin(), "a1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCompleted, outcome.State)
	assert.Equal(t, models.ApplicantStatusApproved, repo.applicants["a1"].Status)
	require.Len(t, emitter.events, 1)
	assert.Equal(t, models.ApplicantStatusPending, emitter.events[0].old)
	assert.Equal(t, models.ApplicantStatusApproved, emitter.events[0].new)
}

func TestApproveAlreadyApproved(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusApproved, models.CategoryCHED)
	svc, _, _, _, emitter := newWorkflowFixture(applicant)

	outcome, err := svc.Approve(context.Background(), admin(), "a1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkipped, outcome.State)
	assert.Empty(t, emitter.events)
}

func TestApproveFromDeclined(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusDeclined, models.CategoryCHED)
	svc, _, _, _, _ := newWorkflowFixture(applicant)

	_, err := svc.Approve(context.Background(), admin(), "a1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestApproveRequiresStaffRole(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusPending, models.CategoryCHED)
	svc, _, _, _, _ := newWorkflowFixture(applicant)

	_, err := svc.Approve(context.Background(), models.ActorContext{UserID: "u1", Role: models.RoleStudent}, "a1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestDeclineFromInterview(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusForInterview, models.CategoryTESDA)
	svc, repo, _, _, emitter := newWorkflowFixture(applicant)

	outcome, err := svc.Decline(context.Background(), admin(), "a1", "did not show up")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCompleted, outcome.State)
	assert.Equal(t, models.ApplicantStatusDeclined, repo.applicants["a1"].Status)
	require.Len(t, emitter.events, 1)
	assert.Equal(t, "did not show up", emitter.events[0].payload["reason"])
}

func TestDeclineEnrolledRejected(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusOfficiallyEnrolled, models.CategoryCHED)
	svc, _, _, _, _ := newWorkflowFixture(applicant)

	_, err := svc.Decline(context.Background(), admin(), "a1", "late")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}

func TestDeclineIdempotent(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusDeclined, models.CategoryCHED)
	svc, _, _, _, emitter := newWorkflowFixture(applicant)

	outcome, err := svc.Decline(context.Background(), admin(), "a1", "dup")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkipped, outcome.State)
	assert.Empty(t, emitter.events)
}

func TestHandleDocumentEvaluationExamCategory(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusApproved, models.CategoryCHED)
	svc, repo, _, assigner, emitter := newWorkflowFixture(applicant)

	aggregate := models.DocumentAggregate{Total: 3, Verified: 3, AllVerified: true}
	outcome, err := svc.HandleDocumentEvaluation(context.Background(), applicant, aggregate, []string{"d3"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCompleted, outcome.State)
	assert.Equal(t, models.ApplicantStatusForEntranceExam, outcome.NewStatus)
	assert.Equal(t, models.ApplicantStatusForEntranceExam, repo.applicants["a1"].Status)
	require.Equal(t, []models.ScheduleKind{models.ScheduleKindExam}, assigner.calls)
	require.Len(t, emitter.events, 1)
	assert.Equal(t, models.ReasonEntranceExam, emitter.events[0].reason)
	assert.Equal(t, "s1", emitter.events[0].payload["schedule_id"])
}

func TestHandleDocumentEvaluationInterviewCategory(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusApproved, models.CategoryTESDA)
	svc, repo, _, assigner, emitter := newWorkflowFixture(applicant)

	aggregate := models.DocumentAggregate{Total: 2, Verified: 2, AllVerified: true}
	outcome, err := svc.HandleDocumentEvaluation(context.Background(), applicant, aggregate, []string{"d2"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCompleted, outcome.State)
	assert.Equal(t, models.ApplicantStatusForInterview, repo.applicants["a1"].Status)
	require.Equal(t, []models.ScheduleKind{models.ScheduleKindInterview}, assigner.calls)
	require.Len(t, emitter.events, 1)
	assert.Equal(t, models.ReasonInterviewSchedule, emitter.events[0].reason)
}

func TestHandleDocumentEvaluationNoRequirement(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusApproved, models.CategoryOther)
	svc, repo, _, assigner, emitter := newWorkflowFixture(applicant)

	aggregate := models.DocumentAggregate{Total: 1, Verified: 1, AllVerified: true}
	outcome, err := svc.HandleDocumentEvaluation(context.Background(), applicant, aggregate, []string{"d1"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCompleted, outcome.State)
	assert.Equal(t, models.ApplicantStatusForInterview, repo.applicants["a1"].Status)
	assert.Empty(t, assigner.calls)
	require.Len(t, emitter.events, 1)
	assert.Equal(t, models.ReasonDefault, emitter.events[0].reason)
}

func TestHandleDocumentEvaluationNotAllVerified(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusApproved, models.CategoryCHED)
	svc, _, _, assigner, emitter := newWorkflowFixture(applicant)

	aggregate := models.DocumentAggregate{Total: 3, Verified: 2}
	outcome, err := svc.HandleDocumentEvaluation(context.Background(), applicant, aggregate, []string{"d2"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkipped, outcome.State)
	assert.Empty(t, assigner.calls)
	assert.Empty(t, emitter.events)
}

func TestHandleDocumentEvaluationInvalidDocumentDeclines(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusApproved, models.CategoryCHED)
	svc, repo, _, _, emitter := newWorkflowFixture(applicant)

	aggregate := models.DocumentAggregate{Total: 3, Verified: 1, AnyInvalid: true}
	outcome, err := svc.HandleDocumentEvaluation(context.Background(), applicant, aggregate, nil)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCompleted, outcome.State)
	assert.Equal(t, models.ApplicantStatusDeclined, repo.applicants["a1"].Status)
	require.Len(t, emitter.events, 1)
	assert.Equal(t, models.ReasonInvalidDocument, emitter.events[0].reason)
}

func TestHandleDocumentEvaluationAlreadyAdvanced(t *testing.T) {
	// A re-run after the stage transition already happened must not emit or
	// schedule again.
	applicant := testApplicant(models.ApplicantStatusForEntranceExam, models.CategoryCHED)
	svc, _, _, assigner, emitter := newWorkflowFixture(applicant)

	aggregate := models.DocumentAggregate{Total: 3, Verified: 3, AllVerified: true}
	outcome, err := svc.HandleDocumentEvaluation(context.Background(), applicant, aggregate, nil)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeSkipped, outcome.State)
	assert.Empty(t, assigner.calls)
	assert.Empty(t, emitter.events)
}

func TestHandleDocumentEvaluationMissingScheduleRollsBack(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusApproved, models.CategoryCHED)
	svc, repo, reverter, assigner, emitter := newWorkflowFixture(applicant)
	assigner.err = appErrors.ErrMissingSchedule

	aggregate := models.DocumentAggregate{Total: 3, Verified: 3, AllVerified: true}
	outcome, err := svc.HandleDocumentEvaluation(context.Background(), applicant, aggregate, []string{"d2", "d3"})
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeBlocked, outcome.State)
	assert.Equal(t, models.ApplicantStatusApproved, repo.applicants["a1"].Status)
	require.Len(t, reverter.reverted, 1)
	assert.Equal(t, []string{"d2", "d3"}, reverter.reverted[0])
	assert.Empty(t, emitter.events)
}

func TestScheduleInterviewAssignsSlot(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusApproved, models.CategoryTESDA)
	svc, repo, _, assigner, emitter := newWorkflowFixture(applicant)

	outcome, err := svc.ScheduleInterview(context.Background(), models.ActorContext{UserID: "u1", Role: models.RoleProgramHead, CampusID: "c1"}, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCompleted, outcome.State)
	assert.Equal(t, models.ApplicantStatusForInterview, repo.applicants["a1"].Status)
	require.Equal(t, []models.ScheduleKind{models.ScheduleKindInterview}, assigner.calls)
	require.Len(t, emitter.events, 1)
	assert.Equal(t, models.ReasonInterviewSchedule, emitter.events[0].reason)
}

func TestScheduleInterviewProceedsWithoutSlot(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusApproved, models.CategoryTESDA)
	svc, repo, _, assigner, emitter := newWorkflowFixture(applicant)
	assigner.err = appErrors.ErrMissingSchedule

	outcome, err := svc.ScheduleInterview(context.Background(), admin(), "a1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCompleted, outcome.State)
	assert.Equal(t, models.ApplicantStatusForInterview, repo.applicants["a1"].Status)
	require.Len(t, emitter.events, 1)
	assert.Equal(t, models.ReasonDefault, emitter.events[0].reason)
}

func TestScheduleInterviewWrongRole(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusApproved, models.CategoryTESDA)
	svc, _, _, _, _ := newWorkflowFixture(applicant)

	_, err := svc.ScheduleInterview(context.Background(), models.ActorContext{UserID: "u1", Role: models.RoleOfficer}, "a1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestScheduleInterviewCampusGuard(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusApproved, models.CategoryTESDA)
	svc, _, _, _, _ := newWorkflowFixture(applicant)

	_, err := svc.ScheduleInterview(context.Background(), models.ActorContext{UserID: "u1", Role: models.RoleProgramHead, CampusID: "c2"}, "a1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestMoveToEnrollmentFromExam(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusForEntranceExam, models.CategoryCHED)
	svc, repo, _, _, emitter := newWorkflowFixture(applicant)

	outcome, err := svc.MoveToEnrollment(context.Background(), models.ActorContext{UserID: "u1", Role: models.RoleRegistrar, CampusID: "c1"}, "a1")
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCompleted, outcome.State)
	assert.Equal(t, models.ApplicantStatusForEnrollment, repo.applicants["a1"].Status)
	require.Len(t, emitter.events, 1)
}

func TestMoveToEnrollmentFromPendingRejected(t *testing.T) {
	applicant := testApplicant(models.ApplicantStatusPending, models.CategoryCHED)
	svc, _, _, _, _ := newWorkflowFixture(applicant)

	_, err := svc.MoveToEnrollment(context.Background(), admin(), "a1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErr.Code)
}
