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

type mockStudentRepo struct {
	byEmail      map[string]*models.Student
	latest       map[string]string
	provisions   []models.StudentProvision
	batches      [][]models.StudentProvision
	provisionErr error
}

func (m *mockStudentRepo) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	if s, ok := m.byEmail[email]; ok {
		return s, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockStudentRepo) LatestStudentNumber(ctx context.Context, prefix string) (string, error) {
	return m.latest[prefix], nil
}

func (m *mockStudentRepo) Provision(ctx context.Context, p models.StudentProvision) error {
	if m.provisionErr != nil {
		return m.provisionErr
	}
	m.provisions = append(m.provisions, p)
	return nil
}

func (m *mockStudentRepo) ProvisionBatch(ctx context.Context, provisions []models.StudentProvision) error {
	if m.provisionErr != nil {
		return m.provisionErr
	}
	m.batches = append(m.batches, provisions)
	return nil
}

type mockProgramRepo struct {
	programs map[string]*models.Program
	active   []models.Program
	campus   *models.Campus
	year     *models.AcademicYear
}

func (m *mockProgramRepo) FindByID(ctx context.Context, id string) (*models.Program, error) {
	if p, ok := m.programs[id]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProgramRepo) ListActive(ctx context.Context, campusID string) ([]models.Program, error) {
	return m.active, nil
}

func (m *mockProgramRepo) FindCampus(ctx context.Context, id string) (*models.Campus, error) {
	return m.campus, nil
}

func (m *mockProgramRepo) FindAcademicYear(ctx context.Context, id string) (*models.AcademicYear, error) {
	return m.year, nil
}

func enrollableApplicant(id, email string) *models.Applicant {
	a := testApplicant(models.ApplicantStatusForEnrollment, models.CategoryCHED)
	a.ID = id
	a.ApplicantNumber = "APP-2025-" + id
	a.Email = email
	a.AcademicYearID = "ay1"
	a.DesiredProgram = "BSIT"
	return a
}

func newEnrollmentFixture(applicants map[string]*models.Applicant, students *mockStudentRepo) (*EnrollmentService, *mockEmitter) {
	reader := &mockApplicantRepo{applicants: applicants}
	programs := &mockProgramRepo{
		active: []models.Program{{ID: "p1", Code: "BSIT", Name: "BS Information Technology", CampusID: "c1", Active: true}},
		campus: &models.Campus{ID: "c1", Alpha: "BP", Number: 3, Name: "Balanga"},
		year:   &models.AcademicYear{ID: "ay1", Name: "2024-2025", Active: true},
	}
	emitter := &mockEmitter{}
	return NewEnrollmentService(reader, students, programs, emitter, nil), emitter
}

func registrar() models.ActorContext {
	return models.ActorContext{UserID: "u-reg", Role: models.RoleRegistrar, CampusID: "c1"}
}

func TestNumberAllocatorFirstOfPrefix(t *testing.T) {
	students := &mockStudentRepo{latest: map[string]string{}}
	allocator := newNumberAllocator(students)

	number, err := allocator.Next(context.Background(), &models.Campus{Alpha: "BP", Number: 3}, &models.AcademicYear{Name: "2024-2025"})
	require.NoError(t, err)
	assert.Equal(t, "BP24030001", number)
}

func TestNumberAllocatorContinuesSequence(t *testing.T) {
	students := &mockStudentRepo{latest: map[string]string{"BP2403": "BP24030017"}}
	allocator := newNumberAllocator(students)

	campus := &models.Campus{Alpha: "BP", Number: 3}
	year := &models.AcademicYear{Name: "2024-2025"}

	first, err := allocator.Next(context.Background(), campus, year)
	require.NoError(t, err)
	assert.Equal(t, "BP24030018", first)

	// Second call within the same batch advances in memory.
	second, err := allocator.Next(context.Background(), campus, year)
	require.NoError(t, err)
	assert.Equal(t, "BP24030019", second)
}

func TestEnroll(t *testing.T) {
	applicant := enrollableApplicant("a1", "juan@example.com")
	students := &mockStudentRepo{latest: map[string]string{}}
	svc, emitter := newEnrollmentFixture(map[string]*models.Applicant{"a1": applicant}, students)

	student, err := svc.Enroll(context.Background(), registrar(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "BP24030001", student.StudentNumber)
	assert.Equal(t, applicant.Email, student.Email)
	require.NotNil(t, student.ProgramID)
	assert.Equal(t, "p1", *student.ProgramID)

	require.Len(t, students.provisions, 1)
	provision := students.provisions[0]
	assert.Equal(t, student.StudentNumber, provision.User.Username)
	assert.Equal(t, models.RoleStudent, provision.User.Role)
	assert.Equal(t, 1, provision.Enrollment.YearLevel)
	assert.Equal(t, models.StudentEnrollmentStatusEnrolled, provision.Enrollment.Status)

	require.Len(t, emitter.events, 1)
	assert.Equal(t, models.ApplicantStatusOfficiallyEnrolled, emitter.events[0].new)
	assert.Equal(t, "BP24030001", emitter.events[0].payload["student_number"])
}

func TestEnrollNotReady(t *testing.T) {
	applicant := enrollableApplicant("a1", "juan@example.com")
	applicant.Status = models.ApplicantStatusApproved
	students := &mockStudentRepo{}
	svc, emitter := newEnrollmentFixture(map[string]*models.Applicant{"a1": applicant}, students)

	_, err := svc.Enroll(context.Background(), registrar(), "a1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Empty(t, students.provisions)
	assert.Empty(t, emitter.events)
}

func TestEnrollIdempotentOnExistingStudent(t *testing.T) {
	applicant := enrollableApplicant("a1", "juan@example.com")
	existing := &models.Student{ID: "st1", StudentNumber: "BP24030009", Email: applicant.Email}
	students := &mockStudentRepo{byEmail: map[string]*models.Student{applicant.Email: existing}}
	svc, emitter := newEnrollmentFixture(map[string]*models.Applicant{"a1": applicant}, students)

	student, err := svc.Enroll(context.Background(), registrar(), "a1")
	require.NoError(t, err)
	assert.Equal(t, "BP24030009", student.StudentNumber)
	assert.Empty(t, students.provisions)
	assert.Empty(t, emitter.events)
}

func TestEnrollRequiresRegistrar(t *testing.T) {
	applicant := enrollableApplicant("a1", "juan@example.com")
	svc, _ := newEnrollmentFixture(map[string]*models.Applicant{"a1": applicant}, &mockStudentRepo{})

	_, err := svc.Enroll(context.Background(), models.ActorContext{UserID: "u1", Role: models.RoleOfficer}, "a1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestEnrollBatch(t *testing.T) {
	a1 := enrollableApplicant("a1", "juan@example.com")
	a2 := enrollableApplicant("a2", "maria@example.com")
	students := &mockStudentRepo{latest: map[string]string{"BP2403": "BP24030017"}}
	svc, emitter := newEnrollmentFixture(map[string]*models.Applicant{"a1": a1, "a2": a2}, students)

	result, err := svc.EnrollBatch(context.Background(), registrar(), BatchEnrollRequest{ApplicantIDs: []string{"a1", "a2"}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Enrolled)
	assert.Equal(t, "BP24030018", result.StudentNumbers[a1.ApplicantNumber])
	assert.Equal(t, "BP24030019", result.StudentNumbers[a2.ApplicantNumber])

	require.Len(t, students.batches, 1)
	assert.Len(t, students.batches[0], 2)
	assert.Len(t, emitter.events, 2)
}

func TestEnrollBatchAbortsOnExistingStudent(t *testing.T) {
	a1 := enrollableApplicant("a1", "juan@example.com")
	a2 := enrollableApplicant("a2", "maria@example.com")
	existing := &models.Student{ID: "st1", StudentNumber: "BP24030009", Email: a2.Email}
	students := &mockStudentRepo{
		latest:  map[string]string{},
		byEmail: map[string]*models.Student{a2.Email: existing},
	}
	svc, emitter := newEnrollmentFixture(map[string]*models.Applicant{"a1": a1, "a2": a2}, students)

	_, err := svc.EnrollBatch(context.Background(), registrar(), BatchEnrollRequest{ApplicantIDs: []string{"a1", "a2"}})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrEnrollmentConflict.Code, appErr.Code)
	assert.Empty(t, students.batches)
	assert.Empty(t, emitter.events)
}

func TestEnrollBatchAbortsOnNotReady(t *testing.T) {
	a1 := enrollableApplicant("a1", "juan@example.com")
	a2 := enrollableApplicant("a2", "maria@example.com")
	a2.Status = models.ApplicantStatusForInterview
	students := &mockStudentRepo{latest: map[string]string{}}
	svc, _ := newEnrollmentFixture(map[string]*models.Applicant{"a1": a1, "a2": a2}, students)

	_, err := svc.EnrollBatch(context.Background(), registrar(), BatchEnrollRequest{ApplicantIDs: []string{"a1", "a2"}})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
	assert.Empty(t, students.batches)
}

func TestResolveProgramUnmatchedLeavesNil(t *testing.T) {
	applicant := enrollableApplicant("a1", "juan@example.com")
	applicant.DesiredProgram = "Astrobiology"
	students := &mockStudentRepo{latest: map[string]string{}}
	svc, _ := newEnrollmentFixture(map[string]*models.Applicant{"a1": applicant}, students)

	student, err := svc.Enroll(context.Background(), registrar(), "a1")
	require.NoError(t, err)
	assert.Nil(t, student.ProgramID)
}
