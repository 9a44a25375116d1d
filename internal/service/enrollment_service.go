package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campuside/admissions-api/internal/models"
	appErrors "github.com/campuside/admissions-api/pkg/errors"
)

type enrollmentApplicantReader interface {
	FindByID(ctx context.Context, id string) (*models.Applicant, error)
}

type studentRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Student, error)
	LatestStudentNumber(ctx context.Context, prefix string) (string, error)
	Provision(ctx context.Context, p models.StudentProvision) error
	ProvisionBatch(ctx context.Context, provisions []models.StudentProvision) error
}

type enrollmentProgramRepository interface {
	FindByID(ctx context.Context, id string) (*models.Program, error)
	ListActive(ctx context.Context, campusID string) ([]models.Program, error)
	FindCampus(ctx context.Context, id string) (*models.Campus, error)
	FindAcademicYear(ctx context.Context, id string) (*models.AcademicYear, error)
}

// BatchEnrollRequest lists the applicants to finalize in one batch.
type BatchEnrollRequest struct {
	ApplicantIDs []string `json:"applicant_ids" validate:"required,min=1"`
}

// BatchEnrollResult reports the students created by a batch enrollment.
type BatchEnrollResult struct {
	Enrolled       int               `json:"enrolled"`
	StudentNumbers map[string]string `json:"student_numbers"`
}

// EnrollmentService finalizes admission: it generates the student number,
// provisions the user and student records, and flips the applicant to
// OFFICIALLY_ENROLLED.
type EnrollmentService struct {
	applicants enrollmentApplicantReader
	students   studentRepository
	programs   enrollmentProgramRepository
	events     transitionEmitter
	logger     *zap.Logger
}

// NewEnrollmentService constructs EnrollmentService.
func NewEnrollmentService(applicants enrollmentApplicantReader, students studentRepository, programs enrollmentProgramRepository, events transitionEmitter, logger *zap.Logger) *EnrollmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EnrollmentService{applicants: applicants, students: students, programs: programs, events: events, logger: logger}
}

// numberAllocator hands out consecutive student numbers per prefix. The
// in-memory counter keeps numbers unique within one batch, on top of the
// database high-water mark.
type numberAllocator struct {
	students studentRepository
	next     map[string]int
}

func newNumberAllocator(students studentRepository) *numberAllocator {
	return &numberAllocator{students: students, next: make(map[string]int)}
}

// Next returns the next student number for a campus and academic year.
// Format: two-letter campus alpha, two-digit year suffix, two-digit campus
// number, four-digit sequence, e.g. "BP24030001".
func (a *numberAllocator) Next(ctx context.Context, campus *models.Campus, year *models.AcademicYear) (string, error) {
	prefix := fmt.Sprintf("%s%s%02d", campus.Alpha, year.Suffix(), campus.Number)
	seq, ok := a.next[prefix]
	if !ok {
		latest, err := a.students.LatestStudentNumber(ctx, prefix)
		if err != nil {
			return "", err
		}
		seq = 1
		if latest != "" {
			tail, err := strconv.Atoi(latest[len(latest)-4:])
			if err != nil {
				return "", fmt.Errorf("malformed student number %q: %w", latest, err)
			}
			seq = tail + 1
		}
	}
	a.next[prefix] = seq + 1
	return fmt.Sprintf("%s%04d", prefix, seq), nil
}

// Enroll finalizes one applicant. An applicant already enrolled, or whose
// email already belongs to a student, resolves to the existing student
// without creating anything.
func (s *EnrollmentService) Enroll(ctx context.Context, actor models.ActorContext, applicantID string) (*models.Student, error) {
	applicant, err := s.guardApplicant(ctx, actor, applicantID)
	if err != nil {
		return nil, err
	}
	if existing := s.findExistingStudent(ctx, applicant); existing != nil {
		return existing, nil
	}
	if applicant.Status != models.ApplicantStatusForEnrollment {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "applicant is not ready for enrollment")
	}

	allocator := newNumberAllocator(s.students)
	provision, err := s.buildProvision(ctx, applicant, allocator)
	if err != nil {
		return nil, err
	}
	if err := s.students.Provision(ctx, *provision); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrEnrollmentConflict.Code, appErrors.ErrEnrollmentConflict.Status, "failed to provision student")
	}

	s.events.Emit(ctx, applicant, models.ApplicantStatusForEnrollment, models.ApplicantStatusOfficiallyEnrolled,
		models.ReasonDefault, map[string]interface{}{"student_number": provision.Student.StudentNumber})
	return &provision.Student, nil
}

// EnrollBatch finalizes many applicants in a single transaction. The batch is
// all-or-nothing: one applicant failing validation or provisioning aborts the
// whole batch and no student is created.
func (s *EnrollmentService) EnrollBatch(ctx context.Context, actor models.ActorContext, req BatchEnrollRequest) (*BatchEnrollResult, error) {
	if len(req.ApplicantIDs) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "applicant_ids is required")
	}

	allocator := newNumberAllocator(s.students)
	provisions := make([]models.StudentProvision, 0, len(req.ApplicantIDs))
	applicants := make([]*models.Applicant, 0, len(req.ApplicantIDs))

	for _, id := range req.ApplicantIDs {
		applicant, err := s.guardApplicant(ctx, actor, id)
		if err != nil {
			return nil, err
		}
		if applicant.Status != models.ApplicantStatusForEnrollment {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed,
				fmt.Sprintf("applicant %s is not ready for enrollment", applicant.ApplicantNumber))
		}
		if existing := s.findExistingStudent(ctx, applicant); existing != nil {
			return nil, appErrors.Clone(appErrors.ErrEnrollmentConflict,
				fmt.Sprintf("applicant %s is already a student", applicant.ApplicantNumber))
		}
		provision, err := s.buildProvision(ctx, applicant, allocator)
		if err != nil {
			return nil, err
		}
		provisions = append(provisions, *provision)
		applicants = append(applicants, applicant)
	}

	if err := s.students.ProvisionBatch(ctx, provisions); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrEnrollmentConflict.Code, appErrors.ErrEnrollmentConflict.Status, "failed to provision batch")
	}

	result := &BatchEnrollResult{Enrolled: len(provisions), StudentNumbers: make(map[string]string, len(provisions))}
	for i, applicant := range applicants {
		number := provisions[i].Student.StudentNumber
		result.StudentNumbers[applicant.ApplicantNumber] = number
		s.events.Emit(ctx, applicant, models.ApplicantStatusForEnrollment, models.ApplicantStatusOfficiallyEnrolled,
			models.ReasonDefault, map[string]interface{}{"student_number": number})
	}
	return result, nil
}

func (s *EnrollmentService) guardApplicant(ctx context.Context, actor models.ActorContext, applicantID string) (*models.Applicant, error) {
	if actor.Role != models.RoleRegistrar && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only registrars may enroll applicants")
	}
	applicant, err := s.applicants.FindByID(ctx, applicantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applicant")
	}
	if err := requireCampus(actor, applicant); err != nil {
		return nil, err
	}
	return applicant, nil
}

// findExistingStudent makes enrollment retries safe: an applicant whose
// email already belongs to a student record is treated as enrolled.
func (s *EnrollmentService) findExistingStudent(ctx context.Context, applicant *models.Applicant) *models.Student {
	student, err := s.students.FindByEmail(ctx, applicant.Email)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("student lookup failed", zap.String("email", applicant.Email), zap.Error(err))
		}
		return nil
	}
	return student
}

func (s *EnrollmentService) buildProvision(ctx context.Context, applicant *models.Applicant, allocator *numberAllocator) (*models.StudentProvision, error) {
	campus, err := s.programs.FindCampus(ctx, applicant.CampusID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load campus")
	}
	year, err := s.programs.FindAcademicYear(ctx, applicant.AcademicYearID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
	}
	programID, err := s.resolveProgram(ctx, applicant)
	if err != nil {
		return nil, err
	}
	number, err := allocator.Next(ctx, campus, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate student number")
	}
	passwordHash, err := randomPasswordHash()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate credentials")
	}

	now := time.Now().UTC()
	campusID := applicant.CampusID
	user := models.User{
		ID:           uuid.NewString(),
		Username:     number,
		Email:        applicant.Email,
		PasswordHash: passwordHash,
		FullName:     applicant.FullName,
		Role:         models.RoleStudent,
		CampusID:     &campusID,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	student := models.Student{
		ID:            uuid.NewString(),
		StudentNumber: number,
		UserID:        user.ID,
		FullName:      applicant.FullName,
		Email:         applicant.Email,
		Phone:         applicant.Phone,
		Address:       applicant.Address,
		Gender:        applicant.Gender,
		BirthDate:     applicant.BirthDate,
		ProgramID:     programID,
		CampusID:      applicant.CampusID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	enrollment := models.StudentEnrollment{
		ID:              uuid.NewString(),
		StudentID:       student.ID,
		ApplicantNumber: applicant.ApplicantNumber,
		ProgramID:       programID,
		AcademicYearID:  applicant.AcademicYearID,
		YearLevel:       1,
		Semester:        1,
		Status:          models.StudentEnrollmentStatusEnrolled,
		CreatedAt:       now,
	}
	return &models.StudentProvision{User: user, Student: student, Enrollment: enrollment}, nil
}

// resolveProgram prefers the explicit program reference and falls back to
// matching the free-text desired program against active campus programs.
// An unmatched desired program leaves the student without a program link.
func (s *EnrollmentService) resolveProgram(ctx context.Context, applicant *models.Applicant) (*string, error) {
	if applicant.ProgramID != nil && *applicant.ProgramID != "" {
		program, err := s.programs.FindByID(ctx, *applicant.ProgramID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "referenced program not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program")
		}
		return &program.ID, nil
	}

	programs, err := s.programs.ListActive(ctx, applicant.CampusID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list programs")
	}
	for i := range programs {
		if models.MatchesProgram(applicant.DesiredProgram, programs[i]) {
			return &programs[i].ID, nil
		}
	}
	s.logger.Info("desired program unmatched",
		zap.String("applicant_number", applicant.ApplicantNumber),
		zap.String("desired_program", applicant.DesiredProgram))
	return nil, nil
}

func randomPasswordHash() (string, error) {
	raw := make([]byte, 16)
	if _, err := rand.Read(raw); err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(hex.EncodeToString(raw)), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
