package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campuside/admissions-api/internal/models"
)

// StudentRepository handles persistence of students and their enrollments.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs the repository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByEmail returns the student registered under the email, if any.
func (r *StudentRepository) FindByEmail(ctx context.Context, email string) (*models.Student, error) {
	const query = `SELECT id, student_number, user_id, full_name, email, phone, address, gender, birth_date,
        program_id, campus_id, created_at, updated_at FROM students WHERE email = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, email); err != nil {
		return nil, err
	}
	return &student, nil
}

// FindByID returns a student by its ID.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, student_number, user_id, full_name, email, phone, address, gender, birth_date,
        program_id, campus_id, created_at, updated_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		return nil, err
	}
	return &student, nil
}

// LatestStudentNumber returns the highest existing username that starts with
// the given prefix and matches the student-number shape. Returns empty string
// when none exists.
func (r *StudentRepository) LatestStudentNumber(ctx context.Context, prefix string) (string, error) {
	const query = `SELECT username FROM users
        WHERE username LIKE $1 || '%' AND username ~ '^[A-Z]{2}[0-9]{2}[0-9]{2}[0-9]{4}$'
        ORDER BY username DESC LIMIT 1`
	var username string
	if err := r.db.GetContext(ctx, &username, query, prefix); err != nil {
		if err == sql.ErrNoRows {
			return "", nil
		}
		return "", fmt.Errorf("latest student number: %w", err)
	}
	return username, nil
}

// Provision persists the user, student and enrollment rows for one applicant
// and flips the applicant to OFFICIALLY_ENROLLED, all in one transaction.
func (r *StudentRepository) Provision(ctx context.Context, p models.StudentProvision) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin provision: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := provisionTx(ctx, tx, p); err != nil {
		return err
	}
	return tx.Commit()
}

// ProvisionBatch persists many provisions inside a single transaction. The
// batch is all-or-nothing: one failure aborts every provision in it.
func (r *StudentRepository) ProvisionBatch(ctx context.Context, provisions []models.StudentProvision) error {
	if len(provisions) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin provision batch: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	for _, p := range provisions {
		if err := provisionTx(ctx, tx, p); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func provisionTx(ctx context.Context, tx *sqlx.Tx, p models.StudentProvision) error {
	const insertUser = `INSERT INTO users (id, username, email, password_hash, full_name, role, campus_id, active, created_at, updated_at)
        VALUES (:id, :username, :email, :password_hash, :full_name, :role, :campus_id, :active, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertUser, p.User); err != nil {
		return fmt.Errorf("provision user: %w", err)
	}

	const insertStudent = `INSERT INTO students (id, student_number, user_id, full_name, email, phone, address, gender, birth_date,
        program_id, campus_id, created_at, updated_at)
        VALUES (:id, :student_number, :user_id, :full_name, :email, :phone, :address, :gender, :birth_date,
        :program_id, :campus_id, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertStudent, p.Student); err != nil {
		return fmt.Errorf("provision student: %w", err)
	}

	const insertEnrollment = `INSERT INTO student_enrollments (id, student_id, applicant_number, program_id, academic_year_id,
        year_level, semester, status, created_at)
        VALUES (:id, :student_id, :applicant_number, :program_id, :academic_year_id, :year_level, :semester, :status, :created_at)`
	if _, err := tx.NamedExecContext(ctx, insertEnrollment, p.Enrollment); err != nil {
		return fmt.Errorf("provision enrollment: %w", err)
	}

	const updateApplicant = `UPDATE applicants SET status = $2, student_number = $3, updated_at = $4
        WHERE applicant_number = $1`
	if _, err := tx.ExecContext(ctx, updateApplicant, p.Enrollment.ApplicantNumber,
		models.ApplicantStatusOfficiallyEnrolled, p.Student.StudentNumber, time.Now().UTC()); err != nil {
		return fmt.Errorf("provision applicant update: %w", err)
	}
	return nil
}
