package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuside/admissions-api/internal/models"
)

// ApplicantRepository handles persistence of applicants.
type ApplicantRepository struct {
	db *sqlx.DB
}

// NewApplicantRepository constructs the repository.
func NewApplicantRepository(db *sqlx.DB) *ApplicantRepository {
	return &ApplicantRepository{db: db}
}

// List returns applicants filtered by the provided criteria.
func (r *ApplicantRepository) List(ctx context.Context, filter models.ApplicantFilter) ([]models.ApplicantDetail, int, error) {
	base := `FROM applicants a
LEFT JOIN programs p ON p.id = a.program_id
LEFT JOIN campuses c ON c.id = a.campus_id`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(a.full_name ILIKE $%d OR a.email ILIKE $%d OR a.applicant_number ILIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Category != "" {
		conditions = append(conditions, fmt.Sprintf("a.program_category = $%d", len(args)+1))
		args = append(args, filter.Category)
	}
	if filter.CampusID != "" {
		conditions = append(conditions, fmt.Sprintf("a.campus_id = $%d", len(args)+1))
		args = append(args, filter.CampusID)
	}
	if filter.AcademicYearID != "" {
		conditions = append(conditions, fmt.Sprintf("a.academic_year_id = $%d", len(args)+1))
		args = append(args, filter.AcademicYearID)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"created_at":       "a.created_at",
		"full_name":        "a.full_name",
		"status":           "a.status",
		"applicant_number": "a.applicant_number",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "a.created_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.applicant_number, a.full_name, a.email, a.phone, a.address, a.gender, a.birth_date,
        a.program_category, a.status, a.program_id, a.desired_program, a.campus_id, a.academic_year_id, a.student_number,
        a.created_at, a.updated_at,
        p.code AS program_code, p.name AS program_name, c.name AS campus_name, c.alpha AS campus_alpha
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var applicants []models.ApplicantDetail
	if err := r.db.SelectContext(ctx, &applicants, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applicants: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applicants: %w", err)
	}
	return applicants, total, nil
}

// FindByID returns an applicant by its ID.
func (r *ApplicantRepository) FindByID(ctx context.Context, id string) (*models.Applicant, error) {
	const query = `SELECT id, applicant_number, full_name, email, phone, address, gender, birth_date,
        program_category, status, program_id, desired_program, campus_id, academic_year_id, student_number,
        created_at, updated_at FROM applicants WHERE id = $1`
	var applicant models.Applicant
	if err := r.db.GetContext(ctx, &applicant, query, id); err != nil {
		return nil, err
	}
	return &applicant, nil
}

// FindDetailByID returns an applicant with program and campus context.
func (r *ApplicantRepository) FindDetailByID(ctx context.Context, id string) (*models.ApplicantDetail, error) {
	const query = `SELECT a.id, a.applicant_number, a.full_name, a.email, a.phone, a.address, a.gender, a.birth_date,
        a.program_category, a.status, a.program_id, a.desired_program, a.campus_id, a.academic_year_id, a.student_number,
        a.created_at, a.updated_at,
        p.code AS program_code, p.name AS program_name, c.name AS campus_name, c.alpha AS campus_alpha
        FROM applicants a
        LEFT JOIN programs p ON p.id = a.program_id
        LEFT JOIN campuses c ON c.id = a.campus_id
        WHERE a.id = $1`
	var detail models.ApplicantDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new applicant record.
func (r *ApplicantRepository) Create(ctx context.Context, applicant *models.Applicant) error {
	now := time.Now().UTC()
	if applicant.ID == "" {
		applicant.ID = uuid.NewString()
	}
	if applicant.Status == "" {
		applicant.Status = models.ApplicantStatusPending
	}
	if applicant.CreatedAt.IsZero() {
		applicant.CreatedAt = now
	}
	applicant.UpdatedAt = now
	const query = `INSERT INTO applicants (id, applicant_number, full_name, email, phone, address, gender, birth_date,
        program_category, status, program_id, desired_program, campus_id, academic_year_id, student_number, created_at, updated_at)
        VALUES (:id, :applicant_number, :full_name, :email, :phone, :address, :gender, :birth_date,
        :program_category, :status, :program_id, :desired_program, :campus_id, :academic_year_id, :student_number, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, applicant); err != nil {
		return fmt.Errorf("create applicant: %w", err)
	}
	return nil
}

// UpdateStatus moves the applicant to a new pipeline status.
func (r *ApplicantRepository) UpdateStatus(ctx context.Context, id string, status models.ApplicantStatus) error {
	const query = `UPDATE applicants SET status = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, time.Now().UTC()); err != nil {
		return fmt.Errorf("update applicant status: %w", err)
	}
	return nil
}

// ClaimStatus moves the applicant from one specific status to another and
// reports whether this caller won the update. Concurrent evaluations racing
// to advance the same applicant serialize on this compare-and-set; only one
// observes true.
func (r *ApplicantRepository) ClaimStatus(ctx context.Context, id string, from, to models.ApplicantStatus) (bool, error) {
	const query = `UPDATE applicants SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`
	result, err := r.db.ExecContext(ctx, query, id, from, to, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("claim applicant status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim applicant status: %w", err)
	}
	return rows == 1, nil
}

// CountByStatus aggregates applicants per status, optionally per campus.
func (r *ApplicantRepository) CountByStatus(ctx context.Context, campusID string) ([]models.AdmissionCounts, error) {
	query := `SELECT status, COUNT(*) AS count FROM applicants`
	var args []interface{}
	if campusID != "" {
		query += " WHERE campus_id = $1"
		args = append(args, campusID)
	}
	query += " GROUP BY status ORDER BY status"
	var counts []models.AdmissionCounts
	if err := r.db.SelectContext(ctx, &counts, query, args...); err != nil {
		return nil, fmt.Errorf("count applicants by status: %w", err)
	}
	return counts, nil
}

// CountByCategory aggregates applicants per program category.
func (r *ApplicantRepository) CountByCategory(ctx context.Context, campusID string) (map[models.ProgramCategory]int, error) {
	query := `SELECT program_category, COUNT(*) FROM applicants`
	var args []interface{}
	if campusID != "" {
		query += " WHERE campus_id = $1"
		args = append(args, campusID)
	}
	query += " GROUP BY program_category"
	rows, err := r.db.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("count applicants by category: %w", err)
	}
	defer rows.Close()
	counts := make(map[models.ProgramCategory]int)
	for rows.Next() {
		var category models.ProgramCategory
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts[category] = count
	}
	return counts, rows.Err()
}
