package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuside/admissions-api/internal/models"
	appErrors "github.com/campuside/admissions-api/pkg/errors"
)

// ScheduleRepository handles persistence of exam/interview schedules and
// their applicant assignments.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository constructs the repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// List returns schedules with their consumed capacity.
func (r *ScheduleRepository) List(ctx context.Context, filter models.ScheduleFilter) ([]models.ScheduleSlot, int, error) {
	base := `FROM schedules s`
	var conditions []string
	var args []interface{}

	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("s.kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if filter.CampusID != "" {
		conditions = append(conditions, fmt.Sprintf("s.campus_id = $%d", len(args)+1))
		args = append(args, filter.CampusID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("s.date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf(`SELECT s.id, s.kind, s.date, s.start_time, s.end_time, s.capacity, s.campus_id, s.room, s.created_at,
        (SELECT COUNT(*) FROM schedule_assignments sa WHERE sa.schedule_id = s.id) AS used
        %s ORDER BY s.date %s, s.id %s LIMIT %d OFFSET %d`, base+clause, order, order, size, offset)

	var slots []models.ScheduleSlot
	if err := r.db.SelectContext(ctx, &slots, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list schedules: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count schedules: %w", err)
	}
	return slots, total, nil
}

// FindByID returns a schedule with its consumed capacity.
func (r *ScheduleRepository) FindByID(ctx context.Context, id string) (*models.ScheduleSlot, error) {
	const query = `SELECT s.id, s.kind, s.date, s.start_time, s.end_time, s.capacity, s.campus_id, s.room, s.created_at,
        (SELECT COUNT(*) FROM schedule_assignments sa WHERE sa.schedule_id = s.id) AS used
        FROM schedules s WHERE s.id = $1`
	var slot models.ScheduleSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// Create persists a new schedule.
func (r *ScheduleRepository) Create(ctx context.Context, schedule *models.Schedule) error {
	if schedule.ID == "" {
		schedule.ID = uuid.NewString()
	}
	if schedule.CreatedAt.IsZero() {
		schedule.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO schedules (id, kind, date, start_time, end_time, capacity, campus_id, room, created_at)
        VALUES (:id, :kind, :date, :start_time, :end_time, :capacity, :campus_id, :room, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, schedule); err != nil {
		return fmt.Errorf("create schedule: %w", err)
	}
	return nil
}

// FindEarliestAvailable returns the earliest slot of the requested kind on or
// after the given date that still has free capacity. Ties on date break by
// lowest id. Returns nil when no such slot exists.
func (r *ScheduleRepository) FindEarliestAvailable(ctx context.Context, kind models.ScheduleKind, notBefore time.Time) (*models.ScheduleSlot, error) {
	const query = `SELECT s.id, s.kind, s.date, s.start_time, s.end_time, s.capacity, s.campus_id, s.room, s.created_at,
        (SELECT COUNT(*) FROM schedule_assignments sa WHERE sa.schedule_id = s.id) AS used
        FROM schedules s
        WHERE s.kind = $1 AND s.date >= $2
          AND (SELECT COUNT(*) FROM schedule_assignments sa WHERE sa.schedule_id = s.id) < s.capacity
        ORDER BY s.date ASC, s.id ASC
        LIMIT 1`
	var slot models.ScheduleSlot
	if err := r.db.GetContext(ctx, &slot, query, kind, notBefore); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find available slot: %w", err)
	}
	return &slot, nil
}

// CountUpcoming counts schedules of the given kind on or after the date,
// regardless of remaining capacity. Callers use it to tell "all slots full"
// apart from "no slots exist".
func (r *ScheduleRepository) CountUpcoming(ctx context.Context, kind models.ScheduleKind, notBefore time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM schedules WHERE kind = $1 AND date >= $2`
	var total int
	if err := r.db.GetContext(ctx, &total, query, kind, notBefore); err != nil {
		return 0, fmt.Errorf("count upcoming schedules: %w", err)
	}
	return total, nil
}

// HasActiveAssignment reports whether the applicant already holds an
// assignment of the given schedule kind.
func (r *ScheduleRepository) HasActiveAssignment(ctx context.Context, applicantID string, kind models.ScheduleKind) (bool, error) {
	const query = `SELECT 1 FROM schedule_assignments sa
        JOIN schedules s ON s.id = sa.schedule_id
        WHERE sa.applicant_id = $1 AND s.kind = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, applicantID, kind); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check active assignment: %w", err)
	}
	return true, nil
}

// Assign inserts an assignment for the applicant, re-validating capacity in
// the same transaction. The schedule row is locked so the recount and the
// insert are serial with respect to concurrent assignments; two callers
// racing for the last seat cannot both win.
func (r *ScheduleRepository) Assign(ctx context.Context, applicantID, scheduleID string) (*models.ScheduleAssignment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin assignment: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	var capacity int
	if err := tx.GetContext(ctx, &capacity, `SELECT capacity FROM schedules WHERE id = $1 FOR UPDATE`, scheduleID); err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "schedule not found")
		}
		return nil, fmt.Errorf("lock schedule: %w", err)
	}

	var used int
	if err := tx.GetContext(ctx, &used, `SELECT COUNT(*) FROM schedule_assignments WHERE schedule_id = $1`, scheduleID); err != nil {
		return nil, fmt.Errorf("count assignments: %w", err)
	}
	if used >= capacity {
		return nil, appErrors.ErrCapacityExceeded
	}

	assignment := &models.ScheduleAssignment{
		ID:          uuid.NewString(),
		ScheduleID:  scheduleID,
		ApplicantID: applicantID,
		Status:      models.AssignmentStatusScheduled,
		CreatedAt:   time.Now().UTC(),
	}
	const insert = `INSERT INTO schedule_assignments (id, schedule_id, applicant_id, status, created_at)
        VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, insert, assignment.ID, assignment.ScheduleID, assignment.ApplicantID, assignment.Status, assignment.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert assignment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit assignment: %w", err)
	}
	return assignment, nil
}

// ListAssignments returns all assignments for a schedule.
func (r *ScheduleRepository) ListAssignments(ctx context.Context, scheduleID string) ([]models.ScheduleAssignment, error) {
	const query = `SELECT id, schedule_id, applicant_id, status, created_at
        FROM schedule_assignments WHERE schedule_id = $1 ORDER BY created_at`
	var assignments []models.ScheduleAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}
