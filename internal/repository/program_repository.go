package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campuside/admissions-api/internal/models"
)

// ProgramRepository handles lookups of programs, campuses and academic years.
type ProgramRepository struct {
	db *sqlx.DB
}

// NewProgramRepository constructs the repository.
func NewProgramRepository(db *sqlx.DB) *ProgramRepository {
	return &ProgramRepository{db: db}
}

// FindByID returns a program by its ID.
func (r *ProgramRepository) FindByID(ctx context.Context, id string) (*models.Program, error) {
	const query = `SELECT id, code, name, category, campus_id, active, created_at FROM programs WHERE id = $1`
	var program models.Program
	if err := r.db.GetContext(ctx, &program, query, id); err != nil {
		return nil, err
	}
	return &program, nil
}

// ListActive returns all active programs, optionally limited to a campus.
func (r *ProgramRepository) ListActive(ctx context.Context, campusID string) ([]models.Program, error) {
	query := `SELECT id, code, name, category, campus_id, active, created_at FROM programs WHERE active = TRUE`
	var args []interface{}
	if campusID != "" {
		query += " AND campus_id = $1"
		args = append(args, campusID)
	}
	query += " ORDER BY code"
	var programs []models.Program
	if err := r.db.SelectContext(ctx, &programs, query, args...); err != nil {
		return nil, fmt.Errorf("list programs: %w", err)
	}
	return programs, nil
}

// FindCampus returns a campus by its ID.
func (r *ProgramRepository) FindCampus(ctx context.Context, id string) (*models.Campus, error) {
	const query = `SELECT id, alpha, number, name FROM campuses WHERE id = $1`
	var campus models.Campus
	if err := r.db.GetContext(ctx, &campus, query, id); err != nil {
		return nil, err
	}
	return &campus, nil
}

// FindAcademicYear returns an academic year by its ID.
func (r *ProgramRepository) FindAcademicYear(ctx context.Context, id string) (*models.AcademicYear, error) {
	const query = `SELECT id, name, active FROM academic_years WHERE id = $1`
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query, id); err != nil {
		return nil, err
	}
	return &year, nil
}
