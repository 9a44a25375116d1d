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

// DocumentRepository handles persistence of admission documents.
type DocumentRepository struct {
	db *sqlx.DB
}

// NewDocumentRepository constructs the repository.
func NewDocumentRepository(db *sqlx.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

// ListByApplicant returns all documents belonging to the applicant.
func (r *DocumentRepository) ListByApplicant(ctx context.Context, applicantID string) ([]models.AdmissionDocument, error) {
	const query = `SELECT id, applicant_id, document_type, status, remarks, reviewed_by, reviewed_at, created_at, updated_at
        FROM admission_documents WHERE applicant_id = $1 ORDER BY document_type`
	var documents []models.AdmissionDocument
	if err := r.db.SelectContext(ctx, &documents, query, applicantID); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return documents, nil
}

// FindByID returns a document by its ID.
func (r *DocumentRepository) FindByID(ctx context.Context, id string) (*models.AdmissionDocument, error) {
	const query = `SELECT id, applicant_id, document_type, status, remarks, reviewed_by, reviewed_at, created_at, updated_at
        FROM admission_documents WHERE id = $1`
	var document models.AdmissionDocument
	if err := r.db.GetContext(ctx, &document, query, id); err != nil {
		return nil, err
	}
	return &document, nil
}

// Create persists a new document record.
func (r *DocumentRepository) Create(ctx context.Context, document *models.AdmissionDocument) error {
	now := time.Now().UTC()
	if document.ID == "" {
		document.ID = uuid.NewString()
	}
	if document.Status == "" {
		document.Status = models.DocumentStatusMissing
	}
	if document.CreatedAt.IsZero() {
		document.CreatedAt = now
	}
	document.UpdatedAt = now
	const query = `INSERT INTO admission_documents (id, applicant_id, document_type, status, remarks, reviewed_by, reviewed_at, created_at, updated_at)
        VALUES (:id, :applicant_id, :document_type, :status, :remarks, :reviewed_by, :reviewed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, document); err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

// UpdateStatus records a review decision on a single document.
func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status models.DocumentStatus, remarks, reviewedBy string) error {
	const query = `UPDATE admission_documents SET status = $2, remarks = $3, reviewed_by = $4, reviewed_at = $5, updated_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, remarks, reviewedBy, time.Now().UTC()); err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	return nil
}

// BulkUpdateStatus applies one review decision to many documents inside a
// single transaction. The whole batch commits or none of it does.
func (r *DocumentRepository) BulkUpdateStatus(ctx context.Context, ids []string, status models.DocumentStatus, reviewedBy string) error {
	if len(ids) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk document update: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	placeholders := make([]string, len(ids))
	args := []interface{}{status, reviewedBy, now}
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, id)
	}
	query := fmt.Sprintf(`UPDATE admission_documents SET status = $1, reviewed_by = $2, reviewed_at = $3, updated_at = $3
        WHERE id IN (%s)`, strings.Join(placeholders, ","))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("bulk update documents: %w", err)
	}
	return tx.Commit()
}

// RevertToSubmitted rolls verified documents back to SUBMITTED. Used by the
// compensating path when a downstream scheduling precondition fails.
func (r *DocumentRepository) RevertToSubmitted(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	placeholders := make([]string, len(ids))
	args := []interface{}{models.DocumentStatusSubmitted, time.Now().UTC()}
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", len(args)+1)
		args = append(args, id)
	}
	query := fmt.Sprintf(`UPDATE admission_documents SET status = $1, reviewed_by = NULL, reviewed_at = NULL, updated_at = $2
        WHERE id IN (%s)`, strings.Join(placeholders, ","))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("revert documents: %w", err)
	}
	return nil
}

// Aggregate summarises document verification state for the applicant.
// An applicant with no documents reports AllVerified=false.
func (r *DocumentRepository) Aggregate(ctx context.Context, applicantID string) (models.DocumentAggregate, error) {
	const query = `SELECT
        COUNT(*) AS total,
        COUNT(*) FILTER (WHERE status = $2) AS verified,
        COUNT(*) FILTER (WHERE status = $3) AS invalid
        FROM admission_documents WHERE applicant_id = $1`
	var row struct {
		Total    int `db:"total"`
		Verified int `db:"verified"`
		Invalid  int `db:"invalid"`
	}
	if err := r.db.GetContext(ctx, &row, query, applicantID, models.DocumentStatusVerified, models.DocumentStatusInvalid); err != nil {
		return models.DocumentAggregate{}, fmt.Errorf("aggregate documents: %w", err)
	}
	return models.DocumentAggregate{
		Total:       row.Total,
		Verified:    row.Verified,
		AllVerified: row.Total > 0 && row.Verified == row.Total,
		AnyInvalid:  row.Invalid > 0,
	}, nil
}
