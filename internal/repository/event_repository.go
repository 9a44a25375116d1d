package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuside/admissions-api/internal/models"
)

// EventRepository persists applicant status transition events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Create persists a transition event.
func (r *EventRepository) Create(ctx context.Context, event *models.TransitionEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now().UTC()
	}
	if event.ReasonType == "" {
		event.ReasonType = models.ReasonDefault
	}
	const query = `INSERT INTO transition_events (id, applicant_id, old_status, new_status, reason_type, payload, emitted_at)
        VALUES (:id, :applicant_id, :old_status, :new_status, :reason_type, :payload, :emitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("create transition event: %w", err)
	}
	return nil
}

// ListByApplicant returns the transition history of an applicant in order.
func (r *EventRepository) ListByApplicant(ctx context.Context, applicantID string) ([]models.TransitionEvent, error) {
	const query = `SELECT id, applicant_id, old_status, new_status, reason_type, payload, emitted_at
        FROM transition_events WHERE applicant_id = $1 ORDER BY emitted_at`
	var events []models.TransitionEvent
	if err := r.db.SelectContext(ctx, &events, query, applicantID); err != nil {
		return nil, fmt.Errorf("list transition events: %w", err)
	}
	return events, nil
}
