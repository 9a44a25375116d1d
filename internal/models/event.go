package models

import (
	"encoding/json"
	"time"
)

// Reason types carried on transition events; the mailer selects its template
// from these values.
const (
	ReasonEntranceExam      = "entrance_exam"
	ReasonInterviewSchedule = "interview_schedule"
	ReasonInvalidDocument   = "invalid_document"
	ReasonDefault           = "default"
)

// TransitionEvent is the durable record of one applicant status transition.
// Exactly one event is emitted per transition.
type TransitionEvent struct {
	ID          string          `db:"id" json:"id"`
	ApplicantID string          `db:"applicant_id" json:"applicant_id"`
	OldStatus   ApplicantStatus `db:"old_status" json:"old_status"`
	NewStatus   ApplicantStatus `db:"new_status" json:"new_status"`
	ReasonType  string          `db:"reason_type" json:"reason_type"`
	Payload     json.RawMessage `db:"payload" json:"payload,omitempty"`
	EmittedAt   time.Time       `db:"emitted_at" json:"emitted_at"`
}

// OutcomeState tags the result of a workflow evaluation.
type OutcomeState string

const (
	OutcomeCompleted OutcomeState = "COMPLETED"
	OutcomeBlocked   OutcomeState = "BLOCKED"
	OutcomeSkipped   OutcomeState = "SKIPPED"
)

// WorkflowOutcome reports what a workflow evaluation did. Blocked outcomes
// carry the reason the forward transition was withheld; thrown errors are
// reserved for unexpected persistence failures.
type WorkflowOutcome struct {
	State     OutcomeState    `json:"state"`
	NewStatus ApplicantStatus `json:"new_status,omitempty"`
	Reason    string          `json:"reason,omitempty"`
}

// Completed reports whether the evaluation moved the applicant forward.
func (o WorkflowOutcome) Completed() bool {
	return o.State == OutcomeCompleted
}
