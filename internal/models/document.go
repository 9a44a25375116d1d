package models

import "time"

// DocumentStatus is the review state of one admission document.
type DocumentStatus string

const (
	DocumentStatusMissing   DocumentStatus = "MISSING"
	DocumentStatusSubmitted DocumentStatus = "SUBMITTED"
	DocumentStatusVerified  DocumentStatus = "VERIFIED"
	DocumentStatusInvalid   DocumentStatus = "INVALID"
)

// AdmissionDocument is one required document of an applicant.
type AdmissionDocument struct {
	ID           string         `db:"id" json:"id"`
	ApplicantID  string         `db:"applicant_id" json:"applicant_id"`
	DocumentType string         `db:"document_type" json:"document_type"`
	Status       DocumentStatus `db:"status" json:"status"`
	Remarks      string         `db:"remarks" json:"remarks,omitempty"`
	ReviewedBy   *string        `db:"reviewed_by" json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time     `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at" json:"updated_at"`
}

// DocumentAggregate summarises an applicant's document review state.
// AllVerified is false when the applicant has no documents at all.
type DocumentAggregate struct {
	Total       int  `json:"total"`
	Verified    int  `json:"verified"`
	AllVerified bool `json:"all_verified"`
	AnyInvalid  bool `json:"any_invalid"`
}
