package models

import "time"

// ApplicantStatus is the applicant's position in the admission pipeline.
type ApplicantStatus string

const (
	ApplicantStatusPending            ApplicantStatus = "PENDING"
	ApplicantStatusApproved           ApplicantStatus = "APPROVED"
	ApplicantStatusForEntranceExam    ApplicantStatus = "FOR_ENTRANCE_EXAM"
	ApplicantStatusForInterview       ApplicantStatus = "FOR_INTERVIEW"
	ApplicantStatusForEnrollment      ApplicantStatus = "FOR_ENROLLMENT"
	ApplicantStatusOfficiallyEnrolled ApplicantStatus = "OFFICIALLY_ENROLLED"
	ApplicantStatusDeclined           ApplicantStatus = "DECLINED"
)

// Terminal reports whether no further transitions are possible.
func (s ApplicantStatus) Terminal() bool {
	return s == ApplicantStatusOfficiallyEnrolled || s == ApplicantStatusDeclined
}

// ProgramCategory classifies the applicant's desired program and decides
// which admission step, if any, is required before enrollment.
type ProgramCategory string

const (
	CategoryCHED    ProgramCategory = "CHED"
	CategoryTESDA   ProgramCategory = "TESDA"
	CategoryDiploma ProgramCategory = "DIPLOMA"
	CategoryOther   ProgramCategory = "OTHER"
)

// RequiresExam reports whether the category mandates an entrance exam.
func (c ProgramCategory) RequiresExam() bool {
	return c == CategoryCHED
}

// RequiresInterview reports whether the category mandates an interview.
func (c ProgramCategory) RequiresInterview() bool {
	return c == CategoryTESDA || c == CategoryDiploma
}

// Applicant is one admission application moving through the pipeline.
type Applicant struct {
	ID              string          `db:"id" json:"id"`
	ApplicantNumber string          `db:"applicant_number" json:"applicant_number"`
	FullName        string          `db:"full_name" json:"full_name"`
	Email           string          `db:"email" json:"email"`
	Phone           string          `db:"phone" json:"phone"`
	Address         string          `db:"address" json:"address"`
	Gender          string          `db:"gender" json:"gender"`
	BirthDate       time.Time       `db:"birth_date" json:"birth_date"`
	ProgramCategory ProgramCategory `db:"program_category" json:"program_category"`
	Status          ApplicantStatus `db:"status" json:"status"`
	ProgramID       *string         `db:"program_id" json:"program_id,omitempty"`
	DesiredProgram  string          `db:"desired_program" json:"desired_program"`
	CampusID        string          `db:"campus_id" json:"campus_id"`
	AcademicYearID  string          `db:"academic_year_id" json:"academic_year_id"`
	StudentNumber   *string         `db:"student_number" json:"student_number,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// ApplicantDetail is an applicant joined with program and campus context for
// list and detail views.
type ApplicantDetail struct {
	Applicant
	ProgramCode *string `db:"program_code" json:"program_code,omitempty"`
	ProgramName *string `db:"program_name" json:"program_name,omitempty"`
	CampusName  *string `db:"campus_name" json:"campus_name,omitempty"`
	CampusAlpha *string `db:"campus_alpha" json:"campus_alpha,omitempty"`
}

// ApplicantFilter narrows applicant listings.
type ApplicantFilter struct {
	Search         string `form:"search"`
	Status         string `form:"status"`
	Category       string `form:"category"`
	CampusID       string `form:"campus_id"`
	AcademicYearID string `form:"academic_year_id"`
	SortBy         string `form:"sort_by"`
	SortOrder      string `form:"sort_order"`
	Page           int    `form:"page"`
	PageSize       int    `form:"page_size"`
}

// AdmissionCounts is one status bucket of the admissions dashboard.
type AdmissionCounts struct {
	Status ApplicantStatus `db:"status" json:"status"`
	Count  int             `db:"count" json:"count"`
}

// ActorContext identifies the authenticated staff member performing an
// admission action. CampusID is empty for unscoped accounts.
type ActorContext struct {
	UserID   string
	Role     UserRole
	CampusID string
}
