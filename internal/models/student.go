package models

import "time"

// Student is the permanent record created when an applicant enrolls.
type Student struct {
	ID            string    `db:"id" json:"id"`
	StudentNumber string    `db:"student_number" json:"student_number"`
	UserID        string    `db:"user_id" json:"user_id"`
	FullName      string    `db:"full_name" json:"full_name"`
	Email         string    `db:"email" json:"email"`
	Phone         string    `db:"phone" json:"phone"`
	Address       string    `db:"address" json:"address"`
	Gender        string    `db:"gender" json:"gender"`
	BirthDate     time.Time `db:"birth_date" json:"birth_date"`
	ProgramID     *string   `db:"program_id" json:"program_id,omitempty"`
	CampusID      string    `db:"campus_id" json:"campus_id"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// StudentEnrollmentStatus is the state of an enrollment record.
type StudentEnrollmentStatus string

const (
	StudentEnrollmentStatusEnrolled StudentEnrollmentStatus = "ENROLLED"
	StudentEnrollmentStatusDropped  StudentEnrollmentStatus = "DROPPED"
)

// StudentEnrollment links a student to a program for an academic year.
// ApplicantNumber is the string applicant reference kept for legacy
// compatibility; it is not the numeric applicant id.
type StudentEnrollment struct {
	ID              string                  `db:"id" json:"id"`
	StudentID       string                  `db:"student_id" json:"student_id"`
	ApplicantNumber string                  `db:"applicant_number" json:"applicant_number"`
	ProgramID       *string                 `db:"program_id" json:"program_id,omitempty"`
	AcademicYearID  string                  `db:"academic_year_id" json:"academic_year_id"`
	YearLevel       int                     `db:"year_level" json:"year_level"`
	Semester        int                     `db:"semester" json:"semester"`
	Status          StudentEnrollmentStatus `db:"status" json:"status"`
	CreatedAt       time.Time               `db:"created_at" json:"created_at"`
}

// StudentProvision bundles the rows created for one enrolled applicant.
// The whole bundle is persisted atomically.
type StudentProvision struct {
	User       User
	Student    Student
	Enrollment StudentEnrollment
}
