package models

import "time"

// ScheduleKind distinguishes entrance-exam slots from interview slots.
type ScheduleKind string

const (
	ScheduleKindExam      ScheduleKind = "EXAM"
	ScheduleKindInterview ScheduleKind = "INTERVIEW"
)

// AssignmentStatus is the state of one applicant's slot assignment.
type AssignmentStatus string

const (
	AssignmentStatusScheduled AssignmentStatus = "SCHEDULED"
	AssignmentStatusAttended  AssignmentStatus = "ATTENDED"
	AssignmentStatusMissed    AssignmentStatus = "MISSED"
)

// Schedule is a capacity-bounded exam or interview slot.
type Schedule struct {
	ID        string       `db:"id" json:"id"`
	Kind      ScheduleKind `db:"kind" json:"kind"`
	Date      time.Time    `db:"date" json:"date"`
	StartTime string       `db:"start_time" json:"start_time"`
	EndTime   string       `db:"end_time" json:"end_time"`
	Capacity  int          `db:"capacity" json:"capacity"`
	CampusID  string       `db:"campus_id" json:"campus_id"`
	Room      string       `db:"room" json:"room"`
	CreatedAt time.Time    `db:"created_at" json:"created_at"`
}

// ScheduleSlot is a schedule together with its consumed capacity.
type ScheduleSlot struct {
	Schedule
	Used int `db:"used" json:"used"`
}

// Available reports whether the slot still has free capacity.
func (s ScheduleSlot) Available() bool {
	return s.Used < s.Capacity
}

// ScheduleAssignment records one applicant's assignment to one slot.
type ScheduleAssignment struct {
	ID          string           `db:"id" json:"id"`
	ScheduleID  string           `db:"schedule_id" json:"schedule_id"`
	ApplicantID string           `db:"applicant_id" json:"applicant_id"`
	Status      AssignmentStatus `db:"status" json:"status"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// ScheduleFilter captures listing parameters for schedules.
type ScheduleFilter struct {
	Kind      ScheduleKind
	CampusID  string
	DateFrom  *time.Time
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
