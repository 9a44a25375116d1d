package models

import (
	"strings"
	"time"
)

// Program is an academic program offered by a campus.
type Program struct {
	ID        string          `db:"id" json:"id"`
	Code      string          `db:"code" json:"code"`
	Name      string          `db:"name" json:"name"`
	Category  ProgramCategory `db:"category" json:"category"`
	CampusID  string          `db:"campus_id" json:"campus_id"`
	Active    bool            `db:"active" json:"active"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// Campus is a physical site. Alpha is the two-letter code and Number the
// legacy numeric id; both feed into generated student numbers.
type Campus struct {
	ID     string `db:"id" json:"id"`
	Alpha  string `db:"alpha" json:"alpha"`
	Number int    `db:"number" json:"number"`
	Name   string `db:"name" json:"name"`
}

// AcademicYear names an admission cycle, e.g. "2024-2025".
type AcademicYear struct {
	ID     string `db:"id" json:"id"`
	Name   string `db:"name" json:"name"`
	Active bool   `db:"active" json:"active"`
}

// Suffix returns the two-digit year suffix used in student numbers,
// taken from the starting year ("2024-2025" -> "24").
func (y AcademicYear) Suffix() string {
	start, _, _ := strings.Cut(y.Name, "-")
	if len(start) >= 2 {
		return start[len(start)-2:]
	}
	return start
}

// ResolveProgramCategory normalises raw category input into one of the
// known categories. Unknown or empty values map to OTHER.
func ResolveProgramCategory(raw string) ProgramCategory {
	switch ProgramCategory(strings.ToUpper(strings.TrimSpace(raw))) {
	case CategoryCHED:
		return CategoryCHED
	case CategoryTESDA:
		return CategoryTESDA
	case CategoryDiploma:
		return CategoryDiploma
	default:
		return CategoryOther
	}
}

// MatchesProgram reports whether the free-text desired program refers to the
// given program, by code, by name, or by a trailing parenthesised code such
// as "Bachelor of Science in Information Technology (BSIT)".
func MatchesProgram(desired string, p Program) bool {
	desired = strings.TrimSpace(desired)
	if desired == "" {
		return false
	}
	if strings.EqualFold(desired, p.Code) || strings.EqualFold(desired, p.Name) {
		return true
	}
	return strings.HasSuffix(strings.ToUpper(desired), "("+strings.ToUpper(p.Code)+")")
}
