package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAcademicYearSuffix(t *testing.T) {
	assert.Equal(t, "24", AcademicYear{Name: "2024-2025"}.Suffix())
	assert.Equal(t, "25", AcademicYear{Name: "2025-2026"}.Suffix())
	assert.Equal(t, "9", AcademicYear{Name: "9"}.Suffix())
}

func TestResolveProgramCategory(t *testing.T) {
	assert.Equal(t, CategoryCHED, ResolveProgramCategory("ched"))
	assert.Equal(t, CategoryTESDA, ResolveProgramCategory(" TESDA "))
	assert.Equal(t, CategoryDiploma, ResolveProgramCategory("diploma"))
	assert.Equal(t, CategoryOther, ResolveProgramCategory("vocational"))
	assert.Equal(t, CategoryOther, ResolveProgramCategory(""))
}

func TestCategoryRequirements(t *testing.T) {
	assert.True(t, CategoryCHED.RequiresExam())
	assert.False(t, CategoryCHED.RequiresInterview())
	assert.True(t, CategoryTESDA.RequiresInterview())
	assert.True(t, CategoryDiploma.RequiresInterview())
	assert.False(t, CategoryOther.RequiresExam())
	assert.False(t, CategoryOther.RequiresInterview())
}

func TestMatchesProgram(t *testing.T) {
	program := Program{Code: "BSIT", Name: "BS Information Technology"}

	assert.True(t, MatchesProgram("bsit", program))
	assert.True(t, MatchesProgram("BS Information Technology", program))
	assert.True(t, MatchesProgram("Bachelor of Science in Information Technology (BSIT)", program))
	assert.False(t, MatchesProgram("BS Nursing", program))
	assert.False(t, MatchesProgram("", program))
}
