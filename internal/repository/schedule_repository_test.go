package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuside/admissions-api/internal/models"
	appErrors "github.com/campuside/admissions-api/pkg/errors"
)

func newScheduleMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func scheduleRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "kind", "date", "start_time", "end_time", "capacity", "campus_id", "room", "created_at", "used"})
}

func TestScheduleRepositoryFindEarliestAvailable(t *testing.T) {
	db, mock, cleanup := newScheduleMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	date := time.Date(2025, 9, 10, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery("ORDER BY s.date ASC, s.id ASC").
		WithArgs(models.ScheduleKindExam, sqlmock.AnyArg()).
		WillReturnRows(scheduleRows().AddRow("s1", "EXAM", date, "08:00", "11:00", 30, "c1", "Room 101", time.Now(), 12))

	slot, err := repo.FindEarliestAvailable(context.Background(), models.ScheduleKindExam, time.Now())
	require.NoError(t, err)
	require.NotNil(t, slot)
	assert.Equal(t, "s1", slot.ID)
	assert.Equal(t, 18, slot.Available())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryFindEarliestAvailableNone(t *testing.T) {
	db, mock, cleanup := newScheduleMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectQuery("ORDER BY s.date ASC, s.id ASC").
		WithArgs(models.ScheduleKindInterview, sqlmock.AnyArg()).
		WillReturnRows(scheduleRows())

	slot, err := repo.FindEarliestAvailable(context.Background(), models.ScheduleKindInterview, time.Now())
	require.NoError(t, err)
	assert.Nil(t, slot)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryAssign(t *testing.T) {
	db, mock, cleanup := newScheduleMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT capacity FROM schedules WHERE id = \\$1 FOR UPDATE").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(30))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM schedule_assignments").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectExec("INSERT INTO schedule_assignments").
		WithArgs(sqlmock.AnyArg(), "s1", "a1", models.AssignmentStatusScheduled, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	assignment, err := repo.Assign(context.Background(), "a1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", assignment.ScheduleID)
	assert.Equal(t, models.AssignmentStatusScheduled, assignment.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryAssignCapacityExceeded(t *testing.T) {
	db, mock, cleanup := newScheduleMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	// The recount inside the lock sees the slot already full.
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT capacity FROM schedules WHERE id = \\$1 FOR UPDATE").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"capacity"}).AddRow(30))
	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM schedule_assignments").
		WithArgs("s1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(30))
	mock.ExpectRollback()

	_, err := repo.Assign(context.Background(), "a1", "s1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrCapacityExceeded))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestScheduleRepositoryHasActiveAssignment(t *testing.T) {
	db, mock, cleanup := newScheduleMock(t)
	defer cleanup()
	repo := NewScheduleRepository(db)

	mock.ExpectQuery("SELECT 1 FROM schedule_assignments").
		WithArgs("a1", models.ScheduleKindExam).
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	has, err := repo.HasActiveAssignment(context.Background(), "a1", models.ScheduleKindExam)
	require.NoError(t, err)
	assert.True(t, has)
	assert.NoError(t, mock.ExpectationsWereMet())
}
