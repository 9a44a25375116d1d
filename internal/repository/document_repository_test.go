package repository

import (
	"context"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuside/admissions-api/internal/models"
)

func newDocumentMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestDocumentRepositoryAggregateAllVerified(t *testing.T) {
	db, mock, cleanup := newDocumentMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	rows := sqlmock.NewRows([]string{"total", "verified", "invalid"}).AddRow(3, 3, 0)
	mock.ExpectQuery("SELECT").
		WithArgs("a1", models.DocumentStatusVerified, models.DocumentStatusInvalid).
		WillReturnRows(rows)

	aggregate, err := repo.Aggregate(context.Background(), "a1")
	require.NoError(t, err)
	assert.True(t, aggregate.AllVerified)
	assert.False(t, aggregate.AnyInvalid)
	assert.Equal(t, 3, aggregate.Total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryAggregateNoDocuments(t *testing.T) {
	db, mock, cleanup := newDocumentMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	rows := sqlmock.NewRows([]string{"total", "verified", "invalid"}).AddRow(0, 0, 0)
	mock.ExpectQuery("SELECT").
		WithArgs("a1", models.DocumentStatusVerified, models.DocumentStatusInvalid).
		WillReturnRows(rows)

	aggregate, err := repo.Aggregate(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, aggregate.AllVerified)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryAggregateAnyInvalid(t *testing.T) {
	db, mock, cleanup := newDocumentMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	rows := sqlmock.NewRows([]string{"total", "verified", "invalid"}).AddRow(3, 1, 1)
	mock.ExpectQuery("SELECT").
		WithArgs("a1", models.DocumentStatusVerified, models.DocumentStatusInvalid).
		WillReturnRows(rows)

	aggregate, err := repo.Aggregate(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, aggregate.AllVerified)
	assert.True(t, aggregate.AnyInvalid)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryBulkUpdateStatus(t *testing.T) {
	db, mock, cleanup := newDocumentMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE admission_documents SET status").
		WithArgs(models.DocumentStatusVerified, "officer-1", sqlmock.AnyArg(), "d1", "d2").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	err := repo.BulkUpdateStatus(context.Background(), []string{"d1", "d2"}, models.DocumentStatusVerified, "officer-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryBulkUpdateStatusEmpty(t *testing.T) {
	db, mock, cleanup := newDocumentMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	err := repo.BulkUpdateStatus(context.Background(), nil, models.DocumentStatusVerified, "officer-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDocumentRepositoryRevertToSubmitted(t *testing.T) {
	db, mock, cleanup := newDocumentMock(t)
	defer cleanup()
	repo := NewDocumentRepository(db)

	mock.ExpectExec("UPDATE admission_documents SET status").
		WithArgs(models.DocumentStatusSubmitted, sqlmock.AnyArg(), "d1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.RevertToSubmitted(context.Background(), []string{"d1"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
