package repository

import (
	"context"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudeep-patali/nodue-api/internal/models"
)

func newSettingsRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestSettingsRepositoryGetWindowMissingRowIsNil(t *testing.T) {
	db, mock, cleanup := newSettingsRepoMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	mock.ExpectQuery(`FROM submission_windows WHERE scope = \$1`).
		WithArgs("2022-26").
		WillReturnRows(sqlmock.NewRows([]string{"id", "scope", "enabled", "starts_at", "ends_at", "updated_at"}))

	window, err := repo.GetWindow(context.Background(), "2022-26")
	require.NoError(t, err)
	assert.Nil(t, window)
}

func TestSettingsRepositoryGetWindow(t *testing.T) {
	db, mock, cleanup := newSettingsRepoMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	rows := sqlmock.NewRows([]string{"id", "scope", "enabled", "starts_at", "ends_at", "updated_at"}).
		AddRow("w-1", models.SubmissionWindowScopeGlobal, true, nil, nil, time.Now())
	mock.ExpectQuery(`FROM submission_windows WHERE scope = \$1`).
		WithArgs(models.SubmissionWindowScopeGlobal).
		WillReturnRows(rows)

	window, err := repo.GetWindow(context.Background(), models.SubmissionWindowScopeGlobal)
	require.NoError(t, err)
	require.NotNil(t, window)
	assert.True(t, window.Enabled)
}

func TestSettingsRepositoryUpsertWindowAssignsID(t *testing.T) {
	db, mock, cleanup := newSettingsRepoMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	mock.ExpectExec(`INSERT INTO submission_windows`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	window := &models.SubmissionWindow{Scope: "2022-26", Enabled: true}
	require.NoError(t, repo.UpsertWindow(context.Background(), window))
	assert.NotEmpty(t, window.ID)
	assert.False(t, window.UpdatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSettingsRepositoryDeleteWindow(t *testing.T) {
	db, mock, cleanup := newSettingsRepoMock(t)
	defer cleanup()
	repo := NewSettingsRepository(db)

	mock.ExpectExec(`DELETE FROM submission_windows WHERE scope = \$1`).
		WithArgs("2022-26").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.DeleteWindow(context.Background(), "2022-26"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
