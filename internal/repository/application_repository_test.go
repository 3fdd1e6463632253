package repository

import (
	"context"
	"database/sql"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudeep-patali/nodue-api/internal/models"
)

func newApplicationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestApplicationRepositorySubmit(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO applications").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO application_subject_faculty").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "sub-1", "fac-1", string(models.VerificationPending), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO application_subject_faculty").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "sub-2", "fac-2", string(models.VerificationPending), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	app := &models.Application{StudentID: "stu-1", CounsellorID: "c-1", ClassAdvisorID: "ca-1", Semester: 6, Batch: "2022-26"}
	assignments := []models.SubjectAssignment{
		{SubjectID: "sub-1", FacultyID: "fac-1"},
		{SubjectID: "sub-2", FacultyID: "fac-2"},
	}
	require.NoError(t, repo.Submit(context.Background(), app, assignments))
	assert.NotEmpty(t, app.ID)
	assert.Equal(t, app.ID, assignments[0].ApplicationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositorySubmitRollsBackOnChildFailure(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO applications").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO application_subject_faculty").
		WillReturnError(sql.ErrConnDone)
	mock.ExpectRollback()

	app := &models.Application{StudentID: "stu-1", Semester: 6, Batch: "2022-26"}
	err := repo.Submit(context.Background(), app, []models.SubjectAssignment{{SubjectID: "sub-1", FacultyID: "fac-1"}})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryApplyStageDecisionApprove(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	comment := "all books returned"
	mock.ExpectExec(`UPDATE applications\s+SET library_verified = TRUE`).
		WithArgs("app-1", &comment, models.StageLibrary, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyStageDecision(context.Background(), StageDecisionParams{
		ApplicationID: "app-1",
		Stage:         models.StageLibrary,
		Approved:      true,
		Comment:       &comment,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryApplyStageDecisionReject(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	comment := "pending dues"
	mock.ExpectExec(`UPDATE applications\s+SET hod_verified = FALSE, hod_comment = \$2, rejected_stage = \$3`).
		WithArgs("app-1", &comment, models.StageHOD, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.ApplyStageDecision(context.Background(), StageDecisionParams{
		ApplicationID: "app-1",
		Stage:         models.StageHOD,
		Approved:      false,
		Comment:       &comment,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryApplyStageDecisionUnknownStage(t *testing.T) {
	db, _, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	err := repo.ApplyStageDecision(context.Background(), StageDecisionParams{
		ApplicationID: "app-1",
		Stage:         models.Stage("registrar"),
		Approved:      true,
	})
	require.Error(t, err)
}

func TestApplicationRepositoryApplyStageDecisionNoRows(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(`UPDATE applications`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.ApplyStageDecision(context.Background(), StageDecisionParams{
		ApplicationID: "missing",
		Stage:         models.StageLibrary,
		Approved:      true,
	})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestApplicationRepositoryRecordPaymentRequiresHODClearance(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(`(?s)UPDATE applications SET transaction_id = \$2.*hod_verified = TRUE AND \(rejected_stage IS NULL OR rejected_stage = 'lab'\) AND lab_verified = FALSE`).
		WithArgs("app-1", "TXN-42", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.RecordPayment(context.Background(), "app-1", "TXN-42")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryFinalizeSetsBothFlags(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(`UPDATE applications\s+SET lab_verified = TRUE, payment_verified = TRUE`).
		WithArgs("app-1", nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Finalize(context.Background(), "app-1", nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryFinalizeRecoversFromLabRejection(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	comment := "records now in order"
	mock.ExpectExec(`(?s)SET lab_verified = TRUE, payment_verified = TRUE, lab_comment = \$2, rejected_stage = NULL.*\(rejected_stage IS NULL OR rejected_stage = 'lab'\)`).
		WithArgs("app-1", &comment, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Finalize(context.Background(), "app-1", &comment))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryFinalizeGateNotReachable(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(`UPDATE applications\s+SET lab_verified = TRUE`).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Finalize(context.Background(), "app-1", nil)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestApplicationRepositoryExists(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectQuery(`SELECT EXISTS`).
		WithArgs("stu-1", 6, "2022-26").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	exists, err := repo.Exists(context.Background(), "stu-1", 6, "2022-26")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestApplicationRepositoryListStageQueueFilters(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	rows := sqlmock.NewRows([]string{"application_id", "student_name", "usn", "department", "semester", "batch", "student_type", "rejected_stage"}).
		AddRow("app-1", "Student A", "1AB22CS001", "CSE", 6, "2022-26", "local", nil)
	mock.ExpectQuery(`NOT a\.library_verified.*OR a\.rejected_stage = \$1.*AND p\.department = \$2 AND a\.batch = \$3`).
		WithArgs("library", "CSE", "2022-26").
		WillReturnRows(rows)

	items, err := repo.ListStageQueue(context.Background(), models.ApplicationFilter{
		Stage:      models.StageLibrary,
		Department: models.DepartmentCSE,
		Batch:      "2022-26",
	})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "app-1", items[0].ApplicationID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryCountStageQueue(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectQuery(`SELECT COUNT\(\*\).*a\.class_advisor_verified AND NOT a\.hod_verified`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountStageQueue(context.Background(), models.StageHOD)
	require.NoError(t, err)
	assert.Equal(t, 7, count)
}

func TestApplicationRepositoryDeleteForBatch(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()
	repo := NewApplicationRepository(db)

	mock.ExpectExec(`DELETE FROM applications WHERE batch = \$1`).
		WithArgs("2022-26").
		WillReturnResult(sqlmock.NewResult(0, 3))

	n, err := repo.DeleteForBatch(context.Background(), "2022-26")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}
