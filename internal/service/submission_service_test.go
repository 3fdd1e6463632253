package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sudeep-patali/nodue-api/internal/dto"
	"github.com/sudeep-patali/nodue-api/internal/models"
	"github.com/sudeep-patali/nodue-api/internal/repository"
	appErrors "github.com/sudeep-patali/nodue-api/pkg/errors"
)

type mockSubmissionStore struct {
	exists        bool
	submitErr     error
	submitted     *models.Application
	assignments   []models.SubjectAssignment
	studentApps   []models.Application
	appWithStudnt *repository.ApplicationWithStudent
	getErr        error
}

func (m *mockSubmissionStore) Submit(ctx context.Context, app *models.Application, assignments []models.SubjectAssignment) error {
	if m.submitErr != nil {
		return m.submitErr
	}
	m.submitted = app
	m.assignments = assignments
	return nil
}

func (m *mockSubmissionStore) Exists(ctx context.Context, studentID string, semester int, batch string) (bool, error) {
	return m.exists, nil
}

func (m *mockSubmissionStore) FindForStudent(ctx context.Context, studentID string) ([]models.Application, error) {
	return m.studentApps, nil
}

func (m *mockSubmissionStore) GetWithStudent(ctx context.Context, id string) (*repository.ApplicationWithStudent, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return m.appWithStudnt, nil
}

type mockProfileReader struct {
	profile *models.StudentProfile
	err     error
}

func (m *mockProfileReader) GetByUserID(ctx context.Context, userID string) (*models.StudentProfile, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.profile, nil
}

type mockStaffReader struct {
	active []models.StaffProfile
}

func (m *mockStaffReader) FindActiveByIDs(ctx context.Context, userIDs []string) ([]models.StaffProfile, error) {
	var out []models.StaffProfile
	for _, id := range userIDs {
		for _, p := range m.active {
			if p.UserID == id {
				out = append(out, p)
			}
		}
	}
	return out, nil
}

type mockBatchReader struct {
	batch    *models.Batch
	batchErr error
	subjects []models.Subject
}

func (m *mockBatchReader) GetByName(ctx context.Context, name string) (*models.Batch, error) {
	if m.batchErr != nil {
		return nil, m.batchErr
	}
	return m.batch, nil
}

func (m *mockBatchReader) FindSubjectsByIDs(ctx context.Context, ids []string) ([]models.Subject, error) {
	var out []models.Subject
	for _, id := range ids {
		for _, s := range m.subjects {
			if s.ID == id {
				out = append(out, s)
			}
		}
	}
	return out, nil
}

type mockWindowReader struct {
	windows map[string]*models.SubmissionWindow
}

func (m *mockWindowReader) GetWindow(ctx context.Context, scope string) (*models.SubmissionWindow, error) {
	return m.windows[scope], nil
}

type submissionFixture struct {
	store         *mockSubmissionStore
	profiles      *mockProfileReader
	staff         *mockStaffReader
	batches       *mockBatchReader
	windows       *mockWindowReader
	roles         *mockRoleDirectory
	notifications *mockNotificationWriter
	audit         *mockAuditLogger

	counsellorID   string
	classAdvisorID string
	subjectID      string
	facultyID      string
}

func newSubmissionFixture() *submissionFixture {
	counsellorID := uuid.NewString()
	classAdvisorID := uuid.NewString()
	subjectID := uuid.NewString()
	facultyID := uuid.NewString()

	return &submissionFixture{
		store: &mockSubmissionStore{},
		profiles: &mockProfileReader{profile: &models.StudentProfile{
			UserID:           "stu-1",
			USN:              "1AB22CS001",
			Department:       models.DepartmentCSE,
			Semester:         6,
			Batch:            "2022-26",
			StudentType:      models.StudentTypeLocal,
			ProfileCompleted: true,
		}},
		staff: &mockStaffReader{active: []models.StaffProfile{
			{UserID: counsellorID, Designation: models.DesignationAssistantProfessor},
			{UserID: classAdvisorID, Designation: models.DesignationAssociateProfessor},
			{UserID: facultyID, Designation: models.DesignationAssistantProfessor},
		}},
		batches: &mockBatchReader{
			batch:    &models.Batch{ID: "b-1", Name: "2022-26", CurrentSemester: 6},
			subjects: []models.Subject{{ID: subjectID, Code: "CS61", Semester: 6}},
		},
		windows: &mockWindowReader{windows: map[string]*models.SubmissionWindow{
			models.SubmissionWindowScopeGlobal: {Scope: models.SubmissionWindowScopeGlobal, Enabled: true},
		}},
		roles:          &mockRoleDirectory{members: map[models.Role][]string{models.RoleLibrary: {"lib-1"}}},
		notifications:  &mockNotificationWriter{},
		audit:          &mockAuditLogger{},
		counsellorID:   counsellorID,
		classAdvisorID: classAdvisorID,
		subjectID:      subjectID,
		facultyID:      facultyID,
	}
}

func (f *submissionFixture) service() *SubmissionService {
	return NewSubmissionService(f.store, f.profiles, f.staff, f.batches, f.windows, f.roles, f.notifications, f.audit, nil, nil, validator.New(), zap.NewNop(), 0)
}

func (f *submissionFixture) request() dto.SubmitApplicationRequest {
	return dto.SubmitApplicationRequest{
		Department:     "CSE",
		Semester:       6,
		Batch:          "2022-26",
		CounsellorID:   f.counsellorID,
		ClassAdvisorID: f.classAdvisorID,
		Subjects: []dto.SubjectFacultyPair{
			{SubjectID: f.subjectID, FacultyID: f.facultyID},
		},
	}
}

func TestSubmitCreatesApplicationAndAssignments(t *testing.T) {
	f := newSubmissionFixture()
	svc := f.service()

	res, err := svc.Submit(context.Background(), "stu-1", f.request())
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, res.Status)
	assert.Equal(t, 1, res.Assignments)

	require.NotNil(t, f.store.submitted)
	assert.Equal(t, "stu-1", f.store.submitted.StudentID)
	require.Len(t, f.store.assignments, 1)
	assert.Equal(t, models.VerificationPending, f.store.assignments[0].VerificationStatus)

	// library staff fan-out plus one notice per mentor
	require.Len(t, f.notifications.bulk, 1)
	assert.Equal(t, models.RoleLibrary, f.notifications.bulk[0][0].AudienceRole)
	assert.Len(t, f.notifications.created, 2)

	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, models.AuditActionSubmit, f.audit.logs[0].Action)
}

func TestSubmitRequiresCompletedProfile(t *testing.T) {
	f := newSubmissionFixture()
	f.profiles.profile.ProfileCompleted = false
	svc := f.service()

	_, err := svc.Submit(context.Background(), "stu-1", f.request())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErr.Code)
}

func TestSubmitWindowClosed(t *testing.T) {
	f := newSubmissionFixture()
	f.windows.windows = map[string]*models.SubmissionWindow{}
	svc := f.service()

	_, err := svc.Submit(context.Background(), "stu-1", f.request())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrWindowClosed.Code, appErr.Code)
}

func TestSubmitBatchOverrideClosesWindow(t *testing.T) {
	f := newSubmissionFixture()
	f.windows.windows["2022-26"] = &models.SubmissionWindow{Scope: "2022-26", Enabled: false}
	svc := f.service()

	_, err := svc.Submit(context.Background(), "stu-1", f.request())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrWindowClosed.Code, appErr.Code)
}

func TestSubmitProfileMismatches(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*dto.SubmitApplicationRequest)
	}{
		{"wrong department", func(r *dto.SubmitApplicationRequest) { r.Department = "MECH" }},
		{"wrong semester", func(r *dto.SubmitApplicationRequest) { r.Semester = 5 }},
		{"wrong batch", func(r *dto.SubmitApplicationRequest) { r.Batch = "2021-25" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newSubmissionFixture()
			f.windows.windows["2021-25"] = &models.SubmissionWindow{Scope: "2021-25", Enabled: true}
			svc := f.service()
			req := f.request()
			tc.mutate(&req)

			_, err := svc.Submit(context.Background(), "stu-1", req)
			require.Error(t, err)
			appErr := appErrors.FromError(err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
			assert.Nil(t, f.store.submitted)
		})
	}
}

func TestSubmitDuplicateApplication(t *testing.T) {
	f := newSubmissionFixture()
	f.store.exists = true
	svc := f.service()

	_, err := svc.Submit(context.Background(), "stu-1", f.request())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestSubmitUnregisteredBatch(t *testing.T) {
	f := newSubmissionFixture()
	f.batches.batchErr = sql.ErrNoRows
	svc := f.service()

	_, err := svc.Submit(context.Background(), "stu-1", f.request())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestSubmitInactiveMentor(t *testing.T) {
	f := newSubmissionFixture()
	f.staff.active = f.staff.active[1:] // drop the counsellor
	svc := f.service()

	_, err := svc.Submit(context.Background(), "stu-1", f.request())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "counsellor")
}

func TestSubmitDuplicateSubject(t *testing.T) {
	f := newSubmissionFixture()
	svc := f.service()
	req := f.request()
	req.Subjects = append(req.Subjects, req.Subjects[0])

	_, err := svc.Submit(context.Background(), "stu-1", req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "duplicate subject")
}

func TestSubmitUnknownSubject(t *testing.T) {
	f := newSubmissionFixture()
	f.batches.subjects = nil
	svc := f.service()

	_, err := svc.Submit(context.Background(), "stu-1", f.request())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestListMineDerivesStatus(t *testing.T) {
	f := newSubmissionFixture()
	rejected := models.StageHOD
	f.store.studentApps = []models.Application{
		{ID: "app-1", LibraryVerified: true},
		{ID: "app-2", RejectedStage: &rejected},
	}
	svc := f.service()

	views, err := svc.ListMine(context.Background(), "stu-1")
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, "college_office_verification_pending", views[0].Status)
	assert.Equal(t, models.StatusRejected, views[1].Status)
}

func TestListMineWithoutProfile(t *testing.T) {
	f := newSubmissionFixture()
	f.profiles.err = sql.ErrNoRows
	svc := f.service()

	views, err := svc.ListMine(context.Background(), "stu-1")
	require.NoError(t, err)
	assert.Empty(t, views)
}

func TestProgressChecksOwnership(t *testing.T) {
	f := newSubmissionFixture()
	f.store.appWithStudnt = freshApplication()
	svc := f.service()

	_, err := svc.Progress(context.Background(), "someone-else", "app-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	progress, err := svc.Progress(context.Background(), "stu-1", "app-1")
	require.NoError(t, err)
	assert.Len(t, progress.Stages, len(models.StageOrder))

	// local students carry a non-applicable hostel row
	for _, stage := range progress.Stages {
		if stage.Stage == string(models.StageHostel) {
			assert.False(t, stage.Applies)
		}
	}
}
