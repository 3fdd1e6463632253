package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sudeep-patali/nodue-api/internal/dto"
	"github.com/sudeep-patali/nodue-api/internal/models"
	appErrors "github.com/sudeep-patali/nodue-api/pkg/errors"
)

type mockProvisioningUserStore struct {
	existing    map[string]*models.User
	created     []*models.User
	createdWith []models.RoleSet
	deleted     []string
	deactivated []string
	auditLogs   []*models.AuditLog
	createErr   error
}

func (m *mockProvisioningUserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.existing[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProvisioningUserStore) CreateWithRoles(ctx context.Context, user *models.User, roles models.RoleSet) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, user)
	m.createdWith = append(m.createdWith, roles)
	return nil
}

func (m *mockProvisioningUserStore) Deactivate(ctx context.Context, id string) error {
	m.deactivated = append(m.deactivated, id)
	return nil
}

func (m *mockProvisioningUserStore) Delete(ctx context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockProvisioningUserStore) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type mockProvisioningStaffStore struct {
	created   []*models.StaffProfile
	createErr error
	staff     []models.StaffProfile
	deactErr  error
}

func (m *mockProvisioningStaffStore) Create(ctx context.Context, staff *models.StaffProfile) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, staff)
	return nil
}

func (m *mockProvisioningStaffStore) Deactivate(ctx context.Context, userID string) error {
	return m.deactErr
}

func (m *mockProvisioningStaffStore) List(ctx context.Context, filter models.StaffFilter) ([]models.StaffProfile, error) {
	return m.staff, nil
}

type mockProvisioningProfileStore struct {
	created   []*models.StudentProfile
	createErr error
	failAfter int
}

func (m *mockProvisioningProfileStore) Create(ctx context.Context, profile *models.StudentProfile) error {
	if m.createErr != nil && len(m.created) >= m.failAfter {
		return m.createErr
	}
	m.created = append(m.created, profile)
	return nil
}

type mockProvisioningBatchStore struct {
	batches    map[string]*models.Batch
	created    []*models.Batch
	deleted    []string
	advanceErr error
	deleteErr  error
}

func (m *mockProvisioningBatchStore) GetByName(ctx context.Context, name string) (*models.Batch, error) {
	if b, ok := m.batches[name]; ok {
		return b, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockProvisioningBatchStore) Create(ctx context.Context, batch *models.Batch) error {
	m.created = append(m.created, batch)
	return nil
}

func (m *mockProvisioningBatchStore) Delete(ctx context.Context, name string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, name)
	return nil
}

func (m *mockProvisioningBatchStore) AdvanceSemester(ctx context.Context, name string) error {
	return m.advanceErr
}

type mockProvisioningAppStore struct {
	deleted      []string
	batchDeleted []string
	batchCount   int64
	deleteErr    error
}

func (m *mockProvisioningAppStore) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockProvisioningAppStore) DeleteForBatch(ctx context.Context, batch string) (int64, error) {
	m.batchDeleted = append(m.batchDeleted, batch)
	return m.batchCount, nil
}

type mockAdminChecker struct {
	admins map[string]bool
}

func (m *mockAdminChecker) HasRole(ctx context.Context, userID string, role models.Role) (bool, error) {
	return m.admins[userID], nil
}

type provisioningFixture struct {
	users    *mockProvisioningUserStore
	staff    *mockProvisioningStaffStore
	profiles *mockProvisioningProfileStore
	batches  *mockProvisioningBatchStore
	apps     *mockProvisioningAppStore
	admin    *mockAdminChecker
}

func newProvisioningFixture() *provisioningFixture {
	return &provisioningFixture{
		users:    &mockProvisioningUserStore{existing: map[string]*models.User{}},
		staff:    &mockProvisioningStaffStore{},
		profiles: &mockProvisioningProfileStore{},
		batches:  &mockProvisioningBatchStore{batches: map[string]*models.Batch{"2022-26": {ID: "b-1", Name: "2022-26"}}},
		apps:     &mockProvisioningAppStore{},
		admin:    &mockAdminChecker{admins: map[string]bool{"admin-1": true}},
	}
}

func (f *provisioningFixture) service() *ProvisioningService {
	return NewProvisioningService(f.users, f.staff, f.profiles, f.batches, f.apps, f.admin, validator.New(), zap.NewNop())
}

func facultyRequest() dto.CreateFacultyRequest {
	return dto.CreateFacultyRequest{
		Email:       "prof@example.edu",
		FullName:    "Prof A",
		EmployeeID:  "EMP-100",
		Designation: models.DesignationAssistantProfessor,
		Department:  "CSE",
	}
}

func TestCreateFaculty(t *testing.T) {
	f := newProvisioningFixture()
	svc := f.service()

	req := facultyRequest()
	req.ExtraRoles = []string{"hod"}
	res, err := svc.CreateFaculty(context.Background(), "admin-1", req)
	require.NoError(t, err)
	assert.Equal(t, "prof@example.edu", res.Email)

	require.Len(t, f.users.created, 1)
	assert.ElementsMatch(t, models.RoleSet{models.RoleFaculty, models.RoleHOD}, f.users.createdWith[0])

	// employee id is the initial password
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(f.users.created[0].PasswordHash), []byte("EMP-100")))

	require.Len(t, f.staff.created, 1)
	assert.True(t, f.staff.created[0].IsActive)
	require.Len(t, f.users.auditLogs, 1)
	assert.Equal(t, models.AuditActionFacultyCreate, f.users.auditLogs[0].Action)
}

func TestCreateFacultyRejectsUngrantableRole(t *testing.T) {
	f := newProvisioningFixture()
	svc := f.service()

	req := facultyRequest()
	req.ExtraRoles = []string{"admin"}
	_, err := svc.CreateFaculty(context.Background(), "admin-1", req)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	assert.Empty(t, f.users.created)
}

func TestCreateFacultyDuplicateEmail(t *testing.T) {
	f := newProvisioningFixture()
	f.users.existing["prof@example.edu"] = &models.User{ID: "u-1", Email: "prof@example.edu"}
	svc := f.service()

	_, err := svc.CreateFaculty(context.Background(), "admin-1", facultyRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCreateFacultyCompensatesOnProfileFailure(t *testing.T) {
	f := newProvisioningFixture()
	f.staff.createErr = errors.New("insert failed")
	svc := f.service()

	_, err := svc.CreateFaculty(context.Background(), "admin-1", facultyRequest())
	require.Error(t, err)

	// the orphaned user row is removed
	require.Len(t, f.users.created, 1)
	require.Len(t, f.users.deleted, 1)
	assert.Equal(t, f.users.created[0].ID, f.users.deleted[0])
}

func TestCreateFacultyRequiresAdminInDatabase(t *testing.T) {
	f := newProvisioningFixture()
	svc := f.service()

	_, err := svc.CreateFaculty(context.Background(), "not-admin", facultyRequest())
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestCreateStaffSingleCapability(t *testing.T) {
	f := newProvisioningFixture()
	svc := f.service()

	res, err := svc.CreateStaff(context.Background(), "admin-1", dto.CreateStaffRequest{
		Email:       "lib@example.edu",
		FullName:    "Librarian",
		EmployeeID:  "EMP-200",
		Designation: "Librarian",
		Department:  "CSE",
		Role:        "library",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, res.UserID)
	assert.Equal(t, models.RoleSet{models.RoleLibrary}, f.users.createdWith[0])
}

func TestCreateStaffRejectsNonVerifierRole(t *testing.T) {
	f := newProvisioningFixture()
	svc := f.service()

	_, err := svc.CreateStaff(context.Background(), "admin-1", dto.CreateStaffRequest{
		Email:       "x@example.edu",
		FullName:    "X",
		EmployeeID:  "EMP-1",
		Designation: "Clerk",
		Department:  "CSE",
		Role:        "student",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func studentRecord(email, usn string) dto.CreateStudentRecord {
	return dto.CreateStudentRecord{
		Email:       email,
		FullName:    "Student",
		USN:         usn,
		Department:  "CSE",
		Semester:    6,
		Batch:       "2022-26",
		StudentType: "local",
		Password:    "welcome1",
	}
}

func TestCreateStudentsBulk(t *testing.T) {
	f := newProvisioningFixture()
	svc := f.service()

	results, err := svc.CreateStudents(context.Background(), "admin-1", dto.CreateStudentsRequest{
		Students: []dto.CreateStudentRecord{
			studentRecord("a@example.edu", "1AB22CS001"),
			studentRecord("b@example.edu", "1AB22CS002"),
		},
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Len(t, f.profiles.created, 2)
	assert.True(t, f.profiles.created[0].ProfileCompleted)
}

func TestCreateStudentsStopsAtUnregisteredBatch(t *testing.T) {
	f := newProvisioningFixture()
	svc := f.service()

	bad := studentRecord("b@example.edu", "1AB22CS002")
	bad.Batch = "2030-34"
	results, err := svc.CreateStudents(context.Background(), "admin-1", dto.CreateStudentsRequest{
		Students: []dto.CreateStudentRecord{
			studentRecord("a@example.edu", "1AB22CS001"),
			bad,
		},
	})
	require.Error(t, err)
	// the earlier success stands and is reported
	assert.Len(t, results, 1)
}

func TestCreateBatchValidation(t *testing.T) {
	f := newProvisioningFixture()
	svc := f.service()

	require.Error(t, svc.CreateBatch(context.Background(), "admin-1", "not-a-batch", 1))
	require.Error(t, svc.CreateBatch(context.Background(), "admin-1", "2024-28", 9))
	require.NoError(t, svc.CreateBatch(context.Background(), "admin-1", "2024-28", 1))
	require.Len(t, f.batches.created, 1)
}

func TestDeleteBatchCascadesApplications(t *testing.T) {
	f := newProvisioningFixture()
	f.apps.batchCount = 4
	svc := f.service()

	require.NoError(t, svc.DeleteBatch(context.Background(), "admin-1", "2022-26"))
	assert.Equal(t, []string{"2022-26"}, f.apps.batchDeleted)
	assert.Equal(t, []string{"2022-26"}, f.batches.deleted)

	require.Len(t, f.users.auditLogs, 1)
	assert.Contains(t, string(f.users.auditLogs[0].NewValues), `"applications_deleted":4`)
}

func TestDeleteApplicationNotFound(t *testing.T) {
	f := newProvisioningFixture()
	f.apps.deleteErr = sql.ErrNoRows
	svc := f.service()

	err := svc.DeleteApplication(context.Background(), "admin-1", "missing")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestDeactivateFaculty(t *testing.T) {
	f := newProvisioningFixture()
	svc := f.service()

	require.NoError(t, svc.DeactivateFaculty(context.Background(), "admin-1", "u-9"))
	assert.Equal(t, []string{"u-9"}, f.users.deactivated)
}
