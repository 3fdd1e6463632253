package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sudeep-patali/nodue-api/internal/dto"
	"github.com/sudeep-patali/nodue-api/internal/models"
	appErrors "github.com/sudeep-patali/nodue-api/pkg/errors"
)

type provisioningUserStore interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	CreateWithRoles(ctx context.Context, user *models.User, roles models.RoleSet) error
	Deactivate(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type provisioningStaffStore interface {
	Create(ctx context.Context, staff *models.StaffProfile) error
	Deactivate(ctx context.Context, userID string) error
	List(ctx context.Context, filter models.StaffFilter) ([]models.StaffProfile, error)
}

type provisioningProfileStore interface {
	Create(ctx context.Context, profile *models.StudentProfile) error
}

type provisioningBatchStore interface {
	GetByName(ctx context.Context, name string) (*models.Batch, error)
	Create(ctx context.Context, batch *models.Batch) error
	Delete(ctx context.Context, name string) error
	AdvanceSemester(ctx context.Context, name string) error
}

type provisioningApplicationStore interface {
	Delete(ctx context.Context, id string) error
	DeleteForBatch(ctx context.Context, batch string) (int64, error)
}

type adminChecker interface {
	HasRole(ctx context.Context, userID string, role models.Role) (bool, error)
}

// The verifier capabilities a non-teaching staff account may hold.
var staffRoles = map[models.Role]bool{
	models.RoleLibrary:       true,
	models.RoleHostel:        true,
	models.RoleCollegeOffice: true,
	models.RoleLabInstructor: true,
}

// Extra capabilities grantable to a faculty account on top of faculty.
var facultyExtraRoles = map[models.Role]bool{
	models.RoleHOD:          true,
	models.RoleCounsellor:   true,
	models.RoleClassAdvisor: true,
}

// ProvisioningService covers the admin surface: account creation, batch
// lifecycle, and destructive cleanup. Every operation re-checks the admin
// capability against the database, so a stale token is not enough.
type ProvisioningService struct {
	users     provisioningUserStore
	staff     provisioningStaffStore
	profiles  provisioningProfileStore
	batches   provisioningBatchStore
	apps      provisioningApplicationStore
	admin     adminChecker
	validator *validator.Validate
	logger    *zap.Logger
}

// NewProvisioningService constructs the service.
func NewProvisioningService(users provisioningUserStore, staff provisioningStaffStore, profiles provisioningProfileStore, batches provisioningBatchStore, apps provisioningApplicationStore, admin adminChecker, validate *validator.Validate, logger *zap.Logger) *ProvisioningService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProvisioningService{
		users:     users,
		staff:     staff,
		profiles:  profiles,
		batches:   batches,
		apps:      apps,
		admin:     admin,
		validator: validate,
		logger:    logger,
	}
}

func (s *ProvisioningService) requireAdmin(ctx context.Context, actorID string) error {
	ok, err := s.admin.HasRole(ctx, actorID, models.RoleAdmin)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check admin capability")
	}
	if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "admin capability required")
	}
	return nil
}

// CreateFaculty provisions a teaching staff account. The employee id doubles
// as the initial password.
func (s *ProvisioningService) CreateFaculty(ctx context.Context, actorID string, req dto.CreateFacultyRequest) (*dto.ProvisionResult, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid faculty payload")
	}
	if !models.ValidDepartment(req.Department) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown department %q", req.Department))
	}

	roles := models.RoleSet{models.RoleFaculty}
	for _, raw := range req.ExtraRoles {
		role := models.Role(raw)
		if !facultyExtraRoles[role] {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("role %q cannot be granted to faculty", raw))
		}
		if !roles.Has(role) {
			roles = append(roles, role)
		}
	}

	user, err := s.createUser(ctx, req.Email, req.FullName, req.EmployeeID, roles)
	if err != nil {
		return nil, err
	}

	if err := s.staff.Create(ctx, &models.StaffProfile{
		UserID:         user.ID,
		Designation:    req.Designation,
		Department:     models.Department(req.Department),
		EmployeeID:     req.EmployeeID,
		OfficeLocation: req.OfficeLocation,
		IsActive:       true,
	}); err != nil {
		// keep users and staff_profiles consistent when the second insert fails
		if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
			s.logger.Error("failed to roll back orphaned user", zap.String("user_id", user.ID), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create staff profile")
	}

	s.recordAudit(ctx, actorID, models.AuditActionFacultyCreate, "user", user.ID, []byte(fmt.Sprintf(`{"email":%q,"roles":%d}`, user.Email, len(roles))))
	return &dto.ProvisionResult{UserID: user.ID, Email: user.Email}, nil
}

// CreateStaff provisions a non-teaching verifier account holding exactly one
// stage capability.
func (s *ProvisioningService) CreateStaff(ctx context.Context, actorID string, req dto.CreateStaffRequest) (*dto.ProvisionResult, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid staff payload")
	}
	if !models.ValidDepartment(req.Department) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown department %q", req.Department))
	}
	role := models.Role(req.Role)
	if !staffRoles[role] {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("role %q is not a staff verifier capability", req.Role))
	}

	user, err := s.createUser(ctx, req.Email, req.FullName, req.EmployeeID, models.RoleSet{role})
	if err != nil {
		return nil, err
	}

	if err := s.staff.Create(ctx, &models.StaffProfile{
		UserID:         user.ID,
		Designation:    req.Designation,
		Department:     models.Department(req.Department),
		EmployeeID:     req.EmployeeID,
		OfficeLocation: req.OfficeLocation,
		IsActive:       true,
	}); err != nil {
		if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
			s.logger.Error("failed to roll back orphaned user", zap.String("user_id", user.ID), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create staff profile")
	}

	s.recordAudit(ctx, actorID, models.AuditActionStaffCreate, "user", user.ID, []byte(fmt.Sprintf(`{"email":%q,"role":%q}`, user.Email, role)))
	return &dto.ProvisionResult{UserID: user.ID, Email: user.Email}, nil
}

// CreateStudents bulk-provisions student accounts with their profiles. The
// batch is best effort per record: a failing record is reported and skipped,
// earlier successes stand.
func (s *ProvisioningService) CreateStudents(ctx context.Context, actorID string, req dto.CreateStudentsRequest) ([]dto.ProvisionResult, error) {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid students payload")
	}

	results := make([]dto.ProvisionResult, 0, len(req.Students))
	for _, record := range req.Students {
		if !models.ValidDepartment(record.Department) {
			return results, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown department %q for %s", record.Department, record.Email))
		}
		if !models.ValidBatchName(record.Batch) {
			return results, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid batch %q for %s", record.Batch, record.Email))
		}
		if _, err := s.batches.GetByName(ctx, record.Batch); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return results, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("batch %q is not registered", record.Batch))
			}
			return results, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
		}

		user, err := s.createUser(ctx, record.Email, record.FullName, record.Password, models.RoleSet{models.RoleStudent})
		if err != nil {
			return results, err
		}

		if err := s.profiles.Create(ctx, &models.StudentProfile{
			UserID:           user.ID,
			USN:              record.USN,
			Department:       models.Department(record.Department),
			Semester:         record.Semester,
			Section:          record.Section,
			Batch:            record.Batch,
			StudentType:      models.StudentType(record.StudentType),
			ProfileCompleted: true,
		}); err != nil {
			if delErr := s.users.Delete(ctx, user.ID); delErr != nil {
				s.logger.Error("failed to roll back orphaned user", zap.String("user_id", user.ID), zap.Error(delErr))
			}
			return results, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to create profile for %s", record.Email))
		}
		results = append(results, dto.ProvisionResult{UserID: user.ID, Email: user.Email})
	}

	s.recordAudit(ctx, actorID, models.AuditActionStudentsCreate, "user", actorID, []byte(fmt.Sprintf(`{"created":%d}`, len(results))))
	return results, nil
}

func (s *ProvisioningService) createUser(ctx context.Context, email, fullName, password string, roles models.RoleSet) (*models.User, error) {
	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("an account for %s already exists", email))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing account")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: string(hash),
		FullName:     fullName,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.users.CreateWithRoles(ctx, user, roles); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
	}
	return user, nil
}

// DeactivateFaculty retires a staff account without destroying its history.
func (s *ProvisioningService) DeactivateFaculty(ctx context.Context, actorID, userID string) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if err := s.staff.Deactivate(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "staff profile not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate staff profile")
	}
	if err := s.users.Deactivate(ctx, userID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to deactivate account")
	}
	s.recordAudit(ctx, actorID, models.AuditActionFacultyDelete, "user", userID, nil)
	return nil
}

// ListStaff lists staff profiles for the admin console and the student
// submission form.
func (s *ProvisioningService) ListStaff(ctx context.Context, filter models.StaffFilter) ([]models.StaffProfile, error) {
	staff, err := s.staff.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list staff")
	}
	return staff, nil
}

// CreateBatch registers a batch so students can be provisioned into it.
func (s *ProvisioningService) CreateBatch(ctx context.Context, actorID string, name string, currentSemester int) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if !models.ValidBatchName(name) {
		return appErrors.Clone(appErrors.ErrValidation, "batch must use the YYYY-YY form, e.g. 2021-25")
	}
	if currentSemester < 1 || currentSemester > 8 {
		return appErrors.Clone(appErrors.ErrValidation, "semester must be between 1 and 8")
	}
	if err := s.batches.Create(ctx, &models.Batch{Name: name, CurrentSemester: currentSemester}); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create batch")
	}
	return nil
}

// AdvanceBatchSemester moves a batch forward one semester, capped at 8.
func (s *ProvisioningService) AdvanceBatchSemester(ctx context.Context, actorID, name string) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if err := s.batches.AdvanceSemester(ctx, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "batch not found or already at the final semester")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance batch")
	}
	return nil
}

// DeleteBatch removes a batch and every application tied to it. Used when a
// batch graduates and its clearance records are archived elsewhere.
func (s *ProvisioningService) DeleteBatch(ctx context.Context, actorID, name string) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	deleted, err := s.apps.DeleteForBatch(ctx, name)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete batch applications")
	}
	if err := s.batches.Delete(ctx, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "batch not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete batch")
	}
	s.recordAudit(ctx, actorID, models.AuditActionBatchDelete, "batch", name, []byte(fmt.Sprintf(`{"applications_deleted":%d}`, deleted)))
	return nil
}

// DeleteApplication removes a single application and its assignment rows.
func (s *ProvisioningService) DeleteApplication(ctx context.Context, actorID, applicationID string) error {
	if err := s.requireAdmin(ctx, actorID); err != nil {
		return err
	}
	if err := s.apps.Delete(ctx, applicationID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete application")
	}
	s.recordAudit(ctx, actorID, models.AuditActionApplicationDelete, "application", applicationID, nil)
	return nil
}

func (s *ProvisioningService) recordAudit(ctx context.Context, actorID, action, resource, resourceID string, payload []byte) {
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: &resourceID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
