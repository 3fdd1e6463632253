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

	"github.com/sudeep-patali/nodue-api/internal/dto"
	"github.com/sudeep-patali/nodue-api/internal/models"
	"github.com/sudeep-patali/nodue-api/internal/repository"
	appErrors "github.com/sudeep-patali/nodue-api/pkg/errors"
)

type submissionApplicationStore interface {
	Submit(ctx context.Context, app *models.Application, assignments []models.SubjectAssignment) error
	Exists(ctx context.Context, studentID string, semester int, batch string) (bool, error)
	FindForStudent(ctx context.Context, studentID string) ([]models.Application, error)
	GetWithStudent(ctx context.Context, id string) (*repository.ApplicationWithStudent, error)
}

type profileReader interface {
	GetByUserID(ctx context.Context, userID string) (*models.StudentProfile, error)
}

type staffReader interface {
	FindActiveByIDs(ctx context.Context, userIDs []string) ([]models.StaffProfile, error)
}

type batchReader interface {
	GetByName(ctx context.Context, name string) (*models.Batch, error)
	FindSubjectsByIDs(ctx context.Context, ids []string) ([]models.Subject, error)
}

type windowReader interface {
	GetWindow(ctx context.Context, scope string) (*models.SubmissionWindow, error)
}

// SubmissionService is the gate through which applications enter the
// pipeline. Validations run in a fixed order so a request failing several of
// them always reports the same error.
type SubmissionService struct {
	apps          submissionApplicationStore
	profiles      profileReader
	staff         staffReader
	batches       batchReader
	windows       windowReader
	roles         roleDirectory
	notifications notificationWriter
	audit         auditLogger
	cache         *CacheService
	metrics       *MetricsService
	validator     *validator.Validate
	logger        *zap.Logger
	windowTTL     time.Duration
}

// NewSubmissionService constructs the service. windowTTL bounds how long a
// resolved submission-window verdict may be served from cache.
func NewSubmissionService(apps submissionApplicationStore, profiles profileReader, staff staffReader, batches batchReader, windows windowReader, roles roleDirectory, notifications notificationWriter, audit auditLogger, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, windowTTL time.Duration) *SubmissionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if windowTTL <= 0 {
		windowTTL = time.Minute
	}
	return &SubmissionService{
		apps:          apps,
		profiles:      profiles,
		staff:         staff,
		batches:       batches,
		windows:       windows,
		roles:         roles,
		notifications: notifications,
		audit:         audit,
		cache:         cache,
		metrics:       metrics,
		validator:     validate,
		logger:        logger,
		windowTTL:     windowTTL,
	}
}

// Submit validates and creates a new application together with its subject
// assignment rows, atomically.
func (s *SubmissionService) Submit(ctx context.Context, studentID string, req dto.SubmitApplicationRequest) (*dto.SubmitApplicationResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid submission payload")
	}

	profile, err := s.profiles.GetByUserID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "complete your student profile before applying")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}
	if !profile.ProfileCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "complete your student profile before applying")
	}

	open, err := s.windowOpen(ctx, req.Batch)
	if err != nil {
		return nil, err
	}
	if !open {
		return nil, appErrors.Clone(appErrors.ErrWindowClosed, "the submission window is closed for your batch")
	}

	if !models.ValidDepartment(req.Department) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown department %q", req.Department))
	}
	if models.Department(req.Department) != profile.Department {
		return nil, appErrors.Clone(appErrors.ErrValidation, "department does not match your profile")
	}
	if req.Semester != profile.Semester {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester does not match your profile")
	}
	if !models.ValidBatchName(req.Batch) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch must use the YYYY-YY form, e.g. 2021-25")
	}
	if req.Batch != profile.Batch {
		return nil, appErrors.Clone(appErrors.ErrValidation, "batch does not match your profile")
	}
	if _, err := s.batches.GetByName(ctx, req.Batch); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("batch %q is not registered", req.Batch))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load batch")
	}

	exists, err := s.apps.Exists(ctx, studentID, req.Semester, req.Batch)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing applications")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "an application for this semester already exists")
	}

	if err := s.checkMentors(ctx, req.CounsellorID, req.ClassAdvisorID); err != nil {
		return nil, err
	}
	if err := s.checkSubjects(ctx, req.Subjects); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	app := &models.Application{
		ID:             uuid.NewString(),
		StudentID:      studentID,
		CounsellorID:   req.CounsellorID,
		ClassAdvisorID: req.ClassAdvisorID,
		Semester:       req.Semester,
		Batch:          req.Batch,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	assignments := make([]models.SubjectAssignment, 0, len(req.Subjects))
	for _, pair := range req.Subjects {
		assignments = append(assignments, models.SubjectAssignment{
			ID:                 uuid.NewString(),
			ApplicationID:      app.ID,
			SubjectID:          pair.SubjectID,
			FacultyID:          pair.FacultyID,
			VerificationStatus: models.VerificationPending,
			CreatedAt:          now,
		})
	}

	if err := s.apps.Submit(ctx, app, assignments); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}

	if s.metrics != nil {
		s.metrics.RecordSubmission()
	}
	s.fanOutSubmission(ctx, app, profile)
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &studentID,
		Action:     models.AuditActionSubmit,
		Resource:   "application",
		ResourceID: &app.ID,
		NewValues:  []byte(fmt.Sprintf(`{"semester":%d,"batch":%q,"subjects":%d}`, app.Semester, app.Batch, len(assignments))),
	}); err != nil {
		s.logger.Warn("failed to record submission audit log", zap.Error(err))
	}

	return &dto.SubmitApplicationResponse{
		ApplicationID: app.ID,
		Status:        models.StatusPending,
		Assignments:   len(assignments),
	}, nil
}

func (s *SubmissionService) checkMentors(ctx context.Context, counsellorID, classAdvisorID string) error {
	ids := []string{counsellorID}
	if classAdvisorID != counsellorID {
		ids = append(ids, classAdvisorID)
	}
	mentors, err := s.staff.FindActiveByIDs(ctx, ids)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load mentors")
	}
	byID := make(map[string]models.StaffProfile, len(mentors))
	for _, m := range mentors {
		byID[m.UserID] = m
	}
	counsellor, ok := byID[counsellorID]
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "counsellor not found or inactive")
	}
	advisor, ok := byID[classAdvisorID]
	if !ok {
		return appErrors.Clone(appErrors.ErrValidation, "class advisor not found or inactive")
	}
	if !models.EligibleMentorDesignation(counsellor.Designation) {
		return appErrors.Clone(appErrors.ErrValidation, "counsellor designation is not eligible")
	}
	if !models.EligibleMentorDesignation(advisor.Designation) {
		return appErrors.Clone(appErrors.ErrValidation, "class advisor designation is not eligible")
	}
	return nil
}

func (s *SubmissionService) checkSubjects(ctx context.Context, pairs []dto.SubjectFacultyPair) error {
	subjectIDs := make([]string, 0, len(pairs))
	seen := make(map[string]bool, len(pairs))
	facultyIDs := make([]string, 0, len(pairs))
	facultySeen := make(map[string]bool, len(pairs))
	for _, pair := range pairs {
		if seen[pair.SubjectID] {
			return appErrors.Clone(appErrors.ErrValidation, "duplicate subject in submission")
		}
		seen[pair.SubjectID] = true
		subjectIDs = append(subjectIDs, pair.SubjectID)
		if !facultySeen[pair.FacultyID] {
			facultySeen[pair.FacultyID] = true
			facultyIDs = append(facultyIDs, pair.FacultyID)
		}
	}

	subjects, err := s.batches.FindSubjectsByIDs(ctx, subjectIDs)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
	}
	if len(subjects) != len(subjectIDs) {
		return appErrors.Clone(appErrors.ErrValidation, "one or more subjects do not exist")
	}

	faculty, err := s.staff.FindActiveByIDs(ctx, facultyIDs)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	if len(faculty) != len(facultyIDs) {
		return appErrors.Clone(appErrors.ErrValidation, "one or more faculty members are not active")
	}
	return nil
}

// windowOpen resolves the layered submission window for a batch, caching the
// verdict briefly so dashboard refresh storms do not hammer the settings
// table.
func (s *SubmissionService) windowOpen(ctx context.Context, batch string) (bool, error) {
	cacheKey := "submission:window:" + batch
	if s.cache.Enabled() {
		var open bool
		if hit, err := s.cache.Get(ctx, cacheKey, &open); err == nil && hit {
			return open, nil
		}
	}

	global, err := s.windows.GetWindow(ctx, models.SubmissionWindowScopeGlobal)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission window")
	}
	override, err := s.windows.GetWindow(ctx, batch)
	if err != nil {
		return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission window")
	}
	open := models.ResolveWindow(global, override, time.Now().UTC())

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, open, s.windowTTL); err != nil {
			s.logger.Debug("failed to cache window verdict", zap.String("batch", batch), zap.Error(err))
		}
	}
	return open, nil
}

func (s *SubmissionService) fanOutSubmission(ctx context.Context, app *models.Application, profile *models.StudentProfile) {
	arrival := models.Notification{
		Title:   "New no-due application",
		Message: fmt.Sprintf("%s submitted a no-due application for semester %d", profile.USN, app.Semester),
		Type:    models.NotificationInfo,
	}

	userIDs, err := s.roles.UserIDsWithRole(ctx, models.RoleLibrary)
	if err != nil {
		s.logger.Warn("failed to resolve library audience", zap.Error(err))
	} else if len(userIDs) > 0 {
		batch := make([]models.Notification, 0, len(userIDs))
		now := time.Now().UTC()
		for _, userID := range userIDs {
			n := arrival
			n.ID = uuid.NewString()
			n.UserID = userID
			n.AudienceRole = models.RoleLibrary
			n.ApplicationID = &app.ID
			n.CreatedAt = now
			batch = append(batch, n)
		}
		if err := s.notifications.BulkCreate(ctx, batch); err != nil {
			s.logger.Warn("failed to notify library staff", zap.Error(err))
		}
	}

	mentorNote := arrival
	mentorNote.Message = fmt.Sprintf("%s named you on a no-due application for semester %d", profile.USN, app.Semester)
	for userID, role := range map[string]models.Role{
		app.CounsellorID:   models.RoleCounsellor,
		app.ClassAdvisorID: models.RoleClassAdvisor,
	} {
		n := mentorNote
		n.ID = uuid.NewString()
		n.UserID = userID
		n.AudienceRole = role
		n.ApplicationID = &app.ID
		n.CreatedAt = time.Now().UTC()
		if err := s.notifications.Create(ctx, &n); err != nil {
			s.logger.Warn("failed to notify mentor", zap.String("user_id", userID), zap.Error(err))
		}
	}
}

// ListMine returns the student's applications with their derived status.
func (s *SubmissionService) ListMine(ctx context.Context, studentID string) ([]dto.ApplicationView, error) {
	profile, err := s.profiles.GetByUserID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return []dto.ApplicationView{}, nil
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student profile")
	}

	apps, err := s.apps.FindForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}

	views := make([]dto.ApplicationView, 0, len(apps))
	for i := range apps {
		views = append(views, dto.ApplicationView{
			Application: apps[i],
			Status:      models.DeriveStatus(&apps[i], profile.StudentType),
			StudentType: profile.StudentType,
		})
	}
	return views, nil
}

// Progress returns the stage-by-stage breakdown for one of the student's own
// applications.
func (s *SubmissionService) Progress(ctx context.Context, studentID, applicationID string) (*dto.ApplicationProgress, error) {
	app, err := s.apps.GetWithStudent(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another student")
	}

	progress := &dto.ApplicationProgress{
		ApplicationID: app.ID,
		Status:        models.DeriveStatus(&app.Application, app.StudentType),
		Stages:        make([]dto.StageProgress, 0, len(models.StageOrder)),
	}
	for _, stage := range models.StageOrder {
		progress.Stages = append(progress.Stages, dto.StageProgress{
			Stage:    string(stage),
			Applies:  models.StageApplies(stage, app.StudentType),
			Verified: app.StageVerified(stage),
			Comment:  stageComment(&app.Application, stage),
		})
	}
	return progress, nil
}

func stageComment(a *models.Application, stage models.Stage) *string {
	switch stage {
	case models.StageLibrary:
		return a.LibraryComment
	case models.StageHostel:
		return a.HostelComment
	case models.StageCollegeOffice:
		return a.CollegeOfficeComment
	case models.StageFaculty:
		return a.FacultyComment
	case models.StageCounsellor:
		return a.CounsellorComment
	case models.StageClassAdvisor:
		return a.ClassAdvisorComment
	case models.StageHOD:
		return a.HODComment
	case models.StagePayment:
		return a.PaymentComment
	case models.StageLab:
		return a.LabComment
	}
	return nil
}
