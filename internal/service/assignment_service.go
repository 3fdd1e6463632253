package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sudeep-patali/nodue-api/internal/dto"
	"github.com/sudeep-patali/nodue-api/internal/models"
	"github.com/sudeep-patali/nodue-api/internal/repository"
	appErrors "github.com/sudeep-patali/nodue-api/pkg/errors"
)

type assignmentStore interface {
	ListPendingForFaculty(ctx context.Context, facultyID string) ([]models.SubjectAssignment, error)
	ListByApplication(ctx context.Context, applicationID string) ([]models.SubjectAssignment, error)
	Review(ctx context.Context, params repository.ReviewParams) (*models.ReviewResult, error)
}

type assignmentApplicationReader interface {
	GetWithStudent(ctx context.Context, id string) (*repository.ApplicationWithStudent, error)
}

// AssignmentService handles the faculty clearance stage, which is decided per
// subject-assignment row and aggregated onto the application.
type AssignmentService struct {
	assignments   assignmentStore
	apps          assignmentApplicationReader
	notifications notificationWriter
	audit         auditLogger
	metrics       *MetricsService
	logger        *zap.Logger
}

// NewAssignmentService constructs the service.
func NewAssignmentService(assignments assignmentStore, apps assignmentApplicationReader, notifications notificationWriter, audit auditLogger, metrics *MetricsService, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		assignments:   assignments,
		apps:          apps,
		notifications: notifications,
		audit:         audit,
		metrics:       metrics,
		logger:        logger,
	}
}

// Pending lists the caller's unreviewed assignment rows on applications that
// have reached the faculty stage.
func (s *AssignmentService) Pending(ctx context.Context, facultyID string) ([]models.SubjectAssignment, error) {
	rows, err := s.assignments.ListPendingForFaculty(ctx, facultyID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list pending assignments")
	}
	return rows, nil
}

// ListForApplication returns every assignment row of an application.
func (s *AssignmentService) ListForApplication(ctx context.Context, applicationID string) ([]models.SubjectAssignment, error) {
	rows, err := s.assignments.ListByApplication(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
	}
	return rows, nil
}

// Review applies the caller's decision to their rows of the application. A
// rejection rejects the application immediately; approval advances the
// faculty stage only once every sibling row is approved. An HOD teaching a
// subject reviews through the same path; the repository scopes the update by
// the assigned faculty id, so the role only gates entry.
func (s *AssignmentService) Review(ctx context.Context, actor *models.JWTClaims, applicationID string, req dto.AssignmentReviewRequest) (*dto.AssignmentReviewResponse, error) {
	if !actor.HasRole(models.RoleFaculty) && !actor.HasRole(models.RoleHOD) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teaching staff may review subject assignments")
	}

	app, err := s.apps.GetWithStudent(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.RejectedStage != nil && *app.RejectedStage != models.StageFaculty {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("application was rejected at the %s stage", *app.RejectedStage))
	}
	if app.FacultyVerified {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "faculty clearance is already complete")
	}
	if !app.CollegeOfficeVerified {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "application has not reached the faculty stage")
	}

	comment := normalizeComment(req.Comment)
	if !req.Approved && comment == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a comment is required when rejecting an assignment")
	}

	result, err := s.assignments.Review(ctx, repository.ReviewParams{
		ApplicationID: applicationID,
		FacultyID:     actor.UserID,
		Approved:      req.Approved,
		Comment:       comment,
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no pending assignments for this reviewer")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply review")
	}

	if s.metrics != nil {
		s.metrics.RecordStageDecision(string(models.StageFaculty), string(result.Outcome))
	}
	s.fanOut(ctx, app, result, comment)
	s.recordAudit(ctx, actor.UserID, applicationID, result)

	updated, err := s.apps.GetWithStudent(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload application")
	}

	return &dto.AssignmentReviewResponse{
		ApplicationID: applicationID,
		Outcome:       string(result.Outcome),
		Status:        models.DeriveStatus(&updated.Application, updated.StudentType),
		ApprovedRows:  result.ApprovedRows,
		TotalRows:     result.TotalRows,
	}, nil
}

// fanOut notifies after the aggregate settles. The counsellor hears exactly
// once, on the review that completed the stage.
func (s *AssignmentService) fanOut(ctx context.Context, app *repository.ApplicationWithStudent, result *models.ReviewResult, comment *string) {
	switch result.Outcome {
	case models.ReviewOutcomeApproved:
		s.notify(ctx, app.StudentID, models.RoleStudent, models.Notification{
			Title:   "Cleared: faculty",
			Message: "All subject clearances are approved",
			Type:    models.NotificationApproval,
		}, app.ID)
		s.notify(ctx, app.CounsellorID, models.RoleCounsellor, models.Notification{
			Title:   "Application awaiting verification",
			Message: fmt.Sprintf("%s (%s) is waiting on the counsellor stage", app.StudentName, app.USN),
			Type:    models.NotificationInfo,
		}, app.ID)
	case models.ReviewOutcomeRejected:
		s.notify(ctx, app.StudentID, models.RoleStudent, models.Notification{
			Title:   "Rejected at faculty",
			Message: rejectionMessage(models.StageFaculty, comment),
			Type:    models.NotificationRejection,
		}, app.ID)
	case models.ReviewOutcomePartial:
		s.notify(ctx, app.StudentID, models.RoleStudent, models.Notification{
			Title:   "Subject clearance progress",
			Message: fmt.Sprintf("%d of %d subject clearances approved", result.ApprovedRows, result.TotalRows),
			Type:    models.NotificationInfo,
		}, app.ID)
	}
}

func (s *AssignmentService) notify(ctx context.Context, userID string, audience models.Role, n models.Notification, applicationID string) {
	n.UserID = userID
	n.AudienceRole = audience
	n.ApplicationID = &applicationID
	if err := s.notifications.Create(ctx, &n); err != nil {
		s.logger.Warn("failed to create notification", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *AssignmentService) recordAudit(ctx context.Context, actorID, applicationID string, result *models.ReviewResult) {
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionAssignmentReview,
		Resource:   "application",
		ResourceID: &applicationID,
		NewValues:  []byte(fmt.Sprintf(`{"outcome":%q,"approved_rows":%d,"total_rows":%d}`, result.Outcome, result.ApprovedRows, result.TotalRows)),
	}); err != nil {
		s.logger.Warn("failed to record review audit log", zap.Error(err))
	}
}
