package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sudeep-patali/nodue-api/internal/dto"
	"github.com/sudeep-patali/nodue-api/internal/models"
	"github.com/sudeep-patali/nodue-api/internal/repository"
	appErrors "github.com/sudeep-patali/nodue-api/pkg/errors"
)

type verificationApplicationStore interface {
	GetWithStudent(ctx context.Context, id string) (*repository.ApplicationWithStudent, error)
	ApplyStageDecision(ctx context.Context, params repository.StageDecisionParams) error
	RecordPayment(ctx context.Context, id, transactionID string) error
	Finalize(ctx context.Context, id string, comment *string) error
	ListStageQueue(ctx context.Context, filter models.ApplicationFilter) ([]dto.StageQueueItem, error)
	CountStageQueue(ctx context.Context, stage models.Stage) (int, error)
}

type notificationWriter interface {
	Create(ctx context.Context, n *models.Notification) error
	BulkCreate(ctx context.Context, notifications []models.Notification) error
}

type roleDirectory interface {
	UserIDsWithRole(ctx context.Context, role models.Role) ([]string, error)
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// VerificationService drives the stage machine: one decision per stage, in
// sequence, with rejection and resubmission handled through the same path.
type VerificationService struct {
	apps          verificationApplicationStore
	notifications notificationWriter
	roles         roleDirectory
	audit         auditLogger
	metrics       *MetricsService
	logger        *zap.Logger

	// stages whose rejection comment may be omitted
	commentOptional map[models.Stage]bool
}

// NewVerificationService constructs the service. commentOptionalStages names
// the stages that may reject without a comment.
func NewVerificationService(apps verificationApplicationStore, notifications notificationWriter, roles roleDirectory, audit auditLogger, metrics *MetricsService, logger *zap.Logger, commentOptionalStages []string) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	optional := make(map[models.Stage]bool, len(commentOptionalStages))
	for _, raw := range commentOptionalStages {
		if models.ValidStage(raw) {
			optional[models.Stage(raw)] = true
		}
	}
	return &VerificationService{
		apps:            apps,
		notifications:   notifications,
		roles:           roles,
		audit:           audit,
		metrics:         metrics,
		logger:          logger,
		commentOptional: optional,
	}
}

// Decide records an approve or reject decision for a single-approver stage.
// The faculty stage goes through AssignmentService.Review and the payment and
// lab stages through RecordPayment and Finalize, so those are refused here.
func (s *VerificationService) Decide(ctx context.Context, actor *models.JWTClaims, applicationID string, rawStage string, req dto.StageDecisionRequest) (*dto.StageDecisionResponse, error) {
	if !models.ValidStage(rawStage) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown stage %q", rawStage))
	}
	stage := models.Stage(rawStage)
	switch stage {
	case models.StageFaculty:
		return nil, appErrors.Clone(appErrors.ErrValidation, "faculty clearance is decided per subject assignment")
	case models.StagePayment, models.StageLab:
		return nil, appErrors.Clone(appErrors.ErrValidation, "payment and lab clearance use the payment endpoints")
	}

	if !actor.HasRole(models.StageRole(stage)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "caller does not hold the verifying role for this stage")
	}

	app, err := s.apps.GetWithStudent(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	if err := s.checkStageEligible(&app.Application, app.StudentType, stage); err != nil {
		return nil, err
	}

	comment := normalizeComment(req.Comment)
	if !req.Approved && comment == nil && !s.commentOptional[stage] {
		return nil, appErrors.Clone(appErrors.ErrValidation, "a comment is required when rejecting at this stage")
	}

	if err := s.apps.ApplyStageDecision(ctx, repository.StageDecisionParams{
		ApplicationID: applicationID,
		Stage:         stage,
		Approved:      req.Approved,
		Comment:       comment,
	}); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record decision")
	}

	updated, err := s.apps.GetWithStudent(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload application")
	}
	status := models.DeriveStatus(&updated.Application, updated.StudentType)

	outcome := "rejected"
	if req.Approved {
		outcome = "approved"
	}
	if s.metrics != nil {
		s.metrics.RecordStageDecision(string(stage), outcome)
	}

	s.notifyDecision(ctx, updated, stage, req.Approved, comment)
	s.recordDecisionAudit(ctx, actor.UserID, applicationID, stage, req.Approved)

	return &dto.StageDecisionResponse{
		ApplicationID: applicationID,
		Stage:         string(stage),
		Status:        status,
	}, nil
}

// checkStageEligible enforces the sequence: a stage may decide only when the
// application is waiting on it, or when it rejected the application earlier
// and is now re-reviewing a resubmission.
func (s *VerificationService) checkStageEligible(app *models.Application, studentType models.StudentType, stage models.Stage) error {
	if app.RejectedStage != nil {
		if *app.RejectedStage == stage {
			return nil
		}
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("application was rejected at the %s stage", *app.RejectedStage))
	}
	current, ok := app.CurrentStage(studentType)
	if !ok {
		return appErrors.Clone(appErrors.ErrCompleted, "all stages are already verified")
	}
	if current != stage {
		return appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("application is waiting on the %s stage", current))
	}
	return nil
}

// Queue lists the applications waiting on the caller's stage.
func (s *VerificationService) Queue(ctx context.Context, actor *models.JWTClaims, filter models.ApplicationFilter) ([]dto.StageQueueItem, error) {
	if !models.ValidStage(string(filter.Stage)) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown stage %q", filter.Stage))
	}
	if !actor.HasRole(models.StageRole(filter.Stage)) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "caller does not hold the verifying role for this stage")
	}
	items, err := s.apps.ListStageQueue(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list stage queue")
	}
	return items, nil
}

// RecordPayment stores the student's fee transaction id once the HOD stage
// has cleared. Only the owning student may record it.
func (s *VerificationService) RecordPayment(ctx context.Context, actor *models.JWTClaims, applicationID string, req dto.RecordPaymentRequest) (*dto.StageDecisionResponse, error) {
	app, err := s.apps.GetWithStudent(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.StudentID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "application belongs to another student")
	}

	if err := s.apps.RecordPayment(ctx, applicationID, req.TransactionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "payment can be recorded only after HOD clearance")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record payment")
	}

	s.notifyRoleHolders(ctx, models.RoleLabInstructor, models.Notification{
		Title:   "Payment recorded",
		Message: fmt.Sprintf("%s (%s) recorded fee payment and awaits final clearance", app.StudentName, app.USN),
		Type:    models.NotificationInfo,
	}, applicationID)
	s.recordAudit(ctx, actor.UserID, models.AuditActionPaymentRecord, applicationID, []byte(fmt.Sprintf(`{"transaction_id":%q}`, req.TransactionID)))

	return &dto.StageDecisionResponse{
		ApplicationID: applicationID,
		Stage:         string(models.StagePayment),
		Status:        models.StatusPendingFor(models.StageLab),
	}, nil
}

// Finalize is the lab instructor's decision on the combined payment and lab
// tail. Approval verifies both final stages in one step; rejection lands on
// the lab stage. A lab-stage rejection stays re-approvable through this same
// path; rejections at earlier stages block it.
func (s *VerificationService) Finalize(ctx context.Context, actor *models.JWTClaims, applicationID string, req dto.StageDecisionRequest) (*dto.StageDecisionResponse, error) {
	if !actor.HasRole(models.RoleLabInstructor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only a lab instructor may finalize an application")
	}

	app, err := s.apps.GetWithStudent(ctx, applicationID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "application not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if app.RejectedStage != nil && *app.RejectedStage != models.StageLab {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, fmt.Sprintf("application was rejected at the %s stage", *app.RejectedStage))
	}

	comment := normalizeComment(req.Comment)
	if req.Approved {
		if err := s.apps.Finalize(ctx, applicationID, comment); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				if app.LabVerified {
					return nil, appErrors.Clone(appErrors.ErrCompleted, "application is already finalized")
				}
				return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "finalization requires HOD clearance and a recorded payment")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to finalize application")
		}
	} else {
		if comment == nil && !s.commentOptional[models.StageLab] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "a comment is required when rejecting at this stage")
		}
		if err := s.apps.ApplyStageDecision(ctx, repository.StageDecisionParams{
			ApplicationID: applicationID,
			Stage:         models.StageLab,
			Approved:      false,
			Comment:       comment,
		}); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record rejection")
		}
	}

	updated, err := s.apps.GetWithStudent(ctx, applicationID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload application")
	}
	status := models.DeriveStatus(&updated.Application, updated.StudentType)

	outcome := "rejected"
	if req.Approved {
		outcome = "approved"
	}
	if s.metrics != nil {
		s.metrics.RecordStageDecision(string(models.StageLab), outcome)
	}

	if req.Approved {
		s.notifyStudent(ctx, updated.StudentID, models.Notification{
			Title:   "No-due clearance complete",
			Message: "All stages are verified. Your no-due certificate is ready for download.",
			Type:    models.NotificationSuccess,
		}, applicationID)
	} else {
		s.notifyStudent(ctx, updated.StudentID, models.Notification{
			Title:   "Clearance rejected at lab stage",
			Message: rejectionMessage(models.StageLab, comment),
			Type:    models.NotificationRejection,
		}, applicationID)
	}
	s.recordDecisionAudit(ctx, actor.UserID, applicationID, models.StageLab, req.Approved)

	return &dto.StageDecisionResponse{
		ApplicationID: applicationID,
		Stage:         string(models.StageLab),
		Status:        status,
	}, nil
}

// notifyDecision fans out after a single-approver decision: the student
// always hears, and on approval the next stage's audience is told work has
// arrived. Counsellor and class advisor stages address the specific mentor
// named on the application rather than every role holder.
func (s *VerificationService) notifyDecision(ctx context.Context, app *repository.ApplicationWithStudent, stage models.Stage, approved bool, comment *string) {
	if approved {
		s.notifyStudent(ctx, app.StudentID, models.Notification{
			Title:   fmt.Sprintf("Cleared: %s", stage),
			Message: fmt.Sprintf("Your application passed the %s stage", stage),
			Type:    models.NotificationApproval,
		}, app.ID)

		next, ok := models.NextStage(stage, app.StudentType)
		if !ok {
			return
		}
		arrival := models.Notification{
			Title:   "Application awaiting verification",
			Message: fmt.Sprintf("%s (%s) is waiting on the %s stage", app.StudentName, app.USN, next),
			Type:    models.NotificationInfo,
		}
		switch next {
		case models.StageCounsellor:
			s.notifyUser(ctx, app.CounsellorID, models.RoleCounsellor, arrival, app.ID)
		case models.StageClassAdvisor:
			s.notifyUser(ctx, app.ClassAdvisorID, models.RoleClassAdvisor, arrival, app.ID)
		case models.StagePayment:
			// the student pays next, nobody else is waiting
			s.notifyStudent(ctx, app.StudentID, models.Notification{
				Title:   "Fee payment due",
				Message: "HOD clearance is complete. Record your fee payment to continue.",
				Type:    models.NotificationInfo,
			}, app.ID)
		default:
			s.notifyRoleHolders(ctx, models.StageRole(next), arrival, app.ID)
		}
		return
	}

	s.notifyStudent(ctx, app.StudentID, models.Notification{
		Title:   fmt.Sprintf("Rejected at %s", stage),
		Message: rejectionMessage(stage, comment),
		Type:    models.NotificationRejection,
	}, app.ID)
}

func (s *VerificationService) notifyStudent(ctx context.Context, studentID string, n models.Notification, applicationID string) {
	s.notifyUser(ctx, studentID, models.RoleStudent, n, applicationID)
}

func (s *VerificationService) notifyUser(ctx context.Context, userID string, audience models.Role, n models.Notification, applicationID string) {
	n.ID = uuid.NewString()
	n.UserID = userID
	n.AudienceRole = audience
	n.ApplicationID = &applicationID
	n.CreatedAt = time.Now().UTC()
	if err := s.notifications.Create(ctx, &n); err != nil {
		s.logger.Warn("failed to create notification",
			zap.String("user_id", userID),
			zap.String("application_id", applicationID),
			zap.Error(err))
	}
}

func (s *VerificationService) notifyRoleHolders(ctx context.Context, role models.Role, template models.Notification, applicationID string) {
	userIDs, err := s.roles.UserIDsWithRole(ctx, role)
	if err != nil {
		s.logger.Warn("failed to resolve notification audience", zap.String("role", string(role)), zap.Error(err))
		return
	}
	if len(userIDs) == 0 {
		return
	}
	batch := make([]models.Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		n := template
		n.ID = uuid.NewString()
		n.UserID = userID
		n.AudienceRole = role
		n.ApplicationID = &applicationID
		n.CreatedAt = time.Now().UTC()
		batch = append(batch, n)
	}
	if err := s.notifications.BulkCreate(ctx, batch); err != nil {
		s.logger.Warn("failed to fan out notifications", zap.String("role", string(role)), zap.Error(err))
	}
}

func (s *VerificationService) recordDecisionAudit(ctx context.Context, actorID, applicationID string, stage models.Stage, approved bool) {
	action := models.AuditActionStageVerify
	if !approved {
		action = models.AuditActionStageReject
	}
	s.recordAudit(ctx, actorID, action, applicationID, []byte(fmt.Sprintf(`{"stage":%q}`, stage)))
}

func (s *VerificationService) recordAudit(ctx context.Context, actorID, action, applicationID string, payload []byte) {
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "application",
		ResourceID: &applicationID,
		NewValues:  payload,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func normalizeComment(raw string) *string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func rejectionMessage(stage models.Stage, comment *string) string {
	if comment != nil {
		return fmt.Sprintf("Your application was rejected at the %s stage: %s", stage, *comment)
	}
	return fmt.Sprintf("Your application was rejected at the %s stage", stage)
}
