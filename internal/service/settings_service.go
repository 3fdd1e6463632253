package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sudeep-patali/nodue-api/internal/dto"
	"github.com/sudeep-patali/nodue-api/internal/models"
	appErrors "github.com/sudeep-patali/nodue-api/pkg/errors"
)

type windowStore interface {
	GetWindow(ctx context.Context, scope string) (*models.SubmissionWindow, error)
	UpsertWindow(ctx context.Context, window *models.SubmissionWindow) error
	DeleteWindow(ctx context.Context, scope string) error
}

// SettingsService manages the layered submission-window configuration: one
// global default plus optional per-batch overrides.
type SettingsService struct {
	windows   windowStore
	admin     adminChecker
	audit     auditLogger
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSettingsService constructs the service.
func NewSettingsService(windows windowStore, admin adminChecker, audit auditLogger, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SettingsService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SettingsService{
		windows:   windows,
		admin:     admin,
		audit:     audit,
		cache:     cache,
		validator: validate,
		logger:    logger,
	}
}

// GetWindow returns the configured window row for a scope, or nil when none
// is configured.
func (s *SettingsService) GetWindow(ctx context.Context, scope string) (*models.SubmissionWindow, error) {
	if err := validScope(scope); err != nil {
		return nil, err
	}
	window, err := s.windows.GetWindow(ctx, scope)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission window")
	}
	return window, nil
}

// SetWindow creates or replaces the window for a scope and invalidates
// cached window verdicts.
func (s *SettingsService) SetWindow(ctx context.Context, actorID string, req dto.SetSubmissionWindowRequest) (*models.SubmissionWindow, error) {
	if ok, err := s.admin.HasRole(ctx, actorID, models.RoleAdmin); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check admin capability")
	} else if !ok {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "admin capability required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid window payload")
	}
	if err := validScope(req.Scope); err != nil {
		return nil, err
	}

	startsAt, err := parseWindowTime(req.StartsAt)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "starts_at must be RFC 3339")
	}
	endsAt, err := parseWindowTime(req.EndsAt)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ends_at must be RFC 3339")
	}
	if startsAt != nil && endsAt != nil && endsAt.Before(*startsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "ends_at must not precede starts_at")
	}

	window := &models.SubmissionWindow{
		ID:        uuid.NewString(),
		Scope:     req.Scope,
		Enabled:   req.Enabled,
		StartsAt:  startsAt,
		EndsAt:    endsAt,
		UpdatedAt: time.Now().UTC(),
	}
	if err := s.windows.UpsertWindow(ctx, window); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save submission window")
	}

	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, req.Scope, fmt.Sprintf(`{"enabled":%t}`, req.Enabled))
	return window, nil
}

// ClearWindow removes a scope's window row. Clearing a batch override makes
// the batch fall back to the global default; clearing the global default
// closes submissions for every batch without an override.
func (s *SettingsService) ClearWindow(ctx context.Context, actorID, scope string) error {
	if ok, err := s.admin.HasRole(ctx, actorID, models.RoleAdmin); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check admin capability")
	} else if !ok {
		return appErrors.Clone(appErrors.ErrForbidden, "admin capability required")
	}
	if err := validScope(scope); err != nil {
		return err
	}
	if err := s.windows.DeleteWindow(ctx, scope); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete submission window")
	}
	s.invalidate(ctx)
	s.recordAudit(ctx, actorID, scope, `{"cleared":true}`)
	return nil
}

func (s *SettingsService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, "submission:window:*"); err != nil {
		s.logger.Warn("failed to invalidate window cache", zap.Error(err))
	}
}

func (s *SettingsService) recordAudit(ctx context.Context, actorID, scope, payload string) {
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionWindowUpdate,
		Resource:   "submission_window",
		ResourceID: &scope,
		NewValues:  []byte(payload),
	}); err != nil {
		s.logger.Warn("failed to record window audit log", zap.Error(err))
	}
}

func validScope(scope string) error {
	if scope == models.SubmissionWindowScopeGlobal || models.ValidBatchName(scope) {
		return nil
	}
	return appErrors.Clone(appErrors.ErrValidation, `scope must be "global" or a batch name`)
}

func parseWindowTime(raw *string) (*time.Time, error) {
	if raw == nil || *raw == "" {
		return nil, nil
	}
	parsed, err := time.Parse(time.RFC3339, *raw)
	if err != nil {
		return nil, err
	}
	utc := parsed.UTC()
	return &utc, nil
}
