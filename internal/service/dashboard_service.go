package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sudeep-patali/nodue-api/internal/dto"
	"github.com/sudeep-patali/nodue-api/internal/models"
	appErrors "github.com/sudeep-patali/nodue-api/pkg/errors"
)

type dashboardApplicationStore interface {
	CountStageQueue(ctx context.Context, stage models.Stage) (int, error)
}

// DashboardService serves per-role pending counts for verifier dashboards,
// cached briefly because every verifier home page asks for them.
type DashboardService struct {
	apps     dashboardApplicationStore
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cacheTTL time.Duration
}

// NewDashboardService constructs the service.
func NewDashboardService(apps dashboardApplicationStore, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cacheTTL time.Duration) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cacheTTL <= 0 {
		cacheTTL = 30 * time.Second
	}
	return &DashboardService{
		apps:     apps,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cacheTTL: cacheTTL,
	}
}

// Summary returns pending counts for every stage the caller can verify,
// plus whether every count came from cache.
func (s *DashboardService) Summary(ctx context.Context, roles models.RoleSet) ([]dto.DashboardSummary, bool, error) {
	summaries := make([]dto.DashboardSummary, 0, 4)
	cached := true
	for _, stage := range models.StageOrder {
		if stage == models.StagePayment {
			// the payment stage waits on the student, not a verifier
			continue
		}
		if !roles.Has(models.StageRole(stage)) {
			continue
		}
		count, fromCache, err := s.pendingCount(ctx, stage)
		if err != nil {
			return nil, false, err
		}
		if !fromCache {
			cached = false
		}
		summaries = append(summaries, dto.DashboardSummary{
			Stage:        string(stage),
			PendingCount: count,
		})
	}
	if len(summaries) == 0 {
		cached = false
	}
	return summaries, cached, nil
}

func (s *DashboardService) pendingCount(ctx context.Context, stage models.Stage) (int, bool, error) {
	cacheKey := "dashboard:stage:" + string(stage)
	if s.cache.Enabled() {
		var count int
		if hit, err := s.cache.Get(ctx, cacheKey, &count); err == nil && hit {
			return count, true, nil
		}
	}

	count, err := s.apps.CountStageQueue(ctx, stage)
	if err != nil {
		return 0, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending applications")
	}

	if s.cache.Enabled() {
		if err := s.cache.Set(ctx, cacheKey, count, s.cacheTTL); err != nil {
			s.logger.Debug("failed to cache pending count", zap.String("stage", string(stage)), zap.Error(err))
		}
	}
	return count, false, nil
}

// SystemMetrics exposes the runtime counters snapshot on the admin dashboard.
func (s *DashboardService) SystemMetrics() models.SystemMetrics {
	return s.metrics.Snapshot()
}
