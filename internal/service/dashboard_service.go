package service

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/church-news-api/internal/dto"
	"github.com/noah-isme/church-news-api/internal/models"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
)

type dashboardAggregates interface {
	CountIssues(ctx context.Context) (int64, error)
	CountArticles(ctx context.Context) (int64, error)
	CountEvents(ctx context.Context) (int64, error)
	TopArticleTypes(ctx context.Context, limit int) ([]models.ArticleTypeCount, error)
}

type metricsSnapshotter interface {
	Snapshot() models.SystemMetrics
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL     time.Duration
	TopTypeLimit int
}

// DashboardService orchestrates composition of the admin dashboard.
type DashboardService struct {
	repo    dashboardAggregates
	metrics metricsSnapshotter
	cache   *CacheService
	logger  *zap.Logger
	now     func() time.Time
	cfg     DashboardServiceConfig
}

// DashboardServiceParams groups constructor dependencies.
type DashboardServiceParams struct {
	Repo    dashboardAggregates
	Metrics metricsSnapshotter
	Cache   *CacheService
	Logger  *zap.Logger
	Config  DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(params DashboardServiceParams) *DashboardService {
	cfg := params.Config
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.TopTypeLimit <= 0 {
		cfg.TopTypeLimit = 10
	}
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		repo:    params.Repo,
		metrics: params.Metrics,
		cache:   params.Cache,
		logger:  logger,
		now:     time.Now,
		cfg:     cfg,
	}
}

// Admin returns the admin dashboard summary and indicates cache utilisation.
// Runtime metrics are attached after the cache so they are always current.
func (s *DashboardService) Admin(ctx context.Context) (*dto.AdminDashboardResponse, bool, error) {
	summary, hit := s.tryCache(ctx)
	if !hit {
		var err error
		summary, err = s.composeAdminSummary(ctx)
		if err != nil {
			return nil, false, err
		}
		s.persistCache(ctx, summary)
	}
	if s.metrics != nil {
		summary.System = s.metrics.Snapshot()
	}
	return summary, hit, nil
}

func (s *DashboardService) tryCache(ctx context.Context) (*dto.AdminDashboardResponse, bool) {
	if !s.cache.Enabled() {
		return nil, false
	}
	var cachedSummary dto.AdminDashboardResponse
	hit, err := s.cache.Get(ctx, dashboardCacheKey, &cachedSummary)
	if err != nil || !hit {
		return nil, false
	}
	return &cachedSummary, true
}

func (s *DashboardService) persistCache(ctx context.Context, value *dto.AdminDashboardResponse) {
	if !s.cache.Enabled() {
		return
	}
	if err := s.cache.Set(ctx, dashboardCacheKey, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", dashboardCacheKey), zap.Error(err))
	}
}

func (s *DashboardService) composeAdminSummary(ctx context.Context) (*dto.AdminDashboardResponse, error) {
	summary := &dto.AdminDashboardResponse{GeneratedAt: s.now().UTC()}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.repo.CountIssues(gctx)
		summary.Counts.Issues = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountArticles(gctx)
		summary.Counts.Articles = n
		return err
	})
	g.Go(func() error {
		n, err := s.repo.CountEvents(gctx)
		summary.Counts.Events = n
		return err
	})
	g.Go(func() error {
		types, err := s.repo.TopArticleTypes(gctx, s.cfg.TopTypeLimit)
		summary.TopArticleTypes = types
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compose dashboard")
	}
	if summary.TopArticleTypes == nil {
		summary.TopArticleTypes = []models.ArticleTypeCount{}
	}
	return summary, nil
}
