package app

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/church-news-api/internal/downloader"
	"github.com/noah-isme/church-news-api/internal/oracle"
	"github.com/noah-isme/church-news-api/internal/repository"
	"github.com/noah-isme/church-news-api/internal/scraper"
	"github.com/noah-isme/church-news-api/internal/service"
	"github.com/noah-isme/church-news-api/pkg/cache"
	"github.com/noah-isme/church-news-api/pkg/config"
	"github.com/noah-isme/church-news-api/pkg/database"
	"github.com/noah-isme/church-news-api/pkg/jobs"
	"github.com/noah-isme/church-news-api/pkg/storage"
)

// App holds every long-lived component shared by the API server and the extractor CLI.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	DB     *sqlx.DB
	Redis  *redis.Client

	Metrics    *service.MetricsService
	Cache      *service.CacheService
	Runs       *jobs.Registry
	Queue      *jobs.Queue
	Reconciler *service.Reconciler
	Oracles    *oracle.Builder

	IssueRepo *repository.IssueRepository

	Issues      *service.IssueService
	Extraction  *service.ExtractionService
	Articles    *service.ArticleService
	Credentials *service.CredentialService
	Dashboard   *service.DashboardService
}

// New connects to PostgreSQL and (optionally) Redis and wires the services.
// The extraction queue is built but not started.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, stats cache disabled", zap.Error(err))
		redisClient = nil
	}

	a := &App{Config: cfg, Logger: logger, DB: db, Redis: redisClient}
	if err := a.wire(); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	cfg := a.Config
	logger := a.Logger
	validate := validator.New()

	a.Metrics = service.NewMetricsService()
	cacheRepo := repository.NewCacheRepository(a.Redis, logger)
	a.Cache = service.NewCacheService(cacheRepo, a.Metrics, cfg.Dashboard.CacheTTL, logger, a.Redis != nil)

	issueRepo := repository.NewIssueRepository(a.DB)
	imageRepo := repository.NewPageImageRepository(a.DB)
	articleRepo := repository.NewArticleRepository(a.DB)
	eventRepo := repository.NewEventRepository(a.DB)
	credentialRepo := repository.NewCredentialRepository(a.DB)
	dashboardRepo := repository.NewDashboardRepository(a.DB)
	jobRepo := repository.NewExtractionJobRepository(a.DB)
	a.IssueRepo = issueRepo

	store, err := storage.NewLocalStorage(cfg.Extraction.ImagesDir)
	if err != nil {
		return fmt.Errorf("prepare image storage: %w", err)
	}
	source := scraper.New(cfg.Scraper, nil, logger.Named("scraper"))
	fetcher := downloader.New(cfg.Downloader, store, nil, logger.Named("downloader"))

	a.Credentials = service.NewCredentialService(credentialRepo, validate, logger)
	a.Oracles = oracle.NewBuilder(cfg.Providers, a.Credentials, nil, logger.Named("oracle"), a.Metrics.ObserveProviderCall)

	a.Runs = jobs.NewRegistry()
	a.Reconciler = service.NewReconciler(issueRepo, jobRepo, a.Runs, cfg.Extraction.StaleAfter, logger.Named("reconciler"))

	a.Extraction = service.NewExtractionService(service.ExtractionServiceParams{
		Issues:     issueRepo,
		Jobs:       jobRepo,
		Images:     imageRepo,
		Articles:   articleRepo,
		Source:     source,
		Fetcher:    fetcher,
		Oracles:    a.Oracles,
		Reconciler: a.Reconciler,
		Runs:       a.Runs,
		Metrics:    a.Metrics,
		Cache:      a.Cache,
		Logger:     logger.Named("extraction"),
		Config: service.ExtractionServiceConfig{
			ReplaceExisting:     cfg.Extraction.ReplaceExisting,
			DownloadConcurrency: cfg.Extraction.DownloadConcurrency,
		},
	})
	a.Queue = jobs.NewQueue("extraction", a.Extraction.Run, jobs.QueueConfig{
		Workers:    cfg.Extraction.Workers,
		BufferSize: cfg.Extraction.QueueSize,
		MaxRetries: -1,
		Logger:     logger,
	})
	a.Extraction.SetQueue(a.Queue)
	if err := a.Metrics.TrackQueueDepth("extraction", a.Queue.Pending); err != nil {
		return fmt.Errorf("register queue metrics: %w", err)
	}

	a.Issues = service.NewIssueService(issueRepo, imageRepo, source, a.Reconciler, a.Cache, validate, logger)
	a.Articles = service.NewArticleService(articleRepo, eventRepo, a.Cache, validate, logger)
	a.Dashboard = service.NewDashboardService(service.DashboardServiceParams{
		Repo:    dashboardRepo,
		Metrics: a.Metrics,
		Cache:   a.Cache,
		Logger:  logger,
		Config:  service.DashboardServiceConfig{CacheTTL: cfg.Dashboard.CacheTTL},
	})
	return nil
}

// Close stops the queue and releases connections.
func (a *App) Close() error {
	if a.Queue != nil {
		a.Queue.Stop()
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
