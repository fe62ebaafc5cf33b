package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/church-news-api/internal/downloader"
	"github.com/noah-isme/church-news-api/internal/models"
	"github.com/noah-isme/church-news-api/internal/oracle"
	"github.com/noah-isme/church-news-api/internal/repository"
	"github.com/noah-isme/church-news-api/internal/scraper"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
	"github.com/noah-isme/church-news-api/pkg/jobs"
)

// ExtractionJobType labels extraction work on the queue.
const ExtractionJobType = "extraction"

const (
	phaseDownload = "download"
	phaseProcess  = "process"

	cancelledMessage   = "extraction cancelled"
	interruptedMessage = "interrupted by restart"
	finalWriteTimeout  = 15 * time.Second
)

type extractionIssueStore interface {
	GetByID(ctx context.Context, id int64) (*models.Issue, error)
	UpdateImageCount(ctx context.Context, id int64, count int) error
	UpdateStatus(ctx context.Context, id int64, status models.IssueStatus) error
}

type extractionJobStore interface {
	CreateForIssue(ctx context.Context, job *models.ExtractionJob) error
	Update(ctx context.Context, id string, params repository.UpdateJobParams) error
	LatestByIssue(ctx context.Context, issueID int64) (*models.ExtractionJob, error)
	ListActive(ctx context.Context) ([]models.ExtractionJob, error)
}

type pageImageWriter interface {
	Create(ctx context.Context, img *models.PageImage) error
	DeleteByIssue(ctx context.Context, issueID int64) (int64, error)
}

type articleWriter interface {
	CreateWithEvents(ctx context.Context, article *models.Article, events []models.Event) error
	DeleteByIssue(ctx context.Context, issueID int64) (int64, error)
}

type pageSource interface {
	DiscoverPages(ctx context.Context, sourceURL string) ([]scraper.Page, error)
}

type assetFetcher interface {
	Fetch(ctx context.Context, remoteURL, destination string) (*downloader.Asset, error)
	Open(path string) ([]byte, error)
	Purge(dir string) error
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type oracleBuilder interface {
	Build(ctx context.Context) (*oracle.Oracle, error)
}

type issueReconciler interface {
	ReconcileOne(ctx context.Context, issue *models.Issue) bool
}

// ExtractionServiceConfig tunes run behaviour.
type ExtractionServiceConfig struct {
	ReplaceExisting     bool
	DownloadConcurrency int
}

// ExtractionServiceParams groups constructor dependencies.
type ExtractionServiceParams struct {
	Issues     extractionIssueStore
	Jobs       extractionJobStore
	Images     pageImageWriter
	Articles   articleWriter
	Source     pageSource
	Fetcher    assetFetcher
	Oracles    oracleBuilder
	Reconciler issueReconciler
	Queue      jobDispatcher
	Runs       *jobs.Registry
	Metrics    *MetricsService
	Cache      *CacheService
	Logger     *zap.Logger
	Config     ExtractionServiceConfig
}

// ExtractionPayload travels with a queued run.
type ExtractionPayload struct {
	IssueID   int64
	SourceURL string
}

// ExtractionService drives an issue through scraping, downloading and processing.
type ExtractionService struct {
	issues     extractionIssueStore
	jobs       extractionJobStore
	images     pageImageWriter
	articles   articleWriter
	source     pageSource
	fetcher    assetFetcher
	oracles    oracleBuilder
	reconciler issueReconciler
	queue      jobDispatcher
	runs       *jobs.Registry
	metrics    *MetricsService
	cache      *CacheService
	logger     *zap.Logger
	cfg        ExtractionServiceConfig
}

// NewExtractionService wires the orchestrator.
func NewExtractionService(params ExtractionServiceParams) *ExtractionService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := params.Config
	if cfg.DownloadConcurrency <= 0 {
		cfg.DownloadConcurrency = 1
	}
	runs := params.Runs
	if runs == nil {
		runs = jobs.NewRegistry()
	}
	return &ExtractionService{
		issues:     params.Issues,
		jobs:       params.Jobs,
		images:     params.Images,
		articles:   params.Articles,
		source:     params.Source,
		fetcher:    params.Fetcher,
		oracles:    params.Oracles,
		reconciler: params.Reconciler,
		queue:      params.Queue,
		runs:       runs,
		metrics:    params.Metrics,
		cache:      params.Cache,
		logger:     logger,
		cfg:        cfg,
	}
}

// SetQueue attaches the dispatcher once the queue has been built around Run.
func (s *ExtractionService) SetQueue(queue jobDispatcher) {
	s.queue = queue
}

// Runs exposes the registry of in-process runs.
func (s *ExtractionService) Runs() *jobs.Registry {
	return s.runs
}

// StartExtraction claims the issue, records a new job and schedules its run.
// It returns as soon as the job is durable; the run's outcome is only visible through progress.
func (s *ExtractionService) StartExtraction(ctx context.Context, issueID int64) (*models.ExtractionJob, error) {
	issue, err := s.issues.GetByID(ctx, issueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrIssueNotFound, fmt.Sprintf("issue %d not found", issueID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issue")
	}
	if issue.Status == models.IssueStatusProcessing && s.reconciler != nil {
		s.reconciler.ReconcileOne(ctx, issue)
	}

	job := &models.ExtractionJob{IssueID: issue.ID, Status: models.JobStatusScraping}
	if err := s.jobs.CreateForIssue(ctx, job); err != nil {
		switch {
		case errors.Is(err, repository.ErrIssueBusy):
			return nil, appErrors.Clone(appErrors.ErrExtractionInProgress, fmt.Sprintf("issue %d is already being extracted", issueID))
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrIssueNotFound, fmt.Sprintf("issue %d not found", issueID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create extraction job")
	}

	s.runs.Register(context.Background(), job.ID, runGroup(issue.ID))
	if s.queue == nil {
		s.abandon(ctx, job, "extraction queue unavailable")
		return nil, appErrors.Clone(appErrors.ErrServiceUnavailable, "extraction queue unavailable")
	}
	s.metrics.ExtractionStarted()
	err = s.queue.Enqueue(jobs.Job{
		ID:      job.ID,
		Type:    ExtractionJobType,
		Payload: ExtractionPayload{IssueID: issue.ID, SourceURL: issue.URL},
	})
	if err != nil {
		s.metrics.ExtractionFinished(OutcomeFailed, 0)
		s.abandon(ctx, job, "failed to enqueue extraction")
		return nil, appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "failed to schedule extraction")
	}

	s.logger.Sugar().Infow("extraction scheduled", "issue_id", issue.ID, "job_id", job.ID)
	return job, nil
}

// abandon records a job that was created but never handed to a worker.
func (s *ExtractionService) abandon(ctx context.Context, job *models.ExtractionJob, message string) {
	s.runs.Finish(job.ID, errors.New(message))
	s.markFailed(ctx, job.ID, job.IssueID, message)
}

// Run executes one queued extraction. It is the queue handler.
func (s *ExtractionService) Run(ctx context.Context, task jobs.Job) error {
	payload, ok := task.Payload.(ExtractionPayload)
	if !ok {
		return fmt.Errorf("extraction job %s: unexpected payload %T", task.ID, task.Payload)
	}

	handle, ok := s.runs.Lookup(task.ID)
	if !ok {
		handle = s.runs.Register(context.Background(), task.ID, runGroup(payload.IssueID))
	}
	runCtx, cancel := context.WithCancelCause(handle.Context())
	stop := context.AfterFunc(ctx, func() { cancel(context.Cause(ctx)) })
	defer func() {
		stop()
		cancel(nil)
	}()

	started := time.Now()
	log := s.logger.With(zap.Int64("issue_id", payload.IssueID), zap.String("job_id", task.ID))
	log.Info("extraction run started")

	err := s.safeExecute(runCtx, log, task.ID, payload)
	outcome := OutcomeCompleted
	if err != nil {
		message := err.Error()
		outcome = OutcomeFailed
		if errors.Is(context.Cause(runCtx), jobs.ErrRunCancelled) {
			message = cancelledMessage
			outcome = OutcomeCancelled
		}
		log.Error("extraction run failed", zap.String("error", message))
		s.markFailed(runCtx, task.ID, payload.IssueID, message)
	} else {
		log.Info("extraction run completed", zap.Duration("duration", time.Since(started)))
	}

	s.runs.Finish(task.ID, err)
	s.metrics.ExtractionFinished(outcome, time.Since(started))
	return err
}

// safeExecute turns a panic anywhere in the run into an ordinary run error.
func (s *ExtractionService) safeExecute(ctx context.Context, log *zap.Logger, jobID string, payload ExtractionPayload) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("extraction run panicked", zap.Any("panic", r), zap.Stack("stack"))
			err = fmt.Errorf("extraction panicked: %v", r)
		}
	}()
	return s.execute(ctx, log, jobID, payload)
}

type downloadedPage struct {
	image models.PageImage
	mime  string
}

func (s *ExtractionService) execute(ctx context.Context, log *zap.Logger, jobID string, payload ExtractionPayload) error {
	if err := s.setPhase(ctx, jobID, models.JobStatusScraping, 0); err != nil {
		return err
	}
	pages, err := s.source.DiscoverPages(ctx, payload.SourceURL)
	if err != nil {
		return err
	}
	if err := s.issues.UpdateImageCount(ctx, payload.IssueID, len(pages)); err != nil {
		return err
	}
	log.Info("pages discovered", zap.Int("pages", len(pages)))

	if s.cfg.ReplaceExisting {
		if err := s.clearPrevious(ctx, log, payload.IssueID); err != nil {
			return err
		}
	}

	if err := s.setPhase(ctx, jobID, models.JobStatusDownloading, len(pages)); err != nil {
		return err
	}
	downloaded, err := s.download(ctx, log, jobID, payload.IssueID, pages)
	if err != nil {
		return err
	}

	if err := s.setPhase(ctx, jobID, models.JobStatusProcessing, len(downloaded)); err != nil {
		return err
	}
	chain, err := s.oracles.Build(ctx)
	if err != nil {
		return err
	}
	if len(chain.Providers()) == 0 && len(downloaded) > 0 {
		log.Warn("no AI provider has an active credential; every page will be skipped")
	}

	tracker := newProgressTracker(s.jobs, jobID, len(downloaded))
	for _, page := range downloaded {
		if err := ctx.Err(); err != nil {
			return context.Cause(ctx)
		}
		if err := s.processPage(ctx, chain, jobID, payload.IssueID, page); err != nil {
			if ctx.Err() != nil {
				return context.Cause(ctx)
			}
			log.Warn("page processing skipped", zap.Int("page", page.image.PageNumber), zap.Error(err))
			s.metrics.ObservePage(phaseProcess, OutcomeSkipped)
		} else {
			s.metrics.ObservePage(phaseProcess, OutcomeOK)
		}
		if err := tracker.step(ctx); err != nil {
			return err
		}
	}

	total := len(downloaded)
	completed := models.JobStatusCompleted
	progress := 100
	if err := s.jobs.Update(ctx, jobID, repository.UpdateJobParams{
		Status:         &completed,
		Progress:       &progress,
		TotalItems:     &total,
		ProcessedItems: &total,
	}); err != nil {
		return err
	}
	if err := s.issues.UpdateStatus(ctx, payload.IssueID, models.IssueStatusCompleted); err != nil {
		return err
	}
	_ = s.cache.Invalidate(ctx, dashboardCachePattern)
	return nil
}

func (s *ExtractionService) setPhase(ctx context.Context, jobID string, status models.JobStatus, total int) error {
	zero := 0
	return s.jobs.Update(ctx, jobID, repository.UpdateJobParams{
		Status:         &status,
		Progress:       &zero,
		TotalItems:     &total,
		ProcessedItems: &zero,
	})
}

func (s *ExtractionService) clearPrevious(ctx context.Context, log *zap.Logger, issueID int64) error {
	articles, err := s.articles.DeleteByIssue(ctx, issueID)
	if err != nil {
		return err
	}
	images, err := s.images.DeleteByIssue(ctx, issueID)
	if err != nil {
		return err
	}
	if err := s.fetcher.Purge(issueDir(issueID)); err != nil {
		log.Warn("failed to remove previous page files", zap.Error(err))
	}
	log.Info("previous extraction output removed", zap.Int64("articles", articles), zap.Int64("images", images))
	return nil
}

// download fetches pages with at most DownloadConcurrency in flight. Successful
// pages are returned in page order; failures are logged and skipped.
func (s *ExtractionService) download(ctx context.Context, log *zap.Logger, jobID string, issueID int64, pages []scraper.Page) ([]downloadedPage, error) {
	results := make([]*downloadedPage, len(pages))
	names := storedNames(pages)
	tracker := newProgressTracker(s.jobs, jobID, len(pages))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.DownloadConcurrency)
	for i, page := range pages {
		i, page := i, page
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			result, err := s.downloadPage(gctx, issueID, page, names[i])
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn("page download skipped", zap.Int("page", page.PageNumber), zap.String("url", page.URL), zap.Error(err))
				s.metrics.ObservePage(phaseDownload, OutcomeSkipped)
			} else {
				results[i] = result
				s.metrics.ObservePage(phaseDownload, OutcomeOK)
			}
			return tracker.step(gctx)
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, context.Cause(ctx)
		}
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, context.Cause(ctx)
	}

	downloaded := make([]downloadedPage, 0, len(pages))
	for _, r := range results {
		if r != nil {
			downloaded = append(downloaded, *r)
		}
	}
	return downloaded, nil
}

// storedNames picks the on-disk name of every page. A name already taken by an
// earlier page gets the page number as prefix so no download overwrites another.
func storedNames(pages []scraper.Page) []string {
	names := make([]string, len(pages))
	taken := make(map[string]bool, len(pages))
	for i, page := range pages {
		name := page.FileName
		if taken[name] {
			name = fmt.Sprintf("%03d_%s", page.PageNumber, page.FileName)
		}
		for n := 2; taken[name]; n++ {
			name = fmt.Sprintf("%03d_%d_%s", page.PageNumber, n, page.FileName)
		}
		taken[name] = true
		names[i] = name
	}
	return names
}

func (s *ExtractionService) downloadPage(ctx context.Context, issueID int64, page scraper.Page, fileName string) (*downloadedPage, error) {
	asset, err := s.fetcher.Fetch(ctx, page.URL, path.Join(issueDir(issueID), fileName))
	if err != nil {
		return nil, err
	}
	stored := asset.StoredPath
	img := models.PageImage{
		IssueID:    issueID,
		ImageURL:   page.URL,
		LocalPath:  &stored,
		PageNumber: page.PageNumber,
		FileName:   fileName,
		FileSize:   asset.ByteSize,
		MimeType:   asset.MimeType,
		Status:     models.PageImageStatusDownloaded,
	}
	if err := s.images.Create(ctx, &img); err != nil {
		return nil, fmt.Errorf("record page image: %w", err)
	}
	return &downloadedPage{image: img, mime: asset.MimeType}, nil
}

func (s *ExtractionService) processPage(ctx context.Context, chain *oracle.Oracle, jobID string, issueID int64, page downloadedPage) error {
	if page.image.LocalPath == nil {
		return errors.New("page image has no stored file")
	}
	data, err := s.fetcher.Open(*page.image.LocalPath)
	if err != nil {
		return err
	}
	ocr, err := chain.RecognizeText(ctx, data, page.mime)
	if err != nil {
		return err
	}
	structured, err := chain.Structure(ctx, ocr.Text, page.image.PageNumber)
	if err != nil {
		return err
	}

	imageID := page.image.ID
	article := &models.Article{
		IssueID:        issueID,
		ImageID:        &imageID,
		PageNumber:     page.image.PageNumber,
		Title:          optional(structured.Title),
		ContentSummary: optional(structured.Summary),
		FullContent:    optional(firstText(structured.FullText, ocr.Text)),
		ArticleType:    optional(structured.Category),
		Author:         optional(structured.Author),
		Metadata: models.ArticleMetadata{
			OCRConfidence: ocr.Confidence,
			Language:      ocr.Language,
			OCRProvider:   ocr.Provider,
			TextProvider:  structured.Provider,
			JobID:         jobID,
		},
	}
	events := make([]models.Event, 0, len(structured.Events))
	for _, e := range structured.Events {
		events = append(events, models.Event{
			EventType:    optional(e.Type),
			EventDate:    e.Date,
			EventTitle:   optional(e.Title),
			Description:  optional(e.Description),
			Location:     optional(e.Location),
			Participants: e.Participants,
		})
	}
	return s.articles.CreateWithEvents(ctx, article, events)
}

// markFailed records a fatal outcome. The writes outlive the run context so a
// cancelled run still leaves a terminal job behind.
func (s *ExtractionService) markFailed(ctx context.Context, jobID string, issueID int64, message string) {
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalWriteTimeout)
	defer cancel()

	failed := models.JobStatusFailed
	if err := s.jobs.Update(writeCtx, jobID, repository.UpdateJobParams{Status: &failed, ErrorMessage: &message}); err != nil {
		s.logger.Sugar().Errorw("failed to mark extraction job failed", "job_id", jobID, "error", err)
	}
	if err := s.issues.UpdateStatus(writeCtx, issueID, models.IssueStatusFailed); err != nil {
		s.logger.Sugar().Errorw("failed to mark issue failed", "issue_id", issueID, "error", err)
	}
}

// GetExtractionProgress returns the state of the most recent job of an issue.
func (s *ExtractionService) GetExtractionProgress(ctx context.Context, issueID int64) (*models.ExtractionProgress, error) {
	job, err := s.jobs.LatestByIssue(ctx, issueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no extraction job for issue")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load extraction progress")
	}
	view := job.ProgressView()
	view.Running = s.runs.Alive(job.ID)
	return &view, nil
}

// CancelExtraction stops every in-process run of the issue.
func (s *ExtractionService) CancelExtraction(ctx context.Context, issueID int64) error {
	job, err := s.jobs.LatestByIssue(ctx, issueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "no extraction job for issue")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load extraction job")
	}
	live := s.runs.ByGroup(runGroup(issueID))
	if job.Status.IsTerminal() || len(live) == 0 {
		return appErrors.Clone(appErrors.ErrConflict, "no running extraction for issue")
	}
	for _, handle := range live {
		s.runs.Cancel(handle.ID)
		s.logger.Sugar().Infow("extraction cancellation requested", "issue_id", issueID, "job_id", handle.ID)
	}
	return nil
}

// Wait blocks until the run of jobID finishes.
func (s *ExtractionService) Wait(ctx context.Context, jobID string) error {
	return s.runs.Wait(ctx, jobID)
}

// RecoverAbandonedRuns fails jobs left active by a previous process and
// returns their issues to pending so they can be started again.
func (s *ExtractionService) RecoverAbandonedRuns(ctx context.Context) int {
	active, err := s.jobs.ListActive(ctx)
	if err != nil {
		s.logger.Sugar().Warnw("failed to list abandoned extraction jobs", "error", err)
		return 0
	}
	recovered := 0
	for _, job := range active {
		if s.runs.Alive(job.ID) {
			continue
		}
		failed := models.JobStatusFailed
		message := interruptedMessage
		if err := s.jobs.Update(ctx, job.ID, repository.UpdateJobParams{Status: &failed, ErrorMessage: &message}); err != nil {
			s.logger.Sugar().Warnw("failed to close abandoned job", "job_id", job.ID, "error", err)
			continue
		}
		if err := s.issues.UpdateStatus(ctx, job.IssueID, models.IssueStatusPending); err != nil {
			s.logger.Sugar().Warnw("failed to reset issue of abandoned job", "issue_id", job.IssueID, "error", err)
		}
		recovered++
	}
	if recovered > 0 {
		s.logger.Sugar().Infow("recovered abandoned extraction jobs", "count", recovered)
	}
	return recovered
}

// progressTracker serialises counter writes so persisted progress never goes backwards.
type progressTracker struct {
	mu        sync.Mutex
	store     extractionJobStore
	jobID     string
	total     int
	processed int
}

func newProgressTracker(store extractionJobStore, jobID string, total int) *progressTracker {
	return &progressTracker{store: store, jobID: jobID, total: total}
}

func (t *progressTracker) step(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.processed++
	processed := t.processed
	progress := models.ProgressPercent(processed, t.total)
	return t.store.Update(ctx, t.jobID, repository.UpdateJobParams{
		Progress:       &progress,
		ProcessedItems: &processed,
	})
}

// runGroup keys every in-process run of an issue in the registry.
func runGroup(issueID int64) string {
	return "issue:" + strconv.FormatInt(issueID, 10)
}

func issueDir(issueID int64) string {
	return fmt.Sprintf("issue_%d", issueID)
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func firstText(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
