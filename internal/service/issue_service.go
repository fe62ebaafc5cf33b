package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/church-news-api/internal/dto"
	"github.com/noah-isme/church-news-api/internal/models"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
)

const (
	issueURLTemplate  = "https://anyangjeil.org/Board/Detail/66/%d"
	seedScrapeWorkers = 4
)

// boardIDs2025 lists the board posts of the 2025 monthly issues, January first.
var boardIDs2025 = []int64{59460, 59924, 60828, 61334, 61675, 62388, 62861, 63278, 64032, 64332, 64788, 65505}

type issueStore interface {
	List(ctx context.Context, year int) ([]models.Issue, error)
	GetByID(ctx context.Context, id int64) (*models.Issue, error)
	Upsert(ctx context.Context, issue *models.Issue) error
	Seed(ctx context.Context, issue *models.Issue) error
	ResetProcessing(ctx context.Context, year int) (int64, error)
}

type pageImageLister interface {
	ListByIssue(ctx context.Context, issueID int64) ([]models.PageImage, error)
}

type issueListReconciler interface {
	Reconcile(ctx context.Context, issues []models.Issue) int
}

// IssueService manages the issue catalogue.
type IssueService struct {
	issues     issueStore
	images     pageImageLister
	source     pageSource
	reconciler issueListReconciler
	cache      *CacheService
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewIssueService constructs the service.
func NewIssueService(issues issueStore, images pageImageLister, source pageSource, reconciler issueListReconciler, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *IssueService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IssueService{
		issues:     issues,
		images:     images,
		source:     source,
		reconciler: reconciler,
		cache:      cache,
		validator:  validate,
		logger:     logger,
	}
}

// DefaultCatalogue returns the built-in 2025 issue list.
func DefaultCatalogue() []dto.SeedIssue {
	entries := make([]dto.SeedIssue, 0, len(boardIDs2025))
	for i, boardID := range boardIDs2025 {
		entries = append(entries, dto.SeedIssue{Year: 2025, Month: i + 1, BoardID: boardID})
	}
	return entries
}

// List returns issues newest first, repairing statuses left behind by dead runs.
func (s *IssueService) List(ctx context.Context, year int) ([]models.Issue, error) {
	issues, err := s.issues.List(ctx, year)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list issues")
	}
	if s.reconciler != nil {
		s.reconciler.Reconcile(ctx, issues)
	}
	if issues == nil {
		issues = []models.Issue{}
	}
	return issues, nil
}

// Get returns one issue.
func (s *IssueService) Get(ctx context.Context, id int64) (*models.Issue, error) {
	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrIssueNotFound, fmt.Sprintf("issue %d not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load issue")
	}
	if s.reconciler != nil && issue.Status == models.IssueStatusProcessing {
		list := []models.Issue{*issue}
		s.reconciler.Reconcile(ctx, list)
		issue.Status = list[0].Status
	}
	return issue, nil
}

// Images lists the stored pages of an issue in page order.
func (s *IssueService) Images(ctx context.Context, issueID int64) ([]models.PageImage, error) {
	images, err := s.images.ListByIssue(ctx, issueID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list issue images")
	}
	if images == nil {
		images = []models.PageImage{}
	}
	return images, nil
}

// Upsert registers an issue, scraping its source to learn the page count.
func (s *IssueService) Upsert(ctx context.Context, req dto.UpsertIssueRequest) (*models.Issue, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid issue payload")
	}
	issue := &models.Issue{
		Year:    req.Year,
		Month:   req.Month,
		BoardID: req.BoardID,
		URL:     req.URL,
		Title:   req.Title,
	}
	if req.PublishedDate != "" {
		published, err := time.Parse("2006-01-02", req.PublishedDate)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "published_date must use YYYY-MM-DD")
		}
		issue.PublishedDate = &published
	}

	pages, err := s.source.DiscoverPages(ctx, req.URL)
	if err != nil {
		return nil, err
	}
	issue.ImageCount = len(pages)

	if err := s.issues.Upsert(ctx, issue); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save issue")
	}
	s.invalidateDashboard(ctx)
	return issue, nil
}

// Seed upserts catalogue entries. Processing issues of the seeded years are
// reconciled first so a live run keeps its claim while stale ones return to pending.
// A failed scrape records zero pages instead of aborting the seed.
func (s *IssueService) Seed(ctx context.Context, entries []dto.SeedIssue) (*dto.SeedIssuesResponse, error) {
	for i := range entries {
		if entries[i].URL == "" {
			entries[i].URL = fmt.Sprintf(issueURLTemplate, entries[i].BoardID)
		}
		if entries[i].Title == "" {
			entries[i].Title = fmt.Sprintf("%d년 %d월호", entries[i].Year, entries[i].Month)
		}
		if err := s.validator.Struct(entries[i]); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status,
				fmt.Sprintf("invalid seed entry %d-%02d", entries[i].Year, entries[i].Month))
		}
	}

	resp := &dto.SeedIssuesResponse{Issues: make([]models.Issue, 0, len(entries))}
	seen := map[int]bool{}
	for _, entry := range entries {
		if seen[entry.Year] {
			continue
		}
		seen[entry.Year] = true
		existing, err := s.issues.List(ctx, entry.Year)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list issues")
		}
		if s.reconciler != nil {
			resp.Reset += int64(s.reconciler.Reconcile(ctx, existing))
		}
	}

	counts := s.scrapeCounts(ctx, entries)
	for i, entry := range entries {
		boardID := entry.BoardID
		title := entry.Title
		issue := &models.Issue{
			Year:       entry.Year,
			Month:      entry.Month,
			BoardID:    &boardID,
			URL:        entry.URL,
			Title:      &title,
			ImageCount: counts[i],
		}
		if err := s.issues.Seed(ctx, issue); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to seed issue")
		}
		resp.Issues = append(resp.Issues, *issue)
	}
	resp.Seeded = len(resp.Issues)
	s.invalidateDashboard(ctx)
	s.logger.Sugar().Infow("issues seeded", "count", resp.Seeded, "reset", resp.Reset)
	return resp, nil
}

func (s *IssueService) scrapeCounts(ctx context.Context, entries []dto.SeedIssue) []int {
	counts := make([]int, len(entries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seedScrapeWorkers)
	for i, entry := range entries {
		i, entry := i, entry
		g.Go(func() error {
			pages, err := s.source.DiscoverPages(gctx, entry.URL)
			if err != nil {
				s.logger.Sugar().Warnw("seed scrape failed, recording zero pages", "year", entry.Year, "month", entry.Month, "url", entry.URL, "error", err)
				return nil
			}
			counts[i] = len(pages)
			return nil
		})
	}
	_ = g.Wait()
	return counts
}

// ResetProcessing returns processing issues to pending regardless of their jobs.
func (s *IssueService) ResetProcessing(ctx context.Context, year int) (int64, error) {
	count, err := s.issues.ResetProcessing(ctx, year)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset processing issues")
	}
	s.logger.Sugar().Infow("processing issues reset", "year", year, "count", count)
	return count, nil
}

func (s *IssueService) invalidateDashboard(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Invalidate(ctx, dashboardCachePattern)
}
