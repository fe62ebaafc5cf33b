package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/church-news-api/internal/dto"
	"github.com/noah-isme/church-news-api/internal/models"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
)

const (
	defaultArticlePageSize = 20
	dateLayout             = "2006-01-02"
)

type articleReader interface {
	GetByID(ctx context.Context, id int64) (*models.ArticleWithIssue, error)
	ListByIssue(ctx context.Context, issueID int64) ([]models.Article, error)
	Search(ctx context.Context, filter models.ArticleSearchFilter) ([]models.ArticleWithIssue, int, error)
	TypeStats(ctx context.Context) ([]models.ArticleTypeCount, error)
	MonthlyStats(ctx context.Context) ([]models.MonthlyCount, error)
}

type eventReader interface {
	ListByArticle(ctx context.Context, articleID int64) ([]models.Event, error)
	Timeline(ctx context.Context, filter models.TimelineFilter) ([]models.TimelineEvent, error)
	TypeStats(ctx context.Context) ([]models.EventTypeStat, error)
}

// ArticleService serves read access to extracted articles and events.
type ArticleService struct {
	articles  articleReader
	events    eventReader
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewArticleService constructs the service. cache may be nil.
func NewArticleService(articles articleReader, events eventReader, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ArticleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ArticleService{articles: articles, events: events, cache: cache, validator: validate, logger: logger}
}

// Search filters articles and returns a page with its pagination block.
func (s *ArticleService) Search(ctx context.Context, query dto.ArticleSearchQuery) ([]models.ArticleWithIssue, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid article search query")
	}
	if query.Page <= 0 {
		query.Page = 1
	}
	if query.Limit <= 0 {
		query.Limit = defaultArticlePageSize
	}
	filter := models.ArticleSearchFilter{
		Query: query.Q,
		Type:  query.Type,
		Year:  query.Year,
		Month: query.Month,
		Page:  query.Page,
		Limit: query.Limit,
	}
	articles, total, err := s.articles.Search(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to search articles")
	}
	if articles == nil {
		articles = []models.ArticleWithIssue{}
	}
	return articles, &models.Pagination{Page: query.Page, PageSize: query.Limit, TotalCount: total}, nil
}

// Get returns one article with its events.
func (s *ArticleService) Get(ctx context.Context, id int64) (*dto.ArticleDetailResponse, error) {
	article, err := s.articles.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("article %d not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load article")
	}
	events, err := s.events.ListByArticle(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load article events")
	}
	if events == nil {
		events = []models.Event{}
	}
	return &dto.ArticleDetailResponse{ArticleWithIssue: *article, Events: events}, nil
}

// ListByIssue returns an issue's articles in page order.
func (s *ArticleService) ListByIssue(ctx context.Context, issueID int64) ([]models.Article, error) {
	articles, err := s.articles.ListByIssue(ctx, issueID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list issue articles")
	}
	if articles == nil {
		articles = []models.Article{}
	}
	return articles, nil
}

// TypeStats counts articles per category.
func (s *ArticleService) TypeStats(ctx context.Context) ([]models.ArticleTypeCount, bool, error) {
	stats, hit, err := cached(ctx, s.cache, articleTypesCacheKey, s.articles.TypeStats)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load article statistics")
	}
	if stats == nil {
		stats = []models.ArticleTypeCount{}
	}
	return stats, hit, nil
}

// MonthlyStats counts articles and events per issue month.
func (s *ArticleService) MonthlyStats(ctx context.Context) ([]models.MonthlyCount, bool, error) {
	stats, hit, err := cached(ctx, s.cache, articleMonthlyKey, s.articles.MonthlyStats)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load monthly statistics")
	}
	if stats == nil {
		stats = []models.MonthlyCount{}
	}
	return stats, hit, nil
}

// Timeline lists dated events in chronological order.
func (s *ArticleService) Timeline(ctx context.Context, query dto.TimelineQuery) ([]models.TimelineEvent, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timeline query")
	}
	filter := models.TimelineFilter{EventType: query.EventType}
	var err error
	if filter.StartDate, err = parseOptionalDate(query.StartDate); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date must use YYYY-MM-DD")
	}
	if filter.EndDate, err = parseOptionalDate(query.EndDate); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must use YYYY-MM-DD")
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must not precede start_date")
	}

	events, err := s.events.Timeline(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timeline")
	}
	if events == nil {
		events = []models.TimelineEvent{}
	}
	return events, nil
}

// EventStats aggregates events per type with their date span.
func (s *ArticleService) EventStats(ctx context.Context) ([]models.EventTypeStat, bool, error) {
	stats, hit, err := cached(ctx, s.cache, eventTypesCacheKey, s.events.TypeStats)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load event statistics")
	}
	if stats == nil {
		stats = []models.EventTypeStat{}
	}
	return stats, hit, nil
}

func parseOptionalDate(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
