package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/church-news-api/internal/dto"
	"github.com/noah-isme/church-news-api/internal/models"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
)

type fakeArticleReader struct {
	articles   map[int64]models.ArticleWithIssue
	lastFilter models.ArticleSearchFilter
	total      int
	typeCalls  int
	searchErr  error
}

func (f *fakeArticleReader) GetByID(_ context.Context, id int64) (*models.ArticleWithIssue, error) {
	a, ok := f.articles[id]
	if !ok {
		return nil, fmt.Errorf("get article: %w", sql.ErrNoRows)
	}
	return &a, nil
}

func (f *fakeArticleReader) ListByIssue(context.Context, int64) ([]models.Article, error) {
	return nil, nil
}

func (f *fakeArticleReader) Search(_ context.Context, filter models.ArticleSearchFilter) ([]models.ArticleWithIssue, int, error) {
	f.lastFilter = filter
	if f.searchErr != nil {
		return nil, 0, f.searchErr
	}
	out := make([]models.ArticleWithIssue, 0, len(f.articles))
	for _, a := range f.articles {
		out = append(out, a)
	}
	return out, f.total, nil
}

func (f *fakeArticleReader) TypeStats(context.Context) ([]models.ArticleTypeCount, error) {
	f.typeCalls++
	return []models.ArticleTypeCount{{ArticleType: "news", Count: 3}}, nil
}

func (f *fakeArticleReader) MonthlyStats(context.Context) ([]models.MonthlyCount, error) {
	return []models.MonthlyCount{{Year: 2025, Month: 3, ArticleCount: 4, EventCount: 2}}, nil
}

type fakeEventReader struct {
	events     map[int64][]models.Event
	lastFilter models.TimelineFilter
}

func (f *fakeEventReader) ListByArticle(_ context.Context, articleID int64) ([]models.Event, error) {
	return f.events[articleID], nil
}

func (f *fakeEventReader) Timeline(_ context.Context, filter models.TimelineFilter) ([]models.TimelineEvent, error) {
	f.lastFilter = filter
	return nil, nil
}

func (f *fakeEventReader) TypeStats(context.Context) ([]models.EventTypeStat, error) {
	return []models.EventTypeStat{{EventType: "worship", Count: 2}}, nil
}

func strRef(s string) *string { return &s }

func TestArticleServiceSearchDefaultsPagination(t *testing.T) {
	reader := &fakeArticleReader{
		articles: map[int64]models.ArticleWithIssue{1: {Article: models.Article{ID: 1, Title: strRef("부활절 연합예배")}, Year: 2025, Month: 4}},
		total:    41,
	}
	svc := NewArticleService(reader, &fakeEventReader{}, nil, nil, nil)

	articles, pagination, err := svc.Search(context.Background(), dto.ArticleSearchQuery{Q: "예배", Year: 2025})
	require.NoError(t, err)
	assert.Len(t, articles, 1)
	assert.Equal(t, &models.Pagination{Page: 1, PageSize: 20, TotalCount: 41}, pagination)
	assert.Equal(t, "예배", reader.lastFilter.Query)
	assert.Equal(t, 2025, reader.lastFilter.Year)
	assert.Equal(t, 20, reader.lastFilter.Limit)
}

func TestArticleServiceSearchValidatesQuery(t *testing.T) {
	svc := NewArticleService(&fakeArticleReader{}, &fakeEventReader{}, nil, nil, nil)
	_, _, err := svc.Search(context.Background(), dto.ArticleSearchQuery{Limit: 500})
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}

func TestArticleServiceSearchWrapsRepositoryError(t *testing.T) {
	svc := NewArticleService(&fakeArticleReader{searchErr: errors.New("db down")}, &fakeEventReader{}, nil, nil, nil)
	_, _, err := svc.Search(context.Background(), dto.ArticleSearchQuery{})
	require.Error(t, err)
	assert.Equal(t, 500, appErrors.FromError(err).Status)
}

func TestArticleServiceGetIncludesEvents(t *testing.T) {
	date := time.Date(2025, 4, 20, 0, 0, 0, 0, time.UTC)
	reader := &fakeArticleReader{articles: map[int64]models.ArticleWithIssue{5: {Article: models.Article{ID: 5}}}}
	events := &fakeEventReader{events: map[int64][]models.Event{5: {{ID: 9, ArticleID: 5, EventDate: &date}}}}
	svc := NewArticleService(reader, events, nil, nil, nil)

	detail, err := svc.Get(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), detail.ID)
	require.Len(t, detail.Events, 1)

	other, err := NewArticleService(&fakeArticleReader{articles: map[int64]models.ArticleWithIssue{6: {}}}, &fakeEventReader{}, nil, nil, nil).Get(context.Background(), 6)
	require.NoError(t, err)
	assert.NotNil(t, other.Events)

	_, err = svc.Get(context.Background(), 404)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestArticleServiceTypeStatsUsesCache(t *testing.T) {
	reader := &fakeArticleReader{}
	cache := NewCacheService(&memCacheRepo{}, nil, time.Minute, nil, true)
	svc := NewArticleService(reader, &fakeEventReader{}, cache, nil, nil)

	_, hit, err := svc.TypeStats(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	stats, hit, err := svc.TypeStats(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, []models.ArticleTypeCount{{ArticleType: "news", Count: 3}}, stats)
	assert.Equal(t, 1, reader.typeCalls)

	monthly, _, err := svc.MonthlyStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), monthly[0].ArticleCount)

	eventStats, _, err := svc.EventStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "worship", eventStats[0].EventType)
}

func TestArticleServiceTimelineParsesDates(t *testing.T) {
	events := &fakeEventReader{}
	svc := NewArticleService(&fakeArticleReader{}, events, nil, nil, nil)

	list, err := svc.Timeline(context.Background(), dto.TimelineQuery{StartDate: "2025-01-01", EndDate: "2025-06-30", EventType: "worship"})
	require.NoError(t, err)
	assert.NotNil(t, list)
	require.NotNil(t, events.lastFilter.StartDate)
	require.NotNil(t, events.lastFilter.EndDate)
	assert.Equal(t, time.June, events.lastFilter.EndDate.Month())
	assert.Equal(t, "worship", events.lastFilter.EventType)

	_, err = svc.Timeline(context.Background(), dto.TimelineQuery{StartDate: "2025/01/01"})
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)

	_, err = svc.Timeline(context.Background(), dto.TimelineQuery{StartDate: "2025-06-01", EndDate: "2025-01-01"})
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}
