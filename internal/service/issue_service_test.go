package service

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/church-news-api/internal/dto"
	"github.com/noah-isme/church-news-api/internal/models"
	"github.com/noah-isme/church-news-api/internal/scraper"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
)

func (s *memIssueStore) List(ctx context.Context, year int) ([]models.Issue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Issue, 0, len(s.issues))
	for _, issue := range s.issues {
		if year > 0 && issue.Year != year {
			continue
		}
		out = append(out, *issue)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].Month > out[j].Month
	})
	return out, nil
}

func (s *memIssueStore) findByPeriod(year, month int) *models.Issue {
	for _, issue := range s.issues {
		if issue.Year == year && issue.Month == month {
			return issue
		}
	}
	return nil
}

func (s *memIssueStore) Upsert(ctx context.Context, issue *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.findByPeriod(issue.Year, issue.Month); existing != nil {
		issue.ID = existing.ID
		issue.Status = existing.Status
		*existing = *issue
		return nil
	}
	issue.ID = int64(len(s.issues) + 1)
	issue.Status = models.IssueStatusPending
	cp := *issue
	s.issues[cp.ID] = &cp
	return nil
}

func (s *memIssueStore) Seed(ctx context.Context, issue *models.Issue) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing := s.findByPeriod(issue.Year, issue.Month); existing != nil {
		existing.BoardID = issue.BoardID
		existing.URL = issue.URL
		existing.Title = issue.Title
		if issue.ImageCount > 0 {
			existing.ImageCount = issue.ImageCount
		}
		if existing.Status != models.IssueStatusProcessing {
			existing.Status = models.IssueStatusPending
		}
		*issue = *existing
		return nil
	}
	issue.ID = int64(len(s.issues) + 1)
	issue.Status = models.IssueStatusPending
	cp := *issue
	s.issues[cp.ID] = &cp
	return nil
}

func (s *memIssueStore) ResetProcessing(ctx context.Context, year int) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, issue := range s.issues {
		if year > 0 && issue.Year != year {
			continue
		}
		if issue.Status == models.IssueStatusProcessing {
			issue.Status = models.IssueStatusPending
			n++
		}
	}
	return n, nil
}

type urlPageSource struct {
	mu     sync.Mutex
	counts map[string]int
	fail   map[string]bool
	calls  int
}

func (s *urlPageSource) DiscoverPages(ctx context.Context, sourceURL string) ([]scraper.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.fail[sourceURL] {
		return nil, appErrors.Clone(appErrors.ErrSourceUnreachable, "source returned 503")
	}
	return makePages(s.counts[sourceURL]), nil
}

type stubImageLister struct {
	images []models.PageImage
}

func (s *stubImageLister) ListByIssue(ctx context.Context, issueID int64) ([]models.PageImage, error) {
	return s.images, nil
}

func newIssueServiceForTest(store *memIssueStore, source pageSource) *IssueService {
	jobStore := newMemJobStore(store)
	reconciler := NewReconciler(store, jobStore, nil, 10*time.Minute, nil)
	return NewIssueService(store, &stubImageLister{}, source, reconciler, nil, nil, nil)
}

func TestIssueServiceListReconcilesOrphanedProcessing(t *testing.T) {
	store := newMemIssueStore(
		models.Issue{ID: 1, Year: 2025, Month: 1, Status: models.IssueStatusCompleted},
		models.Issue{ID: 2, Year: 2025, Month: 2, Status: models.IssueStatusProcessing},
		models.Issue{ID: 3, Year: 2024, Month: 12, Status: models.IssueStatusPending},
	)
	svc := newIssueServiceForTest(store, &stubPageSource{})

	issues, err := svc.List(context.Background(), 2025)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, 2, issues[0].Month)
	assert.Equal(t, models.IssueStatusPending, issues[0].Status)
	assert.Equal(t, models.IssueStatusPending, store.status(2))

	all, err := svc.List(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestIssueServiceGet(t *testing.T) {
	store := newMemIssueStore(models.Issue{ID: 7, Year: 2025, Month: 7, Status: models.IssueStatusProcessing})
	svc := newIssueServiceForTest(store, &stubPageSource{})

	issue, err := svc.Get(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, models.IssueStatusPending, issue.Status)

	_, err = svc.Get(context.Background(), 99)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrIssueNotFound))
	assert.Equal(t, 404, appErrors.FromError(err).Status)
}

func TestIssueServiceImagesNeverNil(t *testing.T) {
	svc := newIssueServiceForTest(newMemIssueStore(), &stubPageSource{})
	images, err := svc.Images(context.Background(), 1)
	require.NoError(t, err)
	assert.NotNil(t, images)
}

func TestIssueServiceUpsertScrapesPageCount(t *testing.T) {
	store := newMemIssueStore()
	svc := newIssueServiceForTest(store, &stubPageSource{pages: makePages(9)})

	issue, err := svc.Upsert(context.Background(), dto.UpsertIssueRequest{
		Year:          2025,
		Month:         4,
		URL:           "https://anyangjeil.org/Board/Detail/66/61334",
		PublishedDate: "2025-04-06",
	})
	require.NoError(t, err)
	assert.Equal(t, 9, issue.ImageCount)
	require.NotNil(t, issue.PublishedDate)
	assert.Equal(t, time.April, issue.PublishedDate.Month())
	assert.Equal(t, models.IssueStatusPending, store.status(issue.ID))
}

func TestIssueServiceUpsertValidation(t *testing.T) {
	svc := newIssueServiceForTest(newMemIssueStore(), &stubPageSource{})
	cases := []dto.UpsertIssueRequest{
		{Year: 2025, Month: 13, URL: "https://example.test/a"},
		{Year: 2025, Month: 1, URL: "not a url"},
		{Year: 2025, Month: 1, URL: "https://example.test/a", PublishedDate: "06/04/2025"},
	}
	for _, req := range cases {
		_, err := svc.Upsert(context.Background(), req)
		require.Error(t, err)
		assert.Equal(t, 400, appErrors.FromError(err).Status)
	}
}

func TestIssueServiceUpsertPropagatesScrapeFailure(t *testing.T) {
	store := newMemIssueStore()
	source := &stubPageSource{err: appErrors.Clone(appErrors.ErrSourceUnreachable, "timeout")}
	svc := newIssueServiceForTest(store, source)

	_, err := svc.Upsert(context.Background(), dto.UpsertIssueRequest{Year: 2025, Month: 5, URL: "https://example.test/x"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrSourceUnreachable))
	issues, _ := store.List(context.Background(), 0)
	assert.Empty(t, issues)
}

func TestIssueServiceSeedDefaultsAndTolerantScrape(t *testing.T) {
	store := newMemIssueStore(
		models.Issue{ID: 1, Year: 2025, Month: 1, URL: "old", ImageCount: 8, Status: models.IssueStatusProcessing},
	)
	catalogue := DefaultCatalogue()
	require.Len(t, catalogue, 12)
	source := &urlPageSource{
		counts: map[string]int{
			"https://anyangjeil.org/Board/Detail/66/59460": 8,
			"https://anyangjeil.org/Board/Detail/66/59924": 10,
		},
		fail: map[string]bool{"https://anyangjeil.org/Board/Detail/66/65505": true},
	}
	svc := newIssueServiceForTest(store, source)

	resp, err := svc.Seed(context.Background(), catalogue)
	require.NoError(t, err)
	assert.Equal(t, 12, resp.Seeded)
	assert.Equal(t, int64(1), resp.Reset)
	assert.Equal(t, 12, source.calls)

	byMonth := map[int]models.Issue{}
	for _, issue := range resp.Issues {
		byMonth[issue.Month] = issue
	}
	assert.Equal(t, "https://anyangjeil.org/Board/Detail/66/59460", byMonth[1].URL)
	assert.Equal(t, models.IssueStatusPending, byMonth[1].Status)
	assert.Equal(t, 10, byMonth[2].ImageCount)
	assert.Equal(t, 0, byMonth[12].ImageCount)
	require.NotNil(t, byMonth[3].Title)
	assert.Equal(t, "2025년 3월호", *byMonth[3].Title)
	require.NotNil(t, byMonth[12].BoardID)
	assert.Equal(t, int64(65505), *byMonth[12].BoardID)
}

func TestIssueServiceSeedKeepsLiveClaim(t *testing.T) {
	store := newMemIssueStore(models.Issue{ID: 1, Year: 2025, Month: 1, Status: models.IssueStatusProcessing})
	jobStore := newMemJobStore(store)
	live := &models.ExtractionJob{ID: "live", IssueID: 1, Status: models.JobStatusDownloading, UpdatedAt: time.Now().UTC()}
	jobStore.jobs["live"] = live
	jobStore.order = append(jobStore.order, "live")

	reconciler := NewReconciler(store, jobStore, aliveSet{"live": true}, 10*time.Minute, nil)
	svc := NewIssueService(store, &stubImageLister{}, &stubPageSource{pages: makePages(3)}, reconciler, nil, nil, nil)

	resp, err := svc.Seed(context.Background(), []dto.SeedIssue{{Year: 2025, Month: 1, BoardID: 59460}})
	require.NoError(t, err)
	assert.Equal(t, int64(0), resp.Reset)
	assert.Equal(t, models.IssueStatusProcessing, store.status(1))
}

func TestIssueServiceSeedRejectsInvalidEntry(t *testing.T) {
	svc := newIssueServiceForTest(newMemIssueStore(), &stubPageSource{})
	_, err := svc.Seed(context.Background(), []dto.SeedIssue{{Year: 2025, Month: 0, BoardID: 1}})
	require.Error(t, err)
	assert.Equal(t, 400, appErrors.FromError(err).Status)
}

func TestIssueServiceResetProcessing(t *testing.T) {
	store := newMemIssueStore(
		models.Issue{ID: 1, Year: 2025, Month: 1, Status: models.IssueStatusProcessing},
		models.Issue{ID: 2, Year: 2024, Month: 1, Status: models.IssueStatusProcessing},
		models.Issue{ID: 3, Year: 2025, Month: 2, Status: models.IssueStatusCompleted},
	)
	svc := newIssueServiceForTest(store, &stubPageSource{})

	n, err := svc.ResetProcessing(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, models.IssueStatusProcessing, store.status(2))

	n, err = svc.ResetProcessing(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
