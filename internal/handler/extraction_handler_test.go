package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/church-news-api/internal/models"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
)

type fakeExtractionSrv struct {
	startErr    error
	progress    map[int64]models.ExtractionProgress
	cancelErr   error
	cancelledID int64
}

func (f *fakeExtractionSrv) StartExtraction(_ context.Context, issueID int64) (*models.ExtractionJob, error) {
	if f.startErr != nil {
		return nil, f.startErr
	}
	return &models.ExtractionJob{ID: "job-1", IssueID: issueID, Status: models.JobStatusScraping}, nil
}

func (f *fakeExtractionSrv) GetExtractionProgress(_ context.Context, issueID int64) (*models.ExtractionProgress, error) {
	p, ok := f.progress[issueID]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no extraction job for issue")
	}
	return &p, nil
}

func (f *fakeExtractionSrv) CancelExtraction(_ context.Context, issueID int64) error {
	f.cancelledID = issueID
	return f.cancelErr
}

func extractionRouter(srv extractionService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewExtractionHandler(srv)
	r := gin.New()
	r.POST("/issues/:id/extract", h.Start)
	r.GET("/issues/:id/progress", h.Progress)
	r.POST("/issues/:id/extraction/cancel", h.Cancel)
	r.GET("/extraction/progress/:issueId", h.ProgressByIssue)
	return r
}

func TestExtractionHandlerStartAccepted(t *testing.T) {
	rec := httptest.NewRecorder()
	extractionRouter(&fakeExtractionSrv{}).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/issues/3/extract", nil))

	assert.Equal(t, http.StatusAccepted, rec.Code)
	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, "job-1", envelope.Data["job_id"])
	assert.Equal(t, float64(3), envelope.Data["issue_id"])
	assert.Equal(t, "scraping", envelope.Data["status"])
}

func TestExtractionHandlerStartConflict(t *testing.T) {
	srv := &fakeExtractionSrv{startErr: appErrors.Clone(appErrors.ErrExtractionInProgress, "issue 3 is already being extracted")}
	rec := httptest.NewRecorder()
	extractionRouter(srv).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/issues/3/extract", nil))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Contains(t, rec.Body.String(), "EXTRACTION_IN_PROGRESS")
}

func TestExtractionHandlerProgressRoutes(t *testing.T) {
	srv := &fakeExtractionSrv{progress: map[int64]models.ExtractionProgress{
		3: {JobID: "job-1", IssueID: 3, Status: models.JobStatusDownloading, Progress: 40, TotalItems: 10, ProcessedItems: 4, Running: true},
	}}
	router := extractionRouter(srv)

	for _, path := range []string{"/issues/3/progress", "/extraction/progress/3"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
		var envelope responseEnvelope
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
		assert.Equal(t, float64(40), envelope.Data["progress"])
		assert.Equal(t, true, envelope.Data["running"])
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/extraction/progress/9", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExtractionHandlerCancel(t *testing.T) {
	srv := &fakeExtractionSrv{}
	rec := httptest.NewRecorder()
	extractionRouter(srv).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/issues/5/extraction/cancel", nil))
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, int64(5), srv.cancelledID)

	srv.cancelErr = appErrors.Clone(appErrors.ErrConflict, "no running extraction for issue")
	rec = httptest.NewRecorder()
	extractionRouter(srv).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/issues/5/extraction/cancel", nil))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
