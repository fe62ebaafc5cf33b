package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/church-news-api/internal/dto"
	"github.com/noah-isme/church-news-api/internal/models"
	"github.com/noah-isme/church-news-api/pkg/response"
)

type extractionService interface {
	StartExtraction(ctx context.Context, issueID int64) (*models.ExtractionJob, error)
	GetExtractionProgress(ctx context.Context, issueID int64) (*models.ExtractionProgress, error)
	CancelExtraction(ctx context.Context, issueID int64) error
}

// ExtractionHandler starts, polls and cancels extraction runs.
type ExtractionHandler struct {
	service extractionService
}

// NewExtractionHandler constructs the handler.
func NewExtractionHandler(service extractionService) *ExtractionHandler {
	return &ExtractionHandler{service: service}
}

// Start godoc
// @Summary Start extracting an issue
// @Description Returns as soon as the job is recorded; poll the progress endpoint for the outcome.
// @Tags Extraction
// @Produce json
// @Param id path int true "Issue ID"
// @Success 202 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /issues/{id}/extract [post]
func (h *ExtractionHandler) Start(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	job, err := h.service.StartExtraction(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, dto.StartExtractionResponse{
		JobID:   job.ID,
		IssueID: job.IssueID,
		Status:  job.Status,
		Message: "extraction started",
	})
}

// Progress godoc
// @Summary Extraction progress of an issue
// @Tags Extraction
// @Produce json
// @Param id path int true "Issue ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /issues/{id}/progress [get]
func (h *ExtractionHandler) Progress(c *gin.Context) {
	h.progress(c, "id")
}

// ProgressByIssue godoc
// @Summary Extraction progress of an issue
// @Tags Extraction
// @Produce json
// @Param issueId path int true "Issue ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /extraction/progress/{issueId} [get]
func (h *ExtractionHandler) ProgressByIssue(c *gin.Context) {
	h.progress(c, "issueId")
}

func (h *ExtractionHandler) progress(c *gin.Context, param string) {
	id, ok := pathID(c, param)
	if !ok {
		return
	}
	progress, err := h.service.GetExtractionProgress(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, progress, nil)
}

// Cancel godoc
// @Summary Cancel the running extraction of an issue
// @Tags Extraction
// @Produce json
// @Param id path int true "Issue ID"
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /issues/{id}/extraction/cancel [post]
func (h *ExtractionHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.service.CancelExtraction(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, gin.H{"issue_id": id, "message": "cancellation requested"})
}
