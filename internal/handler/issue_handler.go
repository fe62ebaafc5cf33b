package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/church-news-api/internal/dto"
	"github.com/noah-isme/church-news-api/internal/models"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
	"github.com/noah-isme/church-news-api/pkg/response"
)

type issueService interface {
	List(ctx context.Context, year int) ([]models.Issue, error)
	Get(ctx context.Context, id int64) (*models.Issue, error)
	Images(ctx context.Context, issueID int64) ([]models.PageImage, error)
	Upsert(ctx context.Context, req dto.UpsertIssueRequest) (*models.Issue, error)
}

// IssueHandler exposes the issue catalogue.
type IssueHandler struct {
	service issueService
}

// NewIssueHandler constructs the handler.
func NewIssueHandler(service issueService) *IssueHandler {
	return &IssueHandler{service: service}
}

// List godoc
// @Summary List newspaper issues
// @Tags Issues
// @Produce json
// @Param year query int false "Publication year"
// @Success 200 {object} response.Envelope
// @Router /issues [get]
func (h *IssueHandler) List(c *gin.Context) {
	year, ok := queryYear(c)
	if !ok {
		return
	}
	issues, err := h.service.List(c.Request.Context(), year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, issues, nil)
}

// Get godoc
// @Summary Get issue detail
// @Tags Issues
// @Produce json
// @Param id path int true "Issue ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /issues/{id} [get]
func (h *IssueHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	issue, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, issue, nil)
}

// Images godoc
// @Summary List the page images of an issue
// @Tags Issues
// @Produce json
// @Param id path int true "Issue ID"
// @Success 200 {object} response.Envelope
// @Router /issues/{id}/images [get]
func (h *IssueHandler) Images(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	images, err := h.service.Images(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, images, nil)
}

// Upsert godoc
// @Summary Register or update an issue
// @Description Scrapes the source page to record how many page images the issue has.
// @Tags Issues
// @Accept json
// @Produce json
// @Param payload body dto.UpsertIssueRequest true "Issue payload"
// @Success 201 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /issues [post]
func (h *IssueHandler) Upsert(c *gin.Context) {
	var req dto.UpsertIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	issue, err := h.service.Upsert(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, issue)
}
