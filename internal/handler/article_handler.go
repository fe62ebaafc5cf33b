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

type articleService interface {
	Search(ctx context.Context, query dto.ArticleSearchQuery) ([]models.ArticleWithIssue, *models.Pagination, error)
	Get(ctx context.Context, id int64) (*dto.ArticleDetailResponse, error)
	ListByIssue(ctx context.Context, issueID int64) ([]models.Article, error)
	TypeStats(ctx context.Context) ([]models.ArticleTypeCount, bool, error)
	MonthlyStats(ctx context.Context) ([]models.MonthlyCount, bool, error)
}

// ArticleHandler serves extracted articles.
type ArticleHandler struct {
	service articleService
}

// NewArticleHandler constructs the handler.
func NewArticleHandler(service articleService) *ArticleHandler {
	return &ArticleHandler{service: service}
}

// Search godoc
// @Summary Search articles
// @Tags Articles
// @Produce json
// @Param q query string false "Text matched against title, content and summary"
// @Param type query string false "Article type"
// @Param year query int false "Issue year"
// @Param month query int false "Issue month"
// @Param page query int false "Page number"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /articles/search [get]
func (h *ArticleHandler) Search(c *gin.Context) {
	var query dto.ArticleSearchQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	articles, pagination, err := h.service.Search(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, articles, pagination)
}

// Get godoc
// @Summary Get article with its events
// @Tags Articles
// @Produce json
// @Param id path int true "Article ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /articles/{id} [get]
func (h *ArticleHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	article, err := h.service.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, article, nil)
}

// ListByIssue godoc
// @Summary List the articles of an issue
// @Tags Articles
// @Produce json
// @Param issueId path int true "Issue ID"
// @Success 200 {object} response.Envelope
// @Router /articles/issue/{issueId} [get]
func (h *ArticleHandler) ListByIssue(c *gin.Context) {
	id, ok := pathID(c, "issueId")
	if !ok {
		return
	}
	articles, err := h.service.ListByIssue(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, articles, nil)
}

// TypeStats godoc
// @Summary Article counts per type
// @Tags Articles
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /articles/stats/types [get]
func (h *ArticleHandler) TypeStats(c *gin.Context) {
	stats, hit, err := h.service.TypeStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWithCacheMeta(c, http.StatusOK, stats, hit)
}

// MonthlyStats godoc
// @Summary Article and event counts per issue month
// @Tags Articles
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /articles/stats/monthly [get]
func (h *ArticleHandler) MonthlyStats(c *gin.Context) {
	stats, hit, err := h.service.MonthlyStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWithCacheMeta(c, http.StatusOK, stats, hit)
}
