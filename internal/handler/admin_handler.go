package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/church-news-api/internal/dto"
	appErrors "github.com/noah-isme/church-news-api/pkg/errors"
	"github.com/noah-isme/church-news-api/pkg/response"
)

type issueAdminService interface {
	Seed(ctx context.Context, entries []dto.SeedIssue) (*dto.SeedIssuesResponse, error)
	ResetProcessing(ctx context.Context, year int) (int64, error)
}

// AdminHandler exposes catalogue maintenance operations.
type AdminHandler struct {
	service   issueAdminService
	catalogue func() []dto.SeedIssue
}

// NewAdminHandler constructs the handler. catalogue supplies the built-in issue list.
func NewAdminHandler(service issueAdminService, catalogue func() []dto.SeedIssue) *AdminHandler {
	return &AdminHandler{service: service, catalogue: catalogue}
}

// SeedIssues godoc
// @Summary Seed the built-in issue catalogue
// @Description Upserts every catalogue issue and scrapes its page count. Failed scrapes record zero pages.
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/issues/seed [post]
func (h *AdminHandler) SeedIssues(c *gin.Context) {
	if h.catalogue == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrServiceUnavailable, "no issue catalogue configured"))
		return
	}
	result, err := h.service.Seed(c.Request.Context(), h.catalogue())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ResetProcessing godoc
// @Summary Reset processing issues to pending
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body dto.ResetProcessingRequest false "Optional year filter"
// @Success 200 {object} response.Envelope
// @Router /admin/reset-processing [post]
func (h *AdminHandler) ResetProcessing(c *gin.Context) {
	var req dto.ResetProcessingRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payload"))
		return
	}
	if req.Year != 0 && (req.Year < 1900 || req.Year > 2100) {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year must be a four digit year"))
		return
	}
	count, err := h.service.ResetProcessing(c.Request.Context(), req.Year)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, dto.ResetProcessingResponse{Reset: count}, nil)
}
