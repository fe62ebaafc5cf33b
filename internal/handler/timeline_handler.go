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

type timelineService interface {
	Timeline(ctx context.Context, query dto.TimelineQuery) ([]models.TimelineEvent, error)
	EventStats(ctx context.Context) ([]models.EventTypeStat, bool, error)
}

// TimelineHandler serves dated events.
type TimelineHandler struct {
	service timelineService
}

// NewTimelineHandler constructs the handler.
func NewTimelineHandler(service timelineService) *TimelineHandler {
	return &TimelineHandler{service: service}
}

// Timeline godoc
// @Summary Event timeline
// @Tags Timeline
// @Produce json
// @Param start_date query string false "Start date (YYYY-MM-DD)"
// @Param end_date query string false "End date (YYYY-MM-DD)"
// @Param event_type query string false "Event type"
// @Success 200 {object} response.Envelope
// @Router /timeline [get]
func (h *TimelineHandler) Timeline(c *gin.Context) {
	var query dto.TimelineQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	events, err := h.service.Timeline(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, events, nil)
}

// EventStats godoc
// @Summary Event counts per type
// @Tags Timeline
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /events/stats [get]
func (h *TimelineHandler) EventStats(c *gin.Context) {
	stats, hit, err := h.service.EventStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	respondWithCacheMeta(c, http.StatusOK, stats, hit)
}
