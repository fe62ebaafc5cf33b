package dto

import "github.com/noah-isme/church-news-api/internal/models"

// ArticleSearchQuery carries article search parameters from the query string.
type ArticleSearchQuery struct {
	Q     string `form:"q"`
	Type  string `form:"type"`
	Year  int    `form:"year" validate:"omitempty,min=1900,max=2100"`
	Month int    `form:"month" validate:"omitempty,min=1,max=12"`
	Page  int    `form:"page" validate:"omitempty,min=1"`
	Limit int    `form:"limit" validate:"omitempty,min=1,max=100"`
}

// ArticleDetailResponse is an article with its events.
type ArticleDetailResponse struct {
	models.ArticleWithIssue
	Events []models.Event `json:"events"`
}

// TimelineQuery filters the event timeline. Dates use YYYY-MM-DD.
type TimelineQuery struct {
	StartDate string `form:"start_date" validate:"omitempty,datetime=2006-01-02"`
	EndDate   string `form:"end_date" validate:"omitempty,datetime=2006-01-02"`
	EventType string `form:"event_type"`
}
