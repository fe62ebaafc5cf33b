package dto

import (
	"time"

	"github.com/noah-isme/church-news-api/internal/models"
)

// AdminDashboardResponse captures the aggregated admin dashboard payload.
type AdminDashboardResponse struct {
	Counts          models.DashboardCounts    `json:"counts"`
	TopArticleTypes []models.ArticleTypeCount `json:"top_article_types"`
	System          models.SystemMetrics      `json:"system"`
	GeneratedAt     time.Time                 `json:"generated_at"`
}
