package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/church-news-api/internal/models"
)

// DashboardRepository exposes archive-wide aggregates.
type DashboardRepository struct {
	db *sqlx.DB
}

// NewDashboardRepository constructs the repository.
func NewDashboardRepository(db *sqlx.DB) *DashboardRepository {
	return &DashboardRepository{db: db}
}

// CountIssues returns the number of catalogued issues.
func (r *DashboardRepository) CountIssues(ctx context.Context) (int64, error) {
	return r.count(ctx, "newspaper_issues")
}

// CountArticles returns the number of extracted articles.
func (r *DashboardRepository) CountArticles(ctx context.Context) (int64, error) {
	return r.count(ctx, "articles")
}

// CountEvents returns the number of extracted events.
func (r *DashboardRepository) CountEvents(ctx context.Context) (int64, error) {
	return r.count(ctx, "events")
}

func (r *DashboardRepository) count(ctx context.Context, table string) (int64, error) {
	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM `+table); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return total, nil
}

// TopArticleTypes returns the most frequent article categories.
func (r *DashboardRepository) TopArticleTypes(ctx context.Context, limit int) ([]models.ArticleTypeCount, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT article_type, COUNT(*) AS count
FROM articles
WHERE article_type IS NOT NULL
GROUP BY article_type
ORDER BY count DESC, article_type ASC
LIMIT $1`
	var stats []models.ArticleTypeCount
	if err := r.db.SelectContext(ctx, &stats, query, limit); err != nil {
		return nil, fmt.Errorf("top article types: %w", err)
	}
	return stats, nil
}
