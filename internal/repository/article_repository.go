package repository

import (
	"context"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/church-news-api/internal/models"
)

const articleColumns = `a.id, a.issue_id, a.image_id, a.page_number, a.title, a.content_summary, a.full_content, a.article_type, a.author, a.metadata, a.created_at`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// ArticleRepository persists extracted articles.
type ArticleRepository struct {
	db *sqlx.DB
}

// NewArticleRepository constructs the repository.
func NewArticleRepository(db *sqlx.DB) *ArticleRepository {
	return &ArticleRepository{db: db}
}

// CreateWithEvents inserts the article and its events in one short transaction.
func (r *ArticleRepository) CreateWithEvents(ctx context.Context, article *models.Article, events []models.Event) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin article tx: %w", err)
	}

	const insertArticle = `INSERT INTO articles (issue_id, image_id, page_number, title, content_summary, full_content, article_type, author, metadata)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING id, created_at`
	row := tx.QueryRowxContext(ctx, insertArticle,
		article.IssueID, article.ImageID, article.PageNumber, article.Title, article.ContentSummary,
		article.FullContent, article.ArticleType, article.Author, article.Metadata)
	if err := row.Scan(&article.ID, &article.CreatedAt); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert article: %w", err)
	}

	const insertEvent = `INSERT INTO events (article_id, event_type, event_date, event_title, description, location, participants)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, created_at`
	for i := range events {
		ev := &events[i]
		ev.ArticleID = article.ID
		row := tx.QueryRowxContext(ctx, insertEvent, ev.ArticleID, ev.EventType, ev.EventDate, ev.EventTitle, ev.Description, ev.Location, ev.Participants)
		if err := row.Scan(&ev.ID, &ev.CreatedAt); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert event: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit article tx: %w", err)
	}
	return nil
}

// GetByID returns an article joined with its issue coordinates.
func (r *ArticleRepository) GetByID(ctx context.Context, id int64) (*models.ArticleWithIssue, error) {
	query := `SELECT ` + articleColumns + `, i.year, i.month, i.title AS issue_title
FROM articles a
JOIN newspaper_issues i ON i.id = a.issue_id
WHERE a.id = $1`
	var article models.ArticleWithIssue
	if err := r.db.GetContext(ctx, &article, query, id); err != nil {
		return nil, fmt.Errorf("get article: %w", err)
	}
	return &article, nil
}

// ListByIssue returns an issue's articles in page order.
func (r *ArticleRepository) ListByIssue(ctx context.Context, issueID int64) ([]models.Article, error) {
	query := `SELECT ` + articleColumns + ` FROM articles a WHERE a.issue_id = $1 ORDER BY a.page_number ASC, a.id ASC`
	var articles []models.Article
	if err := r.db.SelectContext(ctx, &articles, query, issueID); err != nil {
		return nil, fmt.Errorf("list articles by issue: %w", err)
	}
	return articles, nil
}

// Search filters articles and returns one page of results with the total match count.
func (r *ArticleRepository) Search(ctx context.Context, filter models.ArticleSearchFilter) ([]models.ArticleWithIssue, int, error) {
	conds := make([]sq.Sqlizer, 0, 4)
	if q := strings.TrimSpace(filter.Query); q != "" {
		pattern := "%" + q + "%"
		conds = append(conds, sq.Or{
			sq.ILike{"a.title": pattern},
			sq.ILike{"a.full_content": pattern},
			sq.ILike{"a.content_summary": pattern},
		})
	}
	if filter.Type != "" {
		conds = append(conds, sq.Eq{"a.article_type": filter.Type})
	}
	if filter.Year > 0 {
		conds = append(conds, sq.Eq{"i.year": filter.Year})
	}
	if filter.Month > 0 {
		conds = append(conds, sq.Eq{"i.month": filter.Month})
	}

	page := filter.Page
	if page <= 0 {
		page = 1
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	countBuilder := psql.Select("COUNT(*)").
		From("articles a").
		Join("newspaper_issues i ON i.id = a.issue_id")
	for _, c := range conds {
		countBuilder = countBuilder.Where(c)
	}
	countSQL, countArgs, err := countBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build article count: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, countSQL, countArgs...); err != nil {
		return nil, 0, fmt.Errorf("count articles: %w", err)
	}

	selectBuilder := psql.Select(articleColumns, "i.year", "i.month", "i.title AS issue_title").
		From("articles a").
		Join("newspaper_issues i ON i.id = a.issue_id")
	for _, c := range conds {
		selectBuilder = selectBuilder.Where(c)
	}
	selectBuilder = selectBuilder.
		OrderBy("i.year DESC", "i.month DESC", "a.page_number ASC", "a.id ASC").
		Limit(uint64(limit)).
		Offset(uint64((page - 1) * limit))

	query, args, err := selectBuilder.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build article search: %w", err)
	}
	var articles []models.ArticleWithIssue
	if err := r.db.SelectContext(ctx, &articles, query, args...); err != nil {
		return nil, 0, fmt.Errorf("search articles: %w", err)
	}
	return articles, total, nil
}

// TypeStats counts articles per category, most common first.
func (r *ArticleRepository) TypeStats(ctx context.Context) ([]models.ArticleTypeCount, error) {
	const query = `SELECT article_type, COUNT(*) AS count
FROM articles
WHERE article_type IS NOT NULL
GROUP BY article_type
ORDER BY count DESC, article_type ASC`
	var stats []models.ArticleTypeCount
	if err := r.db.SelectContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("article type stats: %w", err)
	}
	return stats, nil
}

// MonthlyStats counts articles and events per issue month, newest first.
func (r *ArticleRepository) MonthlyStats(ctx context.Context) ([]models.MonthlyCount, error) {
	const query = `SELECT i.year, i.month, COUNT(DISTINCT a.id) AS article_count, COUNT(DISTINCT e.id) AS event_count
FROM newspaper_issues i
LEFT JOIN articles a ON a.issue_id = i.id
LEFT JOIN events e ON e.article_id = a.id
GROUP BY i.year, i.month
ORDER BY i.year DESC, i.month DESC`
	var stats []models.MonthlyCount
	if err := r.db.SelectContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("article monthly stats: %w", err)
	}
	return stats, nil
}

// DeleteByIssue removes the issue's articles; their events cascade.
func (r *ArticleRepository) DeleteByIssue(ctx context.Context, issueID int64) (int64, error) {
	const query = `DELETE FROM articles WHERE issue_id = $1`
	result, err := r.db.ExecContext(ctx, query, issueID)
	if err != nil {
		return 0, fmt.Errorf("delete articles: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check deleted articles: %w", err)
	}
	return rows, nil
}
