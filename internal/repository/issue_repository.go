package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/church-news-api/internal/models"
)

const issueColumns = `id, year, month, board_id, url, title, published_date, image_count, status, created_at, updated_at`

// IssueRepository persists newspaper issues.
type IssueRepository struct {
	db *sqlx.DB
}

// NewIssueRepository constructs the repository.
func NewIssueRepository(db *sqlx.DB) *IssueRepository {
	return &IssueRepository{db: db}
}

// List returns issues newest first. A zero year lists every issue.
func (r *IssueRepository) List(ctx context.Context, year int) ([]models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM newspaper_issues`
	args := []interface{}{}
	if year > 0 {
		query += ` WHERE year = $1`
		args = append(args, year)
	}
	query += ` ORDER BY year DESC, month DESC`
	var issues []models.Issue
	if err := r.db.SelectContext(ctx, &issues, query, args...); err != nil {
		return nil, fmt.Errorf("list issues: %w", err)
	}
	return issues, nil
}

// GetByID returns a single issue.
func (r *IssueRepository) GetByID(ctx context.Context, id int64) (*models.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM newspaper_issues WHERE id = $1`
	var issue models.Issue
	if err := r.db.GetContext(ctx, &issue, query, id); err != nil {
		return nil, fmt.Errorf("get issue: %w", err)
	}
	return &issue, nil
}

// Upsert inserts or updates an issue keyed by (year, month) without touching its status.
func (r *IssueRepository) Upsert(ctx context.Context, issue *models.Issue) error {
	query := `INSERT INTO newspaper_issues (year, month, board_id, url, title, published_date, image_count)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (year, month)
DO UPDATE SET board_id = EXCLUDED.board_id, url = EXCLUDED.url, title = EXCLUDED.title,
              published_date = EXCLUDED.published_date, image_count = EXCLUDED.image_count, updated_at = NOW()
RETURNING ` + issueColumns
	row := r.db.QueryRowxContext(ctx, query, issue.Year, issue.Month, issue.BoardID, issue.URL, issue.Title, issue.PublishedDate, issue.ImageCount)
	if err := row.StructScan(issue); err != nil {
		return fmt.Errorf("upsert issue: %w", err)
	}
	return nil
}

// Seed upserts a catalogue entry and returns it to pending unless a run currently owns it.
func (r *IssueRepository) Seed(ctx context.Context, issue *models.Issue) error {
	query := `INSERT INTO newspaper_issues (year, month, board_id, url, title, image_count, status)
VALUES ($1, $2, $3, $4, $5, $6, 'pending')
ON CONFLICT (year, month)
DO UPDATE SET board_id = EXCLUDED.board_id, url = EXCLUDED.url, title = EXCLUDED.title,
              image_count = CASE WHEN EXCLUDED.image_count > 0 THEN EXCLUDED.image_count ELSE newspaper_issues.image_count END,
              status = CASE WHEN newspaper_issues.status = 'processing' THEN newspaper_issues.status ELSE 'pending' END,
              updated_at = NOW()
RETURNING ` + issueColumns
	row := r.db.QueryRowxContext(ctx, query, issue.Year, issue.Month, issue.BoardID, issue.URL, issue.Title, issue.ImageCount)
	if err := row.StructScan(issue); err != nil {
		return fmt.Errorf("seed issue: %w", err)
	}
	return nil
}

// UpdateImageCount stores the number of pages discovered for an issue.
func (r *IssueRepository) UpdateImageCount(ctx context.Context, id int64, count int) error {
	const query = `UPDATE newspaper_issues SET image_count = $1, updated_at = NOW() WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, count, id); err != nil {
		return fmt.Errorf("update issue image count: %w", err)
	}
	return nil
}

// UpdateStatus unconditionally sets the issue status.
func (r *IssueRepository) UpdateStatus(ctx context.Context, id int64, status models.IssueStatus) error {
	const query = `UPDATE newspaper_issues SET status = $1, updated_at = NOW() WHERE id = $2`
	if _, err := r.db.ExecContext(ctx, query, status, id); err != nil {
		return fmt.Errorf("update issue status: %w", err)
	}
	return nil
}

// CompareAndSetStatus moves the issue from one status to another and reports whether a row changed.
func (r *IssueRepository) CompareAndSetStatus(ctx context.Context, id int64, from, to models.IssueStatus) (bool, error) {
	const query = `UPDATE newspaper_issues SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`
	result, err := r.db.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return false, fmt.Errorf("swap issue status: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("check issue status rows: %w", err)
	}
	return rows > 0, nil
}

// ResetProcessing returns every processing issue (optionally of one year) to pending.
func (r *IssueRepository) ResetProcessing(ctx context.Context, year int) (int64, error) {
	query := `UPDATE newspaper_issues SET status = 'pending', updated_at = $1 WHERE status = 'processing'`
	args := []interface{}{time.Now().UTC()}
	if year > 0 {
		query += ` AND year = $2`
		args = append(args, year)
	}
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("reset processing issues: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check reset rows: %w", err)
	}
	return rows, nil
}
