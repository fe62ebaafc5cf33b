package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/church-news-api/internal/models"
)

// PageImageRepository persists scanned page rows.
type PageImageRepository struct {
	db *sqlx.DB
}

// NewPageImageRepository constructs the repository.
func NewPageImageRepository(db *sqlx.DB) *PageImageRepository {
	return &PageImageRepository{db: db}
}

// Create inserts a page image and fills its generated id.
func (r *PageImageRepository) Create(ctx context.Context, img *models.PageImage) error {
	if img.Status == "" {
		img.Status = models.PageImageStatusDownloaded
	}
	const query = `INSERT INTO newspaper_images (issue_id, image_url, local_path, page_number, file_name, file_size, mime_type, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, created_at`
	row := r.db.QueryRowxContext(ctx, query, img.IssueID, img.ImageURL, img.LocalPath, img.PageNumber, img.FileName, img.FileSize, img.MimeType, img.Status)
	if err := row.Scan(&img.ID, &img.CreatedAt); err != nil {
		return fmt.Errorf("create page image: %w", err)
	}
	return nil
}

// ListByIssue returns an issue's pages ordered by page number.
func (r *PageImageRepository) ListByIssue(ctx context.Context, issueID int64) ([]models.PageImage, error) {
	const query = `SELECT id, issue_id, image_url, local_path, page_number, file_name, file_size, mime_type, status, created_at
FROM newspaper_images WHERE issue_id = $1 ORDER BY page_number ASC, id ASC`
	var images []models.PageImage
	if err := r.db.SelectContext(ctx, &images, query, issueID); err != nil {
		return nil, fmt.Errorf("list page images: %w", err)
	}
	return images, nil
}

// DeleteByIssue removes every page row of the issue. Articles keep their rows with image_id set to NULL.
func (r *PageImageRepository) DeleteByIssue(ctx context.Context, issueID int64) (int64, error) {
	const query = `DELETE FROM newspaper_images WHERE issue_id = $1`
	result, err := r.db.ExecContext(ctx, query, issueID)
	if err != nil {
		return 0, fmt.Errorf("delete page images: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("check deleted page images: %w", err)
	}
	return rows, nil
}
