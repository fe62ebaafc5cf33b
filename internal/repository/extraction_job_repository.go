package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/church-news-api/internal/models"
)

// ErrIssueBusy signals that the issue is already claimed by another extraction.
var ErrIssueBusy = errors.New("issue already processing")

const jobColumns = `id, issue_id, status, progress, total_items, processed_items, error_message, started_at, completed_at, created_at, updated_at`

// ExtractionJobRepository persists extraction job rows.
type ExtractionJobRepository struct {
	db *sqlx.DB
}

// NewExtractionJobRepository constructs the repository.
func NewExtractionJobRepository(db *sqlx.DB) *ExtractionJobRepository {
	return &ExtractionJobRepository{db: db}
}

// CreateForIssue claims the issue and inserts the job in one transaction.
// ErrIssueBusy is returned when the issue is already processing and sql.ErrNoRows when it
// no longer exists; nothing is written in either case.
func (r *ExtractionJobRepository) CreateForIssue(ctx context.Context, job *models.ExtractionJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.Status == "" {
		job.Status = models.JobStatusScraping
	}
	now := time.Now().UTC()
	if job.StartedAt == nil {
		job.StartedAt = &now
	}
	job.CreatedAt = now
	job.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin extraction job tx: %w", err)
	}
	const claim = `UPDATE newspaper_issues SET status = 'processing', updated_at = $1 WHERE id = $2 AND status <> 'processing'`
	result, err := tx.ExecContext(ctx, claim, now, job.IssueID)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("claim issue: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("check issue claim rows: %w", err)
	}
	if rows == 0 {
		var exists bool
		err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM newspaper_issues WHERE id = $1)`, job.IssueID)
		_ = tx.Rollback()
		if err != nil {
			return fmt.Errorf("check issue exists: %w", err)
		}
		if !exists {
			return fmt.Errorf("claim issue %d: %w", job.IssueID, sql.ErrNoRows)
		}
		return ErrIssueBusy
	}

	const insert = `INSERT INTO extraction_jobs (id, issue_id, status, progress, total_items, processed_items, error_message, started_at, completed_at, created_at, updated_at)
VALUES (:id, :issue_id, :status, :progress, :total_items, :processed_items, :error_message, :started_at, :completed_at, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insert, job); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("create extraction job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit extraction job tx: %w", err)
	}
	return nil
}

// GetByID returns a job row by its identifier.
func (r *ExtractionJobRepository) GetByID(ctx context.Context, id string) (*models.ExtractionJob, error) {
	query := `SELECT ` + jobColumns + ` FROM extraction_jobs WHERE id = $1`
	var job models.ExtractionJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, fmt.Errorf("get extraction job: %w", err)
	}
	return &job, nil
}

// UpdateJobParams defines the mutable fields of a job.
type UpdateJobParams struct {
	Status         *models.JobStatus
	Progress       *int
	TotalItems     *int
	ProcessedItems *int
	ErrorMessage   *string
}

// Update persists the provided changes. updated_at is always refreshed and
// completed_at is stamped when the status becomes terminal.
func (r *ExtractionJobRepository) Update(ctx context.Context, id string, params UpdateJobParams) error {
	set := make([]string, 0, 7)
	args := make([]interface{}, 0, 8)
	argPos := 1
	now := time.Now().UTC()

	if params.Status != nil {
		set = append(set, fmt.Sprintf("status = $%d", argPos))
		args = append(args, *params.Status)
		argPos++
	}
	if params.Progress != nil {
		set = append(set, fmt.Sprintf("progress = $%d", argPos))
		args = append(args, *params.Progress)
		argPos++
	}
	if params.TotalItems != nil {
		set = append(set, fmt.Sprintf("total_items = $%d", argPos))
		args = append(args, *params.TotalItems)
		argPos++
	}
	if params.ProcessedItems != nil {
		set = append(set, fmt.Sprintf("processed_items = $%d", argPos))
		args = append(args, *params.ProcessedItems)
		argPos++
	}
	if params.ErrorMessage != nil {
		set = append(set, fmt.Sprintf("error_message = $%d", argPos))
		args = append(args, *params.ErrorMessage)
		argPos++
	}
	if params.Status != nil && params.Status.IsTerminal() {
		set = append(set, fmt.Sprintf("completed_at = $%d", argPos))
		args = append(args, now)
		argPos++
	}

	if len(set) == 0 {
		return nil
	}
	set = append(set, fmt.Sprintf("updated_at = $%d", argPos))
	args = append(args, now)
	argPos++

	query := fmt.Sprintf("UPDATE extraction_jobs SET %s WHERE id = $%d", strings.Join(set, ", "), argPos)
	args = append(args, id)

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("update extraction job: %w", err)
	}
	return nil
}

// LatestByIssue returns the most recently created job for the issue.
func (r *ExtractionJobRepository) LatestByIssue(ctx context.Context, issueID int64) (*models.ExtractionJob, error) {
	query := `SELECT ` + jobColumns + ` FROM extraction_jobs WHERE issue_id = $1 ORDER BY created_at DESC LIMIT 1`
	var job models.ExtractionJob
	if err := r.db.GetContext(ctx, &job, query, issueID); err != nil {
		return nil, fmt.Errorf("latest extraction job: %w", err)
	}
	return &job, nil
}

// LatestByIssues returns the most recent job per issue for the given ids.
func (r *ExtractionJobRepository) LatestByIssues(ctx context.Context, issueIDs []int64) (map[int64]models.ExtractionJob, error) {
	result := make(map[int64]models.ExtractionJob, len(issueIDs))
	if len(issueIDs) == 0 {
		return result, nil
	}
	query := `SELECT DISTINCT ON (issue_id) ` + jobColumns + ` FROM extraction_jobs WHERE issue_id = ANY($1) ORDER BY issue_id, created_at DESC`
	var jobs []models.ExtractionJob
	if err := r.db.SelectContext(ctx, &jobs, query, pq.Array(issueIDs)); err != nil {
		return nil, fmt.Errorf("latest extraction jobs: %w", err)
	}
	for _, job := range jobs {
		result[job.IssueID] = job
	}
	return result, nil
}

// ListActive returns jobs still in a working state (used for cold start recovery).
func (r *ExtractionJobRepository) ListActive(ctx context.Context) ([]models.ExtractionJob, error) {
	query := `SELECT ` + jobColumns + ` FROM extraction_jobs WHERE status IN ('scraping', 'downloading', 'processing') ORDER BY created_at ASC`
	var jobs []models.ExtractionJob
	if err := r.db.SelectContext(ctx, &jobs, query); err != nil {
		return nil, fmt.Errorf("list active extraction jobs: %w", err)
	}
	return jobs, nil
}
