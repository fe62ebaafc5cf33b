package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/church-news-api/internal/models"
)

func newIssueRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "postgres")
	cleanup := func() {
		_ = sqlxDB.Close()
		db.Close()
	}
	return sqlxDB, mock, cleanup
}

func issueRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "year", "month", "board_id", "url", "title", "published_date", "image_count", "status", "created_at", "updated_at"})
}

func TestIssueRepositoryListFiltersByYear(t *testing.T) {
	db, mock, cleanup := newIssueRepoMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)
	now := time.Now()

	rows := issueRows().
		AddRow(2, 2025, 4, int64(61334), "https://anyangjeil.org/Board/Detail/66/61334", "2025년 4월호", nil, 12, "processing", now, now).
		AddRow(1, 2025, 3, nil, "https://anyangjeil.org/Board/Detail/66/60828", nil, nil, 0, "pending", now, now)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM newspaper_issues WHERE year = $1 ORDER BY year DESC, month DESC`)).
		WithArgs(2025).
		WillReturnRows(rows)

	issues, err := repo.List(context.Background(), 2025)
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, models.IssueStatusProcessing, issues[0].Status)
	require.NotNil(t, issues[0].BoardID)
	assert.Equal(t, int64(61334), *issues[0].BoardID)
	assert.Nil(t, issues[1].Title)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newIssueRepoMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM newspaper_issues WHERE id = $1`)).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)

	issue, err := repo.GetByID(context.Background(), 99)
	require.Error(t, err)
	assert.Nil(t, issue)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
}

func TestIssueRepositoryUpsertReturnsRow(t *testing.T) {
	db, mock, cleanup := newIssueRepoMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)
	now := time.Now()
	title := "2025년 3월호"

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO newspaper_issues (year, month, board_id, url, title, published_date, image_count)`)).
		WithArgs(2025, 3, sqlmock.AnyArg(), "https://example.org/3", sqlmock.AnyArg(), sqlmock.AnyArg(), 8).
		WillReturnRows(issueRows().AddRow(7, 2025, 3, nil, "https://example.org/3", title, nil, 8, "completed", now, now))

	issue := &models.Issue{Year: 2025, Month: 3, URL: "https://example.org/3", Title: &title, ImageCount: 8}
	require.NoError(t, repo.Upsert(context.Background(), issue))
	assert.Equal(t, int64(7), issue.ID)
	assert.Equal(t, models.IssueStatusCompleted, issue.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositorySeedKeepsProcessing(t *testing.T) {
	db, mock, cleanup := newIssueRepoMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(`status = CASE WHEN newspaper_issues.status = 'processing' THEN newspaper_issues.status ELSE 'pending' END`)).
		WithArgs(2025, 1, sqlmock.AnyArg(), "https://example.org/1", sqlmock.AnyArg(), 0).
		WillReturnRows(issueRows().AddRow(1, 2025, 1, int64(59460), "https://example.org/1", nil, nil, 4, "pending", now, now))

	issue := &models.Issue{Year: 2025, Month: 1, URL: "https://example.org/1"}
	require.NoError(t, repo.Seed(context.Background(), issue))
	assert.Equal(t, 4, issue.ImageCount)
	assert.Equal(t, models.IssueStatusPending, issue.Status)
}

func TestIssueRepositoryCompareAndSetStatus(t *testing.T) {
	db, mock, cleanup := newIssueRepoMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	query := regexp.QuoteMeta(`UPDATE newspaper_issues SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3`)
	mock.ExpectExec(query).
		WithArgs("completed", int64(3), "processing").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(query).
		WithArgs("pending", int64(3), "processing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	changed, err := repo.CompareAndSetStatus(context.Background(), 3, models.IssueStatusProcessing, models.IssueStatusCompleted)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = repo.CompareAndSetStatus(context.Background(), 3, models.IssueStatusProcessing, models.IssueStatusPending)
	require.NoError(t, err)
	assert.False(t, changed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIssueRepositoryResetProcessing(t *testing.T) {
	db, mock, cleanup := newIssueRepoMock(t)
	defer cleanup()
	repo := NewIssueRepository(db)

	mock.ExpectExec(regexp.QuoteMeta(`UPDATE newspaper_issues SET status = 'pending', updated_at = $1 WHERE status = 'processing' AND year = $2`)).
		WithArgs(sqlmock.AnyArg(), 2025).
		WillReturnResult(sqlmock.NewResult(0, 3))

	count, err := repo.ResetProcessing(context.Background(), 2025)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}
