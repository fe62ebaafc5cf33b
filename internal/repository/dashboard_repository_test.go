package repository

import (
	"context"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardRepositoryCounts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewDashboardRepository(sqlx.NewDb(db, "postgres"))

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM newspaper_issues`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM articles`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(140))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM events`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(37))

	ctx := context.Background()
	issues, err := repo.CountIssues(ctx)
	require.NoError(t, err)
	articles, err := repo.CountArticles(ctx)
	require.NoError(t, err)
	events, err := repo.CountEvents(ctx)
	require.NoError(t, err)

	assert.Equal(t, int64(12), issues)
	assert.Equal(t, int64(140), articles)
	assert.Equal(t, int64(37), events)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDashboardRepositoryTopArticleTypesDefaultsLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewDashboardRepository(sqlx.NewDb(db, "postgres"))

	mock.ExpectQuery(regexp.QuoteMeta(`GROUP BY article_type`)).
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"article_type", "count"}).
			AddRow("sermon", 12).
			AddRow("news", 9))

	stats, err := repo.TopArticleTypes(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, "sermon", stats[0].ArticleType)
	require.NoError(t, mock.ExpectationsWereMet())
}
