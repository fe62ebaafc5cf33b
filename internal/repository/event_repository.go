package repository

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/church-news-api/internal/models"
)

const eventColumns = `e.id, e.article_id, e.event_type, e.event_date, e.event_title, e.description, e.location, e.participants, e.created_at`

// EventRepository reads article events.
type EventRepository struct {
	db *sqlx.DB
}

// NewEventRepository constructs the repository.
func NewEventRepository(db *sqlx.DB) *EventRepository {
	return &EventRepository{db: db}
}

// ListByArticle returns an article's events by date, undated events last.
func (r *EventRepository) ListByArticle(ctx context.Context, articleID int64) ([]models.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events e WHERE e.article_id = $1 ORDER BY e.event_date ASC NULLS LAST, e.id ASC`
	var events []models.Event
	if err := r.db.SelectContext(ctx, &events, query, articleID); err != nil {
		return nil, fmt.Errorf("list events by article: %w", err)
	}
	return events, nil
}

// Timeline returns events joined with their article and issue, newest first.
func (r *EventRepository) Timeline(ctx context.Context, filter models.TimelineFilter) ([]models.TimelineEvent, error) {
	builder := psql.Select(eventColumns, "a.title AS article_title", "i.year", "i.month").
		From("events e").
		LeftJoin("articles a ON a.id = e.article_id").
		LeftJoin("newspaper_issues i ON i.id = a.issue_id")

	if filter.StartDate != nil {
		builder = builder.Where(sq.GtOrEq{"e.event_date": *filter.StartDate})
	}
	if filter.EndDate != nil {
		builder = builder.Where(sq.LtOrEq{"e.event_date": *filter.EndDate})
	}
	if filter.EventType != "" {
		builder = builder.Where(sq.Eq{"e.event_type": filter.EventType})
	}
	builder = builder.OrderBy("e.event_date DESC NULLS LAST", "e.id DESC")

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build timeline query: %w", err)
	}
	var events []models.TimelineEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("timeline events: %w", err)
	}
	return events, nil
}

// TypeStats summarises events per type.
func (r *EventRepository) TypeStats(ctx context.Context) ([]models.EventTypeStat, error) {
	const query = `SELECT event_type, COUNT(*) AS count, MIN(event_date) AS first_event, MAX(event_date) AS last_event
FROM events
WHERE event_type IS NOT NULL
GROUP BY event_type
ORDER BY count DESC, event_type ASC`
	var stats []models.EventTypeStat
	if err := r.db.SelectContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("event type stats: %w", err)
	}
	return stats, nil
}
