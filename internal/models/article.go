package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Article is one AI-derived article extracted from a single page image.
type Article struct {
	ID             int64           `db:"id" json:"id"`
	IssueID        int64           `db:"issue_id" json:"issue_id"`
	ImageID        *int64          `db:"image_id" json:"image_id,omitempty"`
	PageNumber     int             `db:"page_number" json:"page_number"`
	Title          *string         `db:"title" json:"title,omitempty"`
	ContentSummary *string         `db:"content_summary" json:"content_summary,omitempty"`
	FullContent    *string         `db:"full_content" json:"full_content,omitempty"`
	ArticleType    *string         `db:"article_type" json:"article_type,omitempty"`
	Author         *string         `db:"author" json:"author,omitempty"`
	Metadata       ArticleMetadata `db:"metadata" json:"metadata"`
	CreatedAt      time.Time       `db:"created_at" json:"created_at"`
}

// ArticleWithIssue decorates an article with its issue coordinates.
type ArticleWithIssue struct {
	Article
	Year       int     `db:"year" json:"year"`
	Month      int     `db:"month" json:"month"`
	IssueTitle *string `db:"issue_title" json:"issue_title,omitempty"`
}

// ArticleMetadata stores extraction provenance persisted as JSONB.
type ArticleMetadata struct {
	OCRConfidence float64 `json:"ocrConfidence"`
	Language      string  `json:"language"`
	OCRProvider   string  `json:"ocrProvider,omitempty"`
	TextProvider  string  `json:"structuringProvider,omitempty"`
	JobID         string  `json:"jobId,omitempty"`
}

// Value marshals metadata to JSON for persistence.
func (m ArticleMetadata) Value() (driver.Value, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal article metadata: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the metadata struct.
func (m *ArticleMetadata) Scan(value interface{}) error {
	if value == nil {
		*m = ArticleMetadata{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for ArticleMetadata", value)
	}
	if len(data) == 0 {
		*m = ArticleMetadata{}
		return nil
	}
	if err := json.Unmarshal(data, m); err != nil {
		return fmt.Errorf("unmarshal article metadata: %w", err)
	}
	return nil
}

// Event is a dated occurrence mentioned within an article.
type Event struct {
	ID           int64          `db:"id" json:"id"`
	ArticleID    int64          `db:"article_id" json:"article_id"`
	EventType    *string        `db:"event_type" json:"event_type,omitempty"`
	EventDate    *time.Time     `db:"event_date" json:"event_date,omitempty"`
	EventTitle   *string        `db:"event_title" json:"event_title,omitempty"`
	Description  *string        `db:"description" json:"description,omitempty"`
	Location     *string        `db:"location" json:"location,omitempty"`
	Participants pq.StringArray `db:"participants" json:"participants,omitempty"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// TimelineEvent is an event joined with its article and issue.
type TimelineEvent struct {
	Event
	ArticleTitle *string `db:"article_title" json:"article_title,omitempty"`
	Year         *int    `db:"year" json:"year,omitempty"`
	Month        *int    `db:"month" json:"month,omitempty"`
}

// ArticleSearchFilter narrows article search results.
type ArticleSearchFilter struct {
	Query string
	Type  string
	Year  int
	Month int
	Page  int
	Limit int
}

// TimelineFilter narrows timeline events.
type TimelineFilter struct {
	StartDate *time.Time
	EndDate   *time.Time
	EventType string
}

// ArticleTypeCount aggregates articles per category.
type ArticleTypeCount struct {
	ArticleType string `db:"article_type" json:"article_type"`
	Count       int64  `db:"count" json:"count"`
}

// MonthlyCount aggregates article and event volume per issue month.
type MonthlyCount struct {
	Year         int   `db:"year" json:"year"`
	Month        int   `db:"month" json:"month"`
	ArticleCount int64 `db:"article_count" json:"article_count"`
	EventCount   int64 `db:"event_count" json:"event_count"`
}

// EventTypeStat aggregates events per type.
type EventTypeStat struct {
	EventType  string     `db:"event_type" json:"event_type"`
	Count      int64      `db:"count" json:"count"`
	FirstEvent *time.Time `db:"first_event" json:"first_event,omitempty"`
	LastEvent  *time.Time `db:"last_event" json:"last_event,omitempty"`
}

// DashboardCounts summarises archive volume.
type DashboardCounts struct {
	Issues   int64 `db:"issues" json:"issues"`
	Articles int64 `db:"articles" json:"articles"`
	Events   int64 `db:"events" json:"events"`
}
