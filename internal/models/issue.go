package models

import "time"

// IssueStatus mirrors the coarse lifecycle of an issue's latest extraction.
type IssueStatus string

const (
	IssueStatusPending    IssueStatus = "pending"
	IssueStatusProcessing IssueStatus = "processing"
	IssueStatusCompleted  IssueStatus = "completed"
	IssueStatusFailed     IssueStatus = "failed"
)

// Issue is one published monthly edition of the newspaper.
type Issue struct {
	ID            int64       `db:"id" json:"id"`
	Year          int         `db:"year" json:"year"`
	Month         int         `db:"month" json:"month"`
	BoardID       *int64      `db:"board_id" json:"board_id,omitempty"`
	URL           string      `db:"url" json:"url"`
	Title         *string     `db:"title" json:"title,omitempty"`
	PublishedDate *time.Time  `db:"published_date" json:"published_date,omitempty"`
	ImageCount    int         `db:"image_count" json:"image_count"`
	Status        IssueStatus `db:"status" json:"status"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// PageImageStatus tracks the download state of a scanned page.
type PageImageStatus string

const (
	PageImageStatusPending    PageImageStatus = "pending"
	PageImageStatusDownloaded PageImageStatus = "downloaded"
	PageImageStatusFailed     PageImageStatus = "failed"
)

// PageImage is one scanned page belonging to an issue.
type PageImage struct {
	ID         int64           `db:"id" json:"id"`
	IssueID    int64           `db:"issue_id" json:"issue_id"`
	ImageURL   string          `db:"image_url" json:"image_url"`
	LocalPath  *string         `db:"local_path" json:"local_path,omitempty"`
	PageNumber int             `db:"page_number" json:"page_number"`
	FileName   string          `db:"file_name" json:"file_name"`
	FileSize   int64           `db:"file_size" json:"file_size"`
	MimeType   string          `db:"mime_type" json:"mime_type"`
	Status     PageImageStatus `db:"status" json:"status"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}
