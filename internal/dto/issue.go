package dto

import "github.com/noah-isme/church-news-api/internal/models"

// UpsertIssueRequest registers or updates one monthly issue.
type UpsertIssueRequest struct {
	Year          int     `json:"year" validate:"required,min=1900,max=2100"`
	Month         int     `json:"month" validate:"required,min=1,max=12"`
	BoardID       *int64  `json:"board_id" validate:"omitempty,gt=0"`
	URL           string  `json:"url" validate:"required,url"`
	Title         *string `json:"title"`
	PublishedDate string  `json:"published_date" validate:"omitempty,datetime=2006-01-02"`
}

// SeedIssue is one catalogue entry used when seeding issues.
type SeedIssue struct {
	Year    int    `json:"year" yaml:"year" validate:"required,min=1900,max=2100"`
	Month   int    `json:"month" yaml:"month" validate:"required,min=1,max=12"`
	BoardID int64  `json:"board_id" yaml:"board_id" validate:"required,gt=0"`
	URL     string `json:"url" yaml:"url" validate:"omitempty,url"`
	Title   string `json:"title" yaml:"title"`
}

// SeedIssuesResponse reports a seeding pass.
type SeedIssuesResponse struct {
	Reset  int64          `json:"reset"`
	Seeded int            `json:"seeded"`
	Issues []models.Issue `json:"issues"`
}

// ResetProcessingRequest optionally narrows the reset to one year.
type ResetProcessingRequest struct {
	Year int `json:"year" validate:"omitempty,min=1900,max=2100"`
}

// ResetProcessingResponse reports how many issues were reset.
type ResetProcessingResponse struct {
	Reset int64 `json:"reset"`
}
