package dto

import "github.com/noah-isme/church-news-api/internal/models"

// StartExtractionResponse acknowledges an accepted extraction.
type StartExtractionResponse struct {
	JobID   string           `json:"job_id"`
	IssueID int64            `json:"issue_id"`
	Status  models.JobStatus `json:"status"`
	Message string           `json:"message"`
}
