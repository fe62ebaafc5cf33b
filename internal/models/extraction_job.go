package models

import "time"

// JobStatus captures extraction job lifecycle states.
type JobStatus string

const (
	JobStatusPending     JobStatus = "pending"
	JobStatusScraping    JobStatus = "scraping"
	JobStatusDownloading JobStatus = "downloading"
	JobStatusProcessing  JobStatus = "processing"
	JobStatusCompleted   JobStatus = "completed"
	JobStatusFailed      JobStatus = "failed"
)

var jobStatusRank = map[JobStatus]int{
	JobStatusPending:     0,
	JobStatusScraping:    1,
	JobStatusDownloading: 2,
	JobStatusProcessing:  3,
	JobStatusCompleted:   4,
	JobStatusFailed:      4,
}

// IsActive reports whether a run is expected to be working on the job.
func (s JobStatus) IsActive() bool {
	return s == JobStatusScraping || s == JobStatusDownloading || s == JobStatusProcessing
}

// IsTerminal reports whether the job can no longer change.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// CanTransitionTo enforces forward-only transitions; failed is reachable from any non-terminal state.
func (s JobStatus) CanTransitionTo(next JobStatus) bool {
	if s.IsTerminal() {
		return false
	}
	if next == JobStatusFailed {
		return true
	}
	from, okFrom := jobStatusRank[s]
	to, okTo := jobStatusRank[next]
	return okFrom && okTo && to >= from
}

// IssueStatus maps the job outcome onto the coarser issue lifecycle.
func (s JobStatus) IssueStatus() IssueStatus {
	switch s {
	case JobStatusCompleted:
		return IssueStatusCompleted
	case JobStatusFailed:
		return IssueStatusFailed
	case JobStatusPending:
		return IssueStatusPending
	default:
		return IssueStatusProcessing
	}
}

// ExtractionJob is one attempt to extract an issue.
type ExtractionJob struct {
	ID             string     `db:"id" json:"id"`
	IssueID        int64      `db:"issue_id" json:"issue_id"`
	Status         JobStatus  `db:"status" json:"status"`
	Progress       int        `db:"progress" json:"progress"`
	TotalItems     int        `db:"total_items" json:"total_items"`
	ProcessedItems int        `db:"processed_items" json:"processed_items"`
	ErrorMessage   *string    `db:"error_message" json:"error_message,omitempty"`
	StartedAt      *time.Time `db:"started_at" json:"started_at,omitempty"`
	CompletedAt    *time.Time `db:"completed_at" json:"completed_at,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// ProgressPercent converts counters into the 0-100 value stored on the job.
func ProgressPercent(processed, total int) int {
	if total <= 0 || processed <= 0 {
		return 0
	}
	if processed >= total {
		return 100
	}
	return processed * 100 / total
}

// ExtractionProgress is the polling view of the current job of an issue.
type ExtractionProgress struct {
	JobID          string     `json:"job_id"`
	IssueID        int64      `json:"issue_id"`
	Status         JobStatus  `json:"status"`
	Progress       int        `json:"progress"`
	TotalItems     int        `json:"total_items"`
	ProcessedItems int        `json:"processed_items"`
	ErrorMessage   *string    `json:"error_message,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	UpdatedAt      time.Time  `json:"updated_at"`
	Running        bool       `json:"running"`
}

// ProgressView projects the job onto its polling view.
func (j ExtractionJob) ProgressView() ExtractionProgress {
	return ExtractionProgress{
		JobID:          j.ID,
		IssueID:        j.IssueID,
		Status:         j.Status,
		Progress:       j.Progress,
		TotalItems:     j.TotalItems,
		ProcessedItems: j.ProcessedItems,
		ErrorMessage:   j.ErrorMessage,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}
