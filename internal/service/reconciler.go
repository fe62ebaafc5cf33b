package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/church-news-api/internal/models"
)

const defaultStaleAfter = 10 * time.Minute

type issueStatusSwapper interface {
	CompareAndSetStatus(ctx context.Context, id int64, from, to models.IssueStatus) (bool, error)
}

type latestJobFinder interface {
	LatestByIssues(ctx context.Context, issueIDs []int64) (map[int64]models.ExtractionJob, error)
}

type runLiveness interface {
	Alive(id string) bool
}

// Reconciler repairs issues left in processing by a run that no longer exists.
// It only runs on read paths and never fails them.
type Reconciler struct {
	issues     issueStatusSwapper
	jobs       latestJobFinder
	runs       runLiveness
	staleAfter time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewReconciler constructs a Reconciler. runs may be nil when no local registry exists.
func NewReconciler(issues issueStatusSwapper, jobs latestJobFinder, runs runLiveness, staleAfter time.Duration, logger *zap.Logger) *Reconciler {
	if staleAfter <= 0 {
		staleAfter = defaultStaleAfter
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{
		issues:     issues,
		jobs:       jobs,
		runs:       runs,
		staleAfter: staleAfter,
		logger:     logger,
		now:        time.Now,
	}
}

// Reconcile corrects processing issues in place and returns how many were changed.
func (r *Reconciler) Reconcile(ctx context.Context, issues []models.Issue) int {
	ids := make([]int64, 0, len(issues))
	for _, issue := range issues {
		if issue.Status == models.IssueStatusProcessing {
			ids = append(ids, issue.ID)
		}
	}
	if len(ids) == 0 {
		return 0
	}

	latest, err := r.jobs.LatestByIssues(ctx, ids)
	if err != nil {
		r.logger.Sugar().Warnw("reconcile: load latest jobs failed", "issues", len(ids), "error", err)
		return 0
	}

	now := r.now().UTC()
	changed := 0
	for i := range issues {
		issue := &issues[i]
		if issue.Status != models.IssueStatusProcessing {
			continue
		}
		var job *models.ExtractionJob
		if j, ok := latest[issue.ID]; ok {
			job = &j
		}
		alive := job != nil && r.runs != nil && r.runs.Alive(job.ID)
		next, ok := decideIssueStatus(*issue, job, now, r.staleAfter, alive)
		if !ok {
			continue
		}
		swapped, err := r.issues.CompareAndSetStatus(ctx, issue.ID, models.IssueStatusProcessing, next)
		if err != nil {
			r.logger.Sugar().Warnw("reconcile: status correction failed", "issue_id", issue.ID, "status", next, "error", err)
			continue
		}
		if !swapped {
			continue
		}
		r.logger.Sugar().Infow("reconciled issue status", "issue_id", issue.ID, "from", issue.Status, "to", next)
		issue.Status = next
		changed++
	}
	return changed
}

// ReconcileOne is Reconcile for a single issue.
func (r *Reconciler) ReconcileOne(ctx context.Context, issue *models.Issue) bool {
	if issue == nil {
		return false
	}
	list := []models.Issue{*issue}
	if r.Reconcile(ctx, list) == 0 {
		return false
	}
	issue.Status = list[0].Status
	return true
}

// decideIssueStatus returns the status a processing issue should hold and
// whether that differs from its current one.
func decideIssueStatus(issue models.Issue, job *models.ExtractionJob, now time.Time, staleAfter time.Duration, alive bool) (models.IssueStatus, bool) {
	if issue.Status != models.IssueStatusProcessing {
		return issue.Status, false
	}
	if job == nil {
		return models.IssueStatusPending, true
	}
	if job.Status.IsTerminal() {
		return job.Status.IssueStatus(), true
	}
	if alive {
		return issue.Status, false
	}
	if now.Sub(job.UpdatedAt) > staleAfter {
		return models.IssueStatusPending, true
	}
	return issue.Status, false
}
