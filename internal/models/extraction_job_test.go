package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusTransitions(t *testing.T) {
	assert.True(t, JobStatusScraping.CanTransitionTo(JobStatusDownloading))
	assert.True(t, JobStatusDownloading.CanTransitionTo(JobStatusDownloading))
	assert.True(t, JobStatusProcessing.CanTransitionTo(JobStatusCompleted))
	assert.True(t, JobStatusScraping.CanTransitionTo(JobStatusFailed))

	assert.False(t, JobStatusProcessing.CanTransitionTo(JobStatusScraping))
	assert.False(t, JobStatusCompleted.CanTransitionTo(JobStatusFailed))
	assert.False(t, JobStatusFailed.CanTransitionTo(JobStatusScraping))
}

func TestJobStatusIssueMapping(t *testing.T) {
	assert.Equal(t, IssueStatusCompleted, JobStatusCompleted.IssueStatus())
	assert.Equal(t, IssueStatusFailed, JobStatusFailed.IssueStatus())
	assert.Equal(t, IssueStatusProcessing, JobStatusDownloading.IssueStatus())
	assert.True(t, JobStatusProcessing.IsActive())
	assert.False(t, JobStatusPending.IsActive())
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 0, ProgressPercent(0, 0))
	assert.Equal(t, 0, ProgressPercent(3, 0))
	assert.Equal(t, 33, ProgressPercent(1, 3))
	assert.Equal(t, 100, ProgressPercent(5, 5))
}

func TestArticleMetadataScan(t *testing.T) {
	var meta ArticleMetadata
	require.NoError(t, meta.Scan([]byte(`{"ocrConfidence":0.9,"language":"ko","ocrProvider":"gemini"}`)))
	assert.Equal(t, 0.9, meta.OCRConfidence)
	assert.Equal(t, "gemini", meta.OCRProvider)

	require.NoError(t, meta.Scan(nil))
	assert.Equal(t, ArticleMetadata{}, meta)
	require.Error(t, meta.Scan(42))
}
