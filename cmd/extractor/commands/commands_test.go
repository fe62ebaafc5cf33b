package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/church-news-api/internal/models"
)

func TestParseSeedFile(t *testing.T) {
	raw := []byte(`
issues:
  - year: 2024
    month: 12
    board_id: 26001
    title: "2024년 12월호"
  - year: 2025
    month: 1
    board_id: 26569
`)
	entries, err := parseSeedFile(raw)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 2024, entries[0].Year)
	assert.Equal(t, int64(26001), entries[0].BoardID)
	assert.Equal(t, "2024년 12월호", entries[0].Title)
	assert.Empty(t, entries[1].URL)
}

func TestParseSeedFileRejectsBadInput(t *testing.T) {
	_, err := parseSeedFile([]byte(""))
	assert.Error(t, err)

	_, err = parseSeedFile([]byte("issues: []\n"))
	assert.EqualError(t, err, "seed file lists no issues")

	_, err = parseSeedFile([]byte("issues:\n  - year: 2025\n    monthly: 1\n"))
	assert.Error(t, err)
}

func TestFormatProgress(t *testing.T) {
	msg := "all providers failed"
	line := formatProgress(&models.ExtractionProgress{
		Status:         models.JobStatusFailed,
		Progress:       40,
		ProcessedItems: 2,
		TotalItems:     5,
		ErrorMessage:   &msg,
	})
	assert.Contains(t, line, " 40% (2/5)")
	assert.Contains(t, line, "error: all providers failed")
}

func TestRootRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, want := range []string{"run", "reconcile", "seed", "providers"} {
		assert.True(t, names[want], want)
	}
}
