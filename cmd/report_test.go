package cmd

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/danielolaszy/relnotes/internal/config"
	"github.com/danielolaszy/relnotes/internal/enrich"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrintReportText(t *testing.T) {
	color.NoColor = true

	report := enrich.JobReport{
		JobID:          "job-1",
		Release:        "1.0",
		TotalAvailable: 4,
		ProcessedCount: 4,
		SucceededCount: 2,
		SkippedCount:   1,
		FailedCount:    1,
		Skipped:        []string{"ABC-3"},
		Warnings: []string{
			"Failed to process ABC-4: analysis of ABC-4 failed: boom",
			"Failed to publish page for ABC-2: conflict",
		},
		PagesCreated: []enrich.PageRef{{IssueKey: "ABC-1", URL: "https://wiki/1"}},
		PagesErrored: []enrich.PageError{{IssueKey: "ABC-2", Message: "conflict"}},
		Duration:     1500 * time.Millisecond,
	}

	var out bytes.Buffer
	require.NoError(t, printReport(&out, report, false))
	text := out.String()

	assert.Contains(t, text, "Enrichment report for 1.0")
	assert.Contains(t, text, "job job-1, 1.5s")
	assert.Contains(t, text, "Succeeded: 2")
	assert.Contains(t, text, "Skipped:   1")
	assert.Contains(t, text, "created ABC-1 https://wiki/1")
	assert.Contains(t, text, "error ABC-2 conflict")
	assert.Contains(t, text, "Failed to process ABC-4")
	assert.NotContains(t, text, "Job timed out")
}

func TestCheckConcerns(t *testing.T) {
	color.NoColor = true
	cfg := &config.Config{
		Jira: config.JiraConfig{URL: "https://example.atlassian.net", Username: "u", Token: "t"},
	}

	probed := 0
	list := []concern{
		{
			Name:     "jira",
			Validate: config.ValidateJiraConfig,
			Probe: func(ctx context.Context, cfg *config.Config) (string, error) {
				probed++
				_, ok := ctx.Deadline()
				assert.True(t, ok)
				return "authenticated as Release Bot", nil
			},
		},
		{Name: "confluence", Validate: config.ValidateConfluenceConfig},
		{
			Name:     "github",
			Validate: func(*config.Config) error { return nil },
			Probe: func(context.Context, *config.Config) (string, error) {
				return "", errors.New("bad credentials")
			},
		},
		{
			Name:     "ai",
			Validate: config.ValidateAIConfig,
			Probe: func(context.Context, *config.Config) (string, error) {
				t.Error("probe must not run for an invalid concern")
				return "", nil
			},
		},
	}

	statuses := checkConcerns(context.Background(), cfg, list, time.Second)
	require.Len(t, statuses, 4)
	assert.Equal(t, 1, probed)

	assert.True(t, statuses[0].Ready)
	assert.Equal(t, "authenticated as Release Bot", statuses[0].Detail)
	assert.False(t, statuses[1].Ready)
	assert.Contains(t, statuses[1].Detail, "CONFLUENCE_SPACE")
	assert.False(t, statuses[2].Ready)
	assert.Equal(t, "bad credentials", statuses[2].Detail)
	assert.False(t, statuses[3].Ready)

	var out bytes.Buffer
	printStatuses(&out, statuses)
	assert.Contains(t, out.String(), "jira        ready  authenticated as Release Bot")
	assert.Contains(t, out.String(), "github      not ready  bad credentials")
}
