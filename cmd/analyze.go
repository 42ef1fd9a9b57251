package cmd

import (
	"context"
	"fmt"

	"github.com/danielolaszy/relnotes/internal/enrich"
	"github.com/danielolaszy/relnotes/pkg/models"
	"github.com/spf13/cobra"
)

type issueGetter interface {
	GetIssue(ctx context.Context, key string) (models.Issue, error)
}

// singleIssue fetches one issue by key.
type singleIssue struct {
	client issueGetter
	key    string
}

func (s singleIssue) Fetch(ctx context.Context) ([]models.Issue, int, error) {
	issue, err := s.client.GetIssue(ctx, s.key)
	if err != nil {
		return nil, 0, err
	}
	return []models.Issue{issue}, 1, nil
}

// analyzeCmd runs the enrichment pipeline for one Jira issue.
var analyzeCmd = &cobra.Command{
	Use:   "analyze KEY",
	Short: "Analyze a single Jira issue",
	Long: `Analyze fetches one Jira issue, runs it through the same analysis as enrich and
prints the report. The page title uses the issue's first fix version.

Example:
  relnotes analyze ABC-123 --publish`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := enrichOptions{
			Source:      sourceJira,
			Concurrency: 1,
			BatchSize:   1,
			Timeout:     appConfig.Pipeline.JobTimeout,
		}
		f := cmd.Flags()
		opts.JSON, _ = f.GetBool("json")
		opts.Publish, _ = f.GetBool("publish")
		opts.Dump, _ = f.GetBool("dump")

		client, err := newJiraClient(appConfig)
		if err != nil {
			return fmt.Errorf("failed to initialize jira client: %w", err)
		}
		analyzer, err := newAnalyzer(appConfig)
		if err != nil {
			return err
		}
		publisher, err := newPublisher(appConfig, opts.Publish, client.BaseURL())
		if err != nil {
			return err
		}
		sinks, err := newSinks(cmd.Context(), appConfig, opts.Dump)
		if err != nil {
			return err
		}

		pipeline := &enrich.Pipeline{
			Analyzer:     analyzer,
			Publisher:    publisher,
			Sinks:        sinks,
			LimitPerCall: true,
		}
		return runEnrich(cmd.Context(), opts, singleIssue{client: client, key: args[0]}, pipeline, cmd.OutOrStdout())
	},
}

func init() {
	analyzeCmd.Flags().Bool("publish", false, "publish a Confluence page for the issue")
	analyzeCmd.Flags().Bool("dump", false, "write the enriched issue to the output directory")
	analyzeCmd.Flags().Bool("json", false, "print the report as JSON")
}
