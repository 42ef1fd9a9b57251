// Package cmd provides the command-line interface for the relnotes CLI tool.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/danielolaszy/relnotes/internal/config"
	"github.com/danielolaszy/relnotes/internal/enrich"
	"github.com/danielolaszy/relnotes/internal/github"
	"github.com/danielolaszy/relnotes/internal/jira"
	"github.com/danielolaszy/relnotes/internal/logging"
	"github.com/danielolaszy/relnotes/pkg/models"
	"github.com/spf13/cobra"
)

var errJobTimedOut = errors.New("job timed out before all issues were processed")

const (
	sourceJira   = "jira"
	sourceGitHub = "github"
)

// enrichOptions holds the resolved flags of the enrich command.
type enrichOptions struct {
	Source     string
	Project    string
	FixVersion string
	IssueType  string
	JQL        string
	Repository string
	Labels     []string
	Milestone  string
	Publish    bool
	Dump       bool
	JSON       bool

	Concurrency int
	BatchSize   int
	BatchDelay  time.Duration
	Timeout     time.Duration
	MaxResults  int
}

// release is the label pages and dumps are grouped under.
func (o enrichOptions) release() string {
	if o.FixVersion != "" {
		return o.FixVersion
	}
	return o.Milestone
}

func (o enrichOptions) validate() error {
	switch o.Source {
	case sourceJira:
		if o.JQL != "" {
			return nil
		}
		return jira.ValidateQuery(o.Project, o.FixVersion, models.IssueType(o.IssueType))
	case sourceGitHub:
		if o.Repository == "" {
			return fmt.Errorf("repository flag is required for the github source")
		}
		if o.IssueType != "" {
			if _, ok := models.ParseIssueType(o.IssueType); !ok {
				return fmt.Errorf("unsupported issue type %q", o.IssueType)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown source %q, expected %s or %s", o.Source, sourceJira, sourceGitHub)
	}
}

// job turns the fetched issues into a batch job.
func (o enrichOptions) job(issues []models.Issue, total int) enrich.BatchJob {
	job := enrich.NewBatchJob(issues)
	job.ConcurrencyLimit = o.Concurrency
	job.BatchSize = o.BatchSize
	job.InterBatchDelay = o.BatchDelay
	job.PublishEnabled = o.Publish
	job.Release = o.release()
	job.Project = o.Project
	job.IssueType = o.IssueType
	job.TotalAvailable = total
	if job.Project == "" {
		job.Project = o.Repository
	}
	return job
}

// issueSource fetches the issues of a release and the tracker's total.
type issueSource interface {
	Fetch(ctx context.Context) ([]models.Issue, int, error)
}

type jiraSearcher interface {
	SearchIssues(ctx context.Context, jql string, maxResults int) ([]models.Issue, int, error)
}

type jiraSource struct {
	client     jiraSearcher
	jql        string
	maxResults int
}

func (s jiraSource) Fetch(ctx context.Context) ([]models.Issue, int, error) {
	issues, total, err := s.client.SearchIssues(ctx, s.jql, s.maxResults)
	if err != nil {
		return nil, 0, err
	}
	for i := range issues {
		if issues[i].Type.Is(models.TypeEpic) {
			s.attachChildren(ctx, &issues[i])
		}
	}
	return issues, total, nil
}

// attachChildren lists the epic's children in its metadata so that the
// analysis can reference them.
func (s jiraSource) attachChildren(ctx context.Context, epic *models.Issue) {
	children, _, err := s.client.SearchIssues(ctx, fmt.Sprintf("parent = %s", epic.Key), s.maxResults)
	if err != nil {
		logging.Warn("failed to fetch epic children", "issue_key", epic.Key, "error", err)
		return
	}
	if len(children) == 0 {
		return
	}
	lines := make([]string, 0, len(children))
	for _, c := range children {
		lines = append(lines, c.Key+": "+c.Title)
	}
	if epic.Metadata == nil {
		epic.Metadata = map[string]string{}
	}
	epic.Metadata["child_issues"] = strings.Join(lines, "\n")
}

type githubLister interface {
	ListIssues(ctx context.Context, q github.Query) ([]models.Issue, int, error)
}

type githubSource struct {
	client    githubLister
	query     github.Query
	issueType string
}

func (s githubSource) Fetch(ctx context.Context) ([]models.Issue, int, error) {
	issues, total, err := s.client.ListIssues(ctx, s.query)
	if err != nil || s.issueType == "" {
		return issues, total, err
	}
	want, _ := models.ParseIssueType(s.issueType)
	var kept []models.Issue
	for _, issue := range issues {
		if issue.Type.Is(want) {
			kept = append(kept, issue)
		}
	}
	return kept, len(kept), nil
}

// jobRunner runs a batch job to completion.
type jobRunner interface {
	Run(ctx context.Context, job enrich.BatchJob) enrich.JobReport
}

// runEnrich fetches, enriches and reports. It returns errJobTimedOut when
// the job deadline passed before every issue settled.
func runEnrich(ctx context.Context, opts enrichOptions, src issueSource, runner jobRunner, out io.Writer) error {
	issues, total, err := src.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch issues: %w", err)
	}
	if len(issues) == 0 {
		logging.Warn("no issues matched the query", "source", opts.Source, "release", opts.release())
	}

	jobCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	report := runner.Run(jobCtx, opts.job(issues, total))
	if err := printReport(out, report, opts.JSON); err != nil {
		return err
	}
	if report.TimedOut {
		return errJobTimedOut
	}
	return nil
}

// enrichCmd fetches the issues of a release and writes their summaries.
var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Enrich the issues of a release with AI summaries",
	Long: `Enrich fetches the issues of one release, analyses each one with the configured
AI service and prints a report.

Issues are selected from Jira with a JQL query built from --project, --fix-version
and --type, or with an explicit --jql. With --source github, issues are listed from
--repository and can be narrowed with --label and --milestone.

Bugs are summarised with cause and fix, epics with categories and child issues, and
every other type with a generic analysis. Issues whose analysis lacks a usable
summary are reported as skipped.

With --publish, one Confluence page per issue is created or updated in
CONFLUENCE_SPACE. With --dump, the enriched issues are written to OUTPUT_FILE_PATH
(and OUTPUT_S3_BUCKET when set).

Example:
  relnotes enrich --project ABC --fix-version 1.4.0 --type Bug --publish
  relnotes enrich --source github --repository acme/app --milestone v1.4 --dump`,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := enrichFlags(cmd, appConfig)
		if err != nil {
			return err
		}
		if err := opts.validate(); err != nil {
			return err
		}

		ctx := cmd.Context()
		src, trackerURL, err := newSource(appConfig, opts)
		if err != nil {
			return err
		}
		analyzer, err := newAnalyzer(appConfig)
		if err != nil {
			return err
		}
		publisher, err := newPublisher(appConfig, opts.Publish, trackerURL)
		if err != nil {
			return err
		}
		sinks, err := newSinks(ctx, appConfig, opts.Dump)
		if err != nil {
			return err
		}

		logging.Info("starting enrichment",
			"source", opts.Source,
			"release", opts.release(),
			"type", opts.IssueType,
			"publish", opts.Publish,
			"dump", opts.Dump)

		pipeline := &enrich.Pipeline{
			Analyzer:     analyzer,
			Publisher:    publisher,
			Sinks:        sinks,
			LimitPerCall: true,
		}
		return runEnrich(ctx, opts, src, pipeline, cmd.OutOrStdout())
	},
}

// newSource returns the configured issue source and the tracker base URL.
func newSource(cfg *config.Config, opts enrichOptions) (issueSource, string, error) {
	if opts.Source == sourceGitHub {
		if err := config.ValidateGitHubConfig(cfg); err != nil {
			return nil, "", err
		}
		client, err := github.NewClient(cfg.GitHub)
		if err != nil {
			return nil, "", fmt.Errorf("failed to initialize github client: %w", err)
		}
		return githubSource{
			client: client,
			query: github.Query{
				Repository: opts.Repository,
				Labels:     opts.Labels,
				Milestone:  opts.Milestone,
				MaxResults: opts.MaxResults,
			},
			issueType: opts.IssueType,
		}, "", nil
	}

	jql := opts.JQL
	if jql == "" {
		var err error
		if jql, err = jira.BuildJQL(opts.Project, opts.FixVersion, models.IssueType(opts.IssueType)); err != nil {
			return nil, "", err
		}
	}
	client, err := newJiraClient(cfg)
	if err != nil {
		return nil, "", fmt.Errorf("failed to initialize jira client: %w", err)
	}
	return jiraSource{client: client, jql: jql, maxResults: opts.MaxResults}, client.BaseURL(), nil
}

// enrichFlags reads the command flags, falling back to cfg for values the
// user did not set.
func enrichFlags(cmd *cobra.Command, cfg *config.Config) (enrichOptions, error) {
	f := cmd.Flags()
	var opts enrichOptions
	var err error
	get := func(name string, dst *string) {
		if err == nil {
			*dst, err = f.GetString(name)
		}
	}
	get("source", &opts.Source)
	get("project", &opts.Project)
	get("fix-version", &opts.FixVersion)
	get("type", &opts.IssueType)
	get("jql", &opts.JQL)
	get("repository", &opts.Repository)
	get("milestone", &opts.Milestone)
	if err != nil {
		return opts, err
	}
	if opts.Labels, err = f.GetStringArray("label"); err != nil {
		return opts, err
	}
	if opts.JSON, err = f.GetBool("json"); err != nil {
		return opts, err
	}

	opts.Publish = cfg.Output.CreateConfluencePages
	if f.Changed("publish") {
		opts.Publish, _ = f.GetBool("publish")
	}
	opts.Dump = cfg.Output.CreateLocalFiles
	if f.Changed("dump") {
		opts.Dump, _ = f.GetBool("dump")
	}

	opts.Concurrency = cfg.Pipeline.MaxConcurrentCalls
	if f.Changed("concurrency") {
		opts.Concurrency, _ = f.GetInt("concurrency")
	}
	opts.BatchSize = cfg.Pipeline.BatchSize
	if f.Changed("batch-size") {
		opts.BatchSize, _ = f.GetInt("batch-size")
	}
	opts.BatchDelay = cfg.Pipeline.BatchDelay
	if f.Changed("batch-delay") {
		opts.BatchDelay, _ = f.GetDuration("batch-delay")
	}
	opts.Timeout = cfg.Pipeline.JobTimeout
	if f.Changed("timeout") {
		opts.Timeout, _ = f.GetDuration("timeout")
	}
	opts.MaxResults = cfg.Jira.MaxResults
	if f.Changed("max-results") {
		opts.MaxResults, _ = f.GetInt("max-results")
	}

	if opts.Concurrency < 1 || opts.BatchSize < 1 {
		return opts, fmt.Errorf("concurrency and batch size must be at least 1")
	}
	return opts, nil
}

func init() {
	f := enrichCmd.Flags()
	f.String("source", sourceJira, "issue source (jira or github)")
	f.StringP("project", "p", "", "Jira project key (e.g., 'ABC')")
	f.StringP("fix-version", "v", "", "release fix version")
	f.StringP("type", "t", "", "issue type (Bug, Epic, Story, Task, Issue)")
	f.String("jql", "", "explicit JQL query, overrides --project, --fix-version and --type")
	f.StringP("repository", "r", "", "GitHub repository name (e.g., 'owner/repo')")
	f.StringArrayP("label", "l", []string{}, "GitHub label filter (can be specified multiple times)")
	f.String("milestone", "", "GitHub milestone title or number")
	f.Bool("publish", false, "publish one Confluence page per issue (default from CREATE_CONFLUENCE_PAGES)")
	f.Bool("dump", false, "write enriched issues to the output directory (default from CREATE_LOCAL_FILES)")
	f.Int("concurrency", 0, "maximum concurrent AI calls (default from MAX_CONCURRENT_AI_CALLS)")
	f.Int("batch-size", 0, "issues per batch (default from AI_BATCH_SIZE)")
	f.Duration("batch-delay", 0, "pause between batches (default from AI_BATCH_DELAY)")
	f.Duration("timeout", 0, "job deadline (default from JOB_TIMEOUT)")
	f.Int("max-results", 0, "maximum issues to fetch (default from MAX_RESULTS)")
	f.Bool("json", false, "print the report as JSON")
}
