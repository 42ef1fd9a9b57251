package enrich

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/danielolaszy/relnotes/internal/analysis"
	"github.com/danielolaszy/relnotes/internal/logging"
	"github.com/danielolaszy/relnotes/internal/publish"
	"github.com/danielolaszy/relnotes/internal/storage"
	"github.com/danielolaszy/relnotes/pkg/models"
)

// Analyzer produces an analysis for an issue.
type Analyzer interface {
	Analyze(ctx context.Context, issue models.Issue) (analysis.Result, error)
}

// Renderer renders the page body for an enriched issue.
type Renderer interface {
	Render(e analysis.Enriched, release string) (string, error)
}

// Publisher upserts pages for enriched issues.
type Publisher struct {
	Store    publish.Store
	Renderer Renderer
	Space    string
	ParentID string
}

// Publish renders e and upserts it.
func (p *Publisher) Publish(ctx context.Context, e analysis.Enriched, release string) publish.Result {
	if release == "" {
		release = e.Issue.FixVersion()
	}
	title := publish.Title(release, e.Issue.Key, e.Issue.Title)

	body, err := p.Renderer.Render(e, release)
	if err != nil {
		return publish.Result{Action: publish.ActionError, Title: title, Err: err}
	}
	return publish.Upsert(ctx, p.Store, p.Space, title, body, p.ParentID)
}

// BatchJob is one pipeline invocation.
type BatchJob struct {
	ID               string
	Issues           []models.Issue
	ConcurrencyLimit int
	BatchSize        int
	InterBatchDelay  time.Duration
	PublishEnabled   bool
	// Release labels published pages and dumps.
	Release string
	Project string
	// IssueType names dump files.
	IssueType string
	// TotalAvailable is the tracker's count of matching issues.
	TotalAvailable int
}

// NewBatchJob returns a job with a fresh ID.
func NewBatchJob(issues []models.Issue) BatchJob {
	return BatchJob{
		ID:               uuid.NewString(),
		Issues:           issues,
		ConcurrencyLimit: 5,
		BatchSize:        10,
		InterBatchDelay:  500 * time.Millisecond,
		TotalAvailable:   len(issues),
	}
}

// Pipeline enriches issues and optionally publishes them.
type Pipeline struct {
	Analyzer Analyzer
	// Publisher may be nil when no document store is configured.
	Publisher *Publisher
	Sinks     []storage.Sink
	// Gate defaults to Sufficient.
	Gate func(analysis.Enriched) bool
	// Sleep is passed to the scheduler.
	Sleep func(ctx context.Context, d time.Duration) error
	// LimitPerCall makes the scheduler hold a limiter slot per AI call
	// rather than per analysis. See Scheduler.PerCall.
	LimitPerCall bool
}

// Run processes the job and always returns a report. When ctx ends before
// every issue settled the report is marked as timed out.
func (p *Pipeline) Run(ctx context.Context, job BatchJob) JobReport {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	log := logging.With("job_id", job.ID, "release", job.Release)
	started := time.Now()

	publishing := job.PublishEnabled && p.Publisher != nil
	if job.PublishEnabled && p.Publisher == nil {
		log.Warn("publishing requested but no document store is configured")
	}

	log.Info("starting enrichment job",
		"issues", len(job.Issues),
		"concurrency", job.ConcurrencyLimit,
		"batch_size", job.BatchSize,
		"batch_delay", job.InterBatchDelay,
		"publish", publishing)

	limiter := NewLimiter(job.ConcurrencyLimit)
	sched := &Scheduler{
		Limiter:   limiter,
		BatchSize: job.BatchSize,
		Delay:     job.InterBatchDelay,
		Sleep:     p.Sleep,
		PerCall:   p.LimitPerCall,
	}

	outcomes, err := sched.Run(ctx, job.Issues, p.Analyzer.Analyze, p.finish(job, publishing))

	report := Fold(outcomes)
	report.JobID = job.ID
	report.Release = job.Release
	report.TotalAvailable = max(job.TotalAvailable, len(job.Issues))
	report.TimedOut = errors.Is(err, context.DeadlineExceeded)
	if err != nil && !report.TimedOut {
		report.Warnings = append(report.Warnings, "Job interrupted: "+err.Error())
	}
	if report.TimedOut {
		report.Warnings = append(report.Warnings, "Job timed out before all issues were processed")
	}

	p.save(context.WithoutCancel(ctx), job, outcomes)

	report.Duration = time.Since(started)
	log.Info("enrichment job finished",
		"processed", report.ProcessedCount,
		"succeeded", report.SucceededCount,
		"skipped", report.SkippedCount,
		"failed", report.FailedCount,
		"pages_created", len(report.PagesCreated),
		"pages_updated", len(report.PagesUpdated),
		"pages_errored", len(report.PagesErrored),
		"peak_concurrency", limiter.Peak(),
		"timed_out", report.TimedOut,
		"duration", report.Duration)
	return report
}

func (p *Pipeline) finish(job BatchJob, publishing bool) FinishFunc {
	gate := p.Gate
	if gate == nil {
		gate = Sufficient
	}
	return func(ctx context.Context, issue models.Issue, result analysis.Result) Outcome {
		if result == nil {
			return failed(issue.Key, errors.New("analysis returned no result"))
		}
		e := analysis.Enrich(issue, result)
		out := Outcome{IssueKey: issue.Key, Enriched: &e}

		if !gate(e) {
			logging.Info("analysis not substantial enough to publish", "issue_key", issue.Key, "kind", result.Kind().String())
			out.Status = StatusSkipped
			return out
		}

		// A publish failure keeps the analysis; it is reported as a page
		// error and a warning, not as a failed outcome.
		out.Status = StatusSucceeded
		if publishing {
			out.Publish = p.Publisher.Publish(ctx, e, job.Release)
		}
		return out
	}
}

// save writes the enriched issues to every sink. Failures are logged only.
func (p *Pipeline) save(ctx context.Context, job BatchJob, outcomes []Outcome) {
	if len(p.Sinks) == 0 {
		return
	}

	dump := storage.Dump{
		JobID:     job.ID,
		Project:   job.Project,
		Release:   job.Release,
		IssueType: job.IssueType,
		Created:   time.Now(),
	}
	for _, o := range outcomes {
		if o.Enriched != nil {
			dump.Issues = append(dump.Issues, *o.Enriched)
		}
	}
	if len(dump.Issues) == 0 {
		logging.Warn("no enriched issues to save", "job_id", job.ID)
		return
	}

	for _, sink := range p.Sinks {
		if _, err := sink.Save(ctx, dump); err != nil {
			logging.Warn("failed to save enriched issues", "job_id", job.ID, "error", err)
		}
	}
}
