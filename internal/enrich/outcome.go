package enrich

import (
	"fmt"
	"time"

	"github.com/danielolaszy/relnotes/internal/analysis"
	"github.com/danielolaszy/relnotes/internal/publish"
)

// Status is the processing result of one issue.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped-insufficient-content"
)

// Outcome is the result of processing one issue.
type Outcome struct {
	IssueKey string
	Status   Status
	// Enriched is set whenever analysis succeeded, including skips.
	Enriched *analysis.Enriched
	Publish  publish.Result
	Err      error
}

// Action returns the publish action, ActionNone when nothing was published.
func (o Outcome) Action() publish.Action {
	if o.Publish.Action == "" {
		return publish.ActionNone
	}
	return o.Publish.Action
}

func failed(key string, err error) Outcome {
	return Outcome{IssueKey: key, Status: StatusFailed, Err: err}
}

// PageRef identifies a published page.
type PageRef struct {
	IssueKey string `json:"issue_key"`
	PageID   string `json:"page_id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
}

// PageError records a failed publish.
type PageError struct {
	IssueKey string `json:"issue_key"`
	Title    string `json:"title,omitempty"`
	Message  string `json:"message"`
}

// JobReport summarises a pipeline run.
type JobReport struct {
	JobID          string        `json:"job_id,omitempty"`
	Release        string        `json:"release,omitempty"`
	TotalAvailable int           `json:"total_available"`
	ProcessedCount int           `json:"processed_count"`
	SucceededCount int           `json:"succeeded_count"`
	SkippedCount   int           `json:"skipped_count"`
	FailedCount    int           `json:"failed_count"`
	Warnings       []string      `json:"warnings"`
	Skipped        []string      `json:"skipped"`
	PagesCreated   []PageRef     `json:"pages_created"`
	PagesUpdated   []PageRef     `json:"pages_updated"`
	PagesErrored   []PageError   `json:"pages_errored"`
	Duration       time.Duration `json:"duration_ns"`
	TimedOut       bool          `json:"timed_out"`
}

// Fold reduces outcomes into a report. It never fails; no outcomes yield an
// all-zero report.
func Fold(outcomes []Outcome) JobReport {
	r := JobReport{
		Warnings:     []string{},
		Skipped:      []string{},
		PagesCreated: []PageRef{},
		PagesUpdated: []PageRef{},
		PagesErrored: []PageError{},
	}

	for _, o := range outcomes {
		r.ProcessedCount++

		switch o.Status {
		case StatusSucceeded:
			r.SucceededCount++
		case StatusSkipped:
			r.SkippedCount++
			r.Skipped = append(r.Skipped, o.IssueKey)
		default:
			r.FailedCount++
			r.Warnings = append(r.Warnings, fmt.Sprintf("Failed to process %s: %s", o.IssueKey, reason(o.Err)))
		}

		p := o.Publish
		ref := PageRef{IssueKey: o.IssueKey, PageID: p.PageID, Title: p.Title, URL: p.URL}
		switch p.Action {
		case publish.ActionCreated:
			r.PagesCreated = append(r.PagesCreated, ref)
		case publish.ActionUpdated:
			r.PagesUpdated = append(r.PagesUpdated, ref)
		case publish.ActionError:
			msg := reason(p.Err)
			r.PagesErrored = append(r.PagesErrored, PageError{IssueKey: o.IssueKey, Title: p.Title, Message: msg})
			r.Warnings = append(r.Warnings, fmt.Sprintf("Failed to publish page for %s: %s", o.IssueKey, msg))
		}
	}
	return r
}

func reason(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
