// Package enrich runs issues through analysis, the sufficiency gate and
// publishing in paced, concurrency-bounded batches.
package enrich

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/danielolaszy/relnotes/internal/analysis"
	"github.com/danielolaszy/relnotes/internal/logging"
	"github.com/danielolaszy/relnotes/pkg/models"
)

// AnalyzeFunc produces the analysis for one issue. Unless the scheduler runs
// per call, the whole call holds a limiter slot.
type AnalyzeFunc func(ctx context.Context, issue models.Issue) (analysis.Result, error)

// FinishFunc turns a successful analysis into an outcome. It runs after the
// limiter slot has been released.
type FinishFunc func(ctx context.Context, issue models.Issue, result analysis.Result) Outcome

// Scheduler runs issues in consecutive batches.
type Scheduler struct {
	Limiter   *Limiter
	BatchSize int
	// Delay is the pause between batches. There is no pause after the last.
	Delay time.Duration
	// Sleep defaults to a context-aware timer.
	Sleep func(ctx context.Context, d time.Duration) error
	// PerCall hands the limiter to the analyzer as an analysis.CallGuard.
	// A slot is then held for each AI call and released during retry
	// backoff. Only set it for analyzers that run their calls through
	// analysis.GuardCall.
	PerCall bool
}

// Run processes every issue and returns exactly one outcome per issue. A
// failing issue never stops the others. When ctx ends, issues that were not
// started are reported as failed and ctx's error is returned alongside the
// outcomes.
func (s *Scheduler) Run(ctx context.Context, issues []models.Issue, analyze AnalyzeFunc, finish FinishFunc) ([]Outcome, error) {
	limiter := s.Limiter
	if limiter == nil {
		limiter = NewLimiter(1)
	}
	size := s.BatchSize
	if size < 1 {
		size = max(len(issues), 1)
	}
	sleep := s.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	outcomes := make([]Outcome, 0, len(issues))
	batches := (len(issues) + size - 1) / size

	for b := 0; b < batches; b++ {
		start := b * size
		end := min(start+size, len(issues))

		if err := ctx.Err(); err != nil {
			return abandon(outcomes, issues[start:], err), err
		}

		logging.Debug("starting batch", "batch", b+1, "batches", batches, "size", end-start)
		outcomes = append(outcomes, s.runBatch(ctx, limiter, issues[start:end], analyze, finish)...)

		if end < len(issues) && s.Delay > 0 {
			if err := sleep(ctx, s.Delay); err != nil {
				return abandon(outcomes, issues[end:], err), err
			}
		}
	}

	return outcomes, ctx.Err()
}

func (s *Scheduler) runBatch(ctx context.Context, limiter *Limiter, batch []models.Issue, analyze AnalyzeFunc, finish FinishFunc) []Outcome {
	results := make([]Outcome, len(batch))
	var wg sync.WaitGroup
	for i, issue := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = s.process(ctx, limiter, issue, analyze, finish)
		}()
	}
	wg.Wait()
	return results
}

func (s *Scheduler) process(ctx context.Context, limiter *Limiter, issue models.Issue, analyze AnalyzeFunc, finish FinishFunc) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			out = failed(issue.Key, fmt.Errorf("panic: %v", r))
		}
	}()

	var (
		result analysis.Result
		err    error
	)
	if s.PerCall {
		result, err = analyze(analysis.WithCallGuard(ctx, limiter.Do), issue)
	} else {
		err = limiter.Do(ctx, func(ctx context.Context) error {
			var err error
			result, err = analyze(ctx, issue)
			return err
		})
	}
	if err != nil {
		logging.Warn("issue processing failed", "issue_key", issue.Key, "error", err)
		return failed(issue.Key, err)
	}

	out = finish(ctx, issue, result)
	if out.IssueKey == "" {
		out.IssueKey = issue.Key
	}
	return out
}

func abandon(outcomes []Outcome, remaining []models.Issue, err error) []Outcome {
	for _, issue := range remaining {
		outcomes = append(outcomes, failed(issue.Key, fmt.Errorf("not started: %w", err)))
	}
	return outcomes
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
