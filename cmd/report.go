package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/danielolaszy/relnotes/internal/enrich"
	"github.com/fatih/color"
)

// printReport writes the job report as colored text or as indented JSON.
func printReport(out io.Writer, r enrich.JobReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	title := "Enrichment report"
	if r.Release != "" {
		title += " for " + r.Release
	}
	fmt.Fprintln(out, cyan(title))
	fmt.Fprintln(out, gray(fmt.Sprintf("job %s, %s", r.JobID, r.Duration.Round(time.Millisecond))))
	fmt.Fprintln(out)

	fmt.Fprintf(out, "  Available: %d\n", r.TotalAvailable)
	fmt.Fprintf(out, "  Processed: %d\n", r.ProcessedCount)
	fmt.Fprintf(out, "  Succeeded: %s\n", green(r.SucceededCount))
	fmt.Fprintf(out, "  Skipped:   %s\n", yellow(r.SkippedCount))
	fmt.Fprintf(out, "  Failed:    %s\n", red(r.FailedCount))

	if len(r.PagesCreated)+len(r.PagesUpdated)+len(r.PagesErrored) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, cyan("Pages"))
		for _, p := range r.PagesCreated {
			fmt.Fprintf(out, "  %s %s %s\n", green("created"), p.IssueKey, gray(p.URL))
		}
		for _, p := range r.PagesUpdated {
			fmt.Fprintf(out, "  %s %s %s\n", green("updated"), p.IssueKey, gray(p.URL))
		}
		for _, p := range r.PagesErrored {
			fmt.Fprintf(out, "  %s %s %s\n", red("error"), p.IssueKey, p.Message)
		}
	}

	if len(r.Skipped) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, cyan("Skipped (insufficient content)"))
		for _, key := range r.Skipped {
			fmt.Fprintf(out, "  %s\n", yellow(key))
		}
	}

	if len(r.Warnings) > 0 {
		fmt.Fprintln(out)
		fmt.Fprintln(out, cyan("Warnings"))
		for _, w := range r.Warnings {
			fmt.Fprintf(out, "  %s\n", red(w))
		}
	}

	if r.TimedOut {
		fmt.Fprintln(out)
		fmt.Fprintln(out, red("Job timed out"))
	}
	return nil
}
