// Package storage writes enriched issues to local files or object storage.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/danielolaszy/relnotes/internal/analysis"
)

// Format is an output encoding.
type Format string

const (
	FormatJSON     Format = "json"
	FormatMarkdown Format = "md"
)

// ParseFormats parses a comma separated list such as "json,md".
func ParseFormats(s string) ([]Format, error) {
	var out []Format
	for _, part := range strings.Split(s, ",") {
		switch f := Format(strings.ToLower(strings.TrimSpace(part))); f {
		case "":
		case FormatJSON, FormatMarkdown:
			out = append(out, f)
		default:
			return nil, fmt.Errorf("unsupported output format %q", part)
		}
	}
	return out, nil
}

// Dump is the set of issues written at the end of a job.
type Dump struct {
	JobID     string
	Project   string
	Release   string
	IssueType string
	Issues    []analysis.Enriched
	Created   time.Time
}

// Sink persists a Dump and returns where it was written.
type Sink interface {
	Save(ctx context.Context, d Dump) ([]string, error)
}

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

func segment(s, fallback string) string {
	s = strings.Trim(unsafeChars.ReplaceAllString(s, "_"), "_")
	if s == "" {
		return fallback
	}
	return s
}

// ObjectName returns the slash separated relative name of the dump file,
// {project}/{release}/{type}_{timestamp}.{ext}.
func ObjectName(d Dump, f Format) string {
	return path.Join(
		segment(d.Project, "default"),
		segment(d.Release, "unreleased"),
		fmt.Sprintf("%s_%s.%s", segment(strings.ToLower(d.IssueType), "issues"), d.Created.Format("20060102_150405"), f),
	)
}

// Encode renders d in format f.
func Encode(d Dump, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		issues := d.Issues
		if issues == nil {
			issues = []analysis.Enriched{}
		}
		return json.MarshalIndent(issues, "", "  ")
	case FormatMarkdown:
		return []byte(ReleaseNote(d)), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q", f)
	}
}

// ReleaseNote renders d as a markdown release note.
func ReleaseNote(d Dump) string {
	var b bytes.Buffer
	fmt.Fprintf(&b, "# Release: %s\n", orNA(d.Release))
	fmt.Fprintf(&b, "Project: %s\n", orNA(d.Project))
	fmt.Fprintf(&b, "Generated: %s\n", d.Created.Format(time.RFC3339))
	b.WriteString("\n---\n\n## Enriched Issues\n\n")

	if len(d.Issues) == 0 {
		b.WriteString("No issues enriched.\n")
		return b.String()
	}

	for _, e := range d.Issues {
		fmt.Fprintf(&b, "- **%s: %s**\n", e.Issue.Key, e.Issue.Title)
		for _, line := range noteLines(e.Analysis) {
			if strings.TrimSpace(line[1]) != "" {
				fmt.Fprintf(&b, "  - %s: %s\n", line[0], line[1])
			}
		}
		b.WriteString("\n")
	}
	return b.String()
}

func noteLines(r analysis.Result) [][2]string {
	switch a := r.(type) {
	case analysis.BugAnalysis:
		return [][2]string{
			{"Executive Summary", a.ExecutiveSummary},
			{"Technical Summary", a.TechnicalSummary},
			{"Root Cause", a.Cause},
			{"Fix", a.Fix},
		}
	case analysis.EpicAnalysis:
		return [][2]string{
			{"Executive Summary", a.ExecutiveSummary},
			{"Technical Summary", a.TechnicalSummary},
			{"Categories", strings.Join(a.Categories, ", ")},
		}
	case analysis.GenericAnalysis:
		return [][2]string{
			{"Categories", strings.Join(a.Categories, ", ")},
			{"Confidence", a.ConfidenceBand},
			{"Reasoning", a.Reasoning},
		}
	default:
		return nil
	}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
