// Package analysis turns an issue into a structured AI analysis.
package analysis

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/danielolaszy/relnotes/pkg/models"
)

// Kind selects the analysis variant for an issue.
type Kind int

const (
	KindGeneric Kind = iota
	KindBug
	KindEpic
)

func (k Kind) String() string {
	switch k {
	case KindBug:
		return "bug"
	case KindEpic:
		return "epic"
	default:
		return "generic"
	}
}

// KindOf maps a declared issue type to its variant. Unknown types are generic.
func KindOf(t models.IssueType) Kind {
	switch strings.ToLower(strings.TrimSpace(string(t))) {
	case "bug":
		return KindBug
	case "epic":
		return KindEpic
	default:
		return KindGeneric
	}
}

// Result is one of BugAnalysis, EpicAnalysis or GenericAnalysis.
type Result interface {
	Kind() Kind
	isResult()
}

// BugAnalysis explains a defect.
type BugAnalysis struct {
	TicketNumber     string `json:"ticket_number,omitempty" jsonschema:"external support ticket referenced by the issue, if any"`
	Visibility       string `json:"visibility,omitempty" jsonschema:"internal or external"`
	ExecutiveSummary string `json:"executive_summary,omitempty" jsonschema:"one or two sentences for a non-technical reader"`
	TechnicalSummary string `json:"technical_summary,omitempty" jsonschema:"what changed, for engineers"`
	Cause            string `json:"cause,omitempty" jsonschema:"root cause of the defect"`
	Fix              string `json:"fix,omitempty" jsonschema:"how the defect was fixed"`
	Reasoning        string `json:"reasoning,omitempty" jsonschema:"why the analysis reached these conclusions"`
}

// EpicAnalysis summarises a body of work.
type EpicAnalysis struct {
	ExecutiveSummary string   `json:"executive_summary,omitempty" jsonschema:"one or two sentences for a non-technical reader"`
	TechnicalSummary string   `json:"technical_summary,omitempty" jsonschema:"what the epic delivers, for engineers"`
	Categories       []string `json:"inferredCategories,omitempty" jsonschema:"feature areas the epic touches"`
	Keywords         []string `json:"keywords,omitempty"`
	ChildRefs        []string `json:"child_issues,omitempty" jsonschema:"child issues as KEY: summary"`
}

// GenericAnalysis classifies any other issue.
type GenericAnalysis struct {
	Visibility      string   `json:"visibility,omitempty" jsonschema:"internal or external"`
	ProbabilityRank int      `json:"probabilityRanking,omitempty" jsonschema:"1 (unlikely) to 5 (certain) that the issue is customer facing"`
	ConfidenceBand  string   `json:"confidenceRange,omitempty" jsonschema:"low, medium or high"`
	Categories      []string `json:"inferredCategories,omitempty"`
	Keywords        []string `json:"keywords,omitempty"`
	Environments    []string `json:"environments,omitempty"`
	Reasoning       string   `json:"reasoning,omitempty"`
}

func (BugAnalysis) Kind() Kind     { return KindBug }
func (EpicAnalysis) Kind() Kind    { return KindEpic }
func (GenericAnalysis) Kind() Kind { return KindGeneric }

func (BugAnalysis) isResult()     {}
func (EpicAnalysis) isResult()    {}
func (GenericAnalysis) isResult() {}

// Enriched pairs an issue with its analysis. It is built once and never
// modified; the issue is copied so concurrent tasks never share it.
type Enriched struct {
	Issue    models.Issue
	Analysis Result
}

// Enrich returns a new Enriched value for issue and r.
func Enrich(issue models.Issue, r Result) Enriched {
	return Enriched{Issue: issue.Clone(), Analysis: r}
}

// MarshalJSON flattens the issue and analysis fields into one object.
func (e Enriched) MarshalJSON() ([]byte, error) {
	out, err := toMap(e.Issue)
	if err != nil {
		return nil, err
	}
	if e.Analysis != nil {
		fields, err := toMap(e.Analysis)
		if err != nil {
			return nil, err
		}
		for k, v := range fields {
			out[k] = v
		}
		out["analysis_kind"] = e.Analysis.Kind().String()
	}
	return json.Marshal(out)
}

func toMap(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode %T: %w", v, err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to decode %T: %w", v, err)
	}
	return m, nil
}
