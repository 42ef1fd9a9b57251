package enrich

import (
	"strings"

	"github.com/danielolaszy/relnotes/internal/analysis"
)

// Sufficient reports whether an analysis has enough substance to publish.
//
//   - bug: technical summary, and a cause or a fix
//   - epic: technical or executive summary
//   - anything else: reasoning and at least one category
func Sufficient(e analysis.Enriched) bool {
	switch a := e.Analysis.(type) {
	case analysis.BugAnalysis:
		return present(a.TechnicalSummary) && (present(a.Cause) || present(a.Fix))
	case analysis.EpicAnalysis:
		return present(a.TechnicalSummary) || present(a.ExecutiveSummary)
	case analysis.GenericAnalysis:
		return present(a.Reasoning) && len(a.Categories) > 0
	default:
		return false
	}
}

func present(s string) bool {
	return strings.TrimSpace(s) != ""
}
