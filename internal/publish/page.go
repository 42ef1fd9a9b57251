package publish

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/danielolaszy/relnotes/internal/analysis"
	"github.com/danielolaszy/relnotes/pkg/models"
)

// Title names the page for an issue, prefixed by the release when known.
func Title(release, key, summary string) string {
	if release == "" {
		return fmt.Sprintf("%s - %s", key, summary)
	}
	return fmt.Sprintf("%s - %s - %s", release, key, summary)
}

// PageURL builds the browser URL of a page.
func PageURL(baseURL, pageID string) string {
	return fmt.Sprintf("%s/wiki/pages/viewpage.action?pageId=%s", strings.TrimRight(baseURL, "/"), pageID)
}

type panel struct {
	Title       string
	Background  string
	Border      string
	Text        string
	Collapsible bool
}

type pageView struct {
	Title        string
	Key          string
	IssueType    string
	BadgeColour  string
	Release      string
	TicketNumber string
	Components   string
	Labels       string
	TrackerLink  string
	Executive    string
	Panels       []panel
	Categories   []string
	Confidence   string
	Generated    string
}

var pageTemplate = template.Must(template.New("page").Parse(`<h1>{{.Title}}</h1>
<p><ac:structured-macro ac:name="status" ac:schema-version="1"><ac:parameter ac:name="colour">{{.BadgeColour}}</ac:parameter><ac:parameter ac:name="title">{{.IssueType}}</ac:parameter></ac:structured-macro>
{{- if .Release}} <ac:structured-macro ac:name="status" ac:schema-version="1"><ac:parameter ac:name="colour">Purple</ac:parameter><ac:parameter ac:name="title">{{.Release}}</ac:parameter></ac:structured-macro>{{end}}</p>
<h2>Issue Details</h2>
<table class="confluenceTable"><tbody>
<tr><th class="confluenceTh">Field</th><th class="confluenceTh">Value</th></tr>
<tr><td class="confluenceTd">Issue Type</td><td class="confluenceTd">{{.IssueType}}</td></tr>
{{- if .TicketNumber}}
<tr><td class="confluenceTd">Ticket Number</td><td class="confluenceTd">{{.TicketNumber}}</td></tr>
{{- end}}
<tr><td class="confluenceTd">Fix Version</td><td class="confluenceTd">{{.Release}}</td></tr>
<tr><td class="confluenceTd">Components</td><td class="confluenceTd">{{.Components}}</td></tr>
<tr><td class="confluenceTd">Labels</td><td class="confluenceTd">{{.Labels}}</td></tr>
</tbody></table>
{{- if .TrackerLink}}
<p><a href="{{.TrackerLink}}">View issue {{.Key}}</a></p>
{{- end}}
{{- if .Executive}}
<ac:structured-macro ac:name="panel" ac:schema-version="1"><ac:parameter ac:name="bgColor">#e6f3ff</ac:parameter><ac:parameter ac:name="borderColor">#0066cc</ac:parameter><ac:parameter ac:name="title">Executive Summary</ac:parameter><ac:rich-text-body><p><strong>{{.Executive}}</strong></p></ac:rich-text-body></ac:structured-macro>
{{- end}}
{{- range .Panels}}
{{- if .Collapsible}}
<ac:structured-macro ac:name="expand" ac:schema-version="1"><ac:parameter ac:name="title">{{.Title}}</ac:parameter><ac:rich-text-body><p>{{.Text}}</p></ac:rich-text-body></ac:structured-macro>
{{- else}}
<ac:structured-macro ac:name="panel" ac:schema-version="1"><ac:parameter ac:name="bgColor">{{.Background}}</ac:parameter><ac:parameter ac:name="borderColor">{{.Border}}</ac:parameter><ac:parameter ac:name="title">{{.Title}}</ac:parameter><ac:rich-text-body><p>{{.Text}}</p></ac:rich-text-body></ac:structured-macro>
{{- end}}
{{- end}}
{{- if or .Categories .Confidence}}
<ac:structured-macro ac:name="panel" ac:schema-version="1"><ac:parameter ac:name="bgColor">#f5f5f5</ac:parameter><ac:parameter ac:name="title">Analysis Metadata</ac:parameter><ac:rich-text-body>
{{- if .Categories}}
<p><strong>Categories:</strong></p>
<ul>{{range .Categories}}<li>{{.}}</li>{{end}}</ul>
{{- end}}
{{- if .Confidence}}
<p><strong>Confidence:</strong> {{.Confidence}}</p>
{{- end}}
</ac:rich-text-body></ac:structured-macro>
{{- end}}
<hr />
<ac:structured-macro ac:name="info" ac:schema-version="1"><ac:rich-text-body><p><em>Generated by relnotes on {{.Generated}}</em></p></ac:rich-text-body></ac:structured-macro>
`))

// Renderer renders page bodies in Confluence storage format.
type Renderer struct {
	// TrackerURL is the tracker base URL used for the issue link.
	TrackerURL string
	// Now defaults to time.Now.
	Now func() time.Time
}

// Render returns the page body for e.
func (r Renderer) Render(e analysis.Enriched, release string) (string, error) {
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}
	issue := e.Issue
	if release == "" {
		release = issue.FixVersion()
	}

	v := pageView{
		Title:       Title(release, issue.Key, issue.Title),
		Key:         issue.Key,
		IssueType:   string(issue.Type),
		BadgeColour: badgeColour(issue.Type),
		Release:     release,
		Components:  strings.Join(issue.Components, ", "),
		Labels:      strings.Join(issue.Labels, ", "),
		Generated:   now().Format("2006-01-02 15:04:05"),
	}
	switch {
	case issue.URL != "":
		v.TrackerLink = issue.URL
	case r.TrackerURL != "" && issue.Key != "":
		v.TrackerLink = strings.TrimRight(r.TrackerURL, "/") + "/browse/" + issue.Key
	}

	switch a := e.Analysis.(type) {
	case analysis.BugAnalysis:
		v.TicketNumber = a.TicketNumber
		v.Executive = a.ExecutiveSummary
		v.Panels = panels(
			panel{Title: "Technical Details", Background: "#fff9e6", Border: "#ffcc00", Text: a.TechnicalSummary},
			panel{Title: "Root Cause", Background: "#ffe6e6", Border: "#ff6666", Text: a.Cause},
			panel{Title: "Solution", Background: "#e6ffe6", Border: "#66cc66", Text: a.Fix},
			panel{Title: "Analysis Reasoning", Text: a.Reasoning, Collapsible: true},
		)
	case analysis.EpicAnalysis:
		v.Executive = a.ExecutiveSummary
		v.Categories = a.Categories
		v.Panels = panels(
			panel{Title: "Technical Details", Background: "#fff9e6", Border: "#ffcc00", Text: a.TechnicalSummary},
			panel{Title: "Child Issues", Background: "#f0f0f0", Border: "#cccccc", Text: strings.Join(a.ChildRefs, "; ")},
		)
	case analysis.GenericAnalysis:
		v.Categories = a.Categories
		v.Confidence = a.ConfidenceBand
		v.Panels = panels(
			panel{Title: "Environments", Background: "#fff0e6", Border: "#ff9933", Text: strings.Join(a.Environments, ", ")},
			panel{Title: "Analysis Reasoning", Text: a.Reasoning, Collapsible: true},
		)
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, v); err != nil {
		return "", fmt.Errorf("failed to render page for %s: %w", issue.Key, err)
	}
	return buf.String(), nil
}

func panels(candidates ...panel) []panel {
	var out []panel
	for _, p := range candidates {
		if strings.TrimSpace(p.Text) != "" {
			out = append(out, p)
		}
	}
	return out
}

func badgeColour(t models.IssueType) string {
	switch {
	case t.Is(models.TypeBug):
		return "Red"
	case t.Is(models.TypeStory):
		return "Green"
	default:
		return "Blue"
	}
}
