package analysis

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/relnotes/pkg/models"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		issueType models.IssueType
		want      Kind
	}{
		{"Bug", KindBug},
		{"BUG", KindBug},
		{"epic", KindEpic},
		{"Story", KindGeneric},
		{"", KindGeneric},
	}

	for _, tt := range tests {
		t.Run(string(tt.issueType), func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.issueType))
		})
	}
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{name: "json fence", input: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "bare fence", input: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "surrounding whitespace", input: "  \n```json {\"a\":1} ```\n", want: `{"a":1}`},
		{name: "no fence", input: ` {"a":1} `, want: `{"a":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripCodeFence(tt.input))
		})
	}
}

func TestParseFencedBug(t *testing.T) {
	got, err := Parse(KindBug, "```json\n{\"cause\":\"x\",\"fix\":\"y\",\"technical_summary\":\"z\"}\n```")

	require.NoError(t, err)
	assert.Equal(t, BugAnalysis{Cause: "x", Fix: "y", TechnicalSummary: "z"}, got)
}

func TestParseNormalizesChildIssues(t *testing.T) {
	got, err := Parse(KindEpic, `{
		"executive_summary": "New billing",
		"child_issues": {"ABC-2": "Invoices", "ABC-1": "Payments"},
		"keywords": "billing"
	}`)

	require.NoError(t, err)
	epic, ok := got.(EpicAnalysis)
	require.True(t, ok)
	assert.Equal(t, []string{"ABC-1: Payments", "ABC-2: Invoices"}, epic.ChildRefs)
	assert.Equal(t, []string{"billing"}, epic.Keywords)
}

func TestParseToleratesNullsAndExtraKeys(t *testing.T) {
	got, err := Parse(KindGeneric, `{"reasoning":"r","inferredCategories":["ui"],"confidenceRange":null,"unexpected":"kept out"}`)

	require.NoError(t, err)
	assert.Equal(t, GenericAnalysis{Reasoning: "r", Categories: []string{"ui"}}, got)
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		kind    Kind
		input   string
		wantErr error
	}{
		{name: "empty", kind: KindBug, input: "   ", wantErr: ErrEmptyResponse},
		{name: "empty fence", kind: KindBug, input: "```json\n```", wantErr: ErrEmptyResponse},
		{name: "not json", kind: KindBug, input: "I could not analyse this issue", wantErr: ErrValidation},
		{name: "json array", kind: KindEpic, input: `["a"]`, wantErr: ErrValidation},
		{name: "wrong field type", kind: KindBug, input: `{"cause": 12}`, wantErr: ErrValidation},
		{name: "non integer rank", kind: KindGeneric, input: `{"probabilityRanking": "high"}`, wantErr: ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.kind, tt.input)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestSchemaDescribesVariantFields(t *testing.T) {
	raw, err := Schema(KindEpic)
	require.NoError(t, err)

	var s struct {
		Properties map[string]json.RawMessage `json:"properties"`
	}
	require.NoError(t, json.Unmarshal(raw, &s))
	assert.Contains(t, s.Properties, "executive_summary")
	assert.Contains(t, s.Properties, "child_issues")
	assert.NotContains(t, s.Properties, "cause")
}

func TestEnrichCopiesIssue(t *testing.T) {
	issue := models.Issue{Key: "ABC-1", Labels: []string{"ui"}}
	e := Enrich(issue, GenericAnalysis{Reasoning: "r"})

	issue.Labels[0] = "changed"
	assert.Equal(t, "ui", e.Issue.Labels[0])
}

func TestEnrichedMarshalJSON(t *testing.T) {
	e := Enrich(models.Issue{Key: "ABC-1", Type: models.TypeBug, Title: "Crash"}, BugAnalysis{Fix: "patched"})

	data, err := json.Marshal(e)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "ABC-1", got["key"])
	assert.Equal(t, "Crash", got["summary"])
	assert.Equal(t, "patched", got["fix"])
	assert.Equal(t, "bug", got["analysis_kind"])
}
