package analysis

import (
	"encoding/json"
	"fmt"

	"github.com/danielolaszy/relnotes/internal/ai"
	"github.com/danielolaszy/relnotes/pkg/models"
)

var systemPrompts = map[Kind]string{
	KindBug: "You write release notes for resolved defects. Read the issue and explain " +
		"what was wrong, why it happened and how it was fixed. Keep the executive summary " +
		"free of jargon. Leave a field empty rather than guessing.",
	KindEpic: "You write release notes for epics. Summarise what the epic delivers for " +
		"executives and for engineers, classify it into feature areas and list its child issues.",
	KindGeneric: "You classify tracker issues for release notes. Decide whether the issue is " +
		"customer facing, how confident you are, which categories and environments it " +
		"affects, and explain your reasoning.",
}

type promptPayload struct {
	IssueType    string          `json:"issue_type"`
	Issue        models.Issue    `json:"issue"`
	OutputSchema json.RawMessage `json:"output_schema"`
}

// BuildRequest assembles the prompt for issue.
func BuildRequest(issue models.Issue, kind Kind, params ai.Params) (ai.Request, error) {
	schema, err := Schema(kind)
	if err != nil {
		return ai.Request{}, err
	}
	payload, err := json.MarshalIndent(promptPayload{
		IssueType:    kind.String(),
		Issue:        issue,
		OutputSchema: schema,
	}, "", "  ")
	if err != nil {
		return ai.Request{}, fmt.Errorf("failed to encode issue %s: %w", issue.Key, err)
	}

	return ai.Request{
		System: systemPrompts[kind],
		User: "Analyse the issue below. Reply with one JSON object that matches output_schema.\n\n" +
			string(payload),
		Params: params,
		JSON:   true,
	}, nil
}
