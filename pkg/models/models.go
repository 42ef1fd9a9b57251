// Package models defines data structures shared across the application.
package models

import (
	"strings"
	"time"
)

// IssueType is the tracker's declared type of an issue.
type IssueType string

const (
	// TypeBug is a defect report.
	TypeBug IssueType = "Bug"
	// TypeEpic groups a set of child issues.
	TypeEpic IssueType = "Epic"
	// TypeStory is a user story.
	TypeStory IssueType = "Story"
	// TypeTask is a unit of work.
	TypeTask IssueType = "Task"
	// TypeIssue is the generic fallback type.
	TypeIssue IssueType = "Issue"
)

// KnownIssueTypes lists the types accepted on the command line.
var KnownIssueTypes = []IssueType{TypeBug, TypeEpic, TypeStory, TypeTask, TypeIssue}

// ParseIssueType matches s case-insensitively against the known types.
func ParseIssueType(s string) (IssueType, bool) {
	for _, t := range KnownIssueTypes {
		if strings.EqualFold(string(t), strings.TrimSpace(s)) {
			return t, true
		}
	}
	return IssueType(s), false
}

// Is reports whether the type equals name, ignoring case.
func (t IssueType) Is(name IssueType) bool {
	return strings.EqualFold(string(t), string(name))
}

// IssueRef points at another issue, such as an epic parent.
type IssueRef struct {
	Key   string `json:"key"`
	Title string `json:"summary,omitempty"`
}

// Comment is a single comment left on an issue.
type Comment struct {
	Author  string    `json:"author"`
	Body    string    `json:"body"`
	Created time.Time `json:"created,omitempty"`
}

// Issue is a work item fetched from a tracker.
type Issue struct {
	// Key is the tracker identifier (e.g., "ABC-123" or "owner/repo#42")
	Key string `json:"key"`

	// Type is the declared issue type
	Type IssueType `json:"issuetype"`

	// Title is the issue's summary line
	Title string `json:"summary"`

	// Body is the free-text description
	Body string `json:"description"`

	// Status is the workflow state (e.g., "Done")
	Status string `json:"status,omitempty"`

	// Priority is the tracker priority name
	Priority string `json:"priority,omitempty"`

	// Assignee is the display name of the assignee
	Assignee string `json:"assignee,omitempty"`

	// Reporter is the display name of the reporter
	Reporter string `json:"reporter,omitempty"`

	// Labels are free-form tags
	Labels []string `json:"labels,omitempty"`

	// Components are the tracker components
	Components []string `json:"components,omitempty"`

	// FixVersions are the releases the issue is scheduled for
	FixVersions []string `json:"fixVersions,omitempty"`

	// Parent is set for issues that belong to an epic
	Parent *IssueRef `json:"parent,omitempty"`

	// Comments holds the discussion thread
	Comments []Comment `json:"comments,omitempty"`

	// URL links back to the issue in the tracker
	URL string `json:"url,omitempty"`

	// Created is the creation timestamp
	Created time.Time `json:"created,omitempty"`

	// Metadata carries source specific attributes
	Metadata map[string]string `json:"metadata,omitempty"`
}

// FixVersion returns the first fix version, or an empty string.
func (i Issue) FixVersion() string {
	if len(i.FixVersions) == 0 {
		return ""
	}
	return i.FixVersions[0]
}

// Clone returns a deep copy of the issue.
func (i Issue) Clone() Issue {
	c := i
	c.Labels = cloneStrings(i.Labels)
	c.Components = cloneStrings(i.Components)
	c.FixVersions = cloneStrings(i.FixVersions)
	if i.Parent != nil {
		p := *i.Parent
		c.Parent = &p
	}
	if i.Comments != nil {
		c.Comments = append([]Comment(nil), i.Comments...)
	}
	if i.Metadata != nil {
		c.Metadata = make(map[string]string, len(i.Metadata))
		for k, v := range i.Metadata {
			c.Metadata[k] = v
		}
	}
	return c
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string(nil), s...)
}
