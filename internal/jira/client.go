package jira

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	jira "github.com/andygrunwald/go-jira"
	"github.com/danielolaszy/relnotes/internal/logging"
	"github.com/danielolaszy/relnotes/pkg/models"
)

// ErrUnauthorized is returned when Jira rejects the configured credentials.
var ErrUnauthorized = errors.New("jira: unauthorized")

// pageSize is the largest page Jira Cloud returns for a search.
const pageSize = 100

var (
	projectKeyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]+$`)
	mentionPattern    = regexp.MustCompile(`\[~accountid:[^\]]*\]`)
)

// searchFields limits search responses to what the issue model needs.
var searchFields = []string{
	"summary", "description", "issuetype", "status", "priority", "assignee",
	"reporter", "labels", "components", "fixVersions", "parent", "comment", "created",
}

// Config holds the Jira site and credentials.
type Config struct {
	URL      string
	Username string
	Token    string
}

// Client handles interactions with the JIRA API
type Client struct {
	client  *jira.Client
	baseURL string
}

// NewClient creates a new JIRA client
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("jira URL is required")
	}

	// Create JIRA authentication transport
	tp := jira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.Token,
	}

	client, err := jira.NewClient(tp.Client(), cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("error creating JIRA client: %w", err)
	}

	return &Client{
		client:  client,
		baseURL: strings.TrimRight(cfg.URL, "/"),
	}, nil
}

// BaseURL returns the site the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SearchIssues runs jql and returns up to maxResults issues together with
// the total number of matches Jira reports.
func (c *Client) SearchIssues(ctx context.Context, jql string, maxResults int) ([]models.Issue, int, error) {
	if maxResults <= 0 {
		maxResults = pageSize
	}
	logging.Debug("Searching Jira", "jql", jql, "max_results", maxResults)

	var (
		issues []models.Issue
		total  int
	)
	for len(issues) < maxResults {
		opts := &jira.SearchOptions{
			StartAt:    len(issues),
			MaxResults: min(pageSize, maxResults-len(issues)),
			Fields:     searchFields,
		}
		page, resp, err := c.client.Issue.SearchWithContext(ctx, jql, opts)
		if err != nil {
			return nil, 0, wrap(resp, err, "failed to search issues")
		}
		total = resp.Total
		for i := range page {
			issues = append(issues, c.convert(&page[i]))
		}
		if len(page) == 0 || len(issues) >= total {
			break
		}
	}

	logging.Info("Fetched Jira issues", "count", len(issues), "total", total)
	return issues, total, nil
}

// GetIssue fetches a single issue by key.
func (c *Client) GetIssue(ctx context.Context, key string) (models.Issue, error) {
	issue, resp, err := c.client.Issue.GetWithContext(ctx, key, &jira.GetQueryOptions{
		Fields: strings.Join(searchFields, ","),
	})
	if err != nil {
		return models.Issue{}, wrap(resp, err, fmt.Sprintf("failed to get issue %s", key))
	}
	return c.convert(issue), nil
}

// Self returns the display name of the authenticated user. It is used to
// verify credentials.
func (c *Client) Self(ctx context.Context) (string, error) {
	user, resp, err := c.client.User.GetSelfWithContext(ctx)
	if err != nil {
		return "", wrap(resp, err, "failed to look up current user")
	}
	return user.DisplayName, nil
}

func (c *Client) convert(issue *jira.Issue) models.Issue {
	out := models.Issue{
		Key: issue.Key,
		URL: c.baseURL + "/browse/" + issue.Key,
	}
	f := issue.Fields
	if f == nil {
		return out
	}

	out.Type = models.IssueType(f.Type.Name)
	out.Title = f.Summary
	out.Body = CleanDescription(f.Description)
	out.Labels = f.Labels
	out.Created = time.Time(f.Created)
	if f.Status != nil {
		out.Status = f.Status.Name
	}
	if f.Priority != nil {
		out.Priority = f.Priority.Name
	}
	if f.Assignee != nil {
		out.Assignee = f.Assignee.DisplayName
	}
	if f.Reporter != nil {
		out.Reporter = f.Reporter.DisplayName
	}
	for _, comp := range f.Components {
		if comp != nil {
			out.Components = append(out.Components, comp.Name)
		}
	}
	for _, v := range f.FixVersions {
		if v != nil {
			out.FixVersions = append(out.FixVersions, v.Name)
		}
	}
	if f.Parent != nil && f.Parent.Key != "" {
		out.Parent = &models.IssueRef{Key: f.Parent.Key}
	}
	if f.Comments != nil {
		for _, cm := range f.Comments.Comments {
			if cm == nil {
				continue
			}
			comment := models.Comment{
				Author: cm.Author.DisplayName,
				Body:   CleanDescription(cm.Body),
			}
			if t, err := time.Parse("2006-01-02T15:04:05.000-0700", cm.Created); err == nil {
				comment.Created = t
			}
			out.Comments = append(out.Comments, comment)
		}
	}
	return out
}

// CleanDescription removes account mentions from Jira wiki markup.
func CleanDescription(s string) string {
	s = mentionPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// BuildJQL builds the release query for project, fixVersion and issueType.
func BuildJQL(project, fixVersion string, issueType models.IssueType) (string, error) {
	if err := ValidateQuery(project, fixVersion, issueType); err != nil {
		return "", err
	}
	canonical, _ := models.ParseIssueType(string(issueType))
	version := strings.ReplaceAll(fixVersion, `"`, `\"`)
	return fmt.Sprintf(`project = %s AND fixversion = "%s" AND issuetype = %s`, project, version, canonical), nil
}

// ValidateQuery checks the inputs of a release query.
func ValidateQuery(project, fixVersion string, issueType models.IssueType) error {
	if !projectKeyPattern.MatchString(project) {
		return fmt.Errorf("invalid project key %q", project)
	}
	if strings.TrimSpace(fixVersion) == "" {
		return fmt.Errorf("fix version is required")
	}
	if _, ok := models.ParseIssueType(string(issueType)); !ok {
		return fmt.Errorf("unsupported issue type %q", issueType)
	}
	return nil
}

func wrap(resp *jira.Response, err error, msg string) error {
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return fmt.Errorf("%s: %w", msg, ErrUnauthorized)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
