// Package github provides functionality for reading release issues from the
// GitHub API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/danielolaszy/relnotes/internal/config"
	"github.com/danielolaszy/relnotes/internal/logging"
	"github.com/danielolaszy/relnotes/pkg/models"
	"github.com/google/go-github/v41/github"
	"golang.org/x/oauth2"
)

// ErrUnauthorized is returned when GitHub rejects the token.
var ErrUnauthorized = errors.New("github: unauthorized")

// Client encapsulates the GitHub API client.
type Client struct {
	client *github.Client
}

// Query selects the issues of one release.
type Query struct {
	// Repository in the format "owner/repo"
	Repository string
	Labels     []string
	// Milestone is a milestone title or number, "*" or "none"
	Milestone string
	// State is "open", "closed" or "all"; empty means "all"
	State      string
	MaxResults int
}

// APIURL returns the REST endpoint for a GitHub domain.
func APIURL(domain string) string {
	if domain == "" || domain == "github.com" {
		return "https://api.github.com/"
	}
	return fmt.Sprintf("https://%s/api/v3/", domain)
}

// NewClient creates a new GitHub API client for the configured domain.
func NewClient(cfg config.GitHubConfig) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("github token not found in configuration")
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: cfg.Token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	apiURL := APIURL(cfg.Domain)
	logging.Debug("github configuration",
		"domain", cfg.Domain,
		"api_url", apiURL,
		"token", logging.MaskSensitive(cfg.Token))

	return newClient(tc, apiURL)
}

func newClient(hc *http.Client, apiURL string) (*Client, error) {
	client := github.NewClient(hc)

	if apiURL != APIURL("github.com") {
		parsedURL, err := url.Parse(apiURL)
		if err != nil {
			return nil, fmt.Errorf("invalid github api url: %w", err)
		}
		client.BaseURL = parsedURL
		client.UploadURL = parsedURL
	}

	return &Client{client: client}, nil
}

// Self returns the login of the token owner.
func (c *Client) Self(ctx context.Context) (string, error) {
	user, resp, err := c.client.Users.Get(ctx, "")
	if err != nil {
		return "", wrap(resp, err, "error testing github token")
	}
	return user.GetLogin(), nil
}

// ListIssues retrieves the issues matching q. Pull requests are filtered out.
// It returns at most q.MaxResults issues and the number of matches found.
func (c *Client) ListIssues(ctx context.Context, q Query) ([]models.Issue, int, error) {
	owner, repo, err := splitRepository(q.Repository)
	if err != nil {
		return nil, 0, err
	}

	milestone, err := c.resolveMilestone(ctx, owner, repo, q.Milestone)
	if err != nil {
		return nil, 0, err
	}

	state := q.State
	if state == "" {
		state = "all"
	}
	opts := &github.IssueListByRepoOptions{
		State:     state,
		Labels:    q.Labels,
		Milestone: milestone,
		ListOptions: github.ListOptions{
			PerPage: 100,
		},
	}

	var result []models.Issue
	for {
		issues, resp, err := c.client.Issues.ListByRepo(ctx, owner, repo, opts)
		if err != nil {
			logging.Error("failed to fetch github issues", "repository", q.Repository, "error", err)
			return nil, 0, wrap(resp, err, "failed to fetch GitHub issues")
		}

		for _, issue := range issues {
			// Skip pull requests (they're also returned by the Issues API)
			if issue.PullRequestLinks != nil {
				continue
			}
			result = append(result, convert(q.Repository, issue))
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	total := len(result)
	if q.MaxResults > 0 && len(result) > q.MaxResults {
		result = result[:q.MaxResults]
	}
	logging.Info("Fetched GitHub issues", "repository", q.Repository, "count", len(result), "total", total)
	return result, total, nil
}

// resolveMilestone turns a milestone title into the number the list API
// filters on.
func (c *Client) resolveMilestone(ctx context.Context, owner, repo, milestone string) (string, error) {
	if milestone == "" || milestone == "*" || milestone == "none" {
		return milestone, nil
	}
	if _, err := strconv.Atoi(milestone); err == nil {
		return milestone, nil
	}

	opts := &github.MilestoneListOptions{
		State:       "all",
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		milestones, resp, err := c.client.Issues.ListMilestones(ctx, owner, repo, opts)
		if err != nil {
			return "", wrap(resp, err, "failed to list milestones")
		}
		for _, m := range milestones {
			if strings.EqualFold(m.GetTitle(), milestone) {
				return strconv.Itoa(m.GetNumber()), nil
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return "", fmt.Errorf("milestone %q not found in %s/%s", milestone, owner, repo)
}

func convert(repository string, issue *github.Issue) models.Issue {
	labelNames := make([]string, 0, len(issue.Labels))
	for _, label := range issue.Labels {
		labelNames = append(labelNames, label.GetName())
	}

	out := models.Issue{
		Key:      fmt.Sprintf("%s#%d", repository, issue.GetNumber()),
		Type:     TypeFromLabels(labelNames),
		Title:    issue.GetTitle(),
		Body:     issue.GetBody(),
		Status:   issue.GetState(),
		Assignee: issue.GetAssignee().GetLogin(),
		Reporter: issue.GetUser().GetLogin(),
		Labels:   labelNames,
		URL:      issue.GetHTMLURL(),
		Created:  issue.GetCreatedAt(),
	}
	if m := issue.GetMilestone().GetTitle(); m != "" {
		out.FixVersions = []string{m}
	}
	return out
}

// TypeFromLabels derives an issue type from GitHub labels. Issues without a
// recognised label are generic.
func TypeFromLabels(labels []string) models.IssueType {
	for _, label := range labels {
		switch strings.ToLower(label) {
		case "bug", "type: bug", "kind/bug":
			return models.TypeBug
		case "epic", "type: epic":
			return models.TypeEpic
		}
	}
	for _, label := range labels {
		switch strings.ToLower(label) {
		case "story", "enhancement", "feature":
			return models.TypeStory
		case "task", "chore":
			return models.TypeTask
		}
	}
	return models.TypeIssue
}

func splitRepository(repository string) (string, string, error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("invalid repository format: %s, expected format: owner/repo", repository)
	}
	return parts[0], parts[1], nil
}

func wrap(resp *github.Response, err error, msg string) error {
	if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		return fmt.Errorf("%s: %w", msg, ErrUnauthorized)
	}
	return fmt.Errorf("%s: %w", msg, err)
}
