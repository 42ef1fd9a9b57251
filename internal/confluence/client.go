// Package confluence implements a document store on top of the Confluence
// Cloud REST API.
package confluence

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	jira "github.com/andygrunwald/go-jira"
	"golang.org/x/time/rate"

	"github.com/danielolaszy/relnotes/internal/logging"
	"github.com/danielolaszy/relnotes/internal/publish"
)

var (
	// ErrUnauthorized is returned for 401 and 403 responses.
	ErrUnauthorized = errors.New("confluence rejected credentials")
	// ErrNotFound is returned when the target page does not exist.
	ErrNotFound = errors.New("confluence page not found")
	// ErrVersionConflict is returned when another writer updated the page first.
	ErrVersionConflict = errors.New("confluence page version conflict")
)

// APIError carries an unexpected response status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("confluence returned status %d: %s", e.StatusCode, e.Message)
}

// Config holds the connection settings.
type Config struct {
	URL      string
	Username string
	Token    string
	// RequestsPerSecond paces calls to the API. Zero disables pacing.
	RequestsPerSecond float64
}

// Client talks to Confluence. Requests reuse the Atlassian REST plumbing of
// the Jira client since both products share the site URL and credentials.
type Client struct {
	api     *jira.Client
	baseURL string
	limiter *rate.Limiter
}

// NewClient creates a Confluence client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("confluence url is required")
	}

	tp := jira.BasicAuthTransport{
		Username: cfg.Username,
		Password: cfg.Token,
	}
	api, err := jira.NewClient(tp.Client(), cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to create confluence client: %w", err)
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		api:     api,
		baseURL: strings.TrimRight(cfg.URL, "/"),
		limiter: limiter,
	}, nil
}

type content struct {
	ID        string     `json:"id,omitempty"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Space     *space     `json:"space,omitempty"`
	Version   *version   `json:"version,omitempty"`
	Ancestors []ancestor `json:"ancestors,omitempty"`
	Body      *body      `json:"body,omitempty"`
	Links     *links     `json:"_links,omitempty"`
}

type space struct {
	Key string `json:"key"`
}

type version struct {
	Number int `json:"number"`
}

type ancestor struct {
	ID string `json:"id"`
}

type body struct {
	Storage storage `json:"storage"`
}

type storage struct {
	Value          string `json:"value"`
	Representation string `json:"representation"`
}

type links struct {
	WebUI string `json:"webui,omitempty"`
}

type searchResult struct {
	Results []content `json:"results"`
	Size    int       `json:"size"`
}

// FindByTitle looks up a page by exact space and title.
func (c *Client) FindByTitle(ctx context.Context, spaceKey, title string) (*publish.Page, error) {
	q := url.Values{}
	q.Set("spaceKey", spaceKey)
	q.Set("title", title)
	q.Set("expand", "version,space")

	var result searchResult
	if err := c.do(ctx, http.MethodGet, "wiki/rest/api/content?"+q.Encode(), nil, &result); err != nil {
		return nil, fmt.Errorf("failed to look up page %q: %w", title, err)
	}
	for _, r := range result.Results {
		if r.Title == title {
			return c.toPage(r, spaceKey), nil
		}
	}
	return nil, nil
}

// Create adds a page to spaceKey, under parentID when it is set.
func (c *Client) Create(ctx context.Context, spaceKey, title, html, parentID string) (*publish.Page, error) {
	req := content{
		Type:  "page",
		Title: title,
		Space: &space{Key: spaceKey},
		Body:  &body{Storage: storage{Value: html, Representation: "storage"}},
	}
	if parentID != "" {
		req.Ancestors = []ancestor{{ID: parentID}}
	}

	var created content
	if err := c.do(ctx, http.MethodPost, "wiki/rest/api/content", req, &created); err != nil {
		return nil, fmt.Errorf("failed to create page %q: %w", title, err)
	}
	return c.toPage(created, spaceKey), nil
}

// Update replaces the page body, writing it as version.
func (c *Client) Update(ctx context.Context, pageID, title, html string, ver int) (*publish.Page, error) {
	req := content{
		ID:      pageID,
		Type:    "page",
		Title:   title,
		Version: &version{Number: ver},
		Body:    &body{Storage: storage{Value: html, Representation: "storage"}},
	}

	var updated content
	if err := c.do(ctx, http.MethodPut, "wiki/rest/api/content/"+url.PathEscape(pageID), req, &updated); err != nil {
		return nil, fmt.Errorf("failed to update page %s to version %d: %w", pageID, ver, err)
	}
	return c.toPage(updated, ""), nil
}

func (c *Client) toPage(r content, spaceKey string) *publish.Page {
	p := &publish.Page{ID: r.ID, Title: r.Title, Space: spaceKey}
	if r.Space != nil {
		p.Space = r.Space.Key
	}
	if r.Version != nil {
		p.Version = r.Version.Number
	}
	if r.Links != nil && r.Links.WebUI != "" {
		p.URL = c.baseURL + "/wiki" + r.Links.WebUI
	} else {
		p.URL = publish.PageURL(c.baseURL, r.ID)
	}
	return p
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := c.api.NewRequestWithContext(ctx, method, path, in)
	if err != nil {
		return err
	}

	logging.Debug("confluence request", "method", method, "path", path)
	resp, err := c.api.Do(req, out)
	if err == nil {
		return nil
	}
	if resp == nil || resp.Response == nil {
		return err
	}
	defer resp.Body.Close()

	msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrVersionConflict
	default:
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return fmt.Errorf("failed to decode response: %w", err)
		}
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
}
