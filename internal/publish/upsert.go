// Package publish writes enriched issues to a document store.
package publish

import (
	"context"
	"errors"
	"strings"

	"github.com/danielolaszy/relnotes/internal/logging"
)

// ErrMissingField is reported when the space or title is empty.
var ErrMissingField = errors.New("space and title are required")

// Page is a document as seen by the store.
type Page struct {
	ID      string
	Space   string
	Title   string
	Version int
	URL     string
}

// Store is the document store used by Upsert.
type Store interface {
	// FindByTitle returns nil and no error when the page does not exist.
	FindByTitle(ctx context.Context, space, title string) (*Page, error)
	Create(ctx context.Context, space, title, body, parentID string) (*Page, error)
	// Update writes body as version, which must be one more than the
	// version last read.
	Update(ctx context.Context, pageID, title, body string, version int) (*Page, error)
}

// Action is what Upsert did.
type Action string

const (
	ActionNone    Action = "none"
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionError   Action = "error"
)

// Result describes the outcome of one Upsert.
type Result struct {
	Action  Action
	PageID  string
	URL     string
	Title   string
	Version int
	Err     error
}

// Upsert creates the page (space, title) or updates it in place. It never
// returns an error; failures are reported as ActionError with Err set.
// A version conflict from a concurrent writer is reported, not retried.
func Upsert(ctx context.Context, store Store, space, title, body, parentID string) Result {
	if strings.TrimSpace(space) == "" || strings.TrimSpace(title) == "" {
		return Result{Action: ActionError, Title: title, Err: ErrMissingField}
	}

	existing, err := store.FindByTitle(ctx, space, title)
	if err != nil {
		return Result{Action: ActionError, Title: title, Err: err}
	}

	if existing != nil {
		page, err := store.Update(ctx, existing.ID, title, body, existing.Version+1)
		if err != nil {
			logging.Warn("page update failed", "space", space, "title", title, "page_id", existing.ID, "error", err)
			return Result{Action: ActionError, PageID: existing.ID, Title: title, Err: err}
		}
		logging.Info("page updated", "space", space, "title", title, "page_id", page.ID, "version", page.Version)
		return Result{Action: ActionUpdated, PageID: page.ID, URL: page.URL, Title: title, Version: page.Version}
	}

	page, err := store.Create(ctx, space, title, body, parentID)
	if err != nil {
		logging.Warn("page create failed", "space", space, "title", title, "error", err)
		return Result{Action: ActionError, Title: title, Err: err}
	}
	logging.Info("page created", "space", space, "title", title, "page_id", page.ID)
	return Result{Action: ActionCreated, PageID: page.ID, URL: page.URL, Title: title, Version: page.Version}
}
