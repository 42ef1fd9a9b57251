package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/danielolaszy/relnotes/internal/ai"
	"github.com/danielolaszy/relnotes/internal/logging"
	"github.com/danielolaszy/relnotes/internal/retry"
	"github.com/danielolaszy/relnotes/pkg/models"
)

// Invoker analyses issues through an ai.Client under a retry policy.
type Invoker struct {
	client ai.Client
	params ai.Params
	policy retry.Policy
	log    *slog.Logger
}

// NewInvoker resolves execution parameters for the client's model and
// returns an Invoker. Authorization failures are always fatal, whatever
// policy says. A timed out AI call is retried as long as ctx is live.
func NewInvoker(client ai.Client, resolver ai.Resolver, policy retry.Policy) (*Invoker, error) {
	params, err := resolver.Resolve(client.Model())
	if err != nil {
		return nil, fmt.Errorf("failed to resolve execution settings for %s: %w", client.Model(), err)
	}

	fatal := policy.Fatal
	policy.Fatal = func(err error) bool {
		if errors.Is(err, ai.ErrUnauthorized) {
			return true
		}
		return fatal != nil && fatal(err)
	}

	return &Invoker{
		client: client,
		params: params,
		policy: policy,
		log:    logging.With("component", "analysis", "model", client.Model()),
	}, nil
}

// Analyze returns the analysis variant matching the issue's declared type.
func (inv *Invoker) Analyze(ctx context.Context, issue models.Issue) (Result, error) {
	kind := KindOf(issue.Type)
	req, err := BuildRequest(issue, kind, inv.params)
	if err != nil {
		return nil, err
	}

	inv.log.Debug("analysing issue", "issue_key", issue.Key, "kind", kind.String())

	result, err := retry.Do(ctx, inv.policy, "analyze "+issue.Key, func(ctx context.Context) (Result, error) {
		var text string
		err := GuardCall(ctx, func(ctx context.Context) error {
			var err error
			text, err = inv.client.Complete(ctx, req)
			return err
		})
		if err != nil {
			return nil, err
		}
		return Parse(kind, text)
	})
	if err != nil {
		return nil, fmt.Errorf("analysis of %s failed: %w", issue.Key, err)
	}
	return result, nil
}
