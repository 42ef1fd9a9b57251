package cmd

import (
	"context"
	"fmt"

	"github.com/danielolaszy/relnotes/internal/ai"
	"github.com/danielolaszy/relnotes/internal/analysis"
	"github.com/danielolaszy/relnotes/internal/config"
	"github.com/danielolaszy/relnotes/internal/confluence"
	"github.com/danielolaszy/relnotes/internal/enrich"
	"github.com/danielolaszy/relnotes/internal/jira"
	"github.com/danielolaszy/relnotes/internal/logging"
	"github.com/danielolaszy/relnotes/internal/publish"
	"github.com/danielolaszy/relnotes/internal/retry"
	"github.com/danielolaszy/relnotes/internal/storage"
)

// retryPolicy builds the analysis retry policy from the pipeline settings.
func retryPolicy(cfg *config.Config) retry.Policy {
	return retry.Policy{
		MaxAttempts:  cfg.Pipeline.RetryAttempts,
		InitialDelay: cfg.Pipeline.RetryDelay,
		Multiplier:   cfg.Pipeline.RetryMultiplier,
	}
}

func newAnalyzer(cfg *config.Config) (*analysis.Invoker, error) {
	if err := config.ValidateAIConfig(cfg); err != nil {
		return nil, err
	}

	client, err := ai.New(ai.Options{
		Provider:   ai.Provider(cfg.AI.Provider),
		Endpoint:   cfg.AI.Endpoint,
		APIVersion: cfg.AI.APIVersion,
		APIKey:     cfg.AI.APIKey,
		Model:      cfg.AI.Model,
		Timeout:    cfg.AI.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ai client: %w", err)
	}

	var resolver ai.Resolver
	if cfg.AI.SettingsFile != "" {
		overrides, err := ai.LoadSettingsFile(cfg.AI.SettingsFile)
		if err != nil {
			return nil, err
		}
		resolver.Overrides = overrides
	}

	return analysis.NewInvoker(client, resolver, retryPolicy(cfg))
}

func newJiraClient(cfg *config.Config) (*jira.Client, error) {
	if err := config.ValidateJiraConfig(cfg); err != nil {
		return nil, err
	}
	return jira.NewClient(jira.Config{
		URL:      cfg.Jira.URL,
		Username: cfg.Jira.Username,
		Token:    cfg.Jira.Token,
	})
}

// newPublisher returns nil when publishing is off.
func newPublisher(cfg *config.Config, enabled bool, trackerURL string) (*enrich.Publisher, error) {
	if !enabled {
		return nil, nil
	}
	if err := config.ValidateConfluenceConfig(cfg); err != nil {
		return nil, err
	}

	store, err := confluence.NewClient(confluence.Config{
		URL:               cfg.Confluence.URL,
		Username:          cfg.Confluence.Username,
		Token:             cfg.Confluence.Token,
		RequestsPerSecond: cfg.Confluence.RequestsPerSecond,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize confluence client: %w", err)
	}

	return &enrich.Publisher{
		Store:    store,
		Renderer: publish.Renderer{TrackerURL: trackerURL},
		Space:    cfg.Confluence.Space,
		ParentID: cfg.Confluence.ParentID,
	}, nil
}

// newSinks returns the dump targets. A misconfigured S3 sink is logged and
// skipped so that it never fails the job.
func newSinks(ctx context.Context, cfg *config.Config, enabled bool) ([]storage.Sink, error) {
	if !enabled {
		return nil, nil
	}
	formats, err := storage.ParseFormats(cfg.Output.Formats)
	if err != nil {
		return nil, err
	}

	sinks := []storage.Sink{storage.LocalSink{Dir: cfg.Output.Path, Formats: formats}}
	if cfg.Output.S3Bucket != "" {
		s3Sink, err := storage.NewS3Sink(ctx, cfg.Output.S3Bucket, cfg.Output.S3Prefix, cfg.Output.AWSRegion, formats)
		if err != nil {
			logging.Warn("s3 output disabled", "bucket", cfg.Output.S3Bucket, "error", err)
		} else {
			sinks = append(sinks, s3Sink)
		}
	}
	return sinks, nil
}
