package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/danielolaszy/relnotes/internal/config"
	"github.com/danielolaszy/relnotes/internal/github"
	"github.com/danielolaszy/relnotes/internal/logging"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// concern is one integration checked by the check command.
type concern struct {
	Name     string
	Validate func(*config.Config) error
	// Probe verifies the credentials against the live service. Optional.
	Probe func(ctx context.Context, cfg *config.Config) (string, error)
}

// concernStatus is the outcome of checking one concern.
type concernStatus struct {
	Name   string
	Ready  bool
	Detail string
}

var concerns = []concern{
	{Name: "jira", Validate: config.ValidateJiraConfig, Probe: probeJira},
	{Name: "ai", Validate: config.ValidateAIConfig},
	{Name: "confluence", Validate: config.ValidateConfluenceConfig},
	{Name: "github", Validate: config.ValidateGitHubConfig, Probe: probeGitHub},
}

func probeJira(ctx context.Context, cfg *config.Config) (string, error) {
	client, err := newJiraClient(cfg)
	if err != nil {
		return "", err
	}
	name, err := client.Self(ctx)
	if err != nil {
		return "", err
	}
	return "authenticated as " + name, nil
}

func probeGitHub(ctx context.Context, cfg *config.Config) (string, error) {
	client, err := github.NewClient(cfg.GitHub)
	if err != nil {
		return "", err
	}
	login, err := client.Self(ctx)
	if err != nil {
		return "", err
	}
	return "authenticated as " + login, nil
}

// checkConcerns validates each concern and probes the ready ones.
func checkConcerns(ctx context.Context, cfg *config.Config, list []concern, probeTimeout time.Duration) []concernStatus {
	statuses := make([]concernStatus, 0, len(list))
	for _, c := range list {
		st := concernStatus{Name: c.Name}
		if err := c.Validate(cfg); err != nil {
			st.Detail = err.Error()
			statuses = append(statuses, st)
			continue
		}
		st.Ready = true
		st.Detail = "configured"
		if c.Probe != nil {
			pctx, cancel := context.WithTimeout(ctx, probeTimeout)
			detail, err := c.Probe(pctx, cfg)
			cancel()
			if err != nil {
				logging.Debug("probe failed", "concern", c.Name, "error", err)
				st.Ready = false
				st.Detail = err.Error()
			} else {
				st.Detail = detail
			}
		}
		statuses = append(statuses, st)
	}
	return statuses
}

func printStatuses(out io.Writer, statuses []concernStatus) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	for _, st := range statuses {
		mark := green("ready")
		if !st.Ready {
			mark = red("not ready")
		}
		fmt.Fprintf(out, "%-11s %s  %s\n", st.Name, mark, st.Detail)
	}
}

// checkCmd reports which integrations are configured and reachable.
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check configuration and credentials",
	Long: `Check validates the environment for each integration (jira, ai, confluence and
github) and verifies the Jira and GitHub credentials with a lookup of the
authenticated user. Jira must be ready for the command to succeed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		statuses := checkConcerns(cmd.Context(), appConfig, concerns, 10*time.Second)
		printStatuses(cmd.OutOrStdout(), statuses)
		for _, st := range statuses {
			if st.Name == "jira" && !st.Ready {
				return fmt.Errorf("jira is not ready: %s", st.Detail)
			}
		}
		return nil
	},
}
