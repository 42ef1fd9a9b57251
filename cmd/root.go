package cmd

import (
	"context"
	"io"

	"github.com/danielolaszy/relnotes/internal/config"
	"github.com/danielolaszy/relnotes/internal/logging"
	"github.com/spf13/cobra"
)

var (
	// appConfig is loaded once before any subcommand runs.
	appConfig *config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:   "relnotes",
	Short: "Relnotes turns tracker issues into release documentation",
	Long: `Relnotes is a CLI tool that fetches the issues of a release from Jira or GitHub,
asks an AI service to write an executive and technical summary for each one,
and optionally publishes one Confluence page per issue.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		envFile, _ := cmd.Flags().GetString("env-file")
		cfg, err := config.LoadConfig(envFile)
		if err != nil {
			return err
		}

		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Log.Level = level
		}
		if format, _ := cmd.Flags().GetString("log-format"); format != "" {
			cfg.Log.Format = format
		}
		if file, _ := cmd.Flags().GetString("log-file"); file != "" {
			cfg.Log.File = file
		}
		logCloser = logging.Init(logging.Options{
			Level:  logging.LogLevel(cfg.Log.Level),
			Format: logging.Format(cfg.Log.Format),
			File:   cfg.Log.File,
		})

		appConfig = cfg
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if logCloser != nil {
			return logCloser.Close()
		}
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// Cancelling ctx stops a running job.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	// Add persistent flags that will be available to all commands
	rootCmd.PersistentFlags().String("env-file", ".env", "dotenv file to load before reading the environment")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "", "log format (text, json); detected from the terminal when empty")
	rootCmd.PersistentFlags().String("log-file", "", "also write logs to this rotating file")

	rootCmd.AddCommand(enrichCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(checkCmd)
}
