// Package config provides centralized configuration management for the application.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration parameters for the application.
type Config struct {
	Jira       JiraConfig
	Confluence ConfluenceConfig
	GitHub     GitHubConfig
	AI         AIConfig
	Pipeline   PipelineConfig
	Output     OutputConfig
	Log        LogConfig
}

// JiraConfig holds Jira specific configuration.
type JiraConfig struct {
	URL        string
	Username   string
	Token      string
	MaxResults int
}

// ConfluenceConfig holds the document store configuration.
type ConfluenceConfig struct {
	URL               string
	Username          string
	Token             string
	Space             string
	ParentID          string
	RequestsPerSecond float64
}

// GitHubConfig holds GitHub specific configuration.
type GitHubConfig struct {
	Token  string
	Domain string
}

// AIConfig selects and configures the AI service.
type AIConfig struct {
	Provider     string
	Endpoint     string
	APIVersion   string
	APIKey       string
	Model        string
	Timeout      time.Duration
	SettingsFile string
}

// PipelineConfig tunes batching, concurrency and retries.
type PipelineConfig struct {
	MaxConcurrentCalls int
	BatchSize          int
	BatchDelay         time.Duration
	RetryAttempts      int
	RetryDelay         time.Duration
	RetryMultiplier    float64
	JobTimeout         time.Duration
}

// OutputConfig controls local dumps and page publishing.
type OutputConfig struct {
	CreateLocalFiles      bool
	Path                  string
	Formats               string
	S3Bucket              string
	S3Prefix              string
	AWSRegion             string
	CreateConfluencePages bool
}

// LogConfig controls the log sink.
type LogConfig struct {
	Level  string
	Format string
	File   string
}

// bindings maps config keys to environment variables; later names are
// aliases.
var bindings = map[string][]string{
	"jira.url":         {"ATLASSIAN_URL", "JIRA_URL"},
	"jira.username":    {"ATLASSIAN_USERNAME", "JIRA_USERNAME"},
	"jira.token":       {"ATLASSIAN_API_KEY", "JIRA_TOKEN"},
	"jira.max_results": {"MAX_RESULTS"},

	"confluence.url":                 {"CONFLUENCE_URL"},
	"confluence.username":            {"CONFLUENCE_USERNAME"},
	"confluence.token":               {"CONFLUENCE_API_KEY"},
	"confluence.space":               {"CONFLUENCE_SPACE", "CONFLUENCE_SPACE_KEY"},
	"confluence.parent_id":           {"CONFLUENCE_PARENT_ID", "CONFLUENCE_PARENT_PAGE_ID", "CONFLUENCE_PARENT"},
	"confluence.requests_per_second": {"CONFLUENCE_REQUESTS_PER_SECOND"},

	"github.token":  {"GITHUB_TOKEN"},
	"github.domain": {"GITHUB_DOMAIN"},

	"ai.provider":       {"AI_PROVIDER"},
	"ai.timeout":        {"AI_REQUEST_TIMEOUT", "AZURE_OPENAI_REQUEST_TIMEOUT"},
	"ai.settings_file":  {"MODEL_SETTINGS_FILE"},
	"azure.endpoint":    {"AZURE_OPENAI_ENDPOINT"},
	"azure.api_version": {"AZURE_OPENAI_CHAT_COMPLETIONS_API_VERSION"},
	"azure.key":         {"AZURE_OPENAI_KEY"},
	"azure.deployment":  {"AZURE_OPENAI_GPT_DEPLOYMENT"},
	"openai.key":        {"OPENAI_API_KEY"},
	"openai.model":      {"OPENAI_MODEL"},
	"anthropic.key":     {"ANTHROPIC_API_KEY"},
	"anthropic.model":   {"ANTHROPIC_MODEL"},

	"pipeline.max_concurrent_calls": {"MAX_CONCURRENT_AI_CALLS"},
	"pipeline.batch_size":           {"AI_BATCH_SIZE"},
	"pipeline.batch_delay":          {"AI_BATCH_DELAY"},
	"pipeline.retry_attempts":       {"AI_RETRY_ATTEMPTS"},
	"pipeline.retry_delay":          {"AI_RETRY_DELAY"},
	"pipeline.retry_multiplier":     {"AI_RETRY_MULTIPLIER"},
	"pipeline.job_timeout":          {"JOB_TIMEOUT"},

	"output.create_local_files":      {"CREATE_LOCAL_FILES"},
	"output.path":                    {"OUTPUT_FILE_PATH"},
	"output.formats":                 {"OUTPUT_FORMATS"},
	"output.s3_bucket":               {"OUTPUT_S3_BUCKET"},
	"output.s3_prefix":               {"OUTPUT_S3_PREFIX"},
	"output.aws_region":              {"AWS_REGION"},
	"output.create_confluence_pages": {"CREATE_CONFLUENCE_PAGES"},

	"log.level":  {"LOG_LEVEL"},
	"log.format": {"LOG_FORMAT"},
	"log.file":   {"LOG_FILE"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("jira.max_results", 50)
	v.SetDefault("confluence.requests_per_second", 5)
	v.SetDefault("github.domain", "github.com")
	v.SetDefault("ai.provider", "azure")
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("azure.api_version", "2024-10-21")
	v.SetDefault("anthropic.model", "claude-sonnet-4-5")
	v.SetDefault("pipeline.max_concurrent_calls", 5)
	v.SetDefault("pipeline.batch_size", 10)
	v.SetDefault("pipeline.batch_delay", "500ms")
	v.SetDefault("pipeline.retry_attempts", 3)
	v.SetDefault("pipeline.retry_delay", "1s")
	v.SetDefault("pipeline.retry_multiplier", 2.0)
	v.SetDefault("pipeline.job_timeout", "15m")
	v.SetDefault("output.path", "output")
	v.SetDefault("output.formats", "json,md")
	v.SetDefault("log.level", "info")
}

// LoadConfig loads configuration from the environment. Each existing file in
// envFiles is read first as a dotenv file; variables that are already set
// take precedence.
func LoadConfig(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, names := range bindings {
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	setDefaults(v)

	var errs []error
	duration := func(key string) time.Duration {
		d, err := parseDuration(v.GetString(key))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", envs(key), err))
		}
		return d
	}

	cfg := &Config{
		Jira: JiraConfig{
			URL:        strings.TrimRight(v.GetString("jira.url"), "/"),
			Username:   v.GetString("jira.username"),
			Token:      v.GetString("jira.token"),
			MaxResults: v.GetInt("jira.max_results"),
		},
		Confluence: ConfluenceConfig{
			URL:               strings.TrimRight(firstNonEmpty(v.GetString("confluence.url"), v.GetString("jira.url")), "/"),
			Username:          firstNonEmpty(v.GetString("confluence.username"), v.GetString("jira.username")),
			Token:             firstNonEmpty(v.GetString("confluence.token"), v.GetString("jira.token")),
			Space:             v.GetString("confluence.space"),
			ParentID:          v.GetString("confluence.parent_id"),
			RequestsPerSecond: v.GetFloat64("confluence.requests_per_second"),
		},
		GitHub: GitHubConfig{
			Token:  v.GetString("github.token"),
			Domain: firstNonEmpty(v.GetString("github.domain"), "github.com"),
		},
		AI: aiConfig(v),
		Pipeline: PipelineConfig{
			MaxConcurrentCalls: v.GetInt("pipeline.max_concurrent_calls"),
			BatchSize:          v.GetInt("pipeline.batch_size"),
			BatchDelay:         duration("pipeline.batch_delay"),
			RetryAttempts:      v.GetInt("pipeline.retry_attempts"),
			RetryDelay:         duration("pipeline.retry_delay"),
			RetryMultiplier:    v.GetFloat64("pipeline.retry_multiplier"),
			JobTimeout:         duration("pipeline.job_timeout"),
		},
		Output: OutputConfig{
			CreateLocalFiles:      v.GetBool("output.create_local_files"),
			Path:                  v.GetString("output.path"),
			Formats:               v.GetString("output.formats"),
			S3Bucket:              v.GetString("output.s3_bucket"),
			S3Prefix:              v.GetString("output.s3_prefix"),
			AWSRegion:             v.GetString("output.aws_region"),
			CreateConfluencePages: v.GetBool("output.create_confluence_pages"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			File:   v.GetString("log.file"),
		},
	}
	cfg.AI.Timeout = duration("ai.timeout")

	if err := validatePipeline(cfg.Pipeline); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

func aiConfig(v *viper.Viper) AIConfig {
	c := AIConfig{
		Provider:     strings.ToLower(v.GetString("ai.provider")),
		SettingsFile: v.GetString("ai.settings_file"),
	}
	switch c.Provider {
	case "openai":
		c.APIKey = v.GetString("openai.key")
		c.Model = v.GetString("openai.model")
	case "anthropic":
		c.APIKey = v.GetString("anthropic.key")
		c.Model = v.GetString("anthropic.model")
	default:
		c.Endpoint = v.GetString("azure.endpoint")
		c.APIVersion = v.GetString("azure.api_version")
		c.APIKey = v.GetString("azure.key")
		c.Model = v.GetString("azure.deployment")
	}
	return c
}

// parseDuration accepts Go durations ("500ms") and bare seconds ("0.5").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

func validatePipeline(p PipelineConfig) error {
	var invalid []string
	if p.MaxConcurrentCalls < 1 {
		invalid = append(invalid, "MAX_CONCURRENT_AI_CALLS")
	}
	if p.BatchSize < 1 {
		invalid = append(invalid, "AI_BATCH_SIZE")
	}
	if p.RetryAttempts < 1 {
		invalid = append(invalid, "AI_RETRY_ATTEMPTS")
	}
	if p.RetryMultiplier < 1 {
		invalid = append(invalid, "AI_RETRY_MULTIPLIER")
	}
	if len(invalid) > 0 {
		return fmt.Errorf("invalid environment variables: %v", invalid)
	}
	return nil
}

// ValidateJiraConfig validates Jira-specific configuration.
func ValidateJiraConfig(config *Config) error {
	var missingVars []string

	if config.Jira.URL == "" {
		missingVars = append(missingVars, "ATLASSIAN_URL")
	}
	if config.Jira.Username == "" {
		missingVars = append(missingVars, "ATLASSIAN_USERNAME")
	}
	if config.Jira.Token == "" {
		missingVars = append(missingVars, "ATLASSIAN_API_KEY")
	}

	return missing(missingVars)
}

// ValidateConfluenceConfig validates the document store configuration.
func ValidateConfluenceConfig(config *Config) error {
	var missingVars []string

	if config.Confluence.URL == "" {
		missingVars = append(missingVars, "CONFLUENCE_URL")
	}
	if config.Confluence.Username == "" {
		missingVars = append(missingVars, "CONFLUENCE_USERNAME")
	}
	if config.Confluence.Token == "" {
		missingVars = append(missingVars, "CONFLUENCE_API_KEY")
	}
	if config.Confluence.Space == "" {
		missingVars = append(missingVars, "CONFLUENCE_SPACE")
	}

	return missing(missingVars)
}

// ValidateGitHubConfig validates GitHub-specific configuration.
func ValidateGitHubConfig(config *Config) error {
	if config.GitHub.Token == "" {
		return missing([]string{"GITHUB_TOKEN"})
	}
	return nil
}

// ValidateAIConfig validates the settings of the selected AI provider.
func ValidateAIConfig(config *Config) error {
	var missingVars []string

	switch config.AI.Provider {
	case "openai":
		if config.AI.APIKey == "" {
			missingVars = append(missingVars, "OPENAI_API_KEY")
		}
		if config.AI.Model == "" {
			missingVars = append(missingVars, "OPENAI_MODEL")
		}
	case "anthropic":
		if config.AI.APIKey == "" {
			missingVars = append(missingVars, "ANTHROPIC_API_KEY")
		}
	case "azure", "":
		if config.AI.Endpoint == "" {
			missingVars = append(missingVars, "AZURE_OPENAI_ENDPOINT")
		}
		if config.AI.APIKey == "" {
			missingVars = append(missingVars, "AZURE_OPENAI_KEY")
		}
		if config.AI.Model == "" {
			missingVars = append(missingVars, "AZURE_OPENAI_GPT_DEPLOYMENT")
		}
	default:
		return fmt.Errorf("unsupported AI_PROVIDER %q", config.AI.Provider)
	}

	return missing(missingVars)
}

func missing(vars []string) error {
	if len(vars) > 0 {
		return fmt.Errorf("missing required environment variables: %v", vars)
	}
	return nil
}

func envs(key string) string {
	return strings.Join(bindings[key], "/")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
