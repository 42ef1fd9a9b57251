package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, names := range bindings {
		for _, name := range names {
			t.Setenv(name, "")
		}
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5, config.Pipeline.MaxConcurrentCalls)
	assert.Equal(t, 10, config.Pipeline.BatchSize)
	assert.Equal(t, 500*time.Millisecond, config.Pipeline.BatchDelay)
	assert.Equal(t, 3, config.Pipeline.RetryAttempts)
	assert.Equal(t, time.Second, config.Pipeline.RetryDelay)
	assert.Equal(t, 2.0, config.Pipeline.RetryMultiplier)
	assert.Equal(t, 15*time.Minute, config.Pipeline.JobTimeout)
	assert.Equal(t, 60*time.Second, config.AI.Timeout)
	assert.Equal(t, "azure", config.AI.Provider)
	assert.Equal(t, "github.com", config.GitHub.Domain)
	assert.Equal(t, 50, config.Jira.MaxResults)
	assert.Equal(t, "json,md", config.Output.Formats)
	assert.False(t, config.Output.CreateConfluencePages)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("ATLASSIAN_URL", "https://example.atlassian.net/")
	t.Setenv("ATLASSIAN_USERNAME", "user@example.com")
	t.Setenv("ATLASSIAN_API_KEY", "secret")
	t.Setenv("CONFLUENCE_SPACE_KEY", "REL")
	t.Setenv("AI_BATCH_DELAY", "0.25")
	t.Setenv("AI_RETRY_DELAY", "2s")
	t.Setenv("JOB_TIMEOUT", "900")
	t.Setenv("MAX_CONCURRENT_AI_CALLS", "8")
	t.Setenv("CREATE_CONFLUENCE_PAGES", "true")

	config, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "https://example.atlassian.net", config.Jira.URL)
	// Confluence falls back to the Jira site and credentials.
	assert.Equal(t, "https://example.atlassian.net", config.Confluence.URL)
	assert.Equal(t, "user@example.com", config.Confluence.Username)
	assert.Equal(t, "secret", config.Confluence.Token)
	assert.Equal(t, "REL", config.Confluence.Space)
	assert.Equal(t, 250*time.Millisecond, config.Pipeline.BatchDelay)
	assert.Equal(t, 2*time.Second, config.Pipeline.RetryDelay)
	assert.Equal(t, 15*time.Minute, config.Pipeline.JobTimeout)
	assert.Equal(t, 8, config.Pipeline.MaxConcurrentCalls)
	assert.True(t, config.Output.CreateConfluencePages)
}

func TestLoadConfigEnvFile(t *testing.T) {
	clearEnv(t)
	// godotenv sets variables directly; restore them after the test.
	t.Setenv("GITHUB_TOKEN", "")
	t.Setenv("GITHUB_DOMAIN", "")
	require.NoError(t, os.Unsetenv("GITHUB_TOKEN"))
	require.NoError(t, os.Unsetenv("GITHUB_DOMAIN"))

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("GITHUB_TOKEN=file-token\nGITHUB_DOMAIN=github.example.com\n"), 0o600))

	config, err := LoadConfig(path, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "file-token", config.GitHub.Token)
	assert.Equal(t, "github.example.com", config.GitHub.Domain)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "Zero concurrency", env: map[string]string{"MAX_CONCURRENT_AI_CALLS": "0"}},
		{name: "Zero batch size", env: map[string]string{"AI_BATCH_SIZE": "0"}},
		{name: "Shrinking multiplier", env: map[string]string{"AI_RETRY_MULTIPLIER": "0.5"}},
		{name: "Unparseable delay", env: map[string]string{"AI_BATCH_DELAY": "soon"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			config, err := LoadConfig()
			assert.Error(t, err)
			assert.Nil(t, config)
		})
	}
}

func TestLoadAIConfig(t *testing.T) {
	tests := []struct {
		name      string
		env       map[string]string
		wantModel string
		wantKey   string
		wantErr   bool
	}{
		{
			name: "Azure",
			env: map[string]string{
				"AZURE_OPENAI_ENDPOINT":       "https://example.openai.azure.com",
				"AZURE_OPENAI_KEY":            "azure-key",
				"AZURE_OPENAI_GPT_DEPLOYMENT": "gpt-4o",
			},
			wantModel: "gpt-4o",
			wantKey:   "azure-key",
		},
		{
			name: "OpenAI",
			env: map[string]string{
				"AI_PROVIDER":    "openai",
				"OPENAI_API_KEY": "sk-test",
				"OPENAI_MODEL":   "gpt-4o-mini",
			},
			wantModel: "gpt-4o-mini",
			wantKey:   "sk-test",
		},
		{
			name: "Anthropic uses default model",
			env: map[string]string{
				"AI_PROVIDER":       "Anthropic",
				"ANTHROPIC_API_KEY": "ant-key",
			},
			wantModel: "claude-sonnet-4-5",
			wantKey:   "ant-key",
		},
		{
			name:    "Azure missing deployment",
			env:     map[string]string{"AZURE_OPENAI_ENDPOINT": "https://example.openai.azure.com"},
			wantErr: true,
		},
		{
			name:    "Unknown provider",
			env:     map[string]string{"AI_PROVIDER": "watson"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			config, err := LoadConfig()
			require.NoError(t, err)

			err = ValidateAIConfig(config)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantModel, config.AI.Model)
			assert.Equal(t, tt.wantKey, config.AI.APIKey)
		})
	}
}

func TestValidateJiraConfig(t *testing.T) {
	tests := []struct {
		name     string
		url      string
		username string
		token    string
		wantErr  bool
	}{
		{
			name:     "All fields present",
			url:      "https://jira.example.com",
			username: "test-user",
			token:    "test-token",
			wantErr:  false,
		},
		{
			name:     "Missing URL",
			url:      "",
			username: "test-user",
			token:    "test-token",
			wantErr:  true,
		},
		{
			name:     "Missing username",
			url:      "https://jira.example.com",
			username: "",
			token:    "test-token",
			wantErr:  true,
		},
		{
			name:     "Missing token",
			url:      "https://jira.example.com",
			username: "test-user",
			token:    "",
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{
				Jira: JiraConfig{
					URL:      tt.url,
					Username: tt.username,
					Token:    tt.token,
				},
			}

			err := ValidateJiraConfig(config)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateConfluenceConfig(t *testing.T) {
	config := &Config{Confluence: ConfluenceConfig{
		URL:      "https://example.atlassian.net",
		Username: "user",
		Token:    "token",
	}}

	err := ValidateConfluenceConfig(config)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CONFLUENCE_SPACE")

	config.Confluence.Space = "REL"
	assert.NoError(t, ValidateConfluenceConfig(config))
}

func TestValidateGitHubConfig(t *testing.T) {
	assert.Error(t, ValidateGitHubConfig(&Config{}))
	assert.NoError(t, ValidateGitHubConfig(&Config{GitHub: GitHubConfig{Token: "t"}}))
}
