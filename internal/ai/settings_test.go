package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinParams(t *testing.T) {
	tests := []struct {
		name      string
		model     string
		wantTemp  *float64
		wantTopP  *float64
		wantToken int64
	}{
		{name: "constrained model omits sampling", model: "o4-mini", wantToken: 800},
		{name: "o3 family", model: "o3-mini-2025", wantToken: 800},
		{name: "gpt-4 family", model: "gpt-4o", wantTemp: ptr(0.3), wantTopP: ptr(0.9), wantToken: 800},
		{name: "gpt4 spelling", model: "GPT4-turbo", wantTemp: ptr(0.3), wantTopP: ptr(0.9), wantToken: 800},
		{name: "unknown model", model: "mistral-large", wantTemp: ptr(0.7), wantToken: 800},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := BuiltinParams(tt.model)
			require.NotNil(t, p.MaxCompletionTokens)
			assert.Equal(t, tt.wantToken, *p.MaxCompletionTokens)
			assert.Equal(t, tt.wantTemp, p.Temperature)
			assert.Equal(t, tt.wantTopP, p.TopP)
		})
	}
}

func TestResolverLayersOverrides(t *testing.T) {
	overrides, err := ParseSettings([]byte(`
models:
  GPT-4o:
    temperature: 0.1
    max_completion_tokens: 1200
`))
	require.NoError(t, err)

	env := map[string]string{
		"AZURE_OPENAI_GPT_4O_TOP_P":                 "0.5",
		"AZURE_OPENAI_GPT_4O_PRESENCE_PENALTY":      "none",
		"AZURE_OPENAI_GPT_4O_MAX_COMPLETION_TOKENS": "",
	}
	r := Resolver{Overrides: overrides, Getenv: func(k string) string { return env[k] }}

	p, err := r.Resolve("gpt-4o")
	require.NoError(t, err)

	assert.Equal(t, int64(1200), *p.MaxCompletionTokens)
	assert.Equal(t, 0.1, *p.Temperature)
	assert.Equal(t, 0.5, *p.TopP)
	assert.Nil(t, p.PresencePenalty)
	assert.Equal(t, 0.2, *p.FrequencyPenalty)
}

func TestResolverRejectsBadEnv(t *testing.T) {
	r := Resolver{Getenv: func(k string) string {
		if k == "AZURE_OPENAI_O4_MINI_TEMPERATURE" {
			return "warm"
		}
		return ""
	}}

	_, err := r.Resolve("o4-mini")
	assert.Error(t, err)
}

func TestEnvName(t *testing.T) {
	assert.Equal(t, "GPT_4O_MINI", envName("gpt-4o-mini"))
	assert.Equal(t, "O4_MINI", envName("o4-mini"))
}
