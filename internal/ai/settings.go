package ai

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Params are the execution parameters sent with a request. A nil field is
// not sent at all.
type Params struct {
	MaxCompletionTokens *int64   `yaml:"max_completion_tokens,omitempty" json:"max_completion_tokens,omitempty"`
	Temperature         *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty"`
	TopP                *float64 `yaml:"top_p,omitempty" json:"top_p,omitempty"`
	PresencePenalty     *float64 `yaml:"presence_penalty,omitempty" json:"presence_penalty,omitempty"`
	FrequencyPenalty    *float64 `yaml:"frequency_penalty,omitempty" json:"frequency_penalty,omitempty"`
}

const defaultMaxTokens = 800

// constrainedFamilies accept only a token limit.
var constrainedFamilies = []string{"o4-mini", "o3", "o1"}

// BuiltinParams returns the built-in parameters for a deployment name.
func BuiltinParams(model string) Params {
	name := strings.ToLower(model)
	for _, family := range constrainedFamilies {
		if strings.HasPrefix(name, family) {
			return Params{MaxCompletionTokens: ptr(int64(defaultMaxTokens))}
		}
	}
	if strings.Contains(name, "gpt-4") || strings.Contains(name, "gpt4") {
		return Params{
			MaxCompletionTokens: ptr(int64(defaultMaxTokens)),
			Temperature:         ptr(0.3),
			TopP:                ptr(0.9),
			PresencePenalty:     ptr(0.1),
			FrequencyPenalty:    ptr(0.2),
		}
	}
	return Params{
		MaxCompletionTokens: ptr(int64(defaultMaxTokens)),
		Temperature:         ptr(0.7),
	}
}

// settingsFile is the layout of the model settings YAML file:
//
//	models:
//	  gpt-4o:
//	    temperature: 0.2
type settingsFile struct {
	Models map[string]Params `yaml:"models"`
}

// LoadSettingsFile reads per-model overrides from a YAML file.
func LoadSettingsFile(path string) (map[string]Params, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model settings: %w", err)
	}
	return ParseSettings(data)
}

// ParseSettings decodes the YAML model settings document.
func ParseSettings(data []byte) (map[string]Params, error) {
	var f settingsFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse model settings: %w", err)
	}
	out := make(map[string]Params, len(f.Models))
	for name, p := range f.Models {
		out[strings.ToLower(name)] = p
	}
	return out, nil
}

// Resolver layers file overrides and environment overrides on top of the
// built-in table.
type Resolver struct {
	Overrides map[string]Params
	Getenv    func(string) string
}

// Resolve returns the parameters for model.
func (r Resolver) Resolve(model string) (Params, error) {
	p := BuiltinParams(model)
	if o, ok := r.Overrides[strings.ToLower(model)]; ok {
		p = p.merge(o)
	}

	getenv := r.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	prefix := "AZURE_OPENAI_" + envName(model) + "_"

	var err error
	if p.MaxCompletionTokens, err = envInt(getenv, prefix+"MAX_COMPLETION_TOKENS", p.MaxCompletionTokens); err != nil {
		return Params{}, err
	}
	floats := []struct {
		name string
		dst  **float64
	}{
		{"TEMPERATURE", &p.Temperature},
		{"TOP_P", &p.TopP},
		{"PRESENCE_PENALTY", &p.PresencePenalty},
		{"FREQUENCY_PENALTY", &p.FrequencyPenalty},
	}
	for _, f := range floats {
		if *f.dst, err = envFloat(getenv, prefix+f.name, *f.dst); err != nil {
			return Params{}, err
		}
	}
	return p, nil
}

func (p Params) merge(o Params) Params {
	if o.MaxCompletionTokens != nil {
		p.MaxCompletionTokens = o.MaxCompletionTokens
	}
	if o.Temperature != nil {
		p.Temperature = o.Temperature
	}
	if o.TopP != nil {
		p.TopP = o.TopP
	}
	if o.PresencePenalty != nil {
		p.PresencePenalty = o.PresencePenalty
	}
	if o.FrequencyPenalty != nil {
		p.FrequencyPenalty = o.FrequencyPenalty
	}
	return p
}

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]+`)

func envName(model string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToUpper(model), "_"), "_")
}

// "none" removes a parameter.
func envInt(getenv func(string) string, key string, cur *int64) (*int64, error) {
	v := strings.TrimSpace(getenv(key))
	switch {
	case v == "":
		return cur, nil
	case strings.EqualFold(v, "none"):
		return nil, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &n, nil
}

func envFloat(getenv func(string) string, key string, cur *float64) (*float64, error) {
	v := strings.TrimSpace(getenv(key))
	switch {
	case v == "":
		return cur, nil
	case strings.EqualFold(v, "none"):
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", key, err)
	}
	return &f, nil
}

func ptr[T any](v T) *T {
	return &v
}
