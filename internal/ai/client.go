// Package ai wraps the chat completion services used to analyse issues.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnauthorized is returned when the service rejects the credentials.
// Retrying cannot help, so callers treat it as fatal.
var ErrUnauthorized = errors.New("ai service rejected credentials")

// Request is a single prompt sent to a model.
type Request struct {
	System string
	User   string
	Params Params
	// JSON asks the service for a JSON object response where supported.
	JSON bool
}

// Client completes a prompt and returns the model's raw text.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	// Model returns the deployment or model name used for settings lookup.
	Model() string
}

// Provider names a Client implementation.
type Provider string

const (
	ProviderAzure     Provider = "azure"
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// Options select and configure a Client.
type Options struct {
	Provider Provider
	// Endpoint is the Azure resource endpoint. Ignored by other providers.
	Endpoint   string
	APIVersion string
	APIKey     string
	// Model is the model name, or the deployment name on Azure.
	Model   string
	Timeout time.Duration
}

// New builds the Client for o.Provider.
func New(o Options) (Client, error) {
	if o.APIKey == "" || o.Model == "" {
		return nil, fmt.Errorf("ai provider %q requires an api key and a model", o.Provider)
	}
	switch o.Provider {
	case ProviderAzure, "":
		if o.Endpoint == "" {
			return nil, errors.New("azure provider requires an endpoint")
		}
		return NewAzureClient(o.Endpoint, o.APIVersion, o.APIKey, o.Model, o.Timeout), nil
	case ProviderOpenAI:
		return NewOpenAIClient(o.APIKey, o.Model, o.Timeout), nil
	case ProviderAnthropic:
		return NewAnthropicClient(o.APIKey, o.Model, o.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown ai provider %q", o.Provider)
	}
}
