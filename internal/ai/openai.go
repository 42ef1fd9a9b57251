package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/azure"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

// OpenAIClient talks to OpenAI or an Azure OpenAI deployment.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewAzureClient creates a client for an Azure OpenAI deployment. The
// deployment name doubles as the model name.
func NewAzureClient(endpoint, apiVersion, apiKey, deployment string, timeout time.Duration, opts ...option.RequestOption) *OpenAIClient {
	base := []option.RequestOption{
		azure.WithEndpoint(endpoint, apiVersion),
		azure.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0),
	}
	return &OpenAIClient{
		client: openai.NewClient(append(base, opts...)...),
		model:  deployment,
	}
}

// NewOpenAIClient creates a client for the public OpenAI API.
func NewOpenAIClient(apiKey, model string, timeout time.Duration, opts ...option.RequestOption) *OpenAIClient {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0),
	}
	return &OpenAIClient{
		client: openai.NewClient(append(base, opts...)...),
		model:  model,
	}
}

// Model returns the deployment or model name.
func (c *OpenAIClient) Model() string {
	return c.model
}

// Complete sends req as a chat completion.
func (c *OpenAIClient) Complete(ctx context.Context, req Request) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.System),
			openai.UserMessage(req.User),
		},
	}

	p := req.Params
	if p.MaxCompletionTokens != nil {
		params.MaxCompletionTokens = openai.Int(*p.MaxCompletionTokens)
	}
	if p.Temperature != nil {
		params.Temperature = openai.Float(*p.Temperature)
	}
	if p.TopP != nil {
		params.TopP = openai.Float(*p.TopP)
	}
	if p.PresencePenalty != nil {
		params.PresencePenalty = openai.Float(*p.PresencePenalty)
	}
	if p.FrequencyPenalty != nil {
		params.FrequencyPenalty = openai.Float(*p.FrequencyPenalty)
	}
	if req.JSON {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", classifyOpenAIError(err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Message.Content, nil
}

func classifyOpenAIError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) && isAuthStatus(apiErr.StatusCode) {
		return fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return fmt.Errorf("chat completion failed: %w", err)
}

func isAuthStatus(code int) bool {
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
