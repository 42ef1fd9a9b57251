package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicClient talks to the Anthropic messages API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

// NewAnthropicClient creates a client for model.
func NewAnthropicClient(apiKey, model string, timeout time.Duration, opts ...option.RequestOption) *AnthropicClient {
	base := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(0),
	}
	return &AnthropicClient{
		client: anthropic.NewClient(append(base, opts...)...),
		model:  model,
	}
}

// Model returns the model name.
func (c *AnthropicClient) Model() string {
	return c.model
}

// Complete sends req as a single user message. Penalty parameters have no
// equivalent in the messages API and are dropped.
func (c *AnthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	maxTokens := int64(defaultMaxTokens)
	if req.Params.MaxCompletionTokens != nil {
		maxTokens = *req.Params.MaxCompletionTokens
	}

	user := req.User
	if req.JSON {
		user += "\n\nRespond with a single JSON object and nothing else."
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	if req.Params.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Params.Temperature)
	} else if req.Params.TopP != nil {
		params.TopP = anthropic.Float(*req.Params.TopP)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) && isAuthStatus(apiErr.StatusCode) {
			return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
		}
		return "", fmt.Errorf("message request failed: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	return text.String(), nil
}
