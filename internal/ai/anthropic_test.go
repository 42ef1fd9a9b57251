package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnthropicClientComplete(t *testing.T) {
	var got map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
  "id": "msg_1",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-5",
  "content": [{"type": "text", "text": "{\"fix\":"}, {"type": "text", "text": "\"y\"}"}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 10, "output_tokens": 5}
}`)
	}))
	defer server.Close()

	client := NewAnthropicClient("key", "claude-sonnet-4-5", 5*time.Second, option.WithBaseURL(server.URL))
	text, err := client.Complete(context.Background(), Request{
		System: "system",
		User:   "user",
		Params: BuiltinParams("claude-sonnet-4-5"),
	})

	require.NoError(t, err)
	assert.Equal(t, `{"fix":"y"}`, text)
	assert.EqualValues(t, 800, got["max_tokens"])
	assert.EqualValues(t, 0.7, got["temperature"])
}

func TestAnthropicClientUnauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
	}))
	defer server.Close()

	client := NewAnthropicClient("bad", "claude-sonnet-4-5", 5*time.Second, option.WithBaseURL(server.URL))
	_, err := client.Complete(context.Background(), Request{User: "hi"})

	assert.ErrorIs(t, err, ErrUnauthorized)
}
