package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielolaszy/relnotes/internal/ai"
	"github.com/danielolaszy/relnotes/internal/retry"
	"github.com/danielolaszy/relnotes/pkg/models"
)

// MockClient replays canned responses in order.
type MockClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	requests  []ai.Request
	model     string
}

func (m *MockClient) Complete(_ context.Context, req ai.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i := len(m.requests)
	m.requests = append(m.requests, req)
	var err error
	if i < len(m.errs) {
		err = m.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(m.responses) {
		return m.responses[i], nil
	}
	return "", nil
}

func (m *MockClient) Model() string {
	if m.model == "" {
		return "gpt-4o"
	}
	return m.model
}

func noWaitPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts:  3,
		InitialDelay: time.Second,
		Multiplier:   2,
		Sleep:        func(context.Context, time.Duration) error { return nil },
	}
}

func newTestInvoker(t *testing.T, client ai.Client) *Invoker {
	t.Helper()
	inv, err := NewInvoker(client, ai.Resolver{Getenv: func(string) string { return "" }}, noWaitPolicy())
	require.NoError(t, err)
	return inv
}

func TestAnalyzeSelectsVariantByType(t *testing.T) {
	tests := []struct {
		name      string
		issueType models.IssueType
		response  string
		want      Result
	}{
		{
			name:      "bug",
			issueType: "bug",
			response:  "```json\n{\"cause\":\"x\",\"fix\":\"y\",\"technical_summary\":\"z\"}\n```",
			want:      BugAnalysis{Cause: "x", Fix: "y", TechnicalSummary: "z"},
		},
		{
			name:      "epic",
			issueType: "Epic",
			response:  `{"executive_summary":"e"}`,
			want:      EpicAnalysis{ExecutiveSummary: "e"},
		},
		{
			name:      "unknown type falls back to generic",
			issueType: "Spike",
			response:  `{"reasoning":"r","probabilityRanking":3}`,
			want:      GenericAnalysis{Reasoning: "r", ProbabilityRank: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &MockClient{responses: []string{tt.response}}
			inv := newTestInvoker(t, client)

			got, err := inv.Analyze(context.Background(), models.Issue{Key: "ABC-1", Type: tt.issueType})

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			require.Len(t, client.requests, 1)
			assert.True(t, client.requests[0].JSON)
			assert.Contains(t, client.requests[0].User, `"output_schema"`)
			assert.Contains(t, client.requests[0].User, `"key": "ABC-1"`)
		})
	}
}

func TestAnalyzeSendsResolvedParams(t *testing.T) {
	client := &MockClient{model: "o4-mini", responses: []string{`{"reasoning":"r"}`}}
	inv := newTestInvoker(t, client)

	_, err := inv.Analyze(context.Background(), models.Issue{Key: "ABC-1"})

	require.NoError(t, err)
	p := client.requests[0].Params
	require.NotNil(t, p.MaxCompletionTokens)
	assert.Nil(t, p.Temperature)
}

func TestAnalyzeRetriesInvalidAndEmptyResponses(t *testing.T) {
	client := &MockClient{responses: []string{"", "not json", `{"fix":"y"}`}}
	inv := newTestInvoker(t, client)

	got, err := inv.Analyze(context.Background(), models.Issue{Key: "ABC-1", Type: models.TypeBug})

	require.NoError(t, err)
	assert.Equal(t, BugAnalysis{Fix: "y"}, got)
	assert.Len(t, client.requests, 3)
}

func TestAnalyzeSurfacesValidationAfterExhaustion(t *testing.T) {
	client := &MockClient{responses: []string{"nope", "nope", "nope", "nope"}}
	inv := newTestInvoker(t, client)

	_, err := inv.Analyze(context.Background(), models.Issue{Key: "ABC-1", Type: models.TypeBug})

	assert.ErrorIs(t, err, ErrValidation)
	assert.Len(t, client.requests, 3)
	assert.True(t, strings.Contains(err.Error(), "ABC-1"))
}

func TestAnalyzeUnauthorizedIsFatal(t *testing.T) {
	client := &MockClient{errs: []error{fmt.Errorf("%w: 401", ai.ErrUnauthorized)}}
	inv := newTestInvoker(t, client)

	_, err := inv.Analyze(context.Background(), models.Issue{Key: "ABC-1"})

	assert.ErrorIs(t, err, ai.ErrUnauthorized)
	assert.Len(t, client.requests, 1)
}

func TestAnalyzeTransportErrorsAreRetried(t *testing.T) {
	client := &MockClient{
		errs:      []error{errors.New("connection reset"), nil},
		responses: []string{"", `{"technical_summary":"t"}`},
	}
	inv := newTestInvoker(t, client)

	got, err := inv.Analyze(context.Background(), models.Issue{Key: "ABC-1", Type: models.TypeEpic})

	require.NoError(t, err)
	assert.Equal(t, EpicAnalysis{TechnicalSummary: "t"}, got)
	assert.Len(t, client.requests, 2)
}

func TestAnalyzeRequestTimeoutsAreRetried(t *testing.T) {
	var hits atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			select {
			case <-r.Context().Done():
			case <-time.After(300 * time.Millisecond):
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
  "id": "chatcmpl-1",
  "object": "chat.completion",
  "created": 1700000000,
  "model": "gpt-4o",
  "choices": [
    {"index": 0, "finish_reason": "stop", "message": {"role": "assistant", "content": "{\"reasoning\":\"ok\"}"}}
  ]
}`)
	}))
	defer server.Close()

	client := ai.NewOpenAIClient("sk-test", "gpt-4o", 50*time.Millisecond, option.WithBaseURL(server.URL))
	inv := newTestInvoker(t, client)

	got, err := inv.Analyze(context.Background(), models.Issue{Key: "ABC-1", Type: models.TypeStory})

	require.NoError(t, err)
	assert.Equal(t, GenericAnalysis{Reasoning: "ok"}, got)
	assert.EqualValues(t, 3, hits.Load())
}

func TestAnalyzeStopsWhenJobContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	client := &cancellingClient{cancel: cancel}
	inv := newTestInvoker(t, client)

	_, err := inv.Analyze(ctx, models.Issue{Key: "ABC-1"})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, client.calls)
}

// cancellingClient ends the caller's context during its first call.
type cancellingClient struct {
	cancel context.CancelFunc
	calls  int
}

func (c *cancellingClient) Complete(ctx context.Context, _ ai.Request) (string, error) {
	c.calls++
	c.cancel()
	return "", ctx.Err()
}

func (c *cancellingClient) Model() string { return "gpt-4o" }

func TestAnalyzeRunsEachCallUnderGuard(t *testing.T) {
	client := &MockClient{responses: []string{"not json", `{"reasoning":"ok"}`}}
	inv := newTestInvoker(t, client)
	guarded := 0
	ctx := WithCallGuard(context.Background(), func(ctx context.Context, call func(context.Context) error) error {
		guarded++
		return call(ctx)
	})

	result, err := inv.Analyze(ctx, models.Issue{Key: "ABC-1", Type: models.TypeStory})

	require.NoError(t, err)
	assert.Equal(t, GenericAnalysis{Reasoning: "ok"}, result)
	assert.Equal(t, 2, guarded)
}
