package llm

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentnet/internal/domain"
)

// mockChatModel implements model.ToolCallingChatModel for testing.
type mockChatModel struct {
	generateFunc func(ctx context.Context, messages []*schema.Message) (*schema.Message, error)
}

func (m *mockChatModel) Generate(ctx context.Context, messages []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	if m.generateFunc != nil {
		return m.generateFunc(ctx, messages)
	}
	return nil, errors.New("not implemented")
}

func (m *mockChatModel) Stream(_ context.Context, _ []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	return nil, errors.New("not implemented")
}

func (m *mockChatModel) BindTools(_ []*schema.ToolInfo) error {
	return nil
}

func (m *mockChatModel) WithTools(_ []*schema.ToolInfo) (model.ToolCallingChatModel, error) {
	return m, nil
}

type plannerMetrics struct {
	domain.NoopMetrics
	mu        sync.Mutex
	latencies int
	tokens    int
}

func (m *plannerMetrics) ObservePlannerLatency(string, string, time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencies++
}

func (m *plannerMetrics) ObservePlannerTokens(_ string, _ string, tokens int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens += tokens
}

func TestCompleter_Complete(t *testing.T) {
	var got []*schema.Message
	chat := &mockChatModel{generateFunc: func(_ context.Context, messages []*schema.Message) (*schema.Message, error) {
		got = messages
		return &schema.Message{
			Role:         schema.Assistant,
			Content:      "```json\n{\"title\": \"x\"}\n```",
			ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{TotalTokens: 42}},
		}, nil
	}}
	metrics := &plannerMetrics{}
	completer := NewCompleter(chat, domain.LLMConfig{Model: "test-model"}, metrics, nil)

	out, err := completer.Complete(context.Background(), domain.CompletionRequest{
		System: "Be strict.",
		Messages: []domain.ConversationTurn{
			{Role: domain.RoleUser, Content: "hi"},
			{Role: domain.RoleAssistant, Content: "hello"},
			{Role: domain.RoleUser, Content: "   "},
			{Role: domain.RoleUser, Content: "plan"},
		},
		JSONOnly: true,
	})
	require.NoError(t, err)
	assert.Equal(t, `{"title": "x"}`, out)

	require.Len(t, got, 4)
	assert.Equal(t, schema.System, got[0].Role)
	assert.Contains(t, got[0].Content, "Be strict.")
	assert.Contains(t, got[0].Content, jsonOnlyInstruction)
	assert.Equal(t, schema.User, got[1].Role)
	assert.Equal(t, schema.Assistant, got[2].Role)
	assert.Equal(t, "plan", got[3].Content)

	assert.Equal(t, 1, metrics.latencies)
	assert.Equal(t, 42, metrics.tokens)
}

func TestCompleter_ErrorPropagates(t *testing.T) {
	chat := &mockChatModel{generateFunc: func(context.Context, []*schema.Message) (*schema.Message, error) {
		return nil, errors.New("boom")
	}}
	completer := NewCompleter(chat, domain.LLMConfig{}, nil, nil)
	_, err := completer.Complete(context.Background(), domain.CompletionRequest{
		Messages: []domain.ConversationTurn{{Role: domain.RoleUser, Content: "x"}},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestCompleter_EmptyRequest(t *testing.T) {
	completer := NewCompleter(&mockChatModel{}, domain.LLMConfig{}, nil, nil)
	_, err := completer.Complete(context.Background(), domain.CompletionRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrInvalidRequest))
}

func TestStripCodeFence(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: `{"a":1}`, want: `{"a":1}`},
		{in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{in: "```\n[1]\n```", want: `[1]`},
		{in: "  plain text ", want: "plain text"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripCodeFence(tt.in))
	}
}

func TestNewChatModel_RequiresKey(t *testing.T) {
	t.Setenv("AGENTNET_LLM_TEST_KEY", "")
	_, err := NewChatModel(context.Background(), domain.LLMConfig{APIKeyEnvVar: "AGENTNET_LLM_TEST_KEY"})
	require.Error(t, err)

	_, err = NewChatModel(context.Background(), domain.LLMConfig{APIKey: "k", Provider: "unknown"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported provider")
}
