package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"agentnet/internal/domain"
)

const jsonOnlyInstruction = "Respond with a single JSON object and nothing else."

// Completer adapts an eino chat model to domain.ChatCompleter.
type Completer struct {
	model    model.ToolCallingChatModel
	provider string
	name     string
	metrics  domain.Metrics
	logger   *zap.Logger
}

func NewCompleter(chatModel model.ToolCallingChatModel, config domain.LLMConfig, metrics domain.Metrics, logger *zap.Logger) *Completer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	provider := config.Provider
	if provider == "" {
		provider = domain.DefaultLLMProvider
	}
	name := config.Model
	if name == "" {
		name = domain.DefaultLLMModel
	}
	return &Completer{
		model:    chatModel,
		provider: provider,
		name:     name,
		metrics:  metrics,
		logger:   logger.Named("llm"),
	}
}

// Complete sends the conversation and returns the assistant text. In JSON-only
// mode a surrounding markdown code fence is removed from the reply.
func (c *Completer) Complete(ctx context.Context, req domain.CompletionRequest) (string, error) {
	messages := BuildMessages(req)
	if len(messages) == 0 {
		return "", domain.E(domain.CodeInvalidArgument, "llm.Complete", "completion request has no messages", nil)
	}

	started := time.Now()
	response, err := c.model.Generate(ctx, messages)
	c.metrics.ObservePlannerLatency(c.provider, c.name, time.Since(started))
	if err != nil {
		return "", fmt.Errorf("LLM generate: %w", err)
	}
	c.observeTokenUsage(response)
	if response == nil {
		return "", fmt.Errorf("LLM generate: empty response")
	}

	content := strings.TrimSpace(response.Content)
	if req.JSONOnly {
		content = StripCodeFence(content)
	}
	c.logger.Debug("completion finished",
		zap.String("provider", c.provider),
		zap.String("model", c.name),
		zap.Int("chars", len(content)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return content, nil
}

// BuildMessages converts a completion request into eino messages.
func BuildMessages(req domain.CompletionRequest) []*schema.Message {
	system := strings.TrimSpace(req.System)
	if req.JSONOnly {
		if system == "" {
			system = jsonOnlyInstruction
		} else {
			system = system + "\n" + jsonOnlyInstruction
		}
	}
	messages := make([]*schema.Message, 0, len(req.Messages)+1)
	if system != "" {
		messages = append(messages, schema.SystemMessage(system))
	}
	for _, turn := range req.Messages {
		if strings.TrimSpace(turn.Content) == "" {
			continue
		}
		switch turn.Role {
		case domain.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		default:
			messages = append(messages, schema.UserMessage(turn.Content))
		}
	}
	return messages
}

// StripCodeFence removes a ```json ... ``` wrapper if present.
func StripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx >= 0 {
		trimmed = trimmed[idx+1:]
	} else {
		trimmed = strings.TrimLeft(trimmed, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ")
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

func (c *Completer) observeTokenUsage(response *schema.Message) {
	if response == nil || response.ResponseMeta == nil || response.ResponseMeta.Usage == nil {
		return
	}
	tokens := response.ResponseMeta.Usage.TotalTokens
	if tokens <= 0 {
		return
	}
	c.metrics.ObservePlannerTokens(c.provider, c.name, tokens)
}

var _ domain.ChatCompleter = (*Completer)(nil)
