package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"agentnet/internal/domain"
)

// NewChatModel creates the chat model based on configuration.
func NewChatModel(ctx context.Context, config domain.LLMConfig) (model.ToolCallingChatModel, error) {
	apiKey, err := resolveAPIKey(config)
	if err != nil {
		return nil, err
	}
	modelName := config.Model
	if modelName == "" {
		modelName = domain.DefaultLLMModel
	}

	switch config.Provider {
	case "openai", "":
		cfg := &openai.ChatModelConfig{
			Model:  modelName,
			APIKey: apiKey,
		}
		if config.BaseURL != "" {
			cfg.BaseURL = config.BaseURL
		}
		return openai.NewChatModel(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
}

func resolveAPIKey(config domain.LLMConfig) (string, error) {
	apiKey := strings.TrimSpace(config.APIKey)
	if apiKey != "" {
		return apiKey, nil
	}
	envVar := strings.TrimSpace(config.APIKeyEnvVar)
	if envVar == "" {
		return "", fmt.Errorf("API key is required: set llm.apiKey or llm.apiKeyEnvVar")
	}
	apiKey = os.Getenv(envVar)
	if apiKey == "" {
		return "", fmt.Errorf("API key not found in env var %s", envVar)
	}
	return apiKey, nil
}
