package embedding

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	einoopenai "github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"
	"go.uber.org/zap"

	"agentnet/internal/domain"
)

// OpenAIEmbedder batches catalog chunks through an OpenAI-compatible
// embedding model and reports progress after every batch.
type OpenAIEmbedder struct {
	client    embedding.Embedder
	model     string
	batchSize int
	logger    *zap.Logger
	progress  func(done, total int)
}

type Options struct {
	Config     domain.EmbeddingConfig
	HTTPClient *http.Client
	// Client replaces the eino OpenAI embedder, mostly for tests.
	Client embedding.Embedder
	Logger *zap.Logger
}

func NewOpenAIEmbedder(ctx context.Context, opts Options) (*OpenAIEmbedder, error) {
	cfg := opts.Config
	model := cfg.Model
	if model == "" {
		model = domain.DefaultEmbeddingModel
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = domain.DefaultEmbeddingBatchSize
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	client := opts.Client
	if client == nil {
		apiKey, err := resolveAPIKey(cfg)
		if err != nil {
			return nil, err
		}
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = domain.DefaultEmbeddingTimeoutSec * time.Second
		}
		embedder, err := einoopenai.NewEmbedder(ctx, &einoopenai.EmbeddingConfig{
			APIKey:     apiKey,
			BaseURL:    BaseURL(cfg.Endpoint),
			Model:      model,
			Timeout:    timeout,
			HTTPClient: opts.HTTPClient,
		})
		if err != nil {
			return nil, fmt.Errorf("create embedding model: %w", err)
		}
		client = embedder
	}

	return &OpenAIEmbedder{
		client:    client,
		model:     model,
		batchSize: batch,
		logger:    logger.Named("embedding"),
	}, nil
}

// BaseURL turns the configured endpoint into the API root the OpenAI client
// expects, e.g. https://api.openai.com -> https://api.openai.com/v1.
func BaseURL(endpoint string) string {
	base := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	if base == "" {
		base = domain.DefaultEmbeddingEndpoint
	}
	if strings.HasSuffix(base, "/v1") {
		return base
	}
	return base + "/v1"
}

func resolveAPIKey(cfg domain.EmbeddingConfig) (string, error) {
	if apiKey := strings.TrimSpace(cfg.APIKey); apiKey != "" {
		return apiKey, nil
	}
	envVar := strings.TrimSpace(cfg.APIKeyEnvVar)
	if envVar != "" {
		if apiKey := strings.TrimSpace(os.Getenv(envVar)); apiKey != "" {
			return apiKey, nil
		}
	}
	return "", fmt.Errorf("embedding API key is required: set embedding.apiKey or %s", envVar)
}

// Model returns the embedding model identifier.
func (e *OpenAIEmbedder) Model() string { return e.model }

// SetProgress registers a callback invoked after every embedded batch.
func (e *OpenAIEmbedder) SetProgress(fn func(done, total int)) {
	e.progress = fn
}

// EmbedStrings embeds texts in batches, preserving input order.
func (e *OpenAIEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	result := make([][]float64, 0, len(texts))
	for start := 0; start < len(texts); start += e.batchSize {
		end := min(start+e.batchSize, len(texts))
		started := time.Now()
		vecs, err := e.client.EmbedStrings(ctx, texts[start:end], opts...)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, domain.E(domain.CodeEmbeddingProvider, "embedding.EmbedStrings",
				fmt.Sprintf("batch [%d:%d]: %v", start, end, err), err)
		}
		if len(vecs) != end-start {
			return nil, domain.E(domain.CodeEmbeddingProvider, "embedding.EmbedStrings",
				fmt.Sprintf("batch [%d:%d]: got %d vectors", start, end, len(vecs)), nil)
		}
		result = append(result, vecs...)
		e.logger.Debug("embedded batch",
			zap.Int("texts", end-start),
			zap.Duration("elapsed", time.Since(started)),
		)
		if e.progress != nil {
			e.progress(end, len(texts))
		}
	}
	return result, nil
}

var _ embedding.Embedder = (*OpenAIEmbedder)(nil)
