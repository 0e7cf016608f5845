package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"agentnet/internal/domain"
	"agentnet/internal/infra/catalog"
	"agentnet/internal/infra/embedding"
	"agentnet/internal/infra/index"
	"agentnet/internal/infra/llm"
	"agentnet/internal/infra/planner"
	"agentnet/internal/infra/telemetry"
	"agentnet/internal/infra/toolserver"
	"agentnet/internal/infra/vectorstore"
)

func NewMetricsRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	registry.MustRegister(prometheus.NewGoCollector())
	return registry
}

func NewMetrics(registry *prometheus.Registry) domain.Metrics {
	return telemetry.NewPrometheusMetrics(registry)
}

func NewEmbedder(ctx context.Context, cfg domain.Config, logger *zap.Logger) (*embedding.OpenAIEmbedder, error) {
	return embedding.NewOpenAIEmbedder(ctx, embedding.Options{
		Config: cfg.Embedding,
		Logger: logger,
	})
}

func NewStoreOpener(cfg domain.Config, embedder *embedding.OpenAIEmbedder, logger *zap.Logger) index.StoreOpener {
	return func(ctx context.Context) (domain.VectorStore, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return vectorstore.Open(vectorstore.Options{
			Dir:         cfg.Index.PersistDir,
			FileName:    cfg.Index.StoreFileName,
			Collection:  cfg.Index.Collection,
			Embedder:    embedder,
			OpenTimeout: cfg.Index.OpenTimeout,
			Logger:      logger,
		})
	}
}

func NewCatalogLoader(logger *zap.Logger) *catalog.Loader {
	return catalog.NewLoader(logger)
}

func NewIndexManager(
	cfg domain.Config,
	opener index.StoreOpener,
	loader *catalog.Loader,
	metrics domain.Metrics,
	logger *zap.Logger,
) (*index.Manager, func(), error) {
	manager, err := index.NewManager(index.Options{
		Config:  cfg.Index,
		Open:    opener,
		Loader:  loader,
		Metrics: metrics,
		Logger:  logger,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := manager.Close(); err != nil {
			logger.Warn("index close failed", zap.Error(err))
		}
	}
	return manager, cleanup, nil
}

// NewChatCompleter returns nil when no language model can be configured so
// search-only commands keep working without LLM credentials.
func NewChatCompleter(ctx context.Context, cfg domain.Config, metrics domain.Metrics, logger *zap.Logger) domain.ChatCompleter {
	chatModel, err := llm.NewChatModel(ctx, cfg.LLM)
	if err != nil {
		logger.Warn("language model unavailable; direct answers and planning are disabled", zap.Error(err))
		return nil
	}
	return llm.NewCompleter(chatModel, cfg.LLM, metrics, logger)
}

func NewArgumentPlanner(completer domain.ChatCompleter, logger *zap.Logger) ArgumentPlanner {
	if completer == nil {
		return nil
	}
	return planner.New(completer, logger)
}

func NewToolDialer(cfg domain.Config, logger *zap.Logger) domain.ToolServerDialer {
	return toolserver.NewDialer(toolserver.DialerOptions{
		Config: cfg.ToolServer,
		Logger: logger,
	})
}

func NewOrchestratorFromConfig(
	cfg domain.Config,
	dialer domain.ToolServerDialer,
	argPlanner ArgumentPlanner,
	completer domain.ChatCompleter,
	metrics domain.Metrics,
	logger *zap.Logger,
) *Orchestrator {
	return NewOrchestrator(OrchestratorOptions{
		Dialer:       dialer,
		Planner:      argPlanner,
		Completer:    completer,
		Endpoints:    NewEndpoints(cfg.ToolServer),
		HistoryTurns: cfg.LLM.HistoryTurns,
		Metrics:      metrics,
		Logger:       logger,
	})
}

// Initialize builds the application, wrapping construction failures.
func Initialize(ctx context.Context, cfg domain.Config, logger *zap.Logger) (*Application, func(), error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	application, cleanup, err := InitializeApplication(ctx, cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize application: %w", err)
	}
	return application, cleanup, nil
}
