package app

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"agentnet/internal/domain"
	"agentnet/internal/infra/embedding"
	"agentnet/internal/infra/index"
	"agentnet/internal/infra/watch"
)

// Application bundles the services built from one configuration.
type Application struct {
	Config       domain.Config
	Logger       *zap.Logger
	Registry     *prometheus.Registry
	Metrics      domain.Metrics
	Embedder     *embedding.OpenAIEmbedder
	Index        *index.Manager
	Search       *SearchService
	Orchestrator *Orchestrator
}

func NewApplication(
	cfg domain.Config,
	logger *zap.Logger,
	registry *prometheus.Registry,
	metrics domain.Metrics,
	embedder *embedding.OpenAIEmbedder,
	manager *index.Manager,
	search *SearchService,
	orchestrator *Orchestrator,
) *Application {
	return &Application{
		Config:       cfg,
		Logger:       logger.Named("app"),
		Registry:     registry,
		Metrics:      metrics,
		Embedder:     embedder,
		Index:        manager,
		Search:       search,
		Orchestrator: orchestrator,
	}
}

// Reindex resolves the catalog and ensures the index, rebuilding when force is set.
func (a *Application) Reindex(ctx context.Context, catalogPath string, force bool) (*index.Handle, error) {
	path, err := a.Search.ResolveCatalog(catalogPath)
	if err != nil {
		return nil, err
	}
	return a.Index.EnsureIndex(ctx, path, force)
}

// NewCatalogWatcher returns a watcher that re-ensures the index when the
// catalog file changes.
func (a *Application) NewCatalogWatcher(catalogPath string) (*watch.CatalogWatcher, error) {
	path, err := a.Search.ResolveCatalog(catalogPath)
	if err != nil {
		return nil, err
	}
	debounce := a.Config.Index.WatchDebounce
	if debounce <= 0 {
		debounce = 200 * time.Millisecond
	}
	return watch.NewCatalogWatcher(path, debounce, func(ctx context.Context, changed string) error {
		if !a.Config.Index.ReindexOnChange {
			a.Logger.Info("catalog changed; reindex on change is disabled", zap.String("catalog", changed))
			return nil
		}
		_, err := a.Index.EnsureIndex(ctx, changed, false)
		return err
	}, a.Logger)
}
