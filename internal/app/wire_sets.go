//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"

	"agentnet/internal/infra/index"
)

var CoreInfraSet = wire.NewSet(
	NewMetricsRegistry,
	NewMetrics,
	NewEmbedder,
	NewStoreOpener,
	NewCatalogLoader,
)

var SearchSet = wire.NewSet(
	NewIndexManager,
	wire.Bind(new(Indexer), new(*index.Manager)),
	NewSearchService,
)

var ExecuteSet = wire.NewSet(
	NewChatCompleter,
	NewArgumentPlanner,
	NewToolDialer,
	NewOrchestratorFromConfig,
)

var AppSet = wire.NewSet(
	CoreInfraSet,
	SearchSet,
	ExecuteSet,
	NewApplication,
)
