package app

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"agentnet/internal/domain"
	"agentnet/internal/infra/catalog"
	"agentnet/internal/infra/index"
	"agentnet/internal/infra/ranking"
	"agentnet/internal/infra/telemetry"
)

// SearchRequest selects servers for a task. Zero values fall back to config.
type SearchRequest struct {
	Query        string
	CatalogPath  string
	KChunks      int
	TopServers   int
	ForceReindex bool
	// DirectOption appends the direct-answer entry to the results.
	DirectOption *bool
	Mode         domain.RankingMode
}

type SearchResponse struct {
	Results     []domain.RankedServer `json:"results"`
	CatalogPath string                `json:"catalog"`
	Rebuilt     bool                  `json:"rebuilt"`
	Reason      string                `json:"reason,omitempty"`
}

// Indexer is the part of the index manager the search path depends on.
type Indexer interface {
	EnsureIndex(ctx context.Context, catalogPath string, force bool) (*index.Handle, error)
}

// SearchService resolves the catalog, keeps the index current and ranks servers.
type SearchService struct {
	catalogCfg domain.CatalogConfig
	rankingCfg domain.RankingConfig
	indexer    Indexer
	metrics    domain.Metrics
	logger     *zap.Logger
}

func NewSearchService(cfg domain.Config, indexer Indexer, metrics domain.Metrics, logger *zap.Logger) *SearchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	return &SearchService{
		catalogCfg: cfg.Catalog,
		rankingCfg: cfg.Ranking,
		indexer:    indexer,
		metrics:    metrics,
		logger:     logger.Named("search"),
	}
}

// ResolveCatalog returns the catalog path a request would use.
func (s *SearchService) ResolveCatalog(explicit string) (string, error) {
	return catalog.ResolvePath(explicit, s.catalogCfg)
}

func (s *SearchService) Search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	started := time.Now()
	resp, err := s.search(ctx, req)
	duration := time.Since(started)
	s.metrics.ObserveSearch(duration, err)

	logger := telemetry.LoggerWithRequest(ctx, s.logger)
	if err != nil {
		logger.Warn("search failed",
			telemetry.EventField(telemetry.EventSearchFailure),
			telemetry.DurationField(duration),
			zap.Error(err),
		)
		return SearchResponse{}, err
	}
	logger.Info("search completed",
		telemetry.EventField(telemetry.EventSearch),
		telemetry.CatalogField(resp.CatalogPath),
		telemetry.DurationField(duration),
		zap.Int("results", len(resp.Results)),
		zap.Bool("rebuilt", resp.Rebuilt),
	)
	return resp, nil
}

func (s *SearchService) search(ctx context.Context, req SearchRequest) (SearchResponse, error) {
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return SearchResponse{}, domain.E(domain.CodeInvalidArgument, "app.Search", "query is required", nil)
	}
	if req.KChunks < 0 || req.TopServers < 0 {
		return SearchResponse{}, domain.E(domain.CodeInvalidArgument, "app.Search", "kChunks and topServers must not be negative", nil)
	}

	path, err := s.ResolveCatalog(req.CatalogPath)
	if err != nil {
		return SearchResponse{}, err
	}
	handle, err := s.indexer.EnsureIndex(ctx, path, req.ForceReindex)
	if err != nil {
		return SearchResponse{}, err
	}

	kChunks := req.KChunks
	if kChunks == 0 {
		kChunks = s.rankingCfg.KChunks
	}
	topN := req.TopServers
	if topN == 0 {
		topN = s.rankingCfg.TopServers
	}
	mode := req.Mode
	if mode == "" {
		mode = s.rankingCfg.Mode
	}

	results, err := ranking.RankWith(ctx, mode, query, handle.Searcher, kChunks, topN)
	if err != nil {
		return SearchResponse{}, err
	}

	direct := s.rankingCfg.DirectOption
	if req.DirectOption != nil {
		direct = *req.DirectOption
	}
	if direct {
		results = ranking.WithDirectAnswer(results)
	}
	if results == nil {
		results = []domain.RankedServer{}
	}

	return SearchResponse{
		Results:     results,
		CatalogPath: path,
		Rebuilt:     handle.Rebuilt,
		Reason:      string(handle.Reason),
	}, nil
}
