package app

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"agentnet/internal/domain"
	"agentnet/internal/infra/index"
)

type stubSearcher struct {
	hits []domain.SearchHit
	k    int
}

func (s *stubSearcher) SimilaritySearch(_ context.Context, _ string, k int) ([]domain.SearchHit, error) {
	s.k = k
	if len(s.hits) > k {
		return s.hits[:k], nil
	}
	return s.hits, nil
}

type stubIndexer struct {
	searcher domain.Searcher
	err      error
	paths    []string
	forced   []bool
}

func (s *stubIndexer) EnsureIndex(_ context.Context, path string, force bool) (*index.Handle, error) {
	s.paths = append(s.paths, path)
	s.forced = append(s.forced, force)
	if s.err != nil {
		return nil, s.err
	}
	return &index.Handle{Searcher: s.searcher, CatalogPath: path, Rebuilt: force, Reason: domain.RebuildForced}, nil
}

type searchRecorder struct {
	domain.NoopMetrics
	errs []error
}

func (r *searchRecorder) ObserveSearch(_ time.Duration, err error) {
	r.errs = append(r.errs, err)
}

func toolHit(server, tool string) domain.SearchHit {
	return domain.SearchHit{
		Text: "[Server: " + server + "] [Tool: " + tool + "]\nUse for: " + tool + " things",
		Metadata: domain.ChunkMetadata{
			ServerName:  server,
			ChildLink:   "/server/" + server,
			ToolName:    tool,
			Granularity: domain.GranularityTool,
		},
	}
}

func writeCatalog(t *testing.T) (string, domain.Config) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, domain.DefaultCatalogFileName)
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))
	cfg := domain.Config{
		Catalog: domain.CatalogConfig{BaseDir: dir, Candidates: []string{domain.DefaultCatalogFileName}},
		Ranking: domain.RankingConfig{Mode: domain.RankingReciprocal, KChunks: 12, TopServers: 5},
	}
	return path, cfg
}

func TestSearch_RanksServers(t *testing.T) {
	path, cfg := writeCatalog(t)
	searcher := &stubSearcher{hits: []domain.SearchHit{
		toolHit("A", "create"),
		toolHit("B", "list"),
		toolHit("A", "update"),
	}}
	indexer := &stubIndexer{searcher: searcher}
	metrics := &searchRecorder{}
	svc := NewSearchService(cfg, indexer, metrics, nil)

	resp, err := svc.Search(context.Background(), SearchRequest{Query: "create a page"})
	require.NoError(t, err)

	assert.Equal(t, path, resp.CatalogPath)
	assert.Equal(t, []string{path}, indexer.paths)
	assert.Equal(t, 12, searcher.k)
	got := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		got = append(got, r.Server)
	}
	if diff := cmp.Diff([]string{"A", "B"}, got); diff != "" {
		t.Fatalf("servers mismatch (-want +got):\n%s", diff)
	}
	assert.InDelta(t, 1.3333, resp.Results[0].Score, 1e-4)
	require.Len(t, metrics.errs, 1)
	assert.NoError(t, metrics.errs[0])
}

func TestSearch_RequestOverrides(t *testing.T) {
	_, cfg := writeCatalog(t)
	searcher := &stubSearcher{hits: []domain.SearchHit{toolHit("A", "x"), toolHit("B", "y")}}
	indexer := &stubIndexer{searcher: searcher}
	svc := NewSearchService(cfg, indexer, nil, nil)
	direct := true

	resp, err := svc.Search(context.Background(), SearchRequest{
		Query:        "anything",
		KChunks:      4,
		TopServers:   1,
		ForceReindex: true,
		DirectOption: &direct,
	})
	require.NoError(t, err)
	assert.Equal(t, 4, searcher.k)
	assert.Equal(t, []bool{true}, indexer.forced)
	require.Len(t, resp.Results, 2)
	assert.Equal(t, "A", resp.Results[0].Server)
	assert.True(t, resp.Results[1].IsDirect())
	assert.True(t, resp.Rebuilt)
}

func TestSearch_EmptyResultsAreNotNil(t *testing.T) {
	_, cfg := writeCatalog(t)
	svc := NewSearchService(cfg, &stubIndexer{searcher: &stubSearcher{}}, nil, nil)

	resp, err := svc.Search(context.Background(), SearchRequest{Query: "q"})
	require.NoError(t, err)
	assert.NotNil(t, resp.Results)
	assert.Empty(t, resp.Results)
}

func TestSearch_Errors(t *testing.T) {
	_, cfg := writeCatalog(t)
	metrics := &searchRecorder{}
	svc := NewSearchService(cfg, &stubIndexer{err: domain.E(domain.CodeEmbeddingProvider, "embedding", "quota", nil)}, metrics, nil)

	_, err := svc.Search(context.Background(), SearchRequest{Query: " "})
	require.ErrorIs(t, err, domain.ErrInvalidRequest)

	_, err = svc.Search(context.Background(), SearchRequest{Query: "q"})
	require.ErrorIs(t, err, domain.ErrEmbeddingProvider)

	_, err = svc.Search(context.Background(), SearchRequest{Query: "q", CatalogPath: "missing.json"})
	require.ErrorIs(t, err, domain.ErrCatalogNotFound)

	require.Len(t, metrics.errs, 3)
	for _, observed := range metrics.errs {
		assert.Error(t, observed)
	}
}
