package index

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"agentnet/internal/domain"
	"agentnet/internal/infra/vectorstore"
)

const testCatalog = `{
  "notion": {
    "server_id": "notion",
    "name": "Notion",
    "child_link": "/server/notion",
    "description": "Workspace pages.",
    "tools": [
      {"name": "Create Page", "slug": "create:pages", "description": "Create a page.", "parameters": []},
      {"name": "Search", "slug": "search", "description": "Search pages.", "parameters": []}
    ]
  },
  "github": {
    "server_id": "github",
    "name": "GitHub",
    "child_link": "/server/github",
    "description": "Repositories.",
    "tools": []
  }
}`

type countingEmbedder struct {
	mu     sync.Mutex
	texts  []string
	failOn func(texts []string) error
}

func (e *countingEmbedder) EmbedStrings(_ context.Context, texts []string, _ ...embedding.Option) ([][]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failOn != nil {
		if err := e.failOn(texts); err != nil {
			return nil, err
		}
	}
	e.texts = append(e.texts, texts...)
	out := make([][]float64, len(texts))
	for i, text := range texts {
		out[i] = []float64{float64(len(text)), 1, float64(i%3) + 1}
	}
	return out, nil
}

// indexed returns how many non-probe texts were embedded.
func (e *countingEmbedder) indexed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, text := range e.texts {
		if text != domain.DefaultProbeQuery {
			n++
		}
	}
	return n
}

type rebuildRecord struct {
	reason domain.RebuildReason
	chunks int
	err    error
}

type recordingMetrics struct {
	domain.NoopMetrics
	mu       sync.Mutex
	rebuilds []rebuildRecord
	reuses   int
}

func (m *recordingMetrics) ObserveIndexRebuild(reason domain.RebuildReason, _ time.Duration, chunks int, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rebuilds = append(m.rebuilds, rebuildRecord{reason: reason, chunks: chunks, err: err})
}

func (m *recordingMetrics) ObserveIndexReuse() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reuses++
}

type fixture struct {
	dir      string
	catalog  string
	embedder *countingEmbedder
	metrics  *recordingMetrics
	cfg      domain.IndexConfig
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	catalogPath := filepath.Join(root, "mcp_description.json")
	require.NoError(t, os.WriteFile(catalogPath, []byte(testCatalog), 0o600))
	persist := filepath.Join(root, "GCB")
	return &fixture{
		dir:      persist,
		catalog:  catalogPath,
		embedder: &countingEmbedder{},
		metrics:  &recordingMetrics{},
		cfg: domain.IndexConfig{
			PersistDir:  persist,
			Collection:  domain.DefaultCollectionName,
			Fingerprint: domain.FingerprintContentHash,
			Granularity: domain.GranularityTool,
		},
	}
}

func (f *fixture) opener() StoreOpener {
	return func(context.Context) (domain.VectorStore, error) {
		return vectorstore.Open(vectorstore.Options{
			Dir:        f.cfg.PersistDir,
			Collection: f.cfg.Collection,
			Embedder:   f.embedder,
		})
	}
}

func (f *fixture) manager(t *testing.T) *Manager {
	t.Helper()
	mgr, err := NewManager(Options{Config: f.cfg, Open: f.opener(), Metrics: f.metrics})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })
	return mgr
}

func TestEnsureIndex_BuildsThenReuses(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mgr := f.manager(t)

	first, err := mgr.EnsureIndex(ctx, f.catalog, false)
	require.NoError(t, err)
	assert.True(t, first.Rebuilt)
	assert.Equal(t, domain.RebuildEmptyStore, first.Reason)
	// Two tool chunks for notion plus one server chunk for the tool-less github record.
	assert.Equal(t, 3, first.Chunks)
	indexed := f.embedder.indexed()
	assert.Equal(t, 3, indexed)

	stamp, err := os.ReadFile(mgr.StampPath())
	require.NoError(t, err)
	assert.Equal(t, first.Fingerprint, string(stamp))

	second, err := mgr.EnsureIndex(ctx, f.catalog, false)
	require.NoError(t, err)
	assert.False(t, second.Rebuilt)
	assert.Equal(t, 3, second.Chunks)
	assert.Equal(t, indexed, f.embedder.indexed())
	assert.Equal(t, 1, f.metrics.reuses)

	hits, err := second.Searcher.SimilaritySearch(ctx, "Create a page", 3)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestEnsureIndex_ReusesAcrossManagers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	mgr, err := NewManager(Options{Config: f.cfg, Open: f.opener()})
	require.NoError(t, err)
	_, err = mgr.EnsureIndex(ctx, f.catalog, false)
	require.NoError(t, err)
	require.NoError(t, mgr.Close())
	indexed := f.embedder.indexed()

	handle, err := f.manager(t).EnsureIndex(ctx, f.catalog, false)
	require.NoError(t, err)
	assert.False(t, handle.Rebuilt)
	assert.Equal(t, indexed, f.embedder.indexed())
}

func TestEnsureIndex_RebuildsOnSingleByteChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mgr := f.manager(t)

	first, err := mgr.EnsureIndex(ctx, f.catalog, false)
	require.NoError(t, err)

	changed := []byte(testCatalog)
	for i, b := range changed {
		if b == 'W' {
			changed[i] = 'w'
			break
		}
	}
	require.NoError(t, os.WriteFile(f.catalog, changed, 0o600))

	second, err := mgr.EnsureIndex(ctx, f.catalog, false)
	require.NoError(t, err)
	assert.True(t, second.Rebuilt)
	assert.Equal(t, domain.RebuildStaleStamp, second.Reason)
	assert.NotEqual(t, first.Fingerprint, second.Fingerprint)

	count, err := mgr.store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestEnsureIndex_ForceRebuilds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mgr := f.manager(t)

	_, err := mgr.EnsureIndex(ctx, f.catalog, false)
	require.NoError(t, err)
	handle, err := mgr.EnsureIndex(ctx, f.catalog, true)
	require.NoError(t, err)
	assert.True(t, handle.Rebuilt)
	assert.Equal(t, domain.RebuildForced, handle.Reason)
	assert.Equal(t, 6, f.embedder.indexed())

	require.Len(t, f.metrics.rebuilds, 2)
	assert.Equal(t, domain.RebuildForced, f.metrics.rebuilds[1].reason)
}

func TestEnsureIndex_EmbeddingFailureLeavesNoStamp(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.embedder.failOn = func([]string) error { return errors.New("provider down") }
	mgr := f.manager(t)

	_, err := mgr.EnsureIndex(ctx, f.catalog, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrEmbeddingProvider))

	_, statErr := os.Stat(mgr.StampPath())
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
	require.Len(t, f.metrics.rebuilds, 1)
	assert.Error(t, f.metrics.rebuilds[0].err)

	f.embedder.failOn = nil
	handle, err := mgr.EnsureIndex(ctx, f.catalog, false)
	require.NoError(t, err)
	assert.True(t, handle.Rebuilt)
}

func TestEnsureIndex_ProbeFailureRebuilds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	mgr, err := NewManager(Options{Config: f.cfg, Open: f.opener()})
	require.NoError(t, err)
	_, err = mgr.EnsureIndex(ctx, f.catalog, false)
	require.NoError(t, err)
	require.NoError(t, mgr.Close())

	db, err := bolt.Open(filepath.Join(f.dir, domain.DefaultIndexFileName), 0o600, &bolt.Options{Timeout: time.Second})
	require.NoError(t, err)
	require.NoError(t, db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(domain.DefaultCollectionName)).Put([]byte("zz-garbage"), []byte("{broken"))
	}))
	require.NoError(t, db.Close())

	handle, err := f.manager(t).EnsureIndex(ctx, f.catalog, false)
	require.NoError(t, err)
	assert.True(t, handle.Rebuilt)
	assert.Equal(t, domain.RebuildProbeFailed, handle.Reason)
	assert.Equal(t, 3, handle.Chunks)
}

func TestEnsureIndex_RecreatesUnreadableStore(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	attempts := 0
	open := func(c context.Context) (domain.VectorStore, error) {
		attempts++
		if attempts == 1 {
			return nil, domain.E(domain.CodeIndexCorruption, "test.open", "bad header", nil)
		}
		return f.opener()(c)
	}
	mgr, err := NewManager(Options{Config: f.cfg, Open: open})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	handle, err := mgr.EnsureIndex(ctx, f.catalog, false)
	require.NoError(t, err)
	assert.Equal(t, domain.RebuildOpenFailed, handle.Reason)
	assert.Equal(t, 2, attempts)
}

func TestEnsureIndex_MissingCatalog(t *testing.T) {
	f := newFixture(t)
	mgr := f.manager(t)

	_, err := mgr.EnsureIndex(context.Background(), filepath.Join(f.dir, "missing.json"), false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrCatalogNotFound))
}

func TestEnsureIndex_ConcurrentCallsBuildOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mgr := f.manager(t)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := mgr.EnsureIndex(ctx, f.catalog, false)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 3, f.embedder.indexed())
}

func TestStatus_ReportsStaleness(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mgr := f.manager(t)

	before, err := mgr.Status(f.catalog)
	require.NoError(t, err)
	assert.False(t, before.Current)
	assert.Empty(t, before.Stamp)
	assert.NotEmpty(t, before.Fingerprint)
	assert.Equal(t, string(domain.FingerprintContentHash), before.Mode)

	_, err = mgr.EnsureIndex(ctx, f.catalog, false)
	require.NoError(t, err)

	after, err := mgr.Status(f.catalog)
	require.NoError(t, err)
	assert.True(t, after.Current)
	assert.Equal(t, after.Fingerprint, after.Stamp)
	assert.Equal(t, mgr.StampPath(), after.StampPath)

	_, err = mgr.Status(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

// gatedEmbedder blocks multi-text batches while armed so a rebuild can be
// held mid-embedding.
type gatedEmbedder struct {
	inner   *countingEmbedder
	armed   chan struct{}
	entered chan struct{}
	release chan struct{}
}

func (g *gatedEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	if len(texts) > 1 {
		select {
		case <-g.armed:
			close(g.entered)
			<-g.release
		default:
		}
	}
	return g.inner.EmbedStrings(ctx, texts, opts...)
}

func TestEnsureIndex_SearchDuringRebuildSeesPreviousIndex(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	gate := &gatedEmbedder{
		inner:   f.embedder,
		armed:   make(chan struct{}),
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	mgr, err := NewManager(Options{
		Config: f.cfg,
		Open: func(context.Context) (domain.VectorStore, error) {
			return vectorstore.Open(vectorstore.Options{Dir: f.cfg.PersistDir, Collection: f.cfg.Collection, Embedder: gate})
		},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	handle, err := mgr.EnsureIndex(ctx, f.catalog, false)
	require.NoError(t, err)

	close(gate.armed)
	done := make(chan error, 1)
	go func() {
		_, err := mgr.EnsureIndex(ctx, f.catalog, true)
		done <- err
	}()

	select {
	case <-gate.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("rebuild never reached the embedder")
	}
	hits, err := handle.Searcher.SimilaritySearch(ctx, "Create a page", 3)
	require.NoError(t, err)
	assert.Len(t, hits, 3)

	close(gate.release)
	require.NoError(t, <-done)
	hits, err = handle.Searcher.SimilaritySearch(ctx, "Create a page", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestEnsureIndex_FailedRebuildKeepsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	mgr := f.manager(t)

	handle, err := mgr.EnsureIndex(ctx, f.catalog, false)
	require.NoError(t, err)

	f.embedder.failOn = func(texts []string) error {
		if len(texts) > 1 {
			return errors.New("provider down")
		}
		return nil
	}
	_, err = mgr.EnsureIndex(ctx, f.catalog, true)
	require.ErrorIs(t, err, domain.ErrEmbeddingProvider)

	hits, err := handle.Searcher.SimilaritySearch(ctx, "Create a page", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
	_, statErr := os.Stat(mgr.StampPath())
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

// countFailStore fails every Count after the first succeeds.
type countFailStore struct {
	domain.VectorStore
	calls int
}

func (s *countFailStore) Count(ctx context.Context) (int, error) {
	s.calls++
	if s.calls > 1 {
		return 0, errors.New("bucket read failed")
	}
	return s.VectorStore.Count(ctx)
}

func TestEnsureIndex_ReuseLogsCountFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	first, err := NewManager(Options{Config: f.cfg, Open: f.opener()})
	require.NoError(t, err)
	_, err = first.EnsureIndex(ctx, f.catalog, false)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	core, logs := observer.New(zapcore.WarnLevel)
	open := func(c context.Context) (domain.VectorStore, error) {
		store, err := f.opener()(c)
		if err != nil {
			return nil, err
		}
		return &countFailStore{VectorStore: store}, nil
	}
	mgr, err := NewManager(Options{Config: f.cfg, Open: open, Logger: zap.New(core)})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	handle, err := mgr.EnsureIndex(ctx, f.catalog, false)
	require.NoError(t, err)
	assert.False(t, handle.Rebuilt)
	assert.Equal(t, 0, handle.Chunks)

	entries := logs.FilterMessage("index count failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "bucket read failed", entries[0].ContextMap()["error"])
}
