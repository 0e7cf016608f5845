package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"agentnet/internal/domain"
	"agentnet/internal/infra/catalog"
	"agentnet/internal/infra/chunker"
)

// StoreOpener opens the persisted vector collection.
type StoreOpener func(ctx context.Context) (domain.VectorStore, error)

// Handle is the result of EnsureIndex. Searcher stays valid until the manager is closed.
type Handle struct {
	Searcher    domain.Searcher
	CatalogPath string
	Fingerprint string
	Rebuilt     bool
	Reason      domain.RebuildReason
	Chunks      int
}

type Options struct {
	Config  domain.IndexConfig
	Open    StoreOpener
	Loader  *catalog.Loader
	Metrics domain.Metrics
	Logger  *zap.Logger
}

// Manager keeps the persisted index in sync with the catalog file.
type Manager struct {
	mu      sync.Mutex
	cfg     domain.IndexConfig
	open    StoreOpener
	loader  *catalog.Loader
	metrics domain.Metrics
	logger  *zap.Logger
	store   domain.VectorStore
}

func NewManager(opts Options) (*Manager, error) {
	if opts.Open == nil {
		return nil, errors.New("index manager requires a store opener")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	loader := opts.Loader
	if loader == nil {
		loader = catalog.NewLoader(logger)
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = domain.NoopMetrics{}
	}
	cfg := opts.Config
	if cfg.PersistDir == "" {
		cfg.PersistDir = domain.DefaultPersistDir
	}
	if cfg.StampFileName == "" {
		cfg.StampFileName = domain.DefaultStampFileName
	}
	if cfg.StoreFileName == "" {
		cfg.StoreFileName = domain.DefaultIndexFileName
	}
	if cfg.Fingerprint == "" {
		cfg.Fingerprint = domain.FingerprintContentHash
	}
	if cfg.Granularity == "" {
		cfg.Granularity = domain.GranularityTool
	}
	if cfg.ProbeQuery == "" {
		cfg.ProbeQuery = domain.DefaultProbeQuery
	}
	return &Manager{
		cfg:     cfg,
		open:    opts.Open,
		loader:  loader,
		metrics: metrics,
		logger:  logger.Named("index"),
	}, nil
}

// StampPath returns the location of the catalog fingerprint stamp.
func (m *Manager) StampPath() string {
	return filepath.Join(m.cfg.PersistDir, m.cfg.StampFileName)
}

// Close releases the underlying store.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.store == nil {
		return nil
	}
	err := m.store.Close()
	m.store = nil
	return err
}

// Status describes the stamp against the current catalog without opening the store.
type Status struct {
	CatalogPath string `json:"catalog"`
	Fingerprint string `json:"fingerprint"`
	Stamp       string `json:"stamp"`
	StampPath   string `json:"stamp_path"`
	Mode        string `json:"mode"`
	Current     bool   `json:"current"`
}

func (m *Manager) Status(catalogPath string) (Status, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fingerprint, err := catalog.Fingerprint(catalogPath, m.cfg.Fingerprint)
	if err != nil {
		return Status{}, err
	}
	stamp := m.readStamp()
	return Status{
		CatalogPath: catalogPath,
		Fingerprint: fingerprint,
		Stamp:       stamp.Fingerprint,
		StampPath:   m.StampPath(),
		Mode:        string(m.cfg.Fingerprint),
		Current:     stamp.Matches(fingerprint),
	}, nil
}

// EnsureIndex returns a searchable index consistent with the catalog at
// catalogPath, rebuilding it when forced, empty, stale or unreadable.
func (m *Manager) EnsureIndex(ctx context.Context, catalogPath string, force bool) (*Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	fingerprint, err := catalog.Fingerprint(catalogPath, m.cfg.Fingerprint)
	if err != nil {
		return nil, err
	}
	stamp := m.readStamp()

	reason, err := m.prepareStore(ctx)
	if err != nil {
		return nil, err
	}

	if reason == "" {
		reason, err = m.decide(ctx, force, stamp, fingerprint)
		if err != nil {
			return nil, err
		}
	}

	handle := &Handle{
		Searcher:    m.store,
		CatalogPath: catalogPath,
		Fingerprint: fingerprint,
	}
	if reason == "" {
		m.metrics.ObserveIndexReuse()
		count, err := m.store.Count(ctx)
		if err != nil {
			m.logger.Warn("index count failed", zap.String("catalog", catalogPath), zap.Error(err))
		}
		handle.Chunks = count
		m.logger.Debug("index reused", zap.String("catalog", catalogPath), zap.Int("chunks", count))
		return handle, nil
	}

	started := time.Now()
	chunks, err := m.rebuild(ctx, catalogPath, fingerprint)
	m.metrics.ObserveIndexRebuild(reason, time.Since(started), chunks, err)
	if err != nil {
		m.logger.Error("index rebuild failed",
			zap.String("reason", string(reason)),
			zap.String("catalog", catalogPath),
			zap.Error(err),
		)
		return nil, err
	}
	m.logger.Info("index rebuilt",
		zap.String("reason", string(reason)),
		zap.String("catalog", catalogPath),
		zap.Int("chunks", chunks),
		zap.Duration("duration", time.Since(started)),
	)
	handle.Rebuilt = true
	handle.Reason = reason
	handle.Chunks = chunks
	return handle, nil
}

// prepareStore opens the store if needed. An unreadable store file is removed
// and recreated, which forces a rebuild.
func (m *Manager) prepareStore(ctx context.Context) (domain.RebuildReason, error) {
	if m.store != nil {
		return "", nil
	}
	store, err := m.open(ctx)
	if err == nil {
		m.store = store
		return "", nil
	}
	if code, ok := domain.CodeFrom(err); !ok || code != domain.CodeIndexCorruption {
		return "", err
	}

	storePath := filepath.Join(m.cfg.PersistDir, m.cfg.StoreFileName)
	m.logger.Warn("index store unreadable, recreating", zap.String("path", storePath), zap.Error(err))
	if rmErr := os.Remove(storePath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		return "", fmt.Errorf("remove unreadable index: %w", rmErr)
	}
	store, err = m.open(ctx)
	if err != nil {
		return "", err
	}
	m.store = store
	return domain.RebuildOpenFailed, nil
}

func (m *Manager) decide(ctx context.Context, force bool, stamp domain.IndexStamp, fingerprint string) (domain.RebuildReason, error) {
	if force {
		return domain.RebuildForced, nil
	}
	count, err := m.store.Count(ctx)
	if err != nil {
		m.logger.Warn("index count failed", zap.Error(err))
		return domain.RebuildProbeFailed, nil
	}
	if count == 0 {
		return domain.RebuildEmptyStore, nil
	}
	if !stamp.Matches(fingerprint) {
		return domain.RebuildStaleStamp, nil
	}
	if _, err := m.store.SimilaritySearch(ctx, m.cfg.ProbeQuery, 1); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		if code, ok := domain.CodeFrom(err); ok && code == domain.CodeEmbeddingProvider {
			return "", err
		}
		m.logger.Warn("index probe failed", zap.Error(err))
		return domain.RebuildProbeFailed, nil
	}
	return "", nil
}

func (m *Manager) rebuild(ctx context.Context, catalogPath, fingerprint string) (int, error) {
	cat, err := m.loader.Load(ctx, catalogPath)
	if err != nil {
		return 0, err
	}
	chunks := chunker.Build(cat, m.cfg.Granularity)
	if len(chunks) == 0 {
		m.logger.Warn("catalog produced no chunks", zap.String("catalog", catalogPath))
	}

	texts := make([]string, len(chunks))
	metas := make([]domain.ChunkMetadata, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
		metas[i] = chunk.Metadata
	}

	if err := m.removeStamp(); err != nil {
		return 0, err
	}
	// The previous collection stays searchable until Replace commits.
	if err := m.store.Replace(ctx, texts, metas); err != nil {
		return 0, fmt.Errorf("populate collection: %w", err)
	}

	if err := m.writeStamp(domain.IndexStamp{Fingerprint: fingerprint, Mode: m.cfg.Fingerprint}); err != nil {
		return 0, err
	}
	return len(chunks), nil
}

func (m *Manager) readStamp() domain.IndexStamp {
	data, err := os.ReadFile(m.StampPath())
	if err != nil {
		return domain.IndexStamp{Mode: m.cfg.Fingerprint}
	}
	return domain.IndexStamp{Fingerprint: strings.TrimSpace(string(data)), Mode: m.cfg.Fingerprint}
}

// writeStamp replaces the stamp atomically so a crash never leaves a partial value.
func (m *Manager) writeStamp(stamp domain.IndexStamp) error {
	if err := os.MkdirAll(m.cfg.PersistDir, 0o755); err != nil {
		return fmt.Errorf("ensure persist dir: %w", err)
	}
	tmp, err := os.CreateTemp(m.cfg.PersistDir, m.cfg.StampFileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("create stamp temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(stamp.Fingerprint); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write stamp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close stamp: %w", err)
	}
	if err := os.Rename(tmpName, m.StampPath()); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replace stamp: %w", err)
	}
	return nil
}

func (m *Manager) removeStamp() error {
	if err := os.Remove(m.StampPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stamp: %w", err)
	}
	return nil
}
