package vectorstore

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	bolt "go.etcd.io/bbolt"
	"go.uber.org/zap"

	"agentnet/internal/domain"
)

const (
	metaKey        = "__meta"
	reservedPrefix = "__"
)

type Options struct {
	Dir         string
	FileName    string
	Collection  string
	Embedder    embedding.Embedder
	OpenTimeout time.Duration
	Logger      *zap.Logger
}

// Store is a bbolt-backed embedding collection searched by brute-force cosine similarity.
type Store struct {
	mu         sync.RWMutex
	db         *bolt.DB
	path       string
	collection []byte
	embedder   embedding.Embedder
	logger     *zap.Logger
	closed     bool
}

type record struct {
	Text     string               `json:"text"`
	Metadata domain.ChunkMetadata `json:"metadata"`
	Vector   []float64            `json:"vector"`
}

type collectionMeta struct {
	Dimension int    `json:"dimension"`
	UpdatedAt string `json:"updated_at"`
}

// Open opens or creates the store file and returns a handle on one collection.
func Open(opts Options) (*Store, error) {
	if opts.Embedder == nil {
		return nil, errors.New("vector store requires an embedder")
	}
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		dir = domain.DefaultPersistDir
	}
	name := strings.TrimSpace(opts.FileName)
	if name == "" {
		name = domain.DefaultIndexFileName
	}
	collection := strings.TrimSpace(opts.Collection)
	if collection == "" {
		collection = domain.DefaultCollectionName
	}
	if strings.HasPrefix(collection, reservedPrefix) {
		return nil, domain.E(domain.CodeInvalidArgument, "vectorstore.Open", "collection name must not start with "+reservedPrefix, nil)
	}
	timeout := opts.OpenTimeout
	if timeout <= 0 {
		timeout = domain.DefaultStoreOpenTimeoutSec * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure persist dir: %w", err)
	}
	path := filepath.Join(dir, name)
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: timeout})
	if err != nil {
		return nil, classifyOpenError(path, err)
	}
	return &Store{
		db:         db,
		path:       path,
		collection: []byte(collection),
		embedder:   opts.Embedder,
		logger:     logger.Named("vectorstore"),
	}, nil
}

func classifyOpenError(path string, err error) error {
	switch {
	case errors.Is(err, bolt.ErrTimeout):
		return domain.E(domain.CodeUnavailable, "vectorstore.Open", fmt.Sprintf("index file %s is locked by another process", path), err)
	case errors.Is(err, bolt.ErrInvalid), errors.Is(err, bolt.ErrChecksum), errors.Is(err, bolt.ErrVersionMismatch):
		return domain.E(domain.CodeIndexCorruption, "vectorstore.Open", fmt.Sprintf("index file %s is unreadable", path), err)
	default:
		return fmt.Errorf("open index db %s: %w", path, err)
	}
}

// Path returns the backing file location.
func (s *Store) Path() string { return s.path }

// Collection returns the collection name.
func (s *Store) Collection() string { return string(s.collection) }

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

// Add embeds texts and persists them with their metadata in a single transaction.
func (s *Store) Add(ctx context.Context, texts []string, metas []domain.ChunkMetadata) error {
	vectors, err := s.embedAll(ctx, "vectorstore.Add", texts, metas)
	if err != nil || len(vectors) == 0 {
		return err
	}
	return s.update(func(tx *bolt.Tx) error {
		bucket, err := tx.CreateBucketIfNotExists(s.collection)
		if err != nil {
			return fmt.Errorf("create collection bucket: %w", err)
		}
		return putRecords(bucket, texts, metas, vectors)
	})
}

// Replace embeds texts, then swaps the collection contents in one transaction.
// Readers see either the previous collection or the new one, never an empty
// bucket in between.
func (s *Store) Replace(ctx context.Context, texts []string, metas []domain.ChunkMetadata) error {
	vectors, err := s.embedAll(ctx, "vectorstore.Replace", texts, metas)
	if err != nil {
		return err
	}
	return s.update(func(tx *bolt.Tx) error {
		if tx.Bucket(s.collection) != nil {
			if err := tx.DeleteBucket(s.collection); err != nil {
				return fmt.Errorf("drop collection bucket: %w", err)
			}
		}
		bucket, err := tx.CreateBucket(s.collection)
		if err != nil {
			return fmt.Errorf("create collection bucket: %w", err)
		}
		if len(vectors) == 0 {
			return nil
		}
		return putRecords(bucket, texts, metas, vectors)
	})
}

func (s *Store) embedAll(ctx context.Context, op string, texts []string, metas []domain.ChunkMetadata) ([][]float64, error) {
	if len(texts) != len(metas) {
		return nil, domain.E(domain.CodeInvalidArgument, op,
			fmt.Sprintf("texts and metadata length mismatch: %d != %d", len(texts), len(metas)), nil)
	}
	if len(texts) == 0 {
		return nil, nil
	}
	vectors, err := s.embedder.EmbedStrings(ctx, texts)
	if err != nil {
		return nil, domain.Wrap(domain.CodeEmbeddingProvider, op, err)
	}
	if len(vectors) != len(texts) {
		return nil, domain.E(domain.CodeEmbeddingProvider, op,
			fmt.Sprintf("embedder returned %d vectors for %d texts", len(vectors), len(texts)), nil)
	}
	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, domain.E(domain.CodeEmbeddingProvider, op,
				fmt.Sprintf("vector %d has dimension %d, want %d", i, len(v), dim), nil)
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return vectors, nil
}

func putRecords(bucket *bolt.Bucket, texts []string, metas []domain.ChunkMetadata, vectors [][]float64) error {
	dim := len(vectors[0])
	meta, err := readMeta(bucket)
	if err != nil {
		return err
	}
	if meta.Dimension != 0 && meta.Dimension != dim {
		return domain.E(domain.CodeIndexCorruption, "vectorstore.putRecords",
			fmt.Sprintf("collection dimension %d does not match new vectors (%d)", meta.Dimension, dim), nil)
	}
	for i := range texts {
		seq, err := bucket.NextSequence()
		if err != nil {
			return err
		}
		payload, err := json.Marshal(record{Text: texts[i], Metadata: metas[i], Vector: vectors[i]})
		if err != nil {
			return fmt.Errorf("encode record: %w", err)
		}
		if err := bucket.Put(sequenceKey(seq), payload); err != nil {
			return err
		}
	}
	meta.Dimension = dim
	meta.UpdatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	return writeMeta(bucket, meta)
}

// SimilaritySearch embeds the query and returns up to k hits best-first.
// Hits with equal scores keep insertion order.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) ([]domain.SearchHit, error) {
	if k <= 0 {
		return nil, nil
	}
	vectors, err := s.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, domain.Wrap(domain.CodeEmbeddingProvider, "vectorstore.SimilaritySearch", err)
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, domain.E(domain.CodeEmbeddingProvider, "vectorstore.SimilaritySearch", "embedder returned no query vector", nil)
	}
	queryVec := vectors[0]

	var hits []domain.SearchHit
	err = s.view(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.collection)
		if bucket == nil {
			return nil
		}
		meta, err := readMeta(bucket)
		if err != nil {
			return err
		}
		if meta.Dimension != 0 && meta.Dimension != len(queryVec) {
			return domain.E(domain.CodeIndexCorruption, "vectorstore.SimilaritySearch",
				fmt.Sprintf("query dimension %d does not match collection dimension %d", len(queryVec), meta.Dimension), nil)
		}
		return bucket.ForEach(func(key, value []byte) error {
			if isReservedKey(key) {
				return nil
			}
			var rec record
			if err := json.Unmarshal(value, &rec); err != nil {
				return domain.E(domain.CodeIndexCorruption, "vectorstore.SimilaritySearch",
					fmt.Sprintf("decode record %x", key), err)
			}
			if len(rec.Vector) != len(queryVec) {
				return domain.E(domain.CodeIndexCorruption, "vectorstore.SimilaritySearch",
					fmt.Sprintf("record %x has dimension %d, want %d", key, len(rec.Vector), len(queryVec)), nil)
			}
			hits = append(hits, domain.SearchHit{
				Text:     rec.Text,
				Metadata: rec.Metadata,
				Score:    cosine(queryVec, rec.Vector),
			})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// DeleteCollection removes the collection bucket; a missing bucket is not an error.
func (s *Store) DeleteCollection(_ context.Context) error {
	return s.update(func(tx *bolt.Tx) error {
		if tx.Bucket(s.collection) == nil {
			return nil
		}
		return tx.DeleteBucket(s.collection)
	})
}

func (s *Store) Count(_ context.Context) (int, error) {
	count := 0
	err := s.view(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(s.collection)
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(key, _ []byte) error {
			if !isReservedKey(key) {
				count++
			}
			return nil
		})
	})
	return count, err
}

func (s *Store) view(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return s.db.View(fn)
}

func (s *Store) update(fn func(*bolt.Tx) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return domain.ErrStoreClosed
	}
	return s.db.Update(fn)
}

func readMeta(bucket *bolt.Bucket) (collectionMeta, error) {
	var meta collectionMeta
	raw := bucket.Get([]byte(metaKey))
	if raw == nil {
		return meta, nil
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, domain.E(domain.CodeIndexCorruption, "vectorstore.readMeta", "decode collection metadata", err)
	}
	return meta, nil
}

func writeMeta(bucket *bolt.Bucket, meta collectionMeta) error {
	raw, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return bucket.Put([]byte(metaKey), raw)
}

func sequenceKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}

func isReservedKey(key []byte) bool {
	return strings.HasPrefix(string(key), reservedPrefix)
}

func cosine(a, b []float64) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

var _ domain.VectorStore = (*Store)(nil)
