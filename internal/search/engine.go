// Package search provides the vector index over chunks: transactional build, load with
// compatibility checks, and retrieval by plain top-k, MMR, or hybrid keyword fusion.
package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/tanya/internal/config"
	"github.com/hyperjump/tanya/internal/embedding"
	"github.com/hyperjump/tanya/internal/keyword"
	"github.com/hyperjump/tanya/internal/models"
	"github.com/hyperjump/tanya/internal/storage"
	"github.com/hyperjump/tanya/internal/vector"
)

// Engine owns the persisted chunk index and the in-memory structures searched at query time.
// Retrieve is safe for concurrent use; Build and Load swap the in-memory state under a write lock.
type Engine struct {
	storage  storage.Storage
	embedder embedding.Embedder
	config   *config.RetrievalConfig
	logger   *zap.Logger
	now      func() time.Time

	chunkSize    int
	chunkOverlap int

	buildMu sync.Mutex
	mu      sync.RWMutex
	state   *snapshot
}

// snapshot is an immutable view of one committed index.
type snapshot struct {
	vectors  *vector.MemoryIndex
	keywords *keyword.BleveIndex
	chunks   map[string]*models.Chunk
	meta     storage.IndexMeta
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithChunkSettings records the chunker settings in the index metadata.
func WithChunkSettings(size, overlap int) Option {
	return func(e *Engine) {
		e.chunkSize = size
		e.chunkOverlap = overlap
	}
}

// NewEngine creates an engine over store. Call Load or Build before Retrieve.
func NewEngine(store storage.Storage, embedder embedding.Embedder, cfg *config.RetrievalConfig, opts ...Option) *Engine {
	e := &Engine{
		storage:  store,
		embedder: embedder,
		config:   cfg,
		logger:   zap.NewNop(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Exists reports whether path holds a committed, non-empty index.
func Exists(path string) (bool, error) {
	return storage.IndexExists(path)
}

// Build embeds every chunk, persists the chunks and vectors in one transaction, and swaps
// the in-memory index. When the store already holds an index and overwrite is false it
// returns models.ErrIndexExists without calling the embedder.
func (e *Engine) Build(ctx context.Context, chunks []*models.Chunk, overwrite bool) error {
	if len(chunks) == 0 {
		return models.ErrNoDocuments
	}
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	if !overwrite {
		n, err := e.storage.CountChunks(ctx)
		if err != nil {
			return fmt.Errorf("failed to inspect index: %w", err)
		}
		if n > 0 {
			return models.ErrIndexExists
		}
	}

	start := time.Now()
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vecs, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return err
	}
	if len(vecs) != len(chunks) {
		return fmt.Errorf("embedder returned %d vectors for %d chunks", len(vecs), len(chunks))
	}

	dims := len(vecs[0])
	embedded := make([]*models.Chunk, len(chunks))
	for i, c := range chunks {
		if len(vecs[i]) != dims {
			return fmt.Errorf("inconsistent embedding dimension for chunk %s: %d != %d", c.ID, len(vecs[i]), dims)
		}
		cp := *c
		cp.Embedding = vecs[i]
		embedded[i] = &cp
	}

	meta := storage.IndexMeta{
		EmbeddingModel: e.embedder.ModelName(),
		Dimensions:     dims,
		ChunkSize:      e.chunkSize,
		ChunkOverlap:   e.chunkOverlap,
		BuiltAt:        e.now().UTC().Truncate(time.Second),
	}
	if err := e.storage.ReplaceChunks(ctx, embedded, meta, overwrite); err != nil {
		if errors.Is(err, models.ErrIndexExists) {
			return err
		}
		return fmt.Errorf("failed to persist index: %w", err)
	}

	snap, err := newSnapshot(ctx, embedded, meta)
	if err != nil {
		return err
	}
	e.swap(snap)
	e.logger.Info("index built",
		zap.Int("chunks", len(embedded)),
		zap.Int("dimensions", dims),
		zap.String("model", meta.EmbeddingModel),
		zap.Duration("took", time.Since(start)))
	return nil
}

// Load reads the committed index from the store into memory.
func (e *Engine) Load(ctx context.Context) error {
	meta, err := e.storage.Meta(ctx)
	if err != nil {
		return fmt.Errorf("failed to read index metadata: %w", err)
	}
	if meta == nil {
		return models.ErrIndexNotFound
	}
	if meta.EmbeddingModel != e.embedder.ModelName() {
		return fmt.Errorf("%w: index uses %q, configured %q", models.ErrIndexIncompatible, meta.EmbeddingModel, e.embedder.ModelName())
	}
	if d := e.embedder.Dimensions(); d != 0 && d != meta.Dimensions {
		return fmt.Errorf("%w: index has %d dimensions, embedder produces %d", models.ErrIndexIncompatible, meta.Dimensions, d)
	}

	chunks, err := e.storage.ListChunks(ctx)
	if err != nil {
		return fmt.Errorf("failed to read chunks: %w", err)
	}
	snap, err := newSnapshot(ctx, chunks, *meta)
	if err != nil {
		return err
	}
	e.swap(snap)
	e.logger.Info("index loaded", zap.Int("chunks", len(chunks)), zap.String("model", meta.EmbeddingModel))
	return nil
}

func newSnapshot(ctx context.Context, chunks []*models.Chunk, meta storage.IndexMeta) (*snapshot, error) {
	vecs, err := vector.NewMemoryIndex(meta.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("failed to create vector index: %w", err)
	}
	kw, err := keyword.NewBleveIndex()
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	byID := make(map[string]*models.Chunk, len(chunks))
	for i, c := range chunks {
		ids[i] = c.ID
		embeddings[i] = c.Embedding
		byID[c.ID] = c
	}
	if err := vecs.Add(ctx, ids, embeddings); err != nil {
		_ = kw.Close()
		return nil, fmt.Errorf("failed to load vectors: %w", err)
	}
	if err := kw.IndexChunks(ctx, chunks); err != nil {
		_ = kw.Close()
		return nil, err
	}
	return &snapshot{vectors: vecs, keywords: kw, chunks: byID, meta: meta}, nil
}

func (e *Engine) swap(next *snapshot) {
	e.mu.Lock()
	prev := e.state
	e.state = next
	e.mu.Unlock()
	if prev != nil {
		prev.close()
	}
}

func (s *snapshot) close() {
	_ = s.vectors.Close()
	_ = s.keywords.Close()
}

// Loaded reports whether a non-empty index is in memory and ready for Retrieve.
func (e *Engine) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state != nil && len(e.state.chunks) > 0
}

// Retrieve returns up to k chunks relevant to query. k <= 0 uses the configured k and an
// empty strategy uses the configured strategy. When the index holds at least k chunks the
// result has exactly k entries.
func (e *Engine) Retrieve(ctx context.Context, query string, k int, strategy string) ([]*models.RetrievalResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, models.ErrEmptyQuery
	}
	if k <= 0 {
		k = e.config.K
	}
	if strategy == "" {
		strategy = e.config.Strategy
	}
	if err := e.checkReady(); err != nil {
		return nil, err
	}

	qvec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	snap := e.state
	if snap == nil {
		return nil, models.ErrIndexNotFound
	}
	if len(snap.chunks) == 0 {
		return nil, models.ErrIndexEmpty
	}
	if len(qvec) != snap.meta.Dimensions {
		return nil, fmt.Errorf("%w: query embedding has %d dimensions, index has %d", models.ErrIndexIncompatible, len(qvec), snap.meta.Dimensions)
	}

	fetchK := max(e.config.FetchK, k)
	var hits []*vector.Result
	switch strategy {
	case config.StrategyTopK:
		hits, err = snap.vectors.Search(ctx, qvec, k)
	case config.StrategyMMR:
		var cands []*vector.Result
		cands, err = snap.vectors.Search(ctx, qvec, fetchK)
		if err == nil {
			hits = vector.MMR(qvec, cands, snap.vectors.Vector, k, e.config.LambdaOrDefault())
		}
	case config.StrategyHybrid:
		hits, err = e.hybrid(ctx, snap, query, qvec, k, fetchK)
	default:
		return nil, fmt.Errorf("unknown retrieval strategy %q", strategy)
	}
	if err != nil {
		return nil, fmt.Errorf("%s retrieval failed: %w", strategy, err)
	}

	results := make([]*models.RetrievalResult, 0, len(hits))
	for _, h := range hits {
		c, ok := snap.chunks[h.ID]
		if !ok {
			continue
		}
		results = append(results, &models.RetrievalResult{Chunk: c, Score: h.Score})
	}
	e.logger.Debug("retrieved chunks",
		zap.String("strategy", strategy),
		zap.Int("k", k),
		zap.Int("results", len(results)))
	return results, nil
}

func (e *Engine) checkReady() error {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.state == nil {
		return models.ErrIndexNotFound
	}
	if len(e.state.chunks) == 0 {
		return models.ErrIndexEmpty
	}
	return nil
}

func (e *Engine) hybrid(ctx context.Context, snap *snapshot, query string, qvec []float32, k, fetchK int) ([]*vector.Result, error) {
	semantic, err := snap.vectors.Search(ctx, qvec, fetchK)
	if err != nil {
		return nil, err
	}
	kw, err := snap.keywords.Search(ctx, query, fetchK)
	if err != nil {
		return nil, err
	}
	fused := Fuse(NormalizeKeywordScores(kw), NormalizeSemanticScores(semantic), e.config.KeywordWeight, e.config.SemanticWeight)
	if len(fused) > k {
		fused = fused[:k]
	}
	out := make([]*vector.Result, len(fused))
	for i, f := range fused {
		out[i] = &vector.Result{ID: f.ChunkID, Score: f.Score}
	}
	return out, nil
}

// Stats describes the persisted index.
type Stats struct {
	Exists         bool      `json:"exists"`
	Loaded         bool      `json:"loaded"`
	Chunks         int64     `json:"chunks"`
	Sources        int64     `json:"sources"`
	EmbeddingModel string    `json:"embedding_model,omitempty"`
	Dimensions     int       `json:"dimensions,omitempty"`
	ChunkSize      int       `json:"chunk_size,omitempty"`
	ChunkOverlap   int       `json:"chunk_overlap,omitempty"`
	BuiltAt        time.Time `json:"built_at,omitempty"`
	DiskBytes      int64     `json:"disk_bytes"`
}

// Stats reads index statistics from the store.
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	chunks, err := e.storage.CountChunks(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	sources, err := e.storage.CountSources(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count sources: %w", err)
	}
	disk, err := e.storage.DiskUsage()
	if err != nil {
		return nil, fmt.Errorf("failed to measure index size: %w", err)
	}
	st := &Stats{
		Exists:    chunks > 0,
		Loaded:    e.Loaded(),
		Chunks:    chunks,
		Sources:   sources,
		DiskBytes: disk,
	}
	meta, err := e.storage.Meta(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read index metadata: %w", err)
	}
	if meta != nil {
		st.EmbeddingModel = meta.EmbeddingModel
		st.Dimensions = meta.Dimensions
		st.ChunkSize = meta.ChunkSize
		st.ChunkOverlap = meta.ChunkOverlap
		st.BuiltAt = meta.BuiltAt
	}
	return st, nil
}

// Close releases the in-memory index. The store is owned by the caller.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state != nil {
		e.state.close()
		e.state = nil
	}
	return nil
}
